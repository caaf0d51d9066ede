package transfer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// LineReader yields raw JSON lines and io.EOF at the end of input.
type LineReader interface {
	NextLine() ([]byte, error)
}

// ImportConfig controls an import. A negative Limit means no limit.
type ImportConfig struct {
	Features   core.FeatureMap
	BatchSize  int
	Limit      int
	Offset     int
	MaxThreads int
	Upsert     bool

	// Embedder, when set, embeds the records of a batch that carry no
	// embedding before they are written.
	Embedder ai.Embedder

	// MaxAttempts is the number of tries per batch write. Zero means one.
	MaxAttempts int
	RetryDelay  time.Duration

	// NewID generates ids for records without one. Defaults to uuid v4.
	NewID func() string

	Progress io.Writer
	Logger   *slog.Logger
}

// Validate checks the numeric settings and the feature map.
func (c ImportConfig) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.BatchSize)
	}
	if c.MaxThreads < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxThreads, c.MaxThreads)
	}
	if c.MaxAttempts < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxAttempts, c.MaxAttempts)
	}
	return c.Features.Validate()
}

type importer struct {
	coll     storage.Collection
	cfg      ImportConfig
	logger   *slog.Logger
	progress *Progress

	wg       sync.WaitGroup
	errOnce  sync.Once
	err      error
	failed   atomic.Bool
	written  atomic.Int64
	cancel   context.CancelFunc
	attempts int
}

// Import reads lines from r, remaps them into records and writes them to
// coll in batches on MaxThreads workers. The first Offset lines are skipped
// without parsing and at most Limit records are imported. The first failing
// batch stops submission; Import waits for running batches and returns that
// error. The returned count is the number of records written.
func Import(ctx context.Context, coll storage.Collection, r LineReader, cfg ImportConfig) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if cfg.NewID == nil {
		cfg.NewID = func() string { return uuid.New().String() }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := newPool(cfg.MaxThreads)
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	total := 0
	if cfg.Limit >= 0 {
		total = cfg.Limit
	}
	imp := &importer{
		coll:     coll,
		cfg:      cfg,
		logger:   logger.With("component", "import", "collection", coll.Name()),
		progress: NewProgress(cfg.Progress, total),
		cancel:   cancel,
		attempts: max(cfg.MaxAttempts, 1),
	}

	submit := func(batch []*core.Record) {
		imp.wg.Add(1)
		err := pool.Submit(func() {
			defer imp.wg.Done()
			imp.write(ctx, batch)
		})
		if err != nil {
			imp.wg.Done()
			imp.fail(fmt.Errorf("submit batch: %w", err))
		}
	}

	readErr := imp.read(r, submit)
	imp.wg.Wait()
	imp.progress.Finish()

	if readErr != nil {
		return int(imp.written.Load()), readErr
	}
	return int(imp.written.Load()), imp.err
}

// read assembles batches and submits them until input, limit or the first
// failure ends the import.
func (imp *importer) read(r LineReader, submit func([]*core.Record)) error {
	cfg := imp.cfg
	batch := make([]*core.Record, 0, cfg.BatchSize)
	lineNo, count := 0, 0
	for {
		if imp.failed.Load() {
			return nil
		}
		if cfg.Limit >= 0 && count >= cfg.Limit {
			break
		}
		line, err := r.NextLine()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			imp.cancel()
			return fmt.Errorf("read line %d: %w", lineNo+1, err)
		}
		lineNo++
		if lineNo <= cfg.Offset {
			continue
		}

		rec, err := decodeLine(line, cfg.Features)
		if err != nil {
			imp.cancel()
			return fmt.Errorf("line %d: %w", lineNo, err)
		}
		if !rec.HasID() {
			rec.SetID(cfg.NewID())
		}
		batch = append(batch, rec)
		count++
		if len(batch) >= cfg.BatchSize {
			submit(batch)
			batch = make([]*core.Record, 0, cfg.BatchSize)
		}
	}
	if len(batch) > 0 && !imp.failed.Load() {
		submit(batch)
	}
	imp.logger.Debug("input consumed", "lines", lineNo, "records", count)
	return nil
}

func (imp *importer) write(ctx context.Context, batch []*core.Record) {
	if imp.failed.Load() {
		return
	}
	err := RetryWithBackoff(ctx, func() error {
		if err := imp.embed(ctx, batch); err != nil {
			return err
		}
		if imp.cfg.Upsert {
			return imp.coll.Upsert(ctx, batch)
		}
		return imp.coll.Add(ctx, batch)
	}, imp.attempts, imp.cfg.RetryDelay)
	if err != nil {
		imp.fail(fmt.Errorf("write batch starting at id %s: %w", batch[0].IDValue(), err))
		return
	}
	imp.written.Add(int64(len(batch)))
	imp.progress.Add(len(batch))
}

func (imp *importer) embed(ctx context.Context, batch []*core.Record) error {
	if imp.cfg.Embedder == nil {
		return nil
	}
	var (
		texts   []string
		targets []*core.Record
	)
	for _, rec := range batch {
		if rec.Embedding != nil {
			continue
		}
		if rec.TextChunk == nil {
			return fmt.Errorf("%w: %s", ErrMissingText, rec.IDValue())
		}
		texts = append(texts, *rec.TextChunk)
		targets = append(targets, rec)
	}
	if len(texts) == 0 {
		return nil
	}
	vectors, err := imp.cfg.Embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed batch: %w", err)
	}
	if err := ai.CheckCount(texts, vectors); err != nil {
		return err
	}
	for i, rec := range targets {
		rec.Embedding = vectors[i]
	}
	return nil
}

func (imp *importer) fail(err error) {
	imp.errOnce.Do(func() {
		imp.err = err
		imp.failed.Store(true)
		imp.logger.Error("import failed", "err", err)
		imp.cancel()
	})
}

func decodeLine(line []byte, fm core.FeatureMap) (*core.Record, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidRecord, err)
	}
	return core.Remap(raw, fm)
}
