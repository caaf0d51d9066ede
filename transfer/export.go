package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// ExportConfig controls an export. Limit <= 0 means the whole collection.
type ExportConfig struct {
	BatchSize     int
	Limit         int
	Offset        int
	MaxThreads    int
	Where         *storage.Where
	WhereDocument *storage.WhereDocument

	// Progress receives a status line when set.
	Progress io.Writer
	Logger   *slog.Logger
}

// Validate checks the numeric settings.
func (c ExportConfig) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidBatchSize, c.BatchSize)
	}
	if c.MaxThreads < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxThreads, c.MaxThreads)
	}
	return nil
}

// Batch is one fetch task of an export.
type Batch struct {
	Offset int
	Limit  int
}

// Plan computes the number of records to export and the fetch tasks for a
// collection of count records.
func Plan(count int, cfg ExportConfig) (total int, batches []Batch) {
	total = count
	if cfg.Limit > 0 {
		total = min(count, cfg.Limit)
	}
	start := max(cfg.Offset, 0)
	if total <= start || cfg.BatchSize < 1 {
		return total, nil
	}
	n := (total - start + cfg.BatchSize - 1) / cfg.BatchSize
	batches = make([]Batch, n)
	for i := range batches {
		offset := start + i*cfg.BatchSize
		batches[i] = Batch{Offset: offset, Limit: min(total-offset, cfg.BatchSize)}
	}
	return total, batches
}

type pageResult struct {
	batch Batch
	page  *storage.Page
	err   error
}

// Export reads the collection in batches and hands every record to sink.
// Records within a page keep their order; pages are delivered as they
// complete, so only MaxThreads = 1 preserves the collection order across
// pages. Export stops at the first fetch or sink error and returns it.
func Export(ctx context.Context, coll storage.Collection, cfg ExportConfig, sink func(*core.Record) error) (int, error) {
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "export", "collection", coll.Name())

	count, err := coll.Count(ctx)
	if err != nil {
		return 0, err
	}
	total, batches := Plan(count, cfg)
	logger.Debug("export planned", "count", count, "total", total, "batches", len(batches))
	if len(batches) == 0 {
		return 0, nil
	}

	pool, err := newPool(cfg.MaxThreads)
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan pageResult, cfg.MaxThreads)
	go func() {
		var wg sync.WaitGroup
		defer close(results)
		defer wg.Wait()
		for _, b := range batches {
			if ctx.Err() != nil {
				return
			}
			wg.Add(1)
			err := pool.Submit(func() {
				defer wg.Done()
				page, err := coll.Get(ctx, storage.GetRequest{
					Where:         cfg.Where,
					WhereDocument: cfg.WhereDocument,
					Offset:        b.Offset,
					Limit:         b.Limit,
					Include:       storage.AllIncludes(),
				})
				if err != nil {
					err = fmt.Errorf("fetch offset %d: %w", b.Offset, err)
				}
				select {
				case results <- pageResult{batch: b, page: page, err: err}:
				case <-ctx.Done():
				}
			})
			if err != nil {
				wg.Done()
				select {
				case results <- pageResult{batch: b, err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()

	progress := NewProgress(cfg.Progress, total)
	emitted := 0
	var exportErr error
consume:
	for r := range results {
		if r.err != nil {
			exportErr = r.err
			break
		}
		logger.Debug("page received", "offset", r.batch.Offset, "records", r.page.Len())
		for _, rec := range r.page.Records() {
			if emitted >= total {
				break consume
			}
			if err := sink(rec); err != nil {
				exportErr = err
				break consume
			}
			emitted++
		}
		progress.Add(r.page.Len())
		if emitted >= total {
			break
		}
	}
	cancel()
	for range results {
	}
	progress.Finish()

	if exportErr != nil && !errors.Is(exportErr, context.Canceled) {
		logger.Error("export failed", "emitted", emitted, "err", exportErr)
	}
	return emitted, exportErr
}
