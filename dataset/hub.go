package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/stream"
)

// Row is one flat dataset row.
type Row = map[string]any

// Dataset is a loaded split.
type Dataset interface {
	NumRows() int
	// Slice returns rows [start, end).
	Slice(ctx context.Context, start, end int) ([]Row, error)
}

// Hub loads and publishes dataset splits.
type Hub interface {
	Load(ctx context.Context, name, split string) (Dataset, error)
	Push(ctx context.Context, name, split string, rows []Row, private bool) error
}

// Store is the object storage behind a hub. Get returns ErrNotFound for a
// missing key.
type Store interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Put(ctx context.Context, key string, data []byte, private bool) error
}

// ObjectHub keeps every split as one JSONL object in a Store.
type ObjectHub struct {
	store  Store
	logger *slog.Logger
}

var _ Hub = (*ObjectHub)(nil)

// NewObjectHub creates a hub over store.
func NewObjectHub(store Store) *ObjectHub {
	return &ObjectHub{
		store:  store,
		logger: slog.Default().With("component", "dataset-hub"),
	}
}

// Load reads the whole split into memory.
func (h *ObjectHub) Load(ctx context.Context, name, split string) (Dataset, error) {
	key := ObjectKey(name, split)
	body, err := h.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	defer body.Close()

	r := stream.NewReader(body)
	var rows []Row
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("load %s line %d: %w", key, r.Line(), err)
		}
		rows = append(rows, row)
	}
	h.logger.Debug("split loaded", "key", key, "rows", len(rows))
	return &memDataset{rows: rows}, nil
}

// Push replaces the split with rows.
func (h *ObjectHub) Push(ctx context.Context, name, split string, rows []Row, private bool) error {
	var buf bytes.Buffer
	w := stream.NewWriter(&buf)
	for _, row := range rows {
		if err := w.Write(core.Flat(row)); err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	key := ObjectKey(name, split)
	if err := h.store.Put(ctx, key, buf.Bytes(), private); err != nil {
		return fmt.Errorf("push %s: %w", key, err)
	}
	h.logger.Debug("split pushed", "key", key, "rows", len(rows), "private", private)
	return nil
}

type memDataset struct {
	rows []Row
}

func (d *memDataset) NumRows() int {
	return len(d.rows)
}

func (d *memDataset) Slice(_ context.Context, start, end int) ([]Row, error) {
	if start < 0 || end < start || end > len(d.rows) {
		return nil, fmt.Errorf("%w: [%d, %d) of %d", ErrInvalidRange, start, end, len(d.rows))
	}
	return d.rows[start:end], nil
}
