package dataset

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
)

// Importer emits the records of one dataset split.
type Importer struct {
	hub    Hub
	uri    *URI
	fm     core.FeatureMap
	logger *slog.Logger
}

var _ pipeline.Producer = (*Importer)(nil)

// NewImporter reads u from hub. Feature names missing from the URI are
// taken from fallback.
func NewImporter(hub Hub, u *URI, fallback core.FeatureMap) (*Importer, error) {
	fm := u.FeatureMap(fallback)
	if err := fm.Validate(); err != nil {
		return nil, err
	}
	return &Importer{
		hub:    hub,
		uri:    u,
		fm:     fm,
		logger: slog.Default().With("component", "dataset-import", "dataset", u.String()),
	}, nil
}

// Produce walks rows [offset, offset+limit) in batch sized slices. A
// negative limit reads to the end of the split.
func (im *Importer) Produce(ctx context.Context, emit func(*core.Record) error) error {
	ds, err := im.hub.Load(ctx, im.uri.Name, im.uri.Split)
	if err != nil {
		return err
	}
	n := ds.NumRows()
	end := n
	if im.uri.Limit >= 0 {
		end = min(im.uri.Offset+im.uri.Limit, n)
	}

	emitted := 0
	for start := im.uri.Offset; start < end; start += im.uri.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := ds.Slice(ctx, start, min(start+im.uri.BatchSize, end))
		if err != nil {
			return err
		}
		for i, row := range rows {
			rec, err := core.Remap(row, im.fm)
			if err != nil {
				return fmt.Errorf("row %d: %w", start+i, err)
			}
			if err := emit(rec); err != nil {
				return err
			}
			emitted++
		}
	}
	im.logger.Info("dataset imported", "rows", n, "emitted", emitted)
	return nil
}

// Export collects every record from src, flattens it with the URI feature
// map and pushes the split in one call.
func Export(ctx context.Context, hub Hub, u *URI, fallback core.FeatureMap, src pipeline.Producer) (int, error) {
	fm := u.FeatureMap(fallback)
	if err := fm.Validate(); err != nil {
		return 0, err
	}
	var rows []Row
	err := src.Produce(ctx, func(rec *core.Record) error {
		rows = append(rows, core.ToFlat(rec, fm))
		return nil
	})
	if err != nil {
		return 0, err
	}
	if err := hub.Push(ctx, u.Name, u.Split, rows, u.Private); err != nil {
		return 0, err
	}
	slog.Default().With("component", "dataset-export").Info("dataset exported",
		"dataset", u.String(), "rows", len(rows), "private", u.Private)
	return len(rows), nil
}
