package reembed

import (
	"context"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// PageIterator walks a collection in insertion order.
type PageIterator struct {
	coll      storage.Collection
	batchSize int
	where     *storage.Where
}

// NewPageIterator reads coll batchSize records at a time. A nil where
// selects every record.
func NewPageIterator(coll storage.Collection, batchSize int, where *storage.Where) (*PageIterator, error) {
	if batchSize <= 0 {
		return nil, ErrInvalidBatchSize
	}
	return &PageIterator{coll: coll, batchSize: batchSize, where: where}, nil
}

// ForEach calls fn with each page. Iteration stops at the first error from
// fn or the store, and when ctx is done.
func (it *PageIterator) ForEach(ctx context.Context, fn func([]*core.Record) error) error {
	for offset := 0; ; offset += it.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := it.coll.Get(ctx, storage.GetRequest{
			Where:   it.where,
			Limit:   it.batchSize,
			Offset:  offset,
			Include: storage.AllIncludes(),
		})
		if err != nil {
			return err
		}
		if page.Len() == 0 {
			return nil
		}
		if err := fn(page.Records()); err != nil {
			return err
		}
		if page.Len() < it.batchSize {
			return nil
		}
	}
}
