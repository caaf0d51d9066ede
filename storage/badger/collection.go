package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// Collection implements storage.Collection. Records are keyed by an insertion
// sequence so iteration order equals insertion order; an id index maps record
// ids to their sequence.
type Collection struct {
	backend *Backend
	name    string
	seq     *badger.Sequence
	logger  *slog.Logger
}

var _ storage.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	if c.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRecordPrefix(c.name)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// Get returns the records selected by req in insertion order.
func (c *Collection) Get(ctx context.Context, req storage.GetRequest) (*storage.Page, error) {
	if c.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	page := &storage.Page{}
	skipped := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeRecordPrefix(c.name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if req.Limit > 0 && page.Len() >= req.Limit {
				break
			}
			var record *core.Record
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if !req.Matches(record) {
				continue
			}
			if skipped < req.Offset {
				skipped++
				continue
			}
			page.Append(record, req)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Add inserts records. Every record must carry an id that is not yet stored.
func (c *Collection) Add(ctx context.Context, records []*core.Record) error {
	return c.write(records, false)
}

// Upsert inserts records or replaces those whose id already exists,
// keeping the original position.
func (c *Collection) Upsert(ctx context.Context, records []*core.Record) error {
	return c.write(records, true)
}

func (c *Collection) write(records []*core.Record, upsert bool) error {
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	for _, record := range records {
		if !record.HasID() {
			return storage.ErrMissingID
		}
		if err := core.ValidateMetadata(record.Metadata); err != nil {
			return fmt.Errorf("record %s: %w", record.IDValue(), err)
		}
	}

	err := c.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range records {
			idKey := makeRecordIDKey(c.name, record.IDValue())
			seq, found, err := c.lookupSeq(tx, idKey)
			if err != nil {
				return err
			}
			if found && !upsert {
				return fmt.Errorf("%w: %s", storage.ErrDuplicateKey, record.IDValue())
			}
			if !found {
				if seq, err = c.seq.Next(); err != nil {
					return err
				}
				if err := tx.Set(idKey, encodeSeq(seq)); err != nil {
					return err
				}
			}
			if err := tx.Set(makeRecordKey(c.name, seq), storage.MarshalRecord(record)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}
	c.logger.Debug("records written", "count", len(records), "upsert", upsert)
	return nil
}

func (c *Collection) lookupSeq(tx *badger.Txn, idKey []byte) (uint64, bool, error) {
	item, err := tx.Get(idKey)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	var seq uint64
	err = item.Value(func(val []byte) error {
		var err error
		seq, err = decodeSeq(val)
		return err
	})
	return seq, err == nil, err
}

func metadataFromMap(m map[string]any) core.Metadata {
	if m == nil {
		return core.Metadata{}
	}
	return core.NormalizeMetadata(m)
}
