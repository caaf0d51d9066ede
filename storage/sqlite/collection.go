package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// Collection implements storage.Collection over the records table.
type Collection struct {
	db     *sqlx.DB
	name   string
	logger *slog.Logger
}

var _ storage.Collection = (*Collection)(nil)

type recordRow struct {
	Seq       int64          `db:"seq"`
	ID        string         `db:"id"`
	Document  sql.NullString `db:"document"`
	Metadata  []byte         `db:"metadata"`
	Embedding []byte         `db:"embedding"`
}

var recordColumns = []string{"seq", "id", "document", "metadata", "embedding"}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var count int
	err := c.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM records WHERE collection = ?", c.name)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return count, nil
}

// Get returns the records selected by req in insertion order. Without
// filters paging is pushed into SQL; with filters rows are matched here.
func (c *Collection) Get(ctx context.Context, req storage.GetRequest) (*storage.Page, error) {
	where := map[string]interface{}{
		"collection": c.name,
		"_orderby":   "seq asc",
	}
	filtered := req.Where != nil || req.WhereDocument != nil
	if !filtered && req.Limit > 0 {
		where["_limit"] = []uint{uint(max(req.Offset, 0)), uint(req.Limit)}
	}
	query, args, err := builder.BuildSelect(recordsTable, where, recordColumns)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c.name, err)
	}
	defer rows.Close()

	page := &storage.Page{}
	skipped := 0
	sqlPaged := !filtered && req.Limit > 0
	for rows.Next() {
		if req.Limit > 0 && page.Len() >= req.Limit {
			break
		}
		var row recordRow
		if err := rows.StructScan(&row); err != nil {
			return nil, err
		}
		record, err := row.record()
		if err != nil {
			return nil, err
		}
		if !req.Matches(record) {
			continue
		}
		if !sqlPaged && skipped < req.Offset {
			skipped++
			continue
		}
		page.Append(record, req)
	}
	return page, rows.Err()
}

// Add inserts records. Every record must carry an id that is not yet stored.
func (c *Collection) Add(ctx context.Context, records []*core.Record) error {
	return c.write(ctx, records, false)
}

// Upsert inserts records or replaces those whose id already exists.
func (c *Collection) Upsert(ctx context.Context, records []*core.Record) error {
	return c.write(ctx, records, true)
}

func (c *Collection) write(ctx context.Context, records []*core.Record, upsert bool) error {
	if len(records) == 0 {
		return nil
	}
	data := make([]map[string]interface{}, 0, len(records))
	for _, record := range records {
		if !record.HasID() {
			return storage.ErrMissingID
		}
		if err := core.ValidateMetadata(record.Metadata); err != nil {
			return fmt.Errorf("record %s: %w", record.IDValue(), err)
		}
		data = append(data, map[string]interface{}{
			"collection": c.name,
			"id":         record.IDValue(),
			"document":   nullableText(record.TextChunk),
			"metadata":   storage.MarshalMetadata(record.Metadata),
			"embedding":  nullableBlob(encodeEmbedding(record.Embedding)),
		})
	}
	query, args, err := builder.BuildInsert(recordsTable, data)
	if err != nil {
		return err
	}
	if upsert {
		query += " ON CONFLICT(collection, id) DO UPDATE SET" +
			" document = excluded.document, metadata = excluded.metadata, embedding = excluded.embedding"
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", storage.ErrDuplicateKey, err)
		}
		return fmt.Errorf("write %s: %w", c.name, err)
	}
	c.logger.Debug("records written", "count", len(records), "upsert", upsert)
	return nil
}

func (r recordRow) record() (*core.Record, error) {
	rec := &core.Record{ID: core.StringPtr(r.ID)}
	if r.Document.Valid {
		rec.TextChunk = core.StringPtr(r.Document.String)
	}
	meta, err := storage.UnmarshalMetadata(r.Metadata)
	if err != nil {
		return nil, err
	}
	rec.Metadata = meta
	if rec.Embedding, err = decodeEmbedding(r.Embedding); err != nil {
		return nil, fmt.Errorf("record %s: %w", r.ID, err)
	}
	return rec, nil
}

func nullableText(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

func nullableBlob(b []byte) interface{} {
	if b == nil {
		return nil
	}
	return b
}
