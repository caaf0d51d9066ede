package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"

	_ "modernc.org/sqlite"
)

// FileName is the database file created under a storage root.
const FileName = "docpipe.sqlite"

// Client implements storage.Client on a SQLite database.
type Client struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ storage.Client = (*Client)(nil)

// Open opens (or creates) the database file under the storage root dir.
func Open(ctx context.Context, dir string) (*Client, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create sqlite store dir: %w", err)
	}
	return OpenFile(ctx, filepath.Join(dir, FileName))
}

// OpenFile opens (or creates) a database at path.
func OpenFile(ctx context.Context, path string) (*Client, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection serializes writers instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Client{
		db:     db,
		logger: slog.Default().With("component", "sqlite", "path", path),
	}, nil
}

type collectionRow struct {
	Name     string `db:"name"`
	Metadata []byte `db:"metadata"`
}

// ListCollections returns all collections in name order.
func (c *Client) ListCollections(ctx context.Context) ([]storage.CollectionInfo, error) {
	query, args, err := builder.BuildSelect(collectionsTable, map[string]interface{}{
		"_orderby": "name asc",
	}, []string{"name", "metadata"})
	if err != nil {
		return nil, err
	}
	var rows []collectionRow
	if err := c.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	infos := make([]storage.CollectionInfo, 0, len(rows))
	for _, row := range rows {
		meta, err := storage.UnmarshalMetadata(row.Metadata)
		if err != nil {
			return nil, err
		}
		infos = append(infos, storage.CollectionInfo{Name: row.Name, Metadata: meta})
	}
	return infos, nil
}

// CreateCollection creates a collection.
func (c *Client) CreateCollection(ctx context.Context, name string, metadata map[string]any) (storage.Collection, error) {
	if err := c.insertCollection(ctx, name, metadata, false); err != nil {
		return nil, err
	}
	return c.collection(name), nil
}

// GetCollection opens an existing collection.
func (c *Client) GetCollection(ctx context.Context, name string) (storage.Collection, error) {
	query, args, err := builder.BuildSelect(collectionsTable, map[string]interface{}{
		"name": name,
	}, []string{"name"})
	if err != nil {
		return nil, err
	}
	var found string
	err = c.db.GetContext(ctx, &found, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("get collection %s: %w", name, err)
	}
	return c.collection(name), nil
}

// GetOrCreateCollection opens a collection, creating it when missing.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (storage.Collection, error) {
	if err := c.insertCollection(ctx, name, metadata, true); err != nil {
		return nil, err
	}
	return c.collection(name), nil
}

// Close closes the database.
func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) insertCollection(ctx context.Context, name string, metadata map[string]any, ignoreExisting bool) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", storage.ErrInvalidQuery)
	}
	meta := core.Metadata{}
	if metadata != nil {
		meta = core.NormalizeMetadata(metadata)
	}
	query, args, err := builder.BuildInsert(collectionsTable, []map[string]interface{}{{
		"name":     name,
		"metadata": storage.MarshalMetadata(meta),
	}})
	if err != nil {
		return err
	}
	if ignoreExisting {
		query += " ON CONFLICT(name) DO NOTHING"
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", storage.ErrCollectionExists, name)
		}
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

func (c *Client) collection(name string) *Collection {
	return &Collection{db: c.db, name: name, logger: c.logger.With("collection", name)}
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
