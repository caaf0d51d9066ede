package storage

import (
	"context"
	"slices"

	"github.com/poiesic/docpipe/core"
)

// Include names a field returned by Get. IDs are always returned.
type Include string

const (
	IncludeDocuments  Include = "documents"
	IncludeMetadatas  Include = "metadatas"
	IncludeEmbeddings Include = "embeddings"
)

// AllIncludes returns every optional field.
func AllIncludes() []Include {
	return []Include{IncludeEmbeddings, IncludeDocuments, IncludeMetadatas}
}

// GetRequest selects a page of a collection. Limit <= 0 means no limit.
// Offset and Limit apply after the filters.
type GetRequest struct {
	Where         *Where
	WhereDocument *WhereDocument
	Limit         int
	Offset        int
	Include       []Include
}

// Includes reports whether field was requested.
func (r GetRequest) Includes(field Include) bool {
	return slices.Contains(r.Include, field)
}

// Page is the columnar result of a Get. All slices have the same length.
type Page struct {
	IDs        []string
	Documents  []*string
	Metadatas  []core.Metadata
	Embeddings [][]float32
}

// Len returns the number of rows in the page.
func (p *Page) Len() int {
	if p == nil {
		return 0
	}
	return len(p.IDs)
}

// Append adds one record to the page, honoring the requested fields.
func (p *Page) Append(rec *core.Record, req GetRequest) {
	p.IDs = append(p.IDs, rec.IDValue())
	var (
		doc  *string
		meta core.Metadata
		emb  []float32
	)
	if req.Includes(IncludeDocuments) {
		doc = rec.TextChunk
	}
	if req.Includes(IncludeMetadatas) {
		meta = rec.Metadata
	}
	if req.Includes(IncludeEmbeddings) {
		emb = rec.Embedding
	}
	p.Documents = append(p.Documents, doc)
	p.Metadatas = append(p.Metadatas, meta)
	p.Embeddings = append(p.Embeddings, emb)
}

// Records converts the page into records, preserving row order.
func (p *Page) Records() []*core.Record {
	out := make([]*core.Record, p.Len())
	for i, id := range p.IDs {
		rec := &core.Record{ID: core.StringPtr(id)}
		if i < len(p.Documents) {
			rec.TextChunk = p.Documents[i]
		}
		if i < len(p.Metadatas) {
			rec.Metadata = p.Metadatas[i]
		}
		if i < len(p.Embeddings) {
			rec.Embedding = p.Embeddings[i]
		}
		out[i] = rec
	}
	return out
}

// CollectionInfo describes a collection without opening it.
type CollectionInfo struct {
	Name     string
	Metadata map[string]any
}

// Collection is a named set of records in a vector store.
// Implementations must be safe for concurrent use.
type Collection interface {
	// Name returns the collection name.
	Name() string

	// Count returns the number of records in the collection.
	Count(ctx context.Context) (int, error)

	// Get returns the records selected by req in insertion order.
	Get(ctx context.Context, req GetRequest) (*Page, error)

	// Add inserts records. Every record must carry an id.
	// Returns ErrDuplicateKey if an id already exists.
	Add(ctx context.Context, records []*core.Record) error

	// Upsert inserts records or replaces those whose id already exists.
	Upsert(ctx context.Context, records []*core.Record) error
}

// Client opens collections in one store.
type Client interface {
	// ListCollections returns all collections in the store.
	ListCollections(ctx context.Context) ([]CollectionInfo, error)

	// CreateCollection creates a collection.
	// Returns ErrCollectionExists if the name is taken.
	CreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error)

	// GetCollection opens an existing collection.
	// Returns ErrNotFound if it does not exist.
	GetCollection(ctx context.Context, name string) (Collection, error)

	// GetOrCreateCollection opens a collection, creating it when missing.
	GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (Collection, error)

	// Close releases the store.
	Close() error
}
