package chroma

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// Collection is a remote collection addressed by its server id.
type Collection struct {
	client *Client
	id     string
	name   string
	logger *slog.Logger
}

var _ storage.Collection = (*Collection)(nil)

type getRequest struct {
	Where         map[string]any `json:"where,omitempty"`
	WhereDocument map[string]any `json:"where_document,omitempty"`
	Limit         *int           `json:"limit,omitempty"`
	Offset        *int           `json:"offset,omitempty"`
	Include       []string       `json:"include"`
}

type getResponse struct {
	IDs        []string        `json:"ids"`
	Documents  []*string       `json:"documents"`
	Metadatas  []core.Metadata `json:"metadatas"`
	Embeddings [][]float32     `json:"embeddings"`
}

type writeRequest struct {
	IDs        []string        `json:"ids"`
	Documents  []*string       `json:"documents"`
	Metadatas  []core.Metadata `json:"metadatas"`
	Embeddings [][]float32     `json:"embeddings,omitempty"`
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.client.do(ctx, http.MethodGet, c.path("/count"), nil, &count); err != nil {
		return 0, fmt.Errorf("count %s: %w", c.name, err)
	}
	return count, nil
}

// Get fetches one page. Filters, offset and limit are evaluated by the server.
func (c *Collection) Get(ctx context.Context, req storage.GetRequest) (*storage.Page, error) {
	body := getRequest{Include: make([]string, 0, len(req.Include))}
	for _, inc := range req.Include {
		body.Include = append(body.Include, string(inc))
	}
	if req.Where != nil {
		body.Where = req.Where.Raw()
	}
	if req.WhereDocument != nil {
		body.WhereDocument = req.WhereDocument.Raw()
	}
	if req.Limit > 0 {
		body.Limit = &req.Limit
	}
	if req.Offset > 0 {
		body.Offset = &req.Offset
	}

	var resp getResponse
	if err := c.client.do(ctx, http.MethodPost, c.path("/get"), body, &resp); err != nil {
		return nil, fmt.Errorf("get %s: %w", c.name, err)
	}

	page := &storage.Page{}
	for i, id := range resp.IDs {
		rec := &core.Record{ID: core.StringPtr(id)}
		if i < len(resp.Documents) {
			rec.TextChunk = resp.Documents[i]
		}
		if i < len(resp.Metadatas) {
			rec.Metadata = resp.Metadatas[i]
		}
		if i < len(resp.Embeddings) {
			rec.Embedding = resp.Embeddings[i]
		}
		page.Append(rec, req)
	}
	return page, nil
}

// Add inserts records.
func (c *Collection) Add(ctx context.Context, records []*core.Record) error {
	return c.write(ctx, "/add", records)
}

// Upsert inserts or replaces records.
func (c *Collection) Upsert(ctx context.Context, records []*core.Record) error {
	return c.write(ctx, "/upsert", records)
}

func (c *Collection) write(ctx context.Context, op string, records []*core.Record) error {
	if len(records) == 0 {
		return nil
	}
	body := writeRequest{
		IDs:       make([]string, len(records)),
		Documents: make([]*string, len(records)),
		Metadatas: make([]core.Metadata, len(records)),
	}
	withEmbeddings := false
	for i, rec := range records {
		if !rec.HasID() {
			return storage.ErrMissingID
		}
		body.IDs[i] = rec.IDValue()
		body.Documents[i] = rec.TextChunk
		body.Metadatas[i] = rec.Metadata
		if rec.Embedding != nil {
			withEmbeddings = true
		}
	}
	// The server requires embeddings for all records or none.
	if withEmbeddings {
		body.Embeddings = make([][]float32, len(records))
		for i, rec := range records {
			if rec.Embedding == nil {
				return fmt.Errorf("%w: record %s has no embedding while others do", storage.ErrInvalidQuery, rec.IDValue())
			}
			body.Embeddings[i] = rec.Embedding
		}
	}
	if err := c.client.do(ctx, http.MethodPost, c.path(op), body, nil); err != nil {
		return fmt.Errorf("%s %s: %w", op[1:], c.name, err)
	}
	c.logger.Debug("records written", "op", op[1:], "count", len(records))
	return nil
}

func (c *Collection) path(suffix string) string {
	return c.client.collectionsPath() + "/" + c.id + suffix
}
