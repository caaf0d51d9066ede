package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
)

// DefaultQdrantPort is used when a Qdrant URI has no port.
const DefaultQdrantPort = 6333

// QdrantConfig describes a Qdrant collection scroll. Empty fields fall back
// to the values in URI.
type QdrantConfig struct {
	// URI has the form http://host:port/collection?doc_payload_field=text
	// with optional batch_size, limit, offset and vector query values.
	URI        string
	Collection string
	DocField   string
	// Vector picks one named vector on collections that store several.
	Vector    string
	BatchSize int
	APIKey    string
	Window
}

// Qdrant emits the points of a Qdrant collection. The document payload
// field becomes the text; every other payload field becomes metadata.
type Qdrant struct {
	cfg    QdrantConfig
	base   string
	client *http.Client
	logger *slog.Logger
}

var _ pipeline.Producer = (*Qdrant)(nil)

// NewQdrant resolves cfg against its URI. Explicit config values win over
// URI query values.
func NewQdrant(cfg QdrantConfig, client *http.Client) (*Qdrant, error) {
	u, err := url.Parse(cfg.URI)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant uri: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, cfg.URI)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: qdrant uri has no host", ErrInvalidQdrantURI)
	}
	port := u.Port()
	if port == "" {
		port = strconv.Itoa(DefaultQdrantPort)
	}

	q := u.Query()
	if cfg.Collection == "" {
		cfg.Collection = strings.Trim(u.Path, "/")
	}
	if cfg.DocField == "" {
		cfg.DocField = q.Get("doc_payload_field")
	}
	if cfg.Vector == "" {
		cfg.Vector = q.Get("vector")
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"batch_size", &cfg.BatchSize},
		{"limit", &cfg.Limit},
		{"offset", &cfg.Offset},
	}
	for _, it := range ints {
		raw := q.Get(it.key)
		if raw == "" || *it.dst != 0 {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidQdrantURI, it.key, raw)
		}
		*it.dst = n
	}

	switch {
	case cfg.Collection == "":
		return nil, fmt.Errorf("%w: collection is required", ErrInvalidQdrantURI)
	case cfg.DocField == "":
		return nil, fmt.Errorf("%w: document payload field is required", ErrInvalidQdrantURI)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}

	return &Qdrant{
		cfg:    cfg,
		base:   fmt.Sprintf("%s://%s:%s", u.Scheme, u.Hostname(), port),
		client: client,
		logger: slog.Default().With("component", "qdrant-loader", "collection", cfg.Collection),
	}, nil
}

type scrollRequest struct {
	Limit       int  `json:"limit"`
	Offset      any  `json:"offset,omitempty"`
	WithPayload bool `json:"with_payload"`
	WithVector  bool `json:"with_vector"`
}

type scrollPoint struct {
	ID      any             `json:"id"`
	Payload map[string]any  `json:"payload"`
	Vector  json.RawMessage `json:"vector"`
}

type scrollResponse struct {
	Result struct {
		Points []scrollPoint `json:"points"`
		Next   any           `json:"next_page_offset"`
	} `json:"result"`
	Status any `json:"status"`
}

// Produce scrolls the collection in batches, following the server's page
// cursor until it runs out or the window is filled.
func (p *Qdrant) Produce(ctx context.Context, emit func(*core.Record) error) error {
	cur := &cursor{w: p.cfg.Window}
	var next any
	for {
		resp, err := p.scroll(ctx, next)
		if err != nil {
			return err
		}
		for _, pt := range resp.Result.Points {
			take, done := cur.admit()
			if !take {
				continue
			}
			rec, err := p.record(pt)
			if err != nil {
				return err
			}
			if err := emit(rec); err != nil {
				return err
			}
			if done {
				return nil
			}
		}
		next = resp.Result.Next
		if next == nil || len(resp.Result.Points) == 0 {
			p.logger.Debug("scroll finished", "emitted", cur.emitted)
			return nil
		}
	}
}

func (p *Qdrant) scroll(ctx context.Context, offset any) (*scrollResponse, error) {
	body, err := json.Marshal(scrollRequest{
		Limit:       p.cfg.BatchSize,
		Offset:      offset,
		WithPayload: true,
		WithVector:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scroll request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/collections/%s/points/scroll", p.base, url.PathEscape(p.cfg.Collection))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create scroll request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		req.Header.Set("api-key", p.cfg.APIKey)
	}

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return nil, fmt.Errorf("%w: qdrant scroll: %s: %s", ErrFetch, res.Status, strings.TrimSpace(string(msg)))
	}

	var out scrollResponse
	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode scroll response: %w", err)
	}
	return &out, nil
}

func (p *Qdrant) record(pt scrollPoint) (*core.Record, error) {
	doc, ok := pt.Payload[p.cfg.DocField]
	if !ok {
		return nil, &core.MissingFieldError{Field: p.cfg.DocField}
	}
	text, ok := doc.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %s has type %T", core.ErrInvalidFieldType, p.cfg.DocField, doc)
	}
	vec, err := p.vector(pt.Vector)
	if err != nil {
		return nil, err
	}

	rest := make(map[string]any, len(pt.Payload))
	for k, v := range pt.Payload {
		if k != p.cfg.DocField {
			rest[k] = v
		}
	}
	rec := &core.Record{
		ID:        core.StringPtr(fmt.Sprint(pt.ID)),
		TextChunk: core.StringPtr(text),
		Embedding: vec,
	}
	if len(rest) > 0 {
		rec.Metadata = core.NormalizeMetadata(rest)
	}
	return rec, nil
}

// vector decodes either a plain vector or a map of named vectors.
func (p *Qdrant) vector(raw json.RawMessage) ([]float32, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var plain []float32
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain, nil
	}
	var named map[string][]float32
	if err := json.Unmarshal(raw, &named); err != nil {
		return nil, fmt.Errorf("%w: unsupported qdrant vector: %w", core.ErrInvalidFieldType, err)
	}
	if p.cfg.Vector != "" {
		vec, ok := named[p.cfg.Vector]
		if !ok {
			return nil, &core.MissingFieldError{Field: p.cfg.Vector}
		}
		return vec, nil
	}
	if len(named) != 1 {
		return nil, fmt.Errorf("%w: point has %d named vectors, pick one with vector=", ErrInvalidQdrantURI, len(named))
	}
	for _, vec := range named {
		return vec, nil
	}
	return nil, nil
}
