// Package cache wraps an ai.Embedder with an expiring LRU cache keyed by
// text, so repeated chunks are embedded once per run.
package cache

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/poiesic/docpipe/ai"
)

// DefaultTTL is used when Wrap is given a non-positive ttl.
const DefaultTTL = time.Hour

// Embedder serves cached vectors and forwards misses to the wrapped embedder.
type Embedder struct {
	next   ai.Embedder
	cache  *expirable.LRU[string, []float32]
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// Wrap returns next unchanged when size <= 0.
func Wrap(next ai.Embedder, size int, ttl time.Duration) ai.Embedder {
	if next == nil || size <= 0 {
		return next
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Embedder{
		next:   next,
		cache:  expirable.NewLRU[string, []float32](size, nil, ttl),
		logger: slog.Default().With("component", "embed-cache"),
	}
}

// EmbedText returns the cached vector for text or embeds it.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return slices.Clone(cached), nil
	}
	vec, err := e.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Add(text, slices.Clone(vec))
	return vec, nil
}

// EmbedTexts embeds only the texts missing from the cache, in one call.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if cached, ok := e.cache.Get(text); ok {
			out[i] = slices.Clone(cached)
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}
	e.logger.Debug("embedding cache lookup", "hits", len(texts)-len(missing), "misses", len(missing))
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := e.next.EmbedTexts(ctx, missing)
	if err != nil {
		return nil, err
	}
	if err := ai.CheckCount(missing, vectors); err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		out[slots[j]] = vec
		e.cache.Add(missing[j], slices.Clone(vec))
	}
	return out, nil
}
