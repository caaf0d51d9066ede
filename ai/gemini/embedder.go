// Package gemini provides an ai.Embedder backed by the Gemini API.
// Importing the package registers the "gemini" provider with ai.New.
package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/ai"
	"google.golang.org/genai"
)

func init() {
	ai.Register(ai.ProviderGemini, func(ctx context.Context, cfg *ai.Config) (ai.Embedder, error) {
		return NewEmbedder(ctx, cfg)
	})
}

// Embedder implements ai.Embedder on genai's EmbedContent.
type Embedder struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// Option configures the underlying genai client.
type Option func(*genai.ClientConfig)

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = url
	}
}

// NewEmbedder creates a Gemini embedder. The API key is required.
func NewEmbedder(ctx context.Context, config *ai.Config, opts ...Option) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(clientConfig)
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Embedder{
		client: client,
		model:  config.Model,
		logger: slog.Default().With("component", "gemini-embedder", "model", config.Model),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds all texts in one request, one content per text.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = &genai.Content{Parts: []*genai.Part{{Text: text}}}
	}
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, nil)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for _, emb := range resp.Embeddings {
		if emb == nil {
			vectors = append(vectors, nil)
			continue
		}
		vectors = append(vectors, emb.Values)
	}
	if err := ai.CheckCount(texts, vectors); err != nil {
		return nil, err
	}
	return vectors, nil
}
