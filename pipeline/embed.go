// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
)

// DefaultEmbedBatchSize is the number of records embedded per call.
const DefaultEmbedBatchSize = 100

// EmbedProcessor buffers records and embeds them a batch at a time.
type EmbedProcessor struct {
	embedder  ai.Embedder
	batchSize int
	overwrite bool
	buf       []*core.Record
	logger    *slog.Logger
}

var (
	_ Processor = (*EmbedProcessor)(nil)
	_ Flusher   = (*EmbedProcessor)(nil)
)

// EmbedOption configures an EmbedProcessor.
type EmbedOption func(*EmbedProcessor)

// WithEmbedBatchSize sets the batch size. Values below one are ignored.
func WithEmbedBatchSize(n int) EmbedOption {
	return func(p *EmbedProcessor) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithOverwrite re-embeds records that already carry an embedding.
func WithOverwrite(overwrite bool) EmbedOption {
	return func(p *EmbedProcessor) {
		p.overwrite = overwrite
	}
}

// WithEmbedLogger sets a custom logger.
func WithEmbedLogger(logger *slog.Logger) EmbedOption {
	return func(p *EmbedProcessor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewEmbedProcessor creates an embed stage around embedder.
func NewEmbedProcessor(embedder ai.Embedder, opts ...EmbedOption) (*EmbedProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	p := &EmbedProcessor{
		embedder:  embedder,
		batchSize: DefaultEmbedBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "embed")
	return p, nil
}

// Process buffers rec and returns the embedded batch once it is full.
func (p *EmbedProcessor) Process(ctx context.Context, rec *core.Record) ([]*core.Record, error) {
	p.buf = append(p.buf, rec)
	if len(p.buf) < p.batchSize {
		return nil, nil
	}
	return p.Flush(ctx)
}

// Flush embeds and returns whatever is buffered.
func (p *EmbedProcessor) Flush(ctx context.Context) ([]*core.Record, error) {
	batch := p.buf
	p.buf = nil
	if len(batch) == 0 {
		return nil, nil
	}

	var (
		texts   []string
		targets []*core.Record
	)
	for _, rec := range batch {
		if rec.Embedding != nil && !p.overwrite {
			continue
		}
		if rec.TextChunk == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingText, rec.IDValue())
		}
		texts = append(texts, *rec.TextChunk)
		targets = append(targets, rec)
	}
	if len(texts) > 0 {
		vectors, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if err := ai.CheckCount(texts, vectors); err != nil {
			return nil, err
		}
		for i, rec := range targets {
			rec.Embedding = vectors[i]
		}
	}
	p.logger.Debug("batch embedded", "records", len(batch), "embedded", len(texts))
	return batch, nil
}
