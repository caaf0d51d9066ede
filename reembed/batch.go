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

package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/transfer"
)

// BatchProcessor embeds one page of records and writes it back.
type BatchProcessor struct {
	coll        storage.Collection
	embedder    ai.Embedder
	maxAttempts int
	retryDelay  time.Duration
	normalize   bool
}

// NewBatchProcessor creates a processor writing to coll. maxAttempts applies
// to the embedding call and to the write separately.
func NewBatchProcessor(coll storage.Collection, embedder ai.Embedder, maxAttempts int, retryDelay time.Duration, normalize bool) *BatchProcessor {
	return &BatchProcessor{
		coll:        coll,
		embedder:    embedder,
		maxAttempts: max(maxAttempts, 1),
		retryDelay:  retryDelay,
		normalize:   normalize,
	}
}

// Process returns the number of records that received a new embedding.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.Record) (int, error) {
	var (
		texts  []string
		target []*core.Record
	)
	for _, rec := range records {
		if rec.TextChunk == nil {
			continue
		}
		texts = append(texts, *rec.TextChunk)
		target = append(target, rec)
	}
	if len(target) == 0 {
		return 0, nil
	}

	var embeddings [][]float32
	err := transfer.RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxAttempts, bp.retryDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxAttempts, err)
	}
	if err := ai.CheckCount(texts, embeddings); err != nil {
		return 0, err
	}

	for i, rec := range target {
		if bp.normalize {
			rec.Embedding = NormalizeVector(embeddings[i])
		} else {
			rec.Embedding = embeddings[i]
		}
	}

	err = transfer.RetryWithBackoff(ctx, func() error {
		return bp.coll.Upsert(ctx, target)
	}, bp.maxAttempts, bp.retryDelay)
	if err != nil {
		return 0, fmt.Errorf("failed to update records: %w", err)
	}
	return len(target), nil
}
