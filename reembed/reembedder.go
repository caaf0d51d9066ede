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
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/transfer"
)

// DefaultBatchSize is the number of records fetched and embedded at once.
const DefaultBatchSize = 100

// Config holds configuration for a reembedding run.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int

	// MaxRetries is the number of attempts per embedding call and per write
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Normalize scales vectors to unit length before they are stored
	Normalize bool

	// Where limits the run to matching records
	Where *storage.Where
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:  DefaultBatchSize,
		MaxRetries: 3,
		RetryDelay: 1 * time.Second,
	}
}

// Result summarizes a run.
type Result struct {
	Seen     int
	Embedded int
	Elapsed  time.Duration
}

// Reembedder re-embeds the records of one collection.
type Reembedder struct {
	coll      storage.Collection
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *PageIterator
	logger    *slog.Logger
}

// NewReembedder creates a reembedder. progress receives a status line when
// not nil.
func NewReembedder(coll storage.Collection, embedder ai.Embedder, config *Config, progress io.Writer) (*Reembedder, error) {
	if embedder == nil {
		return nil, ErrNoEmbedder
	}
	if config == nil {
		config = DefaultConfig()
	}
	iterator, err := NewPageIterator(coll, config.BatchSize, config.Where)
	if err != nil {
		return nil, err
	}
	return &Reembedder{
		coll:      coll,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(coll, embedder, config.MaxRetries, config.RetryDelay, config.Normalize),
		iterator:  iterator,
		logger:    slog.Default().With("component", "reembedder", "collection", coll.Name()),
	}, nil
}

// Run processes every page of the collection. Pages written before a
// failure keep their new embeddings.
func (r *Reembedder) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	total, err := r.coll.Count(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to count records: %w", err)
	}
	if r.config.Where != nil {
		total = 0
	}
	r.logger.Info("starting reembedding", "records", total, "batch_size", r.config.BatchSize)

	tracker := transfer.NewProgress(r.progress, total)
	var res Result
	err = r.iterator.ForEach(ctx, func(records []*core.Record) error {
		n, err := r.processor.Process(ctx, records)
		if err != nil {
			return fmt.Errorf("failed to process batch at record %d: %w", res.Seen, err)
		}
		res.Seen += len(records)
		res.Embedded += n
		tracker.Add(len(records))
		return nil
	})
	tracker.Finish()
	res.Elapsed = time.Since(start)
	if err != nil {
		return res, err
	}

	r.logger.Info("reembedding complete",
		"seen", res.Seen, "embedded", res.Embedded, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}
