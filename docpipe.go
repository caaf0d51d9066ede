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

// Package docpipe opens the vector store described by a connection.Config.
package docpipe

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/poiesic/docpipe/connection"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/poiesic/docpipe/storage/chroma"
	"github.com/poiesic/docpipe/storage/sqlite"
)

// DistanceKey is the collection metadata key holding the distance policy.
const DistanceKey = "hnsw:space"

// StoreOption configures OpenStore.
type StoreOption func(*storeOptions)

type storeOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// WithHTTPClient sets the HTTP client used for remote stores.
func WithHTTPClient(hc *http.Client) StoreOption {
	return func(o *storeOptions) {
		o.httpClient = hc
	}
}

// WithLogger sets the logger handed to the store.
func WithLogger(logger *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// OpenStore returns the client for cfg: the badger or sqlite engine for
// file:// locations and the Chroma client otherwise.
func OpenStore(ctx context.Context, cfg *connection.Config, opts ...StoreOption) (storage.Client, error) {
	options := &storeOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger.With("component", "store", "location", cfg.Location())

	if !cfg.IsLocal {
		var chromaOpts []chroma.Option
		if options.httpClient != nil {
			chromaOpts = append(chromaOpts, chroma.WithHTTPClient(options.httpClient))
		}
		chromaOpts = append(chromaOpts, chroma.WithLogger(logger))
		logger.Debug("opening remote store", "auth", cfg.Auth)
		return chroma.NewClient(cfg, chromaOpts...)
	}

	logger.Debug("opening local store", "engine", cfg.Engine)
	switch cfg.Engine {
	case connection.EngineSQLite:
		return sqlite.Open(ctx, cfg.Path)
	case connection.EngineBadger, "":
		return badger.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("%w: %s", connection.ErrUnknownEngine, cfg.Engine)
	}
}

// OpenCollection opens the collection named in cfg. With CreateCollection
// set a missing collection is created with the configured distance policy;
// otherwise a missing collection is an error.
func OpenCollection(ctx context.Context, client storage.Client, cfg *connection.Config) (storage.Collection, error) {
	if cfg.CreateCollection {
		distance := cfg.Distance
		if distance == "" {
			distance = connection.DistanceL2
		}
		return client.GetOrCreateCollection(ctx, cfg.Collection, map[string]any{DistanceKey: string(distance)})
	}
	col, err := client.GetCollection(ctx, cfg.Collection)
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", cfg.Collection, err)
	}
	return col, nil
}
