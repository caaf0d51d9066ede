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

// Package chroma is a storage.Client for a Chroma server reached over its
// v2 REST API.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/poiesic/docpipe/connection"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

const (
	DefaultTenant   = "default_tenant"
	DefaultDatabase = "default_database"
	defaultTimeout  = 60 * time.Second
)

// Client talks to one tenant/database of a Chroma server.
type Client struct {
	baseURL  string
	tenant   string
	database string
	auth     connection.Auth
	http     *http.Client
	logger   *slog.Logger
}

var _ storage.Client = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient builds a client for the remote location in cfg.
func NewClient(cfg *connection.Config, opts ...Option) (*Client, error) {
	if cfg.IsLocal {
		return nil, fmt.Errorf("chroma client needs a remote location, got %s", cfg.Location())
	}
	c := &Client{
		baseURL:  cfg.BaseURL(),
		tenant:   firstNonEmpty(cfg.Tenant, DefaultTenant),
		database: firstNonEmpty(cfg.Database, DefaultDatabase),
		auth:     cfg.Auth,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default().With("component", "chroma", "url", c.baseURL)
	}
	return c, nil
}

type collectionModel struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

// ListCollections returns all collections of the database.
func (c *Client) ListCollections(ctx context.Context) ([]storage.CollectionInfo, error) {
	var models []collectionModel
	if err := c.do(ctx, http.MethodGet, c.collectionsPath(), nil, &models); err != nil {
		return nil, err
	}
	infos := make([]storage.CollectionInfo, 0, len(models))
	for _, m := range models {
		infos = append(infos, storage.CollectionInfo{Name: m.Name, Metadata: core.NormalizeMetadata(m.Metadata)})
	}
	return infos, nil
}

// CreateCollection creates a collection.
func (c *Client) CreateCollection(ctx context.Context, name string, metadata map[string]any) (storage.Collection, error) {
	return c.create(ctx, name, metadata, false)
}

// GetCollection opens an existing collection.
func (c *Client) GetCollection(ctx context.Context, name string) (storage.Collection, error) {
	var model collectionModel
	err := c.do(ctx, http.MethodGet, c.collectionsPath()+"/"+url.PathEscape(name), nil, &model)
	if err != nil {
		return nil, err
	}
	return c.collection(model), nil
}

// GetOrCreateCollection opens a collection, creating it when missing.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (storage.Collection, error) {
	return c.create(ctx, name, metadata, true)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) create(ctx context.Context, name string, metadata map[string]any, getOrCreate bool) (storage.Collection, error) {
	body := map[string]any{
		"name":          name,
		"get_or_create": getOrCreate,
	}
	if len(metadata) > 0 {
		body["metadata"] = metadata
	}
	var model collectionModel
	if err := c.do(ctx, http.MethodPost, c.collectionsPath(), body, &model); err != nil {
		return nil, err
	}
	return c.collection(model), nil
}

func (c *Client) collection(m collectionModel) *Collection {
	return &Collection{
		client: c,
		id:     m.ID,
		name:   m.Name,
		logger: c.logger.With("collection", m.Name),
	}
}

func (c *Client) collectionsPath() string {
	return fmt.Sprintf("/api/v2/tenants/%s/databases/%s/collections",
		url.PathEscape(c.tenant), url.PathEscape(c.database))
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.auth.Apply(req)

	c.logger.Debug("chroma request", "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
