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

package badger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docpipe/storage"
)

// Client implements storage.Client on top of a Backend.
type Client struct {
	backend     *Backend
	ownsBackend bool

	mu          sync.Mutex
	collections map[string]*Collection
}

var _ storage.Client = (*Client)(nil)

// NewClient creates a Client over an open backend. The caller keeps ownership
// of the backend.
func NewClient(backend *Backend) *Client {
	return &Client{
		backend:     backend,
		collections: make(map[string]*Collection),
	}
}

// Open opens (or creates) a persistent store rooted at path.
func Open(path string) (*Client, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, fmt.Errorf("open badger store %s: %w", path, err)
	}
	c := NewClient(backend)
	c.ownsBackend = true
	return c, nil
}

// ListCollections returns all collections in name order.
func (c *Client) ListCollections(ctx context.Context) ([]storage.CollectionInfo, error) {
	if c.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	var infos []storage.CollectionInfo
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(collectionPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()
			name := strings.TrimPrefix(string(item.Key()), collectionPrefix)
			meta, err := readCollectionMetadata(item)
			if err != nil {
				return err
			}
			infos = append(infos, storage.CollectionInfo{Name: name, Metadata: meta})
		}
		return nil
	}, false)
	return infos, err
}

// CreateCollection creates a collection.
func (c *Client) CreateCollection(ctx context.Context, name string, metadata map[string]any) (storage.Collection, error) {
	return c.createOrGet(name, metadata, false)
}

// GetCollection opens an existing collection.
func (c *Client) GetCollection(ctx context.Context, name string) (storage.Collection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	exists, err := c.collectionExists(name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, name)
	}
	return c.openLocked(name)
}

// GetOrCreateCollection opens a collection, creating it when missing.
func (c *Client) GetOrCreateCollection(ctx context.Context, name string, metadata map[string]any) (storage.Collection, error) {
	return c.createOrGet(name, metadata, true)
}

// Close releases collection sequences and, when owned, the backend.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for name, col := range c.collections {
		if err := col.seq.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release sequence %s: %w", name, err))
		}
	}
	c.collections = make(map[string]*Collection)
	if c.ownsBackend {
		errs = append(errs, c.backend.Close())
	}
	return errors.Join(errs...)
}

func (c *Client) createOrGet(name string, metadata map[string]any, allowExisting bool) (storage.Collection, error) {
	if err := validateCollectionName(name); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrInvalidQuery, err)
	}
	if c.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeCollectionKey(name))
		switch {
		case err == nil && allowExisting:
			return nil
		case err == nil:
			return fmt.Errorf("%w: %s", storage.ErrCollectionExists, name)
		case !errors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := tx.Set(makeCollectionKey(name), storage.MarshalMetadata(metadataFromMap(metadata))); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	if col, ok := c.collections[name]; ok {
		return col, nil
	}
	c.backend.logger.Debug("collection opened", "collection", name)
	return c.openLocked(name)
}

func (c *Client) collectionExists(name string) (bool, error) {
	var exists bool
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		_, err := tx.Get(makeCollectionKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	}, false)
	return exists, err
}

// openLocked builds the collection handle. Callers hold c.mu.
func (c *Client) openLocked(name string) (*Collection, error) {
	seq, err := c.backend.GetSequence(makeSequenceKey(name))
	if err != nil {
		return nil, fmt.Errorf("open sequence for %s: %w", name, err)
	}
	col := &Collection{
		backend: c.backend,
		name:    name,
		seq:     seq,
		logger:  c.backend.logger.With("collection", name),
	}
	c.collections[name] = col
	return col, nil
}

func readCollectionMetadata(item *badger.Item) (map[string]any, error) {
	var meta map[string]any
	err := item.Value(func(val []byte) error {
		m, err := storage.UnmarshalMetadata(val)
		if err != nil {
			return err
		}
		meta = m
		return nil
	})
	return meta, err
}
