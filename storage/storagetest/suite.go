// Package storagetest holds behavior tests shared by the storage.Client
// implementations.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewClientFunc returns a fresh, empty client. The suite closes it.
type NewClientFunc func(t *testing.T) storage.Client

// Records builds n records with ids id-0..id-n-1.
func Records(n int) []*core.Record {
	out := make([]*core.Record, n)
	for i := range out {
		out[i] = &core.Record{
			ID:        core.StringPtr(fmt.Sprintf("id-%d", i)),
			TextChunk: core.StringPtr(fmt.Sprintf("document %d", i)),
			Metadata:  core.Metadata{"n": int64(i), "even": i%2 == 0},
			Embedding: []float32{float32(i), 0.5},
		}
	}
	return out
}

// Run executes the shared client behavior tests.
func Run(t *testing.T, newClient NewClientFunc) {
	ctx := context.Background()

	open := func(t *testing.T) (storage.Client, storage.Collection) {
		client := newClient(t)
		t.Cleanup(func() { client.Close() })
		col, err := client.CreateCollection(ctx, "docs", map[string]any{"hnsw:space": "cosine"})
		require.NoError(t, err)
		return client, col
	}

	t.Run("collections", func(t *testing.T) {
		client, _ := open(t)

		_, err := client.CreateCollection(ctx, "docs", nil)
		assert.ErrorIs(t, err, storage.ErrCollectionExists)

		_, err = client.GetCollection(ctx, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		col, err := client.GetOrCreateCollection(ctx, "other", nil)
		require.NoError(t, err)
		assert.Equal(t, "other", col.Name())

		col, err = client.GetOrCreateCollection(ctx, "docs", nil)
		require.NoError(t, err)
		assert.Equal(t, "docs", col.Name())

		infos, err := client.ListCollections(ctx)
		require.NoError(t, err)
		require.Len(t, infos, 2)
		names := []string{infos[0].Name, infos[1].Name}
		assert.ElementsMatch(t, []string{"docs", "other"}, names)
		for _, info := range infos {
			if info.Name == "docs" {
				assert.Equal(t, "cosine", info.Metadata["hnsw:space"])
			}
		}
	})

	t.Run("add and get in insertion order", func(t *testing.T) {
		_, col := open(t)
		records := Records(25)
		require.NoError(t, col.Add(ctx, records[:10]))
		require.NoError(t, col.Add(ctx, records[10:]))

		count, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 25, count)

		page, err := col.Get(ctx, storage.GetRequest{Offset: 20, Limit: 10, Include: storage.AllIncludes()})
		require.NoError(t, err)
		require.Equal(t, 5, page.Len())
		assert.Equal(t, []string{"id-20", "id-21", "id-22", "id-23", "id-24"}, page.IDs)

		got := page.Records()[0]
		assert.Equal(t, records[20], got)
	})

	t.Run("include selects fields", func(t *testing.T) {
		_, col := open(t)
		require.NoError(t, col.Add(ctx, Records(1)))

		page, err := col.Get(ctx, storage.GetRequest{Include: []storage.Include{storage.IncludeMetadatas}})
		require.NoError(t, err)
		require.Equal(t, 1, page.Len())
		rec := page.Records()[0]
		assert.Nil(t, rec.TextChunk)
		assert.Nil(t, rec.Embedding)
		assert.Equal(t, core.Metadata{"n": int64(0), "even": true}, rec.Metadata)
	})

	t.Run("duplicate add fails", func(t *testing.T) {
		_, col := open(t)
		require.NoError(t, col.Add(ctx, Records(2)))
		err := col.Add(ctx, Records(1))
		assert.ErrorIs(t, err, storage.ErrDuplicateKey)

		count, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("missing id rejected", func(t *testing.T) {
		_, col := open(t)
		err := col.Add(ctx, []*core.Record{core.NewRecord("no id")})
		assert.ErrorIs(t, err, storage.ErrMissingID)
	})

	t.Run("upsert replaces in place", func(t *testing.T) {
		_, col := open(t)
		require.NoError(t, col.Add(ctx, Records(3)))

		updated := &core.Record{ID: core.StringPtr("id-0"), TextChunk: core.StringPtr("changed")}
		require.NoError(t, col.Upsert(ctx, []*core.Record{updated, {ID: core.StringPtr("new"), TextChunk: core.StringPtr("n")}}))

		page, err := col.Get(ctx, storage.GetRequest{Include: storage.AllIncludes()})
		require.NoError(t, err)
		assert.Equal(t, []string{"id-0", "id-1", "id-2", "new"}, page.IDs)
		assert.Equal(t, "changed", *page.Documents[0])
		assert.Nil(t, page.Metadatas[0])
	})

	t.Run("filters apply before offset", func(t *testing.T) {
		_, col := open(t)
		require.NoError(t, col.Add(ctx, Records(10)))

		where, err := storage.ParseWhere([]byte(`{"even": true}`))
		require.NoError(t, err)
		page, err := col.Get(ctx, storage.GetRequest{Where: where, Offset: 1, Limit: 2, Include: storage.AllIncludes()})
		require.NoError(t, err)
		assert.Equal(t, []string{"id-2", "id-4"}, page.IDs)

		doc, err := storage.ParseWhereDocument([]byte(`{"$contains": "document 7"}`))
		require.NoError(t, err)
		page, err = col.Get(ctx, storage.GetRequest{WhereDocument: doc})
		require.NoError(t, err)
		assert.Equal(t, []string{"id-7"}, page.IDs)
	})

	t.Run("concurrent writers", func(t *testing.T) {
		_, col := open(t)
		records := Records(40)
		var wg sync.WaitGroup
		errs := make(chan error, 4)
		for w := 0; w < 4; w++ {
			batch := records[w*10 : (w+1)*10]
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- col.Add(ctx, batch)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		count, err := col.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 40, count)
	})
}
