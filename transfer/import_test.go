package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/docpipe/ai/hash"
	"github.com/poiesic/docpipe/ai/mock"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func importConfig() ImportConfig {
	return ImportConfig{
		Features:   core.DefaultFeatureMap(),
		BatchSize:  2,
		Limit:      -1,
		MaxThreads: 1,
	}
}

func lines(n int, withID bool) []string {
	out := make([]string, n)
	for i := range out {
		id := "null"
		if withID {
			id = fmt.Sprintf("%q", fmt.Sprintf("id-%d", i))
		}
		out[i] = fmt.Sprintf(`{"id": %s, "text_chunk": "doc %d", "metadata": {"n": %d}, "embedding": null}`, id, i, i)
	}
	return out
}

func TestImport_OffsetAndLimit(t *testing.T) {
	coll := &memCollection{}
	cfg := importConfig()
	cfg.Offset = 1
	cfg.Limit = 3

	n, err := Import(context.Background(), coll, &sliceReader{lines: lines(10, true)}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"id-1", "id-2", "id-3"}, coll.ids())
	assert.Equal(t, 2, coll.writes, "one full batch and the remainder")
}

func TestImport_OffsetLinesAreNotParsed(t *testing.T) {
	coll := &memCollection{}
	cfg := importConfig()
	cfg.Offset = 1
	input := append([]string{"not json"}, lines(2, true)...)

	n, err := Import(context.Background(), coll, &sliceReader{lines: input}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestImport_LimitZeroImportsNothing(t *testing.T) {
	coll := &memCollection{}
	cfg := importConfig()
	cfg.Limit = 0

	n, err := Import(context.Background(), coll, &sliceReader{lines: lines(3, true)}, cfg)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, coll.writes)
}

func TestImport_AssignsIDs(t *testing.T) {
	coll := &memCollection{}
	cfg := importConfig()
	next := 0
	cfg.NewID = func() string {
		next++
		return fmt.Sprintf("gen-%d", next)
	}

	_, err := Import(context.Background(), coll, &sliceReader{lines: lines(3, false)}, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"gen-1", "gen-2", "gen-3"}, coll.ids())
}

func TestImport_DefaultIDsAreUUIDs(t *testing.T) {
	coll := &memCollection{}
	_, err := Import(context.Background(), coll, &sliceReader{lines: lines(2, false)}, importConfig())
	require.NoError(t, err)
	for _, id := range coll.ids() {
		assert.Len(t, id, 36)
	}
}

func TestImport_Embeds(t *testing.T) {
	coll := &memCollection{}
	cfg := importConfig()
	embedder := mock.NewMockEmbedderWithDim(3)
	cfg.Embedder = embedder
	input := append(lines(2, true), `{"id": "given", "text_chunk": "x", "embedding": [1, 2, 3]}`)

	_, err := Import(context.Background(), coll, &sliceReader{lines: input}, cfg)
	require.NoError(t, err)
	require.Len(t, coll.records, 3)
	assert.Equal(t, hash.Vector("doc 0", 3), coll.records[0].Embedding)
	assert.Equal(t, []float32{1, 2, 3}, coll.records[2].Embedding)
	assert.Equal(t, 2, embedder.TextCount())
}

func TestImport_FirstErrorStops(t *testing.T) {
	boom := errors.New("boom")
	coll := &memCollection{writeErr: func(call int, _ []*core.Record) error {
		if call == 1 {
			return boom
		}
		return nil
	}}
	cfg := importConfig()
	cfg.BatchSize = 1

	_, err := Import(context.Background(), coll, &sliceReader{lines: lines(100, true)}, cfg)
	require.ErrorIs(t, err, boom)
	assert.Less(t, coll.writes, 100)
}

func TestImport_RemapError(t *testing.T) {
	cfg := importConfig()
	_, err := Import(context.Background(), &memCollection{}, &sliceReader{lines: []string{`{"document": "x"}`}}, cfg)
	var missing *core.MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "text_chunk", missing.Field)
}

func TestImport_RetryKeepsIDs(t *testing.T) {
	var seen [][]string
	coll := &memCollection{writeErr: func(call int, batch []*core.Record) error {
		ids := make([]string, len(batch))
		for i, rec := range batch {
			ids[i] = rec.IDValue()
		}
		seen = append(seen, ids)
		if call == 1 {
			return errors.New("transient")
		}
		return nil
	}}
	cfg := importConfig()
	cfg.MaxAttempts = 2
	cfg.RetryDelay = time.Millisecond

	n, err := Import(context.Background(), coll, &sliceReader{lines: lines(2, false)}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1])
}

func TestImport_InvalidConfig(t *testing.T) {
	cfg := importConfig()
	cfg.BatchSize = 0
	_, err := Import(context.Background(), &memCollection{}, &sliceReader{}, cfg)
	assert.ErrorIs(t, err, ErrInvalidBatchSize)

	cfg = importConfig()
	cfg.Features.DocFeature = ""
	_, err = Import(context.Background(), &memCollection{}, &sliceReader{}, cfg)
	assert.ErrorIs(t, err, core.ErrInvalidFeatureMap)
}

func TestImportThenExport(t *testing.T) {
	ctx := context.Background()
	client, err := badger.NewMemoryClient()
	require.NoError(t, err)
	defer client.Close()
	coll, err := client.GetOrCreateCollection(ctx, "docs", map[string]any{"hnsw:space": "l2"})
	require.NoError(t, err)

	input := make([]string, 25)
	for i := range input {
		input[i] = fmt.Sprintf(`{"id": "id-%d", "text_chunk": "doc %d", "metadata": {"n": %d, "f": 1.5}, "embedding": [%d, 0.5]}`, i, i, i, i)
	}
	cfg := importConfig()
	cfg.BatchSize = 10
	cfg.MaxThreads = 1
	n, err := Import(ctx, coll, &sliceReader{lines: input}, cfg)
	require.NoError(t, err)
	require.Equal(t, 25, n)

	var out []*core.Record
	_, err = Export(ctx, coll, ExportConfig{BatchSize: 10, Limit: -1, MaxThreads: 1}, func(rec *core.Record) error {
		out = append(out, rec)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, out, 25)

	for i, rec := range out {
		var raw map[string]any
		require.NoError(t, json.Unmarshal([]byte(input[i]), &raw))
		assert.Equal(t, raw["id"], rec.IDValue())
		assert.Equal(t, raw["text_chunk"], rec.Text())
		assert.Equal(t, core.Metadata{"n": int64(i), "f": 1.5}, rec.Metadata)
		assert.Equal(t, []float32{float32(i), 0.5}, rec.Embedding)
	}

	count, err := coll.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 25, count)
}
