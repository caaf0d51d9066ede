package producer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthetic_Records(t *testing.T) {
	p, err := NewSynthetic(SyntheticConfig{Count: 50, Seed: 7})
	require.NoError(t, err)
	recs := produceAll(t, p)
	require.Len(t, recs, 50)

	ids := map[string]bool{}
	for _, rec := range recs {
		ids[rec.IDValue()] = true
		assert.NotEmpty(t, rec.Text())
		assert.Equal(t, []float32{0.1, 0.2}, rec.Embedding)

		iv, ok := rec.Metadata[IntValKey].(int64)
		require.True(t, ok)
		assert.True(t, iv >= 200 && iv <= 800, "int_val %d outside three sigma", iv)
		fv, ok := rec.Metadata[FloatValKey].(float64)
		require.True(t, ok)
		assert.True(t, fv >= 200 && fv <= 800, "float_val %f outside three sigma", fv)
		assert.GreaterOrEqual(t, len(rec.Metadata), 3)
		require.NoError(t, core.ValidateMetadata(rec.Metadata))
	}
	assert.Len(t, ids, 50)

	again, err := NewSynthetic(SyntheticConfig{Count: 50, Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, recs, produceAll(t, again), "same seed, same records")

	other, err := NewSynthetic(SyntheticConfig{Count: 50, Seed: 8})
	require.NoError(t, err)
	assert.NotEqual(t, recs[0].IDValue(), produceAll(t, other)[0].IDValue())
}

func TestSynthetic_DocsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.txt")
	require.NoError(t, os.WriteFile(path, []byte("first\n\nsecond\n"), 0o644))

	p, err := NewSynthetic(SyntheticConfig{Count: 3, DocsFile: path, Embedding: []float32{1}})
	require.NoError(t, err)
	recs := produceAll(t, p)
	assert.Equal(t, []string{"first", "second", "first"}, texts(recs))
	assert.Equal(t, []float32{1}, recs[0].Embedding)

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = NewSynthetic(SyntheticConfig{Count: 1, DocsFile: empty})
	assert.Error(t, err)

	_, err = NewSynthetic(SyntheticConfig{Count: 0})
	assert.Error(t, err)
}

func TestSynthetic_QueryCounts(t *testing.T) {
	p, err := NewSynthetic(SyntheticConfig{Count: 300, Seed: 42})
	require.NoError(t, err)
	recs := produceAll(t, p)

	queries := p.Queries(5)
	tags := map[string]int{}
	for _, q := range queries {
		tags[q.Tags[0]]++

		data, err := json.Marshal(q.Query)
		require.NoError(t, err)
		where, err := storage.ParseWhere(data)
		require.NoError(t, err, "query %s", q.ID)

		matched := 0
		for _, rec := range recs {
			if where.Match(rec.Metadata) {
				matched++
			}
		}
		assert.Equal(t, q.Count, matched, "query %s", q.ID)
	}
	assert.Equal(t, 12, tags["range"])
	assert.Equal(t, 10, tags["eq"])
	assert.Equal(t, 5, tags["meta"])
}
