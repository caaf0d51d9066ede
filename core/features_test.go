package core

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRaw(t *testing.T, line string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(line)))
	dec.UseNumber()
	var raw map[string]any
	require.NoError(t, dec.Decode(&raw))
	return raw
}

func TestRemap_MetadataBranches(t *testing.T) {
	t.Run("nested metadata used verbatim", func(t *testing.T) {
		raw := decodeRaw(t, `{"text_chunk":"a","metadata":{"x":1,"y":"z"}}`)
		rec, err := Remap(raw, DefaultFeatureMap())
		require.NoError(t, err)
		assert.Equal(t, Metadata{"x": int64(1), "y": "z"}, rec.Metadata)
	})

	t.Run("nested metadata projected", func(t *testing.T) {
		raw := decodeRaw(t, `{"text_chunk":"a","metadata":{"x":1,"y":"z"},"y":"top"}`)
		fm := DefaultFeatureMap()
		fm.MetaFeatures = []string{"y"}
		rec, err := Remap(raw, fm)
		require.NoError(t, err)
		assert.Equal(t, Metadata{"y": "z"}, rec.Metadata)
	})

	t.Run("nested metadata missing requested key", func(t *testing.T) {
		raw := decodeRaw(t, `{"text_chunk":"a","metadata":{"x":1},"y":"top"}`)
		fm := DefaultFeatureMap()
		fm.MetaFeatures = []string{"y"}
		_, err := Remap(raw, fm)
		var missing *MissingFieldError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "y", missing.Field)
		assert.ErrorIs(t, err, ErrMissingField)
	})

	t.Run("top level projection", func(t *testing.T) {
		raw := decodeRaw(t, `{"text_chunk":"a","a":"x","b":2.5,"c":true}`)
		fm := DefaultFeatureMap()
		fm.MetaFeatures = []string{"a", "b", "c"}
		rec, err := Remap(raw, fm)
		require.NoError(t, err)
		assert.Equal(t, Metadata{"a": "x", "b": 2.5, "c": true}, rec.Metadata)
	})

	t.Run("no metadata at all", func(t *testing.T) {
		raw := decodeRaw(t, `{"text_chunk":"a","a":"x"}`)
		rec, err := Remap(raw, DefaultFeatureMap())
		require.NoError(t, err)
		assert.Nil(t, rec.Metadata)
	})
}

func TestRemap_Fields(t *testing.T) {
	raw := decodeRaw(t, `{"id":"t","text_chunk":"hello world","a":"x","embedding":[1,2,3]}`)
	fm := DefaultFeatureMap()
	fm.MetaFeatures = []string{"a"}

	rec, err := Remap(raw, fm)
	require.NoError(t, err)
	assert.Equal(t, "t", rec.IDValue())
	assert.Equal(t, "hello world", rec.Text())
	assert.Equal(t, []float32{1, 2, 3}, rec.Embedding)
	assert.Equal(t, Metadata{"a": "x"}, rec.Metadata)
}

func TestRemap_MissingDocument(t *testing.T) {
	raw := decodeRaw(t, `{"body":"hello"}`)
	_, err := Remap(raw, DefaultFeatureMap())
	var missing *MissingFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "text_chunk", missing.Field)
}

func TestRemap_CustomFeatures(t *testing.T) {
	raw := decodeRaw(t, `{"key":7,"body":"hello","vec":[0.5]}`)
	rec, err := Remap(raw, FeatureMap{DocFeature: "body", EmbedFeature: "vec", IDFeature: "key"})
	require.NoError(t, err)
	assert.Equal(t, "7", rec.IDValue())
	assert.Equal(t, "hello", rec.Text())
	assert.Equal(t, []float32{0.5}, rec.Embedding)
}

func TestRemap_OptionalFieldsAbsent(t *testing.T) {
	raw := decodeRaw(t, `{"text_chunk":"hello"}`)
	rec, err := Remap(raw, DefaultFeatureMap())
	require.NoError(t, err)
	assert.Nil(t, rec.ID)
	assert.Nil(t, rec.Embedding)
}

func TestRemap_InvalidEmbedding(t *testing.T) {
	raw := decodeRaw(t, `{"text_chunk":"hello","embedding":"nope"}`)
	_, err := Remap(raw, DefaultFeatureMap())
	assert.ErrorIs(t, err, ErrInvalidFieldType)
}

func TestToFlat_SkipsMissingMetaFeatures(t *testing.T) {
	rec := &Record{
		ID:        StringPtr("1"),
		TextChunk: StringPtr("doc"),
		Metadata:  Metadata{"a": "x"},
	}
	fm := DefaultFeatureMap()
	fm.MetaFeatures = []string{"a", "missing"}

	flat := ToFlat(rec, fm)
	assert.Equal(t, Flat{
		"text_chunk": "doc",
		"embedding":  nil,
		"id":         "1",
		"a":          "x",
	}, flat)
}

func TestRoundTrip_ToFlatRemap(t *testing.T) {
	records := []*Record{
		{ID: StringPtr("r1"), TextChunk: StringPtr("one"), Embedding: []float32{0.25, -1}, Metadata: Metadata{"k": "v", "n": int64(3)}},
		{ID: StringPtr("r2"), TextChunk: StringPtr("two")},
		{TextChunk: StringPtr("")},
	}
	fm := FeatureMap{DocFeature: "document", EmbedFeature: "vector", IDFeature: "uid"}

	for _, rec := range records {
		flat := ToFlat(rec, fm)
		data, err := json.Marshal(flat)
		require.NoError(t, err)

		back, err := Remap(decodeRaw(t, string(data)), FeatureMap{
			DocFeature:   fm.DocFeature,
			EmbedFeature: fm.EmbedFeature,
			IDFeature:    fm.IDFeature,
			MetaFeatures: metaKeys(rec.Metadata),
		})
		require.NoError(t, err)
		assert.Equal(t, rec.TextChunk, back.TextChunk)
		assert.Equal(t, rec.ID, back.ID)
		assert.Equal(t, rec.Embedding, back.Embedding)
		if rec.Metadata != nil {
			assert.Equal(t, rec.Metadata, back.Metadata)
		}
	}
}

func metaKeys(m Metadata) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func TestToFlat_KeepsIntegralFloats(t *testing.T) {
	rec := &Record{
		TextChunk: StringPtr("doc"),
		Metadata:  Metadata{"f": 2.0, "n": int64(2), "g": 2.5},
	}
	data, err := json.Marshal(ToFlat(rec, DefaultFeatureMap()))
	require.NoError(t, err)
	assert.JSONEq(t, `{"text_chunk":"doc","embedding":null,"id":null,"f":2.0,"g":2.5,"n":2}`, string(data))
	assert.Contains(t, string(data), `"f":2.0`)

	back, err := Remap(decodeRaw(t, string(data)), FeatureMap{DocFeature: "text_chunk", MetaFeatures: []string{"f", "n", "g"}})
	require.NoError(t, err)
	assert.Equal(t, Metadata{"f": 2.0, "n": int64(2), "g": 2.5}, back.Metadata)
}
