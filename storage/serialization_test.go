package storage

import (
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRecord(t *testing.T) {
	tests := []struct {
		name   string
		record *core.Record
	}{
		{"empty record", &core.Record{}},
		{
			name: "full record",
			record: &core.Record{
				ID:        core.StringPtr("doc-1"),
				TextChunk: core.StringPtr("hello world"),
				Metadata:  core.Metadata{"s": "x", "i": int64(-4), "f": 3.0, "b": true},
				Embedding: []float32{0.1, -2, 3.5},
			},
		},
		{
			name:   "empty but present fields",
			record: &core.Record{ID: core.StringPtr(""), TextChunk: core.StringPtr(""), Metadata: core.Metadata{}, Embedding: []float32{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := MarshalRecord(tt.record)
			require.NotEmpty(t, data)

			decoded, err := UnmarshalRecord(data)
			require.NoError(t, err)
			assert.Equal(t, tt.record, decoded)
		})
	}
}

func TestUnmarshalRecord_Invalid(t *testing.T) {
	data := MarshalRecord(&core.Record{TextChunk: core.StringPtr("some text")})

	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"truncated", data[:len(data)-4]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalRecord(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalMetadata_KeepsNumericKinds(t *testing.T) {
	meta := core.Metadata{"int": int64(3), "float": 3.0}
	decoded, err := UnmarshalMetadata(MarshalMetadata(meta))
	require.NoError(t, err)
	assert.IsType(t, int64(0), decoded["int"])
	assert.IsType(t, float64(0), decoded["float"])
}
