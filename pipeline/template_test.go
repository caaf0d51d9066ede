package pipeline

import (
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplate_Functions(t *testing.T) {
	fixed := time.Date(2024, 3, 5, 14, 7, 9, 500000000, time.UTC)
	clock := WithClock(func() time.Time { return fixed })

	tests := []struct {
		expr string
		want string
	}{
		{`{{ date }}`, "1709647629.5"},
		{`{{ date "epoch" }}`, "1709647629.5"},
		{`{{ date "%Y-%m-%d %H:%M:%S" }}`, "2024-03-05 14:07:09"},
		{`{{ date "2006/01/02" }}`, "2024/03/05"},
		{`{{ now }}`, "2024-03-05 14:07:09.500000"},
		{`{{ .text_chunk }}:{{ .metadata.n }}`, "doc:3"},
	}
	rec := &core.Record{TextChunk: core.StringPtr("doc"), Metadata: core.Metadata{"n": int64(3)}}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			tmpl, err := ParseTemplate(tt.expr, clock)
			require.NoError(t, err)
			got, err := tmpl.Render(rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTemplate_UUIDAndULID(t *testing.T) {
	tmpl, err := ParseTemplate(`{{ uuid }} {{ ulid }}`)
	require.NoError(t, err)

	got, err := tmpl.Render(core.NewRecord("x"))
	require.NoError(t, err)
	assert.Len(t, got, 36+1+26)
}

func TestTemplate_ParseError(t *testing.T) {
	_, err := ParseTemplate(`{{ nosuchfunc }}`)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestTemplate_MissingValuesRenderEmpty(t *testing.T) {
	tests := []struct {
		name string
		expr string
		rec  *core.Record
		want string
	}{
		{"missing metadata key", `[{{ .metadata.source }}]`, core.NewRecord("hello"), "[]"},
		{"nested missing key", `[{{ .metadata.a.b }}]`, core.NewRecord("hello"), "[]"},
		{"nil id", `{{ .id }}-x`, core.NewRecord("hello"), "-x"},
		{"inside if", `{{ if .text_chunk }}{{ .metadata.x }}!{{ end }}`, core.NewRecord("hello"), "!"},
		{"present key", `{{ .metadata.n }}`, &core.Record{Metadata: core.Metadata{"n": int64(7)}}, "7"},
		{"piped function", `{{ .text_chunk | printf "%s!" }}`, core.NewRecord("hi"), "hi!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl, err := ParseTemplate(tt.expr)
			require.NoError(t, err)
			got, err := tmpl.Render(tt.rec)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
