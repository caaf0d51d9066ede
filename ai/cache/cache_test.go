package cache

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/docpipe/ai/hash"
	"github.com/poiesic/docpipe/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap_Disabled(t *testing.T) {
	m := mock.NewMockEmbedder()
	assert.Same(t, m, Wrap(m, 0, time.Minute))
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	ctx := context.Background()
	m := mock.NewMockEmbedderWithDim(4)
	e := Wrap(m, 10, time.Minute)

	first, err := e.EmbedTexts(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.TextCount())

	second, err := e.EmbedTexts(ctx, []string{"b", "c", "a"})
	require.NoError(t, err)
	assert.Equal(t, 3, m.TextCount(), "only c is embedded")
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])
	assert.Equal(t, hash.Vector("c", 4), second[1])

	vec, err := e.EmbedText(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, second[1], vec)
	assert.Equal(t, 3, m.TextCount())
}

func TestEmbedder_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	e := Wrap(mock.NewMockEmbedderWithDim(4), 10, time.Minute)

	vec, err := e.EmbedText(ctx, "a")
	require.NoError(t, err)
	vec[0] = 42

	again, err := e.EmbedText(ctx, "a")
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), again[0])
}
