package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/docpipe/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, gotAuth *string) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotAuth = r.Header.Get("Authorization")
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(text)), 1},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  req.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	var auth string
	srv := newTestServer(t, &auth)

	emb, err := NewEmbedder(ai.NewConfig(
		ai.WithProvider(ai.ProviderOpenAI),
		ai.WithHost(srv.URL),
		ai.WithModel("test-model"),
		ai.WithAPIKey("sk-test"),
	))
	require.NoError(t, err)

	vectors, err := emb.EmbedTexts(context.Background(), []string{"a", "abc"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 1}, vectors[0])
	assert.Equal(t, []float32{3, 1}, vectors[1])
	assert.Equal(t, "Bearer sk-test", auth)

	vec, err := emb.EmbedText(context.Background(), "abcd")
	require.NoError(t, err)
	assert.Equal(t, []float32{4, 1}, vec)
}

func TestEmbedder_Registered(t *testing.T) {
	var auth string
	srv := newTestServer(t, &auth)

	emb, err := ai.New(context.Background(), ai.NewConfig(
		ai.WithProvider("OpenAI"),
		ai.WithHost(srv.URL+"/"),
	))
	require.NoError(t, err)

	vectors, err := emb.EmbedTexts(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Contains(t, ai.Providers(), ai.ProviderOpenAI)
}
