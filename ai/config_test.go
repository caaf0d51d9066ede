package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, ProviderDefault, cfg.Provider)
	assert.Equal(t, 384, cfg.Dimensions)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "hash", cfg.Model)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, ProviderDefault, cfg.Provider)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithProvider(ProviderOpenAI),
			WithHost("http://custom:8080"),
			WithModel("custom-embed"),
			WithAPIKey("key"),
		)

		assert.Equal(t, ProviderOpenAI, cfg.Provider)
		assert.Equal(t, "http://custom:8080", cfg.Host)
		assert.Equal(t, "custom-embed", cfg.Model)
		assert.Equal(t, "key", cfg.APIKey)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantHost  string
		wantModel string
	}{
		{"openai defaults", Config{Provider: "openai"}, "https://api.openai.com/v1", "text-embedding-3-small"},
		{"host without v1", Config{Provider: "openai", Host: "http://localhost:11434"}, "http://localhost:11434/v1", "text-embedding-3-small"},
		{"host with trailing slash", Config{Provider: "openai", Host: "http://localhost:11434/"}, "http://localhost:11434/v1", "text-embedding-3-small"},
		{"host with v1", Config{Provider: "openai", Host: "http://localhost:11434/v1", Model: "m"}, "http://localhost:11434/v1", "m"},
		{"gemini default model", Config{Provider: " Gemini "}, "", "text-embedding-004"},
		{"empty provider", Config{}, "", "hash"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.Normalize()
			assert.Equal(t, tt.wantHost, tt.cfg.Host)
			assert.Equal(t, tt.wantModel, tt.cfg.Model)
		})
	}
}

func TestConfigNormalize_Env(t *testing.T) {
	env := map[string]string{
		EnvOpenAIKey:     "sk-env",
		EnvOpenAIBaseURL: "http://proxy:9000",
		EnvGeminiKey:     "g-env",
		EnvModel:         "env-model",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	t.Run("openai", func(t *testing.T) {
		cfg := NewConfig(WithEnv(lookup), WithProvider(ProviderOpenAI))
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "sk-env", cfg.APIKey)
		assert.Equal(t, "http://proxy:9000/v1", cfg.Host)
		assert.Equal(t, "env-model", cfg.Model)
	})

	t.Run("explicit wins", func(t *testing.T) {
		cfg := NewConfig(WithEnv(lookup), WithProvider(ProviderOpenAI), WithAPIKey("sk-flag"), WithModel("flag-model"))
		cfg.Normalize()
		assert.Equal(t, "sk-flag", cfg.APIKey)
		assert.Equal(t, "flag-model", cfg.Model)
	})

	t.Run("gemini", func(t *testing.T) {
		cfg := NewConfig(WithEnv(lookup), WithProvider(ProviderGemini))
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "g-env", cfg.APIKey)
		assert.Empty(t, cfg.Host)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("default needs dimensions", func(t *testing.T) {
		err := NewConfig(WithDimensions(0)).Validate()
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("gemini needs key", func(t *testing.T) {
		err := NewConfig(WithProvider(ProviderGemini)).Validate()
		assert.ErrorIs(t, err, ErrInvalidConfig)
		assert.Contains(t, err.Error(), EnvGeminiKey)
	})

	t.Run("openai without key is valid", func(t *testing.T) {
		assert.NoError(t, NewConfig(WithProvider(ProviderOpenAI)).Validate())
	})
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), NewConfig(WithProvider("nope")))
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestCheckCount(t *testing.T) {
	assert.NoError(t, CheckCount([]string{"a"}, [][]float32{{1}}))
	assert.ErrorIs(t, CheckCount([]string{"a", "b"}, [][]float32{{1}}), ErrEmbeddingCount)
}
