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

package ai

import (
	"fmt"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderDefault = "default"
	ProviderOpenAI  = "openai"
	ProviderGemini  = "gemini"
)

// Environment variables consulted by WithEnv.
const (
	EnvOpenAIKey     = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
	EnvGeminiKey     = "GEMINI_API_KEY"
	EnvModel         = "EMBEDDING_MODEL"
)

// Config holds configuration for an embedding provider.
type Config struct {
	// Provider selects the embedding function: "default", "openai" or "gemini".
	Provider string

	// Host is the base URL of an OpenAI-compatible API.
	// Example: "http://localhost:11434/v1" for a local Ollama server
	Host string

	// Model is the embedding model identifier. Empty selects the
	// provider's default model.
	Model string

	// APIKey authenticates against the provider.
	APIKey string

	// Dimensions is the vector size produced by the default provider.
	Dimensions int

	lookupEnv func(string) (string, bool)
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithProvider selects the embedding provider.
func WithProvider(name string) ConfigOption {
	return func(c *Config) {
		c.Provider = name
	}
}

// WithHost sets the OpenAI-compatible service URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the embedding model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimensions sets the vector size of the default provider.
func WithDimensions(n int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = n
	}
}

// WithEnv fills the API key, host and model from environment variables
// when they are not set explicitly. Resolution happens in Normalize, so the
// option may appear before WithProvider.
func WithEnv(lookup func(string) (string, bool)) ConfigOption {
	return func(c *Config) {
		c.lookupEnv = lookup
	}
}

// DefaultConfig returns a Config for the built-in hash embedder.
func DefaultConfig() *Config {
	return &Config{
		Provider:   ProviderDefault,
		Dimensions: 384,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithProvider(ProviderOpenAI),
//	    WithHost("http://localhost:11434"),
//	    WithModel("nomic-embed-text"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize puts the configuration in canonical form: environment values
// are applied, provider defaults are filled in and OpenAI-compatible hosts
// get their /v1 suffix.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = ProviderDefault
	}
	c.applyEnv()

	switch c.Provider {
	case ProviderOpenAI:
		if c.Host == "" {
			c.Host = "https://api.openai.com/v1"
		}
		if c.Model == "" {
			c.Model = "text-embedding-3-small"
		}
	case ProviderGemini:
		if c.Model == "" {
			c.Model = "text-embedding-004"
		}
	case ProviderDefault:
		if c.Model == "" {
			c.Model = "hash"
		}
	}

	if c.Provider == ProviderOpenAI && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
}

func (c *Config) applyEnv() {
	if c.lookupEnv == nil {
		return
	}
	get := func(key string) string {
		v, _ := c.lookupEnv(key)
		return strings.TrimSpace(v)
	}
	if c.APIKey == "" {
		switch c.Provider {
		case ProviderOpenAI:
			c.APIKey = get(EnvOpenAIKey)
		case ProviderGemini:
			c.APIKey = get(EnvGeminiKey)
		}
	}
	if c.Host == "" && c.Provider == ProviderOpenAI {
		c.Host = get(EnvOpenAIBaseURL)
	}
	if c.Model == "" {
		c.Model = get(EnvModel)
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first.
func (c *Config) Validate() error {
	c.Normalize()

	switch c.Provider {
	case ProviderDefault:
		if c.Dimensions <= 0 {
			return fmt.Errorf("%w: Dimensions must be positive", ErrInvalidConfig)
		}
	case ProviderOpenAI:
		if c.Host == "" {
			return fmt.Errorf("%w: Host is required", ErrInvalidConfig)
		}
	case ProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("%w: %s is required for gemini", ErrInvalidConfig, EnvGeminiKey)
		}
	}
	if c.Model == "" {
		return fmt.Errorf("%w: Model is required", ErrInvalidConfig)
	}
	return nil
}
