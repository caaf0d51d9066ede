package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/poiesic/docpipe/ai"
	"github.com/poiesic/docpipe/ai/cache"
	"github.com/poiesic/docpipe/connection"
	"github.com/poiesic/docpipe/core"
	"github.com/urfave/cli/v2"

	// Embedding providers register themselves with ai.New.
	_ "github.com/poiesic/docpipe/ai/gemini"
	_ "github.com/poiesic/docpipe/ai/hash"
	_ "github.com/poiesic/docpipe/ai/openai"
)

func streamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "in",
			Aliases: []string{"i"},
			Usage:   "Input JSONL file (default stdin)",
		},
		&cli.StringFlag{
			Name:    "out",
			Aliases: []string{"o"},
			Usage:   "Output JSONL file (default stdout)",
		},
		&cli.BoolFlag{
			Name:  "append",
			Usage: "Append to the output file instead of truncating it",
		},
	}
}

func outputFlags() []cli.Flag {
	return streamFlags()[1:]
}

func windowFlags(limitUsage string) []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: limitUsage,
			Value: -1,
		},
		&cli.IntFlag{
			Name:  "offset",
			Usage: "Number of documents to skip",
		},
	}
}

func featureFlags(fallback core.FeatureMap) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "doc-feature",
			Usage: "Key holding the document text",
			Value: fallback.DocFeature,
		},
		&cli.StringFlag{
			Name:  "embed-feature",
			Usage: "Key holding the embedding",
			Value: fallback.EmbedFeature,
		},
		&cli.StringFlag{
			Name:  "id-feature",
			Usage: "Key holding the record id",
			Value: fallback.IDFeature,
		},
		&cli.StringSliceFlag{
			Name:  "meta-features",
			Usage: "Keys copied into metadata (repeatable)",
		},
	}
}

func featureMap(c *cli.Context) core.FeatureMap {
	return core.FeatureMap{
		DocFeature:   c.String("doc-feature"),
		EmbedFeature: c.String("embed-feature"),
		IDFeature:    c.String("id-feature"),
		MetaFeatures: c.StringSlice("meta-features"),
	}
}

func authFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "auth-token",
			Usage: "Token sent to the vector store",
		},
		&cli.StringFlag{
			Name:  "auth-header",
			Usage: "Header carrying the token (Authorization or X-Chroma-Token)",
			Value: connection.HeaderAuthorization,
		},
		&cli.StringFlag{
			Name:  "basic-auth",
			Usage: "Basic credentials as user:password",
		},
	}
}

// authFromFlags returns the explicit credentials, or no auth so that the
// URI and environment decide.
func authFromFlags(c *cli.Context) (connection.Auth, error) {
	token, basic := c.String("auth-token"), c.String("basic-auth")
	switch {
	case token != "" && basic != "":
		return connection.Auth{}, fmt.Errorf("--auth-token and --basic-auth are mutually exclusive")
	case token != "":
		header := c.String("auth-header")
		if header != connection.HeaderAuthorization && header != connection.HeaderChromaToken {
			return connection.Auth{}, fmt.Errorf("invalid auth header %q", header)
		}
		return connection.TokenAuth(token, header), nil
	case basic != "":
		user, pass, ok := strings.Cut(basic, ":")
		if !ok {
			return connection.Auth{}, fmt.Errorf("--basic-auth must be user:password")
		}
		return connection.BasicAuth(user, pass), nil
	}
	return connection.NoAuth(), nil
}

func embedderFlags(required bool) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "ef",
			Usage:    "Embedding function (default, openai, gemini)",
			Required: required,
		},
		&cli.StringFlag{
			Name:  "model",
			Usage: "Embedding model (provider default when empty)",
		},
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "OpenAI-compatible service URL",
		},
		&cli.StringFlag{
			Name:    "api-key",
			Usage:   "Embedding provider API key",
			EnvVars: []string{"DOCPIPE_API_KEY"},
		},
		&cli.IntFlag{
			Name:  "dimensions",
			Usage: "Vector size of the default embedding function",
			Value: 384,
		},
		&cli.IntFlag{
			Name:  "cache-size",
			Usage: "Number of embeddings cached by text (0 disables the cache)",
		},
		&cli.DurationFlag{
			Name:  "cache-ttl",
			Usage: "Lifetime of cached embeddings",
			Value: time.Hour,
		},
	}
}

// newEmbedder builds the embedder named by --ef, or returns nil when the
// flag is empty.
func newEmbedder(c *cli.Context) (ai.Embedder, error) {
	name := c.String("ef")
	if name == "" {
		return nil, nil
	}
	cfg := ai.NewConfig(
		ai.WithProvider(name),
		ai.WithModel(c.String("model")),
		ai.WithHost(c.String("embedding-host")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithDimensions(c.Int("dimensions")),
		ai.WithEnv(os.LookupEnv),
	)
	embedder, err := ai.New(c.Context, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return cache.Wrap(embedder, c.Int("cache-size"), c.Duration("cache-ttl")), nil
}
