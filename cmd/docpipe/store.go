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

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/poiesic/docpipe"
	"github.com/poiesic/docpipe/connection"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/reembed"
	"github.com/poiesic/docpipe/storage"
	"github.com/poiesic/docpipe/stream"
	"github.com/poiesic/docpipe/transfer"
	"github.com/urfave/cli/v2"
)

// Record output formats of the export command.
const (
	formatRecord = "record"
	formatJSONL  = "jsonl"
)

func storeFlags() []cli.Flag {
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of records per store request",
			Value: 100,
		},
		&cli.IntFlag{
			Name:    "max-threads",
			Aliases: []string{"t"},
			Usage:   "Number of concurrent store requests",
			Value:   1,
		},
		&cli.StringFlag{
			Name:  "engine",
			Usage: "Storage engine for file:// locations (badger, sqlite)",
			Value: string(connection.EngineBadger),
		},
		&cli.BoolFlag{
			Name:  "progress",
			Usage: "Report progress on stderr",
		},
	}
	flags = append(flags, windowFlags("Maximum number of records (-1 for all)")...)
	return append(flags, authFlags()...)
}

func exportCommand() *cli.Command {
	flags := append(storeFlags(), outputFlags()...)
	flags = append(flags, featureFlags(core.DefaultFeatureMap())...)
	flags = append(flags,
		&cli.StringFlag{
			Name:  "format",
			Usage: "Output format: record (Record JSON) or jsonl (flat, using the feature flags)",
			Value: formatRecord,
		},
		&cli.StringFlag{
			Name:    "where",
			Aliases: []string{"m"},
			Usage:   "Metadata filter as JSON",
		},
		&cli.StringFlag{
			Name:    "where-document",
			Aliases: []string{"d"},
			Usage:   "Document filter as JSON",
		},
	)
	return &cli.Command{
		Name:      "export",
		Usage:     "Export records from a vector store collection as JSONL",
		ArgsUsage: "<uri>",
		Action:    exportAction,
		Flags:     flags,
	}
}

func importCommand() *cli.Command {
	flags := append(storeFlags(), streamFlags()[:1]...)
	flags = append(flags, featureFlags(core.DefaultFeatureMap())...)
	flags = append(flags, embedderFlags(false)...)
	flags = append(flags,
		&cli.BoolFlag{
			Name:  "create",
			Usage: "Create the collection when it does not exist",
		},
		&cli.BoolFlag{
			Name:  "upsert",
			Usage: "Replace records whose id already exists",
		},
		&cli.StringFlag{
			Name:  "df",
			Usage: "Distance function of a created collection (l2, ip, cosine)",
			Value: string(connection.DistanceL2),
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts per batch write",
			Value: 1,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: 1 * time.Second,
		},
	)
	return &cli.Command{
		Name:      "import",
		Usage:     "Import JSONL records into a vector store collection",
		ArgsUsage: "<uri>",
		Action:    importAction,
		Flags:     flags,
	}
}

// openCollection resolves the URI against the command flags and opens the
// collection. The caller closes the returned client.
func openCollection(c *cli.Context) (storage.Client, storage.Collection, *connection.Config, error) {
	if c.NArg() != 1 {
		return nil, nil, nil, fmt.Errorf("expected exactly one connection URI")
	}
	auth, err := authFromFlags(c)
	if err != nil {
		return nil, nil, nil, err
	}
	engine, err := connection.ParseEngine(c.String("engine"))
	if err != nil {
		return nil, nil, nil, err
	}
	defaults := connection.Defaults{
		BatchSize:        c.Int("batch-size"),
		Limit:            c.Int("limit"),
		Offset:           c.Int("offset"),
		CreateCollection: c.Bool("create"),
		Upsert:           c.Bool("upsert"),
		Distance:         connection.DistanceL2,
		Engine:           engine,
	}
	if df := c.String("df"); df != "" {
		if defaults.Distance, err = connection.ParseDistance(df); err != nil {
			return nil, nil, nil, err
		}
	}

	cfg, err := connection.Parse(c.Args().First(),
		connection.WithDefaults(defaults),
		connection.WithAuth(auth),
		connection.WithEnv(os.LookupEnv),
	)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.Debug("resolved connection", "config", cfg.String())

	client, err := docpipe.OpenStore(c.Context, cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	coll, err := docpipe.OpenCollection(c.Context, client, cfg)
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}
	return client, coll, cfg, nil
}

func progressWriter(c *cli.Context) io.Writer {
	if c.Bool("progress") {
		return c.App.ErrWriter
	}
	return nil
}

func exportAction(c *cli.Context) error {
	format := c.String("format")
	if format != formatRecord && format != formatJSONL {
		return fmt.Errorf("invalid format %q: must be %s or %s", format, formatRecord, formatJSONL)
	}
	fm := featureMap(c)
	if format == formatJSONL {
		if err := fm.Validate(); err != nil {
			return err
		}
	}
	exportCfg := transfer.ExportConfig{
		MaxThreads: c.Int("max-threads"),
		Progress:   progressWriter(c),
	}
	if v := c.String("where"); v != "" {
		where, err := storage.ParseWhere([]byte(v))
		if err != nil {
			return err
		}
		exportCfg.Where = where
	}
	if v := c.String("where-document"); v != "" {
		whereDoc, err := storage.ParseWhereDocument([]byte(v))
		if err != nil {
			return err
		}
		exportCfg.WhereDocument = whereDoc
	}

	client, coll, cfg, err := openCollection(c)
	if err != nil {
		return err
	}
	defer client.Close()
	exportCfg.BatchSize, exportCfg.Limit, exportCfg.Offset = cfg.BatchSize, cfg.Limit, cfg.Offset

	w, err := stream.Create(c.String("out"), c.Bool("append"))
	if err != nil {
		return err
	}
	sink := func(rec *core.Record) error {
		if format == formatJSONL {
			return w.Write(core.ToFlat(rec, fm))
		}
		return w.WriteRecord(rec)
	}
	n, err := transfer.Export(c.Context, coll, exportCfg, sink)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	slog.Info("export complete", "collection", coll.Name(), "records", n)
	return nil
}

func importAction(c *cli.Context) error {
	fm := featureMap(c)
	if err := fm.Validate(); err != nil {
		return err
	}
	embedder, err := newEmbedder(c)
	if err != nil {
		return err
	}
	r, err := stream.Open(c.String("in"), os.Stdin)
	if err != nil {
		return err
	}
	defer r.Close()

	client, coll, cfg, err := openCollection(c)
	if err != nil {
		return err
	}
	defer client.Close()

	n, err := transfer.Import(c.Context, coll, r, transfer.ImportConfig{
		Features:    fm,
		BatchSize:   cfg.BatchSize,
		Limit:       cfg.Limit,
		Offset:      cfg.Offset,
		MaxThreads:  c.Int("max-threads"),
		Upsert:      cfg.Upsert,
		Embedder:    embedder,
		MaxAttempts: c.Int("max-retries"),
		RetryDelay:  c.Duration("retry-delay"),
		Progress:    progressWriter(c),
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	slog.Info("import complete", "collection", coll.Name(), "records", n)
	return nil
}

func reembedCommand() *cli.Command {
	flags := append(storeFlags(), embedderFlags(true)...)
	flags = append(flags,
		&cli.BoolFlag{
			Name:  "normalize",
			Usage: "Scale vectors to unit length",
		},
		&cli.StringFlag{
			Name:    "where",
			Aliases: []string{"m"},
			Usage:   "Only re-embed records matching this metadata filter",
		},
		&cli.IntFlag{
			Name:  "max-retries",
			Usage: "Maximum attempts per embedding call and write",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "retry-delay",
			Usage: "Base delay for exponential backoff",
			Value: 1 * time.Second,
		},
	)
	return &cli.Command{
		Name:      "reembed",
		Usage:     "Replace the embeddings of every record in a collection",
		ArgsUsage: "<uri>",
		Action:    reembedAction,
		Flags:     flags,
	}
}

func reembedAction(c *cli.Context) error {
	embedder, err := newEmbedder(c)
	if err != nil {
		return err
	}
	config := &reembed.Config{
		MaxRetries: c.Int("max-retries"),
		RetryDelay: c.Duration("retry-delay"),
		Normalize:  c.Bool("normalize"),
	}
	if v := c.String("where"); v != "" {
		if config.Where, err = storage.ParseWhere([]byte(v)); err != nil {
			return err
		}
	}

	client, coll, cfg, err := openCollection(c)
	if err != nil {
		return err
	}
	defer client.Close()
	config.BatchSize = cfg.BatchSize

	r, err := reembed.NewReembedder(coll, embedder, config, progressWriter(c))
	if err != nil {
		return err
	}
	res, err := r.Run(c.Context)
	if err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	slog.Info("reembed complete", "collection", coll.Name(), "records", res.Seen, "embedded", res.Embedded)
	return nil
}
