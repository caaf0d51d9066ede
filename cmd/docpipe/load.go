package main

import (
	"fmt"
	"unicode/utf8"

	"github.com/poiesic/docpipe/producer"
	"github.com/poiesic/docpipe/stream"
	"github.com/urfave/cli/v2"
)

func loaderFlags(extra ...cli.Flag) []cli.Flag {
	flags := append(outputFlags(), windowFlags("Maximum number of documents (-1 for all)")...)
	return append(flags, extra...)
}

func window(c *cli.Context) producer.Window {
	return producer.Window{Offset: c.Int("offset"), Limit: c.Int("limit")}
}

func singleArg(c *cli.Context, what string) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one %s", what)
	}
	return c.Args().First(), nil
}

func textCommand() *cli.Command {
	return &cli.Command{
		Name:      "txt",
		Usage:     "Load text files from a directory",
		ArgsUsage: "<dir>",
		Flags: loaderFlags(
			&cli.StringFlag{
				Name:  "pattern",
				Usage: "File name pattern",
				Value: producer.DefaultTextPattern,
			},
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "Descend into subdirectories",
			},
		),
		Action: func(c *cli.Context) error {
			root, err := singleArg(c, "directory")
			if err != nil {
				return err
			}
			p, err := producer.NewText(producer.TextConfig{
				Root:      root,
				Pattern:   c.String("pattern"),
				Recursive: c.Bool("recursive"),
				Window:    window(c),
			})
			if err != nil {
				return err
			}
			return runProducer(c, p)
		},
	}
}

func pdfCommand() *cli.Command {
	return &cli.Command{
		Name:      "pdf",
		Usage:     "Load PDF files, one record per page",
		ArgsUsage: "<file-or-dir>",
		Flags: loaderFlags(
			&cli.StringFlag{
				Name:    "glob",
				Aliases: []string{"g"},
				Usage:   "File name pattern",
				Value:   producer.DefaultPDFPattern,
			},
			&cli.BoolFlag{
				Name:    "recursive",
				Aliases: []string{"r"},
				Usage:   "Descend into subdirectories",
			},
		),
		Action: func(c *cli.Context) error {
			root, err := singleArg(c, "file or directory")
			if err != nil {
				return err
			}
			p, err := producer.NewPDF(producer.PDFConfig{
				Root:      root,
				Pattern:   c.String("glob"),
				Recursive: c.Bool("recursive"),
				Window:    window(c),
			})
			if err != nil {
				return err
			}
			return runProducer(c, p)
		},
	}
}

func csvCommand() *cli.Command {
	return &cli.Command{
		Name:      "csv",
		Usage:     "Load CSV rows as documents",
		ArgsUsage: "<file>",
		Flags: loaderFlags(
			&cli.StringFlag{
				Name:  "doc-column",
				Usage: "Column holding the document text (default: all columns as key: value lines)",
			},
			&cli.StringSliceFlag{
				Name:  "meta-columns",
				Usage: "Columns copied into metadata (repeatable)",
			},
			&cli.StringFlag{
				Name:  "delimiter",
				Usage: "Field delimiter",
				Value: ",",
			},
		),
		Action: func(c *cli.Context) error {
			path, err := singleArg(c, "CSV file")
			if err != nil {
				return err
			}
			delim := c.String("delimiter")
			if utf8.RuneCountInString(delim) != 1 {
				return fmt.Errorf("delimiter must be a single character, got %q", delim)
			}
			sep, _ := utf8.DecodeRuneInString(delim)
			p, err := producer.NewCSV(producer.CSVConfig{
				Path:            path,
				DocumentColumn:  c.String("doc-column"),
				MetadataColumns: c.StringSlice("meta-columns"),
				Delimiter:       sep,
				Window:          window(c),
			})
			if err != nil {
				return err
			}
			return runProducer(c, p)
		},
	}
}

func urlCommand() *cli.Command {
	return &cli.Command{
		Name:      "url",
		Usage:     "Load web pages, optionally following links",
		ArgsUsage: "<url>",
		Flags: loaderFlags(
			&cli.IntFlag{
				Name:  "max-depth",
				Usage: "Link levels to follow; 1 loads only the given page",
				Value: 1,
			},
		),
		Action: func(c *cli.Context) error {
			link, err := singleArg(c, "URL")
			if err != nil {
				return err
			}
			p, err := producer.NewURL(producer.URLConfig{
				URL:      link,
				MaxDepth: c.Int("max-depth"),
				Window:   window(c),
			})
			if err != nil {
				return err
			}
			return runProducer(c, p)
		},
	}
}

func generateCommand() *cli.Command {
	return &cli.Command{
		Name:  "gen",
		Usage: "Generate synthetic records and filter queries with known result counts",
		Flags: append(outputFlags(),
			&cli.IntFlag{
				Name:     "count",
				Aliases:  []string{"n"},
				Usage:    "Number of records to generate",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed",
			},
			&cli.StringFlag{
				Name:  "src",
				Usage: "File of documents, one per line",
			},
			&cli.StringFlag{
				Name:  "queries",
				Usage: "Write the generated queries as JSONL to this file",
			},
			&cli.IntFlag{
				Name:  "samples",
				Usage: "Equality and metadata queries per kind",
				Value: producer.DefaultQuerySamples,
			},
		),
		Action: func(c *cli.Context) error {
			p, err := producer.NewSynthetic(producer.SyntheticConfig{
				Count:    c.Int("count"),
				Seed:     c.Uint64("seed"),
				DocsFile: c.String("src"),
			})
			if err != nil {
				return err
			}
			if err := runProducer(c, p); err != nil {
				return err
			}
			path := c.String("queries")
			if path == "" {
				return nil
			}
			w, err := stream.Create(path, false)
			if err != nil {
				return err
			}
			for _, q := range p.Queries(c.Int("samples")) {
				if err := w.Write(q); err != nil {
					w.Close()
					return err
				}
			}
			return w.Close()
		},
	}
}

func qdrantCommand() *cli.Command {
	return &cli.Command{
		Name:      "qdrant",
		Usage:     "Export the points of a Qdrant collection as records",
		ArgsUsage: "<uri>",
		Flags: loaderFlags(
			&cli.StringFlag{
				Name:    "collection",
				Aliases: []string{"c"},
				Usage:   "Collection name (default: the URI path)",
			},
			&cli.StringFlag{
				Name:    "doc",
				Aliases: []string{"d"},
				Usage:   "Payload field holding the document (default: doc_payload_field in the URI)",
			},
			&cli.StringFlag{
				Name:  "vector",
				Usage: "Named vector to export",
			},
			&cli.IntFlag{
				Name:    "batch-size",
				Aliases: []string{"b"},
				Usage:   "Points per scroll request",
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Qdrant API key",
				EnvVars: []string{"QDRANT_API_KEY"},
			},
		),
		Action: func(c *cli.Context) error {
			uri, err := singleArg(c, "Qdrant URI")
			if err != nil {
				return err
			}
			cfg := producer.QdrantConfig{
				URI:        uri,
				Collection: c.String("collection"),
				DocField:   c.String("doc"),
				Vector:     c.String("vector"),
				BatchSize:  c.Int("batch-size"),
				APIKey:     c.String("api-key"),
			}
			if c.IsSet("limit") {
				cfg.Limit = c.Int("limit")
			}
			if c.IsSet("offset") {
				cfg.Offset = c.Int("offset")
			}
			p, err := producer.NewQdrant(cfg, nil)
			if err != nil {
				return err
			}
			return runProducer(c, p)
		},
	}
}
