package main

import (
	"fmt"
	"os"

	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/stream"
	"github.com/urfave/cli/v2"
)

// runStream reads records from --in, passes them through processors and
// writes the results to --out.
func runStream(c *cli.Context, processors ...pipeline.Processor) error {
	r, err := stream.Open(c.String("in"), os.Stdin)
	if err != nil {
		return err
	}
	defer r.Close()
	return runProducer(c, pipeline.NewStreamProducer(r), processors...)
}

func runProducer(c *cli.Context, producer pipeline.Producer, processors ...pipeline.Processor) error {
	w, err := stream.Create(c.String("out"), c.Bool("append"))
	if err != nil {
		return err
	}
	err = pipeline.Run(c.Context, producer, pipeline.NewStreamConsumer(w), processors...)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

func chunkCommand() *cli.Command {
	return &cli.Command{
		Name:  "chunk",
		Usage: "Split each record's text into chunk records",
		Flags: append(streamFlags(),
			&cli.IntFlag{
				Name:     "size",
				Aliases:  []string{"s"},
				Usage:    "Maximum chunk size in characters",
				Required: true,
			},
			&cli.IntFlag{
				Name:  "overlap",
				Usage: "Characters shared by consecutive chunks",
			},
			&cli.StringSliceFlag{
				Name:  "separator",
				Usage: "Separator for the recursive splitter (repeatable)",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Chunking policy (character, recursive, markdown)",
				Value: pipeline.PolicyCharacter,
			},
			&cli.BoolFlag{
				Name:  "offset-field",
				Usage: "Record each chunk's offset in metadata",
			},
			&cli.StringFlag{
				Name:  "offset-key",
				Usage: "Metadata key of the chunk offset",
				Value: pipeline.DefaultStartIndexKey,
			},
		),
		Action: func(c *cli.Context) error {
			chunker, err := pipeline.NewChunker(pipeline.ChunkConfig{
				Size:          c.Int("size"),
				Overlap:       c.Int("overlap"),
				Separators:    c.StringSlice("separator"),
				Policy:        c.String("type"),
				AddStartIndex: c.Bool("offset-field"),
				StartIndexKey: c.String("offset-key"),
			})
			if err != nil {
				return err
			}
			return runStream(c, chunker)
		},
	}
}

func idCommand() *cli.Command {
	return &cli.Command{
		Name:  "id",
		Usage: "Assign record ids",
		Flags: append(streamFlags(),
			&cli.BoolFlag{Name: "uuid", Usage: "Random UUID v4"},
			&cli.BoolFlag{Name: "ulid", Usage: "Monotonic ULID"},
			&cli.StringFlag{Name: "expr", Usage: "Template over the record fields, e.g. '{{ .metadata.source }}-{{ uuid }}'"},
			&cli.BoolFlag{Name: "doc-hash", Usage: "Hex digest of the document text"},
			&cli.StringFlag{Name: "hash-alg", Usage: "Digest of --doc-hash (sha256, blake2b)", Value: pipeline.HashSHA256},
			&cli.BoolFlag{Name: "random-hash", Usage: "SHA-256 of random bytes"},
		),
		Action: func(c *cli.Context) error {
			strategy, err := pipeline.NewIDStrategy(pipeline.IDSelection{
				UUID:       c.Bool("uuid"),
				ULID:       c.Bool("ulid"),
				Expr:       c.String("expr"),
				DocHash:    c.Bool("doc-hash"),
				HashAlg:    c.String("hash-alg"),
				RandomHash: c.Bool("random-hash"),
			})
			if err != nil {
				return err
			}
			assigner, err := pipeline.NewIDAssigner(strategy)
			if err != nil {
				return err
			}
			return runStream(c, assigner)
		},
	}
}

func metaCommand() *cli.Command {
	return &cli.Command{
		Name:  "meta",
		Usage: "Add or remove metadata keys",
		Flags: append(streamFlags(),
			&cli.StringSliceFlag{
				Name:    "attr",
				Aliases: []string{"a"},
				Usage:   "key=value to add; the value is a template (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:    "remove-key",
				Aliases: []string{"k"},
				Usage:   "Key to remove (repeatable)",
			},
			&cli.BoolFlag{
				Name:    "overwrite",
				Aliases: []string{"w"},
				Usage:   "Replace keys that already exist",
			},
		),
		Action: func(c *cli.Context) error {
			add, err := pipeline.ParseKeyValues(c.StringSlice("attr"))
			if err != nil {
				return err
			}
			editor, err := pipeline.NewMetaEditor(pipeline.MetaConfig{
				Add:       add,
				Remove:    c.StringSlice("remove-key"),
				Overwrite: c.Bool("overwrite"),
			})
			if err != nil {
				return err
			}
			return runStream(c, editor)
		},
	}
}

func emojiCleanCommand() *cli.Command {
	return &cli.Command{
		Name:  "emoji-clean",
		Usage: "Remove emoji from record text",
		Flags: append(streamFlags(),
			&cli.BoolFlag{
				Name:  "meta",
				Usage: "Also clean string metadata values",
			},
		),
		Action: func(c *cli.Context) error {
			return runStream(c, pipeline.EmojiCleaner{Metadata: c.Bool("meta")})
		},
	}
}

func embedCommand() *cli.Command {
	flags := append(streamFlags(), embedderFlags(true)...)
	flags = append(flags,
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Number of texts per embedding request",
			Value: pipeline.DefaultEmbedBatchSize,
		},
		&cli.BoolFlag{
			Name:  "overwrite",
			Usage: "Re-embed records that already carry an embedding",
		},
	)
	return &cli.Command{
		Name:  "embed",
		Usage: "Compute embeddings for record text",
		Flags: flags,
		Action: func(c *cli.Context) error {
			embedder, err := newEmbedder(c)
			if err != nil {
				return err
			}
			if embedder == nil {
				return fmt.Errorf("--ef is required")
			}
			proc, err := pipeline.NewEmbedProcessor(embedder,
				pipeline.WithEmbedBatchSize(c.Int("batch-size")),
				pipeline.WithOverwrite(c.Bool("overwrite")),
			)
			if err != nil {
				return err
			}
			return runStream(c, proc)
		},
	}
}
