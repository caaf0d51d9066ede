package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/poiesic/docpipe/dataset"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/poiesic/docpipe/stream"
	"github.com/urfave/cli/v2"
)

func datasetCommand() *cli.Command {
	return &cli.Command{
		Name:  "ds",
		Usage: "Move records between JSONL and a dataset hub",
		Subcommands: []*cli.Command{
			{
				Name:      "import",
				Usage:     "Emit the records of a dataset split",
				ArgsUsage: "<uri>",
				Flags:     append(outputFlags(), featureFlags(dataset.DefaultFeatureMap())...),
				Action:    datasetImportAction,
			},
			{
				Name:      "export",
				Usage:     "Publish JSONL records as a dataset split",
				ArgsUsage: "<uri>",
				Flags:     append(streamFlags()[:1], featureFlags(dataset.DefaultFeatureMap())...),
				Action:    datasetExportAction,
			},
		},
	}
}

func openHub(c *cli.Context) (dataset.Hub, *dataset.URI, error) {
	raw, err := singleArg(c, "dataset URI")
	if err != nil {
		return nil, nil, err
	}
	u, err := dataset.ParseURI(raw)
	if err != nil {
		return nil, nil, err
	}
	hub, err := dataset.Open(c.Context, u)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dataset hub: %w", err)
	}
	return hub, u, nil
}

func datasetImportAction(c *cli.Context) error {
	hub, u, err := openHub(c)
	if err != nil {
		return err
	}
	im, err := dataset.NewImporter(hub, u, featureMap(c))
	if err != nil {
		return err
	}
	return runProducer(c, im)
}

func datasetExportAction(c *cli.Context) error {
	hub, u, err := openHub(c)
	if err != nil {
		return err
	}
	r, err := stream.Open(c.String("in"), os.Stdin)
	if err != nil {
		return err
	}
	defer r.Close()

	n, err := dataset.Export(c.Context, hub, u, featureMap(c), pipeline.NewStreamProducer(r))
	if err != nil {
		return err
	}
	slog.Info("dataset published", "dataset", u.String(), "rows", n)
	return nil
}
