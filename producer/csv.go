package producer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
)

// RowKey is the metadata key holding the zero-based data row number.
const RowKey = "row"

// CSVConfig describes a delimited file with a header row.
//
// With DocumentColumn set, that column becomes the text and the metadata
// holds MetadataColumns, or every other column when none are listed.
// Without it the text is one "column: value" line per column not listed in
// MetadataColumns.
type CSVConfig struct {
	Path            string
	DocumentColumn  string
	MetadataColumns []string
	Delimiter       rune
	Window
}

// CSV emits one record per data row.
type CSV struct {
	cfg    CSVConfig
	logger *slog.Logger
}

var _ pipeline.Producer = (*CSV)(nil)

// NewCSV reads the header once to check the configured columns.
func NewCSV(cfg CSVConfig) (*CSV, error) {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	c := &CSV{cfg: cfg, logger: slog.Default().With("component", "csv-loader", "path", cfg.Path)}
	f, _, header, err := c.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if cfg.DocumentColumn != "" && !slices.Contains(header, cfg.DocumentColumn) {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, cfg.DocumentColumn)
	}
	for _, col := range cfg.MetadataColumns {
		if !slices.Contains(header, col) {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}
	return c, nil
}

func (c *CSV) open() (*os.File, *csv.Reader, []string, error) {
	f, err := os.Open(c.cfg.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening csv %s: %w", c.cfg.Path, err)
	}
	r := csv.NewReader(f)
	r.Comma = c.cfg.Delimiter
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		f.Close()
		return nil, nil, nil, ErrEmptyCSV
	}
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("reading csv header: %w", err)
	}
	return f, r, header, nil
}

func (c *CSV) Produce(ctx context.Context, emit func(*core.Record) error) error {
	f, r, header, err := c.open()
	if err != nil {
		return err
	}
	defer f.Close()

	cur := &cursor{w: c.cfg.Window}
	for row := 0; !cur.exhausted(); row++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("csv row %d: %w", row, err)
		}
		if take, _ := cur.admit(); !take {
			continue
		}
		if err := emit(c.record(header, fields, row)); err != nil {
			return err
		}
	}
	c.logger.Debug("csv loaded", "emitted", cur.emitted)
	return nil
}

func (c *CSV) record(header, fields []string, row int) *core.Record {
	value := func(i int) string {
		if i < len(fields) {
			return fields[i]
		}
		return ""
	}
	meta := core.Metadata{SourceKey: c.cfg.Path, RowKey: int64(row)}
	var text strings.Builder
	for i, col := range header {
		switch {
		case col == c.cfg.DocumentColumn:
			text.WriteString(value(i))
		case slices.Contains(c.cfg.MetadataColumns, col):
			meta[col] = value(i)
		case c.cfg.DocumentColumn != "":
			if len(c.cfg.MetadataColumns) == 0 {
				meta[col] = value(i)
			}
		default:
			if text.Len() > 0 {
				text.WriteByte('\n')
			}
			text.WriteString(col + ": " + value(i))
		}
	}
	return &core.Record{TextChunk: core.StringPtr(text.String()), Metadata: meta}
}
