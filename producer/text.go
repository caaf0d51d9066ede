package producer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
)

// DefaultTextPattern matches markdown files.
const DefaultTextPattern = "*.md"

// SourceKey is the metadata key naming where a document came from.
const SourceKey = "source"

var errStop = errors.New("stop")

// TextConfig selects the files of a Text loader. Pattern is matched
// against file names; dot files and dot directories are never read.
type TextConfig struct {
	Root      string
	Pattern   string
	Recursive bool
	Window
}

// Text emits one record per matching file, in lexical path order.
type Text struct {
	cfg    TextConfig
	logger *slog.Logger
}

var _ pipeline.Producer = (*Text)(nil)

// NewText checks that root is a directory and the pattern is well formed.
func NewText(cfg TextConfig) (*Text, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultTextPattern
	}
	if _, err := filepath.Match(cfg.Pattern, "x"); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", cfg.Pattern, err)
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Root)
	}
	return &Text{
		cfg:    cfg,
		logger: slog.Default().With("component", "text-loader", "root", cfg.Root),
	}, nil
}

func (t *Text) Produce(ctx context.Context, emit func(*core.Record) error) error {
	cur := &cursor{w: t.cfg.Window}
	err := walkFiles(ctx, t.cfg.Root, t.cfg.Pattern, t.cfg.Recursive, func(path string) error {
		take, done := cur.admit()
		if take {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			rec := &core.Record{
				TextChunk: core.StringPtr(string(data)),
				Metadata:  core.Metadata{SourceKey: path},
			}
			if err := emit(rec); err != nil {
				return err
			}
		}
		if done {
			return errStop
		}
		return nil
	})
	t.logger.Debug("directory loaded", "emitted", cur.emitted)
	return err
}

// walkFiles calls fn for each regular file under root whose name matches
// pattern, in lexical order. Dot files and dot directories are skipped.
// fn may return errStop to end the walk without an error.
func walkFiles(ctx context.Context, root, pattern string, recursive bool, fn func(path string) error) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || !d.Type().IsRegular() {
			return nil
		}
		if ok, _ := filepath.Match(pattern, d.Name()); !ok {
			return nil
		}
		return fn(path)
	})
	if errors.Is(err, errStop) {
		return nil
	}
	return err
}
