package producer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
)

// DefaultPDFPattern matches PDF files.
const DefaultPDFPattern = "*.pdf"

// PDF page metadata keys. PageKey is zero based.
const (
	PageKey       = "page"
	TotalPagesKey = "total_pages"
)

// PDFConfig selects the files of a PDF loader. Root may be a single file
// or a directory searched like TextConfig.Root.
type PDFConfig struct {
	Root      string
	Pattern   string
	Recursive bool
	Window
}

// PDF emits one record per page of each matching PDF file. The window
// counts pages, not files.
type PDF struct {
	cfg    PDFConfig
	single bool
	logger *slog.Logger
}

var _ pipeline.Producer = (*PDF)(nil)

// NewPDF checks that root exists and the pattern is well formed.
func NewPDF(cfg PDFConfig) (*PDF, error) {
	if cfg.Pattern == "" {
		cfg.Pattern = DefaultPDFPattern
	}
	if _, err := filepath.Match(cfg.Pattern, "x"); err != nil {
		return nil, fmt.Errorf("pattern %q: %w", cfg.Pattern, err)
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, err
	}
	return &PDF{
		cfg:    cfg,
		single: !info.IsDir(),
		logger: slog.Default().With("component", "pdf-loader", "root", cfg.Root),
	}, nil
}

func (p *PDF) Produce(ctx context.Context, emit func(*core.Record) error) error {
	cur := &cursor{w: p.cfg.Window}
	load := func(path string) error {
		return p.load(ctx, path, cur, emit)
	}
	var err error
	if p.single {
		err = load(p.cfg.Root)
		if errors.Is(err, errStop) {
			err = nil
		}
	} else {
		err = walkFiles(ctx, p.cfg.Root, p.cfg.Pattern, p.cfg.Recursive, load)
	}
	p.logger.Debug("pdf pages loaded", "emitted", cur.emitted)
	return err
}

func (p *PDF) load(ctx context.Context, path string, cur *cursor, emit func(*core.Record) error) error {
	f, r, err := pdf.Open(path)
	if err != nil {
		return fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	total := r.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		take, done := cur.admit()
		if take {
			text, err := pageText(r.Page(i))
			if err != nil {
				return fmt.Errorf("read %s page %d: %w", path, i, err)
			}
			rec := &core.Record{
				TextChunk: core.StringPtr(text),
				Metadata: core.Metadata{
					SourceKey:     path,
					PageKey:       int64(i - 1),
					TotalPagesKey: int64(total),
				},
			}
			if err := emit(rec); err != nil {
				return err
			}
		}
		if done {
			return errStop
		}
	}
	return nil
}

func pageText(page pdf.Page) (string, error) {
	if page.V.IsNull() {
		return "", nil
	}
	fonts := make(map[string]*pdf.Font)
	for _, name := range page.Fonts() {
		font := page.Font(name)
		fonts[name] = &font
	}
	return page.GetPlainText(fonts)
}
