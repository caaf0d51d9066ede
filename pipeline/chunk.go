package pipeline

import (
	"context"
	"fmt"
	"maps"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/poiesic/docpipe/core"
	"github.com/tmc/langchaingo/textsplitter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Chunk policies.
const (
	PolicyCharacter = "character"
	PolicyRecursive = "recursive"
	PolicyMarkdown  = "markdown"
)

// DefaultStartIndexKey is the metadata key holding a chunk's rune offset.
const DefaultStartIndexKey = "start_index"

// ChunkConfig controls how records are split.
type ChunkConfig struct {
	// Size is the maximum chunk length in runes.
	Size int
	// Overlap is the number of runes shared by consecutive windows.
	Overlap int
	// Separators override the recursive splitter's separator list.
	Separators []string
	// Policy is one of PolicyCharacter (default), PolicyRecursive or PolicyMarkdown.
	Policy string
	// AddStartIndex records each chunk's rune offset in the parent text.
	AddStartIndex bool
	// StartIndexKey names the offset key. Defaults to DefaultStartIndexKey.
	StartIndexKey string
}

// Validate checks size, overlap and policy.
func (c ChunkConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: size must be positive, got %d", ErrInvalidChunkConfig, c.Size)
	}
	if c.Overlap < 0 || c.Overlap >= c.Size {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunkConfig, c.Overlap, c.Size)
	}
	switch c.Policy {
	case "", PolicyCharacter, PolicyRecursive, PolicyMarkdown:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownPolicy, c.Policy)
}

type span struct {
	text  string
	start int
}

// Chunker splits each record's text into child records.
type Chunker struct {
	cfg   ChunkConfig
	split func(string) ([]span, error)
}

var _ Processor = (*Chunker)(nil)

// NewChunker validates cfg and builds the splitter for its policy.
func NewChunker(cfg ChunkConfig) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.StartIndexKey == "" {
		cfg.StartIndexKey = DefaultStartIndexKey
	}
	c := &Chunker{cfg: cfg}
	switch cfg.Policy {
	case PolicyRecursive:
		opts := []textsplitter.Option{
			textsplitter.WithChunkSize(cfg.Size),
			textsplitter.WithChunkOverlap(cfg.Overlap),
		}
		if len(cfg.Separators) > 0 {
			opts = append(opts, textsplitter.WithSeparators(cfg.Separators))
		}
		splitter := textsplitter.NewRecursiveCharacter(opts...)
		c.split = func(s string) ([]span, error) {
			parts, err := splitter.SplitText(s)
			if err != nil {
				return nil, err
			}
			return locate(s, parts), nil
		}
	case PolicyMarkdown:
		c.split = func(s string) ([]span, error) {
			return markdownSpans(s, cfg.Size, cfg.Overlap), nil
		}
	default:
		c.split = func(s string) ([]span, error) {
			return windows(s, 0, cfg.Size, cfg.Overlap), nil
		}
	}
	return c, nil
}

// Process returns one child per chunk. Children copy the parent metadata,
// get a fresh uuid and carry no embedding.
func (c *Chunker) Process(_ context.Context, rec *core.Record) ([]*core.Record, error) {
	if rec.TextChunk == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingText, rec.IDValue())
	}
	spans, err := c.split(*rec.TextChunk)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", rec.IDValue(), err)
	}
	out := make([]*core.Record, 0, len(spans))
	for _, sp := range spans {
		child := &core.Record{
			ID:        core.StringPtr(uuid.New().String()),
			TextChunk: core.StringPtr(sp.text),
		}
		if rec.Metadata != nil {
			child.Metadata = maps.Clone(rec.Metadata)
		}
		if c.cfg.AddStartIndex {
			if child.Metadata == nil {
				child.Metadata = core.Metadata{}
			}
			child.Metadata[c.cfg.StartIndexKey] = int64(sp.start)
		}
		out = append(out, child)
	}
	return out, nil
}

// windows cuts s into rune windows of size advancing by size-overlap. The
// start offsets are shifted by base.
func windows(s string, base, size, overlap int) []span {
	runes := []rune(s)
	if len(runes) == 0 {
		return nil
	}
	step := size - overlap
	var out []span
	for start := 0; start < len(runes); start += step {
		end := min(start+size, len(runes))
		out = append(out, span{text: string(runes[start:end]), start: base + start})
		if end == len(runes) {
			break
		}
	}
	return out
}

// locate finds the rune offset of each chunk in s, searching forward from
// the previous match. Chunks the splitter rewrote get offset -1.
func locate(s string, parts []string) []span {
	out := make([]span, 0, len(parts))
	from := 0
	for _, p := range parts {
		sp := span{text: p, start: -1}
		if idx := strings.Index(s[from:], p); idx >= 0 {
			pos := from + idx
			sp.start = utf8.RuneCountInString(s[:pos])
			from = pos + 1
			for from < len(s) && !utf8.RuneStart(s[from]) {
				from++
			}
		}
		out = append(out, sp)
	}
	return out
}

// markdownSpans packs top-level markdown blocks into chunks of at most size
// runes. A block longer than size is cut into overlapping windows.
func markdownSpans(s string, size, overlap int) []span {
	src := []byte(s)
	runes := []rune(s)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	// Each top-level block owns the source from the start of its first line
	// up to the start of the next block.
	var starts []int
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		pos, ok := firstSegment(node)
		if !ok {
			continue
		}
		pos = lineStart(src, pos)
		// Code lines start below the opening fence.
		if _, fenced := node.(*ast.FencedCodeBlock); fenced && pos > 0 {
			pos = lineStart(src, pos-1)
		}
		if len(starts) > 0 && pos <= starts[len(starts)-1] {
			continue
		}
		starts = append(starts, pos)
	}
	if len(starts) == 0 {
		return trimSpans(windows(s, 0, size, overlap))
	}
	starts[0] = 0

	var (
		out     []span
		current span
		length  int
	)
	flush := func() {
		if length > 0 {
			out = append(out, current)
		}
		current, length = span{}, 0
	}
	for i, start := range starts {
		end := len(src)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		block := trimmed(span{text: s[start:end], start: utf8.RuneCount(src[:start])})
		n := utf8.RuneCountInString(block.text)
		switch {
		case n == 0:
			continue
		case n > size:
			flush()
			out = append(out, windows(block.text, block.start, size, overlap)...)
			continue
		case length == 0:
			current, length = block, n
			continue
		}
		// Joined chunks keep the source text between blocks.
		joinedLen := block.start + n - current.start
		if joinedLen > size {
			flush()
			current, length = block, n
			continue
		}
		current = span{text: string(runes[current.start : block.start+n]), start: current.start}
		length = joinedLen
	}
	flush()
	return out
}

func firstSegment(node ast.Node) (int, bool) {
	pos, found := 0, false
	_ = ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		if lines := n.Lines(); lines != nil && lines.Len() > 0 {
			start := lines.At(0).Start
			if !found || start < pos {
				pos, found = start, true
			}
		}
		return ast.WalkContinue, nil
	})
	return pos, found
}

func lineStart(src []byte, pos int) int {
	for pos > 0 && src[pos-1] != '\n' {
		pos--
	}
	return pos
}

func trimmed(sp span) span {
	lead := strings.TrimLeftFunc(sp.text, unicode.IsSpace)
	sp.start += utf8.RuneCountInString(sp.text) - utf8.RuneCountInString(lead)
	sp.text = strings.TrimRightFunc(lead, unicode.IsSpace)
	return sp
}

func trimSpans(spans []span) []span {
	out := spans[:0]
	for _, sp := range spans {
		if sp = trimmed(sp); sp.text != "" {
			out = append(out, sp)
		}
	}
	return out
}
