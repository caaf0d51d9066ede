package pipeline

import (
	"crypto/rand"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"text/template/parse"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/poiesic/docpipe/core"
)

// TemplateOption configures template evaluation.
type TemplateOption func(*templateEnv)

// WithClock replaces time.Now for the now, date and ulid functions.
func WithClock(now func() time.Time) TemplateOption {
	return func(e *templateEnv) {
		if now != nil {
			e.now = now
		}
	}
}

type templateEnv struct {
	now   func() time.Time
	ulids *ulidSource
}

func newTemplateEnv(opts ...TemplateOption) *templateEnv {
	env := &templateEnv{now: time.Now}
	for _, opt := range opts {
		opt(env)
	}
	env.ulids = newULIDSource(env.now)
	return env
}

// blankFunc is appended to every printing action so that a missing key or
// nil value renders as the empty string.
const blankFunc = "orBlank"

func orBlank(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (e *templateEnv) funcs() template.FuncMap {
	return template.FuncMap{
		blankFunc: orBlank,
		"uuid": func() string { return uuid.New().String() },
		"ulid": e.ulids.Next,
		"now":  func() string { return e.now().Format("2006-01-02 15:04:05.000000") },
		"date": func(format ...string) string {
			layout := "epoch"
			if len(format) > 0 {
				layout = format[0]
			}
			return formatDate(e.now(), layout)
		},
	}
}

// Template is a parsed expression evaluated against a record's fields:
// .id, .text_chunk, .metadata and .embedding. The functions uuid, ulid,
// now and date are available.
type Template struct {
	src  string
	tmpl *template.Template
}

// ParseTemplate parses expr.
func ParseTemplate(expr string, opts ...TemplateOption) (*Template, error) {
	return newTemplateEnv(opts...).parse(expr)
}

func (e *templateEnv) parse(expr string) (*Template, error) {
	tmpl, err := template.New("expr").Funcs(e.funcs()).Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	for _, t := range tmpl.Templates() {
		if t.Tree != nil {
			blankMissing(t.Tree, t.Tree.Root)
		}
	}
	return &Template{src: expr, tmpl: tmpl}, nil
}

// blankMissing pipes the result of each printing action through orBlank.
func blankMissing(tree *parse.Tree, node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			blankMissing(tree, child)
		}
	case *parse.ActionNode:
		if len(n.Pipe.Decl) > 0 {
			return
		}
		ident := parse.NewIdentifier(blankFunc).SetTree(tree).SetPos(n.Pos)
		n.Pipe.Cmds = append(n.Pipe.Cmds, &parse.CommandNode{
			NodeType: parse.NodeCommand,
			Pos:      n.Pos,
			Args:     []parse.Node{ident},
		})
	case *parse.IfNode:
		blankMissing(tree, n.List)
		blankMissing(tree, n.ElseList)
	case *parse.RangeNode:
		blankMissing(tree, n.List)
		blankMissing(tree, n.ElseList)
	case *parse.WithNode:
		blankMissing(tree, n.List)
		blankMissing(tree, n.ElseList)
	}
}

// Render evaluates the template against rec.
func (t *Template) Render(rec *core.Record) (string, error) {
	var sb strings.Builder
	if err := t.tmpl.Execute(&sb, rec.Fields()); err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidTemplate, t.src, err)
	}
	return sb.String(), nil
}

// ulidSource hands out monotonic ULIDs. Ids generated within the same
// millisecond still sort in creation order.
type ulidSource struct {
	mu      sync.Mutex
	now     func() time.Time
	entropy *ulid.MonotonicEntropy
}

func newULIDSource(now func() time.Time) *ulidSource {
	return &ulidSource{now: now, entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new ULID string.
func (s *ulidSource) Next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(s.now()), s.entropy)
	if err != nil {
		return "", fmt.Errorf("generate ulid: %w", err)
	}
	return id.String(), nil
}

// formatDate renders t. "epoch" yields fractional unix seconds; a layout
// containing % is read as strftime; anything else is a Go layout.
func formatDate(t time.Time, layout string) string {
	switch {
	case layout == "epoch":
		return strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', -1, 64)
	case strings.Contains(layout, "%"):
		return t.Format(strftimeLayout(layout))
	default:
		return t.Format(layout)
	}
}

var strftimeDirectives = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "01",
	'd': "02",
	'H': "15",
	'I': "03",
	'M': "04",
	'S': "05",
	'p': "PM",
	'b': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'j': "002",
	'z': "-0700",
	'Z': "MST",
	'%': "%",
}

func strftimeLayout(format string) string {
	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		if format[i] != '%' || i+1 == len(format) {
			sb.WriteByte(format[i])
			continue
		}
		if layout, ok := strftimeDirectives[format[i+1]]; ok {
			sb.WriteString(layout)
			i++
			continue
		}
		sb.WriteByte(format[i])
	}
	return sb.String()
}
