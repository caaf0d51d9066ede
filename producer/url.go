package producer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page metadata keys besides SourceKey.
const (
	TitleKey       = "title"
	DescriptionKey = "description"
	LanguageKey    = "language"
)

const maxPageSize = 32 << 20

// URLConfig describes a crawl. MaxDepth 1 loads only the start page; each
// extra level follows links that stay under the start page's directory.
type URLConfig struct {
	URL      string
	MaxDepth int
	Window
}

// URL emits one record per fetched page, breadth first.
type URL struct {
	cfg    URLConfig
	start  *url.URL
	prefix string
	client *http.Client
	logger *slog.Logger
}

var _ pipeline.Producer = (*URL)(nil)

// URLOption configures a URL loader.
type URLOption func(*URL)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) URLOption {
	return func(u *URL) {
		if client != nil {
			u.client = client
		}
	}
}

// NewURL validates the start URL.
func NewURL(cfg URLConfig, opts ...URLOption) (*URL, error) {
	start, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if start.Scheme != "http" && start.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, cfg.URL)
	}
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = 1
	}
	start.Fragment = ""
	prefix := *start
	prefix.RawQuery = ""
	if i := strings.LastIndex(prefix.Path, "/"); i >= 0 {
		prefix.Path = prefix.Path[:i+1]
	}
	u := &URL{
		cfg:    cfg,
		start:  start,
		prefix: prefix.String(),
		client: &http.Client{Timeout: 30 * time.Second},
		logger: slog.Default().With("component", "url-loader", "url", cfg.URL),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u, nil
}

type page struct {
	text        string
	title       string
	description string
	language    string
	links       []string
}

// Produce crawls from the start URL. A failure on the start page is
// returned; failures on linked pages are logged and skipped.
func (u *URL) Produce(ctx context.Context, emit func(*core.Record) error) error {
	type item struct {
		link  string
		depth int
	}
	queue := []item{{link: u.start.String(), depth: 1}}
	visited := map[string]bool{u.start.String(): true}
	cur := &cursor{w: u.cfg.Window}

	for len(queue) > 0 && !cur.exhausted() {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := queue[0]
		queue = queue[1:]

		pg, err := u.fetch(ctx, it.link)
		if err != nil {
			if it.depth == 1 {
				return err
			}
			u.logger.Warn("skipping page", "link", it.link, "err", err)
			continue
		}

		if take, _ := cur.admit(); take {
			meta := core.Metadata{SourceKey: it.link}
			if pg.title != "" {
				meta[TitleKey] = pg.title
			}
			if pg.description != "" {
				meta[DescriptionKey] = pg.description
			}
			if pg.language != "" {
				meta[LanguageKey] = pg.language
			}
			if err := emit(&core.Record{TextChunk: core.StringPtr(pg.text), Metadata: meta}); err != nil {
				return err
			}
		}

		if it.depth >= u.cfg.MaxDepth {
			continue
		}
		for _, link := range pg.links {
			next, ok := u.follow(it.link, link)
			if !ok || visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, item{link: next, depth: it.depth + 1})
		}
	}
	u.logger.Debug("crawl finished", "emitted", cur.emitted, "visited", len(visited))
	return nil
}

// follow resolves href against the page and keeps it when it stays under
// the crawl prefix.
func (u *URL) follow(pageURL, href string) (string, bool) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	link := abs.String()
	return link, strings.HasPrefix(link, u.prefix)
}

func (u *URL) fetch(ctx context.Context, link string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s: %s", ErrFetch, link, resp.Status)
	}
	body := io.LimitReader(resp.Body, maxPageSize)

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, err)
		}
		return &page{text: string(data)}, nil
	}

	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", link, err)
	}
	return extract(doc), nil
}

var skipped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Pre: true, atom.Blockquote: true, atom.Table: true, atom.Ul: true, atom.Ol: true,
}

// extract collects visible text, head metadata and anchors.
func extract(doc *html.Node) *page {
	pg := &page{}
	var sb strings.Builder
	var walk func(n *html.Node, inHead bool)
	walk = func(n *html.Node, inHead bool) {
		switch n.Type {
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Html:
				pg.language = attr(n, "lang")
			case atom.Title:
				pg.title = strings.TrimSpace(textOf(n))
			case atom.Meta:
				if strings.EqualFold(attr(n, "name"), "description") {
					pg.description = strings.TrimSpace(attr(n, "content"))
				}
			case atom.A:
				if href := attr(n, "href"); href != "" {
					pg.links = append(pg.links, href)
				}
			}
			if n.DataAtom == atom.Head {
				inHead = true
			}
			if blocks[n.DataAtom] {
				sb.WriteByte('\n')
			}
		case html.TextNode:
			if !inHead {
				if words := strings.Fields(n.Data); len(words) > 0 {
					sb.WriteString(strings.Join(words, " "))
					sb.WriteByte(' ')
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && skipped[c.DataAtom] {
				continue
			}
			walk(c, inHead)
		}
	}
	walk(doc, false)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	pg.text = strings.Join(lines, "\n")
	return pg
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}
