package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func produceAll(t *testing.T, p pipeline.Producer) []*core.Record {
	t.Helper()
	var out []*core.Record
	err := p.Produce(context.Background(), func(rec *core.Record) error {
		out = append(out, rec)
		return nil
	})
	require.NoError(t, err)
	return out
}

func texts(recs []*core.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Text()
	}
	return out
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func textTree(t *testing.T) string {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "alpha")
	writeFile(t, filepath.Join(dir, "b.md"), "beta")
	writeFile(t, filepath.Join(dir, "c.txt"), "gamma")
	writeFile(t, filepath.Join(dir, ".hidden.md"), "hidden")
	writeFile(t, filepath.Join(dir, "sub", "d.md"), "delta")
	writeFile(t, filepath.Join(dir, ".git", "e.md"), "git")
	return dir
}

func TestText(t *testing.T) {
	dir := textTree(t)

	tests := []struct {
		name string
		cfg  TextConfig
		want []string
	}{
		{"flat", TextConfig{Root: dir}, []string{"alpha", "beta"}},
		{"recursive", TextConfig{Root: dir, Recursive: true}, []string{"alpha", "beta", "delta"}},
		{"pattern", TextConfig{Root: dir, Pattern: "*.txt"}, []string{"gamma"}},
		{"offset", TextConfig{Root: dir, Recursive: true, Window: Window{Offset: 1}}, []string{"beta", "delta"}},
		{"limit", TextConfig{Root: dir, Recursive: true, Window: Window{Limit: 2}}, []string{"alpha", "beta"}},
		{"offset and limit", TextConfig{Root: dir, Recursive: true, Window: Window{Offset: 1, Limit: 1}}, []string{"beta"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewText(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, texts(produceAll(t, p)))
		})
	}
}

func TestText_SourceMetadata(t *testing.T) {
	dir := textTree(t)
	p, err := NewText(TextConfig{Root: dir, Window: Window{Limit: 1}})
	require.NoError(t, err)

	recs := produceAll(t, p)
	require.Len(t, recs, 1)
	assert.Equal(t, filepath.Join(dir, "a.md"), recs[0].Metadata[SourceKey])
	assert.Nil(t, recs[0].ID)
}

func TestText_Errors(t *testing.T) {
	_, err := NewText(TextConfig{Root: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	_, err = NewText(TextConfig{Root: t.TempDir(), Pattern: "[bad"})
	assert.Error(t, err)
}

const sampleCSV = "title,body,year\nFirst,hello world,2001\nSecond,\"quoted, text\",2002\nThird,bye,2003\n"

func csvFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "data.csv")
	writeFile(t, path, content)
	return path
}

func TestCSV_DocumentColumn(t *testing.T) {
	path := csvFile(t, sampleCSV)
	p, err := NewCSV(CSVConfig{Path: path, DocumentColumn: "body"})
	require.NoError(t, err)

	recs := produceAll(t, p)
	assert.Equal(t, []string{"hello world", "quoted, text", "bye"}, texts(recs))
	assert.Equal(t, core.Metadata{
		SourceKey: path, RowKey: int64(1), "title": "Second", "year": "2002",
	}, recs[1].Metadata)
}

func TestCSV_MetadataColumns(t *testing.T) {
	path := csvFile(t, sampleCSV)

	p, err := NewCSV(CSVConfig{Path: path, DocumentColumn: "body", MetadataColumns: []string{"year"}})
	require.NoError(t, err)
	recs := produceAll(t, p)
	assert.Equal(t, core.Metadata{SourceKey: path, RowKey: int64(0), "year": "2001"}, recs[0].Metadata)

	p, err = NewCSV(CSVConfig{Path: path, MetadataColumns: []string{"year"}})
	require.NoError(t, err)
	recs = produceAll(t, p)
	assert.Equal(t, "title: First\nbody: hello world", recs[0].Text())
	assert.Equal(t, "2001", recs[0].Metadata["year"])
}

func TestCSV_WindowAndDelimiter(t *testing.T) {
	path := csvFile(t, "doc;n\na;1\nb;2\nc;3\nd;4\n")
	p, err := NewCSV(CSVConfig{Path: path, DocumentColumn: "doc", Delimiter: ';', Window: Window{Offset: 1, Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, texts(produceAll(t, p)))
}

func TestCSV_Errors(t *testing.T) {
	path := csvFile(t, sampleCSV)
	_, err := NewCSV(CSVConfig{Path: path, DocumentColumn: "missing"})
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = NewCSV(CSVConfig{Path: path, MetadataColumns: []string{"nope"}})
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = NewCSV(CSVConfig{Path: csvFile(t, "")})
	assert.ErrorIs(t, err, ErrEmptyCSV)
}

func site(t *testing.T) *httptest.Server {
	pages := map[string]string{
		"/docs/": `<html lang="en"><head><title>Home</title>
<meta name="description" content="Start page"><style>p{}</style></head>
<body><h1>Welcome</h1><p>Read the <a href="guide.html">guide</a> or
<a href="/docs/api.html#top">api</a>.</p><a href="/elsewhere.html">out</a>
<a href="https://example.org/">external</a><script>var x = 1;</script></body></html>`,
		"/docs/guide.html": `<html><head><title>Guide</title></head><body><p>Guide text</p><a href="deep.html">deep</a></body></html>`,
		"/docs/api.html":   `<html><head><title>API</title></head><body><p>API text</p></body></html>`,
		"/docs/deep.html":  `<html><body><p>Deep text</p></body></html>`,
		"/elsewhere.html":  `<html><body>outside</body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestURL_SinglePage(t *testing.T) {
	srv := site(t)
	p, err := NewURL(URLConfig{URL: srv.URL + "/docs/"}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	recs := produceAll(t, p)
	require.Len(t, recs, 1)
	assert.Equal(t, "Welcome\nRead the guide or api . out external", recs[0].Text())
	assert.Equal(t, core.Metadata{
		SourceKey:      srv.URL + "/docs/",
		TitleKey:       "Home",
		DescriptionKey: "Start page",
		LanguageKey:    "en",
	}, recs[0].Metadata)
}

func TestURL_Crawl(t *testing.T) {
	srv := site(t)

	p, err := NewURL(URLConfig{URL: srv.URL + "/docs/", MaxDepth: 2}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Welcome\nRead the guide or api . out external", "Guide text deep", "API text"},
		texts(produceAll(t, p)))

	p, err = NewURL(URLConfig{URL: srv.URL + "/docs/", MaxDepth: 3, Window: Window{Offset: 1, Limit: 2}},
		WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Guide text deep", "API text"}, texts(produceAll(t, p)))

	p, err = NewURL(URLConfig{URL: srv.URL + "/docs/", MaxDepth: 3, Window: Window{Offset: 3}},
		WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	assert.Equal(t, []string{"Deep text"}, texts(produceAll(t, p)))
}

func TestURL_Errors(t *testing.T) {
	_, err := NewURL(URLConfig{URL: "ftp://example.com/"})
	assert.ErrorIs(t, err, ErrUnsupportedURL)

	srv := site(t)
	p, err := NewURL(URLConfig{URL: srv.URL + "/missing"}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	err = p.Produce(context.Background(), func(*core.Record) error { return nil })
	assert.ErrorIs(t, err, ErrFetch)
}

// qdrantServer pages through points two at a time using integer cursors.
func qdrantServer(t *testing.T, points []map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/docs/points/scroll", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		var req struct {
			Limit  int  `json:"limit"`
			Offset *int `json:"offset"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		start := 0
		if req.Offset != nil {
			start = *req.Offset
		}
		end := min(start+req.Limit, len(points))
		var next any
		if end < len(points) {
			next = end
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"result": map[string]any{"points": points[start:end], "next_page_offset": next},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQdrant(t *testing.T) {
	var points []map[string]any
	for i := range 5 {
		points = append(points, map[string]any{
			"id":      i,
			"vector":  []float32{float32(i), 1},
			"payload": map[string]any{"text": fmt.Sprintf("doc %d", i), "n": i, "tags": []string{"a", "b"}},
		})
	}
	srv := qdrantServer(t, points)

	p, err := NewQdrant(QdrantConfig{
		URI:       srv.URL + "/docs?doc_payload_field=text",
		BatchSize: 2,
		APIKey:    "secret",
	}, srv.Client())
	require.NoError(t, err)
	recs := produceAll(t, p)
	require.Len(t, recs, 5)
	assert.Equal(t, "doc 3", recs[3].Text())
	assert.Equal(t, "3", recs[3].IDValue())
	assert.Equal(t, []float32{3, 1}, recs[3].Embedding)
	assert.Equal(t, core.Metadata{"n": int64(3), "tags": "a,b"}, recs[3].Metadata)

	p, err = NewQdrant(QdrantConfig{
		URI:    srv.URL + "/docs?doc_payload_field=text&batch_size=2&offset=1&limit=3",
		APIKey: "secret",
	}, srv.Client())
	require.NoError(t, err)
	assert.Equal(t, []string{"doc 1", "doc 2", "doc 3"}, texts(produceAll(t, p)))
}

func TestQdrant_NamedVectors(t *testing.T) {
	srv := qdrantServer(t, []map[string]any{{
		"id":      "p1",
		"vector":  map[string]any{"dense": []float32{1, 2}, "title": []float32{3}},
		"payload": map[string]any{"text": "x"},
	}})

	p, err := NewQdrant(QdrantConfig{URI: srv.URL + "/docs?doc_payload_field=text&vector=dense", APIKey: "secret"}, srv.Client())
	require.NoError(t, err)
	recs := produceAll(t, p)
	require.Len(t, recs, 1)
	assert.Equal(t, []float32{1, 2}, recs[0].Embedding)
	assert.Nil(t, recs[0].Metadata)

	p, err = NewQdrant(QdrantConfig{URI: srv.URL + "/docs?doc_payload_field=text", APIKey: "secret"}, srv.Client())
	require.NoError(t, err)
	err = p.Produce(context.Background(), func(*core.Record) error { return nil })
	assert.ErrorIs(t, err, ErrInvalidQdrantURI)
}

func TestNewQdrant_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  QdrantConfig
		err  error
	}{
		{"scheme", QdrantConfig{URI: "grpc://localhost:6334/docs?doc_payload_field=text"}, ErrUnsupportedURL},
		{"no collection", QdrantConfig{URI: "http://localhost:6333?doc_payload_field=text"}, ErrInvalidQdrantURI},
		{"no doc field", QdrantConfig{URI: "http://localhost:6333/docs"}, ErrInvalidQdrantURI},
		{"bad limit", QdrantConfig{URI: "http://localhost/docs?doc_payload_field=t&limit=x"}, ErrInvalidQdrantURI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQdrant(tt.cfg, nil)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	p, err := NewQdrant(QdrantConfig{URI: "http://localhost/docs", DocField: "body"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:6333", p.base)
}

// writePDF writes a PDF with one Helvetica text line per page.
func writePDF(t *testing.T, path string, pages ...string) {
	t.Helper()
	var objects []string
	kids := ""
	fontID := 3 + 2*len(pages)
	for i, text := range pages {
		pageID, contentID := 3+2*i, 4+2*i
		kids += fmt.Sprintf("%d 0 R ", pageID)
		stream := fmt.Sprintf("BT /F1 12 Tf 20 100 Td (%s) Tj ET", text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 300 200] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontID, contentID),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}
	objects = append([]string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.TrimSpace(kids), len(pages)),
	}, objects...)
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	writeFile(t, path, buf.String())
}

func TestPDF(t *testing.T) {
	dir := t.TempDir()
	writePDF(t, filepath.Join(dir, "a.pdf"), "Alpha one", "Alpha two")
	writePDF(t, filepath.Join(dir, "b.pdf"), "Beta one")
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a pdf")
	writePDF(t, filepath.Join(dir, "sub", "c.pdf"), "Gamma one")

	p, err := NewPDF(PDFConfig{Root: dir})
	require.NoError(t, err)
	recs := produceAll(t, p)
	require.Len(t, recs, 3)
	assert.Contains(t, recs[0].Text(), "Alpha one")
	assert.Contains(t, recs[1].Text(), "Alpha two")
	assert.Contains(t, recs[2].Text(), "Beta one")
	assert.Equal(t, core.Metadata{
		SourceKey:     filepath.Join(dir, "a.pdf"),
		PageKey:       int64(1),
		TotalPagesKey: int64(2),
	}, recs[1].Metadata)

	p, err = NewPDF(PDFConfig{Root: dir, Recursive: true, Window: Window{Offset: 1, Limit: 2}})
	require.NoError(t, err)
	recs = produceAll(t, p)
	require.Len(t, recs, 2)
	assert.Contains(t, recs[0].Text(), "Alpha two")
	assert.Contains(t, recs[1].Text(), "Beta one")

	p, err = NewPDF(PDFConfig{Root: filepath.Join(dir, "sub", "c.pdf")})
	require.NoError(t, err)
	recs = produceAll(t, p)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Text(), "Gamma one")
	assert.Equal(t, int64(0), recs[0].Metadata[PageKey])
}

func TestPDF_Errors(t *testing.T) {
	_, err := NewPDF(PDFConfig{Root: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.pdf"), "not a pdf at all")
	p, err := NewPDF(PDFConfig{Root: dir})
	require.NoError(t, err)
	err = p.Produce(context.Background(), func(*core.Record) error { return nil })
	assert.Error(t, err)
}
