package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	return newApp().Run(append([]string{"docpipe", "--log-level", "error"}, args...))
}

func writeLines(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.jsonl")
	var data []byte
	for _, l := range lines {
		data = append(data, l...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func readRecords(t *testing.T, path string) []*core.Record {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []*core.Record
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var rec core.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		out = append(out, &rec)
	}
	require.NoError(t, sc.Err())
	return out
}

func outPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "out.jsonl")
}

func TestSetupLogger(t *testing.T) {
	err := newApp().Run([]string{"docpipe", "--log-level", "loud", "chunk", "--size", "3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestChunkCommand(t *testing.T) {
	in := writeLines(t, `{"id":"p","text_chunk":"abcdefghij","metadata":{"k":"v"}}`)
	out := outPath(t)

	require.NoError(t, run(t, "chunk", "--size", "4", "--overlap", "1", "--offset-field", "--in", in, "--out", out))
	recs := readRecords(t, out)
	require.Len(t, recs, 3)
	assert.Equal(t, "abcd", recs[0].Text())
	assert.Equal(t, "ghij", recs[2].Text())
	assert.Equal(t, "v", recs[1].Metadata["k"])
	assert.Equal(t, int64(3), recs[1].Metadata["start_index"])
	assert.NotEqual(t, "p", recs[0].IDValue())

	err := run(t, "chunk", "--size", "4", "--overlap", "4", "--in", in, "--out", out)
	assert.Error(t, err)
}

func TestIDCommand(t *testing.T) {
	in := writeLines(t, `{"id":null,"text_chunk":"hello","metadata":null}`)
	out := outPath(t)

	require.NoError(t, run(t, "id", "--doc-hash", "--in", in, "--out", out))
	recs := readRecords(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", recs[0].IDValue())

	assert.Error(t, run(t, "id", "--uuid", "--ulid", "--in", in, "--out", out))
	assert.Error(t, run(t, "id", "--in", in, "--out", out))
}

func TestMetaCommand(t *testing.T) {
	in := writeLines(t,
		`{"id":"1","text_chunk":"a","metadata":{"keep":"x","drop":"y"}}`,
		`{"id":"2","text_chunk":"b","metadata":null}`,
	)
	out := outPath(t)

	require.NoError(t, run(t, "meta", "-a", "n=42", "-a", "label={{ .id }}-tag", "-k", "drop", "--in", in, "--out", out))
	recs := readRecords(t, out)
	require.Len(t, recs, 2)
	assert.Equal(t, core.Metadata{"keep": "x", "n": int64(42), "label": "1-tag"}, recs[0].Metadata)
	assert.Equal(t, core.Metadata{"n": int64(42), "label": "2-tag"}, recs[1].Metadata)

	assert.Error(t, run(t, "meta", "--in", in, "--out", out))
	assert.Error(t, run(t, "meta", "-a", "novalue", "--in", in, "--out", out))
}

func TestEmojiCleanCommand(t *testing.T) {
	in := writeLines(t, `{"id":"1","text_chunk":"hi 😀 there","metadata":{"mood":"🎉party"}}`)
	out := outPath(t)

	require.NoError(t, run(t, "emoji-clean", "--meta", "--in", in, "--out", out))
	recs := readRecords(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, "hi  there", recs[0].Text())
	assert.Equal(t, "party", recs[0].Metadata["mood"])
}

func TestEmbedCommand(t *testing.T) {
	in := writeLines(t,
		`{"id":"1","text_chunk":"alpha","metadata":null}`,
		`{"id":"2","text_chunk":"beta","metadata":null,"embedding":[1,2]}`,
	)
	out := outPath(t)

	require.NoError(t, run(t, "embed", "--ef", "default", "--dimensions", "8", "--batch-size", "1", "--in", in, "--out", out))
	recs := readRecords(t, out)
	require.Len(t, recs, 2)
	assert.Len(t, recs[0].Embedding, 8)
	assert.Equal(t, []float32{1, 2}, recs[1].Embedding)

	assert.Error(t, run(t, "embed", "--ef", "nope", "--in", in, "--out", out))
}

func TestTextCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("beta"), 0o644))
	out := outPath(t)

	require.NoError(t, run(t, "txt", "--offset", "1", "--out", out, dir))
	recs := readRecords(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, "beta", recs[0].Text())
	assert.Equal(t, filepath.Join(dir, "b.md"), recs[0].Metadata["source"])

	assert.Error(t, run(t, "txt", "--out", out))
}

func TestPDFCommand(t *testing.T) {
	out := outPath(t)

	require.NoError(t, run(t, "pdf", "--offset", "1", "--out", out, filepath.Join("testdata", "pages.pdf")))
	recs := readRecords(t, out)
	require.Len(t, recs, 1)
	assert.Contains(t, recs[0].Text(), "Second page")
	assert.Equal(t, int64(1), recs[0].Metadata["page"])
	assert.Equal(t, int64(2), recs[0].Metadata["total_pages"])

	require.NoError(t, run(t, "pdf", "--out", out, "testdata"))
	assert.Len(t, readRecords(t, out), 2)
}

func TestCSVCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.csv")
	require.NoError(t, os.WriteFile(path, []byte("title;body\nOne;first\nTwo;second\n"), 0o644))
	out := outPath(t)

	require.NoError(t, run(t, "csv", "--doc-column", "body", "--delimiter", ";", "--out", out, path))
	recs := readRecords(t, out)
	require.Len(t, recs, 2)
	assert.Equal(t, "second", recs[1].Text())
	assert.Equal(t, "Two", recs[1].Metadata["title"])

	assert.Error(t, run(t, "csv", "--delimiter", ";;", "--out", out, path))
}

func TestImportExportCommands(t *testing.T) {
	store := t.TempDir()
	uri := "file://" + store + "/docs"
	in := writeLines(t,
		`{"id":"1","text_chunk":"alpha","metadata":{"n":1}}`,
		`{"id":"2","text_chunk":"beta","metadata":{"n":2}}`,
		`{"id":"3","text_chunk":"gamma","metadata":{"n":3}}`,
	)

	assert.Error(t, run(t, "import", "--in", in, uri), "missing collection without --create")
	require.NoError(t, run(t, "import", "--create", "--ef", "default", "--dimensions", "4", "--in", in, uri))

	out := outPath(t)
	require.NoError(t, run(t, "export", "--out", out, uri))
	recs := readRecords(t, out)
	require.Len(t, recs, 3)
	assert.Equal(t, "alpha", recs[0].Text())
	assert.Len(t, recs[0].Embedding, 4)

	out = outPath(t)
	require.NoError(t, run(t, "export", "--where", `{"n": {"$gte": 2}}`, "--limit", "5", "--out", out, uri))
	assert.Len(t, readRecords(t, out), 2)

	out = outPath(t)
	require.NoError(t, run(t, "export", "--format", "jsonl", "--doc-feature", "document", "--out", out, uri))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"document":"alpha"`)

	assert.Error(t, run(t, "export", "--format", "csv", "--out", out, uri))
	assert.Error(t, run(t, "export", "--out", out))
}

func TestDatasetCommands(t *testing.T) {
	hub := t.TempDir()
	uri := "file://" + hub + "/docs?split=test"
	in := writeLines(t,
		`{"id":"1","text_chunk":"alpha","metadata":null}`,
		`{"id":"2","text_chunk":"beta","metadata":null}`,
	)

	require.NoError(t, run(t, "ds", "export", "--in", in, uri))
	_, err := os.Stat(filepath.Join(hub, "docs", "test.jsonl"))
	require.NoError(t, err)

	out := outPath(t)
	require.NoError(t, run(t, "ds", "import", "--out", out, uri+"&offset=1"))
	recs := readRecords(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, "beta", recs[0].Text())
	assert.Equal(t, "2", recs[0].IDValue())

	assert.Error(t, run(t, "ds", "import", "--out", out, "file://"+hub+"/missing"))
}

func TestReembedCommand(t *testing.T) {
	store := t.TempDir()
	uri := "file://" + store + "/docs"
	in := writeLines(t,
		`{"id":"1","text_chunk":"alpha","metadata":null,"embedding":[0,0]}`,
		`{"id":"2","text_chunk":"beta","metadata":null,"embedding":[0,0]}`,
	)
	require.NoError(t, run(t, "import", "--create", "--in", in, uri))

	assert.Error(t, run(t, "reembed", uri), "--ef is required")
	require.NoError(t, run(t, "reembed", "--ef", "default", "--dimensions", "3", "--normalize", uri))

	out := outPath(t)
	require.NoError(t, run(t, "export", "--out", out, uri))
	recs := readRecords(t, out)
	require.Len(t, recs, 2)
	assert.Len(t, recs[0].Embedding, 3)
	assert.Len(t, recs[1].Embedding, 3)
}

func TestGenerateCommand(t *testing.T) {
	out := outPath(t)
	queries := filepath.Join(t.TempDir(), "queries.jsonl")

	require.NoError(t, run(t, "gen", "-n", "20", "--seed", "3", "--samples", "2", "--queries", queries, "--out", out))
	recs := readRecords(t, out)
	require.Len(t, recs, 20)
	assert.Contains(t, recs[0].Metadata, "int_val")

	data, err := os.ReadFile(queries)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tags":["range","float","inclusive"]`)

	assert.Error(t, run(t, "gen", "-n", "0", "--out", out))
}
