package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/poiesic/docpipe/core"
)

// Writer emits one compact JSON value per line. Output is buffered until
// Flush or Close.
type Writer struct {
	buf    *bufio.Writer
	enc    *json.Encoder
	closer io.Closer
}

// NewWriter writes to w. Closing the Writer flushes but does not close w.
func NewWriter(w io.Writer) *Writer {
	buf := bufio.NewWriter(w)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &Writer{buf: buf, enc: enc}
}

// Create writes to the file at path, truncating it unless appendMode is
// set. An empty path or "-" writes to stdout.
func Create(path string, appendMode bool) (*Writer, error) {
	if path == "" || path == "-" {
		return NewWriter(os.Stdout), nil
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	w := NewWriter(f)
	w.closer = f
	return w, nil
}

// Write encodes v followed by a newline.
func (w *Writer) Write(v any) error {
	return w.enc.Encode(v)
}

// WriteRecord encodes a record with all four fields.
func (w *Writer) WriteRecord(rec *core.Record) error {
	return w.Write(rec)
}

// Flush writes buffered output.
func (w *Writer) Flush() error {
	return w.buf.Flush()
}

// Close flushes and closes the file, if Create opened one.
func (w *Writer) Close() error {
	err := w.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
