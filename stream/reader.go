// Package stream reads and writes line-delimited JSON over files and the
// standard streams.
package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/poiesic/docpipe/core"
)

// MaxLineSize bounds a single input line.
const MaxLineSize = 64 << 20

// Reader yields the non-blank lines of a JSONL stream.
type Reader struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReader reads from r. Closing the Reader does not close r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), MaxLineSize)
	return &Reader{scanner: scanner}
}

// Open reads from the file at path, or from stdin when path is empty or "-".
func Open(path string, stdin io.Reader) (*Reader, error) {
	if path == "" || path == "-" {
		return NewReader(stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	r := NewReader(f)
	r.closer = f
	return r, nil
}

// NextLine returns the next non-blank line, or io.EOF at the end of input.
// The returned slice is owned by the caller.
func (r *Reader) NextLine() ([]byte, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		return bytes.Clone(line), nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: line %d", ErrLineTooLong, r.line+1)
		}
		return nil, err
	}
	return nil, io.EOF
}

// Next decodes the next line into a map. Numbers are kept as json.Number.
func (r *Reader) Next() (map[string]any, error) {
	line, err := r.NextLine()
	if err != nil {
		return nil, err
	}
	return DecodeObject(line)
}

// ReadRecord decodes the next line as a Record.
func (r *Reader) ReadRecord() (*core.Record, error) {
	line, err := r.NextLine()
	if err != nil {
		return nil, err
	}
	var rec core.Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return nil, fmt.Errorf("line %d: %w: %w", r.line, core.ErrInvalidRecord, err)
	}
	return &rec, nil
}

// Line returns the number of physical lines consumed so far.
func (r *Reader) Line() int {
	return r.line
}

// Close closes the underlying file, if Open created one.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// DecodeObject parses one JSON object, keeping numbers as json.Number.
func DecodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotObject, err)
	}
	if obj == nil {
		return nil, ErrNotObject
	}
	return obj, nil
}
