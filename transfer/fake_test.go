package transfer

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/poiesic/docpipe/storage"
)

// memCollection is an in-memory storage.Collection with hooks for failures
// and slow pages.
type memCollection struct {
	mu      sync.Mutex
	records []*core.Record
	gets    []storage.GetRequest
	writes  int

	getDelay func(offset int) time.Duration
	getErr   func(offset int) error
	writeErr func(call int, batch []*core.Record) error
}

var _ storage.Collection = (*memCollection)(nil)

func (m *memCollection) Name() string { return "mem" }

func (m *memCollection) Count(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *memCollection) Get(ctx context.Context, req storage.GetRequest) (*storage.Page, error) {
	m.mu.Lock()
	m.gets = append(m.gets, req)
	m.mu.Unlock()
	if m.getDelay != nil {
		time.Sleep(m.getDelay(req.Offset))
	}
	if m.getErr != nil {
		if err := m.getErr(req.Offset); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	page := &storage.Page{}
	skipped := 0
	for _, rec := range m.records {
		if !req.Matches(rec) {
			continue
		}
		if skipped < req.Offset {
			skipped++
			continue
		}
		if req.Limit > 0 && page.Len() >= req.Limit {
			break
		}
		page.Append(rec, req)
	}
	return page, nil
}

func (m *memCollection) Add(ctx context.Context, records []*core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if m.writeErr != nil {
		if err := m.writeErr(m.writes, records); err != nil {
			return err
		}
	}
	m.records = append(m.records, records...)
	return nil
}

func (m *memCollection) Upsert(ctx context.Context, records []*core.Record) error {
	return m.Add(ctx, records)
}

func (m *memCollection) ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.records))
	for i, rec := range m.records {
		out[i] = rec.IDValue()
	}
	return out
}

type sliceReader struct {
	lines []string
	pos   int
}

func (r *sliceReader) NextLine() ([]byte, error) {
	if r.pos >= len(r.lines) {
		return nil, io.EOF
	}
	line := r.lines[r.pos]
	r.pos++
	return []byte(line), nil
}
