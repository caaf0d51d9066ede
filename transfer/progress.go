package transfer

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Progress writes a single self-overwriting status line. A total of zero
// or less means the total is unknown.
type Progress struct {
	mu        sync.Mutex
	writer    io.Writer
	total     int
	current   int
	startTime time.Time
}

// NewProgress returns nil when w is nil; all methods accept a nil receiver.
func NewProgress(w io.Writer, total int) *Progress {
	if w == nil {
		return nil
	}
	return &Progress{writer: w, total: total, startTime: time.Now()}
}

// Add records n more processed records and redraws the line.
func (p *Progress) Add(n int) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current += n
	if p.total > 0 && p.current > p.total {
		p.current = p.total
	}
	p.report()
}

// Current returns the number of records counted so far.
func (p *Progress) Current() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish redraws the line one last time and ends it.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.report()
	fmt.Fprintln(p.writer)
}

// report must be called with the lock held.
func (p *Progress) report() {
	rate := float64(p.current) / max(time.Since(p.startTime).Seconds(), 1e-9)
	if p.total > 0 {
		fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f records/s",
			p.current, p.total, float64(p.current)/float64(p.total)*100, rate)
		return
	}
	fmt.Fprintf(p.writer, "\rProgress: %d - %.1f records/s", p.current, rate)
}
