package poller

import (
	"fmt"
	"io"
	"sync"
)

// Reporter receives the user-facing progress of a Loop.
type Reporter interface {
	// Succeeded is called after every confirmed attempt with the running count.
	Succeeded(action Action, count int64)
	// Refreshing is called before a refresh triggered by an unauthorized attempt.
	Refreshing()
}

// NopReporter discards all reports.
type NopReporter struct{}

func (NopReporter) Succeeded(Action, int64) {}
func (NopReporter) Refreshing()             {}

// ConsoleReporter prints one line per report.
type ConsoleReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleReporter creates a ConsoleReporter writing to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (r *ConsoleReporter) Succeeded(action Action, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.w, "%s star success (x%d)\n", action.title(), count)
}

func (r *ConsoleReporter) Refreshing() {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.w, "Login expired, refreshing token...")
}
