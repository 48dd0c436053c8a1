// Package logtest provides a Logger that records entries for assertions.
package logtest

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/deaddrop/internal/logging"
)

// Entry is one recorded log call.
type Entry struct {
	Level string
	Msg   string
	Args  []any
}

// Recorder is a concurrency-safe logging.Logger that keeps every entry.
// Children created with With share the parent's entry list.
type Recorder struct {
	mu      *sync.Mutex
	entries *[]Entry
	fields  []any
}

func New() *Recorder {
	return &Recorder{mu: &sync.Mutex{}, entries: &[]Entry{}}
}

func (r *Recorder) record(level, msg string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := append(append([]any{}, r.fields...), args...)
	*r.entries = append(*r.entries, Entry{Level: level, Msg: msg, Args: all})
}

func (r *Recorder) Debug(_ context.Context, msg string, args ...any) { r.record("DEBUG", msg, args) }
func (r *Recorder) Info(_ context.Context, msg string, args ...any)  { r.record("INFO", msg, args) }
func (r *Recorder) Warn(_ context.Context, msg string, args ...any)  { r.record("WARN", msg, args) }
func (r *Recorder) Error(_ context.Context, msg string, args ...any) { r.record("ERROR", msg, args) }

func (r *Recorder) With(args ...any) logging.Logger {
	return &Recorder{mu: r.mu, entries: r.entries, fields: append(append([]any{}, r.fields...), args...)}
}

// Entries returns a snapshot of all recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Entry(nil), *r.entries...)
}

// Count returns how many entries were logged at level with message msg.
func (r *Recorder) Count(level, msg string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level && e.Msg == msg {
			n++
		}
	}
	return n
}

// Contains reports whether any entry at level has message msg.
func (r *Recorder) Contains(level, msg string) bool {
	return r.Count(level, msg) > 0
}
