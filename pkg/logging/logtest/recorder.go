// Package logtest records notifications so tests can assert on them.
package logtest

import (
	"sync"

	"github.com/sudorandom/mandala-map/pkg/logging"
)

// Entry is one recorded notification.
type Entry struct {
	Level  string
	Msg    string
	Fields []logging.Field
}

// Field returns the value stored under key, or nil.
func (e Entry) Field(key string) any {
	for _, f := range e.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// Recorder is a logging.Logger that keeps every entry in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

func (r *Recorder) record(level, msg string, fields []logging.Field) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Msg: msg, Fields: fields})
}

func (r *Recorder) Debug(msg string, fields ...logging.Field) { r.record("debug", msg, fields) }
func (r *Recorder) Info(msg string, fields ...logging.Field)  { r.record("info", msg, fields) }
func (r *Recorder) Warn(msg string, fields ...logging.Field)  { r.record("warn", msg, fields) }
func (r *Recorder) Error(msg string, fields ...logging.Field) { r.record("error", msg, fields) }

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Level returns the entries recorded at the given level.
func (r *Recorder) Level(level string) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all entries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}
