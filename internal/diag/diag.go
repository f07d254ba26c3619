// Package diag defines the logging collaborator the engine is built
// against, replacing the ad hoc log.Printf call sites a first draft would
// scatter through the protocol code with one small injected sink.
package diag

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Diagnostics is the sink every engine component logs through. It never
// returns an error and never panics: logging must not be a second source
// of failure in a core whose own error handling design says "no error
// condition is fatal".
type Diagnostics interface {
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StdDiagnostics wraps a standard library *log.Logger, the only logging
// approach that appears anywhere in the corpus this engine was built
// against.
type StdDiagnostics struct {
	logger *log.Logger
}

// NewStd wraps logger. A nil logger falls back to log.Default().
func NewStd(logger *log.Logger) *StdDiagnostics {
	if logger == nil {
		logger = log.Default()
	}
	return &StdDiagnostics{logger: logger}
}

func (d *StdDiagnostics) Infof(format string, args ...any)  { d.logger.Printf("INFO "+format, args...) }
func (d *StdDiagnostics) Warnf(format string, args ...any)  { d.logger.Printf("WARN "+format, args...) }
func (d *StdDiagnostics) Errorf(format string, args ...any) { d.logger.Printf("ERROR "+format, args...) }

// NopDiagnostics discards everything. Useful as a default so production
// code never has to nil-check a Diagnostics collaborator.
type NopDiagnostics struct{}

func (NopDiagnostics) Infof(string, ...any)  {}
func (NopDiagnostics) Warnf(string, ...any)  {}
func (NopDiagnostics) Errorf(string, ...any) {}

var levelRank = map[string]int{"info": 0, "warn": 1, "error": 2}

// leveled wraps a Diagnostics and drops calls below a minimum level.
type leveled struct {
	inner Diagnostics
	min   int
}

// NewLeveled wraps inner so only calls at or above minLevel ("info",
// "warn", or "error") reach it. An unrecognized minLevel is treated as
// "info".
func NewLeveled(inner Diagnostics, minLevel string) Diagnostics {
	min, ok := levelRank[strings.ToLower(minLevel)]
	if !ok {
		min = levelRank["info"]
	}
	return &leveled{inner: inner, min: min}
}

func (d *leveled) Infof(format string, args ...any) {
	if d.min <= levelRank["info"] {
		d.inner.Infof(format, args...)
	}
}

func (d *leveled) Warnf(format string, args ...any) {
	if d.min <= levelRank["warn"] {
		d.inner.Warnf(format, args...)
	}
}

func (d *leveled) Errorf(format string, args ...any) {
	if d.min <= levelRank["error"] {
		d.inner.Errorf(format, args...)
	}
}

// Entry is one recorded log line, captured by RecordingDiagnostics.
type Entry struct {
	Level   string
	Message string
}

// RecordingDiagnostics captures every call for test assertions instead of
// writing anywhere. Safe for concurrent use since the engine may log from
// a timer callback concurrently with a test reading Entries.
type RecordingDiagnostics struct {
	mu      sync.Mutex
	entries []Entry
}

func (d *RecordingDiagnostics) Infof(format string, args ...any)  { d.record("INFO", format, args) }
func (d *RecordingDiagnostics) Warnf(format string, args ...any)  { d.record("WARN", format, args) }
func (d *RecordingDiagnostics) Errorf(format string, args ...any) { d.record("ERROR", format, args) }

func (d *RecordingDiagnostics) record(level, format string, args []any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Entries returns a copy of everything recorded so far.
func (d *RecordingDiagnostics) Entries() []Entry {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Entry, len(d.entries))
	copy(out, d.entries)
	return out
}
