// Package diagnostics provides a non-global, per-engine-instance event sink
// that every top-level operation threads through explicitly instead of
// calling log.Printf or writing to stdout/stderr directly.
package diagnostics

import (
	"log"
	"sync"

	"github.com/standardbeagle/codedup/internal/types"
)

// Sink collects DiagnosticEvents accumulated during one or more operations
// on the same Engine instance.
type Sink interface {
	Emit(event types.DiagnosticEvent)
	Events() []types.DiagnosticEvent
}

// memorySink is the default Sink: events are appended to an in-memory slice
// guarded by a mutex, and Warn/Error events are additionally forwarded to
// the stdlib log package — the one place this core calls log.Printf,
// mirroring the teacher's own ambient logging style without requiring a
// caller to wire a logger for basic console visibility.
type memorySink struct {
	mu       sync.Mutex
	events   []types.DiagnosticEvent
	toStderr bool
}

// NewMemorySink constructs the default Sink. When forwardToLog is true,
// Warn and Error events are also passed to log.Printf.
func NewMemorySink(forwardToLog bool) Sink {
	return &memorySink{toStderr: forwardToLog}
}

func (s *memorySink) Emit(event types.DiagnosticEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()

	if s.toStderr && (event.Level == types.DiagnosticWarn || event.Level == types.DiagnosticError) {
		if event.File != "" {
			log.Printf("[%s] %s: %s (%s)", event.Level, event.Component, event.Message, event.File)
		} else {
			log.Printf("[%s] %s: %s", event.Level, event.Component, event.Message)
		}
	}
}

func (s *memorySink) Events() []types.DiagnosticEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.DiagnosticEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Info is a convenience helper for emitting an informational event.
func Info(sink Sink, component, message string) {
	sink.Emit(types.DiagnosticEvent{Level: types.DiagnosticInfo, Component: component, Message: message})
}

// Warn is a convenience helper for emitting a warning event, optionally
// tagged with the file it concerns.
func Warn(sink Sink, component, message, file string) {
	sink.Emit(types.DiagnosticEvent{Level: types.DiagnosticWarn, Component: component, Message: message, File: file})
}

// Error is a convenience helper for emitting an error event carrying the
// underlying cause.
func Error(sink Sink, component, message string, err error) {
	sink.Emit(types.DiagnosticEvent{Level: types.DiagnosticError, Component: component, Message: message, Err: err})
}
