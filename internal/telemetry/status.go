package telemetry

import (
	"strings"
	"sync"
	"time"
)

const statusDedupeWindow = 300 * time.Millisecond

// Status is the user-facing status notifier. Repeats of the same message
// inside the dedupe window are suppressed so hotkey storms do not flood the
// notification layer.
type Status struct {
	mu      sync.Mutex
	lastMsg string
	lastAt  time.Time
	errSet  bool
	log     *Logger
	sinks   []func(string)
	now     func() time.Time
}

func NewStatus(log *Logger, sinks ...func(string)) *Status {
	return &Status{log: log, sinks: sinks, now: time.Now}
}

func looksError(msg string) bool {
	t := strings.ToLower(strings.TrimSpace(msg))
	return strings.Contains(t, "error") || strings.Contains(t, "failed")
}

func (s *Status) Set(msg string) {
	now := s.now()
	s.mu.Lock()
	if msg == s.lastMsg && now.Sub(s.lastAt) < statusDedupeWindow {
		s.mu.Unlock()
		s.log.Event("status_suppressed", map[string]any{"message": msg})
		return
	}
	s.lastMsg = msg
	s.lastAt = now
	s.errSet = looksError(msg)
	sinks := s.sinks
	s.mu.Unlock()

	s.log.Event("status", map[string]any{"message": msg})
	for _, sink := range sinks {
		sink(msg)
	}
}

// Current returns the last status message and whether it looked like an error.
func (s *Status) Current() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMsg, s.errSet
}
