package telemetry

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Logger appends structured events to a JSONL telemetry file. When debug is
// off every call is a no-op so hot paths never pay for formatting.
type Logger struct {
	mu      sync.Mutex
	log     *slog.Logger
	file    *os.File
	enabled bool
}

func Nop() *Logger {
	return &Logger{log: slog.New(newJSONLHandler(io.Discard))}
}

func NewFileLogger(dir, filename string, debug bool) (*Logger, error) {
	if !debug {
		return Nop(), nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Nop(), err
	}
	path := filepath.Join(dir, filename)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return Nop(), err
	}
	return &Logger{log: slog.New(newJSONLHandler(f)), file: f, enabled: true}, nil
}

// newJSONLHandler emits one {"ts", "event", "data": {...}} object per line.
func newJSONLHandler(w io.Writer) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.TimeKey:
				a.Key = "ts"
			case slog.MessageKey:
				a.Key = "event"
			case slog.LevelKey:
				return slog.Attr{}
			}
			return a
		},
	})
}

func (l *Logger) Enabled() bool { return l.enabled }

// Event records one telemetry event with arbitrary key/value data.
func (l *Logger) Event(event string, data map[string]any) {
	if !l.enabled {
		return
	}
	attrs := make([]any, 0, len(data)*2)
	for k, v := range data {
		attrs = append(attrs, k, v)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log.Info(event, slog.Group("data", attrs...))
}

func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
