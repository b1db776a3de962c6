// Package clipboard provides the system clipboard abstraction and the
// two-phase answer committer.
package clipboard

import (
	"context"
	"errors"
	"time"

	"github.com/agenthands/clipsolve/internal/telemetry"
)

var ErrUnavailable = errors.New("clipboard unavailable")

// Clipboard is the minimal surface the solver needs. ReadImagePNG returns
// ErrUnavailable when the clipboard holds no image.
type Clipboard interface {
	ReadText() (string, error)
	ReadImagePNG() ([]byte, error)
	WriteText(s string) error
}

// Writer retries transient write failures with a fixed delay.
type Writer struct {
	CB       Clipboard
	Attempts int
	Delay    time.Duration
}

func (w *Writer) attempts() int {
	if w.Attempts < 1 {
		return 1
	}
	return w.Attempts
}

func (w *Writer) Write(s string) error {
	var err error
	for i := 0; i < w.attempts(); i++ {
		if err = w.CB.WriteText(s); err == nil {
			return nil
		}
		if i < w.attempts()-1 {
			time.Sleep(w.Delay)
		}
	}
	return err
}

type CommitResult struct {
	WroteFull  bool
	WroteFinal bool
}

// Committer delivers the answer in two clipboard writes: first the full
// annotated output, then after a settle delay the bare final answer. The
// context is checked between the writes so a canceled solve never clobbers
// the clipboard with a stale final answer.
type Committer struct {
	Writer *Writer
	Settle time.Duration
	Log    *telemetry.Logger
}

func (c *Committer) Commit(ctx context.Context, full, final string) (CommitResult, error) {
	var res CommitResult
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := c.Writer.Write(full); err != nil {
		return res, err
	}
	res.WroteFull = true
	c.Log.Event("clipboard_write", map[string]any{"phase": "full", "chars": len(full)})

	select {
	case <-ctx.Done():
		return res, ctx.Err()
	case <-time.After(c.Settle):
	}

	if err := c.Writer.Write(final); err != nil {
		return res, err
	}
	res.WroteFinal = true
	c.Log.Event("clipboard_write", map[string]any{"phase": "final", "chars": len(final)})
	return res, nil
}
