package llm

import (
	"context"
	"strings"
	"time"

	"github.com/agenthands/clipsolve/internal/telemetry"
)

// Invoker wraps a Client with failure classification and call telemetry.
// It is strictly single-attempt; the coordinator owns retries.
type Invoker struct {
	Client Client
	Log    *telemetry.Logger
}

func NewInvoker(client Client, log *telemetry.Logger) *Invoker {
	return &Invoker{Client: client, Log: log}
}

func (iv *Invoker) Invoke(ctx context.Context, phase string, req Request) (string, *Failure) {
	start := time.Now()
	text, err := iv.Client.Generate(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		failure := Classify(phase, err)
		iv.Log.Event("llm_call_failed", map[string]any{
			"phase":   phase,
			"model":   req.Model,
			"kind":    failure.Kind.String(),
			"error":   err.Error(),
			"elapsed": elapsed.String(),
		})
		return "", failure
	}
	if strings.TrimSpace(text) == "" {
		failure := Classify(phase, ErrEmptyResponse)
		iv.Log.Event("llm_call_empty", map[string]any{"phase": phase, "model": req.Model})
		return "", failure
	}

	iv.Log.Event("llm_call_ok", map[string]any{
		"phase":   phase,
		"model":   req.Model,
		"chars":   len(text),
		"elapsed": elapsed.String(),
	})
	return text, nil
}
