// Package solver coordinates a solve from clipboard capture through LLM
// call, normalization, consistency checks, and the two-phase clipboard
// commit.
package solver

import (
	"context"
	"sync"

	"github.com/agenthands/clipsolve/internal/telemetry"
)

// ActiveSolve tracks the at-most-one in-flight solve so that model switches
// and explicit cancels can stop it.
type ActiveSolve struct {
	mu         sync.Mutex
	id         string
	cancel     context.CancelFunc
	lastReason string
	log        *telemetry.Logger
}

func NewActiveSolve(log *telemetry.Logger) *ActiveSolve {
	return &ActiveSolve{log: log}
}

func (a *ActiveSolve) Register(id string, cancel context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.id = id
	a.cancel = cancel
	a.lastReason = ""
}

// Cancel stops the in-flight solve, if any, and reports whether one was
// running.
func (a *ActiveSolve) Cancel(reason string) bool {
	a.mu.Lock()
	id, cancel := a.id, a.cancel
	a.id, a.cancel = "", nil
	if cancel != nil {
		a.lastReason = reason
	}
	a.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	a.log.Event("solve_canceled", map[string]any{"solve_id": id, "reason": reason})
	return true
}

// LastCancelReason returns why the most recent cancellation happened.
func (a *ActiveSolve) LastCancelReason() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastReason
}

// Clear removes the registration if it still belongs to the given solve.
func (a *ActiveSolve) Clear(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.id == id {
		a.id = ""
		a.cancel = nil
	}
}
