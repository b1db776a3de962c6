package reference

import (
	"context"
	"strings"
	"sync"

	"github.com/agenthands/clipsolve/internal/llm"
)

// MockLLMClient answers by phase-identifying prompt content so a single
// instance can serve classify, OCR, summarize, detect, and extract calls.
type MockLLMClient struct {
	mu        sync.Mutex
	ByPrompt  map[string]string // keyed by a substring of the system prompt
	Fallback  string
	Err       error
	Calls     []llm.Request
}

func (m *MockLLMClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)
	if m.Err != nil {
		return "", m.Err
	}
	for key, resp := range m.ByPrompt {
		if strings.Contains(req.System, key) {
			return resp, nil
		}
	}
	return m.Fallback, nil
}

func (m *MockLLMClient) CallSystems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		out[i] = c.System
	}
	return out
}
