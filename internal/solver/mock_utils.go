package solver

import (
	"context"
	"sync"
	"time"

	"github.com/agenthands/clipsolve/internal/llm"
)

type mockResult struct {
	Text string
	Err  error
}

// MockLLMClient plays back scripted results in order; the last result
// repeats. A nonzero Delay makes calls cancellable mid-flight.
type MockLLMClient struct {
	mu      sync.Mutex
	Results []mockResult
	Delay   time.Duration
	Calls   []llm.Request
}

func (m *MockLLMClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	var res mockResult
	if len(m.Results) > 0 {
		res = m.Results[0]
		if len(m.Results) > 1 {
			m.Results = m.Results[1:]
		}
	}
	delay := m.Delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}
	return res.Text, res.Err
}

func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockLLMClient) LastCall() llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return llm.Request{}
	}
	return m.Calls[len(m.Calls)-1]
}
