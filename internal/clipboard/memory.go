package clipboard

import "sync"

// InMemory is a process-local clipboard used by tests and headless runs.
type InMemory struct {
	mu      sync.Mutex
	text    string
	png     []byte
	writes  []string
	failFor int
}

func (m *InMemory) SetText(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = s
	m.png = nil
}

func (m *InMemory) SetImagePNG(b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.png = append([]byte(nil), b...)
	m.text = ""
}

// FailNextWrites makes the next n WriteText calls fail.
func (m *InMemory) FailNextWrites(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failFor = n
}

func (m *InMemory) ReadText() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *InMemory) ReadImagePNG() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.png == nil {
		return nil, ErrUnavailable
	}
	return append([]byte(nil), m.png...), nil
}

func (m *InMemory) WriteText(s string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor > 0 {
		m.failFor--
		return ErrUnavailable
	}
	m.text = s
	m.writes = append(m.writes, s)
	return nil
}

// Writes returns every successful WriteText payload in order.
func (m *InMemory) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}
