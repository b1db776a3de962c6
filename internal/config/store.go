package config

import "sync"

// Store guards read-modify-write access to the persisted config. Every
// mutation goes back to disk before the updated copy is visible to readers.
type Store struct {
	mu   sync.Mutex
	path string
	cur  Config
}

func NewStore(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cur: *cfg}, nil
}

// Get returns a copy of the current config.
func (s *Store) Get() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Update applies mutate under the store lock, normalizes the result, and
// persists it. The previous config is restored if the write fails.
func (s *Store) Update(mutate func(*Config)) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	mutate(&next)
	Normalize(&next)
	if err := write(s.path, &next); err != nil {
		return s.cur, err
	}
	s.cur = next
	return next, nil
}
