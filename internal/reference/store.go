// Package reference persists the user's primed reference material (a text
// snippet or an image) alongside graph-mode state, and primes new material
// from the clipboard.
package reference

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/agenthands/clipsolve/internal/payload"
)

// Meta is the on-disk state. Backing text/image content lives in sibling
// files so the JSON stays small.
type Meta struct {
	Active       bool   `json:"reference_active"`
	Type         string `json:"reference_type,omitempty"` // "IMG" or "TEXT"
	TextPath     string `json:"text_path,omitempty"`
	ImagePath    string `json:"image_path,omitempty"`
	Summary      string `json:"reference_summary,omitempty"`
	GraphMode    bool   `json:"graph_mode"`
	Evidence     string `json:"graph_evidence,omitempty"`
	LastPrimedTS int64  `json:"last_primed_ts,omitempty"`

	// Legacy keys from versions that stored a mode string.
	LegacyEnabled *bool  `json:"enabled,omitempty"`
	LegacyMode    string `json:"mode,omitempty"`
}

type Store struct {
	mu   sync.Mutex
	dir  string
	meta Meta
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("reference dir: %w", err)
	}
	s := &Store{dir: dir}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) metaPath() string { return filepath.Join(s.dir, "reference.json") }

func (s *Store) load() error {
	raw, err := os.ReadFile(s.metaPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read reference meta: %w", err)
	}
	var m Meta
	if err := json.Unmarshal(raw, &m); err != nil {
		// Corrupt meta resets to an inactive reference rather than wedging
		// startup.
		s.meta = Meta{}
		return nil
	}
	migrate(&m)
	s.meta = m
	return nil
}

func migrate(m *Meta) {
	if m.LegacyEnabled != nil {
		m.Active = *m.LegacyEnabled
		m.LegacyEnabled = nil
	}
	if m.LegacyMode != "" {
		switch m.LegacyMode {
		case "image":
			m.Type = "IMG"
		case "text":
			m.Type = "TEXT"
		}
		m.LegacyMode = ""
	}
}

func (s *Store) persistLocked() error {
	raw, err := json.MarshalIndent(s.meta, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.metaPath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.metaPath())
}

func (s *Store) Meta() Meta {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta
}

// SetText activates a text reference, replacing any image reference.
func (s *Store) SetText(text, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := filepath.Join(s.dir, "reference.txt")
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		return err
	}
	s.meta.Active = true
	s.meta.Type = "TEXT"
	s.meta.TextPath = p
	s.meta.ImagePath = ""
	s.meta.Summary = summary
	return s.persistLocked()
}

// SetImage activates an image reference, replacing any text reference.
func (s *Store) SetImage(png []byte, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := filepath.Join(s.dir, "reference.png")
	if err := os.WriteFile(p, png, 0o644); err != nil {
		return err
	}
	s.meta.Active = true
	s.meta.Type = "IMG"
	s.meta.ImagePath = p
	s.meta.TextPath = ""
	s.meta.Summary = summary
	return s.persistLocked()
}

// Clear deactivates the reference and drops its content, summary, and
// paths. Graph mode is a persistent user toggle and survives, along with
// the cached evidence; only SetGraphMode(false) discards those.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta = Meta{
		GraphMode:    s.meta.GraphMode,
		Evidence:     s.meta.Evidence,
		LastPrimedTS: s.meta.LastPrimedTS,
	}
	return s.persistLocked()
}

// SetGraphMode toggles graph mode. Turning it off drops the cached
// evidence and its timestamp.
func (s *Store) SetGraphMode(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.GraphMode = on
	if !on {
		s.meta.Evidence = ""
		s.meta.LastPrimedTS = 0
	}
	return s.persistLocked()
}

// SetEvidence caches a raw extraction block for the current reference image.
func (s *Store) SetEvidence(raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.Evidence = raw
	s.meta.LastPrimedTS = time.Now().Unix()
	return s.persistLocked()
}

// Snapshot resolves the meta into a self-contained payload reference with
// backing content loaded. A missing backing file clears the reference and
// reports the error.
func (s *Store) Snapshot() (payload.Reference, error) {
	s.mu.Lock()
	m := s.meta
	s.mu.Unlock()

	ref := payload.Reference{
		Active:      m.Active,
		Kind:        m.Type,
		Summary:     m.Summary,
		GraphMode:   m.GraphMode,
		EvidenceRaw: m.Evidence,
	}
	if !m.Active {
		return ref, nil
	}
	switch m.Type {
	case "TEXT":
		b, err := os.ReadFile(m.TextPath)
		if err != nil {
			_ = s.Clear()
			return payload.Reference{}, fmt.Errorf("reference text missing: %w", err)
		}
		ref.Text = string(b)
	case "IMG":
		b, err := os.ReadFile(m.ImagePath)
		if err != nil {
			_ = s.Clear()
			return payload.Reference{}, fmt.Errorf("reference image missing: %w", err)
		}
		ref.PNG = b
	}
	return ref, nil
}
