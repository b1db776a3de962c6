package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusDedupeWindow(t *testing.T) {
	var got []string
	s := NewStatus(Nop(), func(msg string) { got = append(got, msg) })

	now := time.Now()
	s.now = func() time.Time { return now }

	s.Set("Solving...")
	s.Set("Solving...")
	assert.Equal(t, []string{"Solving..."}, got)

	// Same message outside the window goes through again.
	s.now = func() time.Time { return now.Add(400 * time.Millisecond) }
	s.Set("Solving...")
	assert.Equal(t, []string{"Solving...", "Solving..."}, got)
}

func TestStatusDifferentMessageInsideWindow(t *testing.T) {
	var got []string
	s := NewStatus(Nop(), func(msg string) { got = append(got, msg) })

	now := time.Now()
	s.now = func() time.Time { return now }

	s.Set("Solving...")
	s.Set("SOLVED")
	assert.Equal(t, []string{"Solving...", "SOLVED"}, got)
}

func TestStatusErrorDetection(t *testing.T) {
	s := NewStatus(Nop())

	s.Set("Solve failed: timeout")
	_, isErr := s.Current()
	assert.True(t, isErr)

	s.Set("SOLVED")
	msg, isErr := s.Current()
	assert.Equal(t, "SOLVED", msg)
	assert.False(t, isErr)
}
