package telemetry

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerWritesEventShape(t *testing.T) {
	dir := t.TempDir()
	log, err := NewFileLogger(dir, "telemetry.jsonl", true)
	require.NoError(t, err)

	log.Event("solve_started", map[string]any{"model": "gpt-4o", "attempt": 1})
	log.Event("solve_finished", nil)
	require.NoError(t, log.Close())

	f, err := os.Open(filepath.Join(dir, "telemetry.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]any
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var obj map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &obj))
		lines = append(lines, obj)
	}
	require.Len(t, lines, 2)

	first := lines[0]
	assert.Equal(t, "solve_started", first["event"])
	assert.Contains(t, first, "ts")
	assert.NotContains(t, first, "msg")
	assert.NotContains(t, first, "level")
	data, ok := first["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "gpt-4o", data["model"])

	assert.Equal(t, "solve_finished", lines[1]["event"])
}

func TestDisabledLoggerWritesNothing(t *testing.T) {
	dir := t.TempDir()
	log, err := NewFileLogger(dir, "telemetry.jsonl", false)
	require.NoError(t, err)
	assert.False(t, log.Enabled())

	log.Event("ignored", map[string]any{"k": "v"})
	_, statErr := os.Stat(filepath.Join(dir, "telemetry.jsonl"))
	assert.True(t, os.IsNotExist(statErr))
}
