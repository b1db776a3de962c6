//go:build integration

package integration

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agenthands/clipsolve/internal/clipboard"
	"github.com/agenthands/clipsolve/internal/config"
	"github.com/agenthands/clipsolve/internal/llm"
	"github.com/agenthands/clipsolve/internal/reference"
	"github.com/agenthands/clipsolve/internal/solver"
	"github.com/agenthands/clipsolve/internal/telemetry"
)

// TestFullSolveFlow runs a real solve against a live provider. Configure via
// env: LLM_PROVIDER, LLM_MODEL, and the provider's API key variable.
func TestFullSolveFlow(t *testing.T) {
	_ = godotenv.Load("../../.env")

	cfg := config.Defaults()
	if p := os.Getenv("LLM_PROVIDER"); p != "" {
		cfg.LLM.Provider = p
	}
	if m := os.Getenv("LLM_MODEL"); m != "" {
		cfg.LLM.Model = m
	}
	if u := os.Getenv("LLM_BASE_URL"); u != "" {
		cfg.LLM.BaseURL = u
	}
	apiKey := config.ResolveAPIKey(&cfg)
	if apiKey == "" && cfg.LLM.Provider != "ollama" {
		t.Skip("Skipping integration test: no API key configured")
	}

	dir := t.TempDir()
	cfgStore, err := config.NewStore(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	_, err = cfgStore.Update(func(c *config.Config) {
		c.LLM = cfg.LLM
	})
	require.NoError(t, err)

	client, err := llm.NewClient(context.Background(), cfg.LLM, apiKey)
	require.NoError(t, err)
	invoker := llm.NewInvoker(client, telemetry.Nop())

	refs, err := reference.NewStore(filepath.Join(dir, "reference"))
	require.NoError(t, err)

	mem := &clipboard.InMemory{}
	writer := &clipboard.Writer{CB: mem, Attempts: 2, Delay: 10 * time.Millisecond}
	committer := &clipboard.Committer{Writer: writer, Settle: 50 * time.Millisecond, Log: telemetry.Nop()}

	coord := &solver.Coordinator{
		Cfg:       cfgStore,
		Clip:      mem,
		Committer: committer,
		Refs:      refs,
		Inv:       invoker,
		Status:    telemetry.NewStatus(telemetry.Nop()),
		Log:       telemetry.Nop(),
		Active:    solver.NewActiveSolve(telemetry.Nop()),
	}

	mem.SetText("What is 17 + 25? Answer with just the number.")
	require.NoError(t, coord.Solve(context.Background()))

	writes := mem.Writes()
	require.Len(t, writes, 2)
	assert.Contains(t, writes[0], "FINAL ANSWER:")
	assert.Contains(t, writes[1], "42")
}
