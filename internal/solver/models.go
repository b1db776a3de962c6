package solver

import (
	"context"
	"fmt"
	"time"

	"github.com/agenthands/clipsolve/internal/clipboard"
	"github.com/agenthands/clipsolve/internal/config"
	"github.com/agenthands/clipsolve/internal/llm"
	"github.com/agenthands/clipsolve/internal/telemetry"
)

const probeTimeout = 6 * time.Second

// Models handles model selection. Switching models cancels any in-flight
// solve first so its answer cannot land under the new model's name.
type Models struct {
	Cfg    *config.Store
	Inv    *llm.Invoker
	Writer *clipboard.Writer
	Status *telemetry.Status
	Log    *telemetry.Logger
	Active *ActiveSolve
}

// Cycle advances to the next model in the configured rotation.
func (m *Models) Cycle(ctx context.Context) (string, error) {
	cfg := m.Cfg.Get()
	models := cfg.LLM.AvailableModels
	if len(models) == 0 {
		return "", fmt.Errorf("no models configured")
	}
	next := models[0]
	for i, name := range models {
		if name == cfg.LLM.Model {
			next = models[(i+1)%len(models)]
			break
		}
	}
	return next, m.Set(ctx, next)
}

// Set makes the named model active. The switch is persisted even when the
// probe fails; the user just gets warned.
func (m *Models) Set(ctx context.Context, name string) error {
	old := m.Cfg.Get().LLM.Model
	if name == old {
		m.Status.Set("MODEL ACTIVE: " + name)
		return nil
	}

	if m.Active.Cancel("model switched") {
		m.Status.Set("Solve canceled: model switched.")
	}

	if _, err := m.Cfg.Update(func(cfg *config.Config) {
		cfg.LLM.Model = name
	}); err != nil {
		return err
	}

	m.Status.Set(fmt.Sprintf("MODEL CHANGED: %s -> %s", old, name))
	if m.Writer != nil {
		_ = m.Writer.Write("MODEL ACTIVE: " + name)
	}

	if !m.probe(ctx, name) {
		m.Status.Set(fmt.Sprintf("Selected model [%s] is offline; please select another.", name))
	}
	return nil
}

// StartupProbes verifies the active model and the graph extraction model at
// launch.
func (m *Models) StartupProbes(ctx context.Context) {
	cfg := m.Cfg.Get()
	if !m.probe(ctx, cfg.LLM.Model) {
		m.Status.Set(fmt.Sprintf("Selected model [%s] is offline; please select another.", cfg.LLM.Model))
	}
	if cfg.Flags.GraphEvidenceParsing && !m.probe(ctx, config.GraphExtractionModel) {
		m.Status.Set("5.2 is offline; High-precision Graph Extraction is disabled.")
	}
}

func (m *Models) probe(ctx context.Context, name string) bool {
	_, failure := m.Inv.Invoke(ctx, "probe", llm.Request{
		Model:           name,
		Segments:        []llm.Segment{llm.TextSegment("Reply with OK.")},
		MaxOutputTokens: 8,
		Timeout:         probeTimeout,
	})
	ok := failure == nil
	m.Log.Event("model_probe", map[string]any{"model": name, "ok": ok})
	return ok
}
