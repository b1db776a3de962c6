package solver

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agenthands/clipsolve/internal/clipboard"
	"github.com/agenthands/clipsolve/internal/config"
	"github.com/agenthands/clipsolve/internal/evidence"
	"github.com/agenthands/clipsolve/internal/imaging"
	"github.com/agenthands/clipsolve/internal/llm"
	"github.com/agenthands/clipsolve/internal/normalize"
	"github.com/agenthands/clipsolve/internal/payload"
	"github.com/agenthands/clipsolve/internal/reference"
	"github.com/agenthands/clipsolve/internal/telemetry"
)

var (
	// ErrBusy means a solve is already in flight; concurrent requests are
	// rejected rather than queued.
	ErrBusy = errors.New("solve already running")

	ErrEmptyClipboard = errors.New("clipboard has no problem to solve")
)

var intervalFinalRe = regexp.MustCompile(`[\[(]\s*[^,\[\]()]+,\s*[^,\[\]()]+\s*[\])]`)

const graphRetryNudge = `

Your previous WORK did not state what the curve endpoints look like. Re-solve, and in WORK explicitly name each endpoint marker (open dot, closed dot, or arrow) before giving the interval.`

// Coordinator owns the solve flow. One instance per process.
type Coordinator struct {
	mu sync.Mutex

	Cfg       *config.Store
	Clip      clipboard.Clipboard
	Committer *clipboard.Committer
	Refs      *reference.Store
	Inv       *llm.Invoker
	Status    *telemetry.Status
	Log       *telemetry.Logger
	Active    *ActiveSolve
}

// Solve runs one full solve from the current clipboard contents. It is
// single-flight: a second call while one is running returns ErrBusy.
func (c *Coordinator) Solve(ctx context.Context) error {
	if !c.mu.TryLock() {
		c.Status.Set("Solve already running.")
		return ErrBusy
	}
	defer c.mu.Unlock()

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	c.Active.Register(id, cancel)
	defer func() {
		c.Active.Clear(id)
		cancel()
	}()

	cfg := c.Cfg.Get()
	c.Status.Set("Solving...")
	start := time.Now()

	in, err := c.captureInput(cfg)
	if err != nil {
		c.Status.Set("Solve failed: " + err.Error())
		return err
	}

	ref, err := c.Refs.Snapshot()
	if err != nil {
		// Lost backing file: the store cleared itself, solve proceeds bare.
		c.Log.Event("reference_snapshot_failed", map[string]any{"error": err.Error()})
		ref = payload.Reference{}
	}

	system, segs := payload.Build(in, ref, payload.Options{
		ForcedVisualExtraction: cfg.Flags.ForcedVisualExtraction,
		GraphEvidenceParsing:   cfg.Flags.GraphEvidenceParsing,
	})

	out, err := c.generate(ctx, cfg, id, system, segs, in)
	if err != nil {
		if ctx.Err() != nil {
			c.setCanceledStatus()
			return ctx.Err()
		}
		c.Status.Set("Solve failed: " + err.Error())
		return err
	}

	if err := ctx.Err(); err != nil {
		c.setCanceledStatus()
		return err
	}

	mismatches := c.checkConsistency(cfg, ref, out)
	if len(mismatches) > 0 && cfg.Flags.ConsistencyBlocking {
		c.Status.Set("Solve failed: answer contradicts graph evidence")
		return fmt.Errorf("consistency: %d mismatch(es)", len(mismatches))
	}

	full := out.Full
	if ref.Active {
		full = fmt.Sprintf("* REF %s: %s\n%s", ref.Kind, ref.Summary, full)
	}

	res, err := c.Committer.Commit(ctx, full, out.FinalAnswer)
	if err != nil {
		if ctx.Err() != nil {
			c.setCanceledStatus()
			return ctx.Err()
		}
		c.Status.Set("Solve failed: clipboard write error")
		return err
	}

	c.Log.Event("solve_ok", map[string]any{
		"solve_id":    id,
		"elapsed":     time.Since(start).String(),
		"wrote_final": res.WroteFinal,
		"flags":       out.Flags,
	})
	c.Status.Set("SOLVED")
	return nil
}

// setCanceledStatus names the cancellation cause when one was recorded, so
// a model switch reads differently from a user abort.
func (c *Coordinator) setCanceledStatus() {
	if reason := c.Active.LastCancelReason(); reason != "" {
		c.Status.Set("Solve canceled: " + reason + ".")
		return
	}
	c.Status.Set("Solve canceled.")
}

func (c *Coordinator) captureInput(cfg config.Config) (payload.Input, error) {
	if png, err := c.Clip.ReadImagePNG(); err == nil && len(png) > 0 {
		png, err = imaging.NormalizeForAPI(png, cfg.Image.MaxSide, cfg.Image.MaxPixels)
		if err != nil {
			return payload.Input{}, fmt.Errorf("clipboard image: %w", err)
		}
		return payload.Input{Kind: payload.InputImage, PNG: png}, nil
	}
	text, err := c.Clip.ReadText()
	if err != nil {
		return payload.Input{}, err
	}
	if strings.TrimSpace(text) == "" {
		return payload.Input{}, ErrEmptyClipboard
	}
	return payload.Input{Kind: payload.InputText, Text: text}, nil
}

// generate runs the LLM call with the retry policy and normalizes the
// response. Reasoning models get a single attempt; others get
// cfg.LLM.Retries extra attempts on retryable failures, with a malformed
// response (no FINAL ANSWER) counting as retryable.
func (c *Coordinator) generate(ctx context.Context, cfg config.Config, id, system string, segs []llm.Segment, in payload.Input) (normalize.Output, error) {
	attempts := cfg.LLM.Retries + 1
	if llm.IsReasoningFamily(cfg.LLM.Model) {
		attempts = 1
	}

	opts := normalize.Options{
		DomainRangeRewrite: true,
		PointSynthesis:     cfg.Flags.PointSynthesis,
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return normalize.Output{}, err
		}

		raw, failure := c.Inv.Invoke(ctx, "solve", llm.Request{
			Model:           cfg.LLM.Model,
			System:          system,
			Segments:        segs,
			MaxOutputTokens: cfg.LLM.MaxOutputTokens,
			Temperature:     llm.Temp(cfg.LLM.Temperature),
			Timeout:         time.Duration(cfg.LLM.RequestTimeout) * time.Second,
		})
		if failure != nil {
			lastErr = failure
			if !failure.Retryable() {
				return normalize.Output{}, failure
			}
			continue
		}

		out, err := normalize.Normalize(raw, opts)
		if err != nil {
			lastErr = err
			c.Log.Event("solve_malformed", map[string]any{"solve_id": id, "attempt": attempt})
			continue
		}

		if c.wantsGraphRetry(cfg, in, out) {
			c.Log.Event("graph_retry", map[string]any{"solve_id": id})
			if retried, rerr := c.retryWithNudge(ctx, cfg, system, segs, opts); rerr == nil {
				return retried, nil
			}
			// Nudge failed, the first answer stands.
		}
		return out, nil
	}
	return normalize.Output{}, lastErr
}

// wantsGraphRetry fires when an image problem produced an interval answer
// whose WORK never mentions endpoint markers.
func (c *Coordinator) wantsGraphRetry(cfg config.Config, in payload.Input, out normalize.Output) bool {
	if !cfg.Flags.GraphRetry || in.Kind != payload.InputImage {
		return false
	}
	if !intervalFinalRe.MatchString(out.FinalAnswer) {
		return false
	}
	work := strings.ToLower(out.Work)
	for _, marker := range []string{"open", "closed", "filled", "arrow", "dot"} {
		if strings.Contains(work, marker) {
			return false
		}
	}
	return true
}

func (c *Coordinator) retryWithNudge(ctx context.Context, cfg config.Config, system string, segs []llm.Segment, opts normalize.Options) (normalize.Output, error) {
	raw, failure := c.Inv.Invoke(ctx, "solve_graph_retry", llm.Request{
		Model:           cfg.LLM.Model,
		System:          system + graphRetryNudge,
		Segments:        segs,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Temperature:     llm.Temp(cfg.LLM.Temperature),
		Timeout:         time.Duration(cfg.LLM.RequestTimeout) * time.Second,
	})
	if failure != nil {
		return normalize.Output{}, failure
	}
	return normalize.Normalize(raw, opts)
}

func (c *Coordinator) checkConsistency(cfg config.Config, ref payload.Reference, out normalize.Output) []normalize.Mismatch {
	if !cfg.Flags.ConsistencyWarnings && !cfg.Flags.ConsistencyBlocking {
		return nil
	}
	if !ref.Active || !ref.GraphMode || strings.TrimSpace(ref.EvidenceRaw) == "" {
		return nil
	}
	rec, err := evidence.ParseBlock(ref.EvidenceRaw)
	if err != nil {
		return nil
	}
	mismatches := normalize.ValidateWorkFinalConsistency(rec, out.Work, out.FinalAnswer)
	for _, m := range mismatches {
		c.Log.Event("consistency_mismatch", map[string]any{"type": m.Type, "side": m.Side})
	}
	if len(mismatches) > 0 && cfg.Flags.ConsistencyWarnings {
		c.Status.Set(fmt.Sprintf("Warning: answer may contradict graph evidence (%s)", mismatches[0].Type))
	}
	return mismatches
}
