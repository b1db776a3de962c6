package evidence

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/agenthands/clipsolve/internal/imaging"
	"github.com/agenthands/clipsolve/internal/llm"
	"github.com/agenthands/clipsolve/internal/telemetry"
)

const cacheSize = 32

// Engine turns a graph image into a validated evidence record. The result is
// all-or-nothing: either a record that passed strict schema validation, or
// nil when the image yields no usable evidence.
type Engine struct {
	Invoker *llm.Invoker
	Log     *telemetry.Logger

	Model             string
	Timeout           time.Duration
	SnapThreshold     float64
	DarkSnapThreshold float64

	cache *lru.Cache[string, string]
}

func NewEngine(invoker *llm.Invoker, log *telemetry.Logger, model string, timeout time.Duration, snapThreshold, darkSnapThreshold float64) (*Engine, error) {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Invoker:           invoker,
		Log:               log,
		Model:             model,
		Timeout:           timeout,
		SnapThreshold:     snapThreshold,
		DarkSnapThreshold: darkSnapThreshold,
		cache:             cache,
	}, nil
}

// Extract runs the extraction pipeline for one graph image. A nil record
// with nil error means the image produced no usable evidence; callers fall
// back to plain reference behavior.
func (e *Engine) Extract(ctx context.Context, png []byte, filename string) (*Record, error) {
	key := digest(png)
	if raw, ok := e.cache.Get(key); ok {
		if rec, err := ParseBlock(raw); err == nil {
			e.Log.Event("graph_evidence_cache_hit", map[string]any{"file": filename})
			return rec, nil
		}
		e.cache.Remove(key)
	}

	raw, failure := e.Invoker.Invoke(ctx, "extract", llm.Request{
		Model:           e.Model,
		System:          ExtractionPrompt,
		Segments:        []llm.Segment{llm.ImageSegment(png)},
		MaxOutputTokens: 600,
		Temperature:     llm.Temp(0),
		Timeout:         e.Timeout,
	})
	if failure != nil {
		return nil, failure
	}
	if IsInvalidSentinel(raw) {
		e.Log.Event("graph_evidence_invalid_graph", map[string]any{"file": filename})
		return nil, nil
	}

	rec, err := ParseBlock(raw)
	if err != nil {
		e.Log.Event("graph_evidence_parse_fail", map[string]any{"file": filename, "error": err.Error()})
		return nil, nil
	}

	rec = e.snapKeyPoints(rec, filename)

	if img, derr := imaging.Decode(png); derr == nil && IsDarkImage(filename, img) {
		rec = e.darkRecovery(ctx, png, filename, rec)
	}

	e.cache.Add(key, rec.Raw)
	return rec, nil
}

// snapKeyPoints applies the general near-integer snap to every key point.
// The updated block must re-validate or the original record stands.
func (e *Engine) snapKeyPoints(rec *Record, filename string) *Record {
	if len(rec.KeyPoints) == 0 {
		return rec
	}

	changed := false
	snapped := make([]string, 0, len(rec.KeyPoints))
	for _, kp := range rec.KeyPoints {
		pts := ParseCandidatePairs(kp)
		if len(pts) != 1 {
			snapped = append(snapped, kp)
			continue
		}
		p := Point{
			X: SnapValue(pts[0].X, e.SnapThreshold),
			Y: SnapValue(pts[0].Y, e.SnapThreshold),
		}
		out := FormatPoint(p)
		if p != pts[0] {
			changed = true
		}
		snapped = append(snapped, out)
	}
	if !changed {
		return rec
	}

	updated := UpsertFieldLine(rec.Raw, "KEY_POINTS", strings.Join(snapped, "; "))
	next, err := ParseBlock(updated)
	if err != nil {
		e.Log.Event("graph_evidence_snap_discarded", map[string]any{"file": filename, "error": err.Error()})
		return rec
	}
	e.Log.Event("graph_evidence_snapped", map[string]any{"file": filename})
	return next
}

// darkRecovery runs the multi-candidate consensus pass for dark images and
// upserts the reranked key point. A failed re-validation discards the upsert.
func (e *Engine) darkRecovery(ctx context.Context, png []byte, filename string, rec *Record) *Record {
	raw, failure := e.Invoker.Invoke(ctx, "extract", llm.Request{
		Model:           e.Model,
		System:          DarkRecoveryPrompt,
		Segments:        []llm.Segment{llm.ImageSegment(png)},
		MaxOutputTokens: 200,
		Temperature:     llm.Temp(0),
		Timeout:         e.Timeout,
	})
	if failure != nil {
		e.Log.Event("dark_recovery_call_failed", map[string]any{"file": filename, "error": failure.Error()})
		return rec
	}

	candidates := ParseCandidatePairs(raw)
	point, ok := RerankKeyPoint(candidates, e.DarkSnapThreshold)
	if !ok {
		e.Log.Event("dark_recovery_no_candidates", map[string]any{"file": filename})
		return rec
	}

	updated := UpsertFieldLine(rec.Raw, "KEY_POINTS", FormatPoint(point))
	next, err := ParseBlock(updated)
	if err != nil {
		e.Log.Event("dark_recovery_discarded", map[string]any{"file": filename, "error": err.Error()})
		return rec
	}
	e.Log.Event("dark_recovery_applied", map[string]any{
		"file":       filename,
		"candidates": len(candidates),
		"x":          strconv.FormatFloat(point.X, 'f', -1, 64),
		"y":          strconv.FormatFloat(point.Y, 'f', -1, 64),
	})
	return next
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CacheLen is exposed for tests.
func (e *Engine) CacheLen() int { return e.cache.Len() }
