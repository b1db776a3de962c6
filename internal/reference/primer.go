package reference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agenthands/clipsolve/internal/clipboard"
	"github.com/agenthands/clipsolve/internal/config"
	"github.com/agenthands/clipsolve/internal/evidence"
	"github.com/agenthands/clipsolve/internal/imaging"
	"github.com/agenthands/clipsolve/internal/llm"
	"github.com/agenthands/clipsolve/internal/telemetry"
)

const classifyPrompt = `Classify this clipboard image. Answer with exactly one word:
TEXTUAL if the image is primarily text (a typed or written problem, a formula sheet, instructions).
VISUAL if the image is primarily graphical (a plot, a graph, a diagram, a geometric figure).`

const ocrPrompt = `Transcribe all text in this image exactly. Preserve math notation as plain text (use <=, >=, sqrt(), ^ for powers). Output only the transcribed text.`

const summaryPrompt = `Describe this image in one short sentence for a status line. No preamble.`

// Primer implements the strict reference toggle: one hotkey either clears
// the active reference or primes a new one from the current clipboard.
type Primer struct {
	Clip   clipboard.Clipboard
	Store  *Store
	Inv    *llm.Invoker
	Engine *evidence.Engine
	Cfg    *config.Store
	Status *telemetry.Status
	Log    *telemetry.Logger
}

// Toggle is the single entry point behind the reference hotkey.
func (p *Primer) Toggle(ctx context.Context) error {
	if p.Store.Meta().Active {
		if err := p.Store.Clear(); err != nil {
			return err
		}
		p.Status.Set("REF CLEARED")
		return nil
	}
	return p.prime(ctx)
}

func (p *Primer) prime(ctx context.Context) error {
	cfg := p.Cfg.Get()

	png, err := p.Clip.ReadImagePNG()
	if err == nil && len(png) > 0 {
		return p.primeImage(ctx, cfg, png)
	}

	text, err := p.Clip.ReadText()
	if err != nil {
		return fmt.Errorf("read clipboard: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		p.Status.Set("REF failed: clipboard is empty")
		return nil
	}
	if err := p.Store.SetText(text, summarizeText(text)); err != nil {
		return err
	}
	p.Status.Set("REF = TEXT")
	return nil
}

func (p *Primer) primeImage(ctx context.Context, cfg config.Config, png []byte) error {
	png, err := imaging.NormalizeForAPI(png, cfg.Image.MaxSide, cfg.Image.MaxPixels)
	if err != nil {
		p.Status.Set("REF failed: unreadable image")
		return nil
	}

	kind := p.classify(ctx, cfg, png)
	p.Log.Event("reference_classified", map[string]any{"kind": kind})

	if kind == "TEXTUAL" {
		text := p.ocr(ctx, cfg, png)
		if text == "" {
			p.Status.Set("REF assign failed: OCR returned empty text")
			return nil
		}
		if err := p.Store.SetText(text, summarizeText(text)); err != nil {
			return err
		}
		p.Status.Set("REF = TEXT")
		return nil
	}

	summary := p.summarize(ctx, cfg, png)
	if err := p.Store.SetImage(png, summary); err != nil {
		return err
	}

	if p.shouldExtract(ctx, cfg, png) {
		if rec, err := p.Engine.Extract(ctx, png, "reference.png"); err == nil && rec != nil {
			if err := p.Store.SetEvidence(rec.Raw); err != nil {
				return err
			}
		}
	}

	p.Status.Set("REF = IMG")
	return nil
}

// shouldExtract gates high-precision extraction on graph mode, or on the
// cheap detector when auto-detect is enabled.
func (p *Primer) shouldExtract(ctx context.Context, cfg config.Config, png []byte) bool {
	if !cfg.Flags.GraphEvidenceParsing {
		return false
	}
	if p.Store.Meta().GraphMode {
		return true
	}
	if !cfg.Flags.AutoGraphDetect {
		return false
	}
	out, failure := p.Inv.Invoke(ctx, "detect", llm.Request{
		Model:           config.GraphDetectModel,
		System:          evidence.DetectPrompt,
		Segments:        []llm.Segment{llm.ImageSegment(png)},
		MaxOutputTokens: 16,
		Temperature:     llm.Temp(0),
		Timeout:         time.Duration(cfg.LLM.DetectTimeout) * time.Second,
	})
	if failure != nil {
		return false
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(out)), "YES") {
		return false
	}
	if err := p.Store.SetGraphMode(true); err != nil {
		return false
	}
	p.Status.Set("Graph detected: graph mode enabled")
	return true
}

func (p *Primer) classify(ctx context.Context, cfg config.Config, png []byte) string {
	out, failure := p.Inv.Invoke(ctx, "classify", llm.Request{
		Model:           config.GraphDetectModel,
		System:          classifyPrompt,
		Segments:        []llm.Segment{llm.ImageSegment(png)},
		MaxOutputTokens: 16,
		Temperature:     llm.Temp(0),
		Timeout:         time.Duration(cfg.LLM.ClassifyTimeout) * time.Second,
	})
	if failure != nil {
		// Unknown leans VISUAL: keeping the pixels loses nothing, a bad
		// transcription does.
		return "VISUAL"
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(out)), "TEXTUAL") {
		return "TEXTUAL"
	}
	return "VISUAL"
}

func (p *Primer) ocr(ctx context.Context, cfg config.Config, png []byte) string {
	out, failure := p.Inv.Invoke(ctx, "ocr", llm.Request{
		Model:           cfg.LLM.Model,
		System:          ocrPrompt,
		Segments:        []llm.Segment{llm.ImageSegment(png)},
		MaxOutputTokens: 1200,
		Timeout:         time.Duration(cfg.LLM.OCRTimeout) * time.Second,
	})
	if failure != nil {
		return ""
	}
	return strings.TrimSpace(out)
}

func (p *Primer) summarize(ctx context.Context, cfg config.Config, png []byte) string {
	out, failure := p.Inv.Invoke(ctx, "summarize", llm.Request{
		Model:           config.GraphDetectModel,
		System:          summaryPrompt,
		Segments:        []llm.Segment{llm.ImageSegment(png)},
		MaxOutputTokens: 60,
		Timeout:         time.Duration(cfg.LLM.ClassifyTimeout) * time.Second,
	})
	if failure != nil {
		return "clipboard image"
	}
	return summarizeText(out)
}

func summarizeText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const max = 80
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
