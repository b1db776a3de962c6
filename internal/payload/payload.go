// Package payload assembles the message segments for a solve call. It is
// pure: given the captured input, the reference snapshot, and the feature
// flags it returns the system prompt and ordered user segments, degrading
// silently when optional material is unusable.
package payload

import (
	"strings"

	"github.com/agenthands/clipsolve/internal/evidence"
	"github.com/agenthands/clipsolve/internal/llm"
)

type InputKind int

const (
	InputText InputKind = iota
	InputImage
)

// Input is the clipboard capture being solved.
type Input struct {
	Kind InputKind
	Text string
	PNG  []byte
}

// Reference is a point-in-time snapshot of the primed reference material.
type Reference struct {
	Active      bool
	Kind        string // "IMG" or "TEXT"
	Text        string
	PNG         []byte
	Summary     string
	GraphMode   bool
	EvidenceRaw string
}

type Options struct {
	ForcedVisualExtraction bool
	GraphEvidenceParsing   bool
}

const systemPrompt = `You are a precise math solver. Read the problem carefully and show your reasoning.

Respond in exactly this structure:
WORK:
<your step-by-step reasoning>
FINAL ANSWER: <the answer alone, no restatement of the question>

Rules:
- Use interval notation with correct bracket inclusivity for domain and range answers.
- Use standard symbols: <=, >=, !=, infinity, union, (-infinity, infinity) for all reals.
- If the problem references a graph, state only what the graph actually shows.`

const graphEvidenceAddendum = `
When a graph image is present, before WORK emit a GRAPH_EVIDENCE block:
GRAPH_EVIDENCE:
  LEFT_ENDPOINT: x=<v>, y=<v>, marker=<open|closed|arrow|unclear>
  RIGHT_ENDPOINT: x=<v>, y=<v>, marker=<open|closed|arrow|unclear>
  ASYMPTOTES: <list or none>
  DISCONTINUITIES: <list or none>
  INTERCEPTS: <list or none>
  KEY_POINTS: <list or none>
  SCALE: x_tick=<v>, y_tick=<v>
  CONFIDENCE: <0..1>
Your WORK and FINAL ANSWER must be consistent with this block. If the image
is not a function graph, emit the single line INVALID_GRAPH instead.`

const visualChecklist = `VISUAL EXTRACTION CHECKLIST (answer each in WORK before solving):
1. Where does the curve begin and end on screen? Open dot, closed dot, or arrowhead at each end?
2. What is the tick spacing on each axis?
3. Any vertical or horizontal asymptotes? Do not infer asymptotes from the axes themselves.
4. Any holes or jumps?`

var intentTerms = []string{"domain", "range", "graph", "asymptote", "intercept", "end behavior"}

func wantsChecklist(in Input, ref Reference, text string) bool {
	if in.Kind == InputImage {
		return true
	}
	if ref.Active && ref.Kind == "IMG" {
		return true
	}
	lower := strings.ToLower(text)
	for _, t := range intentTerms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

func usableEvidence(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || evidence.IsInvalidSentinel(raw) {
		return false
	}
	_, err := evidence.ParseBlock(raw)
	return err == nil
}

// Build produces the system prompt and ordered segments for one solve.
// Order: checklist, cached graph evidence, the problem itself, then the
// reference material.
func Build(in Input, ref Reference, opts Options) (string, []llm.Segment) {
	system := systemPrompt
	if opts.GraphEvidenceParsing {
		system += graphEvidenceAddendum
	}

	var segs []llm.Segment

	if opts.ForcedVisualExtraction && wantsChecklist(in, ref, in.Text) {
		segs = append(segs, llm.TextSegment(visualChecklist))
	}

	if ref.GraphMode && usableEvidence(ref.EvidenceRaw) {
		segs = append(segs, llm.TextSegment(
			"GRAPH MODE CACHED EVIDENCE (supporting evidence, not ground truth to blindly restate):\n"+
				strings.TrimSpace(ref.EvidenceRaw)))
	}

	switch in.Kind {
	case InputImage:
		segs = append(segs, llm.TextSegment("Solve the problem shown in this image:"))
		segs = append(segs, llm.ImageSegment(in.PNG))
	default:
		segs = append(segs, llm.TextSegment("Solve this problem:\n"+in.Text))
	}

	if ref.Active {
		switch ref.Kind {
		case "IMG":
			if len(ref.PNG) > 0 {
				segs = append(segs, llm.TextSegment("Reference image (context for the problem above):"))
				segs = append(segs, llm.ImageSegment(ref.PNG))
			}
		case "TEXT":
			if strings.TrimSpace(ref.Text) != "" {
				segs = append(segs, llm.TextSegment("Reference material (context for the problem above):\n"+ref.Text))
			}
		}
	}

	return system, segs
}
