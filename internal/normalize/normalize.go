package normalize

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	workHeader  = "WORK:"
	finalHeader = "FINAL ANSWER:"
)

// ErrMissingFinal is the parse failure for responses without the contract's
// FINAL ANSWER header.
var ErrMissingFinal = errors.New("no FINAL ANSWER header in model output")

type Options struct {
	DomainRangeRewrite bool
	PointSynthesis     bool
}

// Output is the canonical two-block result. Full is the normalized complete
// text destined for the first clipboard write; FinalAnswer feeds the second.
type Output struct {
	Full        string
	Work        string
	FinalAnswer string
	Flags       []string
}

// Normalize parses raw model text into the output contract and applies the
// format-preserving rewrite passes in a fixed, auditable order.
func Normalize(raw string, opts Options) (Output, error) {
	text := cleanLines(raw)
	text = normalizeSymbols(text)
	text = canonicalizeIntervals(text)

	head, work, final, err := splitWorkFinal(text)
	if err != nil {
		return Output{}, err
	}

	if opts.DomainRangeRewrite {
		final = rewriteAllReals(work, final)
	}
	if opts.PointSynthesis {
		if line, ok := synthesizePlotPoints(final); ok {
			head = strings.TrimRight(head, "\n") + "\n" + line
			if work == "" {
				work = line
			} else {
				work = work + "\n" + line
			}
		}
	}

	out := Output{
		Work:        work,
		FinalAnswer: final,
		Flags:       bracketLanguageFlags(work, final),
	}
	out.Full = renderFull(head, final)
	return out, nil
}

// renderFull collapses any duplicated FINAL ANSWER blocks into the single
// authoritative one while keeping everything before the first header intact.
func renderFull(head, final string) string {
	return strings.TrimSpace(head) + "\n" + finalHeader + " " + final
}

// cleanLines drops echo artifacts the system prompt forbids but models still
// produce: "Q:" restatements and labeled DETECTED_INPUT lines.
func cleanLines(text string) string {
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "DETECTED_INPUT:") {
			if v := strings.TrimSpace(strings.TrimPrefix(stripped, "DETECTED_INPUT:")); v != "" {
				out = append(out, v)
			}
			continue
		}
		if strings.HasPrefix(stripped, "Q:") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

var (
	sqrtBraceRe = regexp.MustCompile(`\\sqrt\s*\{([^{}]+)\}`)
	sqrtCallRe  = regexp.MustCompile(`(?i)\bsqrt\s*\(\s*([^()]+?)\s*\)`)
	sq2Re       = regexp.MustCompile(`\^2\b`)
	sq3Re       = regexp.MustCompile(`\^3\b`)
	spaceRunRe  = regexp.MustCompile(`[ \t]+`)
	blankRunRe  = regexp.MustCompile(`\n{3,}`)
)

// normalizeSymbols rewrites LaTeX and ASCII operator spellings into their
// plain-text symbols without touching numeric content.
func normalizeSymbols(text string) string {
	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")

	replacements := [][2]string{
		{"\\leq", "≤"}, {"\\geq", "≥"}, {"\\neq", "≠"},
		{"<=", "≤"}, {">=", "≥"}, {"!=", "≠"},
		{"\\infty", "∞"}, {"infty", "∞"},
		{"\\cup", "∪"}, {"⋃", "∪"},
		{"\\in", "∈"}, {"\\mathbb{R}", "ℝ"},
		{"\\pm", "±"},
	}
	for _, r := range replacements {
		t = strings.ReplaceAll(t, r[0], r[1])
	}

	t = sqrtBraceRe.ReplaceAllString(t, "√($1)")
	t = sqrtCallRe.ReplaceAllString(t, "√($1)")
	t = sq2Re.ReplaceAllString(t, "²")
	t = sq3Re.ReplaceAllString(t, "³")
	t = spaceRunRe.ReplaceAllString(t, " ")
	t = blankRunRe.ReplaceAllString(t, "\n\n")
	return strings.TrimSpace(t)
}

var intervalRe = regexp.MustCompile(`([\[(（［])\s*([^,\[\]()（）［］]+?)\s*,\s*([^,\[\]()（）［］]+?)\s*([\])）］])`)

// canonicalizeIntervals renders every interval with canonical ASCII
// brackets, a canonical minus, the ∞ symbol, and single-space separation.
func canonicalizeIntervals(text string) string {
	t := strings.ReplaceAll(text, "−", "-") // U+2212
	return intervalRe.ReplaceAllStringFunc(t, func(m string) string {
		parts := intervalRe.FindStringSubmatch(m)
		lb := canonicalBracket(parts[1])
		rb := canonicalBracket(parts[4])
		return fmt.Sprintf("%s%s, %s%s", lb, canonicalBound(parts[2]), canonicalBound(parts[3]), rb)
	})
}

func canonicalBracket(b string) string {
	switch b {
	case "（":
		return "("
	case "）":
		return ")"
	case "［":
		return "["
	case "］":
		return "]"
	default:
		return b
	}
}

func canonicalBound(v string) string {
	t := strings.TrimSpace(v)
	lower := strings.ToLower(t)
	switch lower {
	case "inf", "infinity", "+inf", "+infinity", "+∞":
		return "∞"
	case "-inf", "-infinity":
		return "-∞"
	}
	return t
}

// splitWorkFinal cuts raw text on the first WORK header and the LAST
// FINAL ANSWER header. Earlier FINAL ANSWER occurrences are restated or
// duplicated text and are deliberately discarded. head is everything before
// the first FINAL ANSWER header, preserved for the full clipboard write.
// A head without a WORK header gets one inserted so every rendered output
// carries both labeled sections.
func splitWorkFinal(text string) (head, work, final string, err error) {
	lastFinal := strings.LastIndex(text, finalHeader)
	if lastFinal < 0 {
		return "", "", "", ErrMissingFinal
	}
	final = strings.TrimSpace(text[lastFinal+len(finalHeader):])

	head = text[:lastFinal]
	if firstFinal := strings.Index(head, finalHeader); firstFinal >= 0 {
		head = head[:firstFinal]
	}
	head = strings.TrimRight(head, " \n")
	if !strings.Contains(head, workHeader) {
		if head == "" {
			head = workHeader
		} else {
			head = workHeader + "\n" + head
		}
	}

	work = head
	if w := strings.Index(work, workHeader); w >= 0 {
		work = work[w+len(workHeader):]
	}
	work = strings.TrimSpace(work)
	return head, work, final, nil
}

var (
	unboundedRe      = regexp.MustCompile(`\(\s*-∞\s*,\s*∞\s*\)`)
	allRealsWorkRe   = regexp.MustCompile(`(?i)(arrows? (?:extend|point|continue)[^.\n]*both directions|extends? without bound in both directions|all real numbers|entire real line)`)
)

// rewriteAllReals canonicalizes an unbounded interval to the "All Real
// Numbers" phrasing, but only when the WORK text states unrestricted extent
// explicitly. Answer shape alone never triggers the rewrite; that would
// paper over perception errors with confident formatting.
func rewriteAllReals(work, final string) string {
	if !allRealsWorkRe.MatchString(work) {
		return final
	}
	return unboundedRe.ReplaceAllString(final, "All Real Numbers")
}

var linearRe = regexp.MustCompile(`(?i)^y\s*=\s*(-?\d+(?:\.\d+)?|-)?\s*x(?:\s*([+-])\s*(\d+(?:\.\d+)?))?$`)

// synthesizePlotPoints builds a small plot-point line when the final answer
// parses unambiguously as a linear relation. Anything ambiguous or
// non-linear yields nothing.
func synthesizePlotPoints(final string) (string, bool) {
	m := linearRe.FindStringSubmatch(strings.TrimSpace(final))
	if m == nil {
		return "", false
	}

	slope := 1.0
	switch m[1] {
	case "", "+":
	case "-":
		slope = -1.0
	default:
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return "", false
		}
		slope = v
	}

	intercept := 0.0
	if m[3] != "" {
		v, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			return "", false
		}
		if m[2] == "-" {
			v = -v
		}
		intercept = v
	}

	points := make([]string, 0, 3)
	for _, x := range []float64{-1, 0, 1} {
		y := slope*x + intercept
		points = append(points, fmt.Sprintf("(%s, %s)", formatNum(x), formatNum(y)))
	}
	return "POINTS TO PLOT: " + strings.Join(points, ", "), true
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var (
	openLanguageRe   = regexp.MustCompile(`(?i)(open circle|excluded|not included)`)
	closedLanguageRe = regexp.MustCompile(`(?i)(closed circle|filled circle|included)`)
	anyIntervalRe    = regexp.MustCompile(`([\[(])\s*[^,\]\)]+\s*,\s*[^,\]\)]+\s*([\])])`)
)

// bracketLanguageFlags compares endpoint-inclusion language in WORK against
// the bracket choice in FINAL ANSWER. Mismatches are flagged, never fixed:
// the flag feeds telemetry (and, optionally, the blocking policy upstream).
func bracketLanguageFlags(work, final string) []string {
	m := anyIntervalRe.FindStringSubmatch(final)
	if m == nil {
		return nil
	}
	hasInclusive := m[1] == "[" || m[2] == "]"
	hasExclusive := m[1] == "(" || m[2] == ")"

	var flags []string
	if openLanguageRe.MatchString(work) && !hasExclusive {
		flags = append(flags, "endpoint_language_bracket_mismatch")
	}
	if closedLanguageRe.MatchString(work) && !hasInclusive {
		flags = append(flags, "endpoint_language_bracket_mismatch")
	}
	return flags
}
