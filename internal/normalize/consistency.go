package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/agenthands/clipsolve/internal/evidence"
)

// Mismatch is one detected contradiction between graph evidence, the WORK
// text, and the FINAL answer. Warning-only unless blocking is enabled
// upstream.
type Mismatch struct {
	Type string
	Side string
}

type interval struct {
	leftBracket  string
	rightBracket string
	lo           string
	hi           string
}

func (iv *interval) String() string {
	return fmt.Sprintf("%s%s, %s%s", iv.leftBracket, iv.lo, iv.hi, iv.rightBracket)
}

func labeledIntervalRe(label string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + label + `\s*:\s*([\[(])\s*([^,\]\)]+?)\s*,\s*([^,\]\)]+?)\s*([\])])`)
}

var (
	domainRe    = labeledIntervalRe("Domain")
	rangeRe     = labeledIntervalRe("Range")
	vertAsympRe = regexp.MustCompile(`(?i)^x\s*=\s*([+-]?\d+(?:\.\d+)?)$`)
)

func findInterval(re *regexp.Regexp, text string) *interval {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	return &interval{leftBracket: m[1], lo: m[2], hi: m[3], rightBracket: m[4]}
}

func parseBound(v string) (float64, bool) {
	t := strings.ToLower(strings.TrimSpace(v))
	t = strings.ReplaceAll(t, "inf", "∞")
	t = strings.ReplaceAll(t, "∞inity", "∞")
	switch t {
	case "∞", "+∞":
		return math.Inf(1), true
	case "-∞":
		return math.Inf(-1), true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ValidateWorkFinalConsistency cross-checks the evidence record's endpoint
// markers and asymptotes against the Domain/Range intervals stated in WORK
// and FINAL ANSWER.
func ValidateWorkFinalConsistency(rec *evidence.Record, work, final string) []Mismatch {
	if rec == nil {
		return nil
	}
	var mismatches []Mismatch

	finalDomain := findInterval(domainRe, final)
	workDomain := findInterval(domainRe, work)
	finalRange := findInterval(rangeRe, final)
	workRange := findInterval(rangeRe, work)

	if finalDomain != nil {
		mismatches = append(mismatches, endpointMismatches(rec, finalDomain)...)
		mismatches = append(mismatches, asymptoteMismatches(rec, finalDomain)...)
	}
	if workDomain != nil && finalDomain != nil && workDomain.String() != finalDomain.String() {
		mismatches = append(mismatches, Mismatch{Type: "interval_disagreement_domain"})
	}
	if workRange != nil && finalRange != nil && workRange.String() != finalRange.String() {
		mismatches = append(mismatches, Mismatch{Type: "interval_disagreement_range"})
	}
	return mismatches
}

func endpointMismatches(rec *evidence.Record, domain *interval) []Mismatch {
	var out []Mismatch

	check := func(marker, side, bracket string, inclusiveBracket string, exclusiveBracket string, bound string) {
		switch marker {
		case "open":
			if bracket == inclusiveBracket {
				out = append(out, Mismatch{Type: "endpoint_inclusion_conflict", Side: side})
			}
		case "closed", "filled":
			if bracket == exclusiveBracket {
				out = append(out, Mismatch{Type: "endpoint_inclusion_conflict", Side: side})
			}
		case "arrow":
			if v, ok := parseBound(bound); ok && !math.IsInf(v, 0) {
				out = append(out, Mismatch{Type: "arrow_bound_conflict", Side: side})
			}
		}
	}

	check(rec.Left.Marker, "left", domain.leftBracket, "[", "(", domain.lo)
	check(rec.Right.Marker, "right", domain.rightBracket, "]", ")", domain.hi)
	return out
}

func asymptoteMismatches(rec *evidence.Record, domain *interval) []Mismatch {
	lo, okLo := parseBound(domain.lo)
	hi, okHi := parseBound(domain.hi)
	if !okLo || !okHi {
		return nil
	}

	var out []Mismatch
	for _, a := range rec.Asymptotes {
		m := vertAsympRe.FindStringSubmatch(strings.TrimSpace(a))
		if m == nil {
			continue
		}
		x, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		// A vertical asymptote strictly inside the stated domain means the
		// domain failed to exclude it.
		if x > lo && x < hi {
			out = append(out, Mismatch{Type: "asymptote_inclusion_conflict"})
		}
	}
	return out
}
