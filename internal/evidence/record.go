package evidence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const (
	// BlockHeader opens a graph-evidence block in model output.
	BlockHeader = "GRAPH_EVIDENCE:"
	// InvalidSentinel is the model's whole-response refusal for non-graphs.
	InvalidSentinel = "INVALID_GRAPH"

	// maxBlockChars bounds how far past the header the parser will look for
	// required fields. Runaway model output past this point invalidates the
	// whole block.
	maxBlockChars = 2000
)

// Endpoint is one reported graph endpoint. Values keep their literal string
// form; "unclear" and "none" are legal in place of a number.
type Endpoint struct {
	X      string
	Y      string
	Marker string
}

type Scale struct {
	XTick string
	YTick string
}

// Record is a strictly validated graph-evidence block. A Record either
// passed full schema validation or does not exist; no partial instances are
// ever returned.
type Record struct {
	Left            Endpoint
	Right           Endpoint
	Asymptotes      []string
	Discontinuities []string
	Intercepts      []string
	KeyPoints       []string
	Scale           Scale
	Confidence      float64

	// Raw is the validated block text exactly as cached and re-injected.
	Raw string
}

var (
	endpointRe = regexp.MustCompile(`(?i)^x=([^,]+),\s*y=([^,]+),\s*marker=(\S+)$`)
	scaleRe    = regexp.MustCompile(`(?i)^x_tick=([^,]+),\s*y_tick=(\S+)$`)
	fieldRe    = regexp.MustCompile(`^\s*([A-Z_]+):\s*(.*)$`)
)

var validMarkers = map[string]bool{
	"open": true, "closed": true, "filled": true, "arrow": true, "unclear": true,
}

// IsInvalidSentinel reports whether raw is the whole-response refusal.
func IsInvalidSentinel(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), InvalidSentinel)
}

// ParseBlock extracts and strictly validates the first graph-evidence block
// in text. Unknown fields are ignored; a missing or malformed required field
// fails the whole block.
func ParseBlock(text string) (*Record, error) {
	idx := strings.Index(text, BlockHeader)
	if idx < 0 {
		return nil, fmt.Errorf("no %s header", BlockHeader)
	}
	body := text[idx+len(BlockHeader):]
	if len(body) > maxBlockChars {
		body = body[:maxBlockChars]
	}
	if cut := strings.Index(body, "FINAL ANSWER:"); cut >= 0 {
		body = body[:cut]
	}

	rec := &Record{}
	var haveLeft, haveRight, haveAsym, haveDisc, haveScale, haveConf bool
	var blockLines []string

	for _, line := range strings.Split(body, "\n") {
		m := fieldRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		key, value := m[1], strings.TrimSpace(m[2])
		switch key {
		case "LEFT_ENDPOINT":
			ep, err := parseEndpoint(value)
			if err != nil {
				return nil, fmt.Errorf("LEFT_ENDPOINT: %w", err)
			}
			rec.Left, haveLeft = ep, true
		case "RIGHT_ENDPOINT":
			ep, err := parseEndpoint(value)
			if err != nil {
				return nil, fmt.Errorf("RIGHT_ENDPOINT: %w", err)
			}
			rec.Right, haveRight = ep, true
		case "ASYMPTOTES":
			rec.Asymptotes, haveAsym = parseList(value), true
		case "DISCONTINUITIES":
			rec.Discontinuities, haveDisc = parseList(value), true
		case "INTERCEPTS":
			rec.Intercepts = parseList(value)
		case "KEY_POINTS":
			rec.KeyPoints = parseList(value)
		case "SCALE":
			sm := scaleRe.FindStringSubmatch(value)
			if sm == nil {
				return nil, fmt.Errorf("SCALE: malformed value %q", value)
			}
			rec.Scale = Scale{XTick: strings.TrimSpace(sm[1]), YTick: strings.TrimSpace(sm[2])}
			haveScale = true
		case "CONFIDENCE":
			conf, err := strconv.ParseFloat(value, 64)
			if err != nil || conf < 0 || conf > 1 {
				return nil, fmt.Errorf("CONFIDENCE: malformed value %q", value)
			}
			rec.Confidence, haveConf = conf, true
		default:
			// Unknown field, tolerated.
		}
		blockLines = append(blockLines, strings.TrimRight(line, " \t"))
	}

	if !haveLeft || !haveRight || !haveAsym || !haveDisc || !haveScale || !haveConf {
		return nil, fmt.Errorf("missing required evidence field")
	}

	rec.Raw = BlockHeader + "\n" + strings.Join(blockLines, "\n")
	return rec, nil
}

func parseEndpoint(value string) (Endpoint, error) {
	m := endpointRe.FindStringSubmatch(value)
	if m == nil {
		return Endpoint{}, fmt.Errorf("malformed value %q", value)
	}
	ep := Endpoint{
		X:      strings.TrimSpace(m[1]),
		Y:      strings.TrimSpace(m[2]),
		Marker: strings.ToLower(strings.TrimSpace(m[3])),
	}
	if !validMarkers[ep.Marker] {
		return Endpoint{}, fmt.Errorf("invalid marker %q", ep.Marker)
	}
	for _, v := range []string{ep.X, ep.Y} {
		if !validCoordToken(v) {
			return Endpoint{}, fmt.Errorf("invalid coordinate %q", v)
		}
	}
	return ep, nil
}

func validCoordToken(v string) bool {
	t := strings.ToLower(strings.TrimSpace(v))
	if t == "unclear" || t == "none" {
		return true
	}
	_, err := strconv.ParseFloat(t, 64)
	return err == nil
}

func parseList(value string) []string {
	if strings.EqualFold(strings.TrimSpace(value), "none") || strings.TrimSpace(value) == "" {
		return []string{}
	}
	parts := strings.Split(value, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
