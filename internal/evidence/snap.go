package evidence

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Point is a parsed (x, y) coordinate candidate.
type Point struct {
	X float64
	Y float64
}

var xyPairRe = regexp.MustCompile(`(?i)\(\s*x\s*=\s*([+-]?\d+(?:\.\d+)?)\s*,\s*y\s*=\s*([+-]?\d+(?:\.\d+)?)\s*\)`)

// SnapValue snaps v to its nearest integer when within threshold. Graph axes
// are overwhelmingly integer-gridded; model readings carry small jitter.
// Snapping an already-integer value is a no-op, so the pass is idempotent.
func SnapValue(v, threshold float64) float64 {
	nearest := math.Round(v)
	if math.Abs(v-nearest) <= threshold {
		return nearest
	}
	return v
}

// ParseCandidatePairs pulls every "(x=…, y=…)" pair out of raw text.
func ParseCandidatePairs(raw string) []Point {
	matches := xyPairRe.FindAllStringSubmatch(raw, -1)
	points := make([]Point, 0, len(matches))
	for _, m := range matches {
		x, errX := strconv.ParseFloat(m[1], 64)
		y, errY := strconv.ParseFloat(m[2], 64)
		if errX != nil || errY != nil {
			continue
		}
		points = append(points, Point{X: x, Y: y})
	}
	return points
}

// rerankAxis picks one value from independent candidate readings: snap each
// candidate to the integer grid, prefer the value with majority agreement,
// and fall back to the median when no majority exists.
func rerankAxis(values []float64, threshold float64) float64 {
	snapped := make([]float64, len(values))
	for i, v := range values {
		snapped[i] = SnapValue(v, threshold)
	}

	counts := map[float64]int{}
	for _, v := range snapped {
		counts[v]++
	}
	best, bestCount := 0.0, 0
	for v, n := range counts {
		if n > bestCount {
			best, bestCount = v, n
		}
	}
	if bestCount*2 > len(snapped) {
		return best
	}

	sorted := append([]float64(nil), snapped...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

// RerankKeyPoint resolves multi-candidate readings of one ambiguous key
// point into a single coordinate.
func RerankKeyPoint(candidates []Point, threshold float64) (Point, bool) {
	if len(candidates) == 0 {
		return Point{}, false
	}
	xs := make([]float64, len(candidates))
	ys := make([]float64, len(candidates))
	for i, p := range candidates {
		xs[i] = p.X
		ys[i] = p.Y
	}
	return Point{
		X: rerankAxis(xs, threshold),
		Y: rerankAxis(ys, threshold),
	}, true
}

// FormatPoint renders a coordinate in the evidence block's pair syntax.
func FormatPoint(p Point) string {
	return fmt.Sprintf("(x=%s, y=%s)", formatCoord(p.X), formatCoord(p.Y))
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// UpsertFieldLine replaces the named field's line in a raw evidence block,
// or inserts it ahead of SCALE when absent. SCALE anchors the tail of the
// block, so insertion there keeps required fields in their documented order.
func UpsertFieldLine(block, field, value string) string {
	lines := strings.Split(block, "\n")
	newLine := "  " + field + ": " + value

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, field+":") {
			lines[i] = newLine
			return strings.Join(lines, "\n")
		}
	}

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "SCALE:") {
			out := append([]string{}, lines[:i]...)
			out = append(out, newLine)
			out = append(out, lines[i:]...)
			return strings.Join(out, "\n")
		}
	}

	return block + "\n" + newLine
}
