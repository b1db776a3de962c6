package evidence

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validBlock = `GRAPH_EVIDENCE:
  LEFT_ENDPOINT: x=-3, y=2, marker=closed
  RIGHT_ENDPOINT: x=5, y=-1, marker=open
  ASYMPTOTES: none
  DISCONTINUITIES: x=1
  INTERCEPTS: (0, 2); (4, 0)
  KEY_POINTS: (x=2, y=3)
  SCALE: x_tick=1, y_tick=1
  CONFIDENCE: 0.85`

func TestParseBlockValid(t *testing.T) {
	rec, err := ParseBlock(validBlock)
	require.NoError(t, err)

	assert.Equal(t, "-3", rec.Left.X)
	assert.Equal(t, "2", rec.Left.Y)
	assert.Equal(t, "closed", rec.Left.Marker)
	assert.Equal(t, "open", rec.Right.Marker)
	assert.Equal(t, []string{}, rec.Asymptotes)
	assert.Equal(t, []string{"x=1"}, rec.Discontinuities)
	assert.Equal(t, []string{"(0, 2)", "(4, 0)"}, rec.Intercepts)
	assert.Equal(t, []string{"(x=2, y=3)"}, rec.KeyPoints)
	assert.Equal(t, "1", rec.Scale.XTick)
	assert.InDelta(t, 0.85, rec.Confidence, 1e-9)
}

func TestParseBlockEmbeddedInSolverOutput(t *testing.T) {
	// The block sits between prose and the final answer; everything after
	// FINAL ANSWER must be ignored.
	text := "Here is what I see.\n" + validBlock + "\nWORK:\nsteps\nFINAL ANSWER: [-3, 5)"
	rec, err := ParseBlock(text)
	require.NoError(t, err)
	assert.Equal(t, "open", rec.Right.Marker)
}

func TestParseBlockMissingRequiredField(t *testing.T) {
	text := strings.Replace(validBlock, "  ASYMPTOTES: none\n", "", 1)
	_, err := ParseBlock(text)
	assert.Error(t, err)
}

func TestParseBlockMalformedEndpoint(t *testing.T) {
	text := strings.Replace(validBlock, "x=-3, y=2, marker=closed", "somewhere on the left", 1)
	_, err := ParseBlock(text)
	assert.Error(t, err)
}

func TestParseBlockInvalidMarker(t *testing.T) {
	text := strings.Replace(validBlock, "marker=closed", "marker=solid", 1)
	_, err := ParseBlock(text)
	assert.Error(t, err)
}

func TestParseBlockUnclearCoordinates(t *testing.T) {
	text := strings.Replace(validBlock, "x=-3, y=2, marker=closed", "x=unclear, y=unclear, marker=unclear", 1)
	rec, err := ParseBlock(text)
	require.NoError(t, err)
	assert.Equal(t, "unclear", rec.Left.X)
	assert.Equal(t, "unclear", rec.Left.Marker)
}

func TestParseBlockConfidenceOutOfRange(t *testing.T) {
	text := strings.Replace(validBlock, "CONFIDENCE: 0.85", "CONFIDENCE: 1.5", 1)
	_, err := ParseBlock(text)
	assert.Error(t, err)
}

func TestParseBlockOptionalFieldsAbsent(t *testing.T) {
	text := strings.Replace(validBlock, "  INTERCEPTS: (0, 2); (4, 0)\n", "", 1)
	text = strings.Replace(text, "  KEY_POINTS: (x=2, y=3)\n", "", 1)
	rec, err := ParseBlock(text)
	require.NoError(t, err)
	assert.Nil(t, rec.Intercepts)
	assert.Nil(t, rec.KeyPoints)
}

func TestParseBlockUnknownFieldTolerated(t *testing.T) {
	text := strings.Replace(validBlock, "  CONFIDENCE: 0.85",
		"  CURVATURE: concave up\n  CONFIDENCE: 0.85", 1)
	rec, err := ParseBlock(text)
	require.NoError(t, err)
	assert.InDelta(t, 0.85, rec.Confidence, 1e-9)
}

func TestParseBlockRunawayOutputBounded(t *testing.T) {
	// Required fields pushed past the scan bound invalidate the block.
	filler := strings.Repeat("noise\n", 500)
	text := "GRAPH_EVIDENCE:\n" + filler + strings.TrimPrefix(validBlock, "GRAPH_EVIDENCE:\n")
	_, err := ParseBlock(text)
	assert.Error(t, err)
}

func TestParseBlockNoHeader(t *testing.T) {
	_, err := ParseBlock("WORK:\nno evidence here\nFINAL ANSWER: 4")
	assert.Error(t, err)
}

func TestIsInvalidSentinel(t *testing.T) {
	assert.True(t, IsInvalidSentinel("INVALID_GRAPH"))
	assert.True(t, IsInvalidSentinel("  invalid_graph\n"))
	assert.False(t, IsInvalidSentinel("the graph is invalid"))
}

func TestParseBlockRawRoundTrips(t *testing.T) {
	rec, err := ParseBlock(validBlock)
	require.NoError(t, err)

	again, err := ParseBlock(rec.Raw)
	require.NoError(t, err)
	assert.Equal(t, rec.Left, again.Left)
	assert.Equal(t, rec.Scale, again.Scale)
}
