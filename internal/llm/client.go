package llm

import (
	"context"
	"time"
)

type SegmentKind int

const (
	SegmentText SegmentKind = iota
	SegmentImage
)

// Segment is one ordered input element of a model request. Image segments
// carry PNG bytes; text segments carry plain UTF-8.
type Segment struct {
	Kind SegmentKind
	Text string
	PNG  []byte
}

func TextSegment(text string) Segment { return Segment{Kind: SegmentText, Text: text} }
func ImageSegment(png []byte) Segment { return Segment{Kind: SegmentImage, PNG: png} }

// Request describes a single model invocation. Temperature is a pointer so
// callers can distinguish an explicit 0.0 from "provider default"; providers
// omit it entirely for model families that reject the parameter.
type Request struct {
	Model           string
	System          string
	Segments        []Segment
	MaxOutputTokens int
	Temperature     *float32
	Timeout         time.Duration
}

// Client is a single-attempt generation primitive. Retry and backoff policy
// live in the solve coordinator, never here.
type Client interface {
	Generate(ctx context.Context, req Request) (string, error)
}

func Temp(v float32) *float32 { return &v }

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
