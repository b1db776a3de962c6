package llm

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	model := c.client.GenerativeModel(req.Model)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}
	if req.Temperature != nil {
		model.SetTemperature(*req.Temperature)
	}
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}

	parts := make([]genai.Part, 0, len(req.Segments))
	for _, seg := range req.Segments {
		switch seg.Kind {
		case SegmentText:
			parts = append(parts, genai.Text(seg.Text))
		case SegmentImage:
			parts = append(parts, genai.ImageData("png", seg.PNG))
		}
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", err
	}

	var pieces []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if txt, ok := part.(genai.Text); ok && strings.TrimSpace(string(txt)) != "" {
				pieces = append(pieces, string(txt))
			}
		}
		// First candidate with text wins; remaining candidates are alternates.
		if len(pieces) > 0 {
			break
		}
	}
	if len(pieces) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.Join(pieces, "\n"), nil
}

func (c *GeminiClient) Close() error { return c.client.Close() }
