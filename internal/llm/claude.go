package llm

import (
	"context"
	"encoding/base64"

	"github.com/liushuangls/go-anthropic/v2"
)

type ClaudeClient struct {
	client *anthropic.Client
}

func NewClaudeClient(apiKey string, baseURL string) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &ClaudeClient{client: anthropic.NewClient(apiKey, opts...)}
}

func (c *ClaudeClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	content := make([]anthropic.MessageContent, 0, len(req.Segments))
	for _, seg := range req.Segments {
		switch seg.Kind {
		case SegmentText:
			content = append(content, anthropic.NewTextMessageContent(seg.Text))
		case SegmentImage:
			content = append(content, anthropic.NewImageMessageContent(
				anthropic.NewMessageContentSource(
					anthropic.MessagesContentSourceTypeBase64,
					"image/png",
					base64.StdEncoding.EncodeToString(seg.PNG),
				),
			))
		}
	}

	tokens := req.MaxOutputTokens
	if tokens < 16 {
		tokens = 16
	}
	msgReq := anthropic.MessagesRequest{
		Model:  anthropic.Model(req.Model),
		System: req.System,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: content},
		},
		MaxTokens:   tokens,
		Temperature: req.Temperature,
	}

	resp, err := c.client.CreateMessages(ctx, msgReq)
	if err != nil {
		return "", err
	}
	if len(resp.Content) > 0 && resp.Content[0].Text != nil && *resp.Content[0].Text != "" {
		return *resp.Content[0].Text, nil
	}
	// Fallback: concatenate whatever text fragments came back.
	var out string
	for _, part := range resp.Content {
		if part.Text != nil {
			out += *part.Text
		}
	}
	if out == "" {
		return "", ErrEmptyResponse
	}
	return out, nil
}
