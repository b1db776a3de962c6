package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	client *openai.Client
}

func NewOpenAIClient(apiKey string, baseURL string) *OpenAIClient {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIClient{client: openai.NewClientWithConfig(config)}
}

// IsReasoningFamily reports whether the model rejects a sampling temperature
// and takes its token budget via max_completion_tokens.
func IsReasoningFamily(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "gpt-5") ||
		strings.HasPrefix(m, "o1") ||
		strings.HasPrefix(m, "o3") ||
		strings.HasPrefix(m, "o4")
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := withTimeout(ctx, req.Timeout)
	defer cancel()

	chatReq := c.buildRequest(req, true)
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	if err != nil && isUnsupportedParam(err) && chatReq.Temperature != 0 {
		// Same content, parameter stripped. Idempotent by construction.
		resp, err = c.client.CreateChatCompletion(ctx, c.buildRequest(req, false))
	}
	if err != nil {
		return "", err
	}
	return extractChatText(resp)
}

func (c *OpenAIClient) buildRequest(req Request, withTemperature bool) openai.ChatCompletionRequest {
	parts := make([]openai.ChatMessagePart, 0, len(req.Segments))
	for _, seg := range req.Segments {
		switch seg.Kind {
		case SegmentText:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: seg.Text,
			})
		case SegmentImage:
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(seg.PNG),
				},
			})
		}
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:         openai.ChatMessageRoleUser,
		MultiContent: parts,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}

	tokens := req.MaxOutputTokens
	if tokens < 16 {
		tokens = 16
	}
	if IsReasoningFamily(req.Model) {
		// Reasoning burns output budget before any visible text appears.
		if tokens < 128 {
			tokens = 128
		}
		chatReq.MaxCompletionTokens = tokens
		chatReq.ReasoningEffort = "low"
	} else {
		chatReq.MaxTokens = tokens
		if withTemperature && req.Temperature != nil {
			chatReq.Temperature = *req.Temperature
		}
	}
	return chatReq
}

func isUnsupportedParam(err error) bool {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if code, ok := apiErr.Code.(string); ok && code == "unsupported_parameter" {
		return true
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "unsupported parameter") || strings.Contains(msg, "unsupported value")
}

// extractChatText prefers the first choice's content and falls back to
// concatenating text fragments across all choices.
func extractChatText(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) > 0 {
		if text := resp.Choices[0].Message.Content; strings.TrimSpace(text) != "" {
			return text, nil
		}
	}

	var pieces []string
	for _, choice := range resp.Choices {
		if text := strings.TrimSpace(choice.Message.Content); text != "" {
			pieces = append(pieces, text)
			continue
		}
		for _, part := range choice.Message.MultiContent {
			if part.Type == openai.ChatMessagePartTypeText && strings.TrimSpace(part.Text) != "" {
				pieces = append(pieces, part.Text)
			}
		}
	}
	if len(pieces) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.Join(pieces, "\n"), nil
}
