package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/agenthands/clipsolve/internal/config"
)

func NewClient(ctx context.Context, cfg config.LLMConfig, apiKey string) (Client, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "openai":
		return NewOpenAIClient(apiKey, cfg.BaseURL), nil

	case "gemini":
		return NewGeminiClient(ctx, apiKey)

	case "claude":
		return NewClaudeClient(apiKey, cfg.BaseURL), nil

	case "ollama":
		// Ollama speaks the OpenAI-compatible API; the key is a dummy.
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if !strings.HasSuffix(baseURL, "/v1") {
			baseURL = fmt.Sprintf("%s/v1", strings.TrimRight(baseURL, "/"))
		}
		if apiKey == "" {
			apiKey = "ollama"
		}
		return NewOpenAIClient(apiKey, baseURL), nil

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", provider)
	}
}
