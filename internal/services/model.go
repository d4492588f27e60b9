package services

import (
	"context"
	"fmt"

	"studyai-backend/internal/config"
)

// NewModelFromConfig builds the backend selected by LLM_PROVIDER. The returned
// close func releases the client.
func NewModelFromConfig(ctx context.Context, cfg *config.Config) (Model, func() error, error) {
	switch cfg.LLMProvider {
	case "openai":
		return NewOpenAIModel(cfg.LLMAPIKey, cfg.LLMBaseURL, cfg.LLMModel), func() error { return nil }, nil
	case "gemini":
		m, err := NewGeminiModel(ctx, cfg.LLMAPIKey, cfg.LLMModel)
		if err != nil {
			return nil, nil, err
		}
		return m, m.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}
