package services

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompleter is the slice of the OpenAI client the model needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIModel talks to any OpenAI-compatible chat completion endpoint.
type OpenAIModel struct {
	client    ChatCompleter
	modelName string
}

func NewOpenAIModel(apiKey, baseURL, modelName string) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIModel{client: openai.NewClientWithConfig(cfg), modelName: modelName}
}

func NewOpenAIModelWithClient(client ChatCompleter, modelName string) *OpenAIModel {
	return &OpenAIModel{client: client, modelName: modelName}
}

func (m *OpenAIModel) Name() string { return "openai/" + m.modelName }

func (m *OpenAIModel) GenerateJSON(ctx context.Context, req ModelRequest) (string, error) {
	resp, err := m.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       m.modelName,
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You are a study assistant. Always answer with a single JSON object."},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	text := resp.Choices[0].Message.Content
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("chat completion returned empty content (finish reason: %s)", resp.Choices[0].FinishReason)
	}
	return text, nil
}
