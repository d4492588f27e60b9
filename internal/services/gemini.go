package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiModel answers structured prompts with Gemini's JSON response mode.
type GeminiModel struct {
	client    *genai.Client
	modelName string
	models    map[Operation]*genai.GenerativeModel
}

func NewGeminiModel(ctx context.Context, apiKey, modelName string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	g := &GeminiModel{
		client:    client,
		modelName: modelName,
		models:    make(map[Operation]*genai.GenerativeModel),
	}
	for op, schema := range responseSchemas() {
		model := client.GenerativeModel(modelName)
		model.SetTemperature(0.3)
		model.SetTopP(0.95)
		model.ResponseMIMEType = "application/json"
		model.ResponseSchema = schema
		g.models[op] = model
	}

	return g, nil
}

func (g *GeminiModel) Name() string { return "gemini/" + g.modelName }

func (g *GeminiModel) Close() error {
	return g.client.Close()
}

func (g *GeminiModel) GenerateJSON(ctx context.Context, req ModelRequest) (string, error) {
	model, ok := g.models[req.Operation]
	if !ok {
		return "", fmt.Errorf("no response schema for operation %q", req.Operation)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	return responseText(resp)
}

// responseText returns the JSON text of the first candidate, or an error when
// the prompt was blocked or nothing usable came back.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("Gemini returned no response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		reason := "no candidates"
		if len(resp.Candidates) > 0 {
			reason = resp.Candidates[0].FinishReason.String()
		}
		return "", fmt.Errorf("Gemini returned empty text (finish reason: %s)", reason)
	}
	return text, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String()
}

func responseSchemas() map[Operation]*genai.Schema {
	concepts := &genai.Schema{
		Type:        genai.TypeArray,
		Description: "The key concepts extracted from the content.",
		Items:       &genai.Schema{Type: genai.TypeString},
	}

	return map[Operation]*genai.Schema{
		OperationStudyMaterials: {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"summary": {
					Type:        genai.TypeString,
					Description: "A concise summary of the input content.",
				},
				"keyConcepts": concepts,
				"flashcards": {
					Type:        genai.TypeArray,
					Description: "Generated flashcards, formatted as questions and answers.",
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"question": {Type: genai.TypeString},
							"answer":   {Type: genai.TypeString},
						},
						Required: []string{"question", "answer"},
					},
				},
			},
			Required: []string{"summary", "keyConcepts", "flashcards"},
		},
		OperationKeyConcepts: {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"keyConcepts": concepts,
			},
			Required: []string{"keyConcepts"},
		},
	}
}
