package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"

	"cvbuilder/internal/config"
)

const (
	defaultVertexModel    = "gemini-1.5-flash"
	defaultVertexLocation = "us-central1"
)

// vertexCompleter wraps the Vertex AI Gemini API.
type vertexCompleter struct {
	client *genai.Client
	model  string
}

func newVertexCompleter(ctx context.Context, cfg config.AIConfig) (*vertexCompleter, error) {
	if strings.TrimSpace(cfg.VertexProject) == "" {
		return nil, errors.New("vertex project is not configured")
	}
	location := cfg.VertexLocation
	if location == "" {
		location = defaultVertexLocation
	}

	client, err := genai.NewClient(ctx, cfg.VertexProject, location)
	if err != nil {
		return nil, fmt.Errorf("create vertex client: %w", err)
	}

	model := cfg.Model
	if !strings.HasPrefix(model, "gemini") {
		model = defaultVertexModel
	}
	return &vertexCompleter{client: client, model: model}, nil
}

func (c *vertexCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(req.Temperature)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func (c *vertexCompleter) Close() error {
	return c.client.Close()
}
