package insights

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// VertexModel implements Model on Vertex AI Gemini
type VertexModel struct {
	client *genai.Client
	model  string
}

// NewVertexModel creates a Vertex AI client for projectID in location
func NewVertexModel(ctx context.Context, projectID, location, model string) (*VertexModel, error) {
	client, err := genai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	return &VertexModel{
		client: client,
		model:  model,
	}, nil
}

// Close closes the Vertex AI client
func (v *VertexModel) Close() error {
	return v.client.Close()
}

// Generate runs a single-turn request and returns the concatenated text parts
func (v *VertexModel) Generate(ctx context.Context, p Prompt) (string, error) {
	model := v.client.GenerativeModel(v.model)

	model.SetTemperature(p.Temperature)
	model.SetMaxOutputTokens(2048)
	if p.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(p.System)},
		}
	}
	if p.JSON {
		model.ResponseMIMEType = "application/json"
	}

	var parts []genai.Part
	if p.Audio != nil {
		parts = append(parts, genai.Blob{MIMEType: p.Audio.ContentType, Data: p.Audio.Data})
	}
	parts = append(parts, genai.Text(p.Text))

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates generated")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}

	return text, nil
}
