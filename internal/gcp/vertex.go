package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"
)

// DefaultDraftingModel is used when VERTEX_AI_MODEL is not set.
const DefaultDraftingModel = "gemini-1.5-pro"

// VertexClient builds pre-configured drafting models.
type VertexClient struct {
	modelName  string
	baseClient *genai.Client
}

// NewVertexClient creates a new Vertex AI client for the drafting model.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultDraftingModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexClient{
		modelName:  modelName,
		baseClient: baseClient,
	}, nil
}

// ModelName returns the configured model identifier.
func (c *VertexClient) ModelName() string {
	return c.modelName
}

// DraftingModel returns a model configured with the given system prompt and output cap.
func (c *VertexClient) DraftingModel(systemPrompt string, maxOutputTokens int) *genai.GenerativeModel {
	model := c.baseClient.GenerativeModel(c.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		// Low temperature keeps legal drafting close to the source documents.
		Temperature: genai.Ptr[float32](0.3),
	}
	if maxOutputTokens > 0 {
		model.GenerationConfig.MaxOutputTokens = genai.Ptr(int32(maxOutputTokens))
	}
	return model
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
