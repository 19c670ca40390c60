package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/vertexai/genai"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/legaldraftflow/internal/gcp"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

// refusalPhrases are matched case-insensitively against generated text.
var refusalPhrases = []string{
	"i am unable to",
	"i cannot fulfill",
	"i cannot answer",
	"i cannot provide",
	"as a large language model",
	"não posso ajudar",
	"não posso atender",
	"não posso fornecer",
	"como um modelo de linguagem",
}

// completeFunc performs one backend call and returns the raw model text.
type completeFunc func(ctx context.Context, req models.GenerationRequest) (string, error)

// classifyFunc maps a backend error to a generation error kind.
type classifyFunc func(err error) string

// runGeneration applies the timeout, output cleanup and refusal check shared
// by every backend.
func runGeneration(ctx context.Context, logger *slog.Logger, timeout time.Duration, req models.GenerationRequest, complete completeFunc, classify classifyFunc) models.GenerationResult {
	logCtx := logger.With("sectionId", req.SectionID)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	raw, err := complete(ctx, req)
	if err != nil {
		kind := models.ErrorKindBackend
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			kind = models.ErrorKindTimeout
		case classify != nil:
			kind = classify(err)
		}
		logCtx.Error("Generation call failed", "errorKind", kind, "error", err)
		return models.GenerationFailed(kind)
	}

	text := cleanModelOutput(raw)
	if text == "" {
		logCtx.Warn("Generation returned no text")
		return models.GenerationFailed(models.ErrorKindEmptyResponse)
	}
	if isRefusal(text) {
		logCtx.Warn("Generation response indicates refusal", "response", text)
		return models.GenerationFailed(models.ErrorKindRefusal)
	}
	return models.GenerationResult{Success: true, Text: text}
}

// cleanModelOutput strips the Markdown code fence models sometimes wrap output in.
func cleanModelOutput(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```markdown")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isRefusal(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range refusalPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// VertexGenerator drafts sections with a Gemini model on Vertex AI.
type VertexGenerator struct {
	client  *gcp.VertexClient
	timeout time.Duration
	logger  *slog.Logger
}

// NewVertexGenerator wraps a Vertex AI client.
func NewVertexGenerator(client *gcp.VertexClient, timeout time.Duration) (*VertexGenerator, error) {
	if client == nil {
		return nil, errors.New("NewVertexGenerator: client is required")
	}
	return &VertexGenerator{client: client, timeout: timeout, logger: slog.Default()}, nil
}

// Generate implements workflow.GenerationClient.
func (g *VertexGenerator) Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult {
	return runGeneration(ctx, g.logger.With("model", g.client.ModelName()), g.timeout, req, g.complete, classifyVertexError)
}

func (g *VertexGenerator) complete(ctx context.Context, req models.GenerationRequest) (string, error) {
	model := g.client.DraftingModel(req.SystemPrompt, req.MaxOutputTokens)
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", err
	}
	return extractText(resp), nil
}

// extractText concatenates the text parts of the first candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}

func classifyVertexError(err error) string {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return models.ErrorKindRefusal
	}
	switch status.Code(err) {
	case codes.DeadlineExceeded:
		return models.ErrorKindTimeout
	case codes.InvalidArgument, codes.FailedPrecondition:
		return models.ErrorKindInvalidRequest
	}
	return models.ErrorKindBackend
}

// OpenAIGenerator drafts sections through an OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	client  openai.Client
	model   string
	timeout time.Duration
	logger  *slog.Logger
}

// NewOpenAIGenerator builds a generator for the given model. Extra request
// options are appended after the API key and base URL.
func NewOpenAIGenerator(apiKey, baseURL, model string, timeout time.Duration, extra ...option.RequestOption) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("NewOpenAIGenerator: api key is required")
	}
	if model == "" {
		return nil, errors.New("NewOpenAIGenerator: model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &OpenAIGenerator{
		client:  openai.NewClient(opts...),
		model:   model,
		timeout: timeout,
		logger:  slog.Default(),
	}, nil
}

// Generate implements workflow.GenerationClient.
func (g *OpenAIGenerator) Generate(ctx context.Context, req models.GenerationRequest) models.GenerationResult {
	return runGeneration(ctx, g.logger.With("model", g.model), g.timeout, req, g.complete, classifyOpenAIError)
}

func (g *OpenAIGenerator) complete(ctx context.Context, req models.GenerationRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(0.3),
	}
	if req.MaxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
	}
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) string {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return models.ErrorKindInvalidRequest
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return models.ErrorKindTimeout
		}
	}
	return models.ErrorKindBackend
}
