package services

import (
	"fmt"
	"time"

	"github.com/Lllllllleong/legaldraftflow/internal/catalog"
	"github.com/Lllllllleong/legaldraftflow/internal/gcp"
	"github.com/Lllllllleong/legaldraftflow/internal/workflow"
)

// Generation backends.
const (
	BackendVertex = "vertex"
	BackendOpenAI = "openai"
)

// Config holds all configuration for the drafting functions.
type Config struct {
	ProjectID          string
	VertexAIRegion     string
	VertexAIModel      string
	GenerationBackend  string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	GenerationTimeout  time.Duration
	SessionsCollection string
	DeliveryBucket     string
	DeliveryWorkflowID string
	WorkflowLocation   string
	CatalogFile        string
	Workflow           workflow.Config
}

// LoadConfig loads and validates all necessary environment variables.
func LoadConfig() (*Config, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	timeout, err := gcp.GetEnvDuration("GENERATION_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, err
	}

	wf := workflow.DefaultConfig()
	wf.ConfirmToken = gcp.GetEnv("CONFIRM_TOKEN", wf.ConfirmToken)
	wf.ModifyToken = gcp.GetEnv("MODIFY_TOKEN", wf.ModifyToken)

	cfg := &Config{
		ProjectID:          projectID,
		VertexAIRegion:     gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		VertexAIModel:      gcp.GetEnv("VERTEX_AI_MODEL", gcp.DefaultDraftingModel),
		GenerationBackend:  gcp.GetEnv("GENERATION_BACKEND", BackendVertex),
		OpenAIAPIKey:       gcp.GetEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      gcp.GetEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:        gcp.GetEnv("OPENAI_MODEL", "gpt-4o"),
		GenerationTimeout:  timeout,
		SessionsCollection: gcp.GetEnv("SESSIONS_COLLECTION", "replicaSessions"),
		DeliveryBucket:     gcp.GetEnv("DELIVERY_BUCKET", ""),
		DeliveryWorkflowID: gcp.GetEnv("DELIVERY_WORKFLOW_ID", ""),
		WorkflowLocation:   gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		CatalogFile:        gcp.GetEnv("CATALOG_FILE", ""),
		Workflow:           wf,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field rules.
func (c *Config) Validate() error {
	switch c.GenerationBackend {
	case BackendVertex:
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set when GENERATION_BACKEND is %q", BackendOpenAI)
		}
	default:
		return fmt.Errorf("GENERATION_BACKEND must be %q or %q, got %q", BackendVertex, BackendOpenAI, c.GenerationBackend)
	}
	if c.DeliveryWorkflowID != "" && c.DeliveryBucket == "" {
		return fmt.Errorf("DELIVERY_BUCKET must be set when DELIVERY_WORKFLOW_ID is set")
	}
	return c.Workflow.Validate()
}

// LoadCatalog returns the override catalog when CATALOG_FILE is set, else the built-in one.
func (c *Config) LoadCatalog() (*catalog.Catalog, error) {
	if c.CatalogFile == "" {
		return catalog.Replica(), nil
	}
	return catalog.LoadFile(c.CatalogFile)
}
