package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	executions "cloud.google.com/go/workflows/executions/apiv1"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Lllllllleong/legaldraftflow/internal/catalog"
	"github.com/Lllllllleong/legaldraftflow/internal/gcp"
	"github.com/Lllllllleong/legaldraftflow/internal/metrics"
	"github.com/Lllllllleong/legaldraftflow/internal/workflow"
)

// Runtime holds the clients shared by the cloud functions.
type Runtime struct {
	Config   *Config
	Catalog  *catalog.Catalog
	Sessions *SessionService
	Storage  *storage.Client

	firestore *firestore.Client
	vertex    *gcp.VertexClient
	workflows *executions.Client
}

// NewRuntime loads configuration from the environment and builds every client.
// reg may be nil to skip metrics.
func NewRuntime(ctx context.Context, reg prometheus.Registerer) (*Runtime, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	cat, err := cfg.LoadCatalog()
	if err != nil {
		return nil, err
	}
	rt := &Runtime{Config: cfg, Catalog: cat}

	if rt.firestore, err = gcp.NewFirestoreClient(ctx, cfg.ProjectID); err != nil {
		return nil, err
	}
	store, err := NewFirestoreStore(rt.firestore, cfg.SessionsCollection)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if rt.Storage, err = storage.NewClient(ctx); err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	gen, err := rt.newGenerator(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var opts []workflow.Option
	if reg != nil {
		m, err := metrics.NewGeneration(reg)
		if err != nil {
			rt.Close()
			return nil, err
		}
		opts = append(opts, workflow.WithMetrics(m))
	}
	ctrl, err := workflow.NewController(cat, gen, store, cfg.Workflow, opts...)
	if err != nil {
		rt.Close()
		return nil, err
	}

	delivery, err := rt.newDelivery(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	if rt.Sessions, err = NewSessionService(ctrl, store, delivery, WithLeaseTTL(cfg.GenerationTimeout+30*time.Second)); err != nil {
		rt.Close()
		return nil, err
	}
	slog.Info("Runtime initialised.", "backend", cfg.GenerationBackend, "sections", cat.Len(), "delivery", delivery != nil)
	return rt, nil
}

func (rt *Runtime) newGenerator(ctx context.Context) (workflow.GenerationClient, error) {
	cfg := rt.Config
	if cfg.GenerationBackend == BackendOpenAI {
		return NewOpenAIGenerator(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel, cfg.GenerationTimeout)
	}
	vertex, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.VertexAIModel)
	if err != nil {
		return nil, err
	}
	rt.vertex = vertex
	return NewVertexGenerator(vertex, cfg.GenerationTimeout)
}

func (rt *Runtime) newDelivery(ctx context.Context) (*Delivery, error) {
	cfg := rt.Config
	if cfg.DeliveryBucket == "" {
		return nil, nil
	}
	var trigger WorkflowTrigger
	if cfg.DeliveryWorkflowID != "" {
		client, err := gcp.NewExecutionsClient(ctx)
		if err != nil {
			return nil, err
		}
		rt.workflows = client
		trigger = ExecutionsTrigger(client, cfg.ProjectID, cfg.WorkflowLocation, cfg.DeliveryWorkflowID)
	}
	return NewDelivery(rt.Catalog, NewGCSWriter(rt.Storage, cfg.DeliveryBucket), cfg.DeliveryBucket, trigger)
}

// Close releases every client that was created.
func (rt *Runtime) Close() {
	if rt.firestore != nil {
		_ = rt.firestore.Close()
	}
	if rt.Storage != nil {
		_ = rt.Storage.Close()
	}
	if rt.vertex != nil {
		_ = rt.vertex.Close()
	}
	if rt.workflows != nil {
		_ = rt.workflows.Close()
	}
}
