package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldraftflow/internal/catalog"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/workflow"
)

// sectionWriter returns a body that passes validation for the requested section.
type sectionWriter struct {
	catalog *catalog.Catalog
	block   chan struct{}
	started chan struct{}
	once    sync.Once
	calls   atomic.Int32
}

func (g *sectionWriter) Generate(_ context.Context, req models.GenerationRequest) models.GenerationResult {
	g.calls.Add(1)
	if g.started != nil {
		g.once.Do(func() { close(g.started) })
	}
	if g.block != nil {
		<-g.block
	}
	s, _ := g.catalog.At(g.catalog.IndexOf(req.SectionID))
	target := (s.MinTokens + s.MaxTokens) / 2 * 4
	var b strings.Builder
	b.WriteString(s.Title + "\n")
	for b.Len() < target {
		b.WriteString("Os argumentos da ré não se sustentam. ")
	}
	return models.GenerationResult{Success: true, Text: b.String()}
}

type serviceHarness struct {
	svc   *SessionService
	store *MemoryStore
	gen   *sectionWriter
	cat   *catalog.Catalog
}

func newServiceHarness(t *testing.T, delivery *Delivery, opts ...workflow.Option) *serviceHarness {
	t.Helper()
	cat := catalog.Replica()
	gen := &sectionWriter{catalog: cat}
	store := NewMemoryStore()
	ctrl, err := workflow.NewController(cat, gen, store, workflow.DefaultConfig(), opts...)
	require.NoError(t, err)
	svc, err := NewSessionService(ctrl, store, delivery)
	require.NoError(t, err)
	return &serviceHarness{svc: svc, store: store, gen: gen, cat: cat}
}

// serviceOver builds another service sharing the harness store, as a second
// instance of the function would.
func (h *serviceHarness) serviceOver(t *testing.T, store SessionStore) *SessionService {
	t.Helper()
	ctrl, err := workflow.NewController(h.cat, h.gen, store, workflow.DefaultConfig())
	require.NoError(t, err)
	svc, err := NewSessionService(ctrl, store, nil)
	require.NoError(t, err)
	return svc
}

// failingStore wraps a MemoryStore and fails the selected writes.
type failingStore struct {
	*MemoryStore
	checkpointErr error
	commitErr     error
}

func (s *failingStore) Checkpoint(ctx context.Context, sessionID string, snapshot models.WorkflowState) error {
	if s.checkpointErr != nil {
		return s.checkpointErr
	}
	return s.MemoryStore.Checkpoint(ctx, sessionID, snapshot)
}

func (s *failingStore) Commit(ctx context.Context, lease *Lease, snapshot models.WorkflowState) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	return s.MemoryStore.Commit(ctx, lease, snapshot)
}

func caseDocuments() []models.Document {
	return []models.Document{
		{Name: "inicial.txt", FileType: "text/plain", Content: "Petição inicial. Maria da Silva cobra R$ 1.000,00 desde 10/01/2023."},
		{Name: "contestacao.txt", FileType: "text/plain", Content: "Contestação. O réu apresenta sua defesa."},
	}
}
