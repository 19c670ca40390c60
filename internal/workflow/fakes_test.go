package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/Lllllllleong/legaldraftflow/internal/catalog"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

// fakeGenerator answers with a valid section body unless told otherwise.
type fakeGenerator struct {
	mu       sync.Mutex
	catalog  *catalog.Catalog
	results  []models.GenerationResult
	requests []models.GenerationRequest
	block    chan struct{}
	started  chan struct{}
}

func (g *fakeGenerator) Generate(_ context.Context, req models.GenerationRequest) models.GenerationResult {
	if g.started != nil {
		close(g.started)
		g.started = nil
	}
	if g.block != nil {
		<-g.block
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.results) > 0 {
		r := g.results[0]
		g.results = g.results[1:]
		return r
	}
	return models.GenerationResult{Success: true, Text: validText(g.catalog, req.SectionID)}
}

func (g *fakeGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

// validText returns a body that passes validation for the section.
func validText(cat *catalog.Catalog, sectionID string) string {
	s, _ := cat.At(cat.IndexOf(sectionID))
	target := (s.MinTokens + s.MaxTokens) / 2 * 4
	text := s.Title + "\n"
	for len(text) < target {
		text += "Os argumentos da ré não se sustentam. "
	}
	return text
}

type fakeStore struct {
	mu        sync.Mutex
	snapshots []models.WorkflowState
	err       error
}

func (s *fakeStore) Checkpoint(_ context.Context, _ string, snap models.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return s.err
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snapshots)
}

func (s *fakeStore) last() models.WorkflowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshots[len(s.snapshots)-1]
}

var errStoreDown = errors.New("store unavailable")

func petition() models.Document {
	return models.Document{Name: "inicial.pdf", FileType: "application/pdf", Content: "Petição inicial. Maria da Silva cobra R$ 1.000,00 desde 10/01/2023."}
}

func rebuttal() models.Document {
	return models.Document{Name: "contestacao.pdf", FileType: "application/pdf", Content: "Contestação. O réu apresenta sua defesa."}
}

func evidence(name string) models.Document {
	return models.Document{Name: name, FileType: "application/pdf", Content: "Comprovante de pagamento."}
}

func hasPrefixAny(items []string, prefix string) bool {
	for _, it := range items {
		if strings.HasPrefix(it, prefix) {
			return true
		}
	}
	return false
}
