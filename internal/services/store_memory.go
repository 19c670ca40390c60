package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/workflow"
)

type memoryRecord struct {
	state *storedState
	lease *Lease
}

// MemoryStore is an in-process SessionStore with the same lease and content
// layout as FirestoreStore.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]*memoryRecord
	contents map[string]string
	now      func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*memoryRecord),
		contents: make(map[string]string),
		now:      time.Now,
	}
}

func (s *MemoryStore) record(id string) *memoryRecord {
	rec, ok := s.records[id]
	if !ok {
		rec = &memoryRecord{}
		s.records[id] = rec
	}
	return rec
}

func (s *MemoryStore) sessionContents(id string, stored storedState) map[string]string {
	out := make(map[string]string)
	for _, h := range stored.contentRefs() {
		if text, ok := s.contents[id+"/"+h]; ok {
			out[h] = text
		}
	}
	return out
}

// Acquire implements SessionStore.
func (s *MemoryStore) Acquire(_ context.Context, sessionID string, ttl time.Duration) (*models.WorkflowState, *Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(sessionID)
	now := s.now()
	if rec.lease != nil && now.Before(rec.lease.Until) {
		return nil, nil, workflow.ErrSessionBusy
	}
	lease := &Lease{SessionID: sessionID, Token: uuid.NewString(), Until: now.Add(ttl), known: make(map[string]bool)}
	rec.lease = &Lease{SessionID: sessionID, Token: lease.Token, Until: lease.Until}
	if rec.state == nil {
		return nil, lease, nil
	}

	st, err := joinState(*rec.state, s.sessionContents(sessionID, *rec.state))
	if err != nil {
		rec.lease = nil
		return nil, nil, err
	}
	for _, h := range rec.state.contentRefs() {
		lease.known[h] = true
	}
	return &st, lease, nil
}

// Checkpoint implements SessionStore and workflow.ProgressStore.
func (s *MemoryStore) Checkpoint(ctx context.Context, sessionID string, snapshot models.WorkflowState) error {
	lease, _ := leaseFromContext(ctx, sessionID)
	return s.write(sessionID, lease, snapshot, false)
}

// Commit implements SessionStore.
func (s *MemoryStore) Commit(_ context.Context, lease *Lease, snapshot models.WorkflowState) error {
	return s.write(lease.SessionID, lease, snapshot, true)
}

func (s *MemoryStore) write(sessionID string, lease *Lease, snapshot models.WorkflowState, release bool) error {
	snapshot = snapshot.Snapshot()
	stored, contents := splitState(snapshot)

	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.record(sessionID)
	if lease != nil && (rec.lease == nil || rec.lease.Token != lease.Token) {
		return ErrLeaseLost
	}
	for h, text := range contents {
		s.contents[sessionID+"/"+h] = text
	}
	rec.state = &stored
	if release {
		rec.lease = nil
	}
	return nil
}

// Release implements SessionStore.
func (s *MemoryStore) Release(_ context.Context, lease *Lease) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[lease.SessionID]
	if !ok || rec.lease == nil || rec.lease.Token != lease.Token {
		return nil
	}
	rec.lease = nil
	if rec.state == nil {
		delete(s.records, lease.SessionID)
	}
	return nil
}

// Load implements SessionStore.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (models.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok || rec.state == nil {
		return models.WorkflowState{}, ErrSessionNotFound
	}
	st, err := joinState(*rec.state, s.sessionContents(sessionID, *rec.state))
	if err != nil {
		return models.WorkflowState{}, err
	}
	return st.Snapshot(), nil
}

// ListActive implements SessionStore. Sessions are ordered by ID.
func (s *MemoryStore) ListActive(_ context.Context) ([]models.WorkflowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.WorkflowState
	for _, rec := range s.records {
		if rec.state == nil || rec.state.Phase == models.PhaseCompleted {
			continue
		}
		st, _ := joinState(*rec.state, nil)
		out = append(out, st.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}
