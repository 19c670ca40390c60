package workflow

import (
	"errors"
	"sync"

	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

// ErrSessionBusy is returned when an event arrives while another event for the
// same session is still being processed.
var ErrSessionBusy = errors.New("workflow: session is processing another event")

// Session owns one WorkflowState. Events are applied one at a time; a
// concurrent event is rejected with ErrSessionBusy instead of interleaving.
type Session struct {
	mu    sync.Mutex
	state *models.WorkflowState
}

// NewSession creates a session in PhaseInit.
func NewSession(id string) *Session {
	return &Session{state: models.NewWorkflowState(id)}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.state.SessionID
}

// State returns a copy of the current state. It blocks while an event is in flight.
func (s *Session) State() models.WorkflowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Snapshot()
}

func (s *Session) acquire() bool {
	return s.mu.TryLock()
}

func (s *Session) release() {
	s.mu.Unlock()
}
