package models

import "time"

// Phase is the drafting workflow's state.
type Phase string

const (
	PhaseInit                 Phase = "INIT"
	PhaseAwaitingDocuments    Phase = "AWAITING_DOCUMENTS"
	PhaseAwaitingConfirmation Phase = "AWAITING_CONFIRMATION"
	PhaseGenerating           Phase = "GENERATING"
	PhaseCompleted            Phase = "COMPLETED"
)

var validPhases = map[Phase]bool{
	PhaseInit:                 true,
	PhaseAwaitingDocuments:    true,
	PhaseAwaitingConfirmation: true,
	PhaseGenerating:           true,
	PhaseCompleted:            true,
}

// IsValid reports whether p is one of the known phases.
func (p Phase) IsValid() bool {
	return validPhases[p]
}

// IsTerminal reports whether no further transitions are allowed.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted
}

func (p Phase) String() string {
	return string(p)
}

// WorkflowState is owned by exactly one drafting session.
//
// SectionContents holds generated text keyed by section id; its keys are
// always exactly catalog[0:CurrentSectionIndex].
type WorkflowState struct {
	SessionID           string            `firestore:"sessionId" json:"sessionId"`
	Phase               Phase             `firestore:"phase" json:"phase"`
	CurrentSectionIndex int               `firestore:"currentSectionIndex" json:"currentSectionIndex"`
	Documents           []Document        `firestore:"documents" json:"documents"`
	Pending             []Document        `firestore:"pending,omitempty" json:"pending,omitempty"`
	SectionContents     map[string]string `firestore:"sectionContents" json:"sectionContents"`
	Attempts            int               `firestore:"attempts" json:"attempts"`
	LastErrors          []string          `firestore:"lastErrors,omitempty" json:"lastErrors,omitempty"`
	LastWarnings        []string          `firestore:"lastWarnings,omitempty" json:"lastWarnings,omitempty"`
	UpdatedAt           time.Time         `firestore:"updatedAt" json:"updatedAt"`
}

// NewWorkflowState returns a fresh state in PhaseInit.
func NewWorkflowState(sessionID string) *WorkflowState {
	return &WorkflowState{
		SessionID:       sessionID,
		Phase:           PhaseInit,
		SectionContents: make(map[string]string),
	}
}

// Snapshot returns a deep copy suitable for checkpointing.
func (s *WorkflowState) Snapshot() WorkflowState {
	out := *s
	out.Documents = copyDocuments(s.Documents)
	out.Pending = copyDocuments(s.Pending)
	out.SectionContents = make(map[string]string, len(s.SectionContents))
	for k, v := range s.SectionContents {
		out.SectionContents[k] = v
	}
	out.LastErrors = append([]string(nil), s.LastErrors...)
	out.LastWarnings = append([]string(nil), s.LastWarnings...)
	return out
}

func copyDocuments(docs []Document) []Document {
	if docs == nil {
		return nil
	}
	out := make([]Document, len(docs))
	for i, d := range docs {
		d.RoleTags = append([]Role(nil), d.RoleTags...)
		out[i] = d
	}
	return out
}
