package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/workflow"
)

var (
	// ErrSessionNotFound is returned when no checkpoint exists for a session ID.
	ErrSessionNotFound = errors.New("session not found")
	// ErrLeaseLost is returned when a save finds that another event took over the session.
	ErrLeaseLost = fmt.Errorf("%w: session lease was taken over", workflow.ErrSessionBusy)
)

// Lease is exclusive permission to apply one event to a session.
type Lease struct {
	SessionID string
	Token     string
	Until     time.Time

	// known holds the content hashes already stored for the session.
	known map[string]bool
}

type leaseContextKey struct{}

func contextWithLease(ctx context.Context, lease *Lease) context.Context {
	return context.WithValue(ctx, leaseContextKey{}, lease)
}

func leaseFromContext(ctx context.Context, sessionID string) (*Lease, bool) {
	lease, ok := ctx.Value(leaseContextKey{}).(*Lease)
	if !ok || lease == nil || lease.SessionID != sessionID {
		return nil, false
	}
	return lease, true
}

// SessionStore persists workflow snapshots and serialises events per session.
type SessionStore interface {
	// Acquire leases the session for ttl. The state is nil when the session does
	// not exist yet. A live lease held by another event yields workflow.ErrSessionBusy.
	Acquire(ctx context.Context, sessionID string, ttl time.Duration) (*models.WorkflowState, *Lease, error)
	// Checkpoint saves an intermediate snapshot. When ctx carries a lease for the
	// session, the write only succeeds while that lease is held.
	Checkpoint(ctx context.Context, sessionID string, snapshot models.WorkflowState) error
	// Commit saves the snapshot and releases the lease.
	Commit(ctx context.Context, lease *Lease, snapshot models.WorkflowState) error
	// Release drops the lease without saving.
	Release(ctx context.Context, lease *Lease) error
	Load(ctx context.Context, sessionID string) (models.WorkflowState, error)
	// ListActive returns unfinished sessions. Documents are listed without content.
	ListActive(ctx context.Context) ([]models.WorkflowState, error)
}

// storedDocument is a Document whose text lives in a separate content record.
type storedDocument struct {
	Name       string        `firestore:"name"`
	FileType   string        `firestore:"fileType"`
	RoleTags   []models.Role `firestore:"roleTags,omitempty"`
	ContentRef string        `firestore:"contentRef"`
}

// storedState mirrors models.WorkflowState with document text split out, so the
// session record stays well under the Firestore document size limit.
type storedState struct {
	SessionID           string            `firestore:"sessionId"`
	Phase               models.Phase      `firestore:"phase"`
	CurrentSectionIndex int               `firestore:"currentSectionIndex"`
	Documents           []storedDocument  `firestore:"documents"`
	Pending             []storedDocument  `firestore:"pending,omitempty"`
	SectionContents     map[string]string `firestore:"sectionContents"`
	Attempts            int               `firestore:"attempts"`
	LastErrors          []string          `firestore:"lastErrors,omitempty"`
	LastWarnings        []string          `firestore:"lastWarnings,omitempty"`
	UpdatedAt           time.Time         `firestore:"updatedAt"`
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// splitState separates document text from the rest of the state. contents is
// keyed by content hash.
func splitState(st models.WorkflowState) (storedState, map[string]string) {
	contents := make(map[string]string)
	split := func(docs []models.Document) []storedDocument {
		if docs == nil {
			return nil
		}
		out := make([]storedDocument, 0, len(docs))
		for _, d := range docs {
			ref := contentHash(d.Content)
			contents[ref] = d.Content
			out = append(out, storedDocument{Name: d.Name, FileType: d.FileType, RoleTags: d.RoleTags, ContentRef: ref})
		}
		return out
	}
	stored := storedState{
		SessionID:           st.SessionID,
		Phase:               st.Phase,
		CurrentSectionIndex: st.CurrentSectionIndex,
		Documents:           split(st.Documents),
		Pending:             split(st.Pending),
		SectionContents:     st.SectionContents,
		Attempts:            st.Attempts,
		LastErrors:          st.LastErrors,
		LastWarnings:        st.LastWarnings,
		UpdatedAt:           st.UpdatedAt,
	}
	return stored, contents
}

// contentRefs lists the distinct content hashes a stored state points to.
func (s storedState) contentRefs() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, docs := range [][]storedDocument{s.Documents, s.Pending} {
		for _, d := range docs {
			if !seen[d.ContentRef] {
				seen[d.ContentRef] = true
				refs = append(refs, d.ContentRef)
			}
		}
	}
	return refs
}

// joinState rebuilds a WorkflowState. A nil contents map leaves document text empty.
func joinState(stored storedState, contents map[string]string) (models.WorkflowState, error) {
	var missing error
	join := func(docs []storedDocument) []models.Document {
		if docs == nil {
			return nil
		}
		out := make([]models.Document, 0, len(docs))
		for _, d := range docs {
			doc := models.Document{Name: d.Name, FileType: d.FileType, RoleTags: d.RoleTags}
			if contents != nil {
				text, ok := contents[d.ContentRef]
				if !ok && missing == nil {
					missing = fmt.Errorf("session %s: content %s of %q is missing", stored.SessionID, d.ContentRef, d.Name)
				}
				doc.Content = text
			}
			out = append(out, doc)
		}
		return out
	}
	st := models.WorkflowState{
		SessionID:           stored.SessionID,
		Phase:               stored.Phase,
		CurrentSectionIndex: stored.CurrentSectionIndex,
		Documents:           join(stored.Documents),
		Pending:             join(stored.Pending),
		SectionContents:     stored.SectionContents,
		Attempts:            stored.Attempts,
		LastErrors:          stored.LastErrors,
		LastWarnings:        stored.LastWarnings,
		UpdatedAt:           stored.UpdatedAt,
	}
	if st.SectionContents == nil {
		st.SectionContents = make(map[string]string)
	}
	return st, missing
}
