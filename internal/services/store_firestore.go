package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/iterator"

	"github.com/Lllllllleong/legaldraftflow/internal/gcp"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/workflow"
)

// contentsCollection is the per-session subcollection holding document text,
// one record per distinct content hash.
const contentsCollection = "contents"

type leaseRecord struct {
	Token string    `firestore:"token"`
	Until time.Time `firestore:"until"`
}

type sessionRecord struct {
	State *storedState `firestore:"state,omitempty"`
	Lease *leaseRecord `firestore:"lease,omitempty"`
}

type contentRecord struct {
	Content string `firestore:"content"`
}

// FirestoreStore keeps one document per session in a collection. Leases and
// state writes go through transactions on that document.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
	now        func() time.Time
}

// NewFirestoreStore creates a store over the given collection.
func NewFirestoreStore(client *firestore.Client, collection string) (*FirestoreStore, error) {
	if client == nil || collection == "" {
		return nil, fmt.Errorf("NewFirestoreStore: client and collection are required")
	}
	return &FirestoreStore{client: client, collection: collection, now: time.Now}, nil
}

func (s *FirestoreStore) sessionRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) contentRef(id, hash string) *firestore.DocumentRef {
	return s.sessionRef(id).Collection(contentsCollection).Doc(hash)
}

func readRecord(tx *firestore.Transaction, ref *firestore.DocumentRef) (*sessionRecord, error) {
	doc, err := tx.Get(ref)
	if err != nil {
		if gcp.IsNotFound(err) {
			return &sessionRecord{}, nil
		}
		return nil, err
	}
	var rec sessionRecord
	if err := doc.DataTo(&rec); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", ref.ID, err)
	}
	return &rec, nil
}

// Acquire implements SessionStore.
func (s *FirestoreStore) Acquire(ctx context.Context, sessionID string, ttl time.Duration) (*models.WorkflowState, *Lease, error) {
	ref := s.sessionRef(sessionID)
	lease := &Lease{SessionID: sessionID, Token: uuid.NewString()}
	var stored *storedState

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		rec, err := readRecord(tx, ref)
		if err != nil {
			return err
		}
		now := s.now()
		if rec.Lease != nil && now.Before(rec.Lease.Until) {
			return workflow.ErrSessionBusy
		}
		lease.Until = now.Add(ttl)
		stored = rec.State
		rec.Lease = &leaseRecord{Token: lease.Token, Until: lease.Until}
		return tx.Set(ref, rec)
	})
	if errors.Is(err, workflow.ErrSessionBusy) {
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lease session %s: %w", sessionID, err)
	}

	lease.known = make(map[string]bool)
	if stored == nil {
		return nil, lease, nil
	}
	st, err := s.expand(ctx, *stored)
	if err != nil {
		_ = s.Release(context.WithoutCancel(ctx), lease)
		return nil, nil, err
	}
	for _, h := range stored.contentRefs() {
		lease.known[h] = true
	}
	return &st, lease, nil
}

// Checkpoint implements SessionStore and workflow.ProgressStore.
func (s *FirestoreStore) Checkpoint(ctx context.Context, sessionID string, snapshot models.WorkflowState) error {
	lease, _ := leaseFromContext(ctx, sessionID)
	if err := s.write(ctx, sessionID, lease, snapshot, false); err != nil {
		return fmt.Errorf("failed to checkpoint session %s: %w", sessionID, err)
	}
	return nil
}

// Commit implements SessionStore.
func (s *FirestoreStore) Commit(ctx context.Context, lease *Lease, snapshot models.WorkflowState) error {
	if err := s.write(ctx, lease.SessionID, lease, snapshot, true); err != nil {
		return fmt.Errorf("failed to save session %s: %w", lease.SessionID, err)
	}
	return nil
}

// write stores new content records, then replaces the state inside a
// transaction. With a lease, the write fails with ErrLeaseLost unless the lease
// is still the current one.
func (s *FirestoreStore) write(ctx context.Context, sessionID string, lease *Lease, snapshot models.WorkflowState, release bool) error {
	stored, contents := splitState(snapshot)

	var known map[string]bool
	if lease != nil {
		known = lease.known
	}
	if err := s.saveContents(ctx, sessionID, contents, known); err != nil {
		return err
	}

	ref := s.sessionRef(sessionID)
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		rec, err := readRecord(tx, ref)
		if err != nil {
			return err
		}
		if lease != nil && (rec.Lease == nil || rec.Lease.Token != lease.Token) {
			return ErrLeaseLost
		}
		rec.State = &stored
		if release {
			rec.Lease = nil
		}
		return tx.Set(ref, rec)
	})
	if err != nil {
		return err
	}
	if lease != nil && lease.known != nil {
		for h := range contents {
			lease.known[h] = true
		}
	}
	return nil
}

func (s *FirestoreStore) saveContents(ctx context.Context, sessionID string, contents map[string]string, known map[string]bool) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for hash, text := range contents {
		if known[hash] {
			continue
		}
		hash, text := hash, text
		g.Go(func() error {
			if _, err := s.contentRef(sessionID, hash).Set(gCtx, contentRecord{Content: text}); err != nil {
				return fmt.Errorf("failed to store document content %s: %w", hash, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Release implements SessionStore. A session that was leased but never saved is removed.
func (s *FirestoreStore) Release(ctx context.Context, lease *Lease) error {
	ref := s.sessionRef(lease.SessionID)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		rec, err := readRecord(tx, ref)
		if err != nil {
			return err
		}
		if rec.Lease == nil || rec.Lease.Token != lease.Token {
			return nil
		}
		if rec.State == nil {
			return tx.Delete(ref)
		}
		rec.Lease = nil
		return tx.Set(ref, rec)
	})
}

// Load reads a session and its document contents.
func (s *FirestoreStore) Load(ctx context.Context, sessionID string) (models.WorkflowState, error) {
	doc, err := s.sessionRef(sessionID).Get(ctx)
	if err != nil {
		if gcp.IsNotFound(err) {
			return models.WorkflowState{}, ErrSessionNotFound
		}
		return models.WorkflowState{}, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}
	var rec sessionRecord
	if err := doc.DataTo(&rec); err != nil {
		return models.WorkflowState{}, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	if rec.State == nil {
		return models.WorkflowState{}, ErrSessionNotFound
	}
	return s.expand(ctx, *rec.State)
}

// expand fetches the content records a stored state refers to.
func (s *FirestoreStore) expand(ctx context.Context, stored storedState) (models.WorkflowState, error) {
	hashes := stored.contentRefs()
	contents := make(map[string]string, len(hashes))
	if len(hashes) > 0 {
		refs := make([]*firestore.DocumentRef, 0, len(hashes))
		for _, h := range hashes {
			refs = append(refs, s.contentRef(stored.SessionID, h))
		}
		docs, err := s.client.GetAll(ctx, refs)
		if err != nil {
			return models.WorkflowState{}, fmt.Errorf("failed to load documents of session %s: %w", stored.SessionID, err)
		}
		for _, doc := range docs {
			if !doc.Exists() {
				continue
			}
			var c contentRecord
			if err := doc.DataTo(&c); err != nil {
				return models.WorkflowState{}, fmt.Errorf("failed to decode document content %s: %w", doc.Ref.ID, err)
			}
			contents[doc.Ref.ID] = c.Content
		}
	}
	return joinState(stored, contents)
}

// ListActive returns every session that has not reached COMPLETED.
func (s *FirestoreStore) ListActive(ctx context.Context) ([]models.WorkflowState, error) {
	iter := s.client.Collection(s.collection).
		Where("state.phase", "!=", string(models.PhaseCompleted)).
		Documents(ctx)
	defer iter.Stop()

	var out []models.WorkflowState
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}
		var rec sessionRecord
		if err := doc.DataTo(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode session %s: %w", doc.Ref.ID, err)
		}
		if rec.State == nil {
			continue
		}
		st, _ := joinState(*rec.State, nil)
		out = append(out, st)
	}
	return out, nil
}
