package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/workflow"
)

// MaxDocumentBytes is the largest document text accepted in one event.
const MaxDocumentBytes = 900 << 10

// DefaultLeaseTTL bounds how long one event may hold a session.
const DefaultLeaseTTL = 2 * time.Minute

var (
	// ErrUnknownAction is returned for a request whose action is not recognised.
	ErrUnknownAction = errors.New("unknown session action")
	// ErrDocumentTooLarge is returned when a submitted document exceeds MaxDocumentBytes.
	ErrDocumentTooLarge = errors.New("document too large")
)

// SessionService applies one chat event to a session. The session is leased in
// the store for the duration of the event, so concurrent events for the same
// session are rejected across instances, and the event is only acknowledged
// once its final state has been saved.
type SessionService struct {
	controller *workflow.Controller
	store      SessionStore
	delivery   *Delivery
	newID      func() string
	leaseTTL   time.Duration
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithLeaseTTL sets how long an event may hold a session before another
// event can take it over. It should exceed the generation timeout.
func WithLeaseTTL(ttl time.Duration) SessionOption {
	return func(f *SessionService) {
		if ttl > 0 {
			f.leaseTTL = ttl
		}
	}
}

// NewSessionService wires the service. The controller must have been built
// with the same store so that intermediate progress is checkpointed under the
// event's lease. delivery may be nil.
func NewSessionService(controller *workflow.Controller, store SessionStore, delivery *Delivery, opts ...SessionOption) (*SessionService, error) {
	if controller == nil || store == nil {
		return nil, errors.New("NewSessionService: controller and store are required")
	}
	f := &SessionService{
		controller: controller,
		store:      store,
		delivery:   delivery,
		newID:      uuid.NewString,
		leaseTTL:   DefaultLeaseTTL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Handle applies one chat event and returns what to show the user.
func (f *SessionService) Handle(ctx context.Context, req *models.SessionEventRequest) (*models.SessionEventResponse, error) {
	switch req.Action {
	case models.ActionStart, models.ActionDocuments, models.ActionMessage:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
	}
	for _, doc := range req.Documents {
		if len(doc.Content) > MaxDocumentBytes {
			return nil, fmt.Errorf("%w: %s has %d bytes, limit is %d", ErrDocumentTooLarge, doc.Name, len(doc.Content), MaxDocumentBytes)
		}
	}

	session, lease, err := f.open(ctx, req)
	if err != nil {
		return nil, err
	}
	ctx = contextWithLease(ctx, lease)

	logCtx := slog.With("sessionId", session.ID(), "action", req.Action)
	before := session.State().Phase

	var reply workflow.Reply
	switch req.Action {
	case models.ActionStart:
		reply, err = f.controller.Start(ctx, session)
	case models.ActionDocuments:
		reply, err = f.controller.SubmitDocuments(ctx, session, req.Documents)
	case models.ActionMessage:
		reply, err = f.controller.HandleMessage(ctx, session, req.Text)
	}
	if err != nil {
		logCtx.Error("Failed to apply session event", "error", err)
		f.release(ctx, lease)
		return nil, err
	}

	st := session.State()
	if err := f.store.Commit(context.WithoutCancel(ctx), lease, st); err != nil {
		logCtx.Error("Failed to save session", "phase", st.Phase, "error", err)
		f.release(ctx, lease)
		return nil, err
	}
	logCtx.Info("Session event applied.", "from", before, "to", st.Phase, "currentSectionIndex", st.CurrentSectionIndex)

	if before != models.PhaseCompleted && st.Phase == models.PhaseCompleted && f.delivery != nil {
		delivered, err := f.delivery.Deliver(ctx, st)
		if err != nil {
			logCtx.Error("Delivery failed; brief remains in the session store", "error", err)
			reply.Warnings = append(reply.Warnings, msgDeliveryFailed)
		} else {
			reply.Messages = append(reply.Messages, msgDelivered(delivered))
		}
	}

	return &models.SessionEventResponse{
		SessionID:           st.SessionID,
		Phase:               st.Phase,
		CurrentSectionIndex: st.CurrentSectionIndex,
		Messages:            reply.Messages,
		Errors:              reply.Errors,
		Warnings:            reply.Warnings,
	}, nil
}

// ListActive returns the sessions that have not completed.
func (f *SessionService) ListActive(ctx context.Context) ([]models.WorkflowState, error) {
	return f.store.ListActive(ctx)
}

// open leases the session and returns it. A request without a session ID, or
// a start for an unknown ID, creates a new session.
func (f *SessionService) open(ctx context.Context, req *models.SessionEventRequest) (*workflow.Session, *Lease, error) {
	id := req.SessionID
	if id == "" {
		id = f.newID()
	}

	snapshot, lease, err := f.store.Acquire(ctx, id, f.leaseTTL)
	if err != nil {
		return nil, nil, err
	}
	if snapshot == nil {
		if req.Action != models.ActionStart {
			f.release(ctx, lease)
			return nil, nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return workflow.NewSession(id), lease, nil
	}

	session, err := f.controller.Resume(*snapshot)
	if err != nil {
		f.release(ctx, lease)
		return nil, nil, fmt.Errorf("failed to resume session %s: %w", id, err)
	}
	return session, lease, nil
}

func (f *SessionService) release(ctx context.Context, lease *Lease) {
	if err := f.store.Release(context.WithoutCancel(ctx), lease); err != nil {
		slog.Warn("Failed to release session lease", "sessionId", lease.SessionID, "error", err)
	}
}
