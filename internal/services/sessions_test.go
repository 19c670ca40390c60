package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldraftflow/internal/catalog"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/workflow"
)

func TestSessionServiceFullRun(t *testing.T) {
	ctx := context.Background()
	w := newMemoryWriter()
	delivery, err := NewDelivery(catalog.Replica(), w, "briefs", nil)
	require.NoError(t, err)
	h := newServiceHarness(t, delivery)
	h.svc.newID = func() string { return "s-1" }

	res, err := h.svc.Handle(ctx, &models.SessionEventRequest{Action: models.ActionStart})
	require.NoError(t, err)
	assert.Equal(t, "s-1", res.SessionID)
	assert.Equal(t, models.PhaseAwaitingDocuments, res.Phase)

	res, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-1", Action: models.ActionDocuments, Documents: caseDocuments()})
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAwaitingConfirmation, res.Phase)

	for i := 0; i < h.cat.Len(); i++ {
		res, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-1", Action: models.ActionMessage, Text: "confirmar"})
		require.NoError(t, err)
		assert.Equal(t, i+1, res.CurrentSectionIndex)
	}
	assert.Equal(t, models.PhaseCompleted, res.Phase)
	assert.Contains(t, res.Messages[len(res.Messages)-1], "gs://briefs/s-1/replica.md")
	assert.Contains(t, w.objects, "s-1/replica.html")

	stored, err := h.store.Load(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompleted, stored.Phase)
	assert.Len(t, stored.SectionContents, h.cat.Len())

	active, err := h.svc.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	res, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-1", Action: models.ActionMessage, Text: "confirmar"})
	require.NoError(t, err)
	assert.Equal(t, []string{workflow.MsgWorkflowComplete}, res.Messages)
	assert.Len(t, w.objects, 2)
}

func TestSessionServiceResumesFromStore(t *testing.T) {
	ctx := context.Background()
	h := newServiceHarness(t, nil)

	_, err := h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-2", Action: models.ActionStart})
	require.NoError(t, err)
	_, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-2", Action: models.ActionDocuments, Documents: caseDocuments()})
	require.NoError(t, err)

	// A second service over the same store picks up where the first stopped.
	ctrl, err := workflow.NewController(h.cat, h.gen, h.store, workflow.DefaultConfig())
	require.NoError(t, err)
	other, err := NewSessionService(ctrl, h.store, nil)
	require.NoError(t, err)

	res, err := other.Handle(ctx, &models.SessionEventRequest{SessionID: "s-2", Action: models.ActionMessage, Text: "CONFIRMAR"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentSectionIndex)
	assert.Equal(t, models.PhaseAwaitingConfirmation, res.Phase)

	active, err := other.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "s-2", active[0].SessionID)
}

func TestSessionServiceErrors(t *testing.T) {
	ctx := context.Background()
	h := newServiceHarness(t, nil)

	_, err := h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "x", Action: "delete"})
	assert.ErrorIs(t, err, ErrUnknownAction)

	_, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "missing", Action: models.ActionMessage, Text: "oi"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	broken := models.NewWorkflowState("broken")
	broken.Phase = models.PhaseGenerating
	broken.CurrentSectionIndex = 2
	require.NoError(t, h.store.Checkpoint(ctx, "broken", *broken))
	_, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "broken", Action: models.ActionMessage, Text: "oi"})
	assert.ErrorIs(t, err, workflow.ErrInvariant)
}

func TestSessionServiceRejectsConcurrentEvent(t *testing.T) {
	ctx := context.Background()
	h := newServiceHarness(t, nil)
	_, err := h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-3", Action: models.ActionStart})
	require.NoError(t, err)
	_, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-3", Action: models.ActionDocuments, Documents: caseDocuments()})
	require.NoError(t, err)

	h.gen.block = make(chan struct{})
	h.gen.started = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-3", Action: models.ActionMessage, Text: "confirmar"})
		done <- err
	}()
	<-h.gen.started

	_, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-3", Action: models.ActionDocuments, Documents: caseDocuments()})
	assert.ErrorIs(t, err, workflow.ErrSessionBusy)

	close(h.gen.block)
	require.NoError(t, <-done)
	stored, err := h.store.Load(ctx, "s-3")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentSectionIndex)
}

func TestSessionServiceReportsFailedSave(t *testing.T) {
	ctx := context.Background()
	h := newServiceHarness(t, nil)
	_, err := h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-4", Action: models.ActionStart})
	require.NoError(t, err)
	_, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-4", Action: models.ActionDocuments, Documents: caseDocuments()})
	require.NoError(t, err)

	unavailable := errors.New("firestore unavailable")
	store := &failingStore{MemoryStore: h.store, checkpointErr: unavailable, commitErr: unavailable}
	svc := h.serviceOver(t, store)

	_, err = svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-4", Action: models.ActionMessage, Text: "CONFIRMAR"})
	assert.ErrorIs(t, err, unavailable)

	// Nothing was saved, and the lease was released for the retry.
	stored, err := h.store.Load(ctx, "s-4")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAwaitingConfirmation, stored.Phase)
	assert.Equal(t, 0, stored.CurrentSectionIndex)

	res, err := h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-4", Action: models.ActionMessage, Text: "CONFIRMAR"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CurrentSectionIndex)
}

func TestSessionServiceSavesDespiteFailedCheckpoint(t *testing.T) {
	ctx := context.Background()
	h := newServiceHarness(t, nil)
	store := &failingStore{MemoryStore: h.store, checkpointErr: errors.New("deadline exceeded")}
	svc := h.serviceOver(t, store)

	_, err := svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-5", Action: models.ActionStart})
	require.NoError(t, err)
	res, err := svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-5", Action: models.ActionDocuments, Documents: caseDocuments()})
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAwaitingConfirmation, res.Phase)

	stored, err := h.store.Load(ctx, "s-5")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAwaitingConfirmation, stored.Phase)
	assert.Equal(t, caseDocuments()[1].Content, stored.Documents[1].Content)
}

func TestSessionServiceSingleGenerationAcrossInstances(t *testing.T) {
	ctx := context.Background()
	h := newServiceHarness(t, nil)
	_, err := h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-6", Action: models.ActionStart})
	require.NoError(t, err)
	_, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-6", Action: models.ActionDocuments, Documents: caseDocuments()})
	require.NoError(t, err)

	other := h.serviceOver(t, h.store)
	h.gen.block = make(chan struct{})
	h.gen.started = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-6", Action: models.ActionMessage, Text: "CONFIRMAR"})
		done <- err
	}()
	<-h.gen.started

	_, err = other.Handle(ctx, &models.SessionEventRequest{SessionID: "s-6", Action: models.ActionMessage, Text: "CONFIRMAR"})
	assert.ErrorIs(t, err, workflow.ErrSessionBusy)

	close(h.gen.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), h.gen.calls.Load())

	stored, err := h.store.Load(ctx, "s-6")
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentSectionIndex)
}

func TestSessionServiceRejectsOversizedDocument(t *testing.T) {
	ctx := context.Background()
	h := newServiceHarness(t, nil)
	_, err := h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-7", Action: models.ActionStart})
	require.NoError(t, err)

	docs := caseDocuments()
	docs[0].Content = strings.Repeat("a", MaxDocumentBytes+1)
	_, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "s-7", Action: models.ActionDocuments, Documents: docs})
	assert.ErrorIs(t, err, ErrDocumentTooLarge)

	stored, err := h.store.Load(ctx, "s-7")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAwaitingDocuments, stored.Phase)
}
