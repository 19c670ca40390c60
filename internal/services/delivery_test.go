package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldraftflow/internal/catalog"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
)

type memoryWriter struct {
	mu      sync.Mutex
	objects map[string]string
	types   map[string]string
	err     error
}

func newMemoryWriter() *memoryWriter {
	return &memoryWriter{objects: map[string]string{}, types: map[string]string{}}
}

func (w *memoryWriter) Write(_ context.Context, objectName, contentType, content string) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.objects[objectName] = content
	w.types[objectName] = contentType
	return nil
}

func completedState(t *testing.T, cat *catalog.Catalog) models.WorkflowState {
	t.Helper()
	st := models.NewWorkflowState("s1")
	st.Phase = models.PhaseCompleted
	st.CurrentSectionIndex = cat.Len()
	for _, s := range cat.Sections() {
		st.SectionContents[s.ID] = s.Title + "\n\nTexto de **" + s.ID + "**."
	}
	return *st
}

func TestAssembleMarkdown(t *testing.T) {
	cat := catalog.Replica()
	st := completedState(t, cat)

	md, err := AssembleMarkdown(cat, st.SectionContents)
	require.NoError(t, err)
	first := cat.Sections()[0].Title
	last := cat.Sections()[cat.Len()-1].Title
	assert.Less(t, strings.Index(md, first), strings.Index(md, last))

	delete(st.SectionContents, "merito")
	_, err = AssembleMarkdown(cat, st.SectionContents)
	assert.Error(t, err)
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("# Título\n\nTexto **forte**.")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Título</h1>")
	assert.Contains(t, html, "<strong>forte</strong>")
}

func TestDeliver(t *testing.T) {
	cat := catalog.Replica()
	w := newMemoryWriter()
	var payload any
	trigger := func(_ context.Context, p any) (string, error) {
		payload = p
		return "executions/1", nil
	}
	d, err := NewDelivery(cat, w, "briefs", trigger)
	require.NoError(t, err)

	resp, err := d.Deliver(context.Background(), completedState(t, cat))
	require.NoError(t, err)
	assert.Equal(t, "gs://briefs/s1/replica.md", resp.MarkdownURI)
	assert.Equal(t, "gs://briefs/s1/replica.html", resp.HTMLURI)
	assert.Contains(t, w.objects["s1/replica.md"], "**merito**")
	assert.Contains(t, w.objects["s1/replica.html"], "<strong>merito</strong>")
	assert.Equal(t, "text/html; charset=utf-8", w.types["s1/replica.html"])
	assert.Equal(t, map[string]string{
		"sessionId":   "s1",
		"markdownUri": resp.MarkdownURI,
		"htmlUri":     resp.HTMLURI,
	}, payload)
}

func TestDeliverErrors(t *testing.T) {
	cat := catalog.Replica()

	d, err := NewDelivery(cat, newMemoryWriter(), "briefs", nil)
	require.NoError(t, err)
	st := completedState(t, cat)
	st.Phase = models.PhaseGenerating
	_, err = d.Deliver(context.Background(), st)
	assert.Error(t, err)

	w := newMemoryWriter()
	w.err = errors.New("bucket gone")
	d, err = NewDelivery(cat, w, "briefs", nil)
	require.NoError(t, err)
	_, err = d.Deliver(context.Background(), completedState(t, cat))
	assert.ErrorIs(t, err, w.err)

	failing := func(context.Context, any) (string, error) { return "", errors.New("workflow down") }
	d, err = NewDelivery(cat, newMemoryWriter(), "briefs", failing)
	require.NoError(t, err)
	_, err = d.Deliver(context.Background(), completedState(t, cat))
	assert.Error(t, err)

	_, err = NewDelivery(cat, nil, "briefs", nil)
	assert.Error(t, err)
}
