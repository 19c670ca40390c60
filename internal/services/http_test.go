package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/legaldraftflow/internal/metrics"
	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/workflow"
)

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPHandler(t *testing.T) {
	h := newServiceHarness(t, nil)
	handler := NewHTTPHandler(h.svc, nil)

	rec := post(t, handler, `{"sessionId":"web-1","action":"start"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var res models.SessionEventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "web-1", res.SessionID)
	assert.Equal(t, models.PhaseAwaitingDocuments, res.Phase)
	assert.NotEmpty(t, res.Messages)

	body, err := json.Marshal(models.SessionEventRequest{SessionID: "web-1", Action: models.ActionDocuments, Documents: caseDocuments()})
	require.NoError(t, err)
	rec = post(t, handler, string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, models.PhaseAwaitingConfirmation, res.Phase)
}

func TestHTTPHandlerErrors(t *testing.T) {
	h := newServiceHarness(t, nil)
	handler := NewHTTPHandler(h.svc, nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed json", body: `{"action":`, want: http.StatusBadRequest},
		{name: "unknown action", body: `{"sessionId":"a","action":"revisar"}`, want: http.StatusBadRequest},
		{name: "unknown session", body: `{"sessionId":"nope","action":"message","text":"oi"}`, want: http.StatusNotFound},
		{
			name: "document too large",
			body: `{"sessionId":"big","action":"documents","documents":[{"name":"a.txt","content":"` + strings.Repeat("a", MaxDocumentBytes+1) + `"}]}`,
			want: http.StatusRequestEntityTooLarge,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, post(t, handler, tt.body).Code)
		})
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTPHandlerBusy(t *testing.T) {
	h := newServiceHarness(t, nil)
	handler := NewHTTPHandler(h.svc, nil)
	ctx := context.Background()
	_, err := h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "web-2", Action: models.ActionStart})
	require.NoError(t, err)
	_, err = h.svc.Handle(ctx, &models.SessionEventRequest{SessionID: "web-2", Action: models.ActionDocuments, Documents: caseDocuments()})
	require.NoError(t, err)

	h.gen.block = make(chan struct{})
	h.gen.started = make(chan struct{})
	done := make(chan int, 1)
	go func() {
		done <- post(t, handler, `{"sessionId":"web-2","action":"message","text":"CONFIRMAR"}`).Code
	}()
	<-h.gen.started

	assert.Equal(t, http.StatusConflict, post(t, handler, `{"sessionId":"web-2","action":"message","text":"CONFIRMAR"}`).Code)
	close(h.gen.block)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestHTTPHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.NewGeneration(reg)
	require.NoError(t, err)
	h := newServiceHarness(t, nil, workflow.WithMetrics(m))
	handler := NewHTTPHandler(h.svc, reg)

	require.Equal(t, http.StatusOK, post(t, handler, `{"sessionId":"web-3","action":"start"}`).Code)
	body, err := json.Marshal(models.SessionEventRequest{SessionID: "web-3", Action: models.ActionDocuments, Documents: caseDocuments()})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, post(t, handler, string(body)).Code)
	require.Equal(t, http.StatusOK, post(t, handler, `{"sessionId":"web-3","action":"message","text":"CONFIRMAR"}`).Code)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `legaldraft_generation_attempts_total{outcome="accepted",section="sintese_contestacao"} 1`)
}
