package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Lllllllleong/legaldraftflow/internal/models"
	"github.com/Lllllllleong/legaldraftflow/internal/workflow"
)

// maxRequestBytes bounds a session event body: ten documents at MaxDocumentBytes plus framing.
const maxRequestBytes = 10*MaxDocumentBytes + 1<<20

// NewHTTPHandler exposes the session service as a JSON endpoint. When gatherer
// is not nil, GET requests to a path ending in /metrics are served from it.
func NewHTTPHandler(svc *SessionService, gatherer prometheus.Gatherer) http.Handler {
	var metricsHandler http.Handler
	if gatherer != nil {
		metricsHandler = promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if metricsHandler != nil && r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/metrics") {
			metricsHandler.ServeHTTP(w, r)
			return
		}
		if r.Method != http.MethodPost {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		var req models.SessionEventRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
			slog.Error("Could not decode request body", "error", err)
			http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
			return
		}

		res, err := svc.Handle(r.Context(), &req)
		if err != nil {
			status, msg := httpStatus(err)
			http.Error(w, msg, status)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(res); err != nil {
			slog.Error("Failed to write response", "error", err)
		}
	})
}

func httpStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnknownAction):
		return http.StatusBadRequest, "Bad Request: unknown action"
	case errors.Is(err, ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge, "Request Entity Too Large: document exceeds the size limit"
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, "Not Found: unknown session"
	case errors.Is(err, workflow.ErrSessionBusy):
		return http.StatusConflict, "Conflict: session is processing another event"
	default:
		return http.StatusInternalServerError, "Internal Server Error: processing failed"
	}
}
