package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Lllllllleong/legaldraftflow/internal/services"
)

var (
	sessionRuntime *services.Runtime
	handler        http.Handler
	registry       = prometheus.NewRegistry()
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "HandleReplicaSession" receives chat events from the front end and
	// serves GET /metrics from the same instance.
	functions.HTTP("HandleReplicaSession", handleReplicaSession)
}

// main is required by the Go Functions Framework.
func main() {}

func handleReplicaSession(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		sessionRuntime, initErr = services.NewRuntime(context.Background(), registry)
		if initErr == nil {
			handler = services.NewHTTPHandler(sessionRuntime.Sessions, registry)
		}
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}
