package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/legaldraftflow/internal/services"
)

var (
	intakeInstance *services.IntakeFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function for object-finalized events on the upload bucket.
	functions.CloudEvent("IntakeDocument", intakeDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func intakeDocument(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		var rt *services.Runtime
		rt, initErr = services.NewRuntime(context.Background(), nil)
		if initErr != nil {
			return
		}
		intakeInstance, initErr = services.NewIntake(rt.Sessions, services.NewGCSReader(rt.Storage))
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// The error is already logged with context within Process.
	_, err := intakeInstance.Process(ctx, gcsEvent)
	return err
}
