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

	"github.com/claritytax/noticeflow/internal/models"
	"github.com/claritytax/noticeflow/internal/services"
)

var (
	ingestInstance *services.IngestFunction
	once           sync.Once
	initErr        error
)

func init() {
	// Structured JSON logging for the functions runtime.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. The framework routes the GCS
	// finalize event here.
	functions.CloudEvent("IngestTaxNotice", ingestTaxNotice)
}

// main is required by the Go Functions Framework.
func main() {}

// ingestTaxNotice is the Cloud Function entry point for new notices landing
// in the incoming bucket.
func ingestTaxNotice(ctx context.Context, e cloudevents.Event) error {
	// One-time initialization of clients, shared across invocations.
	once.Do(func() {
		ingestInstance, initErr = services.NewIngest(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent models.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// The pipeline classifies its own failures and records a terminal
	// status per document; only wiring-level problems fail the invocation.
	return ingestInstance.Process(ctx, gcsEvent)
}
