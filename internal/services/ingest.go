package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"

	"github.com/claritytax/noticeflow/internal/analysis"
	"github.com/claritytax/noticeflow/internal/blobstore"
	"github.com/claritytax/noticeflow/internal/extract"
	"github.com/claritytax/noticeflow/internal/gcp"
	"github.com/claritytax/noticeflow/internal/models"
	"github.com/claritytax/noticeflow/internal/relocate"
)

// IngestConfig holds all configuration for the notice ingestion service.
type IngestConfig struct {
	ProjectID       string
	ProcessedBucket string
	Endpoint        string
	APIKey          string
	CollectionName  string
}

// Analyzer is the slice of the analysis client the pipeline consumes.
type Analyzer interface {
	Submit(ctx context.Context, documentURL string) (*analysis.Job, error)
	JobStatus(ctx context.Context, operationLocation string) ([]byte, error)
}

// Relocator moves a processed object to its destination bucket.
type Relocator interface {
	Relocate(ctx context.Context, srcBucket, name, dstBucket string) error
}

// IngestFunction drives a single notice from arrival to processed-or-failed.
type IngestFunction struct {
	store     blobstore.Store
	analyzer  Analyzer
	relocator Relocator
	ledger    *Ledger
	config    IngestConfig

	// Zero values mean the analysis package defaults.
	pollMaxWait  time.Duration
	pollInterval time.Duration
}

func loadIngestConfig() (*IngestConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	endpoint := gcp.GetEnv("CU_ENDPOINT", "")
	if endpoint == "" {
		return nil, fmt.Errorf("CU_ENDPOINT environment variable must be set")
	}
	apiKey := gcp.GetEnv("CU_API_KEY", "")
	if apiKey == "" {
		return nil, fmt.Errorf("CU_API_KEY environment variable must be set")
	}

	return &IngestConfig{
		ProjectID:       projectID,
		ProcessedBucket: gcp.GetEnv("PROCESSED_BUCKET", "processed"),
		Endpoint:        endpoint,
		APIKey:          apiKey,
		CollectionName:  gcp.GetEnv("FIRESTORE_COLLECTION", ""),
	}, nil
}

// NewIngest creates an IngestFunction wired to real GCP clients and the
// Content Understanding endpoint. The Firestore ledger is enabled only when
// FIRESTORE_COLLECTION is configured.
func NewIngest(ctx context.Context) (*IngestFunction, error) {
	config, err := loadIngestConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	store := gcp.NewBlobStore(storageClient, config.ProjectID)

	var ledger *Ledger
	if config.CollectionName != "" {
		var firestoreClient *firestore.Client
		firestoreClient, err = gcp.NewFirestoreClient(ctx, config.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to create firestore client: %w", err)
		}
		ledger = NewLedger(firestoreClient, config.CollectionName)
	}

	f := &IngestFunction{
		store:     store,
		analyzer:  analysis.NewClient(config.Endpoint, config.APIKey, nil, nil),
		relocator: relocate.NewManager(store, relocate.DefaultMaxWait, relocate.DefaultPollInterval),
		ledger:    ledger,
		config:    *config,
	}
	slog.Info("Notice ingestion logic initialized.", "processedBucket", config.ProcessedBucket)
	return f, nil
}

// stageError is a pipeline failure a stage has already classified with a
// terminal status. Anything else reaching the top level is unexpected.
type stageError struct {
	err error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// failStage records the terminal status on the context and wraps the cause.
func failStage(doc *models.DocumentContext, status string, err error) error {
	doc.Status = status
	return &stageError{err: err}
}

// Process runs the five-stage pipeline for one notice. Every failure path
// ends with a terminal status on the document context; nothing escapes
// unclassified, and the invocation itself always completes normally so the
// platform does not redeliver a document the pipeline has already judged.
func (f *IngestFunction) Process(ctx context.Context, e models.GCSEvent) error {
	f.processDocument(ctx, e)
	return nil
}

func (f *IngestFunction) processDocument(ctx context.Context, e models.GCSEvent) *models.DocumentContext {
	doc := &models.DocumentContext{
		Name: e.Name,
		URL:  gcp.ObjectURL(e.Bucket, e.Name),
	}
	logCtx := slog.With("bucket", e.Bucket, "object", e.Name)
	logCtx.Info("Processing new notice.")

	if err := f.run(ctx, logCtx, e, doc); err != nil {
		var se *stageError
		if !errors.As(err, &se) {
			doc.Status = models.StatusUnexpectedError
		}
		logCtx.Error("Notice processing failed.", "finalStatus", doc.Status, "error", err)
		f.record(ctx, logCtx, doc, err)
		return doc
	}

	logCtx.Info("Notice processed.", "finalStatus", doc.Status)
	f.record(ctx, logCtx, doc, nil)
	return doc
}

// run executes the pipeline stages in order. Stages that can classify their
// own failure report it via failStage; anything else bubbles up for
// processDocument to record as UnexpectedError.
func (f *IngestFunction) run(ctx context.Context, logCtx *slog.Logger, e models.GCSEvent, doc *models.DocumentContext) error {
	// Stage 1: read correlation metadata off the source object.
	metadata, err := f.store.Metadata(ctx, e.Bucket, e.Name)
	if err != nil {
		return failStage(doc, models.StatusBlobMetadataError, fmt.Errorf("failed to read source metadata: %w", err))
	}
	doc.MessageID = metadata["MessageId"]
	doc.EmailID = metadata["EmailId"]
	doc.Status = metadata["Status"]
	logCtx.Info("Read source metadata.", "messageId", doc.MessageID, "emailId", doc.EmailID, "status", doc.Status)

	// Stage 2: submit the document for analysis.
	job, err := f.analyzer.Submit(ctx, doc.URL)
	if err != nil {
		return failStage(doc, models.StatusAPIError, fmt.Errorf("analysis submission failed: %w", err))
	}
	if job.OperationLocation == "" {
		return failStage(doc, models.StatusAPIError, fmt.Errorf("analysis submission returned an empty operation location"))
	}
	logCtx.Info("Analysis job submitted.", "operationLocation", job.OperationLocation)

	// Stage 3: poll the job to a terminal state. Explicit failure,
	// cancellation, and timeout all collapse into the timeout status.
	outcome, _, pollErr := analysis.PollUntilTerminal(ctx, f.analyzer, job.OperationLocation,
		f.pollMaxWait, f.pollInterval)
	if outcome != analysis.OutcomeSucceeded {
		if pollErr == nil {
			pollErr = fmt.Errorf("terminal outcome: %s", outcome)
		}
		return failStage(doc, models.StatusTimeout, fmt.Errorf("analysis job did not succeed: %w", pollErr))
	}

	// Stage 4: re-fetch the final job result and extract the notice fields.
	finalResult, err := f.analyzer.JobStatus(ctx, job.OperationLocation)
	if err != nil {
		return failStage(doc, models.StatusAPIError, fmt.Errorf("failed to fetch final job result: %w", err))
	}
	fields, ok := extract.Extract(finalResult)
	if !ok {
		return failStage(doc, models.StatusProcessingFailed, fmt.Errorf("analysis result has no extractable fields"))
	}
	doc.Fields = fields

	// Stage 5: persist all extracted fields plus the processed marker in a
	// single metadata write, then move the notice.
	if err := f.store.SetMetadata(ctx, e.Bucket, e.Name, f.processedMetadata(doc)); err != nil {
		return fmt.Errorf("failed to write extracted metadata: %w", err)
	}
	logCtx.Info("Extracted fields written to metadata.", "fieldCount", len(fields))

	if err := f.relocator.Relocate(ctx, e.Bucket, e.Name, f.config.ProcessedBucket); err != nil {
		return fmt.Errorf("failed to relocate notice: %w", err)
	}

	doc.Status = models.StatusProcessed
	return nil
}

// processedMetadata assembles the full metadata map written back to the
// object: every schema slot plus correlation ids and the processed marker.
func (f *IngestFunction) processedMetadata(doc *models.DocumentContext) map[string]string {
	metadata := make(map[string]string, len(doc.Fields)+3)
	for key, value := range doc.Fields {
		metadata[key] = value
	}
	metadata["MessageId"] = doc.MessageID
	metadata["EmailId"] = doc.EmailID
	metadata["Status"] = models.StatusProcessed
	return metadata
}

// record writes the invocation outcome to the ledger when one is configured.
// Ledger failures are logged and never alter the pipeline outcome.
func (f *IngestFunction) record(ctx context.Context, logCtx *slog.Logger, doc *models.DocumentContext, procErr error) {
	if f.ledger == nil {
		return
	}
	if err := f.ledger.Record(ctx, doc, procErr); err != nil {
		logCtx.Error("Failed to record processing outcome in ledger.", "error", err)
	}
}
