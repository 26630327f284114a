package models

// DocumentContext tracks a single notice through one pipeline invocation.
// It is created when the trigger event arrives, populated stage by stage,
// and discarded when the invocation returns; durable state lives on the
// blob's own metadata.
type DocumentContext struct {
	Name string
	URL  string

	// Correlation identifiers carried through from the source metadata.
	MessageID string
	EmailID   string

	// Status is the pipeline's current outcome. Once set to a terminal
	// failure value no later stage may run for this document.
	Status string

	// Fields holds the extracted notice fields, keyed by metadata key.
	// Populated wholesale on a successful extraction pass, never partially.
	Fields map[string]string
}

// Pipeline status values. All failure statuses are terminal.
const (
	StatusProcessed         = "Processed"
	StatusBlobMetadataError = "BlobMetadataError"
	StatusAPIError          = "ContentUnderstandingApiError"
	StatusTimeout           = "ContentUnderstandingTimeout"
	StatusProcessingFailed  = "ProcessingFailed"
	StatusUnexpectedError   = "UnexpectedError"
)

// GCSEvent is the payload of the storage finalize event that triggers an
// ingestion invocation.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}
