// Package blobstore defines the storage collaborator the ingestion pipeline
// consumes: an opaque key/blob store with metadata, copy, and delete
// operations. The GCS-backed implementation lives in internal/gcp.
package blobstore

import "context"

// CopyState is the observed state of a destination copy.
type CopyState int

const (
	CopyPending CopyState = iota
	CopySuccess
	CopyFailed
)

func (s CopyState) String() string {
	switch s {
	case CopyPending:
		return "pending"
	case CopySuccess:
		return "success"
	case CopyFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Store is the blob storage contract used by the pipeline. Implementations
// must make EnsureBucket idempotent so concurrent invocations can race on
// destination creation safely.
type Store interface {
	// Metadata returns the object's user metadata.
	Metadata(ctx context.Context, bucket, name string) (map[string]string, error)

	// SetMetadata replaces the object's user metadata in one call.
	SetMetadata(ctx context.Context, bucket, name string, metadata map[string]string) error

	// EnsureBucket creates the bucket if it does not already exist.
	EnsureBucket(ctx context.Context, bucket string) error

	// StartCopy begins a server-side copy of the object to the same name in
	// the destination bucket, preserving its metadata.
	StartCopy(ctx context.Context, srcBucket, name, dstBucket string) error

	// CopyStatus reports the state of the copy at the destination.
	CopyStatus(ctx context.Context, bucket, name string) (CopyState, error)

	// Delete removes the object.
	Delete(ctx context.Context, bucket, name string) error
}
