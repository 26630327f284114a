package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/claritytax/noticeflow/internal/blobstore"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ObjectURL returns the HTTPS URL for a GCS object, the resolvable location
// handed to the analysis service.
func ObjectURL(bucket, name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", bucket, url.PathEscape(name))
}

// BlobStore implements blobstore.Store on top of a GCS client.
type BlobStore struct {
	client    *storage.Client
	projectID string
}

// NewBlobStore wraps an existing GCS client. The project ID is needed only
// for bucket creation.
func NewBlobStore(client *storage.Client, projectID string) *BlobStore {
	return &BlobStore{client: client, projectID: projectID}
}

func (s *BlobStore) Metadata(ctx context.Context, bucket, name string) (map[string]string, error) {
	attrs, err := s.client.Bucket(bucket).Object(name).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read attrs for gs://%s/%s: %w", bucket, name, err)
	}
	return attrs.Metadata, nil
}

func (s *BlobStore) SetMetadata(ctx context.Context, bucket, name string, metadata map[string]string) error {
	_, err := s.client.Bucket(bucket).Object(name).Update(ctx, storage.ObjectAttrsToUpdate{
		Metadata: metadata,
	})
	if err != nil {
		return fmt.Errorf("failed to update metadata for gs://%s/%s: %w", bucket, name, err)
	}
	return nil
}

// EnsureBucket creates the bucket if absent. A 409 from a concurrent or
// earlier creation is not a failure.
func (s *BlobStore) EnsureBucket(ctx context.Context, bucket string) error {
	err := s.client.Bucket(bucket).Create(ctx, s.projectID, nil)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 409 {
			return nil
		}
		return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
	}
	return nil
}

// StartCopy copies the object server-side to the same name in the destination
// bucket. The copier preserves the source's metadata unless overridden and
// drives the rewrite loop to completion before returning.
func (s *BlobStore) StartCopy(ctx context.Context, srcBucket, name, dstBucket string) error {
	src := s.client.Bucket(srcBucket).Object(name)
	dst := s.client.Bucket(dstBucket).Object(name)
	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		return fmt.Errorf("failed to copy gs://%s/%s to bucket %s: %w", srcBucket, name, dstBucket, err)
	}
	return nil
}

// CopyStatus reports whether the copied object is visible at the destination.
// GCS rewrites are atomic: a visible object is a completed copy, an absent
// one is a copy that has not materialized.
func (s *BlobStore) CopyStatus(ctx context.Context, bucket, name string) (blobstore.CopyState, error) {
	_, err := s.client.Bucket(bucket).Object(name).Attrs(ctx)
	if err == nil {
		return blobstore.CopySuccess, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return blobstore.CopyPending, nil
	}
	return blobstore.CopyFailed, fmt.Errorf("failed to read copy status for gs://%s/%s: %w", bucket, name, err)
}

func (s *BlobStore) Delete(ctx context.Context, bucket, name string) error {
	if err := s.client.Bucket(bucket).Object(name).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete gs://%s/%s: %w", bucket, name, err)
	}
	return nil
}

// UploadIfAbsent writes content to a GCS object only if it doesn't already
// exist, attaching the given metadata. Losing the race to another upload of
// the same object is not a failure in an idempotent workflow.
func UploadIfAbsent(ctx context.Context, bucket *storage.BucketHandle, objectName string, content io.Reader, metadata map[string]string) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.Metadata = metadata

	if _, err := io.Copy(writer, content); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}
	if err := writer.Close(); err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == 412 {
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}
