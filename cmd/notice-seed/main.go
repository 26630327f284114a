// notice-seed is a local development tool that uploads tax notice PDFs to
// the incoming bucket with the correlation metadata the pipeline expects.
// Each file is validated as a PDF before upload.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/sync/errgroup"

	"github.com/claritytax/noticeflow/internal/gcp"
)

func main() {
	// Local convenience only; a missing .env is fine.
	_ = godotenv.Load()

	bucketName := flag.String("bucket", gcp.GetEnv("INCOMING_BUCKET", "incoming"), "incoming bucket to seed")
	emailID := flag.String("email-id", "", "EmailId metadata value for all uploads")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: notice-seed [-bucket name] [-email-id id] notice.pdf [notice.pdf ...]")
		os.Exit(2)
	}

	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		slog.Error("PROJECT_ID environment variable must be set")
		os.Exit(1)
	}

	ctx := context.Background()
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		slog.Error("Failed to create storage client", "error", err)
		os.Exit(1)
	}
	defer storageClient.Close()

	store := gcp.NewBlobStore(storageClient, projectID)
	if err := store.EnsureBucket(ctx, *bucketName); err != nil {
		slog.Error("Failed to ensure incoming bucket", "bucket", *bucketName, "error", err)
		os.Exit(1)
	}

	if err := seed(ctx, storageClient.Bucket(*bucketName), flag.Args(), *emailID); err != nil {
		slog.Error("Seeding failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Seeding complete.", "bucket", *bucketName, "files", flag.NArg())
}

// seed validates and uploads the given PDFs concurrently.
func seed(ctx context.Context, bucket *storage.BucketHandle, paths []string, emailID string) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(10)

	for _, path := range paths {
		eg.Go(func() error {
			if err := api.ValidateFile(path, conf); err != nil {
				return fmt.Errorf("%s is not a valid PDF: %w", path, err)
			}

			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("could not open %s: %w", path, err)
			}
			defer file.Close()

			objectName := filepath.Base(path)
			metadata := map[string]string{
				"MessageId": uuid.New().String(),
				"EmailId":   emailID,
			}
			if err := gcp.UploadIfAbsent(gctx, bucket, objectName, file, metadata); err != nil {
				return fmt.Errorf("upload of %s failed: %w", objectName, err)
			}
			slog.Info("Uploaded notice.", "object", objectName)
			return nil
		})
	}
	return eg.Wait()
}
