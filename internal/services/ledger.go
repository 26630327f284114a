package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/claritytax/noticeflow/internal/models"
)

// ProcessingRecord is the per-invocation outcome stored in Firestore. It
// exists for audit and diagnosis only; the blob's own metadata remains the
// source of truth for a processed notice.
type ProcessingRecord struct {
	BlobName     string    `firestore:"blobName"`
	BlobURL      string    `firestore:"blobUrl"`
	MessageID    string    `firestore:"messageId,omitempty"`
	EmailID      string    `firestore:"emailId,omitempty"`
	Status       string    `firestore:"status"`
	ErrorDetails string    `firestore:"errorDetails,omitempty"`
	CreatedAt    time.Time `firestore:"createdAt"`
}

// Ledger records each invocation's final status in a Firestore collection.
type Ledger struct {
	client     *firestore.Client
	collection string
}

// NewLedger creates a Ledger writing to the given collection.
func NewLedger(client *firestore.Client, collection string) *Ledger {
	return &Ledger{client: client, collection: collection}
}

// Record appends one processing record for the document.
func (l *Ledger) Record(ctx context.Context, doc *models.DocumentContext, procErr error) error {
	record := ProcessingRecord{
		BlobName:  doc.Name,
		BlobURL:   doc.URL,
		MessageID: doc.MessageID,
		EmailID:   doc.EmailID,
		Status:    doc.Status,
		CreatedAt: time.Now(),
	}
	if procErr != nil {
		record.ErrorDetails = procErr.Error()
	}
	if _, _, err := l.client.Collection(l.collection).Add(ctx, record); err != nil {
		return fmt.Errorf("failed to add processing record: %w", err)
	}
	return nil
}
