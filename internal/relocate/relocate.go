// Package relocate implements the verified move of a processed document:
// copy to the destination, confirm the copy completed, and only then delete
// the source.
package relocate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/claritytax/noticeflow/internal/blobstore"
)

// Default budget and interval for confirming a destination copy.
const (
	DefaultMaxWait      = 30 * time.Second
	DefaultPollInterval = 1 * time.Second
)

// Manager moves objects between buckets. It never retries a failed move
// itself; the caller decides whether to retry the whole document.
type Manager struct {
	store    blobstore.Store
	maxWait  time.Duration
	interval time.Duration
}

// NewManager creates a Manager polling copy status every interval within the
// maxWait budget. Non-positive values fall back to the defaults.
func NewManager(store blobstore.Store, maxWait, interval time.Duration) *Manager {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Manager{store: store, maxWait: maxWait, interval: interval}
}

// Relocate copies the object to the same name in the destination bucket,
// preserving metadata, and deletes the source only after the copy is
// observed complete. A failed or unconfirmed copy leaves the source intact
// and surfaces as an error.
func (m *Manager) Relocate(ctx context.Context, srcBucket, name, dstBucket string) error {
	logCtx := slog.With("object", name, "sourceBucket", srcBucket, "destinationBucket", dstBucket)
	logCtx.Info("Relocating object.")

	if err := m.store.EnsureBucket(ctx, dstBucket); err != nil {
		return fmt.Errorf("failed to ensure destination bucket: %w", err)
	}

	if err := m.store.StartCopy(ctx, srcBucket, name, dstBucket); err != nil {
		return fmt.Errorf("failed to start copy: %w", err)
	}

	state, err := m.waitForCopy(ctx, dstBucket, name)
	if err != nil {
		return err
	}
	if state != blobstore.CopySuccess {
		logCtx.Error("Copy did not complete; leaving source in place.", "copyStatus", state.String())
		return fmt.Errorf("copy of %s did not complete, status: %s", name, state)
	}

	if err := m.store.Delete(ctx, srcBucket, name); err != nil {
		// The copy already succeeded, so the document now exists in both
		// buckets. Name the delete in the error so the case is diagnosable.
		return fmt.Errorf("copy succeeded but failed to delete source %s: %w", name, err)
	}

	logCtx.Info("Relocation complete.")
	return nil
}

// waitForCopy polls the destination until the copy leaves the pending state
// or the budget expires. The deadline is computed once at entry.
func (m *Manager) waitForCopy(ctx context.Context, dstBucket, name string) (blobstore.CopyState, error) {
	deadline := time.Now().Add(m.maxWait)

	state, err := m.store.CopyStatus(ctx, dstBucket, name)
	if err != nil {
		return blobstore.CopyFailed, fmt.Errorf("failed to check copy status: %w", err)
	}

	for state == blobstore.CopyPending && time.Now().Before(deadline) {
		select {
		case <-time.After(m.interval):
		case <-ctx.Done():
			return blobstore.CopyFailed, ctx.Err()
		}
		state, err = m.store.CopyStatus(ctx, dstBucket, name)
		if err != nil {
			return blobstore.CopyFailed, fmt.Errorf("failed to check copy status: %w", err)
		}
	}
	return state, nil
}
