package relocate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/claritytax/noticeflow/internal/blobstore"
)

// fakeStore scripts the copy-status sequence and records mutations.
type fakeStore struct {
	copyStates []blobstore.CopyState
	statusErr  error
	ensureErr  error
	copyErr    error
	deleteErr  error

	ensured     bool
	copyStarted bool
	deleted     bool
	statusCalls int
}

func (s *fakeStore) Metadata(_ context.Context, _, _ string) (map[string]string, error) {
	return nil, nil
}

func (s *fakeStore) SetMetadata(_ context.Context, _, _ string, _ map[string]string) error {
	return nil
}

func (s *fakeStore) EnsureBucket(_ context.Context, _ string) error {
	s.ensured = true
	return s.ensureErr
}

func (s *fakeStore) StartCopy(_ context.Context, _, _, _ string) error {
	s.copyStarted = true
	return s.copyErr
}

func (s *fakeStore) CopyStatus(_ context.Context, _, _ string) (blobstore.CopyState, error) {
	call := s.statusCalls
	s.statusCalls++
	if s.statusErr != nil {
		return blobstore.CopyFailed, s.statusErr
	}
	if call >= len(s.copyStates) {
		call = len(s.copyStates) - 1
	}
	return s.copyStates[call], nil
}

func (s *fakeStore) Delete(_ context.Context, _, _ string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = true
	return nil
}

func TestRelocate_DeletesSourceAfterConfirmedCopy(t *testing.T) {
	store := &fakeStore{copyStates: []blobstore.CopyState{blobstore.CopyPending, blobstore.CopySuccess}}
	m := NewManager(store, time.Second, time.Millisecond)

	if err := m.Relocate(context.Background(), "incoming", "notice.pdf", "processed"); err != nil {
		t.Fatal(err)
	}
	if !store.ensured {
		t.Error("expected destination bucket to be ensured")
	}
	if !store.copyStarted {
		t.Error("expected a copy to be started")
	}
	if !store.deleted {
		t.Error("expected source to be deleted after confirmed copy")
	}
	if store.statusCalls != 2 {
		t.Errorf("status calls: got %d, want 2", store.statusCalls)
	}
}

func TestRelocate_FailedCopyLeavesSourceIntact(t *testing.T) {
	store := &fakeStore{copyStates: []blobstore.CopyState{blobstore.CopyFailed}}
	m := NewManager(store, time.Second, time.Millisecond)

	err := m.Relocate(context.Background(), "incoming", "notice.pdf", "processed")
	if err == nil {
		t.Fatal("expected an error for a failed copy")
	}
	if store.deleted {
		t.Fatal("source must not be deleted when the copy failed")
	}
}

func TestRelocate_PendingAtTimeoutLeavesSourceIntact(t *testing.T) {
	store := &fakeStore{copyStates: []blobstore.CopyState{blobstore.CopyPending}}
	m := NewManager(store, 30*time.Millisecond, 10*time.Millisecond)

	err := m.Relocate(context.Background(), "incoming", "notice.pdf", "processed")
	if err == nil {
		t.Fatal("expected an error for a copy still pending at timeout")
	}
	if !strings.Contains(err.Error(), "pending") {
		t.Errorf("error should name the copy status, got: %v", err)
	}
	if store.deleted {
		t.Fatal("source must not be deleted while the copy is unconfirmed")
	}
}

func TestRelocate_StatusErrorLeavesSourceIntact(t *testing.T) {
	store := &fakeStore{statusErr: errors.New("status unavailable")}
	m := NewManager(store, time.Second, time.Millisecond)

	if err := m.Relocate(context.Background(), "incoming", "notice.pdf", "processed"); err == nil {
		t.Fatal("expected an error when copy status cannot be read")
	}
	if store.deleted {
		t.Fatal("source must not be deleted on a status error")
	}
}

func TestRelocate_EnsureBucketFailureStopsBeforeCopy(t *testing.T) {
	store := &fakeStore{ensureErr: errors.New("denied")}
	m := NewManager(store, time.Second, time.Millisecond)

	if err := m.Relocate(context.Background(), "incoming", "notice.pdf", "processed"); err == nil {
		t.Fatal("expected an error when the destination bucket cannot be ensured")
	}
	if store.copyStarted {
		t.Fatal("no copy should start without a destination bucket")
	}
}

func TestRelocate_DeleteFailureNamesTheDelete(t *testing.T) {
	store := &fakeStore{
		copyStates: []blobstore.CopyState{blobstore.CopySuccess},
		deleteErr:  errors.New("precondition failed"),
	}
	m := NewManager(store, time.Second, time.Millisecond)

	err := m.Relocate(context.Background(), "incoming", "notice.pdf", "processed")
	if err == nil {
		t.Fatal("expected an error when the source delete fails")
	}
	if !strings.Contains(err.Error(), "delete source") {
		t.Errorf("error should make the duplicated-document case diagnosable, got: %v", err)
	}
}
