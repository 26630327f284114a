package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// scriptedStatus returns a canned sequence of status responses, repeating
// the last entry once the script runs out.
type scriptedStatus struct {
	responses []string
	err       error
	errAt     int
	calls     int
}

func (s *scriptedStatus) JobStatus(_ context.Context, _ string) ([]byte, error) {
	call := s.calls
	s.calls++
	if s.err != nil && call >= s.errAt {
		return nil, s.err
	}
	if call >= len(s.responses) {
		call = len(s.responses) - 1
	}
	return []byte(s.responses[call]), nil
}

func TestPollUntilTerminal_SucceedsAfterRunning(t *testing.T) {
	client := &scriptedStatus{responses: []string{
		`{"status": "Running"}`,
		`{"status": "Running"}`,
		`{"status": "Succeeded", "result": {}}`,
	}}

	outcome, raw, err := PollUntilTerminal(context.Background(), client, "https://example/jobs/1", time.Second, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeSucceeded {
		t.Fatalf("outcome: got %s, want succeeded", outcome)
	}
	if !strings.Contains(string(raw), "Succeeded") {
		t.Fatalf("expected last raw response, got %s", raw)
	}
	if client.calls != 3 {
		t.Fatalf("status calls: got %d, want 3", client.calls)
	}
}

func TestPollUntilTerminal_FailedStopsImmediately(t *testing.T) {
	for _, status := range []string{"Failed", "Canceled"} {
		client := &scriptedStatus{responses: []string{`{"status": "` + status + `"}`}}

		outcome, _, err := PollUntilTerminal(context.Background(), client, "https://example/jobs/1", time.Second, time.Millisecond)
		if err != nil {
			t.Fatal(err)
		}
		if outcome != OutcomeFailed {
			t.Fatalf("%s: outcome: got %s, want failed", status, outcome)
		}
		if client.calls != 1 {
			t.Fatalf("%s: status calls: got %d, want 1", status, client.calls)
		}
	}
}

func TestPollUntilTerminal_UnknownStatusKeepsPolling(t *testing.T) {
	client := &scriptedStatus{responses: []string{
		`{"status": "Queued"}`,
		`{"status": "NotStarted"}`,
		`{"status": "Succeeded"}`,
	}}

	outcome, _, err := PollUntilTerminal(context.Background(), client, "https://example/jobs/1", time.Second, time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeSucceeded {
		t.Fatalf("outcome: got %s, want succeeded", outcome)
	}
	if client.calls != 3 {
		t.Fatalf("status calls: got %d, want 3", client.calls)
	}
}

func TestPollUntilTerminal_TransportErrorFailsFast(t *testing.T) {
	transportErr := errors.New("connection reset")
	client := &scriptedStatus{err: transportErr}

	outcome, _, err := PollUntilTerminal(context.Background(), client, "https://example/jobs/1", time.Second, time.Millisecond)
	if outcome != OutcomeFailed {
		t.Fatalf("outcome: got %s, want failed", outcome)
	}
	if !errors.Is(err, transportErr) {
		t.Fatalf("error: got %v, want wrapped %v", err, transportErr)
	}
	if client.calls != 1 {
		t.Fatalf("status calls: got %d, want 1", client.calls)
	}
}

func TestPollUntilTerminal_MalformedResponseFailsFast(t *testing.T) {
	client := &scriptedStatus{responses: []string{`not json at all`}}

	outcome, _, err := PollUntilTerminal(context.Background(), client, "https://example/jobs/1", time.Second, time.Millisecond)
	if outcome != OutcomeFailed {
		t.Fatalf("outcome: got %s, want failed", outcome)
	}
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if client.calls != 1 {
		t.Fatalf("status calls: got %d, want 1", client.calls)
	}
}

func TestPollUntilTerminal_TimeoutWithinBudget(t *testing.T) {
	client := &scriptedStatus{responses: []string{`{"status": "Running"}`}}
	maxWait := 50 * time.Millisecond
	interval := 10 * time.Millisecond

	start := time.Now()
	outcome, _, err := PollUntilTerminal(context.Background(), client, "https://example/jobs/1", maxWait, interval)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatal(err)
	}
	if outcome != OutcomeTimedOut {
		t.Fatalf("outcome: got %s, want timedOut", outcome)
	}
	// Worst case is maxWait plus one trailing interval; allow scheduler slack.
	if elapsed > maxWait+interval+50*time.Millisecond {
		t.Fatalf("polling ran %v, want at most %v", elapsed, maxWait+interval)
	}
	if client.calls == 0 {
		t.Fatal("expected at least one status call before timing out")
	}
}

func TestPollUntilTerminal_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	client := &scriptedStatus{responses: []string{`{"status": "Running"}`}}

	outcome, _, err := PollUntilTerminal(ctx, client, "https://example/jobs/1", time.Second, 50*time.Millisecond)
	if outcome != OutcomeFailed {
		t.Fatalf("outcome: got %s, want failed", outcome)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error: got %v, want context.Canceled", err)
	}
}
