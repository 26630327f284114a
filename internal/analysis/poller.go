package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Outcome is the terminal result of a polling pass.
type Outcome int

const (
	// OutcomeSucceeded means the job reported Succeeded.
	OutcomeSucceeded Outcome = iota
	// OutcomeFailed means the job reported Failed or Canceled, or a status
	// query could not be completed or parsed.
	OutcomeFailed
	// OutcomeTimedOut means no terminal status was observed within budget.
	OutcomeTimedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeTimedOut:
		return "timedOut"
	default:
		return "unknown"
	}
}

// Default polling budget and interval for analysis jobs.
const (
	DefaultMaxWait      = 30 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// StatusClient is the slice of Client the poller needs.
type StatusClient interface {
	JobStatus(ctx context.Context, operationLocation string) ([]byte, error)
}

// PollUntilTerminal queries the job status at a fixed interval until the job
// reaches a terminal state or the wall-clock budget expires. The deadline is
// computed once at entry, so slow status calls do not extend the budget. A
// transport or parse error fails the pass immediately rather than retrying a
// broken call; an unrecognized status value keeps polling. On success the
// last raw status body is returned alongside the outcome.
func PollUntilTerminal(ctx context.Context, c StatusClient, operationLocation string, maxWait, interval time.Duration) (Outcome, []byte, error) {
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(maxWait)

	for time.Now().Before(deadline) {
		raw, err := c.JobStatus(ctx, operationLocation)
		if err != nil {
			return OutcomeFailed, nil, fmt.Errorf("job status query failed: %w", err)
		}

		var status struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(raw, &status); err != nil {
			return OutcomeFailed, nil, fmt.Errorf("failed to parse job status response: %w", err)
		}

		switch status.Status {
		case "Succeeded":
			return OutcomeSucceeded, raw, nil
		case "Failed", "Canceled":
			slog.Warn("Analysis job reached a failed terminal state.", "jobStatus", status.Status)
			return OutcomeFailed, raw, nil
		}

		select {
		case <-time.After(interval):
		case <-ctx.Done():
			return OutcomeFailed, nil, ctx.Err()
		}
	}

	return OutcomeTimedOut, nil, nil
}
