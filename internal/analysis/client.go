package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// defaultAPIVersion is injected into job-status requests whose operation
// location omits one.
const defaultAPIVersion = "2025-05-01-preview"

const userAgent = "noticeflow-ingest"

// Job is the handle returned by a successful analysis submission: the
// resumable operation location plus the raw submission response body.
type Job struct {
	OperationLocation string
	ResponseBody      string
}

// Client talks to the Content Understanding analyzer endpoint.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client for the given analyzer endpoint. A nil
// httpClient or logger falls back to sensible defaults.
func NewClient(endpoint, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 45 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Submit starts an analysis job for the document at documentURL and returns
// the job handle. The Operation-Location header may legitimately be empty in
// a malformed service response; callers must check it before polling.
func (c *Client) Submit(ctx context.Context, documentURL string) (*Job, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid analyzer endpoint %q: %w", c.endpoint, err)
	}
	q := reqURL.Query()
	q.Set("api-version", defaultAPIVersion)
	q.Set("stringEncoding", "utf16")
	q.Set("enableJailbreakDetection", "false")
	reqURL.RawQuery = q.Encode()

	body, err := json.Marshal(map[string]string{"url": documentURL})
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL.String(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(req)

	reqID := uuid.New().String()
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Analysis submission failed.", "reqId", reqID, "error", err)
		return nil, fmt.Errorf("analysis submission request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	c.logger.Info("Analysis submission response.",
		"reqId", reqID,
		"status", resp.StatusCode,
		"elapsedMs", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("analysis submission returned status %d", resp.StatusCode)
	}

	return &Job{
		OperationLocation: resp.Header.Get("Operation-Location"),
		ResponseBody:      string(raw),
	}, nil
}

// JobStatus fetches the raw status document for an in-flight job. The
// operation location is used as-is except that the default api-version is
// added when its query string lacks one.
func (c *Client) JobStatus(ctx context.Context, operationLocation string) ([]byte, error) {
	reqURL, err := url.Parse(operationLocation)
	if err != nil {
		return nil, fmt.Errorf("invalid operation location %q: %w", operationLocation, err)
	}
	q := reqURL.Query()
	if q.Get("api-version") == "" {
		q.Set("api-version", defaultAPIVersion)
		reqURL.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("job status request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read job status response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("job status returned status %d", resp.StatusCode)
	}
	return raw, nil
}

func (c *Client) setAuthHeaders(req *http.Request) {
	req.Header.Set("Ocp-Apim-Subscription-Key", c.apiKey)
	req.Header.Set("x-ms-useragent", userAgent)
}
