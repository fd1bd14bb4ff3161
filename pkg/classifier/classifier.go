// Package classifier wraps the remote AI-text detection endpoint. The call is
// a single bounded POST with no retry and no caching; every failure mode
// (network, non-2xx, malformed body) surfaces as *UnavailableError so callers
// can apply their fail-open policy deterministically.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Prediction labels returned by the classifier.
const (
	PredictionAI    = "ai"
	PredictionHuman = "human"
)

// Probabilities holds the per-class probability pair.
type Probabilities struct {
	Human float64 `json:"human"`
	AI    float64 `json:"ai"`
}

// Verdict is the classifier's judgement of a piece of text.
type Verdict struct {
	Prediction    string        `json:"prediction"`
	Confidence    float64       `json:"confidence"`
	Probabilities Probabilities `json:"probabilities"`
}

// IsAI reports whether the text was classified as AI-generated.
func (v *Verdict) IsAI() bool {
	return v != nil && v.Prediction == PredictionAI
}

// UnavailableError indicates the classifier could not produce a verdict.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("classifier unavailable: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("classifier unavailable: %s", e.Reason)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is a classifier availability failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// Config configures the remote endpoint.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Client performs classification calls against the remote endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient constructs a classifier client with a bounded request timeout.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type classifyRequest struct {
	Text string `json:"text"`
}

// Classify submits text for classification. The returned error, when non-nil,
// is always an *UnavailableError.
func (c *Client) Classify(ctx context.Context, text string) (*Verdict, error) {
	body, err := json.Marshal(classifyRequest{Text: text})
	if err != nil {
		return nil, &UnavailableError{Reason: "encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, &UnavailableError{Reason: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &UnavailableError{Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UnavailableError{Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &UnavailableError{Reason: "read response", Err: err}
	}

	var verdict Verdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return nil, &UnavailableError{Reason: "malformed response", Err: err}
	}
	if verdict.Prediction != PredictionAI && verdict.Prediction != PredictionHuman {
		return nil, &UnavailableError{Reason: fmt.Sprintf("unknown prediction %q", verdict.Prediction)}
	}

	return &verdict, nil
}
