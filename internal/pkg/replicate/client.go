package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/candicemaschek-bit/dream-interpreter-ai-app/internal/pkg/env"
)

const defaultAPIBaseURL = "https://api.replicate.com/v1"

// Prediction statuses as reported by the provider.
const (
	StatusQueued     = "queued"
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Client talks to the Replicate predictions API.
type Client struct {
	APIBaseURL string
	Token      string

	HTTPClient *http.Client
}

// PredictionInput is the model input for a transcription prediction.
type PredictionInput struct {
	Audio         string `json:"audio"`
	Language      string `json:"language"`
	Model         string `json:"model"`
	Transcription string `json:"transcription"`
	Translate     bool   `json:"translate"`
}

// Prediction is one provider-side unit of transcription work. Output stays
// raw because the shape varies by model version.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// IsPending reports whether the prediction has not reached a final state yet.
func (p *Prediction) IsPending() bool {
	switch p.Status {
	case StatusQueued, StatusStarting, StatusProcessing:
		return true
	default:
		return false
	}
}

// APIError is a non-2xx provider response. The status code is preserved so
// callers can tell billing and rate-limit conditions apart from generic
// failures before any job-state parsing happens.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("replicate: unexpected status %d: %s", e.StatusCode, e.Body)
}

type createPredictionRequest struct {
	Version string          `json:"version"`
	Input   PredictionInput `json:"input"`
}

// NewClientFromEnv builds a client from operator configuration.
func NewClientFromEnv() (*Client, error) {
	token := strings.TrimSpace(env.GetEnv("REPLICATE_API_TOKEN", ""))
	if token == "" {
		return nil, errors.New("REPLICATE_API_TOKEN is not configured")
	}
	return &Client{
		APIBaseURL: strings.TrimRight(env.GetEnv("REPLICATE_API_BASE_URL", defaultAPIBaseURL), "/"),
		Token:      token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// CreatePrediction submits a new prediction for the given model version.
// When waitSeconds is positive the provider is asked to hold the response
// open for up to that long, so fast jobs come back resolved immediately.
func (c *Client) CreatePrediction(ctx context.Context, version string, input PredictionInput, waitSeconds int) (*Prediction, error) {
	payload, err := json.Marshal(createPredictionRequest{Version: version, Input: input})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.APIBaseURL+"/predictions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if waitSeconds > 0 {
		req.Header.Set("Prefer", fmt.Sprintf("wait=%d", waitSeconds))
	}

	return c.doPrediction(req)
}

// GetPrediction fetches the current state of a prediction by id.
func (c *Client) GetPrediction(ctx context.Context, id string) (*Prediction, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("prediction id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.APIBaseURL+"/predictions/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.Token)
	req.Header.Set("Accept", "application/json")

	return c.doPrediction(req)
}

func (c *Client) doPrediction(req *http.Request) (*Prediction, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out Prediction
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("replicate: decode prediction: %w", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return nil, errors.New("replicate: prediction response missing id")
	}
	return &out, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
