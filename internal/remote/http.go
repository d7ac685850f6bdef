package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/djlord-it/eoflow/internal/circuitbreaker"
)

type Config struct {
	APIURL           string
	APIKey           string
	DeploymentID     string
	Timeout          time.Duration
	RateLimit        float64 // submissions per second, 0 disables limiting
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// HTTPBackend speaks the Prefect REST API.
type HTTPBackend struct {
	baseURL      string
	apiKey       string
	deploymentID string
	client       *http.Client
	breaker      *circuitbreaker.Breaker
	limiter      *rate.Limiter
	logger       *slog.Logger
}

func NewHTTPBackend(cfg Config, logger *slog.Logger) (*HTTPBackend, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, errors.New("remote: api url is required")
	}
	if strings.TrimSpace(cfg.DeploymentID) == "" {
		return nil, errors.New("remote: deployment id is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &HTTPBackend{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		apiKey:       strings.TrimSpace(cfg.APIKey),
		deploymentID: strings.TrimSpace(cfg.DeploymentID),
		client:       &http.Client{Timeout: cfg.Timeout},
		breaker:      circuitbreaker.New(cfg.BreakerThreshold, cfg.BreakerCooldown),
		limiter:      limiter,
		logger:       logger,
	}, nil
}

type flowRunRequest struct {
	Name       string        `json:"name"`
	Parameters flowRunParams `json:"parameters"`
	Tags       []string      `json:"tags"`
}

type flowRunParams struct {
	JobID     string          `json:"jobId"`
	ProcessID string          `json:"processId"`
	Trigger   string          `json:"trigger"`
	Inputs    json.RawMessage `json:"inputs"`
}

type flowRunResponse struct {
	ID    string `json:"id"`
	State struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"state"`
}

var errDecode = errors.New("decode response")

// statusError carries a non-2xx response.
type statusError struct {
	code   int
	detail string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("remote api error (%d): %s", e.code, e.detail)
}

func (b *HTTPBackend) Submit(ctx context.Context, req SubmitRequest) SubmitResult {
	// Wait before Allow: a half-open breaker hands its only probe to the
	// caller of Allow, and that caller must report Success or Failure.
	if err := b.limiter.Wait(ctx); err != nil {
		return SubmitResult{Outcome: Unavailable, Err: fmt.Errorf("rate limit: %w", err)}
	}
	if err := b.breaker.Allow(b.baseURL); err != nil {
		return SubmitResult{Outcome: Unavailable, Err: err}
	}

	inputs := req.Inputs
	if len(inputs) == 0 {
		inputs = json.RawMessage(`{}`)
	}
	body := flowRunRequest{
		Name: fmt.Sprintf("eoflow-%s-%s", req.ProcessID, req.CorrelationID),
		Parameters: flowRunParams{
			JobID:     req.CorrelationID,
			ProcessID: req.ProcessID,
			Trigger:   string(req.Trigger),
			Inputs:    inputs,
		},
		Tags: []string{"eoflow", string(req.Trigger)},
	}

	var resp flowRunResponse
	err := b.do(ctx, http.MethodPost, "/api/deployments/"+b.deploymentID+"/create_flow_run", body, &resp)
	switch {
	case err == nil && resp.ID != "":
		b.breaker.Success(b.baseURL)
		return SubmitResult{Outcome: Accepted, RunID: resp.ID}
	case err == nil:
		b.breaker.Success(b.baseURL)
		return SubmitResult{Outcome: Rejected, Err: errors.New("remote api returned no run id")}
	case isUnavailable(err):
		b.breaker.Failure(b.baseURL)
		b.logger.Warn("remote: submit unavailable", "job_id", req.CorrelationID, "error", err)
		return SubmitResult{Outcome: Unavailable, Err: err}
	default:
		b.breaker.Success(b.baseURL)
		b.logger.Warn("remote: submit rejected", "job_id", req.CorrelationID, "error", err)
		return SubmitResult{Outcome: Rejected, Err: err}
	}
}

// RunState returns the raw state type of a run, e.g. "RUNNING".
func (b *HTTPBackend) RunState(ctx context.Context, runID string) (string, error) {
	var resp flowRunResponse
	if err := b.do(ctx, http.MethodGet, "/api/flow_runs/"+runID, nil, &resp); err != nil {
		return "", err
	}
	return resp.State.Type, nil
}

// Ping backs the health endpoint.
func (b *HTTPBackend) Ping(ctx context.Context) error {
	return b.do(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (b *HTTPBackend) do(ctx context.Context, method, path string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{code: resp.StatusCode, detail: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", errDecode, err)
	}
	return nil
}

// isUnavailable separates "could not get an answer" from "got a refusal".
func isUnavailable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	// an undecodable answer is still an answer
	return !errors.Is(err, errDecode)
}
