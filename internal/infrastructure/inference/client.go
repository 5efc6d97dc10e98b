package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/apex/log"
	"golang.org/x/time/rate"

	"github.com/toxiscan/backend/internal/domain"
	"github.com/toxiscan/backend/internal/infrastructure/metrics"
)

const (
	operationExtract   = "extract"
	operationSummarize = "summarize"

	extractionMaxTokens = 1500
	summaryMaxTokens    = 800
)

// ClientConfig configures the inference client
type ClientConfig struct {
	APIKey            string
	BaseURL           string
	ExtractionModel   string
	SummaryModel      string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// Client talks to an OpenAI-compatible chat completions endpoint.
// It implements both domain.ExtractionClient and domain.SummaryClient.
type Client struct {
	httpClient      *http.Client
	apiKey          string
	baseURL         string
	extractionModel string
	summaryModel    string
	rateLimiter     *rate.Limiter
}

// NewClient creates a new inference client
func NewClient(cfg ClientConfig) *Client {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:          cfg.APIKey,
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		extractionModel: cfg.ExtractionModel,
		summaryModel:    cfg.SummaryModel,
		rateLimiter:     rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Extract sends the extraction prompt and the label image and returns the raw completion
func (c *Client) Extract(ctx context.Context, prompt, imageDataURI string) (string, error) {
	req := newVisionRequest(c.extractionModel, prompt, imageDataURI, extractionMaxTokens)
	return c.complete(ctx, operationExtract, req)
}

// Summarize sends the summary prompt and returns the raw completion
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	req := newTextRequest(c.summaryModel, prompt, summaryMaxTokens)
	return c.complete(ctx, operationSummarize, req)
}

// complete performs a single chat completion call. Failures are not retried.
func (c *Client) complete(ctx context.Context, operation string, body chatRequest) (string, error) {
	start := time.Now()
	text, err := c.do(ctx, body)

	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.InferenceRequestsTotal.WithLabelValues(operation, result).Inc()

	entry := log.WithFields(log.Fields{
		"operation": operation,
		"model":     body.Model,
		"elapsed":   time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("[INFERENCE] request failed")
		return "", err
	}
	entry.WithField("chars", len(text)).Debug("[INFERENCE] completion received")
	return text, nil
}

func (c *Client) do(ctx context.Context, body chatRequest) (string, error) {
	// Wait for rate limiter
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: rate limiter: %v", domain.ErrInferenceFailure, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/chat/completions", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "ToxiScan/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInferenceFailure, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response body: %v", domain.ErrInferenceFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrInferenceFailure, resp.StatusCode, truncate(string(respBody), 200))
	}

	return completionText(respBody)
}

// MaskedKey returns the API key with all but the last four characters hidden
func (c *Client) MaskedKey() string {
	if len(c.apiKey) <= 4 {
		return strings.Repeat("*", len(c.apiKey))
	}
	return strings.Repeat("*", len(c.apiKey)-4) + c.apiKey[len(c.apiKey)-4:]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
