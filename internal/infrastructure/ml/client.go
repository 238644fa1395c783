package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"PulseWatch/internal/config"
	"PulseWatch/internal/domain"
	"PulseWatch/internal/ports"
)

// ProviderName is the registry key of the inference-service classifier.
const ProviderName = "ml"

// Client talks to a self-hosted sentiment inference service.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Classifier = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(cfg config.MLConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(cfg.InferenceURL, "/"),
		apiKey:   cfg.APIKey,
		http:     &http.Client{Timeout: timeout},
	}
}

// Name implements ports.Classifier.
func (c *Client) Name() string { return ProviderName }

type classifyResponse struct {
	Sentiment      string   `json:"sentiment"`
	SentimentScore float64  `json:"sentiment_score"`
	KeyTopics      []string `json:"key_topics"`
	Summary        string   `json:"summary"`
}

// Submit sends the post text for scoring and topic detection.
func (c *Client) Submit(ctx context.Context, text string) (domain.RawClassification, error) {
	if c.endpoint == "" {
		return domain.RawClassification{}, fmt.Errorf("ml client misconfigured")
	}

	var resp classifyResponse
	if err := c.post(ctx, "/classify", map[string]any{"text": text}, &resp); err != nil {
		return domain.RawClassification{}, err
	}

	return domain.RawClassification{
		Label:   resp.Sentiment,
		Score:   resp.SentimentScore,
		Topics:  resp.KeyTopics,
		Summary: resp.Summary,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		closeErr := resp.Body.Close()
		statusErr := statusError(resp)
		if closeErr != nil {
			return fmt.Errorf("%w, close body: %v", statusErr, closeErr)
		}
		return statusErr
	}

	if v == nil {
		if err := resp.Body.Close(); err != nil {
			return fmt.Errorf("close response body: %w", err)
		}
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("%w: decode response: %v", domain.ErrMalformedResponse, err)
	}

	if err := resp.Body.Close(); err != nil {
		return fmt.Errorf("close response body: %w", err)
	}

	return nil
}

func statusError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("unexpected status %s: %w", resp.Status, domain.ErrInvalidCredentials)
	case http.StatusRequestEntityTooLarge:
		return fmt.Errorf("unexpected status %s: %w", resp.Status, domain.ErrInputTooLarge)
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}
