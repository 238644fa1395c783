package cohere

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohereapi "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/core"

	"PulseWatch/internal/classify"
	"PulseWatch/internal/config"
	"PulseWatch/internal/domain"
	"PulseWatch/internal/ports"
)

// ProviderName is the registry key of the Cohere classifier.
const ProviderName = "cohere"

const defaultModel = "command-r"

// Classifier asks a Cohere chat model for a JSON verdict.
type Classifier struct {
	client *cohereclient.Client
	model  string
	hasKey bool
}

var _ ports.Classifier = (*Classifier)(nil)

// NewClassifier builds the client. httpClient may be nil.
func NewClassifier(cfg config.CohereConfig, httpClient *http.Client) *Classifier {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &Classifier{
		client: cohereclient.NewClient(
			cohereclient.WithToken(cfg.APIKey),
			cohereclient.WithHTTPClient(httpClient),
		),
		model:  model,
		hasKey: cfg.APIKey != "",
	}
}

// Name implements ports.Classifier.
func (c *Classifier) Name() string { return ProviderName }

// Submit implements ports.Classifier.
func (c *Classifier) Submit(ctx context.Context, text string) (domain.RawClassification, error) {
	if !c.hasKey {
		return domain.RawClassification{}, fmt.Errorf("cohere: %w", domain.ErrInvalidCredentials)
	}

	temperature := 0.3
	preamble := classify.SystemPrompt
	resp, err := c.client.Chat(ctx, &cohereapi.ChatRequest{
		Message:     classify.UserPrompt(text),
		Model:       &c.model,
		Preamble:    &preamble,
		Temperature: &temperature,
	})
	if err != nil {
		return domain.RawClassification{}, mapError(err)
	}
	if resp == nil {
		return domain.RawClassification{}, fmt.Errorf("%w: cohere returned empty response", domain.ErrMalformedResponse)
	}
	return classify.DecodeResponse(resp.Text)
}

func mapError(err error) error {
	var unauthorized *cohereapi.UnauthorizedError
	if errors.As(err, &unauthorized) {
		return fmt.Errorf("cohere chat: %w", domain.ErrInvalidCredentials)
	}
	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("cohere chat: %w", domain.ErrInvalidCredentials)
		case http.StatusRequestEntityTooLarge:
			return fmt.Errorf("cohere chat: %w", domain.ErrInputTooLarge)
		}
	}
	if strings.Contains(err.Error(), "too many tokens") {
		return fmt.Errorf("cohere chat: %w", domain.ErrInputTooLarge)
	}
	return fmt.Errorf("cohere chat: %w", err)
}
