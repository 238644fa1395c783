package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"PulseWatch/internal/classify"
	"PulseWatch/internal/config"
	"PulseWatch/internal/domain"
	"PulseWatch/internal/ports"
)

// ProviderName is the registry key of the chat-completions classifier.
const ProviderName = "chatgpt"

// ChatGPTClient classifies posts through an OpenAI-compatible chat completions API.
type ChatGPTClient struct {
	endpoint     string
	model        string
	apiKey       string
	systemPrompt string
	temperature  float64
	maxTokens    int
	httpClient   *http.Client
}

var _ ports.Classifier = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ChatGPTConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatGPTClient{
		endpoint:     cfg.Endpoint,
		model:        cfg.Model,
		apiKey:       cfg.APIKey,
		systemPrompt: cfg.SystemPrompt,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name implements ports.Classifier.
func (c *ChatGPTClient) Name() string { return ProviderName }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Submit asks the model for a JSON verdict on text.
func (c *ChatGPTClient) Submit(ctx context.Context, text string) (domain.RawClassification, error) {
	if c == nil {
		return domain.RawClassification{}, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" {
		return domain.RawClassification{}, fmt.Errorf("chatgpt: %w", domain.ErrInvalidCredentials)
	}
	if c.endpoint == "" || c.model == "" {
		return domain.RawClassification{}, fmt.Errorf("chatgpt client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: safePrompt(c.systemPrompt)},
			{Role: "user", Content: classify.UserPrompt(text)},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return domain.RawClassification{}, fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.RawClassification{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.RawClassification{}, fmt.Errorf("send classification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.RawClassification{}, classifyHTTPError(resp, payload)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return domain.RawClassification{}, fmt.Errorf("%w: decode chatgpt response: %v", domain.ErrMalformedResponse, err)
	}
	if len(decoded.Choices) == 0 {
		return domain.RawClassification{}, fmt.Errorf("%w: chatgpt returned no choices", domain.ErrMalformedResponse)
	}
	return classify.DecodeResponse(decoded.Choices[0].Message.Content)
}

func classifyHTTPError(resp *http.Response, payload []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(payload, &apiErr)
	detail := strings.TrimSpace(apiErr.Error.Message)
	if detail == "" {
		detail = strings.TrimSpace(string(payload))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || apiErr.Error.Code == "invalid_api_key":
		return fmt.Errorf("chatgpt %s: %w", resp.Status, domain.ErrInvalidCredentials)
	case resp.StatusCode == http.StatusRequestEntityTooLarge || apiErr.Error.Code == "context_length_exceeded":
		return fmt.Errorf("chatgpt %s: %w", resp.Status, domain.ErrInputTooLarge)
	}
	return fmt.Errorf("chatgpt error %s: %s", resp.Status, detail)
}

func safePrompt(prompt string) string {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return classify.SystemPrompt
	}
	return prompt
}
