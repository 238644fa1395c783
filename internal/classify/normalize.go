package classify

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"PulseWatch/internal/domain"
	"PulseWatch/internal/textutil"
)

const (
	MaxTopics      = 5
	MissingSummary = "No summary available"
)

// Normalize maps a raw verdict onto the stored value ranges.
func Normalize(raw domain.RawClassification) domain.Classification {
	score := raw.Score
	if math.IsNaN(score) {
		score = 0
	}
	score = math.Max(-1, math.Min(1, score))

	topics := make([]string, 0, min(len(raw.Topics), MaxTopics))
	for _, topic := range raw.Topics {
		if len(topics) == MaxTopics {
			break
		}
		topics = append(topics, topic)
	}

	summary := strings.TrimSpace(raw.Summary)
	if summary == "" {
		summary = MissingSummary
	}

	return domain.Classification{
		Sentiment: domain.ParseSentiment(raw.Label),
		Score:     score,
		Topics:    topics,
		Summary:   summary,
	}
}

type responsePayload struct {
	Sentiment      string          `json:"sentiment"`
	SentimentScore *float64        `json:"sentiment_score"`
	KeyTopics      json.RawMessage `json:"key_topics"`
	Summary        string          `json:"summary"`
}

// DecodeResponse parses a model reply of the form
// {"sentiment": ..., "sentiment_score": ..., "key_topics": [...], "summary": ...}.
// Markdown code fences and surrounding prose are tolerated. Failures wrap
// domain.ErrMalformedResponse.
func DecodeResponse(content string) (domain.RawClassification, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return domain.RawClassification{}, fmt.Errorf("%w: empty payload", domain.ErrMalformedResponse)
	}

	var payload responsePayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		sanitized := sanitizeJSONPayload(trimmed)
		if sanitized == "" {
			return domain.RawClassification{}, fmt.Errorf("%w: %v (payload snippet: %s)", domain.ErrMalformedResponse, err, snippet(trimmed))
		}
		payload = responsePayload{}
		if err := json.Unmarshal([]byte(sanitized), &payload); err != nil {
			return domain.RawClassification{}, fmt.Errorf("%w: %v (payload snippet: %s)", domain.ErrMalformedResponse, err, snippet(sanitized))
		}
	}

	raw := domain.RawClassification{
		Label:   payload.Sentiment,
		Summary: payload.Summary,
	}
	if payload.SentimentScore != nil {
		raw.Score = *payload.SentimentScore
	}
	// Non-array topics are ignored rather than failing the whole verdict.
	if len(payload.KeyTopics) > 0 {
		var topics []string
		if err := json.Unmarshal(payload.KeyTopics, &topics); err == nil {
			raw.Topics = topics
		}
	}
	return raw, nil
}

func sanitizeJSONPayload(content string) string {
	trimmed := strings.TrimSpace(stripCodeFence(content))
	if trimmed == "" {
		return ""
	}
	if trimmed[0] == '{' {
		return trimmed
	}
	if start := strings.Index(trimmed, "{"); start >= 0 {
		if end := strings.LastIndex(trimmed, "}"); end > start {
			return strings.TrimSpace(trimmed[start : end+1])
		}
	}
	return ""
}

func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	return textutil.Truncate(clean, 160)
}
