package domain

import (
	"strings"
	"time"
)

// Sentiment is the normalized polarity label of an analysis.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Valid reports whether s is one of the three known labels.
func (s Sentiment) Valid() bool {
	switch s {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return true
	}
	return false
}

// ParseSentiment lower-cases label and maps anything unknown to neutral.
func ParseSentiment(label string) Sentiment {
	s := Sentiment(strings.ToLower(strings.TrimSpace(label)))
	if s.Valid() {
		return s
	}
	return SentimentNeutral
}

// RawClassification is what a classifier returns before normalization.
type RawClassification struct {
	Label   string
	Score   float64
	Topics  []string
	Summary string
}

// Classification is a normalized classifier verdict.
type Classification struct {
	Sentiment Sentiment
	Score     float64
	Topics    []string
	Summary   string
}

// Analysis is the stored classification of exactly one post.
type Analysis struct {
	PostID string
	Classification
	AnalyzedAt time.Time
}

// RunProgress reports how far an analysis run has got.
type RunProgress struct {
	RunID     string `json:"runId"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
}

// Done reports whether every item of the run has been attempted.
func (p RunProgress) Done() bool {
	return p.Processed >= p.Total
}
