package usecase

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"PulseWatch/internal/domain"
	"PulseWatch/internal/ports"
)

const (
	// AnalyticsSample bounds how many analyzed posts feed topic and keyword counts.
	AnalyticsSample = 500
	TopTopicsLimit  = 10
	// TopKeywordsLimit caps the keyword ranking.
	TopKeywordsLimit = 20
	TimelineWindow   = 7 * 24 * time.Hour
)

// AnalyticsReport summarizes classified posts for dashboards.
type AnalyticsReport struct {
	SentimentDistribution []domain.SentimentCount `json:"sentimentDistribution"`
	TopTopics             []domain.TopicCount     `json:"topTopics"`
	TopKeywords           []domain.KeywordCount   `json:"topKeywords"`
	Timeline              []domain.DailySentiment `json:"timeline"`
	Timestamp             time.Time               `json:"timestamp"`
}

// Analytics builds aggregate reports over analyzed posts.
type Analytics struct {
	store ports.AnalyticsRepository
	now   func() time.Time
}

// NewAnalytics constructs the analytics use case.
func NewAnalytics(store ports.AnalyticsRepository, now func() time.Time) *Analytics {
	if now == nil {
		now = time.Now
	}
	return &Analytics{store: store, now: now}
}

// Report fails as a whole if any aggregate cannot be loaded.
func (a *Analytics) Report(ctx context.Context) (AnalyticsReport, error) {
	now := a.now()

	dist, err := a.store.SentimentDistribution(ctx)
	if err != nil {
		return AnalyticsReport{}, fmt.Errorf("load sentiment distribution: %w", err)
	}
	tally, err := a.store.TopicCounts(ctx, AnalyticsSample)
	if err != nil {
		return AnalyticsReport{}, fmt.Errorf("load topic counts: %w", err)
	}
	timeline, err := a.store.SentimentTimeline(ctx, now.Add(-TimelineWindow))
	if err != nil {
		return AnalyticsReport{}, fmt.Errorf("load sentiment timeline: %w", err)
	}

	report := AnalyticsReport{
		SentimentDistribution: dist,
		TopTopics:             []domain.TopicCount{},
		TopKeywords:           []domain.KeywordCount{},
		Timeline:              timeline,
		Timestamp:             now,
	}
	if report.SentimentDistribution == nil {
		report.SentimentDistribution = []domain.SentimentCount{}
	}
	if report.Timeline == nil {
		report.Timeline = []domain.DailySentiment{}
	}
	for _, e := range rank(tally.Topics, TopTopicsLimit) {
		report.TopTopics = append(report.TopTopics, domain.TopicCount{Topic: e.name, Count: e.count})
	}
	for _, e := range rank(tally.Keywords, TopKeywordsLimit) {
		report.TopKeywords = append(report.TopKeywords, domain.KeywordCount{Keyword: e.name, Count: e.count})
	}
	return report, nil
}

type ranked struct {
	name  string
	count int
}

// rank orders counts by frequency, ties broken alphabetically.
func rank(counts map[string]int, limit int) []ranked {
	out := make([]ranked, 0, len(counts))
	for name, count := range counts {
		out = append(out, ranked{name: name, count: count})
	}
	slices.SortFunc(out, func(x, y ranked) int {
		if c := cmp.Compare(y.count, x.count); c != 0 {
			return c
		}
		return cmp.Compare(x.name, y.name)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
