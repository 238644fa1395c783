package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"PulseWatch/internal/domain"
	"PulseWatch/internal/usecase"
)

func TestDecodeCandidatesAcceptsBothShapes(t *testing.T) {
	t.Parallel()

	list, err := decodeCandidates([]byte(`[{"source":"reddit","content":"Bus fares rise again next month"}]`))
	if err != nil || len(list) != 1 || list[0].Source != domain.SourceReddit {
		t.Fatalf("array form: %v %+v", err, list)
	}

	wrapped, err := decodeCandidates([]byte(`{"candidates":[{"source":"news","content":"a"},{"source":"news","content":"b"}]}`))
	if err != nil || len(wrapped) != 2 {
		t.Fatalf("wrapped form: %v %+v", err, wrapped)
	}

	if _, err := decodeCandidates([]byte(`nope`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRenderHealthIncludesSections(t *testing.T) {
	t.Parallel()

	score := 0.25
	last := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	out := renderHealth(usecase.HealthReport{
		Status:            domain.HealthWarning,
		DatabaseConnected: true,
		Statistics: &domain.SystemStats{
			TotalPosts:        10,
			TotalAnalyzed:     4,
			AvgSentimentScore: &score,
			LastPostTime:      &last,
		},
		SentimentDistribution: []domain.SentimentCount{{Sentiment: domain.SentimentNeutral, Count: 4}},
		RecentEvents:          []domain.HealthEvent{{MetricName: "analysis_run", RecordedAt: last}},
	})

	for _, want := range []string{"warning", "Total posts", "0.250", "neutral", "analysis_run"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in\n%s", want, out)
		}
	}
}

func TestRenderAnalyticsIncludesSections(t *testing.T) {
	t.Parallel()

	out := renderAnalytics(usecase.AnalyticsReport{
		TopTopics:   []domain.TopicCount{{Topic: "economy", Count: 7}},
		TopKeywords: []domain.KeywordCount{{Keyword: "inflation", Count: 3}},
		Timeline:    []domain.DailySentiment{{Date: "2025-03-14", Positive: 2, Negative: 1, Total: 3, AvgScore: 0.125}},
	})

	for _, want := range []string{"economy", "inflation", "2025-03-14", "0.125"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in\n%s", want, out)
		}
	}
}

func TestConfigCommandPrintsRedactedSummary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pulsewatch.yaml")
	if err := os.WriteFile(path, []byte("chatgpt:\n  apiKey: sk-secret-value\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"config", "--config", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(out.String(), "sk-secret-value") {
		t.Fatalf("secret leaked: %s", out.String())
	}
}
