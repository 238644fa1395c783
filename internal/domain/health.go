package domain

import "time"

// Metric names written to the health log.
const (
	MetricAnalysis      = "sentiment_analysis"
	MetricAnalysisError = "sentiment_analysis_error"
	MetricIngest        = "post_ingest"
	MetricIngestError   = "post_ingest_error"
	MetricCleanup       = "database_cleanup"

	// Legacy names still recognised as failures.
	MetricScrapeError   = "scrape_error"
	MetricAnalysisFault = "analysis_error"
)

// Run outcome values stored under the "status" key of a health event.
const (
	RunStatusSuccess        = "success"
	RunStatusPartialSuccess = "partial_success"
	RunStatusFailed         = "failed"
)

// HealthEvent is an append-only operational log entry.
type HealthEvent struct {
	ID          string         `json:"id"`
	MetricName  string         `json:"metric_name"`
	MetricValue map[string]any `json:"metric_value"`
	RecordedAt  time.Time      `json:"recorded_at"`
}

// SystemStats aggregates store-wide counters.
type SystemStats struct {
	TotalPosts        int        `json:"total_posts"`
	TotalAnalyzed     int        `json:"total_analyzed"`
	PostsToday        int        `json:"posts_today"`
	AvgSentimentScore *float64   `json:"avg_sentiment_score"`
	LastPostTime      *time.Time `json:"last_post_time"`
	LastAnalysisTime  *time.Time `json:"last_analysis_time"`
}

// HealthStatus is the tri-state summary of system health.
type HealthStatus string

const (
	HealthHealthy HealthStatus = "healthy"
	HealthWarning HealthStatus = "warning"
	HealthError   HealthStatus = "error"
)

// SentimentCount is one bucket of the sentiment distribution.
type SentimentCount struct {
	Sentiment Sentiment `json:"sentiment"`
	Count     int       `json:"count"`
}
