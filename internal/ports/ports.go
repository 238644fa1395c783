package ports

import (
	"context"
	"time"

	"PulseWatch/internal/domain"
)

// PostRepository stores ingested posts.
type PostRepository interface {
	// ListRecentPosts returns up to limit posts, newest first.
	ListRecentPosts(ctx context.Context, limit int) ([]domain.Post, error)
	// ListPostsByCreation returns every post, oldest first.
	ListPostsByCreation(ctx context.Context) ([]domain.Post, error)
	// ExistingContents returns the subset of contents already stored.
	ExistingContents(ctx context.Context, contents []string) (map[string]struct{}, error)
	InsertPosts(ctx context.Context, posts []domain.Post) (int, error)
	DeletePostsByIDs(ctx context.Context, ids []string) (int, error)
	ListPosts(ctx context.Context, filter domain.PostFilter) ([]domain.PostView, int, error)
	// GetPost returns one post with its analysis, or domain.ErrNotFound.
	GetPost(ctx context.Context, id string) (domain.PostView, error)
}

// AnalysisRepository stores classifier verdicts, one per post.
type AnalysisRepository interface {
	ListAnalyzedIDs(ctx context.Context) (map[string]struct{}, error)
	InsertAnalyses(ctx context.Context, batch []domain.Analysis) (int, error)
	InsertAnalysis(ctx context.Context, analysis domain.Analysis) error
	DeleteAnalysesByPostIDs(ctx context.Context, postIDs []string) error
}

// HealthRepository keeps the operational event log and aggregate counters.
type HealthRepository interface {
	AppendHealthEvent(ctx context.Context, event domain.HealthEvent) error
	AggregateStats(ctx context.Context) (*domain.SystemStats, error)
	ListRecentHealthEvents(ctx context.Context, limit int) ([]domain.HealthEvent, error)
	SentimentDistribution(ctx context.Context) ([]domain.SentimentCount, error)
}

// AnalyticsRepository aggregates analyses for dashboards.
type AnalyticsRepository interface {
	SentimentDistribution(ctx context.Context) ([]domain.SentimentCount, error)
	// TopicCounts tallies topics and key topics over the newest sample analyzed posts.
	TopicCounts(ctx context.Context, sample int) (domain.TopicTally, error)
	// SentimentTimeline groups analyzed posts created since the given instant by UTC day, oldest first.
	SentimentTimeline(ctx context.Context, since time.Time) ([]domain.DailySentiment, error)
}

// RecordStore is the full persistence surface used by the use cases.
type RecordStore interface {
	PostRepository
	AnalysisRepository
	HealthRepository
	AnalyticsRepository
	Ping(ctx context.Context) error
}

// Classifier submits text to an external sentiment model.
type Classifier interface {
	Name() string
	Submit(ctx context.Context, text string) (domain.RawClassification, error)
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
