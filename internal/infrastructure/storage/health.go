package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"PulseWatch/internal/domain"
)

// AppendHealthEvent stores ev, assigning an id and timestamp when missing.
func (r *SQLRepository) AppendHealthEvent(ctx context.Context, ev domain.HealthEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = r.now()
	}
	value := ev.MetricValue
	if value == nil {
		value = map[string]any{}
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode metric %s: %w", ev.MetricName, err)
	}

	b := r.builder.Insert(healthTable).
		Columns("id", "metric_name", "metric_value", "recorded_at").
		Values(ev.ID, ev.MetricName, string(encoded), formatTime(ev.RecordedAt))
	if _, err := r.exec(ctx, b); err != nil {
		return fmt.Errorf("insert health event: %w", err)
	}
	return nil
}

// ListRecentHealthEvents returns the newest events first.
func (r *SQLRepository) ListRecentHealthEvents(ctx context.Context, limit int) ([]domain.HealthEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := r.query(ctx, r.builder.
		Select("id", "metric_name", "metric_value", "recorded_at").
		From(healthTable).
		OrderBy("recorded_at DESC").
		Limit(uint64(limit)))
	if err != nil {
		return nil, fmt.Errorf("query health events: %w", err)
	}
	defer rows.Close()

	var events []domain.HealthEvent
	for rows.Next() {
		var (
			ev         domain.HealthEvent
			value      string
			recordedAt string
		)
		if err := rows.Scan(&ev.ID, &ev.MetricName, &value, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan health event: %w", err)
		}
		if err := json.Unmarshal([]byte(value), &ev.MetricValue); err != nil {
			return nil, fmt.Errorf("decode metric %s: %w", ev.ID, err)
		}
		if ev.RecordedAt, err = parseTime(recordedAt); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return events, nil
}

// AggregateStats computes all counters in a single round trip.
func (r *SQLRepository) AggregateStats(ctx context.Context) (*domain.SystemStats, error) {
	now := r.now().UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	b := r.builder.Select().
		Column(sq.Expr("(SELECT COUNT(*) FROM " + postsTable + ")")).
		Column(sq.Expr("(SELECT COUNT(*) FROM " + analysesTable + ")")).
		Column(sq.Expr("(SELECT COUNT(*) FROM "+postsTable+" WHERE created_at >= ?)", formatTime(startOfDay))).
		Column(sq.Expr("(SELECT AVG(sentiment_score) FROM " + analysesTable + ")")).
		Column(sq.Expr("(SELECT MAX(created_at) FROM " + postsTable + ")")).
		Column(sq.Expr("(SELECT MAX(analyzed_at) FROM " + analysesTable + ")"))

	row, err := r.queryRow(ctx, b)
	if err != nil {
		return nil, err
	}

	var (
		stats                  domain.SystemStats
		avg                    sql.NullFloat64
		lastPost, lastAnalysis sql.NullString
	)
	if err := row.Scan(&stats.TotalPosts, &stats.TotalAnalyzed, &stats.PostsToday, &avg, &lastPost, &lastAnalysis); err != nil {
		return nil, fmt.Errorf("aggregate stats: %w", err)
	}
	if avg.Valid {
		stats.AvgSentimentScore = &avg.Float64
	}
	if stats.LastPostTime, err = parseNullTime(lastPost); err != nil {
		return nil, err
	}
	if stats.LastAnalysisTime, err = parseNullTime(lastAnalysis); err != nil {
		return nil, err
	}
	return &stats, nil
}

// SentimentDistribution counts analyses per label.
func (r *SQLRepository) SentimentDistribution(ctx context.Context) ([]domain.SentimentCount, error) {
	rows, err := r.query(ctx, r.builder.
		Select("sentiment", "COUNT(*)").
		From(analysesTable).
		GroupBy("sentiment").
		OrderBy("sentiment"))
	if err != nil {
		return nil, fmt.Errorf("query sentiment distribution: %w", err)
	}
	defer rows.Close()

	var out []domain.SentimentCount
	for rows.Next() {
		var (
			label string
			count int
		)
		if err := rows.Scan(&label, &count); err != nil {
			return nil, fmt.Errorf("scan sentiment count: %w", err)
		}
		out = append(out, domain.SentimentCount{Sentiment: domain.Sentiment(label), Count: count})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}
