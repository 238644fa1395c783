package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"PulseWatch/internal/domain"
)

const analyzedPostsSource = postsTable + " p JOIN " + analysesTable + " a ON a.post_id = p.id"

// dayExpr cuts the UTC calendar day out of the fixed-width timestamp text.
const dayExpr = "SUBSTR(p.created_at, 1, 10)"

// TopicCounts tallies post topics and classifier key topics over the newest
// sample analyzed posts.
func (r *SQLRepository) TopicCounts(ctx context.Context, sample int) (domain.TopicTally, error) {
	tally := domain.TopicTally{Topics: map[string]int{}, Keywords: map[string]int{}}
	if sample <= 0 {
		return tally, nil
	}

	rows, err := r.query(ctx, r.builder.Select("p.topic", "a.key_topics").
		From(analyzedPostsSource).
		OrderBy("p.created_at DESC", "p.id").
		Limit(uint64(sample)))
	if err != nil {
		return tally, fmt.Errorf("query topics: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var topic, encoded string
		if err := rows.Scan(&topic, &encoded); err != nil {
			return tally, fmt.Errorf("scan topics: %w", err)
		}
		if topic != "" {
			tally.Topics[topic]++
		}
		var keywords []string
		if encoded != "" {
			if err := json.Unmarshal([]byte(encoded), &keywords); err != nil {
				return tally, fmt.Errorf("decode key topics: %w", err)
			}
		}
		for _, keyword := range keywords {
			tally.Keywords[keyword]++
		}
	}
	if err := rows.Err(); err != nil {
		return tally, fmt.Errorf("rows iteration: %w", err)
	}
	return tally, nil
}

// SentimentTimeline groups analyzed posts created since the given instant by
// UTC day, oldest day first.
func (r *SQLRepository) SentimentTimeline(ctx context.Context, since time.Time) ([]domain.DailySentiment, error) {
	rows, err := r.query(ctx, r.builder.
		Select(dayExpr+" AS day", "a.sentiment", "COUNT(*)", "SUM(a.sentiment_score)").
		From(analyzedPostsSource).
		Where(sq.GtOrEq{"p.created_at": formatTime(since)}).
		GroupBy(dayExpr, "a.sentiment").
		OrderBy("day", "a.sentiment"))
	if err != nil {
		return nil, fmt.Errorf("query sentiment timeline: %w", err)
	}
	defer rows.Close()

	var (
		days []domain.DailySentiment
		sums []float64
	)
	for rows.Next() {
		var (
			day, label string
			count      int
			sum        float64
		)
		if err := rows.Scan(&day, &label, &count, &sum); err != nil {
			return nil, fmt.Errorf("scan sentiment timeline: %w", err)
		}
		if len(days) == 0 || days[len(days)-1].Date != day {
			days = append(days, domain.DailySentiment{Date: day})
			sums = append(sums, 0)
		}
		current := &days[len(days)-1]
		switch domain.Sentiment(label) {
		case domain.SentimentPositive:
			current.Positive += count
		case domain.SentimentNegative:
			current.Negative += count
		case domain.SentimentNeutral:
			current.Neutral += count
		}
		current.Total += count
		sums[len(sums)-1] += sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	for i := range days {
		if days[i].Total > 0 {
			days[i].AvgScore = sums[i] / float64(days[i].Total)
		}
	}
	return days, nil
}
