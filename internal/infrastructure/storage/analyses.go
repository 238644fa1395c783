package storage

import (
	"context"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"PulseWatch/internal/domain"
)

var analysisColumns = []string{"post_id", "sentiment", "sentiment_score", "key_topics", "summary", "analyzed_at"}

// ListAnalyzedIDs returns the ids of every post that already has an analysis.
func (r *SQLRepository) ListAnalyzedIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.query(ctx, r.builder.Select("post_id").From(analysesTable))
	if err != nil {
		return nil, fmt.Errorf("query analyzed ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return ids, nil
}

func (r *SQLRepository) analysisValues(a domain.Analysis) ([]any, error) {
	topics := a.Topics
	if topics == nil {
		topics = []string{}
	}
	encoded, err := json.Marshal(topics)
	if err != nil {
		return nil, fmt.Errorf("encode topics of %s: %w", a.PostID, err)
	}
	analyzedAt := a.AnalyzedAt
	if analyzedAt.IsZero() {
		analyzedAt = r.now()
	}
	return []any{a.PostID, string(a.Sentiment), a.Score, string(encoded), a.Summary, formatTime(analyzedAt)}, nil
}

// InsertAnalyses writes the batch in one statement, so one bad row fails it all.
func (r *SQLRepository) InsertAnalyses(ctx context.Context, batch []domain.Analysis) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	b := r.builder.Insert(analysesTable).Columns(analysisColumns...)
	for _, a := range batch {
		values, err := r.analysisValues(a)
		if err != nil {
			return 0, err
		}
		b = b.Values(values...)
	}
	res, err := r.exec(ctx, b)
	if err != nil {
		return 0, fmt.Errorf("insert analyses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(batch), nil
	}
	return int(n), nil
}

// InsertAnalysis writes a single verdict.
func (r *SQLRepository) InsertAnalysis(ctx context.Context, analysis domain.Analysis) error {
	values, err := r.analysisValues(analysis)
	if err != nil {
		return err
	}
	if _, err := r.exec(ctx, r.builder.Insert(analysesTable).Columns(analysisColumns...).Values(values...)); err != nil {
		return fmt.Errorf("insert analysis %s: %w", analysis.PostID, err)
	}
	return nil
}

// DeleteAnalysesByPostIDs removes the verdicts of the given posts.
func (r *SQLRepository) DeleteAnalysesByPostIDs(ctx context.Context, postIDs []string) error {
	if len(postIDs) == 0 {
		return nil
	}
	if _, err := r.exec(ctx, r.builder.Delete(analysesTable).Where(sq.Eq{"post_id": postIDs})); err != nil {
		return fmt.Errorf("delete analyses: %w", err)
	}
	return nil
}
