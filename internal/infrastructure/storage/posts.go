package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"PulseWatch/internal/dedup"
	"PulseWatch/internal/domain"
)

var postColumns = []string{
	"p.id", "p.source", "p.source_url", "p.content", "p.content_fingerprint",
	"p.author", "p.topic", "p.post_date", "p.created_at",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner, extra ...any) (domain.Post, error) {
	var p domain.Post
	var source, postedAt, created string
	dest := append([]any{&p.ID, &source, &p.SourceURL, &p.Content, &p.Fingerprint,
		&p.Author, &p.Topic, &postedAt, &created}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Post{}, fmt.Errorf("scan post: %w", err)
	}
	p.Source = domain.Source(source)

	var err error
	if p.PostedAt, err = parseTime(postedAt); err != nil {
		return domain.Post{}, err
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return domain.Post{}, err
	}
	return p, nil
}

func (r *SQLRepository) listPosts(ctx context.Context, b sq.SelectBuilder) ([]domain.Post, error) {
	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return posts, nil
}

// ListRecentPosts returns up to limit posts, newest first.
func (r *SQLRepository) ListRecentPosts(ctx context.Context, limit int) ([]domain.Post, error) {
	if limit <= 0 {
		return nil, nil
	}
	return r.listPosts(ctx, r.builder.Select(postColumns...).
		From(postsTable+" p").
		OrderBy("p.created_at DESC", "p.id").
		Limit(uint64(limit)))
}

// ListPostsByCreation returns every post, oldest first.
func (r *SQLRepository) ListPostsByCreation(ctx context.Context) ([]domain.Post, error) {
	return r.listPosts(ctx, r.builder.Select(postColumns...).
		From(postsTable+" p").
		OrderBy("p.created_at ASC"))
}

// ExistingContents looks contents up by fingerprint and confirms exact equality.
func (r *SQLRepository) ExistingContents(ctx context.Context, contents []string) (map[string]struct{}, error) {
	found := make(map[string]struct{})
	if len(contents) == 0 {
		return found, nil
	}

	wanted := make(map[string]struct{}, len(contents))
	fingerprints := make([]string, 0, len(contents))
	for _, c := range contents {
		if _, dup := wanted[c]; dup {
			continue
		}
		wanted[c] = struct{}{}
		fingerprints = append(fingerprints, dedup.Fingerprint(c))
	}

	for _, part := range chunk(fingerprints, lookupChunk) {
		rows, err := r.query(ctx, r.builder.Select("content").
			From(postsTable).
			Where(sq.Eq{"content_fingerprint": part}))
		if err != nil {
			return nil, fmt.Errorf("query existing contents: %w", err)
		}
		for rows.Next() {
			var content string
			if err := rows.Scan(&content); err != nil {
				_ = rows.Close()
				return nil, fmt.Errorf("scan content: %w", err)
			}
			if _, ok := wanted[content]; ok {
				found[content] = struct{}{}
			}
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("rows iteration: %w", err)
		}
		if err := rows.Close(); err != nil {
			return nil, fmt.Errorf("close rows: %w", err)
		}
	}
	return found, nil
}

// InsertPosts writes the batch in one statement; it either fully succeeds or fails.
func (r *SQLRepository) InsertPosts(ctx context.Context, posts []domain.Post) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}
	b := r.builder.Insert(postsTable).Columns(
		"id", "source", "source_url", "content", "content_fingerprint",
		"author", "topic", "post_date", "created_at")
	for _, p := range posts {
		fingerprint := p.Fingerprint
		if fingerprint == "" {
			fingerprint = dedup.Fingerprint(p.Content)
		}
		created := p.CreatedAt
		if created.IsZero() {
			created = r.now()
		}
		posted := p.PostedAt
		if posted.IsZero() {
			posted = created
		}
		b = b.Values(p.ID, string(p.Source), p.SourceURL, p.Content, fingerprint,
			p.Author, p.Topic, formatTime(posted), formatTime(created))
	}
	if _, err := r.exec(ctx, b); err != nil {
		return 0, fmt.Errorf("insert posts: %w", err)
	}
	return len(posts), nil
}

// DeletePostsByIDs removes posts and returns how many rows went away.
func (r *SQLRepository) DeletePostsByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := r.exec(ctx, r.builder.Delete(postsTable).Where(sq.Eq{"id": ids}))
	if err != nil {
		return 0, fmt.Errorf("delete posts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

// ListPosts returns one page of posts joined with their analyses plus the total match count.
func (r *SQLRepository) ListPosts(ctx context.Context, filter domain.PostFilter) ([]domain.PostView, int, error) {
	where := sq.And{}
	if filter.Sentiment != "" {
		where = append(where, sq.Eq{"a.sentiment": filter.Sentiment})
	}
	if filter.Source != "" {
		where = append(where, sq.Eq{"p.source": filter.Source})
	}
	if filter.Topic != "" {
		where = append(where, sq.Eq{"p.topic": filter.Topic})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		where = append(where, sq.Like{"LOWER(p.content)": "%" + strings.ToLower(search) + "%"})
	}

	countRow, err := r.queryRow(ctx, r.builder.Select("COUNT(*)").From(postViewSource).Where(where))
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := countRow.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count posts: %w", err)
	}

	b := r.builder.Select(postViewColumns()...).
		From(postViewSource).
		Where(where).
		OrderBy("p.created_at DESC", "p.id").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	rows, err := r.query(ctx, b)
	if err != nil {
		return nil, 0, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var views []domain.PostView
	for rows.Next() {
		view, err := scanPostView(rows)
		if err != nil {
			return nil, 0, err
		}
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows iteration: %w", err)
	}
	return views, total, nil
}

// GetPost returns one post joined with its analysis.
func (r *SQLRepository) GetPost(ctx context.Context, id string) (domain.PostView, error) {
	row, err := r.queryRow(ctx, r.builder.Select(postViewColumns()...).
		From(postViewSource).
		Where(sq.Eq{"p.id": id}))
	if err != nil {
		return domain.PostView{}, err
	}
	view, err := scanPostView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PostView{}, fmt.Errorf("post %s: %w", id, domain.ErrNotFound)
	}
	return view, err
}

const postViewSource = postsTable + " p LEFT JOIN " + analysesTable + " a ON a.post_id = p.id"

func postViewColumns() []string {
	return append(append([]string{}, postColumns...),
		"a.sentiment", "a.sentiment_score", "a.key_topics", "a.summary", "a.analyzed_at")
}

func scanPostView(row rowScanner) (domain.PostView, error) {
	var (
		sentiment, topics, summary, analyzedAt sql.NullString
		score                                  sql.NullFloat64
	)
	p, err := scanPost(row, &sentiment, &score, &topics, &summary, &analyzedAt)
	if err != nil {
		return domain.PostView{}, err
	}
	view := domain.PostView{Post: p}
	if !sentiment.Valid {
		return view, nil
	}

	analysis := domain.Analysis{
		PostID: p.ID,
		Classification: domain.Classification{
			Sentiment: domain.Sentiment(sentiment.String),
			Score:     score.Float64,
			Summary:   summary.String,
		},
	}
	if topics.Valid && topics.String != "" {
		if err := json.Unmarshal([]byte(topics.String), &analysis.Topics); err != nil {
			return domain.PostView{}, fmt.Errorf("decode topics of %s: %w", p.ID, err)
		}
	}
	at, err := parseNullTime(analyzedAt)
	if err != nil {
		return domain.PostView{}, err
	}
	if at != nil {
		analysis.AnalyzedAt = *at
	}
	view.Analysis = &analysis
	return view, nil
}
