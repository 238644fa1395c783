package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"PulseWatch/internal/domain"
	"PulseWatch/internal/ports"
)

// PostPage is one page of the post listing.
type PostPage struct {
	Posts  []domain.PostView `json:"posts"`
	Total  int               `json:"total"`
	Limit  int               `json:"limit"`
	Offset int               `json:"offset"`
}

// PostQuery serves filtered post listings.
type PostQuery struct {
	store ports.PostRepository
}

// NewPostQuery constructs the listing use case.
func NewPostQuery(store ports.PostRepository) *PostQuery {
	return &PostQuery{store: store}
}

// List validates filter before touching the store.
func (q *PostQuery) List(ctx context.Context, filter domain.PostFilter) (PostPage, error) {
	if err := filter.Validate(); err != nil {
		return PostPage{}, err
	}
	posts, total, err := q.store.ListPosts(ctx, filter)
	if err != nil {
		return PostPage{}, fmt.Errorf("list posts: %w", err)
	}
	if posts == nil {
		posts = []domain.PostView{}
	}
	return PostPage{Posts: posts, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Get returns one post with its analysis. Only hyphenated UUIDs are accepted.
func (q *PostQuery) Get(ctx context.Context, id string) (domain.PostView, error) {
	if _, err := uuid.Parse(id); err != nil || len(id) != 36 {
		return domain.PostView{}, domain.NewValidationError("id", "Invalid post ID format")
	}
	view, err := q.store.GetPost(ctx, id)
	if err != nil {
		return domain.PostView{}, fmt.Errorf("get post: %w", err)
	}
	return view, nil
}
