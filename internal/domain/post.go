package domain

import "time"

// Source names the platform a post was collected from.
type Source string

const (
	SourceReddit   Source = "reddit"
	SourceTwitter  Source = "twitter"
	SourceNews     Source = "news"
	SourceFacebook Source = "facebook"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceReddit, SourceTwitter, SourceNews, SourceFacebook:
		return true
	}
	return false
}

// Post is a single ingested text record. Posts are immutable once stored.
type Post struct {
	ID          string
	Source      Source
	SourceURL   string
	Content     string
	Fingerprint string
	Author      string
	Topic       string
	PostedAt    time.Time
	CreatedAt   time.Time
}

// Candidate is a post as delivered by an upstream collector, before ingestion.
type Candidate struct {
	Source    Source    `json:"source"`
	SourceURL string    `json:"source_url,omitempty"`
	Content   string    `json:"content"`
	Author    string    `json:"author,omitempty"`
	PostedAt  time.Time `json:"post_date,omitempty"`
	Community string    `json:"community,omitempty"`
}

// PostView is a post joined with its analysis, if any.
type PostView struct {
	Post
	Analysis *Analysis
}

// PostFilter narrows post listings.
type PostFilter struct {
	Sentiment string
	Source    string
	Topic     string
	Search    string
	Limit     int
	Offset    int
}

const (
	DefaultPostLimit = 50
	MaxPostLimit     = 100
)

// Validate normalizes the filter and rejects out-of-range values.
func (f *PostFilter) Validate() error {
	switch f.Sentiment {
	case "", "all":
		f.Sentiment = ""
	default:
		if !Sentiment(f.Sentiment).Valid() {
			return NewValidationError("sentiment", "must be one of positive, negative, neutral, all")
		}
	}

	switch f.Source {
	case "", "all":
		f.Source = ""
	default:
		if !Source(f.Source).Valid() {
			return NewValidationError("source", "must be one of reddit, twitter, news, facebook, all")
		}
	}

	if f.Topic == "all" {
		f.Topic = ""
	}

	if f.Limit == 0 {
		f.Limit = DefaultPostLimit
	}
	if f.Limit < 1 || f.Limit > MaxPostLimit {
		return NewValidationError("limit", "must be between 1 and 100")
	}
	if f.Offset < 0 {
		return NewValidationError("offset", "must be greater than or equal to 0")
	}
	return nil
}
