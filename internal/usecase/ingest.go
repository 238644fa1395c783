package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"PulseWatch/internal/dedup"
	"PulseWatch/internal/domain"
	"PulseWatch/internal/ports"
	"PulseWatch/internal/textutil"
)

const (
	DefaultMinContentLength = 20
	DefaultIngestBatchSize  = 50
)

// IngestDeps wires the ingestor.
type IngestDeps struct {
	Store            ports.RecordStore
	Logger           *slog.Logger
	MinContentLength int
	BatchSize        int
	NewID            func() string
	Now              func() time.Time
}

// IngestResult summarizes one ingested batch.
type IngestResult struct {
	Received      int    `json:"scraped"`
	Stored        int    `json:"stored"`
	Duplicates    int    `json:"duplicates"`
	TooShort      int    `json:"tooShort"`
	FailedBatches int    `json:"failedBatches"`
	Message       string `json:"message"`
}

// Ingestor turns collector candidates into stored posts, skipping content that is
// too short or already known.
type Ingestor struct {
	store     ports.RecordStore
	logger    *slog.Logger
	minLength int
	batchSize int
	newID     func() string
	now       func() time.Time
}

// NewIngestor constructs the ingestion use case.
func NewIngestor(deps IngestDeps) *Ingestor {
	i := &Ingestor{
		store:     deps.Store,
		logger:    deps.Logger,
		minLength: deps.MinContentLength,
		batchSize: deps.BatchSize,
		newID:     deps.NewID,
		now:       deps.Now,
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	if i.minLength <= 0 {
		i.minLength = DefaultMinContentLength
	}
	if i.batchSize <= 0 {
		i.batchSize = DefaultIngestBatchSize
	}
	if i.newID == nil {
		i.newID = uuid.NewString
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i
}

// Ingest stores the new candidates. Failing insert batches are skipped and counted;
// a failure to read existing content aborts the batch.
func (i *Ingestor) Ingest(ctx context.Context, candidates []domain.Candidate) (IngestResult, error) {
	if i.store == nil {
		return IngestResult{}, fmt.Errorf("ingestor is not configured")
	}
	for idx, c := range candidates {
		if !c.Source.Valid() {
			return IngestResult{}, domain.NewValidationError(
				fmt.Sprintf("candidates[%d].source", idx), "must be one of reddit, twitter, news, facebook")
		}
	}

	result := IngestResult{Received: len(candidates)}
	if len(candidates) == 0 {
		result.Message = "No posts received."
		return result, nil
	}

	posts := i.preparePosts(candidates, &result)
	contents := make([]string, len(posts))
	for idx, p := range posts {
		contents[idx] = p.Content
	}

	existing, err := i.store.ExistingContents(ctx, contents)
	if err != nil {
		i.recordFailure(ctx, err)
		return IngestResult{}, fmt.Errorf("load existing contents: %w", err)
	}

	fresh, duplicates := dedup.PartitionNew(posts, func(p domain.Post) string { return p.Content }, existing)
	result.Duplicates = len(duplicates)

	for start := 0; start < len(fresh); start += i.batchSize {
		batch := fresh[start:min(start+i.batchSize, len(fresh))]
		n, err := i.store.InsertPosts(ctx, batch)
		if err != nil {
			result.FailedBatches++
			i.logger.Error("insert post batch failed", "offset", start, "size", len(batch), "error", err)
			continue
		}
		result.Stored += n
	}

	result.Message = fmt.Sprintf("Received %d posts. Stored %d new posts, skipped %d duplicates and %d short posts.",
		result.Received, result.Stored, result.Duplicates, result.TooShort)
	i.recordOutcome(ctx, result)
	return result, nil
}

func (i *Ingestor) preparePosts(candidates []domain.Candidate, result *IngestResult) []domain.Post {
	now := i.now()
	posts := make([]domain.Post, 0, len(candidates))
	for _, c := range candidates {
		content := textutil.PlainText(c.Content)
		if utf8.RuneCountInString(content) <= i.minLength {
			result.TooShort++
			continue
		}
		postedAt := c.PostedAt
		if postedAt.IsZero() {
			postedAt = now
		}
		posts = append(posts, domain.Post{
			ID:          i.newID(),
			Source:      c.Source,
			SourceURL:   strings.TrimSpace(c.SourceURL),
			Content:     content,
			Fingerprint: dedup.Fingerprint(content),
			Author:      strings.TrimSpace(c.Author),
			Topic:       ExtractTopic(content, c.Community),
			PostedAt:    postedAt,
			CreatedAt:   now,
		})
	}
	return posts
}

func (i *Ingestor) recordOutcome(ctx context.Context, result IngestResult) {
	status := domain.RunStatusSuccess
	if result.FailedBatches > 0 {
		status = domain.RunStatusPartialSuccess
	}
	event := domain.HealthEvent{
		MetricName: domain.MetricIngest,
		MetricValue: map[string]any{
			"items_received":     result.Received,
			"items_stored":       result.Stored,
			"duplicates_skipped": result.Duplicates,
			"too_short":          result.TooShort,
			"failed_batches":     result.FailedBatches,
			"status":             status,
		},
		RecordedAt: i.now(),
	}
	if err := i.store.AppendHealthEvent(ctx, event); err != nil {
		i.logger.Warn("record ingest health event failed", "error", err)
	}
}

func (i *Ingestor) recordFailure(ctx context.Context, ingestErr error) {
	event := domain.HealthEvent{
		MetricName: domain.MetricIngestError,
		MetricValue: map[string]any{
			"error":  ingestErr.Error(),
			"status": domain.RunStatusFailed,
		},
		RecordedAt: i.now(),
	}
	if err := i.store.AppendHealthEvent(context.WithoutCancel(ctx), event); err != nil {
		i.logger.Error("record ingest failure event failed", "error", err, "ingest_error", ingestErr)
	}
}
