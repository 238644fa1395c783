package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PulseWatch/internal/dedup"
	"PulseWatch/internal/domain"
	"PulseWatch/internal/ports"
)

// DefaultDeleteBatchSize bounds each delete statement.
const DefaultDeleteBatchSize = 100

// CleanupResult summarizes a duplicate sweep.
type CleanupResult struct {
	Scanned         int    `json:"scanned"`
	DuplicatesFound int    `json:"duplicatesFound"`
	Removed         int    `json:"duplicatesRemoved"`
	FailedBatches   int    `json:"failedBatches"`
	Message         string `json:"message"`
}

// CleanupDeps wires the cleaner.
type CleanupDeps struct {
	Store     ports.RecordStore
	Notifier  ports.Notifier
	Logger    *slog.Logger
	BatchSize int
	Now       func() time.Time
}

// Cleaner removes posts whose content duplicates an older post.
type Cleaner struct {
	store     ports.RecordStore
	notifier  ports.Notifier
	logger    *slog.Logger
	batchSize int
	now       func() time.Time
}

// NewCleaner constructs the cleanup use case.
func NewCleaner(deps CleanupDeps) *Cleaner {
	c := &Cleaner{
		store:     deps.Store,
		notifier:  deps.Notifier,
		logger:    deps.Logger,
		batchSize: deps.BatchSize,
		now:       deps.Now,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.batchSize <= 0 {
		c.batchSize = DefaultDeleteBatchSize
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// RemoveDuplicates keeps the oldest post of every content group and deletes the rest,
// analyses first. A batch whose analyses cannot be removed is skipped; other
// batches still run.
func (c *Cleaner) RemoveDuplicates(ctx context.Context) (CleanupResult, error) {
	if c.store == nil {
		return CleanupResult{}, fmt.Errorf("cleaner is not configured")
	}

	posts, err := c.store.ListPostsByCreation(ctx)
	if err != nil {
		c.recordFailure(ctx, err)
		return CleanupResult{}, fmt.Errorf("list posts: %w", err)
	}

	result := CleanupResult{Scanned: len(posts)}
	if len(posts) == 0 {
		result.Message = "No posts found in database."
		return result, nil
	}

	entries := make([]dedup.Entry, len(posts))
	for i, p := range posts {
		entries[i] = dedup.Entry{ID: p.ID, Content: p.Content, CreatedAt: p.CreatedAt}
	}
	duplicateIDs := dedup.PlanCleanup(entries)
	result.DuplicatesFound = len(duplicateIDs)
	if len(duplicateIDs) == 0 {
		result.Message = "No duplicates found."
		return result, nil
	}

	for start := 0; start < len(duplicateIDs); start += c.batchSize {
		batch := duplicateIDs[start:min(start+c.batchSize, len(duplicateIDs))]
		if err := c.store.DeleteAnalysesByPostIDs(ctx, batch); err != nil {
			result.FailedBatches++
			c.logger.Error("delete analyses of duplicate posts failed", "offset", start, "size", len(batch), "error", err)
			continue
		}
		n, err := c.store.DeletePostsByIDs(ctx, batch)
		if err != nil {
			result.FailedBatches++
			c.logger.Error("delete duplicate posts failed", "offset", start, "size", len(batch), "error", err)
			continue
		}
		result.Removed += n
	}

	result.Message = fmt.Sprintf("Removed %d duplicate posts.", result.Removed)
	c.recordOutcome(ctx, result)
	c.notify(ctx, result)
	return result, nil
}

func (c *Cleaner) recordOutcome(ctx context.Context, result CleanupResult) {
	status := domain.RunStatusSuccess
	if result.FailedBatches > 0 {
		status = domain.RunStatusPartialSuccess
	}
	event := domain.HealthEvent{
		MetricName: domain.MetricCleanup,
		MetricValue: map[string]any{
			"duplicates_found":   result.DuplicatesFound,
			"duplicates_removed": result.Removed,
			"failed_batches":     result.FailedBatches,
			"status":             status,
		},
		RecordedAt: c.now(),
	}
	if err := c.store.AppendHealthEvent(ctx, event); err != nil {
		c.logger.Warn("record cleanup health event failed", "error", err)
	}
}

func (c *Cleaner) recordFailure(ctx context.Context, cleanupErr error) {
	event := domain.HealthEvent{
		MetricName: domain.MetricCleanup + "_error",
		MetricValue: map[string]any{
			"error":  cleanupErr.Error(),
			"status": domain.RunStatusFailed,
		},
		RecordedAt: c.now(),
	}
	if err := c.store.AppendHealthEvent(context.WithoutCancel(ctx), event); err != nil {
		c.logger.Error("record cleanup failure event failed", "error", err, "cleanup_error", cleanupErr)
	}
}

func (c *Cleaner) notify(ctx context.Context, result CleanupResult) {
	if c.notifier == nil || result.Removed == 0 {
		return
	}
	digest := fmt.Sprintf("*Duplicate cleanup*\nRemoved: %d of %d\nFailed batches: %d",
		result.Removed, result.DuplicatesFound, result.FailedBatches)
	if err := c.notifier.PublishDigest(ctx, digest); err != nil {
		c.logger.Warn("publish cleanup digest failed", "error", err)
	}
}
