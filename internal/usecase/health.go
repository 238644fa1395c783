package usecase

import (
	"context"
	"log/slog"
	"time"

	"PulseWatch/internal/domain"
	"PulseWatch/internal/health"
	"PulseWatch/internal/ports"
)

// RecentEventsLimit is how much of the event log feeds the evaluator.
const RecentEventsLimit = 10

// HealthReport is the snapshot served to operators.
type HealthReport struct {
	Status                domain.HealthStatus     `json:"status"`
	Statistics            *domain.SystemStats     `json:"statistics"`
	SentimentDistribution []domain.SentimentCount `json:"sentiment_distribution"`
	RecentEvents          []domain.HealthEvent    `json:"recent_events"`
	DatabaseConnected     bool                    `json:"database_connected"`
	Timestamp             time.Time               `json:"timestamp"`
}

// HealthService assembles health reports from the store.
type HealthService struct {
	store  ports.HealthRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewHealthService constructs the health use case.
func NewHealthService(store ports.HealthRepository, logger *slog.Logger, now func() time.Time) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &HealthService{store: store, logger: logger, now: now}
}

// Check never fails: store errors degrade the report instead.
func (h *HealthService) Check(ctx context.Context) HealthReport {
	now := h.now()
	report := HealthReport{
		Timestamp:             now,
		RecentEvents:          []domain.HealthEvent{},
		SentimentDistribution: []domain.SentimentCount{},
	}

	stats, err := h.store.AggregateStats(ctx)
	if err != nil {
		h.logger.Error("load aggregate stats failed", "error", err)
		stats = nil
	}
	report.Statistics = stats
	report.DatabaseConnected = stats != nil

	events, err := h.store.ListRecentHealthEvents(ctx, RecentEventsLimit)
	if err != nil {
		h.logger.Error("load recent health events failed", "error", err)
	} else if events != nil {
		report.RecentEvents = events
	}

	if stats != nil {
		dist, err := h.store.SentimentDistribution(ctx)
		if err != nil {
			h.logger.Warn("load sentiment distribution failed", "error", err)
		} else if dist != nil {
			report.SentimentDistribution = dist
		}
	}

	report.Status = health.Evaluate(stats, report.RecentEvents, now)
	return report
}
