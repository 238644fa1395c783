// Package health derives the tri-state system status from aggregate counters
// and the recent event log.
package health

import (
	"strings"
	"time"

	"PulseWatch/internal/domain"
)

const (
	// ErrorFailureThreshold is the number of recent failures above which the system is in error.
	ErrorFailureThreshold = 5
	// WarningFailureThreshold is the number of recent failures above which the system warns.
	WarningFailureThreshold = 2
	// FailureWindow is how far back failure events are counted.
	FailureWindow = time.Hour
	// StaleAnalysisAfter is the age of the last analysis that triggers a warning.
	StaleAnalysisAfter = 24 * time.Hour
)

var knownErrorMetrics = map[string]struct{}{
	domain.MetricScrapeError:   {},
	domain.MetricAnalysisFault: {},
}

// IsFailureMetric reports whether name denotes a failure event.
func IsFailureMetric(name string) bool {
	if _, ok := knownErrorMetrics[name]; ok {
		return true
	}
	return strings.Contains(name, "failed") || strings.Contains(name, "error")
}

// CountRecentFailures counts failure events recorded within FailureWindow of now.
func CountRecentFailures(events []domain.HealthEvent, now time.Time) int {
	cutoff := now.Add(-FailureWindow)
	count := 0
	for _, ev := range events {
		if ev.RecordedAt.Before(cutoff) {
			continue
		}
		if IsFailureMetric(ev.MetricName) {
			count++
		}
	}
	return count
}

// Evaluate applies the rules in order: missing stats, failure bursts, then
// staleness of analysis when there is data. An empty system is healthy.
func Evaluate(stats *domain.SystemStats, events []domain.HealthEvent, now time.Time) domain.HealthStatus {
	if stats == nil {
		return domain.HealthError
	}

	failures := CountRecentFailures(events, now)
	if failures > ErrorFailureThreshold {
		return domain.HealthError
	}

	if stats.TotalPosts == 0 && stats.TotalAnalyzed == 0 {
		return domain.HealthHealthy
	}
	if failures > WarningFailureThreshold {
		return domain.HealthWarning
	}
	if stats.TotalPosts > stats.TotalAnalyzed && stats.LastAnalysisTime != nil &&
		now.Sub(*stats.LastAnalysisTime) > StaleAnalysisAfter {
		return domain.HealthWarning
	}
	return domain.HealthHealthy
}
