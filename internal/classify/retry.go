package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"PulseWatch/internal/domain"
	"PulseWatch/internal/ports"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// RetryingClient wraps a Classifier with bounded exponential backoff.
// Terminal errors are returned on first occurrence.
type RetryingClient struct {
	classifier ports.Classifier
	maxRetries int
	baseDelay  time.Duration
	sleep      Sleeper
	logger     *slog.Logger
}

// Option customizes a RetryingClient.
type Option func(*RetryingClient)

// WithMaxRetries overrides the attempt count (defaults to 3).
func WithMaxRetries(n int) Option {
	return func(c *RetryingClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithBaseDelay overrides the unit of the 2^k backoff (defaults to 1s).
func WithBaseDelay(d time.Duration) Option {
	return func(c *RetryingClient) {
		if d >= 0 {
			c.baseDelay = d
		}
	}
}

// WithSleeper overrides how backoff sleeps are performed (useful for tests).
func WithSleeper(s Sleeper) Option {
	return func(c *RetryingClient) {
		if s != nil {
			c.sleep = s
		}
	}
}

// WithLogger sets the logger for per-attempt failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *RetryingClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewRetryingClient wraps classifier.
func NewRetryingClient(classifier ports.Classifier, opts ...Option) *RetryingClient {
	c := &RetryingClient{
		classifier: classifier,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		sleep:      SleepContext,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify submits text and normalizes the verdict.
func (c *RetryingClient) Classify(ctx context.Context, text string) (domain.Classification, error) {
	if c == nil || c.classifier == nil {
		return domain.Classification{}, errors.New("classifier is not configured")
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		raw, err := c.classifier.Submit(ctx, text)
		if err == nil {
			return Normalize(raw), nil
		}
		lastErr = err

		c.logger.Warn("classification attempt failed",
			"classifier", c.classifier.Name(),
			"attempt", attempt,
			"max_attempts", c.maxRetries,
			"error", err)

		if domain.IsTerminal(err) {
			return domain.Classification{}, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Classification{}, ctxErr
		}
		if attempt == c.maxRetries {
			break
		}
		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			return domain.Classification{}, err
		}
	}

	return domain.Classification{}, fmt.Errorf("classify failed after %d attempts: %w", c.maxRetries, lastErr)
}

// backoff returns 2^attempt * base: 2s, 4s, 8s with the default base.
func (c *RetryingClient) backoff(attempt int) time.Duration {
	return c.baseDelay << attempt
}

// SleepContext blocks for d unless ctx finishes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
