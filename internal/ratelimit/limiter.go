package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"PulseWatch/internal/keyedstore"
)

// Policy names used by the HTTP surface.
const (
	PolicyScrape  = "scrape"
	PolicyAnalyze = "analyze"
	PolicyPosts   = "posts"
	PolicyHealth  = "health"
)

// DefaultSweepInterval bounds how long expired windows linger in memory.
const DefaultSweepInterval = 10 * time.Minute

// Policy configures one fixed window.
type Policy struct {
	Name        string        `yaml:"name"`
	Window      time.Duration `yaml:"window"`
	MaxRequests int           `yaml:"maxRequests"`
}

// DefaultPolicies mirrors the production quotas.
func DefaultPolicies() []Policy {
	return []Policy{
		{Name: PolicyScrape, Window: time.Hour, MaxRequests: 10},
		{Name: PolicyAnalyze, Window: time.Hour, MaxRequests: 20},
		{Name: PolicyPosts, Window: time.Minute, MaxRequests: 60},
		{Name: PolicyHealth, Window: time.Minute, MaxRequests: 100},
	}
}

// Result describes the outcome of a single check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Checker is implemented by the in-memory and the Redis limiter.
type Checker interface {
	Check(ctx context.Context, policy, identity string) (Result, error)
}

type windowKey struct {
	policy   string
	identity string
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter is an in-process fixed-window limiter. Windows are not persisted and
// reset on restart. Bursts of up to 2x the limit across a window boundary are accepted.
type Limiter struct {
	policies map[string]Policy
	windows  *keyedstore.Store[windowKey, window]
	now      func() time.Time
	logger   *slog.Logger
}

var _ Checker = (*Limiter)(nil)

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used by the sweeper.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New builds a limiter for the given policies.
func New(policies []Policy, opts ...Option) (*Limiter, error) {
	l := &Limiter{
		policies: make(map[string]Policy, len(policies)),
		windows:  keyedstore.New[windowKey, window](),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, p := range policies {
		if err := validatePolicy(p); err != nil {
			return nil, err
		}
		l.policies[p.Name] = p
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func validatePolicy(p Policy) error {
	if p.Name == "" {
		return fmt.Errorf("rate limit policy without name")
	}
	if p.Window <= 0 {
		return fmt.Errorf("rate limit policy %s: window must be positive", p.Name)
	}
	if p.MaxRequests <= 0 {
		return fmt.Errorf("rate limit policy %s: maxRequests must be positive", p.Name)
	}
	return nil
}

// Check counts one request for identity under policy.
func (l *Limiter) Check(_ context.Context, policy, identity string) (Result, error) {
	p, ok := l.policies[policy]
	if !ok {
		return Result{}, fmt.Errorf("unknown rate limit policy %q", policy)
	}

	now := l.now()
	w := l.windows.Update(windowKey{policy: policy, identity: identity}, func(cur window, exists bool) (window, bool) {
		if !exists || !now.Before(cur.resetAt) {
			cur = window{resetAt: now.Add(p.Window)}
		}
		cur.count++
		return cur, true
	})

	return Result{
		Allowed:   w.count <= p.MaxRequests,
		Limit:     p.MaxRequests,
		Remaining: max(0, p.MaxRequests-w.count),
		ResetAt:   w.resetAt,
	}, nil
}

// Sweep drops expired windows and returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()
	return l.windows.Sweep(func(_ windowKey, w window) bool {
		return !now.Before(w.resetAt)
	})
}

// RunSweeper sweeps every interval until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug("swept rate limit windows", "removed", removed, "live", l.windows.Len())
			}
		}
	}
}
