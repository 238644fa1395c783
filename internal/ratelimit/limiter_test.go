package ratelimit

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, clock *fakeClock, max int) *Limiter {
	t.Helper()
	l, err := New([]Policy{{Name: "test", Window: time.Minute, MaxRequests: max}}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	return l
}

func TestCheckRemainingNonIncreasingAndBlocksAfterMax(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLimiter(t, clock, 3)
	ctx := context.Background()

	prev := 3
	for i := 1; i <= 5; i++ {
		res, err := l.Check(ctx, "test", "1.2.3.4")
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if res.Remaining > prev || res.Remaining < 0 {
			t.Fatalf("call %d: remaining %d after %d", i, res.Remaining, prev)
		}
		prev = res.Remaining
		if want := i <= 3; res.Allowed != want {
			t.Fatalf("call %d: allowed=%v want %v", i, res.Allowed, want)
		}
		if res.Limit != 3 {
			t.Fatalf("limit = %d", res.Limit)
		}
	}
}

func TestCheckStartsNewWindowAfterReset(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newTestLimiter(t, clock, 1)
	ctx := context.Background()

	first, _ := l.Check(ctx, "test", "a")
	if !first.Allowed {
		t.Fatalf("first call rejected")
	}
	if blocked, _ := l.Check(ctx, "test", "a"); blocked.Allowed {
		t.Fatalf("second call allowed")
	}

	clock.Advance(time.Minute)
	res, _ := l.Check(ctx, "test", "a")
	if !res.Allowed || res.Remaining != 0 {
		t.Fatalf("expected fresh window, got %+v", res)
	}
	if !res.ResetAt.Equal(clock.Now().Add(time.Minute)) {
		t.Fatalf("unexpected reset %v", res.ResetAt)
	}
}

func TestCheckIsolatesIdentitiesAndPolicies(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	l, err := New([]Policy{
		{Name: "a", Window: time.Minute, MaxRequests: 1},
		{Name: "b", Window: time.Minute, MaxRequests: 1},
	}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	for _, tc := range []struct{ policy, identity string }{{"a", "x"}, {"a", "y"}, {"b", "x"}} {
		res, err := l.Check(ctx, tc.policy, tc.identity)
		if err != nil || !res.Allowed {
			t.Fatalf("%s/%s: allowed=%v err=%v", tc.policy, tc.identity, res.Allowed, err)
		}
	}

	if _, err := l.Check(ctx, "missing", "x"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}

func TestCheckConcurrentSameIdentity(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	l := newTestLimiter(t, clock, 50)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, _ := l.Check(ctx, "test", "same")
			if res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Fatalf("expected exactly 50 allowed, got %d", allowed)
	}
}

func TestSweepDropsExpiredWindows(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Now()}
	l := newTestLimiter(t, clock, 5)
	ctx := context.Background()

	_, _ = l.Check(ctx, "test", "a")
	clock.Advance(30 * time.Second)
	_, _ = l.Check(ctx, "test", "b")
	clock.Advance(45 * time.Second)

	if removed := l.Sweep(); removed != 1 {
		t.Fatalf("expected 1 expired window, got %d", removed)
	}
}

func TestNewRejectsBadPolicies(t *testing.T) {
	t.Parallel()

	cases := []Policy{
		{Name: "", Window: time.Second, MaxRequests: 1},
		{Name: "x", Window: 0, MaxRequests: 1},
		{Name: "x", Window: time.Second, MaxRequests: 0},
	}
	for _, p := range cases {
		if _, err := New([]Policy{p}); err == nil {
			t.Fatalf("expected error for %+v", p)
		}
	}
}

func TestIdentityFromRequest(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded first entry", map[string]string{"X-Forwarded-For": " 10.0.0.1 , 10.0.0.2", "X-Real-IP": "9.9.9.9"}, "10.0.0.1"},
		{"real ip fallback", map[string]string{"X-Real-IP": "9.9.9.9"}, "9.9.9.9"},
		{"no headers", nil, UnknownIdentity},
		{"empty forwarded", map[string]string{"X-Forwarded-For": " , "}, UnknownIdentity},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			if got := IdentityFromRequest(req); got != tc.want {
				t.Fatalf("got %q want %q", got, tc.want)
			}
		})
	}
}
