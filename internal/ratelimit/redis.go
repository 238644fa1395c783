package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the counter and starts the window on first hit.
// Returns {count, ttl in ms}.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter shares fixed windows between replicas. Expiry is delegated to Redis,
// so there is nothing to sweep.
type RedisLimiter struct {
	client    redis.Scripter
	policies  map[string]Policy
	keyPrefix string
	now       func() time.Time
}

var _ Checker = (*RedisLimiter)(nil)

// NewRedisLimiter validates policies and binds them to client.
func NewRedisLimiter(client redis.Scripter, keyPrefix string, policies []Policy) (*RedisLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if keyPrefix == "" {
		keyPrefix = "pulsewatch:ratelimit"
	}
	l := &RedisLimiter{
		client:    client,
		policies:  make(map[string]Policy, len(policies)),
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
	for _, p := range policies {
		if err := validatePolicy(p); err != nil {
			return nil, err
		}
		l.policies[p.Name] = p
	}
	return l, nil
}

func (l *RedisLimiter) key(policy, identity string) string {
	return fmt.Sprintf("%s:%s:%s", l.keyPrefix, policy, identity)
}

// Check counts one request for identity under policy.
func (l *RedisLimiter) Check(ctx context.Context, policy, identity string) (Result, error) {
	p, ok := l.policies[policy]
	if !ok {
		return Result{}, fmt.Errorf("unknown rate limit policy %q", policy)
	}

	raw, err := fixedWindowScript.Run(ctx, l.client, []string{l.key(policy, identity)}, p.Window.Milliseconds()).Slice()
	if err != nil {
		return Result{}, fmt.Errorf("redis rate limit check: %w", err)
	}
	if len(raw) != 2 {
		return Result{}, fmt.Errorf("redis rate limit check: unexpected reply %v", raw)
	}
	count, ok1 := raw[0].(int64)
	ttl, ok2 := raw[1].(int64)
	if !ok1 || !ok2 {
		return Result{}, fmt.Errorf("redis rate limit check: unexpected reply %v", raw)
	}

	return Result{
		Allowed:   int(count) <= p.MaxRequests,
		Limit:     p.MaxRequests,
		Remaining: max(0, p.MaxRequests-int(count)),
		ResetAt:   l.now().Add(time.Duration(ttl) * time.Millisecond),
	}, nil
}
