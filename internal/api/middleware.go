package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"PulseWatch/internal/domain"
	"PulseWatch/internal/ratelimit"
)

// RateLimit gates a route behind policy. Limiter failures let the request through.
func RateLimit(checker ratelimit.Checker, policy string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := ratelimit.IdentityFromRequest(c.Request)
		res, err := checker.Check(c.Request.Context(), policy, identity)
		if err != nil {
			logger.Warn("rate limit check failed", "policy", policy, "identity", identity, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.UnixMilli(), 10))

		if !res.Allowed {
			rlErr := &domain.RateLimitError{Policy: policy, Limit: res.Limit, RetryAt: res.ResetAt}
			_ = c.Error(rlErr)
			logger.Info("request rejected", "identity", identity, "error", rlErr)
			retryAfter := max(time.Until(res.ResetAt), 0)
			c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second)/time.Second)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":    false,
				"error":      "Rate limit exceeded",
				"message":    "Too many requests. Please try again later.",
				"retryAfter": res.ResetAt.UTC().Format(time.RFC3339),
			})
			return
		}
		c.Next()
	}
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
