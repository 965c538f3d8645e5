package http

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bizzshort/internal/domain"

	"github.com/gin-gonic/gin"
)

const (
	routeContentRead  = "content:read"
	routeContentWrite = "content:write"
	routeSessions     = "sessions"
	routeProfiles     = "profiles"
	routeAudit        = "audit:read"
)

// enforceRateLimit applies the per-client request budget. Authenticated
// callers are bucketed by subject, everyone else by client address.
func (s *Server) enforceRateLimit(c *gin.Context, routeID string, principal domain.Principal) bool {
	if s.rateLimiter == nil || s.rateLimitRequests <= 0 {
		return true
	}
	key := fmt.Sprintf("endpoint:%s:client:%s", routeID, c.ClientIP())
	if principal.Subject != "" {
		key = fmt.Sprintf("endpoint:%s:subject:%s", routeID, principal.Subject)
	}

	decision, err := s.rateLimiter.Allow(c.Request.Context(), key, s.rateLimitRequests, s.rateLimitWindow)
	if err != nil {
		if s.rateLimitFailClosed {
			writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMIT_UNAVAILABLE", "rate limiter unavailable")
			return false
		}
		return true
	}
	writeRateLimitHeaders(c, decision)
	if !decision.Allowed {
		writeErrorCode(c, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded")
		return false
	}
	return true
}

func writeRateLimitHeaders(c *gin.Context, decision domain.RateLimitDecision) {
	if decision.Limit > 0 {
		c.Header("RateLimit-Limit", strconv.Itoa(decision.Limit))
	}
	if decision.Remaining >= 0 {
		c.Header("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	}
	if !decision.ResetAt.IsZero() {
		c.Header("RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		if !decision.Allowed {
			retryAfter := int64(decision.RetryAfter(time.Now()).Seconds())
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
		}
	}
}
