package server

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	obslogger "github.com/smallbiznis/utilitybilling/internal/observability/logger"
	"go.uber.org/zap"
)

// IngestRateLimit throttles batch submissions per client IP. Limiter
// failures let the request through.
func (s *Server) IngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}

		res, err := s.limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			obslogger.FromContext(c.Request.Context()).Warn("ingest rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
