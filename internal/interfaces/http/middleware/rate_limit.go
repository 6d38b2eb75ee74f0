package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/chainvault/walletgate/internal/application/dto"
	"github.com/chainvault/walletgate/internal/infrastructure/monitoring"
	"github.com/chainvault/walletgate/internal/infrastructure/ratelimit"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// RateLimit throttles requests per client IP using a keyed token
// bucket. Rejections answer 429 with the standard envelope.
func RateLimit(limiter *ratelimit.ChallengeLimiter, metrics *monitoring.Metrics, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if !limiter.Allow(clientIP) {
			log.Warn(c.Request.Context(), "Request rate limited",
				logger.String("client_ip", clientIP),
				logger.String("path", c.Request.URL.Path),
			)
			if metrics != nil {
				metrics.RecordRateLimitHit()
			}
			dto.SendError(c, wgerrors.ErrChallengeRateLimited(clientIP))
			c.Abort()
			return
		}

		c.Next()
	}
}
