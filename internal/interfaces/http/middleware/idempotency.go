package middleware

import (
	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"

	"github.com/chainvault/walletgate/internal/application/dto"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// Idempotency rejects mutating requests that replay an Idempotency-Key
// header already seen within the retention window. Requests without
// the header pass through. cache.Add is atomic, so two concurrent
// requests with the same key cannot both win.
func Idempotency(seen *cache.Cache, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Idempotency-Key")
		if key == "" {
			c.Next()
			return
		}

		if err := seen.Add("idem:"+key, struct{}{}, cache.DefaultExpiration); err != nil {
			log.Warn(c.Request.Context(), "Duplicate idempotency key rejected",
				logger.String("idempotency_key", key),
			)
			dto.SendError(c, wgerrors.ErrDuplicateRequest(key))
			c.Abort()
			return
		}

		c.Next()
	}
}
