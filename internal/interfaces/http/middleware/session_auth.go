package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chainvault/walletgate/internal/application/dto"
	"github.com/chainvault/walletgate/internal/domain/service"
	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
	"github.com/chainvault/walletgate/pkg/logger"
)

// SessionAuth validates the Bearer session token minted by an
// authorized activation and stores the session in the gin context
// under constants.ContextKeySession.
func SessionAuth(sessions service.SessionManager, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			dto.SendError(c, wgerrors.ErrSessionInvalid("missing Authorization header"))
			c.Abort()
			return
		}

		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			dto.SendError(c, wgerrors.ErrSessionInvalid("Authorization header is not a Bearer token"))
			c.Abort()
			return
		}

		session, err := sessions.Validate(c.Request.Context(), token)
		if err != nil {
			log.Warn(c.Request.Context(), "Session token rejected", logger.Error(err))
			dto.SendError(c, err)
			c.Abort()
			return
		}

		c.Set(string(constants.ContextKeySession), session)
		c.Next()
	}
}
