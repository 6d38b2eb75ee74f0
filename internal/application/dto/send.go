package dto

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainvault/walletgate/pkg/constants"
	wgerrors "github.com/chainvault/walletgate/pkg/errors"
)

// SendSuccess writes data in the standard success envelope.
func SendSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, NewSuccessResponse(data, c.GetString(string(constants.ContextKeyRequestID))))
}

// SendError writes err in the standard error envelope, using the HTTP
// status the error carries. Non-coded errors become 500s.
func SendError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if wgErr, ok := wgerrors.AsWGError(err); ok {
		status = wgErr.HTTPStatus()
	}
	c.JSON(status, NewErrorResponse(err, c.GetString(string(constants.ContextKeyRequestID))))
}
