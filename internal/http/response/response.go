package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/negotiator-backend/internal/platform/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps a service error through apierr. Internal errors are reported
// without their message.
func RespondServiceError(c *gin.Context, err error, fallbackCode string) {
	ae := apierr.FromError(err, fallbackCode)
	if ae.Status >= http.StatusInternalServerError && ae.Status != http.StatusServiceUnavailable {
		_ = c.Error(err)
		RespondError(c, ae.Status, ae.Code, errInternal)
		return
	}
	RespondError(c, ae.Status, ae.Code, ae.Err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondAccepted(c *gin.Context, payload any) {
	c.JSON(http.StatusAccepted, payload)
}

type internalError struct{}

func (internalError) Error() string { return "internal error" }

var errInternal error = internalError{}
