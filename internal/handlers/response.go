package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/courseware-backend/internal/access"
	"github.com/yungbote/courseware-backend/internal/courseware"
)

type APIError struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Context map[string]any `json:"context,omitempty"`
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

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondDeny maps an access decision to an HTTP status. Policy denials are
// 403 with the reason as the error code; the block existence, conflict and
// availability reasons get their conventional statuses.
func RespondDeny(c *gin.Context, d access.Decision) {
	status := http.StatusForbidden
	switch d.Reason {
	case access.DenyNotFound:
		status = http.StatusNotFound
	case access.DenyTryAgain, access.DenyAttemptsExhausted:
		status = http.StatusConflict
	case access.DenyStoreUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: "access denied",
			Code:    string(d.Reason),
			Context: d.Context,
		},
	})
}

// respondCoursewareError routes coordinator errors: denials through
// RespondDeny, everything else as a 500.
func respondCoursewareError(c *gin.Context, err error) {
	if d, ok := courseware.Denied(err); ok {
		RespondDeny(c, d)
		return
	}
	RespondError(c, http.StatusInternalServerError, "internal_error", err)
}
