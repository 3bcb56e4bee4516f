package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/apperror"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error     string            `json:"error"`
	Details   map[string]string `json:"details,omitempty"`
	Retryable bool              `json:"retryable,omitempty"`
}

// Error sends a JSON error response.
// AppErrors map to their own status; anything else is logged and hidden
// behind a 500.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Code >= http.StatusInternalServerError {
			slog.WarnContext(c.Request.Context(), "request failed",
				"status", appErr.Code, "path", c.FullPath(), "error", err)
		}
		c.JSON(appErr.Code, ErrorResponse{
			Error:     appErr.Message,
			Details:   appErr.Details,
			Retryable: appErr.Retryable(),
		})
		return
	}

	slog.ErrorContext(c.Request.Context(), "internal error",
		"path", c.FullPath(), "method", c.Request.Method, "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// BadRequest reports a binding or parsing failure.
func BadRequest(c *gin.Context, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = map[string]string{"cause": err.Error()}
	}
	c.JSON(http.StatusBadRequest, resp)
}
