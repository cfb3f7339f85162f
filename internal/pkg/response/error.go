package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/record-console/internal/pkg/apperror"
)

// ErrorResponse defines the JSON structure for error responses.
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// Mapper turns a domain error into an AppError, or returns nil when it does not recognize it.
type Mapper func(err error) *apperror.AppError

// Error sends a JSON error response.
// It checks if the error is an AppError to determine the status code, then tries
// each mapper in order. Anything left is a 500 and is attached to the gin context
// so the request logger records it.
func Error(c *gin.Context, err error, mappers ...Mapper) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		for _, m := range mappers {
			if appErr = m(err); appErr != nil {
				break
			}
		}
	}

	if appErr != nil {
		if appErr.Code >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.JSON(appErr.Code, ErrorResponse{Error: appErr.Message, Reason: appErr.Reason})
		return
	}

	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
