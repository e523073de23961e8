package httputil

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/carelink-api/pkg/errors"
)

// Response wraps all API responses
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination represents pagination metadata
type Pagination struct {
	CurrentPage int   `json:"currentPage"`
	TotalPages  int   `json:"totalPages"`
	Total       int64 `json:"totalNotifications"`
	UnreadCount int64 `json:"unreadCount"`
}

// NewPagination computes page counts for a listing.
func NewPagination(page, limit int, total, unread int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		Total:       total,
		UnreadCount: unread,
	}
}

// RespondWithSuccess sends a success response
func RespondWithSuccess(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// RespondWithError sends an error response. Errors that are not AppErrors
// are logged and reported as a generic 500.
func RespondWithError(c *gin.Context, err error) {
	if appErr, ok := errors.As(err); ok && appErr.Code != errors.ErrInternal {
		c.AbortWithStatusJSON(appErr.HTTPStatus(), Response{
			Success: false,
			Message: appErr.Message,
		})
		return
	}

	log.Error().
		Err(err).
		Str("method", c.Request.Method).
		Str("path", c.FullPath()).
		Str("request_id", c.GetString("request_id")).
		Msg("Request failed")

	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Success: false,
		Message: "Internal server error",
	})
}

// RespondWithStatus sends an error with an explicit status, for failures
// detected in the handler itself (binding, parsing).
func RespondWithStatus(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Message: message,
	})
}
