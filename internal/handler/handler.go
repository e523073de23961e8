// Package handler holds request helpers shared by the HTTP handlers.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/carelink-api/internal/middleware"
	"github.com/jwalitptl/carelink-api/pkg/httputil"
	"github.com/jwalitptl/carelink-api/pkg/validator"
)

// BindJSON decodes and validates the body into req, answering 400 itself
// when that fails.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.RespondWithStatus(c, http.StatusBadRequest, validator.Message(err))
		return false
	}
	return true
}

// Bind decodes form, multipart or query values into req.
func Bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBind(req); err != nil {
		httputil.RespondWithStatus(c, http.StatusBadRequest, validator.Message(err))
		return false
	}
	return true
}

// ParamUUID parses a path parameter, answering 400 when it is not an id.
func ParamUUID(c *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithStatus(c, http.StatusBadRequest, "Invalid "+label+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// Caller returns the authenticated identity. Routes using it sit behind
// Authenticate, so a missing identity is a 401.
func Caller(c *gin.Context) (*middleware.Identity, bool) {
	identity, ok := middleware.GetIdentity(c)
	if !ok {
		httputil.RespondWithStatus(c, http.StatusUnauthorized, "Authorization token missing")
		return nil, false
	}
	return identity, true
}
