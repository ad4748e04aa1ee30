// Package handler holds request helpers shared by the route handlers.
package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/middleware"
	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/httputil"
)

// Caller returns the authenticated identity, responding 401 when the route
// was reached without one.
func Caller(c *gin.Context) (*model.Identity, bool) {
	identity, ok := middleware.IdentityFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required", nil))
		return nil, false
	}
	return identity, true
}

// PathID parses a uuid path parameter. Malformed ids cannot name an existing
// resource, so they are answered with 404.
func PathID(c *gin.Context, param, resource string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		httputil.RespondWithError(c, apperrors.NotFound(resource, err))
		return uuid.Nil, false
	}
	return id, true
}

// Bind decodes and validates a JSON body, responding 400 on failure.
func Bind(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		httputil.RespondWithBindError(c, err)
		return false
	}
	return true
}
