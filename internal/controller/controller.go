// Package controller holds the pieces shared by the teacher and student API
// surfaces: error responses mapped off the engine's error taxonomy and param
// parsing.
package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/quickquiz/quickquiz/internal/apperr"
	"github.com/quickquiz/quickquiz/internal/dto"
	"github.com/rs/zerolog/log"
)

// RespondError writes the error as JSON with the status code the taxonomy
// assigns it. Unclassified errors come back as 500 with a generic message so
// internals do not leak.
func RespondError(c *gin.Context, err error, context string) {
	status := apperr.Status(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("context", context).Msg("request failed")
		c.JSON(status, dto.ErrorResponse{Message: context})
		return
	}
	log.Warn().Err(err).Str("context", context).Msg("request rejected")
	c.JSON(status, dto.ErrorResponse{Message: err.Error()})
}

// ParseIDParam reads a uint path parameter, responding 400 itself on failure.
func ParseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid " + name + " format"})
		return 0, false
	}
	return uint(id), true
}
