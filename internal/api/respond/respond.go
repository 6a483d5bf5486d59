// Package respond maps domain errors onto HTTP responses so every handler
// package reports the same status codes for the same failures.
package respond

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/petition-platform/petition-platform/internal/db/repositories"
	"github.com/petition-platform/petition-platform/internal/ownership"
	"github.com/petition-platform/petition-platform/internal/signing"
)

// Error writes the HTTP response for err.
//
// Authorization failures map to 403 without distinguishing "no such
// capability" from "not a member", so responses leak nothing about an
// organization's roster. Internal inconsistencies (a member without a
// permission record, an entity with zero or two owners) are 500s: they can
// only arise from a bug or manual data edits, never from client input.
func Error(c *gin.Context, err error) {
	var validation *signing.ValidationError
	if errors.As(err, &validation) {
		c.JSON(http.StatusBadRequest, gin.H{"errors": validation.Fields})
		return
	}

	switch {
	case errors.Is(err, ownership.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
	case errors.Is(err, repositories.ErrThrottleExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many signatures from this address, try again later"})
	case errors.Is(err, repositories.ErrLastAdmin):
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot remove the last member who can modify permissions"})
	case errors.Is(err, repositories.ErrDuplicateSlug):
		c.JSON(http.StatusConflict, gin.H{"error": "Slug already in use"})
	case errors.Is(err, repositories.ErrDuplicateMember):
		c.JSON(http.StatusConflict, gin.H{"error": "User is already a member or has a pending invitation"})
	case errors.Is(err, repositories.ErrAlreadyConfirmed):
		c.JSON(http.StatusConflict, gin.H{"error": "Signature is already confirmed"})
	case errors.Is(err, sql.ErrNoRows):
		NotFound(c)
	case errors.Is(err, ownership.ErrMissingPermission),
		errors.Is(err, ownership.ErrAmbiguousOwnership),
		errors.Is(err, ownership.ErrOrphanEntity):
		slog.Error("data inconsistency", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	default:
		slog.Error("request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// NotFound writes the uniform 404 response. Used both for genuinely missing
// rows and for entities the caller is not allowed to know exist.
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

// BadRequest writes a 400 with a single message
func BadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
