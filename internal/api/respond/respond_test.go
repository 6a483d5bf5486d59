package respond

import (
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/petition-platform/petition-platform/internal/db/repositories"
	"github.com/petition-platform/petition-platform/internal/forms"
	"github.com/petition-platform/petition-platform/internal/ownership"
	"github.com/petition-platform/petition-platform/internal/signing"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func statusFor(err error) int {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	Error(c, err)
	return w.Code
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"forbidden", ownership.ErrForbidden, http.StatusForbidden},
		{"wrapped forbidden", errors.Join(errors.New("ctx"), ownership.ErrForbidden), http.StatusForbidden},
		{"throttle", repositories.ErrThrottleExceeded, http.StatusTooManyRequests},
		{"last admin", repositories.ErrLastAdmin, http.StatusConflict},
		{"duplicate slug", repositories.ErrDuplicateSlug, http.StatusConflict},
		{"duplicate member", repositories.ErrDuplicateMember, http.StatusConflict},
		{"already confirmed", repositories.ErrAlreadyConfirmed, http.StatusConflict},
		{"no rows", sql.ErrNoRows, http.StatusNotFound},
		{"missing permission record", ownership.ErrMissingPermission, http.StatusInternalServerError},
		{"ambiguous ownership", ownership.ErrAmbiguousOwnership, http.StatusInternalServerError},
		{"orphan entity", ownership.ErrOrphanEntity, http.StatusInternalServerError},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestErrorValidation(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	Error(c, &signing.ValidationError{Fields: forms.FieldErrors{"email": "invalid email address"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid email address")
}
