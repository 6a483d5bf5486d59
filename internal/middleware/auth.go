// Package middleware provides Gin HTTP middleware for authentication, rate
// limiting, security headers, request IDs, and metrics.
//
// Middleware ordering matters and is enforced in router.go:
//
//	Security → RequestID → Metrics → RateLimit → Auth → Handler
//
// Security headers run first so they appear on all responses including errors.
// Rate limiting runs before auth so brute-force attempts are blocked before
// any DB work. Auth populates the user identity; handlers and the access
// control gate read it from the context.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/petition-platform/petition-platform/internal/auth"
	"github.com/petition-platform/petition-platform/internal/db/repositories"
)

const (
	// UserKey is the gin.Context key under which the authenticated *models.User is stored.
	UserKey = "user"

	// UserIDKey is the gin.Context key under which the authenticated user's ID is stored.
	UserIDKey = "user_id"
)

// AuthMiddleware validates the Bearer JWT and loads the authenticated user
// into the request context. Requests without a valid token are rejected with
// 401 before reaching any handler.
func AuthMiddleware(userRepo *repositories.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Missing authorization header",
			})
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header must start with 'Bearer '",
			})
			return
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is empty",
			})
			return
		}

		claims, err := auth.ValidateJWT(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		// The token only proves the session was issued; the account may have
		// been deleted since, so the user row is loaded on every request.
		user, err := userRepo.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to load user",
			})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User not found",
			})
			return
		}

		c.Set(UserKey, user)
		c.Set(UserIDKey, user.ID)

		c.Next()
	}
}

// CurrentUserID returns the authenticated user's ID from the context, or ""
// when the request is unauthenticated.
func CurrentUserID(c *gin.Context) string {
	if id, exists := c.Get(UserIDKey); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return ""
}
