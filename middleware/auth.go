package middleware

import (
	"context"
	"net/http"
	"strings"

	"taxforms-api/models"
	"taxforms-api/services"

	"github.com/gin-gonic/gin"
)

const authStateKey = "authState"

// SessionResolver turns a bearer token into the caller's AuthState.
type SessionResolver interface {
	ResolveSession(ctx context.Context, token string) (services.AuthState, error)
}

// AuthMiddleware validates the bearer token and stores the caller's
// AuthState on the request context.
func AuthMiddleware(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			c.Abort()
			return
		}

		state, err := resolver.ResolveSession(c.Request.Context(), tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(authStateKey, state)
		c.Set("userID", state.UserID)
		c.Next()
	}
}

// RequireRole only lets callers holding one of roles through.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, ok := AuthState(c)
		if !ok {
			c.JSON(http.StatusForbidden, gin.H{"error": "Role not found"})
			c.Abort()
			return
		}

		for _, role := range roles {
			if state.Role == role {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
		c.Abort()
	}
}

// AuthState returns the state stored by AuthMiddleware.
func AuthState(c *gin.Context) (services.AuthState, bool) {
	v, exists := c.Get(authStateKey)
	if !exists {
		return services.AuthState{}, false
	}
	state, ok := v.(services.AuthState)
	return state, ok
}
