// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements bearer-token authentication. Verification itself is
// decoupled behind a narrow TokenVerifier function type so the middleware
// stays ignorant of the token format; the service layer owns signing and
// parsing.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextUserIDKey is the Gin context key under which RequireAuth stores the
// authenticated user's identifier. Downstream consumers (handlers, rate
// limiter keys, idempotency lookups) read it from here.
const ContextUserIDKey = "userID"

// ContextUsernameKey is the Gin context key for the authenticated username.
const ContextUsernameKey = "username"

// TokenVerifier validates a bearer token and returns the identity it names.
// Return an error for any token that should be rejected; the middleware does
// not distinguish failure modes.
type TokenVerifier func(ctx context.Context, token string) (userID, username string, err error)

// RequireAuth enforces a valid Authorization: Bearer token on every request
// it guards. On success it stashes the user ID and username in the Gin
// context; on failure it responds 401 with a compact error body and aborts.
func RequireAuth(verify TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			abortUnauthorized(c, "missing bearer token")
			return
		}
		userID, username, err := verify(c.Request.Context(), token)
		if err != nil || userID == "" {
			abortUnauthorized(c, "invalid or expired token")
			return
		}
		c.Set(ContextUserIDKey, userID)
		c.Set(ContextUsernameKey, username)
		c.Next()
	}
}

// AuthUserID returns the authenticated user ID stored by RequireAuth. The
// second return value indicates presence.
func AuthUserID(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// bearerToken extracts the credential from an Authorization header value,
// accepting any case for the "Bearer" scheme keyword.
func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.Header("WWW-Authenticate", `Bearer realm="api"`)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    "unauthorized",
		"message": msg,
	})
}
