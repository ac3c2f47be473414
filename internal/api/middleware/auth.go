package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/GriffinCanCode/StudyDesk/backend/internal/capabilities/auth"
	"github.com/GriffinCanCode/StudyDesk/backend/internal/shared/types"
	"github.com/gin-gonic/gin"
)

// Context keys set by Auth
const (
	IdentityKey = "identity"
	UserIDKey   = "user_id"
	TokenKey    = "token"
)

// Resolver maps a bearer token to the signed-in identity. Unknown or
// expired tokens fail with auth.ErrUnauthenticated.
type Resolver interface {
	Resolve(ctx context.Context, token string) (types.Identity, error)
}

// BearerToken returns the token of an Authorization header. Browsers cannot
// set headers on websocket upgrades, so a token query parameter is accepted
// too.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return c.Query("token")
}

// Auth rejects requests without a valid bearer token
func Auth(r Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		identity, err := r.Resolve(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			msg := "invalid or expired session"
			if !errors.Is(err, auth.ErrUnauthenticated) {
				status = http.StatusServiceUnavailable
				msg = "session store unavailable"
				_ = c.Error(err)
			}
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}

		c.Set(IdentityKey, identity)
		c.Set(UserIDKey, string(identity.UserID))
		c.Set(TokenKey, token)
		c.Next()
	}
}

// Identity returns the identity stored by Auth
func Identity(c *gin.Context) (types.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return types.Identity{}, false
	}
	identity, ok := v.(types.Identity)
	return identity, ok
}

// Token returns the bearer token stored by Auth
func Token(c *gin.Context) string {
	return c.GetString(TokenKey)
}
