package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vserve-ph/arta-backend/internal/server/accounts"
	"github.com/vserve-ph/arta-backend/internal/server/auth"
)

const claimsContextKey = "authClaims"

// Authenticate validates the Bearer token and stores its claims on the
// request context.
func (s *Server) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := auth.ParseToken(token, s.secretKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(claimsContextKey, claims)
		c.Next()
	}
}

// RequireRole gates a route group to one role. Runs after Authenticate.
func (s *Server) RequireRole(role accounts.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(claimsContextKey)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		claims := v.(*auth.Claims)
		if claims.Role != string(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient privileges"})
			return
		}
		c.Next()
	}
}
