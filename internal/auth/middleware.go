package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AuthRequired is a Gin middleware that validates JWT from Authorization: Bearer <token>
// and, when sessions are tracked, checks the token has not been revoked.
func AuthRequired(jwtManager *JWTManager, sessions SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing Authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid Authorization header format",
			})
			return
		}

		claims, err := jwtManager.ParseAndValidate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		active, err := sessions.Active(c.Request.Context(), claims.ID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "session store unavailable",
			})
			return
		}
		if !active {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "session revoked or expired",
			})
			return
		}

		setIdentity(c, claims)

		c.Next()
	}
}

// RequireRole ensures the authenticated identity holds at least role.
// It MUST be used after AuthRequired.
func RequireRole(role Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := GetIdentity(c)
		if id.UserID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !id.Role.Satisfies(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden: " + string(role) + " access required"})
			return
		}
		c.Next()
	}
}
