package auth

import "github.com/gin-gonic/gin"

const (
	ctxUserID    = "userID"
	ctxUserRole  = "userRole"
	ctxSessionID = "sessionID"
)

// GetUserID returns the authenticated user's ID or empty string.
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// GetIdentity returns the authenticated caller.
// The zero Identity is returned when the request was not authenticated.
func GetIdentity(c *gin.Context) Identity {
	role, _ := c.Get(ctxUserRole)
	r, _ := role.(Role)
	return Identity{UserID: GetUserID(c), Role: r}
}

// GetSessionID returns the session (token id) of the current request.
func GetSessionID(c *gin.Context) string {
	return c.GetString(ctxSessionID)
}

func setIdentity(c *gin.Context, claims *Claims) {
	c.Set(ctxUserID, claims.UserID)
	c.Set(ctxUserRole, claims.Role)
	c.Set(ctxSessionID, claims.ID)
}
