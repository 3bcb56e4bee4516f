package http

import (
	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/reservation-backend/internal/auth"
)

// RegisterRoutes registers resource-related routes.
// Extra handlers are mounted by other packages through the returned group.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) *gin.RouterGroup {
	group := g.Group("/resources")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)    // List active resources
		group.GET("/:id", h.Get) // Get resource details
	}

	// === Admin Routes ===
	admin := group.Group("", auth.RequireRole(auth.RoleAdmin))
	{
		admin.POST("", h.Create)           // Create resource
		admin.PATCH("/:id", h.Update)      // Update description or capacity
		admin.DELETE("/:id", h.Deactivate) // Deactivate resource
	}

	return group
}
