package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)                                     // Caller's bookings
		group.POST("", h.Create)                                  // Book a resource
		group.POST("/resource/:resource_id", h.CreateForResource) // Book the resource in the path
		group.GET("/:id", h.Get)                                  // Owner or admin
		group.DELETE("/:id", h.Cancel)                            // Owner or admin
	}
}

// RegisterResourceRoutes mounts booking reads under an authenticated
// /resources group.
func RegisterResourceRoutes(resources *gin.RouterGroup, h *Handler) {
	resources.GET("/:id/bookings", h.ListForResource)
	resources.GET("/:id/availability", h.Availability)
}
