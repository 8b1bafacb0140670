package http

import "github.com/gin-gonic/gin"

// Register wires the auth and user routes. requireAuth verifies bearer
// tokens; checkLimiter throttles the one public, unauthenticated probe.
func (h *Handler) Register(api *gin.RouterGroup, requireAuth, checkLimiter gin.HandlerFunc) {
	authGroup := api.Group("/auth")
	authGroup.GET("/check-username", checkLimiter, h.CheckUsername)
	authGroup.POST("/sync", requireAuth, h.Sync)
	authGroup.POST("/set-username", requireAuth, h.SetUsername)

	usersGroup := api.Group("/users")
	usersGroup.GET("/active", h.ListActive)
	usersGroup.GET("/me", requireAuth, h.GetMe)
	usersGroup.PUT("/me", requireAuth, h.UpdateMe)
	usersGroup.DELETE("/me", requireAuth, h.DeleteMe)
	usersGroup.POST("/me/favorites", requireAuth, h.ToggleFavorite)
	usersGroup.GET("/search/:prefix", requireAuth, h.Search)
	usersGroup.GET("/:identifier", requireAuth, h.GetByIdentifier)
}
