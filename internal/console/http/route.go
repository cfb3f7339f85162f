package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the record routes of one family under /<family>.
// create replaces the generic create handler when the family needs its own,
// as users do for password hashing.
func RegisterRoutes(g *gin.RouterGroup, h *RecordHandler, authMiddleware gin.HandlerFunc, create gin.HandlerFunc) {
	if create == nil {
		create = h.Create
	}

	group := g.Group("/" + string(h.family))
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.POST("", create)
		group.POST("/search", h.Search)
		group.POST("/search/advanced", h.AdvancedSearch)
		group.GET("/undo", h.UndoDepth)
		group.POST("/undo", h.Undo)
		group.GET("/:id", h.Get)
		group.PATCH("/:id", h.UpdateField)
		group.DELETE("/:id", h.Delete)
	}
}

// RegisterCatalogRoutes registers the catalog metadata route.
func RegisterCatalogRoutes(g *gin.RouterGroup, h *CatalogHandler, authMiddleware gin.HandlerFunc) {
	g.GET("/catalog/:family", authMiddleware, h.Get)
}
