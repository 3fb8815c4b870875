// internal/api/router.go
package api

import "github.com/gin-gonic/gin"

// NewRouter builds the gin engine with all routes attached.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", h.Health)

	personas := r.Group("/api/personas")
	{
		personas.POST("/generate", h.GeneratePersonas)
		personas.GET("/tasks/:id", h.GetGenerationTask)
	}

	impact := r.Group("/api/impact")
	{
		impact.POST("/aggregate", h.Aggregate)
		impact.GET("/summary", h.GetSummary)
	}

	return r
}
