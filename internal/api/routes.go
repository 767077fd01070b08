package api

import (
	"research_impact_go_backend/internal/auth"
	"research_impact_go_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// SetupRoutes wires the researcher-scoped analytics API. Everything is
// behind the auth middleware; cross-researcher access never reaches the
// services.
func SetupRoutes(
	r *gin.Engine,
	researcherService *services.ResearcherService,
	citationService *services.CitationService,
	trendService *services.TrendService,
	hIndexService *services.HIndexService,
	readershipService *services.ReadershipService,
	importService *services.ImportService,
	store services.PublicationStoreDB,
) {
	api := r.Group("/api")
	api.Use(auth.AuthMiddleware(researcherService))
	{
		api.POST("/citations/refresh", refreshCitationsHandler(citationService))
		api.POST("/citations/snapshots", recordSnapshotsHandler(trendService))
		api.POST("/publications/:id/snapshot", recordSnapshotHandler(trendService))
		api.GET("/citations/trends", trendsHandler(trendService))
		api.GET("/metrics/h-index", hIndexHandler(hIndexService))
		api.GET("/publications", listPublicationsHandler(store))
		api.POST("/publications", createPublicationHandler(store))
		api.GET("/publications/:id/readership", readershipHandler(readershipService))
		api.POST("/publications/import", importHandler(importService))
	}
}
