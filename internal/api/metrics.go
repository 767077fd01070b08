package api

import (
	"errors"
	"net/http"
	"strconv"

	apperrors "research_impact_go_backend/internal/errors"
	"research_impact_go_backend/internal/models"
	"research_impact_go_backend/internal/providers"
	"research_impact_go_backend/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func currentResearcher(c *gin.Context) (*models.Researcher, bool) {
	value, exists := c.Get("researcher")
	if !exists {
		apperrors.HandleError(c, apperrors.New401Error())
		return nil, false
	}
	researcher, ok := value.(*models.Researcher)
	if !ok {
		apperrors.HandleError(c, apperrors.New401Error())
		return nil, false
	}
	return researcher, true
}

// refreshCitationsHandler runs a reconciliation batch over everything
// the researcher owns. The response always carries per-item outcomes;
// a subset failing is not an HTTP error.
func refreshCitationsHandler(citationService *services.CitationService) gin.HandlerFunc {
	return func(c *gin.Context) {
		researcher, ok := currentResearcher(c)
		if !ok {
			return
		}

		result, err := citationService.RefreshPublications(c.Request.Context(), researcher.ID)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

func recordSnapshotsHandler(trendService *services.TrendService) gin.HandlerFunc {
	return func(c *gin.Context) {
		researcher, ok := currentResearcher(c)
		if !ok {
			return
		}

		recorded, err := trendService.RecordAllSnapshots(c.Request.Context(), researcher.ID)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"recorded": recorded})
	}
}

func recordSnapshotHandler(trendService *services.TrendService) gin.HandlerFunc {
	return func(c *gin.Context) {
		researcher, ok := currentResearcher(c)
		if !ok {
			return
		}

		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("invalid publication id"))
			return
		}

		if err := trendService.RecordSnapshot(c.Request.Context(), researcher.ID, uint(id)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperrors.HandleError(c, apperrors.New404Error("publication not found"))
			} else {
				apperrors.HandleError(c, apperrors.New500Error(err))
			}
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func trendsHandler(trendService *services.TrendService) gin.HandlerFunc {
	return func(c *gin.Context) {
		researcher, ok := currentResearcher(c)
		if !ok {
			return
		}

		summary, err := trendService.TrendReport(c.Request.Context(), researcher.ID)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		c.JSON(http.StatusOK, summary)
	}
}

func hIndexHandler(hIndexService *services.HIndexService) gin.HandlerFunc {
	return func(c *gin.Context) {
		researcher, ok := currentResearcher(c)
		if !ok {
			return
		}

		series, err := hIndexService.HIndexSeries(c.Request.Context(), researcher.ID)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"series": series})
	}
}

func listPublicationsHandler(store services.PublicationStoreDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		researcher, ok := currentResearcher(c)
		if !ok {
			return
		}

		pubs, err := store.PublicationsByResearcher(researcher.ID)
		if err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		c.JSON(http.StatusOK, gin.H{"publications": pubs})
	}
}

func createPublicationHandler(store services.PublicationStoreDB) gin.HandlerFunc {
	return func(c *gin.Context) {
		researcher, ok := currentResearcher(c)
		if !ok {
			return
		}

		var request struct {
			Title   string `json:"title" binding:"required"`
			Authors string `json:"authors"`
			Journal string `json:"journal"`
			DOI     string `json:"doi"`
			Year    *int   `json:"year"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}

		pub := models.Publication{
			ResearcherID: researcher.ID,
			Title:        request.Title,
			Authors:      request.Authors,
			Journal:      request.Journal,
			Year:         request.Year,
		}
		if request.DOI != "" {
			if err := providers.ValidateDOI(request.DOI); err != nil {
				apperrors.HandleError(c, apperrors.New400Error("malformed DOI"))
				return
			}
			pub.DOI = &request.DOI
		}

		if err := store.CreatePublication(&pub); err != nil {
			apperrors.HandleError(c, apperrors.New500Error(err))
			return
		}

		c.JSON(http.StatusCreated, pub)
	}
}

func readershipHandler(readershipService *services.ReadershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		researcher, ok := currentResearcher(c)
		if !ok {
			return
		}

		id, err := strconv.ParseUint(c.Param("id"), 10, 64)
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("invalid publication id"))
			return
		}

		metrics, err := readershipService.EstimateReadership(c.Request.Context(), researcher.ID, uint(id))
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				apperrors.HandleError(c, apperrors.New404Error("publication not found"))
			} else {
				apperrors.HandleError(c, apperrors.New500Error(err))
			}
			return
		}

		c.JSON(http.StatusOK, metrics)
	}
}

func importHandler(importService *services.ImportService) gin.HandlerFunc {
	return func(c *gin.Context) {
		researcher, ok := currentResearcher(c)
		if !ok {
			return
		}

		file, _, err := c.Request.FormFile("file")
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error("a BibTeX file upload is required"))
			return
		}
		defer file.Close()

		result, err := importService.ImportBibTeX(c.Request.Context(), researcher.ID, file)
		if err != nil {
			apperrors.HandleError(c, apperrors.New400Error(err.Error()))
			return
		}

		c.JSON(http.StatusOK, result)
	}
}
