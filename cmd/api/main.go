package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"research_impact_go_backend/cmd/api/config"
	"research_impact_go_backend/internal/api"
	"research_impact_go_backend/internal/auth"
	"research_impact_go_backend/internal/database"
	"research_impact_go_backend/internal/models"
	"research_impact_go_backend/internal/providers"
	"research_impact_go_backend/internal/services"
	"research_impact_go_backend/internal/utils/broker"
	"research_impact_go_backend/internal/wsocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Info().Msg("No .env file found")
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	database.InitDB()
	cfg := config.NewConfig()

	// Bibliographic sources; configured order is the reconciliation
	// tie-break priority.
	crossref := providers.NewCrossRefClient(
		providers.WithCrossRefMailto(os.Getenv("CROSSREF_MAILTO")),
	)
	var semanticOpts []providers.SemanticScholarOption
	if key := os.Getenv("SEMANTIC_SCHOLAR_API_KEY"); key != "" {
		semanticOpts = append(semanticOpts, providers.WithSemanticScholarAPIKey(key))
	}
	semanticScholar := providers.NewSemanticScholarClient(semanticOpts...)
	var altmetricOpts []providers.AltmetricOption
	if key := os.Getenv("ALTMETRIC_API_KEY"); key != "" {
		altmetricOpts = append(altmetricOpts, providers.WithAltmetricAPIKey(key))
	}
	altmetric := providers.NewAltmetricClient(altmetricOpts...)

	progressBroker := broker.NewBroker()

	store := services.NewPublicationStoreDB(database.DB)
	researcherService := services.NewResearcherService(database.DB)
	citationService := services.NewCitationService(
		[]providers.CitationSource{crossref, semanticScholar},
		store,
		progressBroker,
		logger,
		services.WithBatchSize(cfg.BatchSize),
		services.WithBatchDelay(cfg.BatchDelay),
	)
	trendService := services.NewTrendService(store, logger)
	hIndexService := services.NewHIndexService(store)
	readershipService := services.NewReadershipService(store, altmetric, services.ReadershipConfig{
		CitationReadMultiplier: cfg.CitationReadMultiplier,
		SocialReadMultiplier:   cfg.SocialReadMultiplier,
	}, logger)
	importService := services.NewImportService(store, logger)

	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:5173"
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(allowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // TODO: restrict to ALLOWED_ORIGINS before exposing publicly
		},
	}
	wsHandler := wsocket.NewHandler(upgrader, cfg.WebsocketPingInterval, logger)

	api.SetupRoutes(r, researcherService, citationService, trendService, hIndexService, readershipService, importService, store)
	auth.SetupRoutes(r, researcherService)

	r.GET("/ws", auth.AuthMiddleware(researcherService), func(c *gin.Context) {
		researcher, _ := c.Get("researcher")
		wsHandler.HandleWebSocket(c.Writer, c.Request, researcher.(*models.Researcher), progressBroker)
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	logger.Info().Str("port", port).Msg("Server starting")
	if err := r.Run(":" + port); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start server")
	}
}
