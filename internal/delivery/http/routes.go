package http

import (
	"github.com/gin-gonic/gin"

	"github.com/discounthunter/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.MaxMultipartMemory = maxUploadBytes

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoints
	router.GET("/health", handler.HealthCheck)
	router.GET("/healthz", handler.HealthCheck)

	api := router.Group("/api")
	api.Use(RateLimitMiddleware(cfg.RateLimit.PerIP, cfg.RateLimit.Burst))
	{
		scrape := api.Group("/scrape")
		{
			scrape.POST("", handler.StartScrape)
			scrape.GET("/:jobId", handler.GetScrape)
		}

		api.POST("/ocr", handler.UploadOCR)

		stores := api.Group("/stores")
		{
			stores.GET("", handler.ListStores)
			stores.PUT("/:storeId", handler.UpdateStore)
		}
	}

	return router
}
