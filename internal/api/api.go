// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stalestock/internal/api/handlers"
	"github.com/andresuchdata/stalestock/internal/api/middleware"
	"github.com/andresuchdata/stalestock/internal/service"
)

type Services struct {
	Inventory *service.InventoryService
	// UploadLimiter throttles dataset loads per client. Nil disables it.
	UploadLimiter *middleware.RateLimiter
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil && services.Inventory != nil {
		datasetHandler := handlers.NewDatasetHandler(services.Inventory)
		limitUploads := func(c *gin.Context) { c.Next() }
		if services.UploadLimiter != nil {
			limitUploads = services.UploadLimiter.Handler()
		}

		apiGroup.GET("/instructions", datasetHandler.Instructions)
		apiGroup.GET("/imports", datasetHandler.RecentImports)
		apiGroup.GET("/drive/files", datasetHandler.DriveFiles)

		datasetGroup := apiGroup.Group("/datasets")
		{
			datasetGroup.POST("", limitUploads, datasetHandler.Upload)
			datasetGroup.POST("/drive", limitUploads, datasetHandler.LoadFromDrive)
			datasetGroup.GET("/:id", datasetHandler.Get)
			datasetGroup.DELETE("/:id", datasetHandler.Delete)
			datasetGroup.GET("/:id/options", datasetHandler.Options)

			datasetGroup.GET("/:id/summary", datasetHandler.Summary)
			datasetGroup.GET("/:id/trend", datasetHandler.Trend)
			datasetGroup.GET("/:id/top_products", datasetHandler.TopProducts)
			datasetGroup.GET("/:id/store_ranking", datasetHandler.StoreRanking)
			datasetGroup.GET("/:id/distribution", datasetHandler.Distribution)
			datasetGroup.GET("/:id/rows", datasetHandler.Rows)

			datasetGroup.GET("/:id/export/csv", datasetHandler.ExportCSV)
			datasetGroup.GET("/:id/export/xlsx", datasetHandler.ExportXLSX)
			datasetGroup.GET("/:id/report", datasetHandler.Report)
			datasetGroup.GET("/:id/charts/:kind", datasetHandler.Chart)
			datasetGroup.POST("/:id/archive", datasetHandler.Archive)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
