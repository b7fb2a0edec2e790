// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stalestock/internal/api"
	"github.com/andresuchdata/stalestock/internal/api/middleware"
	"github.com/andresuchdata/stalestock/internal/config"
	"github.com/andresuchdata/stalestock/internal/service"
	"github.com/andresuchdata/stalestock/pkg/logger"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	inventory, cleanup, err := service.NewFromConfig(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer cleanup()

	router := api.NewRouter(&api.Services{
		Inventory:     inventory,
		UploadLimiter: middleware.NewRateLimiter(cfg.Server.UploadRPS, cfg.Server.UploadBurst),
	}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error().Err(err).Msg("Failed to start server")
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down server...")

	// The server has 5 seconds to finish the requests it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
		return
	}

	logger.Log.Info().Msg("Server exiting")
}
