package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/timmy/sportsclips/internal/api"
	"github.com/timmy/sportsclips/internal/app"
	"github.com/timmy/sportsclips/internal/config"
	"github.com/timmy/sportsclips/internal/logger"
)

func main() {
	// Support CONFIG_PATH environment variable for production deployments
	configPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(logger.LoadFromEnv())
	logger.SetDefaultLogger(appLogger)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = appLogger.WithContext(ctx)

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize application: %v", err)
	}
	defer application.Close()

	workers := application.Workers()
	workers.Start(ctx)

	if cfg.Scheduler.Enabled {
		go application.Scheduler.Start(ctx)
	} else {
		logger.CtxInfo(ctx, "Scheduler disabled, runs are only triggered manually")
	}

	router := api.SetupRouter(api.Dependencies{
		DB:         application.DB,
		Registry:   application.Registry,
		Sources:    application.Sources,
		Queries:    application.Queries,
		Runs:       application.Runs,
		News:       application.News,
		Candidates: application.Candidates,
		Matches:    application.Matches,
		Scheduler:  application.Scheduler,
		Pairing:    application.Pairing,
		Search:     application.Search,
		Gatherer:   application.Gatherer,
		Logger:     appLogger,
	}, &cfg.Server)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.With(logger.Fields{
			"port": cfg.Server.Port,
			"mode": cfg.Server.Mode,
		}).Info(ctx, "Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.CtxInfo(ctx, "Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Server forced to shutdown")
	}

	// Stop the scheduler and let in-flight jobs finish before closing the store.
	cancel()
	workers.Wait()

	logger.CtxInfo(ctx, "Server exited")
}
