package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/fileflow/ingestd/config"
	"github.com/fileflow/ingestd/internal/database"
	"github.com/fileflow/ingestd/internal/extractor"
	"github.com/fileflow/ingestd/internal/gateway"
	"github.com/fileflow/ingestd/internal/logger"
	"github.com/fileflow/ingestd/internal/organizer"
	"github.com/fileflow/ingestd/internal/pipeline"
	"github.com/fileflow/ingestd/internal/router"
	"github.com/fileflow/ingestd/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Logger.Level,
		Format:   cfg.Logger.Format,
		Output:   cfg.Logger.Output,
		FilePath: cfg.Logger.FilePath,
	}); err != nil {
		logger.Fatalf("failed to initialize logger: %v", err)
	}

	// The folder tree is created up front so the first cycle never fails
	// on a missing directory.
	for _, dir := range cfg.Folders.All() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Fatalf("failed to create folder %s: %v", dir, err)
		}
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}

	gw := gateway.New(db)
	if err := gw.HealthCheck(); err != nil {
		logger.Fatalf("storage backend unreachable: %v", err)
	}

	registry := extractor.NewRegistry(cfg.FileTypes)
	org := organizer.New(cfg.Folders)
	pipe := pipeline.New(registry, gw, org)
	sched := scheduler.New(cfg.Scheduler, cfg.Folders, pipe, gw)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(ctx)
	}()

	var srv *http.Server
	if cfg.Server.Enabled {
		r := router.NewRouter(gw, sched)
		srv = &http.Server{
			Addr:         ":" + strconv.Itoa(cfg.Server.Port),
			Handler:      r.Engine(),
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		}
		go func() {
			logger.Infof("[ops] API listening on port %d", cfg.Server.Port)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatalf("ops API server failed: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Infof("shutting down")
	cancel()
	wg.Wait()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("ops API server forced to close: %v", err)
		}
	}

	logger.Infof("stopped")
}
