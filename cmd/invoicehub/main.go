package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"invoicehub/internal/common"
	"invoicehub/internal/extraction"
	"invoicehub/internal/pipeline"
	"invoicehub/internal/repository"
	"invoicehub/internal/server"
	"invoicehub/internal/services/ingest"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Storage collaborator: postgres in production, sqlite in local mode.
	var repo repository.InvoiceRepository
	switch cfg.Database.Driver {
	case "postgres":
		pool, err := repository.Open(ctx, cfg.Database, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := repository.HealthCheck(ctx, pool, 5*time.Second, logger); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		repo = repository.NewPostgresInvoiceRepository(pool, logger)
	case "sqlite":
		r, conn, err := repository.OpenSQLite(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Error("failed to open sqlite store", "path", cfg.Database.SQLitePath, "error", err)
			os.Exit(1)
		}
		defer conn.Close()
		repo = r
	}

	client, err := extraction.NewClient(cfg.Extraction, logger)
	if err != nil {
		logger.Error("extraction client not configured", "error", err)
		os.Exit(1)
	}

	orch := pipeline.NewOrchestrator(client, cfg.Pipeline, cfg.Extraction.PerFileTimeout, logger)
	committer := pipeline.NewCommitter(repo, pipeline.NewResolver(repo, logger), logger)
	ingestSvc := ingest.NewService(client, orch, committer, cfg.Extraction, cfg.Pipeline, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	server.New(ingestSvc, repo, client, logger).Routes(router)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	go func() {
		logger.Info("invoicehub listening", "addr", cfg.Server.Addr, "db_driver", cfg.Database.Driver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
