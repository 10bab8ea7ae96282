package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MikeSquared-Agency/insight/internal/api"
	"github.com/MikeSquared-Agency/insight/internal/bus"
	"github.com/MikeSquared-Agency/insight/internal/config"
	"github.com/MikeSquared-Agency/insight/internal/dataset"
	"github.com/MikeSquared-Agency/insight/internal/llm"
	"github.com/MikeSquared-Agency/insight/internal/logging"
	"github.com/MikeSquared-Agency/insight/internal/queries"
	"github.com/MikeSquared-Agency/insight/internal/store"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger.Info("insightd starting", "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// History store
	var db store.Repository
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, cfg.HistoryLimit)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		db = pg
		logger.Info("database connected", "driver", "postgres")
	} else {
		lite, err := store.NewSQLite(cfg.DBPath, cfg.HistoryLimit)
		if err != nil {
			logger.Error("failed to open sqlite database", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		db = lite
		logger.Info("database opened", "driver", "sqlite", "path", cfg.DBPath)
	}
	defer db.Close()

	// Events (optional)
	var (
		events  bus.Publisher = bus.Nop{}
		natsCon api.ConnChecker
	)
	if cfg.NatsURL != "" {
		nc, err := bus.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, logger)
		if err != nil {
			logger.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer nc.Close()
		events = nc
		natsCon = nc
		logger.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		logger.Warn("NATS not configured, events are discarded")
	}

	// LLM providers
	var providers []llm.Provider
	if cfg.GeminiAPIKey != "" {
		providers = append(providers, llm.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.LLMTimeout))
	}
	if cfg.DeepSeekAPIKey != "" {
		providers = append(providers, llm.NewDeepSeek(cfg.DeepSeekAPIKey, cfg.DeepSeekModel, cfg.LLMTimeout))
	}
	registry := llm.NewRegistry(providers...)
	logger.Info("llm providers ready", "providers", registry.Names())

	// Datasets
	retention := cfg.FileRetention()
	if n, err := dataset.SweepDir(cfg.UploadDir, retention, time.Now(), logger); err != nil {
		logger.Warn("upload sweep failed", "error", err)
	} else if n > 0 {
		logger.Info("removed expired uploads", "count", n)
	}
	datasets, err := dataset.NewService(cfg.UploadDir, cfg.MaxUploadBytes(), dataset.NewRegistry(retention, logger), logger)
	if err != nil {
		logger.Error("failed to prepare upload directory", "dir", cfg.UploadDir, "error", err)
		os.Exit(1)
	}
	go sweepLoop(ctx, cfg.UploadDir, retention, logger)

	answers := queries.New(registry, datasets, db, events, cfg.MaxQueryLength, logger)

	// HTTP API
	srv := api.NewServer(answers, datasets, api.Options{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
		Providers:      registry.Names(),
		Store:          db,
		Events:         events,
		Bus:            natsCon,
		Logger:         logger,
	})
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	logger.Info("insightd ready", "port", cfg.Port)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown", "error", err)
	}
	logger.Info("insightd stopped")
}

// sweepLoop removes uploads orphaned by a restart; the registry expires the rest.
func sweepLoop(ctx context.Context, dir string, retention time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n, err := dataset.SweepDir(dir, retention, now, logger); err != nil {
				logger.Warn("upload sweep failed", "error", err)
			} else if n > 0 {
				logger.Info("removed expired uploads", "count", n)
			}
		}
	}
}
