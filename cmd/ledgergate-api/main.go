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

	"github.com/redis/go-redis/v9"

	"github.com/ledgergate/ledgergate/internal/api"
	"github.com/ledgergate/ledgergate/internal/audit"
	"github.com/ledgergate/ledgergate/internal/auth"
	"github.com/ledgergate/ledgergate/internal/cache"
	"github.com/ledgergate/ledgergate/internal/config"
	pgexec "github.com/ledgergate/ledgergate/internal/executor/postgres"
	"github.com/ledgergate/ledgergate/internal/governor"
	"github.com/ledgergate/ledgergate/internal/items"
	"github.com/ledgergate/ledgergate/internal/keyword"
	"github.com/ledgergate/ledgergate/internal/nl2sql"
	"github.com/ledgergate/ledgergate/internal/observability"
	"github.com/ledgergate/ledgergate/internal/ratelimit"
	"github.com/ledgergate/ledgergate/internal/sqlguard"
)

func main() {
	cfg, err := config.LoadFromEnv("ledgergate-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := pgexec.Open(context.Background(), cfg.Database.DSN, cfg.Database.MaxOpenConns)
	if err != nil {
		logger.Error("failed to open invoice database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	engine := pgexec.NewEngine(db, cfg.Executor.Timeout)

	var store cache.Store
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		defer func() { _ = client.Close() }()
		store = cache.NewRedis(client, cfg.Cache.TTL, "")
	default:
		memory := cache.NewMemory(cfg.Cache.TTL)
		memory.StartSweeper(ctx, cfg.Cache.SweepInterval)
		store = memory
	}

	limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	go func() {
		ticker := time.NewTicker(cfg.RateLimit.Window)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Prune()
			}
		}
	}()

	var archiver audit.Archiver
	if cfg.Audit.ArchiveEnabled {
		s3, err := audit.NewS3Archiver(audit.S3Config{
			Endpoint:        cfg.Audit.Endpoint,
			Region:          cfg.Audit.Region,
			Bucket:          cfg.Audit.Bucket,
			AccessKeyID:     cfg.Audit.AccessKeyID,
			SecretAccessKey: cfg.Audit.SecretAccessKey,
			UseSSL:          cfg.Audit.UseSSL,
			Prefix:          cfg.Audit.Prefix,
		})
		if err != nil {
			logger.Error("failed to initialize audit archive", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = s3
	}

	var translator nl2sql.Translator
	if cfg.AI.TranslateEnabled {
		translator, err = nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize query translator", slog.Any("error", err))
			os.Exit(1)
		}
	}

	groups := make([]items.FieldGroup, 0, len(cfg.Items.FieldGroups))
	for _, group := range cfg.Items.FieldGroups {
		groups = append(groups, items.FieldGroup{
			Description: group.Description,
			UnitPrice:   group.UnitPrice,
			Quantity:    group.Quantity,
		})
	}

	pipeline := governor.New(governor.Dependencies{
		Validator:  sqlguard.New(cfg.Items.TenantColumn, cfg.Items.AllowedTables),
		Limiter:    limiter,
		Cache:      store,
		Engine:     engine,
		Expander:   items.NewExpander(groups),
		Classifier: items.NewClassifier(keyword.DefaultIndex()),
		Recorder:   audit.NewRecorder(logger, archiver),
		Logger:     logger,
		MaxRows:    cfg.Executor.MaxRows,
	})

	deps := api.Dependencies{
		Logger:            logger,
		Governor:          pipeline,
		Translator:        translator,
		Readiness:         api.CombineReadinessChecks(api.CheckDatabaseDSN(cfg), db.PingContext),
		DependencyTimeout: time.Second,
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}
