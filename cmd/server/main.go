package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
	"github.com/joho/godotenv"

	"github.com/toxiscan/backend/config"
	httpDelivery "github.com/toxiscan/backend/internal/delivery/http"
	"github.com/toxiscan/backend/internal/domain"
	"github.com/toxiscan/backend/internal/infrastructure/auth"
	"github.com/toxiscan/backend/internal/infrastructure/cache"
	"github.com/toxiscan/backend/internal/infrastructure/events"
	"github.com/toxiscan/backend/internal/infrastructure/inference"
	"github.com/toxiscan/backend/internal/infrastructure/metrics"
	"github.com/toxiscan/backend/internal/infrastructure/postgres"
	"github.com/toxiscan/backend/internal/usecase"
)

func main() {
	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.WithError(err).Warn("failed to load .env file")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	setupLogging(cfg.Log)

	log.Info("starting ToxiScan backend v1.0.0")
	log.WithFields(log.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
		"cache":       cfg.Cache.Type,
		"provider":    cfg.Inference.Provider,
		"events":      cfg.Events.Enabled,
	}).Info("configuration loaded")

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres
	db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: 30 * time.Minute,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		log.WithError(err).Fatal("failed to prepare database schema")
	}

	// Cache
	var cacheRepo domain.CacheRepository
	switch cfg.Cache.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, "toxiscan")
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer redisCache.Close()
		cacheRepo = redisCache
	default:
		memoryCache := cache.NewMemoryCache()
		defer memoryCache.Close()
		cacheRepo = memoryCache
	}
	log.WithField("ttl", cfg.Cache.TTL.String()).Info("hazard cache ready")

	// Inference
	var (
		extractor  domain.ExtractionClient
		summarizer domain.SummaryClient
	)
	switch cfg.Inference.Provider {
	case "stub":
		stub := inference.NewStubClient()
		extractor, summarizer = stub, stub
		log.Warn("using stub inference provider; results are synthetic")
	default:
		client := inference.NewClient(inference.ClientConfig{
			APIKey:            cfg.Inference.APIKey,
			BaseURL:           cfg.Inference.BaseURL,
			ExtractionModel:   cfg.Inference.ExtractionModel,
			SummaryModel:      cfg.Inference.SummaryModel,
			RequestsPerSecond: cfg.Inference.RequestsPerSecond,
			Burst:             cfg.Inference.Burst,
			Timeout:           cfg.Inference.Timeout,
		})
		extractor, summarizer = client, client
		log.WithFields(log.Fields{
			"base_url": cfg.Inference.BaseURL,
			"key":      client.MaskedKey(),
		}).Info("inference API configured")
	}

	// Events
	var publisher domain.EventPublisher
	if cfg.Events.Enabled {
		p, err := events.NewPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange, cfg.Events.RoutingKey)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to RabbitMQ")
		}
		defer p.Close()
		publisher = p
	}

	// Usecase layer
	hazardCatalog := usecase.NewHazardCatalog(cacheRepo, postgres.NewHazardRepository(db), cfg.Cache.TTL)
	analysisService := usecase.NewAnalysisService(
		extractor,
		summarizer,
		hazardCatalog,
		postgres.NewAnalysisRepository(db),
		publisher,
		usecase.AnalysisServiceConfig{
			EnableDebugLogging: cfg.Server.Environment == "development",
		},
	)

	// HTTP
	handler := httpDelivery.NewHandler(analysisService, cfg.Server.MaxImageBytes)
	router := httpDelivery.SetupRouter(cfg, handler, auth.NewVerifier(cfg.Auth.JWTSecret))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("addr", srv.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}

// setupLogging selects the apex/log handler and level
func setupLogging(cfg config.LogConfig) {
	if cfg.Format == "json" {
		log.SetHandler(json.New(os.Stdout))
	} else {
		log.SetHandler(text.New(os.Stdout))
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
