package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mediapulse/mediapulse-back/internal/ai"
	"github.com/mediapulse/mediapulse-back/internal/config"
	httpserver "github.com/mediapulse/mediapulse-back/internal/http"
	"github.com/mediapulse/mediapulse-back/internal/http/handlers"
	"github.com/mediapulse/mediapulse-back/internal/orchestrator"
	"github.com/mediapulse/mediapulse-back/internal/pipeline"
	"github.com/mediapulse/mediapulse-back/internal/quality"
	"github.com/mediapulse/mediapulse-back/internal/queue"
	"github.com/mediapulse/mediapulse-back/internal/repository"
	"github.com/mediapulse/mediapulse-back/internal/search"
	"github.com/mediapulse/mediapulse-back/internal/service"
	"github.com/mediapulse/mediapulse-back/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[mediapulse] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, repoCloser := setupRepository(ctx, cfg, logger)
	defer repoCloser()

	jobQueue := setupQueue(ctx, cfg, logger)

	modelRouter := ai.NewModelRouter(ai.ModelRouterConfig{
		QueryPlanPrimary:  cfg.OpenAIModelPlanPrimary,
		QueryPlanFallback: cfg.OpenAIModelPlanFallback,
		SummaryPrimary:    cfg.OpenAIModelSummaryPrimary,
		SummaryFallback:   cfg.OpenAIModelSummaryFallback,
		SynthesisPrimary:  cfg.OpenAIModelSynthPrimary,
		SynthesisFallback: cfg.OpenAIModelSynthFallback,
		ImageModel:        cfg.OpenAIImageModel,
	})
	aiClient := ai.NewClient(ai.ClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Timeout:    time.Duration(cfg.OpenAITimeoutMS) * time.Millisecond,
		MaxRetries: cfg.OpenAIMaxRetries,
	})
	searchCache := search.NewResultCache(search.CacheConfig{
		TTL:        time.Duration(cfg.SearchCacheTTLS) * time.Second,
		MaxEntries: cfg.SearchCacheLimit,
	})
	searchClient := search.NewClient(search.ClientConfig{
		APIKey:   cfg.SearchAPIKey,
		BaseURL:  cfg.SearchBaseURL,
		Timeout:  time.Duration(cfg.SearchTimeoutMS) * time.Millisecond,
		PageSize: cfg.SearchPageSize,
		Cache:    searchCache,
	})

	reportPipeline := pipeline.New(pipeline.Dependencies{
		Planner:     pipeline.NewAIPlanner(aiClient, modelRouter, logger),
		Searcher:    searchClient,
		Summarizer:  pipeline.NewAISummarizer(aiClient, modelRouter, logger),
		Synthesizer: pipeline.NewAISynthesizer(aiClient, modelRouter, logger),
		Images:      pipeline.NewAIIllustrator(aiClient, modelRouter.ImageModel()),
		Logger:      logger,
	}, pipeline.Config{
		ArticleCount: cfg.ReportArticleCount,
	})

	reportsService := service.NewReportsService(repo, quality.NewReportValidator())
	jobsService := service.NewJobsService(jobQueue, repo)
	api := handlers.NewAPI(jobsService, reportsService)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	if cfg.WorkerEnabled {
		pool := worker.NewPool(jobQueue, reportsService, reportPipeline, worker.PoolConfig{
			Concurrency: cfg.WorkerConcurrency,
			RateLimit:   cfg.WorkerRateLimit,
			RateWindow:  time.Duration(cfg.WorkerRateWindowSec) * time.Second,
		}, logger)
		controller := orchestrator.NewController(jobQueue, pool, logger)
		controller.Start(ctx)
		defer controller.Stop()
		logger.Printf("generation workers started concurrency=%d", cfg.WorkerConcurrency)
	} else {
		defer jobQueue.Close()
		logger.Printf("generation workers disabled by configuration")
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupRepository(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (repository.ReportsRepository, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory report store")
		return repository.NewMemoryReportsRepository(), func() {}
	}

	pgRepo, err := repository.NewPostgresReportsRepository(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres report store, fallback to memory: %v", err)
		return repository.NewMemoryReportsRepository(), func() {}
	}
	logger.Printf("postgres report store initialized")
	return pgRepo, func() {
		pgRepo.Close()
	}
}

func setupQueue(ctx context.Context, cfg config.Config, logger *log.Logger) queue.Queue {
	policy := queue.Policy{
		MaxAttempts:     cfg.JobMaxAttempts,
		BackoffBase:     time.Duration(cfg.JobBackoffBaseMS) * time.Millisecond,
		RetainCompleted: cfg.JobRetainCompleted,
		RetainFailed:    cfg.JobRetainFailed,
		RetainAge:       time.Duration(cfg.JobRetainAgeHours) * time.Hour,
	}

	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using in-memory queue fallback")
		return queue.NewMemoryQueue(policy, logger)
	}

	redisQueue, err := queue.NewRedisQueue(ctx, queue.RedisConfig{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.RedisKeyPrefix,
		Policy:    policy,
	}, logger)
	if err != nil {
		logger.Printf("failed to initialize redis queue, fallback to memory: %v", err)
		return queue.NewMemoryQueue(policy, logger)
	}
	logger.Printf("redis queue initialized")
	return redisQueue
}
