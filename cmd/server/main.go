package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyai-backend/internal/config"
	"studyai-backend/internal/database"
	"studyai-backend/internal/handlers"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
	"studyai-backend/internal/repository"
	"studyai-backend/internal/router"
	"studyai-backend/internal/services"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	mode := "development"
	if cfg.IsProduction() {
		mode = "production"
	}
	log, err := logger.New(mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Logger initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("🚀 Starting StudyAI Backend...")
	log.Info("✓ Environment variables loaded", "env", cfg.Env, "provider", cfg.LLMProvider)

	// ──── Step 2: Result Cache ────
	var cache services.ResultCache = services.NoopCache{}
	if cfg.RedisURL != "" {
		redisClient, err := database.NewRedisClient(cfg.RedisURL)
		if err != nil {
			log.Fatal("✗ Redis connection failed", "error", err)
		}
		defer redisClient.Close()
		cache = services.NewRedisCache(redisClient, cfg.CacheTTL)
		log.Info("✓ Redis result cache connected", "ttl", cfg.CacheTTL)
	} else if cfg.CacheSize > 0 {
		lruCache, err := services.NewLRUCache(cfg.CacheSize)
		if err != nil {
			log.Fatal("✗ In-memory cache initialization failed", "error", err)
		}
		cache = lruCache
		log.Info("✓ In-memory result cache enabled", "size", cfg.CacheSize)
	} else {
		log.Info("Result cache disabled")
	}

	// ──── Step 3: Initialize Model Client ────
	model, closeModel, err := services.NewModelFromConfig(context.Background(), cfg)
	if err != nil {
		log.Fatal("✗ Model client initialization failed", "error", err)
	}
	defer closeModel()
	log.Info("✓ Model client initialized", "model", model.Name())

	generator := services.NewStudyGenerator(model, services.GeneratorOptions{
		Timeout:            cfg.LLMTimeout,
		MaxContentChars:    cfg.MaxContentChars,
		ConcurrentRequests: cfg.LLMConcurrentRequests,
		Cache:              cache,
		Logger:             log,
	})
	extractor := services.NewFileExtractService(cfg.MaxUploadBytes)

	// ──── Step 4: Optional Study Set Store ────
	studyHandler := handlers.NewStudyHandler(generator, nil, log)
	var studySetHandler *handlers.StudySetHandler
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("✗ PostgreSQL connection failed", "error", err)
		}
		defer pool.Close()
		log.Info("✓ PostgreSQL connected")

		applied, err := database.RunMigrations(pool)
		if err != nil {
			log.Fatal("✗ Database migration failed", "error", err)
		}
		log.Info("✓ Database migrations applied", "new", applied)

		studySetRepo := repository.NewStudySetRepo(pool)
		studyHandler = handlers.NewStudyHandler(generator, studySetRepo, log)
		studySetHandler = handlers.NewStudySetHandler(studySetRepo)
	} else {
		log.Info("Study set storage disabled (DATABASE_URL not set)")
	}

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	if jwtAuth == nil {
		log.Warn("JWT_SECRET not set, API is open and all study sets are anonymous")
	}

	// ──── Step 5: Start HTTP Server ────
	r, stopRouter := router.New(router.Deps{
		Log:             log,
		JWTAuth:         jwtAuth,
		Content:         handlers.NewContentHandler(extractor, cfg.MaxUploadBytes, log),
		Study:           studyHandler,
		StudySets:       studySetHandler,
		RateLimitPerMin: cfg.RateLimitPerMin,
		FrontendURL:     cfg.FrontendURL,
		TrustProxy:      cfg.TrustProxyHeaders,
	})
	defer stopRouter()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.LLMTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Error("Graceful shutdown failed", "error", err)
		}
	}()

	log.Info(fmt.Sprintf("✓ StudyAI Backend ready on http://localhost:%s", cfg.Port))
	log.Info(fmt.Sprintf("  API: http://localhost:%s/api/v1", cfg.Port))

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("Server error", "error", err)
	}
	<-done
}
