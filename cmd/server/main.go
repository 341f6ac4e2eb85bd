package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"emitra-backend/internal/chat"
	"emitra-backend/internal/config"
	"emitra-backend/internal/database"
	"emitra-backend/internal/handlers"
	"emitra-backend/internal/logger"
	"emitra-backend/internal/middleware"
	"emitra-backend/internal/repository"
	"emitra-backend/internal/router"
	"emitra-backend/internal/services"
	"emitra-backend/internal/websocket"
	"emitra-backend/internal/worker"
	"emitra-backend/migrations"
)

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogFile); err != nil {
		logger.Warnf("Log file unavailable, writing to stdout: %v", err)
	}
	logger.Info("Starting E-Mitra backend...")

	// ──── Step 2: Initialize PostgreSQL Connection Pool ────
	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	logger.Info("PostgreSQL connected")

	// ──── Step 3: Initialize Redis Clients ────
	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		logger.Fatalf("Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	logger.Info("Redis connected")

	// ──── Step 4: Run Database Migrations ────
	if err := database.RunMigrations(pool, migrations.FS); err != nil {
		logger.Fatalf("Database migration failed: %v", err)
	}
	logger.Info("Database migrations applied")

	// ──── Step 5: Initialize Gemini Client ────
	geminiService, err := services.NewGeminiService(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiConcurrentReqs)
	if err != nil {
		logger.Fatalf("Gemini client initialization failed: %v", err)
	}
	defer geminiService.Close()
	logger.Infof("Gemini client initialized (model %s)", cfg.GeminiModel)

	// ──── Initialize Repositories & Services ────
	userRepo := repository.NewUserRepo(pool)
	sosRepo := repository.NewSOSRepo(pool)

	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	store := services.NewRedisStore(redisClients.Queue)

	// The hub subscribes to Redis for cross-instance events and doubles as the
	// publisher's fallback when Redis publish fails.
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)
	logger.Info("WebSocket hub started")
	publisher := services.NewPublisher(redisClients.Queue).WithFallback(wsHub)

	authService := services.NewAuthService(userRepo, store, jwtAuth, services.LogOTPSender{}, cfg.OTPIssuer, cfg.OTPTTL, cfg.OTPMaxAttempts)
	locationService := services.NewLocationService(store, cfg.LocationTTL)
	sosService := services.NewSOSService(sosRepo, locationService, redisClients.Queue, publisher)
	chatManager := chat.NewManager(geminiService, publisher, cfg.ChatTimeout)

	// ──── Step 6: Start SOS Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, geminiService, sosRepo, publisher, sosService, cfg.WorkerCount)
	workerPool.Start()

	// ──── Step 7: Start HTTP Server ────
	authLimiter := router.DefaultAuthLimiter()
	defer authLimiter.Stop()

	r := router.New(jwtAuth, authLimiter, router.Handlers{
		Auth:      handlers.NewAuthHandler(authService, cfg.IsDevelopment()),
		User:      handlers.NewUserHandler(userRepo, chatManager),
		Location:  handlers.NewLocationHandler(locationService, publisher),
		Safety:    handlers.NewSafetyHandler(geminiService, locationService),
		SOS:       handlers.NewSOSHandler(sosService),
		Chat:      handlers.NewChatHandler(chatManager, geminiService, userRepo, cfg.ChatTimeout),
		WebSocket: wsHub.HandleWebSocket,
	}, cfg.FrontendURL)

	// Chat sends block until the model answers, so the write timeout has
	// to outlast the chat timeout.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ChatTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")
		workerPool.Stop()
		wsHub.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	logger.Infof("E-Mitra backend ready on http://localhost:%s", cfg.Port)
	logger.Infof("  API: http://localhost:%s/api/v1", cfg.Port)
	logger.Infof("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatalf("Server error: %v", err)
	}
}
