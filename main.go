package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/prepdesk/attempt-engine/internal/config"
	"github.com/prepdesk/attempt-engine/internal/events"
	"github.com/prepdesk/attempt-engine/internal/handlers"
	"github.com/prepdesk/attempt-engine/internal/handoff"
	"github.com/prepdesk/attempt-engine/internal/session"
	"github.com/prepdesk/attempt-engine/internal/testservice"
	"github.com/prepdesk/attempt-engine/internal/utils"
	"github.com/prepdesk/attempt-engine/internal/validator"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis unreachable, falling back to in-memory handoff: %v", err)
			redisClient = nil
		}
	}

	// Handoff channel: Redis when available so start and open can land on
	// different instances, in-memory otherwise
	var channel handoff.Channel
	if redisClient != nil {
		channel = handoff.NewRedisChannel(redisClient, cfg.HandoffTTL)
	} else {
		channel = handoff.NewMemoryChannel(cfg.HandoffTTL)
	}

	// Event publisher: Kafka when brokers are configured
	var publisher events.EventPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = events.NewKafkaEventPublisher(cfg.Kafka, slogLogger)
		if err != nil {
			log.Fatalf("Failed to initialize Kafka publisher: %v", err)
		}
	} else {
		logger.Warn("No Kafka brokers configured, events will not leave the process")
		publisher = events.NewMockEventPublisher(slogLogger)
	}

	// Test service client
	client := testservice.NewHTTPClient(cfg.TestService, slogLogger)

	// Session engine
	loader := session.NewLoader(client, channel, publisher, cfg.AutosaveThreshold, cfg.FallbackDuration, slogLogger)
	sessionManager := session.NewManager(loader, slogLogger)

	// Initialize validator
	validator := validator.New()

	// Initialize handlers
	handlerManager := handlers.NewHandlerManager(sessionManager, client, channel, validator, logger, cfg.Casdoor)

	// Setup Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Setup middleware
	handlers.SetupMiddleware(router, logger)

	// Setup routes
	handlerManager.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Stop live sessions
	if err := sessionManager.Shutdown(ctx); err != nil {
		log.Printf("Failed to shutdown sessions: %v", err)
	}

	// Close event publisher
	if err := publisher.Close(); err != nil {
		log.Printf("Failed to close event publisher: %v", err)
	}

	// Close Redis connection
	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}
