package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hookflow-go/internal/services/webhook/dedupe"
	"github.com/hookflow-go/internal/services/webhook/dispatcher"
	"github.com/hookflow-go/internal/services/webhook/handlers"
	"github.com/hookflow-go/internal/services/webhook/provider"
	"github.com/hookflow-go/internal/services/webhook/repository"
	"github.com/hookflow-go/internal/services/webhook/service"
	"github.com/hookflow-go/pkg/config"
	"github.com/hookflow-go/pkg/contracts/webhook"
	"github.com/hookflow-go/pkg/database"
	"github.com/hookflow-go/pkg/events"
	"github.com/hookflow-go/pkg/logger"
)

type Server struct {
	config     *config.Config
	logger     logger.Logger
	httpServer *http.Server
	db         *database.DB
	redis      *redis.Client
	eventBus   events.EventBus
	service    *service.WebhookService
}

func New(cfg *config.Config, log logger.Logger) (*Server, error) {
	db, err := database.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(&webhook.Webhook{}, &webhook.Workflow{}, &webhook.ExecutionError{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	eventBus, err := events.NewKafkaEventBus(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("failed to create event bus: %w", err)
	}

	repo := repository.NewWebhookRepository(db)
	registry := provider.NewRegistry()
	store := dedupe.NewRedisStore(redisClient)
	locks := dedupe.NewRedisLockManager(redisClient)
	executor := dispatcher.NewHTTPExecutor(cfg.Executor)
	disp := dispatcher.New(executor, repo, eventBus, log)

	webhookService := service.NewWebhookService(repo, registry, store, locks, disp, eventBus, cfg.Webhook, log)
	webhookHandlers := handlers.NewWebhookHandlers(webhookService, log)

	r := setupRouter(webhookHandlers, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &Server{
		config:     cfg,
		logger:     log,
		httpServer: httpServer,
		db:         db,
		redis:      redisClient,
		eventBus:   eventBus,
		service:    webhookService,
	}, nil
}

func setupRouter(h *handlers.WebhookHandlers, log logger.Logger) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(loggingMiddleware(log))

	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/webhooks/trigger/:path", h.VerifyTrigger)
	r.POST("/webhooks/trigger/:path", h.Trigger)
	r.POST("/webhooks/test/:id", h.Test)

	return r
}

func (s *Server) Start() error {
	s.logger.Info("Starting webhook service", "port", s.config.Server.Port)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down webhook service...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	// Give detached dispatches the remaining shutdown budget; completion is
	// best effort.
	if err := s.service.Tasks().Wait(ctx); err != nil {
		s.logger.Warn("Background dispatches did not drain before shutdown", "error", err)
	}

	if err := s.eventBus.Close(); err != nil {
		s.logger.Error("Failed to close event bus", "error", err)
	}

	if err := s.redis.Close(); err != nil {
		s.logger.Error("Failed to close Redis", "error", err)
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database", "error", err)
	}

	return nil
}

func loggingMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}
