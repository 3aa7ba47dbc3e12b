package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fieldtime-dev/rotation-engine/internal/api/handlers"
	"github.com/fieldtime-dev/rotation-engine/internal/api/middleware"
	"github.com/fieldtime-dev/rotation-engine/internal/cache"
	"github.com/fieldtime-dev/rotation-engine/internal/engine"
	"github.com/fieldtime-dev/rotation-engine/internal/mip"
	"github.com/fieldtime-dev/rotation-engine/internal/websocket"
	"github.com/fieldtime-dev/rotation-engine/pkg/config"
	"github.com/fieldtime-dev/rotation-engine/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Initialize structured logger with service context
	structuredLogger := logger.InitLogger("info", cfg.IsDevelopment())
	logger.WithService("rotation-engine").WithFields(logrus.Fields{
		"version":     "1.0.0",
		"environment": cfg.Env,
		"port":        cfg.Port,
	}).Info("Starting Rotation Engine")

	// Setup Gin mode
	if cfg.IsDevelopment() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Redis backs the schedule cache; the service still runs without it
	var redisClient *redis.Client
	var scheduleCache *cache.ScheduleCache
	if cfg.EnableScheduleCache {
		scheduleCache, err = cache.NewScheduleCache(cache.CacheConfig{
			RedisURL:   cfg.RedisURL,
			DefaultTTL: cfg.ScheduleCacheTTL,
			KeyPrefix:  "rotation:",
			MaxRetries: 3,
		})
		if err != nil {
			logger.WithService("rotation-engine").WithError(err).Warn("Schedule cache unavailable, continuing without it")
			scheduleCache = nil
		}
	}
	if opt, err := redis.ParseURL(cfg.RedisURL); err == nil {
		redisClient = redis.NewClient(opt)
		defer redisClient.Close()
	}

	// Initialize WebSocket hub for solve progress updates
	wsHub := websocket.NewHub(structuredLogger)
	go wsHub.Run()

	// Initialize the solver backend and engine; progress flows to clients
	// watching the request id over WebSocket
	backend := mip.NewBackend()
	eng := engine.New(backend, logger.WithService("rotation-engine"), func(requestID string, percentage int, message string) {
		wsHub.BroadcastProgress(requestID, percentage, message)
	})
	eng.SetTrialTimeout(cfg.TrialSolveTimeout)

	// Initialize router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(middleware.CORS(cfg.CorsOrigins))

	// Initialize handlers
	scheduleHandler := handlers.NewScheduleHandler(eng, scheduleCache, cfg, structuredLogger)
	healthHandler := handlers.NewHealthHandler(redisClient, structuredLogger)

	// Setup API routes
	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/schedule/solve", scheduleHandler.SolveSchedule)
		apiV1.POST("/schedule/cancel/:request_id", scheduleHandler.CancelSolve)
		apiV1.POST("/schedule/validate-goalies", scheduleHandler.ValidateGoalies)
	}

	// WebSocket endpoint for solve progress updates
	router.GET("/ws/solve-progress/:request_id", wsHub.HandleWebSocket)

	// Health check endpoints
	router.GET("/health", healthHandler.GetHealth)
	router.GET("/ready", healthHandler.GetReady)
	router.GET("/metrics", healthHandler.GetMetrics)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.WithService("rotation-engine").WithField("port", cfg.Port).Info("Rotation engine started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithService("rotation-engine").Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.WithService("rotation-engine").Info("Shutting down rotation engine...")

	// The server has 5 seconds to finish the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithService("rotation-engine").Fatalf("Rotation engine forced to shutdown: %v", err)
	}

	if scheduleCache != nil {
		scheduleCache.Close()
	}

	logger.WithService("rotation-engine").Info("Rotation engine exited")
}
