// @title           Cadet Chat Service API
// @version         1.0
// @description     Realtime chat for cadets, senior under officers, ANOs and alumni
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8002
// @BasePath  /api/chat

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

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
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "cadet-chat-service/docs" // Swagger docs import

	"cadet-chat-service/internal/client"
	"cadet-chat-service/internal/config"
	"cadet-chat-service/internal/database"
	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/identity"
	"cadet-chat-service/internal/job"
	"cadet-chat-service/internal/metrics"
	"cadet-chat-service/internal/middleware"
	"cadet-chat-service/internal/presence"
	"cadet-chat-service/internal/repository"
	"cadet-chat-service/internal/router"
	"cadet-chat-service/internal/service"
	"cadet-chat-service/internal/websocket"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := initLogger(cfg.Logger.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	logger.Info("Starting Cadet Chat Service",
		zap.Int("port", cfg.Server.Port),
		zap.String("env", cfg.Server.Env),
		zap.String("base_path", cfg.Server.BasePath),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("identity_source", cfg.Identity.Source),
		zap.String("presence_backend", cfg.Presence.Backend),
		zap.Bool("dev_headers", cfg.DevHeadersEnabled()),
	)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Database (retries until reachable)
	db, err := database.OpenWithRetry(ctx, database.OptionsFromConfig(cfg), 5*time.Second, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	logger.Info("Database connected and migrated")

	// Redis is optional; without it the gateway only fans out locally
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close()
		logger.Info("Redis connected")
	} else {
		logger.Warn("⚠️  Redis disabled, realtime events stay on this instance")
	}

	m := metrics.New()
	logger.Info("Metrics initialized")

	// Identity directory
	var directory identity.Directory
	switch cfg.Identity.Source {
	case "http":
		directory = client.NewUserClient(cfg.Identity.UserServiceURL, cfg.Identity.Timeout, logger)
	default:
		directory = identity.NewDBDirectory(db)
	}
	resolver := identity.NewResolver(directory)

	var tracker presence.Tracker
	if cfg.Presence.Backend == "redis" {
		tracker = presence.NewRedisTracker(redisClient, cfg.Presence.TTL, logger)
	} else {
		tracker = presence.NewMemoryTracker()
	}

	policy, err := domain.NewPairPolicy(cfg.Chat.DirectAllowedPairs)
	if err != nil {
		logger.Fatal("Invalid direct chat policy", zap.Error(err))
	}

	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	roomService := service.NewRoomService(roomRepo, messageRepo, resolver, policy, tracker, cfg.Chat, m, logger)
	messageService := service.NewMessageService(roomRepo, messageRepo, resolver, cfg.Chat, m, logger)

	hub := websocket.NewHub(roomService, messageService, tracker, redisClient, m, logger)
	go hub.Run(ctx)

	validator := middleware.NewAuthServiceValidator(cfg.Auth.ServiceURL, cfg.Auth.JWTSecret, logger)
	authenticator := middleware.NewAuthenticator(validator, resolver, cfg.DevHeadersEnabled(), logger)
	if cfg.DevHeadersEnabled() {
		logger.Warn("⚠️  X-User-Id / X-User-Role identity headers are accepted")
	}

	r := router.Setup(router.Config{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		BasePath:       cfg.Server.BasePath,
		CORSOrigins:    cfg.Server.CORSOrigins,
		Authenticator:  authenticator,
		RoomService:    roomService,
		MessageService: messageService,
		Tracker:        tracker,
		Hub:            hub,
	})

	// Periodic gauges
	var dbStats job.DBStatser
	if sqlDB, err := db.DB(); err == nil {
		dbStats = sqlDB
	}
	scheduler, err := job.Schedule(cfg.Jobs.StatsCron, job.NewStatsJob(roomRepo, tracker, dbStats, m, logger), logger)
	if err != nil {
		logger.Fatal("Failed to schedule stats job", zap.Error(err))
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handlers.ProxyHeaders(r),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Cadet Chat Service started successfully",
			zap.String("address", srv.Addr),
			zap.String("swagger", fmt.Sprintf("http://localhost:%d/swagger/index.html", cfg.Server.Port)),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	<-scheduler.Stop().Done()
	// closes every socket
	stop()

	logger.Info("Server exited gracefully")
}

// initLogger initializes the zap logger with the specified level
func initLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      zapLevel == zapcore.DebugLevel,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return config.Build()
}
