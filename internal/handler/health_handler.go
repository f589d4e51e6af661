package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadet-chat-service/internal/database"
)

const (
	serviceName  = "cadet-chat-service"
	readyTimeout = 3 * time.Second
)

// ConnectionCounter reports live realtime connections on this instance.
type ConnectionCounter interface {
	ConnectionCount() int
}

type dependencyCheck struct {
	name  string
	check func(ctx context.Context) error
}

type HealthHandler struct {
	checks    []dependencyCheck
	sockets   ConnectionCounter
	startedAt time.Time
	logger    *zap.Logger
}

// NewHealthHandler checks the database and, when configured, redis. redis and
// sockets may be nil.
func NewHealthHandler(db *gorm.DB, redisClient *redis.Client, sockets ConnectionCounter, logger *zap.Logger) *HealthHandler {
	checks := []dependencyCheck{{
		name:  "database",
		check: func(ctx context.Context) error { return database.Ping(ctx, db) },
	}}
	if redisClient != nil {
		checks = append(checks, dependencyCheck{
			name:  "redis",
			check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	}
	return &HealthHandler{
		checks:    checks,
		sockets:   sockets,
		startedAt: time.Now(),
		logger:    logger,
	}
}

// Health godoc
// @Summary  Liveness
// @Tags     health
// @Produce  json
// @Success  200 {object} map[string]interface{}
// @Router   /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"service":        serviceName,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Ready godoc
// @Summary  Readiness of the database, redis and the realtime gateway
// @Tags     health
// @Produce  json
// @Success  200 {object} map[string]interface{}
// @Failure  503 {object} map[string]interface{}
// @Router   /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	ready := true
	results := make(map[string]string, len(h.checks))
	for _, dep := range h.checks {
		if err := dep.check(ctx); err != nil {
			ready = false
			results[dep.name] = "unreachable"
			h.logger.Warn("⚠️  Readiness check failed", zap.String("dependency", dep.name), zap.Error(err))
			continue
		}
		results[dep.name] = "ok"
	}

	body := gin.H{
		"service": serviceName,
		"checks":  results,
	}
	if h.sockets != nil {
		body["connections"] = h.sockets.ConnectionCount()
	}

	if !ready {
		body["status"] = "not ready"
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	c.JSON(http.StatusOK, body)
}
