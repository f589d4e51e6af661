package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadet-chat-service/internal/database"
)

type fixedConnections int

func (n fixedConnections) ConnectionCount() int { return int(n) }

type readyBody struct {
	Status      string            `json:"status"`
	Service     string            `json:"service"`
	Checks      map[string]string `json:"checks"`
	Connections *int              `json:"connections"`
}

func openHealthDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(database.Options{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	return db
}

func serveHealth(h *HealthHandler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decodeReady(t *testing.T, w *httptest.ResponseRecorder) readyBody {
	t.Helper()
	var body readyBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	w := serveHealth(NewHealthHandler(openHealthDB(t), nil, nil, zap.NewNop()), "/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"service":"cadet-chat-service"`)
	assert.Contains(t, w.Body.String(), "uptime_seconds")
}

func TestReady_ReportsEachDependency(t *testing.T) {
	w := serveHealth(NewHealthHandler(openHealthDB(t), nil, fixedConnections(3), zap.NewNop()), "/ready")

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeReady(t, w)
	assert.Equal(t, "ready", body.Status)
	assert.Equal(t, map[string]string{"database": "ok"}, body.Checks, "redis is skipped when disabled")
	require.NotNil(t, body.Connections)
	assert.Equal(t, 3, *body.Connections)
}

func TestReady_DatabaseDown(t *testing.T) {
	db := openHealthDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	w := serveHealth(NewHealthHandler(db, nil, nil, zap.NewNop()), "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeReady(t, w)
	assert.Equal(t, "not ready", body.Status)
	assert.Equal(t, "unreachable", body.Checks["database"])
	assert.Nil(t, body.Connections)
}

func TestReady_RedisDownStillChecksDatabase(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	w := serveHealth(NewHealthHandler(openHealthDB(t), client, fixedConnections(0), zap.NewNop()), "/ready")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeReady(t, w)
	assert.Equal(t, map[string]string{"database": "ok", "redis": "unreachable"}, body.Checks)
}
