package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cadet-chat-service/internal/config"
	"cadet-chat-service/internal/database"
	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/identity"
	"cadet-chat-service/internal/metrics"
	"cadet-chat-service/internal/middleware"
	"cadet-chat-service/internal/model"
	"cadet-chat-service/internal/presence"
	"cadet-chat-service/internal/repository"
	"cadet-chat-service/internal/response"
	"cadet-chat-service/internal/service"
	"cadet-chat-service/internal/websocket"
)

const basePath = "/api/chat"

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Options{Driver: "sqlite", DSN: ":memory:", MigrateDirectory: true})
	require.NoError(t, err)

	college := int64(1)
	require.NoError(t, db.Create(&[]model.User{
		{UserID: 1, Username: "cadet", Role: "CADET", CollegeID: &college},
		{UserID: 2, Username: "Major Kapoor", Role: "ANO", CollegeID: &college},
	}).Error)

	policy, err := domain.NewPairPolicy(config.DefaultDirectAllowedPairs)
	require.NoError(t, err)

	logger := zap.NewNop()
	registry := prometheus.NewRegistry()
	m := metrics.NewWithRegistry(registry, logger)
	chatConfig := config.Default().Chat

	resolver := identity.NewResolver(identity.NewDBDirectory(db))
	roomRepo := repository.NewRoomRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	tracker := presence.NewMemoryTracker()

	rooms := service.NewRoomService(roomRepo, messageRepo, resolver, policy, tracker, chatConfig, m, logger)
	messages := service.NewMessageService(roomRepo, messageRepo, resolver, chatConfig, m, logger)
	hub := websocket.NewHub(rooms, messages, tracker, nil, m, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	return Setup(Config{
		DB:             db,
		Logger:         logger,
		Metrics:        m,
		Gatherer:       registry,
		BasePath:       basePath,
		CORSOrigins:    "*",
		Authenticator:  middleware.NewAuthenticator(middleware.NewAuthServiceValidator("", "secret", logger), resolver, true, logger),
		RoomService:    rooms,
		MessageService: messages,
		Tracker:        tracker,
		Hub:            hub,
	})
}

func serve(r *gin.Engine, method, path string, userID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMetricsEndpointNoAuth(t *testing.T) {
	r := setupTestRouter(t)

	for _, path := range []string{"/metrics", basePath + "/metrics"} {
		w := serve(r, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	}
}

func TestHealthAndReady(t *testing.T) {
	r := setupTestRouter(t)

	w := serve(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cadet-chat-service")

	w = serve(r, http.MethodGet, basePath+"/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready")
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	r := setupTestRouter(t)

	routes := []struct{ method, path string }{
		{http.MethodGet, basePath + "/users/1"},
		{http.MethodGet, basePath + "/users/1/chats"},
		{http.MethodPost, basePath + "/rooms"},
		{http.MethodGet, basePath + "/rooms/1/messages"},
		{http.MethodPost, basePath + "/messages"},
		{http.MethodPatch, basePath + "/read"},
		{http.MethodGet, basePath + "/presence/1"},
	}

	for _, route := range routes {
		w := serve(r, route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)

		var env response.Envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		require.NotNil(t, env.Error)
		assert.Equal(t, middleware.UnauthorizedMessage, env.Error.Message)
	}
}

func TestChatFlowThroughRouter(t *testing.T) {
	r := setupTestRouter(t)

	// role comes from the directory when the header omits it
	w := serve(r, http.MethodPost, basePath+"/rooms", "1", dto.CreateRoomRequest{
		RoomType:           "direct",
		ParticipantUserIDs: []int64{2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(r, http.MethodPost, basePath+"/rooms", "2", dto.CreateRoomRequest{
		RoomType:           "direct",
		ParticipantUserIDs: []int64{1},
	})
	assert.Equal(t, http.StatusOK, w.Code, "the same pair reuses the room")

	var created struct {
		Data dto.CreateRoomResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.True(t, created.Data.Reused)
	assert.Equal(t, "1_2", *created.Data.Room.DirectKey)

	w = serve(r, http.MethodPost, basePath+"/messages", "2", dto.SendMessageRequest{
		RoomID: created.Data.Room.RoomID,
		Body:   "Report at 0700",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = serve(r, http.MethodGet, basePath+"/users/1/chats?filter=unread", "1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var list struct {
		Data []dto.ChatListEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, "room", list.Data[0].ItemType)
	assert.Equal(t, int64(1), list.Data[0].UnreadCount)

	w = serve(r, http.MethodGet, basePath+"/users/2/chats", "1", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestWebSocketHandshake(t *testing.T) {
	server := httptest.NewServer(setupTestRouter(t))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + basePath + "/ws"

	_, resp, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := gorillaws.DefaultDialer.Dial(url+"?user_id=1&role=cadet", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var frame websocket.Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, websocket.EventConnected, frame.Event)
}

func TestMarkReadRejectsNonPositiveBound(t *testing.T) {
	r := setupTestRouter(t)

	w := serve(r, http.MethodPost, basePath+"/rooms", "1", dto.CreateRoomRequest{
		RoomType:           "direct",
		ParticipantUserIDs: []int64{2},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Data dto.CreateRoomResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = serve(r, http.MethodPatch, basePath+"/read", "1", map[string]interface{}{
		"room_id":          created.Data.Room.RoomID,
		"up_to_message_id": 0,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	assert.Equal(t, response.ErrCodeValidation, env.Error.Code)
	assert.Equal(t, "Invalid up_to_message_id.", env.Error.Message)
}
