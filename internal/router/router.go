package router

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadet-chat-service/internal/handler"
	"cadet-chat-service/internal/metrics"
	"cadet-chat-service/internal/middleware"
	"cadet-chat-service/internal/presence"
	"cadet-chat-service/internal/service"
	"cadet-chat-service/internal/websocket"
)

// Config holds everything the HTTP surface needs. Redis may be nil.
type Config struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	BasePath       string
	CORSOrigins    string
	Authenticator  *middleware.Authenticator
	RoomService    service.RoomService
	MessageService service.MessageService
	Tracker        presence.Tracker
	Hub            *websocket.Hub
}

func Setup(cfg Config) *gin.Engine {
	r := gin.New()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(middleware.MetricsMiddleware(cfg.Metrics))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	roomHandler := handler.NewRoomHandler(cfg.RoomService, cfg.Logger)
	messageHandler := handler.NewMessageHandler(cfg.MessageService, cfg.Hub, cfg.Logger)
	presenceHandler := handler.NewPresenceHandler(cfg.Tracker, cfg.Logger)
	var sockets handler.ConnectionCounter
	if cfg.Hub != nil {
		sockets = cfg.Hub
	}
	healthHandler := handler.NewHealthHandler(cfg.DB, cfg.Redis, sockets, cfg.Logger)
	wsHandler := handler.NewWSHandler(cfg.Authenticator, cfg.Hub, cfg.Logger)

	// Health and metrics endpoints (no auth)
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)
	r.GET("/metrics", middleware.MetricsHandler(gatherer))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group(cfg.BasePath)
	{
		if cfg.BasePath != "" && cfg.BasePath != "/" {
			api.GET("/health", healthHandler.Health)
			api.GET("/ready", healthHandler.Ready)
			api.GET("/metrics", middleware.MetricsHandler(gatherer))
		}

		// the socket authenticates during the handshake
		api.GET("/ws", wsHandler.HandleWebSocket)

		authenticated := api.Group("")
		authenticated.Use(middleware.AuthMiddleware(cfg.Authenticator))
		{
			authenticated.GET("/users/:userId", roomHandler.GetChatUser)
			authenticated.GET("/users/:userId/chats", roomHandler.GetChatList)
			authenticated.GET("/users/:userId/contacts", roomHandler.GetContacts)
			authenticated.POST("/rooms", roomHandler.CreateRoom)

			authenticated.GET("/rooms/:roomId/messages", messageHandler.GetRoomMessages)
			authenticated.POST("/messages", messageHandler.SendMessage)
			authenticated.DELETE("/messages/:messageId", messageHandler.DeleteMessage)
			authenticated.PATCH("/read", messageHandler.MarkRead)

			authenticated.GET("/presence/:userId", presenceHandler.GetUserStatus)
		}
	}

	return r
}
