// internal/handler/ws_handler.go
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cadet-chat-service/internal/middleware"
	"cadet-chat-service/internal/response"
	"cadet-chat-service/internal/websocket"
)

type WSHandler struct {
	auth   *middleware.Authenticator
	hub    *websocket.Hub
	logger *zap.Logger
}

func NewWSHandler(auth *middleware.Authenticator, hub *websocket.Hub, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		auth:   auth,
		hub:    hub,
		logger: logger,
	}
}

// HandleWebSocket godoc
// @Summary      Realtime gateway
// @Description  Authenticates once, then upgrades. Frames are {"event": name, "data": {...}}.
// @Tags         websocket
// @Param        token query string false "JWT access token (or Authorization header)"
// @Success      101 {string} string "Switching Protocols"
// @Failure      401 {object} response.Envelope
// @Router       /ws [get]
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	user, err := h.auth.Authenticate(c.Request.Context(), c.Request, true)
	if err != nil {
		h.logger.Debug("Rejected socket handshake", zap.String("client_ip", c.ClientIP()))
		response.SendError(c, http.StatusUnauthorized, response.ErrCodeUnauthorized, middleware.UnauthorizedMessage)
		return
	}

	h.hub.ServeWS(c.Writer, c.Request, user.UserID, user.Role)
}
