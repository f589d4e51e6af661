package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/presence"
	"cadet-chat-service/internal/response"
)

type PresenceHandler struct {
	tracker presence.Tracker
	logger  *zap.Logger
}

func NewPresenceHandler(tracker presence.Tracker, logger *zap.Logger) *PresenceHandler {
	return &PresenceHandler{
		tracker: tracker,
		logger:  logger,
	}
}

// GetUserStatus godoc
// @Summary      Presence lookup
// @Description  Whether the user currently holds a socket connection. Presence is a hint, not durable state.
// @Tags         presence
// @Produce      json
// @Param        userId path int true "User ID"
// @Success      200 {object} response.Envelope{data=dto.PresenceResponse}
// @Failure      400 {object} response.Envelope
// @Router       /presence/{userId} [get]
// @Security     BearerAuth
func (h *PresenceHandler) GetUserStatus(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId", "user ID")
	if !ok {
		return
	}

	response.SendSuccess(c, http.StatusOK, dto.PresenceResponse{
		UserID: userID,
		Online: h.tracker.IsOnline(c.Request.Context(), userID),
	})
}
