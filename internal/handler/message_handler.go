// internal/handler/message_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/response"
	"cadet-chat-service/internal/service"
	"cadet-chat-service/internal/websocket"
)

type MessageHandler struct {
	messageService service.MessageService
	broadcaster    websocket.Broadcaster
	logger         *zap.Logger
}

func NewMessageHandler(messageService service.MessageService, broadcaster websocket.Broadcaster, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		messageService: messageService,
		broadcaster:    broadcaster,
		logger:         logger,
	}
}

// GetRoomMessages godoc
// @Summary      Room history
// @Description  One page of messages in ascending order. Follow next_before_message_id for older pages.
// @Tags         messages
// @Produce      json
// @Param        roomId path int true "Room ID"
// @Param        limit query int false "Page size (default 50, max 100)"
// @Param        before_message_id query int false "Return messages older than this id"
// @Success      200 {object} response.Envelope{data=dto.MessagePageResponse}
// @Failure      400 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Router       /rooms/{roomId}/messages [get]
// @Security     BearerAuth
func (h *MessageHandler) GetRoomMessages(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := parseIDParam(c, "roomId", "room ID")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid limit.")
			return
		}
		limit = parsed
	}

	var before *int64
	if raw := c.Query("before_message_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid before_message_id.")
			return
		}
		before = &parsed
	}

	page, err := h.messageService.GetRoomMessages(c.Request.Context(), roomID, user.UserID, limit, before)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, page)
}

// SendMessage godoc
// @Summary      Send a message
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        request body dto.SendMessageRequest true "Room, body, type and metadata"
// @Success      201 {object} response.Envelope{data=dto.MessageResponse}
// @Failure      400 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Router       /messages [post]
// @Security     BearerAuth
func (h *MessageHandler) SendMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	msg, err := h.messageService.SendMessage(c.Request.Context(), user.UserID, user.Role, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	h.broadcaster.BroadcastNewMessage(c.Request.Context(), msg)
	response.SendSuccess(c, http.StatusCreated, msg)
}

// MarkRead godoc
// @Summary      Mark a room as read
// @Description  Without up_to_message_id, marks everything present when the call starts
// @Tags         messages
// @Accept       json
// @Produce      json
// @Param        request body dto.MarkReadRequest true "Room and optional upper bound"
// @Success      200 {object} response.Envelope{data=dto.ReadResponse}
// @Failure      400 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Router       /read [patch]
// @Security     BearerAuth
func (h *MessageHandler) MarkRead(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	read, err := h.messageService.MarkRoomAsRead(c.Request.Context(), req.RoomID, user.UserID, req.UpToMessageID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	h.broadcaster.BroadcastReadUpdate(c.Request.Context(), read)
	response.SendSuccess(c, http.StatusOK, read)
}

// DeleteMessage godoc
// @Summary      Delete a message
// @Description  Soft-deletes a message. Allowed for the sender and room admins.
// @Tags         messages
// @Produce      json
// @Param        messageId path int true "Message ID"
// @Success      200 {object} response.Envelope{data=dto.DeleteMessageResponse}
// @Failure      403 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Router       /messages/{messageId} [delete]
// @Security     BearerAuth
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	messageID, ok := parseIDParam(c, "messageId", "message ID")
	if !ok {
		return
	}

	deleted, err := h.messageService.SoftDeleteMessage(c.Request.Context(), messageID, user.UserID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	h.broadcaster.BroadcastMessageDeleted(c.Request.Context(), deleted)
	response.SendSuccess(c, http.StatusOK, deleted)
}
