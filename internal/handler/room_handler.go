package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/response"
	"cadet-chat-service/internal/service"
)

const ownChatsOnlyMessage = "You can only view your own chats."

type RoomHandler struct {
	roomService service.RoomService
	logger      *zap.Logger
}

func NewRoomHandler(roomService service.RoomService, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		logger:      logger,
	}
}

// CreateRoom godoc
// @Summary      Create a room
// @Description  Creates a direct or group room. A direct room between the same two users is reused.
// @Tags         rooms
// @Accept       json
// @Produce      json
// @Param        request body dto.CreateRoomRequest true "Room type, optional name and participants"
// @Success      201 {object} response.Envelope{data=dto.CreateRoomResponse} "Room created"
// @Success      200 {object} response.Envelope{data=dto.CreateRoomResponse} "Existing direct room returned"
// @Failure      400 {object} response.Envelope
// @Failure      403 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Router       /rooms [post]
// @Security     BearerAuth
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.SendError(c, http.StatusBadRequest, response.ErrCodeValidation, "Invalid request body")
		return
	}

	result, err := h.roomService.CreateRoom(c.Request.Context(), user.UserID, user.Role, &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	response.SendSuccess(c, status, result)
}

// GetChatUser godoc
// @Summary      Resolve a chat identity
// @Tags         users
// @Produce      json
// @Param        userId path int true "User ID"
// @Success      200 {object} response.Envelope{data=dto.ChatUserResponse}
// @Failure      400 {object} response.Envelope
// @Failure      404 {object} response.Envelope
// @Router       /users/{userId} [get]
// @Security     BearerAuth
func (h *RoomHandler) GetChatUser(c *gin.Context) {
	userID, ok := parseIDParam(c, "userId", "user ID")
	if !ok {
		return
	}

	user, err := h.roomService.GetChatUser(c.Request.Context(), userID)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, user)
}

// GetChatList godoc
// @Summary      Sidebar chat list
// @Description  Rooms of the caller merged with contacts they can start a direct chat with
// @Tags         users
// @Produce      json
// @Param        userId path int true "User ID (must be the caller)"
// @Param        filter query string false "all, unread, groups, cadets, suo, alumni, ano"
// @Success      200 {object} response.Envelope{data=[]dto.ChatListEntry}
// @Failure      403 {object} response.Envelope
// @Router       /users/{userId}/chats [get]
// @Security     BearerAuth
func (h *RoomHandler) GetChatList(c *gin.Context) {
	userID, ok := h.ownUserID(c)
	if !ok {
		return
	}

	entries, err := h.roomService.GetChatList(c.Request.Context(), userID, domain.ParseListFilter(c.Query("filter")))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, entries)
}

// GetContacts godoc
// @Summary      Contacts directory
// @Tags         users
// @Produce      json
// @Param        userId path int true "User ID (must be the caller)"
// @Param        filter query string false "all, cadets, suo, alumni, ano"
// @Success      200 {object} response.Envelope{data=[]dto.ContactResponse}
// @Failure      403 {object} response.Envelope
// @Router       /users/{userId}/contacts [get]
// @Security     BearerAuth
func (h *RoomHandler) GetContacts(c *gin.Context) {
	userID, ok := h.ownUserID(c)
	if !ok {
		return
	}

	contacts, err := h.roomService.GetContacts(c.Request.Context(), userID, domain.ParseListFilter(c.Query("filter")))
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	response.SendSuccess(c, http.StatusOK, contacts)
}

func (h *RoomHandler) ownUserID(c *gin.Context) (int64, bool) {
	user, ok := currentUser(c)
	if !ok {
		return 0, false
	}
	userID, ok := parseIDParam(c, "userId", "user ID")
	if !ok {
		return 0, false
	}
	if userID != user.UserID {
		response.SendError(c, http.StatusForbidden, response.ErrCodeForbidden, ownChatsOnlyMessage)
		return 0, false
	}
	return userID, true
}
