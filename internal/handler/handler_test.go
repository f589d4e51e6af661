package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/middleware"
	"cadet-chat-service/internal/model"
	"cadet-chat-service/internal/presence"
	"cadet-chat-service/internal/response"
)

// MockRoomService is a mock implementation of RoomService
type MockRoomService struct {
	CreateRoomFunc         func(ctx context.Context, creatorUserID int64, creatorRole domain.ChatRole, req *dto.CreateRoomRequest) (*dto.CreateRoomResponse, error)
	GetChatUserFunc        func(ctx context.Context, userID int64) (*dto.ChatUserResponse, error)
	GetChatListFunc        func(ctx context.Context, userID int64, filter domain.ListFilter) ([]dto.ChatListEntry, error)
	GetContactsFunc        func(ctx context.Context, userID int64, filter domain.ListFilter) ([]dto.ContactResponse, error)
	AssertRoomAccessFunc   func(ctx context.Context, roomID, userID int64) (*model.ChatParticipant, error)
	RoomParticipantIDsFunc func(ctx context.Context, roomID int64) ([]int64, error)
}

func (m *MockRoomService) CreateRoom(ctx context.Context, creatorUserID int64, creatorRole domain.ChatRole, req *dto.CreateRoomRequest) (*dto.CreateRoomResponse, error) {
	if m.CreateRoomFunc != nil {
		return m.CreateRoomFunc(ctx, creatorUserID, creatorRole, req)
	}
	return &dto.CreateRoomResponse{}, nil
}

func (m *MockRoomService) GetChatUser(ctx context.Context, userID int64) (*dto.ChatUserResponse, error) {
	if m.GetChatUserFunc != nil {
		return m.GetChatUserFunc(ctx, userID)
	}
	return &dto.ChatUserResponse{UserID: userID}, nil
}

func (m *MockRoomService) GetChatList(ctx context.Context, userID int64, filter domain.ListFilter) ([]dto.ChatListEntry, error) {
	if m.GetChatListFunc != nil {
		return m.GetChatListFunc(ctx, userID, filter)
	}
	return []dto.ChatListEntry{}, nil
}

func (m *MockRoomService) GetContacts(ctx context.Context, userID int64, filter domain.ListFilter) ([]dto.ContactResponse, error) {
	if m.GetContactsFunc != nil {
		return m.GetContactsFunc(ctx, userID, filter)
	}
	return []dto.ContactResponse{}, nil
}

func (m *MockRoomService) AssertRoomAccess(ctx context.Context, roomID, userID int64) (*model.ChatParticipant, error) {
	if m.AssertRoomAccessFunc != nil {
		return m.AssertRoomAccessFunc(ctx, roomID, userID)
	}
	return &model.ChatParticipant{RoomID: roomID, UserID: userID}, nil
}

func (m *MockRoomService) RoomParticipantIDs(ctx context.Context, roomID int64) ([]int64, error) {
	if m.RoomParticipantIDsFunc != nil {
		return m.RoomParticipantIDsFunc(ctx, roomID)
	}
	return nil, nil
}

// MockMessageService is a mock implementation of MessageService
type MockMessageService struct {
	GetRoomMessagesFunc   func(ctx context.Context, roomID, userID int64, limit int, beforeMessageID *int64) (*dto.MessagePageResponse, error)
	SendMessageFunc       func(ctx context.Context, senderUserID int64, senderRole domain.ChatRole, req *dto.SendMessageRequest) (*dto.MessageResponse, error)
	MarkRoomAsReadFunc    func(ctx context.Context, roomID, userID int64, upToMessageID *int64) (*dto.ReadResponse, error)
	SoftDeleteMessageFunc func(ctx context.Context, messageID, requesterUserID int64) (*dto.DeleteMessageResponse, error)
}

func (m *MockMessageService) GetRoomMessages(ctx context.Context, roomID, userID int64, limit int, beforeMessageID *int64) (*dto.MessagePageResponse, error) {
	if m.GetRoomMessagesFunc != nil {
		return m.GetRoomMessagesFunc(ctx, roomID, userID, limit, beforeMessageID)
	}
	return &dto.MessagePageResponse{RoomID: roomID}, nil
}

func (m *MockMessageService) SendMessage(ctx context.Context, senderUserID int64, senderRole domain.ChatRole, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	if m.SendMessageFunc != nil {
		return m.SendMessageFunc(ctx, senderUserID, senderRole, req)
	}
	return &dto.MessageResponse{RoomID: req.RoomID, Body: req.Body}, nil
}

func (m *MockMessageService) MarkRoomAsRead(ctx context.Context, roomID, userID int64, upToMessageID *int64) (*dto.ReadResponse, error) {
	if m.MarkRoomAsReadFunc != nil {
		return m.MarkRoomAsReadFunc(ctx, roomID, userID, upToMessageID)
	}
	return &dto.ReadResponse{RoomID: roomID, UserID: userID}, nil
}

func (m *MockMessageService) SoftDeleteMessage(ctx context.Context, messageID, requesterUserID int64) (*dto.DeleteMessageResponse, error) {
	if m.SoftDeleteMessageFunc != nil {
		return m.SoftDeleteMessageFunc(ctx, messageID, requesterUserID)
	}
	return &dto.DeleteMessageResponse{MessageID: messageID, Deleted: true}, nil
}

// recordingBroadcaster captures fan-out calls
type recordingBroadcaster struct {
	newMessages []*dto.MessageResponse
	deleted     []*dto.DeleteMessageResponse
	reads       []*dto.ReadResponse
}

func (b *recordingBroadcaster) BroadcastNewMessage(ctx context.Context, msg *dto.MessageResponse) {
	b.newMessages = append(b.newMessages, msg)
}

func (b *recordingBroadcaster) BroadcastMessageDeleted(ctx context.Context, deleted *dto.DeleteMessageResponse) {
	b.deleted = append(b.deleted, deleted)
}

func (b *recordingBroadcaster) BroadcastReadUpdate(ctx context.Context, read *dto.ReadResponse) {
	b.reads = append(b.reads, read)
}

type envelopeBody struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorBody `json:"error"`
}

func setupHandlerRouter(rooms *MockRoomService, messages *MockMessageService, broadcaster *recordingBroadcaster) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	auth := middleware.NewAuthenticator(nil, nil, true, logger)
	roomHandler := NewRoomHandler(rooms, logger)
	messageHandler := NewMessageHandler(messages, broadcaster, logger)
	presenceHandler := NewPresenceHandler(presence.NewMemoryTracker(), logger)

	r := gin.New()
	api := r.Group("/api/chat", middleware.AuthMiddleware(auth))
	api.GET("/users/:userId", roomHandler.GetChatUser)
	api.GET("/users/:userId/chats", roomHandler.GetChatList)
	api.GET("/users/:userId/contacts", roomHandler.GetContacts)
	api.POST("/rooms", roomHandler.CreateRoom)
	api.GET("/rooms/:roomId/messages", messageHandler.GetRoomMessages)
	api.POST("/messages", messageHandler.SendMessage)
	api.DELETE("/messages/:messageId", messageHandler.DeleteMessage)
	api.PATCH("/read", messageHandler.MarkRead)
	api.GET("/presence/:userId", presenceHandler.GetUserStatus)
	return r
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, userID int64, role string, body interface{}) (*httptest.ResponseRecorder, envelopeBody) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-User-Id", strconv.FormatInt(userID, 10))
		req.Header.Set("X-User-Role", role)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelopeBody
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestRoomHandler_CreateRoom(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		serviceResult  *dto.CreateRoomResponse
		serviceErr     error
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "new room",
			body:           dto.CreateRoomRequest{RoomType: "direct", ParticipantUserIDs: []int64{2}},
			serviceResult:  &dto.CreateRoomResponse{Room: dto.RoomResponse{RoomID: 10}},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "reused direct room",
			body:           dto.CreateRoomRequest{RoomType: "direct", ParticipantUserIDs: []int64{2}},
			serviceResult:  &dto.CreateRoomResponse{Room: dto.RoomResponse{RoomID: 10}, Reused: true},
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing room type",
			body:           map[string]interface{}{"participant_user_ids": []int64{2}},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   response.ErrCodeValidation,
		},
		{
			name:           "disallowed pair",
			body:           dto.CreateRoomRequest{RoomType: "direct", ParticipantUserIDs: []int64{2}},
			serviceErr:     response.NewForbiddenError("Direct chat not allowed between cadet and ano."),
			expectedStatus: http.StatusForbidden,
			expectedCode:   response.ErrCodeForbidden,
		},
		{
			name:           "storage failure is sanitized",
			body:           dto.CreateRoomRequest{RoomType: "direct", ParticipantUserIDs: []int64{2}},
			serviceErr:     response.NewInternalError("create room", errors.New("pq: connection reset")),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   response.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCreator int64
			var gotRole domain.ChatRole
			rooms := &MockRoomService{
				CreateRoomFunc: func(ctx context.Context, creatorUserID int64, creatorRole domain.ChatRole, req *dto.CreateRoomRequest) (*dto.CreateRoomResponse, error) {
					gotCreator, gotRole = creatorUserID, creatorRole
					return tt.serviceResult, tt.serviceErr
				},
			}
			r := setupHandlerRouter(rooms, &MockMessageService{}, &recordingBroadcaster{})

			w, env := doRequest(t, r, http.MethodPost, "/api/chat/rooms", 1, "cadet", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.expectedCode, env.Error.Code)
				if tt.expectedCode == response.ErrCodeInternal {
					assert.Equal(t, response.InternalMessage, env.Error.Message)
				}
				return
			}
			assert.True(t, env.Success)
			assert.Equal(t, int64(1), gotCreator)
			assert.Equal(t, domain.ChatRoleCadet, gotRole)
		})
	}
}

func TestRoomHandler_RequiresAuthentication(t *testing.T) {
	r := setupHandlerRouter(&MockRoomService{}, &MockMessageService{}, &recordingBroadcaster{})

	w, env := doRequest(t, r, http.MethodGet, "/api/chat/users/1/chats", 0, "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "Unauthorized. Provide a valid Bearer token.", env.Error.Message)
}

func TestRoomHandler_GetChatListOnlyForSelf(t *testing.T) {
	var gotFilter domain.ListFilter
	rooms := &MockRoomService{
		GetChatListFunc: func(ctx context.Context, userID int64, filter domain.ListFilter) ([]dto.ChatListEntry, error) {
			gotFilter = filter
			return []dto.ChatListEntry{{EntryID: "room:1"}}, nil
		},
	}
	r := setupHandlerRouter(rooms, &MockMessageService{}, &recordingBroadcaster{})

	w, env := doRequest(t, r, http.MethodGet, "/api/chat/users/2/chats", 1, "cadet", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You can only view your own chats.", env.Error.Message)

	w, _ = doRequest(t, r, http.MethodGet, "/api/chat/users/2/contacts", 1, "cadet", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = doRequest(t, r, http.MethodGet, "/api/chat/users/1/chats?filter=UNREAD", 1, "cadet", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.FilterUnread, gotFilter)

	var entries []dto.ChatListEntry
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Len(t, entries, 1)

	w, _ = doRequest(t, r, http.MethodGet, "/api/chat/users/abc/chats", 1, "cadet", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandler_GetChatUserNotFound(t *testing.T) {
	rooms := &MockRoomService{
		GetChatUserFunc: func(ctx context.Context, userID int64) (*dto.ChatUserResponse, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	r := setupHandlerRouter(rooms, &MockMessageService{}, &recordingBroadcaster{})

	w, env := doRequest(t, r, http.MethodGet, "/api/chat/users/42", 1, "cadet", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, response.ErrCodeNotFound, env.Error.Code)
}

func TestMessageHandler_GetRoomMessagesParsesQuery(t *testing.T) {
	var gotLimit int
	var gotBefore *int64
	messages := &MockMessageService{
		GetRoomMessagesFunc: func(ctx context.Context, roomID, userID int64, limit int, beforeMessageID *int64) (*dto.MessagePageResponse, error) {
			gotLimit, gotBefore = limit, beforeMessageID
			return &dto.MessagePageResponse{RoomID: roomID}, nil
		},
	}
	r := setupHandlerRouter(&MockRoomService{}, messages, &recordingBroadcaster{})

	w, _ := doRequest(t, r, http.MethodGet, "/api/chat/rooms/5/messages?limit=20&before_message_id=99", 1, "cadet", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, gotLimit)
	require.NotNil(t, gotBefore)
	assert.Equal(t, int64(99), *gotBefore)

	w, _ = doRequest(t, r, http.MethodGet, "/api/chat/rooms/5/messages", 1, "cadet", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, gotLimit)
	assert.Nil(t, gotBefore)

	w, _ = doRequest(t, r, http.MethodGet, "/api/chat/rooms/5/messages?limit=ten", 1, "cadet", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doRequest(t, r, http.MethodGet, "/api/chat/rooms/5/messages?before_message_id=-1", 1, "cadet", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessageHandler_SendMessageBroadcasts(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	r := setupHandlerRouter(&MockRoomService{}, &MockMessageService{}, broadcaster)

	w, env := doRequest(t, r, http.MethodPost, "/api/chat/messages", 1, "cadet",
		dto.SendMessageRequest{RoomID: 3, Body: "Parade at 0600"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	require.Len(t, broadcaster.newMessages, 1)
	assert.Equal(t, "Parade at 0600", broadcaster.newMessages[0].Body)
}

func TestMessageHandler_FailedSendDoesNotBroadcast(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	messages := &MockMessageService{
		SendMessageFunc: func(ctx context.Context, senderUserID int64, senderRole domain.ChatRole, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
			return nil, response.NewForbiddenError("You are not a participant in this room.")
		},
	}
	r := setupHandlerRouter(&MockRoomService{}, messages, broadcaster)

	w, _ := doRequest(t, r, http.MethodPost, "/api/chat/messages", 1, "cadet", dto.SendMessageRequest{RoomID: 3, Body: "hi"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, broadcaster.newMessages)

	w, _ = doRequest(t, r, http.MethodPost, "/api/chat/messages", 1, "cadet", map[string]string{"body": "no room"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessageHandler_MarkReadAndDelete(t *testing.T) {
	broadcaster := &recordingBroadcaster{}
	var gotUpTo *int64
	messages := &MockMessageService{
		MarkRoomAsReadFunc: func(ctx context.Context, roomID, userID int64, upToMessageID *int64) (*dto.ReadResponse, error) {
			gotUpTo = upToMessageID
			return &dto.ReadResponse{RoomID: roomID, UserID: userID, MarkedCount: 2}, nil
		},
	}
	r := setupHandlerRouter(&MockRoomService{}, messages, broadcaster)

	upTo := int64(8)
	w, _ := doRequest(t, r, http.MethodPatch, "/api/chat/read", 2, "ano", dto.MarkReadRequest{RoomID: 3, UpToMessageID: &upTo})
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, gotUpTo)
	assert.Equal(t, upTo, *gotUpTo)
	require.Len(t, broadcaster.reads, 1)
	assert.Equal(t, int64(2), broadcaster.reads[0].UserID)

	w, _ = doRequest(t, r, http.MethodDelete, "/api/chat/messages/8", 2, "ano", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, broadcaster.deleted, 1)
	assert.Equal(t, int64(8), broadcaster.deleted[0].MessageID)

	w, _ = doRequest(t, r, http.MethodDelete, "/api/chat/messages/zero", 2, "ano", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPresenceHandler_GetUserStatus(t *testing.T) {
	r := setupHandlerRouter(&MockRoomService{}, &MockMessageService{}, &recordingBroadcaster{})

	w, env := doRequest(t, r, http.MethodGet, "/api/chat/presence/7", 1, "cadet", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var status dto.PresenceResponse
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.Equal(t, dto.PresenceResponse{UserID: 7, Online: false}, status)
}
