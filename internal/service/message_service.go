package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cadet-chat-service/internal/config"
	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/identity"
	"cadet-chat-service/internal/metrics"
	"cadet-chat-service/internal/model"
	"cadet-chat-service/internal/repository"
	"cadet-chat-service/internal/response"
)

// MessageService defines message history, sending, read tracking and deletion
type MessageService interface {
	GetRoomMessages(ctx context.Context, roomID, userID int64, limit int, beforeMessageID *int64) (*dto.MessagePageResponse, error)
	SendMessage(ctx context.Context, senderUserID int64, senderRole domain.ChatRole, req *dto.SendMessageRequest) (*dto.MessageResponse, error)
	MarkRoomAsRead(ctx context.Context, roomID, userID int64, upToMessageID *int64) (*dto.ReadResponse, error)
	SoftDeleteMessage(ctx context.Context, messageID, requesterUserID int64) (*dto.DeleteMessageResponse, error)
}

type messageServiceImpl struct {
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	resolver    *identity.Resolver
	chatConfig  config.ChatConfig
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewMessageService creates a new instance of MessageService
func NewMessageService(
	roomRepo repository.RoomRepository,
	messageRepo repository.MessageRepository,
	resolver *identity.Resolver,
	chatConfig config.ChatConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) MessageService {
	return &messageServiceImpl{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		resolver:    resolver,
		chatConfig:  chatConfig,
		metrics:     m,
		logger:      logger,
	}
}

// ClampLimit applies the default page size to zero and bounds the rest to [1, max].
func ClampLimit(limit, defaultLimit, maxLimit int) int {
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 1 {
		return 1
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}

// GetRoomMessages returns one page of history in chronological order. Pages
// walk backwards through next_before_message_id.
func (s *messageServiceImpl) GetRoomMessages(ctx context.Context, roomID, userID int64, limit int, beforeMessageID *int64) (*dto.MessagePageResponse, error) {
	if _, err := assertRoomAccess(ctx, s.roomRepo, roomID, userID); err != nil {
		return nil, err
	}

	limit = ClampLimit(limit, s.chatConfig.DefaultPageSize, s.chatConfig.MaxPageSize)

	messages, err := s.messageRepo.ListMessages(ctx, roomID, beforeMessageID, limit+1)
	if err != nil {
		return nil, response.NewInternalError("list messages", err)
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	// newest first from the store
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	names := s.senderNames(ctx, messages)
	result := make([]dto.MessageResponse, 0, len(messages))
	for i := range messages {
		result = append(result, toMessageResponse(&messages[i], senderName(names, messages[i].SenderUserID)))
	}

	page := &dto.MessagePageResponse{
		RoomID:   roomID,
		Messages: result,
		Pagination: dto.Pagination{
			Limit:   limit,
			HasMore: hasMore,
		},
	}
	if hasMore && len(messages) > 0 {
		oldest := messages[0].MessageID
		page.Pagination.NextBeforeMessageID = &oldest
	}
	return page, nil
}

// SendMessage stores a message from a room member. The sender role must match
// the role captured when the sender joined.
func (s *messageServiceImpl) SendMessage(ctx context.Context, senderUserID int64, senderRole domain.ChatRole, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	body := strings.TrimSpace(req.Body)
	if body == "" {
		return nil, response.NewValidationError("Message body is required.")
	}
	if utf8.RuneCountInString(body) > s.chatConfig.MaxMessageLength {
		return nil, response.NewValidationError(fmt.Sprintf("Message exceeds %d characters.", s.chatConfig.MaxMessageLength))
	}

	messageType := domain.MessageType(strings.ToLower(strings.TrimSpace(req.MessageType)))
	if messageType == "" {
		messageType = domain.MessageTypeText
	}
	if !messageType.IsValid() {
		return nil, response.NewValidationError("Invalid message type.")
	}

	participant, err := assertRoomAccess(ctx, s.roomRepo, req.RoomID, senderUserID)
	if err != nil {
		return nil, err
	}
	if participant.ParticipantRole != senderRole {
		return nil, response.NewForbiddenError("Sender role does not match room participant role.")
	}

	role := participant.ParticipantRole
	message := &model.Message{
		RoomID:       req.RoomID,
		SenderUserID: &senderUserID,
		SenderRole:   &role,
		MessageType:  messageType,
		Body:         body,
		Metadata:     metadataJSON(req.Metadata),
	}

	if err := s.messageRepo.CreateMessage(ctx, message); err != nil {
		return nil, response.NewInternalError("create message", err)
	}

	s.metrics.MessageSent(string(messageType))
	s.logger.Debug("Message sent",
		zap.Int64("room_id", message.RoomID),
		zap.Int64("message_id", message.MessageID),
		zap.Int64("sender_user_id", senderUserID))

	names := s.senderNames(ctx, []model.Message{*message})
	resp := toMessageResponse(message, senderName(names, message.SenderUserID))
	return &resp, nil
}

// MarkRoomAsRead writes receipts for unread messages from others. Without an
// explicit bound it stops at the newest message present when the call starts.
func (s *messageServiceImpl) MarkRoomAsRead(ctx context.Context, roomID, userID int64, upToMessageID *int64) (*dto.ReadResponse, error) {
	if upToMessageID != nil && *upToMessageID <= 0 {
		return nil, response.NewValidationError("Invalid up_to_message_id.")
	}
	if _, err := assertRoomAccess(ctx, s.roomRepo, roomID, userID); err != nil {
		return nil, err
	}

	result := &dto.ReadResponse{RoomID: roomID, UserID: userID}

	bound := upToMessageID
	if bound == nil {
		snapshot, err := s.messageRepo.MaxMessageID(ctx, roomID)
		if err != nil {
			return nil, response.NewInternalError("snapshot room", err)
		}
		if snapshot == nil {
			return result, nil
		}
		bound = snapshot
	}

	marked, lastRead, err := s.messageRepo.MarkRead(ctx, roomID, userID, bound)
	if err != nil {
		return nil, response.NewInternalError("mark read", err)
	}

	s.metrics.MessagesMarkedRead(marked)
	result.MarkedCount = marked
	result.LastReadMessageID = lastRead
	return result, nil
}

// SoftDeleteMessage lets the sender or a room admin delete a message. Both must
// still belong to a live room.
func (s *messageServiceImpl) SoftDeleteMessage(ctx context.Context, messageID, requesterUserID int64) (*dto.DeleteMessageResponse, error) {
	message, err := s.messageRepo.FindMessage(ctx, messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Message not found.")
		}
		return nil, response.NewInternalError("find message", err)
	}

	participant, err := assertRoomAccess(ctx, s.roomRepo, message.RoomID, requesterUserID)
	if err != nil {
		return nil, err
	}

	isSender := message.SenderUserID != nil && *message.SenderUserID == requesterUserID
	if !isSender && !participant.IsAdmin {
		return nil, response.NewForbiddenError("You are not allowed to delete this message.")
	}

	if err := s.messageRepo.SoftDelete(ctx, messageID); err != nil {
		return nil, response.NewInternalError("delete message", err)
	}

	// pointer repair runs after the delete commits and never fails the call
	if err := s.messageRepo.RecomputeLastMessage(ctx, message.RoomID, messageID); err != nil {
		s.logger.Warn("⚠️  Failed to recompute last message",
			zap.Int64("room_id", message.RoomID),
			zap.Int64("message_id", messageID),
			zap.Error(err))
	}

	s.metrics.MessageDeleted()
	return &dto.DeleteMessageResponse{
		MessageID: messageID,
		RoomID:    message.RoomID,
		Deleted:   true,
	}, nil
}

// senderNames resolves display names for the senders of messages. Lookup
// failures fall back to generated names.
func (s *messageServiceImpl) senderNames(ctx context.Context, messages []model.Message) map[int64]string {
	seen := make(map[int64]bool)
	ids := make([]int64, 0)
	for _, m := range messages {
		if m.SenderUserID != nil && !seen[*m.SenderUserID] {
			seen[*m.SenderUserID] = true
			ids = append(ids, *m.SenderUserID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	names, err := s.resolver.DisplayNames(ctx, ids)
	if err != nil {
		s.logger.Warn("Failed to resolve sender names", zap.Int("senders", len(ids)), zap.Error(err))
		return nil
	}
	return names
}

func senderName(names map[int64]string, senderUserID *int64) string {
	if senderUserID == nil {
		return "System"
	}
	return nameOrDefault(names, *senderUserID)
}

func metadataJSON(raw json.RawMessage) datatypes.JSON {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return datatypes.JSON(raw)
}
