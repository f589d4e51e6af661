package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"cadet-chat-service/internal/config"
	"cadet-chat-service/internal/database"
	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/identity"
	"cadet-chat-service/internal/metrics"
	"cadet-chat-service/internal/model"
	"cadet-chat-service/internal/presence"
	"cadet-chat-service/internal/repository"
	"cadet-chat-service/internal/response"
)

// RoomService defines room creation, the sidebar views and room access checks
type RoomService interface {
	CreateRoom(ctx context.Context, creatorUserID int64, creatorRole domain.ChatRole, req *dto.CreateRoomRequest) (*dto.CreateRoomResponse, error)
	GetChatUser(ctx context.Context, userID int64) (*dto.ChatUserResponse, error)
	GetChatList(ctx context.Context, userID int64, filter domain.ListFilter) ([]dto.ChatListEntry, error)
	GetContacts(ctx context.Context, userID int64, filter domain.ListFilter) ([]dto.ContactResponse, error)

	AssertRoomAccess(ctx context.Context, roomID, userID int64) (*model.ChatParticipant, error)
	RoomParticipantIDs(ctx context.Context, roomID int64) ([]int64, error)
}

type roomServiceImpl struct {
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	resolver    *identity.Resolver
	policy      *domain.PairPolicy
	presence    presence.Tracker
	chatConfig  config.ChatConfig
	metrics     *metrics.Metrics
	logger      *zap.Logger
}

// NewRoomService creates a new instance of RoomService
func NewRoomService(
	roomRepo repository.RoomRepository,
	messageRepo repository.MessageRepository,
	resolver *identity.Resolver,
	policy *domain.PairPolicy,
	tracker presence.Tracker,
	chatConfig config.ChatConfig,
	m *metrics.Metrics,
	logger *zap.Logger,
) RoomService {
	return &roomServiceImpl{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		resolver:    resolver,
		policy:      policy,
		presence:    tracker,
		chatConfig:  chatConfig,
		metrics:     m,
		logger:      logger,
	}
}

// CreateRoom creates a group room, or returns the single live direct room for
// a user pair, creating it on first contact.
func (s *roomServiceImpl) CreateRoom(ctx context.Context, creatorUserID int64, creatorRole domain.ChatRole, req *dto.CreateRoomRequest) (*dto.CreateRoomResponse, error) {
	roomType := domain.RoomType(strings.ToLower(strings.TrimSpace(req.RoomType)))
	if !roomType.IsValid() {
		return nil, response.NewValidationError("Invalid room type.")
	}
	if !creatorRole.IsValid() {
		return nil, response.NewValidationError("Invalid creator role.")
	}

	userIDs := mergeParticipants(creatorUserID, req.ParticipantUserIDs)
	if roomType == domain.RoomTypeDirect && len(userIDs) != 2 {
		return nil, response.NewValidationError("Direct room must contain exactly 2 participants.")
	}
	if roomType == domain.RoomTypeGroup && len(userIDs) < 2 {
		return nil, response.NewValidationError("Group room must contain at least 2 participants.")
	}

	roles, err := s.resolver.ResolveRoles(ctx, userIDs)
	if err != nil {
		return nil, err
	}
	if len(roles) != len(userIDs) {
		return nil, response.NewNotFoundError("One or more participants do not exist.")
	}
	if roles[creatorUserID] != creatorRole {
		return nil, response.NewForbiddenError("Creator role does not match authenticated user role.")
	}

	room := &model.ChatRoom{
		RoomType:        roomType,
		CreatedByUserID: creatorUserID,
		CreatedByRole:   creatorRole,
	}

	if roomType == domain.RoomTypeDirect {
		peerID := userIDs[1]
		if !s.policy.Allowed(creatorRole, roles[peerID]) {
			return nil, response.NewForbiddenError(fmt.Sprintf("Direct chat not allowed between %s and %s.", creatorRole, roles[peerID]))
		}

		key := domain.DirectKey(creatorUserID, peerID)
		existing, err := s.roomRepo.FindDirectByKey(ctx, key)
		if err == nil {
			return s.reusedRoom(ctx, existing)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewInternalError("find direct room", err)
		}
		room.DirectKey = &key
	} else {
		name := strings.TrimSpace(stringValue(req.RoomName))
		if name == "" {
			name = s.chatConfig.DefaultGroupName
		}
		room.RoomName = &name
	}

	participants := make([]model.ChatParticipant, 0, len(userIDs))
	for _, id := range userIDs {
		participants = append(participants, model.ChatParticipant{
			UserID:          id,
			ParticipantRole: roles[id],
			IsAdmin:         id == creatorUserID,
		})
	}

	if err := s.roomRepo.CreateWithParticipants(ctx, room, participants); err != nil {
		if room.DirectKey != nil && database.IsUniqueViolation(err) {
			// lost the race against a concurrent create for the same pair
			existing, findErr := s.roomRepo.FindDirectByKey(ctx, *room.DirectKey)
			if findErr == nil {
				s.logger.Info("Direct room created concurrently, reusing",
					zap.String("direct_key", *room.DirectKey),
					zap.Int64("room_id", existing.RoomID))
				return s.reusedRoom(ctx, existing)
			}
			return nil, response.NewConflictError("Direct room is being created. Please retry.")
		}
		return nil, response.NewInternalError("create room", err)
	}

	s.metrics.RoomCreated(string(roomType))
	s.logger.Info("Room created",
		zap.Int64("room_id", room.RoomID),
		zap.String("room_type", string(roomType)),
		zap.Int64("created_by", creatorUserID),
		zap.Int("participants", len(participants)))

	return &dto.CreateRoomResponse{
		Room:         toRoomResponse(room),
		Participants: toParticipantResponses(participants),
		Reused:       false,
	}, nil
}

func (s *roomServiceImpl) reusedRoom(ctx context.Context, room *model.ChatRoom) (*dto.CreateRoomResponse, error) {
	participants, err := s.roomRepo.ListParticipants(ctx, []int64{room.RoomID})
	if err != nil {
		return nil, response.NewInternalError("list participants", err)
	}
	s.metrics.RoomReused()
	return &dto.CreateRoomResponse{
		Room:         toRoomResponse(room),
		Participants: toParticipantResponses(participants),
		Reused:       true,
	}, nil
}

func (s *roomServiceImpl) GetChatUser(ctx context.Context, userID int64) (*dto.ChatUserResponse, error) {
	ident, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &dto.ChatUserResponse{
		UserID:   ident.UserID,
		ScopeID:  ident.ScopeID,
		ChatRole: string(ident.ChatRole),
		Name:     ident.DisplayName,
	}, nil
}

// AssertRoomAccess returns the caller's membership in a live, non-archived room.
func (s *roomServiceImpl) AssertRoomAccess(ctx context.Context, roomID, userID int64) (*model.ChatParticipant, error) {
	return assertRoomAccess(ctx, s.roomRepo, roomID, userID)
}

func (s *roomServiceImpl) RoomParticipantIDs(ctx context.Context, roomID int64) ([]int64, error) {
	participants, err := s.roomRepo.ListParticipants(ctx, []int64{roomID})
	if err != nil {
		return nil, response.NewInternalError("list participants", err)
	}
	ids := make([]int64, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}
	return ids, nil
}

func assertRoomAccess(ctx context.Context, roomRepo repository.RoomRepository, roomID, userID int64) (*model.ChatParticipant, error) {
	if _, err := roomRepo.FindActiveRoom(ctx, roomID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFoundError("Room not found.")
		}
		return nil, response.NewInternalError("find room", err)
	}

	participant, err := roomRepo.FindParticipant(ctx, roomID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewForbiddenError("You are not a participant in this room.")
		}
		return nil, response.NewInternalError("find participant", err)
	}
	return participant, nil
}

// mergeParticipants puts the creator first, drops non-positive ids and duplicates.
func mergeParticipants(creatorUserID int64, participantUserIDs []int64) []int64 {
	seen := map[int64]bool{creatorUserID: true}
	ids := []int64{creatorUserID}
	for _, id := range participantUserIDs {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
