// internal/repository/room_repository.go
package repository

import (
	"context"

	"gorm.io/gorm"

	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/model"
)

type RoomRepository interface {
	FindDirectByKey(ctx context.Context, directKey string) (*model.ChatRoom, error)
	CreateWithParticipants(ctx context.Context, room *model.ChatRoom, participants []model.ChatParticipant) error
	FindActiveRoom(ctx context.Context, roomID int64) (*model.ChatRoom, error)
	ListUserRooms(ctx context.Context, userID int64) ([]model.ChatRoom, error)
	CountActiveRooms(ctx context.Context) (int64, error)

	FindParticipant(ctx context.Context, roomID, userID int64) (*model.ChatParticipant, error)
	ListParticipants(ctx context.Context, roomIDs []int64) ([]model.ChatParticipant, error)
	UnreadCounts(ctx context.Context, userID int64, roomIDs []int64) (map[int64]int64, error)
}

type roomRepository struct {
	db *gorm.DB
}

func NewRoomRepository(db *gorm.DB) RoomRepository {
	return &roomRepository{db: db}
}

func (r *roomRepository) FindDirectByKey(ctx context.Context, directKey string) (*model.ChatRoom, error) {
	var room model.ChatRoom
	err := r.db.WithContext(ctx).
		Where("room_type = ? AND direct_key = ?", domain.RoomTypeDirect, directKey).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// CreateWithParticipants inserts the room and its memberships atomically.
// A concurrent direct room for the same key surfaces as a unique violation.
func (r *roomRepository) CreateWithParticipants(ctx context.Context, room *model.ChatRoom, participants []model.ChatParticipant) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(room).Error; err != nil {
			return err
		}
		for i := range participants {
			participants[i].RoomID = room.RoomID
		}
		return tx.Create(&participants).Error
	})
}

// FindActiveRoom returns a room that is neither deleted nor archived.
func (r *roomRepository) FindActiveRoom(ctx context.Context, roomID int64) (*model.ChatRoom, error) {
	var room model.ChatRoom
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND is_archived = ?", roomID, false).
		First(&room).Error
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (r *roomRepository) ListUserRooms(ctx context.Context, userID int64) ([]model.ChatRoom, error) {
	var rooms []model.ChatRoom
	err := r.db.WithContext(ctx).
		Joins("JOIN chat_participants cp ON cp.room_id = chat_rooms.room_id AND cp.deleted_at IS NULL").
		Where("cp.user_id = ? AND chat_rooms.is_archived = ?", userID, false).
		Order("chat_rooms.room_id ASC").
		Find(&rooms).Error
	return rooms, err
}

func (r *roomRepository) CountActiveRooms(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ChatRoom{}).
		Where("is_archived = ?", false).
		Count(&count).Error
	return count, err
}

func (r *roomRepository) FindParticipant(ctx context.Context, roomID, userID int64) (*model.ChatParticipant, error) {
	var participant model.ChatParticipant
	err := r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		First(&participant).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (r *roomRepository) ListParticipants(ctx context.Context, roomIDs []int64) ([]model.ChatParticipant, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	var participants []model.ChatParticipant
	err := r.db.WithContext(ctx).
		Where("room_id IN ?", roomIDs).
		Order("room_id ASC, participant_id ASC").
		Find(&participants).Error
	return participants, err
}

type unreadRow struct {
	RoomID int64
	Unread int64
}

// UnreadCounts counts live messages from others that the user has no receipt for.
// Rooms without unread messages are absent from the result.
func (r *roomRepository) UnreadCounts(ctx context.Context, userID int64, roomIDs []int64) (map[int64]int64, error) {
	counts := make(map[int64]int64, len(roomIDs))
	if len(roomIDs) == 0 {
		return counts, nil
	}

	var rows []unreadRow
	err := r.db.WithContext(ctx).
		Table("messages AS m").
		Select("m.room_id AS room_id, COUNT(*) AS unread").
		Where("m.room_id IN ? AND m.deleted_at IS NULL", roomIDs).
		Where("m.sender_user_id IS NULL OR m.sender_user_id <> ?", userID).
		Where("NOT EXISTS (SELECT 1 FROM message_read_status rs WHERE rs.message_id = m.message_id AND rs.user_id = ? AND rs.deleted_at IS NULL)", userID).
		Group("m.room_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		counts[row.RoomID] = row.Unread
	}
	return counts, nil
}
