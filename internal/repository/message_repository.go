// internal/repository/message_repository.go
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cadet-chat-service/internal/model"
)

type MessageRepository interface {
	CreateMessage(ctx context.Context, message *model.Message) error
	FindMessage(ctx context.Context, messageID int64) (*model.Message, error)
	FindMessages(ctx context.Context, messageIDs []int64) ([]model.Message, error)
	ListMessages(ctx context.Context, roomID int64, beforeMessageID *int64, limit int) ([]model.Message, error)
	MaxMessageID(ctx context.Context, roomID int64) (*int64, error)

	MarkRead(ctx context.Context, roomID, userID int64, upToMessageID *int64) (int, *int64, error)

	SoftDelete(ctx context.Context, messageID int64) error
	RecomputeLastMessage(ctx context.Context, roomID, deletedMessageID int64) error
}

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// CreateMessage stores the message, advances the room pointer and marks the
// message read for its sender, all in one transaction.
func (r *messageRepository) CreateMessage(ctx context.Context, message *model.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(message).Error; err != nil {
			return err
		}

		// the pointer only moves forward when sends race
		if err := tx.Model(&model.ChatRoom{}).
			Where("room_id = ?", message.RoomID).
			Where("last_message_id IS NULL OR last_message_id < ?", message.MessageID).
			Updates(map[string]interface{}{
				"last_message_id": message.MessageID,
				"last_message_at": message.CreatedAt,
			}).Error; err != nil {
			return err
		}

		if message.SenderUserID == nil {
			return nil
		}

		readAt := message.CreatedAt
		receipt := []model.MessageReadStatus{{MessageID: message.MessageID, UserID: *message.SenderUserID, ReadAt: readAt}}
		if err := upsertReceipts(tx, receipt); err != nil {
			return err
		}
		return advanceReadPointer(tx, message.RoomID, *message.SenderUserID, message.MessageID, readAt)
	})
}

func (r *messageRepository) FindMessage(ctx context.Context, messageID int64) (*model.Message, error) {
	var message model.Message
	err := r.db.WithContext(ctx).First(&message, "message_id = ?", messageID).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) FindMessages(ctx context.Context, messageIDs []int64) ([]model.Message, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var messages []model.Message
	err := r.db.WithContext(ctx).Where("message_id IN ?", messageIDs).Find(&messages).Error
	return messages, err
}

// ListMessages returns up to limit live messages, newest first, strictly older
// than beforeMessageID when it is set.
func (r *messageRepository) ListMessages(ctx context.Context, roomID int64, beforeMessageID *int64, limit int) ([]model.Message, error) {
	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if beforeMessageID != nil {
		query = query.Where("message_id < ?", *beforeMessageID)
	}

	var messages []model.Message
	err := query.Order("message_id DESC").Limit(limit).Find(&messages).Error
	return messages, err
}

func (r *messageRepository) MaxMessageID(ctx context.Context, roomID int64) (*int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&model.Message{}).
		Where("room_id = ?", roomID).
		Order("message_id DESC").
		Limit(1).
		Pluck("message_id", &ids).Error
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return &ids[0], nil
}

// MarkRead writes receipts for every unread message from others in the room,
// bounded by upToMessageID when set. It returns the number of receipts written
// and the highest message id marked.
func (r *messageRepository) MarkRead(ctx context.Context, roomID, userID int64, upToMessageID *int64) (int, *int64, error) {
	var marked int
	var lastRead *int64

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&model.Message{}).
			Where("room_id = ?", roomID).
			Where("sender_user_id IS NULL OR sender_user_id <> ?", userID).
			Where("NOT EXISTS (SELECT 1 FROM message_read_status rs WHERE rs.message_id = messages.message_id AND rs.user_id = ? AND rs.deleted_at IS NULL)", userID)
		if upToMessageID != nil {
			query = query.Where("message_id <= ?", *upToMessageID)
		}

		var ids []int64
		if err := query.Order("message_id ASC").Pluck("message_id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		now := tx.NowFunc()
		receipts := make([]model.MessageReadStatus, 0, len(ids))
		for _, id := range ids {
			receipts = append(receipts, model.MessageReadStatus{MessageID: id, UserID: userID, ReadAt: now})
		}
		if err := upsertReceipts(tx, receipts); err != nil {
			return err
		}

		last := ids[len(ids)-1]
		if err := advanceReadPointer(tx, roomID, userID, last, now); err != nil {
			return err
		}

		marked = len(ids)
		lastRead = &last
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return marked, lastRead, nil
}

func (r *messageRepository) SoftDelete(ctx context.Context, messageID int64) error {
	return r.db.WithContext(ctx).Delete(&model.Message{}, "message_id = ?", messageID).Error
}

// RecomputeLastMessage moves the room pointer off a deleted message onto the
// newest live one, or clears it when none remain. The update only applies while
// the room still points at deletedMessageID, so a send that lands in between
// keeps its pointer.
func (r *messageRepository) RecomputeLastMessage(ctx context.Context, roomID, deletedMessageID int64) error {
	db := r.db.WithContext(ctx)

	var latest []model.Message
	if err := db.Where("room_id = ?", roomID).Order("message_id DESC").Limit(1).Find(&latest).Error; err != nil {
		return err
	}

	updates := map[string]interface{}{
		"last_message_id": nil,
		"last_message_at": nil,
	}
	if len(latest) > 0 {
		updates["last_message_id"] = latest[0].MessageID
		updates["last_message_at"] = latest[0].CreatedAt
	}

	return db.Model(&model.ChatRoom{}).
		Where("room_id = ? AND last_message_id = ?", roomID, deletedMessageID).
		Updates(updates).Error
}

func upsertReceipts(tx *gorm.DB, receipts []model.MessageReadStatus) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"read_at", "updated_at", "deleted_at"}),
	}).Create(&receipts).Error
}

// advanceReadPointer never moves last_read_message_id backwards.
func advanceReadPointer(tx *gorm.DB, roomID, userID, messageID int64, readAt time.Time) error {
	return tx.Model(&model.ChatParticipant{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Updates(map[string]interface{}{
			"last_read_at": readAt,
			"last_read_message_id": gorm.Expr(
				"CASE WHEN last_read_message_id IS NULL OR last_read_message_id < ? THEN ? ELSE last_read_message_id END",
				messageID, messageID),
		}).Error
}
