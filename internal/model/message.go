// internal/model/message.go
package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"cadet-chat-service/internal/domain"
)

// Message ids increase monotonically per insert and define ordering within a room.
type Message struct {
	MessageID    int64              `gorm:"column:message_id;primaryKey;autoIncrement" json:"message_id"`
	RoomID       int64              `gorm:"column:room_id;not null;index:idx_messages_room" json:"room_id"`
	SenderUserID *int64             `gorm:"column:sender_user_id;index" json:"sender_user_id"`
	SenderRole   *domain.ChatRole   `gorm:"column:sender_role;type:varchar(10)" json:"sender_role"`
	MessageType  domain.MessageType `gorm:"column:message_type;type:varchar(10);not null;default:'text'" json:"message_type"`
	Body         string             `gorm:"column:body;type:text;not null" json:"body"`
	Metadata     datatypes.JSON     `gorm:"column:metadata" json:"metadata"`
	IsEdited     bool               `gorm:"column:is_edited;not null;default:false" json:"is_edited"`
	EditedAt     *time.Time         `gorm:"column:edited_at" json:"edited_at"`
	CreatedAt    time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt     `gorm:"index" json:"-"`
}

// MessageReadStatus is a read receipt. (message_id, user_id) is unique.
type MessageReadStatus struct {
	ReadID    int64          `gorm:"column:read_id;primaryKey;autoIncrement" json:"read_id"`
	MessageID int64          `gorm:"column:message_id;not null" json:"message_id"`
	UserID    int64          `gorm:"column:user_id;not null;index" json:"user_id"`
	ReadAt    time.Time      `gorm:"column:read_at;not null" json:"read_at"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Message) TableName() string {
	return "messages"
}

func (MessageReadStatus) TableName() string {
	return "message_read_status"
}
