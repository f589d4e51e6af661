// internal/model/room.go
package model

import (
	"time"

	"gorm.io/gorm"

	"cadet-chat-service/internal/domain"
)

// ChatRoom represents a direct or group conversation
// @Description Chat room model
type ChatRoom struct {
	RoomID          int64           `gorm:"column:room_id;primaryKey;autoIncrement" json:"room_id"`
	RoomName        *string         `gorm:"column:room_name;type:varchar(120)" json:"room_name"`
	RoomType        domain.RoomType `gorm:"column:room_type;type:varchar(10);not null" json:"room_type"`
	DirectKey       *string         `gorm:"column:direct_key;type:varchar(64)" json:"direct_key,omitempty"`
	CreatedByUserID int64           `gorm:"column:created_by_user_id;not null" json:"created_by_user_id"`
	CreatedByRole   domain.ChatRole `gorm:"column:created_by_role;type:varchar(10);not null" json:"created_by_role"`
	LastMessageID   *int64          `gorm:"column:last_message_id" json:"last_message_id"`
	LastMessageAt   *time.Time      `gorm:"column:last_message_at;index:idx_chat_rooms_last_message_at" json:"last_message_at"`
	IsArchived      bool            `gorm:"column:is_archived;not null;default:false" json:"is_archived"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt  `gorm:"index" json:"-"`
}

// ChatParticipant is one user's membership in a room. ParticipantRole is the
// role captured at join time and is never re-resolved.
type ChatParticipant struct {
	ParticipantID     int64           `gorm:"column:participant_id;primaryKey;autoIncrement" json:"participant_id"`
	RoomID            int64           `gorm:"column:room_id;not null;index:idx_chat_participants_room" json:"room_id"`
	UserID            int64           `gorm:"column:user_id;not null;index:idx_chat_participants_user" json:"user_id"`
	ParticipantRole   domain.ChatRole `gorm:"column:participant_role;type:varchar(10);not null" json:"participant_role"`
	IsAdmin           bool            `gorm:"column:is_admin;not null;default:false" json:"is_admin"`
	JoinedAt          time.Time       `gorm:"column:joined_at;autoCreateTime" json:"joined_at"`
	LastReadAt        *time.Time      `gorm:"column:last_read_at" json:"last_read_at"`
	LastReadMessageID *int64          `gorm:"column:last_read_message_id" json:"last_read_message_id"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt  `gorm:"index" json:"-"`
}

func (ChatRoom) TableName() string {
	return "chat_rooms"
}

func (ChatParticipant) TableName() string {
	return "chat_participants"
}

// DisplayRoomName returns the stored group name or the fallback.
func (r *ChatRoom) DisplayRoomName(fallback string) string {
	if r.RoomName != nil && *r.RoomName != "" {
		return *r.RoomName
	}
	return fallback
}
