package dto

import (
	"time"
)

// CreateRoomRequest represents the request body for creating a room.
// The creator is always the authenticated caller.
type CreateRoomRequest struct {
	RoomType           string  `json:"room_type" binding:"required" example:"direct"`
	RoomName           *string `json:"room_name,omitempty" example:"Drill Squad"`
	ParticipantUserIDs []int64 `json:"participant_user_ids" binding:"required" example:"2"`
}

// RoomResponse represents a stored room
type RoomResponse struct {
	RoomID          int64      `json:"room_id"`
	RoomName        *string    `json:"room_name"`
	RoomType        string     `json:"room_type"`
	DirectKey       *string    `json:"direct_key,omitempty"`
	CreatedByUserID int64      `json:"created_by_user_id"`
	CreatedByRole   string     `json:"created_by_role"`
	LastMessageID   *int64     `json:"last_message_id"`
	LastMessageAt   *time.Time `json:"last_message_at"`
	IsArchived      bool       `json:"is_archived"`
	CreatedAt       time.Time  `json:"created_at"`
}

type ParticipantResponse struct {
	UserID            int64      `json:"user_id"`
	ParticipantRole   string     `json:"participant_role"`
	IsAdmin           bool       `json:"is_admin"`
	JoinedAt          time.Time  `json:"joined_at"`
	LastReadAt        *time.Time `json:"last_read_at"`
	LastReadMessageID *int64     `json:"last_read_message_id"`
}

// CreateRoomResponse is returned by room creation. Reused is true when an
// existing direct room was returned instead of creating one.
type CreateRoomResponse struct {
	Room         RoomResponse          `json:"room"`
	Participants []ParticipantResponse `json:"participants"`
	Reused       bool                  `json:"reused"`
}

// ChatListParticipant is a member of a room as shown in the sidebar
type ChatListParticipant struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

type LastMessagePreview struct {
	MessageID    int64     `json:"message_id"`
	Body         string    `json:"body"`
	MessageType  string    `json:"message_type"`
	SenderUserID *int64    `json:"sender_user_id"`
	SenderRole   *string   `json:"sender_role"`
	CreatedAt    time.Time `json:"created_at"`
}

// ChatListEntry is one sidebar row: either a room the user belongs to or a
// contact the user can start a direct conversation with.
type ChatListEntry struct {
	EntryID       string                `json:"entry_id"`
	ItemType      string                `json:"item_type"`
	RoomID        *int64                `json:"room_id"`
	RoomName      string                `json:"room_name"`
	RoomType      string                `json:"room_type"`
	RoleCategory  string                `json:"role_category"`
	PeerUserID    *int64                `json:"peer_user_id"`
	PeerRole      *string               `json:"peer_role"`
	Participants  []ChatListParticipant `json:"participants"`
	UnreadCount   int64                 `json:"unread_count"`
	Online        bool                  `json:"online"`
	LastMessage   *LastMessagePreview   `json:"last_message"`
	LastMessageAt *time.Time            `json:"last_message_at"`
	CanStartChat  bool                  `json:"can_start_chat"`
}

// ContactResponse is a same-scope user in the contacts directory
type ContactResponse struct {
	UserID       int64  `json:"user_id"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	RoleCategory string `json:"role_category"`
	Online       bool   `json:"online"`
	CanStartChat bool   `json:"can_start_chat"`
}
