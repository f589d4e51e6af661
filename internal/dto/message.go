package dto

import (
	"encoding/json"
	"time"
)

// SendMessageRequest represents the request body for sending a message
type SendMessageRequest struct {
	RoomID      int64           `json:"room_id" binding:"required" example:"1"`
	Body        string          `json:"body" example:"Parade at 0600"`
	MessageType string          `json:"message_type,omitempty" example:"text"`
	Metadata    json.RawMessage `json:"metadata,omitempty" swaggertype:"object"`
}

// MarkReadRequest represents the request body for marking a room as read
type MarkReadRequest struct {
	RoomID        int64  `json:"room_id" binding:"required" example:"1"`
	UpToMessageID *int64 `json:"up_to_message_id,omitempty" example:"42"`
}

// MessageResponse is a message enriched with its sender's display name
type MessageResponse struct {
	MessageID    int64           `json:"message_id"`
	RoomID       int64           `json:"room_id"`
	SenderUserID *int64          `json:"sender_user_id"`
	SenderRole   *string         `json:"sender_role"`
	SenderName   string          `json:"sender_name"`
	MessageType  string          `json:"message_type"`
	Body         string          `json:"body"`
	Metadata     json.RawMessage `json:"metadata" swaggertype:"object"`
	IsEdited     bool            `json:"is_edited"`
	EditedAt     *time.Time      `json:"edited_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Pagination struct {
	Limit               int    `json:"limit"`
	HasMore             bool   `json:"has_more"`
	NextBeforeMessageID *int64 `json:"next_before_message_id"`
}

// MessagePageResponse holds one page of messages in chronological order
type MessagePageResponse struct {
	RoomID     int64             `json:"room_id"`
	Messages   []MessageResponse `json:"messages"`
	Pagination Pagination        `json:"pagination"`
}

type ReadResponse struct {
	RoomID            int64  `json:"room_id"`
	UserID            int64  `json:"user_id"`
	MarkedCount       int    `json:"marked_count"`
	LastReadMessageID *int64 `json:"last_read_message_id"`
}

type DeleteMessageResponse struct {
	MessageID int64 `json:"message_id"`
	RoomID    int64 `json:"room_id"`
	Deleted   bool  `json:"deleted"`
}
