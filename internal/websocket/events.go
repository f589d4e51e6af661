package websocket

import (
	"encoding/json"
	"strings"
)

// Client events
const (
	EventJoinRoom    = "join_room"
	EventLeaveRoom   = "leave_room"
	EventSendMessage = "send_message"
	EventTyping      = "typing"
	EventMarkRead    = "mark_read"
)

// Server events
const (
	EventConnected      = "connected"
	EventRoomJoined     = "room_joined"
	EventRoomLeft       = "room_left"
	EventNewMessage     = "new_message"
	EventMessageDeleted = "message_deleted"
	EventReadUpdate     = "read_update"
	EventError          = "error"
)

// eventPrefix is sent by the browser client and ignored on input.
const eventPrefix = "chat:"

// Frame is the JSON shape of every socket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func normalizeEvent(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimPrefix(name, eventPrefix)
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

type roomPayload struct {
	RoomID int64 `json:"room_id"`
}

type typingPayload struct {
	RoomID   int64 `json:"room_id"`
	IsTyping bool  `json:"is_typing"`
}

type markReadPayload struct {
	RoomID        int64  `json:"room_id"`
	UpToMessageID *int64 `json:"up_to_message_id,omitempty"`
}

type connectedPayload struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

type typingBroadcast struct {
	RoomID   int64  `json:"room_id"`
	UserID   int64  `json:"user_id"`
	Role     string `json:"role"`
	IsTyping bool   `json:"is_typing"`
}

type errorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
