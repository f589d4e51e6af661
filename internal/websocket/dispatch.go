package websocket

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/response"
)

type eventHandler func(h *Hub, ctx context.Context, c *Client, data json.RawMessage) error

var eventHandlers = map[string]eventHandler{
	EventJoinRoom:    (*Hub).handleJoinRoom,
	EventLeaveRoom:   (*Hub).handleLeaveRoom,
	EventSendMessage: (*Hub).handleSendMessage,
	EventTyping:      (*Hub).handleTyping,
	EventMarkRead:    (*Hub).handleMarkRead,
}

// dispatch runs one client event. Failures become error frames and never
// close the connection.
func (h *Hub) dispatch(c *Client, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.metrics.SocketEvent("", false)
		h.sendError(c, response.NewValidationError("Malformed event."))
		return
	}

	event := normalizeEvent(frame.Event)
	handle, known := eventHandlers[event]
	h.metrics.SocketEvent(event, known)
	if !known {
		h.sendError(c, response.NewValidationError("Unknown event."))
		return
	}

	if err := handle(h, c.ctx, c, frame.Data); err != nil {
		h.sendError(c, err)
	}
}

func (h *Hub) sendError(c *Client, err error) {
	appErr := response.AsAppError(err)
	if appErr.Code == response.ErrCodeInternal {
		h.logger.Error("Socket event failed",
			zap.String("conn_id", c.id),
			zap.Int64("user_id", c.userID),
			zap.String("details", appErr.Details),
			zap.Error(appErr.Err))
	}
	h.sendTo(c, EventError, errorPayload{Message: appErr.PublicMessage(), Code: appErr.Code})
}

func decodeData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return response.NewValidationError("Event data is required.")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return response.NewValidationError("Invalid event data.")
	}
	return nil
}

func requireRoomID(roomID int64) error {
	if roomID <= 0 {
		return response.NewValidationError("room_id is required.")
	}
	return nil
}

// handleJoinRoom re-validates membership on every join.
func (h *Hub) handleJoinRoom(ctx context.Context, c *Client, data json.RawMessage) error {
	var req roomPayload
	if err := decodeData(data, &req); err != nil {
		return err
	}
	if err := requireRoomID(req.RoomID); err != nil {
		return err
	}

	if _, err := h.roomService.AssertRoomAccess(ctx, req.RoomID, c.userID); err != nil {
		return err
	}

	h.join(c, req.RoomID)
	h.sendTo(c, EventRoomJoined, roomPayload{RoomID: req.RoomID})
	return nil
}

func (h *Hub) handleLeaveRoom(ctx context.Context, c *Client, data json.RawMessage) error {
	var req roomPayload
	if err := decodeData(data, &req); err != nil {
		return err
	}
	if err := requireRoomID(req.RoomID); err != nil {
		return err
	}

	h.leave(c, req.RoomID)
	h.sendTo(c, EventRoomLeft, roomPayload{RoomID: req.RoomID})
	return nil
}

func (h *Hub) handleSendMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	var req dto.SendMessageRequest
	if err := decodeData(data, &req); err != nil {
		return err
	}
	if err := requireRoomID(req.RoomID); err != nil {
		return err
	}

	msg, err := h.messageService.SendMessage(ctx, c.userID, c.role, &req)
	if err != nil {
		return err
	}

	h.BroadcastNewMessage(ctx, msg)
	return nil
}

// handleTyping relays the indicator to the other room subscribers. Nothing is stored.
func (h *Hub) handleTyping(ctx context.Context, c *Client, data json.RawMessage) error {
	var req typingPayload
	if err := decodeData(data, &req); err != nil {
		return err
	}
	if err := requireRoomID(req.RoomID); err != nil {
		return err
	}

	if _, err := h.roomService.AssertRoomAccess(ctx, req.RoomID, c.userID); err != nil {
		return err
	}

	h.emit(ctx, envelope{RoomID: req.RoomID, ExcludeConn: c.id}, EventTyping, typingBroadcast{
		RoomID:   req.RoomID,
		UserID:   c.userID,
		Role:     string(c.role),
		IsTyping: req.IsTyping,
	})
	return nil
}

func (h *Hub) handleMarkRead(ctx context.Context, c *Client, data json.RawMessage) error {
	var req markReadPayload
	if err := decodeData(data, &req); err != nil {
		return err
	}
	if err := requireRoomID(req.RoomID); err != nil {
		return err
	}

	read, err := h.messageService.MarkRoomAsRead(ctx, req.RoomID, c.userID, req.UpToMessageID)
	if err != nil {
		return err
	}

	h.BroadcastReadUpdate(ctx, read)
	return nil
}
