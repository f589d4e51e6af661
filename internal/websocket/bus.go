package websocket

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"cadet-chat-service/internal/database"
)

// subscribe delivers events published by other instances.
func (h *Hub) subscribe(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Recovered from panic in realtime subscriber", zap.Any("panic", r))
		}
	}()

	pubsub := database.SubscribeEvents(ctx, h.redis)
	if pubsub == nil {
		h.logger.Warn("Redis pubsub not available")
		return
	}
	defer pubsub.Close()

	h.logger.Info("Subscribed to realtime events", zap.String("channel", database.EventsChannel), zap.String("instance", h.id))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.handleRemote([]byte(msg.Payload))
		}
	}
}

func (h *Hub) handleRemote(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		h.logger.Warn("⚠️  Dropping malformed realtime event", zap.Error(err))
		return
	}
	if env.Origin == h.id {
		return
	}
	h.deliver(env)
}
