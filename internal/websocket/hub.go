// Package websocket is the realtime gateway: socket connections, room and
// personal channels, and fan-out of chat events across instances.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cadet-chat-service/internal/database"
	"cadet-chat-service/internal/domain"
	"cadet-chat-service/internal/dto"
	"cadet-chat-service/internal/metrics"
	"cadet-chat-service/internal/presence"
	"cadet-chat-service/internal/service"
)

const presenceTimeout = 3 * time.Second

var upgrader = gorillaws.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Broadcaster publishes chat events produced outside the socket, such as
// by HTTP handlers, so both transports emit identical events.
type Broadcaster interface {
	BroadcastNewMessage(ctx context.Context, msg *dto.MessageResponse)
	BroadcastMessageDeleted(ctx context.Context, deleted *dto.DeleteMessageResponse)
	BroadcastReadUpdate(ctx context.Context, read *dto.ReadResponse)
}

// envelope is one fan-out unit. It is delivered locally and mirrored to
// other instances through Redis.
type envelope struct {
	Origin      string          `json:"origin"`
	RoomID      int64           `json:"room_id,omitempty"`
	Echo        []int64         `json:"echo,omitempty"`
	ExcludeConn string          `json:"exclude_conn,omitempty"`
	Frame       json.RawMessage `json:"frame"`
}

type messageDeletedPayload struct {
	RoomID    int64 `json:"room_id"`
	MessageID int64 `json:"message_id"`
}

// Hub owns every connection of this instance.
type Hub struct {
	id string

	mu      sync.RWMutex
	clients map[*Client]bool
	users   map[int64]map[*Client]bool
	rooms   map[int64]map[*Client]bool

	roomService    service.RoomService
	messageService service.MessageService
	tracker        presence.Tracker
	redis          *redis.Client
	metrics        *metrics.Metrics
	logger         *zap.Logger
}

// NewHub creates a hub. redisClient may be nil for single-instance deployments.
func NewHub(
	roomService service.RoomService,
	messageService service.MessageService,
	tracker presence.Tracker,
	redisClient *redis.Client,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		id:             uuid.NewString(),
		clients:        make(map[*Client]bool),
		users:          make(map[int64]map[*Client]bool),
		rooms:          make(map[int64]map[*Client]bool),
		roomService:    roomService,
		messageService: messageService,
		tracker:        tracker,
		redis:          redisClient,
		metrics:        m,
		logger:         logger,
	}
}

// Run relays events from other instances until ctx is done, then closes
// every connection.
func (h *Hub) Run(ctx context.Context) {
	if h.redis != nil {
		go h.subscribe(ctx)
	}

	<-ctx.Done()

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.removeClient(c)
	}
	h.logger.Info("Realtime hub stopped", zap.Int("closed_connections", len(clients)))
}

// ServeWS upgrades an authenticated request and starts the connection pumps.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64, role domain.ChatRole) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", zap.Error(err))
		return
	}

	client := newClient(h, conn, userID, role)
	h.addClient(client)

	h.sendTo(client, EventConnected, connectedPayload{UserID: userID, Role: string(role)})

	go client.writePump()
	go client.readPump()
}

// IsUserOnline reports whether the user holds a connection on any instance.
func (h *Hub) IsUserOnline(ctx context.Context, userID int64) bool {
	return h.tracker.IsOnline(ctx, userID)
}

// ConnectionCount is the number of live connections on this instance.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(map[*Client]bool)
	}
	h.users[c.userID][c] = true
	c.state = stateAuthenticated
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := h.tracker.MarkOnline(ctx, c.userID); err != nil {
		h.logger.Warn("⚠️  Failed to mark user online", zap.Int64("user_id", c.userID), zap.Error(err))
	}
	h.metrics.WebSocketConnected()

	h.logger.Info("Client connected",
		zap.String("conn_id", c.id),
		zap.Int64("user_id", c.userID),
		zap.String("role", string(c.role)))
}

// removeClient is idempotent; only the first call releases presence.
func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	if conns := h.users[c.userID]; conns != nil {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.users, c.userID)
		}
	}
	for roomID := range c.joined {
		h.leaveLocked(c, roomID)
	}
	c.state = stateDisconnected
	close(c.send)
	h.mu.Unlock()

	c.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := h.tracker.MarkOffline(ctx, c.userID); err != nil {
		h.logger.Warn("⚠️  Failed to mark user offline", zap.Int64("user_id", c.userID), zap.Error(err))
	}
	h.metrics.WebSocketDisconnected()

	h.logger.Info("Client disconnected",
		zap.String("conn_id", c.id),
		zap.Int64("user_id", c.userID))
}

func (h *Hub) join(c *Client, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[c] {
		return
	}
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
	c.joined[roomID] = true
}

func (h *Hub) leave(c *Client, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, roomID)
}

func (h *Hub) leaveLocked(c *Client, roomID int64) {
	delete(c.joined, roomID)
	if members := h.rooms[roomID]; members != nil {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// clientState reports the connection's position in its lifecycle.
func (h *Hub) clientState(c *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.state == stateAuthenticated && len(c.joined) > 0 {
		return "joined"
	}
	return c.state.String()
}

// sendTo writes one frame to a single connection of this instance.
func (h *Hub) sendTo(c *Client, event string, data interface{}) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		h.logger.Error("Failed to encode frame", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	registered := h.clients[c]
	ok := registered && c.trySend(frame)
	h.mu.RUnlock()

	if registered && !ok {
		h.dropSlow([]*Client{c})
	}
}

// emit delivers a frame locally and mirrors it to the other instances.
func (h *Hub) emit(ctx context.Context, env envelope, event string, data interface{}) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		h.logger.Error("Failed to encode frame", zap.String("event", event), zap.Error(err))
		return
	}
	env.Origin = h.id
	env.Frame = frame

	h.deliver(env)

	if h.redis == nil {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to encode event envelope", zap.Error(err))
		return
	}
	if err := database.PublishEvent(ctx, h.redis, payload); err != nil {
		h.logger.Warn("⚠️  Failed to publish realtime event",
			zap.String("event", event),
			zap.Int64("room_id", env.RoomID),
			zap.Error(err))
	}
}

// deliver sends to room subscribers, then echoes to listed users on
// connections that have not joined the room.
func (h *Hub) deliver(env envelope) {
	var slow []*Client

	h.mu.RLock()
	for c := range h.rooms[env.RoomID] {
		if c.id == env.ExcludeConn {
			continue
		}
		if !c.trySend(env.Frame) {
			slow = append(slow, c)
		}
	}
	for _, userID := range env.Echo {
		for c := range h.users[userID] {
			if c.id == env.ExcludeConn || c.joined[env.RoomID] {
				continue
			}
			if !c.trySend(env.Frame) {
				slow = append(slow, c)
			}
		}
	}
	h.mu.RUnlock()

	h.dropSlow(slow)
}

func (h *Hub) dropSlow(clients []*Client) {
	for _, c := range clients {
		h.logger.Warn("⚠️  Dropping slow connection", zap.String("conn_id", c.id), zap.Int64("user_id", c.userID))
		h.removeClient(c)
	}
}

func (h *Hub) BroadcastNewMessage(ctx context.Context, msg *dto.MessageResponse) {
	h.emit(ctx, envelope{RoomID: msg.RoomID, Echo: h.participantIDs(ctx, msg.RoomID)}, EventNewMessage, msg)
}

func (h *Hub) BroadcastMessageDeleted(ctx context.Context, deleted *dto.DeleteMessageResponse) {
	h.emit(ctx,
		envelope{RoomID: deleted.RoomID, Echo: h.participantIDs(ctx, deleted.RoomID)},
		EventMessageDeleted,
		messageDeletedPayload{RoomID: deleted.RoomID, MessageID: deleted.MessageID})
}

// BroadcastReadUpdate notifies the room and echoes to the reader's other
// connections so their sidebars clear the unread badge.
func (h *Hub) BroadcastReadUpdate(ctx context.Context, read *dto.ReadResponse) {
	h.emit(ctx, envelope{RoomID: read.RoomID, Echo: []int64{read.UserID}}, EventReadUpdate, read)
}

func (h *Hub) participantIDs(ctx context.Context, roomID int64) []int64 {
	ids, err := h.roomService.RoomParticipantIDs(ctx, roomID)
	if err != nil {
		h.logger.Warn("⚠️  Failed to load participants for echo", zap.Int64("room_id", roomID), zap.Error(err))
		return nil
	}
	return ids
}
