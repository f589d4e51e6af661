package websocket

import (
	"context"
	"time"

	"github.com/google/uuid"
	gorillaws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cadet-chat-service/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
	sendBufferSize = 256
)

type connState int

const (
	stateConnecting connState = iota
	stateAuthenticated
	stateDisconnected
)

func (s connState) String() string {
	switch s {
	case stateAuthenticated:
		return "authenticated"
	case stateDisconnected:
		return "disconnected"
	}
	return "connecting"
}

// Client is one socket connection. Identity is fixed at connect time.
type Client struct {
	id     string
	hub    *Hub
	conn   *gorillaws.Conn
	send   chan []byte
	userID int64
	role   domain.ChatRole

	// guarded by hub.mu
	state  connState
	joined map[int64]bool

	// cancelled on disconnect
	ctx    context.Context
	cancel context.CancelFunc
}

func newClient(hub *Hub, conn *gorillaws.Conn, userID int64, role domain.ChatRole) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		id:     uuid.NewString(),
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		userID: userID,
		role:   role,
		state:  stateConnecting,
		joined: make(map[int64]bool),
		ctx:    ctx,
		cancel: cancel,
	}
}

// trySend must be called with hub.mu held and the client registered.
func (c *Client) trySend(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := c.hub.tracker.Touch(c.ctx, c.userID); err != nil {
			c.hub.logger.Debug("Failed to refresh presence", zap.Int64("user_id", c.userID), zap.Error(err))
		}
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if gorillaws.IsUnexpectedCloseError(err, gorillaws.CloseGoingAway, gorillaws.CloseAbnormalClosure) {
				c.hub.logger.Warn("WebSocket error", zap.String("conn_id", c.id), zap.Error(err))
			}
			break
		}

		c.hub.dispatch(c, message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(gorillaws.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(gorillaws.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gorillaws.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
