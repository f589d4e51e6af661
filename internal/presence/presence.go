// Package presence tracks which users hold at least one live socket.
package presence

import (
	"context"
	"sync"
)

// Tracker counts live connections per user. A user is online while the count is positive.
type Tracker interface {
	MarkOnline(ctx context.Context, userID int64) error
	MarkOffline(ctx context.Context, userID int64) error
	// Touch refreshes the liveness of a connected user.
	Touch(ctx context.Context, userID int64) error
	IsOnline(ctx context.Context, userID int64) bool
	// OnlineUsers reports the ids among userIDs that are online.
	OnlineUsers(ctx context.Context, userIDs []int64) map[int64]bool
	CountOnline(ctx context.Context) (int64, error)
}

type memoryTracker struct {
	mu          sync.RWMutex
	connections map[int64]int
}

// NewMemoryTracker keeps presence in process memory. It is only accurate for a single instance.
func NewMemoryTracker() Tracker {
	return &memoryTracker{connections: make(map[int64]int)}
}

func (t *memoryTracker) MarkOnline(ctx context.Context, userID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.connections[userID]++
	return nil
}

func (t *memoryTracker) MarkOffline(ctx context.Context, userID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connections[userID] <= 1 {
		delete(t.connections, userID)
		return nil
	}
	t.connections[userID]--
	return nil
}

func (t *memoryTracker) Touch(ctx context.Context, userID int64) error {
	return nil
}

func (t *memoryTracker) IsOnline(ctx context.Context, userID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connections[userID] > 0
}

func (t *memoryTracker) OnlineUsers(ctx context.Context, userIDs []int64) map[int64]bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	online := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		if t.connections[id] > 0 {
			online[id] = true
		}
	}
	return online
}

func (t *memoryTracker) CountOnline(ctx context.Context) (int64, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return int64(len(t.connections)), nil
}
