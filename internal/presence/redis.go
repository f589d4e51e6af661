package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const keyPrefix = "presence:user:"

// markOfflineScript decrements and removes a drained key in one step, so an
// INCR from a new connection cannot land between the two.
var markOfflineScript = redis.NewScript(`
local remaining = redis.call("DECR", KEYS[1])
if remaining <= 0 then
	redis.call("DEL", KEYS[1])
end
return remaining
`)

type redisTracker struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisTracker shares presence between instances. Each key holds the
// connection count for a user and expires after ttl unless touched, so a
// crashed instance cannot pin users online.
func NewRedisTracker(client *redis.Client, ttl time.Duration, logger *zap.Logger) Tracker {
	return &redisTracker{client: client, ttl: ttl, logger: logger}
}

func userKey(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

func (t *redisTracker) MarkOnline(ctx context.Context, userID int64) error {
	key := userKey(userID)
	pipe := t.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark online: %w", err)
	}
	return nil
}

func (t *redisTracker) MarkOffline(ctx context.Context, userID int64) error {
	if err := markOfflineScript.Run(ctx, t.client, []string{userKey(userID)}).Err(); err != nil {
		return fmt.Errorf("mark offline: %w", err)
	}
	return nil
}

func (t *redisTracker) Touch(ctx context.Context, userID int64) error {
	return t.client.Expire(ctx, userKey(userID), t.ttl).Err()
}

func (t *redisTracker) IsOnline(ctx context.Context, userID int64) bool {
	count, err := t.client.Get(ctx, userKey(userID)).Int64()
	if err != nil {
		if err != redis.Nil {
			t.logger.Warn("presence lookup failed", zap.Int64("user_id", userID), zap.Error(err))
		}
		return false
	}
	return count > 0
}

func (t *redisTracker) OnlineUsers(ctx context.Context, userIDs []int64) map[int64]bool {
	online := make(map[int64]bool, len(userIDs))
	if len(userIDs) == 0 {
		return online
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = userKey(id)
	}

	values, err := t.client.MGet(ctx, keys...).Result()
	if err != nil {
		t.logger.Warn("presence batch lookup failed", zap.Int("users", len(userIDs)), zap.Error(err))
		return online
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil && n > 0 {
			online[userIDs[i]] = true
		}
	}
	return online
}

func (t *redisTracker) CountOnline(ctx context.Context) (int64, error) {
	var (
		cursor uint64
		count  int64
	)
	for {
		keys, next, err := t.client.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("count online: %w", err)
		}
		count += int64(len(keys))
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}
