package presence

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func exerciseTracker(t *testing.T, tracker Tracker, base int64) {
	ctx := context.Background()
	alice, bob := base+1, base+2

	assert.False(t, tracker.IsOnline(ctx, alice))

	// two tabs
	require.NoError(t, tracker.MarkOnline(ctx, alice))
	require.NoError(t, tracker.MarkOnline(ctx, alice))
	require.NoError(t, tracker.MarkOnline(ctx, bob))
	require.NoError(t, tracker.Touch(ctx, alice))

	assert.True(t, tracker.IsOnline(ctx, alice))
	assert.Equal(t, map[int64]bool{alice: true, bob: true}, tracker.OnlineUsers(ctx, []int64{alice, bob, base + 3}))

	require.NoError(t, tracker.MarkOffline(ctx, alice))
	assert.True(t, tracker.IsOnline(ctx, alice), "one connection remains")

	require.NoError(t, tracker.MarkOffline(ctx, alice))
	assert.False(t, tracker.IsOnline(ctx, alice))

	require.NoError(t, tracker.MarkOffline(ctx, bob))
	assert.Empty(t, tracker.OnlineUsers(ctx, []int64{alice, bob}))
}

func TestMemoryTracker(t *testing.T) {
	exerciseTracker(t, NewMemoryTracker(), 0)
}

func TestMemoryTracker_ConcurrentConnections(t *testing.T) {
	tracker := NewMemoryTracker()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.MarkOnline(ctx, 9)
		}()
	}
	wg.Wait()

	count, err := tracker.CountOnline(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	for i := 0; i < 49; i++ {
		tracker.MarkOffline(ctx, 9)
	}
	assert.True(t, tracker.IsOnline(ctx, 9))
	tracker.MarkOffline(ctx, 9)
	assert.False(t, tracker.IsOnline(ctx, 9))

	// extra disconnects never go negative
	tracker.MarkOffline(ctx, 9)
	tracker.MarkOnline(ctx, 9)
	assert.True(t, tracker.IsOnline(ctx, 9))
}

// TestRedisTracker runs against a real server when REDIS_URL is set.
func TestRedisTracker(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	defer client.Close()

	base := time.Now().UnixNano() % 1_000_000_000
	exerciseTracker(t, NewRedisTracker(client, time.Minute, zap.NewNop()), base)

	t.Run("interleaved connects and disconnects", func(t *testing.T) {
		tracker := NewRedisTracker(client, time.Minute, zap.NewNop())
		ctx := context.Background()
		user := base + 10

		// one long-lived connection while short ones churn around it
		require.NoError(t, tracker.MarkOnline(ctx, user))

		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, tracker.MarkOnline(ctx, user))
				assert.NoError(t, tracker.MarkOffline(ctx, user))
			}()
		}
		wg.Wait()

		count, err := client.Get(ctx, userKey(user)).Int64()
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		assert.True(t, tracker.IsOnline(ctx, user))

		require.NoError(t, tracker.MarkOffline(ctx, user))
		assert.False(t, tracker.IsOnline(ctx, user))
		exists, err := client.Exists(ctx, userKey(user)).Result()
		require.NoError(t, err)
		assert.Zero(t, exists, "drained key is removed")
	})
}
