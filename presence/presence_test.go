package presence

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTrackerExpires(t *testing.T) {
	now := time.Now()
	tr := NewMemoryTracker(time.Minute)
	tr.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, tr.Touch(ctx, 1))
	now = now.Add(30 * time.Second)
	require.NoError(t, tr.Touch(ctx, 2))

	online, err := tr.Online(ctx, []uint{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[uint]bool{1: true, 2: true}, online)

	now = now.Add(45 * time.Second)
	online, err = tr.Online(ctx, []uint{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[uint]bool{2: true}, online)
}

func TestRedisTracker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set; skipping redis integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	tr := NewRedisTracker(rdb, time.Minute)
	tr.prefix = "presence:test:"
	ctx := context.Background()
	t.Cleanup(func() { rdb.Del(ctx, tr.key(7)) })

	require.NoError(t, tr.Touch(ctx, 7))
	online, err := tr.Online(ctx, []uint{7, 8})
	require.NoError(t, err)
	assert.Equal(t, map[uint]bool{7: true}, online)

	empty, err := tr.Online(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
