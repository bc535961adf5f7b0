// Package presence tracks which users were active recently. A user is
// online while their last heartbeat is younger than the TTL.
package presence

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type Tracker interface {
	Touch(ctx context.Context, userID uint) error
	// Online reports the subset of ids that are currently online.
	Online(ctx context.Context, ids []uint) (map[uint]bool, error)
}

type MemoryTracker struct {
	mu       sync.Mutex
	lastSeen map[uint]time.Time
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return &MemoryTracker{lastSeen: make(map[uint]time.Time), ttl: ttl, now: time.Now}
}

func (t *MemoryTracker) Touch(ctx context.Context, userID uint) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastSeen[userID] = t.now()
	return nil
}

func (t *MemoryTracker) Online(ctx context.Context, ids []uint) (map[uint]bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	online := make(map[uint]bool, len(ids))
	for _, id := range ids {
		seen, ok := t.lastSeen[id]
		if !ok {
			continue
		}
		if now.Sub(seen) < t.ttl {
			online[id] = true
		} else {
			delete(t.lastSeen, id)
		}
	}
	return online, nil
}

// RedisTracker stores one expiring key per user so every replica agrees.
type RedisTracker struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisTracker(rdb *redis.Client, ttl time.Duration) *RedisTracker {
	return &RedisTracker{rdb: rdb, ttl: ttl, prefix: "presence:"}
}

func (t *RedisTracker) key(userID uint) string {
	return t.prefix + strconv.FormatUint(uint64(userID), 10)
}

func (t *RedisTracker) Touch(ctx context.Context, userID uint) error {
	return errors.Wrap(t.rdb.Set(ctx, t.key(userID), time.Now().Unix(), t.ttl).Err(), "presence touch")
}

func (t *RedisTracker) Online(ctx context.Context, ids []uint) (map[uint]bool, error) {
	online := make(map[uint]bool, len(ids))
	if len(ids) == 0 {
		return online, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = t.key(id)
	}
	vals, err := t.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, errors.Wrap(err, "presence lookup")
	}
	for i, v := range vals {
		if v != nil {
			online[ids[i]] = true
		}
	}
	return online, nil
}
