package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialhub/models"
	"socialhub/storage"
	"socialhub/storage/storagetest"
)

func TestStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Storage {
		return New()
	})
}

func TestStoresAreIndependent(t *testing.T) {
	ctx := context.Background()
	a, b := New(), New()
	_, err := a.CreateUser(ctx, models.User{Username: "alice", DisplayName: "Alice"})
	require.NoError(t, err)

	users, err := b.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestClockDrivesTimestampsAndSweep(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))

	u, err := s.CreateUser(ctx, models.User{Username: "alice", DisplayName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, now, u.JoinDate)

	_, err = s.CreateStory(ctx, models.Story{UserID: u.ID, Image: "/uploads/old.png"})
	require.NoError(t, err)
	now = now.Add(25 * time.Hour)
	fresh, err := s.CreateStory(ctx, models.Story{UserID: u.ID, Image: "/uploads/new.png"})
	require.NoError(t, err)

	n, err := s.DeleteStoriesBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	stories, err := s.GetStories(ctx)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, fresh.ID, stories[0].ID)
}

func TestPingHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, New().Ping(ctx), context.Canceled)
}
