package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialhub/models"
	"socialhub/storage/memory"
)

func TestSweepOnceRemovesExpiredStories(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store := memory.New(memory.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	u, err := store.CreateUser(ctx, models.User{Username: "mia", DisplayName: "Mia"})
	require.NoError(t, err)
	_, err = store.CreateStory(ctx, models.Story{UserID: u.ID, Image: "old.jpg"})
	require.NoError(t, err)
	now = now.Add(23 * time.Hour)
	fresh, err := store.CreateStory(ctx, models.Story{UserID: u.ID, Image: "fresh.jpg"})
	require.NoError(t, err)

	swept := prometheus.NewCounter(prometheus.CounterOpts{Name: "swept"})
	s := &StorySweeper{
		Store: store,
		TTL:   24 * time.Hour,
		Log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Swept: swept,
		Now:   func() time.Time { return now.Add(2 * time.Hour) },
	}
	n, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.InDelta(t, 1, testutil.ToFloat64(swept), 0)

	left, err := store.GetStories(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, fresh.ID, left[0].ID)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &StorySweeper{
		Store:    memory.New(),
		TTL:      time.Hour,
		Interval: 10 * time.Millisecond,
		Log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}
