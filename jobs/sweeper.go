// Package jobs holds the background work the server runs next to HTTP.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"socialhub/storage"
)

// StorySweeper deletes stories older than TTL every Interval.
type StorySweeper struct {
	Store    storage.StoryStore
	TTL      time.Duration
	Interval time.Duration
	Log      *slog.Logger
	// Swept is optional.
	Swept prometheus.Counter
	Now   func() time.Time
}

// SweepOnce runs a single pass and returns how many stories were removed.
func (s *StorySweeper) SweepOnce(ctx context.Context) (int64, error) {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	n, err := s.Store.DeleteStoriesBefore(ctx, now().Add(-s.TTL))
	if err != nil {
		return 0, err
	}
	if s.Swept != nil {
		s.Swept.Add(float64(n))
	}
	return n, nil
}

// Run sweeps immediately and then on every tick until ctx is cancelled.
func (s *StorySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		n, err := s.SweepOnce(ctx)
		switch {
		case err != nil && ctx.Err() == nil:
			s.Log.Error("story sweep failed", "error", err)
		case n > 0:
			s.Log.Info("expired stories removed", "count", n, "ttl", s.TTL)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
