package core

// scheduler.go runs background maintenance for the Service.
//
// The session sweeper discards import sessions that have sat in review
// longer than the configured TTL, so abandoned uploads do not pin memory.
// Sessions in the Applying state are never swept. Owner entries left idle
// without a session are dropped on the same pass.

import (
	"context"
	"log/slog"
	"time"
)

// SweepSessions discards sessions untouched for longer than ttl and returns
// how many were discarded.
func (s *Service) SweepSessions(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	swept := 0
	for ownerID, o := range s.owners {
		o.mu.Lock()
		switch {
		case o.state == StateApplying:
		case o.session != nil && o.touched.Before(cutoff):
			slog.Info("import session expired",
				"owner_id", ownerID,
				"session_id", o.session.ID,
				"idle_for", time.Since(o.touched).Round(time.Second).String(),
			)
			o.session = nil
			o.state = StateIdle
			swept++
		}
		if o.state == StateIdle && o.session == nil {
			delete(s.owners, ownerID)
		}
		o.mu.Unlock()
	}
	return swept
}

// StartSessionSweeper sweeps every interval until ctx is cancelled.
func (s *Service) StartSessionSweeper(ctx context.Context, interval, ttl time.Duration) {
	slog.Info("session sweeper started",
		"interval", interval.String(),
		"ttl", ttl.String(),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("session sweeper stopped")
			return
		case <-ticker.C:
			if n := s.SweepSessions(ttl); n > 0 {
				slog.Info("session sweep completed", "sessions_expired", n)
			}
		}
	}
}
