package report

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultCleanupInterval = 5 * time.Minute

// RunCleaner removes expired artifacts and expired form sessions with their
// data until ctx ends.
func (s *Service) RunCleaner(ctx context.Context, sessions SessionPurger, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx, sessions)
		}
	}
}

// Sweep runs one cleanup pass.
func (s *Service) Sweep(ctx context.Context, sessions SessionPurger) {
	if s.artifacts != nil {
		removed, err := s.artifacts.CleanupExpired(ctx)
		if err != nil {
			s.logger.Error("cleanup artifacts failed", zap.Error(err))
		} else if removed > 0 {
			s.logger.Info("expired artifacts removed", zap.Int("count", removed))
		}
	}
	if sessions == nil {
		return
	}
	tokens, err := sessions.PurgeExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("purge sessions failed", zap.Error(err))
		return
	}
	for _, token := range tokens {
		if err := s.PurgeSession(ctx, token); err != nil {
			s.logger.Warn("purge session data failed", zap.Error(err))
		}
	}
	if len(tokens) > 0 {
		s.logger.Info("expired sessions removed", zap.Int("count", len(tokens)))
	}
}
