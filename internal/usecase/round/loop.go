package round

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/omegavid/validator/internal/domain"
)

// Run executes rounds until the context is cancelled or a restart is
// required. Round errors are logged and the loop continues; a stale build
// detected by the version source ends the loop with domain.ErrRestartRequired
// so the supervisor can restart the process on the new release.
func (s *Service) Run(ctx context.Context) error {
	for {
		start := time.Now()

		if err := s.RunRound(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			switch {
			case errors.Is(err, domain.ErrNotRegistered):
				s.logger.Error("validator is not registered, skipping round", zap.Error(err))
			case errors.Is(err, domain.ErrEmptyScoreMap):
				s.logger.Warn("round produced no scores, skipping weight submission")
			default:
				s.logger.Error("round failed", zap.Error(err))
			}
		}

		if s.shouldRestart(ctx) {
			return domain.ErrRestartRequired
		}

		if remaining := s.settings.IterationInterval - time.Since(start); remaining > 0 {
			s.logger.Info("sleeping until next round", zap.Duration("for", remaining))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(remaining):
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// shouldRestart rate-limits version checks to the configured interval and
// reports true only when the version source confirms a newer release exists.
func (s *Service) shouldRestart(ctx context.Context) bool {
	if s.versions == nil {
		return false
	}
	if time.Since(s.lastUpdateCheck) < s.settings.UpdateCheckInterval {
		return false
	}
	s.lastUpdateCheck = time.Now()

	latest, err := s.versions.IsLatest(ctx)
	if err != nil {
		s.logger.Warn("version check failed", zap.Error(err))
		return false
	}
	if !latest {
		s.logger.Info("newer release detected, requesting restart")
	}
	return !latest
}
