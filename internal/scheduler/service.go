package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"taskmaster/internal/queue"
)

// Service runs periodic queue housekeeping: expired leases go back to the
// queue so reminders are delivered at least once, and failed jobs are
// purged after a retention period.
type Service struct {
	repo        queue.Repository
	cron        *cron.Cron
	now         func() time.Time
	purgeAfter  time.Duration
	recoverSpec string
	purgeSpec   string
}

func NewService(repo queue.Repository, recoverSpec, purgeSpec string, purgeAfter time.Duration) *Service {
	return &Service{
		repo:        repo,
		cron:        cron.New(),
		now:         time.Now,
		purgeAfter:  purgeAfter,
		recoverSpec: recoverSpec,
		purgeSpec:   purgeSpec,
	}
}

// Start registers the housekeeping entries and runs them until ctx is done.
func (s *Service) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.recoverSpec, func() { s.RecoverStale(ctx) }); err != nil {
		return fmt.Errorf("recover schedule %q: %w", s.recoverSpec, err)
	}
	if _, err := s.cron.AddFunc(s.purgeSpec, func() { s.PurgeFailed(ctx) }); err != nil {
		return fmt.Errorf("purge schedule %q: %w", s.purgeSpec, err)
	}
	s.cron.Start()
	log.Info().Str("recover", s.recoverSpec).Str("purge", s.purgeSpec).Msg("queue housekeeping started")

	go func() {
		<-ctx.Done()
		<-s.cron.Stop().Done()
	}()
	return nil
}

func (s *Service) RecoverStale(ctx context.Context) int {
	n, err := s.repo.RecoverStale(ctx, s.now())
	if err != nil {
		log.Error().Err(err).Msg("failed to recover stale jobs")
		return 0
	}
	if n > 0 {
		log.Info().Int("recovered", n).Msg("requeued jobs with expired leases")
	}
	return n
}

func (s *Service) PurgeFailed(ctx context.Context) int {
	n, err := s.repo.PurgeFailed(ctx, s.now().Add(-s.purgeAfter))
	if err != nil {
		log.Error().Err(err).Msg("failed to purge failed jobs")
		return 0
	}
	if n > 0 {
		log.Info().Int("purged", n).Msg("purged failed jobs")
	}
	return n
}
