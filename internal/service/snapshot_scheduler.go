package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/trading-simulator/internal/logging"
)

// SnapshotScheduler periodically snapshots the active competition's
// portfolios. When no competition is active a tick is a no-op.
type SnapshotScheduler struct {
	competitions *CompetitionService
	interval     time.Duration
	logger       *logging.Logger
	cron         *cron.Cron
}

// NewSnapshotScheduler creates a scheduler ticking at the given interval
func NewSnapshotScheduler(competitions *CompetitionService, interval time.Duration) *SnapshotScheduler {
	return &SnapshotScheduler{
		competitions: competitions,
		interval:     interval,
		logger:       logging.GetGlobalLogger().WithField("service", "snapshot-scheduler"),
		cron:         cron.New(),
	}
}

// Start begins taking periodic snapshots until Stop is called
func (s *SnapshotScheduler) Start() error {
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick)
	if err != nil {
		return fmt.Errorf("failed to schedule snapshots: %w", err)
	}
	s.cron.Start()
	s.logger.WithField("interval", s.interval.String()).Info("snapshot scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for an in-flight tick to finish
func (s *SnapshotScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("snapshot scheduler stopped")
}

func (s *SnapshotScheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	active, err := s.competitions.GetActiveCompetition(ctx)
	if err != nil {
		s.logger.WithError(err).Error("failed to look up active competition")
		return
	}
	if active == nil {
		return
	}

	start := time.Now()
	if err := s.competitions.TakePortfolioSnapshots(ctx, active.ID); err != nil {
		s.logger.WithError(err).WithField("competition", active.ID).Error("snapshot run failed")
		return
	}
	s.logger.WithFields(map[string]interface{}{
		"competition": active.ID,
		"duration":    time.Since(start).String(),
	}).Info("snapshot run completed")
}
