// Package retention prunes aged URL logs and daily stats.
package retention

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/focusd/internal/config"
	"github.com/goodtune/focusd/internal/storage"
)

// Scheduler runs a cleanup pass once a day.
type Scheduler struct {
	store    storage.Store
	cfg      config.RetentionConfig
	logger   zerolog.Logger
	stopChan chan struct{}
}

// NewScheduler creates a retention scheduler.
func NewScheduler(store storage.Store, cfg config.RetentionConfig, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:    store,
		cfg:      cfg,
		logger:   logger.With().Str("component", "retention").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins the cleanup loop. The first pass runs shortly after
// startup so a long-running daemon restarted rarely still prunes.
func (s *Scheduler) Start() {
	go s.run()
	s.logger.Info().
		Int("url_log_days", s.cfg.URLLogDays).
		Int("stats_days", s.cfg.StatsDays).
		Msg("Retention scheduler started")
}

// Stop stops the cleanup loop.
func (s *Scheduler) Stop() {
	close(s.stopChan)
}

func (s *Scheduler) run() {
	wait := time.Minute
	for {
		select {
		case <-time.After(wait):
			s.Cleanup(context.Background())
			wait = 24 * time.Hour
		case <-s.stopChan:
			return
		}
	}
}

// Cleanup runs one pruning pass.
func (s *Scheduler) Cleanup(ctx context.Context) {
	now := time.Now()

	if days := s.cfg.URLLogDays; days > 0 {
		cutoff := now.AddDate(0, 0, -days)
		n, err := s.store.Logs().DeleteURLLogsBefore(ctx, cutoff)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to prune URL logs")
		} else if n > 0 {
			s.logger.Info().Int("deleted", n).Time("cutoff", cutoff).Msg("Pruned URL logs")
		}
	}

	if days := s.cfg.StatsDays; days > 0 {
		cutoffDate := now.AddDate(0, 0, -days).Format("2006-01-02")
		n, err := s.store.Stats().DeleteStatsBefore(ctx, cutoffDate)
		if err != nil {
			s.logger.Error().Err(err).Msg("Failed to prune daily stats")
		} else if n > 0 {
			s.logger.Info().Int("deleted", n).Str("cutoff", cutoffDate).Msg("Pruned daily stats")
		}
	}
}
