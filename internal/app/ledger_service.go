package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/plantboxd/internal/config"
	"github.com/dokzlo13/plantboxd/internal/ledger"
)

// LedgerService applies the ledger retention policy in the background.
type LedgerService struct {
	ledger    *ledger.Ledger
	enabled   bool
	retention time.Duration
	interval  time.Duration
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(cfg *config.Config, l *ledger.Ledger) *LedgerService {
	return &LedgerService{
		ledger:    l,
		enabled:   cfg.Ledger.IsEnabled(),
		retention: cfg.Ledger.Retention.Duration(),
		interval:  cfg.Ledger.CleanupInterval.Duration(),
	}
}

// Start begins periodic cleanup if the ledger is enabled.
func (s *LedgerService) Start(ctx context.Context) {
	if !s.enabled {
		log.Info().Msg("Event ledger is disabled")
		return
	}
	go s.run(ctx)
}

func (s *LedgerService) run(ctx context.Context) {
	s.cleanup(time.Now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.cleanup(now)
		}
	}
}

func (s *LedgerService) cleanup(now time.Time) {
	deleted, err := s.ledger.DeleteOlderThan(now.Add(-s.retention))
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", s.retention).Msg("Cleaned up old ledger entries")
	}
}
