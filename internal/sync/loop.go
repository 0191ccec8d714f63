package sync

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StartLoop launches the background drain: every interval it verifies real
// connectivity (the probe, never the bare flag) and replays due entries.
// It respects ctx for graceful shutdown.
func (m *Manager) StartLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Dur("interval", interval).Msg("sync: background loop started")
		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("sync: background loop shutting down")
				return
			case <-ticker.C:
				m.tick(ctx)
			}
		}
	}()
}

func (m *Manager) tick(ctx context.Context) {
	counts, err := m.outbox.Count(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sync: pending count failed")
		return
	}
	if counts.Total == 0 {
		return
	}
	if !m.oracle.CheckActualConnectivity(ctx) {
		log.Debug().Int64("pending", counts.Total).Msg("sync: offline, holding outbox")
		return
	}
	if _, err := m.syncDue(ctx); err != nil {
		log.Error().Err(err).Msg("sync: background pass failed")
	}
}
