package storage

import (
	"context"
	"fmt"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
)

// RecoveredGame summarizes one in-progress game found at boot. Because the
// whole engine state lives in rows (including pending decisions), a restart
// only needs this scan to pick up every game where it left off.
type RecoveredGame struct {
	ID        string
	Suspended bool // A pending decision is waiting for an agent
	Paused    bool
}

// ScanRecoverable lists the games a fresh process must re-arm: suspended
// ones get their agents re-notified, paused ones wait for an operator, the
// rest get a step scheduled.
func (s *Store) ScanRecoverable(ctx context.Context) ([]RecoveredGame, error) {
	games, err := s.Queries().ListGamesByStatus(ctx, game.StatusInProgress)
	if err != nil {
		return nil, fmt.Errorf("failed to scan recoverable games: %w", err)
	}

	recovered := make([]RecoveredGame, 0, len(games))
	for _, g := range games {
		recovered = append(recovered, RecoveredGame{
			ID:        g.ID,
			Suspended: g.Suspended(),
			Paused:    g.IsPaused,
		})
	}
	return recovered, nil
}
