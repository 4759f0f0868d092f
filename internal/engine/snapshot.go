package engine

import (
	"context"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
)

// Snapshot is a full read of one table: the game row, every seat and every
// deed. It is what the HTTP API returns and what agent briefings start from.
type Snapshot struct {
	Game       *game.Game       `json:"game"`
	Players    []*game.Player   `json:"players"`
	Properties []*game.Property `json:"properties"`
}

// Snapshot loads one game with its players and properties. It holds the
// game's step lock, so the view never straddles a committing step.
func (e *Engine) Snapshot(ctx context.Context, gameID string) (*Snapshot, error) {
	mu := e.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	q := e.store.Queries()
	g, err := q.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	players, err := q.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	properties, err := q.ListProperties(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Game: g, Players: players, Properties: properties}, nil
}

// Turns returns the per-turn journal of one game, oldest first.
func (e *Engine) Turns(ctx context.Context, gameID string) ([]*game.Turn, error) {
	return e.store.Queries().ListTurns(ctx, gameID)
}

// Decisions returns the decision log of one game, oldest first.
func (e *Engine) Decisions(ctx context.Context, gameID string) ([]*decision.Record, error) {
	return e.store.Queries().ListDecisions(ctx, gameID)
}

// Events returns the persisted event feed of one game, oldest first. Unlike
// the in-memory log this survives restarts.
func (e *Engine) Events(ctx context.Context, gameID string, limit int) ([]events.GameEvent, error) {
	return e.store.Queries().ListEvents(ctx, gameID, limit)
}
