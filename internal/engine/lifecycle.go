package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/metrics"
)

// CreateGame registers a new match in setup. Nothing is scheduled until it
// starts.
func (e *Engine) CreateGame(ctx context.Context, cfg game.Config) (*game.Game, error) {
	normalizeConfig(&cfg)
	g := game.NewGame(uuid.NewString(), cfg)
	if err := e.store.Queries().InsertGame(ctx, g); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}
	e.logger.Info("Game %s created", g.ID)
	return g, nil
}

func normalizeConfig(cfg *game.Config) {
	def := game.DefaultConfig()
	if cfg.StartingMoney <= 0 {
		cfg.StartingMoney = def.StartingMoney
	}
	if cfg.StepDelayMs < 0 {
		cfg.StepDelayMs = def.StepDelayMs
	}
	if cfg.TurnLimit < 0 {
		cfg.TurnLimit = def.TurnLimit
	}
	if cfg.DecisionTimeoutMs < 0 {
		cfg.DecisionTimeoutMs = def.DecisionTimeoutMs
	}
}

// AddPlayer seats a participant while the game is still in setup.
func (e *Engine) AddPlayer(ctx context.Context, gameID, name string) (*game.Player, error) {
	mu := e.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	var player *game.Player
	err := e.store.Step(ctx, func(q *storage.Queries) error {
		g, err := q.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.Status != game.StatusSetup {
			return fmt.Errorf("%w: %s", ErrGameNotJoinable, g.Status)
		}
		players, err := q.ListPlayers(ctx, gameID)
		if err != nil {
			return err
		}
		if len(players) >= maxPlayers {
			return ErrTableFull
		}
		player = game.NewPlayer(uuid.NewString(), gameID, name, len(players), g.Config.StartingMoney)
		return q.InsertPlayer(ctx, player)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("Player %s (%s) joined game %s", player.Name, player.ID, gameID)
	return player, nil
}

// StartGame moves a setup game into play: materializes the property rows,
// shuffles both decks, opens turn 1 and schedules the first step.
func (e *Engine) StartGame(ctx context.Context, gameID string) error {
	mu := e.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	var g *game.Game
	var first *game.Player
	err := e.store.Step(ctx, func(q *storage.Queries) error {
		var err error
		g, err = q.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.Status != game.StatusSetup {
			return fmt.Errorf("%w: %s", ErrGameNotJoinable, g.Status)
		}
		players, err := q.ListPlayers(ctx, gameID)
		if err != nil {
			return err
		}
		if len(players) < 2 {
			return ErrNotEnoughPlayers
		}

		for _, position := range board.PurchasablePositions() {
			space := board.At(position)
			prop := &game.Property{
				ID:       uuid.NewString(),
				GameID:   gameID,
				Position: position,
				Name:     space.Name,
				Group:    space.Group,
				Price:    space.Price,
			}
			if err := q.InsertProperty(ctx, prop); err != nil {
				return fmt.Errorf("failed to materialize %s: %w", space.Name, err)
			}
		}

		g.ChanceDeck = shuffledDeck(len(board.ChanceCards))
		g.ChestDeck = shuffledDeck(len(board.ChestCards))
		g.Status = game.StatusInProgress
		g.Phase = game.PhasePreRoll
		g.CurrentPlayerIndex = 0
		g.TurnNumber = 1
		g.UpdatedAt = time.Now().UTC()

		first = game.ActiveByTurnOrder(players)[0]
		turn := &game.Turn{
			ID:             uuid.NewString(),
			GameID:         gameID,
			TurnNumber:     1,
			PlayerID:       first.ID,
			PositionBefore: first.Position,
			PositionAfter:  first.Position,
			CashBefore:     first.Cash,
			CashAfter:      first.Cash,
			StartedAt:      time.Now().UTC(),
		}
		if err := q.InsertTurn(ctx, turn); err != nil {
			return fmt.Errorf("failed to open turn 1: %w", err)
		}
		return q.UpdateGame(ctx, g)
	})
	if err != nil {
		return err
	}

	metrics.Get().RecordGameStarted()
	e.feed.Append(events.New(gameID, 1, events.EventTypeGameStarted, "", "", "La partida comienza"))
	e.feed.Append(events.New(gameID, 1, events.EventTypeTurnStarted, first.ID, "",
		fmt.Sprintf("Turno 1: le toca a %s", first.Name)))
	e.logger.Info("Game %s started", gameID)
	e.armStep(g)
	return nil
}

// PauseGame freezes scheduling without losing phase state. A pending
// decision survives untouched; its timeout restarts on resume.
func (e *Engine) PauseGame(ctx context.Context, gameID string) error {
	mu := e.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	var g *game.Game
	err := e.store.Step(ctx, func(q *storage.Queries) error {
		var err error
		g, err = q.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.Status != game.StatusInProgress {
			return fmt.Errorf("%w: %s", ErrGameNotRunning, g.Status)
		}
		g.IsPaused = true
		g.UpdatedAt = time.Now().UTC()
		return q.UpdateGame(ctx, g)
	})
	if err != nil {
		return err
	}

	e.sched.Cancel(gameID)
	e.feed.Append(events.New(gameID, g.TurnNumber, events.EventTypeGamePaused, "", "", "Partida en pausa"))
	e.logger.Info("Game %s paused", gameID)
	return nil
}

// ResumeGame lifts the pause and re-arms whatever was due: the decision
// timeout if one is pending, the next step otherwise.
func (e *Engine) ResumeGame(ctx context.Context, gameID string) error {
	mu := e.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	var g *game.Game
	err := e.store.Step(ctx, func(q *storage.Queries) error {
		var err error
		g, err = q.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.Status != game.StatusInProgress {
			return fmt.Errorf("%w: %s", ErrGameNotRunning, g.Status)
		}
		g.IsPaused = false
		g.UpdatedAt = time.Now().UTC()
		return q.UpdateGame(ctx, g)
	})
	if err != nil {
		return err
	}

	e.feed.Append(events.New(gameID, g.TurnNumber, events.EventTypeGameResumed, "", "", "La partida se reanuda"))
	e.logger.Info("Game %s resumed", gameID)
	if g.Suspended() {
		e.armTimeout(g)
		e.notifyPending(g)
	} else {
		e.armStep(g)
	}
	return nil
}

// AbandonGame is the operator escape hatch: terminal from any non-terminal
// status, no winner, any pending decision discarded.
func (e *Engine) AbandonGame(ctx context.Context, gameID string) error {
	mu := e.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	var g *game.Game
	err := e.store.Step(ctx, func(q *storage.Queries) error {
		var err error
		g, err = q.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if g.Terminal() {
			return fmt.Errorf("%w: %s", ErrGameNotRunning, g.Status)
		}
		g.Status = game.StatusAbandoned
		g.Phase = game.PhaseGameOver
		g.EndingReason = game.EndingManualStop
		g.Pending = nil
		g.IsPaused = false
		g.UpdatedAt = time.Now().UTC()
		return q.UpdateGame(ctx, g)
	})
	if err != nil {
		return err
	}

	e.sched.Cancel(gameID)
	metrics.Get().RecordGameEnded(true)
	e.feed.Append(events.New(gameID, g.TurnNumber, events.EventTypeGameEnded, "", "", "Partida abandonada"))
	e.logger.Info("Game %s abandoned", gameID)
	return nil
}

// Recover re-arms every in_progress game found at boot: suspended games get
// their timeout and agent notification back, paused games stay put, the
// rest get a step scheduled.
func (e *Engine) Recover(ctx context.Context) error {
	recovered, err := e.store.ScanRecoverable(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan recoverable games: %w", err)
	}

	for _, r := range recovered {
		if r.Paused {
			e.logger.Info("Recovered game %s is paused; leaving it", r.ID)
			continue
		}
		g, err := e.store.Queries().GetGame(ctx, r.ID)
		if err != nil {
			e.logger.Warn("Recovered game %s vanished: %v", r.ID, err)
			continue
		}
		if r.Suspended {
			e.logger.Info("Recovered game %s awaits a decision; notifying agents", r.ID)
			e.armTimeout(g)
			e.notifyPending(g)
			continue
		}
		e.logger.Info("Recovered game %s; scheduling next step", r.ID)
		e.armStep(g)
	}

	if len(recovered) > 0 {
		e.logger.Info("Recovery re-armed %d game(s)", len(recovered))
	}
	return nil
}
