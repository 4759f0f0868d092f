package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/logger"
)

// newTestEngine wires an engine to an in-memory database. The step delay is
// huge so armed timers never fire behind the test's back; tests drive the
// machine by calling Advance themselves.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("Expected in-memory database, got %v", err)
	}
	t.Cleanup(func() { db.Close() })

	feed := events.NewEventLog(nil, 0)
	t.Cleanup(feed.Close)

	e := NewEngine(storage.New(db), feed, logger.NewLogger())
	t.Cleanup(e.Shutdown)
	return e
}

func testConfig() game.Config {
	return game.Config{
		TurnLimit:         0,
		StepDelayMs:       3600000, // Never fires during a test
		StartingMoney:     1500,
		DecisionTimeoutMs: 0,
	}
}

// setupMatch creates and starts a game with the given seats.
func setupMatch(t *testing.T, e *Engine, cfg game.Config, names ...string) (*game.Game, []*game.Player) {
	t.Helper()
	ctx := context.Background()

	g, err := e.CreateGame(ctx, cfg)
	if err != nil {
		t.Fatalf("Expected game creation, got %v", err)
	}
	players := make([]*game.Player, 0, len(names))
	for _, name := range names {
		p, err := e.AddPlayer(ctx, g.ID, name)
		if err != nil {
			t.Fatalf("Expected %s to join, got %v", name, err)
		}
		players = append(players, p)
	}
	if err := e.StartGame(ctx, g.ID); err != nil {
		t.Fatalf("Expected game start, got %v", err)
	}
	return g, players
}

// scriptDice replaces the roller with a fixed sequence, repeating the last
// pair when the script runs out.
func scriptDice(e *Engine, rolls ...[2]int) {
	i := 0
	e.roll = func() (int, int) {
		r := rolls[i]
		if i < len(rolls)-1 {
			i++
		}
		return r[0], r[1]
	}
}

func mustAdvance(t *testing.T, e *Engine, gameID string, times int) {
	t.Helper()
	for i := 0; i < times; i++ {
		if err := e.Advance(context.Background(), gameID); err != nil {
			t.Fatalf("Expected step %d to run, got %v", i+1, err)
		}
	}
}

func getGame(t *testing.T, e *Engine, gameID string) *game.Game {
	t.Helper()
	g, err := e.store.Queries().GetGame(context.Background(), gameID)
	if err != nil {
		t.Fatalf("Expected game to load, got %v", err)
	}
	return g
}

func getPlayer(t *testing.T, e *Engine, playerID string) *game.Player {
	t.Helper()
	p, err := e.store.Queries().GetPlayer(context.Background(), playerID)
	if err != nil {
		t.Fatalf("Expected player to load, got %v", err)
	}
	return p
}

func getProperty(t *testing.T, e *Engine, gameID string, position int) *game.Property {
	t.Helper()
	pr, err := e.store.Queries().GetPropertyByPosition(context.Background(), gameID, position)
	if err != nil {
		t.Fatalf("Expected property at %d to load, got %v", position, err)
	}
	return pr
}

func putPlayer(t *testing.T, e *Engine, p *game.Player) {
	t.Helper()
	if err := e.store.Queries().UpdatePlayer(context.Background(), p); err != nil {
		t.Fatalf("Expected player update, got %v", err)
	}
}

func putProperty(t *testing.T, e *Engine, pr *game.Property) {
	t.Helper()
	if err := e.store.Queries().UpdateProperty(context.Background(), pr); err != nil {
		t.Fatalf("Expected property update, got %v", err)
	}
}

func putGame(t *testing.T, e *Engine, g *game.Game) {
	t.Helper()
	if err := e.store.Queries().UpdateGame(context.Background(), g); err != nil {
		t.Fatalf("Expected game update, got %v", err)
	}
}

func TestStartGameMaterializesTheBoard(t *testing.T) {
	e := newTestEngine(t)
	g, players := setupMatch(t, e, testConfig(), "Ana", "Bruno")

	loaded := getGame(t, e, g.ID)
	if loaded.Status != game.StatusInProgress || loaded.Phase != game.PhasePreRoll {
		t.Errorf("Expected in_progress/pre_roll, got %s/%s", loaded.Status, loaded.Phase)
	}
	if loaded.TurnNumber != 1 {
		t.Errorf("Expected turn 1 open, got %d", loaded.TurnNumber)
	}
	if len(loaded.ChanceDeck) != len(board.ChanceCards) || len(loaded.ChestDeck) != len(board.ChestCards) {
		t.Errorf("Expected full shuffled decks, got %d/%d", len(loaded.ChanceDeck), len(loaded.ChestDeck))
	}

	props, err := e.store.Queries().ListProperties(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("Expected properties to list, got %v", err)
	}
	if len(props) != len(board.PurchasablePositions()) {
		t.Errorf("Expected %d property rows, got %d", len(board.PurchasablePositions()), len(props))
	}
	for _, pr := range props {
		if pr.Owned() {
			t.Errorf("Expected %s to start with the bank, got owner %s", pr.Name, pr.OwnerID)
		}
	}

	for _, p := range players {
		loaded := getPlayer(t, e, p.ID)
		if loaded.Cash != 1500 || loaded.Position != board.GoPosition {
			t.Errorf("Expected %s at the start with 1500, got %d at %d", p.Name, loaded.Cash, loaded.Position)
		}
	}
}

func TestStartGameRequiresTwoPlayers(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	g, err := e.CreateGame(ctx, testConfig())
	if err != nil {
		t.Fatalf("Expected game creation, got %v", err)
	}
	if _, err := e.AddPlayer(ctx, g.ID, "Solitaria"); err != nil {
		t.Fatalf("Expected join, got %v", err)
	}

	if err := e.StartGame(ctx, g.ID); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Errorf("Expected ErrNotEnoughPlayers, got %v", err)
	}
}

func TestAdvanceRejectsNonRunningGame(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	g, err := e.CreateGame(ctx, testConfig())
	if err != nil {
		t.Fatalf("Expected game creation, got %v", err)
	}

	if err := e.Advance(ctx, g.ID); !errors.Is(err, ErrGameNotRunning) {
		t.Errorf("Expected ErrGameNotRunning for a setup game, got %v", err)
	}
}

func TestPausedGameDoesNotStep(t *testing.T) {
	e := newTestEngine(t)
	g, _ := setupMatch(t, e, testConfig(), "Ana", "Bruno")

	if err := e.PauseGame(context.Background(), g.ID); err != nil {
		t.Fatalf("Expected pause, got %v", err)
	}
	mustAdvance(t, e, g.ID, 1)

	loaded := getGame(t, e, g.ID)
	if loaded.Phase != game.PhasePreRoll {
		t.Errorf("Expected a paused game to stay in pre_roll, got %s", loaded.Phase)
	}

	if err := e.ResumeGame(context.Background(), g.ID); err != nil {
		t.Fatalf("Expected resume, got %v", err)
	}
	mustAdvance(t, e, g.ID, 1)
	if loaded := getGame(t, e, g.ID); loaded.Phase != game.PhaseRolling {
		t.Errorf("Expected the resumed game to step to rolling, got %s", loaded.Phase)
	}
}

func TestAbandonClearsPendingDecision(t *testing.T) {
	e := newTestEngine(t)
	g, players := setupMatch(t, e, testConfig(), "Ana", "Bruno")
	scriptDice(e, [2]int{1, 2}) // Lands on Plaza Lavapiés, affordable

	mustAdvance(t, e, g.ID, 3) // pre_roll, rolling, post_roll raises the buy gate
	if loaded := getGame(t, e, g.ID); !loaded.Suspended() {
		t.Fatalf("Expected a pending buy decision, got none")
	}

	if err := e.AbandonGame(context.Background(), g.ID); err != nil {
		t.Fatalf("Expected abandon, got %v", err)
	}

	loaded := getGame(t, e, g.ID)
	if loaded.Status != game.StatusAbandoned || loaded.EndingReason != game.EndingManualStop {
		t.Errorf("Expected abandoned/manual_stop, got %s/%s", loaded.Status, loaded.EndingReason)
	}
	if loaded.Suspended() {
		t.Error("Expected the pending decision to be discarded")
	}
	if loaded.WinnerID != "" {
		t.Errorf("Expected no winner, got %s", loaded.WinnerID)
	}
	_ = players
}

func TestRecoverReschedulesRunningGames(t *testing.T) {
	e := newTestEngine(t)
	g, _ := setupMatch(t, e, testConfig(), "Ana", "Bruno")

	// Simulate a restart: nothing armed, then recovery scans the store
	e.sched.Cancel(g.ID)
	if err := e.Recover(context.Background()); err != nil {
		t.Fatalf("Expected recovery, got %v", err)
	}

	e.sched.mu.Lock()
	_, armed := e.sched.timers[g.ID]
	e.sched.mu.Unlock()
	if !armed {
		t.Error("Expected recovery to re-arm the game's step timer")
	}
}
