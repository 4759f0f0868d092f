package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("Expected in-memory database to open, got %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func TestGameRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	g := game.NewGame(uuid.NewString(), game.DefaultConfig())
	g.Status = game.StatusInProgress
	g.TurnNumber = 7
	g.Pending = &decision.Pending{
		Type:         decision.TypeBuyProperty,
		PlayerID:     "ana",
		Position:     39,
		Price:        400,
		RolledDouble: true,
		Options:      decision.Legal[decision.TypeBuyProperty],
		RequestedAt:  time.Now().UTC(),
	}

	if err := store.Queries().InsertGame(ctx, g); err != nil {
		t.Fatalf("Expected insert to succeed, got %v", err)
	}

	loaded, err := store.Queries().GetGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("Expected game to load, got %v", err)
	}

	if loaded.Status != game.StatusInProgress || loaded.TurnNumber != 7 {
		t.Errorf("Expected status/turn to survive, got %s/%d", loaded.Status, loaded.TurnNumber)
	}
	if len(loaded.ChanceDeck) != len(board.ChanceCards) {
		t.Errorf("Expected full chance deck, got %d cards", len(loaded.ChanceDeck))
	}
	if loaded.Pending == nil {
		t.Fatal("Expected the pending decision to survive the round trip")
	}
	if loaded.Pending.Type != decision.TypeBuyProperty || loaded.Pending.Position != 39 || !loaded.Pending.RolledDouble {
		t.Errorf("Expected pending decision fields to survive, got %+v", loaded.Pending)
	}
}

func TestGetGameMissingIsNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Queries().GetGame(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStepRollsBackOnError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	g := game.NewGame(uuid.NewString(), game.DefaultConfig())
	if err := store.Queries().InsertGame(ctx, g); err != nil {
		t.Fatalf("Expected insert to succeed, got %v", err)
	}

	boom := errors.New("boom")
	err := store.Step(ctx, func(q *Queries) error {
		g.TurnNumber = 99
		if err := q.UpdateGame(ctx, g); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected the step error to surface, got %v", err)
	}

	loaded, err := store.Queries().GetGame(ctx, g.ID)
	if err != nil {
		t.Fatalf("Expected game to load, got %v", err)
	}
	if loaded.TurnNumber != 0 {
		t.Errorf("Expected rollback to keep turn 0, got %d", loaded.TurnNumber)
	}
}

func TestSurrenderClearsHousesAndMortgages(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	g := game.NewGame(uuid.NewString(), game.DefaultConfig())
	if err := store.Queries().InsertGame(ctx, g); err != nil {
		t.Fatalf("Expected insert to succeed, got %v", err)
	}

	for _, pos := range []int{37, 39} {
		space := board.At(pos)
		prop := &game.Property{
			ID:       uuid.NewString(),
			GameID:   g.ID,
			Position: pos,
			Name:     space.Name,
			Group:    space.Group,
			Price:    space.Price,
			OwnerID:  "ana",
		}
		if err := store.Queries().InsertProperty(ctx, prop); err != nil {
			t.Fatalf("Expected property insert, got %v", err)
		}
	}

	// Decorate ana's holdings before she goes under
	props, _ := store.Queries().ListProperties(ctx, g.ID)
	props[0].Houses = 3
	props[1].IsMortgaged = true
	for _, p := range props {
		if err := store.Queries().UpdateProperty(ctx, p); err != nil {
			t.Fatalf("Expected property update, got %v", err)
		}
	}

	if err := store.Queries().SurrenderProperties(ctx, g.ID, "ana"); err != nil {
		t.Fatalf("Expected surrender to succeed, got %v", err)
	}

	props, err := store.Queries().ListProperties(ctx, g.ID)
	if err != nil {
		t.Fatalf("Expected list to succeed, got %v", err)
	}
	for _, p := range props {
		if p.OwnerID != "" || p.Houses != 0 || p.IsMortgaged {
			t.Errorf("Expected %s to return to the bank clean, got owner=%q houses=%d mortgaged=%v",
				p.Name, p.OwnerID, p.Houses, p.IsMortgaged)
		}
	}
}

func TestTransferKeepsMortgageFlags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	g := game.NewGame(uuid.NewString(), game.DefaultConfig())
	if err := store.Queries().InsertGame(ctx, g); err != nil {
		t.Fatalf("Expected insert to succeed, got %v", err)
	}

	space := board.At(39)
	prop := &game.Property{
		ID: uuid.NewString(), GameID: g.ID, Position: 39,
		Name: space.Name, Group: space.Group, Price: space.Price,
		OwnerID: "ana", IsMortgaged: true,
	}
	if err := store.Queries().InsertProperty(ctx, prop); err != nil {
		t.Fatalf("Expected property insert, got %v", err)
	}

	if err := store.Queries().TransferProperties(ctx, g.ID, "ana", "bruno"); err != nil {
		t.Fatalf("Expected transfer to succeed, got %v", err)
	}

	loaded, err := store.Queries().GetPropertyByPosition(ctx, g.ID, 39)
	if err != nil {
		t.Fatalf("Expected property to load, got %v", err)
	}
	if loaded.OwnerID != "bruno" || !loaded.IsMortgaged {
		t.Errorf("Expected bruno to inherit the mortgaged deed, got owner=%q mortgaged=%v",
			loaded.OwnerID, loaded.IsMortgaged)
	}
}

func TestScanRecoverable(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	running := game.NewGame(uuid.NewString(), game.DefaultConfig())
	running.Status = game.StatusInProgress

	suspended := game.NewGame(uuid.NewString(), game.DefaultConfig())
	suspended.Status = game.StatusInProgress
	suspended.Pending = &decision.Pending{Type: decision.TypeJailStrategy, PlayerID: "ana"}

	finished := game.NewGame(uuid.NewString(), game.DefaultConfig())
	finished.Status = game.StatusCompleted

	for _, g := range []*game.Game{running, suspended, finished} {
		if err := store.Queries().InsertGame(ctx, g); err != nil {
			t.Fatalf("Expected insert to succeed, got %v", err)
		}
	}

	recovered, err := store.ScanRecoverable(ctx)
	if err != nil {
		t.Fatalf("Expected scan to succeed, got %v", err)
	}

	if len(recovered) != 2 {
		t.Fatalf("Expected 2 recoverable games, got %d", len(recovered))
	}
	byID := map[string]RecoveredGame{}
	for _, r := range recovered {
		byID[r.ID] = r
	}
	if byID[running.ID].Suspended {
		t.Error("Expected the running game to not be suspended")
	}
	if !byID[suspended.ID].Suspended {
		t.Error("Expected the gated game to be suspended")
	}
}
