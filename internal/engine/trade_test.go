package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
)

// setupTradeTable gives Ana a mortgaged deed (so her pre-roll gate opens),
// a clear deed to offer, and Bruno a deed worth asking for. Returns the two
// tradeable properties.
func setupTradeTable(t *testing.T, e *Engine, gameID string, ana, bruno string) (*game.Property, *game.Property) {
	t.Helper()
	gate := getProperty(t, e, gameID, 1)
	gate.OwnerID = ana
	gate.IsMortgaged = true
	putProperty(t, e, gate)

	offered := getProperty(t, e, gameID, 6)
	offered.OwnerID = ana
	putProperty(t, e, offered)

	requested := getProperty(t, e, gameID, 39)
	requested.OwnerID = bruno
	putProperty(t, e, requested)

	mustAdvance(t, e, gameID, 1)
	loaded := getGame(t, e, gameID)
	if !loaded.Suspended() || loaded.Pending.Type != decision.TypePreRollActions {
		t.Fatalf("Expected Ana's asset gate open, got %+v", loaded.Pending)
	}
	return offered, requested
}

func TestTradeAcceptSwapsDeedsAndCash(t *testing.T) {
	e := newTestEngine(t)
	g, players := setupMatch(t, e, testConfig(), "Ana", "Bruno")
	ana, bruno := players[0], players[1]
	offered, requested := setupTradeTable(t, e, g.ID, ana.ID, bruno.ID)
	ctx := context.Background()

	// Act: Ana offers a deed plus 100 for Bruno's deed
	err := e.ResolveDecision(ctx, g.ID, Resolution{
		Action: decision.ActionTrade,
		Trade: &decision.TradeProposal{
			CounterpartyID: bruno.ID,
			OfferedIDs:     []string{offered.ID},
			RequestedIDs:   []string{requested.ID},
			CashDelta:      100,
		},
	})
	if err != nil {
		t.Fatalf("Expected the proposal to resolve, got %v", err)
	}

	loaded := getGame(t, e, g.ID)
	if !loaded.Suspended() || loaded.Pending.Type != decision.TypeTradeResponse {
		t.Fatalf("Expected Bruno asked to respond, got %+v", loaded.Pending)
	}
	if loaded.Pending.PlayerID != bruno.ID {
		t.Errorf("Expected the response from %s, got %s", bruno.ID, loaded.Pending.PlayerID)
	}

	if err := e.ResolveDecision(ctx, g.ID, Resolution{Action: decision.ActionAccept}); err != nil {
		t.Fatalf("Expected the acceptance to resolve, got %v", err)
	}

	// Assert: deeds and cash moved atomically
	if pr := getProperty(t, e, g.ID, 6); pr.OwnerID != bruno.ID {
		t.Errorf("Expected the offered deed with Bruno, got %q", pr.OwnerID)
	}
	if pr := getProperty(t, e, g.ID, 39); pr.OwnerID != ana.ID {
		t.Errorf("Expected the requested deed with Ana, got %q", pr.OwnerID)
	}
	if p := getPlayer(t, e, ana.ID); p.Cash != 1400 {
		t.Errorf("Expected Ana at 1400 after the cash leg, got %d", p.Cash)
	}
	if p := getPlayer(t, e, bruno.ID); p.Cash != 1600 {
		t.Errorf("Expected Bruno at 1600, got %d", p.Cash)
	}

	// Settlement returns control to the turn owner's gate
	loaded = getGame(t, e, g.ID)
	if !loaded.Suspended() || loaded.Pending.Type != decision.TypePreRollActions {
		t.Fatalf("Expected Ana's gate back, got %+v", loaded.Pending)
	}
	if loaded.Pending.PlayerID != ana.ID || loaded.Pending.ActionsTaken != 1 {
		t.Errorf("Expected Ana with one action spent, got %s with %d", loaded.Pending.PlayerID, loaded.Pending.ActionsTaken)
	}
}

func TestTradeRejectLeavesEverythingInPlace(t *testing.T) {
	e := newTestEngine(t)
	g, players := setupMatch(t, e, testConfig(), "Ana", "Bruno")
	ana, bruno := players[0], players[1]
	offered, requested := setupTradeTable(t, e, g.ID, ana.ID, bruno.ID)
	ctx := context.Background()

	// Act
	err := e.ResolveDecision(ctx, g.ID, Resolution{
		Action: decision.ActionTrade,
		Trade: &decision.TradeProposal{
			CounterpartyID: bruno.ID,
			OfferedIDs:     []string{offered.ID},
			RequestedIDs:   []string{requested.ID},
		},
	})
	if err != nil {
		t.Fatalf("Expected the proposal to resolve, got %v", err)
	}
	if err := e.ResolveDecision(ctx, g.ID, Resolution{Action: decision.ActionReject}); err != nil {
		t.Fatalf("Expected the rejection to resolve, got %v", err)
	}

	// Assert
	if pr := getProperty(t, e, g.ID, 6); pr.OwnerID != ana.ID {
		t.Errorf("Expected the offered deed still with Ana, got %q", pr.OwnerID)
	}
	if pr := getProperty(t, e, g.ID, 39); pr.OwnerID != bruno.ID {
		t.Errorf("Expected the requested deed still with Bruno, got %q", pr.OwnerID)
	}
	loaded := getGame(t, e, g.ID)
	if !loaded.Suspended() || loaded.Pending.Type != decision.TypePreRollActions {
		t.Fatalf("Expected Ana's gate back after the rejection, got %+v", loaded.Pending)
	}
}

func TestTradeCounterBouncesExactlyOnce(t *testing.T) {
	e := newTestEngine(t)
	g, players := setupMatch(t, e, testConfig(), "Ana", "Bruno")
	ana, bruno := players[0], players[1]
	offered, requested := setupTradeTable(t, e, g.ID, ana.ID, bruno.ID)
	ctx := context.Background()

	err := e.ResolveDecision(ctx, g.ID, Resolution{
		Action: decision.ActionTrade,
		Trade: &decision.TradeProposal{
			CounterpartyID: bruno.ID,
			OfferedIDs:     []string{offered.ID},
			RequestedIDs:   []string{requested.ID},
		},
	})
	if err != nil {
		t.Fatalf("Expected the proposal to resolve, got %v", err)
	}

	// Act: Bruno counters with his own terms, the same deeds plus 200
	err = e.ResolveDecision(ctx, g.ID, Resolution{
		Action: decision.ActionCounter,
		Trade: &decision.TradeProposal{
			OfferedIDs:   []string{requested.ID},
			RequestedIDs: []string{offered.ID},
			CashDelta:    -200,
		},
	})
	if err != nil {
		t.Fatalf("Expected the counteroffer to resolve, got %v", err)
	}

	loaded := getGame(t, e, g.ID)
	if !loaded.Suspended() || loaded.Pending.Type != decision.TypeTradeResponse {
		t.Fatalf("Expected the counter back with Ana, got %+v", loaded.Pending)
	}
	if loaded.Pending.PlayerID != ana.ID || !loaded.Pending.Trade.Countered {
		t.Errorf("Expected Ana answering a countered trade, got %s countered=%v",
			loaded.Pending.PlayerID, loaded.Pending.Trade.Countered)
	}

	// A second counter must bounce
	err = e.ResolveDecision(ctx, g.ID, Resolution{
		Action: decision.ActionCounter,
		Trade: &decision.TradeProposal{
			OfferedIDs:   []string{offered.ID},
			RequestedIDs: []string{requested.ID},
		},
	})
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("Expected the second counter refused, got %v", err)
	}

	// Accepting the counter settles it with the roles flipped
	if err := e.ResolveDecision(ctx, g.ID, Resolution{Action: decision.ActionAccept}); err != nil {
		t.Fatalf("Expected the acceptance to resolve, got %v", err)
	}

	// Assert: Bruno proposed, so the cash leg flows from Ana to him
	if pr := getProperty(t, e, g.ID, 39); pr.OwnerID != ana.ID {
		t.Errorf("Expected Bruno's deed with Ana, got %q", pr.OwnerID)
	}
	if pr := getProperty(t, e, g.ID, 6); pr.OwnerID != bruno.ID {
		t.Errorf("Expected Ana's deed with Bruno, got %q", pr.OwnerID)
	}
	if p := getPlayer(t, e, ana.ID); p.Cash != 1300 {
		t.Errorf("Expected Ana at 1300 after paying the counter's 200, got %d", p.Cash)
	}
	if p := getPlayer(t, e, bruno.ID); p.Cash != 1700 {
		t.Errorf("Expected Bruno at 1700, got %d", p.Cash)
	}
}

func TestTradeWithBuildingsIsRejected(t *testing.T) {
	e := newTestEngine(t)
	g, players := setupMatch(t, e, testConfig(), "Ana", "Bruno")
	ana, bruno := players[0], players[1]
	offered, requested := setupTradeTable(t, e, g.ID, ana.ID, bruno.ID)

	// Setup: an improved deed cannot change hands
	offered.Houses = 1
	putProperty(t, e, offered)

	// Act
	err := e.ResolveDecision(context.Background(), g.ID, Resolution{
		Action: decision.ActionTrade,
		Trade: &decision.TradeProposal{
			CounterpartyID: bruno.ID,
			OfferedIDs:     []string{offered.ID},
			RequestedIDs:   []string{requested.ID},
		},
	})

	// Assert: refused, and the gate still waits on Ana
	if !errors.Is(err, ErrPrecondition) {
		t.Fatalf("Expected ErrPrecondition, got %v", err)
	}
	loaded := getGame(t, e, g.ID)
	if !loaded.Suspended() || loaded.Pending.Type != decision.TypePreRollActions {
		t.Errorf("Expected the asset gate still open, got %+v", loaded.Pending)
	}
	if pr := getProperty(t, e, g.ID, 39); pr.OwnerID != bruno.ID {
		t.Errorf("Expected nothing traded, got owner %q", pr.OwnerID)
	}
}
