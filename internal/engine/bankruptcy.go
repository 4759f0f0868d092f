package engine

import (
	"context"
	"fmt"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
)

// charge makes the debtor pay an obligation. creditor nil means the bank.
// A shortfall is not an error: it triggers bankruptcy, the designed exit.
// The creditor receives at most what the debtor actually had.
func (e *Engine) charge(ctx context.Context, q *storage.Queries, t *table, debtor, creditor *game.Player, amount int) error {
	debtor.Cash -= amount
	t.touch(debtor)
	if creditor != nil {
		creditor.Cash += amount
		t.touch(creditor)
	}

	if debtor.Cash >= 0 {
		return nil
	}

	// Claw the unpayable part back from the creditor: they only get the
	// debtor's remaining cash, the rest arrives as property.
	if creditor != nil {
		creditor.Cash += debtor.Cash
	}
	return e.bankrupt(ctx, q, t, debtor, creditor)
}

// bankrupt liquidates a player: cash zeroed, final standing recorded, every
// property re-parented to the creditor (or surrendered to the bank) in one
// batch statement. Bankrupt players never rotate, bid or decide again.
func (e *Engine) bankrupt(ctx context.Context, q *storage.Queries, t *table, debtor, creditor *game.Player) error {
	debtor.Cash = 0
	debtor.IsBankrupt = true
	debtor.BankruptedOnTurn = t.game.TurnNumber
	debtor.FinalRank = len(t.active()) + 1
	debtor.FinalNetWorth = 0
	t.touch(debtor)

	creditorID := ""
	creditorName := "la banca"
	if creditor != nil {
		creditorID = creditor.ID
		creditorName = creditor.Name
	}

	if creditorID == "" {
		if err := q.SurrenderProperties(ctx, t.game.ID, debtor.ID); err != nil {
			return fmt.Errorf("failed to surrender properties: %w", err)
		}
	} else {
		if err := q.TransferProperties(ctx, t.game.ID, debtor.ID, creditorID); err != nil {
			return fmt.Errorf("failed to transfer properties: %w", err)
		}
	}
	t.reparent(debtor.ID, creditorID)

	t.emit(events.EventTypeBankruptcy, debtor.ID, creditorID,
		fmt.Sprintf("%s quiebra; sus propiedades pasan a %s", debtor.Name, creditorName))
	e.logger.Event("BANKRUPTCY", debtor.ID,
		fmt.Sprintf("game=%s turn=%d rank=%d", t.game.ID, t.game.TurnNumber, debtor.FinalRank))

	e.recordLiquidation(t, debtor)

	// The seat the debtor occupied disappears from the rotation; keep the
	// index pointing at the turn owner when they sat later in the order.
	e.fixCurrentIndex(t)
	return nil
}

// recordLiquidation appends the forced bankruptcy entry to the decision
// log. It is recorded, never requested, so it goes through the same
// best-effort path as any other decision record.
func (e *Engine) recordLiquidation(t *table, debtor *game.Player) {
	rec := newLiquidationRecord(t.game, debtor)
	t.pendingRecords = append(t.pendingRecords, rec)
}

// fixCurrentIndex repairs CurrentPlayerIndex after the active set shrank.
// The index must keep addressing the player whose turn it is; if that
// player is gone, it clamps so the turn can close normally.
func (e *Engine) fixCurrentIndex(t *table) {
	if t.turn == nil {
		return
	}
	actives := t.active()
	if len(actives) == 0 {
		t.game.CurrentPlayerIndex = 0
		return
	}
	for i, p := range actives {
		if p.ID == t.turn.PlayerID {
			t.game.CurrentPlayerIndex = i
			return
		}
	}
	if t.game.CurrentPlayerIndex >= len(actives) {
		t.game.CurrentPlayerIndex = len(actives) - 1
	}
}
