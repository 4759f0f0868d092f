package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/rules"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
)

// stepTurnEnd closes the open turn journal, evaluates the two endings and
// otherwise rotates to the next active seat and opens their turn.
func (e *Engine) stepTurnEnd(ctx context.Context, q *storage.Queries, t *table) error {
	e.closeTurn(t)

	actives := t.active()
	if len(actives) <= 1 {
		var winner *game.Player
		if len(actives) == 1 {
			winner = actives[0]
		}
		e.completeGame(t, game.EndingLastPlayerStanding, winner)
		return nil
	}

	if t.game.Config.TurnLimit > 0 && t.game.TurnNumber >= t.game.Config.TurnLimit {
		ranked := rules.RankByNetWorth(actives, t.props)
		for i, p := range ranked {
			p.FinalRank = i + 1
			p.FinalNetWorth = rules.NetWorth(p, t.props)
			t.touch(p)
		}
		e.completeGame(t, game.EndingTurnLimit, ranked[0])
		return nil
	}

	next := e.rotate(t, actives)
	return e.openTurn(ctx, q, t, next)
}

// closeTurn stamps the journal row of the turn that just finished.
func (e *Engine) closeTurn(t *table) {
	if t.turn == nil || t.turn.EndedAt != nil {
		return
	}
	owner := t.playerByID(t.turn.PlayerID)
	if owner != nil {
		t.turn.PositionAfter = owner.Position
		t.turn.CashAfter = owner.Cash
	}
	now := time.Now().UTC()
	t.turn.EndedAt = &now
	if owner != nil {
		t.emit(events.EventTypeTurnEnded, owner.ID, "",
			fmt.Sprintf("%s termina su turno %d", owner.Name, t.turn.TurnNumber))
	}
}

// rotate picks the next non-bankrupt seat after the closing turn's owner
// and repoints CurrentPlayerIndex at it. Falling back to the first seat
// covers the rare case where the owner's row disappeared.
func (e *Engine) rotate(t *table, actives []*game.Player) *game.Player {
	nextIdx := 0
	if t.turn != nil {
		if prev := t.playerByID(t.turn.PlayerID); prev != nil {
			for i, p := range actives {
				if p.TurnOrder > prev.TurnOrder {
					nextIdx = i
					break
				}
			}
		}
	}
	t.game.CurrentPlayerIndex = nextIdx
	return actives[nextIdx]
}

// openTurn starts the journal row of the next turn and hands control back
// to pre_roll.
func (e *Engine) openTurn(ctx context.Context, q *storage.Queries, t *table, p *game.Player) error {
	t.game.TurnNumber++
	turn := &game.Turn{
		ID:             uuid.NewString(),
		GameID:         t.game.ID,
		TurnNumber:     t.game.TurnNumber,
		PlayerID:       p.ID,
		PositionBefore: p.Position,
		PositionAfter:  p.Position,
		CashBefore:     p.Cash,
		CashAfter:      p.Cash,
		StartedAt:      time.Now().UTC(),
	}
	if err := q.InsertTurn(ctx, turn); err != nil {
		return fmt.Errorf("failed to open turn %d: %w", t.game.TurnNumber, err)
	}
	t.turn = turn
	t.game.Phase = game.PhasePreRoll
	t.emit(events.EventTypeTurnStarted, p.ID, "",
		fmt.Sprintf("Turno %d: le toca a %s", t.game.TurnNumber, p.Name))
	return nil
}

// completeGame stamps the terminal status. winner may be nil when every
// seat went bankrupt on the same obligation chain.
func (e *Engine) completeGame(t *table, reason game.EndingReason, winner *game.Player) {
	t.game.Status = game.StatusCompleted
	t.game.Phase = game.PhaseGameOver
	t.game.EndingReason = reason
	t.game.Pending = nil
	t.justEnded = true

	text := "La partida termina sin ganador"
	if winner != nil {
		t.game.WinnerID = winner.ID
		if winner.FinalRank == 0 {
			winner.FinalRank = 1
			winner.FinalNetWorth = rules.NetWorth(winner, t.props)
			t.touch(winner)
		}
		text = fmt.Sprintf("%s gana la partida (%s) con un patrimonio de %s€",
			winner.Name, reason, money(winner.FinalNetWorth))
	}

	t.emit(events.EventTypeGameEnded, t.game.WinnerID, "", text)
	e.logger.Event("GAME_ENDED", t.game.ID, fmt.Sprintf("reason=%s winner=%s", reason, t.game.WinnerID))
}
