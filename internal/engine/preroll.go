package engine

import (
	"fmt"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/rules"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
)

// stepPreRoll runs the start-of-turn choices. A jailed player with a real
// way out gets a jail_strategy decision; a player who can build or redeem
// gets a pre_roll_actions decision; everyone else goes straight to rolling.
func (e *Engine) stepPreRoll(t *table) error {
	p := t.current()
	if p == nil {
		e.logger.Warn("Game %s points at no active player; skipping step", t.game.ID)
		return nil
	}

	if p.InJail {
		e.stepJailTurn(t, p)
		return nil
	}

	if rules.HasAssetAction(p, t.props) {
		e.requestDecision(t, &decision.Pending{
			Type:     decision.TypePreRollActions,
			PlayerID: p.ID,
			Options:  decision.Legal[decision.TypePreRollActions],
		})
		return nil
	}

	t.game.Phase = game.PhaseRolling
	return nil
}

// stepJailTurn decides how a jailed turn starts. While turns remain and the
// player can pay or holds a card, the choice is theirs. On the final turn
// the fine is forced if affordable; a broke player stays locked in and keeps
// hoping for doubles.
func (e *Engine) stepJailTurn(t *table, p *game.Player) {
	if p.JailTurnsRemaining > 1 && (p.GetOutOfJailCards > 0 || p.Cash >= board.JailFine) {
		e.requestDecision(t, &decision.Pending{
			Type:     decision.TypeJailStrategy,
			PlayerID: p.ID,
			Options:  jailOptions(p),
		})
		return
	}

	if p.JailTurnsRemaining > 0 {
		p.JailTurnsRemaining--
		t.touch(p)
	}

	if p.JailTurnsRemaining == 0 {
		if p.Cash >= board.JailFine {
			p.Cash -= board.JailFine
			p.LeaveJail()
			t.touch(p)
			t.emit(events.EventTypeFreed, p.ID, "",
				fmt.Sprintf("%s paga la multa forzosa de %s€ y sale de la Cárcel", p.Name, money(board.JailFine)))
		} else {
			e.logger.Warn("Player %s cannot pay the jail fine in game %s; stays locked in", p.Name, t.game.ID)
			t.emit(events.EventTypeJailed, p.ID, "",
				fmt.Sprintf("%s no puede pagar la multa y sigue en la Cárcel", p.Name))
		}
	}

	t.game.Phase = game.PhaseRolling
}

// jailOptions narrows the jail_strategy actions to what the player can
// actually afford or hold. Rolling for doubles is always on the table.
func jailOptions(p *game.Player) []decision.Action {
	options := []decision.Action{decision.ActionRoll}
	if p.Cash >= board.JailFine {
		options = append(options, decision.ActionPay)
	}
	if p.GetOutOfJailCards > 0 {
		options = append(options, decision.ActionUseCard)
	}
	return options
}
