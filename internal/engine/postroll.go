package engine

import (
	"context"
	"fmt"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/rules"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
)

// stepPostRoll resolves the landed space: purchases, rent, taxes, cards and
// the go-to-jail corner. Raising a buy_property decision suspends the step;
// every other outcome falls through to finishPostRoll.
func (e *Engine) stepPostRoll(ctx context.Context, q *storage.Queries, t *table) error {
	p := t.current()
	if p == nil {
		e.logger.Warn("Game %s points at no active player; skipping step", t.game.ID)
		return nil
	}

	space := board.At(p.Position)
	switch space.Type {
	case board.SpaceStreet, board.SpaceRailroad, board.SpaceUtility:
		if err := e.resolveLanding(ctx, q, t, p); err != nil {
			return err
		}
		if t.game.Suspended() {
			return nil
		}

	case board.SpaceTax:
		t.emit(events.EventTypeTaxPaid, p.ID, "",
			fmt.Sprintf("%s paga %s€ de %s", p.Name, money(space.Tax), space.Name))
		if err := e.charge(ctx, q, t, p, nil, space.Tax); err != nil {
			return err
		}

	case board.SpaceChance, board.SpaceChest:
		if err := e.drawCard(ctx, q, t, p, space.Type); err != nil {
			return err
		}

	case board.SpaceGoToJail:
		p.SendToJail()
		t.touch(p)
		t.emit(events.EventTypeJailed, p.ID, "", fmt.Sprintf("%s va directamente a la Cárcel", p.Name))

	default:
		// Go, just visiting, free parking: nothing happens
	}

	e.finishPostRoll(t, p)
	return nil
}

// resolveLanding handles a stop on a purchasable space. Unowned and
// affordable raises the buy decision; unowned and unaffordable goes straight
// to auction; owned by a rival charges rent unless the deed is mortgaged.
func (e *Engine) resolveLanding(ctx context.Context, q *storage.Queries, t *table, p *game.Player) error {
	prop := t.propertyAt(p.Position)
	if prop == nil {
		e.logger.Warn("No property row at position %d in game %s", p.Position, t.game.ID)
		return nil
	}

	if !prop.Owned() {
		if p.Cash >= prop.Price {
			e.requestDecision(t, &decision.Pending{
				Type:         decision.TypeBuyProperty,
				PlayerID:     p.ID,
				Position:     prop.Position,
				Price:        prop.Price,
				RolledDouble: p.ConsecutiveDoubles > 0,
				DiceTotal:    t.diceTotal(),
				Options:      decision.Legal[decision.TypeBuyProperty],
			})
			return nil
		}
		t.emit(events.EventTypeAuction, p.ID, "",
			fmt.Sprintf("%s no puede permitirse %s; sale a subasta", p.Name, prop.Name))
		e.runAuction(t, prop)
		return nil
	}

	if prop.OwnerID == p.ID {
		return nil
	}

	if prop.IsMortgaged {
		t.emit(events.EventTypeRentPaid, p.ID, prop.OwnerID,
			fmt.Sprintf("%s está hipotecada; %s no paga alquiler", prop.Name, p.Name))
		return nil
	}

	owner := t.playerByID(prop.OwnerID)
	if owner == nil {
		e.logger.Warn("Property %s of game %s has unknown owner %s", prop.Name, t.game.ID, prop.OwnerID)
		return nil
	}

	rent := rules.Rent(prop, t.props, t.diceTotal())
	t.emit(events.EventTypeRentPaid, p.ID, owner.ID,
		fmt.Sprintf("%s paga %s€ de alquiler a %s por %s", p.Name, money(rent), owner.Name, prop.Name))
	return e.charge(ctx, q, t, p, owner, rent)
}

// finishPostRoll leaves the phase: a live doubles chain rolls again, an
// available build or redemption raises the asset gate, everything else ends
// the turn. A player who went bankrupt on landing just ends the turn.
func (e *Engine) finishPostRoll(t *table, p *game.Player) {
	if p.IsBankrupt {
		t.game.Phase = game.PhaseTurnEnd
		return
	}

	if rules.HasAssetAction(p, t.props) {
		e.requestDecision(t, &decision.Pending{
			Type:         decision.TypePostRollActions,
			PlayerID:     p.ID,
			RolledDouble: p.ConsecutiveDoubles > 0,
			Options:      decision.Legal[decision.TypePostRollActions],
		})
		return
	}

	t.game.Phase = nextPhaseAfterPostRoll(p)
}

// nextPhaseAfterPostRoll implements the doubles loop: an alive chain (and a
// player still free) earns another roll within the same turn.
func nextPhaseAfterPostRoll(p *game.Player) game.Phase {
	if p.ConsecutiveDoubles > 0 && !p.InJail && !p.IsBankrupt {
		return game.PhaseRolling
	}
	return game.PhaseTurnEnd
}

// diceTotal is the last recorded roll of the open turn; utility rents and
// decision contexts depend on it.
func (t *table) diceTotal() int {
	if t.turn == nil {
		return 0
	}
	return t.turn.Die1 + t.turn.Die2
}
