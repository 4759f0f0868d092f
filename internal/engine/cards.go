package engine

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
)

// drawCard takes the front card of the matching deck, reshuffling a fresh
// full deck when it runs out, and applies its effect to the drawing player.
// Teleport destinations are not re-resolved: the step stays one step.
func (e *Engine) drawCard(ctx context.Context, q *storage.Queries, t *table, p *game.Player, spaceType board.SpaceType) error {
	deck := &t.game.ChestDeck
	if spaceType == board.SpaceChance {
		deck = &t.game.ChanceDeck
	}

	if len(*deck) == 0 {
		*deck = shuffledDeck(len(board.DeckFor(spaceType)))
	}

	idx := (*deck)[0]
	*deck = (*deck)[1:]

	cards := board.DeckFor(spaceType)
	if idx < 0 || idx >= len(cards) {
		e.logger.Warn("Deck of game %s held invalid card index %d; reshuffling", t.game.ID, idx)
		*deck = shuffledDeck(len(cards))
		idx, *deck = (*deck)[0], (*deck)[1:]
	}
	card := cards[idx]

	t.emit(events.EventTypeCardDrawn, p.ID, "", fmt.Sprintf("%s saca una carta: %q", p.Name, card.Text))
	return e.applyCard(ctx, q, t, p, card)
}

func (e *Engine) applyCard(ctx context.Context, q *storage.Queries, t *table, p *game.Player, card board.Card) error {
	switch card.Effect {
	case board.EffectCash:
		if card.Amount >= 0 {
			p.Cash += card.Amount
			t.touch(p)
			return nil
		}
		return e.charge(ctx, q, t, p, nil, -card.Amount)

	case board.EffectMove:
		t.teleport(p, card.Destination)
		return nil

	case board.EffectGoToJail:
		p.SendToJail()
		t.touch(p)
		t.emit(events.EventTypeJailed, p.ID, "", fmt.Sprintf("%s va directamente a la Cárcel", p.Name))
		return nil

	case board.EffectJailCard:
		p.GetOutOfJailCards++
		t.touch(p)
		return nil

	case board.EffectCollectEach:
		// Each rival owes the drawer; a broke rival goes bankrupt with the
		// drawer as creditor.
		for _, rival := range t.rivals(p) {
			if err := e.charge(ctx, q, t, rival, p, card.Amount); err != nil {
				return err
			}
		}
		return nil

	case board.EffectPayEach:
		rivals := t.rivals(p)
		total := card.Amount * len(rivals)
		if p.Cash < total {
			// No single creditor exists for the shortfall, so the whole
			// estate goes to the bank and nobody collects.
			return e.bankrupt(ctx, q, t, p, nil)
		}
		p.Cash -= total
		t.touch(p)
		for _, rival := range rivals {
			rival.Cash += card.Amount
			t.touch(rival)
		}
		return nil
	}

	e.logger.Warn("Card with unknown effect %q drawn in game %s", card.Effect, t.game.ID)
	return nil
}

// shuffledDeck deals a fresh full index deck in random order.
func shuffledDeck(n int) []int {
	deck := board.FreshDeck(n)
	rand.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })
	return deck
}
