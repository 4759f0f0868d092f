package engine

import (
	"fmt"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/rules"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
)

// runAuction sells an unclaimed deed by sealed bids. Every active player
// bids half their cash capped below list price, so the winner can always
// pay and an auction can never bankrupt anyone. No positive bid leaves the
// deed with the bank.
func (e *Engine) runAuction(t *table, prop *game.Property) {
	bids := rules.SealedBids(t.players, prop.Price)
	winnerID, amount, sold := rules.ResolveAuction(bids)
	if !sold {
		t.emit(events.EventTypeAuction, "", "",
			fmt.Sprintf("La subasta de %s queda desierta; la banca retiene la propiedad", prop.Name))
		return
	}

	winner := t.playerByID(winnerID)
	if winner == nil {
		e.logger.Warn("Auction in game %s picked unknown winner %s", t.game.ID, winnerID)
		return
	}

	winner.Cash -= amount
	prop.OwnerID = winner.ID
	t.touch(winner)
	t.touchProp(prop)

	t.emit(events.EventTypeAuction, winner.ID, "",
		fmt.Sprintf("%s gana la subasta de %s por %s€", winner.Name, prop.Name, money(amount)))
}
