package rules

import "github.com/MRamiBalles/MagnateArena/server/internal/domain/game"

// NetWorth values a player for turn-limit rankings: cash plus the list
// price of every unmortgaged deed. Mortgaged deeds count zero and houses
// add nothing; the valuation is deliberately fixed so rankings cannot be
// gamed by last-second construction.
func NetWorth(p *game.Player, all []*game.Property) int {
	worth := p.Cash
	for _, prop := range all {
		if prop.OwnerID == p.ID && !prop.IsMortgaged {
			worth += prop.Price
		}
	}
	return worth
}

// RankByNetWorth orders active players best-first. Ties keep the earlier
// seat, so the ordering is total and stable across runs.
func RankByNetWorth(players []*game.Player, all []*game.Property) []*game.Player {
	ranked := make([]*game.Player, len(players))
	copy(ranked, players)
	for i := 1; i < len(ranked); i++ {
		for j := i; j > 0; j-- {
			a, b := ranked[j-1], ranked[j]
			if NetWorth(b, all) > NetWorth(a, all) || (NetWorth(b, all) == NetWorth(a, all) && b.TurnOrder < a.TurnOrder) {
				ranked[j-1], ranked[j] = b, a
			} else {
				break
			}
		}
	}
	return ranked
}
