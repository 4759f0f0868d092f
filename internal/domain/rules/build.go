package rules

import (
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
)

// CanBuild checks the full construction rule for one street: the builder
// owns the whole color group, nothing in the group is mortgaged, the house
// count stays even across the group, the roof is not reached and the
// builder can pay for the house.
func CanBuild(p *game.Player, prop *game.Property, all []*game.Property) bool {
	space := prop.Space()
	if space.Type != board.SpaceStreet || prop.OwnerID != p.ID {
		return false
	}
	if prop.Houses >= board.MaxHouses || p.Cash < space.HouseCost {
		return false
	}
	if !OwnsGroup(p.ID, space.Group, all) {
		return false
	}

	for _, sibling := range all {
		if sibling.Space().Group != space.Group {
			continue
		}
		if sibling.IsMortgaged {
			return false
		}
		// Even build: never rise above the group's lowest house count
		if prop.Houses > sibling.Houses {
			return false
		}
	}
	return true
}

// CanMortgage checks whether a deed can be flipped for its mortgage value:
// owned by the player, not already mortgaged, and no houses anywhere in its
// color group.
func CanMortgage(p *game.Player, prop *game.Property, all []*game.Property) bool {
	if prop.OwnerID != p.ID || prop.IsMortgaged {
		return false
	}
	group := prop.Space().Group
	for _, sibling := range all {
		if sibling.Space().Group == group && sibling.Houses > 0 {
			return false
		}
	}
	return true
}

// CanUnmortgage checks whether the player can redeem a mortgaged deed.
func CanUnmortgage(p *game.Player, prop *game.Property) bool {
	return prop.OwnerID == p.ID && prop.IsMortgaged && p.Cash >= prop.Space().UnmortgageCost()
}

// Buildable lists the positions the player could put a house on right now.
func Buildable(p *game.Player, all []*game.Property) []int {
	var positions []int
	for _, prop := range all {
		if CanBuild(p, prop, all) {
			positions = append(positions, prop.Position)
		}
	}
	return positions
}

// Unmortgageable lists the positions the player could redeem right now.
func Unmortgageable(p *game.Player, all []*game.Property) []int {
	var positions []int
	for _, prop := range all {
		if CanUnmortgage(p, prop) {
			positions = append(positions, prop.Position)
		}
	}
	return positions
}

// HasAssetAction reports whether an asset-management gate is worth raising
// for the player: there is at least one build or redemption available.
// Mortgaging alone never triggers a gate; it only matters as a means to
// raise cash once a gate is already open.
func HasAssetAction(p *game.Player, all []*game.Property) bool {
	return len(Buildable(p, all)) > 0 || len(Unmortgageable(p, all)) > 0
}
