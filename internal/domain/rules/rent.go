// Package rules contains the pure calculation logic for game mechanics:
// rent, valuations, auctions and build legality.
// This package is PURE and must NOT import any infrastructure packages.
package rules

import (
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
)

// Rent computes what a visitor owes for stopping on a property. The full
// property list of the game provides the ownership context (monopolies,
// railroad and utility counts). diceTotal is the roll that caused the visit.
func Rent(landed *game.Property, all []*game.Property, diceTotal int) int {
	if !landed.Owned() || landed.IsMortgaged {
		return 0
	}

	space := landed.Space()
	switch space.Type {
	case board.SpaceStreet:
		if landed.Houses > 0 {
			return space.Rent[landed.Houses]
		}
		base := space.Rent[0]
		if OwnsGroup(landed.OwnerID, space.Group, all) {
			return base * 2
		}
		return base

	case board.SpaceRailroad:
		// 25, 50, 100, 200 by stations held
		count := countOwned(landed.OwnerID, board.GroupRailroad, all)
		return 25 << (count - 1)

	case board.SpaceUtility:
		if countOwned(landed.OwnerID, board.GroupUtility, all) == 2 {
			return diceTotal * 10
		}
		return diceTotal * 4
	}

	return 0
}

// OwnsGroup reports whether one player holds every property of a group.
// Mortgaged deeds still count towards the monopoly.
func OwnsGroup(ownerID string, group board.GroupID, all []*game.Property) bool {
	size := board.GroupSize(group)
	if size == 0 || ownerID == "" {
		return false
	}
	return countOwned(ownerID, group, all) == size
}

func countOwned(ownerID string, group board.GroupID, all []*game.Property) int {
	count := 0
	for _, p := range all {
		if p.OwnerID == ownerID && p.Space().Group == group {
			count++
		}
	}
	return count
}
