package rules

import (
	"testing"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
)

func propertyAt(position int, ownerID string) *game.Property {
	space := board.At(position)
	return &game.Property{
		ID:       space.Name,
		Position: position,
		Name:     space.Name,
		Group:    space.Group,
		Price:    space.Price,
		OwnerID:  ownerID,
	}
}

func TestRentMortgagedIsFree(t *testing.T) {
	prado := propertyAt(39, "ana")
	prado.IsMortgaged = true

	if got := Rent(prado, []*game.Property{prado}, 7); got != 0 {
		t.Errorf("Expected mortgaged rent 0, got %d", got)
	}
}

func TestRentUnownedIsFree(t *testing.T) {
	prado := propertyAt(39, "")

	if got := Rent(prado, []*game.Property{prado}, 7); got != 0 {
		t.Errorf("Expected unowned rent 0, got %d", got)
	}
}

func TestRentBaseStreet(t *testing.T) {
	// Ana owns one of the two navy streets: base rent, no doubling
	prado := propertyAt(39, "ana")
	all := []*game.Property{prado, propertyAt(37, "")}

	if got := Rent(prado, all, 7); got != 50 {
		t.Errorf("Expected base rent 50, got %d", got)
	}
}

func TestRentMonopolyDoublesUnimproved(t *testing.T) {
	prado := propertyAt(39, "ana")
	castellana := propertyAt(37, "ana")
	all := []*game.Property{prado, castellana}

	if got := Rent(prado, all, 7); got != 100 {
		t.Errorf("Expected doubled rent 100 on a monopoly, got %d", got)
	}
}

func TestRentHouseScheduleWins(t *testing.T) {
	prado := propertyAt(39, "ana")
	castellana := propertyAt(37, "ana")
	prado.Houses = 3
	all := []*game.Property{prado, castellana}

	if got := Rent(prado, all, 7); got != 1400 {
		t.Errorf("Expected 3-house rent 1400, got %d", got)
	}

	prado.Houses = 5
	if got := Rent(prado, all, 7); got != 2000 {
		t.Errorf("Expected hotel rent 2000, got %d", got)
	}
}

func TestRentRailroadLadder(t *testing.T) {
	stations := []int{5, 15, 25, 35}
	expected := []int{25, 50, 100, 200}

	for n := 1; n <= 4; n++ {
		var all []*game.Property
		for i, pos := range stations {
			owner := ""
			if i < n {
				owner = "ana"
			}
			all = append(all, propertyAt(pos, owner))
		}

		if got := Rent(all[0], all, 7); got != expected[n-1] {
			t.Errorf("Expected rent %d with %d stations, got %d", expected[n-1], n, got)
		}
	}
}

func TestRentUtilityMultipliers(t *testing.T) {
	electric := propertyAt(12, "ana")
	water := propertyAt(28, "")
	all := []*game.Property{electric, water}

	if got := Rent(electric, all, 9); got != 36 {
		t.Errorf("Expected 9x4=36 with one utility, got %d", got)
	}

	water.OwnerID = "ana"
	if got := Rent(electric, all, 9); got != 90 {
		t.Errorf("Expected 9x10=90 with both utilities, got %d", got)
	}
}

func TestMortgagedDeedStillCountsForMonopoly(t *testing.T) {
	prado := propertyAt(39, "ana")
	castellana := propertyAt(37, "ana")
	castellana.IsMortgaged = true
	all := []*game.Property{prado, castellana}

	// The visitor stopped on the unmortgaged deed of a complete group
	if got := Rent(prado, all, 7); got != 100 {
		t.Errorf("Expected doubled rent 100, got %d", got)
	}
}
