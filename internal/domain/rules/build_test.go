package rules

import (
	"testing"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
)

func navyMonopoly(cash int) (*game.Player, []*game.Property) {
	ana := &game.Player{ID: "ana", Cash: cash}
	return ana, []*game.Property{propertyAt(37, "ana"), propertyAt(39, "ana")}
}

func TestCanBuildNeedsMonopoly(t *testing.T) {
	ana := &game.Player{ID: "ana", Cash: 1000}
	all := []*game.Property{propertyAt(37, "ana"), propertyAt(39, "bruno")}

	if CanBuild(ana, all[0], all) {
		t.Error("Expected no construction without the full group")
	}
}

func TestCanBuildEvenRule(t *testing.T) {
	ana, all := navyMonopoly(1000)
	all[0].Houses = 1

	if CanBuild(ana, all[0], all) {
		t.Error("Expected the taller street to wait for its sibling")
	}
	if !CanBuild(ana, all[1], all) {
		t.Error("Expected the shorter street to be buildable")
	}
}

func TestCanBuildBlockedByMortgage(t *testing.T) {
	ana, all := navyMonopoly(1000)
	all[1].IsMortgaged = true

	if CanBuild(ana, all[0], all) {
		t.Error("Expected no construction while a group deed is mortgaged")
	}
}

func TestCanBuildNeedsCash(t *testing.T) {
	ana, all := navyMonopoly(199) // Navy houses cost 200

	if CanBuild(ana, all[0], all) {
		t.Error("Expected no construction without the house cost")
	}
}

func TestCanBuildStopsAtHotel(t *testing.T) {
	ana, all := navyMonopoly(5000)
	all[0].Houses = 5
	all[1].Houses = 5

	if CanBuild(ana, all[0], all) {
		t.Error("Expected no construction past the hotel")
	}
}

func TestCanMortgageBlockedByGroupHouses(t *testing.T) {
	ana, all := navyMonopoly(1000)
	all[1].Houses = 2

	if CanMortgage(ana, all[0], all) {
		t.Error("Expected no mortgage while the group holds houses")
	}
	all[1].Houses = 0
	if !CanMortgage(ana, all[0], all) {
		t.Error("Expected a clean deed to be mortgageable")
	}
}

func TestCanUnmortgageNeedsCash(t *testing.T) {
	ana, all := navyMonopoly(100)
	all[1].IsMortgaged = true // Prado: mortgage 200, redemption 220

	if CanUnmortgage(ana, all[1]) {
		t.Error("Expected redemption to require 220 in cash")
	}
	ana.Cash = 220
	if !CanUnmortgage(ana, all[1]) {
		t.Error("Expected redemption with exact cash")
	}
}

func TestNetWorthIgnoresMortgagedAndHouses(t *testing.T) {
	ana, all := navyMonopoly(500)
	all[0].Houses = 4       // Castellana, price 350
	all[1].IsMortgaged = true // Prado, price 400

	// 500 cash + 350 castellana; prado mortgaged, houses worthless
	if got := NetWorth(ana, all); got != 850 {
		t.Errorf("Expected net worth 850, got %d", got)
	}
}

func TestRankByNetWorthTieKeepsEarlierSeat(t *testing.T) {
	ana := &game.Player{ID: "ana", TurnOrder: 0, Cash: 300}
	bruno := &game.Player{ID: "bruno", TurnOrder: 1, Cash: 300}
	clara := &game.Player{ID: "clara", TurnOrder: 2, Cash: 900}

	ranked := RankByNetWorth([]*game.Player{ana, bruno, clara}, nil)

	if ranked[0].ID != "clara" || ranked[1].ID != "ana" || ranked[2].ID != "bruno" {
		t.Errorf("Expected clara, ana, bruno; got %s, %s, %s", ranked[0].ID, ranked[1].ID, ranked[2].ID)
	}
}
