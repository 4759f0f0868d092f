package rules

import "github.com/MRamiBalles/MagnateArena/server/internal/domain/game"

// Bid is one sealed auction offer.
type Bid struct {
	PlayerID string
	Amount   int
}

// MaxBid is the sealed-bid policy every participant follows: half their
// cash rounded down, never reaching the list price. A bid can therefore
// never exceed what the bidder can pay, so an auction cannot bankrupt.
func MaxBid(cash, price int) int {
	bid := cash / 2
	if bid > price-1 {
		bid = price - 1
	}
	if bid < 0 {
		bid = 0
	}
	return bid
}

// SealedBids computes the offer of every non-bankrupt player for a deed at
// the given price, in seat order.
func SealedBids(players []*game.Player, price int) []Bid {
	active := game.ActiveByTurnOrder(players)
	bids := make([]Bid, 0, len(active))
	for _, p := range active {
		bids = append(bids, Bid{PlayerID: p.ID, Amount: MaxBid(p.Cash, price)})
	}
	return bids
}

// ResolveAuction picks the winner among sealed bids: the highest positive
// offer, first seen winning ties. sold is false when nobody can offer
// anything, leaving the deed with the bank.
func ResolveAuction(bids []Bid) (winnerID string, amount int, sold bool) {
	for _, b := range bids {
		if b.Amount > amount {
			winnerID = b.PlayerID
			amount = b.Amount
		}
	}
	return winnerID, amount, amount > 0
}
