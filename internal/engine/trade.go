package engine

import (
	"fmt"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
)

// proposeTrade validates a proposal from the turn owner's pre-roll gate and
// raises the trade_response decision for the counterparty. Proposing spends
// one asset action.
func (e *Engine) proposeTrade(t *table, pending *decision.Pending, proposer *game.Player, proposal *decision.TradeProposal) error {
	if proposal == nil {
		return fmt.Errorf("%w: trade needs a proposal", ErrPrecondition)
	}
	proposal.ProposerID = proposer.ID
	if err := validateTrade(t, proposal); err != nil {
		return err
	}

	counterparty := t.playerByID(proposal.CounterpartyID)
	t.emit(events.EventTypeTradeProposed, proposer.ID, counterparty.ID,
		fmt.Sprintf("%s propone un intercambio a %s", proposer.Name, counterparty.Name))

	e.requestDecision(t, &decision.Pending{
		Type:         decision.TypeTradeResponse,
		PlayerID:     counterparty.ID,
		Trade:        proposal,
		RolledDouble: pending.RolledDouble,
		Options:      decision.Legal[decision.TypeTradeResponse],
		ActionsTaken: pending.ActionsTaken + 1,
	})
	return nil
}

// applyTradeResponse settles or bounces a proposal. accept swaps everything
// atomically, reject drops it, counter re-raises the decision once for the
// original proposer with the responder's own terms.
func (e *Engine) applyTradeResponse(t *table, pending *decision.Pending, res Resolution) error {
	proposal := pending.Trade
	responder := t.playerByID(pending.PlayerID)
	if proposal == nil || responder == nil {
		return fmt.Errorf("%w: decision lost its proposal", ErrPrecondition)
	}

	switch res.Action {
	case decision.ActionAccept:
		if err := e.executeTrade(t, proposal); err != nil {
			return err
		}

	case decision.ActionReject:
		proposer := t.playerByID(proposal.ProposerID)
		proposerName := proposal.ProposerID
		if proposer != nil {
			proposerName = proposer.Name
		}
		t.emit(events.EventTypeTradeSettled, responder.ID, proposal.ProposerID,
			fmt.Sprintf("%s rechaza el intercambio de %s", responder.Name, proposerName))

	case decision.ActionCounter:
		if proposal.Countered {
			return fmt.Errorf("%w: only one counteroffer is allowed", ErrPrecondition)
		}
		counter := res.Trade
		if counter == nil {
			return fmt.Errorf("%w: a counteroffer needs its own terms", ErrPrecondition)
		}
		// Roles flip: the responder becomes the proposer and the original
		// proposer must now answer.
		counter.ProposerID = responder.ID
		counter.CounterpartyID = proposal.ProposerID
		counter.Countered = true
		if err := validateTrade(t, counter); err != nil {
			return err
		}

		t.emit(events.EventTypeTradeProposed, responder.ID, proposal.ProposerID,
			fmt.Sprintf("%s responde con una contraoferta", responder.Name))
		e.requestDecision(t, &decision.Pending{
			Type:         decision.TypeTradeResponse,
			PlayerID:     proposal.ProposerID,
			Trade:        counter,
			RolledDouble: pending.RolledDouble,
			Options:      decision.Legal[decision.TypeTradeResponse],
			ActionsTaken: pending.ActionsTaken,
		})
		return nil
	}

	e.returnToOwnerGate(t, pending)
	return nil
}

// returnToOwnerGate resumes the turn owner's pre-roll gate after a trade
// settled, unless the action budget ran out.
func (e *Engine) returnToOwnerGate(t *table, pending *decision.Pending) {
	owner := t.current()
	if owner == nil || pending.ActionsTaken >= maxAssetActions {
		t.game.Phase = game.PhaseRolling
		return
	}
	e.requestDecision(t, &decision.Pending{
		Type:         decision.TypePreRollActions,
		PlayerID:     owner.ID,
		RolledDouble: pending.RolledDouble,
		Options:      decision.Legal[decision.TypePreRollActions],
		ActionsTaken: pending.ActionsTaken,
	})
}

// validateTrade checks the full precondition set without mutating anything:
// both parties active and distinct, every deed owned by the right side and
// unimproved, the cash leg affordable, and at least something moving.
func validateTrade(t *table, proposal *decision.TradeProposal) error {
	proposer := t.playerByID(proposal.ProposerID)
	counterparty := t.playerByID(proposal.CounterpartyID)
	if proposer == nil || counterparty == nil {
		return fmt.Errorf("%w: trade references unknown players", ErrPrecondition)
	}
	if proposer.ID == counterparty.ID {
		return fmt.Errorf("%w: cannot trade with yourself", ErrPrecondition)
	}
	if proposer.IsBankrupt || counterparty.IsBankrupt {
		return fmt.Errorf("%w: bankrupt players do not trade", ErrPrecondition)
	}
	if len(proposal.OfferedIDs) == 0 && len(proposal.RequestedIDs) == 0 && proposal.CashDelta == 0 {
		return fmt.Errorf("%w: empty trade", ErrPrecondition)
	}

	for _, id := range proposal.OfferedIDs {
		if err := tradeableBy(t, id, proposer.ID); err != nil {
			return err
		}
	}
	for _, id := range proposal.RequestedIDs {
		if err := tradeableBy(t, id, counterparty.ID); err != nil {
			return err
		}
	}

	if proposal.CashDelta > 0 && proposer.Cash < proposal.CashDelta {
		return fmt.Errorf("%w: %s cannot cover the cash leg", ErrPrecondition, proposer.Name)
	}
	if proposal.CashDelta < 0 && counterparty.Cash < -proposal.CashDelta {
		return fmt.Errorf("%w: %s cannot cover the cash leg", ErrPrecondition, counterparty.Name)
	}
	return nil
}

func tradeableBy(t *table, propertyID, ownerID string) error {
	prop := t.propertyByID(propertyID)
	if prop == nil {
		return fmt.Errorf("%w: unknown property %s", ErrPrecondition, propertyID)
	}
	if prop.OwnerID != ownerID {
		return fmt.Errorf("%w: %s does not own %s", ErrPrecondition, ownerID, prop.Name)
	}
	if prop.Houses > 0 {
		return fmt.Errorf("%w: %s has buildings and cannot be traded", ErrPrecondition, prop.Name)
	}
	return nil
}

// executeTrade applies an accepted proposal: deeds swap owners and the cash
// leg settles, all inside the step transaction.
func (e *Engine) executeTrade(t *table, proposal *decision.TradeProposal) error {
	if err := validateTrade(t, proposal); err != nil {
		return err
	}
	proposer := t.playerByID(proposal.ProposerID)
	counterparty := t.playerByID(proposal.CounterpartyID)

	for _, id := range proposal.OfferedIDs {
		prop := t.propertyByID(id)
		prop.OwnerID = counterparty.ID
		t.touchProp(prop)
	}
	for _, id := range proposal.RequestedIDs {
		prop := t.propertyByID(id)
		prop.OwnerID = proposer.ID
		t.touchProp(prop)
	}
	if proposal.CashDelta != 0 {
		proposer.Cash -= proposal.CashDelta
		counterparty.Cash += proposal.CashDelta
		t.touch(proposer)
		t.touch(counterparty)
	}

	t.emit(events.EventTypeTradeSettled, proposer.ID, counterparty.ID,
		fmt.Sprintf("%s y %s cierran un intercambio (%d propiedades, %s€)",
			proposer.Name, counterparty.Name,
			len(proposal.OfferedIDs)+len(proposal.RequestedIDs), money(proposal.CashDelta)))
	return nil
}
