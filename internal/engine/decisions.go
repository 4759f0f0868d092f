package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/rules"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/metrics"
)

// Resolution is an answer to a pending decision, whoever produced it: an
// agent provider, the timeout policy or a human operator.
type Resolution struct {
	Type       decision.Type           `json:"type,omitempty"` // Must match the pending type when set
	Action     decision.Action         `json:"action"`         // Empty resolves to the pending type's default
	Position   int                     `json:"position,omitempty"`
	Trade      *decision.TradeProposal `json:"trade,omitempty"`
	Rationale  string                  `json:"rationale,omitempty"`
	Source     string                  `json:"source,omitempty"`
	Model      string                  `json:"model,omitempty"`
	TokensUsed int                     `json:"tokens_used,omitempty"`
	LatencyMs  int64                   `json:"latency_ms,omitempty"`
	CostUSD    float64                 `json:"cost_usd,omitempty"`
}

// requestDecision persists the pending descriptor inside the current step.
// The commit of the step is what actually suspends the game: afterStep sees
// the descriptor and withholds rescheduling.
func (e *Engine) requestDecision(t *table, p *decision.Pending) {
	p.RequestedAt = time.Now().UTC()
	t.game.Pending = p

	name := p.PlayerID
	if player := t.playerByID(p.PlayerID); player != nil {
		name = player.Name
	}
	t.emit(events.EventTypeDecisionAsked, p.PlayerID, "",
		fmt.Sprintf("Se espera una decisión de %s (%s)", name, p.Type))
	metrics.Get().RecordDecisionRequested()
}

// ResolveDecision validates and applies an answer to the game's pending
// decision, then re-arms the engine. Validation failures leave the game
// waiting, untouched, for a valid retry.
func (e *Engine) ResolveDecision(ctx context.Context, gameID string, res Resolution) error {
	return e.resolve(ctx, gameID, res, nil)
}

// resolve is ResolveDecision plus the timeout guard: when guard is set, the
// pending decision must still be the one the timer was armed for.
func (e *Engine) resolve(ctx context.Context, gameID string, res Resolution, guard *time.Time) error {
	mu := e.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	var outcome *table
	err := e.store.Step(ctx, func(q *storage.Queries) error {
		t, err := loadTable(ctx, q, gameID)
		if err != nil {
			return err
		}
		if t.game.Status != game.StatusInProgress {
			return fmt.Errorf("%w: %s", ErrGameNotRunning, t.game.Status)
		}
		pending := t.game.Pending
		if pending == nil {
			return ErrNoPendingDecision
		}
		if guard != nil && !pending.RequestedAt.Equal(*guard) {
			return fmt.Errorf("%w: pending decision changed", ErrDecisionMismatch)
		}
		if res.Type != "" && res.Type != pending.Type {
			return fmt.Errorf("%w: pending %s, got %s", ErrDecisionMismatch, pending.Type, res.Type)
		}
		if res.Action == "" {
			res.Action = decision.Default(pending.Type)
		}
		if !actionOffered(pending.Options, res.Action) {
			return fmt.Errorf("%w: %s does not admit %s", ErrIllegalAction, pending.Type, res.Action)
		}

		rec := newDecisionRecord(t.game, pending, res)

		t.game.Pending = nil
		t.emit(events.EventTypeDecisionSolved, pending.PlayerID, "",
			fmt.Sprintf("Decisión %s resuelta: %s", pending.Type, res.Action))

		if err := e.applyDecision(ctx, q, t, pending, res); err != nil {
			return err
		}

		t.pendingRecords = append(t.pendingRecords, rec)
		if err := t.flush(ctx, q); err != nil {
			return err
		}
		outcome = t
		return nil
	})

	if err != nil {
		if isRejection(err) {
			metrics.Get().RecordDecisionResolved(false)
		}
		return err
	}

	metrics.Get().RecordDecisionResolved(true)
	e.publish(outcome)
	e.persistRecords(outcome)
	e.afterStep(outcome)
	return nil
}

// applyDecision runs the type-specific effect and computes the next phase.
func (e *Engine) applyDecision(ctx context.Context, q *storage.Queries, t *table, pending *decision.Pending, res Resolution) error {
	switch pending.Type {
	case decision.TypeBuyProperty:
		return e.applyBuyProperty(t, pending, res)
	case decision.TypeJailStrategy:
		return e.applyJailStrategy(t, pending, res)
	case decision.TypePreRollActions, decision.TypePostRollActions:
		return e.applyAssetAction(t, pending, res)
	case decision.TypeTradeResponse:
		return e.applyTradeResponse(t, pending, res)
	}
	return fmt.Errorf("unhandled decision type %q", pending.Type)
}

func (e *Engine) applyBuyProperty(t *table, pending *decision.Pending, res Resolution) error {
	p := t.playerByID(pending.PlayerID)
	prop := t.propertyAt(pending.Position)
	if p == nil || prop == nil {
		return fmt.Errorf("%w: decision references missing rows", ErrPrecondition)
	}

	switch res.Action {
	case decision.ActionBuy:
		if prop.Owned() {
			return fmt.Errorf("%w: %s already has an owner", ErrPrecondition, prop.Name)
		}
		if p.Cash < prop.Price {
			return fmt.Errorf("%w: %s cannot afford %s", ErrPrecondition, p.Name, prop.Name)
		}
		p.Cash -= prop.Price
		prop.OwnerID = p.ID
		t.touch(p)
		t.touchProp(prop)
		t.emit(events.EventTypePurchase, p.ID, "",
			fmt.Sprintf("%s compra %s por %s€", p.Name, prop.Name, money(prop.Price)))

	case decision.ActionAuction:
		e.runAuction(t, prop)
	}

	e.finishPostRoll(t, p)
	return nil
}

func (e *Engine) applyJailStrategy(t *table, pending *decision.Pending, res Resolution) error {
	p := t.playerByID(pending.PlayerID)
	if p == nil {
		return fmt.Errorf("%w: decision references a missing player", ErrPrecondition)
	}

	switch res.Action {
	case decision.ActionRoll:
		// Spending one of the jail turns on a doubles attempt
		if p.JailTurnsRemaining > 0 {
			p.JailTurnsRemaining--
			t.touch(p)
		}

	case decision.ActionPay:
		if p.Cash < board.JailFine {
			return fmt.Errorf("%w: %s cannot afford the fine", ErrPrecondition, p.Name)
		}
		p.Cash -= board.JailFine
		p.LeaveJail()
		t.touch(p)
		t.emit(events.EventTypeFreed, p.ID, "",
			fmt.Sprintf("%s paga la multa de %s€ y sale de la Cárcel", p.Name, money(board.JailFine)))

	case decision.ActionUseCard:
		if p.GetOutOfJailCards <= 0 {
			return fmt.Errorf("%w: %s holds no get-out card", ErrPrecondition, p.Name)
		}
		p.GetOutOfJailCards--
		p.LeaveJail()
		t.touch(p)
		t.emit(events.EventTypeFreed, p.ID, "",
			fmt.Sprintf("%s usa su carta y sale de la Cárcel", p.Name))
	}

	t.game.Phase = game.PhaseRolling
	return nil
}

// applyAssetAction runs one build/mortgage/unmortgage/trade action, then
// either re-raises the same gate or leaves the phase. The gate closes by
// itself after maxAssetActions so an agent cannot loop a turn forever.
func (e *Engine) applyAssetAction(t *table, pending *decision.Pending, res Resolution) error {
	p := t.playerByID(pending.PlayerID)
	if p == nil {
		return fmt.Errorf("%w: decision references a missing player", ErrPrecondition)
	}

	if res.Action == decision.ActionDone {
		e.exitAssetGate(t, pending, p)
		return nil
	}

	switch res.Action {
	case decision.ActionBuild:
		prop := t.propertyAt(res.Position)
		if prop == nil || !rules.CanBuild(p, prop, t.props) {
			return fmt.Errorf("%w: cannot build at position %d", ErrPrecondition, res.Position)
		}
		p.Cash -= prop.Space().HouseCost
		prop.Houses++
		t.touch(p)
		t.touchProp(prop)
		what := fmt.Sprintf("la casa %d", prop.Houses)
		if prop.Houses == board.MaxHouses {
			what = "un hotel"
		}
		t.emit(events.EventTypeHouseBuilt, p.ID, "",
			fmt.Sprintf("%s construye %s en %s", p.Name, what, prop.Name))

	case decision.ActionMortgage:
		prop := t.propertyAt(res.Position)
		if prop == nil || !rules.CanMortgage(p, prop, t.props) {
			return fmt.Errorf("%w: cannot mortgage position %d", ErrPrecondition, res.Position)
		}
		prop.IsMortgaged = true
		p.Cash += prop.Space().MortgageValue()
		t.touch(p)
		t.touchProp(prop)
		t.emit(events.EventTypeMortgage, p.ID, "",
			fmt.Sprintf("%s hipoteca %s por %s€", p.Name, prop.Name, money(prop.Space().MortgageValue())))

	case decision.ActionUnmortgage:
		prop := t.propertyAt(res.Position)
		if prop == nil || !rules.CanUnmortgage(p, prop) {
			return fmt.Errorf("%w: cannot unmortgage position %d", ErrPrecondition, res.Position)
		}
		prop.IsMortgaged = false
		p.Cash -= prop.Space().UnmortgageCost()
		t.touch(p)
		t.touchProp(prop)
		t.emit(events.EventTypeUnmortgage, p.ID, "",
			fmt.Sprintf("%s levanta la hipoteca de %s por %s€", p.Name, prop.Name, money(prop.Space().UnmortgageCost())))

	case decision.ActionTrade:
		return e.proposeTrade(t, pending, p, res.Trade)
	}

	spent := pending.ActionsTaken + 1
	if spent >= maxAssetActions {
		e.exitAssetGate(t, pending, p)
		return nil
	}
	e.requestDecision(t, &decision.Pending{
		Type:         pending.Type,
		PlayerID:     p.ID,
		RolledDouble: pending.RolledDouble,
		Options:      decision.Legal[pending.Type],
		ActionsTaken: spent,
	})
	return nil
}

// exitAssetGate leaves an asset-management phase: pre-roll hands over to
// the dice, post-roll to the doubles loop or the end of the turn.
func (e *Engine) exitAssetGate(t *table, pending *decision.Pending, p *game.Player) {
	if pending.Type == decision.TypePreRollActions {
		t.game.Phase = game.PhaseRolling
		return
	}
	t.game.Phase = nextPhaseAfterPostRoll(p)
}

// actionOffered checks the answer against the options actually offered,
// which may be narrower than the type's full legal set (a broke player is
// never offered pay).
func actionOffered(options []decision.Action, a decision.Action) bool {
	for _, opt := range options {
		if opt == a {
			return true
		}
	}
	return false
}

func isRejection(err error) bool {
	return errors.Is(err, ErrIllegalAction) || errors.Is(err, ErrPrecondition) || errors.Is(err, ErrDecisionMismatch)
}

// newDecisionRecord snapshots the pending descriptor and the chosen answer
// for the immutable decision log.
func newDecisionRecord(g *game.Game, pending *decision.Pending, res Resolution) *decision.Record {
	contextJSON, _ := json.Marshal(pending)

	params := ""
	if res.Position != 0 || res.Trade != nil {
		raw, _ := json.Marshal(struct {
			Position int                     `json:"position,omitempty"`
			Trade    *decision.TradeProposal `json:"trade,omitempty"`
		}{res.Position, res.Trade})
		params = string(raw)
	}

	source := res.Source
	if source == "" {
		source = decision.SourceOperator
	}

	return &decision.Record{
		ID:           uuid.NewString(),
		GameID:       g.ID,
		TurnNumber:   g.TurnNumber,
		PlayerID:     pending.PlayerID,
		DecisionType: pending.Type,
		Context:      string(contextJSON),
		LegalActions: pending.Options,
		ChosenAction: res.Action,
		Parameters:   params,
		Rationale:    res.Rationale,
		Source:       source,
		Model:        res.Model,
		TokensUsed:   res.TokensUsed,
		LatencyMs:    res.LatencyMs,
		CostUSD:      res.CostUSD,
		CreatedAt:    time.Now().UTC(),
	}
}

// newLiquidationRecord documents a forced bankruptcy in the decision log.
func newLiquidationRecord(g *game.Game, debtor *game.Player) *decision.Record {
	contextJSON, _ := json.Marshal(struct {
		Turn      int `json:"turn"`
		FinalRank int `json:"final_rank"`
	}{g.TurnNumber, debtor.FinalRank})

	return &decision.Record{
		ID:           uuid.NewString(),
		GameID:       g.ID,
		TurnNumber:   g.TurnNumber,
		PlayerID:     debtor.ID,
		DecisionType: decision.TypeBankruptcyResolution,
		Context:      string(contextJSON),
		LegalActions: decision.Legal[decision.TypeBankruptcyResolution],
		ChosenAction: decision.ActionLiquidate,
		Source:       decision.SourceAuto,
		CreatedAt:    time.Now().UTC(),
	}
}
