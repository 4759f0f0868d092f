// Package decision defines the decision gate vocabulary: the points where
// the engine suspends, the actions a player may answer with, and the
// immutable record kept of every resolution.
// This package is PURE and must NOT import any infrastructure packages.
package decision

import "time"

// Type identifies a decision point in the turn state machine.
type Type string

const (
	TypeBuyProperty          Type = "buy_property"
	TypeJailStrategy         Type = "jail_strategy"
	TypePreRollActions       Type = "pre_roll_actions"
	TypePostRollActions      Type = "post_roll_actions"
	TypeTradeResponse        Type = "trade_response"
	TypeBankruptcyResolution Type = "bankruptcy_resolution" // Recorded, never requested
)

// Action is a player's answer to a decision.
type Action string

const (
	ActionBuy        Action = "buy"
	ActionAuction    Action = "auction"
	ActionRoll       Action = "roll"
	ActionPay        Action = "pay"
	ActionUseCard    Action = "use_card"
	ActionBuild      Action = "build"
	ActionMortgage   Action = "mortgage"
	ActionUnmortgage Action = "unmortgage"
	ActionTrade      Action = "trade"
	ActionDone       Action = "done"
	ActionAccept     Action = "accept"
	ActionReject     Action = "reject"
	ActionCounter    Action = "counter"
	ActionLiquidate  Action = "liquidate"
)

// Legal lists the actions each decision type admits. Resource preconditions
// (cash for pay, a held card for use_card) are checked by the gate on top.
var Legal = map[Type][]Action{
	TypeBuyProperty:          {ActionBuy, ActionAuction},
	TypeJailStrategy:         {ActionRoll, ActionPay, ActionUseCard},
	TypePreRollActions:       {ActionBuild, ActionMortgage, ActionUnmortgage, ActionTrade, ActionDone},
	TypePostRollActions:      {ActionBuild, ActionMortgage, ActionUnmortgage, ActionDone},
	TypeTradeResponse:        {ActionAccept, ActionReject, ActionCounter},
	TypeBankruptcyResolution: {ActionLiquidate},
}

// IsLegal reports whether an action belongs to a decision type at all.
func IsLegal(t Type, a Action) bool {
	for _, legal := range Legal[t] {
		if legal == a {
			return true
		}
	}
	return false
}

// Default is the action applied when a pending decision times out. Every
// default is the passive choice, so an unresponsive agent can stall a game
// but never freeze it.
func Default(t Type) Action {
	switch t {
	case TypeBuyProperty:
		return ActionAuction
	case TypeJailStrategy:
		return ActionRoll
	case TypeTradeResponse:
		return ActionReject
	default:
		return ActionDone
	}
}

// Resolution sources recorded alongside every decision.
const (
	SourceTimeout  = "timeout"
	SourceOperator = "operator"
	SourceAuto     = "auto" // Engine-forced resolutions (bankruptcy liquidation)
)

// TradeProposal is the payload of a trade decision: properties and cash
// moving between the proposer and one counterparty.
type TradeProposal struct {
	ProposerID     string   `json:"proposer_id"`
	CounterpartyID string   `json:"counterparty_id"`
	OfferedIDs     []string `json:"offered_ids"`   // Property ids the proposer gives
	RequestedIDs   []string `json:"requested_ids"` // Property ids the proposer wants
	CashDelta      int      `json:"cash_delta"`    // Positive: proposer pays counterparty
	Countered      bool     `json:"countered"`     // One counter bounce allowed
}

// Pending is the persisted descriptor of a suspended phase. It carries
// everything the resolution handler needs to finish the step later.
type Pending struct {
	Type         Type           `json:"type"`
	PlayerID     string         `json:"player_id"`
	Position     int            `json:"position,omitempty"` // Space under decision (buy)
	Price        int            `json:"price,omitempty"`
	RolledDouble bool           `json:"rolled_double"` // Next phase depends on the triggering roll
	DiceTotal    int            `json:"dice_total,omitempty"`
	Options      []Action       `json:"options"`
	Trade        *TradeProposal `json:"trade,omitempty"`
	ActionsTaken int            `json:"actions_taken"` // Asset actions already spent this phase
	RequestedAt  time.Time      `json:"requested_at"`
}

// Record is one immutable entry of the decision log. Failures to persist a
// record never block the transition it documents.
type Record struct {
	ID           string    `json:"id"`
	GameID       string    `json:"game_id"`
	TurnNumber   int       `json:"turn_number"`
	PlayerID     string    `json:"player_id"`
	DecisionType Type      `json:"decision_type"`
	Context      string    `json:"context"` // Serialized Pending snapshot
	LegalActions []Action  `json:"legal_actions"`
	ChosenAction Action    `json:"chosen_action"`
	Parameters   string    `json:"parameters,omitempty"` // Serialized action parameters
	Rationale    string    `json:"rationale,omitempty"`
	Source       string    `json:"source"` // Provider name, timeout, operator or auto
	Model        string    `json:"model,omitempty"`
	TokensUsed   int       `json:"tokens_used,omitempty"`
	LatencyMs    int64     `json:"latency_ms"`
	CostUSD      float64   `json:"cost_usd,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
