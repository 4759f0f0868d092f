// Package agent provides the decision provider layer for Magnate Arena.
// A Provider answers pending game decisions; implementations can swap
// between OpenAI-compatible APIs, Anthropic Claude, or the scripted
// heuristic policy without the runtime knowing which is behind the call.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
)

// ErrOverBudget is returned when a call would exceed the spending limits.
var ErrOverBudget = errors.New("agent budget exhausted")

// Request carries everything a provider needs to answer one decision: the
// structured facts for rule-based policies and the serialized briefing for
// language models.
type Request struct {
	GameID       string          `json:"game_id"`
	TurnNumber   int             `json:"turn_number"`
	PlayerID     string          `json:"player_id"`
	PlayerName   string          `json:"player_name"`
	Type         decision.Type   `json:"type"`
	Options      []decision.Action `json:"options"`
	Cash         int             `json:"cash"`
	Position     int             `json:"position,omitempty"`
	Price        int             `json:"price,omitempty"`
	DiceTotal    int             `json:"dice_total,omitempty"`
	ActionsTaken int             `json:"actions_taken,omitempty"`
	Trade        *decision.TradeProposal `json:"trade,omitempty"`
	Buildable    []int           `json:"buildable,omitempty"`
	Redeemable   []int           `json:"redeemable,omitempty"`
	Briefing     string          `json:"briefing"`
	Recent       []string        `json:"recent"`
}

// Reply is a provider's answer plus the accounting the decision log keeps.
type Reply struct {
	Action     decision.Action
	Position   int
	Trade      *decision.TradeProposal
	Rationale  string
	Model      string
	TokensUsed int
	LatencyMs  int64
	CostUSD    float64
}

// UsageStats tracks API consumption for cost monitoring.
type UsageStats struct {
	TotalRequests int       `json:"total_requests"`
	TotalTokens   int       `json:"total_tokens"`
	TotalCostUSD  float64   `json:"total_cost_usd"`
	LastReset     time.Time `json:"last_reset"`
}

// Provider is the agnostic interface for decision backends. The agent
// runtime uses it without knowing which implementation answers.
type Provider interface {
	// Decide answers one pending decision.
	Decide(ctx context.Context, req Request) (*Reply, error)

	// Name labels the provider in logs and the decision log's source field.
	Name() string

	// Available reports whether the provider is configured and usable.
	Available() bool

	// Usage returns accumulated API consumption.
	Usage() UsageStats
}

// BudgetGate caps provider spending per day and per month. Counters reset
// lazily when the window rolls over. Safe for concurrent use: several games
// may be asking for decisions at once.
type BudgetGate struct {
	mu             sync.Mutex
	dailyLimitUSD  float64
	monthlyLimitUSD float64
	daySpend       float64
	monthSpend     float64
	lastDayReset   time.Time
	lastMonthReset time.Time
}

// NewBudgetGate creates a budget controller with the given USD limits. A
// non-positive limit disables that window.
func NewBudgetGate(dailyLimit, monthlyLimit float64) *BudgetGate {
	now := time.Now()
	return &BudgetGate{
		dailyLimitUSD:   dailyLimit,
		monthlyLimitUSD: monthlyLimit,
		lastDayReset:    now,
		lastMonthReset:  now,
	}
}

// CanSpend checks whether a cost fits in both windows.
func (bg *BudgetGate) CanSpend(costUSD float64) bool {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	bg.maybeReset()
	if bg.dailyLimitUSD > 0 && bg.daySpend+costUSD > bg.dailyLimitUSD {
		return false
	}
	if bg.monthlyLimitUSD > 0 && bg.monthSpend+costUSD > bg.monthlyLimitUSD {
		return false
	}
	return true
}

// RecordSpend accumulates an actual cost.
func (bg *BudgetGate) RecordSpend(costUSD float64) {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	bg.maybeReset()
	bg.daySpend += costUSD
	bg.monthSpend += costUSD
}

// maybeReset clears counters when the day or month changed. Callers hold
// the mutex.
func (bg *BudgetGate) maybeReset() {
	now := time.Now()
	if now.YearDay() != bg.lastDayReset.YearDay() || now.Year() != bg.lastDayReset.Year() {
		bg.daySpend = 0
		bg.lastDayReset = now
	}
	if now.Month() != bg.lastMonthReset.Month() || now.Year() != bg.lastMonthReset.Year() {
		bg.monthSpend = 0
		bg.lastMonthReset = now
	}
}

// Status returns a human-readable budget summary for logs.
func (bg *BudgetGate) Status() string {
	bg.mu.Lock()
	defer bg.mu.Unlock()
	return fmt.Sprintf("day $%.4f/$%.2f | month $%.4f/$%.2f",
		bg.daySpend, bg.dailyLimitUSD, bg.monthSpend, bg.monthlyLimitUSD)
}
