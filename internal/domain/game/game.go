// Package game defines the persistent entities of a match: the game row,
// its players, the ownable properties and the per-turn journal.
// This package is PURE and must NOT import any infrastructure packages.
package game

import (
	"time"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
)

// Status is the lifecycle state of a game.
type Status string

const (
	StatusSetup      Status = "setup"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// Phase is the position of the turn state machine.
type Phase string

const (
	PhasePreRoll  Phase = "pre_roll"
	PhaseRolling  Phase = "rolling"
	PhasePostRoll Phase = "post_roll"
	PhaseTurnEnd  Phase = "turn_end"
	PhaseGameOver Phase = "game_over"
)

// EndingReason records why a game reached a terminal status.
type EndingReason string

const (
	EndingLastPlayerStanding EndingReason = "last_player_standing"
	EndingTurnLimit          EndingReason = "turn_limit"
	EndingManualStop         EndingReason = "manual_stop"
)

// Config is the per-game tuning block, stored as a JSON column.
type Config struct {
	TurnLimit         int `json:"turn_limit"`          // 0 = play until one player stands
	StepDelayMs       int `json:"step_delay_ms"`       // Pause between engine steps
	StartingMoney     int `json:"starting_money"`      // Cash handed to each player at start
	DecisionTimeoutMs int `json:"decision_timeout_ms"` // 0 = decisions never expire
}

// DefaultConfig returns the standard match settings.
func DefaultConfig() Config {
	return Config{
		TurnLimit:         200,
		StepDelayMs:       500,
		StartingMoney:     1500,
		DecisionTimeoutMs: 120000,
	}
}

// Game is the root aggregate. Exactly one phase step may execute against it
// at a time; the engine serializes steppers per game id.
type Game struct {
	ID                 string            `json:"id"`
	Status             Status            `json:"status"`
	Phase              Phase             `json:"phase"`
	CurrentPlayerIndex int               `json:"current_player_index"` // Index into active players sorted by turn order
	TurnNumber         int               `json:"turn_number"`
	Config             Config            `json:"config"`
	WinnerID           string            `json:"winner_id,omitempty"`
	EndingReason       EndingReason      `json:"ending_reason,omitempty"`
	Pending            *decision.Pending `json:"pending_decision,omitempty"`
	IsPaused           bool              `json:"is_paused"`
	ChanceDeck         []int             `json:"chance_deck"` // Card indices, drawn from the front
	ChestDeck          []int             `json:"chest_deck"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewGame creates a game in setup with freshly ordered decks. Decks are
// shuffled when the game starts, not here, so creation stays deterministic.
func NewGame(id string, cfg Config) *Game {
	now := time.Now().UTC()
	return &Game{
		ID:         id,
		Status:     StatusSetup,
		Phase:      PhasePreRoll,
		TurnNumber: 0,
		Config:     cfg,
		ChanceDeck: board.FreshDeck(len(board.ChanceCards)),
		ChestDeck:  board.FreshDeck(len(board.ChestCards)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Terminal reports whether the game can no longer advance.
func (g *Game) Terminal() bool {
	return g.Status == StatusCompleted || g.Status == StatusAbandoned
}

// Suspended reports whether the engine is waiting on an external decision.
func (g *Game) Suspended() bool {
	return g.Pending != nil
}

// Player is one participant. Rows survive bankruptcy for history.
type Player struct {
	ID                  string    `json:"id"`
	GameID              string    `json:"game_id"`
	Name                string    `json:"name"`
	TurnOrder           int       `json:"turn_order"`
	Cash                int       `json:"cash"` // May go negative transiently inside a step
	Position            int       `json:"position"`
	InJail              bool      `json:"in_jail"`
	JailTurnsRemaining  int       `json:"jail_turns_remaining"`
	GetOutOfJailCards   int       `json:"get_out_of_jail_cards"`
	IsBankrupt          bool      `json:"is_bankrupt"`
	ConsecutiveDoubles  int       `json:"consecutive_doubles"`
	FinalRank           int       `json:"final_rank,omitempty"` // 1 = winner, 0 = still playing
	FinalNetWorth       int       `json:"final_net_worth,omitempty"`
	BankruptedOnTurn    int       `json:"bankrupted_on_turn,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewPlayer creates a participant at the starting space with match cash.
func NewPlayer(id, gameID, name string, turnOrder, startingMoney int) *Player {
	return &Player{
		ID:        id,
		GameID:    gameID,
		Name:      name,
		TurnOrder: turnOrder,
		Cash:      startingMoney,
		Position:  board.GoPosition,
		CreatedAt: time.Now().UTC(),
	}
}

// SendToJail moves the player to the jail space and resets the doubles chain.
func (p *Player) SendToJail() {
	p.Position = board.JailPosition
	p.InJail = true
	p.JailTurnsRemaining = board.JailTurns
	p.ConsecutiveDoubles = 0
}

// LeaveJail clears jail bookkeeping without moving the token.
func (p *Player) LeaveJail() {
	p.InJail = false
	p.JailTurnsRemaining = 0
}

// Property is the ownership row for one purchasable space. One row per
// space is created at game start and persists across ownership changes.
type Property struct {
	ID          string        `json:"id"`
	GameID      string        `json:"game_id"`
	Position    int           `json:"position"`
	Name        string        `json:"name"`
	Group       board.GroupID `json:"group"`
	Price       int           `json:"price"`
	OwnerID     string        `json:"owner_id,omitempty"` // Empty = bank
	Houses      int           `json:"houses"`             // 0-5, 5 = hotel
	IsMortgaged bool          `json:"is_mortgaged"`
}

// Owned reports whether any player holds the deed.
func (pr *Property) Owned() bool {
	return pr.OwnerID != ""
}

// Space returns the static catalog entry backing this property.
func (pr *Property) Space() board.Space {
	return board.At(pr.Position)
}

// Turn is the append-only journal of one player turn.
type Turn struct {
	ID             string     `json:"id"`
	GameID         string     `json:"game_id"`
	TurnNumber     int        `json:"turn_number"`
	PlayerID       string     `json:"player_id"`
	Die1           int        `json:"die1"`
	Die2           int        `json:"die2"`
	PositionBefore int        `json:"position_before"`
	PositionAfter  int        `json:"position_after"`
	CashBefore     int        `json:"cash_before"`
	CashAfter      int        `json:"cash_after"`
	PassedGo       bool       `json:"passed_go"`
	WasDoubles     bool       `json:"was_doubles"`
	Events         []string   `json:"events"` // Ordered human-readable lines
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// Log appends a human-readable line to the turn journal.
func (t *Turn) Log(line string) {
	t.Events = append(t.Events, line)
}

// ActiveByTurnOrder filters out bankrupt players and sorts the rest by seat.
// The game's CurrentPlayerIndex always indexes this slice.
func ActiveByTurnOrder(players []*Player) []*Player {
	active := make([]*Player, 0, len(players))
	for _, p := range players {
		if !p.IsBankrupt {
			active = append(active, p)
		}
	}
	for i := 1; i < len(active); i++ {
		for j := i; j > 0 && active[j-1].TurnOrder > active[j].TurnOrder; j-- {
			active[j-1], active[j] = active[j], active[j-1]
		}
	}
	return active
}
