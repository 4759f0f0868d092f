// Package storage provides the persistence layer for the arena server.
// This package implements the repository pattern to keep the domain pure:
// row records mirror the domain entities and converters translate between
// the two, serializing document fields (config, pending decision, decks,
// turn journals) as JSON columns.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
)

// GameRecord mirrors game.Game for persistence.
type GameRecord struct {
	ID                 string         `db:"id"`
	Status             string         `db:"status"`
	Phase              string         `db:"phase"`
	CurrentPlayerIndex int            `db:"current_player_index"`
	TurnNumber         int            `db:"turn_number"`
	Config             string         `db:"config"`
	WinnerID           sql.NullString `db:"winner_id"`
	EndingReason       sql.NullString `db:"ending_reason"`
	PendingDecision    sql.NullString `db:"pending_decision"`
	IsPaused           bool           `db:"is_paused"`
	ChanceDeck         string         `db:"chance_deck"`
	ChestDeck          string         `db:"chest_deck"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
}

// ToDomain rebuilds the aggregate from its row.
func (r GameRecord) ToDomain() (*game.Game, error) {
	g := &game.Game{
		ID:                 r.ID,
		Status:             game.Status(r.Status),
		Phase:              game.Phase(r.Phase),
		CurrentPlayerIndex: r.CurrentPlayerIndex,
		TurnNumber:         r.TurnNumber,
		WinnerID:           r.WinnerID.String,
		EndingReason:       game.EndingReason(r.EndingReason.String),
		IsPaused:           r.IsPaused,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.Config), &g.Config); err != nil {
		return nil, fmt.Errorf("unmarshal game config: %w", err)
	}
	if err := json.Unmarshal([]byte(r.ChanceDeck), &g.ChanceDeck); err != nil {
		return nil, fmt.Errorf("unmarshal chance deck: %w", err)
	}
	if err := json.Unmarshal([]byte(r.ChestDeck), &g.ChestDeck); err != nil {
		return nil, fmt.Errorf("unmarshal chest deck: %w", err)
	}
	if r.PendingDecision.Valid && r.PendingDecision.String != "" {
		var pending decision.Pending
		if err := json.Unmarshal([]byte(r.PendingDecision.String), &pending); err != nil {
			return nil, fmt.Errorf("unmarshal pending decision: %w", err)
		}
		g.Pending = &pending
	}
	return g, nil
}

// GameToRecord flattens the aggregate into its row.
func GameToRecord(g *game.Game) (GameRecord, error) {
	configJSON, err := json.Marshal(g.Config)
	if err != nil {
		return GameRecord{}, fmt.Errorf("marshal game config: %w", err)
	}
	chanceJSON, err := json.Marshal(g.ChanceDeck)
	if err != nil {
		return GameRecord{}, fmt.Errorf("marshal chance deck: %w", err)
	}
	chestJSON, err := json.Marshal(g.ChestDeck)
	if err != nil {
		return GameRecord{}, fmt.Errorf("marshal chest deck: %w", err)
	}

	r := GameRecord{
		ID:                 g.ID,
		Status:             string(g.Status),
		Phase:              string(g.Phase),
		CurrentPlayerIndex: g.CurrentPlayerIndex,
		TurnNumber:         g.TurnNumber,
		Config:             string(configJSON),
		WinnerID:           sql.NullString{String: g.WinnerID, Valid: g.WinnerID != ""},
		EndingReason:       sql.NullString{String: string(g.EndingReason), Valid: g.EndingReason != ""},
		IsPaused:           g.IsPaused,
		ChanceDeck:         string(chanceJSON),
		ChestDeck:          string(chestJSON),
		CreatedAt:          g.CreatedAt,
		UpdatedAt:          g.UpdatedAt,
	}
	if g.Pending != nil {
		pendingJSON, err := json.Marshal(g.Pending)
		if err != nil {
			return GameRecord{}, fmt.Errorf("marshal pending decision: %w", err)
		}
		r.PendingDecision = sql.NullString{String: string(pendingJSON), Valid: true}
	}
	return r, nil
}

// PlayerRecord mirrors game.Player for persistence.
type PlayerRecord struct {
	ID                 string    `db:"id"`
	GameID             string    `db:"game_id"`
	Name               string    `db:"name"`
	TurnOrder          int       `db:"turn_order"`
	Cash               int       `db:"cash"`
	Position           int       `db:"position"`
	InJail             bool      `db:"in_jail"`
	JailTurnsRemaining int       `db:"jail_turns_remaining"`
	GetOutOfJailCards  int       `db:"get_out_of_jail_cards"`
	IsBankrupt         bool      `db:"is_bankrupt"`
	ConsecutiveDoubles int       `db:"consecutive_doubles"`
	FinalRank          int       `db:"final_rank"`
	FinalNetWorth      int       `db:"final_net_worth"`
	BankruptedOnTurn   int       `db:"bankrupted_on_turn"`
	CreatedAt          time.Time `db:"created_at"`
}

func (r PlayerRecord) ToDomain() *game.Player {
	return &game.Player{
		ID:                 r.ID,
		GameID:             r.GameID,
		Name:               r.Name,
		TurnOrder:          r.TurnOrder,
		Cash:               r.Cash,
		Position:           r.Position,
		InJail:             r.InJail,
		JailTurnsRemaining: r.JailTurnsRemaining,
		GetOutOfJailCards:  r.GetOutOfJailCards,
		IsBankrupt:         r.IsBankrupt,
		ConsecutiveDoubles: r.ConsecutiveDoubles,
		FinalRank:          r.FinalRank,
		FinalNetWorth:      r.FinalNetWorth,
		BankruptedOnTurn:   r.BankruptedOnTurn,
		CreatedAt:          r.CreatedAt,
	}
}

func PlayerToRecord(p *game.Player) PlayerRecord {
	return PlayerRecord{
		ID:                 p.ID,
		GameID:             p.GameID,
		Name:               p.Name,
		TurnOrder:          p.TurnOrder,
		Cash:               p.Cash,
		Position:           p.Position,
		InJail:             p.InJail,
		JailTurnsRemaining: p.JailTurnsRemaining,
		GetOutOfJailCards:  p.GetOutOfJailCards,
		IsBankrupt:         p.IsBankrupt,
		ConsecutiveDoubles: p.ConsecutiveDoubles,
		FinalRank:          p.FinalRank,
		FinalNetWorth:      p.FinalNetWorth,
		BankruptedOnTurn:   p.BankruptedOnTurn,
		CreatedAt:          p.CreatedAt,
	}
}

// PropertyRecord mirrors game.Property for persistence. The column is
// group_id because GROUP is reserved in both dialects.
type PropertyRecord struct {
	ID          string `db:"id"`
	GameID      string `db:"game_id"`
	Position    int    `db:"position"`
	Name        string `db:"name"`
	GroupID     string `db:"group_id"`
	Price       int    `db:"price"`
	OwnerID     string `db:"owner_id"` // Empty = bank
	Houses      int    `db:"houses"`
	IsMortgaged bool   `db:"is_mortgaged"`
}

func (r PropertyRecord) ToDomain() *game.Property {
	return &game.Property{
		ID:          r.ID,
		GameID:      r.GameID,
		Position:    r.Position,
		Name:        r.Name,
		Group:       board.GroupID(r.GroupID),
		Price:       r.Price,
		OwnerID:     r.OwnerID,
		Houses:      r.Houses,
		IsMortgaged: r.IsMortgaged,
	}
}

func PropertyToRecord(p *game.Property) PropertyRecord {
	return PropertyRecord{
		ID:          p.ID,
		GameID:      p.GameID,
		Position:    p.Position,
		Name:        p.Name,
		GroupID:     string(p.Group),
		Price:       p.Price,
		OwnerID:     p.OwnerID,
		Houses:      p.Houses,
		IsMortgaged: p.IsMortgaged,
	}
}

// TurnRecord mirrors game.Turn for persistence.
type TurnRecord struct {
	ID             string       `db:"id"`
	GameID         string       `db:"game_id"`
	TurnNumber     int          `db:"turn_number"`
	PlayerID       string       `db:"player_id"`
	Die1           int          `db:"die1"`
	Die2           int          `db:"die2"`
	PositionBefore int          `db:"position_before"`
	PositionAfter  int          `db:"position_after"`
	CashBefore     int          `db:"cash_before"`
	CashAfter      int          `db:"cash_after"`
	PassedGo       bool         `db:"passed_go"`
	WasDoubles     bool         `db:"was_doubles"`
	Events         string       `db:"events"`
	StartedAt      time.Time    `db:"started_at"`
	EndedAt        sql.NullTime `db:"ended_at"`
}

func (r TurnRecord) ToDomain() (*game.Turn, error) {
	t := &game.Turn{
		ID:             r.ID,
		GameID:         r.GameID,
		TurnNumber:     r.TurnNumber,
		PlayerID:       r.PlayerID,
		Die1:           r.Die1,
		Die2:           r.Die2,
		PositionBefore: r.PositionBefore,
		PositionAfter:  r.PositionAfter,
		CashBefore:     r.CashBefore,
		CashAfter:      r.CashAfter,
		PassedGo:       r.PassedGo,
		WasDoubles:     r.WasDoubles,
		StartedAt:      r.StartedAt,
	}
	if err := json.Unmarshal([]byte(r.Events), &t.Events); err != nil {
		return nil, fmt.Errorf("unmarshal turn events: %w", err)
	}
	if r.EndedAt.Valid {
		ended := r.EndedAt.Time
		t.EndedAt = &ended
	}
	return t, nil
}

func TurnToRecord(t *game.Turn) (TurnRecord, error) {
	eventsJSON, err := json.Marshal(t.Events)
	if err != nil {
		return TurnRecord{}, fmt.Errorf("marshal turn events: %w", err)
	}
	if t.Events == nil {
		eventsJSON = []byte("[]")
	}

	r := TurnRecord{
		ID:             t.ID,
		GameID:         t.GameID,
		TurnNumber:     t.TurnNumber,
		PlayerID:       t.PlayerID,
		Die1:           t.Die1,
		Die2:           t.Die2,
		PositionBefore: t.PositionBefore,
		PositionAfter:  t.PositionAfter,
		CashBefore:     t.CashBefore,
		CashAfter:      t.CashAfter,
		PassedGo:       t.PassedGo,
		WasDoubles:     t.WasDoubles,
		Events:         string(eventsJSON),
		StartedAt:      t.StartedAt,
	}
	if t.EndedAt != nil {
		r.EndedAt = sql.NullTime{Time: *t.EndedAt, Valid: true}
	}
	return r, nil
}

// DecisionRow mirrors decision.Record for persistence.
type DecisionRow struct {
	ID           string    `db:"id"`
	GameID       string    `db:"game_id"`
	TurnNumber   int       `db:"turn_number"`
	PlayerID     string    `db:"player_id"`
	DecisionType string    `db:"decision_type"`
	Context      string    `db:"context"`
	LegalActions string    `db:"legal_actions"`
	ChosenAction string    `db:"chosen_action"`
	Parameters   string    `db:"parameters"`
	Rationale    string    `db:"rationale"`
	Source       string    `db:"source"`
	Model        string    `db:"model"`
	TokensUsed   int       `db:"tokens_used"`
	LatencyMs    int64     `db:"latency_ms"`
	CostUSD      float64   `db:"cost_usd"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r DecisionRow) ToDomain() (*decision.Record, error) {
	rec := &decision.Record{
		ID:           r.ID,
		GameID:       r.GameID,
		TurnNumber:   r.TurnNumber,
		PlayerID:     r.PlayerID,
		DecisionType: decision.Type(r.DecisionType),
		Context:      r.Context,
		ChosenAction: decision.Action(r.ChosenAction),
		Parameters:   r.Parameters,
		Rationale:    r.Rationale,
		Source:       r.Source,
		Model:        r.Model,
		TokensUsed:   r.TokensUsed,
		LatencyMs:    r.LatencyMs,
		CostUSD:      r.CostUSD,
		CreatedAt:    r.CreatedAt,
	}
	if err := json.Unmarshal([]byte(r.LegalActions), &rec.LegalActions); err != nil {
		return nil, fmt.Errorf("unmarshal legal actions: %w", err)
	}
	return rec, nil
}

func DecisionToRow(rec *decision.Record) (DecisionRow, error) {
	legalJSON, err := json.Marshal(rec.LegalActions)
	if err != nil {
		return DecisionRow{}, fmt.Errorf("marshal legal actions: %w", err)
	}
	return DecisionRow{
		ID:           rec.ID,
		GameID:       rec.GameID,
		TurnNumber:   rec.TurnNumber,
		PlayerID:     rec.PlayerID,
		DecisionType: string(rec.DecisionType),
		Context:      rec.Context,
		LegalActions: string(legalJSON),
		ChosenAction: string(rec.ChosenAction),
		Parameters:   rec.Parameters,
		Rationale:    rec.Rationale,
		Source:       rec.Source,
		Model:        rec.Model,
		TokensUsed:   rec.TokensUsed,
		LatencyMs:    rec.LatencyMs,
		CostUSD:      rec.CostUSD,
		CreatedAt:    rec.CreatedAt,
	}, nil
}

// EventRecord mirrors events.GameEvent for persistence.
type EventRecord struct {
	ID         string    `db:"id"`
	GameID     string    `db:"game_id"`
	Timestamp  time.Time `db:"timestamp"`
	EventType  string    `db:"event_type"`
	ActorID    string    `db:"actor_id"`
	TargetID   string    `db:"target_id"`
	TurnNumber int       `db:"turn_number"`
	Text       string    `db:"text"`
}

func (r EventRecord) ToDomain() events.GameEvent {
	return events.GameEvent{
		ID:         r.ID,
		GameID:     r.GameID,
		Timestamp:  r.Timestamp,
		Type:       events.EventType(r.EventType),
		ActorID:    r.ActorID,
		TargetID:   r.TargetID,
		TurnNumber: r.TurnNumber,
		Text:       r.Text,
	}
}

func EventToRecord(e events.GameEvent) EventRecord {
	return EventRecord{
		ID:         e.ID,
		GameID:     e.GameID,
		Timestamp:  e.Timestamp,
		EventType:  string(e.Type),
		ActorID:    e.ActorID,
		TargetID:   e.TargetID,
		TurnNumber: e.TurnNumber,
		Text:       e.Text,
	}
}
