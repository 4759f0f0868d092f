package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
)

// ErrNotFound marks lookups of missing rows. Callers test with errors.Is.
var ErrNotFound = errors.New("not found")

// ---------------------------------------------------------
// Games
// ---------------------------------------------------------

func (qs *Queries) InsertGame(ctx context.Context, g *game.Game) error {
	r, err := GameToRecord(g)
	if err != nil {
		return err
	}
	query := qs.q.Rebind(`
		INSERT INTO games (id, status, phase, current_player_index, turn_number, config,
			winner_id, ending_reason, pending_decision, is_paused, chance_deck, chest_deck,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = qs.q.ExecContext(ctx, query,
		r.ID, r.Status, r.Phase, r.CurrentPlayerIndex, r.TurnNumber, r.Config,
		r.WinnerID, r.EndingReason, r.PendingDecision, r.IsPaused, r.ChanceDeck, r.ChestDeck,
		r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert game: %w", err)
	}
	return nil
}

func (qs *Queries) GetGame(ctx context.Context, id string) (*game.Game, error) {
	var r GameRecord
	query := qs.q.Rebind(`SELECT * FROM games WHERE id = ?`)
	if err := qs.q.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("game %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return r.ToDomain()
}

func (qs *Queries) UpdateGame(ctx context.Context, g *game.Game) error {
	r, err := GameToRecord(g)
	if err != nil {
		return err
	}
	query := qs.q.Rebind(`
		UPDATE games SET status = ?, phase = ?, current_player_index = ?, turn_number = ?,
			config = ?, winner_id = ?, ending_reason = ?, pending_decision = ?, is_paused = ?,
			chance_deck = ?, chest_deck = ?, updated_at = ?
		WHERE id = ?
	`)
	_, err = qs.q.ExecContext(ctx, query,
		r.Status, r.Phase, r.CurrentPlayerIndex, r.TurnNumber,
		r.Config, r.WinnerID, r.EndingReason, r.PendingDecision, r.IsPaused,
		r.ChanceDeck, r.ChestDeck, r.UpdatedAt,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update game: %w", err)
	}
	return nil
}

func (qs *Queries) ListGamesByStatus(ctx context.Context, status game.Status) ([]*game.Game, error) {
	var records []GameRecord
	query := qs.q.Rebind(`SELECT * FROM games WHERE status = ? ORDER BY created_at ASC`)
	if err := qs.q.SelectContext(ctx, &records, query, string(status)); err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}
	games := make([]*game.Game, 0, len(records))
	for _, r := range records {
		g, err := r.ToDomain()
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, nil
}

// ---------------------------------------------------------
// Players
// ---------------------------------------------------------

func (qs *Queries) InsertPlayer(ctx context.Context, p *game.Player) error {
	r := PlayerToRecord(p)
	query := qs.q.Rebind(`
		INSERT INTO players (id, game_id, name, turn_order, cash, position, in_jail,
			jail_turns_remaining, get_out_of_jail_cards, is_bankrupt, consecutive_doubles,
			final_rank, final_net_worth, bankrupted_on_turn, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := qs.q.ExecContext(ctx, query,
		r.ID, r.GameID, r.Name, r.TurnOrder, r.Cash, r.Position, r.InJail,
		r.JailTurnsRemaining, r.GetOutOfJailCards, r.IsBankrupt, r.ConsecutiveDoubles,
		r.FinalRank, r.FinalNetWorth, r.BankruptedOnTurn, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert player: %w", err)
	}
	return nil
}

func (qs *Queries) GetPlayer(ctx context.Context, id string) (*game.Player, error) {
	var r PlayerRecord
	query := qs.q.Rebind(`SELECT * FROM players WHERE id = ?`)
	if err := qs.q.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("player %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return r.ToDomain(), nil
}

func (qs *Queries) UpdatePlayer(ctx context.Context, p *game.Player) error {
	r := PlayerToRecord(p)
	query := qs.q.Rebind(`
		UPDATE players SET cash = ?, position = ?, in_jail = ?, jail_turns_remaining = ?,
			get_out_of_jail_cards = ?, is_bankrupt = ?, consecutive_doubles = ?,
			final_rank = ?, final_net_worth = ?, bankrupted_on_turn = ?
		WHERE id = ?
	`)
	_, err := qs.q.ExecContext(ctx, query,
		r.Cash, r.Position, r.InJail, r.JailTurnsRemaining,
		r.GetOutOfJailCards, r.IsBankrupt, r.ConsecutiveDoubles,
		r.FinalRank, r.FinalNetWorth, r.BankruptedOnTurn,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update player: %w", err)
	}
	return nil
}

// ListPlayers returns every player of a game in seat order, bankrupt included.
func (qs *Queries) ListPlayers(ctx context.Context, gameID string) ([]*game.Player, error) {
	var records []PlayerRecord
	query := qs.q.Rebind(`SELECT * FROM players WHERE game_id = ? ORDER BY turn_order ASC`)
	if err := qs.q.SelectContext(ctx, &records, query, gameID); err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	players := make([]*game.Player, 0, len(records))
	for _, r := range records {
		players = append(players, r.ToDomain())
	}
	return players, nil
}

// ---------------------------------------------------------
// Properties
// ---------------------------------------------------------

func (qs *Queries) InsertProperty(ctx context.Context, p *game.Property) error {
	r := PropertyToRecord(p)
	query := qs.q.Rebind(`
		INSERT INTO properties (id, game_id, position, name, group_id, price, owner_id, houses, is_mortgaged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := qs.q.ExecContext(ctx, query,
		r.ID, r.GameID, r.Position, r.Name, r.GroupID, r.Price, r.OwnerID, r.Houses, r.IsMortgaged,
	)
	if err != nil {
		return fmt.Errorf("failed to insert property: %w", err)
	}
	return nil
}

func (qs *Queries) GetProperty(ctx context.Context, id string) (*game.Property, error) {
	var r PropertyRecord
	query := qs.q.Rebind(`SELECT * FROM properties WHERE id = ?`)
	if err := qs.q.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("property %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return r.ToDomain(), nil
}

func (qs *Queries) GetPropertyByPosition(ctx context.Context, gameID string, position int) (*game.Property, error) {
	var r PropertyRecord
	query := qs.q.Rebind(`SELECT * FROM properties WHERE game_id = ? AND position = ?`)
	if err := qs.q.GetContext(ctx, &r, query, gameID, position); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("property at %d: %w", position, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	return r.ToDomain(), nil
}

func (qs *Queries) UpdateProperty(ctx context.Context, p *game.Property) error {
	r := PropertyToRecord(p)
	query := qs.q.Rebind(`
		UPDATE properties SET owner_id = ?, houses = ?, is_mortgaged = ? WHERE id = ?
	`)
	_, err := qs.q.ExecContext(ctx, query, r.OwnerID, r.Houses, r.IsMortgaged, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update property: %w", err)
	}
	return nil
}

func (qs *Queries) ListProperties(ctx context.Context, gameID string) ([]*game.Property, error) {
	var records []PropertyRecord
	query := qs.q.Rebind(`SELECT * FROM properties WHERE game_id = ? ORDER BY position ASC`)
	if err := qs.q.SelectContext(ctx, &records, query, gameID); err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	properties := make([]*game.Property, 0, len(records))
	for _, r := range records {
		properties = append(properties, r.ToDomain())
	}
	return properties, nil
}

// TransferProperties re-parents every deed of one player to another in a
// single statement. Used when a bankruptcy has a player creditor.
func (qs *Queries) TransferProperties(ctx context.Context, gameID, fromOwnerID, toOwnerID string) error {
	query := qs.q.Rebind(`UPDATE properties SET owner_id = ? WHERE game_id = ? AND owner_id = ?`)
	_, err := qs.q.ExecContext(ctx, query, toOwnerID, gameID, fromOwnerID)
	if err != nil {
		return fmt.Errorf("failed to transfer properties: %w", err)
	}
	return nil
}

// SurrenderProperties returns every deed of one player to the bank, clearing
// houses and mortgage flags in the same statement.
func (qs *Queries) SurrenderProperties(ctx context.Context, gameID, ownerID string) error {
	query := qs.q.Rebind(`
		UPDATE properties SET owner_id = '', houses = 0, is_mortgaged = ?
		WHERE game_id = ? AND owner_id = ?
	`)
	_, err := qs.q.ExecContext(ctx, query, false, gameID, ownerID)
	if err != nil {
		return fmt.Errorf("failed to surrender properties: %w", err)
	}
	return nil
}

// ---------------------------------------------------------
// Turns
// ---------------------------------------------------------

func (qs *Queries) InsertTurn(ctx context.Context, t *game.Turn) error {
	r, err := TurnToRecord(t)
	if err != nil {
		return err
	}
	query := qs.q.Rebind(`
		INSERT INTO turns (id, game_id, turn_number, player_id, die1, die2,
			position_before, position_after, cash_before, cash_after, passed_go,
			was_doubles, events, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = qs.q.ExecContext(ctx, query,
		r.ID, r.GameID, r.TurnNumber, r.PlayerID, r.Die1, r.Die2,
		r.PositionBefore, r.PositionAfter, r.CashBefore, r.CashAfter, r.PassedGo,
		r.WasDoubles, r.Events, r.StartedAt, r.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	return nil
}

func (qs *Queries) UpdateTurn(ctx context.Context, t *game.Turn) error {
	r, err := TurnToRecord(t)
	if err != nil {
		return err
	}
	query := qs.q.Rebind(`
		UPDATE turns SET die1 = ?, die2 = ?, position_before = ?, position_after = ?,
			cash_before = ?, cash_after = ?, passed_go = ?, was_doubles = ?, events = ?,
			ended_at = ?
		WHERE id = ?
	`)
	_, err = qs.q.ExecContext(ctx, query,
		r.Die1, r.Die2, r.PositionBefore, r.PositionAfter,
		r.CashBefore, r.CashAfter, r.PassedGo, r.WasDoubles, r.Events,
		r.EndedAt,
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update turn: %w", err)
	}
	return nil
}

func (qs *Queries) GetTurn(ctx context.Context, gameID string, turnNumber int) (*game.Turn, error) {
	var r TurnRecord
	query := qs.q.Rebind(`SELECT * FROM turns WHERE game_id = ? AND turn_number = ?`)
	if err := qs.q.GetContext(ctx, &r, query, gameID, turnNumber); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("turn %d: %w", turnNumber, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get turn: %w", err)
	}
	return r.ToDomain()
}

func (qs *Queries) ListTurns(ctx context.Context, gameID string) ([]*game.Turn, error) {
	var records []TurnRecord
	query := qs.q.Rebind(`SELECT * FROM turns WHERE game_id = ? ORDER BY turn_number ASC`)
	if err := qs.q.SelectContext(ctx, &records, query, gameID); err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	turns := make([]*game.Turn, 0, len(records))
	for _, r := range records {
		t, err := r.ToDomain()
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// ---------------------------------------------------------
// Decision log
// ---------------------------------------------------------

func (qs *Queries) InsertDecision(ctx context.Context, rec *decision.Record) error {
	r, err := DecisionToRow(rec)
	if err != nil {
		return err
	}
	query := qs.q.Rebind(`
		INSERT INTO decision_log (id, game_id, turn_number, player_id, decision_type,
			context, legal_actions, chosen_action, parameters, rationale, source, model,
			tokens_used, latency_ms, cost_usd, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err = qs.q.ExecContext(ctx, query,
		r.ID, r.GameID, r.TurnNumber, r.PlayerID, r.DecisionType,
		r.Context, r.LegalActions, r.ChosenAction, r.Parameters, r.Rationale, r.Source, r.Model,
		r.TokensUsed, r.LatencyMs, r.CostUSD, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

func (qs *Queries) ListDecisions(ctx context.Context, gameID string) ([]*decision.Record, error) {
	var records []DecisionRow
	query := qs.q.Rebind(`SELECT * FROM decision_log WHERE game_id = ? ORDER BY created_at ASC`)
	if err := qs.q.SelectContext(ctx, &records, query, gameID); err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	out := make([]*decision.Record, 0, len(records))
	for _, r := range records {
		rec, err := r.ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// ---------------------------------------------------------
// Event feed
// ---------------------------------------------------------

func (qs *Queries) InsertEvent(ctx context.Context, e events.GameEvent) error {
	r := EventToRecord(e)
	query := qs.q.Rebind(`
		INSERT INTO event_log (id, game_id, timestamp, event_type, actor_id, target_id, turn_number, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := qs.q.ExecContext(ctx, query,
		r.ID, r.GameID, r.Timestamp, r.EventType, r.ActorID, r.TargetID, r.TurnNumber, r.Text,
	)
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (qs *Queries) ListEvents(ctx context.Context, gameID string, limit int) ([]events.GameEvent, error) {
	var records []EventRecord
	query := qs.q.Rebind(`SELECT * FROM event_log WHERE game_id = ? ORDER BY timestamp ASC LIMIT ?`)
	if err := qs.q.SelectContext(ctx, &records, query, gameID, limit); err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	out := make([]events.GameEvent, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToDomain())
	}
	return out, nil
}
