package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/MRamiBalles/MagnateArena/server/internal/platform/optimization"
)

// OpenPostgres opens (and migrates) the PostgreSQL backend. Selected when
// DATABASE_URL is set; query code is identical to SQLite thanks to Rebind.
func OpenPostgres(databaseURL string, tuning *optimization.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	if tuning != nil {
		db.SetMaxOpenConns(tuning.DBMaxOpenConns)
		db.SetMaxIdleConns(tuning.DBMaxIdleConns)
	}

	if err := createSchemas(db, postgresSchemas); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

var postgresSchemas = []string{
	`CREATE TABLE IF NOT EXISTS games (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		phase TEXT NOT NULL,
		current_player_index INTEGER NOT NULL DEFAULT 0,
		turn_number INTEGER NOT NULL DEFAULT 0,
		config TEXT NOT NULL,
		winner_id TEXT,
		ending_reason TEXT,
		pending_decision TEXT,
		is_paused BOOLEAN NOT NULL DEFAULT FALSE,
		chance_deck TEXT NOT NULL,
		chest_deck TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL REFERENCES games(id),
		name TEXT NOT NULL,
		turn_order INTEGER NOT NULL,
		cash INTEGER NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		in_jail BOOLEAN NOT NULL DEFAULT FALSE,
		jail_turns_remaining INTEGER NOT NULL DEFAULT 0,
		get_out_of_jail_cards INTEGER NOT NULL DEFAULT 0,
		is_bankrupt BOOLEAN NOT NULL DEFAULT FALSE,
		consecutive_doubles INTEGER NOT NULL DEFAULT 0,
		final_rank INTEGER NOT NULL DEFAULT 0,
		final_net_worth INTEGER NOT NULL DEFAULT 0,
		bankrupted_on_turn INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL REFERENCES games(id),
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		group_id TEXT NOT NULL,
		price INTEGER NOT NULL,
		owner_id TEXT NOT NULL DEFAULT '',
		houses INTEGER NOT NULL DEFAULT 0,
		is_mortgaged BOOLEAN NOT NULL DEFAULT FALSE,
		UNIQUE (game_id, position)
	);`,
	`CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL REFERENCES games(id),
		turn_number INTEGER NOT NULL,
		player_id TEXT NOT NULL,
		die1 INTEGER NOT NULL DEFAULT 0,
		die2 INTEGER NOT NULL DEFAULT 0,
		position_before INTEGER NOT NULL DEFAULT 0,
		position_after INTEGER NOT NULL DEFAULT 0,
		cash_before INTEGER NOT NULL DEFAULT 0,
		cash_after INTEGER NOT NULL DEFAULT 0,
		passed_go BOOLEAN NOT NULL DEFAULT FALSE,
		was_doubles BOOLEAN NOT NULL DEFAULT FALSE,
		events TEXT NOT NULL DEFAULT '[]',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		UNIQUE (game_id, turn_number)
	);`,
	`CREATE TABLE IF NOT EXISTS decision_log (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL REFERENCES games(id),
		turn_number INTEGER NOT NULL,
		player_id TEXT NOT NULL,
		decision_type TEXT NOT NULL,
		context TEXT NOT NULL,
		legal_actions TEXT NOT NULL,
		chosen_action TEXT NOT NULL,
		parameters TEXT NOT NULL DEFAULT '',
		rationale TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		model TEXT NOT NULL DEFAULT '',
		tokens_used INTEGER NOT NULL DEFAULT 0,
		latency_ms BIGINT NOT NULL DEFAULT 0,
		cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS event_log (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL REFERENCES games(id),
		timestamp TIMESTAMPTZ NOT NULL,
		event_type TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		target_id TEXT NOT NULL DEFAULT '',
		turn_number INTEGER NOT NULL,
		text TEXT NOT NULL
	);`,
	`CREATE INDEX IF NOT EXISTS idx_players_game_id ON players(game_id);`,
	`CREATE INDEX IF NOT EXISTS idx_properties_game_id ON properties(game_id);`,
	`CREATE INDEX IF NOT EXISTS idx_properties_owner ON properties(game_id, owner_id);`,
	`CREATE INDEX IF NOT EXISTS idx_turns_game_turn ON turns(game_id, turn_number);`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_game_turn ON decision_log(game_id, turn_number);`,
	`CREATE INDEX IF NOT EXISTS idx_events_game_id ON event_log(game_id);`,
	`CREATE INDEX IF NOT EXISTS idx_events_actor_id ON event_log(actor_id);`,
}
