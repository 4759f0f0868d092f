package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/MRamiBalles/MagnateArena/server/internal/platform/optimization"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know out of the box
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// OpenSQLite opens (and migrates) the local SQLite database. The default
// backend: zero external dependencies, good enough for a single node.
func OpenSQLite(dbPath string, tuning *optimization.Config) (*sqlx.DB, error) {
	memory := strings.Contains(dbPath, ":memory:")
	if !memory {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// WAL keeps readers off the writer's back; busy_timeout covers the rest
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if memory {
		// Each pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	} else if tuning != nil {
		db.SetMaxOpenConns(tuning.DBMaxOpenConns)
		db.SetMaxIdleConns(tuning.DBMaxIdleConns)
	}

	if err := createSchemas(db, sqliteSchemas); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schemas: %w", err)
	}

	return db, nil
}

func createSchemas(db *sqlx.DB, schemas []string) error {
	for _, query := range schemas {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

var sqliteSchemas = []string{
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
		is_paused BOOLEAN NOT NULL DEFAULT 0,
		chance_deck TEXT NOT NULL,
		chest_deck TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		name TEXT NOT NULL,
		turn_order INTEGER NOT NULL,
		cash INTEGER NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		in_jail BOOLEAN NOT NULL DEFAULT 0,
		jail_turns_remaining INTEGER NOT NULL DEFAULT 0,
		get_out_of_jail_cards INTEGER NOT NULL DEFAULT 0,
		is_bankrupt BOOLEAN NOT NULL DEFAULT 0,
		consecutive_doubles INTEGER NOT NULL DEFAULT 0,
		final_rank INTEGER NOT NULL DEFAULT 0,
		final_net_worth INTEGER NOT NULL DEFAULT 0,
		bankrupted_on_turn INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (game_id) REFERENCES games(id)
	);`,
	`CREATE TABLE IF NOT EXISTS properties (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		group_id TEXT NOT NULL,
		price INTEGER NOT NULL,
		owner_id TEXT NOT NULL DEFAULT '',
		houses INTEGER NOT NULL DEFAULT 0,
		is_mortgaged BOOLEAN NOT NULL DEFAULT 0,
		UNIQUE (game_id, position),
		FOREIGN KEY (game_id) REFERENCES games(id)
	);`,
	`CREATE TABLE IF NOT EXISTS turns (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		turn_number INTEGER NOT NULL,
		player_id TEXT NOT NULL,
		die1 INTEGER NOT NULL DEFAULT 0,
		die2 INTEGER NOT NULL DEFAULT 0,
		position_before INTEGER NOT NULL DEFAULT 0,
		position_after INTEGER NOT NULL DEFAULT 0,
		cash_before INTEGER NOT NULL DEFAULT 0,
		cash_after INTEGER NOT NULL DEFAULT 0,
		passed_go BOOLEAN NOT NULL DEFAULT 0,
		was_doubles BOOLEAN NOT NULL DEFAULT 0,
		events TEXT NOT NULL DEFAULT '[]',
		started_at DATETIME NOT NULL,
		ended_at DATETIME,
		UNIQUE (game_id, turn_number),
		FOREIGN KEY (game_id) REFERENCES games(id)
	);`,
	`CREATE TABLE IF NOT EXISTS decision_log (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
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
		latency_ms INTEGER NOT NULL DEFAULT 0,
		cost_usd REAL NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		FOREIGN KEY (game_id) REFERENCES games(id)
	);`,
	`CREATE TABLE IF NOT EXISTS event_log (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL,
		timestamp DATETIME NOT NULL,
		event_type TEXT NOT NULL,
		actor_id TEXT NOT NULL,
		target_id TEXT NOT NULL DEFAULT '',
		turn_number INTEGER NOT NULL,
		text TEXT NOT NULL,
		FOREIGN KEY (game_id) REFERENCES games(id)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_players_game_id ON players(game_id);`,
	`CREATE INDEX IF NOT EXISTS idx_properties_game_id ON properties(game_id);`,
	`CREATE INDEX IF NOT EXISTS idx_properties_owner ON properties(game_id, owner_id);`,
	`CREATE INDEX IF NOT EXISTS idx_turns_game_turn ON turns(game_id, turn_number);`,
	`CREATE INDEX IF NOT EXISTS idx_decisions_game_turn ON decision_log(game_id, turn_number);`,
	`CREATE INDEX IF NOT EXISTS idx_events_game_id ON event_log(game_id);`,
	`CREATE INDEX IF NOT EXISTS idx_events_actor_id ON event_log(actor_id);`,
}
