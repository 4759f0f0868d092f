// Package config loads the server configuration from the environment.
// A .env file is honored in development; real deployments set variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the arena server.
type Config struct {
	// HTTP
	Addr string `env:"ARENA_ADDR" envDefault:":8080"`

	// Storage. DatabaseURL selects PostgreSQL; empty falls back to SQLite.
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"ARENA_SQLITE_PATH" envDefault:"./arena.db"`

	// Engine defaults, overridable per game at creation
	StepDelayMs       int `env:"ARENA_STEP_DELAY_MS" envDefault:"500"`
	TurnLimit         int `env:"ARENA_TURN_LIMIT" envDefault:"200"`
	StartingMoney     int `env:"ARENA_STARTING_MONEY" envDefault:"1500"`
	DecisionTimeoutMs int `env:"ARENA_DECISION_TIMEOUT_MS" envDefault:"120000"`

	// Agent providers
	OpenAIKey        string  `env:"OPENAI_API_KEY"`
	OpenAIModel      string  `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	AnthropicKey     string  `env:"ANTHROPIC_API_KEY"`
	AnthropicModel   string  `env:"ANTHROPIC_MODEL" envDefault:"claude-3-5-haiku-20241022"`
	DailyBudgetUSD   float64 `env:"ARENA_DAILY_BUDGET_USD" envDefault:"5.0"`
	MonthlyBudgetUSD float64 `env:"ARENA_MONTHLY_BUDGET_USD" envDefault:"50.0"`

	// Load profile: default, stress or low
	Profile string `env:"ARENA_PROFILE" envDefault:"default"`
}

// Load reads .env when present and parses the environment into a Config.
func Load() (*Config, error) {
	// Missing .env is the normal case outside development
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
