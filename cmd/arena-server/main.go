// Package main is the entry point for the Magnate Arena match server.
// It only handles dependency injection and server initialization.
// NO business logic belongs here.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/MRamiBalles/MagnateArena/server/internal/agents"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/engine"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/agent"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
	"github.com/MRamiBalles/MagnateArena/server/internal/network"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/config"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/logger"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/optimization"
)

// storePersister writes feed events through the store's event repository.
type storePersister struct {
	store *storage.Store
}

func (p *storePersister) Append(event events.GameEvent) error {
	return p.store.Queries().InsertEvent(context.Background(), event)
}

// openDatabase picks PostgreSQL when DATABASE_URL is set, SQLite otherwise.
func openDatabase(cfg *config.Config, tuning *optimization.Config, log *logger.Logger) (*sqlx.DB, error) {
	if cfg.DatabaseURL != "" {
		log.Info("Opening PostgreSQL store")
		return storage.OpenPostgres(cfg.DatabaseURL, tuning)
	}
	log.Info("Opening SQLite store at %s", cfg.SQLitePath)
	return storage.OpenSQLite(cfg.SQLitePath, tuning)
}

// pickProvider prefers Anthropic, then OpenAI, then nobody: the agent
// runner plays every table with the scripted policy when no key is set.
func pickProvider(cfg *config.Config, gate *agent.BudgetGate, log *logger.Logger) agent.Provider {
	switch {
	case cfg.AnthropicKey != "":
		log.Info("Agent provider: anthropic (%s)", cfg.AnthropicModel)
		return agent.NewAnthropic(cfg.AnthropicKey, cfg.AnthropicModel, gate)
	case cfg.OpenAIKey != "":
		log.Info("Agent provider: openai (%s)", cfg.OpenAIModel)
		return agent.NewOpenAI(cfg.OpenAIKey, cfg.OpenAIModel, gate)
	default:
		log.Warn("No provider key configured; agents play the scripted policy")
		return nil
	}
}

func main() {
	appLogger := logger.NewLogger()
	appLogger.Info("Initializing Magnate Arena server...")

	cfg, err := config.Load()
	if err != nil {
		appLogger.Error("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	tuning := optimization.ForProfile(cfg.Profile)

	db, err := openDatabase(cfg, tuning, appLogger)
	if err != nil {
		appLogger.Error("Failed to open the store: %v", err)
		os.Exit(1)
	}
	defer db.Close()
	store := storage.New(db)

	feed := events.NewEventLog(&storePersister{store: store}, tuning.FeedChannelBuffer)
	defer feed.Close()

	eng := engine.NewEngine(store, feed, appLogger)
	defer eng.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appLogger.Info("Bootstrapping WebSocket hub...")
	hub := network.NewHub(tuning, appLogger)
	go hub.Run(ctx)
	hub.Attach(feed)

	appLogger.Info("Bootstrapping agent runtime...")
	gate := agent.NewBudgetGate(cfg.DailyBudgetUSD, cfg.MonthlyBudgetUSD)
	runner := agents.NewRunner(eng, feed, pickProvider(cfg, gate, appLogger), appLogger)
	runner.Start(ctx, 0)

	// Interrupted matches resume stepping where they stopped
	if err := eng.Recover(ctx); err != nil {
		appLogger.Error("Recovery scan failed: %v", err)
		os.Exit(1)
	}

	defaults := game.Config{
		TurnLimit:         cfg.TurnLimit,
		StepDelayMs:       cfg.StepDelayMs,
		StartingMoney:     cfg.StartingMoney,
		DecisionTimeoutMs: cfg.DecisionTimeoutMs,
	}
	api := network.NewServer(eng, hub, defaults, appLogger)
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // WebSocket connections are long-lived
	}

	go func() {
		appLogger.Info("HTTP API & WS server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed: %v", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP shutdown: %v", err)
	}
	cancel()
	runner.Wait()
}
