// Package main - simulator: headless batch runner. Plays N full matches
// with scripted agents at zero step delay and prints the standings, for
// balance checks and soak testing without a single HTTP request.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/MagnateArena/server/internal/agents"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/engine"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/logger"
)

// seatNames covers the largest table the engine allows.
var seatNames = []string{"Ana", "Bruno", "Carmen", "Diego", "Elena", "Fermín", "Gloria", "Hugo"}

type batchConfig struct {
	Games      int
	Players    int
	TurnLimit  int
	DBPath     string
	Timeout    time.Duration
	ResultPath string
}

type matchResult struct {
	GameID       string    `json:"game_id"`
	Turns        int       `json:"turns"`
	Winner       string    `json:"winner,omitempty"`
	EndingReason string    `json:"ending_reason"`
	Duration     string    `json:"duration"`
	Standings    []contest `json:"standings"`
}

type contest struct {
	Name     string `json:"name"`
	Rank     int    `json:"rank"`
	NetWorth int    `json:"net_worth"`
	Bankrupt bool   `json:"bankrupt"`
}

func main() {
	games := flag.Int("games", 4, "Matches to play")
	players := flag.Int("players", 4, "Seats per match (2-8)")
	turnLimit := flag.Int("turns", 150, "Turn cap per match (0 = last magnate standing)")
	dbPath := flag.String("db", ":memory:", "SQLite path; memory by default, nothing survives the run")
	timeout := flag.Duration("timeout", 10*time.Minute, "Batch deadline; stragglers are abandoned")
	resultPath := flag.String("out", "", "Optional JSON results file")
	flag.Parse()

	cfg := batchConfig{
		Games:      *games,
		Players:    *players,
		TurnLimit:  *turnLimit,
		DBPath:     *dbPath,
		Timeout:    *timeout,
		ResultPath: *resultPath,
	}
	if cfg.Players < 2 {
		cfg.Players = 2
	}
	if cfg.Players > len(seatNames) {
		cfg.Players = len(seatNames)
	}

	fmt.Println("=========================================")
	fmt.Println("MAGNATE ARENA - Batch Simulator")
	fmt.Println("=========================================")
	fmt.Printf("Matches:    %d\n", cfg.Games)
	fmt.Printf("Seats:      %d\n", cfg.Players)
	fmt.Printf("Turn cap:   %d\n", cfg.TurnLimit)
	fmt.Printf("Store:      %s\n", cfg.DBPath)
	fmt.Println("=========================================")

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Simulation failed: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg batchConfig) error {
	log := logger.NewLogger()
	db, err := storage.OpenSQLite(cfg.DBPath, nil)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()
	store := storage.New(db)

	feed := events.NewEventLog(nil, 0)
	defer feed.Close()

	eng := engine.NewEngine(store, feed, log)
	defer eng.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// nil provider: every seat plays the scripted policy
	runner := agents.NewRunner(eng, feed, nil, log)
	runner.Start(ctx, cfg.Games)

	started := time.Now()
	ids, err := startMatches(ctx, eng, cfg)
	if err != nil {
		return err
	}

	results, err := awaitMatches(ctx, eng, ids, cfg, started)
	if err != nil {
		return err
	}

	cancel()
	runner.Wait()

	printStandings(results, time.Since(started))
	if cfg.ResultPath != "" {
		data, _ := json.MarshalIndent(results, "", "  ")
		if err := os.WriteFile(cfg.ResultPath, data, 0644); err != nil {
			return fmt.Errorf("write results: %w", err)
		}
		fmt.Printf("\nResults saved to %s\n", cfg.ResultPath)
	}
	return nil
}

// startMatches seats and launches every game. Zero step delay makes each
// match drive itself through the scheduler from here on.
func startMatches(ctx context.Context, eng *engine.Engine, cfg batchConfig) ([]string, error) {
	ids := make([]string, 0, cfg.Games)
	for i := 0; i < cfg.Games; i++ {
		g, err := eng.CreateGame(ctx, game.Config{
			TurnLimit:         cfg.TurnLimit,
			StepDelayMs:       0,
			StartingMoney:     1500,
			DecisionTimeoutMs: 0,
		})
		if err != nil {
			return nil, fmt.Errorf("create match %d: %w", i+1, err)
		}
		for _, name := range seatNames[:cfg.Players] {
			if _, err := eng.AddPlayer(ctx, g.ID, name); err != nil {
				return nil, fmt.Errorf("seat %s at match %d: %w", name, i+1, err)
			}
		}
		if err := eng.StartGame(ctx, g.ID); err != nil {
			return nil, fmt.Errorf("start match %d: %w", i+1, err)
		}
		ids = append(ids, g.ID)
	}
	fmt.Printf("\nAll %d matches running...\n\n", len(ids))
	return ids, nil
}

// awaitMatches polls until every game is terminal or the deadline passes,
// then collects results. Stragglers are abandoned so the batch always ends.
func awaitMatches(ctx context.Context, eng *engine.Engine, ids []string, cfg batchConfig, started time.Time) ([]matchResult, error) {
	deadline := started.Add(cfg.Timeout)
	lastReport := started
	for {
		finished := 0
		for _, id := range ids {
			snap, err := eng.Snapshot(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("poll match %s: %w", id, err)
			}
			if snap.Game.Terminal() {
				finished++
			}
		}
		if finished == len(ids) {
			break
		}
		if time.Since(lastReport) > 5*time.Second {
			fmt.Printf("Progress: %d/%d matches finished\n", finished, len(ids))
			lastReport = time.Now()
		}
		if time.Now().After(deadline) {
			fmt.Printf("Deadline hit with %d matches unfinished; abandoning them\n", len(ids)-finished)
			for _, id := range ids {
				snap, err := eng.Snapshot(ctx, id)
				if err == nil && !snap.Game.Terminal() {
					_ = eng.AbandonGame(ctx, id)
				}
			}
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	results := make([]matchResult, 0, len(ids))
	for _, id := range ids {
		snap, err := eng.Snapshot(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("collect match %s: %w", id, err)
		}
		results = append(results, summarize(snap, time.Since(started)))
	}
	return results, nil
}

func summarize(snap *engine.Snapshot, elapsed time.Duration) matchResult {
	res := matchResult{
		GameID:       snap.Game.ID,
		Turns:        snap.Game.TurnNumber,
		EndingReason: string(snap.Game.EndingReason),
		Duration:     elapsed.Round(time.Millisecond).String(),
	}
	standings := make([]contest, 0, len(snap.Players))
	for _, p := range snap.Players {
		if p.ID == snap.Game.WinnerID {
			res.Winner = p.Name
		}
		standings = append(standings, contest{
			Name:     p.Name,
			Rank:     p.FinalRank,
			NetWorth: p.FinalNetWorth,
			Bankrupt: p.IsBankrupt,
		})
	}
	// Winner first; the unranked (abandoned mid-game) sink to the bottom
	sort.Slice(standings, func(i, j int) bool {
		ri, rj := standings[i].Rank, standings[j].Rank
		if ri == 0 {
			ri = len(standings) + 1
		}
		if rj == 0 {
			rj = len(standings) + 1
		}
		return ri < rj
	})
	res.Standings = standings
	return res
}

func printStandings(results []matchResult, elapsed time.Duration) {
	fmt.Println("\n=========================================")
	fmt.Println("STANDINGS")
	fmt.Println("=========================================")
	for i, res := range results {
		fmt.Printf("\nMatch %d (%s): %d turns, ended by %s\n", i+1, res.GameID[:8], res.Turns, res.EndingReason)
		for _, s := range res.Standings {
			marker := "  "
			if s.Rank == 1 {
				marker = "* "
			}
			state := ""
			if s.Bankrupt {
				state = " (bankrupt)"
			}
			fmt.Printf("  %s%d. %-8s $%s%s\n", marker, s.Rank, s.Name, humanize.Comma(int64(s.NetWorth)), state)
		}
	}
	fmt.Println("\n-----------------------------------------")
	fmt.Printf("Batch finished in %v\n", elapsed.Round(time.Millisecond))
}
