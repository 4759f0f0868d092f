// Package main - crowd: load generator for the spectator path. Creates
// matches over the REST API, floods each one with read-only WebSocket
// spectators and measures what they see.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Config for the crowd run.
type Config struct {
	BaseURL     string
	Games       int
	Spectators  int // Per game
	StepDelayMs int
	Duration    time.Duration
}

// Stats tracks what the crowd experienced.
type Stats struct {
	Connected      int64
	FramesReceived int64
	BytesReceived  int64
	Errors         int64
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Arena server base URL")
	games := flag.Int("games", 4, "Matches to create and watch")
	spectators := flag.Int("spectators", 25, "Spectators per match")
	stepDelay := flag.Int("step-delay", 50, "Step delay of the created matches, in ms")
	duration := flag.Duration("duration", 60*time.Second, "How long the crowd stays")
	flag.Parse()

	config := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Games:       *games,
		Spectators:  *spectators,
		StepDelayMs: *stepDelay,
		Duration:    *duration,
	}

	fmt.Println("=========================================")
	fmt.Println("THE CROWD - Spectator Load Tool")
	fmt.Println("=========================================")
	fmt.Printf("Server:     %s\n", config.BaseURL)
	fmt.Printf("Matches:    %d\n", config.Games)
	fmt.Printf("Spectators: %d per match\n", config.Spectators)
	fmt.Printf("Duration:   %v\n", config.Duration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.Duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupt received, stopping...")
		cancel()
	}()

	gameIDs, err := createMatches(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Could not stage the matches: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\n%d matches running, releasing the crowd...\n\n", len(gameIDs))

	stats := runCrowd(ctx, config, gameIDs)
	printResults(stats, config)
}

// createMatches stages the games over the REST API: create, seat, start.
func createMatches(config Config) ([]string, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	ids := make([]string, 0, config.Games)

	for i := 0; i < config.Games; i++ {
		created := struct {
			ID string `json:"id"`
		}{}
		err := postJSON(client, config.BaseURL+"/api/games", map[string]int{
			"step_delay_ms": config.StepDelayMs,
			"turn_limit":    150,
		}, &created)
		if err != nil {
			return nil, fmt.Errorf("create match %d: %w", i+1, err)
		}

		for _, name := range []string{"Ana", "Bruno", "Carmen", "Diego"} {
			if err := postJSON(client, config.BaseURL+"/api/games/"+created.ID+"/players",
				map[string]string{"name": name}, nil); err != nil {
				return nil, fmt.Errorf("seat %s at match %d: %w", name, i+1, err)
			}
		}
		if err := postJSON(client, config.BaseURL+"/api/games/"+created.ID+"/start", nil, nil); err != nil {
			return nil, fmt.Errorf("start match %d: %w", i+1, err)
		}
		ids = append(ids, created.ID)
	}
	return ids, nil
}

func postJSON(client *http.Client, url string, body interface{}, into interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	resp, err := client.Post(url, "application/json", &buf)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s answered %d", url, resp.StatusCode)
	}
	if into != nil {
		return json.NewDecoder(resp.Body).Decode(into)
	}
	return nil
}

func runCrowd(ctx context.Context, config Config, gameIDs []string) *Stats {
	stats := &Stats{}
	var wg sync.WaitGroup

	for _, gameID := range gameIDs {
		for i := 0; i < config.Spectators; i++ {
			wg.Add(1)
			go func(gameID string) {
				defer wg.Done()
				watch(ctx, config, gameID, stats)
			}(gameID)

			// Stagger joins to avoid a thundering herd on the upgrader
			time.Sleep(5 * time.Millisecond)
		}
	}

	// Progress updates
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: connected=%d frames=%d errors=%d\n",
					atomic.LoadInt64(&stats.Connected),
					atomic.LoadInt64(&stats.FramesReceived),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	wg.Wait()
	return stats
}

// watch is one spectator: dial, then count everything the hub sends until
// the run ends.
func watch(ctx context.Context, config Config, gameID string, stats *Stats) {
	wsURL := "ws" + strings.TrimPrefix(config.BaseURL, "http") + "/ws?game_id=" + gameID

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()
	atomic.AddInt64(&stats.Connected, 1)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				atomic.AddInt64(&stats.Errors, 1)
			}
			return
		}
		atomic.AddInt64(&stats.FramesReceived, 1)
		atomic.AddInt64(&stats.BytesReceived, int64(len(payload)))
	}
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("CROWD RESULTS")
	fmt.Println("=========================================")

	connected := atomic.LoadInt64(&stats.Connected)
	frames := atomic.LoadInt64(&stats.FramesReceived)
	bytesIn := atomic.LoadInt64(&stats.BytesReceived)
	errs := atomic.LoadInt64(&stats.Errors)
	wanted := int64(config.Games * config.Spectators)

	fmt.Printf("Spectators connected: %d/%d\n", connected, wanted)
	fmt.Printf("Frames received:      %d\n", frames)
	fmt.Printf("Bytes received:       %d\n", bytesIn)
	fmt.Printf("Errors:               %d\n", errs)
	fmt.Printf("Throughput:           %.2f frames/sec\n", float64(frames)/config.Duration.Seconds())

	fmt.Println("\n-----------------------------------------")
	switch {
	case connected == wanted && errs == 0:
		fmt.Println("PASSED: every seat in the stands was served")
	case connected > wanted*9/10:
		fmt.Println("WARNING: some spectators were turned away or dropped")
	default:
		fmt.Println("FAILED: the stands stayed half empty")
	}
	fmt.Println("=========================================")
}
