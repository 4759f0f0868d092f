package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/engine"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/logger"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/optimization"
)

// tablePersister writes feed events through the store, the same adapter the
// server binary wires.
type tablePersister struct {
	store *storage.Store
}

func (p tablePersister) Append(event events.GameEvent) error {
	return p.store.Queries().InsertEvent(context.Background(), event)
}

type arena struct {
	engine *engine.Engine
	feed   *events.EventLog
	base   string
}

func newArena(t *testing.T) *arena {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:", nil)
	if err != nil {
		t.Fatalf("Expected an in-memory database, got %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := storage.New(db)

	feed := events.NewEventLog(tablePersister{store}, 64)
	t.Cleanup(feed.Close)

	log := logger.NewLogger()
	e := engine.NewEngine(store, feed, log)
	t.Cleanup(e.Shutdown)

	hub := NewHub(optimization.LowResourceConfig(), log)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	hub.Attach(feed)

	srv := httptest.NewServer(NewServer(e, hub, game.DefaultConfig(), log).Routes())
	t.Cleanup(srv.Close)

	return &arena{engine: e, feed: feed, base: srv.URL}
}

// startedMatch seeds a two-player game directly through the engine. The
// huge step delay keeps the scheduler out of the test's way.
func (a *arena) startedMatch(t *testing.T) *game.Game {
	t.Helper()
	ctx := context.Background()
	g, err := a.engine.CreateGame(ctx, game.Config{
		TurnLimit:         0,
		StepDelayMs:       3600000,
		StartingMoney:     1500,
		DecisionTimeoutMs: 0,
	})
	if err != nil {
		t.Fatalf("Expected game creation, got %v", err)
	}
	for _, name := range []string{"Ana", "Bruno"} {
		if _, err := a.engine.AddPlayer(ctx, g.ID, name); err != nil {
			t.Fatalf("Expected %s to join, got %v", name, err)
		}
	}
	if err := a.engine.StartGame(ctx, g.ID); err != nil {
		t.Fatalf("Expected game start, got %v", err)
	}
	return g
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Expected an encodable body, got %v", err)
		}
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatalf("Expected POST %s to answer, got %v", url, err)
	}
	return resp
}

func getJSON(t *testing.T, url string, into interface{}) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Expected GET %s to answer, got %v", url, err)
	}
	defer resp.Body.Close()
	if into != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
			t.Fatalf("Expected a JSON body from %s, got %v", url, err)
		}
	}
	return resp.StatusCode
}

func decodeBody(t *testing.T, resp *http.Response, into interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("Expected a JSON body, got %v", err)
	}
}

func TestGameLifecycleOverHTTP(t *testing.T) {
	// Setup
	a := newArena(t)

	// Act: create a table with overrides, seat two players, run the verbs
	resp := postJSON(t, a.base+"/api/games", map[string]int{
		"step_delay_ms":       3600000,
		"decision_timeout_ms": 0,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 on create, got %d", resp.StatusCode)
	}
	var created game.Game
	decodeBody(t, resp, &created)
	if created.ID == "" || created.Status != game.StatusSetup {
		t.Fatalf("Expected a fresh setup game, got %+v", created)
	}
	if created.Config.TurnLimit != 200 || created.Config.StepDelayMs != 3600000 {
		t.Errorf("Expected defaults plus overrides in the config, got %+v", created.Config)
	}

	for _, name := range []string{"Ana", "Bruno"} {
		resp = postJSON(t, a.base+"/api/games/"+created.ID+"/players", map[string]string{"name": name})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("Expected 201 seating %s, got %d", name, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp = postJSON(t, a.base+"/api/games/"+created.ID+"/start", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 on start, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Assert: the snapshot reflects a running table with the deeds dealt
	var snap engine.Snapshot
	if status := getJSON(t, a.base+"/api/games/"+created.ID, &snap); status != http.StatusOK {
		t.Fatalf("Expected 200 reading the snapshot, got %d", status)
	}
	if snap.Game.Status != game.StatusInProgress {
		t.Errorf("Expected an in_progress game, got %s", snap.Game.Status)
	}
	if len(snap.Players) != 2 {
		t.Errorf("Expected two seated players, got %d", len(snap.Players))
	}
	if len(snap.Properties) == 0 {
		t.Error("Expected the deeds to be materialized at start")
	}

	// Act & Assert: pause, resume, abandon
	if resp := postJSON(t, a.base+"/api/games/"+created.ID+"/pause", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 on pause, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, a.base+"/api/games/"+created.ID+"/resume", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 on resume, got %d", resp.StatusCode)
	}
	if resp := postJSON(t, a.base+"/api/games/"+created.ID+"/abandon", nil); resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 on abandon, got %d", resp.StatusCode)
	}
	if status := getJSON(t, a.base+"/api/games/"+created.ID, &snap); status != http.StatusOK {
		t.Fatalf("Expected 200 re-reading the snapshot, got %d", status)
	}
	if snap.Game.Status != game.StatusAbandoned {
		t.Errorf("Expected an abandoned game, got %s", snap.Game.Status)
	}
}

func TestLifecycleErrorsMapToStatusCodes(t *testing.T) {
	// Setup
	a := newArena(t)
	resp := postJSON(t, a.base+"/api/games", nil)
	var created game.Game
	decodeBody(t, resp, &created)

	// Act & Assert
	if status := getJSON(t, a.base+"/api/games/no-such-game", nil); status != http.StatusNotFound {
		t.Errorf("Expected 404 for a missing game, got %d", status)
	}

	resp = postJSON(t, a.base+"/api/games/no-such-game/players", map[string]string{"name": "Zoe"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 seating into a missing game, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, a.base+"/api/games/"+created.ID+"/players", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for an unnamed player, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, a.base+"/api/games/"+created.ID+"/players", map[string]string{"name": "Ana"})
	resp.Body.Close()
	resp = postJSON(t, a.base+"/api/games/"+created.ID+"/start", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 starting a one-player game, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, a.base+"/api/games/"+created.ID+"/decision", map[string]string{"action": "buy"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 resolving without a pending decision, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

// advanceToGate steps the match until a decision is pending. With full
// starting cash every landing on an unowned space raises a buy gate, so a
// few turns always suffice.
func (a *arena) advanceToGate(t *testing.T, gameID string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 600; i++ {
		snap, err := a.engine.Snapshot(ctx, gameID)
		if err != nil {
			t.Fatalf("Expected the snapshot to answer, got %v", err)
		}
		if snap.Game.Pending != nil {
			return
		}
		if err := a.engine.Advance(ctx, gameID); err != nil {
			t.Fatalf("Expected the step to run, got %v", err)
		}
	}
	t.Fatal("Expected a pending decision within the step budget")
}

func TestOperatorResolvesTheGateOverHTTP(t *testing.T) {
	// Setup: a running match suspended on its first gate
	a := newArena(t)
	g := a.startedMatch(t)
	a.advanceToGate(t, g.ID)

	// Act: an empty resolution takes the gate's default action
	resp := postJSON(t, a.base+"/api/games/"+g.ID+"/decision", map[string]string{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 resolving the gate, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Assert: the record is audited as an operator call, with the provider
	// accounting fields blank
	var records []map[string]interface{}
	if status := getJSON(t, a.base+"/api/games/"+g.ID+"/decisions", &records); status != http.StatusOK {
		t.Fatalf("Expected 200 listing decisions, got %d", status)
	}
	if len(records) != 1 {
		t.Fatalf("Expected one decision record, got %d", len(records))
	}
	if records[0]["source"] != "operator" {
		t.Errorf("Expected the operator source, got %v", records[0]["source"])
	}
	if records[0]["model"] != nil {
		t.Errorf("Expected no model on an operator resolution, got %v", records[0]["model"])
	}
}

func TestEventsEndpointServesTheRecordedFeed(t *testing.T) {
	// Setup: starting the match pushes GAME_STARTED through the persister
	a := newArena(t)
	g := a.startedMatch(t)

	// Act & Assert: the write-behind queue catches up and the filter holds
	url := fmt.Sprintf("%s/api/games/%s/events?type=%s", a.base, g.ID, events.EventTypeGameStarted)
	deadline := time.Now().Add(2 * time.Second)
	var replay ReplayResponse
	for {
		if status := getJSON(t, url, &replay); status != http.StatusOK {
			t.Fatalf("Expected 200 listing events, got %d", status)
		}
		if replay.TotalEvents > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if replay.TotalEvents != 1 {
		t.Fatalf("Expected exactly one GAME_STARTED event, got %d", replay.TotalEvents)
	}
	if replay.Events[0].Text != "La partida comienza" {
		t.Errorf("Expected the start line, got %q", replay.Events[0].Text)
	}
	if replay.Events[0].Impact != "NEUTRAL" {
		t.Errorf("Expected a neutral impact, got %q", replay.Events[0].Impact)
	}

	var empty ReplayResponse
	bankruptURL := fmt.Sprintf("%s/api/games/%s/events?type=%s", a.base, g.ID, events.EventTypeBankruptcy)
	if status := getJSON(t, bankruptURL, &empty); status != http.StatusOK {
		t.Fatalf("Expected 200 on the filtered miss, got %d", status)
	}
	if empty.TotalEvents != 0 {
		t.Errorf("Expected no bankruptcies this early, got %d", empty.TotalEvents)
	}

	if status := getJSON(t, a.base+"/api/games/"+g.ID+"/events?limit=zero", nil); status != http.StatusBadRequest {
		t.Errorf("Expected 400 for a malformed limit, got %d", status)
	}
}

func TestRecapSummarizesTheMatch(t *testing.T) {
	// Setup
	a := newArena(t)
	g := a.startedMatch(t)

	// Act
	var recap RecapResponse
	if status := getJSON(t, a.base+"/api/games/"+g.ID+"/recap", &recap); status != http.StatusOK {
		t.Fatalf("Expected 200 on the recap, got %d", status)
	}

	// Assert
	if recap.Status != string(game.StatusInProgress) {
		t.Errorf("Expected an in_progress recap, got %s", recap.Status)
	}
	if len(recap.Standings) != 2 {
		t.Errorf("Expected two standings, got %d", len(recap.Standings))
	}
	if recap.Decisions.Total != 0 {
		t.Errorf("Expected no decisions yet, got %d", recap.Decisions.Total)
	}
}

// readFrames collects hub messages from one websocket frame, which may
// batch several newline-separated payloads.
func readFrames(t *testing.T, conn *websocket.Conn) []Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Expected a websocket frame, got %v", err)
	}
	var out []Message
	for _, chunk := range bytes.Split(payload, []byte{'\n'}) {
		if len(chunk) == 0 {
			continue
		}
		var msg Message
		if err := json.Unmarshal(chunk, &msg); err != nil {
			t.Fatalf("Expected JSON in the frame, got %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func TestSpectatorStreamOverWebSocket(t *testing.T) {
	// Setup: a running match and a spectator dialing in
	a := newArena(t)
	g := a.startedMatch(t)

	wsURL := "ws" + strings.TrimPrefix(a.base, "http") + "/ws?game_id=" + g.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Expected the handshake to succeed, got %v", err)
	}
	defer conn.Close()

	// Assert: the first frame is the full snapshot
	frames := readFrames(t, conn)
	if frames[0].Type != MsgTypeSnapshot {
		t.Fatalf("Expected the snapshot first, got %q", frames[0].Type)
	}
	raw, _ := json.Marshal(frames[0].Payload)
	var snap engine.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		t.Fatalf("Expected a snapshot payload, got %v", err)
	}
	if snap.Game.ID != g.ID || len(snap.Players) != 2 {
		t.Errorf("Expected the spectated table in the snapshot, got %+v", snap.Game)
	}

	// Act: something happens at the table
	if err := a.engine.PauseGame(context.Background(), g.ID); err != nil {
		t.Fatalf("Expected the pause to land, got %v", err)
	}

	// Assert: the event reaches the spectator
	deadline := time.Now().Add(2 * time.Second)
	for {
		for _, msg := range readFrames(t, conn) {
			if msg.Type != MsgTypeEvent {
				continue
			}
			raw, _ := json.Marshal(msg.Payload)
			var ev events.GameEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				t.Fatalf("Expected an event payload, got %v", err)
			}
			if ev.Type == events.EventTypeGamePaused {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("Expected the pause event on the stream")
		}
	}
}

func TestSpectatingAMissingGameFailsTheHandshake(t *testing.T) {
	// Setup
	a := newArena(t)

	// Act
	wsURL := "ws" + strings.TrimPrefix(a.base, "http") + "/ws?game_id=no-such-game"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)

	// Assert
	if err == nil {
		conn.Close()
		t.Fatal("Expected the handshake to fail for a missing game")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected a 404 refusal, got %+v", resp)
	}
}
