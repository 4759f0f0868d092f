// Match history and recap endpoints. The immutable event feed doubles as a
// replay: spectators and analysts can pull it filtered, or ask for the
// aggregate story of a match (standings, event counts, what the agents
// spent thinking).
package network

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/MRamiBalles/MagnateArena/server/internal/events"
)

// replayLimit bounds one history page. The feed of a long match runs into
// tens of thousands of rows.
const replayLimit = 1000

// ReplayEvent is one feed entry shaped for public viewing.
type ReplayEvent struct {
	ID       string `json:"id"`
	Time     string `json:"time"`
	Turn     int    `json:"turn"`
	Type     string `json:"type"`
	ActorID  string `json:"actor_id,omitempty"`
	TargetID string `json:"target_id,omitempty"`
	Text     string `json:"text"`
	Impact   string `json:"impact"`
}

// ReplayResponse is the filtered history of one game.
type ReplayResponse struct {
	GameID      string        `json:"game_id"`
	TotalEvents int           `json:"total_events"`
	GeneratedAt time.Time     `json:"generated_at"`
	Events      []ReplayEvent `json:"events"`
}

// handleEvents returns the persisted feed of a game, optionally filtered.
// GET /api/games/{id}/events?type=RENT_PAID&actor=p1&from_turn=3&to_turn=9&limit=100
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	limit := replayLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if parsed < limit {
			limit = parsed
		}
	}

	feed, err := s.engine.Events(r.Context(), gameID, replayLimit)
	if err != nil {
		s.fail(w, "list events", err)
		return
	}

	eventType := r.URL.Query().Get("type")
	actorID := r.URL.Query().Get("actor")
	fromTurn, toTurn, err := turnWindow(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	replay := make([]ReplayEvent, 0, len(feed))
	for _, e := range feed {
		if eventType != "" && string(e.Type) != eventType {
			continue
		}
		if actorID != "" && e.ActorID != actorID {
			continue
		}
		if fromTurn > 0 && e.TurnNumber < fromTurn {
			continue
		}
		if toTurn > 0 && e.TurnNumber > toTurn {
			continue
		}
		replay = append(replay, toReplayEvent(e))
		if len(replay) == limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, ReplayResponse{
		GameID:      gameID,
		TotalEvents: len(replay),
		GeneratedAt: time.Now().UTC(),
		Events:      replay,
	})
}

func turnWindow(r *http.Request) (int, int, error) {
	parse := func(key string) (int, error) {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			return 0, nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return v, nil
	}
	from, err := parse("from_turn")
	if err != nil {
		return 0, 0, err
	}
	to, err := parse("to_turn")
	if err != nil {
		return 0, 0, err
	}
	return from, to, nil
}

// Standing is one player's line in the recap scoreboard.
type Standing struct {
	Name             string `json:"name"`
	Rank             int    `json:"rank,omitempty"`
	Cash             int    `json:"cash"`
	NetWorth         int    `json:"net_worth,omitempty"`
	Bankrupt         bool   `json:"bankrupt"`
	BankruptedOnTurn int    `json:"bankrupted_on_turn,omitempty"`
}

// DecisionRecap aggregates what the table's agents did and spent.
type DecisionRecap struct {
	Total        int            `json:"total"`
	BySource     map[string]int `json:"by_source"`
	TotalTokens  int            `json:"total_tokens"`
	TotalCostUSD float64        `json:"total_cost_usd"`
	AvgLatencyMs int64          `json:"avg_latency_ms"`
}

// RecapResponse is the aggregate story of one match.
type RecapResponse struct {
	GameID       string         `json:"game_id"`
	Status       string         `json:"status"`
	Phase        string         `json:"phase"`
	TurnsPlayed  int            `json:"turns_played"`
	WinnerID     string         `json:"winner_id,omitempty"`
	EndingReason string         `json:"ending_reason,omitempty"`
	GeneratedAt  time.Time      `json:"generated_at"`
	Standings    []Standing     `json:"standings"`
	EventCounts  map[string]int `json:"event_counts"`
	Decisions    DecisionRecap  `json:"decisions"`
}

// handleRecap returns aggregate statistics for a match.
// GET /api/games/{id}/recap
func (s *Server) handleRecap(w http.ResponseWriter, r *http.Request) {
	gameID := mux.Vars(r)["id"]

	snap, err := s.engine.Snapshot(r.Context(), gameID)
	if err != nil {
		s.fail(w, "recap game", err)
		return
	}
	feed, err := s.engine.Events(r.Context(), gameID, replayLimit)
	if err != nil {
		s.fail(w, "recap events", err)
		return
	}
	records, err := s.engine.Decisions(r.Context(), gameID)
	if err != nil {
		s.fail(w, "recap decisions", err)
		return
	}

	counts := make(map[string]int, len(feed))
	for _, e := range feed {
		counts[string(e.Type)]++
	}

	recap := DecisionRecap{BySource: make(map[string]int)}
	var latencySum int64
	for _, rec := range records {
		recap.Total++
		recap.BySource[rec.Source]++
		recap.TotalTokens += rec.TokensUsed
		recap.TotalCostUSD += rec.CostUSD
		latencySum += rec.LatencyMs
	}
	if recap.Total > 0 {
		recap.AvgLatencyMs = latencySum / int64(recap.Total)
	}

	standings := make([]Standing, 0, len(snap.Players))
	for _, p := range snap.Players {
		standings = append(standings, Standing{
			Name:             p.Name,
			Rank:             p.FinalRank,
			Cash:             p.Cash,
			NetWorth:         p.FinalNetWorth,
			Bankrupt:         p.IsBankrupt,
			BankruptedOnTurn: p.BankruptedOnTurn,
		})
	}

	writeJSON(w, http.StatusOK, RecapResponse{
		GameID:       gameID,
		Status:       string(snap.Game.Status),
		Phase:        string(snap.Game.Phase),
		TurnsPlayed:  snap.Game.TurnNumber,
		WinnerID:     snap.Game.WinnerID,
		EndingReason: string(snap.Game.EndingReason),
		GeneratedAt:  time.Now().UTC(),
		Standings:    standings,
		EventCounts:  counts,
		Decisions:    recap,
	})
}

// toReplayEvent shapes an internal event for public viewing.
func toReplayEvent(e events.GameEvent) ReplayEvent {
	return ReplayEvent{
		ID:       e.ID,
		Time:     e.Timestamp.Format("15:04:05"),
		Turn:     e.TurnNumber,
		Type:     string(e.Type),
		ActorID:  e.ActorID,
		TargetID: e.TargetID,
		Text:     e.Text,
		Impact:   impactOf(e.Type),
	}
}

// impactOf classifies how an event type lands for the actor.
func impactOf(t events.EventType) string {
	switch t {
	case events.EventTypeSalary, events.EventTypePurchase, events.EventTypeAuction,
		events.EventTypeHouseBuilt, events.EventTypeUnmortgage, events.EventTypeFreed,
		events.EventTypeTradeSettled:
		return "POSITIVE"
	case events.EventTypeRentPaid, events.EventTypeTaxPaid, events.EventTypeJailed,
		events.EventTypeMortgage, events.EventTypeBankruptcy:
		return "NEGATIVE"
	default:
		return "NEUTRAL"
	}
}
