// Package network exposes a match over the wire: a gorilla/mux REST API for
// operating games and reading their state, and a gorilla/websocket hub that
// streams the event feed to read-only spectators.
package network

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/engine"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/logger"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins. Spectating is public; lock this down when a
	// frontend domain exists.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the HTTP surface of the arena: game lifecycle, operator
// resolutions, read endpoints and the spectator WebSocket.
type Server struct {
	engine   *engine.Engine
	hub      *Hub
	defaults game.Config // Per-deployment game defaults, overridable per request
	logger   *logger.Logger
}

// NewServer wires the HTTP layer. The hub must already be running and
// attached to the event feed.
func NewServer(eng *engine.Engine, hub *Hub, defaults game.Config, log *logger.Logger) *Server {
	return &Server{engine: eng, hub: hub, defaults: defaults, logger: log}
}

// Routes builds the full router.
func (s *Server) Routes() *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/games", s.handleCreateGame).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}", s.handleGetGame).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/players", s.handleAddPlayer).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/start", s.handleStart).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/pause", s.handlePause).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/resume", s.handleResume).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/abandon", s.handleAbandon).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/decision", s.handleDecision).Methods(http.MethodPost)
	api.HandleFunc("/games/{id}/turns", s.handleTurns).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/decisions", s.handleDecisions).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/events", s.handleEvents).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}/recap", s.handleRecap).Methods(http.MethodGet)

	r.HandleFunc("/ws", s.handleWS).Methods(http.MethodGet)
	r.HandleFunc("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return r
}

// createGameRequest carries optional config overrides. Absent fields keep
// the defaults; explicit zeros are honored (0 turn_limit plays to the last
// solvent player, 0 decision_timeout_ms waits forever).
type createGameRequest struct {
	TurnLimit         *int `json:"turn_limit"`
	StepDelayMs       *int `json:"step_delay_ms"`
	StartingMoney     *int `json:"starting_money"`
	DecisionTimeoutMs *int `json:"decision_timeout_ms"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			jsonError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	cfg := s.defaults
	if req.TurnLimit != nil {
		cfg.TurnLimit = *req.TurnLimit
	}
	if req.StepDelayMs != nil {
		cfg.StepDelayMs = *req.StepDelayMs
	}
	if req.StartingMoney != nil {
		cfg.StartingMoney = *req.StartingMoney
	}
	if req.DecisionTimeoutMs != nil {
		cfg.DecisionTimeoutMs = *req.DecisionTimeoutMs
	}

	g, err := s.engine.CreateGame(r.Context(), cfg)
	if err != nil {
		s.fail(w, "create game", err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, "read game", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type addPlayerRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleAddPlayer(w http.ResponseWriter, r *http.Request) {
	var req addPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		jsonError(w, "Missing player name", http.StatusBadRequest)
		return
	}

	p, err := s.engine.AddPlayer(r.Context(), mux.Vars(r)["id"], req.Name)
	if err != nil {
		s.fail(w, "add player", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "start", s.engine.StartGame)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "pause", s.engine.PauseGame)
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "resume", s.engine.ResumeGame)
}

func (s *Server) handleAbandon(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, "abandon", s.engine.AbandonGame)
}

// transition runs one of the lifecycle verbs and reports the fresh state.
func (s *Server) transition(w http.ResponseWriter, r *http.Request, verb string, fn func(ctx context.Context, gameID string) error) {
	gameID := mux.Vars(r)["id"]
	if err := fn(r.Context(), gameID); err != nil {
		s.fail(w, verb+" game", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"game_id": gameID, "status": "ok"})
}

// handleDecision accepts an operator's answer to the pending decision. The
// source is always stamped "operator" and provider accounting fields are
// discarded; a human at the API never has token counts.
func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var res engine.Resolution
	if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
		jsonError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	res.Source = decision.SourceOperator
	res.Model = ""
	res.TokensUsed = 0
	res.LatencyMs = 0
	res.CostUSD = 0

	gameID := mux.Vars(r)["id"]
	if err := s.engine.ResolveDecision(r.Context(), gameID, res); err != nil {
		s.fail(w, "resolve decision", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"game_id": gameID, "status": "resolved"})
}

func (s *Server) handleTurns(w http.ResponseWriter, r *http.Request) {
	turns, err := s.engine.Turns(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, "list turns", err)
		return
	}
	writeJSON(w, http.StatusOK, turns)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.Decisions(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, "list decisions", err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ok",
		"time":   time.Now().UTC(),
	})
}

// handleWS upgrades a spectator. The initial frame is a full snapshot so a
// late joiner has the table before live events arrive.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("game_id")
	if gameID == "" {
		jsonError(w, "Missing game_id", http.StatusBadRequest)
		return
	}

	snap, err := s.engine.Snapshot(r.Context(), gameID)
	if err != nil {
		s.fail(w, "spectate game", err)
		return
	}
	if !s.hub.CanJoin(gameID) {
		jsonError(w, "Game has no spectator slots left", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed: %v", err)
		metrics.Get().RecordWSError()
		return
	}

	client := NewClient(s.hub, conn, gameID)
	initial, err := json.Marshal(Message{
		Type:      MsgTypeSnapshot,
		Timestamp: time.Now().UTC(),
		Payload:   snap,
	})
	if err != nil {
		s.logger.Error("Failed to serialize snapshot for game %s: %v", gameID, err)
		conn.Close()
		return
	}
	client.enqueue(initial)

	s.hub.Register(client)
	go client.WritePump()
	go client.ReadPump()
}

// fail translates engine and store errors into HTTP responses.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("Failed to %s: %v", op, err)
	}
	jsonError(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrGameNotRunning),
		errors.Is(err, engine.ErrGameNotJoinable),
		errors.Is(err, engine.ErrNotEnoughPlayers),
		errors.Is(err, engine.ErrTableFull),
		errors.Is(err, engine.ErrNoPendingDecision),
		errors.Is(err, engine.ErrDecisionMismatch),
		errors.Is(err, engine.ErrIllegalAction),
		errors.Is(err, engine.ErrPrecondition):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// jsonError sends an error response.
func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeJSON sends a success response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
