package network

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/logger"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/metrics"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/optimization"
)

// Message types pushed to spectators.
const (
	MsgTypeEvent    = "event"    // One feed entry, as it happens
	MsgTypeSnapshot = "snapshot" // Full table state, sent once on connect
)

// Message is the envelope every WebSocket frame carries.
type Message struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Hub maintains the spectator rooms, one per game, and fans the event feed
// out to them. Spectators are read-only; nothing they send reaches a game.
type Hub struct {
	rooms      map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	feed       chan events.GameEvent
	limits     *optimization.Config
	logger     *logger.Logger

	// mu lets HTTP handlers read room sizes while Run mutates the map.
	mu sync.RWMutex
}

// NewHub initializes the spectator hub with the given tuning profile.
func NewHub(limits *optimization.Config, log *logger.Logger) *Hub {
	if limits == nil {
		limits = optimization.DefaultConfig()
	}
	return &Hub{
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		feed:       make(chan events.GameEvent, limits.FeedChannelBuffer),
		limits:     limits,
		logger:     log,
	}
}

// Attach subscribes the hub to the event feed. The listener runs on the
// engine's publish path, so it must never block: when the intake buffer is
// full the event is dropped for spectators (it is still persisted) and the
// drop is counted.
func (h *Hub) Attach(feed *events.EventLog) {
	feed.SetListener(func(event events.GameEvent) {
		select {
		case h.feed <- event:
		default:
			metrics.Get().RecordWSError()
		}
	})
}

// Run starts the hub's main loop. It owns all room mutations.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			room := h.rooms[client.gameID]
			if room == nil {
				room = make(map[*Client]bool)
				h.rooms[client.gameID] = room
			}
			room[client] = true
			watching := len(room)
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("Spectator joined game %s (%d watching)", client.gameID, watching)
		case client := <-h.unregister:
			h.mu.Lock()
			if room, ok := h.rooms[client.gameID]; ok {
				if _, ok := room[client]; ok {
					delete(room, client)
					close(client.send)
					metrics.Get().RecordWSConnection(-1)
					h.logger.Info("Spectator left game %s", client.gameID)
				}
				if len(room) == 0 {
					delete(h.rooms, client.gameID)
				}
			}
			h.mu.Unlock()
		case event := <-h.feed:
			h.BroadcastToGame(event.GameID, Message{
				Type:      MsgTypeEvent,
				Timestamp: event.Timestamp,
				Payload:   event,
			})
		}
	}
}

// BroadcastToGame serializes msg once and queues it for every spectator of
// the game. Clients whose send buffer is full are dropped: a stalled
// connection must not hold frames for the rest of the room.
func (h *Hub) BroadcastToGame(gameID string, msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to serialize %s frame for game %s: %v", msg.Type, gameID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[gameID]
	for client := range room {
		select {
		case client.send <- payload:
			metrics.Get().RecordWSMessage()
		default:
			delete(room, client)
			close(client.send)
			metrics.Get().RecordWSConnection(-1)
			metrics.Get().RecordWSError()
			h.logger.Warn("Dropped a slow spectator of game %s", gameID)
		}
	}
	if len(room) == 0 {
		delete(h.rooms, gameID)
	}
}

// Spectators reports how many clients are watching a game.
func (h *Hub) Spectators(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[gameID])
}

// CanJoin reports whether a game's room has capacity for one more
// spectator. Checked before the WebSocket upgrade; approximate under
// concurrent joins, which is acceptable for a viewing limit.
func (h *Hub) CanJoin(gameID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[gameID]) < h.limits.MaxClientsPerGame
}

// Register queues a client for admission into its game's room.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister queues a client for removal. Safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for gameID, room := range h.rooms {
		for client := range room {
			close(client.send)
			metrics.Get().RecordWSConnection(-1)
		}
		delete(h.rooms, gameID)
	}
}
