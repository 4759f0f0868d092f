// Package events provides the append-only feed of match happenings. The
// feed is presentation-only: the engine appends after each committed step
// and spectators consume it, but core state never depends on it.
package events

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MRamiBalles/MagnateArena/server/internal/platform/metrics"
)

// EventType defines the category of a game event.
type EventType string

const (
	EventTypeGameStarted    EventType = "GAME_STARTED"
	EventTypeGameEnded      EventType = "GAME_ENDED"
	EventTypeGamePaused     EventType = "GAME_PAUSED"
	EventTypeGameResumed    EventType = "GAME_RESUMED"
	EventTypeTurnStarted    EventType = "TURN_STARTED"
	EventTypeTurnEnded      EventType = "TURN_ENDED"
	EventTypeDiceRolled     EventType = "DICE_ROLLED"
	EventTypeMoved          EventType = "MOVED"
	EventTypeSalary         EventType = "SALARY"
	EventTypePurchase       EventType = "PURCHASE"
	EventTypeAuction        EventType = "AUCTION"
	EventTypeRentPaid       EventType = "RENT_PAID"
	EventTypeTaxPaid        EventType = "TAX_PAID"
	EventTypeCardDrawn      EventType = "CARD_DRAWN"
	EventTypeJailed         EventType = "JAILED"
	EventTypeFreed          EventType = "FREED"
	EventTypeHouseBuilt     EventType = "HOUSE_BUILT"
	EventTypeMortgage       EventType = "MORTGAGE"
	EventTypeUnmortgage     EventType = "UNMORTGAGE"
	EventTypeTradeProposed  EventType = "TRADE_PROPOSED"
	EventTypeTradeSettled   EventType = "TRADE_SETTLED"
	EventTypeBankruptcy     EventType = "BANKRUPTCY"
	EventTypeDecisionAsked  EventType = "DECISION_ASKED"
	EventTypeDecisionSolved EventType = "DECISION_SOLVED"
)

// GameEvent represents an immutable record of something that happened.
type GameEvent struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id"`
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	ActorID    string    `json:"actor_id"`            // Who performed the action
	TargetID   string    `json:"target_id,omitempty"` // Who was affected
	TurnNumber int       `json:"turn_number"`
	Text       string    `json:"text"` // Human-readable line for spectators
}

// New builds an event with a fresh id and timestamp.
func New(gameID string, turn int, t EventType, actorID, targetID, text string) GameEvent {
	return GameEvent{
		ID:         uuid.NewString(),
		GameID:     gameID,
		Timestamp:  time.Now().UTC(),
		Type:       t,
		ActorID:    actorID,
		TargetID:   targetID,
		TurnNumber: turn,
		Text:       text,
	}
}

// EventPersister defines how an event is durably stored.
type EventPersister interface {
	Append(event GameEvent) error
}

// Listener receives every appended event, in order. The spectator hub
// registers one to fan events out over websockets.
type Listener func(event GameEvent)

// EventLog is the in-memory append-only feed backed by asynchronous
// write-through persistence. A single writer goroutine drains the buffer so
// a slow database never stalls an engine step.
type EventLog struct {
	mu        sync.RWMutex
	events    []GameEvent
	listener  Listener
	persister EventPersister

	writeCh chan GameEvent
	done    chan struct{}
}

// NewEventLog creates a feed with an optional persister. bufferSize bounds
// the write-behind queue; events beyond it are kept in memory but counted
// as write errors.
func NewEventLog(persister EventPersister, bufferSize int) *EventLog {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	el := &EventLog{
		events:    make([]GameEvent, 0),
		persister: persister,
		writeCh:   make(chan GameEvent, bufferSize),
		done:      make(chan struct{}),
	}
	go el.writeLoop()
	return el
}

// SetListener registers the fan-out target. Replaces any previous listener.
func (el *EventLog) SetListener(fn Listener) {
	el.mu.Lock()
	el.listener = fn
	el.mu.Unlock()
}

// Append adds a new event to the feed. Events are immutable once appended.
// Never blocks: persistence happens behind the buffer and fan-out is the
// listener's problem.
func (el *EventLog) Append(event GameEvent) {
	el.mu.Lock()
	el.events = append(el.events, event)
	listener := el.listener
	el.mu.Unlock()

	if listener != nil {
		listener(event)
	}

	if el.persister == nil {
		return
	}
	select {
	case el.writeCh <- event:
	default:
		metrics.Get().RecordEventWrite(0, errFeedFull)
	}
}

// GetByGame returns every event of one game, oldest first.
func (el *EventLog) GetByGame(gameID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.GameID == gameID {
			result = append(result, e)
		}
	}
	return result
}

// GetByActor returns all events performed by a specific player.
func (el *EventLog) GetByActor(gameID, actorID string) []GameEvent {
	el.mu.RLock()
	defer el.mu.RUnlock()

	var result []GameEvent
	for _, e := range el.events {
		if e.GameID == gameID && e.ActorID == actorID {
			result = append(result, e)
		}
	}
	return result
}

// Close drains pending writes and stops the writer goroutine.
func (el *EventLog) Close() {
	close(el.writeCh)
	<-el.done
}

func (el *EventLog) writeLoop() {
	defer close(el.done)
	for event := range el.writeCh {
		start := time.Now()
		err := el.persister.Append(event)
		metrics.Get().RecordEventWrite(time.Since(start), err)
	}
}

var errFeedFull = errors.New("event feed buffer full")
