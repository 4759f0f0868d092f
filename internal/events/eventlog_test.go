package events

import (
	"sync"
	"testing"
)

type memoryPersister struct {
	mu     sync.Mutex
	stored []GameEvent
}

func (m *memoryPersister) Append(event GameEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, event)
	return nil
}

func (m *memoryPersister) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stored)
}

func TestAppendKeepsPerGameOrder(t *testing.T) {
	el := NewEventLog(nil, 8)

	el.Append(New("g1", 1, EventTypeDiceRolled, "ana", "", "Ana saca 3 y 4"))
	el.Append(New("g2", 1, EventTypeDiceRolled, "bruno", "", "Bruno saca 2 y 2"))
	el.Append(New("g1", 1, EventTypeMoved, "ana", "", "Ana avanza hasta Suerte"))

	g1 := el.GetByGame("g1")
	if len(g1) != 2 {
		t.Fatalf("Expected 2 events for g1, got %d", len(g1))
	}
	if g1[0].Type != EventTypeDiceRolled || g1[1].Type != EventTypeMoved {
		t.Errorf("Expected dice roll before movement, got %s then %s", g1[0].Type, g1[1].Type)
	}
}

func TestWriteThroughPersistsEverything(t *testing.T) {
	persister := &memoryPersister{}
	el := NewEventLog(persister, 8)

	for i := 0; i < 5; i++ {
		el.Append(New("g1", i, EventTypeTurnStarted, "ana", "", "Empieza el turno"))
	}
	el.Close() // Drains the write-behind queue

	if got := persister.count(); got != 5 {
		t.Errorf("Expected 5 persisted events, got %d", got)
	}
}

func TestListenerSeesEveryAppend(t *testing.T) {
	el := NewEventLog(nil, 8)

	var mu sync.Mutex
	var seen []EventType
	el.SetListener(func(e GameEvent) {
		mu.Lock()
		seen = append(seen, e.Type)
		mu.Unlock()
	})

	el.Append(New("g1", 1, EventTypePurchase, "ana", "", "Ana compra Gran Vía"))
	el.Append(New("g1", 1, EventTypeRentPaid, "bruno", "ana", "Bruno paga 28 a Ana"))

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != EventTypePurchase || seen[1] != EventTypeRentPaid {
		t.Errorf("Expected listener to see purchase then rent, got %v", seen)
	}
}
