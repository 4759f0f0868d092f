package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/board"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
)

// table is the working state of one step: every row of the game loaded at
// the start of the transaction, plus the events emitted while handling it.
// Handlers mutate the in-memory rows and mark them dirty; flush writes the
// dirty set back before the transaction commits.
type table struct {
	game    *game.Game
	players []*game.Player
	props   []*game.Property
	turn    *game.Turn // Open journal row, nil before the first turn

	dirtyPlayers map[string]bool
	dirtyProps   map[string]bool

	feed           []events.GameEvent // Published only after the commit
	pendingRecords []*decision.Record // Decision-log entries, inserted best-effort after the commit
	justEnded      bool               // The game reached a terminal status this step
}

// loadTable reads the full game state inside the step transaction.
func loadTable(ctx context.Context, q *storage.Queries, gameID string) (*table, error) {
	g, err := q.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	players, err := q.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load players: %w", err)
	}
	props, err := q.ListProperties(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to load properties: %w", err)
	}

	t := &table{
		game:         g,
		players:      players,
		props:        props,
		dirtyPlayers: make(map[string]bool),
		dirtyProps:   make(map[string]bool),
	}

	if g.TurnNumber > 0 {
		turn, err := q.GetTurn(ctx, gameID, g.TurnNumber)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("failed to load turn %d: %w", g.TurnNumber, err)
		}
		t.turn = turn
	}

	return t, nil
}

// active returns the non-bankrupt players in seat order. The game's
// CurrentPlayerIndex always indexes this slice.
func (t *table) active() []*game.Player {
	return game.ActiveByTurnOrder(t.players)
}

// current returns the player whose turn it is, or nil when the index no
// longer points at anyone (missing rows no-op the step).
func (t *table) current() *game.Player {
	actives := t.active()
	if t.game.CurrentPlayerIndex < 0 || t.game.CurrentPlayerIndex >= len(actives) {
		return nil
	}
	return actives[t.game.CurrentPlayerIndex]
}

func (t *table) playerByID(id string) *game.Player {
	for _, p := range t.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (t *table) propertyAt(position int) *game.Property {
	for _, pr := range t.props {
		if pr.Position == position {
			return pr
		}
	}
	return nil
}

func (t *table) propertyByID(id string) *game.Property {
	for _, pr := range t.props {
		if pr.ID == id {
			return pr
		}
	}
	return nil
}

// rivals returns every active player except the given one.
func (t *table) rivals(p *game.Player) []*game.Player {
	var out []*game.Player
	for _, other := range t.active() {
		if other.ID != p.ID {
			out = append(out, other)
		}
	}
	return out
}

func (t *table) touch(p *game.Player) {
	t.dirtyPlayers[p.ID] = true
}

func (t *table) touchProp(pr *game.Property) {
	t.dirtyProps[pr.ID] = true
}

// emit records an event for the spectator feed and mirrors its text into
// the open turn journal.
func (t *table) emit(evType events.EventType, actorID, targetID, text string) {
	t.feed = append(t.feed, events.New(t.game.ID, t.game.TurnNumber, evType, actorID, targetID, text))
	if t.turn != nil {
		t.turn.Log(text)
	}
}

// reparent moves every property of one owner in memory after the batch SQL
// already ran, clearing the dirty marks so flush does not rewrite the rows.
// toOwnerID empty means back to the bank, which also demolishes and lifts
// mortgages, mirroring SurrenderProperties.
func (t *table) reparent(fromOwnerID, toOwnerID string) {
	for _, pr := range t.props {
		if pr.OwnerID != fromOwnerID {
			continue
		}
		pr.OwnerID = toOwnerID
		if toOwnerID == "" {
			pr.Houses = 0
			pr.IsMortgaged = false
		}
		delete(t.dirtyProps, pr.ID)
	}
}

// moveBy advances a token clockwise and pays the salary when it passes or
// lands on the starting space. Exactly one salary per movement event.
func (t *table) moveBy(p *game.Player, steps int) {
	from := p.Position
	p.Position = (from + steps) % board.Size
	if from+steps >= board.Size {
		p.Cash += board.GoSalary
		if t.turn != nil {
			t.turn.PassedGo = true
		}
		t.emit(events.EventTypeSalary, p.ID, "", fmt.Sprintf("%s pasa por la Salida y cobra %s€", p.Name, money(board.GoSalary)))
	}
	t.touch(p)
	t.emit(events.EventTypeMoved, p.ID, "", fmt.Sprintf("%s avanza hasta %s", p.Name, board.At(p.Position).Name))
}

// teleport places a token directly on a space, paying the salary only when
// the jump passes the starting space going forward.
func (t *table) teleport(p *game.Player, destination int) {
	from := p.Position
	p.Position = destination
	if destination < from {
		p.Cash += board.GoSalary
		if t.turn != nil {
			t.turn.PassedGo = true
		}
		t.emit(events.EventTypeSalary, p.ID, "", fmt.Sprintf("%s pasa por la Salida y cobra %s€", p.Name, money(board.GoSalary)))
	}
	t.touch(p)
	t.emit(events.EventTypeMoved, p.ID, "", fmt.Sprintf("%s avanza hasta %s", p.Name, board.At(p.Position).Name))
}

// flush writes the game row, the open turn and every dirty player and
// property back inside the step transaction.
func (t *table) flush(ctx context.Context, q *storage.Queries) error {
	t.game.UpdatedAt = time.Now().UTC()
	if err := q.UpdateGame(ctx, t.game); err != nil {
		return fmt.Errorf("failed to flush game: %w", err)
	}

	if t.turn != nil {
		if err := q.UpdateTurn(ctx, t.turn); err != nil {
			return fmt.Errorf("failed to flush turn: %w", err)
		}
	}

	for _, p := range t.players {
		if !t.dirtyPlayers[p.ID] {
			continue
		}
		if err := q.UpdatePlayer(ctx, p); err != nil {
			return fmt.Errorf("failed to flush player %s: %w", p.ID, err)
		}
	}

	for _, pr := range t.props {
		if !t.dirtyProps[pr.ID] {
			continue
		}
		if err := q.UpdateProperty(ctx, pr); err != nil {
			return fmt.Errorf("failed to flush property %s: %w", pr.ID, err)
		}
	}

	return nil
}
