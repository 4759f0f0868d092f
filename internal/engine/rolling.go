package engine

import (
	"fmt"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
)

// stepRolling throws the dice and applies movement. Jailed players escape
// on a double (which never extends the doubles chain); free players chain
// doubles until the third one sends them to jail.
func (e *Engine) stepRolling(t *table) error {
	p := t.current()
	if p == nil {
		e.logger.Warn("Game %s points at no active player; skipping step", t.game.ID)
		return nil
	}

	d1, d2 := e.roll()
	total := d1 + d2
	isDouble := d1 == d2

	if t.turn != nil {
		t.turn.Die1 = d1
		t.turn.Die2 = d2
		if isDouble {
			t.turn.WasDoubles = true
		}
	}
	t.emit(events.EventTypeDiceRolled, p.ID, "", fmt.Sprintf("%s lanza los dados: %d y %d", p.Name, d1, d2))

	if p.InJail {
		if !isDouble {
			t.emit(events.EventTypeJailed, p.ID, "", fmt.Sprintf("%s no saca dobles y sigue en la Cárcel", p.Name))
			t.game.Phase = game.PhaseTurnEnd
			return nil
		}
		// Escaping counts as leaving, not as a doubles-chain link
		p.LeaveJail()
		p.ConsecutiveDoubles = 0
		t.touch(p)
		t.emit(events.EventTypeFreed, p.ID, "", fmt.Sprintf("%s saca dobles y sale de la Cárcel", p.Name))
		t.moveBy(p, total)
		t.game.Phase = game.PhasePostRoll
		return nil
	}

	if isDouble {
		p.ConsecutiveDoubles++
	} else {
		p.ConsecutiveDoubles = 0
	}
	t.touch(p)

	if p.ConsecutiveDoubles >= 3 {
		p.SendToJail()
		t.emit(events.EventTypeJailed, p.ID, "", fmt.Sprintf("%s saca tres dobles seguidos y va a la Cárcel", p.Name))
		t.game.Phase = game.PhaseTurnEnd
		return nil
	}

	t.moveBy(p, total)
	t.game.Phase = game.PhasePostRoll
	return nil
}
