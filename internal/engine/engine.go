package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/domain/game"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/storage"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/logger"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/metrics"
)

const (
	maxPlayers      = 8
	maxAssetActions = 4 // Asset actions per gate before the engine forces done
)

// Precondition failures. Callers get these unwrapped via errors.Is; none of
// them leaves any mutation behind.
var (
	ErrGameNotRunning    = errors.New("game is not in progress")
	ErrGameNotJoinable   = errors.New("game is not accepting players")
	ErrNotEnoughPlayers  = errors.New("a match needs at least two players")
	ErrTableFull         = errors.New("the table is full")
	ErrNoPendingDecision = errors.New("no decision is pending")
	ErrDecisionMismatch  = errors.New("resolution does not match the pending decision")
	ErrIllegalAction     = errors.New("action is not legal for this decision")
	ErrPrecondition      = errors.New("action precondition not met")
)

// PendingNotifier is told whenever a step leaves a decision pending, so the
// agent runtime can pick it up. Implementations must not block.
type PendingNotifier func(gameID string, pending decision.Pending)

// Engine is the turn state machine orchestrator. It owns the per-game step
// serialization, the scheduler and the decision gate.
type Engine struct {
	store  *storage.Store
	feed   *events.EventLog
	logger *logger.Logger
	sched  *Scheduler

	// roll is swapped out by tests for scripted dice.
	roll func() (int, int)

	onPending PendingNotifier

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewEngine wires the state machine to its store and spectator feed.
func NewEngine(store *storage.Store, feed *events.EventLog, log *logger.Logger) *Engine {
	return &Engine{
		store:  store,
		feed:   feed,
		logger: log,
		sched:  NewScheduler(),
		roll:   rollDice,
		locks:  make(map[string]*sync.Mutex),
	}
}

// SetPendingNotifier registers the agent runtime callback.
func (e *Engine) SetPendingNotifier(fn PendingNotifier) {
	e.onPending = fn
}

// Shutdown stops every armed timer. In-flight steps finish on their own.
func (e *Engine) Shutdown() {
	e.sched.Shutdown()
}

func rollDice() (int, int) {
	return rand.Intn(6) + 1, rand.Intn(6) + 1
}

// money renders an amount for the spectator feed.
func money(amount int) string {
	return humanize.Comma(int64(amount))
}

// lockFor returns the mutex serializing steps of one game.
func (e *Engine) lockFor(gameID string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	mu, ok := e.locks[gameID]
	if !ok {
		mu = &sync.Mutex{}
		e.locks[gameID] = mu
	}
	return mu
}

// Advance executes exactly one logical step of one game inside a single
// store transaction. Suspended, paused and terminal games no-op. A panic
// inside the step rolls the transaction back and surfaces as an error, never
// as a wedged game.
func (e *Engine) Advance(ctx context.Context, gameID string) error {
	mu := e.lockFor(gameID)
	mu.Lock()
	defer mu.Unlock()

	started := time.Now()
	var outcome *table

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("step panicked: %v", r)
			}
		}()
		return e.store.Step(ctx, func(q *storage.Queries) error {
			t, err := loadTable(ctx, q, gameID)
			if err != nil {
				return err
			}
			if t.game.Status != game.StatusInProgress {
				return fmt.Errorf("%w: %s", ErrGameNotRunning, t.game.Status)
			}
			if t.game.IsPaused || t.game.Suspended() {
				outcome = t
				return nil
			}
			if err := e.step(ctx, q, t); err != nil {
				return err
			}
			if err := t.flush(ctx, q); err != nil {
				return err
			}
			outcome = t
			return nil
		})
	}()

	metrics.Get().RecordStep(time.Since(started), err)
	if err != nil {
		e.logger.Error("Step failed for game %s: %v", gameID, err)
		return err
	}

	e.publish(outcome)
	e.persistRecords(outcome)
	e.afterStep(outcome)
	return nil
}

// step dispatches on the current phase. One phase handler per invocation.
func (e *Engine) step(ctx context.Context, q *storage.Queries, t *table) error {
	switch t.game.Phase {
	case game.PhasePreRoll:
		return e.stepPreRoll(t)
	case game.PhaseRolling:
		return e.stepRolling(t)
	case game.PhasePostRoll:
		return e.stepPostRoll(ctx, q, t)
	case game.PhaseTurnEnd:
		return e.stepTurnEnd(ctx, q, t)
	case game.PhaseGameOver:
		return nil
	}
	return fmt.Errorf("unknown phase %q", t.game.Phase)
}

// tick is the scheduler continuation. Errors are logged, not retried: a
// broken game stays queryable and the operator abandon path remains open.
func (e *Engine) tick(gameID string) {
	if err := e.Advance(context.Background(), gameID); err != nil {
		e.logger.Error("Scheduled step for game %s did not run: %v", gameID, err)
	}
}

// publish hands the step's events to the spectator feed, after the commit
// so a rolled-back step never becomes visible.
func (e *Engine) publish(t *table) {
	if t == nil {
		return
	}
	for _, ev := range t.feed {
		e.feed.Append(ev)
	}
	t.feed = nil
}

// persistRecords inserts the step's decision-log entries outside the step
// transaction. The log is an audit trail: a failed insert is logged and
// forgotten, it never blocks the transition it documents.
func (e *Engine) persistRecords(t *table) {
	if t == nil || len(t.pendingRecords) == 0 {
		return
	}
	q := e.store.Queries()
	for _, rec := range t.pendingRecords {
		if err := q.InsertDecision(context.Background(), rec); err != nil {
			e.logger.Warn("Decision record for game %s dropped: %v", rec.GameID, err)
		}
	}
	t.pendingRecords = nil
}

// afterStep re-arms the machinery according to the committed state: next
// step, decision timeout, or nothing at all for paused and finished games.
func (e *Engine) afterStep(t *table) {
	if t == nil {
		return
	}
	g := t.game
	switch {
	case g.Terminal():
		e.sched.Cancel(g.ID)
		if t.justEnded {
			metrics.Get().RecordGameEnded(g.Status == game.StatusAbandoned)
		}
	case g.IsPaused:
		e.sched.Cancel(g.ID)
	case g.Suspended():
		e.armTimeout(g)
		e.notifyPending(g)
	default:
		e.armStep(g)
	}
}

func (e *Engine) armStep(g *game.Game) {
	delay := time.Duration(g.Config.StepDelayMs) * time.Millisecond
	e.sched.Arm(g.ID, delay, func() { e.tick(g.ID) })
}

// armTimeout schedules the default resolution of the pending decision. A
// zero timeout disables expiry and the game waits indefinitely.
func (e *Engine) armTimeout(g *game.Game) {
	if g.Config.DecisionTimeoutMs <= 0 || g.Pending == nil {
		e.sched.Cancel(g.ID)
		return
	}
	gameID := g.ID
	requestedAt := g.Pending.RequestedAt
	wait := time.Duration(g.Config.DecisionTimeoutMs) * time.Millisecond
	e.sched.Arm(gameID, wait, func() { e.expireDecision(gameID, requestedAt) })
}

func (e *Engine) notifyPending(g *game.Game) {
	if e.onPending == nil || g.Pending == nil {
		return
	}
	e.onPending(g.ID, *g.Pending)
}

// expireDecision resolves a timed-out decision with its default action. The
// requestedAt guard makes a stale timer harmless: if the decision it was
// armed for is gone, the resolution is rejected inside the transaction.
func (e *Engine) expireDecision(gameID string, requestedAt time.Time) {
	// Action left empty: the default for the pending type is picked inside
	// the transaction, where the pending decision is known.
	res := Resolution{Source: decision.SourceTimeout}
	err := e.resolve(context.Background(), gameID, res, &requestedAt)
	if err != nil {
		if errors.Is(err, ErrNoPendingDecision) || errors.Is(err, ErrDecisionMismatch) {
			return // Resolved by someone else first
		}
		e.logger.Error("Timeout resolution for game %s failed: %v", gameID, err)
		return
	}
	metrics.Get().RecordDecisionTimeout()
	e.logger.Warn("Decision in game %s timed out; default action applied", gameID)
}
