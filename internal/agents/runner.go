package agents

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MRamiBalles/MagnateArena/server/internal/domain/decision"
	"github.com/MRamiBalles/MagnateArena/server/internal/engine"
	"github.com/MRamiBalles/MagnateArena/server/internal/events"
	"github.com/MRamiBalles/MagnateArena/server/internal/infra/agent"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/logger"
	"github.com/MRamiBalles/MagnateArena/server/internal/platform/metrics"
)

const (
	agentQueueDepth     = 64
	maxProviderAttempts = 2
)

// task is one pending decision waiting for an agent answer.
type task struct {
	gameID  string
	pending decision.Pending
}

// Runner is the agent runtime: a queue fed by the engine's pending
// notifier and a small pool of workers that brief the provider and resolve
// the gate. The scripted policy backs every failure path.
type Runner struct {
	eng      *engine.Engine
	feed     *events.EventLog
	provider agent.Provider
	fallback *agent.Scripted
	logger   *logger.Logger

	queue chan task
	wg    sync.WaitGroup
}

// NewRunner wires the runtime. provider may be nil; every decision then
// falls to the scripted policy.
func NewRunner(eng *engine.Engine, feed *events.EventLog, provider agent.Provider, log *logger.Logger) *Runner {
	return &Runner{
		eng:      eng,
		feed:     feed,
		provider: provider,
		fallback: agent.NewScripted(),
		logger:   log,
		queue:    make(chan task, agentQueueDepth),
	}
}

// Start registers the runtime with the engine and spins the workers. They
// run until ctx is cancelled.
func (r *Runner) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 2
	}
	r.eng.SetPendingNotifier(r.enqueue)
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go r.loop(ctx)
	}

	name := "scripted"
	if r.provider != nil {
		name = r.provider.Name()
	}
	r.logger.Info("Agent runtime started: %d workers, provider %s", workers, name)
}

// Wait blocks until every worker has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// enqueue is the engine callback. It must not block: a full queue hands the
// decision to the timeout policy instead of stalling the step path.
func (r *Runner) enqueue(gameID string, pending decision.Pending) {
	select {
	case r.queue <- task{gameID: gameID, pending: pending}:
	default:
		r.logger.Warn("Agent queue full; decision for game %s left to the timeout", gameID)
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-r.queue:
			r.handle(ctx, t)
		}
	}
}

// handle answers one pending decision end to end.
func (r *Runner) handle(ctx context.Context, t task) {
	snap, err := r.eng.Snapshot(ctx, t.gameID)
	if err != nil {
		r.logger.Error("Agent briefing for game %s failed: %v", t.gameID, err)
		return
	}
	// The gate may already be gone: resolved by an operator, expired by the
	// timeout, or replaced by a newer one.
	if snap.Game.Pending == nil || !snap.Game.Pending.RequestedAt.Equal(t.pending.RequestedAt) {
		return
	}

	req := buildRequest(snap, t.pending, recentLines(r.feed, t.gameID))
	reply, source := r.decide(ctx, req)

	err = r.resolve(ctx, t.gameID, t.pending.Type, reply, source)
	switch {
	case err == nil || alreadySettled(err):
		return
	case errors.Is(err, engine.ErrIllegalAction) || errors.Is(err, engine.ErrPrecondition):
		// The provider picked a move the gate refuses. Re-answer with the
		// scripted policy; if even that is refused the passive default
		// closes the gate, so no game ever hangs on a bad answer.
		if source != r.fallback.Name() {
			metrics.Get().RecordAgentFallback()
			fb, _ := r.fallback.Decide(ctx, req)
			if err := r.resolve(ctx, t.gameID, t.pending.Type, fb, r.fallback.Name()); err == nil || alreadySettled(err) {
				return
			}
		}
		def := &agent.Reply{
			Action:    decision.Default(t.pending.Type),
			Rationale: "Resolución pasiva tras respuestas inválidas.",
		}
		if err := r.resolve(ctx, t.gameID, t.pending.Type, def, r.fallback.Name()); err != nil && !alreadySettled(err) {
			r.logger.Error("Agent default resolution for game %s failed: %v", t.gameID, err)
		}
	default:
		r.logger.Error("Agent resolution for game %s failed: %v", t.gameID, err)
	}
}

// decide runs the provider with retries, then the scripted fallback. It
// always comes back with an answer.
func (r *Runner) decide(ctx context.Context, req agent.Request) (*agent.Reply, string) {
	if r.provider != nil && r.provider.Available() {
		for attempt := 0; attempt < maxProviderAttempts; attempt++ {
			if attempt > 0 {
				time.Sleep(time.Duration(attempt) * time.Second)
			}
			reply, err := r.provider.Decide(ctx, req)
			if err == nil {
				metrics.Get().RecordAgentCall(reply.TokensUsed, reply.CostUSD, time.Duration(reply.LatencyMs)*time.Millisecond)
				return reply, r.provider.Name()
			}
			r.logger.Warn("Provider %s failed for game %s (attempt %d): %v",
				r.provider.Name(), req.GameID, attempt+1, err)
			if errors.Is(err, agent.ErrOverBudget) {
				break
			}
		}
		metrics.Get().RecordAgentFallback()
	}
	reply, _ := r.fallback.Decide(ctx, req)
	return reply, r.fallback.Name()
}

func (r *Runner) resolve(ctx context.Context, gameID string, t decision.Type, reply *agent.Reply, source string) error {
	return r.eng.ResolveDecision(ctx, gameID, engine.Resolution{
		Type:       t,
		Action:     reply.Action,
		Position:   reply.Position,
		Trade:      reply.Trade,
		Rationale:  reply.Rationale,
		Source:     source,
		Model:      reply.Model,
		TokensUsed: reply.TokensUsed,
		LatencyMs:  reply.LatencyMs,
		CostUSD:    reply.CostUSD,
	})
}

// alreadySettled reports whether another resolver beat this one to the gate.
func alreadySettled(err error) bool {
	return errors.Is(err, engine.ErrNoPendingDecision) || errors.Is(err, engine.ErrDecisionMismatch)
}
