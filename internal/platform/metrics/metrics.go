// Package metrics provides observability for the arena server.
// Counters are cheap enough to record on every engine step.
package metrics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Collector gathers performance metrics.
type Collector struct {
	// Engine step metrics
	StepCount      int64
	StepLatencySum int64 // nanoseconds
	StepLatencyMax int64
	StepErrors     int64
	LastStepTime   time.Time

	// Decision gate metrics
	DecisionsRequested int64
	DecisionsResolved  int64
	DecisionsRejected  int64
	DecisionTimeouts   int64

	// Game lifecycle metrics
	GamesStarted   int64
	GamesCompleted int64
	GamesAbandoned int64

	// Event feed metrics
	EventsWritten    int64
	EventWriteLatSum int64
	EventWriteLatMax int64
	EventWriteErrors int64

	// WebSocket metrics
	WSConnectionsActive int64
	WSMessagesOut       int64
	WSErrors            int64

	// Agent metrics
	AgentRequests   int64
	AgentFallbacks  int64
	AgentTokensUsed int64
	AgentCostUSD    float64
	AgentLatencySum int64

	// System
	StartTime time.Time
	mu        sync.RWMutex
}

// Global collector instance
var collector = &Collector{
	StartTime: time.Now(),
}

// Get returns the global collector.
func Get() *Collector {
	return collector
}

// RecordStep records one engine step completion.
func (c *Collector) RecordStep(latency time.Duration, err error) {
	atomic.AddInt64(&c.StepCount, 1)
	atomic.AddInt64(&c.StepLatencySum, int64(latency))

	// Update max (non-atomic but acceptable for metrics)
	if int64(latency) > atomic.LoadInt64(&c.StepLatencyMax) {
		atomic.StoreInt64(&c.StepLatencyMax, int64(latency))
	}

	if err != nil {
		atomic.AddInt64(&c.StepErrors, 1)
	}

	c.mu.Lock()
	c.LastStepTime = time.Now()
	c.mu.Unlock()
}

// RecordDecisionRequested records a phase suspending on the gate.
func (c *Collector) RecordDecisionRequested() {
	atomic.AddInt64(&c.DecisionsRequested, 1)
}

// RecordDecisionResolved records a gate resolution or rejection.
func (c *Collector) RecordDecisionResolved(accepted bool) {
	if accepted {
		atomic.AddInt64(&c.DecisionsResolved, 1)
	} else {
		atomic.AddInt64(&c.DecisionsRejected, 1)
	}
}

// RecordDecisionTimeout records a pending decision expiring.
func (c *Collector) RecordDecisionTimeout() {
	atomic.AddInt64(&c.DecisionTimeouts, 1)
}

// RecordGameStarted records a match leaving setup.
func (c *Collector) RecordGameStarted() {
	atomic.AddInt64(&c.GamesStarted, 1)
}

// RecordGameEnded records a match reaching a terminal status.
func (c *Collector) RecordGameEnded(abandoned bool) {
	if abandoned {
		atomic.AddInt64(&c.GamesAbandoned, 1)
	} else {
		atomic.AddInt64(&c.GamesCompleted, 1)
	}
}

// RecordEventWrite records an event write to the database.
func (c *Collector) RecordEventWrite(latency time.Duration, err error) {
	atomic.AddInt64(&c.EventsWritten, 1)
	atomic.AddInt64(&c.EventWriteLatSum, int64(latency))

	if int64(latency) > atomic.LoadInt64(&c.EventWriteLatMax) {
		atomic.StoreInt64(&c.EventWriteLatMax, int64(latency))
	}

	if err != nil {
		atomic.AddInt64(&c.EventWriteErrors, 1)
	}
}

// RecordWSConnection records WebSocket connection changes.
func (c *Collector) RecordWSConnection(delta int64) {
	atomic.AddInt64(&c.WSConnectionsActive, delta)
}

// RecordWSMessage records an outbound WebSocket message.
func (c *Collector) RecordWSMessage() {
	atomic.AddInt64(&c.WSMessagesOut, 1)
}

// RecordWSError records a WebSocket error.
func (c *Collector) RecordWSError() {
	atomic.AddInt64(&c.WSErrors, 1)
}

// RecordAgentCall records one decision provider call.
func (c *Collector) RecordAgentCall(tokens int, cost float64, latency time.Duration) {
	atomic.AddInt64(&c.AgentRequests, 1)
	atomic.AddInt64(&c.AgentTokensUsed, int64(tokens))
	atomic.AddInt64(&c.AgentLatencySum, int64(latency))

	c.mu.Lock()
	c.AgentCostUSD += cost
	c.mu.Unlock()
}

// RecordAgentFallback records a provider failure answered by the scripted policy.
func (c *Collector) RecordAgentFallback() {
	atomic.AddInt64(&c.AgentFallbacks, 1)
}

// Snapshot returns current metrics as a map.
func (c *Collector) Snapshot() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stepCount := atomic.LoadInt64(&c.StepCount)
	eventsWritten := atomic.LoadInt64(&c.EventsWritten)
	agentRequests := atomic.LoadInt64(&c.AgentRequests)

	// Calculate averages
	var stepAvg, eventAvg, agentAvg float64
	if stepCount > 0 {
		stepAvg = float64(atomic.LoadInt64(&c.StepLatencySum)) / float64(stepCount) / 1e6 // ms
	}
	if eventsWritten > 0 {
		eventAvg = float64(atomic.LoadInt64(&c.EventWriteLatSum)) / float64(eventsWritten) / 1e6
	}
	if agentRequests > 0 {
		agentAvg = float64(atomic.LoadInt64(&c.AgentLatencySum)) / float64(agentRequests) / 1e9 // seconds
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(c.StartTime).Seconds(),

		"steps": map[string]interface{}{
			"count":          stepCount,
			"errors":         atomic.LoadInt64(&c.StepErrors),
			"avg_latency_ms": stepAvg,
			"max_latency_ms": float64(atomic.LoadInt64(&c.StepLatencyMax)) / 1e6,
			"last_step":      c.LastStepTime.Format(time.RFC3339),
		},

		"decisions": map[string]interface{}{
			"requested": atomic.LoadInt64(&c.DecisionsRequested),
			"resolved":  atomic.LoadInt64(&c.DecisionsResolved),
			"rejected":  atomic.LoadInt64(&c.DecisionsRejected),
			"timeouts":  atomic.LoadInt64(&c.DecisionTimeouts),
		},

		"games": map[string]interface{}{
			"started":   atomic.LoadInt64(&c.GamesStarted),
			"completed": atomic.LoadInt64(&c.GamesCompleted),
			"abandoned": atomic.LoadInt64(&c.GamesAbandoned),
		},

		"events": map[string]interface{}{
			"written":          eventsWritten,
			"avg_write_lat_ms": eventAvg,
			"max_write_lat_ms": float64(atomic.LoadInt64(&c.EventWriteLatMax)) / 1e6,
			"errors":           atomic.LoadInt64(&c.EventWriteErrors),
		},

		"websocket": map[string]interface{}{
			"active_connections": atomic.LoadInt64(&c.WSConnectionsActive),
			"messages_out":       atomic.LoadInt64(&c.WSMessagesOut),
			"errors":             atomic.LoadInt64(&c.WSErrors),
		},

		"agents": map[string]interface{}{
			"requests":        agentRequests,
			"fallbacks":       atomic.LoadInt64(&c.AgentFallbacks),
			"tokens_used":     atomic.LoadInt64(&c.AgentTokensUsed),
			"cost_usd":        c.AgentCostUSD,
			"avg_latency_sec": agentAvg,
		},
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")

		snapshot := collector.Snapshot()
		json.NewEncoder(w).Encode(snapshot)
	}
}

// PrometheusHandler returns metrics in Prometheus format.
func PrometheusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")

		c := collector

		fmt.Fprintf(w, "# HELP arena_step_count Total engine steps\n")
		fmt.Fprintf(w, "# TYPE arena_step_count counter\n")
		fmt.Fprintf(w, "arena_step_count %d\n\n", atomic.LoadInt64(&c.StepCount))

		fmt.Fprintf(w, "# HELP arena_step_latency_max_ms Maximum step latency\n")
		fmt.Fprintf(w, "# TYPE arena_step_latency_max_ms gauge\n")
		fmt.Fprintf(w, "arena_step_latency_max_ms %.2f\n\n", float64(atomic.LoadInt64(&c.StepLatencyMax))/1e6)

		fmt.Fprintf(w, "# HELP arena_decisions_total Decision gate activity\n")
		fmt.Fprintf(w, "# TYPE arena_decisions_total counter\n")
		fmt.Fprintf(w, "arena_decisions_total{state=\"requested\"} %d\n", atomic.LoadInt64(&c.DecisionsRequested))
		fmt.Fprintf(w, "arena_decisions_total{state=\"resolved\"} %d\n", atomic.LoadInt64(&c.DecisionsResolved))
		fmt.Fprintf(w, "arena_decisions_total{state=\"rejected\"} %d\n", atomic.LoadInt64(&c.DecisionsRejected))
		fmt.Fprintf(w, "arena_decisions_total{state=\"timeout\"} %d\n\n", atomic.LoadInt64(&c.DecisionTimeouts))

		fmt.Fprintf(w, "# HELP arena_games_total Games by terminal state\n")
		fmt.Fprintf(w, "# TYPE arena_games_total counter\n")
		fmt.Fprintf(w, "arena_games_total{state=\"started\"} %d\n", atomic.LoadInt64(&c.GamesStarted))
		fmt.Fprintf(w, "arena_games_total{state=\"completed\"} %d\n", atomic.LoadInt64(&c.GamesCompleted))
		fmt.Fprintf(w, "arena_games_total{state=\"abandoned\"} %d\n\n", atomic.LoadInt64(&c.GamesAbandoned))

		fmt.Fprintf(w, "# HELP arena_events_written Total events written\n")
		fmt.Fprintf(w, "# TYPE arena_events_written counter\n")
		fmt.Fprintf(w, "arena_events_written %d\n\n", atomic.LoadInt64(&c.EventsWritten))

		fmt.Fprintf(w, "# HELP arena_ws_connections Active WebSocket connections\n")
		fmt.Fprintf(w, "# TYPE arena_ws_connections gauge\n")
		fmt.Fprintf(w, "arena_ws_connections %d\n\n", atomic.LoadInt64(&c.WSConnectionsActive))

		fmt.Fprintf(w, "# HELP arena_agent_requests Total decision provider requests\n")
		fmt.Fprintf(w, "# TYPE arena_agent_requests counter\n")
		fmt.Fprintf(w, "arena_agent_requests %d\n\n", atomic.LoadInt64(&c.AgentRequests))

		fmt.Fprintf(w, "# HELP arena_agent_tokens_used Total tokens consumed\n")
		fmt.Fprintf(w, "# TYPE arena_agent_tokens_used counter\n")
		fmt.Fprintf(w, "arena_agent_tokens_used %d\n\n", atomic.LoadInt64(&c.AgentTokensUsed))

		c.mu.RLock()
		fmt.Fprintf(w, "# HELP arena_agent_cost_usd Total decision provider cost in USD\n")
		fmt.Fprintf(w, "# TYPE arena_agent_cost_usd counter\n")
		fmt.Fprintf(w, "arena_agent_cost_usd %.4f\n", c.AgentCostUSD)
		c.mu.RUnlock()
	}
}
