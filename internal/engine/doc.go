// Package engine contains the turn state machine and everything that runs it.
// This is the heartbeat of "Magnate Arena".
//
// ARCHITECTURAL RULE: one logical step per Advance call, one transaction per
// step. The engine never blocks waiting for a decision; it persists a pending
// descriptor, stops rescheduling and lets ResolveDecision re-arm it.
package engine
