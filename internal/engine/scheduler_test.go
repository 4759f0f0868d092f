package engine

import (
	"testing"
	"time"
)

func TestSchedulerArmReplacesThePreviousTimer(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	fired := make(chan string, 2)

	// Setup: a slow timer immediately replaced by a fast one
	s.Arm("g1", 5*time.Second, func() { fired <- "slow" })
	s.Arm("g1", 10*time.Millisecond, func() { fired <- "fast" })

	// Assert
	select {
	case who := <-fired:
		if who != "fast" {
			t.Errorf("Expected the replacement timer to fire, got %s", who)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected the armed timer to fire")
	}

	select {
	case who := <-fired:
		t.Errorf("Expected the replaced timer silenced, got %s", who)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSchedulerCancelStopsTheTimer(t *testing.T) {
	s := NewScheduler()
	defer s.Shutdown()

	fired := make(chan struct{}, 1)
	s.Arm("g1", 20*time.Millisecond, func() { fired <- struct{}{} })
	s.Cancel("g1")

	select {
	case <-fired:
		t.Error("Expected the cancelled timer never to fire")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSchedulerShutdownSilencesEverything(t *testing.T) {
	s := NewScheduler()

	fired := make(chan struct{}, 2)
	s.Arm("g1", 20*time.Millisecond, func() { fired <- struct{}{} })
	s.Arm("g2", 20*time.Millisecond, func() { fired <- struct{}{} })
	s.Shutdown()

	// Arming after shutdown is a no-op
	s.Arm("g3", time.Millisecond, func() { fired <- struct{}{} })

	select {
	case <-fired:
		t.Error("Expected no timer to survive the shutdown")
	case <-time.After(100 * time.Millisecond):
	}
}
