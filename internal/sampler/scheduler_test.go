package sampler

import (
	"context"
	"testing"
	"time"

	"github.com/jpalmerr/envboard/internal/store"
)

func newTestCycle(s *countingSampler) *Cycle {
	return NewCycle(s, store.NewMemoryStore(10), testLogger())
}

// TestScheduler_StopBeforeStart verifies that calling Stop() on a scheduler
// that was never started does not panic and is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	s := NewScheduler(newTestCycle(&countingSampler{}), time.Minute, testLogger())
	s.Stop()
}

// TestScheduler_StopTwice verifies that Stop() is idempotent.
func TestScheduler_StopTwice(t *testing.T) {
	s := NewScheduler(newTestCycle(&countingSampler{}), time.Minute, testLogger())
	s.Start(context.Background())

	s.Stop()
	s.Stop()
}

// TestScheduler_StartAfterStop verifies Start is a no-op once stopped.
func TestScheduler_StartAfterStop(t *testing.T) {
	sampler := &countingSampler{}
	s := NewScheduler(newTestCycle(sampler), time.Minute, testLogger())
	s.Stop()
	s.Start(context.Background())

	time.Sleep(50 * time.Millisecond)
	if sampler.calls.Load() != 0 {
		t.Errorf("Sample called %d times after Stop, want 0", sampler.calls.Load())
	}
}

// TestScheduler_RunsImmediately verifies the first cycle does not wait for a tick.
func TestScheduler_RunsImmediately(t *testing.T) {
	sampler := &countingSampler{}
	s := NewScheduler(newTestCycle(sampler), time.Hour, testLogger())
	s.Start(context.Background())
	defer s.Stop()

	deadline := time.Now().Add(time.Second)
	for sampler.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sampler.calls.Load() != 1 {
		t.Errorf("Sample calls = %d, want 1", sampler.calls.Load())
	}
}

func TestScheduler_Ticks(t *testing.T) {
	sampler := &countingSampler{}
	s := NewScheduler(newTestCycle(sampler), 100*time.Millisecond, testLogger())
	s.Start(context.Background())

	time.Sleep(450 * time.Millisecond)
	s.Stop()

	if got := sampler.calls.Load(); got < 3 {
		t.Errorf("Sample calls = %d, want at least 3", got)
	}

	stopped := sampler.calls.Load()
	time.Sleep(250 * time.Millisecond)
	if sampler.calls.Load() != stopped {
		t.Error("scheduler kept sampling after Stop")
	}
}

func TestScheduler_ContextCancel(t *testing.T) {
	sampler := &countingSampler{}
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(newTestCycle(sampler), 100*time.Millisecond, testLogger())
	s.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after context cancellation")
	}
}

func TestNewScheduler_FloorsInterval(t *testing.T) {
	s := NewScheduler(newTestCycle(&countingSampler{}), time.Millisecond, testLogger())
	if s.Interval() != minInterval {
		t.Errorf("Interval() = %v, want %v", s.Interval(), minInterval)
	}
}
