package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTimerManager_OneShot(t *testing.T) {
	m := NewTimerManager(time.Millisecond)
	defer m.Stop()

	var fired atomic.Int32
	m.AddTimer(5*time.Millisecond, 0, func() { fired.Add(1) })

	waitFor(t, func() bool { return fired.Load() == 1 })
	time.Sleep(20 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Fatalf("Expected one-shot timer to fire once, fired %d times", got)
	}
	if m.Len() != 0 {
		t.Fatalf("Expected no scheduled timers, got %d", m.Len())
	}
}

func TestTimerManager_Repeating(t *testing.T) {
	m := NewTimerManager(time.Millisecond)
	defer m.Stop()

	var fired atomic.Int32
	id := m.AddTimer(0, 5*time.Millisecond, func() { fired.Add(1) })

	waitFor(t, func() bool { return fired.Load() >= 3 })
	if !m.RemoveTimer(id) {
		t.Fatal("RemoveTimer should report a scheduled timer")
	}
	time.Sleep(10 * time.Millisecond)
	after := fired.Load()
	time.Sleep(30 * time.Millisecond)
	if fired.Load() != after {
		t.Fatalf("Timer kept firing after removal: %d -> %d", after, fired.Load())
	}
}

func TestTimerManager_RemoveUnknown(t *testing.T) {
	m := NewTimerManager(time.Millisecond)
	defer m.Stop()

	if m.RemoveTimer(42) {
		t.Fatal("RemoveTimer should return false for unknown ids")
	}
	id := m.AddTimer(time.Hour, 0, func() {})
	if !m.RemoveTimer(id) {
		t.Fatal("RemoveTimer should remove a pending timer")
	}
	if m.RemoveTimer(id) {
		t.Fatal("RemoveTimer should be idempotent")
	}
}

func TestTimerManager_StopCancelsEverything(t *testing.T) {
	m := NewTimerManager(time.Millisecond)

	var fired atomic.Int32
	m.AddTimer(20*time.Millisecond, 0, func() { fired.Add(1) })
	m.AddTimer(20*time.Millisecond, time.Millisecond, func() { fired.Add(1) })
	m.Stop()
	m.Stop()

	time.Sleep(40 * time.Millisecond)
	if fired.Load() != 0 {
		t.Fatalf("Expected no callbacks after Stop, got %d", fired.Load())
	}
	if m.Len() != 0 {
		t.Fatalf("Expected empty manager after Stop, got %d", m.Len())
	}
}
