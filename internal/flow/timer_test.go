package flow

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSimpleTimer_ScheduleAfter(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	done := make(chan struct{})
	id, err := timer.ScheduleAfter(10*time.Millisecond, func() { close(done) })
	if err != nil {
		t.Fatalf("ScheduleAfter error: %v", err)
	}
	if id == "" {
		t.Fatalf("expected timer ID")
	}
	if active := timer.ListActive(); len(active) != 1 || active[0].ID != id {
		t.Errorf("expected timer %s to be listed, got %+v", id, active)
	}

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("scheduled function did not run")
	}
	time.Sleep(5 * time.Millisecond)
	if n := len(timer.ListActive()); n != 0 {
		t.Errorf("expected no active timers after firing, got %d", n)
	}
}

func TestSimpleTimer_Cancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	var ran atomic.Bool
	id, err := timer.ScheduleAfter(20*time.Millisecond, func() { ran.Store(true) })
	if err != nil {
		t.Fatalf("ScheduleAfter error: %v", err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if err := timer.Cancel("timer_missing"); err != nil {
		t.Errorf("Cancel of unknown ID should be a no-op, got %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	if ran.Load() {
		t.Errorf("cancelled function ran")
	}
}

func TestSimpleTimer_Stop(t *testing.T) {
	timer := NewSimpleTimer()

	var count atomic.Int32
	for i := 0; i < 3; i++ {
		if _, err := timer.ScheduleAfter(20*time.Millisecond, func() { count.Add(1) }); err != nil {
			t.Fatalf("ScheduleAfter error: %v", err)
		}
	}
	if n := len(timer.ListActive()); n != 3 {
		t.Errorf("expected 3 active timers, got %d", n)
	}
	timer.Stop()
	time.Sleep(50 * time.Millisecond)
	if count.Load() != 0 {
		t.Errorf("%d functions ran after Stop", count.Load())
	}
	if _, err := timer.ScheduleAfter(time.Millisecond, func() {}); !errors.Is(err, ErrTimerStopped) {
		t.Errorf("expected ErrTimerStopped, got %v", err)
	}
}

func TestManualTimer_AdvanceOrder(t *testing.T) {
	timer := NewManualTimer()
	var order []string
	timer.ScheduleAfter(2*time.Second, func() { order = append(order, "b") })
	timer.ScheduleAfter(time.Second, func() {
		order = append(order, "a")
		timer.ScheduleAfter(500*time.Millisecond, func() { order = append(order, "a2") })
	})
	id, _ := timer.ScheduleAfter(time.Second, func() { order = append(order, "cancelled") })
	timer.Cancel(id)
	timer.ScheduleAfter(5*time.Second, func() { order = append(order, "late") })

	if fired := timer.Advance(2 * time.Second); fired != 3 {
		t.Errorf("expected 3 fired, got %d", fired)
	}
	want := []string{"a", "a2", "b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if timer.Pending() != 1 {
		t.Errorf("expected late timer pending, got %d", timer.Pending())
	}
}
