// Tillvault - Retail Inventory & Sales Management
// Copyright 2026 The Tillvault Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tillvault/tillvault

package backup

import (
	"context"
	"testing"
	"time"
)

// TestNewSchedulerValidation tests the interval floor
func TestNewSchedulerValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t, false, []byte("x"))

	if _, err := NewScheduler(engine, 30*time.Second); err == nil {
		t.Error("expected error for sub-minute interval")
	}
	if _, err := NewScheduler(engine, time.Minute); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestSchedulerImmediateBackup tests that the first backup fires on start
func TestSchedulerImmediateBackup(t *testing.T) {
	engine, _, _ := newTestEngine(t, false, []byte("scheduled data"))

	sched, err := NewScheduler(engine, time.Hour)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer sched.Stop()

	// The first backup runs on the scheduler goroutine; poll for it.
	deadline := time.Now().Add(5 * time.Second)
	for {
		summaries, err := engine.Retention().ListArchives()
		if err != nil {
			t.Fatalf("ListArchives failed: %v", err)
		}
		if len(summaries) == 1 {
			if summaries[0].Trigger != TriggerScheduled {
				t.Errorf("expected scheduled trigger, got %s", summaries[0].Trigger)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("no backup appeared after scheduler start")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestSchedulerLifecycle tests start/stop state handling
func TestSchedulerLifecycle(t *testing.T) {
	engine, _, _ := newTestEngine(t, false, []byte("x"))

	sched, err := NewScheduler(engine, time.Hour)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	if sched.Running() {
		t.Error("scheduler should not be running before start")
	}

	if err := sched.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !sched.Running() {
		t.Error("scheduler should be running after start")
	}
	if err := sched.Start(context.Background()); err == nil {
		t.Error("second start should fail")
	}

	if err := sched.SetInterval(2 * time.Hour); err == nil {
		t.Error("changing the interval while running should fail")
	}

	sched.Stop()
	if sched.Running() {
		t.Error("scheduler should not be running after stop")
	}
	sched.Stop() // must be safe to call again

	if err := sched.SetInterval(2 * time.Hour); err != nil {
		t.Errorf("SetInterval after stop failed: %v", err)
	}
	if err := sched.SetInterval(time.Second); err == nil {
		t.Error("expected error for sub-minute interval")
	}
}

// TestSchedulerContextCancel tests shutdown via context
func TestSchedulerContextCancel(t *testing.T) {
	engine, _, _ := newTestEngine(t, false, []byte("x"))

	sched, err := NewScheduler(engine, time.Hour)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := sched.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	cancel()
	// The loop exits on its own; Stop must still return promptly.
	done := make(chan struct{})
	go func() {
		sched.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after context cancellation")
	}
}
