package application

import (
	"errors"
	"testing"
	"time"

	commands "bluelink-bridge/internal/commands/domain"
)

func TestTrackerCreateAndGet(t *testing.T) {
	tracker := NewTracker(testLogger())

	record, err := tracker.Create("act-1", "req-1", commands.KindLock, "VH123")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if record.Status != commands.StatusPending {
		t.Fatalf("expected pending, got %s", record.Status)
	}

	got, ok := tracker.Get("act-1")
	if !ok || got.ActionID != "act-1" {
		t.Fatalf("expected tracked record, got %v %v", got, ok)
	}
}

func TestTrackerRejectsDuplicates(t *testing.T) {
	tracker := NewTracker(testLogger())

	if _, err := tracker.Create("act-1", "req-1", commands.KindLock, "VH123"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := tracker.Create("act-1", "req-2", commands.KindUnlock, "VH123")
	if !errors.Is(err, ErrDuplicateAction) {
		t.Fatalf("expected ErrDuplicateAction, got %v", err)
	}
}

func TestTrackerTransitionHistory(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	step := 0
	tracker := NewTracker(testLogger()).WithNow(func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	})

	if _, err := tracker.Create("act-1", "req-1", commands.KindLock, "VH123"); err != nil {
		t.Fatalf("create: %v", err)
	}
	record, err := tracker.Transition("act-1", commands.StatusSuccess, "")
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if len(record.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(record.History))
	}
	if !record.History[1].At.After(record.History[0].At) {
		t.Fatalf("history timestamps must be monotonic: %v", record.History)
	}
	if record.CompletedAt.IsZero() {
		t.Fatalf("terminal record must carry CompletedAt")
	}

	_, err = tracker.Transition("act-1", commands.StatusFailed, "late")
	if !errors.Is(err, commands.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestTrackerTransitionUnknownAction(t *testing.T) {
	tracker := NewTracker(testLogger())
	_, err := tracker.Transition("missing", commands.StatusSuccess, "")
	if !errors.Is(err, ErrActionNotFound) {
		t.Fatalf("expected ErrActionNotFound, got %v", err)
	}
}

func TestTrackerReleaseOnlyTerminal(t *testing.T) {
	tracker := NewTracker(testLogger())

	if _, err := tracker.Create("act-1", "req-1", commands.KindLock, "VH123"); err != nil {
		t.Fatalf("create: %v", err)
	}
	tracker.Release("act-1")
	if _, ok := tracker.Get("act-1"); !ok {
		t.Fatalf("pending record must survive a release attempt")
	}

	if _, err := tracker.Transition("act-1", commands.StatusTimedOut, ""); err != nil {
		t.Fatalf("transition: %v", err)
	}
	tracker.Release("act-1")
	if _, ok := tracker.Get("act-1"); ok {
		t.Fatalf("terminal record must be released")
	}
	if got := len(tracker.Snapshot()); got != 0 {
		t.Fatalf("expected empty snapshot, got %d records", got)
	}
}
