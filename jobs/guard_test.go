package jobs

import (
	"context"
	"errors"
	"testing"
	"time"
)

func waitForIdle(t *testing.T, g *Guard) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if st := g.Status(); !st.IsRunning {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("guard did not become idle")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestGuardSingleFlight(t *testing.T) {
	g := NewGuard("test")

	release := make(chan struct{})
	started := make(chan struct{})
	run := func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "done", nil
	}

	if !g.Trigger(run) {
		t.Fatalf("first trigger must be accepted")
	}
	<-started

	if g.Trigger(run) {
		t.Fatalf("second trigger while running must be rejected")
	}
	if st := g.Status(); !st.IsRunning {
		t.Fatalf("status must report running")
	}

	close(release)
	waitForIdle(t, g)

	st := g.Status()
	if st.LastResult == nil {
		t.Fatalf("finished run must record an outcome")
	}
	if st.LastResult.Status != "success" {
		t.Fatalf("status = %q, want success", st.LastResult.Status)
	}
	if st.LastResult.Summary != "done" {
		t.Fatalf("summary = %v", st.LastResult.Summary)
	}
}

func TestGuardReacceptsAfterCompletion(t *testing.T) {
	g := NewGuard("test")

	if !g.Trigger(func(ctx context.Context) (any, error) { return 1, nil }) {
		t.Fatalf("first trigger rejected")
	}
	waitForIdle(t, g)

	if !g.Trigger(func(ctx context.Context) (any, error) { return 2, nil }) {
		t.Fatalf("trigger after completion must be accepted")
	}
	waitForIdle(t, g)

	st := g.Status()
	if st.LastResult == nil || st.LastResult.Summary != 2 {
		t.Fatalf("last result = %+v, want summary of second run", st.LastResult)
	}
}

func TestGuardRecordsError(t *testing.T) {
	g := NewGuard("test")

	g.Trigger(func(ctx context.Context) (any, error) {
		return nil, errors.New("scrape blew up")
	})
	waitForIdle(t, g)

	st := g.Status()
	if st.LastResult == nil || st.LastResult.Status != "error" {
		t.Fatalf("outcome = %+v, want error status", st.LastResult)
	}
	if st.LastResult.Error != "scrape blew up" {
		t.Fatalf("error = %q", st.LastResult.Error)
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	g := NewGuard("test")

	g.Trigger(func(ctx context.Context) (any, error) {
		panic("boom")
	})
	waitForIdle(t, g)

	st := g.Status()
	if st.LastResult == nil || st.LastResult.Status != "error" {
		t.Fatalf("outcome = %+v, want error after panic", st.LastResult)
	}
	if st.LastResult.Error == "" {
		t.Fatalf("panic must be captured in the outcome")
	}

	// The guard must stay usable after a panicking run.
	if !g.Trigger(func(ctx context.Context) (any, error) { return "ok", nil }) {
		t.Fatalf("guard wedged after panic")
	}
	waitForIdle(t, g)
}

func TestGuardClearsPriorResultOnTrigger(t *testing.T) {
	g := NewGuard("test")

	g.Trigger(func(ctx context.Context) (any, error) { return "first", nil })
	waitForIdle(t, g)

	release := make(chan struct{})
	started := make(chan struct{})
	g.Trigger(func(ctx context.Context) (any, error) {
		close(started)
		<-release
		return "second", nil
	})
	<-started

	if st := g.Status(); st.LastResult != nil {
		t.Fatalf("in-flight run must clear the prior result, got %+v", st.LastResult)
	}
	close(release)
	waitForIdle(t, g)
}
