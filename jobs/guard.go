// Package jobs provides single-flight execution guards for background work.
// One Guard instance exists per job type and is injected into whatever
// composes the service; there is no process-wide state.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aluiziolira/bookdata-api/models"
)

// RunFunc performs the actual job and returns a summary for the success
// outcome. The error decides the outcome status; the guard never swallows
// it silently.
type RunFunc func(ctx context.Context) (any, error)

// Guard admits at most one run of a job type at a time and records the last
// outcome. Trigger and Status are safe for concurrent use.
type Guard struct {
	name string

	mu      sync.Mutex
	running bool
	last    *models.JobOutcome
}

// NewGuard returns an idle guard with no recorded result.
func NewGuard(name string) *Guard {
	return &Guard{name: name}
}

// Trigger atomically checks and sets the running flag. When a run is
// already in flight it returns false with no side effects; otherwise it
// clears the prior result, dispatches run on a new goroutine, and returns
// true. The caller gets the acknowledgment immediately; the outcome is
// observable through Status once the run finishes.
func (g *Guard) Trigger(run RunFunc) bool {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return false
	}
	g.running = true
	g.last = nil
	g.mu.Unlock()

	go g.execute(run)
	return true
}

// Status returns a snapshot of the guard state. Pure read.
func (g *Guard) Status() models.JobStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return models.JobStatus{
		IsRunning:  g.running,
		LastResult: g.last,
	}
}

// execute runs the job to completion. The running flag is cleared and the
// outcome recorded in one step, even when run panics; a failed job must
// never wedge the guard or crash the host process.
func (g *Guard) execute(run RunFunc) {
	var outcome models.JobOutcome
	defer func() {
		if r := recover(); r != nil {
			outcome = models.JobOutcome{
				Status: "error",
				Error:  fmt.Sprintf("panic: %v", r),
			}
			slog.Error("job panicked", slog.String("job", g.name), slog.Any("panic", r))
		}
		g.mu.Lock()
		g.running = false
		g.last = &outcome
		g.mu.Unlock()
	}()

	slog.Info("job started", slog.String("job", g.name))
	summary, err := run(context.Background())
	if err != nil {
		outcome = models.JobOutcome{Status: "error", Error: err.Error()}
		slog.Error("job failed", slog.String("job", g.name), slog.Any("error", err))
		return
	}
	outcome = models.JobOutcome{Status: "success", Summary: summary}
	slog.Info("job finished", slog.String("job", g.name))
}
