package engine

import (
	"fmt"
	"log/slog"
	"time"
)

// Broadcaster is the external fan-out collaborator. The scheduler only
// builds a frame when someone is listening.
type Broadcaster interface {
	SubscriberCount() int
	Broadcast(frame VizFrame)
}

// errBackoff is how long the loop pauses after a failed iteration.
const errBackoff = time.Second

// Scheduler drives the coordinator at a fixed wall-clock cadence. The
// loop sleeps for the configured step each iteration and is not
// compensated for drift; cumulative timing error versus the wall clock
// is accepted.
type Scheduler struct {
	Coord     *Coordinator
	Broadcast Broadcaster // optional

	// Backoff after a failed iteration. Defaults to one second.
	Backoff time.Duration

	quit chan struct{}
}

// NewScheduler creates a scheduler for the given coordinator.
func NewScheduler(coord *Coordinator, b Broadcaster) *Scheduler {
	return &Scheduler{
		Coord:     coord,
		Broadcast: b,
		Backoff:   errBackoff,
		quit:      make(chan struct{}),
	}
}

// Run loops until Stop is called. A panic inside a single iteration is
// caught, logged, and followed by a backoff — the loop itself never
// terminates on a per-tick failure, since it has no caller to report to.
func (s *Scheduler) Run() {
	slog.Info("tick scheduler started", "interval", s.Coord.StepInterval())

	for {
		select {
		case <-s.quit:
			slog.Info("tick scheduler stopped")
			return
		default:
		}

		if err := s.runOnce(); err != nil {
			slog.Error("tick failed", "error", err)
			time.Sleep(s.Backoff)
			continue
		}

		time.Sleep(s.Coord.StepInterval())
	}
}

// Stop halts the loop after the current iteration.
func (s *Scheduler) Stop() {
	select {
	case <-s.quit:
	default:
		close(s.quit)
	}
}

// runOnce performs one tick plus broadcast, converting panics into an
// error so the loop can apply its backoff policy.
func (s *Scheduler) runOnce() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &tickPanicError{value: r}
		}
	}()

	s.Coord.Tick()

	if s.Broadcast != nil && s.Broadcast.SubscriberCount() > 0 {
		s.Broadcast.Broadcast(s.Coord.VisualizationSnapshot())
	}
	return nil
}

type tickPanicError struct {
	value any
}

func (e *tickPanicError) Error() string {
	return fmt.Sprintf("tick panic: %v", e.value)
}
