package reconcile

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler drives the reconciler on a fixed interval, independent of
// request handling. Stop halts the timer but lets an in-flight sweep
// finish; the only cancellation point is between sweep runs.
type Scheduler struct {
	reconciler *Reconciler
	interval   time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a scheduler over the reconciler.
func NewScheduler(r *Reconciler, interval time.Duration) *Scheduler {
	return &Scheduler{
		reconciler: r,
		interval:   interval,
	}
}

// Start launches the sweep loop. A sweep failure is logged and the loop
// waits for the next tick; it never takes the process down.
func (s *Scheduler) Start() {
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)

		slog.Info("reconciler started", "interval", s.interval)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				slog.Info("reconciler stopped")
				return
			case <-ticker.C:
				// Deliberately not tied to the stop signal: Stop waits for
				// the in-flight tick instead of aborting it mid-user.
				s.reconciler.Tick(context.Background())
			}
		}
	}()
}

// Stop halts the timer and waits for any in-flight sweep to finish. It is
// safe to call Stop when Start was never called.
func (s *Scheduler) Stop() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	<-s.done
}
