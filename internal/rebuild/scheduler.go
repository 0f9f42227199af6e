package rebuild

import (
	"context"
	"sync"
	"time"

	"github.com/fluxo-ledger/fluxo/internal/common"
)

// rebuildTimeout bounds one background rebuild run.
const rebuildTimeout = 2 * time.Minute

// Scheduler runs rebuilds on a background worker so the commit path never
// waits on them. Triggers are fire-and-forget: when the queue is full the
// scope is dropped, because a later rebuild subsumes an earlier one anyway.
type Scheduler struct {
	rebuilder *Rebuilder
	jobs      chan Scope
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewScheduler creates a scheduler and starts its worker.
func NewScheduler(rebuilder *Rebuilder, buffer int) *Scheduler {
	if buffer < 1 {
		buffer = 1
	}
	s := &Scheduler{
		rebuilder: rebuilder,
		jobs:      make(chan Scope, buffer),
	}

	s.wg.Add(1)
	go s.run()

	return s
}

// Trigger enqueues a rebuild without blocking the caller.
func (s *Scheduler) Trigger(scope Scope) {
	select {
	case s.jobs <- scope:
	default:
		common.LogDebug("rebuild queue full, coalescing trigger",
			common.Fields{"institution": scope.Institution})
	}
}

// Close stops accepting triggers and waits for in-flight rebuilds.
func (s *Scheduler) Close() {
	s.closeOnce.Do(func() {
		close(s.jobs)
	})
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	for scope := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), rebuildTimeout)
		if err := s.rebuilder.Rebuild(ctx, scope); err != nil {
			// Non-fatal: the next commit retriggers the rebuild.
			common.LogWarn("auxiliary base rebuild failed",
				common.Fields{"institution": scope.Institution, "error": err.Error()})
		}
		cancel()
	}
}
