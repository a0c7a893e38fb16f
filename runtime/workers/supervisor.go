package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"task-chat/contract"
	"task-chat/errors"
)

const restartDelay = 200 * time.Millisecond

// Supervisor keeps the pipeline workers alive: each one runs in its own
// goroutine, a panic or error triggers a delayed restart, and a nil return
// retires the worker for good. One crashing worker never takes down the rest.
type Supervisor struct {
	Cancel  context.CancelFunc
	wg      *sync.WaitGroup
	log     *slog.Logger
	workers []contract.Worker
}

func NewSupervisor(log *slog.Logger) *Supervisor {
	return &Supervisor{wg: &sync.WaitGroup{}, log: log}
}

// Run launches every registered worker under a cancellation scope derived
// from ctx, then blocks until all of them have retired. Canceling the parent
// stops the whole set; calling Stop cancels only this supervisor's children.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	s.Cancel = cancel
	defer s.Cancel()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start supervises one worker in a dedicated goroutine. The restart loop
// lives here rather than in the workers themselves, so a worker's Run only
// has to report failure, never to recover from it.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)

	go func() {
		defer s.wg.Done()

		for {
			if ctx.Err() != nil {
				s.log.Info("Stopping worker", "name", name)
				return
			}

			err := runShielded(ctx, worker)

			if err == nil {
				// A clean return retires the worker, no restart
				s.log.Info("Worker finished", "name", name)
				return
			}

			if ctx.Err() != nil {
				s.log.Info("Worker stopped (context canceled)", "name", name)
				return
			}

			s.log.Warn("Worker crashed, restarting", "name", name, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(restartDelay):
			}
		}
	}()
}

// runShielded converts a panic inside the worker into a regular error so the
// restart loop above can treat both failure modes the same way.
func runShielded(ctx context.Context, worker contract.Worker) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.ErrWorkerPanic
		}
	}()
	return worker.Run(ctx)
}

// Stop cancels the supervised scope; Run unblocks once every worker goroutine
// has drained.
func (s *Supervisor) Stop() {
	if s.Cancel != nil {
		s.Cancel()
	}
}
