package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var ErrSchedulerStopped = errors.New("scheduler is stopped")

// Scheduler runs every task in its own goroutine. Tasks never wait on each
// other, so a page fetch is not held up by detail fetches.
type Scheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration

	mu      sync.Mutex
	stopped bool
	wg      conc.WaitGroup
}

func NewScheduler(timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		ctx:     ctx,
		cancel:  cancel,
		timeout: timeout,
	}
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSchedulerStopped
	}

	s.wg.Go(func() {
		s.executeTask(task)
	})
	return nil
}

// Wait blocks until every task enqueued so far has finished. Running tasks may
// still enqueue new ones while it waits.
func (s *Scheduler) Wait() {
	s.wait()
}

// Stop cancels running tasks, waits for them and rejects new ones. The lock is
// released before waiting so tasks that enqueue during shutdown get
// ErrSchedulerStopped instead of blocking.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.wait()
}

func (s *Scheduler) wait() {
	if recovered := s.wg.WaitAndRecover(); recovered != nil {
		slog.Error("Task panicked", "panic", recovered.Value, "stack", string(recovered.Stack))
	}
}

func (s *Scheduler) executeTask(task TaskInterface) {
	task.Start()

	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
	}

	if err := task.Execute(ctx); err != nil {
		slog.Warn("Task failed",
			"type", string(task.GetType()),
			"id", task.GetID(),
			"session", task.GetSessionID(),
			"duration", task.GetDuration(),
			"error", err)
		return
	}

	slog.Debug("Task completed",
		"type", string(task.GetType()),
		"id", task.GetID(),
		"session", task.GetSessionID(),
		"duration", task.GetDuration())
}
