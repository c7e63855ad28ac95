package service

import (
	"context"
	"sync"
	"time"

	"github.com/hookflow-go/pkg/logger"
	"github.com/hookflow-go/pkg/metrics"
)

// TaskSupervisor owns dispatches that keep running after their HTTP response
// was sent. Entries are evicted by the task's own completion, never by
// external scavenging, and the registry is bounded: when it is full the
// pipeline falls back to processing inline instead of detaching.
type TaskSupervisor struct {
	mu     sync.Mutex
	tasks  map[string]time.Time
	limit  int
	wg     sync.WaitGroup
	logger logger.Logger
}

func NewTaskSupervisor(limit int, log logger.Logger) *TaskSupervisor {
	if limit <= 0 {
		limit = 1024
	}
	return &TaskSupervisor{
		tasks:  make(map[string]time.Time),
		limit:  limit,
		logger: log,
	}
}

// TryRegister reserves a slot for a detached task. A false return means the
// supervisor is at capacity and the caller should not detach.
func (s *TaskSupervisor) TryRegister(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tasks) >= s.limit {
		s.logger.Warn("Background task supervisor at capacity", "limit", s.limit)
		return false
	}
	s.tasks[id] = time.Now()
	s.wg.Add(1)
	metrics.BackgroundTasks.Set(float64(len(s.tasks)))
	return true
}

// Done evicts the task and logs its terminal state.
func (s *TaskSupervisor) Done(id string, err error) {
	s.mu.Lock()
	started, ok := s.tasks[id]
	delete(s.tasks, id)
	metrics.BackgroundTasks.Set(float64(len(s.tasks)))
	s.mu.Unlock()

	if !ok {
		return
	}
	s.wg.Done()

	elapsed := time.Since(started)
	if err != nil {
		s.logger.Error("Background dispatch finished with error", "taskId", id, "elapsed", elapsed, "error", err)
		return
	}
	s.logger.Info("Background dispatch completed", "taskId", id, "elapsed", elapsed)
}

// InFlight returns the number of detached tasks still running.
func (s *TaskSupervisor) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Wait blocks until all detached tasks finish or ctx expires. Used during
// shutdown; completion is best effort, tasks cut short by process exit rely
// on provider retries plus dedup to recover.
func (s *TaskSupervisor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.logger.Warn("Shutdown with background dispatches still running", "inFlight", s.InFlight())
		return ctx.Err()
	}
}
