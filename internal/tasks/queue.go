package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/shared"
)

// RunFunc executes one task. On failure the returned result may hold partial data.
type RunFunc func(ctx context.Context, task models.Task) (*models.TaskResult, error)

// DoneFunc receives the single outcome of a task. err is a [*models.TaskError] on failure.
type DoneFunc func(task models.Task, result *models.TaskResult, err *models.TaskError)

type entry struct {
	ctx  context.Context
	task models.Task
	done DoneFunc
}

// Queue admits tasks in FIFO order into at most limit concurrent executions.
//
// Every pushed task receives exactly one call to its [DoneFunc]. The queue performs no retries.
type Queue struct {
	run     RunFunc
	onDepth func(int)
	limit   int

	mu      sync.Mutex
	waiting []*entry
	running int

	// depthMu keeps depth reports in the order the state changed.
	depthMu sync.Mutex
	pending sync.WaitGroup
}

// NewQueue creates a queue running at most maxConcurrency tasks at once.
// onDepth, when set, receives running+waiting after every change and must not push or cancel.
func NewQueue(maxConcurrency int, run RunFunc, onDepth func(int)) (*Queue, error) {
	if maxConcurrency < 1 {
		return nil, models.NewConfigurationError("max_concurrency",
			fmt.Errorf("must be a positive integer, got %d", maxConcurrency))
	}
	if run == nil {
		return nil, models.NewConfigurationError("run", fmt.Errorf("%w: run function", shared.ErrMissingArgument))
	}
	return &Queue{run: run, onDepth: onDepth, limit: maxConcurrency}, nil
}

// Push enqueues task. ctx is handed to the run function once the task is admitted.
func (q *Queue) Push(ctx context.Context, task models.Task, done DoneFunc) {
	q.pending.Add(1)

	q.mu.Lock()
	q.waiting = append(q.waiting, &entry{ctx: ctx, task: task, done: done})
	started := q.admitLocked()
	q.reportLocked()

	for _, e := range started {
		go q.execute(e)
	}
}

// Cancel removes a task that has not been admitted yet. It reports whether the task was found waiting.
// A cancelled task fails with stage [models.StageQueue].
func (q *Queue) Cancel(taskID string) bool {
	q.mu.Lock()
	var found *entry
	for i, e := range q.waiting {
		if e.task.ID == taskID {
			found = e
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			break
		}
	}
	if found == nil {
		q.mu.Unlock()
		return false
	}
	q.reportLocked()

	q.finish(found, nil, models.NewTaskError(found.task, models.StageQueue, shared.ErrCancelled))
	return true
}

// Running returns the number of executing tasks.
func (q *Queue) Running() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Waiting returns the number of tasks not yet admitted.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

// Depth returns running+waiting.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running + len(q.waiting)
}

// Wait blocks until every pushed task has completed or ctx is done.
func (q *Queue) Wait(ctx context.Context) error {
	drained := make(chan struct{})
	go func() {
		q.pending.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// admitLocked moves waiting entries into the running set up to the limit.
func (q *Queue) admitLocked() []*entry {
	var started []*entry
	for q.running < q.limit && len(q.waiting) > 0 {
		e := q.waiting[0]
		q.waiting[0] = nil
		q.waiting = q.waiting[1:]
		q.running++
		started = append(started, e)
	}
	return started
}

// reportLocked publishes the current depth and releases q.mu.
func (q *Queue) reportLocked() {
	depth := q.running + len(q.waiting)
	q.depthMu.Lock()
	q.mu.Unlock()
	defer q.depthMu.Unlock()
	if q.onDepth != nil {
		q.onDepth(depth)
	}
}

func (q *Queue) execute(e *entry) {
	result, err := q.safeRun(e)

	q.mu.Lock()
	q.running--
	started := q.admitLocked()
	q.reportLocked()

	for _, next := range started {
		go q.execute(next)
	}

	if err != nil {
		q.finish(e, result, models.NewTaskError(e.task, models.StagePipeline, err))
		return
	}
	q.finish(e, result, nil)
}

func (q *Queue) finish(e *entry, result *models.TaskResult, err *models.TaskError) {
	defer q.pending.Done()
	if e.done != nil {
		e.done(e.task, result, err)
	}
}

// safeRun converts a panic into an error so one task cannot take down the pool.
func (q *Queue) safeRun(e *entry) (result *models.TaskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = models.NewTaskError(e.task, models.StagePipeline, fmt.Errorf("%w: %v", shared.ErrPanic, r))
		}
	}()
	return q.run(e.ctx, e.task)
}
