package window

import (
	"context"
	"sync"

	"github.com/rowanhm/stitch/internal/timeline"
)

// Job is one backlogged window awaiting reconciliation.
type Job struct {
	Rows   []RawRow
	Window timeline.TimeSpan
}

// jobQueue is a thread-safe FIFO of window jobs.
//
// Ingestion enqueues from any goroutine; the catch-up loop dequeues from
// exactly one. The queue is unbounded - a long offline gap may enqueue
// many windows at once and none may be dropped.
//
// A buffered signal channel (size 1) coalesces wake-ups so the loop can
// wait context-aware instead of busy-polling.
type jobQueue struct {
	mu     sync.Mutex
	jobs   []Job
	closed bool
	signal chan struct{}
}

func newJobQueue() *jobQueue {
	return &jobQueue{
		jobs:   make([]Job, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends a job. Returns false if the queue is closed.
func (q *jobQueue) Enqueue(j Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.jobs = append(q.jobs, j)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front job without blocking.
func (q *jobQueue) TryDequeue() (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return Job{}, false
	}
	j := q.jobs[0]

	// Nil out the slot so the backing array does not retain row slices.
	q.jobs[0] = Job{}
	if len(q.jobs) == 1 {
		q.jobs = q.jobs[:0]
	} else {
		q.jobs = q.jobs[1:]
	}
	return j, true
}

// Len returns the current backlog size.
func (q *jobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close marks the queue finished and wakes all waiters.
func (q *jobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

func (q *jobQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Runner drains a job queue through an orchestrator, strictly in FIFO
// order. Window N+1 never starts before window N has committed, which
// is what keeps the previous-window boundary well-defined during
// catch-up after downtime.
type Runner struct {
	orch  *Orchestrator
	queue *jobQueue
}

// NewRunner creates a Runner over the given orchestrator.
func NewRunner(orch *Orchestrator) *Runner {
	return &Runner{orch: orch, queue: newJobQueue()}
}

// Submit enqueues a window job. Returns false once the runner is closed.
func (r *Runner) Submit(j Job) bool {
	return r.queue.Enqueue(j)
}

// Close stops intake. Run returns once the backlog drains.
func (r *Runner) Close() {
	r.queue.Close()
}

// Backlog returns the number of pending jobs.
func (r *Runner) Backlog() int {
	return r.queue.Len()
}

// Run processes jobs until the queue closes and drains, the context is
// cancelled, or a window fails. A failed window aborts the whole run:
// processing later windows against a stale boundary would corrupt
// continuity, so the error propagates with the backlog intact.
func (r *Runner) Run(ctx context.Context) error {
	for {
		if j, ok := r.queue.TryDequeue(); ok {
			if _, err := r.orch.ProcessWindow(ctx, j.Rows, j.Window); err != nil {
				return err
			}
			continue
		}

		if r.queue.isClosed() {
			// Closed and drained.
			if _, ok := r.queue.TryDequeue(); !ok {
				return nil
			}
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.queue.signal:
		}
	}
}
