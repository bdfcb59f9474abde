// Package updatehandler implements the coalescing queue and worker pool
// that turn routed jobs into Document Builder calls and Search Engine
// writes.
package updatehandler

import (
	"sync"

	"github.com/deltasync/deltasync/indexsyncerrors"
	"github.com/deltasync/deltasync/metrics"
	"github.com/deltasync/deltasync/router"
)

// Queue is a bounded FIFO of router.Job keyed by router.Job.Key(): a
// second Enqueue for a key already waiting overwrites the pending job in
// place instead of growing the queue, so only the most recent op for a
// given (subject, type_name) is ever dequeued. Capacity is enforced on
// distinct keys, not on individual Enqueue calls.
type Queue struct {
	mu     sync.Mutex
	cond   sync.Cond
	order  []string
	items  map[string]router.Job
	limit  int
	closed bool
}

func NewQueue(limit int) *Queue {
	q := &Queue{items: make(map[string]router.Job), limit: limit}
	q.cond.L = &q.mu
	return q
}

// Enqueue blocks while the queue is at capacity and the job's key is not
// already pending. It never blocks when coalescing into an existing slot.
func (q *Queue) Enqueue(job router.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	key := job.Key()
	for {
		if q.closed {
			return indexsyncerrors.ErrQueueClosed
		}
		if _, pending := q.items[key]; pending {
			q.items[key] = job
			metrics.QueueCoalesced.WithLabelValues(string(job.Op)).Inc()
			return nil
		}
		if q.limit <= 0 || len(q.order) < q.limit {
			q.items[key] = job
			q.order = append(q.order, key)
			metrics.QueueDepth.Set(float64(len(q.order)))
			q.cond.Broadcast()
			return nil
		}
		q.cond.Wait()
	}
}

// Dequeue blocks until a job is available or the queue is closed and
// drained, in which case it returns ErrQueueClosed.
func (q *Queue) Dequeue() (router.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.order) == 0 {
		if q.closed {
			return router.Job{}, indexsyncerrors.ErrQueueClosed
		}
		q.cond.Wait()
	}
	key := q.order[0]
	q.order = q.order[1:]
	job := q.items[key]
	delete(q.items, key)
	metrics.QueueDepth.Set(float64(len(q.order)))
	q.cond.Broadcast()
	return job, nil
}

// Close marks the queue closed. Pending jobs already enqueued still drain
// through Dequeue; once drained, Dequeue returns ErrQueueClosed.
func (q *Queue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	return nil
}
