package grain

import "container/heap"

// cleanupQueue is the time-ordered queue of pending grain teardowns.
// Every active grain has at most one entry; entries are removed when
// drained or when the grain is torn down early.
type cleanupQueue struct {
	h   timeHeap
	seq uint64
}

func newCleanupQueue(capacity int) *cleanupQueue {
	return &cleanupQueue{h: make(timeHeap, 0, capacity)}
}

// schedule enqueues a teardown for the given voice at time at.
func (q *cleanupQueue) schedule(at float64, slot int32, gen uint32) *timeEntry {
	return pushEntry(&q.h, &q.seq, at, slot, gen)
}

// due pops the earliest entry scheduled at or before now.
func (q *cleanupQueue) due(now float64) (*timeEntry, bool) {
	e, ok := peekEntry(q.h)
	if !ok || e.at > now {
		return nil, false
	}

	heap.Pop(&q.h)

	return e, true
}

// remove detaches a pending entry, if it is still queued.
func (q *cleanupQueue) remove(e *timeEntry) {
	removeEntry(&q.h, e)
}

// pending returns the number of queued teardowns.
func (q *cleanupQueue) pending() int { return len(q.h) }
