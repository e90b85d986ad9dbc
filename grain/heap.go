package grain

import "container/heap"

// timeEntry is one scheduled event keyed by time with a FIFO sequence
// tie-break. Entries carry the voice slot and generation they refer to,
// and track their heap index so they can be removed eagerly.
type timeEntry struct {
	at    float64
	seq   uint64
	slot  int32
	gen   uint32
	index int
}

type timeHeap []*timeEntry

func (h timeHeap) Len() int { return len(h) }

func (h timeHeap) Less(i, j int) bool {
	if h[i].at != h[j].at {
		return h[i].at < h[j].at
	}

	return h[i].seq < h[j].seq
}

func (h timeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timeHeap) Push(x any) {
	e := x.(*timeEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]

	return e
}

func pushEntry(h *timeHeap, seq *uint64, at float64, slot int32, gen uint32) *timeEntry {
	*seq++
	e := &timeEntry{at: at, seq: *seq, slot: slot, gen: gen}
	heap.Push(h, e)

	return e
}

// removeEntry detaches e from its heap. Entries already popped carry a
// negative index and are ignored.
func removeEntry(h *timeHeap, e *timeEntry) {
	if e == nil || e.index < 0 {
		return
	}

	heap.Remove(h, e.index)
}

func peekEntry(h timeHeap) (*timeEntry, bool) {
	if len(h) == 0 {
		return nil, false
	}

	return h[0], true
}
