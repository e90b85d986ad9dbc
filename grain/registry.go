package grain

// voiceSlot is one arena cell of the voice registry. The generation
// counter increments on every claim, so stale grain handles observing a
// recycled slot read as inactive forever.
type voiceSlot struct {
	gen    uint32
	active bool
	start  float64
	end    float64
	source Source
	nodes  NodeTriple

	endEnt   *timeEntry
	cleanEnt *timeEntry
}

// voiceRegistry tracks the active voices: a fixed-capacity slot arena
// with a free-index stack, plus a min-heap on end time for oldest-first
// eviction.
type voiceRegistry struct {
	slots []voiceSlot
	free  []int32
	byEnd timeHeap
	seq   uint64
	count int
}

func newVoiceRegistry(capacity int) *voiceRegistry {
	r := &voiceRegistry{
		slots: make([]voiceSlot, capacity),
		free:  make([]int32, 0, capacity),
		byEnd: make(timeHeap, 0, capacity),
	}

	for i := capacity - 1; i >= 0; i-- {
		r.free = append(r.free, int32(i))
	}

	return r
}

// claim pops a free slot and bumps its generation.
func (r *voiceRegistry) claim() (int32, bool) {
	n := len(r.free)
	if n == 0 {
		return -1, false
	}

	idx := r.free[n-1]
	r.free = r.free[:n-1]
	r.slots[idx].gen++

	return idx, true
}

// admit activates a claimed slot and indexes it by end time.
func (r *voiceRegistry) admit(idx int32, start, end float64, source Source, nodes NodeTriple) *voiceSlot {
	s := &r.slots[idx]
	s.active = true
	s.start = start
	s.end = end
	s.source = source
	s.nodes = nodes
	s.endEnt = pushEntry(&r.byEnd, &r.seq, end, idx, s.gen)
	r.count++

	return s
}

// oldest peeks the active voice with the smallest end time.
func (r *voiceRegistry) oldest() (*timeEntry, bool) {
	return peekEntry(r.byEnd)
}

// retire deactivates a slot, unlinks its end-time index entry, and
// frees the slot for reuse.
func (r *voiceRegistry) retire(idx int32) {
	s := &r.slots[idx]
	s.active = false
	removeEntry(&r.byEnd, s.endEnt)
	s.endEnt = nil
	s.source = nil
	s.nodes = NodeTriple{}
	r.free = append(r.free, idx)
	r.count--
}
