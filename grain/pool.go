package grain

import "fmt"

// NodePool is a bounded-churn pool of node triples: a grow-only arena
// plus a free-index stack. The configured capacity is pre-allocated so
// reaching full polyphony never allocates mid-stream; if demand ever
// exceeds the pooled supply, Acquire asks the backend for a fresh
// triple instead of blocking.
//
// NodePool is not safe for concurrent use; the manager serializes
// access.
type NodePool struct {
	backend Backend
	arena   []NodeTriple
	pooled  []bool
	free    []int32
}

// NewNodePool creates a pool and pre-allocates capacity triples.
func NewNodePool(backend Backend, capacity int) (*NodePool, error) {
	if backend == nil {
		return nil, fmt.Errorf("pool backend must not be nil")
	}

	if capacity < 1 {
		return nil, fmt.Errorf("pool capacity must be >= 1: %d", capacity)
	}

	p := &NodePool{
		backend: backend,
		arena:   make([]NodeTriple, 0, capacity),
		pooled:  make([]bool, 0, capacity),
		free:    make([]int32, 0, capacity),
	}

	for range capacity {
		t, err := backend.NewTriple()
		if err != nil {
			return nil, fmt.Errorf("pre-allocate node triple: %w", err)
		}

		t.slot = int32(len(p.arena))
		p.arena = append(p.arena, t)
		p.pooled = append(p.pooled, true)
		p.free = append(p.free, t.slot)
	}

	return p, nil
}

// Acquire pops a pooled triple, or allocates a fresh one when the pool
// is empty.
func (p *NodePool) Acquire() (NodeTriple, error) {
	if n := len(p.free); n > 0 {
		idx := p.free[n-1]
		p.free = p.free[:n-1]
		p.pooled[idx] = false

		return p.arena[idx], nil
	}

	t, err := p.backend.NewTriple()
	if err != nil {
		return NodeTriple{}, fmt.Errorf("allocate node triple: %w", err)
	}

	t.slot = int32(len(p.arena))
	p.arena = append(p.arena, t)
	p.pooled = append(p.pooled, false)

	return t, nil
}

// Release resets the triple's nodes to neutral and returns it to the
// pool. Releasing a triple that is already pooled, or one the pool does
// not own, is a no-op.
func (p *NodePool) Release(t NodeTriple) {
	if t.slot < 0 || int(t.slot) >= len(p.arena) {
		return
	}

	if p.arena[t.slot].Gain != t.Gain || p.pooled[t.slot] {
		return
	}

	t.Gain.Reset()
	t.Filter.Reset()
	t.Pan.Reset()

	p.pooled[t.slot] = true
	p.free = append(p.free, t.slot)
}

// Pooled returns the number of triples currently available.
func (p *NodePool) Pooled() int { return len(p.free) }

// Allocated returns the total number of triples ever created.
func (p *NodePool) Allocated() int { return len(p.arena) }

// drain drops every pooled triple. Used on manager teardown.
func (p *NodePool) drain() {
	p.arena = nil
	p.pooled = nil
	p.free = nil
}
