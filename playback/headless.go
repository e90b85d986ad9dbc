package playback

import (
	"fmt"
	"io"
	"sync"

	"github.com/cwbudde/algo-granular/graph"
)

// Headless is an output without a sound device. The caller drives it
// with Pump, which renders through the same stream path the live
// output uses.
type Headless struct {
	mu      sync.Mutex
	stream  *streamReader
	scratch []byte
	started bool
	closed  bool
	frames  int64
}

// NewHeadless wraps the engine in a silent output.
func NewHeadless(e *graph.Engine) (*Headless, error) {
	if e == nil {
		return nil, fmt.Errorf("playback engine must not be nil")
	}

	return &Headless{stream: newStreamReader(e)}, nil
}

// Start arms the output. Pump renders nothing before Start.
func (h *Headless) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrOutputClosed
	}

	h.started = true

	return nil
}

// Stop disarms the output.
func (h *Headless) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrOutputClosed
	}

	h.started = false

	return nil
}

// Close shuts the output down. Closing twice is a no-op.
func (h *Headless) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.started = false

	return nil
}

// Pump renders n frames and returns the number rendered. A stopped
// output pumps zero frames without error.
func (h *Headless) Pump(n int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, ErrOutputClosed
	}

	if n <= 0 {
		return 0, fmt.Errorf("pump frames must be positive: %d", n)
	}

	if !h.started {
		return 0, nil
	}

	need := n * bytesPerFrame
	if cap(h.scratch) < need {
		h.scratch = make([]byte, need)
	}

	if _, err := io.ReadFull(h.stream, h.scratch[:need]); err != nil {
		return 0, err
	}

	h.frames += int64(n)

	return n, nil
}

// Frames returns the total frame count pumped since creation.
func (h *Headless) Frames() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.frames
}
