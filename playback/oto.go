package playback

import (
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/cwbudde/algo-granular/graph"
)

// Oto plays an engine live through the system audio device.
type Oto struct {
	mu      sync.Mutex
	player  *oto.Player
	started bool
	closed  bool
}

// NewOto opens the system audio device at the engine's sample rate and
// wires the engine's stream behind it. The device pulls renders on its
// own goroutine once Start is called.
func NewOto(e *graph.Engine) (*Oto, error) {
	if e == nil {
		return nil, fmt.Errorf("playback engine must not be nil")
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(math.Round(e.SampleRate())),
		ChannelCount: channelCount,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio context: %w", err)
	}

	<-ready

	return &Oto{player: ctx.NewPlayer(newStreamReader(e))}, nil
}

// Start begins playback. Starting a playing output is a no-op.
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutputClosed
	}

	if !o.started {
		o.player.Play()
		o.started = true
	}

	return nil
}

// Stop pauses playback, leaving the device open for a later Start.
func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrOutputClosed
	}

	if o.started {
		o.player.Pause()
		o.started = false
	}

	return nil
}

// Close releases the device. Closing twice is a no-op.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}

	o.closed = true
	o.started = false

	return o.player.Close()
}
