package graph

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-granular/grain"
	"github.com/cwbudde/algo-granular/sample"
)

// sourceNode plays one grain's slice of a sample buffer: it starts at a
// scheduled frame, reads the buffer at a fixed fractional increment,
// and silences itself when the clock passes its end frame.
type sourceNode struct {
	e    *Engine
	buf  *sample.Buffer
	inc  float64
	next grain.Node

	started    bool
	stopped    bool
	startFrame int64
	endFrame   int64
	readPos    float64
}

func (s *sourceNode) Connect(next grain.Node) error {
	if next == nil {
		return fmt.Errorf("connect target must not be nil")
	}

	s.e.mu.Lock()
	s.next = next
	s.e.mu.Unlock()

	return nil
}

func (s *sourceNode) Disconnect() {
	s.e.mu.Lock()
	s.next = nil
	s.e.mu.Unlock()
}

func (s *sourceNode) Reset() {
	s.e.mu.Lock()
	s.next = nil
	s.stopped = true
	s.e.mu.Unlock()
}

// Start schedules playback at clock time when, reading from offset
// seconds into the buffer for duration output seconds.
func (s *sourceNode) Start(when, offset, duration float64) error {
	if when < 0 || math.IsNaN(when) || math.IsInf(when, 0) {
		return fmt.Errorf("source start time must be >= 0: %f", when)
	}

	if offset < 0 || math.IsNaN(offset) || math.IsInf(offset, 0) {
		return fmt.Errorf("source offset must be >= 0: %f", offset)
	}

	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return fmt.Errorf("source duration must be > 0: %f", duration)
	}

	s.e.mu.Lock()
	defer s.e.mu.Unlock()

	if s.started {
		return fmt.Errorf("source already started")
	}

	frames := int64(math.Round(duration * s.e.rate))
	if frames < 1 {
		frames = 1
	}

	s.startFrame = int64(math.Round(when * s.e.rate))
	s.endFrame = s.startFrame + frames
	s.readPos = offset * s.buf.SampleRate()
	s.started = true

	return nil
}

// Stop silences the source immediately. Stop is idempotent.
func (s *sourceNode) Stop() {
	s.e.mu.Lock()
	s.stopped = true
	s.e.mu.Unlock()
}

// chain resolves the fixed grain topology below this source. Caller
// holds the engine lock.
func (s *sourceNode) chain(master *masterNode) (*filterNode, *panNode, *gainNode, bool) {
	filter, ok := s.next.(*filterNode)
	if !ok {
		return nil, nil, nil, false
	}

	pan, ok := filter.next.(*panNode)
	if !ok {
		return nil, nil, nil, false
	}

	gainStage, ok := pan.next.(*gainNode)
	if !ok {
		return nil, nil, nil, false
	}

	if m, ok := gainStage.next.(*masterNode); !ok || m != master {
		return nil, nil, nil, false
	}

	return filter, pan, gainStage, true
}

// renderInto writes the source's samples for the block starting at
// frame t0, zero-filling outside its playback window. It returns false
// when the block lies entirely outside the window. Caller holds the
// engine lock.
func (s *sourceNode) renderInto(dst []float64, t0 int64) bool {
	if !s.started || s.stopped {
		return false
	}

	if t0 >= s.endFrame {
		s.stopped = true

		return false
	}

	if t0+int64(len(dst)) <= s.startFrame {
		return false
	}

	for i := range dst {
		f := t0 + int64(i)
		if f < s.startFrame || f >= s.endFrame {
			dst[i] = 0

			continue
		}

		pos := s.readPos + float64(f-s.startFrame)*s.inc
		dst[i] = s.buf.MonoLerp(pos)
	}

	return true
}
