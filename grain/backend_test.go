package grain

import (
	"fmt"
	"testing"

	"github.com/cwbudde/algo-granular/sample"
)

const stubDefaultCutoff = 350.0

// stubBackend is an in-memory Backend recording every node interaction.
// The fail* knobs make the next matching operation return an error.
type stubBackend struct {
	master  *stubMaster
	now     float64
	volume  float64
	triples int
	sources []*stubSource

	failTriple bool
	failSource bool
	failCutoff bool
	failStart  bool
}

func newStubBackend() *stubBackend {
	return &stubBackend{master: &stubMaster{}, volume: 1}
}

func (b *stubBackend) NewTriple() (NodeTriple, error) {
	if b.failTriple {
		return NodeTriple{}, fmt.Errorf("stub triple refused")
	}

	b.triples++

	return NodeTriple{
		Gain:   newStubGain(),
		Filter: &stubFilter{b: b, cutoff: stubDefaultCutoff},
		Pan:    &stubPan{},
	}, nil
}

func (b *stubBackend) NewSource(buf *sample.Buffer, playbackRate float64) (Source, error) {
	if b.failSource {
		return nil, fmt.Errorf("stub source refused")
	}

	s := &stubSource{b: b, buf: buf, rate: playbackRate}
	b.sources = append(b.sources, s)

	return s, nil
}

func (b *stubBackend) Master() Node { return b.master }

func (b *stubBackend) SetMasterVolume(level float64) error {
	if level < 0 || level > 1 {
		return fmt.Errorf("stub master volume must be in [0, 1]: %f", level)
	}

	b.volume = level

	return nil
}

func (b *stubBackend) MasterVolume() float64 { return b.volume }

func (b *stubBackend) Now() float64 { return b.now }

type stubMaster struct {
	next Node
}

func (m *stubMaster) Connect(next Node) error { m.next = next; return nil }
func (m *stubMaster) Disconnect()             { m.next = nil }
func (m *stubMaster) Reset()                  { m.next = nil }

type stubGain struct {
	next   Node
	gain   float64
	points []ControlPoint
	resets int
}

func newStubGain() *stubGain { return &stubGain{gain: 1} }

func (g *stubGain) Connect(next Node) error { g.next = next; return nil }
func (g *stubGain) Disconnect()             { g.next = nil }

func (g *stubGain) Reset() {
	g.next = nil
	g.gain = 1
	g.points = nil
	g.resets++
}

func (g *stubGain) SetGain(v float64) error { g.gain = v; return nil }
func (g *stubGain) Gain() float64           { return g.gain }

func (g *stubGain) ScheduleGain(points []ControlPoint) error {
	g.points = append([]ControlPoint(nil), points...)

	return nil
}

func (g *stubGain) Automated() bool { return len(g.points) > 0 }

type stubFilter struct {
	b      *stubBackend
	next   Node
	cutoff float64
}

func (f *stubFilter) Connect(next Node) error { f.next = next; return nil }
func (f *stubFilter) Disconnect()             { f.next = nil }

func (f *stubFilter) Reset() {
	f.next = nil
	f.cutoff = stubDefaultCutoff
}

func (f *stubFilter) SetCutoff(freq float64) error {
	if f.b != nil && f.b.failCutoff {
		return fmt.Errorf("stub cutoff refused")
	}

	f.cutoff = freq

	return nil
}

func (f *stubFilter) Cutoff() float64 { return f.cutoff }

type stubPan struct {
	next Node
	pan  float64
}

func (p *stubPan) Connect(next Node) error { p.next = next; return nil }
func (p *stubPan) Disconnect()             { p.next = nil }

func (p *stubPan) Reset() {
	p.next = nil
	p.pan = 0
}

func (p *stubPan) SetPan(pan float64) error { p.pan = pan; return nil }
func (p *stubPan) Pan() float64             { return p.pan }

type stubSource struct {
	b    *stubBackend
	buf  *sample.Buffer
	rate float64
	next Node

	started  bool
	stopped  int
	when     float64
	offset   float64
	duration float64
}

func (s *stubSource) Connect(next Node) error { s.next = next; return nil }
func (s *stubSource) Disconnect()             { s.next = nil }
func (s *stubSource) Reset()                  { s.next = nil }

func (s *stubSource) Start(when, offset, duration float64) error {
	if s.b != nil && s.b.failStart {
		return fmt.Errorf("stub start refused")
	}

	s.started = true
	s.when = when
	s.offset = offset
	s.duration = duration

	return nil
}

func (s *stubSource) Stop() { s.stopped++ }

// testBuffer builds a mono silence buffer of the given length at a 1 kHz
// sample rate, so one frame is exactly one millisecond.
func testBuffer(t *testing.T, seconds float64) *sample.Buffer {
	t.Helper()

	buf, err := sample.Mono(make([]float64, int(seconds*1000)), 1000)
	if err != nil {
		t.Fatalf("Mono() error = %v", err)
	}

	return buf
}
