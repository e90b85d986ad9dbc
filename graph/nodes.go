package graph

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-granular/grain"
)

const filterQ = 1 / math.Sqrt2

// masterNode is the terminal mix point. It accepts incoming connections
// but cannot be connected onward.
type masterNode struct{}

func (m *masterNode) Connect(next grain.Node) error {
	return fmt.Errorf("master node is terminal")
}

func (m *masterNode) Disconnect() {}
func (m *masterNode) Reset()      {}

// gainNode applies either a static gain or, once automation is
// scheduled, its control-point curve evaluated per sample.
type gainNode struct {
	e      *Engine
	next   grain.Node
	gain   float64
	points []grain.ControlPoint
}

func (g *gainNode) Connect(next grain.Node) error {
	if next == nil {
		return fmt.Errorf("connect target must not be nil")
	}

	g.e.mu.Lock()
	g.next = next
	g.e.mu.Unlock()

	return nil
}

func (g *gainNode) Disconnect() {
	g.e.mu.Lock()
	g.next = nil
	g.e.mu.Unlock()
}

func (g *gainNode) Reset() {
	g.e.mu.Lock()
	g.next = nil
	g.gain = 1
	g.points = nil
	g.e.mu.Unlock()
}

func (g *gainNode) SetGain(v float64) error {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("gain must be >= 0: %f", v)
	}

	g.e.mu.Lock()
	g.gain = v
	g.e.mu.Unlock()

	return nil
}

func (g *gainNode) Gain() float64 {
	g.e.mu.Lock()
	defer g.e.mu.Unlock()

	return g.gain
}

func (g *gainNode) ScheduleGain(points []grain.ControlPoint) error {
	if len(points) == 0 {
		return fmt.Errorf("gain automation must have at least one point")
	}

	for i := 1; i < len(points); i++ {
		if points[i].Time < points[i-1].Time {
			return fmt.Errorf("gain automation times must not decrease: %f after %f",
				points[i].Time, points[i-1].Time)
		}
	}

	g.e.mu.Lock()
	g.points = append(g.points[:0], points...)
	g.e.mu.Unlock()

	return nil
}

func (g *gainNode) Automated() bool {
	g.e.mu.Lock()
	defer g.e.mu.Unlock()

	return len(g.points) > 0
}

// fillGain evaluates the effective gain for each frame of a block.
// Caller holds the engine lock.
func (g *gainNode) fillGain(env []float64, t0 int64, rate float64) {
	if len(g.points) == 0 {
		for i := range env {
			env[i] = g.gain
		}

		return
	}

	for i := range env {
		t := float64(t0+int64(i)) / rate
		env[i] = grain.SampleCurve(g.points, t)
	}
}

// biquadCoeffs is one normalized second-order section, a0 folded in.
type biquadCoeffs struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// highpassCoeffs designs an RBJ highpass biquad. Out-of-range input
// yields a passthrough section.
func highpassCoeffs(freq, q, sampleRate float64) biquadCoeffs {
	if sampleRate <= 0 || freq <= 0 || freq >= sampleRate/2 ||
		math.IsNaN(freq) || math.IsInf(freq, 0) {
		return biquadCoeffs{b0: 1}
	}

	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		q = filterQ
	}

	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	sw := math.Sin(w0)
	alpha := sw / (2 * q)

	b0 := (1 + cw) / 2
	b1 := -(1 + cw)
	b2 := (1 + cw) / 2
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha

	return biquadCoeffs{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

// filterNode is a highpass biquad in Direct Form II Transposed. The
// requested cutoff is clamped to [10 Hz, 0.45*sampleRate].
type filterNode struct {
	e      *Engine
	next   grain.Node
	cutoff float64
	coeffs biquadCoeffs
	d0, d1 float64
}

func newFilterNode(e *Engine) *filterNode {
	f := &filterNode{e: e}
	f.apply(defaultCutoff)

	return f
}

// apply sets the cutoff and recomputes coefficients. Caller holds the
// engine lock, or owns the node exclusively.
func (f *filterNode) apply(freq float64) {
	freq = math.Min(math.Max(freq, minCutoff), cutoffNyquistFraction*f.e.rate)
	f.cutoff = freq
	f.coeffs = highpassCoeffs(freq, filterQ, f.e.rate)
}

func (f *filterNode) Connect(next grain.Node) error {
	if next == nil {
		return fmt.Errorf("connect target must not be nil")
	}

	f.e.mu.Lock()
	f.next = next
	f.e.mu.Unlock()

	return nil
}

func (f *filterNode) Disconnect() {
	f.e.mu.Lock()
	f.next = nil
	f.e.mu.Unlock()
}

func (f *filterNode) Reset() {
	f.e.mu.Lock()
	f.next = nil
	f.d0 = 0
	f.d1 = 0
	f.apply(defaultCutoff)
	f.e.mu.Unlock()
}

func (f *filterNode) SetCutoff(freq float64) error {
	if freq < 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return fmt.Errorf("cutoff frequency must be >= 0: %f", freq)
	}

	f.e.mu.Lock()
	f.apply(freq)
	f.e.mu.Unlock()

	return nil
}

func (f *filterNode) Cutoff() float64 {
	f.e.mu.Lock()
	defer f.e.mu.Unlock()

	return f.cutoff
}

// processBlock filters a block in place. Caller holds the engine lock.
func (f *filterNode) processBlock(buf []float64) {
	c := f.coeffs

	for i, x := range buf {
		y := c.b0*x + f.d0
		f.d0 = c.b1*x - c.a1*y + f.d1
		f.d1 = c.b2*x - c.a2*y
		buf[i] = y
	}
}

// panNode positions a mono signal in the stereo field with equal-power
// gains.
type panNode struct {
	e    *Engine
	next grain.Node
	pan  float64
}

func (p *panNode) Connect(next grain.Node) error {
	if next == nil {
		return fmt.Errorf("connect target must not be nil")
	}

	p.e.mu.Lock()
	p.next = next
	p.e.mu.Unlock()

	return nil
}

func (p *panNode) Disconnect() {
	p.e.mu.Lock()
	p.next = nil
	p.e.mu.Unlock()
}

func (p *panNode) Reset() {
	p.e.mu.Lock()
	p.next = nil
	p.pan = 0
	p.e.mu.Unlock()
}

func (p *panNode) SetPan(pan float64) error {
	if pan < -1 || pan > 1 || math.IsNaN(pan) {
		return fmt.Errorf("pan must be in [-1, 1]: %f", pan)
	}

	p.e.mu.Lock()
	p.pan = pan
	p.e.mu.Unlock()

	return nil
}

func (p *panNode) Pan() float64 {
	p.e.mu.Lock()
	defer p.e.mu.Unlock()

	return p.pan
}

// gains returns the equal-power left/right gains. Caller holds the
// engine lock.
func (p *panNode) gains() (float64, float64) {
	theta := (p.pan + 1) * math.Pi / 4

	return math.Cos(theta), math.Sin(theta)
}
