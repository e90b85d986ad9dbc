package graph

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-granular/sample"
)

// nyquistBuffer builds a mono buffer alternating +amp/-amp, the fastest
// signal the sample rate can carry. It passes a highpass unchanged.
func nyquistBuffer(t *testing.T, frames int, rate, amp float64) *sample.Buffer {
	t.Helper()

	data := make([]float64, frames)
	for i := range data {
		if i%2 == 0 {
			data[i] = amp
		} else {
			data[i] = -amp
		}
	}

	buf, err := sample.Mono(data, rate)
	if err != nil {
		t.Fatalf("Mono() error = %v", err)
	}

	return buf
}

// wireChain connects a fresh source through a node triple to the master
// and returns both.
func wireChain(t *testing.T, e *Engine, buf *sample.Buffer, rate float64) *sourceNode {
	t.Helper()

	triple := newTestTriple(t, e)
	src := newTestSource(t, e, buf, rate)

	if err := src.Connect(triple.Filter); err != nil {
		t.Fatalf("source.Connect() error = %v", err)
	}

	if err := triple.Filter.Connect(triple.Pan); err != nil {
		t.Fatalf("filter.Connect() error = %v", err)
	}

	if err := triple.Pan.Connect(triple.Gain); err != nil {
		t.Fatalf("pan.Connect() error = %v", err)
	}

	if err := triple.Gain.Connect(e.Master()); err != nil {
		t.Fatalf("gain.Connect() error = %v", err)
	}

	return src
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range x {
		sum += v * v
	}

	return math.Sqrt(sum / float64(len(x)))
}

func TestNewEngineDefaults(t *testing.T) {
	e := newTestEngine(t)

	if e.SampleRate() != defaultSampleRate {
		t.Errorf("SampleRate() = %g, want %g", e.SampleRate(), defaultSampleRate)
	}

	if e.Now() != 0 {
		t.Errorf("Now() = %g on a fresh engine, want 0", e.Now())
	}

	if e.MasterVolume() != 1 {
		t.Errorf("MasterVolume() = %g, want 1", e.MasterVolume())
	}
}

func TestNewEngineRejectsInvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opt  EngineOption
	}{
		{"rate too low", WithSampleRate(100)},
		{"rate too high", WithSampleRate(1e6)},
		{"rate NaN", WithSampleRate(math.NaN())},
		{"block too small", WithBlockSize(1)},
		{"block too large", WithBlockSize(1 << 20)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewEngine(tt.opt); err == nil {
				t.Fatalf("NewEngine() expected error, got nil")
			}
		})
	}
}

func TestEngineNowAdvancesWithRendering(t *testing.T) {
	e := newTestEngine(t, WithSampleRate(8000))

	left := make([]float64, 4000)
	right := make([]float64, 4000)

	for range 2 {
		if err := e.RenderStereo(left, right); err != nil {
			t.Fatalf("RenderStereo() error = %v", err)
		}
	}

	if e.Now() != 1.0 {
		t.Errorf("Now() = %g after 8000 frames, want 1", e.Now())
	}
}

func TestEngineRenderValidatesInput(t *testing.T) {
	e := newTestEngine(t)

	if err := e.RenderStereo(make([]float64, 8), make([]float64, 4)); err == nil {
		t.Errorf("RenderStereo() with mismatched lengths expected error, got nil")
	}

	if _, _, err := e.RenderSeconds(-1); err == nil {
		t.Errorf("RenderSeconds(-1) expected error, got nil")
	}

	if _, _, err := e.RenderSeconds(math.NaN()); err == nil {
		t.Errorf("RenderSeconds(NaN) expected error, got nil")
	}
}

func TestEngineRendersSilenceWithoutSources(t *testing.T) {
	e := newTestEngine(t, WithSampleRate(8000))

	left, right, err := e.RenderSeconds(0.1)
	if err != nil {
		t.Fatalf("RenderSeconds() error = %v", err)
	}

	if len(left) != 800 || len(right) != 800 {
		t.Fatalf("RenderSeconds() lengths = %d, %d, want 800, 800", len(left), len(right))
	}

	if rms(left) != 0 || rms(right) != 0 {
		t.Errorf("silent engine produced output: rms = %g, %g", rms(left), rms(right))
	}
}

func TestEngineRendersConnectedChain(t *testing.T) {
	e := newTestEngine(t, WithSampleRate(8000))
	buf := nyquistBuffer(t, 8000, 8000, 0.8)
	src := wireChain(t, e, buf, 1)

	if err := src.Start(0, 0, 0.25); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	left, right, err := e.RenderSeconds(0.3)
	if err != nil {
		t.Fatalf("RenderSeconds() error = %v", err)
	}

	// Steady region: amplitude 0.8 split with equal-power center pan.
	if got := rms(left[400:1900]); got < 0.3 {
		t.Errorf("steady rms = %g, want > 0.3", got)
	}

	for i := 2048; i < len(left); i++ {
		if left[i] != 0 || right[i] != 0 {
			t.Fatalf("output at frame %d = (%g, %g) past the source end, want silence", i, left[i], right[i])
		}
	}

	for i := range left {
		if math.Abs(left[i]-right[i]) > 1e-9 {
			t.Fatalf("center pan imbalance at %d: %g vs %g", i, left[i], right[i])
		}
	}

	if e.ActiveSources() != 0 {
		t.Errorf("ActiveSources() = %d after the source ended, want 0", e.ActiveSources())
	}
}

func TestEngineDisconnectedChainIsSilent(t *testing.T) {
	e := newTestEngine(t, WithSampleRate(8000))
	buf := nyquistBuffer(t, 8000, 8000, 0.8)

	// Full wiring except the final hop to the master.
	triple := newTestTriple(t, e)
	src := newTestSource(t, e, buf, 1)

	if err := src.Connect(triple.Filter); err != nil {
		t.Fatalf("source.Connect() error = %v", err)
	}

	if err := triple.Filter.Connect(triple.Pan); err != nil {
		t.Fatalf("filter.Connect() error = %v", err)
	}

	if err := triple.Pan.Connect(triple.Gain); err != nil {
		t.Fatalf("pan.Connect() error = %v", err)
	}

	if err := src.Start(0, 0, 0.25); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	left, right, err := e.RenderSeconds(0.1)
	if err != nil {
		t.Fatalf("RenderSeconds() error = %v", err)
	}

	if rms(left) != 0 || rms(right) != 0 {
		t.Errorf("disconnected chain produced output: rms = %g, %g", rms(left), rms(right))
	}
}

func TestEngineMasterVolumeScalesOutput(t *testing.T) {
	render := func(volume float64) []float64 {
		e := newTestEngine(t, WithSampleRate(8000))
		src := wireChain(t, e, nyquistBuffer(t, 8000, 8000, 0.8), 1)

		if err := src.Start(0, 0, 0.1); err != nil {
			t.Fatalf("Start() error = %v", err)
		}

		if err := e.SetMasterVolume(volume); err != nil {
			t.Fatalf("SetMasterVolume() error = %v", err)
		}

		left, _, err := e.RenderSeconds(0.1)
		if err != nil {
			t.Fatalf("RenderSeconds() error = %v", err)
		}

		return left
	}

	full := render(1)
	half := render(0.5)

	for i := range full {
		if half[i] != full[i]*0.5 {
			t.Fatalf("half volume sample %d = %g, want %g", i, half[i], full[i]*0.5)
		}
	}

	if err := newTestEngine(t).SetMasterVolume(1.5); err == nil {
		t.Errorf("SetMasterVolume(1.5) expected error, got nil")
	}
}

func TestEnginePanHardLeft(t *testing.T) {
	e := newTestEngine(t, WithSampleRate(8000))
	buf := nyquistBuffer(t, 8000, 8000, 0.8)

	triple := newTestTriple(t, e)
	src := newTestSource(t, e, buf, 1)

	if err := src.Connect(triple.Filter); err != nil {
		t.Fatalf("source.Connect() error = %v", err)
	}

	if err := triple.Filter.Connect(triple.Pan); err != nil {
		t.Fatalf("filter.Connect() error = %v", err)
	}

	if err := triple.Pan.Connect(triple.Gain); err != nil {
		t.Fatalf("pan.Connect() error = %v", err)
	}

	if err := triple.Gain.Connect(e.Master()); err != nil {
		t.Fatalf("gain.Connect() error = %v", err)
	}

	if err := triple.Pan.SetPan(-1); err != nil {
		t.Fatalf("SetPan() error = %v", err)
	}

	if err := src.Start(0, 0, 0.1); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	left, right, err := e.RenderSeconds(0.1)
	if err != nil {
		t.Fatalf("RenderSeconds() error = %v", err)
	}

	if rms(left) < 0.3 {
		t.Errorf("left rms = %g with hard-left pan, want > 0.3", rms(left))
	}

	if rms(right) != 0 {
		t.Errorf("right rms = %g with hard-left pan, want 0", rms(right))
	}
}

func TestEngineClampsHotMix(t *testing.T) {
	e := newTestEngine(t, WithSampleRate(8000))

	// Five full-scale sources stacked on the same pan side overdrive
	// the bus; the output must stay inside [-1, 1].
	for range 5 {
		src := wireChain(t, e, nyquistBuffer(t, 8000, 8000, 1.0), 1)
		if err := src.Start(0, 0, 0.1); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	}

	left, right, err := e.RenderSeconds(0.1)
	if err != nil {
		t.Fatalf("RenderSeconds() error = %v", err)
	}

	peak := 0.0

	for i := range left {
		peak = math.Max(peak, math.Max(math.Abs(left[i]), math.Abs(right[i])))
	}

	if peak > 1 {
		t.Errorf("output peak = %g, want clamped to 1", peak)
	}

	if peak < 0.99 {
		t.Errorf("output peak = %g, want the stacked mix to hit the clamp", peak)
	}
}
