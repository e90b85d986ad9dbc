package grain

import (
	"math"
	"testing"
)

func newTestTrigger(t *testing.T, voices int, opts ...TriggerOption) (*stubBackend, *Manager, *Trigger) {
	t.Helper()

	backend := newStubBackend()

	m, err := NewManager(backend, WithMaxVoices(voices))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	tr, err := NewTrigger(m, opts...)
	if err != nil {
		t.Fatalf("NewTrigger() error = %v", err)
	}

	return backend, m, tr
}

func TestNewTriggerRejectsInvalidOptions(t *testing.T) {
	_, m, _ := newTestTrigger(t, 4)

	tests := []struct {
		name string
		opt  TriggerOption
	}{
		{"zero min rate", WithRateBounds(0, 1)},
		{"inverted bounds", WithRateBounds(2, 1)},
		{"max rate too large", WithRateBounds(1, 20)},
		{"zero per tick", WithMaxGrainsPerTick(0)},
		{"per tick above cap", WithMaxGrainsPerTick(maxGrainsPerTick + 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTrigger(m, tt.opt); err == nil {
				t.Fatalf("NewTrigger() expected error, got nil")
			}
		})
	}

	if _, err := NewTrigger(nil); err == nil {
		t.Fatalf("NewTrigger(nil) expected error, got nil")
	}
}

func TestFireSpreadZeroIsExact(t *testing.T) {
	backend, _, tr := newTestTrigger(t, 8)

	p := DefaultParams()
	p.Spread = 0
	p.PanRandom = 0
	p.PanControl = 0.4
	p.PlaybackRate = 1.3
	p.GrainsPerStep = 4
	p.GrainSizeMs = 50
	p.StartOffsetPercent = 25
	p.LFOWaveform = WaveSine
	p.LFORate = 0.5

	buf := testBuffer(t, 2.0)

	const (
		tickTime = 3.0
		elapsed  = 0.25
	)

	if n := tr.Fire(buf, p, tickTime, elapsed); n != 4 {
		t.Fatalf("Fire() = %d, want 4", n)
	}

	lfo := (math.Sin(2*math.Pi*p.LFORate*elapsed) + 1) / 2
	base := p.StartOffsetPercent / 100 * buf.Duration()
	avail := buf.Duration() - base - p.GrainSizeMs/1000
	wantPos := base + lfo*avail

	if len(backend.sources) != 4 {
		t.Fatalf("backend created %d sources, want 4", len(backend.sources))
	}

	for i, src := range backend.sources {
		if math.Abs(src.offset-wantPos) > 1e-12 {
			t.Errorf("grain %d offset = %g, want %g", i, src.offset, wantPos)
		}

		if src.rate != p.PlaybackRate {
			t.Errorf("grain %d rate = %g, want %g", i, src.rate, p.PlaybackRate)
		}

		if src.when != tickTime {
			t.Errorf("grain %d start = %g, want %g", i, src.when, tickTime)
		}

		_, pan, _ := chainNodes(t, src)
		if pan.pan != p.PanControl {
			t.Errorf("grain %d pan = %g, want %g", i, pan.pan, p.PanControl)
		}
	}
}

func TestFireSameSeedReproduces(t *testing.T) {
	run := func(seed int64) []*stubSource {
		backend := newStubBackend()

		m, err := NewManager(backend, WithMaxVoices(16), WithManagerSeed(7))
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}

		tr, err := NewTrigger(m, WithTriggerSeed(seed))
		if err != nil {
			t.Fatalf("NewTrigger() error = %v", err)
		}

		p := DefaultParams()
		p.Spread = 0.5
		p.PanRandom = 0.3
		p.GrainsPerStep = 5
		p.LFOWaveform = WaveRandom

		if n := tr.Fire(testBuffer(t, 2.0), p, 1.0, 0.75); n != 5 {
			t.Fatalf("Fire() = %d, want 5", n)
		}

		return backend.sources
	}

	first := run(42)
	second := run(42)

	for i := range first {
		a, b := first[i], second[i]
		if a.offset != b.offset || a.rate != b.rate || a.when != b.when {
			t.Errorf("grain %d differs across equal seeds: (%g, %g, %g) vs (%g, %g, %g)",
				i, a.offset, a.rate, a.when, b.offset, b.rate, b.when)
		}
	}

	third := run(43)

	same := true
	for i := range first {
		if first[i].offset != third[i].offset {
			same = false
			break
		}
	}

	if same {
		t.Errorf("different seeds produced identical grain positions")
	}
}

func TestFireCapsGrainsPerTick(t *testing.T) {
	backend, _, tr := newTestTrigger(t, 64)

	p := DefaultParams()
	p.GrainsPerStep = 50

	if n := tr.Fire(testBuffer(t, 1.0), p, 0, 0); n != maxGrainsPerTick {
		t.Errorf("Fire() = %d, want %d", n, maxGrainsPerTick)
	}

	if len(backend.sources) != maxGrainsPerTick {
		t.Errorf("backend created %d sources, want %d", len(backend.sources), maxGrainsPerTick)
	}

	backend2, _, tr2 := newTestTrigger(t, 64, WithMaxGrainsPerTick(5))

	if n := tr2.Fire(testBuffer(t, 1.0), p, 0, 0); n != 5 {
		t.Errorf("Fire() = %d with lowered cap, want 5", n)
	}

	if len(backend2.sources) != 5 {
		t.Errorf("backend created %d sources, want 5", len(backend2.sources))
	}
}

func TestFireNoGrains(t *testing.T) {
	_, _, tr := newTestTrigger(t, 4)

	p := DefaultParams()
	p.GrainsPerStep = 0

	if n := tr.Fire(testBuffer(t, 1.0), p, 0, 0); n != 0 {
		t.Errorf("Fire() = %d with zero grains per step, want 0", n)
	}

	if n := tr.Fire(nil, DefaultParams(), 0, 0); n != 0 {
		t.Errorf("Fire(nil) = %d, want 0", n)
	}

	if tr.FiredCount() != 0 || tr.FailedCount() != 0 {
		t.Errorf("counters = (%d, %d), want (0, 0)", tr.FiredCount(), tr.FailedCount())
	}
}

func TestFireCountsFailures(t *testing.T) {
	backend, m, tr := newTestTrigger(t, 4)
	backend.failSource = true

	p := DefaultParams()
	p.GrainsPerStep = 3

	if n := tr.Fire(testBuffer(t, 1.0), p, 0, 0); n != 0 {
		t.Errorf("Fire() = %d with failing backend, want 0", n)
	}

	if tr.FailedCount() != 3 {
		t.Errorf("FailedCount() = %d, want 3", tr.FailedCount())
	}

	if m.DroppedCount() != 3 {
		t.Errorf("DroppedCount() = %d, want 3", m.DroppedCount())
	}
}

func TestFireJitterStaysBounded(t *testing.T) {
	backend, _, tr := newTestTrigger(t, 32)

	p := DefaultParams()
	p.Spread = 1.0
	p.PlaybackRate = 3.5
	p.GrainsPerStep = 20
	p.GrainSizeMs = 50

	buf := testBuffer(t, 1.0)

	const tickTime = 1.0

	if n := tr.Fire(buf, p, tickTime, 0.5); n != 20 {
		t.Fatalf("Fire() = %d, want 20", n)
	}

	maxPos := buf.Duration() - p.GrainSizeMs/1000

	for i, src := range backend.sources {
		if src.offset < 0 || src.offset > maxPos+1e-12 {
			t.Errorf("grain %d offset = %g, want in [0, %g]", i, src.offset, maxPos)
		}

		if src.rate < defaultMinRate || src.rate > defaultMaxRate {
			t.Errorf("grain %d rate = %g, want in [%g, %g]", i, src.rate, defaultMinRate, defaultMaxRate)
		}

		if src.when < tickTime-timeJitterSeconds-1e-12 || src.when > tickTime+timeJitterSeconds+1e-12 {
			t.Errorf("grain %d start = %g, want within %g of %g", i, src.when, timeJitterSeconds, tickTime)
		}

		_, pan, _ := chainNodes(t, src)
		if pan.pan < -1 || pan.pan > 1 {
			t.Errorf("grain %d pan = %g, want in [-1, 1]", i, pan.pan)
		}
	}
}

func TestFireGrainLargerThanBuffer(t *testing.T) {
	backend, _, tr := newTestTrigger(t, 8)

	p := DefaultParams()
	p.Spread = 0
	p.GrainsPerStep = 2
	p.GrainSizeMs = 500

	if n := tr.Fire(testBuffer(t, 0.1), p, 0, 0); n != 2 {
		t.Fatalf("Fire() = %d, want 2", n)
	}

	for i, src := range backend.sources {
		if src.offset != 0 {
			t.Errorf("grain %d offset = %g, want 0 when the grain exceeds the buffer", i, src.offset)
		}
	}
}

func TestLFOValue(t *testing.T) {
	_, _, tr := newTestTrigger(t, 4)

	tests := []struct {
		name    string
		wave    Waveform
		rate    float64
		elapsed float64
		want    float64
	}{
		{"sine at phase zero", WaveSine, 1, 0, 0.5},
		{"sine at quarter cycle", WaveSine, 1, 0.25, 1},
		{"sine at half cycle", WaveSine, 1, 0.5, 0.5},
		{"triangle at zero", WaveTriangle, 1, 0, 0},
		{"triangle rising", WaveTriangle, 1, 0.5, 0.5},
		{"triangle peak", WaveTriangle, 1, 1, 1},
		{"triangle falling", WaveTriangle, 1, 1.5, 0.5},
		{"square first half", WaveSquare, 1, 0.1, 0},
		{"square second half", WaveSquare, 1, 0.6, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tr.lfoValue(tt.wave, tt.rate, tt.elapsed)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("lfoValue(%v, %g, %g) = %g, want %g", tt.wave, tt.rate, tt.elapsed, got, tt.want)
			}
		})
	}

	for range 32 {
		v := tr.lfoValue(WaveRandom, 1, 0)
		if v < 0 || v >= 1 {
			t.Errorf("lfoValue(random) = %g, want in [0, 1)", v)
		}
	}
}
