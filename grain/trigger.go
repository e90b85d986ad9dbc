package grain

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-granular/sample"
)

const (
	defaultTriggerSeed = 1
	defaultMinRate     = 0.25
	defaultMaxRate     = 4.0

	maxGrainsPerTick    = 20
	timeJitterSeconds   = 0.02
	fixedPositionJitter = 0.05
)

type triggerConfig struct {
	seed    int64
	minRate float64
	maxRate float64
	perTick int
}

func defaultTriggerConfig() triggerConfig {
	return triggerConfig{
		seed:    defaultTriggerSeed,
		minRate: defaultMinRate,
		maxRate: defaultMaxRate,
		perTick: maxGrainsPerTick,
	}
}

// TriggerOption configures a Trigger at construction time.
type TriggerOption func(*triggerConfig) error

// WithTriggerSeed seeds the RNG used for the LFO random waveform and
// all spread jitter draws. Equal seeds reproduce equal grain clouds.
func WithTriggerSeed(seed int64) TriggerOption {
	return func(cfg *triggerConfig) error {
		cfg.seed = seed

		return nil
	}
}

// WithRateBounds sets the clamp range for jittered playback rates. The
// bounds must satisfy 0 < min < max <= 16.
func WithRateBounds(minRate, maxRate float64) TriggerOption {
	return func(cfg *triggerConfig) error {
		if minRate <= 0 || minRate >= maxRate || maxRate > maxPlaybackRate ||
			math.IsNaN(minRate) || math.IsNaN(maxRate) {
			return fmt.Errorf("rate bounds must satisfy 0 < min < max <= %g: [%f, %f]", maxPlaybackRate, minRate, maxRate)
		}

		cfg.minRate = minRate
		cfg.maxRate = maxRate

		return nil
	}
}

// WithMaxGrainsPerTick sets the per-tick fan-out cap in [1, 20].
func WithMaxGrainsPerTick(n int) TriggerOption {
	return func(cfg *triggerConfig) error {
		if n < 1 || n > maxGrainsPerTick {
			return fmt.Errorf("max grains per tick must be in [1, %d]: %d", maxGrainsPerTick, n)
		}

		cfg.perTick = n

		return nil
	}
}

// Trigger turns one sequencer tick into a burst of grains: it sweeps
// the base read position with an LFO, then scatters each grain around
// that base according to the spread amount. A Trigger is driven from a
// single goroutine, normally the sequencer's.
type Trigger struct {
	m   *Manager
	rng *rand.Rand

	minRate float64
	maxRate float64
	perTick int

	fired  uint64
	failed uint64
}

// NewTrigger creates a grain trigger feeding the given manager.
func NewTrigger(m *Manager, opts ...TriggerOption) (*Trigger, error) {
	if m == nil {
		return nil, fmt.Errorf("trigger manager must not be nil")
	}

	cfg := defaultTriggerConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Trigger{
		m:       m,
		rng:     rand.New(rand.NewSource(cfg.seed)),
		minRate: cfg.minRate,
		maxRate: cfg.maxRate,
		perTick: cfg.perTick,
	}, nil
}

// Fire creates up to min(p.GrainsPerStep, cap) grains for one tick and
// returns the number that started. tickTime is the grains' start on
// the backend clock; elapsed is the time since sequencer start and
// drives the LFO phase. A failed grain is counted and skipped, never
// aborting the rest of the burst.
//
// With Spread zero every grain of the burst uses the exact base
// position, playback rate, pan, and tick time.
func (t *Trigger) Fire(buf *sample.Buffer, p Params, tickTime, elapsed float64) int {
	if buf == nil || p.GrainsPerStep <= 0 {
		return 0
	}

	n := p.GrainsPerStep
	if n > t.perTick {
		n = t.perTick
	}

	bufDur := buf.Duration()
	grainDur := p.GrainSizeMs / 1000
	base := p.StartOffsetPercent / 100 * bufDur

	avail := bufDur - base - grainDur
	if avail < 0 {
		avail = 0
	}

	pos := base + t.lfoValue(p.LFOWaveform, p.LFORate, elapsed)*avail
	maxPos := math.Max(bufDur-grainDur, 0)

	created := 0

	for range n {
		gp := p
		gPos := pos
		when := tickTime

		if p.Spread > 0 {
			gPos += t.uniform() * p.Spread * bufDur * 0.5
			gp.PlaybackRate = clamp(p.PlaybackRate*(1+t.uniform()*p.Spread*0.5), t.minRate, t.maxRate)
			gp.PanControl = clamp(p.PanControl+t.uniform()*p.Spread*2, -1, 1)
			when += t.uniform() * p.Spread * timeJitterSeconds
			gPos += t.uniform() * fixedPositionJitter * grainDur
		}

		gPos = clamp(gPos, 0, maxPos)

		if _, err := t.m.CreateGrain(buf, gp, when, grainDur, gPos); err != nil {
			t.failed++
			continue
		}

		t.fired++
		created++
	}

	return created
}

// lfoValue maps elapsed time to the position sweep factor in [0, 1].
func (t *Trigger) lfoValue(w Waveform, rate, elapsed float64) float64 {
	switch w {
	case WaveTriangle:
		return 1 - math.Abs(math.Mod(rate*elapsed, 2)-1)
	case WaveSquare:
		if math.Mod(rate*elapsed, 1) < 0.5 {
			return 0
		}

		return 1
	case WaveRandom:
		return t.rng.Float64()
	default:
		return (math.Sin(2*math.Pi*rate*elapsed) + 1) / 2
	}
}

// uniform draws from [-1, 1).
func (t *Trigger) uniform() float64 {
	return t.rng.Float64()*2 - 1
}

// FiredCount returns the number of grains this trigger has started.
func (t *Trigger) FiredCount() uint64 { return t.fired }

// FailedCount returns the number of grain attempts that failed.
func (t *Trigger) FailedCount() uint64 { return t.failed }
