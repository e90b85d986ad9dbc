package sequencer

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-granular/grain"
	"github.com/cwbudde/algo-granular/sample"
)

// StepCount is the fixed pattern length in sixteenth-note steps.
const StepCount = 16

const (
	defaultTempo     = 120.0
	defaultSlotCount = 8

	minTempo     = 20.0
	maxTempo     = 300.0
	maxSlotCount = 64

	// maxCatchUpTicks bounds the burst fired after a stall; ticks
	// beyond it are dropped and the clock resynced.
	maxCatchUpTicks = 64
)

// Slot is one pattern lane: the sample to granulate, the grain
// parameters for its bursts, the armed steps, and a mute switch. A slot
// with a nil buffer is silent.
type Slot struct {
	Buffer  *sample.Buffer
	Params  grain.Params
	Pattern [StepCount]bool
	Muted   bool
}

type sequencerConfig struct {
	tempo float64
	slots int
	seed  int64
}

func defaultSequencerConfig() sequencerConfig {
	return sequencerConfig{
		tempo: defaultTempo,
		slots: defaultSlotCount,
		seed:  1,
	}
}

// SequencerOption configures a Sequencer at construction time.
type SequencerOption func(*sequencerConfig) error

// WithTempo sets the pattern tempo in BPM, in [20, 300].
func WithTempo(bpm float64) SequencerOption {
	return func(cfg *sequencerConfig) error {
		if err := validTempo(bpm); err != nil {
			return err
		}

		cfg.tempo = bpm

		return nil
	}
}

// WithSlotCount sets the number of pattern lanes, in [1, 64].
func WithSlotCount(n int) SequencerOption {
	return func(cfg *sequencerConfig) error {
		if n < 1 || n > maxSlotCount {
			return fmt.Errorf("slot count must be in [1, %d]: %d", maxSlotCount, n)
		}

		cfg.slots = n

		return nil
	}
}

// WithSeed seeds the grain trigger used for all slots.
func WithSeed(seed int64) SequencerOption {
	return func(cfg *sequencerConfig) error {
		cfg.seed = seed

		return nil
	}
}

func validTempo(bpm float64) error {
	if bpm < minTempo || bpm > maxTempo || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fmt.Errorf("tempo must be in [%g, %g] BPM: %f", minTempo, maxTempo, bpm)
	}

	return nil
}

// Sequencer is a 16-step pattern clock feeding grain bursts into a
// voice manager. Drive it from a single goroutine.
type Sequencer struct {
	manager *grain.Manager
	trigger *grain.Trigger

	tempo float64
	slots []Slot

	running   bool
	startTime float64
	nextTick  float64
	step      int
	ticks     uint64
	dropped   uint64
}

// NewSequencer creates a sequencer on the given voice manager.
func NewSequencer(m *grain.Manager, opts ...SequencerOption) (*Sequencer, error) {
	if m == nil {
		return nil, fmt.Errorf("sequencer manager must not be nil")
	}

	cfg := defaultSequencerConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	trigger, err := grain.NewTrigger(m, grain.WithTriggerSeed(cfg.seed))
	if err != nil {
		return nil, err
	}

	return &Sequencer{
		manager: m,
		trigger: trigger,
		tempo:   cfg.tempo,
		slots:   make([]Slot, cfg.slots),
	}, nil
}

// SlotCount returns the number of pattern lanes.
func (s *Sequencer) SlotCount() int { return len(s.slots) }

// SetSlot replaces lane i. A slot carrying a buffer must also carry
// valid grain parameters; an empty Slot clears the lane.
func (s *Sequencer) SetSlot(i int, slot Slot) error {
	if i < 0 || i >= len(s.slots) {
		return fmt.Errorf("slot index must be in [0, %d): %d", len(s.slots), i)
	}

	if slot.Buffer != nil {
		if err := slot.Params.Validate(); err != nil {
			return err
		}
	}

	s.slots[i] = slot

	return nil
}

// SlotAt returns a copy of lane i.
func (s *Sequencer) SlotAt(i int) (Slot, error) {
	if i < 0 || i >= len(s.slots) {
		return Slot{}, fmt.Errorf("slot index must be in [0, %d): %d", len(s.slots), i)
	}

	return s.slots[i], nil
}

// SetMuted flips lane i's mute switch.
func (s *Sequencer) SetMuted(i int, muted bool) error {
	if i < 0 || i >= len(s.slots) {
		return fmt.Errorf("slot index must be in [0, %d): %d", len(s.slots), i)
	}

	s.slots[i].Muted = muted

	return nil
}

// SetTempo changes the tempo; the new step length applies from the next
// tick.
func (s *Sequencer) SetTempo(bpm float64) error {
	if err := validTempo(bpm); err != nil {
		return err
	}

	s.tempo = bpm

	return nil
}

// Tempo returns the tempo in BPM.
func (s *Sequencer) Tempo() float64 { return s.tempo }

// StepDuration returns the length of one sixteenth-note step in
// seconds.
func (s *Sequencer) StepDuration() float64 { return 60 / s.tempo / 4 }

// Step returns the pattern position the next tick will play.
func (s *Sequencer) Step() int { return s.step }

// Running reports whether the clock is started.
func (s *Sequencer) Running() bool { return s.running }

// TickCount returns the number of ticks fired since Start.
func (s *Sequencer) TickCount() uint64 { return s.ticks }

// DroppedTicks returns the number of ticks skipped after stalls.
func (s *Sequencer) DroppedTicks() uint64 { return s.dropped }

// Start arms the clock: the first tick fires at time now.
func (s *Sequencer) Start(now float64) {
	s.running = true
	s.startTime = now
	s.nextTick = now
	s.step = 0
	s.ticks = 0
}

// Stop halts the clock. Voices already sounding are left to finish;
// use the manager's StopAll to cut them.
func (s *Sequencer) Stop() {
	s.running = false
}

// Advance fires every tick due at or before now, then drains the voice
// manager's cleanup queue. It returns the number of grains started.
// After a stall longer than 64 steps the remaining missed ticks are
// dropped and the clock resyncs to now.
func (s *Sequencer) Advance(now float64) int {
	if !s.running {
		return 0
	}

	fired := 0

	for ticks := 0; s.nextTick <= now; ticks++ {
		if ticks >= maxCatchUpTicks {
			missed := uint64((now - s.nextTick) / s.StepDuration())
			s.dropped += missed + 1
			s.step = (s.step + int(missed) + 1) % StepCount
			s.nextTick += (float64(missed) + 1) * s.StepDuration()

			break
		}

		fired += s.tick(s.nextTick)
		s.step = (s.step + 1) % StepCount
		s.nextTick += s.StepDuration()
	}

	s.manager.DrainDue(now)

	return fired
}

// tick fires one burst per armed, unmuted slot at the given time.
func (s *Sequencer) tick(at float64) int {
	s.ticks++
	fired := 0

	for i := range s.slots {
		slot := &s.slots[i]
		if slot.Muted || slot.Buffer == nil || !slot.Pattern[s.step] {
			continue
		}

		fired += s.trigger.Fire(slot.Buffer, slot.Params, at, at-s.startTime)
	}

	return fired
}
