package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cwbudde/algo-granular/grain"
	"github.com/cwbudde/algo-granular/graph"
	"github.com/cwbudde/algo-granular/sample"
	"github.com/cwbudde/algo-granular/sequencer"
)

// sessionConfig is the JSON session file: global tempo and master
// volume plus one lane entry per sequencer slot. Omitted fields keep
// their defaults, a nil MasterVolume leaves the engine untouched.
type sessionConfig struct {
	Tempo        float64      `json:"tempo"`
	MasterVolume *float64     `json:"masterVolume"`
	Slots        []slotConfig `json:"slots"`
}

type slotConfig struct {
	Sample  string        `json:"sample"`
	Pattern string        `json:"pattern"`
	Muted   bool          `json:"muted"`
	Params  *grain.Params `json:"params"`
}

// UnmarshalJSON seeds the lane's grain parameters with defaults so a
// session file only has to name the fields it changes.
func (sc *slotConfig) UnmarshalJSON(data []byte) error {
	type plain slotConfig

	defaults := grain.DefaultParams()
	tmp := plain{Params: &defaults}

	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}

	*sc = slotConfig(tmp)

	return nil
}

func loadSession(path string) (*sessionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var cfg sessionConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}

	return &cfg, nil
}

// applySession pushes a session into the running stack. Lanes beyond
// the configured ones are cleared so a shrunk session silences the
// slots it no longer mentions.
func applySession(seq *sequencer.Sequencer, e *graph.Engine, samples *sampleCache, cfg *sessionConfig) error {
	if cfg.Tempo > 0 {
		if err := seq.SetTempo(cfg.Tempo); err != nil {
			return err
		}
	}

	if cfg.MasterVolume != nil {
		if err := e.SetMasterVolume(*cfg.MasterVolume); err != nil {
			return err
		}
	}

	if len(cfg.Slots) > seq.SlotCount() {
		return fmt.Errorf("session has %d lanes, sequencer has %d slots", len(cfg.Slots), seq.SlotCount())
	}

	for i := range seq.SlotCount() {
		if i >= len(cfg.Slots) {
			if err := seq.SetSlot(i, sequencer.Slot{}); err != nil {
				return err
			}
			continue
		}

		slot, err := buildSlot(samples, cfg.Slots[i])
		if err != nil {
			return fmt.Errorf("lane %d: %w", i, err)
		}

		if err := seq.SetSlot(i, slot); err != nil {
			return fmt.Errorf("lane %d: %w", i, err)
		}
	}

	return nil
}

func buildSlot(samples *sampleCache, sc slotConfig) (sequencer.Slot, error) {
	slot := sequencer.Slot{
		Params: grain.DefaultParams(),
		Muted:  sc.Muted,
	}

	if sc.Params != nil {
		slot.Params = *sc.Params
	}

	steps, err := parsePattern(sc.Pattern)
	if err != nil {
		return sequencer.Slot{}, err
	}
	slot.Pattern = steps

	if sc.Sample == "" {
		return slot, nil
	}

	buf, err := samples.load(sc.Sample)
	if err != nil {
		return sequencer.Slot{}, err
	}
	slot.Buffer = buf

	return slot, nil
}

// parsePattern reads a 16-step string: 'x', 'X' or '1' arm a step,
// '.', '-', '_' or '0' leave it silent. Spaces are skipped and an
// empty string arms every step.
func parsePattern(s string) ([sequencer.StepCount]bool, error) {
	var steps [sequencer.StepCount]bool

	if s == "" {
		for i := range steps {
			steps[i] = true
		}
		return steps, nil
	}

	n := 0
	for _, r := range s {
		switch r {
		case ' ', '\t':
			continue
		case 'x', 'X', '1':
			if n < len(steps) {
				steps[n] = true
			}
		case '.', '-', '_', '0':
		default:
			return [sequencer.StepCount]bool{}, fmt.Errorf("pattern step %d: unexpected %q", n, r)
		}
		n++
	}

	if n != sequencer.StepCount {
		return [sequencer.StepCount]bool{}, fmt.Errorf("pattern must have %d steps: %d", sequencer.StepCount, n)
	}

	return steps, nil
}

// sampleCache loads each sample file once per process so a session
// reload does not hit the disk for unchanged lanes.
type sampleCache struct {
	bufs map[string]*sample.Buffer
}

func newSampleCache() *sampleCache {
	return &sampleCache{bufs: make(map[string]*sample.Buffer)}
}

func (c *sampleCache) load(path string) (*sample.Buffer, error) {
	if buf, ok := c.bufs[path]; ok {
		return buf, nil
	}

	buf, err := sample.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	c.bufs[path] = buf

	return buf, nil
}
