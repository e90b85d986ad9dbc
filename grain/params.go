package grain

import (
	"fmt"
	"math"
)

// Waveform selects the LFO shape used to sweep the grain read position.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveTriangle
	WaveSquare
	WaveRandom

	numWaveforms
)

var waveformNames = [numWaveforms]string{"Sine", "Triangle", "Square", "Random"}

// String returns the waveform's display name.
func (w Waveform) String() string {
	if w < 0 || w >= numWaveforms {
		return fmt.Sprintf("Waveform(%d)", int(w))
	}

	return waveformNames[w]
}

const (
	minPlaybackRate  = 0.0
	maxPlaybackRate  = 16.0
	maxCutoffFreq    = 24000.0
	maxEnvelopeMs    = 10000.0
	maxGrainSizeMs   = 10000.0
	maxLFORateHz     = 100.0
	maxGrainsPerStep = 100
)

// Params is the per-grain synthesis parameter snapshot supplied by the
// caller. A grain copies the values it needs at creation time; later
// mutation of a Params value never affects voices already playing.
type Params struct {
	PlaybackRate       float64  `json:"playbackRate"`
	CutoffFreq         float64  `json:"cutoffFreq"`
	AttackTimeMs       float64  `json:"attackTimeMs"`
	DecayTimeMs        float64  `json:"decayTimeMs"`
	EnvelopeShape      Shape    `json:"envelopeShape"`
	Volume             float64  `json:"volume"`
	PanControl         float64  `json:"panControl"`
	PanRandom          float64  `json:"panRandom"`
	GrainSizeMs        float64  `json:"grainSizeMs"`
	StartOffsetPercent float64  `json:"startOffsetPercent"`
	Spread             float64  `json:"spread"`
	GrainsPerStep      int      `json:"grainsPerStep"`
	LFOWaveform        Waveform `json:"lfoWaveform"`
	LFORate            float64  `json:"lfoRate"`
}

// DefaultParams returns a musically neutral starting point.
func DefaultParams() Params {
	return Params{
		PlaybackRate:       1.0,
		CutoffFreq:         20.0,
		AttackTimeMs:       10.0,
		DecayTimeMs:        40.0,
		EnvelopeShape:      ShapeLinear,
		Volume:             0.8,
		PanControl:         0.0,
		PanRandom:          0.0,
		GrainSizeMs:        90.0,
		StartOffsetPercent: 0.0,
		Spread:             0.2,
		GrainsPerStep:      3,
		LFOWaveform:        WaveSine,
		LFORate:            0.25,
	}
}

// Validate reports the first out-of-range field, if any.
func (p Params) Validate() error {
	if p.PlaybackRate <= minPlaybackRate || p.PlaybackRate > maxPlaybackRate ||
		math.IsNaN(p.PlaybackRate) || math.IsInf(p.PlaybackRate, 0) {
		return fmt.Errorf("playback rate must be in (%g, %g]: %f", minPlaybackRate, maxPlaybackRate, p.PlaybackRate)
	}

	if p.CutoffFreq < 0 || p.CutoffFreq > maxCutoffFreq || math.IsNaN(p.CutoffFreq) || math.IsInf(p.CutoffFreq, 0) {
		return fmt.Errorf("cutoff frequency must be in [0, %g]: %f", maxCutoffFreq, p.CutoffFreq)
	}

	if p.AttackTimeMs < 0 || p.AttackTimeMs > maxEnvelopeMs || math.IsNaN(p.AttackTimeMs) || math.IsInf(p.AttackTimeMs, 0) {
		return fmt.Errorf("attack time must be in [0, %g] ms: %f", maxEnvelopeMs, p.AttackTimeMs)
	}

	if p.DecayTimeMs < 0 || p.DecayTimeMs > maxEnvelopeMs || math.IsNaN(p.DecayTimeMs) || math.IsInf(p.DecayTimeMs, 0) {
		return fmt.Errorf("decay time must be in [0, %g] ms: %f", maxEnvelopeMs, p.DecayTimeMs)
	}

	if p.EnvelopeShape < 0 || p.EnvelopeShape >= numShapes {
		return fmt.Errorf("envelope shape must be in [0, %d]: %d", numShapes-1, int(p.EnvelopeShape))
	}

	if p.Volume < 0 || p.Volume > 1 || math.IsNaN(p.Volume) || math.IsInf(p.Volume, 0) {
		return fmt.Errorf("volume must be in [0, 1]: %f", p.Volume)
	}

	if p.PanControl < -1 || p.PanControl > 1 || math.IsNaN(p.PanControl) || math.IsInf(p.PanControl, 0) {
		return fmt.Errorf("pan control must be in [-1, 1]: %f", p.PanControl)
	}

	if p.PanRandom < 0 || p.PanRandom > 1 || math.IsNaN(p.PanRandom) || math.IsInf(p.PanRandom, 0) {
		return fmt.Errorf("pan random must be in [0, 1]: %f", p.PanRandom)
	}

	if p.GrainSizeMs <= 0 || p.GrainSizeMs > maxGrainSizeMs || math.IsNaN(p.GrainSizeMs) || math.IsInf(p.GrainSizeMs, 0) {
		return fmt.Errorf("grain size must be in (0, %g] ms: %f", maxGrainSizeMs, p.GrainSizeMs)
	}

	if p.StartOffsetPercent < 0 || p.StartOffsetPercent > 100 ||
		math.IsNaN(p.StartOffsetPercent) || math.IsInf(p.StartOffsetPercent, 0) {
		return fmt.Errorf("start offset must be in [0, 100] percent: %f", p.StartOffsetPercent)
	}

	if p.Spread < 0 || p.Spread > 1 || math.IsNaN(p.Spread) || math.IsInf(p.Spread, 0) {
		return fmt.Errorf("spread must be in [0, 1]: %f", p.Spread)
	}

	if p.GrainsPerStep < 0 || p.GrainsPerStep > maxGrainsPerStep {
		return fmt.Errorf("grains per step must be in [0, %d]: %d", maxGrainsPerStep, p.GrainsPerStep)
	}

	if p.LFOWaveform < 0 || p.LFOWaveform >= numWaveforms {
		return fmt.Errorf("LFO waveform must be in [0, %d]: %d", numWaveforms-1, int(p.LFOWaveform))
	}

	if p.LFORate < 0 || p.LFORate > maxLFORateHz || math.IsNaN(p.LFORate) || math.IsInf(p.LFORate, 0) {
		return fmt.Errorf("LFO rate must be in [0, %g] Hz: %f", maxLFORateHz, p.LFORate)
	}

	return nil
}
