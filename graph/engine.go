package graph

import (
	"fmt"
	"math"
	"sync"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/cwbudde/algo-granular/grain"
	"github.com/cwbudde/algo-granular/sample"
)

const (
	defaultSampleRate = 44100.0
	defaultBlockSize  = 512
	defaultCutoff     = 350.0

	minSampleRate = 8000.0
	maxSampleRate = 192000.0
	minBlockSize  = 16
	maxBlockSize  = 8192

	minCutoff             = 10.0
	cutoffNyquistFraction = 0.45
)

type engineConfig struct {
	sampleRate float64
	blockSize  int
}

func defaultEngineConfig() engineConfig {
	return engineConfig{
		sampleRate: defaultSampleRate,
		blockSize:  defaultBlockSize,
	}
}

// EngineOption configures an Engine at construction time.
type EngineOption func(*engineConfig) error

// WithSampleRate sets the render sample rate in Hz, in [8000, 192000].
func WithSampleRate(rate float64) EngineOption {
	return func(cfg *engineConfig) error {
		if rate < minSampleRate || rate > maxSampleRate || math.IsNaN(rate) || math.IsInf(rate, 0) {
			return fmt.Errorf("sample rate must be in [%g, %g]: %f", minSampleRate, maxSampleRate, rate)
		}

		cfg.sampleRate = rate

		return nil
	}
}

// WithBlockSize sets the internal render block length in frames, in
// [16, 8192].
func WithBlockSize(frames int) EngineOption {
	return func(cfg *engineConfig) error {
		if frames < minBlockSize || frames > maxBlockSize {
			return fmt.Errorf("block size must be in [%d, %d]: %d", minBlockSize, maxBlockSize, frames)
		}

		cfg.blockSize = frames

		return nil
	}
}

// Engine is the offline render backend: it creates signal nodes for the
// voice manager, advances the audio clock block by block, and mixes all
// sounding grains to stereo. All methods are safe for concurrent use.
type Engine struct {
	mu      sync.Mutex
	rate    float64
	frames  int64
	volume  float64
	master  *masterNode
	sources []*sourceNode

	mono []float64
	env  []float64
	wet  []float64
	busL []float64
	busR []float64
}

// NewEngine creates a render engine.
func NewEngine(opts ...EngineOption) (*Engine, error) {
	cfg := defaultEngineConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Engine{
		rate:   cfg.sampleRate,
		volume: 1,
		master: &masterNode{},
		mono:   make([]float64, cfg.blockSize),
		env:    make([]float64, cfg.blockSize),
		wet:    make([]float64, cfg.blockSize),
		busL:   make([]float64, cfg.blockSize),
		busR:   make([]float64, cfg.blockSize),
	}, nil
}

// SampleRate returns the engine sample rate in Hz.
func (e *Engine) SampleRate() float64 { return e.rate }

// Now returns the audio clock in seconds: frames rendered so far over
// the sample rate.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return float64(e.frames) / e.rate
}

// NewTriple creates an unconnected gain/filter/panner node set.
func (e *Engine) NewTriple() (grain.NodeTriple, error) {
	return grain.NodeTriple{
		Gain:   &gainNode{e: e, gain: 1},
		Filter: newFilterNode(e),
		Pan:    &panNode{e: e},
	}, nil
}

// NewSource creates a playback source reading buf at the given rate and
// registers it with the render loop.
func (e *Engine) NewSource(buf *sample.Buffer, playbackRate float64) (grain.Source, error) {
	if buf == nil {
		return nil, fmt.Errorf("source buffer must not be nil")
	}

	if playbackRate <= 0 || math.IsNaN(playbackRate) || math.IsInf(playbackRate, 0) {
		return nil, fmt.Errorf("source playback rate must be > 0: %f", playbackRate)
	}

	s := &sourceNode{e: e, buf: buf, inc: playbackRate * buf.SampleRate() / e.rate}

	e.mu.Lock()
	e.sources = append(e.sources, s)
	e.mu.Unlock()

	return s, nil
}

// Master returns the terminal mix node grain chains connect to.
func (e *Engine) Master() grain.Node { return e.master }

// SetMasterVolume sets the output level applied after mixing, in [0, 1].
func (e *Engine) SetMasterVolume(level float64) error {
	if level < 0 || level > 1 || math.IsNaN(level) || math.IsInf(level, 0) {
		return fmt.Errorf("master volume must be in [0, 1]: %f", level)
	}

	e.mu.Lock()
	e.volume = level
	e.mu.Unlock()

	return nil
}

// MasterVolume returns the output level.
func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.volume
}

// ActiveSources returns the number of sources not yet finished or
// stopped. Sources are pruned lazily during rendering.
func (e *Engine) ActiveSources() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0

	for _, s := range e.sources {
		if !s.stopped {
			n++
		}
	}

	return n
}

// RenderStereo renders len(left) frames into left and right and
// advances the clock. The slices must have equal length.
func (e *Engine) RenderStereo(left, right []float64) error {
	if len(left) != len(right) {
		return fmt.Errorf("render channel lengths must match: %d != %d", len(left), len(right))
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for start := 0; start < len(left); start += len(e.mono) {
		n := min(len(e.mono), len(left)-start)
		e.renderBlock(left[start:start+n], right[start:start+n])
	}

	return nil
}

// RenderSeconds renders the given span and returns fresh left/right
// blocks.
func (e *Engine) RenderSeconds(seconds float64) ([]float64, []float64, error) {
	if seconds < 0 || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return nil, nil, fmt.Errorf("render span must be >= 0: %f", seconds)
	}

	frames := int(math.Round(seconds * e.rate))
	left := make([]float64, frames)
	right := make([]float64, frames)

	if err := e.RenderStereo(left, right); err != nil {
		return nil, nil, err
	}

	return left, right, nil
}

func (e *Engine) renderBlock(left, right []float64) {
	n := len(left)
	busL := e.busL[:n]
	busR := e.busR[:n]
	clear(busL)
	clear(busR)

	t0 := e.frames
	keep := e.sources[:0]

	for _, src := range e.sources {
		if src.stopped {
			continue
		}

		keep = append(keep, src)

		filter, pan, gainStage, ok := src.chain(e.master)
		if !ok {
			continue
		}

		mono := e.mono[:n]
		if !src.renderInto(mono, t0) {
			continue
		}

		filter.processBlock(mono)

		env := e.env[:n]
		gainStage.fillGain(env, t0, e.rate)
		vecmath.MulBlockInPlace(mono, env)

		gl, gr := pan.gains()
		wet := e.wet[:n]

		vecmath.ScaleBlock(wet, mono, gl)
		vecmath.AddBlockInPlace(busL, wet)
		vecmath.ScaleBlock(wet, mono, gr)
		vecmath.AddBlockInPlace(busR, wet)
	}

	// Drop sources that finished or were stopped before this block.
	for i := len(keep); i < len(e.sources); i++ {
		e.sources[i] = nil
	}

	e.sources = keep

	vecmath.ScaleBlock(left, busL, e.volume)
	vecmath.ScaleBlock(right, busR, e.volume)
	clampBlock(left)
	clampBlock(right)

	e.frames += int64(n)
}

// clampBlock hard-limits a block to [-1, 1].
func clampBlock(buf []float64) {
	for i, v := range buf {
		if v > 1 {
			buf[i] = 1
		} else if v < -1 {
			buf[i] = -1
		}
	}
}
