package sample

import (
	"fmt"
	"math"
)

// Buffer holds fixed-length multi-channel audio data at a known sample
// rate. The zero value is not usable; construct with [FromSlices] or
// [Mono]. Buffers are immutable after construction.
type Buffer struct {
	data [][]float64
	rate float64
}

// FromSlices builds a buffer from per-channel sample slices. The data is
// copied, so the caller may reuse the input. All channels must have the
// same non-zero length.
func FromSlices(channels [][]float64, sampleRate float64) (*Buffer, error) {
	if math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) || sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive: %f", sampleRate)
	}

	if len(channels) == 0 {
		return nil, fmt.Errorf("channel count must be at least 1")
	}

	frames := len(channels[0])
	if frames == 0 {
		return nil, fmt.Errorf("frame count must be at least 1")
	}

	data := make([][]float64, len(channels))

	for ch, src := range channels {
		if len(src) != frames {
			return nil, fmt.Errorf("channel %d length %d does not match channel 0 length %d", ch, len(src), frames)
		}

		data[ch] = make([]float64, frames)
		copy(data[ch], src)
	}

	return &Buffer{data: data, rate: sampleRate}, nil
}

// Mono builds a single-channel buffer from one sample slice.
func Mono(samples []float64, sampleRate float64) (*Buffer, error) {
	return FromSlices([][]float64{samples}, sampleRate)
}

// SampleRate returns the buffer's native sample rate in Hz.
func (b *Buffer) SampleRate() float64 { return b.rate }

// Channels returns the channel count.
func (b *Buffer) Channels() int { return len(b.data) }

// Frames returns the per-channel frame count.
func (b *Buffer) Frames() int { return len(b.data[0]) }

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 { return float64(b.Frames()) / b.rate }

// At returns the sample at frame i in channel ch. Out-of-range frames
// read as silence; the channel index must be valid.
func (b *Buffer) At(ch, i int) float64 {
	if i < 0 || i >= len(b.data[ch]) {
		return 0
	}

	return b.data[ch][i]
}

// Lerp reads channel ch at a fractional frame position with linear
// interpolation. Positions outside the buffer read as silence.
func (b *Buffer) Lerp(ch int, pos float64) float64 {
	if pos < 0 {
		return 0
	}

	i := int(pos)
	frac := pos - float64(i)
	s0 := b.At(ch, i)
	s1 := b.At(ch, i+1)

	return s0 + (s1-s0)*frac
}

// MonoLerp reads all channels at a fractional frame position and
// averages them into a single value.
func (b *Buffer) MonoLerp(pos float64) float64 {
	sum := 0.0
	for ch := range b.data {
		sum += b.Lerp(ch, pos)
	}

	return sum / float64(len(b.data))
}
