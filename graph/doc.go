// Package graph is the offline stereo render backend for the grain
// voice manager. It owns the audio clock, builds the per-grain signal
// nodes, and mixes every sounding grain into interleavable left/right
// blocks.
//
// Core types:
//   - Engine: block renderer and clock; implements grain.Backend.
//   - EngineOption: functional options (WithSampleRate, WithBlockSize).
//
// Each grain renders through the fixed chain
//
//	source -> highpass filter -> equal-power panner -> envelope gain -> master
//
// where the source resamples its sample buffer by linear interpolation,
// the filter is an RBJ highpass biquad in Direct Form II Transposed,
// and the gain stage evaluates its scheduled automation curve per
// sample. A chain that is not fully connected down to the master node
// contributes nothing to the mix.
//
// Rendering is driven by RenderStereo; sources silence themselves when
// the clock passes their scheduled end, so a missed cleanup never
// produces stray audio.
package graph
