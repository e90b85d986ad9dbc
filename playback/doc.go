// Package playback drains a graph engine into an audio sink.
//
// Two sinks share one pull path: Oto plays live through the system
// audio device, Headless renders on the caller's schedule for tests
// and machines without audio hardware. Both consume the engine as
// interleaved little-endian float32 stereo frames, so switching sinks
// never changes what the engine computes.
package playback
