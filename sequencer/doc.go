// Package sequencer drives grain triggers from a 16-step pattern
// clock. Each slot pairs a sample buffer with grain parameters and a
// step pattern; on every due tick the sequencer fires a grain burst for
// each armed, unmuted slot and then drains the manager's cleanup queue.
//
// Core types:
//   - Sequencer: the step clock; Advance fires all ticks due by now.
//   - Slot: one pattern lane (buffer, grain parameters, 16 steps, mute).
//
// A Sequencer is driven from a single goroutine; it shares the voice
// manager's thread safety for everything downstream.
package sequencer
