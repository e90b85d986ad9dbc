// Package grain implements a fixed-capacity granular-synthesis voice
// manager: grain creation and scheduling, analytic amplitude envelopes,
// pooled per-grain node triples, and timed cleanup with oldest-first
// voice stealing.
//
// The package depends only on the node capability interfaces declared
// in this package ([Gain], [Filter], [Pan], [Source], [Backend]); any
// audio backend that implements them can host the voices. The graph
// package provides a pure-Go implementation.
//
// Core types:
//
//   - [Envelope]: stateless gain-curve synthesis for eight shapes
//   - [NodePool]: arena-backed pool of {gain, filter, pan} node triples
//   - [Manager]: voice lifecycle, capacity enforcement, cleanup
//   - [Trigger]: per-tick grain fan-out with LFO position sweep and
//     spread jitter
//
// A Manager is safe for concurrent use; Trigger is intended for a
// single scheduling goroutine.
package grain
