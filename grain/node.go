package grain

import "github.com/cwbudde/algo-granular/sample"

// Node is the capability every backend signal node provides. Reset
// returns the node to its neutral state: default parameters, no
// scheduled automation, disconnected.
type Node interface {
	Connect(next Node) error
	Disconnect()
	Reset()
}

// Gain is a gain stage with a schedulable automation timeline. Neutral
// state is gain 1 with no automation.
type Gain interface {
	Node

	SetGain(v float64) error
	Gain() float64
	ScheduleGain(points []ControlPoint) error
	Automated() bool
}

// Filter is a highpass filter stage. Neutral state is the backend's
// default cutoff.
type Filter interface {
	Node

	SetCutoff(freq float64) error
	Cutoff() float64
}

// Pan is a stereo panner stage. Neutral state is center (0).
type Pan interface {
	Node

	SetPan(pan float64) error
	Pan() float64
}

// Source is a one-shot playback unit bound to a borrowed sample buffer.
// Start schedules playback at an absolute clock time, reading from
// offset (seconds into the buffer) for duration output seconds. Stop is
// idempotent.
type Source interface {
	Node

	Start(when, offset, duration float64) error
	Stop()
}

// NodeTriple is the pooled per-grain node set. A triple is owned either
// by the pool or by exactly one active grain, never both.
type NodeTriple struct {
	Gain   Gain
	Filter Filter
	Pan    Pan

	slot int32
}

// Backend creates nodes, owns the master output, and exposes the audio
// clock the voice manager schedules against.
type Backend interface {
	NewTriple() (NodeTriple, error)
	NewSource(buf *sample.Buffer, playbackRate float64) (Source, error)
	Master() Node
	SetMasterVolume(level float64) error
	MasterVolume() float64
	Now() float64
}
