package grain

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/cwbudde/algo-granular/sample"
)

const (
	defaultMaxVoices    = 64
	defaultBaseGain     = 0.8
	defaultCleanupSlack = 0.1
	defaultManagerSeed  = 1

	maxManagerVoices = 4096
	maxCleanupSlack  = 5.0
)

// ErrManagerDestroyed is returned by operations on a destroyed manager.
var ErrManagerDestroyed = errors.New("voice manager destroyed")

type managerConfig struct {
	maxVoices int
	baseGain  float64
	slack     float64
	seed      int64
}

func defaultManagerConfig() managerConfig {
	return managerConfig{
		maxVoices: defaultMaxVoices,
		baseGain:  defaultBaseGain,
		slack:     defaultCleanupSlack,
		seed:      defaultManagerSeed,
	}
}

// ManagerOption configures a Manager at construction time.
type ManagerOption func(*managerConfig) error

// WithMaxVoices sets the polyphony cap in [1, 4096].
func WithMaxVoices(n int) ManagerOption {
	return func(cfg *managerConfig) error {
		if n < 1 || n > maxManagerVoices {
			return fmt.Errorf("max voices must be in [1, %d]: %d", maxManagerVoices, n)
		}

		cfg.maxVoices = n

		return nil
	}
}

// WithBaseGain sets the constant factor multiplied with each grain's
// volume to form the envelope peak, in (0, 1].
func WithBaseGain(gain float64) ManagerOption {
	return func(cfg *managerConfig) error {
		if gain <= 0 || gain > 1 || math.IsNaN(gain) || math.IsInf(gain, 0) {
			return fmt.Errorf("base gain must be in (0, 1]: %f", gain)
		}

		cfg.baseGain = gain

		return nil
	}
}

// WithCleanupSlack sets the extra seconds added to a grain's end time
// before its scheduled teardown, in [0, 5].
func WithCleanupSlack(seconds float64) ManagerOption {
	return func(cfg *managerConfig) error {
		if seconds < 0 || seconds > maxCleanupSlack || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
			return fmt.Errorf("cleanup slack must be in [0, %g]: %f", maxCleanupSlack, seconds)
		}

		cfg.slack = seconds

		return nil
	}
}

// WithManagerSeed seeds the RNG used for the per-grain pan-random draw.
func WithManagerSeed(seed int64) ManagerOption {
	return func(cfg *managerConfig) error {
		cfg.seed = seed

		return nil
	}
}

// Grain is a handle to one in-flight sound event. Handles stay valid
// after the voice ends: they simply report inactive.
type Grain struct {
	m     *Manager
	slot  int32
	gen   uint32
	start float64
	end   float64
}

// IsActive reports whether the grain's voice is still sounding. The
// transition to inactive happens exactly once and is never reverted.
func (g *Grain) IsActive() bool {
	if g == nil || g.m == nil {
		return false
	}

	g.m.mu.Lock()
	defer g.m.mu.Unlock()

	if g.slot < 0 || int(g.slot) >= len(g.m.reg.slots) {
		return false
	}

	s := &g.m.reg.slots[g.slot]

	return s.gen == g.gen && s.active
}

// StartTime returns the grain's scheduled start on the audio clock.
func (g *Grain) StartTime() float64 { return g.start }

// EndTime returns the grain's scheduled end on the audio clock.
func (g *Grain) EndTime() float64 { return g.end }

// Manager owns the voice registry, the node pool, and the cleanup
// queue, and drives every grain through its lifecycle. All methods are
// safe for concurrent use.
type Manager struct {
	mu      sync.Mutex
	backend Backend
	pool    *NodePool
	reg     *voiceRegistry
	clean   *cleanupQueue
	rng     *rand.Rand

	baseGain  float64
	slack     float64
	maxVoices int
	destroyed bool

	created uint64
	dropped uint64
	evicted uint64
}

// NewManager creates a voice manager on the given backend. The node
// pool is pre-allocated to the configured polyphony.
func NewManager(backend Backend, opts ...ManagerOption) (*Manager, error) {
	if backend == nil {
		return nil, fmt.Errorf("manager backend must not be nil")
	}

	cfg := defaultManagerConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	pool, err := NewNodePool(backend, cfg.maxVoices)
	if err != nil {
		return nil, err
	}

	return &Manager{
		backend:   backend,
		pool:      pool,
		reg:       newVoiceRegistry(cfg.maxVoices),
		clean:     newCleanupQueue(cfg.maxVoices),
		rng:       rand.New(rand.NewSource(cfg.seed)),
		baseGain:  cfg.baseGain,
		slack:     cfg.slack,
		maxVoices: cfg.maxVoices,
	}, nil
}

/// CreateGrain builds and schedules one grain: it drains due cleanups,
// evicts the oldest-ending voice when at capacity, wires a pooled node
// triple into source -> filter -> panner -> gain -> master, applies the
// envelope, starts playback, and registers the voice for timed cleanup.
//
// position and duration are in seconds; startTime is on the backend
// clock and is clamped up to now when it lags. A failure in any step
// releases everything acquired so far and drops only this grain.
func (m *Manager) CreateGrain(buf *sample.Buffer, p Params, startTime, duration, position float64) (*Grain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return nil, ErrManagerDestroyed
	}

	now := m.backend.Now()
	m.drainDueLocked(now)

	if err := validateRequest(buf, startTime, duration, position); err != nil {
		m.dropped++
		return nil, err
	}

	if err := p.Validate(); err != nil {
		m.dropped++
		return nil, err
	}

	if startTime < now {
		startTime = now
	}

	for m.reg.count >= m.maxVoices {
		if !m.evictOldestLocked() {
			break
		}
	}

	nodes, err := m.pool.Acquire()
	if err != nil {
		m.dropped++
		return nil, err
	}

	src, err := m.wireVoice(nodes, buf, p, startTime, duration, position)
	if err != nil {
		m.pool.Release(nodes)
		m.dropped++

		return nil, err
	}

	idx, ok := m.reg.claim()
	if !ok {
		src.Stop()
		m.pool.Release(nodes)
		m.dropped++

		return nil, fmt.Errorf("no free voice slot")
	}

	endTime := startTime + duration
	s := m.reg.admit(idx, startTime, endTime, src, nodes)
	s.cleanEnt = m.clean.schedule(endTime+m.slack, idx, s.gen)
	m.created++

	return &Grain{m: m, slot: idx, gen: s.gen, start: startTime, end: endTime}, nil
}

// wireVoice performs the per-grain node configuration: filter cutoff,
// randomized pan, envelope scheduling, chain connection, and source
// start. On failure nothing stays connected.
func (m *Manager) wireVoice(nodes NodeTriple, buf *sample.Buffer, p Params, startTime, duration, position float64) (Source, error) {
	if err := nodes.Filter.SetCutoff(p.CutoffFreq); err != nil {
		return nil, fmt.Errorf("configure filter: %w", err)
	}

	pan := clamp(p.PanControl+(m.rng.Float64()-0.5)*p.PanRandom, -1, 1)
	if err := nodes.Pan.SetPan(pan); err != nil {
		return nil, fmt.Errorf("configure panner: %w", err)
	}

	points, err := Envelope(p.EnvelopeShape, startTime, duration,
		p.AttackTimeMs/1000, p.DecayTimeMs/1000, m.baseGain*p.Volume)
	if err != nil {
		return nil, err
	}

	if err := nodes.Gain.ScheduleGain(points); err != nil {
		return nil, fmt.Errorf("schedule envelope: %w", err)
	}

	src, err := m.backend.NewSource(buf, p.PlaybackRate)
	if err != nil {
		return nil, fmt.Errorf("create source: %w", err)
	}

	if err := connectChain(src, nodes, m.backend.Master()); err != nil {
		src.Stop()
		return nil, err
	}

	if err := src.Start(startTime, position, duration); err != nil {
		src.Stop()
		return nil, fmt.Errorf("start source: %w", err)
	}

	return src, nil
}

func connectChain(src Source, nodes NodeTriple, master Node) error {
	if err := src.Connect(nodes.Filter); err != nil {
		return fmt.Errorf("connect source: %w", err)
	}

	if err := nodes.Filter.Connect(nodes.Pan); err != nil {
		return fmt.Errorf("connect filter: %w", err)
	}

	if err := nodes.Pan.Connect(nodes.Gain); err != nil {
		return fmt.Errorf("connect panner: %w", err)
	}

	if err := nodes.Gain.Connect(master); err != nil {
		return fmt.Errorf("connect gain: %w", err)
	}

	return nil
}

func validateRequest(buf *sample.Buffer, startTime, duration, position float64) error {
	if buf == nil {
		return fmt.Errorf("grain buffer must not be nil")
	}

	if math.IsNaN(startTime) || math.IsInf(startTime, 0) {
		return fmt.Errorf("grain start time must be finite: %f", startTime)
	}

	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return fmt.Errorf("grain duration must be > 0: %f", duration)
	}

	if position < 0 || math.IsNaN(position) || math.IsInf(position, 0) {
		return fmt.Errorf("grain position must be >= 0: %f", position)
	}

	return nil
}

// DrainDue tears down every voice whose scheduled cleanup time is at or
// before now and returns the number reclaimed. The tick driver calls
// this once per tick; CreateGrain also drains on every call.
func (m *Manager) DrainDue(now float64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.drainDueLocked(now)
}

func (m *Manager) drainDueLocked(now float64) int {
	n := 0

	for {
		e, ok := m.clean.due(now)
		if !ok {
			break
		}

		if m.teardownLocked(e.slot, e.gen) {
			n++
		}
	}

	return n
}

// teardownLocked is the single active-to-inactive transition point. It
// is idempotent: a stale slot/generation pair is a no-op.
func (m *Manager) teardownLocked(idx int32, gen uint32) bool {
	if idx < 0 || int(idx) >= len(m.reg.slots) {
		return false
	}

	s := &m.reg.slots[idx]
	if s.gen != gen || !s.active {
		return false
	}

	s.source.Stop()
	m.clean.remove(s.cleanEnt)
	s.cleanEnt = nil
	m.pool.Release(s.nodes)
	m.reg.retire(idx)

	return true
}

// evictOldestLocked steals the voice with the smallest end time.
func (m *Manager) evictOldestLocked() bool {
	e, ok := m.reg.oldest()
	if !ok {
		return false
	}

	if m.teardownLocked(e.slot, e.gen) {
		m.evicted++
		return true
	}

	return false
}

// cleanupGrain tears down a single grain by handle. Calling it twice,
// or for a grain that already ended, has no effect.
func (m *Manager) cleanupGrain(g *Grain) bool {
	if g == nil {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.teardownLocked(g.slot, g.gen)
}

// StopAll synchronously tears down every active voice and leaves the
// cleanup queue empty.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopAllLocked()
}

func (m *Manager) stopAllLocked() {
	for i := range m.reg.slots {
		s := &m.reg.slots[i]
		if s.active {
			m.teardownLocked(int32(i), s.gen)
		}
	}
}

// Destroy stops all voices, drops the pooled node triples, and rejects
// further grain creation. Destroy is idempotent.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return
	}

	m.stopAllLocked()
	m.pool.drain()
	m.destroyed = true
}

// ActiveVoices returns the number of currently active grains.
func (m *Manager) ActiveVoices() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.reg.count
}

// MaxVoices returns the polyphony cap.
func (m *Manager) MaxVoices() int { return m.maxVoices }

// SetMasterVolume sets the backend master output level.
func (m *Manager) SetMasterVolume(level float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.destroyed {
		return ErrManagerDestroyed
	}

	return m.backend.SetMasterVolume(level)
}

// CreatedCount returns the number of grains successfully created.
func (m *Manager) CreatedCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.created
}

// DroppedCount returns the number of grain requests rejected or failed.
func (m *Manager) DroppedCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.dropped
}

// EvictedCount returns the number of voices stolen at capacity.
func (m *Manager) EvictedCount() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.evicted
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}

	if v > hi {
		return hi
	}

	return v
}
