package input

import (
	"sync"
	"time"
)

// Clock exposes the current time for rate limiting decisions.
type Clock interface {
	Now() time.Time
}

// systemClock relies on time.Now for production code paths.
type systemClock struct{}

// Now implements Clock by delegating to time.Now.
func (systemClock) Now() time.Time { return time.Now() }

// GateConfig controls the freshness and throughput gates applied to session frames.
type GateConfig struct {
	MaxAge      time.Duration
	MinInterval time.Duration
}

// DropReason enumerates why a frame was rejected by the gate.
type DropReason string

const (
	DropReasonNone        DropReason = ""
	DropReasonSequence    DropReason = "sequence"
	DropReasonStale       DropReason = "stale"
	DropReasonRateLimited DropReason = "rate_limit"
)

// String returns the textual representation of the drop reason.
func (r DropReason) String() string { return string(r) }

// Decision summarises whether a frame passed validation.
type Decision struct {
	Accepted bool
	Reason   DropReason
	Delay    time.Duration
}

// Frame captures the metadata required to validate an inbound key frame.
type Frame struct {
	SessionID  string
	SequenceID uint64
	SentAt     time.Time
}

type sessionState struct {
	lastSequence uint64
	lastAccepted time.Time
}

// DropCounters aggregates per-reason drop counts.
type DropCounters struct {
	Sequence    uint64 `json:"sequence"`
	Stale       uint64 `json:"stale"`
	RateLimited uint64 `json:"rate_limited"`
}

// Metrics stores per-session drop counters for diagnostics.
type Metrics struct {
	mu    sync.RWMutex
	drops map[string]DropCounters
}

func newMetrics() *Metrics {
	return &Metrics{drops: make(map[string]DropCounters)}
}

// observe increments the counter for the supplied reason.
func (m *Metrics) observe(sessionID string, reason DropReason) {
	if m == nil || sessionID == "" || reason == DropReasonNone {
		return
	}
	//1.- Lock while mutating the counters so concurrent updates stay consistent.
	m.mu.Lock()
	current := m.drops[sessionID]
	switch reason {
	case DropReasonSequence:
		current.Sequence++
	case DropReasonStale:
		current.Stale++
	case DropReasonRateLimited:
		current.RateLimited++
	}
	m.drops[sessionID] = current
	m.mu.Unlock()
}

// snapshot returns a deep copy of the counters for external consumption.
func (m *Metrics) snapshot() map[string]DropCounters {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.drops) == 0 {
		return nil
	}
	clone := make(map[string]DropCounters, len(m.drops))
	for sessionID, counters := range m.drops {
		clone[sessionID] = counters
	}
	return clone
}

// forget removes a session's counters when the connection closes.
func (m *Metrics) forget(sessionID string) {
	if m == nil || sessionID == "" {
		return
	}
	m.mu.Lock()
	delete(m.drops, sessionID)
	m.mu.Unlock()
}

// Gate validates sequencing, freshness, and throughput for inbound key frames.
type Gate struct {
	mu       sync.Mutex
	cfg      GateConfig
	clock    Clock
	metrics  *Metrics
	sessions map[string]*sessionState
}

// GateOption customises gate construction.
type GateOption func(*Gate)

// WithClock overrides the clock used for latency calculations.
func WithClock(clock Clock) GateOption {
	return func(g *Gate) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// NewGate constructs a gate with the supplied configuration.
func NewGate(cfg GateConfig, opts ...GateOption) *Gate {
	//1.- Normalise negative intervals to disable the corresponding checks gracefully.
	if cfg.MaxAge < 0 {
		cfg.MaxAge = 0
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	gate := &Gate{
		cfg:      cfg,
		clock:    systemClock{},
		metrics:  newMetrics(),
		sessions: make(map[string]*sessionState),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(gate)
		}
	}
	return gate
}

// Evaluate applies sequencing, freshness, and throughput guards to the frame.
func (g *Gate) Evaluate(frame Frame) Decision {
	decision := Decision{Accepted: true}
	if g == nil || frame.SessionID == "" {
		return decision
	}
	now := g.clock.Now()
	if !frame.SentAt.IsZero() {
		//1.- Compute the wall-clock delay between capture and arrival for diagnostics.
		delay := now.Sub(frame.SentAt)
		if delay < 0 {
			delay = 0
		}
		decision.Delay = delay
	}

	g.mu.Lock()
	state := g.sessions[frame.SessionID]
	if state == nil {
		//2.- Track the newly observed session to enforce future sequencing and rate limits.
		state = &sessionState{}
		g.sessions[frame.SessionID] = state
	}

	switch {
	case frame.SequenceID == 0:
		decision = Decision{Accepted: false, Reason: DropReasonSequence, Delay: decision.Delay}
	case state.lastSequence == 0:
		//3.- The first frame for a session always passes baseline checks.
		state.lastSequence = frame.SequenceID
		state.lastAccepted = now
	default:
		if frame.SequenceID <= state.lastSequence {
			decision = Decision{Accepted: false, Reason: DropReasonSequence, Delay: decision.Delay}
			break
		}
		interval := now.Sub(state.lastAccepted)
		if g.cfg.MinInterval > 0 && interval < g.cfg.MinInterval {
			decision = Decision{Accepted: false, Reason: DropReasonRateLimited, Delay: decision.Delay}
			break
		}
		if g.cfg.MaxAge > 0 && decision.Delay > g.cfg.MaxAge {
			decision = Decision{Accepted: false, Reason: DropReasonStale, Delay: decision.Delay}
			break
		}
		//4.- Promote the frame as the latest accepted event when it passes all gates.
		state.lastSequence = frame.SequenceID
		state.lastAccepted = now
	}
	g.mu.Unlock()

	if !decision.Accepted {
		g.metrics.observe(frame.SessionID, decision.Reason)
	}
	return decision
}

// Forget clears cached sequencing and metrics for a disconnected session.
func (g *Gate) Forget(sessionID string) {
	if g == nil || sessionID == "" {
		return
	}
	g.mu.Lock()
	delete(g.sessions, sessionID)
	g.mu.Unlock()
	g.metrics.forget(sessionID)
}

// Metrics returns a snapshot of the latest drop counters.
func (g *Gate) Metrics() map[string]DropCounters {
	if g == nil {
		return nil
	}
	return g.metrics.snapshot()
}
