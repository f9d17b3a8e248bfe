package timesync

import (
	"sync"
	"time"
)

// SimulatedClock exposes the frame loop's counters.
type SimulatedClock interface {
	Clock() (tick uint64, simulated time.Duration)
}

// Sample is one drift measurement handed to renderers so their local prop
// animation clock can track the service's simulated clock.
type Sample struct {
	ServerTimestampMs    int64  `json:"server_timestamp_ms"`
	SimulatedTimestampMs int64  `json:"simulated_timestamp_ms"`
	RecommendedOffsetMs  int64  `json:"recommended_offset_ms"`
	Tick                 uint64 `json:"tick"`
}

// Tracker derives drift samples from the simulated clock and remembers the
// last offset it recommended.
type Tracker struct {
	clock SimulatedClock
	now   func() time.Time

	mu         sync.Mutex
	lastOffset int64
}

// Option adjusts tracker construction, primarily for tests.
type Option func(*Tracker)

// WithNow overrides the wall clock source.
func WithNow(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker wires the simulated clock into a drift tracker.
func NewTracker(clock SimulatedClock, opts ...Option) *Tracker {
	tracker := &Tracker{clock: clock, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(tracker)
		}
	}
	return tracker
}

// Sample measures the current drift between wall time and the simulated clock.
// Adding the recommended offset to the client's wall clock yields the simulated
// timestamp to evaluate animations against.
func (t *Tracker) Sample() Sample {
	if t == nil || t.clock == nil {
		return Sample{}
	}
	now := t.now()
	tick, simulated := t.clock.Clock()

	serverMs := now.UnixMilli()
	simulatedMs := simulated.Milliseconds()
	offsetMs := simulatedMs - serverMs

	t.mu.Lock()
	t.lastOffset = offsetMs
	t.mu.Unlock()

	return Sample{
		ServerTimestampMs:    serverMs,
		SimulatedTimestampMs: simulatedMs,
		RecommendedOffsetMs:  offsetMs,
		Tick:                 tick,
	}
}

// LastOffsetMs reports the most recently recommended offset.
func (t *Tracker) LastOffsetMs() int64 {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastOffset
}
