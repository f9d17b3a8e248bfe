package simulation

import (
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"wanderhall/walkd/internal/input"
	"wanderhall/walkd/internal/physics"
)

// Session is the per-connection view advanced once per frame. The stepper is
// the only caller of SetBody, which keeps body state single-writer even though
// sessions are created and destroyed on connection goroutines.
type Session interface {
	// Engaged reports whether the pointer-lock activation gate is held.
	Engaged() bool
	// Controls returns the current logical input flags.
	Controls() input.State
	// Orientation returns the camera orientation owned by the mouse-look side.
	Orientation() mgl64.Quat
	// Body returns the current player body.
	Body() physics.Body
	// SetBody commits the frame result and writes the camera position.
	SetBody(physics.Body)
	// PublishPose emits the post-frame pose to the session's renderer.
	PublishPose(body physics.Body, tick uint64, simulatedSeconds float64)
}

// SessionSource lists the live sessions at the start of a frame.
type SessionSource interface {
	Sessions() []Session
}

// Stepper orchestrates one simulation frame: per session it reads input and
// orientation, advances the body through the integrator, commits the result,
// and publishes the pose. Disengaged sessions are skipped entirely so their
// body and camera pose stay untouched.
type Stepper struct {
	integrator *physics.Integrator
	source     SessionSource
	monitor    *TickMonitor

	mu        sync.Mutex
	tick      uint64
	simulated time.Duration
}

// NewStepper wires the integrator and session source into a frame stepper.
func NewStepper(integrator *physics.Integrator, source SessionSource, monitor *TickMonitor) *Stepper {
	if monitor == nil {
		monitor = NewTickMonitor()
	}
	return &Stepper{integrator: integrator, source: source, monitor: monitor}
}

// Advance runs one frame for every live session.
func (s *Stepper) Advance(step time.Duration) {
	if s == nil || s.integrator == nil || s.source == nil || step <= 0 {
		return
	}
	started := time.Now()

	s.mu.Lock()
	s.tick++
	s.simulated += step
	tick := s.tick
	simulatedSeconds := s.simulated.Seconds()
	s.mu.Unlock()

	delta := step.Seconds()
	for _, session := range s.source.Sessions() {
		if session == nil {
			continue
		}
		body := session.Body()
		if session.Engaged() {
			//1.- Input read happens-before the velocity update, which
			// happens-before the camera pose write; the order is fixed here.
			forward, right := physics.PlanarBasis(session.Orientation())
			body = s.integrator.Step(body, session.Controls(), forward, right, delta)
			session.SetBody(body)
		}
		//2.- Every session receives the post-frame pose, changed or not.
		session.PublishPose(body, tick, simulatedSeconds)
	}

	s.monitor.Observe(time.Since(started))
}

// Clock reports the frame counter and the accumulated simulated time.
func (s *Stepper) Clock() (tick uint64, simulated time.Duration) {
	if s == nil {
		return 0, 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick, s.simulated
}

// Stats exposes the frame timing statistics.
func (s *Stepper) Stats() TickStats {
	if s == nil {
		return TickStats{}
	}
	return s.monitor.Snapshot()
}
