package main

import (
	"encoding/json"
	"math"

	"github.com/golang/snappy"

	"wanderhall/walkd/internal/input"
	"wanderhall/walkd/internal/logging"
	"wanderhall/walkd/internal/physics"
	"wanderhall/walkd/internal/scene"
)

// posePayload is the per-tick camera snapshot streamed to the renderer. The
// position is the camera position; the renderer applies its own orientation.
type posePayload struct {
	Type        string           `json:"type"`
	Tick        uint64           `json:"tick"`
	SimulatedMs int64            `json:"simulated_ms"`
	Position    [3]float64       `json:"position"`
	Velocity    [3]float64       `json:"velocity"`
	Grounded    bool             `json:"grounded"`
	Props       []scene.PropPose `json:"props,omitempty"`
}

// welcomePayload carries everything the renderer needs before the first pose:
// the session identity, the scene geometry endpoint hint, and the spawn pose.
type welcomePayload struct {
	Type          string     `json:"type"`
	SessionID     string     `json:"session_id"`
	SchemaVersion string     `json:"schema_version"`
	SceneName     string     `json:"scene_name"`
	Spawn         [3]float64 `json:"spawn"`
	EyeHeight     float64    `json:"eye_height"`
	TickRateHz    float64    `json:"tick_rate_hz,omitempty"`
}

// Body returns the current player body for the frame stepper.
func (s *session) Body() physics.Body {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.body
}

// SetBody commits the frame result. Only the simulation goroutine calls this.
func (s *session) SetBody(body physics.Body) {
	s.mu.Lock()
	s.body = body
	s.mu.Unlock()
}

// PublishPose encodes and enqueues the post-frame snapshot for the renderer.
func (s *session) PublishPose(body physics.Body, tick uint64, simulatedSeconds float64) {
	payload := posePayload{
		Type:        "pose",
		Tick:        tick,
		SimulatedMs: int64(math.Round(simulatedSeconds * 1000)),
		Position:    [3]float64{body.Position[0], body.Position[1], body.Position[2]},
		Velocity:    [3]float64{body.Velocity[0], body.Velocity[1], body.Velocity[2]},
		Grounded:    body.Grounded,
		Props:       s.broker.scene.PosesAt(simulatedSeconds),
	}
	encoded, err := s.encode(payload)
	if err != nil {
		s.broker.logger.Error("encode pose", logging.String("session_id", s.id), logging.Error(err))
		return
	}
	s.enqueue(encoded)
}

// enqueueWelcome sends the session's initial (or resynced) scene snapshot.
func (s *session) enqueueWelcome() {
	tuning := s.broker.integrator.Tuning()
	payload := welcomePayload{
		Type:          "welcome",
		SessionID:     s.id,
		SchemaVersion: input.SchemaVersion,
		SceneName:     s.broker.scene.Name,
		Spawn:         [3]float64{s.broker.scene.Spawn[0], s.broker.scene.Spawn[1], s.broker.scene.Spawn[2]},
		EyeHeight:     tuning.EyeHeightM,
		TickRateHz:    s.broker.tickRateHz,
	}
	encoded, err := s.encode(payload)
	if err != nil {
		s.broker.logger.Error("encode welcome", logging.String("session_id", s.id), logging.Error(err))
		return
	}
	s.enqueue(encoded)
}

// encode marshals a payload, compressing it when the session negotiated the
// snappy pose stream.
func (s *session) encode(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	if s.compress {
		return snappy.Encode(nil, raw), nil
	}
	return raw, nil
}

// DroppedPoses reports how many snapshots were discarded on a full send buffer.
func (s *session) DroppedPoses() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.droppedPoses
}
