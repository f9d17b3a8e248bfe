package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"wanderhall/walkd/internal/input"
	"wanderhall/walkd/internal/logging"
)

var (
	errFrameEmptyPayload   = errors.New("empty frame payload")
	errFrameMissingVersion = errors.New("frame missing schema version")
	errFrameUnknownType    = errors.New("unknown message type")
	errFrameBadOrientation = errors.New("frame orientation is not a usable quaternion")
)

const (
	messageTypeInput  = "input"
	messageTypeResync = "resync"
)

// keyTransition is one physical key press or release inside a frame.
type keyTransition struct {
	Key     string `json:"key"`
	Pressed bool   `json:"pressed"`
}

// clientMessage mirrors the JSON layout of inbound walker messages. Input
// frames carry key transitions plus the mouse-look orientation; resync
// requests carry only the type tag.
type clientMessage struct {
	Type          string          `json:"type"`
	SchemaVersion string          `json:"schema_version,omitempty"`
	SequenceID    uint64          `json:"sequence_id,omitempty"`
	Keys          []keyTransition `json:"keys,omitempty"`
	Orientation   *[4]float64     `json:"orientation,omitempty"`
	PointerLocked *bool           `json:"pointer_locked,omitempty"`
	SentAtMs      int64           `json:"sent_at_ms,omitempty"`
}

// decodeClientMessage parses a websocket frame into a structured payload.
func decodeClientMessage(raw []byte) (*clientMessage, error) {
	if len(raw) == 0 {
		return nil, errFrameEmptyPayload
	}
	var payload clientMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	if payload.Type == "" {
		payload.Type = messageTypeInput
	}
	return &payload, nil
}

// validateInputFrame enforces required metadata on an input frame.
func validateInputFrame(payload *clientMessage) error {
	if payload == nil {
		return errors.New("frame payload is nil")
	}
	if payload.SchemaVersion != input.SchemaVersion {
		if payload.SchemaVersion == "" {
			return errFrameMissingVersion
		}
		return fmt.Errorf("unsupported schema version %q", payload.SchemaVersion)
	}
	if payload.SequenceID == 0 {
		return fmt.Errorf("frame sequence id must be positive: %d", payload.SequenceID)
	}
	return nil
}

// SentAt converts the optional capture timestamp into a time.Time instance.
// Missing or zero timestamps stay unset so freshness derives from arrival time.
func (payload *clientMessage) SentAt() time.Time {
	if payload == nil || payload.SentAtMs == 0 {
		return time.Time{}
	}
	return time.UnixMilli(payload.SentAtMs)
}

// orientationQuat validates and normalises the frame's look orientation.
func (payload *clientMessage) orientationQuat() (mgl64.Quat, error) {
	o := payload.Orientation
	for _, component := range o {
		if math.IsNaN(component) || math.IsInf(component, 0) {
			return mgl64.Quat{}, errFrameBadOrientation
		}
	}
	quat := mgl64.Quat{W: o[0], V: mgl64.Vec3{o[1], o[2], o[3]}}
	if quat.Len() < 1e-6 {
		return mgl64.Quat{}, errFrameBadOrientation
	}
	return quat.Normalize(), nil
}

// processClientMessage routes one inbound websocket frame for a session.
func (b *Broker) processClientMessage(sess *session, raw []byte) error {
	if b == nil || sess == nil {
		return errors.New("broker or session is nil")
	}
	payload, err := decodeClientMessage(raw)
	if err != nil {
		return err
	}
	switch payload.Type {
	case messageTypeInput:
		return b.processInputFrame(sess, payload)
	case messageTypeResync:
		return b.processResync(sess)
	default:
		return fmt.Errorf("%w: %q", errFrameUnknownType, payload.Type)
	}
}

// processInputFrame gates, validates, and applies one key frame.
func (b *Broker) processInputFrame(sess *session, payload *clientMessage) error {
	if err := validateInputFrame(payload); err != nil {
		return err
	}

	//1.- Sequencing, freshness, and throughput guards run before any state changes.
	frame := input.Frame{SessionID: sess.id, SequenceID: payload.SequenceID}
	if ts := payload.SentAt(); !ts.IsZero() {
		frame.SentAt = ts
	}
	decision := b.gate.Evaluate(frame)
	if !decision.Accepted {
		fields := []logging.Field{
			logging.String("session_id", sess.id),
			logging.String("reason", decision.Reason.String()),
			logging.Uint64("sequence_id", payload.SequenceID),
		}
		if decision.Delay > 0 {
			fields = append(fields, logging.Duration("delay", decision.Delay))
		}
		b.logger.Debug("dropping input frame", fields...)
		return fmt.Errorf("input gate rejected: %s", decision.Reason)
	}

	//2.- Key transitions feed the tracker; unbound keys are silent no-ops.
	for _, transition := range payload.Keys {
		sess.tracker.SetKey(transition.Key, transition.Pressed)
	}

	//3.- The orientation is owned by the client's mouse-look; store it verbatim
	// after normalisation so the next frame's planar basis uses it.
	if payload.Orientation != nil {
		quat, err := payload.orientationQuat()
		if err != nil {
			return err
		}
		sess.setOrientation(quat)
	}

	//4.- Losing pointer lock releases every held key so no flag sticks while
	// the walker cannot see the cursor.
	if payload.PointerLocked != nil {
		sess.setEngaged(*payload.PointerLocked)
	}
	return nil
}

// processResync re-sends the welcome snapshot, rate limited per session.
func (b *Broker) processResync(sess *session) error {
	if !sess.resync.Allow() {
		b.logger.Debug("resync rate limited", logging.String("session_id", sess.id))
		return errors.New("resync rate limited")
	}
	sess.enqueueWelcome()
	b.logger.Info("session resynced", logging.String("session_id", sess.id))
	return nil
}

func (s *session) setOrientation(quat mgl64.Quat) {
	s.mu.Lock()
	s.orientation = quat
	s.mu.Unlock()
}

func (s *session) setEngaged(engaged bool) {
	s.mu.Lock()
	wasEngaged := s.engaged
	s.engaged = engaged
	s.mu.Unlock()
	if wasEngaged && !engaged {
		s.tracker.Reset()
	}
}

// Orientation returns the latest mouse-look orientation.
func (s *session) Orientation() mgl64.Quat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.orientation
}
