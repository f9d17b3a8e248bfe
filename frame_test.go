package main

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"wanderhall/walkd/internal/input"
	"wanderhall/walkd/internal/logging"
	"wanderhall/walkd/internal/physics"
	"wanderhall/walkd/internal/scene"
)

const hallYAML = `
name: hall
spawn: {x: 0, y: 1.6, z: 5}
colliders:
  - name: plinth
    center: {x: 2, y: 1, z: 0}
    half_extents: {x: 0.5, y: 1, z: 0.5}
props:
  - name: beacon
    kind: bobber
    base: {x: 0, y: 2.5, z: -4}
    amplitude: 0.25
    period_s: 4
`

func newTestBroker(t *testing.T, opts ...BrokerOption) *Broker {
	t.Helper()
	walkScene, err := scene.Parse([]byte(hallYAML))
	if err != nil {
		t.Fatalf("Parse scene: %v", err)
	}
	integrator := physics.NewIntegrator(walkScene.Boxes(), physics.DefaultTuning())
	gate := input.NewGate(input.GateConfig{})
	opts = append([]BrokerOption{WithLogger(logging.NewTestLogger())}, opts...)
	return NewBroker(walkScene, integrator, gate, opts...)
}

func newTestSession(t *testing.T, b *Broker) *session {
	t.Helper()
	return newSession("walker-test", nil, b, false)
}

func TestDecodeClientMessageDefaultsToInput(t *testing.T) {
	payload, err := decodeClientMessage([]byte(`{"schema_version":"walkd.input.v1","sequence_id":1}`))
	if err != nil {
		t.Fatalf("decodeClientMessage: %v", err)
	}
	if payload.Type != messageTypeInput {
		t.Fatalf("expected default type input, got %q", payload.Type)
	}
}

func TestDecodeClientMessageRejectsEmptyPayloads(t *testing.T) {
	if _, err := decodeClientMessage(nil); !errors.Is(err, errFrameEmptyPayload) {
		t.Fatalf("expected errFrameEmptyPayload, got %v", err)
	}
}

func TestValidateInputFrameRequirements(t *testing.T) {
	if err := validateInputFrame(&clientMessage{SequenceID: 1}); !errors.Is(err, errFrameMissingVersion) {
		t.Fatalf("expected missing version error, got %v", err)
	}
	if err := validateInputFrame(&clientMessage{SchemaVersion: "walkd.input.v0", SequenceID: 1}); err == nil {
		t.Fatal("expected unsupported schema version rejection")
	}
	if err := validateInputFrame(&clientMessage{SchemaVersion: input.SchemaVersion}); err == nil {
		t.Fatal("expected zero sequence rejection")
	}
	if err := validateInputFrame(&clientMessage{SchemaVersion: input.SchemaVersion, SequenceID: 1}); err != nil {
		t.Fatalf("expected valid frame, got %v", err)
	}
}

func TestOrientationQuatNormalisesAndRejects(t *testing.T) {
	payload := &clientMessage{Orientation: &[4]float64{2, 0, 0, 0}}
	quat, err := payload.orientationQuat()
	if err != nil {
		t.Fatalf("orientationQuat: %v", err)
	}
	if math.Abs(quat.Len()-1) > 1e-12 {
		t.Fatalf("expected unit quaternion, got length %v", quat.Len())
	}

	payload = &clientMessage{Orientation: &[4]float64{0, 0, 0, 0}}
	if _, err := payload.orientationQuat(); !errors.Is(err, errFrameBadOrientation) {
		t.Fatalf("expected rejection of zero quaternion, got %v", err)
	}
	payload = &clientMessage{Orientation: &[4]float64{math.NaN(), 0, 0, 1}}
	if _, err := payload.orientationQuat(); !errors.Is(err, errFrameBadOrientation) {
		t.Fatalf("expected rejection of NaN component, got %v", err)
	}
}

func TestProcessInputFrameAppliesKeysOrientationAndLock(t *testing.T) {
	broker := newTestBroker(t)
	sess := newTestSession(t, broker)

	locked := true
	err := broker.processInputFrame(sess, &clientMessage{
		Type:          messageTypeInput,
		SchemaVersion: input.SchemaVersion,
		SequenceID:    1,
		Keys:          []keyTransition{{Key: "w", Pressed: true}, {Key: "Shift", Pressed: true}},
		Orientation:   &[4]float64{0, 0, 1, 0},
		PointerLocked: &locked,
	})
	if err != nil {
		t.Fatalf("processInputFrame: %v", err)
	}

	if state := sess.Controls(); !state.Forward || !state.Sprint {
		t.Fatalf("expected forward+sprint held, got %+v", state)
	}
	if !sess.Engaged() {
		t.Fatal("expected session engaged after pointer lock")
	}
	want := mgl64.Quat{W: 0, V: mgl64.Vec3{0, 1, 0}}
	if got := sess.Orientation(); math.Abs(got.W-want.W) > 1e-12 || got.V.Sub(want.V).Len() > 1e-12 {
		t.Fatalf("unexpected orientation %+v", got)
	}
}

func TestProcessInputFrameReleasingLockClearsHeldKeys(t *testing.T) {
	broker := newTestBroker(t)
	sess := newTestSession(t, broker)

	locked := true
	if err := broker.processInputFrame(sess, &clientMessage{
		SchemaVersion: input.SchemaVersion,
		SequenceID:    1,
		Keys:          []keyTransition{{Key: "w", Pressed: true}},
		PointerLocked: &locked,
	}); err != nil {
		t.Fatalf("engage frame: %v", err)
	}

	unlocked := false
	if err := broker.processInputFrame(sess, &clientMessage{
		SchemaVersion: input.SchemaVersion,
		SequenceID:    2,
		PointerLocked: &unlocked,
	}); err != nil {
		t.Fatalf("disengage frame: %v", err)
	}

	if sess.Engaged() {
		t.Fatal("expected session disengaged")
	}
	//1.- Every held key is released with the pointer lock; no flag may stick.
	if state := sess.Controls(); state != (input.State{}) {
		t.Fatalf("expected all flags cleared, got %+v", state)
	}
}

func TestProcessInputFrameRejectsStaleSequences(t *testing.T) {
	broker := newTestBroker(t)
	sess := newTestSession(t, broker)

	first := &clientMessage{SchemaVersion: input.SchemaVersion, SequenceID: 5}
	if err := broker.processInputFrame(sess, first); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	replay := &clientMessage{
		SchemaVersion: input.SchemaVersion,
		SequenceID:    5,
		Keys:          []keyTransition{{Key: "w", Pressed: true}},
	}
	if err := broker.processInputFrame(sess, replay); err == nil {
		t.Fatal("expected replayed sequence to be rejected")
	}
	//1.- Rejected frames must not leak key transitions into the tracker.
	if state := sess.Controls(); state.Forward {
		t.Fatalf("rejected frame mutated the tracker: %+v", state)
	}
}

func TestProcessResyncHonoursRateLimit(t *testing.T) {
	broker := newTestBroker(t, WithResyncPolicy(time.Minute, 1))
	sess := newTestSession(t, broker)

	if err := broker.processResync(sess); err != nil {
		t.Fatalf("first resync: %v", err)
	}
	if err := broker.processResync(sess); err == nil {
		t.Fatal("expected second resync inside the window to be limited")
	}
	//1.- The allowed resync queued exactly one welcome snapshot.
	if got := len(sess.send); got != 1 {
		t.Fatalf("expected 1 queued payload, got %d", got)
	}
}

func TestProcessClientMessageRejectsUnknownTypes(t *testing.T) {
	broker := newTestBroker(t)
	sess := newTestSession(t, broker)
	if err := broker.processClientMessage(sess, []byte(`{"type":"teleport"}`)); !errors.Is(err, errFrameUnknownType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}
