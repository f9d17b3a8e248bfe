package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/gorilla/websocket"

	"wanderhall/walkd/internal/input"
	"wanderhall/walkd/internal/simulation"
)

func dialBroker(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForSessions(t *testing.T, broker *Broker, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if sessions, _ := broker.SnapshotSessionCounts(); sessions == want {
			return
		}
		if time.Now().After(deadline) {
			sessions, _ := broker.SnapshotSessionCounts()
			t.Fatalf("expected %d sessions, have %d", want, sessions)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeWSSendsWelcomeSnapshot(t *testing.T) {
	broker := newTestBroker(t)
	server := httptest.NewServer(http.HandlerFunc(broker.ServeWS))
	defer server.Close()

	conn := dialBroker(t, server, "")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	var welcome welcomePayload
	if err := json.Unmarshal(raw, &welcome); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	if welcome.Type != "welcome" || welcome.SceneName != "hall" {
		t.Fatalf("unexpected welcome %+v", welcome)
	}
	if welcome.Spawn != [3]float64{0, 1.6, 5} {
		t.Fatalf("unexpected spawn %+v", welcome.Spawn)
	}
	if welcome.SchemaVersion != input.SchemaVersion {
		t.Fatalf("unexpected schema version %q", welcome.SchemaVersion)
	}
}

func TestServeWSNegotiatesSnappyEncoding(t *testing.T) {
	broker := newTestBroker(t)
	server := httptest.NewServer(http.HandlerFunc(broker.ServeWS))
	defer server.Close()

	conn := dialBroker(t, server, "?encoding=snappy")
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	messageType, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if messageType != websocket.BinaryMessage {
		t.Fatalf("expected binary frame, got %d", messageType)
	}
	decoded, err := snappy.Decode(nil, raw)
	if err != nil {
		t.Fatalf("snappy decode: %v", err)
	}
	var welcome welcomePayload
	if err := json.Unmarshal(decoded, &welcome); err != nil {
		t.Fatalf("decode welcome: %v", err)
	}
	if welcome.Type != "welcome" {
		t.Fatalf("unexpected welcome %+v", welcome)
	}
}

func TestServeWSAppliesInputFrames(t *testing.T) {
	broker := newTestBroker(t)
	server := httptest.NewServer(http.HandlerFunc(broker.ServeWS))
	defer server.Close()

	conn := dialBroker(t, server, "")
	waitForSessions(t, broker, 1)

	frame := map[string]any{
		"type":           "input",
		"schema_version": input.SchemaVersion,
		"sequence_id":    1,
		"keys":           []map[string]any{{"key": "w", "pressed": true}},
		"orientation":    []float64{1, 0, 0, 0},
		"pointer_locked": true,
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}

	//1.- The reader pump applies frames asynchronously; poll for the result.
	deadline := time.Now().Add(2 * time.Second)
	for {
		sessions := broker.Sessions()
		if len(sessions) == 1 && sessions[0].Controls().Forward && sessions[0].Engaged() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("input frame never reached the tracker")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeWSEnforcesSessionLimit(t *testing.T) {
	broker := newTestBroker(t, WithMaxSessions(1))
	server := httptest.NewServer(http.HandlerFunc(broker.ServeWS))
	defer server.Close()

	first := dialBroker(t, server, "")
	_ = first
	waitForSessions(t, broker, 1)

	second := dialBroker(t, server, "")
	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	//1.- The broker upgrades then immediately closes surplus sessions.
	if _, _, err := second.ReadMessage(); err == nil {
		t.Fatal("expected the second session to be closed")
	}
	if sessions, _ := broker.SnapshotSessionCounts(); sessions != 1 {
		t.Fatalf("expected exactly 1 registered session, got %d", sessions)
	}
}

func TestBrokerDrivesBodiesThroughTheStepper(t *testing.T) {
	broker := newTestBroker(t)
	sess := newTestSession(t, broker)
	if err := broker.register(sess); err != nil {
		t.Fatalf("register: %v", err)
	}

	locked := true
	if err := broker.processInputFrame(sess, &clientMessage{
		SchemaVersion: input.SchemaVersion,
		SequenceID:    1,
		Keys:          []keyTransition{{Key: "w", Pressed: true}},
		Orientation:   &[4]float64{1, 0, 0, 0},
		PointerLocked: &locked,
	}); err != nil {
		t.Fatalf("processInputFrame: %v", err)
	}

	stepper := simulation.NewStepper(broker.integrator, broker, simulation.NewTickMonitor())
	start := sess.Body().Position
	for i := 0; i < 30; i++ {
		stepper.Advance(time.Second / 60)
	}

	//1.- Forward with identity orientation walks along -Z from the spawn.
	end := sess.Body().Position
	if !(end[2] < start[2]) {
		t.Fatalf("expected the body to advance along -Z: start %v end %v", start, end)
	}
	if end[1] != start[1] {
		t.Fatalf("grounded walk must stay at eye height: %v", end)
	}

	//2.- Pose snapshots were published every tick; the small buffer dropped the rest.
	queued := len(sess.send)
	if queued == 0 {
		t.Fatal("expected queued pose snapshots")
	}
	raw := <-sess.send
	var pose posePayload
	if err := json.Unmarshal(raw, &pose); err != nil {
		t.Fatalf("decode pose: %v", err)
	}
	if pose.Type != "pose" || pose.Tick == 0 {
		t.Fatalf("unexpected pose payload %+v", pose)
	}
	if len(pose.Props) != 1 || pose.Props[0].Name != "beacon" {
		t.Fatalf("expected prop poses in the snapshot, got %+v", pose.Props)
	}
}

func TestSnapshotSessionCountsTracksEngagement(t *testing.T) {
	broker := newTestBroker(t)
	engagedSess := newTestSession(t, broker)
	idleSess := newTestSession(t, broker)
	if err := broker.register(engagedSess); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := broker.register(idleSess); err != nil {
		t.Fatalf("register: %v", err)
	}
	engagedSess.setEngaged(true)

	sessions, engaged := broker.SnapshotSessionCounts()
	if sessions != 2 || engaged != 1 {
		t.Fatalf("expected 2 sessions / 1 engaged, got %d/%d", sessions, engaged)
	}

	broker.unregister(engagedSess)
	if sessions, _ := broker.SnapshotSessionCounts(); sessions != 1 {
		t.Fatalf("expected 1 session after unregister, got %d", sessions)
	}
}
