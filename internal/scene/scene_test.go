package scene

import (
	"math"
	"strings"
	"testing"
)

const galleryYAML = `
name: gallery
spawn: {x: 0, y: 1.6, z: 6}
colliders:
  - name: plinth-east
    center: {x: 3, y: 1, z: 0}
    half_extents: {x: 0.5, y: 1, z: 0.5}
  - name: wall-north
    center: {x: 0, y: 2, z: -8}
    half_extents: {x: 10, y: 2, z: 0.25}
props:
  - name: beacon
    kind: bobber
    base: {x: 0, y: 2.5, z: -4}
    amplitude: 0.25
    period_s: 4
  - name: ember
    kind: pulser
    base: {x: -2, y: 1.2, z: -3}
    period_s: 2
    phase_s: 0.5
`

func TestParseBuildsOrderedColliders(t *testing.T) {
	scene, err := Parse([]byte(galleryYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if scene.Name != "gallery" {
		t.Fatalf("unexpected scene name %q", scene.Name)
	}
	if scene.Spawn[1] != 1.6 || scene.Spawn[2] != 6 {
		t.Fatalf("unexpected spawn %v", scene.Spawn)
	}
	if len(scene.Colliders) != 2 {
		t.Fatalf("expected 2 colliders, got %d", len(scene.Colliders))
	}
	//1.- Declaration order is part of the resolution contract.
	if scene.Colliders[0].Name != "plinth-east" || scene.Colliders[1].Name != "wall-north" {
		t.Fatalf("collider order lost: %+v", scene.Colliders)
	}
	if boxes := scene.Boxes(); len(boxes) != 2 || boxes[0].HalfExtents()[0] != 0.5 {
		t.Fatalf("unexpected boxes: %+v", boxes)
	}
}

func TestParseRejectsDegenerateColliders(t *testing.T) {
	bad := `
colliders:
  - name: flat
    center: {x: 0, y: 0, z: 0}
    half_extents: {x: 1, y: 0, z: 1}
`
	_, err := Parse([]byte(bad))
	if err == nil {
		t.Fatal("expected rejection of zero half extent")
	}
	if !strings.Contains(err.Error(), "flat") {
		t.Fatalf("error should name the offending collider, got %q", err.Error())
	}
}

func TestParseRejectsEmptySceneAndUnknownProps(t *testing.T) {
	if _, err := Parse([]byte("name: empty\n")); err == nil {
		t.Fatal("expected rejection of a scene without colliders")
	}

	bad := `
colliders:
  - center: {x: 0, y: 0, z: 0}
    half_extents: {x: 1, y: 1, z: 1}
props:
  - name: mystery
    kind: strobe
    period_s: 1
`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected rejection of an unknown prop kind")
	}
}

func TestParseRejectsNonPositivePeriod(t *testing.T) {
	bad := `
colliders:
  - center: {x: 0, y: 0, z: 0}
    half_extents: {x: 1, y: 1, z: 1}
props:
  - name: frozen
    kind: bobber
    period_s: 0
`
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected rejection of a zero prop period")
	}
}

func TestBobberPoseIsPeriodic(t *testing.T) {
	scene, err := Parse([]byte(galleryYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	beacon := scene.Props[0]

	at0 := beacon.PoseAt(0)
	atPeriod := beacon.PoseAt(beacon.Period)
	if math.Abs(at0.Position[1]-atPeriod.Position[1]) > 1e-9 {
		t.Fatalf("bobber should repeat each period: %v vs %v", at0.Position[1], atPeriod.Position[1])
	}

	//1.- Quarter period is the sine peak.
	peak := beacon.PoseAt(beacon.Period / 4)
	if math.Abs(peak.Position[1]-(beacon.Base[1]+beacon.Amplitude)) > 1e-9 {
		t.Fatalf("expected peak at base+amplitude, got %v", peak.Position[1])
	}
	if peak.Position[0] != beacon.Base[0] || peak.Position[2] != beacon.Base[2] {
		t.Fatalf("bobber must only move vertically, got %v", peak.Position)
	}
}

func TestPulserStaysPutAndModulatesIntensity(t *testing.T) {
	scene, err := Parse([]byte(galleryYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ember := scene.Props[1]

	for _, seconds := range []float64{0, 0.3, 1.1, 2.7, 9.4} {
		pose := ember.PoseAt(seconds)
		if pose.Position != [3]float64{ember.Base[0], ember.Base[1], ember.Base[2]} {
			t.Fatalf("pulser must not move, got %v", pose.Position)
		}
		if pose.Intensity < 0 || pose.Intensity > 1 {
			t.Fatalf("intensity out of range: %v", pose.Intensity)
		}
	}
}

func TestPosesAtCoversEveryProp(t *testing.T) {
	scene, err := Parse([]byte(galleryYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	poses := scene.PosesAt(1.25)
	if len(poses) != 2 {
		t.Fatalf("expected a pose per prop, got %d", len(poses))
	}
	if poses[0].Name != "beacon" || poses[1].Name != "ember" {
		t.Fatalf("unexpected pose order: %+v", poses)
	}
}
