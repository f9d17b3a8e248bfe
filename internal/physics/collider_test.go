package physics

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestNewColliderValidatesExtents(t *testing.T) {
	if _, err := NewCollider(mgl64.Vec3{}, mgl64.Vec3{1, 2, 3}); err != nil {
		t.Fatalf("valid extents rejected: %v", err)
	}

	for _, bad := range []mgl64.Vec3{
		{0, 1, 1},
		{1, -2, 1},
		{1, 1, 0},
	} {
		if _, err := NewCollider(mgl64.Vec3{}, bad); err == nil {
			t.Fatalf("expected rejection for extents %v", bad)
		}
	}
}

func TestColliderCorners(t *testing.T) {
	box, err := NewCollider(mgl64.Vec3{1, 2, 3}, mgl64.Vec3{0.5, 1, 1.5})
	if err != nil {
		t.Fatalf("NewCollider: %v", err)
	}
	if box.Min() != (mgl64.Vec3{0.5, 1, 1.5}) {
		t.Fatalf("unexpected min corner: %v", box.Min())
	}
	if box.Max() != (mgl64.Vec3{1.5, 3, 4.5}) {
		t.Fatalf("unexpected max corner: %v", box.Max())
	}
}

func TestDefaultTuningDecodes(t *testing.T) {
	tuning := DefaultTuning()
	if tuning.WalkSpeedMps <= 0 || tuning.SprintSpeedMps <= tuning.WalkSpeedMps {
		t.Fatalf("implausible speed caps: %+v", tuning)
	}
	if tuning.EyeHeightM <= 0 || tuning.MaxStepSeconds <= 0 {
		t.Fatalf("implausible frame constants: %+v", tuning)
	}
}
