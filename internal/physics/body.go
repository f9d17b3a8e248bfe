package physics

import "github.com/go-gl/mathgl/mgl64"

// Body holds the player state advanced by the integrator. It is a plain value;
// the frame stepper is the single writer and nothing else retains a reference.
type Body struct {
	Position mgl64.Vec3
	Velocity mgl64.Vec3
	Grounded bool
}

// NewBody places a body at the spawn point with zero velocity, airborne.
func NewBody(spawn mgl64.Vec3) Body {
	return Body{Position: spawn}
}

// HorizontalSpeed returns the planar speed magnitude, ignoring vertical motion.
func (b Body) HorizontalSpeed() float64 {
	return mgl64.Vec2{b.Velocity[0], b.Velocity[2]}.Len()
}
