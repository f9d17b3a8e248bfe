package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"wanderhall/walkd/internal/input"
)

// basisEpsilon rejects planar axes that collapse when the camera looks straight
// up or down; such an axis contributes no movement for the frame.
const basisEpsilon = 1e-6

// PlanarBasis derives the camera-relative movement axes from the orientation
// quaternion: forward and right rotated into world space, projected onto the
// horizontal plane, and renormalised.
func PlanarBasis(orientation mgl64.Quat) (forward, right mgl64.Vec3) {
	//1.- Rotate the camera-local axes into world space. -Z is forward in the
	// renderer's convention, +X is right.
	forward = orientation.Rotate(mgl64.Vec3{0, 0, -1})
	right = orientation.Rotate(mgl64.Vec3{1, 0, 0})
	//2.- Flatten each axis onto the horizontal plane and renormalise.
	forward[1] = 0
	right[1] = 0
	if length := forward.Len(); length > basisEpsilon {
		forward = forward.Mul(1 / length)
	} else {
		forward = mgl64.Vec3{}
	}
	if length := right.Len(); length > basisEpsilon {
		right = right.Mul(1 / length)
	} else {
		right = mgl64.Vec3{}
	}
	return forward, right
}

// Integrator advances a player body against a fixed set of static box colliders.
// The collider list is provided once at construction and never mutated.
type Integrator struct {
	tuning    Tuning
	colliders []Collider
}

// NewIntegrator captures the collider list and movement constants.
func NewIntegrator(colliders []Collider, tuning Tuning) *Integrator {
	//1.- Copy the list so later mutation of the caller's slice cannot leak in.
	fixed := make([]Collider, len(colliders))
	copy(fixed, colliders)
	return &Integrator{tuning: tuning, colliders: fixed}
}

// Colliders returns the fixed collider list for read-only consumers.
func (i *Integrator) Colliders() []Collider {
	if i == nil {
		return nil
	}
	out := make([]Collider, len(i.colliders))
	copy(out, i.colliders)
	return out
}

// Tuning returns the movement constants in effect.
func (i *Integrator) Tuning() Tuning {
	if i == nil {
		return Tuning{}
	}
	return i.tuning
}

// Step advances the body by one frame. forward and right are the camera's
// planar basis vectors; delta is the elapsed frame time in seconds. A zero
// delta returns the body untouched, and oversized deltas are clamped so a
// frame-rate stall cannot blow up the integration.
func (i *Integrator) Step(body Body, state input.State, forward, right mgl64.Vec3, delta float64) Body {
	if i == nil || delta <= 0 {
		return body
	}
	if delta > i.tuning.MaxStepSeconds {
		delta = i.tuning.MaxStepSeconds
	}

	velocity := body.Velocity
	grounded := body.Grounded

	//1.- Exponential horizontal damping keeps deceleration frame-rate independent.
	decay := math.Exp(-i.tuning.DampingPerSec * delta)
	velocity[0] *= decay
	velocity[2] *= decay

	//2.- Accumulate the desired planar direction from the logical flags.
	var longitudinal, lateral float64
	if state.Forward {
		longitudinal++
	}
	if state.Backward {
		longitudinal--
	}
	if state.Right {
		lateral++
	}
	if state.Left {
		lateral--
	}
	move := forward.Mul(longitudinal).Add(right.Mul(lateral))
	if length := move.Len(); length > basisEpsilon {
		move = move.Mul(1 / length)
		velocity[0] += move[0] * i.tuning.AccelerationMps2 * delta
		velocity[2] += move[2] * i.tuning.AccelerationMps2 * delta
	}

	//3.- Clamp horizontal speed after acceleration so overshoot settles on the
	// cap; the cap follows the current frame's sprint flag.
	limit := i.tuning.WalkSpeedMps
	if state.Sprint {
		limit = i.tuning.SprintSpeedMps
	}
	if speed := math.Hypot(velocity[0], velocity[2]); speed > limit {
		scale := limit / speed
		velocity[0] *= scale
		velocity[2] *= scale
	}

	//4.- Gravity applies unconditionally.
	velocity[1] -= i.tuning.GravityMps2 * delta

	//5.- Jumping requires ground contact; airborne jump presses are inert.
	if state.Jump && grounded {
		velocity[1] = i.tuning.JumpImpulseMps
		grounded = false
	}

	//6.- Euler-integrate the tentative position.
	position := body.Position.Add(velocity.Mul(delta))

	//7.- Resolve interpenetration against every collider in list order. Each
	// box is tested against the position inflated by the body capsule margins
	// and pushed out along the shallower horizontal axis. One pass only;
	// tight multi-collider corners may still jitter and that is accepted.
	inflateX := i.tuning.BodyRadiusM
	inflateZ := i.tuning.BodyRadiusM
	inflateY := i.tuning.BodyHalfHeightM
	for _, collider := range i.colliders {
		center := collider.center
		half := collider.halfExtents
		dx := position[0] - center[0]
		dy := position[1] - center[1]
		dz := position[2] - center[2]
		boundX := half[0] + inflateX
		boundY := half[1] + inflateY
		boundZ := half[2] + inflateZ
		if math.Abs(dx) >= boundX || math.Abs(dy) >= boundY || math.Abs(dz) >= boundZ {
			continue
		}
		overlapX := boundX - math.Abs(dx)
		overlapZ := boundZ - math.Abs(dz)
		if overlapX <= overlapZ {
			// X wins ties.
			if dx >= 0 {
				position[0] = center[0] + boundX
			} else {
				position[0] = center[0] - boundX
			}
			velocity[0] = 0
		} else {
			if dz >= 0 {
				position[2] = center[2] + boundZ
			} else {
				position[2] = center[2] - boundZ
			}
			velocity[2] = 0
		}
	}

	//8.- Clamp to the floor plane at eye height and refresh grounded state.
	if position[1] < i.tuning.EyeHeightM {
		position[1] = i.tuning.EyeHeightM
		velocity[1] = 0
		grounded = true
	} else {
		grounded = false
	}

	return Body{Position: position, Velocity: velocity, Grounded: grounded}
}
