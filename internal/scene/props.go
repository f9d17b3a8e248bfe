package scene

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// PropKind enumerates the supported decorative animations.
type PropKind string

const (
	// PropKindBobber floats up and down around its base position.
	PropKindBobber PropKind = "bobber"
	// PropKindPulser stays put and modulates its emissive intensity.
	PropKindPulser PropKind = "pulser"
)

// Prop is a decorative scene element whose pose is a pure function of the
// global clock. The movement integrator never reads or writes prop state.
type Prop struct {
	Name      string
	Kind      PropKind
	Base      mgl64.Vec3
	Amplitude float64
	Period    float64
	Phase     float64
}

// PropPose is the evaluated pose of a prop at a point in time.
type PropPose struct {
	Name      string     `json:"name"`
	Position  [3]float64 `json:"position"`
	Intensity float64    `json:"intensity"`
}

func newProp(spec propSpec) (Prop, error) {
	kind := PropKind(spec.Kind)
	switch kind {
	case PropKindBobber, PropKindPulser:
	default:
		return Prop{}, fmt.Errorf("unknown prop kind %q", spec.Kind)
	}
	if !(spec.PeriodSeconds > 0) {
		return Prop{}, fmt.Errorf("prop period must be positive, got %v", spec.PeriodSeconds)
	}
	if spec.Amplitude < 0 {
		return Prop{}, fmt.Errorf("prop amplitude must be non-negative, got %v", spec.Amplitude)
	}
	return Prop{
		Name:      spec.Name,
		Kind:      kind,
		Base:      spec.Base.vec(),
		Amplitude: spec.Amplitude,
		Period:    spec.PeriodSeconds,
		Phase:     spec.PhaseSeconds,
	}, nil
}

// PoseAt evaluates the prop at the supplied simulated time in seconds.
func (p Prop) PoseAt(seconds float64) PropPose {
	phase := 2 * math.Pi * (seconds + p.Phase) / p.Period
	pose := PropPose{
		Name:      p.Name,
		Position:  [3]float64{p.Base[0], p.Base[1], p.Base[2]},
		Intensity: 1,
	}
	switch p.Kind {
	case PropKindBobber:
		pose.Position[1] += p.Amplitude * math.Sin(phase)
	case PropKindPulser:
		pose.Intensity = 0.5 + 0.5*math.Sin(phase)
	}
	return pose
}

// PosesAt evaluates every prop in the scene at the supplied simulated time.
func (s *Scene) PosesAt(seconds float64) []PropPose {
	if s == nil || len(s.Props) == 0 {
		return nil
	}
	poses := make([]PropPose, 0, len(s.Props))
	for _, prop := range s.Props {
		poses = append(poses, prop.PoseAt(seconds))
	}
	return poses
}
