package physics

import (
	"encoding/json"
	"sync"

	_ "embed"
)

// Tuning captures the movement constants applied by the integrator each frame.
type Tuning struct {
	WalkSpeedMps     float64 `json:"walkSpeedMps"`
	SprintSpeedMps   float64 `json:"sprintSpeedMps"`
	AccelerationMps2 float64 `json:"accelerationMps2"`
	DampingPerSec    float64 `json:"dampingPerSec"`
	GravityMps2      float64 `json:"gravityMps2"`
	JumpImpulseMps   float64 `json:"jumpImpulseMps"`
	EyeHeightM       float64 `json:"eyeHeightM"`
	BodyRadiusM      float64 `json:"bodyRadiusM"`
	BodyHalfHeightM  float64 `json:"bodyHalfHeightM"`
	MaxStepSeconds   float64 `json:"maxStepSeconds"`
}

//go:embed tuning.json
var tuningPayload []byte

var (
	tuningOnce sync.Once
	tuningData Tuning
	tuningErr  error
)

// DefaultTuning exposes the cached walker movement constants.
func DefaultTuning() Tuning {
	tuningOnce.Do(func() {
		//1.- Parse the embedded JSON payload exactly once in a threadsafe manner.
		tuningErr = json.Unmarshal(tuningPayload, &tuningData)
	})
	//2.- Panic immediately when the constants cannot be decoded to avoid silent divergence.
	if tuningErr != nil {
		panic(tuningErr)
	}
	//3.- Return a copy of the cached tuning so callers cannot mutate shared state.
	return tuningData
}
