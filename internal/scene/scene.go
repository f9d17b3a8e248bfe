package scene

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"

	"wanderhall/walkd/internal/physics"
)

var errNoColliders = errors.New("scene must declare at least one collider")

// vecSpec is the YAML form of a 3D vector.
type vecSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

func (v vecSpec) vec() mgl64.Vec3 { return mgl64.Vec3{v.X, v.Y, v.Z} }

// colliderSpec describes one static axis-aligned box volume.
type colliderSpec struct {
	Name        string  `yaml:"name"`
	Center      vecSpec `yaml:"center"`
	HalfExtents vecSpec `yaml:"half_extents"`
}

// propSpec describes one decorative animated element.
type propSpec struct {
	Name          string  `yaml:"name"`
	Kind          string  `yaml:"kind"`
	Base          vecSpec `yaml:"base"`
	Amplitude     float64 `yaml:"amplitude"`
	PeriodSeconds float64 `yaml:"period_s"`
	PhaseSeconds  float64 `yaml:"phase_s"`
}

// sceneSpec is the on-disk layout of a scene description file.
type sceneSpec struct {
	Name      string         `yaml:"name"`
	Spawn     vecSpec        `yaml:"spawn"`
	Colliders []colliderSpec `yaml:"colliders"`
	Props     []propSpec     `yaml:"props"`
}

// NamedCollider pairs a collider with its scene name for renderer placement.
type NamedCollider struct {
	Name string
	Box  physics.Collider
}

// Scene holds the immutable static layout shared by the simulation and the
// renderer: a spawn point, an ordered collider list, and decorative props.
type Scene struct {
	Name      string
	Spawn     mgl64.Vec3
	Colliders []NamedCollider
	Props     []Prop
}

// Boxes returns just the collider volumes, in declaration order.
func (s *Scene) Boxes() []physics.Collider {
	if s == nil {
		return nil
	}
	boxes := make([]physics.Collider, 0, len(s.Colliders))
	for _, named := range s.Colliders {
		boxes = append(boxes, named.Box)
	}
	return boxes
}

// Load reads and validates a scene description file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scene: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML scene description, rejecting malformed geometry at
// construction time so the frame step never sees a degenerate volume.
func Parse(data []byte) (*Scene, error) {
	var spec sceneSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, fmt.Errorf("decode scene: %w", err)
	}
	if len(spec.Colliders) == 0 {
		return nil, errNoColliders
	}

	scene := &Scene{
		Name:  spec.Name,
		Spawn: spec.Spawn.vec(),
	}

	//1.- Validate every collider through the physics constructor; declaration
	// order is preserved because resolution order is part of the contract.
	scene.Colliders = make([]NamedCollider, 0, len(spec.Colliders))
	for index, c := range spec.Colliders {
		box, err := physics.NewCollider(c.Center.vec(), c.HalfExtents.vec())
		if err != nil {
			return nil, fmt.Errorf("collider %d (%q): %w", index, c.Name, err)
		}
		scene.Colliders = append(scene.Colliders, NamedCollider{Name: c.Name, Box: box})
	}

	//2.- Validate the decorative props; they are presentation-only but a bad
	// period would make the pose function degenerate.
	scene.Props = make([]Prop, 0, len(spec.Props))
	for index, p := range spec.Props {
		prop, err := newProp(p)
		if err != nil {
			return nil, fmt.Errorf("prop %d (%q): %w", index, p.Name, err)
		}
		scene.Props = append(scene.Props, prop)
	}

	return scene, nil
}
