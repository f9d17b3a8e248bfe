package physics

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Collider is an immutable axis-aligned box used for interpenetration resolution.
type Collider struct {
	center      mgl64.Vec3
	halfExtents mgl64.Vec3
}

// NewCollider validates the box geometry and returns the immutable collider.
// Zero or negative half extents are rejected at construction so the frame step
// never has to reason about degenerate volumes.
func NewCollider(center, halfExtents mgl64.Vec3) (Collider, error) {
	for axis := 0; axis < 3; axis++ {
		if !(halfExtents[axis] > 0) {
			return Collider{}, fmt.Errorf("collider half extents must be positive, got %v", halfExtents)
		}
	}
	return Collider{center: center, halfExtents: halfExtents}, nil
}

// Center returns the box center.
func (c Collider) Center() mgl64.Vec3 { return c.center }

// HalfExtents returns the box half extents.
func (c Collider) HalfExtents() mgl64.Vec3 { return c.halfExtents }

// Min returns the minimum corner of the box.
func (c Collider) Min() mgl64.Vec3 { return c.center.Sub(c.halfExtents) }

// Max returns the maximum corner of the box.
func (c Collider) Max() mgl64.Vec3 { return c.center.Add(c.halfExtents) }
