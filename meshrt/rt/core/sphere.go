package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// SphereStride is the packed size of one Sphere record on the GPU:
// position 12 + radius 4 + albedo 12 + specular 12 + emission 12 + smoothness 4.
const SphereStride = 56

// Sphere is an analytic sphere resting on the ground plane.
// A generated set is never edited, only regenerated.
type Sphere struct {
	Position   mgl32.Vec3
	Radius     float32
	Albedo     mgl32.Vec3
	Specular   mgl32.Vec3
	Emission   mgl32.Vec3
	Smoothness float32
}

// Overlaps reports whether the bounding spheres of s and o intersect.
func (s Sphere) Overlaps(o Sphere) bool {
	minDist := s.Radius + o.Radius
	d := s.Position.Sub(o.Position)
	return d.Dot(d) < minDist*minDist
}

// SphereParams bounds procedural sphere generation.
type SphereParams struct {
	CountMax        int
	RadiusMin       float32
	RadiusMax       float32
	PlacementRadius float32
}

func DefaultSphereParams() SphereParams {
	return SphereParams{
		CountMax:        10000,
		RadiusMin:       5.0,
		RadiusMax:       30.0,
		PlacementRadius: 100.0,
	}
}
