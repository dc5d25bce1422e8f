package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// BuildSpheres generates up to p.CountMax non-overlapping spheres resting on the
// y=0 plane. Rejected candidates are dropped, not retried, so fewer spheres come
// back once the placement disk saturates. Rejected candidates still consume their
// radius and position draws.
func BuildSpheres(stream Stream, p SphereParams) []Sphere {
	spheres := make([]Sphere, 0, max(min(p.CountMax, 1024), 0))

	for i := 0; i < p.CountMax; i++ {
		var sphere Sphere
		sphere.Radius = p.RadiusMin + stream.Float32()*(p.RadiusMax-p.RadiusMin)
		pos := InsideUnitDisk(stream).Mul(p.PlacementRadius)
		sphere.Position = mgl32.Vec3{pos.X(), sphere.Radius, pos.Y()}

		if overlapsAny(sphere, spheres) {
			continue
		}

		color := RandomColorHSV(stream)
		metal := stream.Float32() < 0.5
		if metal {
			sphere.Albedo = mgl32.Vec3{}
			sphere.Specular = color
			sphere.Smoothness = stream.Float32() + 0.5
			sphere.Emission = color.Mul(0.5)
		} else {
			sphere.Albedo = color
			sphere.Specular = mgl32.Vec3{0.06, 0.06, 0.06}
			sphere.Smoothness = 0.1
			e := stream.Float32() / 5
			sphere.Emission = mgl32.Vec3{e, e, e}
		}

		spheres = append(spheres, sphere)
	}
	return spheres
}

func overlapsAny(s Sphere, accepted []Sphere) bool {
	for _, other := range accepted {
		if s.Overlaps(other) {
			return true
		}
	}
	return false
}

// BuildMeshGeometry flattens objects, in order, into one shared vertex array and
// one shared index array. Each object's indices are rebased by the number of
// vertices contributed before it, and it gets a descriptor for its index range.
func BuildMeshGeometry(objects []*MeshObject) (Geometry, error) {
	var g Geometry
	g.Descriptors = make([]MeshObjectDescriptor, 0, len(objects))

	for _, obj := range objects {
		if obj == nil || obj.Mesh == nil {
			continue
		}
		mesh := obj.Mesh
		if len(mesh.Indices)%3 != 0 {
			return Geometry{}, fmt.Errorf("mesh object %s: %d indices is not a triangle list: %w",
				obj.ID, len(mesh.Indices), ErrInconsistentGeometry)
		}

		firstVertex := uint32(len(g.Vertices))
		g.Vertices = append(g.Vertices, mesh.Vertices...)

		firstIndex := uint32(len(g.Indices))
		for _, idx := range mesh.Indices {
			g.Indices = append(g.Indices, idx+firstVertex)
		}

		transform := obj.Transform
		if transform == nil {
			transform = NewTransform()
		}
		g.Descriptors = append(g.Descriptors, MeshObjectDescriptor{
			LocalToWorld: transform.LocalToWorld(),
			IndexOffset:  firstIndex,
			IndexCount:   uint32(len(mesh.Indices)),
			Material:     obj.Material,
		})
	}

	if err := g.Validate(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// Validate checks that every index addresses a vertex and every descriptor's
// range lies inside the index array.
func (g Geometry) Validate() error {
	nv := uint64(len(g.Vertices))
	for i, idx := range g.Indices {
		if uint64(idx) >= nv {
			return fmt.Errorf("index %d = %d, vertex count %d: %w", i, idx, nv, ErrInconsistentGeometry)
		}
	}
	ni := uint64(len(g.Indices))
	for i, d := range g.Descriptors {
		if uint64(d.IndexOffset)+uint64(d.IndexCount) > ni {
			return fmt.Errorf("descriptor %d range [%d,%d) exceeds %d indices: %w",
				i, d.IndexOffset, d.IndexOffset+d.IndexCount, ni, ErrInconsistentGeometry)
		}
	}
	return nil
}
