package core

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqStream replays a fixed sequence of draws, then repeats the last one.
type seqStream struct {
	vals []float32
	pos  int
}

func (s *seqStream) Float32() float32 {
	if s.pos >= len(s.vals) {
		return s.vals[len(s.vals)-1]
	}
	v := s.vals[s.pos]
	s.pos++
	return v
}

func TestBuildSpheresDeterministic(t *testing.T) {
	p := SphereParams{CountMax: 500, RadiusMin: 1, RadiusMax: 6, PlacementRadius: 80}

	a := BuildSpheres(NewStream(1234), p)
	b := BuildSpheres(NewStream(1234), p)

	require.NotEmpty(t, a)
	assert.Equal(t, a, b, "same seed and params must give the same spheres")

	c := BuildSpheres(NewStream(4321), p)
	assert.NotEqual(t, a, c, "different seeds should give different spheres")
}

func TestBuildSpheresNonOverlapping(t *testing.T) {
	for _, seed := range []int64{0, 1, 42, 99, 2024} {
		spheres := BuildSpheres(NewStream(seed), DefaultSphereParams())
		require.NotEmpty(t, spheres)
		assert.LessOrEqual(t, len(spheres), DefaultSphereParams().CountMax)

		for i := range spheres {
			for j := i + 1; j < len(spheres); j++ {
				d := spheres[i].Position.Sub(spheres[j].Position).Len()
				sum := spheres[i].Radius + spheres[j].Radius
				if d < sum-1e-4 {
					t.Fatalf("seed %d: spheres %d and %d overlap: dist %f < %f", seed, i, j, d, sum)
				}
			}
		}
	}
}

func TestBuildSpheresRestOnGround(t *testing.T) {
	p := SphereParams{CountMax: 200, RadiusMin: 2, RadiusMax: 4, PlacementRadius: 50}
	for i, s := range BuildSpheres(NewStream(7), p) {
		assert.Equal(t, s.Radius, s.Position.Y(), "sphere %d should rest on the ground", i)
		assert.GreaterOrEqual(t, s.Radius, p.RadiusMin)
		assert.LessOrEqual(t, s.Radius, p.RadiusMax)
		horiz := mgl32.Vec2{s.Position.X(), s.Position.Z()}.Len()
		assert.LessOrEqual(t, horiz, p.PlacementRadius+1e-3)
	}
}

func TestBuildSpheresMaterialPolicy(t *testing.T) {
	// radius, disk r, disk theta, h, s, v, metal?, smoothness
	metal := &seqStream{vals: []float32{0.5, 0, 0, 0, 1, 1, 0.25, 0.2}}
	spheres := BuildSpheres(metal, SphereParams{CountMax: 1, RadiusMin: 1, RadiusMax: 3, PlacementRadius: 10})
	require.Len(t, spheres, 1)
	s := spheres[0]
	assert.Equal(t, float32(2), s.Radius)
	assert.Equal(t, mgl32.Vec3{}, s.Albedo)
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, s.Specular)
	assert.InDelta(t, 0.7, s.Smoothness, 1e-6)
	assert.Equal(t, mgl32.Vec3{0.5, 0, 0}, s.Emission)

	// radius, disk r, disk theta, h, s, v, matte, emission
	matte := &seqStream{vals: []float32{0, 0, 0, 0, 0, 0.5, 0.75, 0.5}}
	spheres = BuildSpheres(matte, SphereParams{CountMax: 1, RadiusMin: 1, RadiusMax: 3, PlacementRadius: 10})
	require.Len(t, spheres, 1)
	s = spheres[0]
	assert.Equal(t, mgl32.Vec3{0.5, 0.5, 0.5}, s.Albedo)
	assert.Equal(t, mgl32.Vec3{0.06, 0.06, 0.06}, s.Specular)
	assert.Equal(t, float32(0.1), s.Smoothness)
	assert.InDelta(t, 0.1, s.Emission.X(), 1e-6)
}

func TestBuildSpheresRejectsWithoutRetry(t *testing.T) {
	// Every candidate lands at the origin, so only the first one survives.
	stream := &seqStream{vals: []float32{0}}
	spheres := BuildSpheres(stream, SphereParams{CountMax: 10, RadiusMin: 1, RadiusMax: 1, PlacementRadius: 100})
	assert.Len(t, spheres, 1)
}

func TestBuildSpheresThreeWithWideDisk(t *testing.T) {
	p := SphereParams{CountMax: 3, RadiusMin: 0.5, RadiusMax: 1, PlacementRadius: 1e6}
	spheres := BuildSpheres(NewStream(42), p)
	assert.Len(t, spheres, 3)
}

func TestBuildSpheresNegativeCount(t *testing.T) {
	p := DefaultSphereParams()
	p.CountMax = -5
	assert.Empty(t, BuildSpheres(NewStream(1), p))
}

func TestBuildMeshGeometryFlattens(t *testing.T) {
	quad := NewMeshObject("quad", NewQuadMesh(), DefaultMaterial())
	cube := NewMeshObject("cube", NewCubeMesh(), NewMaterial(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{}, 0.5))
	cube.Transform.Position = mgl32.Vec3{0, 10, 0}

	g, err := BuildMeshGeometry([]*MeshObject{quad, cube})
	require.NoError(t, err)

	assert.Len(t, g.Vertices, 4+8)
	assert.Len(t, g.Indices, 6+36)
	require.Len(t, g.Descriptors, 2)

	assert.Equal(t, uint32(0), g.Descriptors[0].IndexOffset)
	assert.Equal(t, uint32(6), g.Descriptors[0].IndexCount)
	assert.Equal(t, uint32(6), g.Descriptors[1].IndexOffset)
	assert.Equal(t, uint32(36), g.Descriptors[1].IndexCount)

	// The cube's indices are rebased past the quad's four vertices.
	for _, idx := range g.Indices[6:] {
		assert.GreaterOrEqual(t, idx, uint32(4))
	}
	for _, idx := range g.Indices {
		assert.Less(t, idx, uint32(len(g.Vertices)))
	}
	for _, d := range g.Descriptors {
		assert.LessOrEqual(t, d.IndexOffset+d.IndexCount, uint32(len(g.Indices)))
	}

	assert.Equal(t, float32(10), g.Descriptors[1].LocalToWorld.At(1, 3))
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, g.Descriptors[1].Albedo)
}

func TestBuildMeshGeometryReproducible(t *testing.T) {
	objs := []*MeshObject{
		NewMeshObject("a", NewCubeMesh(), DefaultMaterial()),
		NewMeshObject("b", NewQuadMesh(), DefaultMaterial()),
	}
	g1, err := BuildMeshGeometry(objs)
	require.NoError(t, err)
	g2, err := BuildMeshGeometry(objs)
	require.NoError(t, err)
	assert.Equal(t, g1, g2)
}

func TestBuildMeshGeometryEmpty(t *testing.T) {
	g, err := BuildMeshGeometry(nil)
	require.NoError(t, err)
	assert.True(t, g.Empty())
	assert.Empty(t, g.Vertices)
	assert.Empty(t, g.Indices)
}

func TestBuildMeshGeometryRejectsBadIndex(t *testing.T) {
	bad := NewMeshObject("bad", &Mesh{
		Vertices: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:  []uint32{0, 1, 3},
	}, DefaultMaterial())

	_, err := BuildMeshGeometry([]*MeshObject{bad})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInconsistentGeometry))
}

func TestBuildMeshGeometryRejectsPartialTriangle(t *testing.T) {
	bad := NewMeshObject("partial", &Mesh{
		Vertices: []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}},
		Indices:  []uint32{0, 1},
	}, DefaultMaterial())

	_, err := BuildMeshGeometry([]*MeshObject{bad})
	assert.ErrorIs(t, err, ErrInconsistentGeometry)
}

func TestGeometryValidateDescriptorRange(t *testing.T) {
	g := Geometry{
		Vertices:    []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indices:     []uint32{0, 1, 2},
		Descriptors: []MeshObjectDescriptor{{IndexOffset: 1, IndexCount: 3}},
	}
	assert.ErrorIs(t, g.Validate(), ErrInconsistentGeometry)
}
