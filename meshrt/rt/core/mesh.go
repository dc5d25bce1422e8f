package core

import (
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// Packed GPU sizes of the flattened mesh data.
const (
	// matrix 64 + offset 4 + count 4 + albedo 12 + specular 12 + emission 12 + smoothness 4
	MeshObjectStride = 112
	VertexStride     = 12
	IndexStride      = 4
)

// Mesh is an indexed triangle list in object space.
type Mesh struct {
	Vertices []mgl32.Vec3
	Indices  []uint32
}

// MeshObject is a registrable renderable: a mesh instance with its own transform and material.
type MeshObject struct {
	ID        uuid.UUID
	Name      string
	Transform *Transform
	Mesh      *Mesh
	Material  Material
}

func NewMeshObject(name string, mesh *Mesh, mat Material) *MeshObject {
	return &MeshObject{
		ID:        uuid.New(),
		Name:      name,
		Transform: NewTransform(),
		Mesh:      mesh,
		Material:  mat,
	}
}

// MeshObjectDescriptor is the per-object record the kernel uses to walk its
// slice of the shared index buffer.
type MeshObjectDescriptor struct {
	LocalToWorld mgl32.Mat4
	IndexOffset  uint32
	IndexCount   uint32
	Material
}

// Geometry is the flattened form of every registered mesh object.
type Geometry struct {
	Vertices    []mgl32.Vec3
	Indices     []uint32
	Descriptors []MeshObjectDescriptor
}

func (g Geometry) Empty() bool {
	return len(g.Descriptors) == 0
}

// NewQuadMesh returns a unit quad in the XZ plane, facing +Y.
func NewQuadMesh() *Mesh {
	return &Mesh{
		Vertices: []mgl32.Vec3{
			{-0.5, 0, -0.5},
			{0.5, 0, -0.5},
			{0.5, 0, 0.5},
			{-0.5, 0, 0.5},
		},
		Indices: []uint32{0, 2, 1, 0, 3, 2},
	}
}

// NewCubeMesh returns a unit cube centered on the origin.
func NewCubeMesh() *Mesh {
	return &Mesh{
		Vertices: []mgl32.Vec3{
			{-0.5, -0.5, -0.5},
			{0.5, -0.5, -0.5},
			{0.5, 0.5, -0.5},
			{-0.5, 0.5, -0.5},
			{-0.5, -0.5, 0.5},
			{0.5, -0.5, 0.5},
			{0.5, 0.5, 0.5},
			{-0.5, 0.5, 0.5},
		},
		Indices: []uint32{
			0, 2, 1, 0, 3, 2, // back
			4, 5, 6, 4, 6, 7, // front
			0, 1, 5, 0, 5, 4, // bottom
			3, 6, 2, 3, 7, 6, // top
			0, 4, 7, 0, 7, 3, // left
			1, 2, 6, 1, 6, 5, // right
		},
	}
}
