package gpu

import (
	"github.com/gekko3d/raymaster/meshrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

// Buffer is a device-resident storage buffer holding Count elements of Stride bytes.
type Buffer interface {
	Count() int
	Stride() int
	Release()
}

// Target is a device-resident RGBA float image that the kernel may write to
// from compute shaders.
type Target interface {
	Width() int
	Height() int
	Release()
}

// Device allocates and fills the resources managed by this package.
type Device interface {
	CreateBuffer(label string, count, stride int) (Buffer, error)
	WriteBuffer(buf Buffer, data []byte) error
	CreateTarget(label string, width, height int) (Target, error)
}

// Binding is a buffer bound to a kernel slot. A nil *Binding means the slot is unbound.
type Binding struct {
	Buffer Buffer
	Count  int
	Stride int
}

// Bindings is the buffer set the kernel reads.
type Bindings struct {
	Spheres     *Binding
	MeshObjects *Binding
	Vertices    *Binding
	Indices     *Binding
}

// Uniforms are the per-frame scalar inputs to the kernel.
type Uniforms struct {
	CameraToWorld           mgl32.Mat4
	CameraInverseProjection mgl32.Mat4
	PixelOffset             mgl32.Vec2
	Seed                    float32
	DirectionalLight        mgl32.Vec4
	core.KernelParams
}

// Dispatch is everything one kernel invocation needs.
type Dispatch struct {
	Bindings Bindings
	Uniforms Uniforms
	Result   Target
	GroupsX  uint32
	GroupsY  uint32
}

// Kernel is the opaque ray tracing program. Run writes one sample per pixel into d.Result.
type Kernel interface {
	Run(d Dispatch) error
}

// Blender folds raw into converged with weight for raw and 1-weight for converged.
type Blender interface {
	Blend(raw, converged Target, weight float32) error
}

// Presenter shows the converged image on the output surface.
type Presenter interface {
	Present(converged Target) error
}

// TileSize is the kernel's fixed thread group edge.
const TileSize = 8

// WorkGroups returns the group counts that fully cover a width x height image.
func WorkGroups(width, height int) (uint32, uint32) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	return uint32((width + TileSize - 1) / TileSize), uint32((height + TileSize - 1) / TileSize)
}
