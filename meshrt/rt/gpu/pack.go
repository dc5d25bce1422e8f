package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/raymaster/meshrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformsSize is the byte size of the kernel's uniform block.
//
//	camera_to_world: mat4x4<f32>  -- 0
//	inv_proj: mat4x4<f32>         -- 64
//	directional_light: vec4<f32>  -- 128
//	pixel_offset: vec2<f32>       -- 144
//	seed, ior, absorb, color_add  -- 152..164
//	color_multiply, specular      -- 168, 172
//	sphere_count, mesh_count      -- 176, 180
//	width, height                 -- 184, 188
const UniformsSize = 192

// PackSpheres lays spheres out at core.SphereStride bytes each.
func PackSpheres(spheres []core.Sphere) []byte {
	buf := make([]byte, 0, len(spheres)*core.SphereStride)
	for _, s := range spheres {
		buf = appendVec3(buf, s.Position)
		buf = appendFloat32(buf, s.Radius)
		buf = appendVec3(buf, s.Albedo)
		buf = appendVec3(buf, s.Specular)
		buf = appendVec3(buf, s.Emission)
		buf = appendFloat32(buf, s.Smoothness)
	}
	return buf
}

// PackDescriptors lays descriptors out at core.MeshObjectStride bytes each.
func PackDescriptors(ds []core.MeshObjectDescriptor) []byte {
	buf := make([]byte, 0, len(ds)*core.MeshObjectStride)
	for _, d := range ds {
		buf = appendMat4(buf, d.LocalToWorld)
		buf = binary.LittleEndian.AppendUint32(buf, d.IndexOffset)
		buf = binary.LittleEndian.AppendUint32(buf, d.IndexCount)
		buf = appendVec3(buf, d.Albedo)
		buf = appendVec3(buf, d.Specular)
		buf = appendVec3(buf, d.Emission)
		buf = appendFloat32(buf, d.Smoothness)
	}
	return buf
}

func PackVertices(vs []mgl32.Vec3) []byte {
	buf := make([]byte, 0, len(vs)*core.VertexStride)
	for _, v := range vs {
		buf = appendVec3(buf, v)
	}
	return buf
}

func PackIndices(is []uint32) []byte {
	buf := make([]byte, 0, len(is)*core.IndexStride)
	for _, i := range is {
		buf = binary.LittleEndian.AppendUint32(buf, i)
	}
	return buf
}

// Pack writes the uniform block. Element counts come from the bindings so the
// kernel never indexes an unbound slot.
func (u Uniforms) Pack(b Bindings, width, height int) []byte {
	buf := make([]byte, 0, UniformsSize)
	buf = appendMat4(buf, u.CameraToWorld)
	buf = appendMat4(buf, u.CameraInverseProjection)
	buf = appendVec4(buf, u.DirectionalLight)
	buf = appendFloat32(buf, u.PixelOffset.X())
	buf = appendFloat32(buf, u.PixelOffset.Y())
	buf = appendFloat32(buf, u.Seed)
	buf = appendFloat32(buf, u.IOR)
	buf = appendFloat32(buf, u.AbsorbIntensity)
	buf = appendFloat32(buf, u.ColorAdd)
	buf = appendFloat32(buf, u.ColorMultiply)
	buf = appendFloat32(buf, u.Specular)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(b.Spheres.count()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(b.MeshObjects.count()))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(width))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(height))
	return buf
}

func (b *Binding) count() int {
	if b == nil {
		return 0
	}
	return b.Count
}

// Helpers
func appendFloat32(buf []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
}

func appendVec3(buf []byte, v mgl32.Vec3) []byte {
	for _, f := range v {
		buf = appendFloat32(buf, f)
	}
	return buf
}

func appendVec4(buf []byte, v mgl32.Vec4) []byte {
	for _, f := range v {
		buf = appendFloat32(buf, f)
	}
	return buf
}

func appendMat4(buf []byte, m mgl32.Mat4) []byte {
	for _, f := range m {
		buf = appendFloat32(buf, f)
	}
	return buf
}
