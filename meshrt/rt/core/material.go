package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Material is the per-surface data the kernel reads for spheres and mesh objects.
// Colors are linear RGB.
type Material struct {
	Albedo     mgl32.Vec3
	Specular   mgl32.Vec3
	Emission   mgl32.Vec3
	Smoothness float32
}

func NewMaterial(albedo, specular mgl32.Vec3, smoothness float32) Material {
	return Material{
		Albedo:     albedo,
		Specular:   specular,
		Smoothness: smoothness,
	}
}

// Helper for default matte white
func DefaultMaterial() Material {
	return Material{
		Albedo:     mgl32.Vec3{0.8, 0.8, 0.8},
		Specular:   mgl32.Vec3{0.06, 0.06, 0.06},
		Smoothness: 0.1,
	}
}

// KernelParams are the tunable scalars pushed to the kernel every frame.
type KernelParams struct {
	IOR             float32
	AbsorbIntensity float32
	ColorAdd        float32
	ColorMultiply   float32
	Specular        float32
}

func DefaultKernelParams() KernelParams {
	return KernelParams{
		IOR:             2.83,
		AbsorbIntensity: 2.89,
		ColorAdd:        0.05,
		ColorMultiply:   1.96,
		Specular:        0.472,
	}
}
