package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// DirectionalLight is a sun-style light: the direction the light travels, and its intensity.
type DirectionalLight struct {
	Direction mgl32.Vec3
	Intensity float32
}

func DefaultDirectionalLight() DirectionalLight {
	return DirectionalLight{
		Direction: mgl32.Vec3{-0.4, -1, 0.3}.Normalize(),
		Intensity: 1.0,
	}
}

// Vec4 packs xyz = direction, w = intensity, as the kernel expects.
func (l DirectionalLight) Vec4() mgl32.Vec4 {
	d := l.Direction
	if d.Len() > 0 {
		d = d.Normalize()
	}
	return mgl32.Vec4{d.X(), d.Y(), d.Z(), l.Intensity}
}
