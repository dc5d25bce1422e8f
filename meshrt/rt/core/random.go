package core

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

// Stream is a source of uniform values in [0,1). Scene generation draws from it
// in a fixed order, so the same stream state always yields the same scene.
type Stream interface {
	Float32() float32
}

// NewStream returns a deterministic stream seeded with seed.
func NewStream(seed int64) Stream {
	return rand.New(rand.NewSource(seed))
}

// InsideUnitDisk samples a point uniformly inside the unit disk. Consumes two draws.
func InsideUnitDisk(s Stream) mgl32.Vec2 {
	r := float32(math.Sqrt(float64(s.Float32())))
	theta := 2 * math.Pi * float64(s.Float32())
	return mgl32.Vec2{r * float32(math.Cos(theta)), r * float32(math.Sin(theta))}
}

// RandomColorHSV draws hue, saturation and value in that order and converts to RGB.
// Consumes three draws.
func RandomColorHSV(s Stream) mgl32.Vec3 {
	h := s.Float32()
	sat := s.Float32()
	v := s.Float32()
	return HSVToRGB(h, sat, v)
}

// HSVToRGB converts h, s, v in [0,1] to linear RGB.
func HSVToRGB(h, s, v float32) mgl32.Vec3 {
	if s <= 0 {
		return mgl32.Vec3{v, v, v}
	}
	h = h - float32(math.Floor(float64(h)))
	h6 := h * 6
	sector := int(h6) % 6
	f := h6 - float32(math.Floor(float64(h6)))
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	switch sector {
	case 0:
		return mgl32.Vec3{v, t, p}
	case 1:
		return mgl32.Vec3{q, v, p}
	case 2:
		return mgl32.Vec3{p, v, t}
	case 3:
		return mgl32.Vec3{p, q, v}
	case 4:
		return mgl32.Vec3{t, p, v}
	default:
		return mgl32.Vec3{v, p, q}
	}
}
