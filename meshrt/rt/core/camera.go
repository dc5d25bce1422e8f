package core

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32
	FovY        float32 // degrees
	Near        float32
	Far         float32

	last     cameraPose
	observed bool
}

type cameraPose struct {
	position   mgl32.Vec3
	yaw, pitch float32
	fovY       float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, 60, 180},
		Yaw:         0,
		Pitch:       -0.3,
		Speed:       60.0,
		Sensitivity: 0.003,
		FovY:        60,
		Near:        0.3,
		Far:         1000,
	}
}

func (c *CameraState) GetForward() mgl32.Vec3 {
	// Y-up: yaw around Y, pitch towards +Y
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

func (c *CameraState) GetRight() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Yaw))),
		0,
		float32(math.Sin(float64(c.Yaw))),
	}
}

func (c *CameraState) GetViewMatrix() mgl32.Mat4 {
	eye := c.Position
	target := eye.Add(c.GetForward())
	up := mgl32.Vec3{0, 1, 0}
	return mgl32.LookAtV(eye, target, up)
}

// CameraToWorld is the inverse of the view matrix.
func (c *CameraState) CameraToWorld() mgl32.Mat4 {
	return c.GetViewMatrix().Inv()
}

func (c *CameraState) Projection(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1.0
	}
	return mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
}

func (c *CameraState) InverseProjection(aspect float32) mgl32.Mat4 {
	return c.Projection(aspect).Inv()
}

// ClampPitch keeps the camera from flipping over the poles.
func (c *CameraState) ClampPitch() {
	const limit = math.Pi/2 - 0.01
	if c.Pitch > limit {
		c.Pitch = limit
	}
	if c.Pitch < -limit {
		c.Pitch = -limit
	}
}

// ConsumeChanged reports whether the pose changed since the previous call and
// records the current pose. The first call always reports a change.
func (c *CameraState) ConsumeChanged() bool {
	pose := cameraPose{position: c.Position, yaw: c.Yaw, pitch: c.Pitch, fovY: c.FovY}
	if c.observed && pose == c.last {
		return false
	}
	c.last = pose
	c.observed = true
	return true
}
