package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gekko3d/raymaster/meshrt/rt/core"
	"github.com/gekko3d/raymaster/meshrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
)

// FrameInput is what the host supplies every frame.
type FrameInput struct {
	Width, Height     int
	CameraToWorld     mgl32.Mat4
	InverseProjection mgl32.Mat4
	Light             core.DirectionalLight
	ViewChanged       bool
}

// ResetReason records why accumulation restarted during a frame.
type ResetReason uint8

const (
	ResetSceneRebuilt ResetReason = 1 << iota
	ResetViewChanged
	ResetResized
)

func (r ResetReason) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	if r&ResetSceneRebuilt != 0 {
		parts = append(parts, "scene")
	}
	if r&ResetViewChanged != 0 {
		parts = append(parts, "view")
	}
	if r&ResetResized != 0 {
		parts = append(parts, "resize")
	}
	return strings.Join(parts, "+")
}

type FrameStats struct {
	// Sample is the accumulated sample count after the frame.
	Sample  uint32
	Rebuilt bool
	Reset   ResetReason
	GroupsX uint32
	GroupsY uint32
	// Converged is set when the sample cap was reached and nothing was dispatched.
	Converged bool
}

// FrameOrchestrator drives one progressive ray tracing frame: scene rebuild,
// target sizing, dispatch, accumulation and presentation, strictly in that order.
type FrameOrchestrator struct {
	Registry     *core.SceneRegistry
	Buffers      *gpu.GpuBufferManager
	Targets      *gpu.FrameTargetManager
	Accumulation *gpu.AccumulationPipeline
	Kernel       gpu.Kernel
	// Presenter may be nil for headless rendering.
	Presenter gpu.Presenter

	Stream       core.Stream
	Params       core.KernelParams
	SphereParams core.SphereParams

	Logger   core.Logger
	Profiler *Profiler

	// Rebuilds counts successful geometry rebuilds.
	Rebuilds int

	sphereSeed int64
	spheres    int
}

func NewFrameOrchestrator(device gpu.Device, kernel gpu.Kernel, blender gpu.Blender, presenter gpu.Presenter, logger core.Logger) *FrameOrchestrator {
	logger = core.OrNop(logger)
	return &FrameOrchestrator{
		Registry:     core.NewSceneRegistry(),
		Buffers:      gpu.NewGpuBufferManager(device, logger),
		Targets:      gpu.NewFrameTargetManager(device),
		Accumulation: gpu.NewAccumulationPipeline(blender),
		Kernel:       kernel,
		Presenter:    presenter,
		Stream:       core.NewStream(0),
		Params:       core.DefaultKernelParams(),
		SphereParams: core.DefaultSphereParams(),
		Logger:       logger,
		Profiler:     NewProfiler(),
	}
}

// SetupScene reseeds the random stream, regenerates and uploads the spheres
// and restarts accumulation.
func (o *FrameOrchestrator) SetupScene(seed int64) error {
	o.sphereSeed = seed
	o.Stream = core.NewStream(seed)
	spheres := core.BuildSpheres(o.Stream, o.SphereParams)
	if _, err := o.Buffers.UpdateSpheres(spheres); err != nil {
		return fmt.Errorf("setup scene: %w", err)
	}
	o.spheres = len(spheres)
	o.Accumulation.Reset()
	o.Logger.Infof("scene set up: seed %d, %d spheres", seed, len(spheres))
	return nil
}

// SetSphereSeed regenerates the spheres if seed differs from the current one.
func (o *FrameOrchestrator) SetSphereSeed(seed int64) error {
	if seed == o.sphereSeed {
		return nil
	}
	return o.SetupScene(seed)
}

func (o *FrameOrchestrator) SphereSeed() int64 {
	return o.sphereSeed
}

// SetKernelParams replaces the shading parameters. The converged image no
// longer matches them, so accumulation restarts.
func (o *FrameOrchestrator) SetKernelParams(p core.KernelParams) {
	o.Params = p
	o.Accumulation.Reset()
}

// Frame renders one frame. Errors are per-frame: the caller logs them and the
// next frame retries.
func (o *FrameOrchestrator) Frame(ctx context.Context, in FrameInput) (FrameStats, error) {
	var stats FrameStats
	if err := ctx.Err(); err != nil {
		return stats, err
	}
	defer o.Profiler.EndFrame()

	rebuilt, err := o.rebuildIfDirty()
	if err != nil {
		return stats, err
	}
	if rebuilt {
		stats.Rebuilt = true
		stats.Reset |= ResetSceneRebuilt
		o.Accumulation.Reset()
	}

	if in.ViewChanged {
		stats.Reset |= ResetViewChanged
		o.Accumulation.Reset()
	}

	resized, err := o.Targets.EnsureSize(in.Width, in.Height)
	if err != nil {
		o.Accumulation.Reset()
		return stats, err
	}
	if resized {
		stats.Reset |= ResetResized
		o.Accumulation.Reset()
	}

	if o.Accumulation.Converged() {
		stats.Converged = true
		stats.Sample = o.Accumulation.SampleCount()
		return stats, o.present()
	}

	stats.GroupsX, stats.GroupsY = gpu.WorkGroups(in.Width, in.Height)

	uniforms := gpu.Uniforms{
		CameraToWorld:           in.CameraToWorld,
		CameraInverseProjection: in.InverseProjection,
		PixelOffset:             mgl32.Vec2{o.Stream.Float32(), o.Stream.Float32()},
		Seed:                    o.Stream.Float32(),
		DirectionalLight:        in.Light.Vec4(),
		KernelParams:            o.Params,
	}

	stop := o.Profiler.Scope("Dispatch")
	err = o.Kernel.Run(gpu.Dispatch{
		Bindings: o.Buffers.Bindings(),
		Uniforms: uniforms,
		Result:   o.Targets.Raw,
		GroupsX:  stats.GroupsX,
		GroupsY:  stats.GroupsY,
	})
	stop()
	if err != nil {
		stats.Sample = o.Accumulation.SampleCount()
		return stats, fmt.Errorf("dispatch %dx%d: %w: %v", stats.GroupsX, stats.GroupsY, core.ErrDispatch, err)
	}

	stop = o.Profiler.Scope("Blend")
	err = o.Accumulation.Blend(o.Targets.Raw, o.Targets.Converged)
	stop()
	stats.Sample = o.Accumulation.SampleCount()
	if err != nil {
		return stats, err
	}

	o.Profiler.SetCount("Sample", int(stats.Sample))
	return stats, o.present()
}

// rebuildIfDirty consumes the dirty bit and re-uploads mesh geometry.
// An inconsistent geometry keeps the previous buffers bound and lets the
// frame continue; the rebuild waits for the next scene change, which sets
// the bit again. Any other failure re-arms the bit and skips the frame.
func (o *FrameOrchestrator) rebuildIfDirty() (bool, error) {
	if !o.Registry.ConsumeDirty() {
		return false, nil
	}
	defer o.Profiler.Scope("Rebuild")()

	objects := o.Registry.Objects()
	g, err := core.BuildMeshGeometry(objects)
	if err == nil {
		_, err = o.Buffers.UpdateGeometry(g)
	}
	if err != nil {
		if errors.Is(err, core.ErrInconsistentGeometry) {
			o.Logger.Warnf("scene rebuild rejected, keeping previous geometry: %v", err)
			return false, nil
		}
		o.Registry.MarkDirty()
		return false, fmt.Errorf("scene rebuild: %w", err)
	}

	o.Rebuilds++
	o.Profiler.SetCount("MeshObjects", len(g.Descriptors))
	o.Profiler.SetCount("Triangles", len(g.Indices)/3)
	o.Profiler.SetCount("Spheres", o.spheres)
	o.Logger.Debugf("scene rebuilt: %d objects, %d vertices, %d indices",
		len(g.Descriptors), len(g.Vertices), len(g.Indices))
	return true, nil
}

func (o *FrameOrchestrator) present() error {
	if o.Presenter == nil {
		return nil
	}
	defer o.Profiler.Scope("Present")()
	if err := o.Presenter.Present(o.Targets.Converged); err != nil {
		return fmt.Errorf("present: %w", err)
	}
	return nil
}

// Release frees every GPU resource the orchestrator owns. The registry keeps
// its members and is marked dirty; call SetupScene before rendering again.
func (o *FrameOrchestrator) Release() {
	o.Buffers.Release()
	o.Targets.Release()
	o.Accumulation.Reset()
	o.Registry.MarkDirty()
}
