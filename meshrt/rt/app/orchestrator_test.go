package app

import (
	"context"
	"errors"
	"testing"

	"github.com/gekko3d/raymaster/meshrt/rt/core"
	"github.com/gekko3d/raymaster/meshrt/rt/gpu"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKernel fills the result with the 1-based index of the successful run.
type fakeKernel struct {
	runs int
	fail error
	last gpu.Dispatch
}

func (k *fakeKernel) Run(d gpu.Dispatch) error {
	if k.fail != nil {
		return k.fail
	}
	k.runs++
	k.last = d
	v := float32(k.runs)
	d.Result.(*gpu.HostTarget).Fill([4]float32{v, v, v, 1})
	return nil
}

type countingPresenter struct {
	presents int
}

func (p *countingPresenter) Present(converged gpu.Target) error {
	p.presents++
	return nil
}

type flakyDevice struct {
	*gpu.HostDevice
	failBuffers bool
}

func (d *flakyDevice) CreateBuffer(label string, count, stride int) (gpu.Buffer, error) {
	if d.failBuffers {
		return nil, errors.New("out of memory")
	}
	return d.HostDevice.CreateBuffer(label, count, stride)
}

type countingLogger struct {
	core.Logger
	warnings int
}

func (l *countingLogger) Warnf(format string, args ...any) {
	l.warnings++
}

func newTestOrchestrator(t *testing.T, dev gpu.Device) (*FrameOrchestrator, *fakeKernel, *countingPresenter) {
	t.Helper()
	k := &fakeKernel{}
	p := &countingPresenter{}
	o := NewFrameOrchestrator(dev, k, gpu.HostBlender{}, p, nil)
	o.SphereParams.CountMax = 50
	require.NoError(t, o.SetupScene(1))
	return o, k, p
}

func frameInput(w, h int) FrameInput {
	return FrameInput{
		Width:             w,
		Height:            h,
		CameraToWorld:     mgl32.Ident4(),
		InverseProjection: mgl32.Ident4(),
		Light:             core.DefaultDirectionalLight(),
	}
}

func cube() *core.MeshObject {
	return core.NewMeshObject("cube", core.NewCubeMesh(), core.DefaultMaterial())
}

func TestFourFramesAccumulateWithOneRebuild(t *testing.T) {
	o, k, p := newTestOrchestrator(t, gpu.NewHostDevice())
	require.NoError(t, o.Registry.Register(cube()))

	ctx := context.Background()
	var last FrameStats
	for i := 0; i < 4; i++ {
		stats, err := o.Frame(ctx, frameInput(64, 48))
		require.NoError(t, err)
		assert.Equal(t, i == 0, stats.Rebuilt, "frame %d", i)
		last = stats
	}
	assert.Equal(t, uint32(4), last.Sample)
	assert.Equal(t, 1, o.Rebuilds)
	assert.Equal(t, 4, k.runs)
	assert.Equal(t, 4, p.presents)
	assert.Equal(t, uint32(8), last.GroupsX)
	assert.Equal(t, uint32(6), last.GroupsY)

	// Converged holds the mean of samples 1..4.
	conv := o.Targets.Converged.(*gpu.HostTarget)
	assert.InDelta(t, 2.5, conv.At(10, 10)[0], 1e-5)
}

func TestSpheresOnlySceneAccumulatesWithoutRebuild(t *testing.T) {
	k := &fakeKernel{}
	o := NewFrameOrchestrator(gpu.NewHostDevice(), k, gpu.HostBlender{}, nil, nil)
	o.SphereParams = core.SphereParams{CountMax: 3, RadiusMin: 0.5, RadiusMax: 1, PlacementRadius: 1e6}
	require.NoError(t, o.SetupScene(42))
	require.NotNil(t, o.Buffers.Bindings().Spheres)
	assert.Equal(t, 3, o.Buffers.Bindings().Spheres.Count)

	var stats FrameStats
	for i := 0; i < 4; i++ {
		var err error
		stats, err = o.Frame(context.Background(), frameInput(32, 32))
		require.NoError(t, err)
		assert.False(t, stats.Rebuilt)
	}
	assert.Equal(t, uint32(4), stats.Sample)
	assert.Equal(t, 0, o.Rebuilds)
	assert.Equal(t, 4, k.runs)
	assert.Nil(t, k.last.Bindings.MeshObjects)
}

func TestDispatchSeesBoundScene(t *testing.T) {
	o, k, _ := newTestOrchestrator(t, gpu.NewHostDevice())
	require.NoError(t, o.Registry.Register(cube()))

	_, err := o.Frame(context.Background(), frameInput(16, 16))
	require.NoError(t, err)

	b := k.last.Bindings
	require.NotNil(t, b.Spheres)
	require.NotNil(t, b.MeshObjects)
	assert.Equal(t, 1, b.MeshObjects.Count)
	assert.Equal(t, 8, b.Vertices.Count)
	assert.Equal(t, 36, b.Indices.Count)
	assert.Equal(t, core.DefaultKernelParams(), k.last.Uniforms.KernelParams)
	off := k.last.Uniforms.PixelOffset
	assert.True(t, off.X() >= 0 && off.X() < 1 && off.Y() >= 0 && off.Y() < 1)
}

func TestEmptySceneLeavesMeshSlotsUnbound(t *testing.T) {
	o, k, _ := newTestOrchestrator(t, gpu.NewHostDevice())
	stats, err := o.Frame(context.Background(), frameInput(8, 8))
	require.NoError(t, err)
	assert.False(t, stats.Rebuilt)
	assert.Nil(t, k.last.Bindings.MeshObjects)
	assert.Nil(t, k.last.Bindings.Vertices)
	assert.Nil(t, k.last.Bindings.Indices)
}

func TestResizeResetsAccumulation(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, gpu.NewHostDevice())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := o.Frame(ctx, frameInput(64, 64))
		require.NoError(t, err)
	}
	stats, err := o.Frame(ctx, frameInput(32, 64))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stats.Sample)
	assert.Equal(t, ResetResized, stats.Reset)
	assert.Equal(t, 32, o.Targets.Raw.Width())
}

func TestViewChangeResetsAccumulation(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, gpu.NewHostDevice())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := o.Frame(ctx, frameInput(16, 16))
		require.NoError(t, err)
	}
	in := frameInput(16, 16)
	in.ViewChanged = true
	stats, err := o.Frame(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), stats.Sample)
	assert.Equal(t, "view", stats.Reset.String())
}

func TestDispatchFailureKeepsSampleCount(t *testing.T) {
	o, k, p := newTestOrchestrator(t, gpu.NewHostDevice())
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := o.Frame(ctx, frameInput(16, 16))
		require.NoError(t, err)
	}

	k.fail = errors.New("device lost")
	stats, err := o.Frame(ctx, frameInput(16, 16))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDispatch)
	assert.Equal(t, uint32(2), stats.Sample)
	assert.Equal(t, uint32(2), o.Accumulation.SampleCount())
	assert.Equal(t, 2, p.presents)

	k.fail = nil
	stats, err = o.Frame(ctx, frameInput(16, 16))
	require.NoError(t, err)
	assert.Equal(t, uint32(3), stats.Sample)
}

func TestInconsistentGeometryKeepsPreviousBuffers(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, gpu.NewHostDevice())
	ctx := context.Background()
	require.NoError(t, o.Registry.Register(cube()))
	_, err := o.Frame(ctx, frameInput(16, 16))
	require.NoError(t, err)
	before := o.Buffers.Bindings()

	broken := core.NewMeshObject("broken", &core.Mesh{
		Vertices: []mgl32.Vec3{{0, 0, 0}},
		Indices:  []uint32{0, 1, 2},
	}, core.DefaultMaterial())
	require.NoError(t, o.Registry.Register(broken))

	stats, err := o.Frame(ctx, frameInput(16, 16))
	require.NoError(t, err)
	assert.False(t, stats.Rebuilt)
	assert.Equal(t, uint32(2), stats.Sample)
	assert.Equal(t, before, o.Buffers.Bindings())
	assert.False(t, o.Registry.Dirty(), "an unchanged broken scene is not rebuilt again")

	require.NoError(t, o.Registry.Unregister(broken))
	stats, err = o.Frame(ctx, frameInput(16, 16))
	require.NoError(t, err)
	assert.True(t, stats.Rebuilt)
	assert.Equal(t, uint32(1), stats.Sample)
}

func TestInconsistentGeometryWarnsOnce(t *testing.T) {
	logger := &countingLogger{Logger: core.NewNopLogger()}
	o := NewFrameOrchestrator(gpu.NewHostDevice(), &fakeKernel{}, gpu.HostBlender{}, nil, logger)
	o.SphereParams.CountMax = 3
	require.NoError(t, o.SetupScene(1))

	broken := core.NewMeshObject("broken", &core.Mesh{
		Vertices: []mgl32.Vec3{{0, 0, 0}},
		Indices:  []uint32{0, 1, 2},
	}, core.DefaultMaterial())
	require.NoError(t, o.Registry.Register(broken))

	ctx := context.Background()
	for i := 0; i < 100; i++ {
		_, err := o.Frame(ctx, frameInput(16, 16))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, logger.warnings)
	assert.Equal(t, uint32(100), o.Accumulation.SampleCount())

	// Fixing the mesh in place and reporting it rebuilds.
	broken.Mesh.Vertices = append(broken.Mesh.Vertices, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0})
	o.Registry.MarkDirty()
	stats, err := o.Frame(ctx, frameInput(16, 16))
	require.NoError(t, err)
	assert.True(t, stats.Rebuilt)
	assert.Equal(t, 1, logger.warnings)
}

func TestAllocationFailureSkipsFrame(t *testing.T) {
	dev := &flakyDevice{HostDevice: gpu.NewHostDevice()}
	o, k, _ := newTestOrchestrator(t, dev)
	require.NoError(t, o.Registry.Register(cube()))

	dev.failBuffers = true
	_, err := o.Frame(context.Background(), frameInput(16, 16))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrAllocation)
	assert.Equal(t, 0, k.runs)
	assert.True(t, o.Registry.Dirty())

	dev.failBuffers = false
	stats, err := o.Frame(context.Background(), frameInput(16, 16))
	require.NoError(t, err)
	assert.True(t, stats.Rebuilt)
	assert.Equal(t, uint32(1), stats.Sample)
}

func TestUnregisterTriggersRebuild(t *testing.T) {
	o, k, _ := newTestOrchestrator(t, gpu.NewHostDevice())
	ctx := context.Background()
	obj := cube()
	require.NoError(t, o.Registry.Register(obj))
	_, err := o.Frame(ctx, frameInput(16, 16))
	require.NoError(t, err)

	require.NoError(t, o.Registry.Unregister(obj))
	stats, err := o.Frame(ctx, frameInput(16, 16))
	require.NoError(t, err)
	assert.True(t, stats.Rebuilt)
	assert.Nil(t, k.last.Bindings.MeshObjects)
	assert.Equal(t, 2, o.Rebuilds)
}

func TestMaxSamplesStopsDispatching(t *testing.T) {
	o, k, p := newTestOrchestrator(t, gpu.NewHostDevice())
	o.Accumulation.MaxSamples = 2
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		_, err := o.Frame(ctx, frameInput(8, 8))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, k.runs)
	assert.Equal(t, 4, p.presents)
	assert.Equal(t, uint32(2), o.Accumulation.SampleCount())
}

func TestCancelledContext(t *testing.T) {
	o, k, _ := newTestOrchestrator(t, gpu.NewHostDevice())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.Frame(ctx, frameInput(8, 8))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, k.runs)
	assert.False(t, o.Targets.Ready())
}

func TestSphereSeedAndKernelParams(t *testing.T) {
	o, k, _ := newTestOrchestrator(t, gpu.NewHostDevice())
	ctx := context.Background()
	_, err := o.Frame(ctx, frameInput(8, 8))
	require.NoError(t, err)
	count := k.last.Bindings.Spheres.Count

	require.NoError(t, o.SetSphereSeed(1))
	assert.Equal(t, uint32(1), o.Accumulation.SampleCount(), "same seed is a no-op")

	require.NoError(t, o.SetSphereSeed(2))
	assert.Equal(t, int64(2), o.SphereSeed())
	assert.Equal(t, uint32(0), o.Accumulation.SampleCount())

	params := core.DefaultKernelParams()
	params.IOR = 1.5
	_, err = o.Frame(ctx, frameInput(8, 8))
	require.NoError(t, err)
	o.SetKernelParams(params)
	assert.Equal(t, uint32(0), o.Accumulation.SampleCount())
	_, err = o.Frame(ctx, frameInput(8, 8))
	require.NoError(t, err)
	assert.Equal(t, float32(1.5), k.last.Uniforms.IOR)
	assert.Greater(t, count, 0)
}

func TestReleaseFreesResources(t *testing.T) {
	dev := gpu.NewHostDevice()
	o, _, _ := newTestOrchestrator(t, dev)
	require.NoError(t, o.Registry.Register(cube()))
	_, err := o.Frame(context.Background(), frameInput(8, 8))
	require.NoError(t, err)
	require.Greater(t, dev.Live(), 0)

	o.Release()
	assert.Equal(t, 0, dev.Live())
	assert.True(t, o.Registry.Dirty())

	require.NoError(t, o.SetupScene(1))
	stats, err := o.Frame(context.Background(), frameInput(8, 8))
	require.NoError(t, err)
	assert.True(t, stats.Rebuilt)
}

func TestProfilerRecordsScopes(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, gpu.NewHostDevice())
	require.NoError(t, o.Registry.Register(cube()))
	_, err := o.Frame(context.Background(), frameInput(8, 8))
	require.NoError(t, err)

	assert.Equal(t, 1, o.Profiler.Frames)
	assert.Equal(t, 12, o.Profiler.Counts["Triangles"])
	s := o.Profiler.GetStatsString()
	assert.Contains(t, s, "Dispatch")
	assert.Contains(t, s, "Rebuild")
}
