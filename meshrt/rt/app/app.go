package app

import (
	"fmt"

	"github.com/gekko3d/raymaster/meshrt/rt/core"
	"github.com/gekko3d/raymaster/meshrt/rt/gpu"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// App owns the window, the WebGPU device and the frame orchestrator wired to
// the wgpu backend.
type App struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	GpuDevice *gpu.WgpuDevice
	Kernel    *gpu.WgpuKernel
	Blender   *gpu.WgpuBlender
	Presenter *gpu.WgpuPresenter

	Orchestrator *FrameOrchestrator
	Camera       *core.CameraState
	Light        core.DirectionalLight
	Logger       core.Logger

	MouseCaptured bool
	LastTime      float64

	FrameCount int
	FPS        float64
	FPSTime    float64
}

func NewApp(window *glfw.Window, logger core.Logger) *App {
	return &App{
		Window: window,
		Camera: core.NewCameraState(),
		Light:  core.DefaultDirectionalLight(),
		Logger: core.OrNop(logger),
	}
}

// Init creates the device, surface and GPU passes. skyboxPath may be empty,
// in which case a procedural sky is used.
func (a *App) Init(skyboxPath string) error {
	a.Instance = wgpu.CreateInstance(nil)
	a.Surface = a.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(a.Window))

	adapter, err := a.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: a.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return err
	}
	a.Adapter = adapter

	a.Device, err = adapter.RequestDevice(nil)
	if err != nil {
		return err
	}

	width, height := a.Window.GetFramebufferSize()
	caps := a.Surface.GetCapabilities(adapter)
	if len(caps.Formats) == 0 {
		return fmt.Errorf("surface reports no formats")
	}
	a.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	a.Surface.Configure(adapter, a.Device, a.Config)

	a.GpuDevice = gpu.NewWgpuDevice(a.Device)
	if a.Kernel, err = gpu.NewWgpuKernel(a.GpuDevice); err != nil {
		return fmt.Errorf("raytrace kernel: %w", err)
	}
	if a.Blender, err = gpu.NewWgpuBlender(a.GpuDevice); err != nil {
		return fmt.Errorf("accumulate pass: %w", err)
	}
	if a.Presenter, err = gpu.NewWgpuPresenter(a.GpuDevice, a.Surface, a.Config.Format); err != nil {
		return fmt.Errorf("present pass: %w", err)
	}

	if skyboxPath != "" {
		img, err := gpu.LoadSkybox(skyboxPath, gpu.MaxSkyboxWidth)
		if err == nil {
			err = a.Kernel.SetSkybox(img)
		}
		if err != nil {
			a.Logger.Warnf("skybox %s unavailable, using procedural sky: %v", skyboxPath, err)
		} else {
			a.Logger.Infof("skybox loaded: %s (%dx%d)", skyboxPath, img.Bounds().Dx(), img.Bounds().Dy())
		}
	}

	a.Orchestrator = NewFrameOrchestrator(a.GpuDevice, a.Kernel, a.Blender, a.Presenter, a.Logger)
	a.LastTime = glfw.GetTime()
	return nil
}

// Resize reconfigures the surface. The frame targets follow on the next frame.
// A zero size (minimized window) pauses rendering.
func (a *App) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		a.Config.Width, a.Config.Height = 0, 0
		return
	}
	a.Config.Width = uint32(w)
	a.Config.Height = uint32(h)
	a.Surface.Configure(a.Adapter, a.Device, a.Config)
}

// Minimized reports a zero-sized framebuffer; nothing should be rendered.
func (a *App) Minimized() bool {
	return a.Config.Width == 0 || a.Config.Height == 0
}

// Update applies keyboard movement for the elapsed time since the last call.
func (a *App) Update() {
	now := glfw.GetTime()
	dt := float32(now - a.LastTime)
	a.LastTime = now

	step := a.Camera.Speed * dt
	if a.Window.GetKey(glfw.KeyLeftShift) == glfw.Press {
		step *= 4
	}
	up := mgl32.Vec3{0, 1, 0}
	for key, dir := range map[glfw.Key]mgl32.Vec3{
		glfw.KeyW: a.Camera.GetForward(),
		glfw.KeyS: a.Camera.GetForward().Mul(-1),
		glfw.KeyD: a.Camera.GetRight(),
		glfw.KeyA: a.Camera.GetRight().Mul(-1),
		glfw.KeyE: up,
		glfw.KeyQ: up.Mul(-1),
	} {
		if a.Window.GetKey(key) == glfw.Press {
			a.Camera.Position = a.Camera.Position.Add(dir.Mul(step))
		}
	}

	a.FrameCount++
	a.FPSTime += float64(dt)
	if a.FPSTime >= 1.0 {
		a.FPS = float64(a.FrameCount) / a.FPSTime
		a.FrameCount = 0
		a.FPSTime = 0
	}
}

// FrameInput samples the camera and light for the next frame.
func (a *App) FrameInput() FrameInput {
	w, h := int(a.Config.Width), int(a.Config.Height)
	aspect := float32(1)
	if h > 0 {
		aspect = float32(w) / float32(h)
	}
	return FrameInput{
		Width:             w,
		Height:            h,
		CameraToWorld:     a.Camera.CameraToWorld(),
		InverseProjection: a.Camera.InverseProjection(aspect),
		Light:             a.Light,
		ViewChanged:       a.Camera.ConsumeChanged(),
	}
}

// Snapshot writes the converged image to a PNG file.
func (a *App) Snapshot(path string) error {
	if !a.Orchestrator.Targets.Ready() {
		return fmt.Errorf("snapshot: %w: no frame rendered yet", gpu.ErrNotReadable)
	}
	img, err := a.GpuDevice.ReadTarget(a.Orchestrator.Targets.Converged)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := gpu.WritePNG(path, img); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	a.Logger.Infof("snapshot written: %s (%d samples)", path, a.Orchestrator.Accumulation.SampleCount())
	return nil
}

func (a *App) Release() {
	if a.Orchestrator != nil {
		a.Orchestrator.Release()
	}
	if a.Presenter != nil {
		a.Presenter.Release()
	}
	if a.Blender != nil {
		a.Blender.Release()
	}
	if a.Kernel != nil {
		a.Kernel.Release()
	}
	if a.Surface != nil {
		a.Surface.Release()
	}
	if a.Device != nil {
		a.Device.Release()
	}
	if a.Adapter != nil {
		a.Adapter.Release()
	}
	if a.Instance != nil {
		a.Instance.Release()
	}
}
