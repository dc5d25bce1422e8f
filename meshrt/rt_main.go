package main

import (
	"context"
	"flag"
	"fmt"
	"runtime"

	"github.com/gekko3d/raymaster"
	"github.com/gekko3d/raymaster/meshrt/rt/app"
	"github.com/gekko3d/raymaster/meshrt/rt/core"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "YAML config file (defaults are used when empty)")
	debug := flag.Bool("debug", false, "Enable debug logging and periodic profiler output")
	snapshot := flag.String("snapshot", "", "Write the converged image to this PNG once max_samples is reached, then exit")
	demo := flag.Bool("demo", true, "Register demo mesh objects")
	flag.Parse()

	cfg := raymaster.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = raymaster.LoadConfig(*configPath); err != nil {
			panic(err)
		}
	}
	if *debug {
		cfg.Debug = true
	}
	logger := cfg.NewLogger("raymaster")

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	application := app.NewApp(window, logger.Named("app"))
	if err := application.Init(cfg.Skybox); err != nil {
		panic(err)
	}
	defer application.Release()
	application.Light = cfg.DirectionalLight()

	tracer, err := raymaster.NewTracer(cfg, application.Orchestrator, logger.Named("tracer"))
	if err != nil {
		panic(err)
	}
	if *demo {
		for _, obj := range demoObjects() {
			if err := tracer.RegisterMeshObject(obj); err != nil {
				logger.Warnf("register %s: %v", obj.Name, err)
			}
		}
	}

	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		application.Resize(width, height)
	})

	var lastX, lastY float64
	window.SetCursorPosCallback(func(w *glfw.Window, xpos, ypos float64) {
		if application.MouseCaptured {
			application.Camera.Yaw += float32(xpos-lastX) * application.Camera.Sensitivity
			application.Camera.Pitch -= float32(ypos-lastY) * application.Camera.Sensitivity
			application.Camera.ClampPitch()
		}
		lastX, lastY = xpos, ypos
	})

	shots := 0
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyTab:
			application.MouseCaptured = !application.MouseCaptured
			if application.MouseCaptured {
				w.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
			} else {
				w.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
			}
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.KeyR:
			if err := application.Orchestrator.SetSphereSeed(application.Orchestrator.SphereSeed() + 1); err != nil {
				logger.Errorf("reseed: %v", err)
			}
		case glfw.KeyP:
			shots++
			path := *snapshot
			if path == "" {
				path = fmt.Sprintf("raymaster-%03d.png", shots)
			}
			if err := application.Snapshot(path); err != nil {
				logger.Errorf("%v", err)
			}
		}
	})

	ctx := context.Background()
	frames := 0
	for !window.ShouldClose() {
		glfw.PollEvents()
		application.Update()
		if application.Minimized() {
			continue
		}

		stats, err := tracer.Frame(ctx, application.FrameInput())
		if err != nil {
			logger.Warnf("frame: %v", err)
			continue
		}
		frames++

		if logger.DebugEnabled() && frames%300 == 0 {
			logger.Debugf("%.1f fps, sample %d\n%s", application.FPS, stats.Sample,
				application.Orchestrator.Profiler.GetStatsString())
		}
		if *snapshot != "" && stats.Converged {
			if err := application.Snapshot(*snapshot); err != nil {
				logger.Errorf("%v", err)
			}
			window.SetShouldClose(true)
		}
	}
}

func demoObjects() []*core.MeshObject {
	cube := core.NewMeshObject("cube", core.NewCubeMesh(),
		core.NewMaterial(mgl32.Vec3{0.8, 0.2, 0.2}, mgl32.Vec3{0.04, 0.04, 0.04}, 0.3))
	cube.Transform.Position = mgl32.Vec3{0, 40, 0}
	cube.Transform.Scale = mgl32.Vec3{20, 20, 20}
	cube.Transform.Rotation = mgl32.QuatRotate(mgl32.DegToRad(30), mgl32.Vec3{0, 1, 0})

	mirror := core.NewMeshObject("mirror", core.NewQuadMesh(),
		core.NewMaterial(mgl32.Vec3{}, mgl32.Vec3{0.9, 0.9, 0.9}, 0.95))
	// Stand the XZ quad upright, facing the default camera.
	mirror.Transform.Position = mgl32.Vec3{0, 40, -120}
	mirror.Transform.Rotation = mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{1, 0, 0})
	mirror.Transform.Scale = mgl32.Vec3{160, 1, 80}
	return []*core.MeshObject{cube, mirror}
}
