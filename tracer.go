package raymaster

import (
	"context"

	"github.com/gekko3d/raymaster/meshrt/rt/app"
	"github.com/gekko3d/raymaster/meshrt/rt/core"
)

// Tracer is the engine-facing entry point: objects register here, and the host
// drives one Frame per displayed frame.
type Tracer struct {
	cfg    Config
	logger Logger
	orch   *app.FrameOrchestrator
}

// NewTracer applies cfg to orch and generates the initial sphere set.
func NewTracer(cfg Config, orch *app.FrameOrchestrator, logger Logger) (*Tracer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger = core.OrNop(logger)
	cfg.Apply(orch)
	if err := orch.SetupScene(cfg.Spheres.Seed); err != nil {
		return nil, err
	}
	return &Tracer{cfg: cfg, logger: logger, orch: orch}, nil
}

// RegisterMeshObject adds obj to the traced scene. Geometry is rebuilt on the
// next frame.
func (t *Tracer) RegisterMeshObject(obj *core.MeshObject) error {
	if err := t.orch.Registry.Register(obj); err != nil {
		return err
	}
	t.logger.Debugf("registered mesh object %s (%s)", obj.Name, obj.ID)
	return nil
}

func (t *Tracer) UnregisterMeshObject(obj *core.MeshObject) error {
	if err := t.orch.Registry.Unregister(obj); err != nil {
		return err
	}
	t.logger.Debugf("unregistered mesh object %s (%s)", obj.Name, obj.ID)
	return nil
}

// MeshObjectChanged requests a rebuild after an in-place edit of a registered
// object's mesh, transform or material.
func (t *Tracer) MeshObjectChanged() {
	t.orch.Registry.MarkDirty()
}

// Frame renders one frame. A zero Light in the input falls back to the
// configured light.
func (t *Tracer) Frame(ctx context.Context, in app.FrameInput) (app.FrameStats, error) {
	if in.Light == (core.DirectionalLight{}) {
		in.Light = t.cfg.DirectionalLight()
	}
	stats, err := t.orch.Frame(ctx, in)
	if err != nil {
		return stats, err
	}
	if stats.Reset != 0 {
		t.logger.Debugf("accumulation reset (%s), sample %d", stats.Reset, stats.Sample)
	}
	return stats, nil
}

func (t *Tracer) Config() Config { return t.cfg }

func (t *Tracer) Orchestrator() *app.FrameOrchestrator { return t.orch }

func (t *Tracer) Release() {
	t.orch.Release()
}
