package core

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// SceneRegistry is the set of mesh objects that take part in rendering.
// Membership changes may come from any goroutine; the frame driver observes
// them through ConsumeDirty.
type SceneRegistry struct {
	mu      sync.Mutex
	objects []*MeshObject
	dirty   atomic.Bool
}

func NewSceneRegistry() *SceneRegistry {
	return &SceneRegistry{
		objects: []*MeshObject{},
	}
}

// Register appends obj and marks the scene dirty.
// Registering the same object twice returns ErrDuplicateHandle and changes nothing.
func (r *SceneRegistry) Register(obj *MeshObject) error {
	if obj == nil {
		return fmt.Errorf("register: %w: nil object", ErrUnknownHandle)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(obj) >= 0 {
		return fmt.Errorf("register %s: %w", obj.ID, ErrDuplicateHandle)
	}
	r.objects = append(r.objects, obj)
	r.dirty.Store(true)
	return nil
}

// Unregister removes obj, keeping the order of the remaining objects, and marks
// the scene dirty. Unknown objects return ErrUnknownHandle.
func (r *SceneRegistry) Unregister(obj *MeshObject) error {
	if obj == nil {
		return fmt.Errorf("unregister: %w: nil object", ErrUnknownHandle)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(obj)
	if i < 0 {
		return fmt.Errorf("unregister %s: %w", obj.ID, ErrUnknownHandle)
	}
	r.objects = append(r.objects[:i], r.objects[i+1:]...)
	r.dirty.Store(true)
	return nil
}

// MarkDirty forces a rebuild on the next frame, e.g. after an in-place mesh or
// material edit, or after a rebuild that could not be uploaded.
func (r *SceneRegistry) MarkDirty() {
	r.dirty.Store(true)
}

// ConsumeDirty reads and clears the dirty flag in one atomic step.
func (r *SceneRegistry) ConsumeDirty() bool {
	return r.dirty.Swap(false)
}

func (r *SceneRegistry) Dirty() bool {
	return r.dirty.Load()
}

// Objects returns a snapshot of the registered objects in insertion order.
func (r *SceneRegistry) Objects() []*MeshObject {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*MeshObject, len(r.objects))
	copy(out, r.objects)
	return out
}

func (r *SceneRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objects)
}

func (r *SceneRegistry) Contains(obj *MeshObject) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexOf(obj) >= 0
}

func (r *SceneRegistry) indexOf(obj *MeshObject) int {
	for i, o := range r.objects {
		if o == obj {
			return i
		}
	}
	return -1
}
