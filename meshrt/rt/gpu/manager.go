package gpu

import (
	"fmt"

	"github.com/gekko3d/raymaster/meshrt/rt/core"
)

// Upload returns a buffer holding data as count elements of stride bytes.
//
// Empty data releases existing and returns nil: nothing is bound for empty
// arrays. Otherwise existing is reused and overwritten when its count and stride
// match, and replaced by a fresh allocation when they do not. The caller owns
// the returned buffer and must store it in place of existing.
func Upload(dev Device, label string, existing Buffer, data []byte, count, stride int) (Buffer, bool, error) {
	if count == 0 || len(data) == 0 {
		if existing != nil {
			existing.Release()
		}
		return nil, false, nil
	}
	if len(data) != count*stride {
		return existing, false, fmt.Errorf("%s: %d bytes for %d x %d: %w", label, len(data), count, stride, core.ErrInconsistentGeometry)
	}

	buf := existing
	reallocated := false
	if buf == nil || buf.Count() != count || buf.Stride() != stride {
		fresh, err := dev.CreateBuffer(label, count, stride)
		if err != nil {
			// existing is left untouched so it stays bound.
			return existing, false, fmt.Errorf("%s: %w: %v", label, core.ErrAllocation, err)
		}
		if existing != nil {
			existing.Release()
		}
		buf = fresh
		reallocated = true
	}

	if err := dev.WriteBuffer(buf, data); err != nil {
		return buf, reallocated, fmt.Errorf("%s: write: %w", label, err)
	}
	return buf, reallocated, nil
}

// GpuBufferManager owns the scene buffers the kernel reads. No other component
// creates, writes or releases them.
type GpuBufferManager struct {
	Device Device
	Logger core.Logger

	SpheresBuf     Buffer
	MeshObjectsBuf Buffer
	VerticesBuf    Buffer
	IndicesBuf     Buffer

	sphereCount int
	meshCount   int
	vertexCount int
	indexCount  int

	// Reallocations counts buffer (re)creations since construction.
	Reallocations int
}

func NewGpuBufferManager(device Device, logger core.Logger) *GpuBufferManager {
	return &GpuBufferManager{
		Device: device,
		Logger: core.OrNop(logger),
	}
}

// UpdateSpheres uploads the sphere set. Reports whether the buffer was recreated.
func (m *GpuBufferManager) UpdateSpheres(spheres []core.Sphere) (bool, error) {
	buf, recreated, err := Upload(m.Device, "SpheresBuf", m.SpheresBuf, PackSpheres(spheres), len(spheres), core.SphereStride)
	m.SpheresBuf = buf
	if recreated {
		m.Reallocations++
	}
	if err != nil {
		return recreated, err
	}
	m.sphereCount = len(spheres)
	m.Logger.Debugf("spheres uploaded: %d (recreated=%v)", len(spheres), recreated)
	return recreated, nil
}

// UpdateGeometry uploads the flattened mesh data. The geometry is validated
// first; an inconsistent geometry leaves every buffer as it was.
func (m *GpuBufferManager) UpdateGeometry(g core.Geometry) (bool, error) {
	if err := g.Validate(); err != nil {
		return false, err
	}

	recreated := false
	steps := []struct {
		label  string
		slot   *Buffer
		data   []byte
		count  int
		stride int
		dst    *int
	}{
		{"MeshObjectsBuf", &m.MeshObjectsBuf, PackDescriptors(g.Descriptors), len(g.Descriptors), core.MeshObjectStride, &m.meshCount},
		{"VerticesBuf", &m.VerticesBuf, PackVertices(g.Vertices), len(g.Vertices), core.VertexStride, &m.vertexCount},
		{"IndicesBuf", &m.IndicesBuf, PackIndices(g.Indices), len(g.Indices), core.IndexStride, &m.indexCount},
	}

	// Counts are committed only once every slot succeeded, so a partial failure
	// never exposes a mix of old descriptors and new counts.
	for _, s := range steps {
		buf, re, err := Upload(m.Device, s.label, *s.slot, s.data, s.count, s.stride)
		*s.slot = buf
		if re {
			recreated = true
			m.Reallocations++
		}
		if err != nil {
			return recreated, err
		}
	}
	for _, s := range steps {
		*s.dst = s.count
	}

	m.Logger.Debugf("geometry uploaded: %d objects, %d vertices, %d indices (recreated=%v)",
		m.meshCount, m.vertexCount, m.indexCount, recreated)
	return recreated, nil
}

// Bindings returns the current buffer set. Empty arrays come back as nil.
func (m *GpuBufferManager) Bindings() Bindings {
	return Bindings{
		Spheres:     binding(m.SpheresBuf, m.sphereCount, core.SphereStride),
		MeshObjects: binding(m.MeshObjectsBuf, m.meshCount, core.MeshObjectStride),
		Vertices:    binding(m.VerticesBuf, m.vertexCount, core.VertexStride),
		Indices:     binding(m.IndicesBuf, m.indexCount, core.IndexStride),
	}
}

func binding(buf Buffer, count, stride int) *Binding {
	if buf == nil || count == 0 || buf.Count() != count {
		return nil
	}
	return &Binding{Buffer: buf, Count: count, Stride: stride}
}

// Release frees every buffer.
func (m *GpuBufferManager) Release() {
	for _, b := range []*Buffer{&m.SpheresBuf, &m.MeshObjectsBuf, &m.VerticesBuf, &m.IndicesBuf} {
		if *b != nil {
			(*b).Release()
			*b = nil
		}
	}
	m.sphereCount, m.meshCount, m.vertexCount, m.indexCount = 0, 0, 0, 0
}
