package gpu

import (
	"fmt"
	"sync"
)

// HostDevice is a Device backed by host memory. It runs the whole frame
// pipeline without a GPU, for headless validation and tests.
type HostDevice struct {
	mu sync.Mutex

	// Allocations counts successful CreateBuffer and CreateTarget calls.
	Allocations int
	live        map[any]string
}

var (
	_ Device  = (*HostDevice)(nil)
	_ Blender = HostBlender{}
)

func NewHostDevice() *HostDevice {
	return &HostDevice{live: make(map[any]string)}
}

type HostBuffer struct {
	dev      *HostDevice
	label    string
	count    int
	stride   int
	Data     []byte
	Released bool
}

func (b *HostBuffer) Count() int  { return b.count }
func (b *HostBuffer) Stride() int { return b.stride }
func (b *HostBuffer) Label() string {
	return b.label
}

func (b *HostBuffer) Release() {
	if b.Released {
		return
	}
	b.Released = true
	b.dev.forget(b)
}

// HostTarget is an RGBA float32 image, four values per pixel, row-major.
type HostTarget struct {
	dev      *HostDevice
	label    string
	width    int
	height   int
	Pix      []float32
	Released bool
}

func (t *HostTarget) Width() int  { return t.width }
func (t *HostTarget) Height() int { return t.height }

func (t *HostTarget) Release() {
	if t.Released {
		return
	}
	t.Released = true
	t.dev.forget(t)
}

// At returns the RGBA value at (x, y).
func (t *HostTarget) At(x, y int) [4]float32 {
	i := (y*t.width + x) * 4
	return [4]float32{t.Pix[i], t.Pix[i+1], t.Pix[i+2], t.Pix[i+3]}
}

// Fill sets every pixel to c.
func (t *HostTarget) Fill(c [4]float32) {
	for i := 0; i < len(t.Pix); i += 4 {
		copy(t.Pix[i:i+4], c[:])
	}
}

func (d *HostDevice) CreateBuffer(label string, count, stride int) (Buffer, error) {
	if count <= 0 || stride <= 0 {
		return nil, fmt.Errorf("host buffer %s: invalid shape %d x %d", label, count, stride)
	}
	b := &HostBuffer{dev: d, label: label, count: count, stride: stride, Data: make([]byte, count*stride)}
	d.track(b, label)
	return b, nil
}

func (d *HostDevice) WriteBuffer(buf Buffer, data []byte) error {
	hb, ok := buf.(*HostBuffer)
	if !ok {
		return fmt.Errorf("host device: foreign buffer %T", buf)
	}
	if hb.Released {
		return fmt.Errorf("host buffer %s: write after release", hb.label)
	}
	if len(data) > len(hb.Data) {
		return fmt.Errorf("host buffer %s: %d bytes exceeds size %d", hb.label, len(data), len(hb.Data))
	}
	copy(hb.Data, data)
	return nil
}

func (d *HostDevice) CreateTarget(label string, width, height int) (Target, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("host target %s: invalid size %dx%d", label, width, height)
	}
	t := &HostTarget{dev: d, label: label, width: width, height: height, Pix: make([]float32, width*height*4)}
	d.track(t, label)
	return t, nil
}

// Live returns the number of resources allocated and not yet released.
func (d *HostDevice) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.live)
}

func (d *HostDevice) track(r any, label string) {
	d.mu.Lock()
	d.live[r] = label
	d.Allocations++
	d.mu.Unlock()
}

func (d *HostDevice) forget(r any) {
	d.mu.Lock()
	delete(d.live, r)
	d.mu.Unlock()
}

// HostBlender is the exact CPU form of the accumulation blend.
type HostBlender struct{}

func (HostBlender) Blend(raw, converged Target, weight float32) error {
	r, ok := raw.(*HostTarget)
	if !ok {
		return fmt.Errorf("host blender: raw is %T", raw)
	}
	c, ok := converged.(*HostTarget)
	if !ok {
		return fmt.Errorf("host blender: converged is %T", converged)
	}
	if r.width != c.width || r.height != c.height {
		return fmt.Errorf("host blender: size mismatch %dx%d vs %dx%d", r.width, r.height, c.width, c.height)
	}
	keep := 1 - weight
	for i, v := range r.Pix {
		c.Pix[i] = c.Pix[i]*keep + v*weight
	}
	return nil
}
