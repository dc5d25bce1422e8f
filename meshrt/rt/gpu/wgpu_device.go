package gpu

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// TargetFormat is the pixel format of the raw and converged images. The
// running mean needs full float precision: at half precision the update
// (raw-converged)/(n+1) rounds to zero after a few thousand samples.
const TargetFormat = wgpu.TextureFormatRGBA32Float

// targetBytesPerPixel is the size of one TargetFormat texel.
const targetBytesPerPixel = 16

const targetUsage = wgpu.TextureUsageStorageBinding |
	wgpu.TextureUsageTextureBinding |
	wgpu.TextureUsageCopySrc |
	wgpu.TextureUsageCopyDst

var (
	_ Device    = (*WgpuDevice)(nil)
	_ Kernel    = (*WgpuKernel)(nil)
	_ Blender   = (*WgpuBlender)(nil)
	_ Presenter = (*WgpuPresenter)(nil)
)

// WgpuDevice is the Device backed by a WebGPU device and its queue.
type WgpuDevice struct {
	Device *wgpu.Device
	Queue  *wgpu.Queue
}

func NewWgpuDevice(device *wgpu.Device) *WgpuDevice {
	return &WgpuDevice{Device: device, Queue: device.GetQueue()}
}

type WgpuBuffer struct {
	Buffer *wgpu.Buffer
	count  int
	stride int
}

func (b *WgpuBuffer) Count() int  { return b.count }
func (b *WgpuBuffer) Stride() int { return b.stride }

func (b *WgpuBuffer) Release() {
	if b.Buffer != nil {
		b.Buffer.Release()
		b.Buffer = nil
	}
}

type WgpuTarget struct {
	Texture *wgpu.Texture
	View    *wgpu.TextureView
	width   int
	height  int
}

func (t *WgpuTarget) Width() int  { return t.width }
func (t *WgpuTarget) Height() int { return t.height }

func (t *WgpuTarget) Release() {
	if t.View != nil {
		t.View.Release()
		t.View = nil
	}
	if t.Texture != nil {
		t.Texture.Release()
		t.Texture = nil
	}
}

func (d *WgpuDevice) CreateBuffer(label string, count, stride int) (Buffer, error) {
	if count <= 0 || stride <= 0 {
		return nil, fmt.Errorf("buffer %q: invalid shape %dx%d", label, count, stride)
	}
	buf, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  uint64(count * stride),
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	return &WgpuBuffer{Buffer: buf, count: count, stride: stride}, nil
}

func (d *WgpuDevice) WriteBuffer(buf Buffer, data []byte) error {
	wb, ok := buf.(*WgpuBuffer)
	if !ok || wb.Buffer == nil {
		return errors.New("write to a buffer not owned by this device")
	}
	if len(data) > wb.count*wb.stride {
		return fmt.Errorf("write of %d bytes exceeds buffer size %d", len(data), wb.count*wb.stride)
	}
	return d.Queue.WriteBuffer(wb.Buffer, 0, data)
}

func (d *WgpuDevice) CreateTarget(label string, width, height int) (Target, error) {
	tex, err := d.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              uint32(width),
			Height:             uint32(height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        TargetFormat,
		Usage:         targetUsage,
	})
	if err != nil {
		return nil, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, err
	}
	return &WgpuTarget{Texture: tex, View: view, width: width, height: height}, nil
}

// placeholderBuffer backs kernel slots that have no data. WebGPU rejects
// zero-sized bindings, so the kernel binds this and reads a zero count instead.
func (d *WgpuDevice) placeholderBuffer(label string) (*wgpu.Buffer, error) {
	return d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: label,
		Size:  64,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
}

func (d *WgpuDevice) submit(encoder *wgpu.CommandEncoder) error {
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return err
	}
	defer cmd.Release()
	d.Queue.Submit(cmd)
	return nil
}

func wgpuTarget(t Target) (*WgpuTarget, error) {
	wt, ok := t.(*WgpuTarget)
	if !ok || wt.View == nil {
		return nil, errors.New("target not owned by this device")
	}
	return wt, nil
}
