package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrNotReadable is returned when a target cannot be read back to the host.
var ErrNotReadable = errors.New("target is not readable")

// ToneMap converts a linear HDR sample to display-referred 8-bit, matching the
// present shader: Reinhard then gamma 2.2.
func ToneMap(v float32) uint8 {
	if !(v > 0) {
		return 0
	}
	m := v / (1 + v)
	return to8(float32(math.Pow(float64(m), 1/2.2)))
}

func imageFrom(width, height int, at func(x, y int) [4]float32) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := at(x, y)
			img.SetRGBA(x, y, color.RGBA{R: ToneMap(c[0]), G: ToneMap(c[1]), B: ToneMap(c[2]), A: 255})
		}
	}
	return img
}

// Image returns the tone mapped contents of a host target.
func (t *HostTarget) Image() *image.RGBA {
	return imageFrom(t.width, t.height, t.At)
}

// ReadTarget copies a device target back to the host and tone maps it.
// It blocks until the GPU has finished all submitted work.
func (d *WgpuDevice) ReadTarget(t Target) (*image.RGBA, error) {
	wt, err := wgpuTarget(t)
	if err != nil {
		return nil, err
	}
	w, h := uint32(wt.width), uint32(wt.height)
	bytesPerRow := (w*targetBytesPerPixel + 255) & ^uint32(255)
	size := uint64(bytesPerRow) * uint64(h)

	readback, err := d.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "SnapshotReadback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer readback.Release()

	encoder, err := d.Device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	defer encoder.Release()
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{
			Texture:  wt.Texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{X: 0, Y: 0, Z: 0},
		},
		&wgpu.ImageCopyBuffer{
			Buffer: readback,
			Layout: wgpu.TextureDataLayout{
				Offset:       0,
				BytesPerRow:  bytesPerRow,
				RowsPerImage: h,
			},
		},
		&wgpu.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err := d.submit(encoder); err != nil {
		return nil, err
	}

	mapped := false
	var status wgpu.BufferMapAsyncStatus
	readback.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
		mapped = s == wgpu.BufferMapAsyncStatusSuccess
	})
	d.Device.Poll(true, nil)
	if !mapped {
		return nil, fmt.Errorf("%w: map status %d", ErrNotReadable, status)
	}
	defer readback.Unmap()

	data := readback.GetMappedRange(0, uint(size))
	return imageFrom(int(w), int(h), func(x, y int) [4]float32 {
		return decodeTexel(data[uint32(y)*bytesPerRow+uint32(x)*targetBytesPerPixel:])
	}), nil
}

func decodeTexel(b []byte) [4]float32 {
	var c [4]float32
	for i := range c {
		c[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return c
}

// WritePNG encodes img to path.
func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
