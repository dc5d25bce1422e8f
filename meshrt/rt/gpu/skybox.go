package gpu

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxSkyboxWidth caps the uploaded equirectangular sky. Larger images are
// downscaled on load.
const MaxSkyboxWidth = 4096

// LoadSkybox decodes an equirectangular environment image (png, jpeg, bmp,
// tiff or webp) into RGBA, downscaling it to at most maxWidth pixels wide.
func LoadSkybox(path string, maxWidth int) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode skybox %s: %w", path, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("skybox %s (%s) is empty", path, format)
	}
	if maxWidth > 0 && w > maxWidth {
		h = h * maxWidth / w
		if h < 1 {
			h = 1
		}
		w = maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	}
	return dst, nil
}

// GradientSkybox is the sky used when no environment image is configured:
// a horizon-to-zenith blue gradient over a dark ground.
func GradientSkybox(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	horizon := [3]float32{0.85, 0.9, 1.0}
	zenith := [3]float32{0.25, 0.45, 0.85}
	ground := [3]float32{0.2, 0.18, 0.16}
	for y := 0; y < height; y++ {
		v := (float32(y) + 0.5) / float32(height)
		var c [3]float32
		if v < 0.5 {
			t := v * 2
			for i := range c {
				c[i] = zenith[i]*(1-t) + horizon[i]*t
			}
		} else {
			c = ground
		}
		px := color.RGBA{R: to8(c[0]), G: to8(c[1]), B: to8(c[2]), A: 255}
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, px)
		}
	}
	return img
}

func to8(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// SetSkybox uploads img as the kernel's environment texture and forces the
// bind group to be rebuilt on the next dispatch.
func (k *WgpuKernel) SetSkybox(img *image.RGBA) error {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	tex, err := k.dev.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Skybox",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatRGBA8Unorm,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return err
	}
	err = k.dev.Queue.WriteTexture(tex.AsImageCopy(), img.Pix, &wgpu.TextureDataLayout{
		Offset:       0,
		BytesPerRow:  uint32(img.Stride),
		RowsPerImage: uint32(h),
	}, &wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1})
	if err != nil {
		tex.Release()
		return err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return err
	}

	if k.SkyboxView != nil {
		k.SkyboxView.Release()
	}
	if k.SkyboxTex != nil {
		k.SkyboxTex.Release()
	}
	k.SkyboxTex = tex
	k.SkyboxView = view
	if k.bindGroup != nil {
		k.bindGroup.Release()
		k.bindGroup = nil
	}
	return nil
}
