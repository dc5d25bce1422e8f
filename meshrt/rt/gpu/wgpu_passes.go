package gpu

import (
	"encoding/binary"
	"math"

	"github.com/gekko3d/raymaster/meshrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

func loadTextureEntry(binding uint32, visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	return wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
		Texture: wgpu.TextureBindingLayout{
			SampleType:    wgpu.TextureSampleTypeUnfilterableFloat,
			ViewDimension: wgpu.TextureViewDimension2D,
		},
	}
}

func pipelineLayout(device *wgpu.Device, bgl *wgpu.BindGroupLayout) (*wgpu.PipelineLayout, error) {
	return device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
}

func fullscreenPipeline(device *wgpu.Device, label, code string, bgl *wgpu.BindGroupLayout, target wgpu.ColorTargetState) (*wgpu.RenderPipeline, error) {
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label + " Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, err
	}
	defer module.Release()

	layout, err := pipelineLayout(device, bgl)
	if err != nil {
		return nil, err
	}
	defer layout.Release()

	return device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  label,
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology: wgpu.PrimitiveTopologyTriangleList,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
}

// WgpuBlender folds the raw target into the converged target with a compute
// pass: scratch = converged*(1-w) + raw*w, then scratch is copied over
// converged. All three images are TargetFormat.
type WgpuBlender struct {
	dev *WgpuDevice

	Pipeline  *wgpu.ComputePipeline
	Layout    *wgpu.BindGroupLayout
	ParamsBuf *wgpu.Buffer

	scratch   *WgpuTarget
	bindGroup *wgpu.BindGroup
	boundKey  blendKey
}

type blendKey struct {
	raw, converged, scratch *wgpu.TextureView
}

func NewWgpuBlender(dev *WgpuDevice) (*WgpuBlender, error) {
	b := &WgpuBlender{dev: dev}
	device := dev.Device

	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "AccumulateShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.AccumulateWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()

	b.Layout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "AccumulateBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			loadTextureEntry(0, wgpu.ShaderStageCompute),
			loadTextureEntry(1, wgpu.ShaderStageCompute),
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageCompute,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        TargetFormat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    3,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: 16,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	layout, err := pipelineLayout(device, b.Layout)
	if err != nil {
		b.Release()
		return nil, err
	}
	defer layout.Release()

	b.Pipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "AccumulatePipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: "main",
		},
	})
	if err != nil {
		b.Release()
		return nil, err
	}

	b.ParamsBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "AccumulateParams",
		Size:  16,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		b.Release()
		return nil, err
	}
	return b, nil
}

// ensureScratch keeps the scratch image the size of converged.
func (b *WgpuBlender) ensureScratch(width, height int) error {
	if b.scratch != nil && b.scratch.width == width && b.scratch.height == height {
		return nil
	}
	if b.scratch != nil {
		b.scratch.Release()
		b.scratch = nil
	}
	t, err := b.dev.CreateTarget("Accumulate Scratch", width, height)
	if err != nil {
		return err
	}
	b.scratch = t.(*WgpuTarget)
	return nil
}

func (b *WgpuBlender) Blend(raw, converged Target, weight float32) error {
	r, err := wgpuTarget(raw)
	if err != nil {
		return err
	}
	c, err := wgpuTarget(converged)
	if err != nil {
		return err
	}
	if err := b.ensureScratch(c.width, c.height); err != nil {
		return err
	}

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params, math.Float32bits(weight))
	if err := b.dev.Queue.WriteBuffer(b.ParamsBuf, 0, params); err != nil {
		return err
	}

	key := blendKey{raw: r.View, converged: c.View, scratch: b.scratch.View}
	if b.bindGroup == nil || b.boundKey != key {
		bg, err := b.dev.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout: b.Layout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, TextureView: r.View},
				{Binding: 1, TextureView: c.View},
				{Binding: 2, TextureView: b.scratch.View},
				{Binding: 3, Buffer: b.ParamsBuf, Size: wgpu.WholeSize},
			},
		})
		if err != nil {
			return err
		}
		if b.bindGroup != nil {
			b.bindGroup.Release()
		}
		b.bindGroup = bg
		b.boundKey = key
	}

	encoder, err := b.dev.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	gx, gy := WorkGroups(c.width, c.height)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(b.Pipeline)
	pass.SetBindGroup(0, b.bindGroup, nil)
	pass.DispatchWorkgroups(gx, gy, 1)
	if err := pass.End(); err != nil {
		return err
	}
	err = encoder.CopyTextureToTexture(
		&wgpu.ImageCopyTexture{Texture: b.scratch.Texture},
		&wgpu.ImageCopyTexture{Texture: c.Texture},
		&wgpu.Extent3D{Width: uint32(c.width), Height: uint32(c.height), DepthOrArrayLayers: 1},
	)
	if err != nil {
		return err
	}
	return b.dev.submit(encoder)
}

func (b *WgpuBlender) Release() {
	if b.bindGroup != nil {
		b.bindGroup.Release()
		b.bindGroup = nil
	}
	if b.scratch != nil {
		b.scratch.Release()
		b.scratch = nil
	}
	if b.ParamsBuf != nil {
		b.ParamsBuf.Release()
		b.ParamsBuf = nil
	}
	if b.Pipeline != nil {
		b.Pipeline.Release()
		b.Pipeline = nil
	}
	if b.Layout != nil {
		b.Layout.Release()
		b.Layout = nil
	}
}

// WgpuPresenter tone maps the converged target onto the window surface.
type WgpuPresenter struct {
	dev     *WgpuDevice
	Surface *wgpu.Surface

	Pipeline *wgpu.RenderPipeline
	Layout   *wgpu.BindGroupLayout

	bindGroup *wgpu.BindGroup
	boundView *wgpu.TextureView
}

func NewWgpuPresenter(dev *WgpuDevice, surface *wgpu.Surface, format wgpu.TextureFormat) (*WgpuPresenter, error) {
	p := &WgpuPresenter{dev: dev, Surface: surface}
	var err error
	p.Layout, err = dev.Device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "PresentBGL",
		Entries: []wgpu.BindGroupLayoutEntry{loadTextureEntry(0, wgpu.ShaderStageFragment)},
	})
	if err != nil {
		return nil, err
	}
	p.Pipeline, err = fullscreenPipeline(dev.Device, "Present", shaders.FullscreenWGSL, p.Layout, wgpu.ColorTargetState{
		Format:    format,
		WriteMask: wgpu.ColorWriteMaskAll,
	})
	if err != nil {
		p.Release()
		return nil, err
	}
	return p, nil
}

func (p *WgpuPresenter) Present(converged Target) error {
	c, err := wgpuTarget(converged)
	if err != nil {
		return err
	}

	if p.bindGroup == nil || p.boundView != c.View {
		bg, err := p.dev.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Layout:  p.Layout,
			Entries: []wgpu.BindGroupEntry{{Binding: 0, TextureView: c.View}},
		})
		if err != nil {
			return err
		}
		if p.bindGroup != nil {
			p.bindGroup.Release()
		}
		p.bindGroup = bg
		p.boundView = c.View
	}

	surfaceTex, err := p.Surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	defer surfaceTex.Release()
	view, err := surfaceTex.CreateView(nil)
	if err != nil {
		return err
	}
	defer view.Release()

	encoder, err := p.dev.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{0, 0, 0, 1},
		}},
	})
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.bindGroup, nil)
	pass.Draw(3, 1, 0, 0)
	if err := pass.End(); err != nil {
		return err
	}
	if err := p.dev.submit(encoder); err != nil {
		return err
	}
	p.Surface.Present()
	return nil
}

func (p *WgpuPresenter) Release() {
	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.Pipeline != nil {
		p.Pipeline.Release()
		p.Pipeline = nil
	}
	if p.Layout != nil {
		p.Layout.Release()
		p.Layout = nil
	}
}
