package gpu

import (
	"fmt"

	"github.com/gekko3d/raymaster/meshrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
)

// WgpuKernel runs the ray tracing compute shader.
type WgpuKernel struct {
	dev *WgpuDevice

	Pipeline    *wgpu.ComputePipeline
	Layout      *wgpu.BindGroupLayout
	UniformsBuf *wgpu.Buffer
	Placeholder *wgpu.Buffer

	SkyboxTex  *wgpu.Texture
	SkyboxView *wgpu.TextureView
	Sampler    *wgpu.Sampler

	bindGroup *wgpu.BindGroup
	boundKey  bindKey
}

// bindKey identifies the resources captured by the current bind group.
type bindKey struct {
	spheres, meshObjects, vertices, indices *wgpu.Buffer
	result                                  *wgpu.TextureView
}

func NewWgpuKernel(dev *WgpuDevice) (*WgpuKernel, error) {
	k := &WgpuKernel{dev: dev}
	device := dev.Device

	shader, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "RaytraceShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.RaytraceWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shader.Release()

	storage := func(binding uint32) wgpu.BindGroupLayoutEntry {
		return wgpu.BindGroupLayoutEntry{
			Binding:    binding,
			Visibility: wgpu.ShaderStageCompute,
			Buffer: wgpu.BufferBindingLayout{
				Type: wgpu.BufferBindingTypeReadOnlyStorage,
			},
		}
	}
	k.Layout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "RaytraceBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageCompute,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: UniformsSize,
				},
			},
			storage(1),
			storage(2),
			storage(3),
			storage(4),
			{
				Binding:    5,
				Visibility: wgpu.ShaderStageCompute,
				Texture: wgpu.TextureBindingLayout{
					SampleType:    wgpu.TextureSampleTypeFloat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
			{
				Binding:    6,
				Visibility: wgpu.ShaderStageCompute,
				Sampler: wgpu.SamplerBindingLayout{
					Type: wgpu.SamplerBindingTypeFiltering,
				},
			},
			{
				Binding:    7,
				Visibility: wgpu.ShaderStageCompute,
				StorageTexture: wgpu.StorageTextureBindingLayout{
					Access:        wgpu.StorageTextureAccessWriteOnly,
					Format:        TargetFormat,
					ViewDimension: wgpu.TextureViewDimension2D,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{k.Layout},
	})
	if err != nil {
		k.Release()
		return nil, err
	}
	defer layout.Release()

	k.Pipeline, err = device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  "RaytracePipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     shader,
			EntryPoint: "main",
		},
	})
	if err != nil {
		k.Release()
		return nil, err
	}

	k.UniformsBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "RaytraceUniforms",
		Size:  UniformsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		k.Release()
		return nil, err
	}

	k.Placeholder, err = dev.placeholderBuffer("RaytracePlaceholder")
	if err != nil {
		k.Release()
		return nil, err
	}

	k.Sampler, err = device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeRepeat,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MinFilter:     wgpu.FilterModeLinear,
		MagFilter:     wgpu.FilterModeLinear,
		MaxAnisotropy: 1,
	})
	if err != nil {
		k.Release()
		return nil, err
	}

	if err := k.SetSkybox(GradientSkybox(256, 128)); err != nil {
		k.Release()
		return nil, err
	}
	return k, nil
}

func (k *WgpuKernel) slot(b *Binding) *wgpu.Buffer {
	if b == nil {
		return k.Placeholder
	}
	if wb, ok := b.Buffer.(*WgpuBuffer); ok && wb.Buffer != nil {
		return wb.Buffer
	}
	return k.Placeholder
}

// Run writes the uniforms, refreshes the bind group if any bound resource
// changed, and dispatches one compute pass.
func (k *WgpuKernel) Run(d Dispatch) error {
	result, err := wgpuTarget(d.Result)
	if err != nil {
		return err
	}
	if d.GroupsX == 0 || d.GroupsY == 0 {
		return fmt.Errorf("empty dispatch %dx%d", d.GroupsX, d.GroupsY)
	}

	data := d.Uniforms.Pack(d.Bindings, result.Width(), result.Height())
	if err := k.dev.Queue.WriteBuffer(k.UniformsBuf, 0, data); err != nil {
		return err
	}

	key := bindKey{
		spheres:     k.slot(d.Bindings.Spheres),
		meshObjects: k.slot(d.Bindings.MeshObjects),
		vertices:    k.slot(d.Bindings.Vertices),
		indices:     k.slot(d.Bindings.Indices),
		result:      result.View,
	}
	if k.bindGroup == nil || key != k.boundKey {
		if err := k.rebuildBindGroup(key); err != nil {
			return err
		}
	}

	encoder, err := k.dev.Device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	defer encoder.Release()

	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(k.Pipeline)
	pass.SetBindGroup(0, k.bindGroup, nil)
	pass.DispatchWorkgroups(d.GroupsX, d.GroupsY, 1)
	if err := pass.End(); err != nil {
		return err
	}
	return k.dev.submit(encoder)
}

func (k *WgpuKernel) rebuildBindGroup(key bindKey) error {
	bg, err := k.dev.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "RaytraceBG",
		Layout: k.Layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: k.UniformsBuf, Size: wgpu.WholeSize},
			{Binding: 1, Buffer: key.spheres, Size: wgpu.WholeSize},
			{Binding: 2, Buffer: key.meshObjects, Size: wgpu.WholeSize},
			{Binding: 3, Buffer: key.vertices, Size: wgpu.WholeSize},
			{Binding: 4, Buffer: key.indices, Size: wgpu.WholeSize},
			{Binding: 5, TextureView: k.SkyboxView},
			{Binding: 6, Sampler: k.Sampler},
			{Binding: 7, TextureView: key.result},
		},
	})
	if err != nil {
		return err
	}
	if k.bindGroup != nil {
		k.bindGroup.Release()
	}
	k.bindGroup = bg
	k.boundKey = key
	return nil
}

func (k *WgpuKernel) Release() {
	if k.bindGroup != nil {
		k.bindGroup.Release()
		k.bindGroup = nil
	}
	if k.SkyboxView != nil {
		k.SkyboxView.Release()
		k.SkyboxView = nil
	}
	if k.SkyboxTex != nil {
		k.SkyboxTex.Release()
		k.SkyboxTex = nil
	}
	if k.Sampler != nil {
		k.Sampler.Release()
		k.Sampler = nil
	}
	if k.Placeholder != nil {
		k.Placeholder.Release()
		k.Placeholder = nil
	}
	if k.UniformsBuf != nil {
		k.UniformsBuf.Release()
		k.UniformsBuf = nil
	}
	if k.Pipeline != nil {
		k.Pipeline.Release()
		k.Pipeline = nil
	}
	if k.Layout != nil {
		k.Layout.Release()
		k.Layout = nil
	}
}
