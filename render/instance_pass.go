package render

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gekko3d/meshdust"
	"github.com/gekko3d/meshdust/render/shaders"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// CubeVertex matches the WGSL VertexInput.
type CubeVertex struct {
	Pos    [3]float32
	Normal [3]float32
}

// ParticleInstance matches the WGSL InstanceInput.
type ParticleInstance struct {
	ModelMat mgl32.Mat4
	Color    [4]float32
}

// Globals mirrors the WGSL uniform block, padded to globalsSize.
type Globals struct {
	ViewProj  mgl32.Mat4
	Container mgl32.Mat4
	Eye       [4]float32
	LightDir  [4]float32
	BaseColor [4]float32
	Emissive  [4]float32
	Surface   [4]float32
	_         [12]float32
}

const globalsSize = 256

// instanceBuffers is the GPU copy of one InstanceSet.
type instanceBuffers struct {
	buffer   *wgpu.Buffer
	count    uint32
	version  uint64
	uploaded bool
}

// InstancePass draws every particle of the live set as a unit cube scaled by
// its instance matrix. GPU buffers are keyed by InstanceSet.ID and freed
// through ReleaseInstances.
type InstancePass struct {
	Device        *wgpu.Device
	Pipeline      *wgpu.RenderPipeline
	BindGroup     *wgpu.BindGroup
	GlobalsBuffer *wgpu.Buffer
	VertexBuffer  *wgpu.Buffer
	VertexCount   uint32
	DepthFormat   wgpu.TextureFormat

	buffers map[uuid.UUID]*instanceBuffers
	current uuid.UUID
	staging []ParticleInstance
}

func NewInstancePass(device *wgpu.Device, format wgpu.TextureFormat) (*InstancePass, error) {
	shaderModule, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "ParticleShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.InstancesWGSL},
	})
	if err != nil {
		return nil, err
	}
	defer shaderModule.Release()

	bgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "ParticleGlobalsBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: globalsSize,
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	pipelineLayout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, err
	}

	p := &InstancePass{
		Device:      device,
		DepthFormat: wgpu.TextureFormatDepth24Plus,
		buffers:     make(map[uuid.UUID]*instanceBuffers),
	}

	instanceAttrs := make([]wgpu.VertexAttribute, 0, 5)
	for i := 0; i < 5; i++ {
		instanceAttrs = append(instanceAttrs, wgpu.VertexAttribute{
			Format:         wgpu.VertexFormatFloat32x4,
			Offset:         uint64(i * 16),
			ShaderLocation: uint32(i + 2),
		})
	}

	p.Pipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "ParticlePipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shaderModule,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: uint64(unsafe.Sizeof(CubeVertex{})),
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
					},
				},
				{
					ArrayStride: uint64(unsafe.Sizeof(ParticleInstance{})),
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes:  instanceAttrs,
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shaderModule,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{Format: format, WriteMask: wgpu.ColorWriteMaskAll},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeBack,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            p.DepthFormat,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, err
	}

	p.GlobalsBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ParticleGlobals",
		Size:  globalsSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	p.BindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "ParticleGlobalsBG",
		Layout: bgl,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: p.GlobalsBuffer, Size: globalsSize},
		},
	})
	if err != nil {
		return nil, err
	}

	vertices := UnitCube()
	p.VertexCount = uint32(len(vertices))
	vSize := uint64(len(vertices) * int(unsafe.Sizeof(CubeVertex{})))
	p.VertexBuffer, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ParticleCubeVertices",
		Size:  vSize,
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	device.GetQueue().WriteBuffer(p.VertexBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), vSize))

	return p, nil
}

// UnitCube returns 36 vertices of a cube spanning -0.5..0.5, wound CCW
// from outside.
func UnitCube() []CubeVertex {
	type face struct {
		normal, u, v mgl32.Vec3
	}
	faces := []face{
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	}

	out := make([]CubeVertex, 0, 36)
	for _, f := range faces {
		c := f.normal.Mul(0.5)
		corner := func(su, sv float32) CubeVertex {
			p := c.Add(f.u.Mul(su * 0.5)).Add(f.v.Mul(sv * 0.5))
			return CubeVertex{Pos: p, Normal: f.normal}
		}
		a, b, cc, d := corner(-1, -1), corner(1, -1), corner(1, 1), corner(-1, 1)
		out = append(out, a, b, cc, a, cc, d)
	}
	return out
}

// WriteGlobals uploads the per-frame uniform block.
func (p *InstancePass) WriteGlobals(queue *wgpu.Queue, g *Globals) {
	queue.WriteBuffer(p.GlobalsBuffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(g)), globalsSize))
}

// Upload makes set the drawn set, allocating its buffer on first sight and
// rewriting instance data whenever its version moved.
func (p *InstancePass) Upload(queue *wgpu.Queue, set *meshdust.InstanceSet) error {
	if set == nil || set.Count() == 0 {
		p.current = uuid.Nil
		return nil
	}

	ib, ok := p.buffers[set.ID]
	if !ok {
		buf, err := p.Device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: "ParticleInstances",
			Size:  uint64(set.Count()) * uint64(unsafe.Sizeof(ParticleInstance{})),
			Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("instance buffer for set %s: %w", set.ID, err)
		}
		ib = &instanceBuffers{buffer: buf, count: uint32(set.Count())}
		p.buffers[set.ID] = ib
	}
	p.current = set.ID

	if ib.uploaded && ib.version == set.Version {
		return nil
	}

	if cap(p.staging) < set.Count() {
		p.staging = make([]ParticleInstance, set.Count())
	}
	p.staging = p.staging[:set.Count()]
	white := [4]float32{1, 1, 1, 1}
	for i := range p.staging {
		p.staging[i].ModelMat = set.Matrices[i]
		if set.Colors != nil {
			c := set.Colors[i]
			p.staging[i].Color = [4]float32{c[0], c[1], c[2], 1}
		} else {
			p.staging[i].Color = white
		}
	}
	size := uint64(len(p.staging)) * uint64(unsafe.Sizeof(ParticleInstance{}))
	queue.WriteBuffer(ib.buffer, 0, unsafe.Slice((*byte)(unsafe.Pointer(&p.staging[0])), size))
	ib.version = set.Version
	ib.uploaded = true
	return nil
}

func (p *InstancePass) Draw(pass *wgpu.RenderPassEncoder) {
	ib, ok := p.buffers[p.current]
	if !ok || ib.count == 0 {
		return
	}
	pass.SetPipeline(p.Pipeline)
	pass.SetBindGroup(0, p.BindGroup, nil)
	pass.SetVertexBuffer(0, p.VertexBuffer, 0, p.VertexBuffer.GetSize())
	pass.SetVertexBuffer(1, ib.buffer, 0, ib.buffer.GetSize())
	pass.Draw(p.VertexCount, ib.count, 0, 0)
}

// ReleaseInstances frees the buffer belonging to set. Sets that were never
// drawn own nothing.
func (p *InstancePass) ReleaseInstances(set *meshdust.InstanceSet) error {
	ib, ok := p.buffers[set.ID]
	if !ok {
		return nil
	}
	delete(p.buffers, set.ID)
	if p.current == set.ID {
		p.current = uuid.Nil
	}
	if ib.buffer == nil {
		return fmt.Errorf("set %s has no buffer", set.ID)
	}
	ib.buffer.Release()
	return nil
}

func (p *InstancePass) Release() {
	for id, ib := range p.buffers {
		ib.buffer.Release()
		delete(p.buffers, id)
	}
	p.current = uuid.Nil
	if p.VertexBuffer != nil {
		p.VertexBuffer.Release()
	}
	if p.GlobalsBuffer != nil {
		p.GlobalsBuffer.Release()
	}
	if p.BindGroup != nil {
		p.BindGroup.Release()
	}
	if p.Pipeline != nil {
		p.Pipeline.Release()
	}
}
