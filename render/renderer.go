package render

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/meshdust"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultBackground is the scene clear colour.
const DefaultBackground = "#16124a"

// Light settings for the particle scene: white ambient plus one white
// directional light from straight above.
var (
	DefaultLightDir         = mgl32.Vec3{0, 1, 0}
	DefaultLightIntensity   = float32(0.9)
	DefaultAmbientIntensity = float32(0.35)
)

// glToWebGPU remaps clip-space z from [-w, w] to [0, w].
var glToWebGPU = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Renderer owns the wgpu device and surface for a glfw window and draws the
// engine's live instance set. It implements meshdust.Presenter and
// meshdust.ResourceReleaser; all methods must run on the window thread.
type Renderer struct {
	Window   *glfw.Window
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue
	Surface  *wgpu.Surface
	Config   *wgpu.SurfaceConfiguration

	DepthTexture *wgpu.Texture
	DepthView    *wgpu.TextureView

	Pass     *InstancePass
	Controls *OrbitControls

	Background mgl32.Vec3
	LightDir   mgl32.Vec3
	Light      float32
	Ambient    float32

	logger  meshdust.Logger
	globals Globals
}

// RendererOptions configures NewRenderer.
type RendererOptions struct {
	VSync      bool
	Background string
	Logger     meshdust.Logger
}

func NewRenderer(window *glfw.Window, opts RendererOptions) (*Renderer, error) {
	if opts.Logger == nil {
		opts.Logger = meshdust.NewNopLogger()
	}
	if opts.Background == "" {
		opts.Background = DefaultBackground
	}
	bg, err := meshdust.ParseColor(opts.Background)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		Window:     window,
		Controls:   NewOrbitControls(),
		Background: bg,
		LightDir:   DefaultLightDir,
		Light:      DefaultLightIntensity,
		Ambient:    DefaultAmbientIntensity,
		logger:     opts.Logger,
	}

	r.Instance = wgpu.CreateInstance(nil)
	r.Surface = r.Instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	r.Adapter, err = r.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: r.Surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	r.Device, err = r.Adapter.RequestDevice(nil)
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	r.Queue = r.Device.GetQueue()

	width, height := window.GetFramebufferSize()
	caps := r.Surface.GetCapabilities(r.Adapter)
	presentMode := wgpu.PresentModeFifo
	if !opts.VSync {
		presentMode = wgpu.PresentModeImmediate
	}
	r.Config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: presentMode,
		AlphaMode:   caps.AlphaModes[0],
	}
	r.Surface.Configure(r.Adapter, r.Device, r.Config)

	r.Pass, err = NewInstancePass(r.Device, r.Config.Format)
	if err != nil {
		return nil, fmt.Errorf("instance pass: %w", err)
	}
	if err := r.setupDepth(width, height); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) setupDepth(w, h int) error {
	if w == 0 || h == 0 {
		return nil
	}
	if r.DepthView != nil {
		r.DepthView.Release()
	}
	if r.DepthTexture != nil {
		r.DepthTexture.Release()
	}

	var err error
	r.DepthTexture, err = r.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         "Particle Depth",
		Size:          wgpu.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        r.Pass.DepthFormat,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("depth texture: %w", err)
	}
	r.DepthView, err = r.DepthTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("depth view: %w", err)
	}
	return nil
}

// Resize reconfigures the surface; the camera aspect follows on the next
// frame.
func (r *Renderer) Resize(w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	r.Config.Width = uint32(w)
	r.Config.Height = uint32(h)
	r.Surface.Configure(r.Adapter, r.Device, r.Config)
	if err := r.setupDepth(w, h); err != nil {
		r.logger.Errorf("resize: %v", err)
	}
}

func (r *Renderer) Aspect() float32 {
	if r.Config.Height == 0 {
		return 1
	}
	return float32(r.Config.Width) / float32(r.Config.Height)
}

func (r *Renderer) UpdateControls() {
	r.Controls.Update()
}

// Draw uploads set (when its version moved) and renders one frame.
func (r *Renderer) Draw(set *meshdust.InstanceSet) error {
	if r.Config.Width == 0 || r.Config.Height == 0 {
		return nil
	}
	if err := r.Pass.Upload(r.Queue, set); err != nil {
		return err
	}
	r.writeGlobals(set)

	nextTexture, err := r.Surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("get current texture: %w", err)
	}
	defer nextTexture.Release()

	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create view: %w", err)
	}
	defer view.Release()

	encoder, err := r.Device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	defer encoder.Release()

	bg := r.Background
	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(bg[0]), G: float64(bg[1]), B: float64(bg[2]), A: 1},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            r.DepthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1,
		},
	})
	r.Pass.Draw(pass)
	if err := pass.End(); err != nil {
		return fmt.Errorf("render pass end: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("encoder finish: %w", err)
	}
	defer cmd.Release()
	r.Queue.Submit(cmd)
	r.Surface.Present()
	return nil
}

func (r *Renderer) writeGlobals(set *meshdust.InstanceSet) {
	g := &r.globals
	proj := glToWebGPU.Mul4(r.Controls.ProjectionMatrix(r.Aspect()))
	g.ViewProj = proj.Mul4(r.Controls.ViewMatrix())

	mat := meshdust.DefaultMaterial()
	g.Container = mgl32.Ident4()
	if set != nil {
		mat = set.Material
		g.Container = meshdust.ContainerMatrix(set.Rotation)
	}

	eye := r.Controls.Eye()
	g.Eye = [4]float32{eye[0], eye[1], eye[2], 1}
	g.LightDir = [4]float32{r.LightDir[0], r.LightDir[1], r.LightDir[2], r.Light}
	g.BaseColor = [4]float32{mat.Color[0], mat.Color[1], mat.Color[2], r.Ambient}
	g.Emissive = [4]float32{mat.Emissive[0], mat.Emissive[1], mat.Emissive[2], 0}
	g.Surface = [4]float32{mat.Metalness, mat.Roughness, mat.Shininess, float32(mat.Type.ShaderModel())}
	r.Pass.WriteGlobals(r.Queue, g)
}

// ReleaseInstances frees the GPU buffer of a discarded set.
func (r *Renderer) ReleaseInstances(set *meshdust.InstanceSet) error {
	return r.Pass.ReleaseInstances(set)
}

// Release tears down every GPU object. Stop the engine first.
func (r *Renderer) Release() {
	if r.Pass != nil {
		r.Pass.Release()
	}
	if r.DepthView != nil {
		r.DepthView.Release()
	}
	if r.DepthTexture != nil {
		r.DepthTexture.Release()
	}
	if r.Surface != nil {
		r.Surface.Release()
	}
	if r.Device != nil {
		r.Device.Release()
	}
	if r.Adapter != nil {
		r.Adapter.Release()
	}
	if r.Instance != nil {
		r.Instance.Release()
	}
}
