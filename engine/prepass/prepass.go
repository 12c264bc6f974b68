package prepass

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/lumen-go/engine/camera"
	"github.com/Carmen-Shannon/lumen-go/engine/renderer"
	"github.com/Carmen-Shannon/lumen-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/lumen-go/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/depth_prepass.wgsl
var depthPrepassWGSL string

// DepthPrepassPipelineKey is the pipeline cache key for the depth-only prepass pipeline.
const DepthPrepassPipelineKey = "depth_prepass"

// PrepassShaderModule returns the depth-only vertex shader with its camera
// bind group layout and position-only vertex layout.
//
// Returns:
//   - *pipeline.ShaderModule: the vertex shader module for prepass pipeline registration
func PrepassShaderModule() *pipeline.ShaderModule {
	return &pipeline.ShaderModule{
		Key:        "depth_prepass_vs",
		Source:     depthPrepassWGSL,
		EntryPoint: "vs_depth",
		BindGroupLayouts: map[int]wgpu.BindGroupLayoutDescriptor{
			0: CameraBindGroupLayout(wgpu.ShaderStageVertex),
		},
		VertexLayouts: []wgpu.VertexBufferLayout{
			{
				// Same interleaved position+normal stream the lit pipeline
				// draws, reading only the position attribute.
				ArrayStride: 24,
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				},
			},
		},
	}
}

// CameraBindGroupLayout returns the camera uniform bind group layout with the
// given stage visibility. The prepass uses VERTEX; the lit pipeline merges in
// FRAGMENT visibility for the same group.
//
// Parameters:
//   - visibility: the shader stages that read the camera uniform
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the camera bind group layout
func CameraBindGroupLayout(visibility wgpu.ShaderStage) wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Label: "Camera Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: visibility,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
		},
	}
}

// Prepass owns the GPU resources for the depth-only prepass: the Depth32Float
// texture the cull pass loads, and the depth-only render pipeline.
type Prepass interface {
	// InitResources creates the prepass depth texture and registers the
	// depth-only pipeline. Must be called again after a resize.
	//
	// Parameters:
	//   - width: depth texture width in pixels
	//   - height: depth texture height in pixels
	//
	// Returns:
	//   - error: an error if GPU resource creation fails
	InitResources(width, height int) error

	// DepthView returns the prepass depth texture view for binding into the
	// cull pass.
	//
	// Returns:
	//   - *wgpu.TextureView: the depth view, or nil before InitResources
	DepthView() *wgpu.TextureView

	// Render encodes the depth prepass for the given meshes: writes the camera
	// uniform, begins a depth-only pass targeting the prepass texture, and
	// issues one draw per mesh provider.
	//
	// Parameters:
	//   - cam: the camera supplying the view-projection matrix
	//   - meshes: providers holding vertex and index buffers to draw
	//
	// Returns:
	//   - error: an error if resources are not initialized or encoding fails
	Render(cam camera.Camera, meshes []bind_group_provider.BindGroupProvider) error

	// Release frees the prepass depth texture and view.
	Release()
}

type prepassImpl struct {
	mu *sync.Mutex

	r renderer.Renderer

	depthView    *wgpu.TextureView
	depthTexture *wgpu.Texture

	width, height int
}

var _ Prepass = &prepassImpl{}

// NewPrepass creates a Prepass bound to the given renderer.
//
// Parameters:
//   - r: the renderer that owns the GPU device and pipeline cache
//
// Returns:
//   - Prepass: the newly created prepass
func NewPrepass(r renderer.Renderer) Prepass {
	if r == nil {
		panic("prepass: NewPrepass requires a renderer")
	}
	return &prepassImpl{
		mu: &sync.Mutex{},
		r:  r,
	}
}

func (p *prepassImpl) InitResources(width, height int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if width <= 0 || height <= 0 {
		return fmt.Errorf("prepass: invalid dimensions %dx%d", width, height)
	}

	// Release the previous texture on resize before allocating the new one.
	if p.depthView != nil {
		p.depthView.Release()
		p.depthView = nil
	}
	if p.depthTexture != nil {
		p.depthTexture.Release()
		p.depthTexture = nil
	}

	view, tex, err := p.r.CreatePrepassDepthTexture(width, height)
	if err != nil {
		return err
	}
	p.depthView = view
	p.depthTexture = tex
	p.width = width
	p.height = height

	pp := pipeline.NewPipeline(DepthPrepassPipelineKey, pipeline.PipelineTypeRender,
		pipeline.WithVertexShader(PrepassShaderModule()),
		pipeline.WithCullMode(wgpu.CullModeBack),
	)
	if err := p.r.RegisterDepthPrepassPipeline(pp); err != nil {
		return fmt.Errorf("prepass: failed to register depth prepass pipeline: %w", err)
	}

	return nil
}

func (p *prepassImpl) DepthView() *wgpu.TextureView {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.depthView
}

func (p *prepassImpl) Render(cam camera.Camera, meshes []bind_group_provider.BindGroupProvider) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.depthView == nil {
		return errors.New("prepass: InitResources must be called before Render")
	}
	if cam == nil {
		return errors.New("prepass: camera must not be nil")
	}

	camBGP := cam.BindGroupProvider()
	uniform := camera.ToGPUCameraUniform(cam)
	p.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: camBGP, Binding: 0, Offset: 0, Data: uniform.Marshal()},
	})

	if err := p.r.BeginDepthFrame(); err != nil {
		return fmt.Errorf("prepass: failed to begin depth frame: %w", err)
	}
	p.r.BeginDepthPass(p.depthView)
	for _, mesh := range meshes {
		if mesh == nil {
			continue
		}
		_ = p.r.DepthDrawCall(DepthPrepassPipelineKey, mesh, 1, []bind_group_provider.BindGroupProvider{camBGP})
	}
	p.r.EndDepthPass()
	p.r.EndDepthFrame()
	return nil
}

func (p *prepassImpl) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.depthView != nil {
		p.depthView.Release()
		p.depthView = nil
	}
	if p.depthTexture != nil {
		p.depthTexture.Release()
		p.depthTexture = nil
	}
}
