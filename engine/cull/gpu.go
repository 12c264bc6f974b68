package cull

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/Carmen-Shannon/lumen-go/common"
	"github.com/Carmen-Shannon/lumen-go/engine/camera"
	"github.com/Carmen-Shannon/lumen-go/engine/light"
	"github.com/Carmen-Shannon/lumen-go/engine/renderer"
	"github.com/Carmen-Shannon/lumen-go/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/lumen-go/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/light_cull.wgsl
var lightCullWGSL string

// LightCullPipelineKey is the pipeline cache key for the tiled light-cull compute pipeline.
const LightCullPipelineKey = "light_cull_compute"

// CullShaderModule returns the light-cull compute shader with its explicit
// bind group layout. The layout must stay in sync with the bindings declared
// in assets/light_cull.wgsl.
//
// Returns:
//   - *pipeline.ShaderModule: the compute shader module for pipeline registration
func CullShaderModule() *pipeline.ShaderModule {
	return &pipeline.ShaderModule{
		Key:        "light_cull",
		Source:     lightCullWGSL,
		EntryPoint: "cull_lights",
		BindGroupLayouts: map[int]wgpu.BindGroupLayoutDescriptor{
			0: {
				Label: "Light Cull Bind Group Layout",
				Entries: []wgpu.BindGroupLayoutEntry{
					{
						Binding:    0,
						Visibility: wgpu.ShaderStageCompute,
						Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
					},
					{
						Binding:    1,
						Visibility: wgpu.ShaderStageCompute,
						Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
					},
					{
						Binding:    2,
						Visibility: wgpu.ShaderStageCompute,
						Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage},
					},
					{
						Binding:    3,
						Visibility: wgpu.ShaderStageCompute,
						Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage},
					},
					{
						Binding:    4,
						Visibility: wgpu.ShaderStageCompute,
						Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeStorage},
					},
					{
						Binding:    5,
						Visibility: wgpu.ShaderStageCompute,
						Texture: wgpu.TextureBindingLayout{
							SampleType:    wgpu.TextureSampleTypeDepth,
							ViewDimension: wgpu.TextureViewDimension2D,
						},
					},
				},
			},
		},
	}
}

// TileBindGroupLayout returns the fragment-side layout for the tile lookup
// bind group: tile uniforms plus the light grid and index list written by the
// cull pass. The lit fragment shader declares the matching group.
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the tile bind group layout
func TileBindGroupLayout() wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Label: "Tile Lighting Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
			},
			{
				Binding:    1,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
			{
				Binding:    2,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
		},
	}
}

// GPUCuller owns the GPU resources for the tiled light-cull compute pass:
// the cull bind group, the shared light grid and index list buffers, and the
// fragment-side tile bind group that the lit pipeline reads.
//
// Usage flow per screen configuration:
//  1. InitResources once the depth prepass texture exists
//  2. UploadLights whenever the light set changes
//  3. Dispatch each frame after the depth prepass
type GPUCuller interface {
	// InitResources creates the cull and tile bind groups, shared buffers, and
	// registers the cull compute pipeline. Must be called again after a resize
	// with the new depth view and dimensions.
	//
	// Parameters:
	//   - depthView: the prepass depth texture view the cull shader loads
	//   - screenWidth: surface width in pixels
	//   - screenHeight: surface height in pixels
	//
	// Returns:
	//   - error: an error if GPU resource creation fails
	InitResources(depthView *wgpu.TextureView, screenWidth, screenHeight int) error

	// UploadLights marshals the light set (header + GPU light records) into the
	// shared light storage buffer and records the enabled light count for the
	// next Dispatch.
	//
	// Parameters:
	//   - lights: the scene lights; disabled lights are skipped
	//   - ambient: the ambient RGB color carried in the buffer header
	UploadLights(lights []light.Light, ambient [3]float32)

	// Dispatch writes the per-frame cull uniforms, zeroes the shared index
	// cursor, and dispatches one workgroup per tile.
	//
	// Parameters:
	//   - cam: the camera supplying view/projection state for this frame
	//
	// Returns:
	//   - error: an error if resources are not initialized
	Dispatch(cam camera.Camera) error

	// CullProvider returns the compute-side bind group provider.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the cull pass provider, or nil before InitResources
	CullProvider() bind_group_provider.BindGroupProvider

	// TileProvider returns the fragment-side tile bind group provider for the
	// lit render pipeline.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the tile provider, or nil before InitResources
	TileProvider() bind_group_provider.BindGroupProvider

	// TileCounts returns the tile grid dimensions from the last InitResources.
	//
	// Returns:
	//   - uint32: tile count along x
	//   - uint32: tile count along y
	TileCounts() (uint32, uint32)
}

type gpuCullerImpl struct {
	mu *sync.Mutex

	r renderer.Renderer

	maxLights        int
	maxLightsPerTile int
	maxLightIndices  int

	cullBGP bind_group_provider.BindGroupProvider
	tileBGP bind_group_provider.BindGroupProvider

	tileCountX, tileCountY    uint32
	screenWidth, screenHeight int
	lightCount                uint32
}

var _ GPUCuller = &gpuCullerImpl{}

// NewGPUCuller creates a GPUCuller bound to the given renderer.
//
// Parameters:
//   - r: the renderer that owns the GPU device and pipeline cache
//   - options: functional options to configure capacities
//
// Returns:
//   - GPUCuller: the newly created GPU culler
func NewGPUCuller(r renderer.Renderer, options ...GPUCullerBuilderOption) GPUCuller {
	if r == nil {
		panic("cull: NewGPUCuller requires a renderer")
	}
	c := &gpuCullerImpl{
		mu: &sync.Mutex{},
		r:  r,
	}
	for _, option := range options {
		option(c)
	}
	c.maxLights = common.Coalesce(c.maxLights, light.MaxGPULights)
	c.maxLightsPerTile = common.Coalesce(c.maxLightsPerTile, DefaultMaxLightsPerTile)
	c.maxLightIndices = common.Coalesce(c.maxLightIndices, DefaultMaxLightIndices)
	return c
}

func (c *gpuCullerImpl) InitResources(depthView *wgpu.TextureView, screenWidth, screenHeight int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if depthView == nil {
		return errors.New("cull: depth texture view must not be nil")
	}
	if screenWidth <= 0 || screenHeight <= 0 {
		return fmt.Errorf("cull: invalid screen dimensions %dx%d", screenWidth, screenHeight)
	}

	c.screenWidth = screenWidth
	c.screenHeight = screenHeight
	// The WGSL workgroup size is fixed at DefaultTileSize², so the GPU path
	// always tiles at the default size.
	c.tileCountX, c.tileCountY = TileCounts(screenWidth, screenHeight, DefaultTileSize)
	numTiles := uint64(c.tileCountX) * uint64(c.tileCountY)

	shaderModule := CullShaderModule()

	// Compute BGP (cull shader's @group(0)):
	// binding 0: cull uniforms (uniform)
	// binding 1: light buffer — header + light records (storage, read)
	// binding 2: light grid — one (offset, count) pair per tile (storage, rw)
	// binding 3: light index list (storage, rw)
	// binding 4: shared index cursor (storage, rw, atomic)
	// binding 5: prepass depth texture
	cullBGP := bind_group_provider.NewBindGroupProvider("light_cull")
	cullBGP.SetTextureView(5, depthView)

	var cullUniforms light.GPULightCullUniforms
	var header light.GPULightHeader
	var gpuLight light.GPULight
	sizeOverrides := map[int]uint64{
		0: uint64(cullUniforms.Size()),
		1: uint64(header.Size()) + uint64(c.maxLights)*uint64(gpuLight.Size()),
		2: numTiles * 8, // vec2<u32> per tile
		3: uint64(c.maxLightIndices) * 4,
		4: 4, // atomic<u32>
	}
	if err := c.r.InitBindGroup(cullBGP, shaderModule.BindGroupLayouts[0], nil, sizeOverrides); err != nil {
		return fmt.Errorf("cull: failed to init light cull bind group: %w", err)
	}
	c.cullBGP = cullBGP

	cp := pipeline.NewPipeline(LightCullPipelineKey, pipeline.PipelineTypeCompute,
		pipeline.WithComputeShader(shaderModule),
	)
	if err := c.r.RegisterPipelines(cp); err != nil {
		return fmt.Errorf("cull: failed to register light cull compute pipeline: %w", err)
	}

	// Fragment tile BGP (lit frag shader's tile group):
	// binding 0: tile uniforms (uniform, 8 bytes)
	// binding 1: light grid (storage, read) — shared from cullBGP binding 2
	// binding 2: light index list (storage, read) — shared from cullBGP binding 3
	tileBGP := bind_group_provider.NewBindGroupProvider("tile_lit")
	if gridBuf := cullBGP.Buffer(2); gridBuf != nil {
		tileBGP.SetBuffer(1, gridBuf)
	}
	if indicesBuf := cullBGP.Buffer(3); indicesBuf != nil {
		tileBGP.SetBuffer(2, indicesBuf)
	}

	var tileUniforms light.GPUTileUniforms
	tileSizeOverrides := map[int]uint64{
		0: uint64(tileUniforms.Size()),
	}
	if err := c.r.InitBindGroup(tileBGP, TileBindGroupLayout(), nil, tileSizeOverrides); err != nil {
		return fmt.Errorf("cull: failed to init tile lighting bind group: %w", err)
	}
	c.tileBGP = tileBGP

	tileUniforms = light.GPUTileUniforms{
		TileCountX:       c.tileCountX,
		MaxLightsPerTile: uint32(c.maxLightsPerTile),
	}
	c.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: tileBGP, Binding: 0, Offset: 0, Data: tileUniforms.Marshal()},
	})

	return nil
}

func (c *gpuCullerImpl) UploadLights(lights []light.Light, ambient [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cullBGP == nil {
		return
	}

	var lightCount uint32
	for _, l := range lights {
		if l != nil && l.Enabled() {
			lightCount++
		}
	}
	c.lightCount = lightCount

	c.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: c.cullBGP, Binding: 1, Offset: 0, Data: light.MarshalLightBuffer(lights, ambient, c.maxLights)},
	})
}

func (c *gpuCullerImpl) Dispatch(cam camera.Camera) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cullBGP == nil {
		return errors.New("cull: InitResources must be called before Dispatch")
	}
	if cam == nil {
		return errors.New("cull: camera must not be nil")
	}

	// Even with zero lights the dispatch must run so every tile publishes an
	// empty range — stale grid cells from the previous frame would keep
	// lighting fragments with lights that no longer exist.
	uniforms := light.GPULightCullUniforms{
		InvProj:         cam.InverseProjectionMatrix(),
		ViewMatrix:      cam.ViewMatrix(),
		TileCountX:      c.tileCountX,
		TileCountY:      c.tileCountY,
		ScreenWidth:     uint32(c.screenWidth),
		ScreenHeight:    uint32(c.screenHeight),
		LightCount:      c.lightCount,
		Near:            cam.Near(),
		Far:             cam.Far(),
		MaxLightIndices: uint32(c.maxLightIndices),
	}
	c.r.WriteBuffers([]bind_group_provider.BufferWrite{
		{Provider: c.cullBGP, Binding: 0, Offset: 0, Data: uniforms.Marshal()},
		// Reset the shared index cursor for this frame's reservations.
		{Provider: c.cullBGP, Binding: 4, Offset: 0, Data: make([]byte, 4)},
	})

	if err := c.r.BeginComputeFrame(); err != nil {
		return fmt.Errorf("cull: failed to begin compute frame: %w", err)
	}
	c.r.DispatchCompute(LightCullPipelineKey, c.cullBGP, [3]uint32{c.tileCountX, c.tileCountY, 1})
	c.r.EndComputeFrame()
	return nil
}

func (c *gpuCullerImpl) CullProvider() bind_group_provider.BindGroupProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cullBGP
}

func (c *gpuCullerImpl) TileProvider() bind_group_provider.BindGroupProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tileBGP
}

func (c *gpuCullerImpl) TileCounts() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tileCountX, c.tileCountY
}
