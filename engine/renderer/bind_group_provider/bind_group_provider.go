package bind_group_provider

import (
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// The following fields are GPU allocated resources and must be released
	// when no longer needed. They are populated by the Renderer during
	// initialization, not by user-creation.

	// bindGroup is the GPU bind group created for this provider, or nil if not initialized with the Renderer.
	bindGroup *wgpu.BindGroup
	// bindGroupLayout is the GPU bind group layout created for this provider, or nil if not initialized with the Renderer.
	bindGroupLayout *wgpu.BindGroupLayout
	// buffers holds the GPU buffers created for this provider, keyed by binding index.
	buffers map[int]*wgpu.Buffer
	// textureViews holds the GPU texture views created for this provider, keyed by binding index.
	textureViews map[int]*wgpu.TextureView

	// The following fields stage geometry for depth prepass draw calls.

	// vertexBuffer is the GPU vertex buffer created for this provider, or nil if not initialized with the Renderer.
	vertexBuffer *wgpu.Buffer
	// indexBuffer is the GPU index buffer created for this provider, or nil if not initialized with the Renderer.
	indexBuffer *wgpu.Buffer
	// indexCount is the number of indices for draw calls, used by the Renderer to issue drawIndexed calls for this provider.
	indexCount int
}

// BindGroupProvider defines the interface for components that require GPU bind group resources.
// Components (Camera, cull pass, prepass geometry) hold a BindGroupProvider to describe their
// GPU binding requirements. The Renderer then uses this provider to initialize and update GPU
// resources.
//
// Usage pattern:
//  1. Component creates a BindGroupProvider with a unique label
//  2. Renderer.InitBindGroup(provider, ...) creates the GPU resources
//  3. Renderer.WriteBuffers(...) updates buffer contents each frame
//  4. The renderer reads BindGroup() when encoding passes
type BindGroupProvider interface {
	// Release releases any GPU resources held by this provider.
	Release()

	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the created bind group for shader binding.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroup: the bind group or nil
	BindGroup() *wgpu.BindGroup

	// BindGroupLayout returns the created bind group layout for this provider.
	// Returns nil if GPU resources have not been initialized.
	//
	// Returns:
	//   - *wgpu.BindGroupLayout: the bind group layout or nil
	BindGroupLayout() *wgpu.BindGroupLayout

	// Buffer returns the GPU buffer for a specific binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.Buffer: the buffer or nil
	Buffer(binding int) *wgpu.Buffer

	// Buffers returns a map of all buffers associated with this provider, keyed by binding index.
	//
	// Returns:
	//   - map[int]*wgpu.Buffer: a map of buffers keyed by binding index
	Buffers() map[int]*wgpu.Buffer

	// TextureView returns the GPU texture view for a specific binding, or nil if not set.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - *wgpu.TextureView: the texture view or nil
	TextureView(binding int) *wgpu.TextureView

	// TextureViews returns a map of all texture views associated with this provider, keyed by binding index.
	//
	// Returns:
	//   - map[int]*wgpu.TextureView: a map of texture views keyed by binding index
	TextureViews() map[int]*wgpu.TextureView

	// VertexBuffer returns the GPU vertex buffer, or nil if not initialized.
	//
	// Returns:
	//   - *wgpu.Buffer: the vertex buffer or nil
	VertexBuffer() *wgpu.Buffer

	// IndexBuffer returns the GPU index buffer, or nil if not initialized.
	//
	// Returns:
	//   - *wgpu.Buffer: the index buffer or nil
	IndexBuffer() *wgpu.Buffer

	// IndexCount returns the number of indices for draw calls.
	//
	// Returns:
	//   - int: the index count
	IndexCount() int

	// SetBindGroup sets the bind group after GPU initialization.
	// Called by Renderer.InitBindGroup().
	//
	// Parameters:
	//   - bg: the created bind group
	SetBindGroup(bg *wgpu.BindGroup)

	// SetBindGroupLayout sets the bind group layout after GPU initialization.
	// Called by Renderer.InitBindGroup().
	//
	// Parameters:
	//   - bgl: the created bind group layout
	SetBindGroupLayout(bgl *wgpu.BindGroupLayout)

	// SetBuffer sets a buffer for a specific binding after GPU initialization.
	// Called by Renderer.InitBindGroup().
	//
	// Parameters:
	//   - binding: the binding index
	//   - buf: the created buffer
	SetBuffer(binding int, buf *wgpu.Buffer)

	// SetBuffers sets multiple buffers at once after GPU initialization.
	//
	// Parameters:
	//   - buffers: a map of buffers keyed by binding index
	SetBuffers(buffers map[int]*wgpu.Buffer)

	// SetTextureView stores a GPU texture view for a specific binding.
	//
	// Parameters:
	//   - binding: the binding index
	//   - tv: the texture view to store
	SetTextureView(binding int, tv *wgpu.TextureView)

	// SetTextureViews stores multiple GPU texture views at once.
	//
	// Parameters:
	//   - textureViews: a map of texture views keyed by binding index
	SetTextureViews(textureViews map[int]*wgpu.TextureView)

	// SetVertexBuffer stores the GPU vertex buffer after creation by InitBindGroup.
	//
	// Parameters:
	//   - buf: the created vertex buffer
	SetVertexBuffer(buf *wgpu.Buffer)

	// SetIndexBuffer stores the GPU index buffer after creation by InitBindGroup.
	//
	// Parameters:
	//   - buf: the created index buffer
	SetIndexBuffer(buf *wgpu.Buffer)

	// SetIndexCount sets the number of indices for draw calls.
	//
	// Parameters:
	//   - count: the index count
	SetIndexCount(count int)
}

// Compile-time check that bindGroupProvider implements BindGroupProvider
var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the provided options.
//
// Parameters:
//   - label: a debug label identifying the provider
//   - options: a variadic list of options to configure the provider
//
// Returns:
//   - BindGroupProvider: a new instance of BindGroupProvider configured with the provided options
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:        label,
		buffers:      make(map[int]*wgpu.Buffer),
		textureViews: make(map[int]*wgpu.TextureView),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() *wgpu.BindGroup {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() *wgpu.BindGroupLayout {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Buffer(binding int) *wgpu.Buffer {
	return p.buffers[binding]
}

func (p *bindGroupProvider) Buffers() map[int]*wgpu.Buffer {
	return p.buffers
}

func (p *bindGroupProvider) TextureView(binding int) *wgpu.TextureView {
	return p.textureViews[binding]
}

func (p *bindGroupProvider) TextureViews() map[int]*wgpu.TextureView {
	return p.textureViews
}

func (p *bindGroupProvider) VertexBuffer() *wgpu.Buffer {
	return p.vertexBuffer
}

func (p *bindGroupProvider) IndexBuffer() *wgpu.Buffer {
	return p.indexBuffer
}

func (p *bindGroupProvider) IndexCount() int {
	return p.indexCount
}

func (p *bindGroupProvider) SetBindGroup(bg *wgpu.BindGroup) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl *wgpu.BindGroupLayout) {
	p.bindGroupLayout = bgl
}

func (p *bindGroupProvider) SetBuffer(binding int, buf *wgpu.Buffer) {
	if p.buffers == nil {
		p.buffers = make(map[int]*wgpu.Buffer)
	}
	p.buffers[binding] = buf
}

func (p *bindGroupProvider) SetBuffers(buffers map[int]*wgpu.Buffer) {
	p.buffers = buffers
}

func (p *bindGroupProvider) SetTextureView(binding int, tv *wgpu.TextureView) {
	if p.textureViews == nil {
		p.textureViews = make(map[int]*wgpu.TextureView)
	}
	p.textureViews[binding] = tv
}

func (p *bindGroupProvider) SetTextureViews(textureViews map[int]*wgpu.TextureView) {
	p.textureViews = textureViews
}

func (p *bindGroupProvider) SetVertexBuffer(buf *wgpu.Buffer) {
	p.vertexBuffer = buf
}

func (p *bindGroupProvider) SetIndexBuffer(buf *wgpu.Buffer) {
	p.indexBuffer = buf
}

func (p *bindGroupProvider) SetIndexCount(count int) {
	p.indexCount = count
}

func (p *bindGroupProvider) Release() {
	for i, tv := range p.textureViews {
		if tv != nil {
			tv.Release()
			delete(p.textureViews, i)
		}
	}
	for i, buf := range p.buffers {
		if buf != nil {
			buf.Release()
			delete(p.buffers, i)
		}
	}

	if p.bindGroup != nil {
		p.bindGroup.Release()
		p.bindGroup = nil
	}
	if p.bindGroupLayout != nil {
		p.bindGroupLayout.Release()
		p.bindGroupLayout = nil
	}
	if p.vertexBuffer != nil {
		p.vertexBuffer.Release()
		p.vertexBuffer = nil
	}
	if p.indexBuffer != nil {
		p.indexBuffer.Release()
		p.indexBuffer = nil
	}
}
