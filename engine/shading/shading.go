package shading

import (
	_ "embed"
	"math"

	"github.com/Carmen-Shannon/lumen-go/engine/cull"
	"github.com/Carmen-Shannon/lumen-go/engine/light"
	"github.com/Carmen-Shannon/lumen-go/engine/prepass"
	"github.com/Carmen-Shannon/lumen-go/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
)

//go:embed assets/forward_plus.wgsl
var forwardPlusWGSL string

// LitPipelineKey is the pipeline cache key for the tile-gated lit pipeline.
const LitPipelineKey = "forward_plus_lit"

// LitVertexShaderModule returns the lit pass vertex shader with the camera
// bind group layout and the position+normal vertex layout.
//
// Returns:
//   - *pipeline.ShaderModule: the vertex shader module for lit pipeline registration
func LitVertexShaderModule() *pipeline.ShaderModule {
	return &pipeline.ShaderModule{
		Key:        "forward_plus_vs",
		Source:     forwardPlusWGSL,
		EntryPoint: "vs_lit",
		BindGroupLayouts: map[int]wgpu.BindGroupLayoutDescriptor{
			0: prepass.CameraBindGroupLayout(wgpu.ShaderStageVertex),
		},
		VertexLayouts: []wgpu.VertexBufferLayout{
			{
				ArrayStride: 24, // vec3<f32> position + vec3<f32> normal
				StepMode:    wgpu.VertexStepModeVertex,
				Attributes: []wgpu.VertexAttribute{
					{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
					{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
				},
			},
		},
	}
}

// LitFragmentShaderModule returns the lit pass fragment shader. Group 1 holds
// the light storage buffer; group 2 is the tile layout shared with the cull
// pass, so the fragment stage reads the grid and index list the compute pass
// wrote.
//
// Returns:
//   - *pipeline.ShaderModule: the fragment shader module for lit pipeline registration
func LitFragmentShaderModule() *pipeline.ShaderModule {
	return &pipeline.ShaderModule{
		Key:        "forward_plus_fs",
		Source:     forwardPlusWGSL,
		EntryPoint: "fs_lit",
		BindGroupLayouts: map[int]wgpu.BindGroupLayoutDescriptor{
			1: LightsBindGroupLayout(),
			2: cull.TileBindGroupLayout(),
		},
	}
}

// LightsBindGroupLayout returns the fragment-stage layout for the light
// storage buffer (header + light records).
//
// Returns:
//   - wgpu.BindGroupLayoutDescriptor: the lights bind group layout
func LightsBindGroupLayout() wgpu.BindGroupLayoutDescriptor {
	return wgpu.BindGroupLayoutDescriptor{
		Label: "Lights Bind Group Layout",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageFragment,
				Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage},
			},
		},
	}
}

// Surface describes one shaded point for the CPU reference path.
type Surface struct {
	// Position is the world-space position of the point.
	Position [3]float32

	// Normal is the unit surface normal.
	Normal [3]float32

	// Albedo is the surface base color the light contributions modulate.
	Albedo [3]float32
}

// TileLightIndices returns the culled light indices for the tile containing
// pixel (px, py). The returned slice aliases the index list; callers must not
// mutate it.
//
// Parameters:
//   - tables: the light tables produced by a cull pass
//   - tileCountX: tiles per row, matching the grid the tables were built for
//   - tileSize: tile edge length in pixels
//   - px, py: pixel coordinates
//
// Returns:
//   - []uint32: the light indices for the pixel's tile; nil when the pixel
//     falls outside the grid
func TileLightIndices(tables *cull.LightTables, tileCountX uint32, tileSize, px, py int) []uint32 {
	if tables == nil || tileSize <= 0 || px < 0 || py < 0 {
		return nil
	}
	tileX := px / tileSize
	tileY := py / tileSize
	if uint32(tileX) >= tileCountX {
		return nil
	}
	idx := cull.TileIndex(tileX, tileY, tileCountX)
	if idx >= len(tables.Grid) {
		return nil
	}
	return tables.TileLights(idx)
}

// ShadeSurface computes the CPU reference shading for one surface point:
// ambient, every directional light unconditionally, then Lambert with smooth
// range attenuation (and cone falloff for spots) for the tile's culled lights.
// This mirrors fs_lit in the embedded WGSL and anchors the tile-gating tests.
//
// Parameters:
//   - s: the surface point
//   - lights: the scene lights the index slices refer into
//   - culled: the tile's culled light indices (from TileLightIndices)
//   - directional: the directional light indices (from CullResult.Directional)
//   - ambient: the ambient RGB term
//
// Returns:
//   - [3]float32: the shaded RGB color
func ShadeSurface(s Surface, lights []light.Light, culled, directional []uint32, ambient [3]float32) [3]float32 {
	color := ambient
	for _, di := range directional {
		l := lightAt(lights, di)
		if l == nil {
			continue
		}
		d := l.Direction()
		ndotl := max(-dot3(s.Normal, d), 0)
		c := l.Color()
		color[0] += c[0] * l.Intensity() * ndotl
		color[1] += c[1] * l.Intensity() * ndotl
		color[2] += c[2] * l.Intensity() * ndotl
	}
	for _, ci := range culled {
		l := lightAt(lights, ci)
		if l == nil {
			continue
		}
		contrib := shadeLocal(l, s.Position, s.Normal)
		color[0] += contrib[0]
		color[1] += contrib[1]
		color[2] += contrib[2]
	}
	color[0] *= s.Albedo[0]
	color[1] *= s.Albedo[1]
	color[2] *= s.Albedo[2]
	return color
}

// ShadePixel combines the tile lookup and the reference shade for one pixel.
//
// Parameters:
//   - result: the cull pass output
//   - grid: the tile frustum grid the result was culled against
//   - lights: the scene lights
//   - s: the surface point visible at the pixel
//   - px, py: pixel coordinates
//   - ambient: the ambient RGB term
//
// Returns:
//   - [3]float32: the shaded RGB color
func ShadePixel(result *cull.CullResult, grid *cull.TileFrustumGrid, lights []light.Light, s Surface, px, py int, ambient [3]float32) [3]float32 {
	var culled, directional []uint32
	if result != nil {
		culled = TileLightIndices(result.Tables, grid.TileCountX, grid.TileSize, px, py)
		directional = result.Directional
	}
	return ShadeSurface(s, lights, culled, directional, ambient)
}

// shadeLocal is the point/spot contribution: Lambert scaled by a smooth
// quadratic window that reaches zero exactly at the light's range.
func shadeLocal(l light.Light, p, n [3]float32) [3]float32 {
	lp := l.Position()
	toLight := [3]float32{lp[0] - p[0], lp[1] - p[1], lp[2] - p[2]}
	dist := float32(math.Sqrt(float64(dot3(toLight, toLight))))
	r := l.Range()
	if dist >= r || r <= 0 {
		return [3]float32{}
	}
	inv := 1 / max(dist, 1e-5)
	dir := [3]float32{toLight[0] * inv, toLight[1] * inv, toLight[2] * inv}

	x := 1 - (dist*dist)/(r*r)
	atten := x * x
	scale := l.Intensity() * max(dot3(n, dir), 0) * atten

	if l.Type() == light.LightTypeSpot {
		// Cone falloff between the outer and inner cosine bounds.
		cosAngle := -dot3(dir, l.Direction())
		denom := max(l.InnerCone()-l.OuterCone(), 1e-4)
		t := (cosAngle - l.OuterCone()) / denom
		if t < 0 {
			t = 0
		} else if t > 1 {
			t = 1
		}
		scale *= t
	}

	c := l.Color()
	return [3]float32{c[0] * scale, c[1] * scale, c[2] * scale}
}

func lightAt(lights []light.Light, i uint32) light.Light {
	if int(i) >= len(lights) {
		return nil
	}
	return lights[i]
}

func dot3(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}
