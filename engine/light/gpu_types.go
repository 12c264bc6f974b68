package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"
)

// MaxGPULights is the default maximum number of lights that can be marshaled
// into the GPU storage buffer per frame. The CPU-side light list is unbounded;
// this cap controls only how many lights the GPU evaluates.
const MaxGPULights = 1024

// GPULightSource is the canonical WGSL definition of the Light struct.
// Matches GPULight layout exactly (64 bytes, std430 aligned).
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU-aligned representation of a single light source.
// Matches the WGSL Light struct layout exactly (see GPULightSource).
// Size: 64 bytes (std430 / WGSL aligned).
type GPULight struct {
	Position   [3]float32 // offset  0: world-space position (point/spot) or unused (directional)
	LightType  uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Color      [3]float32 // offset 16: RGB color
	Intensity  float32    // offset 28: scalar multiplier
	Direction  [3]float32 // offset 32: normalized direction (directional/spot) or unused (point)
	LightRange float32    // offset 44: attenuation cutoff distance / culling sphere radius
	InnerCone  float32    // offset 48: cos(inner half-angle) for spot
	OuterCone  float32    // offset 52: cos(outer half-angle) for spot
	_pad0      uint32     // offset 56: padding
	_pad1      uint32     // offset 60: padding to 64-byte alignment
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (64)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, 64)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(g.Position[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(g.Position[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(g.Position[2]))
	binary.LittleEndian.PutUint32(buf[12:16], g.LightType)
	binary.LittleEndian.PutUint32(buf[16:20], math.Float32bits(g.Color[0]))
	binary.LittleEndian.PutUint32(buf[20:24], math.Float32bits(g.Color[1]))
	binary.LittleEndian.PutUint32(buf[24:28], math.Float32bits(g.Color[2]))
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Intensity))
	binary.LittleEndian.PutUint32(buf[32:36], math.Float32bits(g.Direction[0]))
	binary.LittleEndian.PutUint32(buf[36:40], math.Float32bits(g.Direction[1]))
	binary.LittleEndian.PutUint32(buf[40:44], math.Float32bits(g.Direction[2]))
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.LightRange))
	binary.LittleEndian.PutUint32(buf[48:52], math.Float32bits(g.InnerCone))
	binary.LittleEndian.PutUint32(buf[52:56], math.Float32bits(g.OuterCone))
	binary.LittleEndian.PutUint32(buf[56:60], 0) // padding
	binary.LittleEndian.PutUint32(buf[60:64], 0) // padding
	return buf
}

// GPULightHeaderSource is the canonical WGSL definition of the LightHeader struct.
// Matches GPULightHeader layout exactly (16 bytes, std430 aligned).
//
//go:embed assets/light_header.wgsl
var GPULightHeaderSource string

// GPULightHeader is the header prepended to the light storage buffer.
// Contains the ambient color and the active light count.
// Matches the WGSL LightHeader struct layout exactly (see GPULightHeaderSource).
// Size: 16 bytes (vec3 + u32, std430 aligned).
type GPULightHeader struct {
	AmbientColor [3]float32 // offset 0: scene ambient RGB
	LightCount   uint32     // offset 12: number of active lights following the header
}

// Size returns the size of the GPULightHeader struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (16)
func (h *GPULightHeader) Size() int {
	return int(unsafe.Sizeof(*h))
}

// Marshal serializes the GPULightHeader struct into a byte buffer suitable for
// GPU upload.
//
// Returns:
//   - []byte: 16-byte buffer ready for GPU upload
func (h *GPULightHeader) Marshal() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(h.AmbientColor[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(h.AmbientColor[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(h.AmbientColor[2]))
	binary.LittleEndian.PutUint32(buf[12:16], h.LightCount)
	return buf
}

// GPULightCullUniformsSource is the canonical WGSL definition of the LightCullUniforms struct.
// Matches GPULightCullUniforms layout exactly (160 bytes, std430 aligned).
//
//go:embed assets/light_cull_uniforms.wgsl
var GPULightCullUniformsSource string

// GPULightCullUniforms is the GPU-aligned uniform data for the light culling
// compute shader. Contains the inverse projection and view matrices needed
// to reconstruct per-tile frustum planes, plus tile/screen dimensions, the
// active light count, and the global index list capacity.
// Matches the WGSL LightCullUniforms struct layout exactly (see GPULightCullUniformsSource).
// Size: 160 bytes (std430 / WGSL aligned).
//
// Layout:
//
//	mat4x4<f32> inv_proj          (64 bytes, offset  0)
//	mat4x4<f32> view_matrix       (64 bytes, offset 64)
//	u32         tile_count_x      ( 4 bytes, offset 128)
//	u32         tile_count_y      ( 4 bytes, offset 132)
//	u32         screen_width      ( 4 bytes, offset 136)
//	u32         screen_height     ( 4 bytes, offset 140)
//	u32         light_count       ( 4 bytes, offset 144)
//	f32         near              ( 4 bytes, offset 148)
//	f32         far               ( 4 bytes, offset 152)
//	u32         max_light_indices ( 4 bytes, offset 156)
type GPULightCullUniforms struct {
	InvProj         [16]float32 // inverse projection matrix
	ViewMatrix      [16]float32 // camera view matrix
	TileCountX      uint32
	TileCountY      uint32
	ScreenWidth     uint32
	ScreenHeight    uint32
	LightCount      uint32
	Near            float32
	Far             float32
	MaxLightIndices uint32
}

// Size returns the size of the GPULightCullUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (160)
func (u *GPULightCullUniforms) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes GPULightCullUniforms into a 160-byte little-endian buffer
// suitable for GPU upload.
//
// Returns:
//   - []byte: 160-byte buffer ready for GPU upload
func (u *GPULightCullUniforms) Marshal() []byte {
	buf := make([]byte, 160)
	off := 0

	// inv_proj (64 bytes)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.InvProj[i]))
		off += 4
	}
	// view_matrix (64 bytes)
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.ViewMatrix[i]))
		off += 4
	}
	// tile_count_x, tile_count_y
	binary.LittleEndian.PutUint32(buf[off:off+4], u.TileCountX)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], u.TileCountY)
	off += 4
	// screen_width, screen_height
	binary.LittleEndian.PutUint32(buf[off:off+4], u.ScreenWidth)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], u.ScreenHeight)
	off += 4
	// light_count
	binary.LittleEndian.PutUint32(buf[off:off+4], u.LightCount)
	off += 4
	// near, far
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.Near))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(u.Far))
	off += 4
	// max_light_indices
	binary.LittleEndian.PutUint32(buf[off:off+4], u.MaxLightIndices)

	return buf
}

// GPUTileUniformsSource is the canonical WGSL definition of the TileUniforms struct.
// Matches GPUTileUniforms layout exactly (8 bytes).
//
//go:embed assets/tile_uniforms.wgsl
var GPUTileUniformsSource string

// GPUTileUniforms is the GPU-aligned uniform data read by the lit fragment
// shader to compute which tile a fragment belongs to and index into the
// light grid buffer.
// Matches the WGSL TileUniforms struct layout exactly (see GPUTileUniformsSource).
// Size: 8 bytes.
//
// Layout:
//
//	u32 tile_count_x        (4 bytes, offset 0)
//	u32 max_lights_per_tile (4 bytes, offset 4)
type GPUTileUniforms struct {
	TileCountX       uint32
	MaxLightsPerTile uint32
}

// Size returns the size of the GPUTileUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (8)
func (u *GPUTileUniforms) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes GPUTileUniforms into an 8-byte little-endian buffer suitable
// for GPU upload.
//
// Returns:
//   - []byte: 8-byte buffer ready for GPU upload
func (u *GPUTileUniforms) Marshal() []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], u.TileCountX)
	binary.LittleEndian.PutUint32(buf[4:8], u.MaxLightsPerTile)
	return buf
}

// ToGPULight converts a Light interface value into the GPU-aligned GPULight struct
// suitable for writing into the light storage buffer.
//
// Parameters:
//   - l: the Light to convert
//
// Returns:
//   - GPULight: the GPU-aligned representation
func ToGPULight(l Light) GPULight {
	return GPULight{
		Position:   l.Position(),
		LightType:  uint32(l.Type()),
		Color:      l.Color(),
		Intensity:  l.Intensity(),
		Direction:  l.Direction(),
		LightRange: l.Range(),
		InnerCone:  l.InnerCone(),
		OuterCone:  l.OuterCone(),
	}
}

// MarshalLightBuffer marshals a slice of enabled lights into a byte buffer
// suitable for GPU upload. The buffer layout is:
//
//	[GPULightHeader (16 bytes)] [GPULight × count (64 bytes each)]
//
// Only enabled lights are included, up to maxLights. Lights beyond the budget
// are silently dropped; callers should pre-sort by priority if truncation is
// expected.
//
// Parameters:
//   - lights: the full slice of lights to marshal (only enabled lights are included)
//   - ambient: the scene ambient color as RGB
//   - maxLights: the GPU light buffer capacity; values <= 0 fall back to MaxGPULights
//
// Returns:
//   - []byte: the marshaled buffer ready for GPU upload
func MarshalLightBuffer(lights []Light, ambient [3]float32, maxLights int) []byte {
	if maxLights <= 0 {
		maxLights = MaxGPULights
	}
	headerSize := (&GPULightHeader{}).Size()
	lightSize := (&GPULight{}).Size()

	// Pre-count enabled lights to size the buffer.
	enabledCount := 0
	for _, l := range lights {
		if l.Enabled() {
			enabledCount++
			if enabledCount >= maxLights {
				break
			}
		}
	}

	buf := make([]byte, headerSize+enabledCount*lightSize)

	// Write header.
	binary.LittleEndian.PutUint32(buf[0:4], math.Float32bits(ambient[0]))
	binary.LittleEndian.PutUint32(buf[4:8], math.Float32bits(ambient[1]))
	binary.LittleEndian.PutUint32(buf[8:12], math.Float32bits(ambient[2]))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(enabledCount))

	// Write each enabled light.
	offset := headerSize
	written := 0
	for _, l := range lights {
		if !l.Enabled() {
			continue
		}
		if written >= maxLights {
			break
		}
		gpu := ToGPULight(l)
		copy(buf[offset:offset+lightSize], gpu.Marshal())
		offset += lightSize
		written++
	}

	return buf
}
