package cull

import "fmt"

// DepthClearValue is the depth buffer clear value. Depth is stored in the
// WebGPU convention: 0 at the near plane, 1 at the far plane, so cleared
// pixels read as maximally distant.
const DepthClearValue float32 = 1.0

// DepthBuffer is a CPU-side depth target produced by the depth prepass and
// consumed by the light culler. Values are non-linear [0, 1] depth exactly as
// a Depth32Float texture would hold them.
type DepthBuffer struct {
	width  int
	height int
	data   []float32
}

// NewDepthBuffer creates a depth buffer of the given dimensions, cleared to
// DepthClearValue.
//
// Parameters:
//   - width: buffer width in pixels
//   - height: buffer height in pixels
//
// Returns:
//   - *DepthBuffer: the cleared buffer
//   - error: if either dimension is not positive
func NewDepthBuffer(width, height int) (*DepthBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("depth buffer dimensions must be positive, got %dx%d", width, height)
	}
	b := &DepthBuffer{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}
	b.Clear()
	return b, nil
}

// Width returns the buffer width in pixels.
func (b *DepthBuffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *DepthBuffer) Height() int { return b.height }

// Clear resets every pixel to DepthClearValue.
func (b *DepthBuffer) Clear() {
	for i := range b.data {
		b.data[i] = DepthClearValue
	}
}

// At returns the depth value at (x, y). Out-of-bounds reads return
// DepthClearValue, which makes partial boundary tiles read their
// off-screen pixels as maximally distant.
//
// Parameters:
//   - x, y: pixel coordinates
//
// Returns:
//   - float32: the stored depth, or DepthClearValue when out of bounds
func (b *DepthBuffer) At(x, y int) float32 {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return DepthClearValue
	}
	return b.data[y*b.width+x]
}

// Set writes a depth value at (x, y). Out-of-bounds writes are ignored.
//
// Parameters:
//   - x, y: pixel coordinates
//   - depth: the depth value in [0, 1]
func (b *DepthBuffer) Set(x, y int, depth float32) {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return
	}
	b.data[y*b.width+x] = depth
}

// SetIfCloser writes a depth value at (x, y) only if it is closer than the
// stored value, matching a LESS depth compare. Out-of-bounds writes are
// ignored.
//
// Parameters:
//   - x, y: pixel coordinates
//   - depth: the candidate depth value in [0, 1]
func (b *DepthBuffer) SetIfCloser(x, y int, depth float32) {
	if x < 0 || x >= b.width || y < 0 || y >= b.height {
		return
	}
	idx := y*b.width + x
	if depth < b.data[idx] {
		b.data[idx] = depth
	}
}

// Raw returns the underlying pixel storage in row-major order. The slice is
// shared with the buffer; callers must not resize it.
//
// Returns:
//   - []float32: the pixel data
func (b *DepthBuffer) Raw() []float32 {
	return b.data
}

// LinearizeDepth converts a non-linear [0, 1] depth value to a positive
// view-space distance, using the perspective projection produced by
// common.Perspective (WebGPU Z convention, near maps to 0 and far to 1).
//
// Parameters:
//   - depth: the non-linear depth sample
//   - near: camera near plane distance
//   - far: camera far plane distance
//
// Returns:
//   - float32: view-space distance in [near, far]
func LinearizeDepth(depth, near, far float32) float32 {
	return near * far / (far - depth*(far-near))
}
