package prepass

import (
	"errors"

	"github.com/Carmen-Shannon/lumen-go/common"
	"github.com/Carmen-Shannon/lumen-go/engine/cull"
)

// RasterizeMesh rasterizes indexed triangles into a CPU depth buffer with a
// LESS depth compare, producing the same [0, 1] depth values the GPU prepass
// writes. This is the depth source for the CPU culling path.
//
// Triangles with any vertex behind the eye are discarded rather than clipped;
// the CPU path trades exact near-plane clipping for simplicity, matching its
// role as a reference rather than a production rasterizer.
//
// Parameters:
//   - depth: the destination depth buffer
//   - viewProj: the combined view-projection matrix (column-major, 16 elements)
//   - positions: the mesh vertex positions in world space
//   - indices: triangle vertex indices, three per triangle
//
// Returns:
//   - error: an error if the inputs are malformed
func RasterizeMesh(depth *cull.DepthBuffer, viewProj []float32, positions [][3]float32, indices []uint32) error {
	if depth == nil {
		return errors.New("prepass: depth buffer must not be nil")
	}
	if len(viewProj) < 16 {
		return errors.New("prepass: viewProj must have 16 elements")
	}
	if len(indices)%3 != 0 {
		return errors.New("prepass: index count must be a multiple of 3")
	}

	width := float32(depth.Width())
	height := float32(depth.Height())

	// Project all vertices once; screen-space xy plus NDC z.
	type projected struct {
		x, y, z float32
		behind  bool
	}
	proj := make([]projected, len(positions))
	for i, p := range positions {
		clip := common.MulVec4(viewProj, [4]float32{p[0], p[1], p[2], 1})
		if clip[3] <= 0 {
			proj[i] = projected{behind: true}
			continue
		}
		invW := 1 / clip[3]
		ndcX := clip[0] * invW
		ndcY := clip[1] * invW
		proj[i] = projected{
			x: (ndcX + 1) * 0.5 * width,
			y: (1 - ndcY) * 0.5 * height,
			z: clip[2] * invW,
		}
	}

	for t := 0; t < len(indices); t += 3 {
		i0, i1, i2 := indices[t], indices[t+1], indices[t+2]
		if int(i0) >= len(proj) || int(i1) >= len(proj) || int(i2) >= len(proj) {
			return errors.New("prepass: index out of range")
		}
		v0, v1, v2 := proj[i0], proj[i1], proj[i2]
		if v0.behind || v1.behind || v2.behind {
			continue
		}

		// Signed area doubles as the barycentric denominator; zero means the
		// triangle is edge-on.
		area := (v1.x-v0.x)*(v2.y-v0.y) - (v2.x-v0.x)*(v1.y-v0.y)
		if area == 0 {
			continue
		}
		invArea := 1 / area

		minX := int(min(v0.x, min(v1.x, v2.x)))
		maxX := int(max(v0.x, max(v1.x, v2.x))) + 1
		minY := int(min(v0.y, min(v1.y, v2.y)))
		maxY := int(max(v0.y, max(v1.y, v2.y))) + 1
		minX = common.Clamp(minX, 0, depth.Width()-1)
		maxX = common.Clamp(maxX, 0, depth.Width()-1)
		minY = common.Clamp(minY, 0, depth.Height()-1)
		maxY = common.Clamp(maxY, 0, depth.Height()-1)

		for py := minY; py <= maxY; py++ {
			for px := minX; px <= maxX; px++ {
				cx := float32(px) + 0.5
				cy := float32(py) + 0.5

				// Barycentric weights from edge functions; accept both
				// windings so callers need not pre-sort their geometry.
				w0 := ((v1.x-cx)*(v2.y-cy) - (v2.x-cx)*(v1.y-cy)) * invArea
				w1 := ((v2.x-cx)*(v0.y-cy) - (v0.x-cx)*(v2.y-cy)) * invArea
				w2 := 1 - w0 - w1
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}

				z := w0*v0.z + w1*v1.z + w2*v2.z
				if z < 0 || z > 1 {
					continue
				}
				depth.SetIfCloser(px, py, z)
			}
		}
	}
	return nil
}
