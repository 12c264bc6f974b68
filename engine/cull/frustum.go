package cull

import (
	"fmt"

	"github.com/Carmen-Shannon/lumen-go/common"
)

// TileFrustum holds the four view-space side planes of a single screen tile.
// All four planes pass through the camera eye (the view-space origin) and are
// oriented so the positive half-space faces into the tile's volume. Near/far
// clipping is handled separately with the tile's depth bounds, so side planes
// are all a tile frustum stores.
type TileFrustum struct {
	Planes [4]common.Plane // Left, Right, Bottom, Top
}

// IntersectsSphere reports whether a view-space sphere overlaps the tile
// frustum volume restricted to the [minDepth, maxDepth] view-space distance
// range. The test is conservative: it may report an intersection for spheres
// near plane corners that miss the true volume, never the reverse.
//
// Parameters:
//   - center: sphere center in view space
//   - radius: sphere radius
//   - minDepth: closest view-space distance covered by the tile's geometry
//   - maxDepth: farthest view-space distance covered by the tile's geometry
//
// Returns:
//   - bool: true if the sphere may touch the tile volume
func (tf *TileFrustum) IntersectsSphere(center [3]float32, radius, minDepth, maxDepth float32) bool {
	// View space looks down -Z, so view distance is -center[2].
	dist := -center[2]
	if dist+radius < minDepth || dist-radius > maxDepth {
		return false
	}
	for i := range tf.Planes {
		if tf.Planes[i].SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}

// TileFrustumGrid is the full set of per-tile frusta for one screen
// configuration. The grid is immutable once built; it is rebuilt whenever
// the resolution, tile size, or projection matrix changes, and carries the
// projection generation it was built against so consumers can detect
// stale grids.
type TileFrustumGrid struct {
	TileSize     int
	TileCountX   uint32
	TileCountY   uint32
	ScreenWidth  int
	ScreenHeight int

	// Generation is the projection generation this grid was built from.
	// A culler invoked with a grid whose generation does not match the
	// camera's current projection generation refuses to run.
	Generation uint64

	// Frusta holds one TileFrustum per tile in row-major order.
	Frusta []TileFrustum
}

// Tile returns the frustum for the tile at (tileX, tileY).
//
// Parameters:
//   - tileX: tile column
//   - tileY: tile row
//
// Returns:
//   - *TileFrustum: the tile's frustum
func (g *TileFrustumGrid) Tile(tileX, tileY int) *TileFrustum {
	return &g.Frusta[TileIndex(tileX, tileY, g.TileCountX)]
}

// TileCount returns the total number of tiles in the grid.
//
// Returns:
//   - int: tileCountX * tileCountY
func (g *TileFrustumGrid) TileCount() int {
	return int(g.TileCountX) * int(g.TileCountY)
}

// BuildTileFrustumGrid constructs the per-tile view-space frusta for a screen
// configuration. Tile corners are unprojected from NDC at the far plane and
// joined to the eye to form the four side planes of each tile. Partial tiles
// at the right and bottom screen edges get full-size frusta, which
// over-includes off-screen area rather than clipping it.
//
// Parameters:
//   - invProj: the inverse projection matrix (16 elements, column-major)
//   - screenWidth, screenHeight: render target dimensions in pixels
//   - tileSize: tile edge length in pixels
//   - generation: the projection generation the inverse projection came from
//
// Returns:
//   - *TileFrustumGrid: the built grid
//   - error: if any dimension or the tile size is not positive
func BuildTileFrustumGrid(invProj []float32, screenWidth, screenHeight, tileSize int, generation uint64) (*TileFrustumGrid, error) {
	if tileSize <= 0 {
		return nil, fmt.Errorf("tile size must be positive, got %d", tileSize)
	}
	if screenWidth <= 0 || screenHeight <= 0 {
		return nil, fmt.Errorf("screen dimensions must be positive, got %dx%d", screenWidth, screenHeight)
	}
	if len(invProj) < 16 {
		return nil, fmt.Errorf("inverse projection must have 16 elements, got %d", len(invProj))
	}

	tileCountX, tileCountY := TileCounts(screenWidth, screenHeight, tileSize)
	g := &TileFrustumGrid{
		TileSize:     tileSize,
		TileCountX:   tileCountX,
		TileCountY:   tileCountY,
		ScreenWidth:  screenWidth,
		ScreenHeight: screenHeight,
		Generation:   generation,
		Frusta:       make([]TileFrustum, int(tileCountX)*int(tileCountY)),
	}

	// Unproject a grid of (tileCountX+1) × (tileCountY+1) tile corner rays at
	// the far plane, shared between adjacent tiles.
	cornersX := int(tileCountX) + 1
	cornersY := int(tileCountY) + 1
	corners := make([][3]float32, cornersX*cornersY)
	for cy := 0; cy < cornersY; cy++ {
		for cx := 0; cx < cornersX; cx++ {
			// Pixel position of the corner; edge corners of partial tiles
			// extend past the screen, keeping boundary frusta full-size.
			px := float32(cx * tileSize)
			py := float32(cy * tileSize)
			ndcX := 2.0*px/float32(screenWidth) - 1.0
			ndcY := 1.0 - 2.0*py/float32(screenHeight)
			corners[cy*cornersX+cx] = common.UnprojectNDC(invProj, ndcX, ndcY, 1.0)
		}
	}

	for ty := 0; ty < int(tileCountY); ty++ {
		for tx := 0; tx < int(tileCountX); tx++ {
			tl := corners[ty*cornersX+tx]
			tr := corners[ty*cornersX+tx+1]
			bl := corners[(ty+1)*cornersX+tx]
			br := corners[(ty+1)*cornersX+tx+1]

			// Centroid of the far-plane quad serves as the inside reference
			// point for orienting each plane.
			inside := [3]float32{
				(tl[0] + tr[0] + bl[0] + br[0]) * 0.25,
				(tl[1] + tr[1] + bl[1] + br[1]) * 0.25,
				(tl[2] + tr[2] + bl[2] + br[2]) * 0.25,
			}

			f := &g.Frusta[TileIndex(tx, ty, tileCountX)]
			f.Planes[0] = common.PlaneThroughOrigin(tl, bl, inside) // left
			f.Planes[1] = common.PlaneThroughOrigin(tr, br, inside) // right
			f.Planes[2] = common.PlaneThroughOrigin(bl, br, inside) // bottom
			f.Planes[3] = common.PlaneThroughOrigin(tl, tr, inside) // top
		}
	}

	return g, nil
}
