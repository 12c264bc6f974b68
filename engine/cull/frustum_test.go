package cull

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/lumen-go/common"
)

func buildTestGrid(t *testing.T, width, height, tileSize int) (*TileFrustumGrid, [16]float32) {
	t.Helper()
	var proj, invProj [16]float32
	common.Perspective(proj[:], math.Pi/2, float32(width)/float32(height), 0.1, 100)
	if !common.Invert4(invProj[:], proj[:]) {
		t.Fatal("projection must be invertible")
	}
	grid, err := BuildTileFrustumGrid(invProj[:], width, height, tileSize, 0)
	if err != nil {
		t.Fatalf("BuildTileFrustumGrid: %v", err)
	}
	return grid, invProj
}

func TestBuildTileFrustumGridShape(t *testing.T) {
	grid, _ := buildTestGrid(t, 32, 32, 16)
	if grid.TileCountX != 2 || grid.TileCountY != 2 {
		t.Fatalf("tile counts = %dx%d, want 2x2", grid.TileCountX, grid.TileCountY)
	}
	if grid.TileCount() != 4 {
		t.Fatalf("TileCount = %d, want 4", grid.TileCount())
	}
	if len(grid.Frusta) != 4 {
		t.Fatalf("len(Frusta) = %d, want 4", len(grid.Frusta))
	}
}

func TestBuildTileFrustumGridRejectsBadInput(t *testing.T) {
	var invProj [16]float32
	common.Identity(invProj[:])

	if _, err := BuildTileFrustumGrid(invProj[:], 32, 32, 0, 0); err == nil {
		t.Error("expected error for zero tile size")
	}
	if _, err := BuildTileFrustumGrid(invProj[:], 0, 32, 16, 0); err == nil {
		t.Error("expected error for zero width")
	}
	if _, err := BuildTileFrustumGrid(invProj[:3], 32, 32, 16, 0); err == nil {
		t.Error("expected error for short matrix")
	}
}

func TestTileFrustumContainsItsOwnPixels(t *testing.T) {
	// Every pixel's surface point must satisfy its own tile's side planes.
	width, height, tileSize := 64, 64, 16
	grid, invProj := buildTestGrid(t, width, height, tileSize)

	for py := 0; py < height; py += 3 {
		for px := 0; px < width; px += 3 {
			ndcX := 2.0*(float32(px)+0.5)/float32(width) - 1.0
			ndcY := 1.0 - 2.0*(float32(py)+0.5)/float32(height)
			for _, ndcZ := range []float32{0.1, 0.5, 0.95} {
				p := common.UnprojectNDC(invProj[:], ndcX, ndcY, ndcZ)
				tf := grid.Tile(px/tileSize, py/tileSize)
				for pi, plane := range tf.Planes {
					if plane.SignedDistance(p) < -1e-4 {
						t.Fatalf("pixel (%d,%d) at ndcZ=%v lies outside its tile's plane %d (dist %v)",
							px, py, ndcZ, pi, plane.SignedDistance(p))
					}
				}
			}
		}
	}
}

func TestTileFrustumExcludesDistantPoints(t *testing.T) {
	grid, invProj := buildTestGrid(t, 64, 64, 16)

	// A point squarely inside tile (0,0) must fail at least one plane of the
	// opposite corner tile (3,3).
	p := common.UnprojectNDC(invProj[:], -0.9, 0.9, 0.5)
	tf := grid.Tile(3, 3)
	inside := true
	for _, plane := range tf.Planes {
		if plane.SignedDistance(p) < 0 {
			inside = false
			break
		}
	}
	if inside {
		t.Fatal("point in tile (0,0) reported inside tile (3,3)")
	}
}

func TestTileFrustumIntersectsSphereDepthRange(t *testing.T) {
	grid, _ := buildTestGrid(t, 32, 32, 16)
	tf := grid.Tile(0, 0)

	// A sphere well inside the tile's side planes passes or fails purely on
	// the depth range.
	onAxis := [3]float32{-5, 5, -20} // inside the upper-left tile's quadrant

	if !tf.IntersectsSphere(onAxis, 2, 15, 25) {
		t.Error("sphere inside the depth band should intersect")
	}
	if tf.IntersectsSphere(onAxis, 2, 30, 40) {
		t.Error("sphere closer than the depth band should be rejected")
	}
	if tf.IntersectsSphere(onAxis, 2, 5, 10) {
		t.Error("sphere farther than the depth band should be rejected")
	}
	// Straddling the band edge stays in.
	if !tf.IntersectsSphere(onAxis, 6, 25, 40) {
		t.Error("sphere overlapping the band edge should intersect")
	}
}

func TestPartialBoundaryTilesGetFullFrusta(t *testing.T) {
	// 40×40 with 16px tiles: the last row/column of tiles covers pixels
	// 32..39 on screen but the frusta extend to pixel 48.
	width, height, tileSize := 40, 40, 16
	grid, invProj := buildTestGrid(t, width, height, tileSize)
	if grid.TileCountX != 3 || grid.TileCountY != 3 {
		t.Fatalf("tile counts = %dx%d, want 3x3", grid.TileCountX, grid.TileCountY)
	}

	// A point at the off-screen "pixel" (44, 44) still lies inside tile (2,2):
	// boundary tiles are over-inclusive, never clipped.
	ndcX := 2.0*44.0/float32(width) - 1.0
	ndcY := 1.0 - 2.0*44.0/float32(height)
	p := common.UnprojectNDC(invProj[:], ndcX, ndcY, 0.5)
	tf := grid.Tile(2, 2)
	for pi, plane := range tf.Planes {
		if plane.SignedDistance(p) < -1e-4 {
			t.Fatalf("off-screen point excluded by boundary tile plane %d", pi)
		}
	}
}
