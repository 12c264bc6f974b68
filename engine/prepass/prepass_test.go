package prepass

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/lumen-go/common"
	"github.com/Carmen-Shannon/lumen-go/engine/cull"
)

// quadAt returns a viewport-filling quad facing the camera at the given
// view-space distance, for a camera at the origin looking down -Z.
func quadAt(z, halfExtent float32) ([][3]float32, []uint32) {
	positions := [][3]float32{
		{-halfExtent, -halfExtent, -z},
		{halfExtent, -halfExtent, -z},
		{halfExtent, halfExtent, -z},
		{-halfExtent, halfExtent, -z},
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}
	return positions, indices
}

func testViewProj(near, far float32) []float32 {
	proj := make([]float32, 16)
	view := make([]float32, 16)
	viewProj := make([]float32, 16)
	common.Perspective(proj, float32(math.Pi/2), 1.0, near, far)
	common.LookAt(view, 0, 0, 0, 0, 0, -1, 0, 1, 0)
	common.Mul4(viewProj, proj, view)
	return viewProj
}

func TestRasterizeMeshValidation(t *testing.T) {
	depth, _ := cull.NewDepthBuffer(8, 8)
	viewProj := testViewProj(0.1, 100)

	if err := RasterizeMesh(nil, viewProj, nil, nil); err == nil {
		t.Error("expected error for nil depth buffer")
	}
	if err := RasterizeMesh(depth, viewProj[:8], nil, nil); err == nil {
		t.Error("expected error for short matrix")
	}
	if err := RasterizeMesh(depth, viewProj, nil, []uint32{0, 1}); err == nil {
		t.Error("expected error for non-triangle index count")
	}
	positions, _ := quadAt(5, 1)
	if err := RasterizeMesh(depth, viewProj, positions, []uint32{0, 1, 99}); err == nil {
		t.Error("expected error for out-of-range index")
	}
}

func TestRasterizeFullscreenQuadDepth(t *testing.T) {
	const near, far = 0.5, 100.0
	const dist = 10.0
	depth, _ := cull.NewDepthBuffer(16, 16)
	viewProj := testViewProj(near, far)

	// With fovY = 90° and aspect 1, the view volume at distance 10 spans
	// ±10; a quad twice that size covers every pixel.
	positions, indices := quadAt(dist, 25)
	if err := RasterizeMesh(depth, viewProj, positions, indices); err != nil {
		t.Fatalf("RasterizeMesh: %v", err)
	}

	for y := 0; y < depth.Height(); y++ {
		for x := 0; x < depth.Width(); x++ {
			d := depth.At(x, y)
			if d >= cull.DepthClearValue {
				t.Fatalf("pixel (%d, %d) not covered", x, y)
			}
			linear := cull.LinearizeDepth(d, near, far)
			if math.Abs(float64(linear-dist)) > 0.01 {
				t.Fatalf("pixel (%d, %d) linear depth = %f, want %f", x, y, linear, dist)
			}
		}
	}
}

func TestRasterizeNearerTriangleWins(t *testing.T) {
	const near, far = 0.5, 100.0
	depth, _ := cull.NewDepthBuffer(16, 16)
	viewProj := testViewProj(near, far)

	farPositions, indices := quadAt(20, 50)
	if err := RasterizeMesh(depth, viewProj, farPositions, indices); err != nil {
		t.Fatalf("far quad: %v", err)
	}
	farDepth := depth.At(8, 8)

	nearPositions, _ := quadAt(5, 15)
	if err := RasterizeMesh(depth, viewProj, nearPositions, indices); err != nil {
		t.Fatalf("near quad: %v", err)
	}
	if got := depth.At(8, 8); got >= farDepth {
		t.Errorf("nearer quad did not win: depth %f, far quad was %f", got, farDepth)
	}

	// Drawing the far quad again must not push depth back out.
	if err := RasterizeMesh(depth, viewProj, farPositions, indices); err != nil {
		t.Fatalf("far quad redraw: %v", err)
	}
	nearLinear := cull.LinearizeDepth(depth.At(8, 8), near, far)
	if math.Abs(float64(nearLinear-5)) > 0.01 {
		t.Errorf("redraw overwrote nearer depth: linear = %f, want 5", nearLinear)
	}
}

func TestRasterizeRejectsBehindCamera(t *testing.T) {
	depth, _ := cull.NewDepthBuffer(8, 8)
	viewProj := testViewProj(0.5, 100)

	// Quad at +Z sits behind the eye; every vertex projects with w <= 0.
	positions := [][3]float32{
		{-5, -5, 10}, {5, -5, 10}, {5, 5, 10}, {-5, 5, 10},
	}
	indices := []uint32{0, 1, 2, 0, 2, 3}
	if err := RasterizeMesh(depth, viewProj, positions, indices); err != nil {
		t.Fatalf("RasterizeMesh: %v", err)
	}
	for _, d := range depth.Raw() {
		if d != cull.DepthClearValue {
			t.Fatal("behind-camera geometry wrote depth")
		}
	}
}

func TestRasterizeOffscreenTriangleClamped(t *testing.T) {
	depth, _ := cull.NewDepthBuffer(8, 8)
	viewProj := testViewProj(0.5, 100)

	// Entirely outside the right edge of the viewport.
	positions := [][3]float32{
		{100, -1, -10}, {102, -1, -10}, {101, 1, -10},
	}
	if err := RasterizeMesh(depth, viewProj, positions, []uint32{0, 1, 2}); err != nil {
		t.Fatalf("RasterizeMesh: %v", err)
	}
	for _, d := range depth.Raw() {
		if d != cull.DepthClearValue {
			t.Fatal("off-screen geometry wrote depth")
		}
	}
}

func TestRasterizeDegenerateTriangleSkipped(t *testing.T) {
	depth, _ := cull.NewDepthBuffer(8, 8)
	viewProj := testViewProj(0.5, 100)

	// Collinear vertices produce zero area.
	positions := [][3]float32{
		{-1, 0, -5}, {0, 0, -5}, {1, 0, -5},
	}
	if err := RasterizeMesh(depth, viewProj, positions, []uint32{0, 1, 2}); err != nil {
		t.Fatalf("RasterizeMesh: %v", err)
	}
	covered := 0
	for _, d := range depth.Raw() {
		if d != cull.DepthClearValue {
			covered++
		}
	}
	// A zero-height triangle may touch at most a single row of pixels, and a
	// truly degenerate one none at all.
	if covered > depth.Width() {
		t.Errorf("degenerate triangle covered %d pixels", covered)
	}
}
