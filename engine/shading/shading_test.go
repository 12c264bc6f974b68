package shading

import (
	"math"
	"testing"

	"github.com/Carmen-Shannon/lumen-go/common"
	"github.com/Carmen-Shannon/lumen-go/engine/cull"
	"github.com/Carmen-Shannon/lumen-go/engine/light"
)

func almostEqual3(a, b [3]float32, tol float32) bool {
	for i := range a {
		if float32(math.Abs(float64(a[i]-b[i]))) > tol {
			return false
		}
	}
	return true
}

func TestShadeSurfaceAmbientOnly(t *testing.T) {
	s := Surface{
		Position: [3]float32{0, 0, 0},
		Normal:   [3]float32{0, 1, 0},
		Albedo:   [3]float32{1, 0.5, 0.25},
	}
	got := ShadeSurface(s, nil, nil, nil, [3]float32{0.2, 0.2, 0.2})
	want := [3]float32{0.2, 0.1, 0.05}
	if !almostEqual3(got, want, 1e-6) {
		t.Errorf("ambient-only shade = %v, want %v", got, want)
	}
}

func TestShadeSurfaceDirectionalUnconditional(t *testing.T) {
	sun := light.NewLight(light.LightTypeDirectional,
		light.WithDirection(0, -1, 0),
		light.WithColor(1, 1, 1),
		light.WithIntensity(0.5),
	)
	s := Surface{
		Normal: [3]float32{0, 1, 0},
		Albedo: [3]float32{1, 1, 1},
	}

	// The directional index list comes from the cull result, never from a
	// tile's culled list; an empty culled list must not suppress it.
	got := ShadeSurface(s, []light.Light{sun}, nil, []uint32{0}, [3]float32{})
	want := [3]float32{0.5, 0.5, 0.5}
	if !almostEqual3(got, want, 1e-5) {
		t.Errorf("directional shade = %v, want %v", got, want)
	}

	// Surface facing away receives nothing.
	s.Normal = [3]float32{0, -1, 0}
	got = ShadeSurface(s, []light.Light{sun}, nil, []uint32{0}, [3]float32{})
	if !almostEqual3(got, [3]float32{}, 1e-6) {
		t.Errorf("back-facing directional shade = %v, want zero", got)
	}
}

func TestShadeLocalRangeCutoff(t *testing.T) {
	point := light.NewLight(light.LightTypePoint,
		light.WithPosition(0, 5, 0),
		light.WithColor(1, 1, 1),
		light.WithIntensity(2),
		light.WithRange(4),
	)
	s := Surface{
		Position: [3]float32{0, 0, 0},
		Normal:   [3]float32{0, 1, 0},
		Albedo:   [3]float32{1, 1, 1},
	}

	// Distance 5 exceeds range 4: zero contribution.
	got := ShadeSurface(s, []light.Light{point}, []uint32{0}, nil, [3]float32{})
	if !almostEqual3(got, [3]float32{}, 1e-6) {
		t.Errorf("out-of-range light contributed %v", got)
	}

	// Closer than range: positive, and closer is brighter.
	point.SetPosition(0, 3, 0)
	mid := ShadeSurface(s, []light.Light{point}, []uint32{0}, nil, [3]float32{})
	point.SetPosition(0, 1, 0)
	near := ShadeSurface(s, []light.Light{point}, []uint32{0}, nil, [3]float32{})
	if mid[0] <= 0 {
		t.Fatalf("in-range light contributed %v", mid)
	}
	if near[0] <= mid[0] {
		t.Errorf("attenuation not monotonic: near %v, mid %v", near[0], mid[0])
	}
}

func TestShadeSpotConeFalloff(t *testing.T) {
	spot := light.NewLight(light.LightTypeSpot,
		light.WithPosition(0, 5, 0),
		light.WithDirection(0, -1, 0),
		light.WithColor(1, 1, 1),
		light.WithIntensity(1),
		light.WithRange(20),
		light.WithSpotCone(20, 30),
	)

	// Directly on the cone axis: full cone factor.
	onAxis := Surface{
		Position: [3]float32{0, 0, 0},
		Normal:   [3]float32{0, 1, 0},
		Albedo:   [3]float32{1, 1, 1},
	}
	axis := ShadeSurface(onAxis, []light.Light{spot}, []uint32{0}, nil, [3]float32{})
	if axis[0] <= 0 {
		t.Fatalf("on-axis spot contributed %v", axis)
	}

	// Roughly 45° off axis: outside the 30° outer cone, zero.
	offAxis := Surface{
		Position: [3]float32{5, 0, 0},
		Normal:   [3]float32{0, 1, 0},
		Albedo:   [3]float32{1, 1, 1},
	}
	off := ShadeSurface(offAxis, []light.Light{spot}, []uint32{0}, nil, [3]float32{})
	if !almostEqual3(off, [3]float32{}, 1e-6) {
		t.Errorf("outside-cone spot contributed %v", off)
	}
}

func TestTileLightIndicesBounds(t *testing.T) {
	tables, err := cull.NewLightTables(4, 16)
	if err != nil {
		t.Fatalf("NewLightTables: %v", err)
	}
	if got := TileLightIndices(nil, 2, 16, 0, 0); got != nil {
		t.Error("nil tables must return nil")
	}
	if got := TileLightIndices(tables, 2, 16, -1, 0); got != nil {
		t.Error("negative pixel must return nil")
	}
	if got := TileLightIndices(tables, 2, 16, 40, 0); got != nil {
		t.Error("pixel beyond the last tile column must return nil")
	}
	if got := TileLightIndices(tables, 2, 16, 0, 80); got != nil {
		t.Error("pixel beyond the last tile row must return nil")
	}
}

// nonlinearDepth inverts LinearizeDepth for a given view-space distance.
func nonlinearDepth(linear, near, far float32) float32 {
	return far * (linear - near) / (linear * (far - near))
}

func TestShadePixelTileGating(t *testing.T) {
	const (
		width, height = 64, 64
		tileSize      = 16
		near, far     = 0.5, 100.0
		lightDist     = 10.0
	)

	proj := make([]float32, 16)
	invProj := make([]float32, 16)
	common.Perspective(proj, float32(math.Pi/2), 1.0, near, far)
	if !common.Invert4(invProj, proj) {
		t.Fatal("projection not invertible")
	}
	grid, err := cull.BuildTileFrustumGrid(invProj, width, height, tileSize, 1)
	if err != nil {
		t.Fatalf("BuildTileFrustumGrid: %v", err)
	}

	depth, _ := cull.NewDepthBuffer(width, height)
	d := nonlinearDepth(lightDist, near, far)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			depth.Set(x, y, d)
		}
	}

	// View space is world space here (identity view). The light projects into
	// the top-left tile; its 1-unit sphere at distance 10 stays far from the
	// bottom-right corner tile.
	point := light.NewLight(light.LightTypePoint,
		light.WithPosition(-8, 8, -lightDist),
		light.WithColor(1, 1, 1),
		light.WithIntensity(1),
		light.WithRange(1),
	)
	lights := []light.Light{point}

	var view [16]float32
	common.Identity(view[:])
	culler := cull.NewCuller()
	result, err := culler.Cull(grid, depth, lights, cull.CullParams{
		View:                 view,
		Near:                 near,
		Far:                  far,
		ProjectionGeneration: 1,
	})
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}

	surface := Surface{
		Position: [3]float32{-8, 8, -lightDist - 0.5},
		Normal:   [3]float32{0, 0, 1},
		Albedo:   [3]float32{1, 1, 1},
	}
	ambient := [3]float32{0.1, 0.1, 0.1}

	lit := ShadePixel(result, grid, lights, surface, 6, 6, ambient)
	if lit[0] <= ambient[0] {
		t.Errorf("pixel in the light's tile shaded %v, want brighter than ambient", lit)
	}

	// Same surface parameters, but the bottom-right tile's culled list does
	// not contain the light: ambient only.
	unlit := ShadePixel(result, grid, lights, surface, 60, 60, ambient)
	if !almostEqual3(unlit, ambient, 1e-6) {
		t.Errorf("pixel outside the light's tiles shaded %v, want ambient %v", unlit, ambient)
	}
}
