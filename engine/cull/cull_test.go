package cull

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/Carmen-Shannon/lumen-go/common"
	"github.com/Carmen-Shannon/lumen-go/engine/light"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// testScene bundles the camera state and buffers most cull tests need. The
// camera sits at the origin looking down -Z, which makes world space and view
// space coincide and keeps expected values easy to reason about.
type testScene struct {
	grid  *TileFrustumGrid
	depth *DepthBuffer

	view     [16]float32
	proj     [16]float32
	invProj  [16]float32
	viewProj [16]float32

	near, far  float32
	generation uint64
}

func newTestScene(t *testing.T, width, height, tileSize int) *testScene {
	t.Helper()
	s := &testScene{near: 0.1, far: 100, generation: 7}
	common.Perspective(s.proj[:], math.Pi/2, float32(width)/float32(height), s.near, s.far)
	if !common.Invert4(s.invProj[:], s.proj[:]) {
		t.Fatal("projection must be invertible")
	}
	common.LookAt(s.view[:], 0, 0, 0, 0, 0, -1, 0, 1, 0)
	common.Mul4(s.viewProj[:], s.proj[:], s.view[:])

	grid, err := BuildTileFrustumGrid(s.invProj[:], width, height, tileSize, s.generation)
	if err != nil {
		t.Fatalf("BuildTileFrustumGrid: %v", err)
	}
	s.grid = grid

	depth, err := NewDepthBuffer(width, height)
	if err != nil {
		t.Fatalf("NewDepthBuffer: %v", err)
	}
	s.depth = depth
	return s
}

func (s *testScene) params() CullParams {
	return CullParams{
		View:                 s.view,
		ViewProj:             s.viewProj,
		Near:                 s.near,
		Far:                  s.far,
		ProjectionGeneration: s.generation,
	}
}

// depthFromDistance converts a positive view-space distance back to the
// non-linear [0, 1] value a Depth32Float target would hold, the inverse of
// LinearizeDepth.
func depthFromDistance(dist, near, far float32) float32 {
	return far * (dist - near) / (dist * (far - near))
}

// fillNoiseDepth writes a smooth synthetic depth field with view distances in
// [minDist, maxDist].
func fillNoiseDepth(depth *DepthBuffer, near, far, minDist, maxDist float32, seed int64) {
	noise := opensimplex.New32(seed)
	for y := 0; y < depth.Height(); y++ {
		for x := 0; x < depth.Width(); x++ {
			n := noise.Eval2(float32(x)*0.05, float32(y)*0.05) // [-1, 1]
			dist := minDist + (n*0.5+0.5)*(maxDist-minDist)
			depth.Set(x, y, depthFromDistance(dist, near, far))
		}
	}
}

func TestTileCounts(t *testing.T) {
	cases := []struct {
		w, h, tile int
		wantX      uint32
		wantY      uint32
	}{
		{32, 32, 16, 2, 2},
		{1280, 720, 16, 80, 45},
		{33, 17, 16, 3, 2}, // partial tiles round up
		{16, 16, 16, 1, 1},
	}
	for _, tc := range cases {
		gotX, gotY := TileCounts(tc.w, tc.h, tc.tile)
		if gotX != tc.wantX || gotY != tc.wantY {
			t.Errorf("TileCounts(%d, %d, %d) = (%d, %d), want (%d, %d)",
				tc.w, tc.h, tc.tile, gotX, gotY, tc.wantX, tc.wantY)
		}
	}
}

func TestLinearizeDepthEndpoints(t *testing.T) {
	near, far := float32(0.5), float32(200)
	if got := LinearizeDepth(0, near, far); math.Abs(float64(got-near)) > 1e-4 {
		t.Errorf("LinearizeDepth(0) = %v, want %v", got, near)
	}
	if got := LinearizeDepth(1, near, far); math.Abs(float64(got-far)) > 1e-2 {
		t.Errorf("LinearizeDepth(1) = %v, want %v", got, far)
	}
	// Round trip through depthFromDistance.
	for _, dist := range []float32{1, 10, 50, 150} {
		d := depthFromDistance(dist, near, far)
		if got := LinearizeDepth(d, near, far); math.Abs(float64(got-dist)) > 1e-2 {
			t.Errorf("round trip at %v gave %v", dist, got)
		}
	}
}

func TestCullZeroLights(t *testing.T) {
	s := newTestScene(t, 32, 32, 16)
	c := NewCuller()

	res, err := c.Cull(s.grid, s.depth, nil, s.params())
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}
	if res.Dropped != 0 {
		t.Errorf("dropped = %d, want 0", res.Dropped)
	}
	for i := range res.Tables.Grid {
		if res.Tables.Grid[i].Count != 0 {
			t.Errorf("tile %d has %d lights, want 0", i, res.Tables.Grid[i].Count)
		}
	}
	if len(res.Directional) != 0 {
		t.Errorf("directional list = %v, want empty", res.Directional)
	}
}

func TestCullDirectionalOnly(t *testing.T) {
	s := newTestScene(t, 32, 32, 16)
	c := NewCuller()

	lights := []light.Light{
		light.NewLight(light.LightTypeDirectional, light.WithDirection(0, -1, 0)),
		light.NewLight(light.LightTypeDirectional, light.WithDirection(1, -1, 0)),
		light.NewLight(light.LightTypeDirectional, light.WithEnabled(false)),
	}

	res, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}
	if want := []uint32{0, 1}; len(res.Directional) != 2 || res.Directional[0] != want[0] || res.Directional[1] != want[1] {
		t.Errorf("directional = %v, want %v", res.Directional, want)
	}
	// Directional lights never enter the tile grid.
	if n := res.Tables.Len(); n != 0 {
		t.Errorf("index list has %d entries, want 0", n)
	}
}

func TestCullDegenerateTiles(t *testing.T) {
	// Nothing drawn: every pixel holds the clear value, so each tile's depth
	// bounds collapse to [far, far] and the pass completes with valid output.
	s := newTestScene(t, 32, 32, 16)
	c := NewCuller()

	lights := []light.Light{
		light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, -10), light.WithRange(5)),
	}

	res, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}
	for i, bounds := range res.Tables.DepthBounds {
		if math.Abs(float64(bounds[0]-s.far)) > 0.5 || math.Abs(float64(bounds[1]-s.far)) > 0.5 {
			t.Fatalf("tile %d depth bounds = %v, want [far, far]", i, bounds)
		}
		if bounds[0] > bounds[1] {
			t.Fatalf("tile %d has min > max: %v", i, bounds)
		}
	}
}

func TestCullOutOfFrustumLight(t *testing.T) {
	s := newTestScene(t, 32, 32, 16)
	fillNoiseDepth(s.depth, s.near, s.far, 5, 50, 1)
	c := NewCuller()

	lights := []light.Light{
		light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, 50), light.WithRange(5)),   // behind the camera
		light.NewLight(light.LightTypePoint, light.WithPosition(500, 0, -20), light.WithRange(5)), // far off screen
	}

	res, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}
	for i := range res.Tables.Grid {
		if res.Tables.Grid[i].Count != 0 {
			t.Errorf("tile %d references an out-of-frustum light", i)
		}
	}

	// Same result with the coarse pre-rejection disabled.
	p := s.params()
	p.ViewProj = [16]float32{}
	res, err = c.Cull(s.grid, s.depth, lights, p)
	if err != nil {
		t.Fatalf("Cull without coarse rejection: %v", err)
	}
	for i := range res.Tables.Grid {
		if res.Tables.Grid[i].Count != 0 {
			t.Errorf("tile %d references an out-of-frustum light (no coarse pass)", i)
		}
	}
}

func TestCullDisjointRanges(t *testing.T) {
	s := newTestScene(t, 64, 64, 16)
	fillNoiseDepth(s.depth, s.near, s.far, 5, 60, 2)
	c := NewCuller()

	lights := scatterPointLights(24, 3)
	res, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}

	type span struct{ start, end uint32 }
	spans := make([]span, 0, len(res.Tables.Grid))
	for _, cell := range res.Tables.Grid {
		if cell.Count == 0 {
			continue
		}
		if cell.Offset+cell.Count > res.Tables.Capacity() {
			t.Fatalf("cell range [%d, %d) exceeds capacity %d", cell.Offset, cell.Offset+cell.Count, res.Tables.Capacity())
		}
		spans = append(spans, span{cell.Offset, cell.Offset + cell.Count})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	for i := 1; i < len(spans); i++ {
		if spans[i].start < spans[i-1].end {
			t.Fatalf("tile ranges overlap: [%d,%d) and [%d,%d)",
				spans[i-1].start, spans[i-1].end, spans[i].start, spans[i].end)
		}
	}
}

func TestCullIdempotentAcrossReruns(t *testing.T) {
	s := newTestScene(t, 64, 64, 16)
	fillNoiseDepth(s.depth, s.near, s.far, 5, 60, 3)
	c := NewCuller()

	lights := scatterPointLights(24, 4)

	first, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("first Cull: %v", err)
	}
	firstSets := tileSets(first.Tables)

	second, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("second Cull: %v", err)
	}
	secondSets := tileSets(second.Tables)

	if len(firstSets) != len(secondSets) {
		t.Fatalf("tile count changed between runs: %d vs %d", len(firstSets), len(secondSets))
	}
	for i := range firstSets {
		if len(firstSets[i]) != len(secondSets[i]) {
			t.Fatalf("tile %d set size changed: %v vs %v", i, firstSets[i], secondSets[i])
		}
		for j := range firstSets[i] {
			if firstSets[i][j] != secondSets[i][j] {
				t.Fatalf("tile %d set changed: %v vs %v", i, firstSets[i], secondSets[i])
			}
		}
	}
}

func TestCullConservativeAgainstBruteForce(t *testing.T) {
	s := newTestScene(t, 64, 64, 16)
	fillNoiseDepth(s.depth, s.near, s.far, 5, 60, 5)
	c := NewCuller()

	lights := scatterPointLights(32, 6)
	res, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}
	sets := tileSets(res.Tables)

	// Brute force: for every pixel, reconstruct its view-space surface point
	// and check every light against it. Any light that touches at least one
	// pixel of a tile must appear in that tile's list (no false negatives;
	// extra entries are allowed).
	for py := 0; py < s.depth.Height(); py++ {
		for px := 0; px < s.depth.Width(); px++ {
			d := s.depth.At(px, py)
			ndcX := 2.0*(float32(px)+0.5)/float32(s.depth.Width()) - 1.0
			ndcY := 1.0 - 2.0*(float32(py)+0.5)/float32(s.depth.Height())
			p := common.UnprojectNDC(s.invProj[:], ndcX, ndcY, d)

			tileIdx := TileIndex(px/s.grid.TileSize, py/s.grid.TileSize, s.grid.TileCountX)
			for li, l := range lights {
				dx := l.Position()[0] - p[0]
				dy := l.Position()[1] - p[1]
				dz := l.Position()[2] - p[2]
				if dx*dx+dy*dy+dz*dz > l.Range()*l.Range() {
					continue
				}
				if !containsIndex(sets[tileIdx], uint32(li)) {
					t.Fatalf("light %d affects pixel (%d,%d) but is missing from tile %d (set %v)",
						li, px, py, tileIdx, sets[tileIdx])
				}
			}
		}
	}
}

func TestCullPerTileCapacityClamp(t *testing.T) {
	s := newTestScene(t, 32, 32, 16)
	fillNoiseDepth(s.depth, s.near, s.far, 5, 30, 7)
	c := NewCuller(WithMaxLightsPerTile(10))

	// 15 broad lights stacked near the view axis so each one covers every tile.
	lights := make([]light.Light, 15)
	for i := range lights {
		lights[i] = light.NewLight(light.LightTypePoint,
			light.WithPosition(float32(i)*0.1, 0, -15),
			light.WithRange(80),
		)
	}

	res, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}

	tileCount := s.grid.TileCount()
	for i, cell := range res.Tables.Grid {
		if cell.Count != 10 {
			t.Errorf("tile %d kept %d lights, want exactly 10", i, cell.Count)
		}
		for _, idx := range res.Tables.TileLights(i) {
			if idx >= uint32(len(lights)) {
				t.Fatalf("tile %d holds corrupt light index %d", i, idx)
			}
		}
	}
	if want := uint32(tileCount * 5); res.Dropped != want {
		t.Errorf("dropped = %d, want %d", res.Dropped, want)
	}
}

func TestCullGlobalCapacityClamp(t *testing.T) {
	s := newTestScene(t, 32, 32, 16) // 4 tiles
	fillNoiseDepth(s.depth, s.near, s.far, 5, 30, 8)
	// Room for only 6 indices total while up to 4 tiles × 3 survivors want 12.
	c := NewCuller(WithMaxLightIndices(6))

	lights := make([]light.Light, 3)
	for i := range lights {
		lights[i] = light.NewLight(light.LightTypePoint,
			light.WithPosition(0, 0, -15),
			light.WithRange(80),
		)
	}

	res, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}
	if res.Tables.Len() > 6 {
		t.Errorf("index list used %d entries, capacity 6", res.Tables.Len())
	}
	if res.Dropped == 0 {
		t.Error("expected dropped survivors with an undersized index list")
	}
	total := uint32(0)
	for i, cell := range res.Tables.Grid {
		if cell.Offset+cell.Count > 6 {
			t.Fatalf("tile %d range [%d, %d) exceeds capacity", i, cell.Offset, cell.Offset+cell.Count)
		}
		total += cell.Count
	}
	if total > 6 {
		t.Errorf("grid references %d entries, capacity 6", total)
	}
}

func TestCullSingleTileScenario(t *testing.T) {
	// 32×32 screen, 16 px tiles: a 2×2 grid. A small light in the upper-left
	// quadrant must land in tile 0 and nowhere else.
	s := newTestScene(t, 32, 32, 16)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			s.depth.Set(x, y, depthFromDistance(10, s.near, s.far))
		}
	}
	c := NewCuller()

	lights := []light.Light{
		light.NewLight(light.LightTypePoint, light.WithPosition(-5, 5, -10), light.WithRange(1)),
	}

	res, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}
	if got := res.Tables.Grid[0].Count; got != 1 {
		t.Errorf("tile 0 count = %d, want 1", got)
	}
	if got := res.Tables.TileLights(0); len(got) != 1 || got[0] != 0 {
		t.Errorf("tile 0 lights = %v, want [0]", got)
	}
	for i := 1; i < 4; i++ {
		if got := res.Tables.Grid[i].Count; got != 0 {
			t.Errorf("tile %d count = %d, want 0", i, got)
		}
	}
}

func TestCullStaleFrustumGrid(t *testing.T) {
	s := newTestScene(t, 32, 32, 16)
	c := NewCuller()

	p := s.params()
	p.ProjectionGeneration = s.generation + 1
	_, err := c.Cull(s.grid, s.depth, nil, p)
	if err == nil {
		t.Fatal("expected stale grid error")
	}
	if !errors.Is(err, ErrStaleFrustumGrid) {
		t.Fatalf("error = %v, want ErrStaleFrustumGrid", err)
	}
}

func TestCullInputValidation(t *testing.T) {
	s := newTestScene(t, 32, 32, 16)
	c := NewCuller()

	if _, err := c.Cull(nil, s.depth, nil, s.params()); err == nil {
		t.Error("expected error for nil grid")
	}
	if _, err := c.Cull(s.grid, nil, nil, s.params()); err == nil {
		t.Error("expected error for nil depth buffer")
	}

	smaller, _ := NewDepthBuffer(16, 16)
	if _, err := c.Cull(s.grid, smaller, nil, s.params()); err == nil {
		t.Error("expected error for mismatched depth dimensions")
	}

	p := s.params()
	p.Far = p.Near
	if _, err := c.Cull(s.grid, s.depth, nil, p); err == nil {
		t.Error("expected error for degenerate clip planes")
	}
}

func TestCullDepthTightening(t *testing.T) {
	// Geometry at 10 units everywhere; a light far behind it (but inside the
	// camera frustum) must be rejected by the tile depth bounds.
	s := newTestScene(t, 32, 32, 16)
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			s.depth.Set(x, y, depthFromDistance(10, s.near, s.far))
		}
	}
	c := NewCuller()

	lights := []light.Light{
		light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, -80), light.WithRange(5)),
		light.NewLight(light.LightTypePoint, light.WithPosition(0, 0, -11), light.WithRange(5)),
	}

	res, err := c.Cull(s.grid, s.depth, lights, s.params())
	if err != nil {
		t.Fatalf("Cull: %v", err)
	}
	sets := tileSets(res.Tables)
	for i, set := range sets {
		if containsIndex(set, 0) {
			t.Errorf("tile %d kept the occluded light at z=-80", i)
		}
	}
	// The near light overlaps the geometry depth and must survive somewhere.
	found := false
	for _, set := range sets {
		if containsIndex(set, 1) {
			found = true
			break
		}
	}
	if !found {
		t.Error("light overlapping the geometry depth band was culled everywhere")
	}
}

// scatterPointLights deterministically spreads point lights through the view
// volume in front of the camera.
func scatterPointLights(n int, seed int64) []light.Light {
	noise := opensimplex.New32(seed)
	lights := make([]light.Light, n)
	for i := range lights {
		fx := noise.Eval2(float32(i)*1.7, 0.3)
		fy := noise.Eval2(float32(i)*1.7, 7.9)
		fz := noise.Eval2(float32(i)*1.7, 13.1)
		lights[i] = light.NewLight(light.LightTypePoint,
			light.WithPosition(fx*30, fy*30, -10+fz*-25),
			light.WithRange(4+float32(i%7)),
		)
	}
	return lights
}

// tileSets snapshots each tile's index set, sorted, so results can be
// compared across runs regardless of in-tile ordering.
func tileSets(tables *LightTables) [][]uint32 {
	sets := make([][]uint32, len(tables.Grid))
	for i := range tables.Grid {
		src := tables.TileLights(i)
		set := make([]uint32, len(src))
		copy(set, src)
		sort.Slice(set, func(a, b int) bool { return set[a] < set[b] })
		sets[i] = set
	}
	return sets
}

func containsIndex(set []uint32, idx uint32) bool {
	for _, v := range set {
		if v == idx {
			return true
		}
	}
	return false
}

func BenchmarkCull(b *testing.B) {
	near, far := float32(0.1), float32(100)
	var proj, invProj, view, viewProj [16]float32
	common.Perspective(proj[:], math.Pi/2, 16.0/9.0, near, far)
	common.Invert4(invProj[:], proj[:])
	common.LookAt(view[:], 0, 0, 0, 0, 0, -1, 0, 1, 0)
	common.Mul4(viewProj[:], proj[:], view[:])

	grid, err := BuildTileFrustumGrid(invProj[:], 1280, 720, DefaultTileSize, 0)
	if err != nil {
		b.Fatal(err)
	}
	depth, err := NewDepthBuffer(1280, 720)
	if err != nil {
		b.Fatal(err)
	}
	fillNoiseDepth(depth, near, far, 5, 80, 42)

	lights := scatterPointLights(256, 99)
	c := NewCuller()
	params := CullParams{View: view, ViewProj: viewProj, Near: near, Far: far}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Cull(grid, depth, lights, params); err != nil {
			b.Fatal(err)
		}
	}
}
