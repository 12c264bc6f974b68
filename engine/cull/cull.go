package cull

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/lumen-go/common"
	"github.com/Carmen-Shannon/lumen-go/engine/light"
)

// ErrStaleFrustumGrid is returned when a cull pass is invoked with a tile
// frustum grid built against an older projection than the camera currently
// uses. Culling with stale frusta would silently assign lights to the wrong
// tiles, so the pass refuses to run instead.
var ErrStaleFrustumGrid = errors.New("tile frustum grid generation does not match the current projection")

// CullParams carries the per-frame camera state a cull pass needs.
type CullParams struct {
	// View is the camera view matrix (column-major) used to move light
	// bounding spheres into view space.
	View [16]float32

	// ViewProj, when non-zero, enables a coarse whole-frustum pre-rejection
	// pass: lights outside the full camera frustum are discarded before any
	// per-tile testing. Leave zero to test every light against every tile.
	ViewProj [16]float32

	// Near and Far are the camera clip plane distances used to linearize
	// prepass depth samples.
	Near float32
	Far  float32

	// ProjectionGeneration is the camera's current projection generation.
	// It must match the frustum grid's generation.
	ProjectionGeneration uint64
}

// CullResult is the output of one cull pass.
type CullResult struct {
	// Tables holds the light grid and index list written this pass. The
	// index values refer to positions in the lights slice passed to Cull.
	Tables *LightTables

	// Directional lists the indices of enabled directional lights. These are
	// never tile-culled; shading applies them to every fragment.
	Directional []uint32

	// Dropped is the number of surviving light references discarded because
	// a capacity bound was reached.
	Dropped uint32
}

// Culler runs the tiled light-culling pass on the CPU. Tiles are fanned out
// across a persistent worker pool; within each tile a worker group the size
// of the tile's pixel area cooperates through barriers exactly as a GPU
// workgroup would: a parallel min/max depth reduction, a strided light scan,
// then a single bulk reservation in the shared index list.
type Culler interface {
	// Cull runs one culling pass and returns the per-tile light tables.
	//
	// The returned tables come from an internal double buffer: results from
	// the previous pass stay valid while the next pass runs, so shading for
	// frame N can read while frame N+1 culls.
	//
	// Parameters:
	//   - grid: the tile frustum grid for the current screen configuration
	//   - depth: the depth prepass output, matching the grid's dimensions
	//   - lights: the scene lights; disabled lights are ignored
	//   - params: per-frame camera state
	//
	// Returns:
	//   - *CullResult: the culling output
	//   - error: nil, or a configuration error (nil/mismatched inputs, stale grid)
	Cull(grid *TileFrustumGrid, depth *DepthBuffer, lights []light.Light, params CullParams) (*CullResult, error)

	// MaxLightsPerTile returns the per-tile survivor budget.
	//
	// Returns:
	//   - int: the per-tile cap
	MaxLightsPerTile() int

	// MaxLightIndices returns the shared index list capacity.
	//
	// Returns:
	//   - int: the global capacity
	MaxLightIndices() int
}

type cullerImpl struct {
	mu *sync.Mutex

	maxLightsPerTile int
	maxLightIndices  int

	// cullPool manages a bounded set of reusable goroutines that each drive
	// one tile's worker group. Workers persist across frames, avoiding
	// per-frame goroutine spawn/teardown overhead.
	cullPool    worker.DynamicWorkerPool
	cullWorkers int
	queueSize   int

	frames *FrameBuffers
}

var _ Culler = &cullerImpl{}

// cullLight is the view-space bounding sphere of one cullable light, tagged
// with its index in the caller's light slice.
type cullLight struct {
	index  uint32
	center [3]float32
	radius float32
}

// NewCuller creates a Culler with default capacities and a worker pool sized
// to the machine.
//
// Parameters:
//   - options: functional options to configure the culler
//
// Returns:
//   - Culler: the newly created culler
func NewCuller(options ...CullerBuilderOption) Culler {
	c := &cullerImpl{
		mu:               &sync.Mutex{},
		maxLightsPerTile: DefaultMaxLightsPerTile,
		maxLightIndices:  DefaultMaxLightIndices,
		cullWorkers:      max(runtime.NumCPU()-1, 1),
		queueSize:        256,
	}
	for _, option := range options {
		option(c)
	}
	if c.maxLightsPerTile <= 0 {
		panic("cull: NewCuller requires a positive per-tile light budget")
	}
	if c.maxLightIndices <= 0 {
		panic("cull: NewCuller requires a positive light index capacity")
	}

	// Initialize the pool after options so WithWorkers can override the default.
	c.cullPool = worker.NewDynamicWorkerPool(c.cullWorkers, c.queueSize, 1*time.Second)
	return c
}

func (c *cullerImpl) MaxLightsPerTile() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxLightsPerTile
}

func (c *cullerImpl) MaxLightIndices() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxLightIndices
}

func (c *cullerImpl) Cull(grid *TileFrustumGrid, depth *DepthBuffer, lights []light.Light, params CullParams) (*CullResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if grid == nil {
		return nil, errors.New("cull: frustum grid must not be nil")
	}
	if depth == nil {
		return nil, errors.New("cull: depth buffer must not be nil")
	}
	if depth.Width() != grid.ScreenWidth || depth.Height() != grid.ScreenHeight {
		return nil, fmt.Errorf("cull: depth buffer is %dx%d but the frustum grid was built for %dx%d",
			depth.Width(), depth.Height(), grid.ScreenWidth, grid.ScreenHeight)
	}
	if grid.Generation != params.ProjectionGeneration {
		return nil, fmt.Errorf("%w (grid generation %d, projection generation %d)",
			ErrStaleFrustumGrid, grid.Generation, params.ProjectionGeneration)
	}
	if params.Far <= params.Near || params.Near <= 0 {
		return nil, fmt.Errorf("cull: invalid clip planes near=%v far=%v", params.Near, params.Far)
	}

	tileCount := grid.TileCount()
	if c.frames == nil || len(c.frames.Back().Grid) != tileCount {
		frames, err := NewFrameBuffers(tileCount, c.maxLightIndices)
		if err != nil {
			return nil, fmt.Errorf("cull: allocating frame buffers: %w", err)
		}
		c.frames = frames
	}

	tables := c.frames.Back()
	tables.Reset()

	cullable, directional := prepareLights(lights, params)

	var wg sync.WaitGroup
	taskID := 0
	for ty := 0; ty < int(grid.TileCountY); ty++ {
		for tx := 0; tx < int(grid.TileCountX); tx++ {
			wg.Add(1)
			tileX, tileY := tx, ty // capture for closure
			id := taskID
			taskID++
			c.cullPool.SubmitTask(worker.Task{
				ID: id,
				Do: func() (any, error) {
					defer wg.Done()
					c.runTileGroup(grid, depth, tables, cullable, tileX, tileY, params.Near, params.Far)
					return nil, nil
				},
			})
		}
	}
	wg.Wait()

	c.frames.Flip()
	return &CullResult{
		Tables:      tables,
		Directional: directional,
		Dropped:     tables.Dropped(),
	}, nil
}

// prepareLights splits the scene lights into view-space cullable spheres and
// the always-applied directional list. Disabled lights are skipped; when a
// coarse frustum is available, spheres outside the whole camera frustum are
// rejected before any tile sees them.
func prepareLights(lights []light.Light, params CullParams) (cullable []cullLight, directional []uint32) {
	var coarse *common.Frustum
	if params.ViewProj != ([16]float32{}) {
		f := common.ExtractFrustumFromMatrix(params.ViewProj[:])
		coarse = &f
	}

	cullable = make([]cullLight, 0, len(lights))
	for i, l := range lights {
		if l == nil || !l.Enabled() {
			continue
		}
		if l.Type() == light.LightTypeDirectional {
			directional = append(directional, uint32(i))
			continue
		}
		if coarse != nil && !coarse.IntersectsSphere(l.Position(), l.Range()) {
			continue
		}
		cullable = append(cullable, cullLight{
			index:  uint32(i),
			center: common.TransformPoint(params.View[:], l.Position()),
			radius: l.Range(),
		})
	}
	return cullable, directional
}

// runTileGroup executes one tile's worker group: tileSize² goroutines
// cooperating through a phase barrier, mirroring a GPU workgroup.
//
// Phase 1 reduces the tile's linearized depth samples to [min, max] with a
// shared-array tree reduction. Phase 2 scans the light list with a stride of
// the group size, accumulating survivors into a group-local list. Phase 3 has
// worker 0 reserve one contiguous block in the shared index list and publish
// the tile's grid cell.
func (c *cullerImpl) runTileGroup(grid *TileFrustumGrid, depth *DepthBuffer, tables *LightTables, cullable []cullLight, tileX, tileY int, near, far float32) {
	tileSize := grid.TileSize
	groupSize := tileSize * tileSize
	tileIdx := TileIndex(tileX, tileY, grid.TileCountX)
	frustum := grid.Tile(tileX, tileY)
	maxPerTile := uint32(c.maxLightsPerTile)

	minShared := make([]float32, groupSize)
	maxShared := make([]float32, groupSize)
	localList := make([]uint32, maxPerTile)
	var localCount atomic.Uint32
	bar := newBarrier(groupSize)

	var wg sync.WaitGroup
	wg.Add(groupSize)
	for w := 0; w < groupSize; w++ {
		go func(w int) {
			defer wg.Done()

			// Each worker owns one pixel of the tile. Off-screen pixels of
			// partial boundary tiles read the clear value and linearize to
			// the far plane.
			px := tileX*tileSize + w%tileSize
			py := tileY*tileSize + w/tileSize
			ld := LinearizeDepth(depth.At(px, py), near, far)
			minShared[w] = ld
			maxShared[w] = ld
			bar.wait()

			// Tree reduction over the shared arrays. Handles group sizes
			// that are not powers of two by pairing with the upper half.
			for n := groupSize; n > 1; {
				half := (n + 1) / 2
				if w < n-half {
					if maxShared[w+half] > maxShared[w] {
						maxShared[w] = maxShared[w+half]
					}
					if minShared[w+half] < minShared[w] {
						minShared[w] = minShared[w+half]
					}
				}
				bar.wait()
				n = half
			}
			minDepth := minShared[0]
			maxDepth := maxShared[0]

			// Strided cooperative scan: worker w tests lights w, w+N, w+2N…
			// Survivors go into the group-local list via a group atomic.
			for li := w; li < len(cullable); li += groupSize {
				cl := &cullable[li]
				if frustum.IntersectsSphere(cl.center, cl.radius, minDepth, maxDepth) {
					slot := localCount.Add(1) - 1
					if slot < maxPerTile {
						localList[slot] = cl.index
					}
				}
			}
			bar.wait()

			// One bulk reservation for the whole tile, then publish.
			if w == 0 {
				survived := localCount.Load()
				kept := survived
				if kept > maxPerTile {
					tables.dropped.Add(survived - maxPerTile)
					kept = maxPerTile
				}
				start, granted := tables.reserve(kept)
				copy(tables.Indices[start:start+granted], localList[:granted])
				tables.Grid[tileIdx] = LightGridCell{Offset: start, Count: granted}
				tables.DepthBounds[tileIdx] = [2]float32{minDepth, maxDepth}
			}
		}(w)
	}
	wg.Wait()
}
