package cull

import (
	"fmt"
	"sync/atomic"
)

// LightGridCell is one tile's entry in the light grid: a contiguous range
// into the shared light index list.
type LightGridCell struct {
	// Offset is the starting position of the tile's range in the index list.
	Offset uint32
	// Count is the number of light indices in the tile's range.
	Count uint32
}

// LightTables holds one frame's culling output: the per-tile light grid and
// the shared light index list it points into. Ranges of distinct tiles never
// overlap; both structures are rebuilt from scratch every frame.
//
// Allocation into the index list goes through reserve, a single atomic
// fetch-and-add per tile, so tiles may be filled concurrently.
type LightTables struct {
	// Grid holds one cell per tile in row-major order.
	Grid []LightGridCell
	// Indices is the shared index list; only the first Len() entries are valid.
	Indices []uint32
	// DepthBounds records each tile's linearized [min, max] view-space depth,
	// kept for diagnostics and tests.
	DepthBounds [][2]float32

	cursor  atomic.Uint32
	dropped atomic.Uint32
}

// NewLightTables allocates tables for the given tile count and index list
// capacity.
//
// Parameters:
//   - tileCount: total number of tiles
//   - capacity: total light index list capacity
//
// Returns:
//   - *LightTables: the allocated tables
//   - error: if tileCount or capacity is not positive
func NewLightTables(tileCount, capacity int) (*LightTables, error) {
	if tileCount <= 0 {
		return nil, fmt.Errorf("tile count must be positive, got %d", tileCount)
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("light index capacity must be positive, got %d", capacity)
	}
	return &LightTables{
		Grid:        make([]LightGridCell, tileCount),
		Indices:     make([]uint32, capacity),
		DepthBounds: make([][2]float32, tileCount),
	}, nil
}

// Reset clears the tables for a new frame. The index list storage is reused;
// only the grid cells, depth bounds, and counters are cleared.
func (t *LightTables) Reset() {
	for i := range t.Grid {
		t.Grid[i] = LightGridCell{}
	}
	for i := range t.DepthBounds {
		t.DepthBounds[i] = [2]float32{}
	}
	t.cursor.Store(0)
	t.dropped.Store(0)
}

// Capacity returns the total index list capacity.
//
// Returns:
//   - uint32: the capacity
func (t *LightTables) Capacity() uint32 {
	return uint32(len(t.Indices))
}

// Len returns the number of index list entries written this frame.
//
// Returns:
//   - uint32: entries used, never exceeding Capacity
func (t *LightTables) Len() uint32 {
	n := t.cursor.Load()
	if capacity := t.Capacity(); n > capacity {
		return capacity
	}
	return n
}

// Dropped returns the number of surviving light references discarded this
// frame because the index list or a tile's per-tile budget was full.
//
// Returns:
//   - uint32: dropped reference count
func (t *LightTables) Dropped() uint32 {
	return t.dropped.Load()
}

// TileLights returns the slice of light indices assigned to a tile. The
// slice aliases the shared index list and is valid until the next Reset.
//
// Parameters:
//   - tileIndex: row-major flat tile index
//
// Returns:
//   - []uint32: the tile's light indices (may be empty)
func (t *LightTables) TileLights(tileIndex int) []uint32 {
	cell := t.Grid[tileIndex]
	return t.Indices[cell.Offset : cell.Offset+cell.Count]
}

// reserve atomically claims a contiguous block of n entries in the index
// list. When the list cannot hold all n entries the block is clamped to what
// remains and the shortfall is added to the dropped counter; the caller
// writes only granted entries. A full list grants zero entries and never
// faults.
func (t *LightTables) reserve(n uint32) (start, granted uint32) {
	if n == 0 {
		return 0, 0
	}
	capacity := t.Capacity()
	end := t.cursor.Add(n)
	start = end - n
	if start >= capacity {
		t.dropped.Add(n)
		return 0, 0
	}
	if end > capacity {
		granted = capacity - start
		t.dropped.Add(n - granted)
		return start, granted
	}
	return start, n
}

// FrameBuffers double-buffers LightTables so shading for frame N can keep
// reading its tables while frame N+1's cull pass writes the other set.
type FrameBuffers struct {
	tables [2]*LightTables
	front  int
}

// NewFrameBuffers allocates two identical LightTables sets.
//
// Parameters:
//   - tileCount: total number of tiles
//   - capacity: light index list capacity per set
//
// Returns:
//   - *FrameBuffers: the double buffer
//   - error: if tileCount or capacity is not positive
func NewFrameBuffers(tileCount, capacity int) (*FrameBuffers, error) {
	a, err := NewLightTables(tileCount, capacity)
	if err != nil {
		return nil, err
	}
	b, err := NewLightTables(tileCount, capacity)
	if err != nil {
		return nil, err
	}
	return &FrameBuffers{tables: [2]*LightTables{a, b}}, nil
}

// Front returns the tables most recently completed by the culler, the set
// shading should read.
//
// Returns:
//   - *LightTables: the front tables
func (f *FrameBuffers) Front() *LightTables {
	return f.tables[f.front]
}

// Back returns the tables the next cull pass should write into.
//
// Returns:
//   - *LightTables: the back tables
func (f *FrameBuffers) Back() *LightTables {
	return f.tables[1-f.front]
}

// Flip swaps front and back after a cull pass completes.
func (f *FrameBuffers) Flip() {
	f.front = 1 - f.front
}
