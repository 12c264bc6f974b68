package cull

import (
	"sync"
	"testing"
)

func TestNewLightTablesValidation(t *testing.T) {
	if _, err := NewLightTables(0, 16); err == nil {
		t.Error("expected error for zero tile count")
	}
	if _, err := NewLightTables(4, 0); err == nil {
		t.Error("expected error for zero capacity")
	}
	tables, err := NewLightTables(4, 16)
	if err != nil {
		t.Fatalf("NewLightTables: %v", err)
	}
	if tables.Capacity() != 16 {
		t.Errorf("capacity = %d, want 16", tables.Capacity())
	}
}

func TestReserveClampsAtCapacity(t *testing.T) {
	tables, _ := NewLightTables(4, 10)

	start, granted := tables.reserve(6)
	if start != 0 || granted != 6 {
		t.Fatalf("first reserve = (%d, %d), want (0, 6)", start, granted)
	}
	// Only 4 slots remain; ask for 6.
	start, granted = tables.reserve(6)
	if start != 6 || granted != 4 {
		t.Fatalf("clamped reserve = (%d, %d), want (6, 4)", start, granted)
	}
	if tables.Dropped() != 2 {
		t.Errorf("dropped = %d, want 2", tables.Dropped())
	}
	// List exhausted; further requests grant nothing.
	_, granted = tables.reserve(3)
	if granted != 0 {
		t.Errorf("exhausted reserve granted %d, want 0", granted)
	}
	if tables.Dropped() != 5 {
		t.Errorf("dropped = %d, want 5", tables.Dropped())
	}
	if tables.Len() != 10 {
		t.Errorf("Len = %d, want 10", tables.Len())
	}
}

func TestReserveZero(t *testing.T) {
	tables, _ := NewLightTables(1, 4)
	if _, granted := tables.reserve(0); granted != 0 {
		t.Errorf("reserve(0) granted %d", granted)
	}
	if tables.Len() != 0 {
		t.Errorf("Len = %d after zero reserve", tables.Len())
	}
}

func TestReserveConcurrentBlocksAreDisjoint(t *testing.T) {
	const workers = 16
	const perWorker = 8
	tables, _ := NewLightTables(workers, workers*perWorker)

	starts := make([]uint32, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(w int) {
			defer wg.Done()
			start, granted := tables.reserve(perWorker)
			if granted != perWorker {
				t.Errorf("worker %d granted %d, want %d", w, granted, perWorker)
			}
			starts[w] = start
		}(w)
	}
	wg.Wait()

	seen := map[uint32]bool{}
	for _, s := range starts {
		if seen[s] {
			t.Fatalf("duplicate block start %d", s)
		}
		if s%perWorker != 0 {
			t.Fatalf("block start %d is not a multiple of %d", s, perWorker)
		}
		seen[s] = true
	}
}

func TestResetClearsState(t *testing.T) {
	tables, _ := NewLightTables(2, 8)
	start, granted := tables.reserve(8)
	tables.Grid[0] = LightGridCell{Offset: start, Count: granted}
	tables.DepthBounds[0] = [2]float32{1, 2}
	tables.reserve(4) // overflow

	tables.Reset()
	if tables.Len() != 0 || tables.Dropped() != 0 {
		t.Errorf("after Reset: Len=%d Dropped=%d, want 0/0", tables.Len(), tables.Dropped())
	}
	if tables.Grid[0] != (LightGridCell{}) {
		t.Errorf("grid cell not cleared: %+v", tables.Grid[0])
	}
	if tables.DepthBounds[0] != ([2]float32{}) {
		t.Errorf("depth bounds not cleared: %v", tables.DepthBounds[0])
	}
}

func TestFrameBuffersFlip(t *testing.T) {
	frames, err := NewFrameBuffers(4, 16)
	if err != nil {
		t.Fatalf("NewFrameBuffers: %v", err)
	}
	front := frames.Front()
	back := frames.Back()
	if front == back {
		t.Fatal("front and back must be distinct")
	}
	frames.Flip()
	if frames.Front() != back || frames.Back() != front {
		t.Fatal("Flip must swap the two table sets")
	}
}

func TestBarrierPhases(t *testing.T) {
	const size = 32
	const phases = 50
	bar := newBarrier(size)

	// counter[p] counts arrivals for phase p; if the barrier ever releases a
	// worker early, a phase will be observed with a partial count.
	counts := make([]int64, phases)
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(size)
	for w := 0; w < size; w++ {
		go func() {
			defer wg.Done()
			for p := 0; p < phases; p++ {
				mu.Lock()
				counts[p]++
				mu.Unlock()
				bar.wait()
				mu.Lock()
				got := counts[p]
				mu.Unlock()
				if got != size {
					t.Errorf("phase %d released with %d/%d arrivals", p, got, size)
				}
			}
		}()
	}
	wg.Wait()
}
