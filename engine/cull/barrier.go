package cull

import "sync"

// barrier is a reusable phase barrier for a fixed-size worker group, the CPU
// analogue of a GPU workgroup barrier. Every worker in the group must call
// wait() before any worker proceeds past it; the barrier then resets for the
// next phase.
type barrier struct {
	mu    sync.Mutex
	cond  *sync.Cond
	size  int
	count int
	phase uint64
}

// newBarrier creates a barrier for a group of the given size.
func newBarrier(size int) *barrier {
	b := &barrier{size: size}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// wait blocks until all workers in the group have called wait for the current
// phase. The last arriving worker releases the group and advances the phase.
func (b *barrier) wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
	if b.count == b.size {
		b.count = 0
		b.phase++
		b.cond.Broadcast()
		return
	}

	phase := b.phase
	for phase == b.phase {
		b.cond.Wait()
	}
}
