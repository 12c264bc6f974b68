package cull

// CullerBuilderOption is a functional option for configuring a culler.
// Use the With* functions to create options.
type CullerBuilderOption func(c *cullerImpl)

// WithMaxLightsPerTile sets the per-tile survivor budget. Lights surviving a
// tile's test beyond this bound are dropped and counted.
//
// Parameters:
//   - maxLightsPerTile: the per-tile cap (must be positive)
//
// Returns:
//   - CullerBuilderOption: option function to apply
func WithMaxLightsPerTile(maxLightsPerTile int) CullerBuilderOption {
	return func(c *cullerImpl) {
		c.maxLightsPerTile = maxLightsPerTile
	}
}

// WithMaxLightIndices sets the total capacity of the shared light index list.
//
// Parameters:
//   - maxLightIndices: the capacity (must be positive)
//
// Returns:
//   - CullerBuilderOption: option function to apply
func WithMaxLightIndices(maxLightIndices int) CullerBuilderOption {
	return func(c *cullerImpl) {
		c.maxLightIndices = maxLightIndices
	}
}

// WithWorkers sets the size of the tile worker pool.
//
// Parameters:
//   - workers: maximum concurrent tile tasks (values < 1 are clamped to 1)
//
// Returns:
//   - CullerBuilderOption: option function to apply
func WithWorkers(workers int) CullerBuilderOption {
	return func(c *cullerImpl) {
		c.cullWorkers = max(workers, 1)
	}
}

// WithQueueSize sets the pending tile task queue depth.
//
// Parameters:
//   - queueSize: queue depth (values < 1 are clamped to 1)
//
// Returns:
//   - CullerBuilderOption: option function to apply
func WithQueueSize(queueSize int) CullerBuilderOption {
	return func(c *cullerImpl) {
		c.queueSize = max(queueSize, 1)
	}
}
