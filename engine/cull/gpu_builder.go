package cull

// GPUCullerBuilderOption is a functional option used to configure a GPUCuller during construction.
type GPUCullerBuilderOption func(*gpuCullerImpl)

// WithGPUMaxLights sets the capacity of the GPU light storage buffer.
//
// Parameters:
//   - maxLights: the maximum number of light records uploaded per frame
//
// Returns:
//   - GPUCullerBuilderOption: a function that sets the light buffer capacity
func WithGPUMaxLights(maxLights int) GPUCullerBuilderOption {
	return func(c *gpuCullerImpl) {
		c.maxLights = maxLights
	}
}

// WithGPUMaxLightsPerTile sets the per-tile survivor budget written to the
// tile uniforms. The compute shader's group-local list is sized at compile
// time, so values above that size are clamped by the shader.
//
// Parameters:
//   - maxLightsPerTile: the per-tile cap
//
// Returns:
//   - GPUCullerBuilderOption: a function that sets the per-tile cap
func WithGPUMaxLightsPerTile(maxLightsPerTile int) GPUCullerBuilderOption {
	return func(c *gpuCullerImpl) {
		c.maxLightsPerTile = maxLightsPerTile
	}
}

// WithGPUMaxLightIndices sets the capacity of the shared light index list buffer.
//
// Parameters:
//   - maxLightIndices: the global index list capacity
//
// Returns:
//   - GPUCullerBuilderOption: a function that sets the index list capacity
func WithGPUMaxLightIndices(maxLightIndices int) GPUCullerBuilderOption {
	return func(c *gpuCullerImpl) {
		c.maxLightIndices = maxLightIndices
	}
}
