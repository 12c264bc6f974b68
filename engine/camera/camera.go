package camera

import (
	"math"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/lumen-go/common"
	"github.com/Carmen-Shannon/lumen-go/engine/renderer/bind_group_provider"
)

// cameraCount is an atomic counter used to generate unique bind group provider names for each camera instance.
var cameraCount atomic.Uint64

type cameraImpl struct {
	mu *sync.Mutex

	position [3]float32
	target   [3]float32
	up       [3]float32

	fov    float32
	aspect float32
	near   float32
	far    float32

	// projectionGeneration increments whenever fov, aspect, near or far
	// change. Tile frustum grids record the generation they were built
	// against so stale grids can be detected before culling.
	projectionGeneration uint64

	viewMatrix              [16]float32
	projectionMatrix        [16]float32
	viewProjectionMatrix    [16]float32
	inverseProjectionMatrix [16]float32

	bindGroupProvider bind_group_provider.BindGroupProvider
}

// Camera defines the interface for the camera system.
// The camera holds perspective settings plus position/target and recomputes
// its view/projection matrices whenever either changes.
type Camera interface {
	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - x, y, z: position components
	Position() (x, y, z float32)

	// Target returns the world-space point the camera looks at.
	//
	// Returns:
	//   - x, y, z: target components
	Target() (x, y, z float32)

	// Up returns the camera's up vector.
	//
	// Returns:
	//   - x, y, z: up vector components
	Up() (x, y, z float32)

	// Fov returns the field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height).
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// ProjectionGeneration returns a counter that increments whenever the
	// projection parameters change. Consumers that cache projection-derived
	// data (per-tile frustum grids) compare generations to detect staleness.
	//
	// Returns:
	//   - uint64: the current projection generation
	ProjectionGeneration() uint64

	// ViewMatrix returns the current 4x4 view matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the view matrix
	ViewMatrix() [16]float32

	// ProjectionMatrix returns the current 4x4 projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the projection matrix
	ProjectionMatrix() [16]float32

	// ViewProjectionMatrix returns the current combined view-projection matrix as 16 floats (column-major).
	//
	// Returns:
	//   - [16]float32: the combined view-projection matrix
	ViewProjectionMatrix() [16]float32

	// InverseProjectionMatrix returns the inverse of the current projection matrix
	// as 16 floats (column-major). Used by the light culling pass to reconstruct
	// per-tile view-space frustum planes from screen coordinates.
	//
	// Returns:
	//   - [16]float32: the inverse projection matrix
	InverseProjectionMatrix() [16]float32

	// BindGroupProvider returns the camera's bind group provider for GPU resources.
	// Returns nil if not set.
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the bind group provider or nil
	BindGroupProvider() bind_group_provider.BindGroupProvider

	// SetPosition sets the camera's world-space position and recomputes matrices.
	//
	// Parameters:
	//   - x, y, z: position components
	SetPosition(x, y, z float32)

	// SetTarget sets the point the camera looks at and recomputes matrices.
	//
	// Parameters:
	//   - x, y, z: target components
	SetTarget(x, y, z float32)

	// SetUp sets the camera's up vector and recomputes matrices.
	//
	// Parameters:
	//   - x, y, z: up vector components
	SetUp(x, y, z float32)

	// SetFov sets the field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetAspect sets the aspect ratio (width / height) and recomputes matrices.
	//
	// Parameters:
	//   - aspect: the aspect ratio
	SetAspect(aspect float32)

	// SetNear sets the near clipping plane distance and recomputes matrices.
	//
	// Parameters:
	//   - near: near plane distance
	SetNear(near float32)

	// SetFar sets the far clipping plane distance and recomputes matrices.
	//
	// Parameters:
	//   - far: far plane distance
	SetFar(far float32)

	// SetBindGroupProvider sets the camera's bind group provider.
	//
	// Parameters:
	//   - provider: the bind group provider to set
	SetBindGroupProvider(provider bind_group_provider.BindGroupProvider)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		position: [3]float32{0, 0, 5},
		target:   [3]float32{0, 0, 0},
		up:       [3]float32{0, 1, 0},
		fov:      60.0 * (math.Pi / 180.0), // radians
		aspect:   1.0,
		near:     0.1,
		far:      1000.0,
		bindGroupProvider: bind_group_provider.NewBindGroupProvider(
			"camera_" + strconv.FormatUint(cameraCount.Load(), 10),
		),
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	cameraCount.Add(1)
	return c
}

func (c *cameraImpl) Position() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position[0], c.position[1], c.position[2]
}

func (c *cameraImpl) Target() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target[0], c.target[1], c.target[2]
}

func (c *cameraImpl) Up() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up[0], c.up[1], c.up[2]
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) ProjectionGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionGeneration
}

func (c *cameraImpl) ViewMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) InverseProjectionMatrix() [16]float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjectionMatrix
}

func (c *cameraImpl) SetPosition(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetTarget(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.target = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetUp(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.projectionGeneration++
	c.updateMatrices()
}

func (c *cameraImpl) SetAspect(aspect float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aspect = aspect
	c.projectionGeneration++
	c.updateMatrices()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.projectionGeneration++
	c.updateMatrices()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.projectionGeneration++
	c.updateMatrices()
}

func (c *cameraImpl) BindGroupProvider() bind_group_provider.BindGroupProvider {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bindGroupProvider
}

func (c *cameraImpl) SetBindGroupProvider(provider bind_group_provider.BindGroupProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindGroupProvider = provider
}

// updateMatrices recalculates the view, projection, view-projection, and inverse projection matrices.
// Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	common.LookAt(c.viewMatrix[:],
		c.position[0], c.position[1], c.position[2],
		c.target[0], c.target[1], c.target[2],
		c.up[0], c.up[1], c.up[2],
	)

	common.Perspective(c.projectionMatrix[:],
		c.fov, c.aspect, c.near, c.far,
	)

	common.Mul4(c.viewProjectionMatrix[:], c.projectionMatrix[:], c.viewMatrix[:])
	common.Invert4(c.inverseProjectionMatrix[:], c.projectionMatrix[:])
}
