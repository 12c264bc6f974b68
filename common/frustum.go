package common

import (
	"math"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   [3]float32
	Distance float32
}

// SignedDistance returns the signed distance from a point to the plane.
// Positive values lie in the half-space the normal points into.
//
// Parameters:
//   - p: the point as (x, y, z)
//
// Returns:
//   - float32: the signed distance
func (pl Plane) SignedDistance(p [3]float32) float32 {
	return pl.Normal[0]*p[0] + pl.Normal[1]*p[1] + pl.Normal[2]*p[2] + pl.Distance
}

// PlaneThroughOrigin builds a plane passing through the origin and two points,
// oriented so that the given inside point lies in the positive half-space.
// Used to construct per-tile frustum side planes, which all pass through the
// camera eye (the view-space origin).
//
// Parameters:
//   - a, b: two points on the plane (besides the origin)
//   - inside: a point that must end up on the positive side
//
// Returns:
//   - Plane: the constructed plane with a unit-length normal
func PlaneThroughOrigin(a, b, inside [3]float32) Plane {
	n := [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
	length := float32(math.Sqrt(float64(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])))
	if length > 0 {
		inv := 1.0 / length
		n[0] *= inv
		n[1] *= inv
		n[2] *= inv
	}
	p := Plane{Normal: n}
	if p.SignedDistance(inside) < 0 {
		p.Normal[0] = -p.Normal[0]
		p.Normal[1] = -p.Normal[1]
		p.Normal[2] = -p.Normal[2]
	}
	return p
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// IntersectsSphere reports whether a sphere touches or overlaps the frustum.
// Conservative: a sphere outside the true frustum but inside all six plane
// half-spaces (near the corners) still reports true, which is the safe
// direction for culling.
//
// Parameters:
//   - center: sphere center
//   - radius: sphere radius
//
// Returns:
//   - bool: true if the sphere is at least partially inside
func (f *Frustum) IntersectsSphere(center [3]float32, radius float32) bool {
	for i := range f.Planes {
		if f.Planes[i].SignedDistance(center) < -radius {
			return false
		}
	}
	return true
}

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// The matrix should be the combined View * Projection matrix.
// Uses the Gribb/Hartmann method for plane extraction.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: 16 float32 values representing the view-projection matrix (column-major)
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj []float32) Frustum {
	var f Frustum

	// For column-major matrix M, element M[row][col] is at index col*4 + row
	// So M[i][j] = viewProj[j*4 + i]

	// Left plane: row3 + row0
	f.Planes[FrustumLeft].Normal[0] = viewProj[3] + viewProj[0]  // m[0][3] + m[0][0]
	f.Planes[FrustumLeft].Normal[1] = viewProj[7] + viewProj[4]  // m[1][3] + m[1][0]
	f.Planes[FrustumLeft].Normal[2] = viewProj[11] + viewProj[8] // m[2][3] + m[2][0]
	f.Planes[FrustumLeft].Distance = viewProj[15] + viewProj[12] // m[3][3] + m[3][0]

	// Right plane: row3 - row0
	f.Planes[FrustumRight].Normal[0] = viewProj[3] - viewProj[0]
	f.Planes[FrustumRight].Normal[1] = viewProj[7] - viewProj[4]
	f.Planes[FrustumRight].Normal[2] = viewProj[11] - viewProj[8]
	f.Planes[FrustumRight].Distance = viewProj[15] - viewProj[12]

	// Bottom plane: row3 + row1
	f.Planes[FrustumBottom].Normal[0] = viewProj[3] + viewProj[1]
	f.Planes[FrustumBottom].Normal[1] = viewProj[7] + viewProj[5]
	f.Planes[FrustumBottom].Normal[2] = viewProj[11] + viewProj[9]
	f.Planes[FrustumBottom].Distance = viewProj[15] + viewProj[13]

	// Top plane: row3 - row1
	f.Planes[FrustumTop].Normal[0] = viewProj[3] - viewProj[1]
	f.Planes[FrustumTop].Normal[1] = viewProj[7] - viewProj[5]
	f.Planes[FrustumTop].Normal[2] = viewProj[11] - viewProj[9]
	f.Planes[FrustumTop].Distance = viewProj[15] - viewProj[13]

	// Near plane: row3 + row2
	f.Planes[FrustumNear].Normal[0] = viewProj[3] + viewProj[2]
	f.Planes[FrustumNear].Normal[1] = viewProj[7] + viewProj[6]
	f.Planes[FrustumNear].Normal[2] = viewProj[11] + viewProj[10]
	f.Planes[FrustumNear].Distance = viewProj[15] + viewProj[14]

	// Far plane: row3 - row2
	f.Planes[FrustumFar].Normal[0] = viewProj[3] - viewProj[2]
	f.Planes[FrustumFar].Normal[1] = viewProj[7] - viewProj[6]
	f.Planes[FrustumFar].Normal[2] = viewProj[11] - viewProj[10]
	f.Planes[FrustumFar].Distance = viewProj[15] - viewProj[14]

	// Normalize all planes
	for i := range f.Planes {
		f.normalizePlane(i)
	}

	return f
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := float32(math.Sqrt(float64(
		p.Normal[0]*p.Normal[0] +
			p.Normal[1]*p.Normal[1] +
			p.Normal[2]*p.Normal[2],
	)))

	if length > 0 {
		invLen := 1.0 / length
		p.Normal[0] *= invLen
		p.Normal[1] *= invLen
		p.Normal[2] *= invLen
		p.Distance *= invLen
	}
}
