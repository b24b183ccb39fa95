/*

Integer 3D Vectors

*/

package softbody

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// V3i is a 3D integer vector. Voxel coordinates are V3i.
type V3i [3]int

// FloorV3i returns the integer vector of the floored components of v.
func FloorV3i(v r3.Vec) V3i {
	return V3i{int(math.Floor(v.X)), int(math.Floor(v.Y)), int(math.Floor(v.Z))}
}

// SubScalar subtracts a scalar from each component of the vector.
func (a V3i) SubScalar(b int) V3i {
	return V3i{a[0] - b, a[1] - b, a[2] - b}
}

// AddScalar adds a scalar to each component of the vector.
func (a V3i) AddScalar(b int) V3i {
	return V3i{a[0] + b, a[1] + b, a[2] + b}
}

// ToV3 converts V3i (integer) to r3.Vec (float).
func (a V3i) ToV3() r3.Vec {
	return r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])}
}

// Add adds two vectors. Return v = a + b.
func (a V3i) Add(b V3i) V3i {
	return V3i{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

// Sub subtracts two vectors. Return v = a - b.
func (a V3i) Sub(b V3i) V3i {
	return V3i{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

// MulScalar multiplies each component of the vector by b.
func (a V3i) MulScalar(b int) V3i {
	return V3i{a[0] * b, a[1] * b, a[2] * b}
}

// Max returns the largest component of a.
func (a V3i) Max() int {
	m := a[0]
	if a[1] > m {
		m = a[1]
	}
	if a[2] > m {
		m = a[2]
	}
	return m
}

// Chebyshev returns the largest absolute component of a.
func (a V3i) Chebyshev() int {
	return V3i{iabs(a[0]), iabs(a[1]), iabs(a[2])}.Max()
}

// Norm2 returns the squared euclidean length of a.
func (a V3i) Norm2() int {
	return a[0]*a[0] + a[1]*a[1] + a[2]*a[2]
}

// Within reports whether every component of a lies in [0, extent).
func (a V3i) Within(extent V3i) bool {
	return a[0] >= 0 && a[1] >= 0 && a[2] >= 0 &&
		a[0] < extent[0] && a[1] < extent[1] && a[2] < extent[2]
}

func iabs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
