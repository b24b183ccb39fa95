package voxel

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

var boxAxes = [3]r3.Vec{{X: 1}, {Y: 1}, {Z: 1}}

// triangleBoxOverlap tests a triangle against an axis aligned cube with the
// separating axis theorem. Touching counts as overlap.
func triangleBoxOverlap(tri r3.Triangle, center r3.Vec, half float64) bool {
	// Translate triangle so the box is centered at the origin.
	v0 := r3.Sub(tri[0], center)
	v1 := r3.Sub(tri[1], center)
	v2 := r3.Sub(tri[2], center)
	// Box face normals.
	for _, axis := range boxAxes {
		if separated(axis, v0, v1, v2, half) {
			return false
		}
	}
	// Triangle normal.
	e0 := r3.Sub(v1, v0)
	e1 := r3.Sub(v2, v1)
	e2 := r3.Sub(v0, v2)
	if separated(r3.Cross(e0, e1), v0, v1, v2, half) {
		return false
	}
	// Cross products of box edges and triangle edges.
	for _, axis := range boxAxes {
		for _, edge := range [3]r3.Vec{e0, e1, e2} {
			a := r3.Cross(axis, edge)
			if a == (r3.Vec{}) {
				continue
			}
			if separated(a, v0, v1, v2, half) {
				return false
			}
		}
	}
	return true
}

func separated(axis, v0, v1, v2 r3.Vec, half float64) bool {
	p0 := r3.Dot(v0, axis)
	p1 := r3.Dot(v1, axis)
	p2 := r3.Dot(v2, axis)
	triMin := math.Min(p0, math.Min(p1, p2))
	triMax := math.Max(p0, math.Max(p1, p2))
	r := half * (math.Abs(axis.X) + math.Abs(axis.Y) + math.Abs(axis.Z))
	return triMax < -r || triMin > r
}
