// Package anisotropy fits oriented ellipsoids to point clouds.
package anisotropy

import (
	"math"

	"github.com/soypat/softbody"
	"github.com/soypat/softbody/internal/d3"
	"github.com/soypat/softbody/voxel"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Params control the fitted ellipsoid size.
type Params struct {
	// MaxAnisotropy bounds the ratio of the longest to the shortest
	// ellipsoid axis. Values below 1 are treated as 1.
	MaxAnisotropy float64
	// Radius is the length of the longest axis.
	Radius float64
}

// Shape is an oriented ellipsoid.
type Shape struct {
	Centroid    r3.Vec
	Orientation r3.Rotation
	// Radii are the principal radii along the local X, Y and Z axes,
	// longest first.
	Radii r3.Vec
}

// Isotropic returns a sphere of the given radius.
func Isotropic(center r3.Vec, radius float64) Shape {
	return Shape{Centroid: center, Orientation: d3.Identity, Radii: d3.Elem(radius)}
}

// Blend returns the position smoothing of the way from raw to the
// shape's centroid. smoothing=0 returns raw.
func (s Shape) Blend(raw r3.Vec, smoothing float64) r3.Vec {
	return d3.Lerp(raw, s.Centroid, smoothing)
}

// Gather appends to dst the centers of the occupied voxels of g lying in
// the box of half side extent around p.
func Gather(g *voxel.Grid, p r3.Vec, extent float64, dst []r3.Vec) []r3.Vec {
	ext := d3.Elem(extent)
	lo := g.VoxelAt(r3.Sub(p, ext))
	hi := g.VoxelAt(r3.Add(p, ext))
	for x := lo[0]; x <= hi[0]; x++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for z := lo[2]; z <= hi[2]; z++ {
				c := softbody.V3i{x, y, z}
				if g.Occupied(c) {
					dst = append(dst, g.Center(c))
				}
			}
		}
	}
	return dst
}

// Fit fits an ellipsoid to points. The principal axes are those of the
// points' covariance, the longest axis has length params.Radius and the
// others shrink with the square root of their variance ratio, never below
// Radius/MaxAnisotropy. The shortest axis is flipped to agree with hint.
// Fit returns false if points is empty. Degenerate clouds yield a sphere.
func Fit(points []r3.Vec, hint r3.Vec, params Params) (Shape, bool) {
	if len(points) == 0 {
		return Shape{}, false
	}
	centroid := d3.Set(points).Centroid()
	sphere := Isotropic(centroid, params.Radius)
	if len(points) < 2 {
		return sphere, true
	}
	cov := mat.NewSymDense(3, nil)
	for _, p := range points {
		d := r3.Sub(p, centroid)
		for i := 0; i < 3; i++ {
			for j := i; j < 3; j++ {
				cov.SetSym(i, j, cov.At(i, j)+d3.Comp(d, i)*d3.Comp(d, j))
			}
		}
	}
	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return sphere, true
	}
	values := eig.Values(nil) // ascending.
	lmax := values[2]
	if !(lmax > 0) {
		return sphere, true
	}
	var vecs mat.Dense
	eig.VectorsTo(&vecs)
	col := func(j int) r3.Vec {
		return r3.Unit(r3.Vec{X: vecs.At(0, j), Y: vecs.At(1, j), Z: vecs.At(2, j)})
	}
	major, minor := col(2), col(0)
	if r3.Dot(minor, hint) < 0 {
		minor = r3.Scale(-1, minor)
	}
	middle := r3.Cross(minor, major)

	maxAniso := math.Max(params.MaxAnisotropy, 1)
	radius := func(l float64) float64 {
		return params.Radius * math.Max(math.Sqrt(math.Max(l, 0)/lmax), 1/maxAniso)
	}
	return Shape{
		Centroid:    centroid,
		Orientation: d3.RotationFromBasis(major, middle, minor),
		Radii:       r3.Vec{X: params.Radius, Y: radius(values[1]), Z: radius(values[0])},
	}, true
}
