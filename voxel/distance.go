package voxel

import (
	"math"

	"github.com/soypat/softbody"
	"github.com/soypat/softbody/stage"
	"gonum.org/v1/gonum/spatial/r3"
)

// DistanceField stores for every voxel of a grid the nearest Boundary
// voxel, found by jump flooding.
type DistanceField struct {
	grid *Grid
	// nearest holds the index of the nearest boundary voxel or -1.
	nearest []int
}

// NewDistanceField returns an unpropagated distance field over g.
// JumpFlood must run before the field is queried.
func NewDistanceField(g *Grid) *DistanceField {
	return &DistanceField{grid: g}
}

// JumpFlood seeds the field with the grid's Boundary voxels and propagates
// the nearest seed with jump steps halving from the grid extent down to 1.
// Each pass is one step of the returned Stepper.
func (df *DistanceField) JumpFlood() stage.Stepper {
	var steps []int
	var next []int
	return stage.Sequence(
		stage.Do("seeding distance field...", func() error {
			g := df.grid
			df.nearest = make([]int, g.Count())
			next = make([]int, g.Count())
			for i, s := range g.cells {
				df.nearest[i] = -1
				if s == Boundary {
					df.nearest[i] = i
				}
			}
			steps = jumpSteps(g.res.Max())
			return nil
		}),
		stage.Lazy(func() stage.Stepper {
			if df.grid.Count() == 0 {
				return nil
			}
			return stage.Loop("building distance field...", len(steps), 1, func(i int) error {
				df.pass(steps[i], next)
				df.nearest, next = next, df.nearest
				return nil
			})
		}),
	)
}

// jumpSteps returns the halving step sequence for a grid of the given extent.
func jumpSteps(extent int) []int {
	step := 1
	for step < extent {
		step *= 2
	}
	step /= 2
	if step < 1 {
		step = 1
	}
	var steps []int
	for ; step >= 1; step /= 2 {
		steps = append(steps, step)
	}
	return steps
}

// pass reads the current field and writes the propagated field to dst.
// Ties between equally near seeds go to the lowest seed index.
func (df *DistanceField) pass(step int, dst []int) {
	g := df.grid
	for i := range df.nearest {
		c := g.Coord(i)
		best := df.nearest[i]
		bestD := df.dist2(c, best)
		for dz := -1; dz <= 1; dz++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					n := c.Add(softbody.V3i{dx * step, dy * step, dz * step})
					if (dx == 0 && dy == 0 && dz == 0) || !g.Exists(n) {
						continue
					}
					cand := df.nearest[g.Index(n)]
					if cand < 0 {
						continue
					}
					d := df.dist2(c, cand)
					if best < 0 || d < bestD || (d == bestD && cand < best) {
						best, bestD = cand, d
					}
				}
			}
		}
		dst[i] = best
	}
}

// dist2 returns the squared distance in voxel units between c and the
// voxel with index seed.
func (df *DistanceField) dist2(c softbody.V3i, seed int) int {
	if seed < 0 {
		return math.MaxInt
	}
	return c.Sub(df.grid.Coord(seed)).Norm2()
}

// Nearest returns the coordinate of the Boundary voxel nearest to c
// and false if none was found.
func (df *DistanceField) Nearest(c softbody.V3i) (softbody.V3i, bool) {
	if !df.grid.Exists(c) || df.nearest == nil {
		return softbody.V3i{}, false
	}
	seed := df.nearest[df.grid.Index(c)]
	if seed < 0 {
		return softbody.V3i{}, false
	}
	return df.grid.Coord(seed), true
}

// Distance returns the distance between the centers of voxel c and its
// nearest Boundary voxel. It is zero for Boundary voxels and +Inf if
// the nearest boundary voxel is unknown.
func (df *DistanceField) Distance(c softbody.V3i) float64 {
	if !df.grid.Exists(c) || df.nearest == nil {
		return math.Inf(1)
	}
	seed := df.nearest[df.grid.Index(c)]
	if seed < 0 {
		return math.Inf(1)
	}
	return math.Sqrt(float64(df.dist2(c, seed))) * df.grid.size
}

// signed returns the distance of c, negative inside the mesh. Coordinates
// beyond the grid are clamped to it.
func (df *DistanceField) signed(c softbody.V3i) float64 {
	c = df.grid.clampCoord(c)
	d := df.Distance(c)
	if df.grid.At(c) == Inside {
		return -d
	}
	return d
}

var sobelWeights = [3]float64{1, 2, 1}

// SampleFiltered returns the outward surface direction at world point p,
// the normalized gradient of the signed distance smoothed with a Sobel
// kernel over the voxel containing p and its neighbors. For points inside
// the mesh it points towards the nearest surface, out of the mesh. The
// zero vector is returned where the direction is undefined.
func (df *DistanceField) SampleFiltered(p r3.Vec) r3.Vec {
	g := df.grid
	if g.Count() == 0 || df.nearest == nil {
		return r3.Vec{}
	}
	c := g.clampCoord(g.VoxelAt(p))
	var grad [3]float64
	for axis := 0; axis < 3; axis++ {
		u, v := (axis+1)%3, (axis+2)%3
		for du := -1; du <= 1; du++ {
			for dv := -1; dv <= 1; dv++ {
				var hi, lo softbody.V3i
				hi, lo = c, c
				hi[axis]++
				lo[axis]--
				hi[u] += du
				lo[u] += du
				hi[v] += dv
				lo[v] += dv
				diff := df.signed(hi) - df.signed(lo)
				if math.IsInf(diff, 0) || math.IsNaN(diff) {
					return r3.Vec{}
				}
				grad[axis] += sobelWeights[du+1] * sobelWeights[dv+1] * diff
			}
		}
	}
	dir := r3.Vec{X: grad[0], Y: grad[1], Z: grad[2]}
	if dir == (r3.Vec{}) {
		return dir
	}
	return r3.Unit(dir)
}
