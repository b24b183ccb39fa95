// Package voxel rasterizes triangle meshes into dense voxel grids and
// provides the distance field and path finding queries built on them.
package voxel

import (
	"math"

	"github.com/soypat/softbody"
	"github.com/soypat/softbody/internal/d3"
	"github.com/soypat/softbody/stage"
	"gonum.org/v1/gonum/spatial/r3"
)

// State classifies a voxel with respect to the voxelized mesh.
type State uint8

const (
	// Outside voxels lie outside the mesh. It is the zero value.
	Outside State = iota
	// Inside voxels are enclosed by the mesh surface.
	Inside
	// Boundary voxels straddle the mesh surface.
	Boundary
)

func (s State) String() string {
	switch s {
	case Outside:
		return "outside"
	case Inside:
		return "inside"
	case Boundary:
		return "boundary"
	}
	return "unknown"
}

// MinVoxelSize is the smallest voxel size a Grid accepts.
const MinVoxelSize = 1e-4

// Triangles rasterized per step.
const trianglesPerStep = 100

var (
	// FaceNeighbors are the offsets to the 6 voxels sharing a face.
	FaceNeighbors = []softbody.V3i{
		{-1, 0, 0}, {1, 0, 0}, {0, -1, 0}, {0, 1, 0}, {0, 0, -1}, {0, 0, 1},
	}
	// EdgeNeighbors are the offsets to the 12 voxels sharing only an edge.
	EdgeNeighbors = []softbody.V3i{
		{-1, -1, 0}, {-1, 1, 0}, {1, -1, 0}, {1, 1, 0},
		{-1, 0, -1}, {-1, 0, 1}, {1, 0, -1}, {1, 0, 1},
		{0, -1, -1}, {0, -1, 1}, {0, 1, -1}, {0, 1, 1},
	}
	// VertexNeighbors are the offsets to the 8 voxels sharing only a vertex.
	VertexNeighbors = []softbody.V3i{
		{-1, -1, -1}, {-1, -1, 1}, {-1, 1, -1}, {-1, 1, 1},
		{1, -1, -1}, {1, -1, 1}, {1, 1, -1}, {1, 1, 1},
	}
	allNeighbors = append(append(append([]softbody.V3i{}, FaceNeighbors...), EdgeNeighbors...), VertexNeighbors...)
)

// Grid is a dense voxel grid of a triangle mesh. Voxel coordinates passed
// to and returned by Grid methods are relative to the grid origin, so
// valid coordinates lie in [0, Resolution()).
type Grid struct {
	size   float64
	origin softbody.V3i
	res    softbody.V3i
	cells  []State
	// tris holds the indices of the triangles overlapping each voxel.
	tris [][]int
	mesh *softbody.Mesh
}

// NewGrid returns an empty grid with cubic voxels of side voxelSize.
// Sizes below MinVoxelSize are raised to MinVoxelSize.
func NewGrid(voxelSize float64) *Grid {
	return &Grid{size: math.Max(voxelSize, MinVoxelSize)}
}

// Voxelize rasterizes the mesh triangles into the grid, replacing any
// previous contents. The grid is sized to the mesh bounds plus a margin
// of empty voxels. Voxels overlapping a triangle become Boundary. If
// fillInterior is set, voxels enclosed by the mesh surface become Inside;
// this requires a closed mesh. A mesh that does not validate leaves the
// grid empty.
func (g *Grid) Voxelize(m *softbody.Mesh, fillInterior bool) stage.Stepper {
	return stage.Sequence(
		stage.Do("allocating voxels...", func() error {
			g.allocate(m)
			return nil
		}),
		stage.Lazy(func() stage.Stepper {
			if g.mesh == nil {
				return nil
			}
			return stage.Loop("voxelizing mesh...", g.mesh.TriangleCount(), trianglesPerStep, func(i int) error {
				g.rasterize(i)
				return nil
			})
		}),
		stage.Lazy(func() stage.Stepper {
			if g.mesh == nil || !fillInterior {
				return nil
			}
			return stage.Do("filling interior...", func() error {
				g.fill()
				return nil
			})
		}),
	)
}

func (g *Grid) allocate(m *softbody.Mesh) {
	*g = Grid{size: g.size}
	if m.Validate() != nil {
		return
	}
	bb := m.Bounds()
	g.mesh = m
	g.origin = g.PointVoxel(bb.Min).SubScalar(2)
	last := g.PointVoxel(bb.Max).AddScalar(1)
	g.res = last.Sub(g.origin).AddScalar(1)
	n := g.res[0] * g.res[1] * g.res[2]
	g.cells = make([]State, n)
	g.tris = make([][]int, n)
}

func (g *Grid) rasterize(ti int) {
	tri := g.mesh.Triangle(ti)
	if tri.Normal() == (r3.Vec{}) {
		return // Zero area triangles do not contribute.
	}
	set := d3.Set(tri[:])
	lo := g.clampCoord(g.VoxelAt(set.Min()))
	hi := g.clampCoord(g.VoxelAt(set.Max()))
	half := g.size / 2
	for z := lo[2]; z <= hi[2]; z++ {
		for y := lo[1]; y <= hi[1]; y++ {
			for x := lo[0]; x <= hi[0]; x++ {
				c := softbody.V3i{x, y, z}
				if !triangleBoxOverlap(tri, g.Center(c), half) {
					continue
				}
				idx := g.Index(c)
				g.cells[idx] = Boundary
				g.tris[idx] = append(g.tris[idx], ti)
			}
		}
	}
}

// fill floods Outside from the grid border through face adjacent
// non-boundary voxels. Every unreached non-boundary voxel is Inside.
func (g *Grid) fill() {
	reached := make([]bool, len(g.cells))
	var queue []int
	push := func(c softbody.V3i) {
		idx := g.Index(c)
		if reached[idx] || g.cells[idx] == Boundary {
			return
		}
		reached[idx] = true
		queue = append(queue, idx)
	}
	g.foreach(func(c softbody.V3i) {
		if c[0] == 0 || c[1] == 0 || c[2] == 0 ||
			c[0] == g.res[0]-1 || c[1] == g.res[1]-1 || c[2] == g.res[2]-1 {
			push(c)
		}
	})
	for len(queue) > 0 {
		c := g.Coord(queue[0])
		queue = queue[1:]
		for _, off := range FaceNeighbors {
			n := c.Add(off)
			if g.Exists(n) {
				push(n)
			}
		}
	}
	for i, s := range g.cells {
		if s != Boundary && !reached[i] {
			g.cells[i] = Inside
		}
	}
}

// BoundaryThinning turns every Boundary voxel without an Outside face
// neighbor into an Inside voxel, leaving a boundary shell one voxel thick.
// Voxels beyond the grid count as Outside. Thinning is idempotent.
func (g *Grid) BoundaryThinning() {
	var thin []int
	for i, s := range g.cells {
		if s != Boundary {
			continue
		}
		c := g.Coord(i)
		touchesOutside := false
		for _, off := range FaceNeighbors {
			if g.At(c.Add(off)) == Outside {
				touchesOutside = true
				break
			}
		}
		if !touchesOutside {
			thin = append(thin, i)
		}
	}
	for _, i := range thin {
		g.cells[i] = Inside
	}
}

// VoxelSize returns the side length of a voxel.
func (g *Grid) VoxelSize() float64 { return g.size }

// Origin returns the absolute voxel coordinate of the grid's first voxel.
func (g *Grid) Origin() softbody.V3i { return g.origin }

// Resolution returns the number of voxels along each axis.
func (g *Grid) Resolution() softbody.V3i { return g.res }

// Count returns the total number of voxels in the grid.
func (g *Grid) Count() int { return len(g.cells) }

// Mesh returns the last voxelized mesh or nil if the grid is empty.
func (g *Grid) Mesh() *softbody.Mesh { return g.mesh }

// PointVoxel returns the absolute voxel coordinate containing p.
func (g *Grid) PointVoxel(p r3.Vec) softbody.V3i {
	return softbody.FloorV3i(r3.Scale(1/g.size, p))
}

// VoxelAt returns the grid coordinate of the voxel containing p. The
// returned coordinate may lie outside the grid.
func (g *Grid) VoxelAt(p r3.Vec) softbody.V3i {
	return g.PointVoxel(p).Sub(g.origin)
}

// Center returns the world position of the center of voxel c.
func (g *Grid) Center(c softbody.V3i) r3.Vec {
	return r3.Scale(g.size, r3.Add(c.Add(g.origin).ToV3(), d3.Elem(0.5)))
}

// Exists reports whether c lies within the grid.
func (g *Grid) Exists(c softbody.V3i) bool {
	return c.Within(g.res)
}

// Index returns the linear index of voxel c. It panics if c is not in the grid.
func (g *Grid) Index(c softbody.V3i) int {
	if !g.Exists(c) {
		panic("voxel out of grid bounds")
	}
	return c[0] + g.res[0]*(c[1]+g.res[1]*c[2])
}

// Coord returns the voxel coordinate of a linear index.
func (g *Grid) Coord(index int) softbody.V3i {
	x := index % g.res[0]
	index /= g.res[0]
	return softbody.V3i{x, index % g.res[1], index / g.res[1]}
}

// At returns the state of voxel c. Voxels beyond the grid are Outside.
func (g *Grid) At(c softbody.V3i) State {
	if !g.Exists(c) {
		return Outside
	}
	return g.cells[g.Index(c)]
}

// Triangles returns the indices of the mesh triangles overlapping voxel c.
func (g *Grid) Triangles(c softbody.V3i) []int {
	if !g.Exists(c) {
		return nil
	}
	return g.tris[g.Index(c)]
}

// CountState returns the number of voxels in state s.
func (g *Grid) CountState(s State) int {
	n := 0
	for _, cs := range g.cells {
		if cs == s {
			n++
		}
	}
	return n
}

// Occupied reports whether voxel c exists and is not Outside.
func (g *Grid) Occupied(c softbody.V3i) bool {
	return g.At(c) != Outside
}

func (g *Grid) clampCoord(c softbody.V3i) softbody.V3i {
	for i := range c {
		if c[i] < 0 {
			c[i] = 0
		} else if c[i] >= g.res[i] {
			c[i] = g.res[i] - 1
		}
	}
	return c
}

// foreach calls fn for every voxel coordinate in index order.
func (g *Grid) foreach(fn func(c softbody.V3i)) {
	for z := 0; z < g.res[2]; z++ {
		for y := 0; y < g.res[1]; y++ {
			for x := 0; x < g.res[0]; x++ {
				fn(softbody.V3i{x, y, z})
			}
		}
	}
}
