package sample

import (
	"math"

	"github.com/soypat/softbody/internal/d3"
	"github.com/soypat/softbody/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

// ProjectOnMesh moves every position to the closest point of the mesh
// triangles overlapping its voxel in g. Positions in voxels without
// triangles are left unchanged. g must have been voxelized.
func ProjectOnMesh(positions []r3.Vec, g *voxel.Grid) {
	m := g.Mesh()
	if m == nil {
		return
	}
	for i, p := range positions {
		best, bestD2 := p, math.Inf(1)
		for _, ti := range g.Triangles(g.VoxelAt(p)) {
			q := d3.ClosestOnTriangle(m.Triangle(ti), p)
			if d2 := r3.Norm2(r3.Sub(q, p)); d2 < bestD2 {
				best, bestD2 = q, d2
			}
		}
		positions[i] = best
	}
}
