// Package export writes debug views of baked blueprints: particle
// ellipsoids as binary glTF, PNG previews and voxel grids as STL.
package export

import (
	"github.com/soypat/softbody"
	"github.com/soypat/softbody/blueprint"
	"github.com/soypat/softbody/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

// octahedron is a unit octahedron with outward winding.
var (
	octaVertices = [6]r3.Vec{
		{X: 1}, {X: -1}, {Y: 1}, {Y: -1}, {Z: 1}, {Z: -1},
	}
	octaTriangles = [8][3]int{
		{0, 2, 4}, {2, 1, 4}, {1, 3, 4}, {3, 0, 4},
		{2, 0, 5}, {1, 2, 5}, {3, 1, 5}, {0, 3, 5},
	}
)

// Ellipsoids returns a mesh with one octahedron per particle of bp,
// stretched along the particle's principal radii and oriented by its
// orientation. Vertices of particle i start at index 6*i.
func Ellipsoids(bp *blueprint.Blueprint) *softbody.Mesh {
	n := bp.Len()
	m := &softbody.Mesh{
		Vertices:  make([]r3.Vec, 0, 6*n),
		Triangles: make([]int, 0, 24*n),
	}
	for i := 0; i < n; i++ {
		t := d3.ComposeTransform(bp.Positions[i], bp.Radii[i], d3.Canon(bp.Orientations[i]))
		base := len(m.Vertices)
		for _, v := range octaVertices {
			m.Vertices = append(m.Vertices, t.Transform(v))
		}
		for _, tri := range octaTriangles {
			m.Triangles = append(m.Triangles, base+tri[0], base+tri[1], base+tri[2])
		}
	}
	m.ComputeNormals()
	return m
}
