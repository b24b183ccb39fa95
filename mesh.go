// Package softbody bakes softbody blueprints from triangle meshes: the mesh is
// voxelized, sampled into particles, grouped into shape matching clusters and
// the clusters batched for conflict free solving.
//
// The pipeline itself lives in the blueprint package. This package holds the
// types shared by every stage.
package softbody

import (
	"errors"
	"fmt"

	"github.com/soypat/softbody/internal/d3"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	ErrEmptyMesh       = errors.New("mesh has no triangles")
	ErrIndexOutOfRange = errors.New("triangle index out of range")
	ErrNonFinite       = errors.New("non finite vertex")
)

// Mesh is an indexed triangle mesh. Every three consecutive elements of
// Triangles index a triangle's vertices in Vertices.
type Mesh struct {
	Vertices []r3.Vec
	// Normals is optional. When set it has the same length as Vertices.
	Normals   []r3.Vec
	Triangles []int
}

// Validate checks the mesh can be baked.
func (m *Mesh) Validate() error {
	if m == nil || len(m.Triangles) == 0 {
		return ErrEmptyMesh
	}
	if len(m.Triangles)%3 != 0 {
		return fmt.Errorf("%d triangle indices not multiple of 3: %w", len(m.Triangles), ErrIndexOutOfRange)
	}
	if m.Normals != nil && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("%d normals for %d vertices", len(m.Normals), len(m.Vertices))
	}
	for i, idx := range m.Triangles {
		if idx < 0 || idx >= len(m.Vertices) {
			return fmt.Errorf("triangle %d references vertex %d of %d: %w", i/3, idx, len(m.Vertices), ErrIndexOutOfRange)
		}
	}
	for i, v := range m.Vertices {
		if !d3.IsFinite(v) {
			return fmt.Errorf("vertex %d: %w", i, ErrNonFinite)
		}
	}
	return nil
}

// TriangleCount returns the number of triangles of the mesh.
func (m *Mesh) TriangleCount() int { return len(m.Triangles) / 3 }

// Triangle returns the i'th triangle of the mesh.
func (m *Mesh) Triangle(i int) r3.Triangle {
	return r3.Triangle{
		m.Vertices[m.Triangles[3*i]],
		m.Vertices[m.Triangles[3*i+1]],
		m.Vertices[m.Triangles[3*i+2]],
	}
}

// Bounds returns the bounding box of the mesh vertices. A mesh
// without vertices has zero bounds.
func (m *Mesh) Bounds() r3.Box {
	if len(m.Vertices) == 0 {
		return r3.Box{}
	}
	return r3.Box(d3.Set(m.Vertices).Bounds())
}

// Transform returns a copy of the mesh with vertices scaled then rotated.
// Normals are transformed accordingly and renormalized.
func (m *Mesh) Transform(scale r3.Vec, rotation r3.Rotation) *Mesh {
	rotation = d3.Canon(rotation)
	t := d3.ComposeTransform(r3.Vec{}, scale, rotation)
	out := &Mesh{
		Vertices:  make([]r3.Vec, len(m.Vertices)),
		Triangles: append([]int(nil), m.Triangles...),
	}
	for i, v := range m.Vertices {
		out.Vertices[i] = t.Transform(v)
	}
	if m.Normals != nil {
		nt := d3.NormalTransform(scale, rotation)
		out.Normals = make([]r3.Vec, len(m.Normals))
		for i, n := range m.Normals {
			out.Normals[i] = r3.Unit(nt.Direction(n))
		}
	}
	return out
}

// ComputeNormals sets the mesh normals to the area weighted average
// of the normals of the triangles sharing each vertex.
func (m *Mesh) ComputeNormals() {
	m.Normals = make([]r3.Vec, len(m.Vertices))
	for i := 0; i < m.TriangleCount(); i++ {
		n := m.Triangle(i).Normal()
		for _, idx := range m.Triangles[3*i : 3*i+3] {
			m.Normals[idx] = r3.Add(m.Normals[idx], n)
		}
	}
	for i, n := range m.Normals {
		if n != (r3.Vec{}) {
			m.Normals[i] = r3.Unit(n)
		}
	}
}

// NewBoxMesh returns a closed box mesh of the given size with
// outward facing triangles and vertex normals.
func NewBoxMesh(center, size r3.Vec) *Mesh {
	box := d3.NewBox(center, size)
	m := &Mesh{Vertices: make([]r3.Vec, 8)}
	for i := range m.Vertices {
		// Vertex i has corner bits x=i&1, y=i&2, z=i&4.
		v := box.Min
		if i&1 != 0 {
			v.X = box.Max.X
		}
		if i&2 != 0 {
			v.Y = box.Max.Y
		}
		if i&4 != 0 {
			v.Z = box.Max.Z
		}
		m.Vertices[i] = v
	}
	m.Triangles = []int{
		0, 4, 6, 0, 6, 2, // -X
		1, 3, 7, 1, 7, 5, // +X
		0, 1, 5, 0, 5, 4, // -Y
		2, 6, 7, 2, 7, 3, // +Y
		0, 2, 3, 0, 3, 1, // -Z
		4, 5, 7, 4, 7, 6, // +Z
	}
	m.ComputeNormals()
	return m
}
