// Package meshio reads and writes triangle meshes.
package meshio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fogleman/fauxgl"
	"github.com/soypat/softbody"
	"gonum.org/v1/gonum/spatial/r3"
)

// TriangleReader reads triangles into t and returns the number read.
// It returns io.EOF once no triangles remain.
type TriangleReader interface {
	ReadTriangles(t []r3.Triangle) (int, error)
}

// ReadAll reads every triangle of r. It does not return io.EOF.
func ReadAll(r TriangleReader) ([]r3.Triangle, error) {
	var err error
	var nt int
	result := make([]r3.Triangle, 0, 1<<12)
	buf := make([]r3.Triangle, 1024)
	for {
		nt, err = r.ReadTriangles(buf)
		result = append(result, buf[:nt]...)
		if err != nil {
			break
		}
	}
	if err == io.EOF {
		return result, nil
	}
	return result, err
}

// Triangles is a TriangleReader over a slice of triangles.
type Triangles []r3.Triangle

// ReadTriangles implements TriangleReader.
func (ts *Triangles) ReadTriangles(t []r3.Triangle) (int, error) {
	if len(*ts) == 0 {
		return 0, io.EOF
	}
	n := copy(t, *ts)
	*ts = (*ts)[n:]
	return n, nil
}

// NewMeshReader returns a TriangleReader over the triangles of m.
func NewMeshReader(m *softbody.Mesh) TriangleReader {
	return &meshReader{m: m}
}

type meshReader struct {
	m    *softbody.Mesh
	next int
}

func (r *meshReader) ReadTriangles(t []r3.Triangle) (int, error) {
	n := 0
	for ; n < len(t) && r.next < r.m.TriangleCount(); n++ {
		t[n] = r.m.Triangle(r.next)
		r.next++
	}
	if n == 0 && len(t) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Weld returns an indexed mesh of triangles where vertices at the exact
// same position are shared. Vertex normals are computed from the faces.
func Weld(triangles []r3.Triangle) *softbody.Mesh {
	m := &softbody.Mesh{Triangles: make([]int, 0, 3*len(triangles))}
	index := make(map[r3.Vec]int)
	for _, t := range triangles {
		for _, v := range t {
			i, ok := index[v]
			if !ok {
				i = len(m.Vertices)
				index[v] = i
				m.Vertices = append(m.Vertices, v)
			}
			m.Triangles = append(m.Triangles, i)
		}
	}
	m.ComputeNormals()
	return m
}

// Load reads the mesh file at path. STL, OBJ and PLY files are supported.
func Load(path string) (*softbody.Mesh, error) {
	var (
		triangles []r3.Triangle
		err       error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".stl":
		triangles, err = loadSTL(path)
	case ".obj":
		triangles, err = fromFauxgl(fauxgl.LoadOBJ(path))
	case ".ply":
		triangles, err = fromFauxgl(fauxgl.LoadPLY(path))
	default:
		return nil, fmt.Errorf("unsupported mesh format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	m := Weld(triangles)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return m, nil
}

func loadSTL(path string) ([]r3.Triangle, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	triangles, err := ReadSTL(fp)
	if err != nil && !errors.Is(err, ErrNormalMismatch) {
		return nil, err
	}
	return triangles, nil
}

func fromFauxgl(mesh *fauxgl.Mesh, err error) ([]r3.Triangle, error) {
	if err != nil {
		return nil, err
	}
	triangles := make([]r3.Triangle, len(mesh.Triangles))
	for i, t := range mesh.Triangles {
		triangles[i] = r3.Triangle{vec(t.V1.Position), vec(t.V2.Position), vec(t.V3.Position)}
	}
	return triangles, nil
}

func vec(v fauxgl.Vector) r3.Vec { return r3.Vec{X: v.X, Y: v.Y, Z: v.Z} }

// ToFauxgl converts m to a fauxgl mesh with flat shaded triangles.
func ToFauxgl(m *softbody.Mesh) *fauxgl.Mesh {
	triangles := make([]*fauxgl.Triangle, m.TriangleCount())
	for i := range triangles {
		t := m.Triangle(i)
		triangles[i] = fauxgl.NewTriangleForPoints(fv(t[0]), fv(t[1]), fv(t[2]))
	}
	return fauxgl.NewTriangleMesh(triangles)
}

func fv(v r3.Vec) fauxgl.Vector { return fauxgl.V(v.X, v.Y, v.Z) }
