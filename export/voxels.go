package export

import (
	"io"

	"github.com/soypat/softbody/internal/d3"
	"github.com/soypat/softbody/meshio"
	"github.com/soypat/softbody/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

// VoxelFaces returns a TriangleReader over the outward faces of the voxels
// of g in one of states. A face is emitted when the voxel across it is
// outside the grid or in none of states.
func VoxelFaces(g *voxel.Grid, states ...voxel.State) meshio.TriangleReader {
	return &voxelFaces{g: g, states: states}
}

type voxelFaces struct {
	g       *voxel.Grid
	states  []voxel.State
	next    int
	pending []r3.Triangle
}

func (vf *voxelFaces) selected(s voxel.State) bool {
	for _, want := range vf.states {
		if s == want {
			return true
		}
	}
	return false
}

func (vf *voxelFaces) ReadTriangles(t []r3.Triangle) (int, error) {
	n := 0
	for n < len(t) {
		if len(vf.pending) > 0 {
			c := copy(t[n:], vf.pending)
			vf.pending = vf.pending[c:]
			n += c
			continue
		}
		if vf.next >= vf.g.Count() {
			break
		}
		vf.faces(vf.next)
		vf.next++
	}
	if n == 0 && len(t) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// faces queues the exposed faces of voxel index i.
func (vf *voxelFaces) faces(i int) {
	g := vf.g
	c := g.Coord(i)
	if !vf.selected(g.At(c)) {
		return
	}
	half := g.VoxelSize() / 2
	center := g.Center(c)
	for k, off := range voxel.FaceNeighbors {
		nb := c.Add(off)
		if g.Exists(nb) && vf.selected(g.At(nb)) {
			continue
		}
		axis := k / 2
		normal := off.ToV3()
		u := axisVec((axis+1)%3, half)
		v := axisVec((axis+2)%3, half)
		fc := r3.Add(center, r3.Scale(half, normal))
		p0 := r3.Sub(r3.Sub(fc, u), v)
		p1 := r3.Sub(r3.Add(fc, u), v)
		p2 := r3.Add(r3.Add(fc, u), v)
		p3 := r3.Add(r3.Sub(fc, u), v)
		if d3.Comp(normal, axis) > 0 {
			vf.pending = append(vf.pending, r3.Triangle{p0, p1, p2}, r3.Triangle{p0, p2, p3})
		} else {
			vf.pending = append(vf.pending, r3.Triangle{p0, p2, p1}, r3.Triangle{p0, p3, p2})
		}
	}
}

func axisVec(axis int, length float64) r3.Vec {
	switch axis {
	case 0:
		return r3.Vec{X: length}
	case 1:
		return r3.Vec{Y: length}
	}
	return r3.Vec{Z: length}
}

// CreateVoxelSTL writes the exposed faces of the voxels of g in states
// to an STL file at path.
func CreateVoxelSTL(path string, g *voxel.Grid, states ...voxel.State) error {
	return meshio.CreateSTL(path, VoxelFaces(g, states...))
}
