package sample

import (
	"context"
	"math"
	"testing"

	"github.com/soypat/softbody"
	"github.com/soypat/softbody/stage"
	"github.com/soypat/softbody/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

func run(t *testing.T, s stage.Stepper) {
	t.Helper()
	if err := stage.Run(context.Background(), s, nil); err != nil {
		t.Fatal(err)
	}
}

func TestTypeSet(t *testing.T) {
	vs := Of(Volume, Surface)
	if !vs.Has(Volume) || !vs.Has(Surface) || vs.Has(Bone) {
		t.Errorf("bad membership %v", vs)
	}
	if !Of(Volume).Union(Of(Surface)).Equal(vs) {
		t.Error("union")
	}
	if got := vs.Intersect(Of(Surface, Bone)); got != Of(Surface) {
		t.Errorf("intersect: %v", got)
	}
	if !vs.Intersect(Of(Bone)).Empty() || Of(Volume, Volume) != Of(Volume) {
		t.Error("empty intersection")
	}
	if vs.String() != "{volume, surface}" {
		t.Errorf("string %q", vs.String())
	}
}

func cubeGrid(t *testing.T, size float64) *voxel.Grid {
	g := voxel.NewGrid(size)
	run(t, g.Voxelize(softbody.NewBoxMesh(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}), true))
	g.BoundaryThinning()
	return g
}

func TestSampleVoxels(t *testing.T) {
	g := cubeGrid(t, 0.125)
	var s Set
	s.Normal = func(p r3.Vec) r3.Vec { return r3.Unit(p) }
	run(t, s.SampleVoxels(g, voxel.Boundary, Surface))
	run(t, s.SampleVoxels(g, voxel.Inside, Volume))
	nb, ni := g.CountState(voxel.Boundary), g.CountState(voxel.Inside)
	if s.Len() != nb+ni {
		t.Fatalf("sampled %d particles, want %d", s.Len(), nb+ni)
	}
	for i, p := range s.Particles {
		wantType, wantState := Surface, voxel.Boundary
		if i >= nb {
			wantType, wantState = Volume, voxel.Inside
		}
		if p.Type != wantType || g.At(g.VoxelAt(p.Position)) != wantState {
			t.Fatalf("particle %d: %+v", i, p)
		}
		if math.Abs(r3.Norm(p.Normal)-1) > 1e-9 {
			t.Fatalf("particle %d has no normal", i)
		}
	}
}

func TestSampleVertices(t *testing.T) {
	s := Set{Particles: []Particle{{Position: r3.Vec{X: 10}, Type: Volume}}}
	vertices := []r3.Vec{
		{X: 0}, {X: 0.05}, {X: 0.2}, {X: 0.21}, {X: 9.95}, {X: 1},
	}
	normals := make([]r3.Vec, len(vertices))
	for i := range normals {
		normals[i] = r3.Vec{Y: float64(i)}
	}
	run(t, s.SampleVertices(vertices, normals, 0.1))
	// 0.05 is too close to 0, 0.21 to 0.2 and 9.95 to the existing particle.
	want := []float64{10, 0, 0.2, 1}
	wantVertex := []int{-1, 0, 2, 5}
	if s.Len() != len(want) {
		t.Fatalf("got %d particles, want %d", s.Len(), len(want))
	}
	for i, p := range s.Particles {
		if p.Position.X != want[i] {
			t.Errorf("particle %d at %v, want x=%g", i, p.Position, want[i])
		}
		if i > 0 && (p.Type != Surface || p.Normal.Y != float64(wantVertex[i])) {
			t.Errorf("particle %d: %+v", i, p)
		}
	}
}

func TestSampleSkeleton(t *testing.T) {
	tip := &Joint{Name: "tip", Position: r3.Vec{Z: 1}}
	side := &Joint{Name: "side", Position: r3.Vec{X: 0.25}}
	root := &Joint{Name: "root", Children: []*Joint{tip, side}}
	var s Set
	q := r3.NewRotation(math.Pi/2, r3.Vec{X: 1})
	run(t, s.SampleSkeleton(root, 0.3, q))
	// root: origin + 3 towards tip (1+floor(1/0.3)=4) + 0 towards side (1+floor(0.25/0.3)=1).
	wantGroups := map[string]int{"root": 4, "tip": 1, "side": 1}
	if len(s.Groups) != 3 || s.Groups[0].Name != "root" {
		t.Fatalf("groups: %+v", s.Groups)
	}
	total := 0
	for _, g := range s.Groups {
		if len(g.Particles) != wantGroups[g.Name] {
			t.Errorf("group %s has %d particles, want %d", g.Name, len(g.Particles), wantGroups[g.Name])
		}
		total += len(g.Particles)
	}
	if total != s.Len() {
		t.Errorf("%d grouped particles of %d", total, s.Len())
	}
	for _, p := range s.Particles {
		if p.Type != Bone {
			t.Fatalf("non bone particle %+v", p)
		}
	}
	// Intermediate particles are evenly spaced along the rotated bone.
	for i := 1; i < 4; i++ {
		want := q.Rotate(r3.Vec{Z: 0.25 * float64(i)})
		if r3.Norm(r3.Sub(s.Particles[i].Position, want)) > 1e-12 {
			t.Errorf("particle %d at %v, want %v", i, s.Particles[i].Position, want)
		}
	}
	var empty Set
	run(t, empty.SampleSkeleton(nil, 0.3, q))
	if empty.Len() != 0 {
		t.Error("nil skeleton sampled")
	}
}

func TestMapVerticesToParticles(t *testing.T) {
	particles := []r3.Vec{{X: 1}, {X: -1}, {X: 5}}
	vertices := []r3.Vec{{X: 0}, {X: 4}, {X: -3}}
	got := MapVerticesToParticles(vertices, particles)
	want := []int{0, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("vertex %d mapped to %d, want %d", i, got[i], want[i])
		}
	}
	if got := MapVerticesToParticles(vertices, nil); got[0] != -1 {
		t.Errorf("no particles: %v", got)
	}
}

func TestProjectOnMesh(t *testing.T) {
	g := cubeGrid(t, 0.125)
	var s Set
	run(t, s.SampleVoxels(g, voxel.Boundary, Surface))
	pos := s.Positions()
	ProjectOnMesh(pos, g)
	for i, p := range pos {
		// Every projected point lies on the cube surface.
		a := math.Max(math.Abs(p.X), math.Max(math.Abs(p.Y), math.Abs(p.Z)))
		if math.Abs(a-0.5) > 1e-9 {
			t.Fatalf("particle %d projected to %v off the surface", i, p)
		}
	}
}
