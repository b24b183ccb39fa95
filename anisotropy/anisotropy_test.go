package anisotropy

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/soypat/softbody"
	"github.com/soypat/softbody/internal/d3"
	"github.com/soypat/softbody/stage"
	"github.com/soypat/softbody/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

func ratio(radii r3.Vec) float64 {
	return d3.Max(radii) / d3.Min(radii)
}

func TestFitClamp(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, maxAniso := range []float64{1, 1.5, 3, 5} {
		for trial := 0; trial < 20; trial++ {
			// Elongated random clouds along a random direction.
			axis := r3.Unit(r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()})
			var pts []r3.Vec
			for i := 0; i < 30; i++ {
				p := r3.Scale(10*rng.NormFloat64(), axis)
				p = r3.Add(p, r3.Vec{X: rng.NormFloat64() * 0.1, Y: rng.NormFloat64() * 0.1, Z: rng.NormFloat64() * 0.1})
				pts = append(pts, p)
			}
			shape, ok := Fit(pts, r3.Vec{Z: 1}, Params{MaxAnisotropy: maxAniso, Radius: 0.5})
			if !ok {
				t.Fatal("fit failed")
			}
			if r := ratio(shape.Radii); r > maxAniso*(1+1e-12) {
				t.Errorf("max anisotropy %g: ratio %g", maxAniso, r)
			}
			if math.Abs(d3.Max(shape.Radii)-0.5) > 1e-12 {
				t.Errorf("longest radius %g", d3.Max(shape.Radii))
			}
			// The longest axis follows the cloud.
			major := shape.Orientation.Rotate(r3.Vec{X: 1})
			if math.Abs(r3.Dot(major, axis)) < 0.99 {
				t.Errorf("major axis %v does not follow %v", major, axis)
			}
		}
	}
}

func TestFitPlaneHint(t *testing.T) {
	var pts []r3.Vec
	for x := -2; x <= 2; x++ {
		for y := -1; y <= 1; y++ {
			pts = append(pts, r3.Vec{X: float64(x), Y: float64(y), Z: 3})
		}
	}
	for _, hint := range []r3.Vec{{Z: 1}, {Z: -1}} {
		shape, ok := Fit(pts, hint, Params{MaxAnisotropy: 3, Radius: 1})
		if !ok {
			t.Fatal("fit failed")
		}
		if !d3.EqualWithin(shape.Centroid, r3.Vec{Z: 3}, 1e-12) {
			t.Errorf("centroid %v", shape.Centroid)
		}
		normal := shape.Orientation.Rotate(r3.Vec{Z: 1})
		if r3.Dot(normal, hint) < 0.999 {
			t.Errorf("shortest axis %v disagrees with hint %v", normal, hint)
		}
		// A flat cloud is clamped on its thin axis.
		if math.Abs(shape.Radii.Z-1./3) > 1e-9 {
			t.Errorf("thin radius %g, want 1/3", shape.Radii.Z)
		}
	}
}

func TestFitDegenerate(t *testing.T) {
	if _, ok := Fit(nil, r3.Vec{}, Params{MaxAnisotropy: 3, Radius: 1}); ok {
		t.Error("empty neighborhood fitted")
	}
	p := r3.Vec{X: 1, Y: 2, Z: 3}
	for _, pts := range [][]r3.Vec{{p}, {p, p, p}} {
		shape, ok := Fit(pts, r3.Vec{}, Params{MaxAnisotropy: 3, Radius: 0.2})
		want := Isotropic(p, 0.2)
		if !ok || shape.Radii != want.Radii || shape.Orientation != want.Orientation ||
			!d3.EqualWithin(shape.Centroid, p, 1e-12) {
			t.Errorf("degenerate fit: %+v", shape)
		}
	}
}

func TestBlend(t *testing.T) {
	s := Shape{Centroid: r3.Vec{X: 1}}
	raw := r3.Vec{X: -1}
	for _, test := range []struct {
		smoothing, want float64
	}{{0, -1}, {0.25, -0.5}, {1, 1}} {
		if got := s.Blend(raw, test.smoothing); got.X != test.want {
			t.Errorf("smoothing %g: got %v", test.smoothing, got)
		}
	}
}

func TestGather(t *testing.T) {
	g := voxel.NewGrid(0.125)
	err := stage.Run(context.Background(), g.Voxelize(softbody.NewBoxMesh(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}), true), nil)
	if err != nil {
		t.Fatal(err)
	}
	extent := 0.125 * math.Sqrt(3) * 2
	// Deep inside the cube the whole box of voxels is occupied.
	inner := Gather(g, r3.Vec{X: 0.01, Y: 0.01, Z: 0.01}, extent, nil)
	lo := g.VoxelAt(r3.Sub(r3.Vec{X: 0.01, Y: 0.01, Z: 0.01}, d3.Elem(extent)))
	hi := g.VoxelAt(r3.Add(r3.Vec{X: 0.01, Y: 0.01, Z: 0.01}, d3.Elem(extent)))
	n := hi.Sub(lo).AddScalar(1)
	if len(inner) != n[0]*n[1]*n[2] {
		t.Errorf("gathered %d voxels, want %d", len(inner), n[0]*n[1]*n[2])
	}
	// Far from the mesh nothing is gathered.
	if got := Gather(g, r3.Vec{X: 50}, extent, nil); len(got) != 0 {
		t.Errorf("gathered %d voxels far away", len(got))
	}
	for _, p := range inner {
		if !g.Occupied(g.VoxelAt(p)) {
			t.Fatalf("gathered unoccupied voxel at %v", p)
		}
	}
}
