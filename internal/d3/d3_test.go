package d3

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestClosestOnTriangle(t *testing.T) {
	tri := r3.Triangle{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}}
	for _, test := range []struct {
		p, want r3.Vec
	}{
		{p: r3.Vec{X: 0.25, Y: 0.25, Z: 1}, want: r3.Vec{X: 0.25, Y: 0.25}},
		{p: r3.Vec{X: -1, Y: -1, Z: 0}, want: r3.Vec{}},
		{p: r3.Vec{X: 2, Y: -0.5, Z: 0}, want: r3.Vec{X: 1}},
		{p: r3.Vec{X: 0.5, Y: -1, Z: 3}, want: r3.Vec{X: 0.5}},
		{p: r3.Vec{X: 1, Y: 1, Z: 0}, want: r3.Vec{X: 0.5, Y: 0.5}},
		{p: r3.Vec{X: -2, Y: 0.5, Z: 0}, want: r3.Vec{Y: 0.5}},
	} {
		got := ClosestOnTriangle(tri, test.p)
		if !EqualWithin(got, test.want, 1e-12) {
			t.Errorf("closest to %v: got %v, want %v", test.p, got, test.want)
		}
	}
}

func TestClosestOnDegenerateTriangle(t *testing.T) {
	tri := r3.Triangle{{X: 0}, {X: 1}, {X: 2}}
	got := ClosestOnTriangle(tri, r3.Vec{X: 1.5, Y: 1})
	if !EqualWithin(got, r3.Vec{X: 1.5}, 1e-12) {
		t.Errorf("got %v", got)
	}
}

func TestRotationFromBasis(t *testing.T) {
	for _, q := range []r3.Rotation{
		Identity,
		r3.NewRotation(math.Pi/3, r3.Vec{X: 1, Y: 2, Z: 3}),
		r3.NewRotation(math.Pi, r3.Vec{Y: 1}),
		r3.NewRotation(-2.5, r3.Vec{X: -1, Z: 1}),
	} {
		x := q.Rotate(r3.Vec{X: 1})
		y := q.Rotate(r3.Vec{Y: 1})
		z := q.Rotate(r3.Vec{Z: 1})
		got := RotationFromBasis(x, y, z)
		p := r3.Vec{X: 0.3, Y: -1.2, Z: 2}
		if !EqualWithin(got.Rotate(p), q.Rotate(p), 1e-9) {
			t.Errorf("rotation %v: got %v", q, got)
		}
	}
}

func TestComposeTransform(t *testing.T) {
	q := r3.NewRotation(math.Pi/2, r3.Vec{Z: 1})
	tf := ComposeTransform(r3.Vec{X: 1}, r3.Vec{X: 2, Y: 1, Z: 1}, q)
	got := tf.Transform(r3.Vec{X: 1})
	if !EqualWithin(got, r3.Vec{X: 1, Y: 2}, 1e-12) {
		t.Errorf("got %v", got)
	}
	if !(Transform{}).IsIdentity() || !ComposeTransform(r3.Vec{}, Elem(1), Identity).IsIdentity() {
		t.Error("expected identity")
	}
	// Normals of a plane stretched along X keep pointing along the plane normal.
	n := NormalTransform(r3.Vec{X: 4, Y: 1, Z: 1}, Identity).Direction(r3.Vec{X: 1, Y: 1})
	n = r3.Unit(n)
	tangent := ComposeTransform(r3.Vec{}, r3.Vec{X: 4, Y: 1, Z: 1}, Identity).Direction(r3.Vec{X: 1, Y: -1})
	if math.Abs(r3.Dot(n, tangent)) > 1e-12 {
		t.Errorf("normal %v not orthogonal to tangent %v", n, tangent)
	}
}
