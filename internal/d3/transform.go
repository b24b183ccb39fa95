package d3

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Transform is an affine 3D transformation in row major form.
// The zero value of Transform is the identity transform.
type Transform struct {
	// diagonal elements are stored with the identity subtracted
	// so that Transform{} is the identity:
	//  d00 = x00-1, d11 = x11-1, d22 = x22-1
	d00, x01, x02, x03 float64
	x10, d11, x12, x13 float64
	x20, x21, d22, x23 float64
}

// Transform applies the Transform to the point v and returns the result.
func (t Transform) Transform(v r3.Vec) r3.Vec {
	return r3.Add(t.Direction(v), r3.Vec{X: t.x03, Y: t.x13, Z: t.x23})
}

// Direction applies the linear part of the Transform to v, ignoring translation.
func (t Transform) Direction(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: (t.d00+1)*v.X + t.x01*v.Y + t.x02*v.Z,
		Y: t.x10*v.X + (t.d11+1)*v.Y + t.x12*v.Z,
		Z: t.x20*v.X + t.x21*v.Y + (t.d22+1)*v.Z,
	}
}

// IsIdentity reports whether t leaves every point unchanged.
func (t Transform) IsIdentity() bool { return t == Transform{} }

// ComposeTransform creates a new transform for a given translation to
// position, scaling vector scale and quaternion rotation. Scale is applied
// first, then rotation, then translation. The identity Transform is
//  ComposeTransform(Vec{}, Vec{1,1,1}, Rotation{Real: 1})
func ComposeTransform(position, scale r3.Vec, q r3.Rotation) Transform {
	x2 := q.Imag + q.Imag
	y2 := q.Jmag + q.Jmag
	z2 := q.Kmag + q.Kmag
	xx := q.Imag * x2
	yy := q.Jmag * y2
	zz := q.Kmag * z2
	xy := q.Imag * y2
	xz := q.Imag * z2
	yz := q.Jmag * z2
	wx := q.Real * x2
	wy := q.Real * y2
	wz := q.Real * z2

	var t Transform
	t.d00 = (1-(yy+zz))*scale.X - 1
	t.x10 = (xy + wz) * scale.X
	t.x20 = (xz - wy) * scale.X

	t.x01 = (xy - wz) * scale.Y
	t.d11 = (1-(xx+zz))*scale.Y - 1
	t.x21 = (yz + wx) * scale.Y

	t.x02 = (xz + wy) * scale.Z
	t.x12 = (yz - wx) * scale.Z
	t.d22 = (1-(xx+yy))*scale.Z - 1

	t.x03 = position.X
	t.x13 = position.Y
	t.x23 = position.Z
	return t
}

// NormalTransform returns the transform that maps surface normals of a
// mesh transformed by ComposeTransform(_, scale, q). Its result must be
// normalized by the caller.
func NormalTransform(scale r3.Vec, q r3.Rotation) Transform {
	return ComposeTransform(r3.Vec{}, DivElem(Elem(1), scale), q)
}
