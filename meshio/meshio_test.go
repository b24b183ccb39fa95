package meshio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/soypat/softbody"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestSTLWriteRead(t *testing.T) {
	box := softbody.NewBoxMesh(r3.Vec{X: 1}, r3.Vec{X: 3, Y: 2, Z: 1})
	model, err := ReadAll(NewMeshReader(box))
	if err != nil {
		t.Fatal(err)
	}
	if len(model) != box.TriangleCount() {
		t.Fatalf("read %d triangles, want %d", len(model), box.TriangleCount())
	}
	var b bytes.Buffer
	if err := WriteSTL(&b, model); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 84+50*len(model) {
		t.Fatalf("STL length %d", b.Len())
	}
	got, err := ReadSTL(&b)
	if err != nil {
		t.Fatal(err)
	}
	m := Weld(got)
	if len(m.Vertices) != 8 || m.TriangleCount() != 12 {
		t.Fatalf("welded mesh has %d vertices and %d triangles", len(m.Vertices), m.TriangleCount())
	}
	for i := 0; i < m.TriangleCount(); i++ {
		if m.Triangle(i) != box.Triangle(i) {
			t.Errorf("triangle %d: got %v want %v", i, m.Triangle(i), box.Triangle(i))
		}
	}
	if err := m.Validate(); err != nil {
		t.Error(err)
	}
}

func TestCreateSTLMatchesWriteSTL(t *testing.T) {
	box := softbody.NewBoxMesh(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1})
	path := filepath.Join(t.TempDir(), "box.stl")
	if err := CreateSTL(path, NewMeshReader(box)); err != nil {
		t.Fatal(err)
	}
	bfile, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	model, _ := ReadAll(NewMeshReader(box))
	var b bytes.Buffer
	if err := WriteSTL(&b, model); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b.Bytes(), bfile) {
		t.Fatal("WriteSTL and CreateSTL output mismatch")
	}

	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertices) != 8 || len(m.Normals) != 8 {
		t.Errorf("loaded %d vertices %d normals", len(m.Vertices), len(m.Normals))
	}
}

func TestReadSTLNormalMismatch(t *testing.T) {
	tri := r3.Triangle{{}, {X: 1}, {Y: 1}}
	var b bytes.Buffer
	if err := WriteSTL(&b, []r3.Triangle{tri, tri}); err != nil {
		t.Fatal(err)
	}
	data := b.Bytes()
	// overwrite the first triangle's normal with +X.
	put3F32(data[84:], [3]float32{1, 0, 0})
	got, err := ReadSTL(bytes.NewReader(data))
	if !errors.Is(err, ErrNormalMismatch) {
		t.Fatalf("want normal mismatch, got %v", err)
	}
	if len(got) != 2 || got[0] != tri {
		t.Errorf("got triangles %v", got)
	}

	if _, err := ReadSTL(bytes.NewReader(data[:100])); err == nil {
		t.Error("expected error on truncated STL")
	}
}

func TestLoadOBJ(t *testing.T) {
	const tetra = `v 0 0 0
v 1 0 0
v 0 1 0
v 0 0 1
f 1 3 2
f 1 2 4
f 1 4 3
f 2 3 4
`
	path := filepath.Join(t.TempDir(), "tetra.obj")
	if err := os.WriteFile(path, []byte(tetra), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Vertices) != 4 || m.TriangleCount() != 4 {
		t.Errorf("got %d vertices %d triangles", len(m.Vertices), m.TriangleCount())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "mesh.fbx")); err == nil {
		t.Error("expected unsupported format error")
	}
}

func TestToFauxgl(t *testing.T) {
	box := softbody.NewBoxMesh(r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2})
	fm := ToFauxgl(box)
	if len(fm.Triangles) != 12 {
		t.Fatalf("got %d triangles", len(fm.Triangles))
	}
	bb := fm.BoundingBox()
	if bb.Min.X != -1 || bb.Max.Z != 1 {
		t.Errorf("bounding box %v", bb)
	}
}
