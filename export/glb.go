package export

import (
	"image/color"
	"io"

	"github.com/chewxy/math32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/soypat/softbody"
	"github.com/soypat/softbody/blueprint"
	"github.com/soypat/softbody/sample"
)

// typeTint multiplies particle colors so particle types are told apart.
var typeTint = map[sample.ParticleType][3]float32{
	sample.Bone:    {1, 0.35, 0.3},
	sample.Volume:  {0.3, 0.5, 1},
	sample.Surface: {1, 1, 1},
}

// WriteGLB writes the particle ellipsoids of bp to w as a binary glTF
// document with one mesh.
func WriteGLB(w io.Writer, bp *blueprint.Blueprint) error {
	m := Ellipsoids(bp)
	colors := make([][4]float32, len(m.Vertices))
	for i := range colors {
		p := i / len(octaVertices)
		colors[i] = tinted(bp.Colors[p], typeTint[bp.Types[p]])
	}
	return encodeGLB(w, m, colors, "Particles")
}

// WriteMeshGLB writes m to w as a binary glTF document in a uniform color.
func WriteMeshGLB(w io.Writer, m *softbody.Mesh, c color.Color) error {
	colors := make([][4]float32, len(m.Vertices))
	for i := range colors {
		colors[i] = tinted(c, [3]float32{1, 1, 1})
	}
	return encodeGLB(w, m, colors, "Mesh")
}

func tinted(c color.Color, tint [3]float32) [4]float32 {
	r, g, b, a := c.RGBA()
	f := func(v uint32) float32 { return float32(v) / 0xffff }
	return [4]float32{f(r) * tint[0], f(g) * tint[1], f(b) * tint[2], f(a)}
}

func encodeGLB(w io.Writer, m *softbody.Mesh, colors [][4]float32, name string) error {
	if m.Normals == nil {
		m.ComputeNormals()
	}
	positions := make([][3]float32, len(m.Vertices))
	normals := make([][3]float32, len(m.Vertices))
	for i, v := range m.Vertices {
		positions[i] = [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
		n := m.Normals[i]
		normals[i] = unit32([3]float32{float32(n.X), float32(n.Y), float32(n.Z)})
	}
	indices := make([]uint32, len(m.Triangles))
	for i, idx := range m.Triangles {
		indices[i] = uint32(idx)
	}
	hasAlpha := false
	for _, c := range colors {
		hasAlpha = hasAlpha || c[3] < 1
	}

	doc := gltf.NewDocument()
	doc.Asset.Generator = "softbody blueprint export"
	posAccessor := modeler.WritePosition(doc, positions)
	normalAccessor := modeler.WriteNormal(doc, normals)
	colorAccessor := modeler.WriteColor(doc, colors)
	indicesAccessor := modeler.WriteIndices(doc, indices)
	prim := &gltf.Primitive{
		Attributes: gltf.PrimitiveAttributes{
			gltf.POSITION: posAccessor,
			gltf.NORMAL:   normalAccessor,
			gltf.COLOR_0:  colorAccessor,
		},
		Indices: gltf.Index(indicesAccessor),
	}
	pbr := &gltf.PBRMetallicRoughness{BaseColorFactor: &[4]float64{1, 1, 1, 1}, MetallicFactor: gltf.Float(0), RoughnessFactor: gltf.Float(1)}
	material := &gltf.Material{PBRMetallicRoughness: pbr}
	if hasAlpha {
		material.AlphaMode = gltf.AlphaBlend
	} else {
		material.AlphaMode = gltf.AlphaOpaque
	}
	doc.Materials = []*gltf.Material{material}
	prim.Material = gltf.Index(0)
	doc.Meshes = []*gltf.Mesh{{Name: name, Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return enc.Encode(doc)
}

// unit32 normalizes n. Zero vectors are returned unchanged.
func unit32(n [3]float32) [3]float32 {
	l := math32.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l == 0 || math32.IsNaN(l) {
		return [3]float32{}
	}
	return [3]float32{n[0] / l, n[1] / l, n[2] / l}
}
