package export

import (
	"image"
	"image/png"
	"io"

	"github.com/fogleman/fauxgl"
	"github.com/nfnt/resize"
	"github.com/soypat/softbody"
	"github.com/soypat/softbody/internal/d3"
	"github.com/soypat/softbody/meshio"
	"gonum.org/v1/gonum/spatial/r3"
)

// View is the camera of a preview render.
type View struct {
	Width, Height int
	// Supersampling renders at this multiple of the size and downsamples.
	Supersampling int
	Up            r3.Vec
	Eye           r3.Vec
	LookAt        r3.Vec
	Near, Far     float64
	// Color is a hex color string, such as "#468966".
	Color      string
	Background string
}

// DefaultView returns an isometric view of a model scaled into the bi-unit cube.
func DefaultView() View {
	return View{
		Width:         512,
		Height:        512,
		Supersampling: 2,
		Up:            r3.Vec{Z: 1},
		Eye:           d3.Elem(2.4),
		Near:          1,
		Far:           10,
		Color:         "#468966",
		Background:    "#FFF8E3",
	}
}

// Preview renders m with Phong shading. The mesh is scaled to fit the
// bi-unit cube centered at the origin.
func Preview(m *softbody.Mesh, view View) image.Image {
	const fovy = 30 // vertical field of view in degrees
	scale := max(view.Supersampling, 1)
	mesh := meshio.ToFauxgl(m)
	var (
		eye    = fauxgl.V(view.Eye.X, view.Eye.Y, view.Eye.Z)
		center = fauxgl.V(view.LookAt.X, view.LookAt.Y, view.LookAt.Z)
		up     = fauxgl.V(view.Up.X, view.Up.Y, view.Up.Z)
		light  = fauxgl.V(-0.75, 1, 0.25).Normalize()
	)
	mesh.BiUnitCube()
	context := fauxgl.NewContext(view.Width*scale, view.Height*scale)
	context.ClearColorBufferWith(fauxgl.HexColor(view.Background))
	aspect := float64(view.Width) / float64(view.Height)
	matrix := fauxgl.LookAt(eye, center, up).Perspective(fovy, aspect, view.Near, view.Far)
	shader := fauxgl.NewPhongShader(matrix, light, eye)
	shader.ObjectColor = fauxgl.HexColor(view.Color)
	context.Shader = shader
	context.DrawMesh(mesh)
	img := context.Image()
	if scale > 1 {
		img = resize.Resize(uint(view.Width), uint(view.Height), img, resize.Bilinear)
	}
	return img
}

// WritePNG renders m and encodes the preview to w as PNG.
func WritePNG(w io.Writer, m *softbody.Mesh, view View) error {
	return png.Encode(w, Preview(m, view))
}
