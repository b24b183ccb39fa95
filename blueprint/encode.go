package blueprint

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image/color"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/soypat/softbody/sample"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	magic   = "SBBP"
	version = 2
)

var errFormat = errors.New("not a blueprint")

// MarshalBinary encodes the blueprint as a zstd compressed little endian
// stream preceded by a magic and version header.
func (bp *Blueprint) MarshalBinary() ([]byte, error) {
	var raw bytes.Buffer
	e := encoder{w: &raw}
	e.write(bp.ParticleRadius)
	n := bp.Len()
	e.write(uint64(n))
	e.write(bp.Positions)
	e.write(bp.RestPositions)
	e.write(bp.Orientations)
	e.write(bp.Radii)
	e.write(bp.InvMasses)
	e.write(bp.InvRotationalMasses)
	e.write(bp.Filters)
	e.write(bp.Colors)
	e.write(bp.Types)
	e.write(uint64(len(bp.Groups)))
	for _, g := range bp.Groups {
		e.str(g.Name)
		e.ints(g.Particles)
	}
	e.ints(bp.VertexToParticle)
	e.ints(bp.Clusters.Particles)
	e.ints(bp.Clusters.Offsets)
	e.ints(bp.ClusterColors)
	e.write(uint64(len(bp.Batches)))
	for _, batch := range bp.Batches {
		e.ints(batch)
	}
	if e.err != nil {
		return nil, e.err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	var out bytes.Buffer
	out.WriteString(magic)
	_ = binary.Write(&out, binary.LittleEndian, uint32(version))
	out.Write(enc.EncodeAll(raw.Bytes(), nil))
	return out.Bytes(), nil
}

// UnmarshalBinary decodes data written by MarshalBinary.
func (bp *Blueprint) UnmarshalBinary(data []byte) error {
	if len(data) < len(magic)+4 || string(data[:len(magic)]) != magic {
		return errFormat
	}
	if v := binary.LittleEndian.Uint32(data[len(magic):]); v != version {
		return fmt.Errorf("%w: version %d", errFormat, v)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return err
	}
	defer dec.Close()
	raw, err := dec.DecodeAll(data[len(magic)+4:], nil)
	if err != nil {
		return err
	}

	d := decoder{r: bytes.NewReader(raw)}
	var out Blueprint
	d.read(&out.ParticleRadius)
	n := d.count()
	out.Positions = make([]r3.Vec, n)
	out.RestPositions = make([]r3.Vec, n)
	out.Orientations = make([]r3.Rotation, n)
	out.Radii = make([]r3.Vec, n)
	out.InvMasses = make([]float64, n)
	out.InvRotationalMasses = make([]float64, n)
	out.Filters = make([]uint32, n)
	out.Colors = make([]color.NRGBA, n)
	out.Types = make([]sample.ParticleType, n)
	d.read(out.Positions)
	d.read(out.RestPositions)
	d.read(out.Orientations)
	d.read(out.Radii)
	d.read(out.InvMasses)
	d.read(out.InvRotationalMasses)
	d.read(out.Filters)
	d.read(out.Colors)
	d.read(out.Types)
	if ng := d.count(); ng > 0 {
		out.Groups = make([]sample.Group, ng)
		for i := range out.Groups {
			out.Groups[i].Name = d.str()
			out.Groups[i].Particles = d.ints()
		}
	}
	out.VertexToParticle = d.ints()
	out.Clusters.Particles = d.ints()
	out.Clusters.Offsets = d.ints()
	out.ClusterColors = d.ints()
	if nb := d.count(); nb > 0 {
		out.Batches = make([][]int, nb)
		for i := range out.Batches {
			out.Batches[i] = d.ints()
		}
	}
	if d.err != nil {
		return fmt.Errorf("%w: %v", errFormat, d.err)
	}
	*bp = out
	return nil
}

type encoder struct {
	w   io.Writer
	err error
}

func (e *encoder) write(v any) {
	if e.err == nil {
		e.err = binary.Write(e.w, binary.LittleEndian, v)
	}
}

func (e *encoder) ints(v []int) {
	wide := make([]int64, len(v))
	for i, x := range v {
		wide[i] = int64(x)
	}
	e.write(uint64(len(v)))
	e.write(wide)
}

func (e *encoder) str(s string) {
	e.write(uint64(len(s)))
	e.write([]byte(s))
}

type decoder struct {
	r   *bytes.Reader
	err error
}

func (d *decoder) read(v any) {
	if d.err == nil {
		d.err = binary.Read(d.r, binary.LittleEndian, v)
	}
}

// count reads a length prefix. Lengths larger than the remaining input
// are reported as errors.
func (d *decoder) count() int {
	var n uint64
	d.read(&n)
	if d.err == nil && n > uint64(d.r.Len()) {
		d.err = io.ErrUnexpectedEOF
	}
	if d.err != nil {
		return 0
	}
	return int(n)
}

func (d *decoder) ints() []int {
	n := d.count()
	if n == 0 {
		return nil
	}
	wide := make([]int64, n)
	d.read(wide)
	v := make([]int, n)
	for i, x := range wide {
		v[i] = int(x)
	}
	return v
}

func (d *decoder) str() string {
	n := d.count()
	b := make([]byte, n)
	d.read(b)
	return string(b)
}
