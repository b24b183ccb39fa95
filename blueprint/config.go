package blueprint

import (
	"errors"
	"fmt"

	"github.com/soypat/softbody/internal/d3"
	"github.com/soypat/softbody/sample"
	"gonum.org/v1/gonum/spatial/r3"
)

// SurfaceSampling selects how particles are placed on the mesh surface.
type SurfaceSampling uint8

const (
	SurfaceNone SurfaceSampling = iota
	// SurfaceVertices places a particle on every mesh vertex, skipping
	// vertices too close to an existing particle.
	SurfaceVertices
	// SurfaceVoxels places a particle on every boundary voxel of the
	// surface grid, then projects it onto the mesh.
	SurfaceVoxels
)

// VolumeSampling selects how particles are placed inside the mesh.
type VolumeSampling uint8

const (
	VolumeNone VolumeSampling = iota
	// VolumeVoxels places a particle on every inside voxel of the volume grid.
	VolumeVoxels
)

var (
	surfaceNames = [...]string{SurfaceNone: "none", SurfaceVertices: "vertices", SurfaceVoxels: "voxels"}
	volumeNames  = [...]string{VolumeNone: "none", VolumeVoxels: "voxels"}
)

func (s SurfaceSampling) String() string {
	if int(s) < len(surfaceNames) {
		return surfaceNames[s]
	}
	return fmt.Sprintf("SurfaceSampling(%d)", s)
}

func (s SurfaceSampling) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SurfaceSampling) UnmarshalText(text []byte) error {
	for i, name := range surfaceNames {
		if name == string(text) {
			*s = SurfaceSampling(i)
			return nil
		}
	}
	return fmt.Errorf("unknown surface sampling %q", text)
}

func (v VolumeSampling) String() string {
	if int(v) < len(volumeNames) {
		return volumeNames[v]
	}
	return fmt.Sprintf("VolumeSampling(%d)", v)
}

func (v VolumeSampling) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

func (v *VolumeSampling) UnmarshalText(text []byte) error {
	for i, name := range volumeNames {
		if name == string(text) {
			*v = VolumeSampling(i)
			return nil
		}
	}
	return fmt.Errorf("unknown volume sampling %q", text)
}

const (
	minResolution = 2
	maxResolution = 128
)

// Config controls how a blueprint is baked.
type Config struct {
	SurfaceSampling   SurfaceSampling `toml:"surface_sampling" yaml:"surface_sampling"`
	SurfaceResolution int             `toml:"surface_resolution" yaml:"surface_resolution"`
	VolumeSampling    VolumeSampling  `toml:"volume_sampling" yaml:"volume_sampling"`
	VolumeResolution  int             `toml:"volume_resolution" yaml:"volume_resolution"`
	// ShapeResolution is the resolution of the grid used for geodesic
	// distances and particle shapes.
	ShapeResolution int `toml:"shape_resolution" yaml:"shape_resolution"`
	// MaxAnisotropy is the largest ratio between a particle's longest
	// and shortest radius, in [1, 5].
	MaxAnisotropy float64 `toml:"max_anisotropy" yaml:"max_anisotropy"`
	// Smoothing moves particles towards the centroid of their
	// neighborhood, in [0, 1].
	Smoothing float64 `toml:"smoothing" yaml:"smoothing"`

	// Scale and Rotation bring the input mesh into blueprint space.
	Scale    r3.Vec      `toml:"scale" yaml:"scale"`
	Rotation r3.Rotation `toml:"rotation" yaml:"rotation"`

	// Skeleton is optional. Joint positions are in blueprint space
	// before BoneRotation is applied.
	Skeleton     *sample.Joint `toml:"skeleton" yaml:"skeleton"`
	BoneRotation r3.Rotation  `toml:"bone_rotation" yaml:"bone_rotation"`
}

// DefaultConfig returns the default bake configuration.
func DefaultConfig() Config {
	return Config{
		SurfaceSampling:   SurfaceVoxels,
		SurfaceResolution: 16,
		VolumeSampling:    VolumeNone,
		VolumeResolution:  16,
		ShapeResolution:   48,
		MaxAnisotropy:     3,
		Smoothing:         0.25,
		Scale:             r3.Vec{X: 1, Y: 1, Z: 1},
		Rotation:          d3.Identity,
		BoneRotation:      d3.Identity,
	}
}

var errBadConfig = errors.New("invalid config")

// Validate checks every field is in range.
func (c Config) Validate() error {
	res := []struct {
		name string
		v    int
	}{
		{"surface resolution", c.SurfaceResolution},
		{"volume resolution", c.VolumeResolution},
		{"shape resolution", c.ShapeResolution},
	}
	for _, r := range res {
		if r.v < minResolution || r.v > maxResolution {
			return fmt.Errorf("%w: %s %d not in [%d, %d]", errBadConfig, r.name, r.v, minResolution, maxResolution)
		}
	}
	switch {
	case int(c.SurfaceSampling) >= len(surfaceNames):
		return fmt.Errorf("%w: %v", errBadConfig, c.SurfaceSampling)
	case int(c.VolumeSampling) >= len(volumeNames):
		return fmt.Errorf("%w: %v", errBadConfig, c.VolumeSampling)
	case !(c.MaxAnisotropy >= 1 && c.MaxAnisotropy <= 5):
		return fmt.Errorf("%w: max anisotropy %g not in [1, 5]", errBadConfig, c.MaxAnisotropy)
	case !(c.Smoothing >= 0 && c.Smoothing <= 1):
		return fmt.Errorf("%w: smoothing %g not in [0, 1]", errBadConfig, c.Smoothing)
	case !d3.IsFinite(c.Scale) || c.Scale.X == 0 || c.Scale.Y == 0 || c.Scale.Z == 0:
		return fmt.Errorf("%w: scale %v", errBadConfig, c.Scale)
	}
	for _, b := range c.Skeleton.Walk() {
		if !d3.IsFinite(b.Position) {
			return fmt.Errorf("%w: bone %q position %v", errBadConfig, b.Name, b.Position)
		}
	}
	return nil
}
