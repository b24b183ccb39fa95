package blueprint

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"

	"github.com/soypat/softbody"
	"github.com/soypat/softbody/anisotropy"
	"github.com/soypat/softbody/cluster"
	"github.com/soypat/softbody/internal/d3"
	"github.com/soypat/softbody/sample"
	"github.com/soypat/softbody/stage"
	"github.com/soypat/softbody/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrNotFinished is returned by Builder.Blueprint before the builder has
// run to completion.
var ErrNotFinished = errors.New("blueprint not finished")

const sqrt3 = 1.7320508075688772

// Builder bakes a blueprint one step at a time. It implements stage.Stepper.
type Builder struct {
	input *softbody.Mesh
	cfg   Config
	log   *slog.Logger

	steps stage.Stepper
	msg   string
	err   error
	done  bool

	mesh    *softbody.Mesh
	longest float64
	shape   *voxel.Grid
	surface *voxel.Grid
	volume  *voxel.Grid
	field   *voxel.DistanceField
	paths   *voxel.PathFinder

	particles        sample.Set
	clusters         cluster.Clusters
	vertexToParticle []int
	bp               *Blueprint
}

var _ stage.Stepper = (*Builder)(nil)

// NewBuilder returns a Builder baking m with cfg. m is not modified.
// A nil logger logs to slog.Default().
func NewBuilder(m *softbody.Mesh, cfg Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Builder{input: m, cfg: cfg, log: logger}
	b.steps = stage.Lazy(b.plan)
	return b
}

// Build bakes m with cfg, calling report after every step if not nil.
func Build(ctx context.Context, m *softbody.Mesh, cfg Config, logger *slog.Logger, report func(stage.Progress)) (*Blueprint, error) {
	b := NewBuilder(m, cfg, logger)
	if err := stage.Run(ctx, b, report); err != nil {
		return nil, err
	}
	return b.Blueprint()
}

// Step advances the bake. It returns io.EOF once the blueprint is ready.
func (b *Builder) Step() (stage.Progress, error) {
	if b.err != nil {
		return stage.Progress{}, b.err
	}
	if b.done {
		return stage.Progress{}, io.EOF
	}
	p, err := b.steps.Step()
	switch {
	case err == io.EOF:
		b.done = true
		b.log.Debug("blueprint baked", "particles", b.bp.Len(), "clusters", b.bp.Clusters.Len(), "batches", len(b.bp.Batches))
		return p, err
	case err != nil:
		b.err = err
		return p, err
	}
	if p.Message != b.msg {
		b.msg = p.Message
		b.log.Debug("bake stage", "msg", p.Message)
	}
	return p, nil
}

// Blueprint returns the baked blueprint or ErrNotFinished if the builder
// has not run to completion.
func (b *Builder) Blueprint() (*Blueprint, error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.done {
		return nil, ErrNotFinished
	}
	return b.bp, nil
}

// Grids returns the voxel grids built so far. Unused grids are nil.
func (b *Builder) Grids() (shape, surface, volume *voxel.Grid) {
	return b.shape, b.surface, b.volume
}

// Mesh returns the input mesh in blueprint space, or nil before the first step.
func (b *Builder) Mesh() *softbody.Mesh { return b.mesh }

func (b *Builder) plan() stage.Stepper {
	if err := b.input.Validate(); err != nil {
		err = fmt.Errorf("input mesh: %w", err)
		b.log.Error("cannot bake blueprint", "err", err)
		return stage.Fail(err)
	}
	if err := b.cfg.Validate(); err != nil {
		b.log.Error("cannot bake blueprint", "err", err)
		return stage.Fail(err)
	}
	b.mesh = b.input.Transform(b.cfg.Scale, b.cfg.Rotation)
	b.longest = d3.Box(b.mesh.Bounds()).LongestSide()
	b.particles.Normal = func(p r3.Vec) r3.Vec { return b.field.SampleFiltered(p) }
	b.log.Debug("baking blueprint", "vertices", len(b.mesh.Vertices), "triangles", b.mesh.TriangleCount(),
		"surface", b.cfg.SurfaceSampling, "volume", b.cfg.VolumeSampling, "size", b.longest)

	steps := []stage.Stepper{b.analyzeShape()}
	b.surface = b.newGrid("surface", b.cfg.SurfaceResolution)
	steps = append(steps, b.voxelize(b.surface))
	switch b.cfg.SurfaceSampling {
	case SurfaceVoxels:
		steps = append(steps, b.sampleSurfaceVoxels())
	case SurfaceVertices:
		steps = append(steps, b.sampleSurfaceVertices())
	}
	if b.cfg.VolumeSampling == VolumeVoxels {
		b.volume = b.newGrid("volume", b.cfg.VolumeResolution)
		steps = append(steps, b.voxelize(b.volume), b.sampleVolume())
	}
	if b.cfg.Skeleton != nil {
		steps = append(steps, b.sampleSkeleton())
	}
	steps = append(steps, b.generateParticles(), b.batch())
	return stage.Sequence(steps...)
}

// newGrid returns a grid dividing the longest side of the mesh into
// resolution voxels. Voxels too small for a Grid are logged.
func (b *Builder) newGrid(name string, resolution int) *voxel.Grid {
	size := b.longest / float64(resolution)
	g := voxel.NewGrid(size)
	if g.VoxelSize() != size {
		b.log.Warn("voxel size clamped, mesh is baked at a coarser resolution",
			"grid", name, "size", size, "clamped", g.VoxelSize())
	}
	return g
}

func (b *Builder) voxelize(g *voxel.Grid) stage.Stepper {
	return stage.Sequence(
		g.Voxelize(b.mesh, true),
		stage.Do("thinning boundary...", func() error {
			g.BoundaryThinning()
			return nil
		}),
	)
}

// analyzeShape voxelizes the shape grid and builds its distance field and
// path finder.
func (b *Builder) analyzeShape() stage.Stepper {
	b.shape = b.newGrid("shape", b.cfg.ShapeResolution)
	b.field = voxel.NewDistanceField(b.shape)
	b.paths = voxel.NewPathFinder(b.shape)
	return stage.Sequence(
		b.voxelize(b.shape),
		stage.Lazy(b.field.JumpFlood),
	)
}

func (b *Builder) particleRadius() float64 {
	return sqrt3 * 0.5 * b.surface.VoxelSize()
}

func (b *Builder) voxelPass(g *voxel.Grid, conn cluster.Connectivity, allowed ...sample.TypeSet) cluster.VoxelPass {
	return cluster.VoxelPass{
		Grid:         g,
		Shape:        b.shape,
		Paths:        b.paths,
		Positions:    b.particles.Positions(),
		Types:        b.particles.Types(),
		Connectivity: conn,
		Allowed:      allowed,
	}
}

func (b *Builder) sampleSurfaceVoxels() stage.Stepper {
	return stage.Sequence(
		stage.Lazy(func() stage.Stepper {
			return b.particles.SampleVoxels(b.surface, voxel.Boundary, sample.Surface)
		}),
		stage.Lazy(func() stage.Stepper {
			return b.clusters.FromVoxels(b.voxelPass(b.surface, cluster.Faces|cluster.Edges, sample.Of(sample.Surface)))
		}),
		stage.Do("projecting particles on mesh...", func() error {
			pos := b.particles.Positions()
			sample.ProjectOnMesh(pos, b.surface)
			for i := range pos {
				b.particles.Particles[i].Position = pos[i]
			}
			return nil
		}),
	)
}

func (b *Builder) sampleSurfaceVertices() stage.Stepper {
	return stage.Sequence(
		stage.Lazy(func() stage.Stepper {
			return b.particles.SampleVertices(b.mesh.Vertices, b.mesh.Normals, 1.2*b.particleRadius())
		}),
		stage.Do("mapping vertices to particles...", func() error {
			b.vertexToParticle = sample.MapVerticesToParticles(b.mesh.Vertices, b.particles.Positions())
			return nil
		}),
		stage.Lazy(func() stage.Stepper {
			return b.clusters.FromSurfaceMesh(b.mesh, b.vertexToParticle, b.particles.Len())
		}),
	)
}

func (b *Builder) sampleVolume() stage.Stepper {
	return stage.Sequence(
		stage.Lazy(func() stage.Stepper {
			return b.particles.SampleVoxels(b.volume, voxel.Inside, sample.Volume)
		}),
		stage.Lazy(func() stage.Stepper {
			return b.clusters.FromVoxels(b.voxelPass(b.volume, cluster.Faces, sample.Of(sample.Volume)))
		}),
		stage.Lazy(func() stage.Stepper {
			return b.clusters.FromVoxels(b.voxelPass(b.volume, cluster.All, sample.Of(sample.Volume, sample.Surface)))
		}),
	)
}

func (b *Builder) sampleSkeleton() stage.Stepper {
	res, grid := b.cfg.SurfaceResolution, b.surface
	if b.volume != nil {
		res, grid = b.cfg.VolumeResolution, b.volume
	}
	return stage.Sequence(
		b.particles.SampleSkeleton(b.cfg.Skeleton, b.longest/float64(res), b.cfg.BoneRotation),
		stage.Lazy(func() stage.Stepper {
			return b.clusters.FromSkeleton(b.particles.Positions(), b.particles.Types(), cluster.SkeletonClusterSize(grid.VoxelSize()))
		}),
	)
}

// generateParticles fits every particle's shape to its shape grid
// neighborhood and fills the blueprint particle arrays.
func (b *Builder) generateParticles() stage.Stepper {
	var (
		raw   []r3.Vec
		cloud []r3.Vec
	)
	radius := 0.0
	extent := b.shape.VoxelSize() * sqrt3 * 2
	white := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	filter := MakeFilter(CollideWithEverything, 1)
	return stage.Sequence(
		stage.Do("generating particles...", func() error {
			raw = b.particles.Positions()
			radius = b.particleRadius()
			b.bp = newBlueprint(len(raw), radius)
			return nil
		}),
		stage.Lazy(func() stage.Stepper {
			params := anisotropy.Params{MaxAnisotropy: b.cfg.MaxAnisotropy, Radius: radius}
			return stage.Loop("generating particles...", len(raw), 100, func(i int) error {
				shape := anisotropy.Isotropic(raw[i], radius)
				cloud = anisotropy.Gather(b.shape, raw[i], extent, cloud[:0])
				if fit, ok := anisotropy.Fit(cloud, b.field.SampleFiltered(raw[i]), params); ok {
					shape = fit
				}
				bp := b.bp
				bp.Positions[i] = shape.Blend(raw[i], b.cfg.Smoothing)
				bp.RestPositions[i] = bp.Positions[i]
				bp.Orientations[i] = shape.Orientation
				bp.Radii[i] = shape.Radii
				bp.InvMasses[i] = 1
				bp.InvRotationalMasses[i] = 1
				bp.Filters[i] = filter
				bp.Colors[i] = white
				bp.Types[i] = b.particles.Particles[i].Type
				return nil
			})
		}),
		stage.Do("mapping vertices to particles...", func() error {
			if b.vertexToParticle == nil {
				b.vertexToParticle = sample.MapVerticesToParticles(b.mesh.Vertices, raw)
			}
			b.bp.VertexToParticle = b.vertexToParticle
			b.bp.Groups = b.particles.Groups
			return nil
		}),
	)
}

func (b *Builder) batch() stage.Stepper {
	return stage.Do("batching constraints...", func() error {
		colors := cluster.Colorize(&b.clusters)
		if err := cluster.Validate(&b.clusters, colors); err != nil {
			return fmt.Errorf("batching constraints: %w", err)
		}
		b.bp.Clusters = b.clusters
		b.bp.ClusterColors = colors
		b.bp.Batches = cluster.Batches(colors)
		return nil
	})
}
