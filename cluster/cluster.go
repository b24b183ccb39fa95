// Package cluster builds shape matching clusters over sampled particles and
// partitions them into batches that can be solved in parallel.
package cluster

import (
	"slices"

	"github.com/soypat/softbody"
	"github.com/soypat/softbody/internal/spatial"
	"github.com/soypat/softbody/sample"
	"github.com/soypat/softbody/stage"
	"github.com/soypat/softbody/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

const sqrt3 = 1.7320508075688772

// Clusters stores shape matching clusters contiguously. The first particle
// of every cluster is its center.
type Clusters struct {
	// Particles holds the particle indices of all clusters back to back.
	Particles []int
	// Offsets[i] is the position in Particles where cluster i starts.
	Offsets []int
}

// Begin starts a new cluster centered on particle center.
func (c *Clusters) Begin(center int) {
	c.Offsets = append(c.Offsets, len(c.Particles))
	c.Particles = append(c.Particles, center)
}

// Add appends particle p to the last cluster.
func (c *Clusters) Add(p int) {
	if len(c.Offsets) == 0 {
		panic("cluster: Add before Begin")
	}
	c.Particles = append(c.Particles, p)
}

// Len returns the number of clusters.
func (c *Clusters) Len() int { return len(c.Offsets) }

// At returns the particles of cluster i, center first.
func (c *Clusters) At(i int) []int {
	end := len(c.Particles)
	if i+1 < len(c.Offsets) {
		end = c.Offsets[i+1]
	}
	return c.Particles[c.Offsets[i]:end]
}

// Center returns the center particle of cluster i.
func (c *Clusters) Center(i int) int { return c.Particles[c.Offsets[i]] }

// Connectivity selects which voxel neighborhoods a cluster may reach into.
type Connectivity uint8

const (
	Faces Connectivity = 1 << iota
	Edges
	Vertices
	All = Faces | Edges | Vertices
)

func (c Connectivity) offsets() []softbody.V3i {
	var off []softbody.V3i
	if c&Faces != 0 {
		off = append(off, voxel.FaceNeighbors...)
	}
	if c&Edges != 0 {
		off = append(off, voxel.EdgeNeighbors...)
	}
	if c&Vertices != 0 {
		off = append(off, voxel.VertexNeighbors...)
	}
	return off
}

// VoxelPass configures a voxel neighborhood clustering pass.
type VoxelPass struct {
	// Grid is the sampling grid particles are binned into. Its voxel size
	// sets the cluster size.
	Grid *voxel.Grid
	// Shape is the grid geodesic distances are measured on and Paths
	// searches it.
	Shape *voxel.Grid
	Paths *voxel.PathFinder

	Positions []r3.Vec
	Types     []sample.ParticleType

	Connectivity Connectivity
	// Allowed lists the type sets a center and neighbor pair may form.
	Allowed []sample.TypeSet
}

func (p *VoxelPass) allows(a, b sample.ParticleType) bool {
	pair := sample.Of(a, b)
	for _, s := range p.Allowed {
		if s.Equal(pair) {
			return true
		}
	}
	return false
}

// FromVoxels appends one cluster per particle of the pass. Each cluster
// holds its center plus the particles binned in the selected neighbor voxels
// whose type pair is allowed and whose walk through the shape grid is no
// longer than 1.5*sqrt(3) sampling voxel sizes.
func (c *Clusters) FromVoxels(pass VoxelPass) stage.Stepper {
	n := len(pass.Positions)
	var (
		binned map[int][]int
		// snapped shape grid voxel of every particle.
		snapped   []softbody.V3i
		reachable []bool
	)
	offsets := pass.Connectivity.offsets()
	clusterSize := 1.5 * sqrt3 * pass.Grid.VoxelSize()
	return stage.Sequence(
		stage.Do("inserting particles into voxels...", func() error {
			binned = make(map[int][]int)
			snapped = make([]softbody.V3i, n)
			reachable = make([]bool, n)
			for i, p := range pass.Positions {
				if v := pass.Grid.VoxelAt(p); pass.Grid.Exists(v) {
					idx := pass.Grid.Index(v)
					binned[idx] = append(binned[idx], i)
				}
				snapped[i], reachable[i] = pass.Paths.FindClosestNonEmptyVoxel(pass.Shape.VoxelAt(p))
			}
			return nil
		}),
		stage.Loop("generating shape matching clusters...", n, 100, func(i int) error {
			c.Begin(i)
			center := pass.Grid.VoxelAt(pass.Positions[i])
			for _, off := range offsets {
				v := center.Add(off)
				if !pass.Grid.Exists(v) {
					continue
				}
				for _, j := range binned[pass.Grid.Index(v)] {
					if !pass.allows(pass.Types[i], pass.Types[j]) || !reachable[i] || !reachable[j] {
						continue
					}
					path := pass.Paths.FindPathWithin(snapped[i], snapped[j], clusterSize)
					if path.Distance <= clusterSize {
						c.Add(j)
					}
				}
			}
			return nil
		}),
	)
}

// FromSkeleton appends one cluster per Bone particle holding every non Bone
// particle within clusterSize/2 of it.
func (c *Clusters) FromSkeleton(positions []r3.Vec, types []sample.ParticleType, clusterSize float64) stage.Stepper {
	var (
		index *spatial.Index
		ids   []int
	)
	return stage.Sequence(
		stage.Do("indexing particles...", func() error {
			var pos []r3.Vec
			for i, p := range positions {
				if types[i] != sample.Bone {
					pos = append(pos, p)
					ids = append(ids, i)
				}
			}
			index = spatial.NewIndex(pos)
			return nil
		}),
		stage.Loop("generating shape matching clusters...", len(positions), 100, func(i int) error {
			if types[i] != sample.Bone {
				return nil
			}
			c.Begin(i)
			for _, j := range index.Within(positions[i], 0.5*clusterSize) {
				c.Add(ids[j])
			}
			return nil
		}),
	)
}

// FromSurfaceMesh appends one cluster per particle in [0, particles) holding
// the particle and every other particle it shares a mesh edge with, in
// ascending order. vertexToParticle maps mesh vertices to particles.
func (c *Clusters) FromSurfaceMesh(m *softbody.Mesh, vertexToParticle []int, particles int) stage.Stepper {
	connections := make([][]int, particles)
	link := func(a, b int) {
		if a == b || a < 0 || b < 0 {
			return
		}
		connections[a] = append(connections[a], b)
		connections[b] = append(connections[b], a)
	}
	return stage.Sequence(
		stage.Loop("generating shape matching clusters...", m.TriangleCount(), 100, func(i int) error {
			p1 := vertexToParticle[m.Triangles[3*i]]
			p2 := vertexToParticle[m.Triangles[3*i+1]]
			p3 := vertexToParticle[m.Triangles[3*i+2]]
			link(p1, p2)
			link(p1, p3)
			link(p2, p3)
			return nil
		}),
		stage.Do("generating shape matching clusters...", func() error {
			for i, conn := range connections {
				slices.Sort(conn)
				c.Begin(i)
				for _, p := range slices.Compact(conn) {
					c.Add(p)
				}
			}
			return nil
		}),
	)
}

// SkeletonClusterSize returns the radius of skeleton clusters for a
// sampling grid voxel size.
func SkeletonClusterSize(voxelSize float64) float64 {
	return 1.5 * sqrt3 * voxelSize
}
