// Package sample generates candidate particles from voxel grids, mesh
// vertices and skeletons.
package sample

import (
	"github.com/soypat/softbody/internal/spatial"
	"github.com/soypat/softbody/stage"
	"github.com/soypat/softbody/voxel"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	voxelsPerStep   = 1000
	verticesPerStep = 100
)

// Set accumulates sampled particles. Every Sample method appends to
// the set when its Stepper runs.
type Set struct {
	Particles []Particle
	Groups    []Group
	// Normal, if not nil, returns the normal of voxel sampled particles.
	Normal func(p r3.Vec) r3.Vec
}

// Len returns the number of sampled particles.
func (s *Set) Len() int { return len(s.Particles) }

// Positions returns the positions of the sampled particles.
func (s *Set) Positions() []r3.Vec {
	pos := make([]r3.Vec, len(s.Particles))
	for i, p := range s.Particles {
		pos[i] = p.Position
	}
	return pos
}

// Types returns the types of the sampled particles.
func (s *Set) Types() []ParticleType {
	types := make([]ParticleType, len(s.Particles))
	for i, p := range s.Particles {
		types[i] = p.Type
	}
	return types
}

// SampleVoxels adds a particle of type typ at the center of every voxel
// of g in state.
func (s *Set) SampleVoxels(g *voxel.Grid, state voxel.State, typ ParticleType) stage.Stepper {
	return stage.Loop("sampling voxels...", g.Count(), voxelsPerStep, func(i int) error {
		c := g.Coord(i)
		if g.At(c) != state {
			return nil
		}
		p := Particle{Position: g.Center(c), Type: typ}
		if s.Normal != nil {
			p.Normal = s.Normal(p.Position)
		}
		s.Particles = append(s.Particles, p)
		return nil
	})
}

// SampleVertices adds a Surface particle at every vertex farther than
// minDistance from all particles already in the set. Vertices are
// considered in order so the first of two close vertices is kept.
// normals may be nil.
func (s *Set) SampleVertices(vertices, normals []r3.Vec, minDistance float64) stage.Stepper {
	var index *spatial.Index
	return stage.Sequence(
		stage.Do("sampling surface...", func() error {
			index = spatial.NewIndex(s.Positions())
			return nil
		}),
		stage.Loop("sampling surface...", len(vertices), verticesPerStep, func(i int) error {
			v := vertices[i]
			if _, d, ok := index.Nearest(v); ok && d < minDistance {
				return nil
			}
			p := Particle{Position: v, Type: Surface}
			if normals != nil {
				p.Normal = normals[i]
			}
			index.Insert(v, len(s.Particles))
			s.Particles = append(s.Particles, p)
			return nil
		}),
	)
}

// MapVerticesToParticles returns for every vertex the index of the
// nearest particle. Ties go to the lowest particle index. Vertices map
// to -1 when there are no particles.
func MapVerticesToParticles(vertices, particles []r3.Vec) []int {
	m := make([]int, len(vertices))
	index := spatial.NewIndex(particles)
	for i, v := range vertices {
		m[i] = -1
		nearest, d, ok := index.Nearest(v)
		if !ok {
			continue
		}
		m[i] = nearest
		for _, j := range index.Within(v, d) {
			if j < m[i] && r3.Norm(r3.Sub(particles[j], v)) == d {
				m[i] = j
			}
		}
	}
	return m
}
