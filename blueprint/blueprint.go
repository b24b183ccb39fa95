// Package blueprint bakes softbody blueprints: particles with anisotropic
// shapes plus shape matching clusters batched for parallel solving.
//
// A Builder runs the whole pipeline as a stage.Stepper:
//
//	b := blueprint.NewBuilder(mesh, blueprint.DefaultConfig(), nil)
//	err := stage.Run(ctx, b, func(p stage.Progress) { ... })
//	bp, err := b.Blueprint()
//
// Build does the same in one call.
package blueprint

import (
	"image/color"

	"github.com/soypat/softbody/cluster"
	"github.com/soypat/softbody/sample"
	"gonum.org/v1/gonum/spatial/r3"
)

// CollideWithEverything is the filter mask of particles colliding with
// every category.
const CollideWithEverything = 0xffff

// MakeFilter returns a collision filter for particles of category
// colliding with the categories set in mask.
func MakeFilter(mask uint16, category int) uint32 {
	return uint32(mask)<<16 | 1<<uint(category&15)
}

// Blueprint is a baked softbody. Particle arrays share indexing.
type Blueprint struct {
	// ParticleRadius is the radius of an isotropic particle.
	ParticleRadius float64

	Positions     []r3.Vec
	RestPositions []r3.Vec
	Orientations  []r3.Rotation
	// Radii are the principal radii of every particle, longest first.
	Radii               []r3.Vec
	InvMasses           []float64
	InvRotationalMasses []float64
	Filters             []uint32
	Colors              []color.NRGBA
	Types               []sample.ParticleType

	// Groups are the particles sampled from each skeleton bone.
	Groups []sample.Group
	// VertexToParticle maps every input mesh vertex to its nearest particle.
	VertexToParticle []int

	// Clusters are the shape matching clusters, center particle first.
	Clusters cluster.Clusters
	// ClusterColors is the batch of every cluster. Clusters of the same
	// color share no particle.
	ClusterColors []int
	// Batches hold the cluster indices of each color, ascending.
	Batches [][]int
}

// Len returns the number of particles.
func (bp *Blueprint) Len() int { return len(bp.Positions) }

func newBlueprint(n int, radius float64) *Blueprint {
	return &Blueprint{
		ParticleRadius:      radius,
		Positions:           make([]r3.Vec, n),
		RestPositions:       make([]r3.Vec, n),
		Orientations:        make([]r3.Rotation, n),
		Radii:               make([]r3.Vec, n),
		InvMasses:           make([]float64, n),
		InvRotationalMasses: make([]float64, n),
		Filters:             make([]uint32, n),
		Colors:              make([]color.NRGBA, n),
		Types:               make([]sample.ParticleType, n),
	}
}
