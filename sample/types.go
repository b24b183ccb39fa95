package sample

import (
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ParticleType tags the origin of a sampled particle.
type ParticleType uint8

const (
	// Bone particles are sampled along a skeleton.
	Bone ParticleType = iota
	// Volume particles are sampled inside the mesh.
	Volume
	// Surface particles are sampled on the mesh surface.
	Surface
	numTypes
)

func (t ParticleType) String() string {
	switch t {
	case Bone:
		return "bone"
	case Volume:
		return "volume"
	case Surface:
		return "surface"
	}
	return "unknown"
}

// TypeSet is a set of particle types. The zero value is the empty set.
// TypeSet values are comparable with ==.
type TypeSet struct {
	has [numTypes]bool
}

// Of returns the set of the given types.
func Of(types ...ParticleType) TypeSet {
	var s TypeSet
	for _, t := range types {
		s.has[t] = true
	}
	return s
}

// Has reports whether t is a member of s.
func (s TypeSet) Has(t ParticleType) bool { return t < numTypes && s.has[t] }

// Union returns the types in s or o.
func (s TypeSet) Union(o TypeSet) TypeSet {
	for i := range s.has {
		s.has[i] = s.has[i] || o.has[i]
	}
	return s
}

// Intersect returns the types in both s and o.
func (s TypeSet) Intersect(o TypeSet) TypeSet {
	for i := range s.has {
		s.has[i] = s.has[i] && o.has[i]
	}
	return s
}

// Equal reports whether s and o hold the same types.
func (s TypeSet) Equal(o TypeSet) bool { return s == o }

// Empty reports whether s has no types.
func (s TypeSet) Empty() bool { return s == TypeSet{} }

func (s TypeSet) String() string {
	var names []string
	for t := ParticleType(0); t < numTypes; t++ {
		if s.has[t] {
			names = append(names, t.String())
		}
	}
	return "{" + strings.Join(names, ", ") + "}"
}

// Particle is a candidate particle produced by sampling.
type Particle struct {
	Position r3.Vec
	Normal   r3.Vec
	Type     ParticleType
}

// Group is a named group of particles, such as those sampled along one bone.
type Group struct {
	Name      string
	Particles []int
}
