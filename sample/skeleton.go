package sample

import (
	"math"

	"github.com/soypat/softbody/internal/d3"
	"github.com/soypat/softbody/stage"
	"gonum.org/v1/gonum/spatial/r3"
)

// Joint is a node of a skeleton hierarchy. Positions are in blueprint space.
type Joint struct {
	Name     string
	Position r3.Vec
	Children []*Joint
}

// Walk returns the joints of the hierarchy rooted at b in breadth first order.
func (b *Joint) Walk() []*Joint {
	if b == nil {
		return nil
	}
	bones := []*Joint{b}
	for i := 0; i < len(bones); i++ {
		for _, child := range bones[i].Children {
			if child != nil {
				bones = append(bones, child)
			}
		}
	}
	return bones
}

// SampleSkeleton adds Bone particles along the skeleton rooted at root,
// walked breadth first. Every bone gets a particle at its position and
// n-1 evenly spaced particles towards each child, where
// n = 1 + floor(length/spacing). The particles of each bone form a group
// named after it. Positions are rotated by rotation.
func (s *Set) SampleSkeleton(root *Joint, spacing float64, rotation r3.Rotation) stage.Stepper {
	rotation = d3.Canon(rotation)
	bones := root.Walk()
	return stage.Loop("sampling skeleton...", len(bones), 1, func(i int) error {
		bone := bones[i]
		group := Group{Name: bone.Name}
		add := func(p r3.Vec) {
			group.Particles = append(group.Particles, len(s.Particles))
			s.Particles = append(s.Particles, Particle{
				Position: rotation.Rotate(p),
				Normal:   r3.Vec{Z: 1},
				Type:     Bone,
			})
		}
		add(bone.Position)
		for _, child := range bone.Children {
			if child == nil {
				continue
			}
			dir := r3.Sub(child.Position, bone.Position)
			length := r3.Norm(dir)
			if length == 0 || spacing <= 0 {
				continue
			}
			dir = r3.Scale(1/length, dir)
			n := 1 + int(math.Floor(length/spacing))
			step := length / float64(n)
			for j := 1; j < n; j++ {
				add(r3.Add(bone.Position, r3.Scale(step*float64(j), dir)))
			}
		}
		s.Groups = append(s.Groups, group)
		return nil
	})
}
