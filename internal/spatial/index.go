// Package spatial provides a k-d tree index of indexed points.
package spatial

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

var _ kdtree.Interface = points{}

// Index answers nearest neighbor and radius queries over points
// identified by an integer.
type Index struct {
	tree *kdtree.Tree
}

// NewIndex returns an Index of positions, each identified by its position
// in the slice.
func NewIndex(positions []r3.Vec) *Index {
	pts := make(points, len(positions))
	for i, p := range positions {
		pts[i] = point{Vec: p, index: i}
	}
	return &Index{tree: kdtree.New(pts, false)}
}

// Insert adds p to the index identified by index. The tree is not rebalanced.
func (ix *Index) Insert(p r3.Vec, index int) {
	ix.tree.Insert(point{Vec: p, index: index}, false)
}

// Len returns the number of indexed points.
func (ix *Index) Len() int { return ix.tree.Len() }

// Nearest returns the identifier of the point nearest to p and its
// distance. ok is false if the index is empty.
func (ix *Index) Nearest(p r3.Vec) (index int, dist float64, ok bool) {
	c, d2 := ix.tree.Nearest(point{Vec: p})
	if c == nil {
		return -1, math.Inf(1), false
	}
	return c.(point).index, math.Sqrt(d2), true
}

// Within returns the identifiers of the points at distance radius or less
// of p, in increasing order.
func (ix *Index) Within(p r3.Vec, radius float64) []int {
	keep := kdtree.NewDistKeeper(radius * radius)
	ix.tree.NearestSet(keep, point{Vec: p})
	var found []int
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		found = append(found, c.Comparable.(point).index)
	}
	sort.Ints(found)
	return found
}

type point struct {
	r3.Vec
	index int
}

// Compare returns the signed distance of a from the plane passing through
// b and perpendicular to the dimension d.
func (a point) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return comp(a.Vec, b.(point).Vec, int(d))
}

// Dims returns the number of dimensions described in the Comparable.
func (a point) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between the receiver and
// the parameter.
func (a point) Distance(b kdtree.Comparable) float64 {
	return r3.Norm2(r3.Sub(a.Vec, b.(point).Vec))
}

// c = a.dim - b.dim
func comp(a, b r3.Vec, dim int) float64 {
	switch dim {
	case 0:
		return a.X - b.X
	case 1:
		return a.Y - b.Y
	}
	return a.Z - b.Z
}

type points []point

func (p points) Index(i int) kdtree.Comparable { return p[i] }

// Len returns the length of the list.
func (p points) Len() int { return len(p) }

// Pivot partitions the list based on the dimension specified.
func (p points) Pivot(d kdtree.Dim) int {
	pl := plane{dim: int(d), points: p}
	return kdtree.Partition(pl, kdtree.MedianOfMedians(pl))
}

// Slice returns a slice of the list using zero-based half
// open indexing equivalent to built-in slice indexing.
func (p points) Slice(start, end int) kdtree.Interface { return p[start:end] }

type plane struct {
	dim    int
	points points
}

func (p plane) Less(i, j int) bool {
	return comp(p.points[i].Vec, p.points[j].Vec, p.dim) < 0
}
func (p plane) Swap(i, j int) {
	p.points[i], p.points[j] = p.points[j], p.points[i]
}
func (p plane) Len() int { return len(p.points) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.points = p.points[start:end]
	return p
}
