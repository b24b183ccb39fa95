package voxel

import (
	"math"

	"github.com/soypat/softbody"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/spatial/r3"
)

// PathFinder searches shortest walks between the occupied voxels of a grid.
// Two occupied voxels are adjacent when they share a face, an edge or a
// vertex, and walking between them costs the distance between their centers.
//
// PathFinder implements graph.Graph with voxel indices as node IDs.
type PathFinder struct {
	grid *Grid
}

// Path is the result of a path search.
type Path struct {
	// Distance is the summed length of the walk, +Inf when unreachable.
	Distance float64
	// Voxels visited from start to end, inclusive.
	Voxels []softbody.V3i
}

// Reachable reports whether the path search found a walk.
func (p Path) Reachable() bool { return !math.IsInf(p.Distance, 1) }

var (
	_ graph.Graph   = (*PathFinder)(nil)
	_ path.Weighted = (*PathFinder)(nil)
)

// NewPathFinder returns a PathFinder over the occupied voxels of g.
func NewPathFinder(g *Grid) *PathFinder {
	return &PathFinder{grid: g}
}

// FindPath returns the shortest walk through occupied voxels from start to
// end. Outside or disconnected endpoints yield an unreachable Path.
func (pf *PathFinder) FindPath(start, end softbody.V3i) Path {
	return pf.search(pf, start, end)
}

// FindPathWithin is like FindPath but only walks through voxels whose
// centers lie within maxDistance of the start voxel's center. Walks longer
// than maxDistance may still be returned.
func (pf *PathFinder) FindPathWithin(start, end softbody.V3i, maxDistance float64) Path {
	if !pf.grid.Exists(start) {
		return unreachable()
	}
	return pf.search(&ball{
		PathFinder: pf,
		center:     pf.grid.Center(start),
		radius2:    maxDistance * maxDistance,
	}, start, end)
}

func (pf *PathFinder) search(g interface {
	graph.Graph
	path.Weighted
}, start, end softbody.V3i) Path {
	grid := pf.grid
	if !grid.Occupied(start) || !grid.Occupied(end) {
		return unreachable()
	}
	s := simple.Node(grid.Index(start))
	t := simple.Node(grid.Index(end))
	shortest, _ := path.AStar(s, t, g, pf.heuristic)
	nodes, w := shortest.To(t.ID())
	if math.IsInf(w, 1) {
		return unreachable()
	}
	p := Path{Distance: w, Voxels: make([]softbody.V3i, len(nodes))}
	for i, n := range nodes {
		p.Voxels[i] = grid.Coord(int(n.ID()))
	}
	return p
}

func unreachable() Path { return Path{Distance: math.Inf(1)} }

// heuristic is the straight line distance between voxel centers.
func (pf *PathFinder) heuristic(x, y graph.Node) float64 {
	g := pf.grid
	return r3.Norm(r3.Sub(g.Center(g.Coord(int(x.ID()))), g.Center(g.Coord(int(y.ID())))))
}

// FindClosestNonEmptyVoxel returns the occupied voxel whose center is
// nearest to voxel c, searching shells of growing radius around c. c
// itself is returned if occupied. Ties go to the lowest voxel index. The
// boolean is false if the grid has no occupied voxel.
func (pf *PathFinder) FindClosestNonEmptyVoxel(c softbody.V3i) (softbody.V3i, bool) {
	g := pf.grid
	if g.Occupied(c) {
		return c, true
	}
	maxR := 0
	for i := range c {
		if d := iabs(c[i]); d > maxR {
			maxR = d
		}
		if d := iabs(c[i] - (g.res[i] - 1)); d > maxR {
			maxR = d
		}
	}
	best, bestD2 := -1, math.MaxInt
	for r := 1; r <= maxR; r++ {
		if best >= 0 && r*r > bestD2 {
			break // every voxel of this shell is farther than best.
		}
		for dz := -r; dz <= r; dz++ {
			for dy := -r; dy <= r; dy++ {
				onShell := iabs(dz) == r || iabs(dy) == r
				for dx := -r; dx <= r; dx++ {
					if !onShell && iabs(dx) != r {
						dx = r - 1 // skip the shell's interior.
						continue
					}
					off := softbody.V3i{dx, dy, dz}
					n := c.Add(off)
					if !g.Occupied(n) {
						continue
					}
					idx := g.Index(n)
					d2 := off.Norm2()
					if d2 < bestD2 || (d2 == bestD2 && idx < best) {
						best, bestD2 = idx, d2
					}
				}
			}
		}
	}
	if best < 0 {
		return softbody.V3i{}, false
	}
	return g.Coord(best), true
}

// Node returns the node of the occupied voxel with index id or nil.
func (pf *PathFinder) Node(id int64) graph.Node {
	if id < 0 || id >= int64(pf.grid.Count()) || pf.grid.cells[id] == Outside {
		return nil
	}
	return simple.Node(id)
}

// Nodes returns all occupied voxels.
func (pf *PathFinder) Nodes() graph.Nodes {
	var nodes []graph.Node
	for i, s := range pf.grid.cells {
		if s != Outside {
			nodes = append(nodes, simple.Node(i))
		}
	}
	return iterator.NewOrderedNodes(nodes)
}

// From returns the occupied voxels adjacent to voxel id.
func (pf *PathFinder) From(id int64) graph.Nodes {
	return iterator.NewOrderedNodes(pf.neighbors(id, nil))
}

func (pf *PathFinder) neighbors(id int64, keep func(softbody.V3i) bool) []graph.Node {
	if pf.Node(id) == nil {
		return nil
	}
	g := pf.grid
	c := g.Coord(int(id))
	nodes := make([]graph.Node, 0, len(allNeighbors))
	for _, off := range allNeighbors {
		n := c.Add(off)
		if !g.Occupied(n) || (keep != nil && !keep(n)) {
			continue
		}
		nodes = append(nodes, simple.Node(g.Index(n)))
	}
	return nodes
}

// HasEdgeBetween reports whether voxels xid and yid are adjacent.
func (pf *PathFinder) HasEdgeBetween(xid, yid int64) bool {
	_, ok := pf.weight(xid, yid)
	return ok && xid != yid
}

// Edge returns the weighted edge between adjacent voxels or nil.
func (pf *PathFinder) Edge(uid, vid int64) graph.Edge {
	w, ok := pf.weight(uid, vid)
	if !ok || uid == vid {
		return nil
	}
	return simple.WeightedEdge{F: simple.Node(uid), T: simple.Node(vid), W: w}
}

// Weight returns the distance between the centers of adjacent voxels.
func (pf *PathFinder) Weight(xid, yid int64) (w float64, ok bool) {
	return pf.weight(xid, yid)
}

func (pf *PathFinder) weight(xid, yid int64) (float64, bool) {
	if pf.Node(xid) == nil || pf.Node(yid) == nil {
		return math.Inf(1), false
	}
	if xid == yid {
		return 0, true
	}
	g := pf.grid
	d := g.Coord(int(xid)).Sub(g.Coord(int(yid)))
	if d.Chebyshev() != 1 {
		return math.Inf(1), false
	}
	return math.Sqrt(float64(d.Norm2())) * g.size, true
}

// ball restricts a PathFinder to voxels near a center point.
type ball struct {
	*PathFinder
	center  r3.Vec
	radius2 float64
}

func (b *ball) contains(c softbody.V3i) bool {
	return r3.Norm2(r3.Sub(b.grid.Center(c), b.center)) <= b.radius2
}

func (b *ball) Node(id int64) graph.Node {
	n := b.PathFinder.Node(id)
	if n == nil || !b.contains(b.grid.Coord(int(id))) {
		return nil
	}
	return n
}

func (b *ball) From(id int64) graph.Nodes {
	return iterator.NewOrderedNodes(b.neighbors(id, b.contains))
}

func iabs(a int) int {
	if a < 0 {
		return -a
	}
	return a
}
