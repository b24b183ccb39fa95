package cluster

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/graph/coloring"
	"gonum.org/v1/gonum/graph/simple"
)

// Colorize assigns every cluster a color such that clusters sharing a
// particle never share a color. Clusters are colored greedily in index
// order with the lowest color unused by their already colored neighbors.
func Colorize(c *Clusters) []int {
	g := adjacency(c)
	colors := make([]int, c.Len())
	var used []bool
	for i := range colors {
		used = used[:0]
		neighbors := g.From(int64(i))
		for neighbors.Next() {
			j := int(neighbors.Node().ID())
			if j >= i {
				continue
			}
			for len(used) <= colors[j] {
				used = append(used, false)
			}
			used[colors[j]] = true
		}
		color := 0
		for color < len(used) && used[color] {
			color++
		}
		colors[i] = color
	}
	return colors
}

// adjacency returns the graph with one node per cluster and an edge between
// every pair of clusters sharing a particle.
func adjacency(c *Clusters) *simple.UndirectedGraph {
	g := simple.NewUndirectedGraph()
	owners := make(map[int][]int)
	for i := 0; i < c.Len(); i++ {
		g.AddNode(simple.Node(i))
		for _, p := range c.At(i) {
			own := owners[p]
			if len(own) > 0 && own[len(own)-1] == i {
				continue
			}
			owners[p] = append(own, i)
		}
	}
	for _, own := range owners {
		for a := 0; a < len(own); a++ {
			for b := a + 1; b < len(own); b++ {
				if !g.HasEdgeBetween(int64(own[a]), int64(own[b])) {
					g.SetEdge(simple.Edge{F: simple.Node(own[a]), T: simple.Node(own[b])})
				}
			}
		}
	}
	return g
}

// Batches groups cluster indices by color. Batch k holds the clusters of
// color k in ascending order.
func Batches(colors []int) [][]int {
	byID := make(map[int64]int, len(colors))
	ncolors := 0
	for i, color := range colors {
		byID[int64(i)] = color
		ncolors = max(ncolors, color+1)
	}
	batches := make([][]int, ncolors)
	for color, ids := range coloring.Sets(byID) {
		batch := make([]int, len(ids))
		for i, id := range ids {
			batch[i] = int(id)
		}
		batches[color] = batch
	}
	return batches
}

// Validate returns an error if two clusters of the same color share a
// particle.
func Validate(c *Clusters, colors []int) error {
	if len(colors) != c.Len() {
		return fmt.Errorf("got %d colors for %d clusters", len(colors), c.Len())
	}
	type key struct{ color, particle int }
	seen := make(map[key]int)
	for i := 0; i < c.Len(); i++ {
		particles := slices.Clone(c.At(i))
		slices.Sort(particles)
		for _, p := range slices.Compact(particles) {
			k := key{colors[i], p}
			if j, ok := seen[k]; ok {
				return fmt.Errorf("clusters %d and %d share particle %d in color %d", j, i, p, colors[i])
			}
			seen[k] = i
		}
	}
	return nil
}
