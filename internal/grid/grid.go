// Package grid provides the immutable spherical mesh that every raster in the
// simulation is defined over.
package grid

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// Arrow is a directed edge between two adjacent vertices.
type Arrow struct {
	From int
	To   int
}

// Grid is a triangulated unit sphere. It is never mutated after New returns,
// so one Grid is shared by reference across every crust and plate.
type Grid struct {
	Pos           []mgl64.Vec3
	Faces         [][3]int
	Neighbors     [][]int // sorted, unique
	NeighborCount []int

	// Arrows are grouped by source vertex: the arrows leaving vertex i are
	// Arrows[ArrowStart[i]:ArrowStart[i+1]].
	Arrows     []Arrow
	ArrowStart []int
	ArrowDir   []mgl64.Vec3 // unit tangent at From, pointing toward To
	ArrowDist  []float64

	AverageDistance float64

	index *Index
}

// New builds a grid from vertex positions and triangle faces. Positions are
// normalized onto the unit sphere.
func New(pos []mgl64.Vec3, faces [][3]int) *Grid {
	n := len(pos)
	g := &Grid{
		Pos:           make([]mgl64.Vec3, n),
		Faces:         faces,
		Neighbors:     make([][]int, n),
		NeighborCount: make([]int, n),
		ArrowStart:    make([]int, n+1),
	}
	for i, p := range pos {
		g.Pos[i] = p.Normalize()
	}

	for _, f := range faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			g.Neighbors[a] = append(g.Neighbors[a], b)
			g.Neighbors[b] = append(g.Neighbors[b], a)
		}
	}
	for i := range g.Neighbors {
		slices.Sort(g.Neighbors[i])
		g.Neighbors[i] = slices.Compact(g.Neighbors[i])
		g.NeighborCount[i] = len(g.Neighbors[i])
	}

	total := 0.0
	for i, nbrs := range g.Neighbors {
		g.ArrowStart[i] = len(g.Arrows)
		for _, j := range nbrs {
			d := g.Pos[j].Sub(g.Pos[i])
			dist := d.Len()
			tangent := d.Sub(g.Pos[i].Mul(d.Dot(g.Pos[i])))
			if l := tangent.Len(); l > 0 {
				tangent = tangent.Mul(1 / l)
			}
			g.Arrows = append(g.Arrows, Arrow{From: i, To: j})
			g.ArrowDir = append(g.ArrowDir, tangent)
			g.ArrowDist = append(g.ArrowDist, dist)
			total += dist
		}
	}
	g.ArrowStart[n] = len(g.Arrows)
	if len(g.Arrows) > 0 {
		g.AverageDistance = total / float64(len(g.Arrows))
	}

	g.index = NewIndex(g.Pos)
	return g
}

// Len returns the number of vertices (cells).
func (g *Grid) Len() int {
	return len(g.Pos)
}

// ArrowsFrom returns the indices into Arrows of every arrow leaving vertex i.
func (g *Grid) ArrowsFrom(i int) (start, end int) {
	return g.ArrowStart[i], g.ArrowStart[i+1]
}

// NearestID returns the vertex closest to p. p need not be normalized.
func (g *Grid) NearestID(p mgl64.Vec3) int {
	if l := p.Len(); l > 0 {
		p = p.Mul(1 / l)
	}
	return g.index.Nearest(p)
}

// NearestIDs writes NearestID(rot * Pos[i]) for every vertex into out.
func (g *Grid) NearestIDs(rot mgl64.Mat3, out []int) []int {
	if out == nil {
		out = make([]int, len(g.Pos))
	}
	for i, p := range g.Pos {
		out[i] = g.NearestID(rot.Mul3x1(p))
	}
	return out
}
