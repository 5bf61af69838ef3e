package grid

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// Index answers nearest-point queries over a fixed set of unit vectors.
// Euclidean nearest on the unit sphere is also the angularly nearest.
type Index struct {
	tree *kdtree.Tree
}

// NewIndex builds a k-d tree over pos. pos is not retained.
func NewIndex(pos []mgl64.Vec3) *Index {
	pts := make(indexedPoints, len(pos))
	for i, p := range pos {
		pts[i] = indexedPoint{Vec3: p, id: i}
	}
	return &Index{tree: kdtree.New(pts, false)}
}

// Nearest returns the index of the point closest to p, or -1 if the index
// is empty.
func (ix *Index) Nearest(p mgl64.Vec3) int {
	if ix.tree.Root == nil {
		return -1
	}
	got, _ := ix.tree.Nearest(indexedPoint{Vec3: p, id: -1})
	return got.(indexedPoint).id
}

type indexedPoint struct {
	mgl64.Vec3
	id int
}

func (p indexedPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.Vec3[d] - c.(indexedPoint).Vec3[d]
}

func (p indexedPoint) Dims() int { return 3 }

func (p indexedPoint) Distance(c kdtree.Comparable) float64 {
	return p.Vec3.Sub(c.(indexedPoint).Vec3).LenSqr()
}

type indexedPoints []indexedPoint

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int                { return plane{Dim: d, indexedPoints: p}.Pivot() }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts points along one dimension for median selection.
type plane struct {
	kdtree.Dim
	indexedPoints
}

func (p plane) Less(i, j int) bool {
	return p.indexedPoints[i].Vec3[p.Dim] < p.indexedPoints[j].Vec3[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	return plane{Dim: p.Dim, indexedPoints: p.indexedPoints[start:end]}
}
func (p plane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}
