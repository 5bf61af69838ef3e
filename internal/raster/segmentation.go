package raster

import (
	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/floats"

	"github.com/talgya/lithosphere/internal/grid"
)

// MagicWand flood-fills from start across eligible cells whose vector is
// within threshold (a cosine) of the start vector. The start cell is always
// selected.
func MagicWand(g *grid.Grid, field []mgl64.Vec3, start int, threshold float64, eligible, out []bool) []bool {
	out = maskOut(out, g.Len())
	for i := range out {
		out[i] = false
	}
	ref := field[start]
	out[start] = true
	queue := []int{start}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		for _, j := range g.Neighbors[i] {
			if out[j] || !eligible[j] {
				continue
			}
			if Similarity(field[j], ref) > threshold {
				out[j] = true
				queue = append(queue, j)
			}
		}
	}
	return out
}

// ImageSegmentation partitions the grid into regions of similar vectors.
// Up to segments seeds are taken in order of decreasing magnitude; a region is
// kept only if it has more than minSize cells. out receives region ids
// starting at 1; 0 marks unassigned cells.
func ImageSegmentation(g *grid.Grid, field []mgl64.Vec3, segments, minSize int, threshold float64, out []int) []int {
	n := g.Len()
	if out == nil {
		out = make([]int, n)
	}
	for i := range out {
		out[i] = 0
	}
	magnitude := Magnitude(field, nil)
	eligible := make([]bool, n)
	for i := range eligible {
		eligible[i] = true
	}
	wand := make([]bool, n)

	id := 1
	for s := 0; s < segments; s++ {
		start := floats.MaxIdx(magnitude)
		if !eligible[start] {
			break
		}
		MagicWand(g, field, start, threshold, eligible, wand)
		keep := Count(wand) > minSize
		for i, in := range wand {
			if !in {
				continue
			}
			if keep {
				out[i] = id
			}
			eligible[i] = false
			magnitude[i] = -1
		}
		if keep {
			id++
		}
	}
	return out
}

// GuessPlateMap grows each region of a segmentation into the unassigned
// cells around it, smoothing ragged borders with a closing of the given
// radius. Regions are processed in id order, so earlier regions claim
// contested cells first.
func GuessPlateMap(g *grid.Grid, segmentation []int, radius int) []int {
	n := g.Len()
	maxID := 0
	for _, id := range segmentation {
		maxID = max(maxID, id)
	}
	segment := make([]bool, n)
	occupied := make([]bool, n)
	plate := make([]bool, n)
	for id := 1; id <= maxID; id++ {
		for i, v := range segmentation {
			segment[i] = v == id
			occupied[i] = v != id && v != 0
		}
		Dilation(g, segment, radius, plate)
		Closing(g, plate, radius, plate)
		Difference(plate, occupied, plate)
		for i, in := range plate {
			if in {
				segmentation[i] = id
			}
		}
	}
	return segmentation
}
