package raster

import "github.com/talgya/lithosphere/internal/grid"

func maskOut(out []bool, n int) []bool {
	if out == nil {
		return make([]bool, n)
	}
	return out
}

func aliased(a, b []bool) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}

// Union sets out[i] = a[i] || b[i].
func Union(a, b, out []bool) []bool {
	out = maskOut(out, len(a))
	for i := range out {
		out[i] = a[i] || b[i]
	}
	return out
}

// Intersection sets out[i] = a[i] && b[i].
func Intersection(a, b, out []bool) []bool {
	out = maskOut(out, len(a))
	for i := range out {
		out[i] = a[i] && b[i]
	}
	return out
}

// Difference sets out[i] = a[i] && !b[i].
func Difference(a, b, out []bool) []bool {
	out = maskOut(out, len(a))
	for i := range out {
		out[i] = a[i] && !b[i]
	}
	return out
}

// Negation sets out[i] = !a[i].
func Negation(a, out []bool) []bool {
	out = maskOut(out, len(a))
	for i := range out {
		out[i] = !a[i]
	}
	return out
}

// Count returns the number of set cells.
func Count(a []bool) int {
	n := 0
	for _, v := range a {
		if v {
			n++
		}
	}
	return n
}

// Dilation grows mask by radius rings of neighbors.
func Dilation(g *grid.Grid, mask []bool, radius int, out []bool) []bool {
	return morph(g, mask, radius, out, true)
}

// Erosion shrinks mask by radius rings: a cell survives a ring only if it and
// every neighbor are set.
func Erosion(g *grid.Grid, mask []bool, radius int, out []bool) []bool {
	return morph(g, mask, radius, out, false)
}

// Opening is erosion followed by dilation.
func Opening(g *grid.Grid, mask []bool, radius int, out []bool) []bool {
	out = Erosion(g, mask, radius, out)
	return Dilation(g, out, radius, out)
}

// Closing is dilation followed by erosion.
func Closing(g *grid.Grid, mask []bool, radius int, out []bool) []bool {
	out = Dilation(g, mask, radius, out)
	return Erosion(g, out, radius, out)
}

// Margin returns the ring of cells just outside mask: dilation minus mask.
func Margin(g *grid.Grid, mask []bool, radius int, out []bool) []bool {
	if aliased(mask, out) {
		mask = append([]bool(nil), mask...)
	}
	out = Dilation(g, mask, radius, out)
	return Difference(out, mask, out)
}

// Padding returns the ring of cells just inside mask: mask minus erosion.
func Padding(g *grid.Grid, mask []bool, radius int, out []bool) []bool {
	if aliased(mask, out) {
		mask = append([]bool(nil), mask...)
	}
	out = Erosion(g, mask, radius, out)
	return Difference(mask, out, out)
}

func morph(g *grid.Grid, mask []bool, radius int, out []bool, grow bool) []bool {
	out = maskOut(out, g.Len())
	if radius <= 0 {
		copy(out, mask)
		return out
	}
	src := mask
	if aliased(mask, out) || radius > 1 {
		src = append([]bool(nil), mask...)
	}
	for r := 0; r < radius; r++ {
		for i := range out {
			v := src[i]
			for _, j := range g.Neighbors[i] {
				if grow {
					v = v || src[j]
				} else {
					v = v && src[j]
				}
			}
			out[i] = v
		}
		if r+1 < radius {
			copy(src, out)
		}
	}
	return out
}
