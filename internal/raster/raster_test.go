package raster

import (
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/lithosphere/internal/grid"
)

func TestLaplacianOfConstantIsZero(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(2)
	f := Fill(make([]float64, g.Len()), 3.5)
	for _, v := range Laplacian(g, f, nil) {
		c.Assert(v, qt.Equals, 0.0)
	}
	out := DiffusionByConstant(g, f, 1, nil, nil)
	for _, v := range out {
		c.Assert(v, qt.Equals, 3.5)
	}
}

func TestDiffusionSmoothsSpike(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(2)
	f := make([]float64, g.Len())
	f[0] = 1
	scratch := make([]float64, g.Len())
	out := make([]float64, g.Len())
	DiffusionByConstant(g, f, 0.5, out, scratch)
	c.Assert(out[0] < 1, qt.IsTrue)
	for _, j := range g.Neighbors[0] {
		c.Assert(out[j] > 0, qt.IsTrue)
	}
}

func TestGradientPointsUphill(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(3)
	// f = z increases toward the north pole.
	f := make([]float64, g.Len())
	for i, p := range g.Pos {
		f[i] = p[2]
	}
	grad := Gradient(g, f, nil)
	north := mgl64.Vec3{0, 0, 1}
	for i, p := range g.Pos {
		if math.Abs(p[2]) > 0.9 {
			continue
		}
		tangentNorth := north.Sub(p.Mul(p[2]))
		c.Assert(grad[i].Dot(tangentNorth) > 0, qt.IsTrue, qt.Commentf("vertex %d", i))
	}
}

func TestAverageDifference(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(1)
	f := make([]float64, g.Len())
	f[0] = 6
	out := AverageDifference(g, f, nil)
	c.Assert(out[0], qt.Equals, 6.0)
	j := g.Neighbors[0][0]
	c.Assert(out[j], qt.Equals, 6.0/float64(g.NeighborCount[j]))
}

func TestMorphology(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(2)
	single := make([]bool, g.Len())
	single[0] = true

	c.Run("dilation adds one ring", func(c *qt.C) {
		d := Dilation(g, single, 1, nil)
		c.Assert(Count(d), qt.Equals, 1+g.NeighborCount[0])
	})

	c.Run("erosion of dilation restores seed", func(c *qt.C) {
		d := Dilation(g, single, 1, nil)
		e := Erosion(g, d, 1, nil)
		c.Assert(e[0], qt.IsTrue)
		c.Assert(Count(e), qt.Equals, 1)
	})

	c.Run("margin and padding", func(c *qt.C) {
		d := Dilation(g, single, 1, nil)
		m := Margin(g, single, 1, nil)
		c.Assert(m[0], qt.IsFalse)
		c.Assert(Count(m), qt.Equals, g.NeighborCount[0])
		p := Padding(g, d, 1, nil)
		c.Assert(p[0], qt.IsFalse)
		c.Assert(Count(p), qt.Equals, g.NeighborCount[0])
	})

	c.Run("aliased output", func(c *qt.C) {
		m := append([]bool(nil), single...)
		Dilation(g, m, 2, m)
		c.Assert(Count(m), qt.Equals, Count(Dilation(g, single, 2, nil)))
	})

	c.Run("opening removes isolated cell", func(c *qt.C) {
		c.Assert(Count(Opening(g, single, 1, nil)), qt.Equals, 0)
	})
}

func TestImageSegmentation(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(3)
	// Two hemispheres spinning in opposite senses.
	field := make([]mgl64.Vec3, g.Len())
	for i, p := range g.Pos {
		if p[2] >= 0 {
			field[i] = mgl64.Vec3{0, 0, 1 + p[2]}
		} else {
			field[i] = mgl64.Vec3{0, 0, -1 + p[2]}
		}
	}
	seg := ImageSegmentation(g, field, 7, 10, 0.5, nil)
	north, south := seg[indexNear(g, 0, 0, 1)], seg[indexNear(g, 0, 0, -1)]
	c.Assert(north, qt.Not(qt.Equals), 0)
	c.Assert(south, qt.Not(qt.Equals), 0)
	c.Assert(north, qt.Not(qt.Equals), south)
	for i, p := range g.Pos {
		switch {
		case p[2] > 0:
			c.Assert(seg[i], qt.Equals, north)
		case p[2] < 0:
			c.Assert(seg[i], qt.Equals, south)
		}
	}

	GuessPlateMap(g, seg, 5)
	for _, id := range seg {
		c.Assert(id, qt.Not(qt.Equals), 0)
	}
}

func TestScratchpad(t *testing.T) {
	c := qt.New(t)
	s := NewScratchpad(8)

	s.Allocate("outer")
	a := s.Float()
	a[0] = 1
	s.Allocate("inner")
	_ = s.Mask()
	s.Release("inner")
	s.Release("outer")
	c.Assert(s.Depth(), qt.Equals, 0)
	c.Assert(s.Allocations(), qt.Equals, 2)

	s.Allocate("again")
	b := s.Float()
	c.Assert(b[0], qt.Equals, 0.0)
	c.Assert(s.Allocations(), qt.Equals, 2)
	s.Release("again")

	c.Assert(func() { s.Release("missing") }, qt.PanicMatches, `scratchpad: release "missing" with no open frame`)
	s.Allocate("x")
	c.Assert(func() { s.Release("y") }, qt.PanicMatches, `scratchpad: release "y" but innermost frame is "x"`)
}

func indexNear(g *grid.Grid, x, y, z float64) int {
	return g.NearestID(mgl64.Vec3{x, y, z})
}
