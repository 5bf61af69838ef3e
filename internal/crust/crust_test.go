package crust

import (
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestPoolViews(t *testing.T) {
	c := qt.New(t)
	cr := New(4)
	c.Assert(cr.Everything(), qt.HasLen, 32)
	c.Assert(cr.Mass(), qt.HasLen, 28)
	c.Assert(cr.Conserved(), qt.HasLen, 20)

	cr.FelsicVolcanic[2] = 7
	c.Assert(cr.Conserved()[4*4+2], qt.Equals, 7.0)
	cr.Age[3] = 1
	c.Assert(cr.Everything()[7*4+3], qt.Equals, 1.0)

	for p := Pool(0); p < NumPools; p++ {
		c.Assert(p.Conserved(), qt.Equals, p < MaficVolcanic, qt.Commentf("%s", p.Name()))
	}
}

func TestValueRoundTrip(t *testing.T) {
	c := qt.New(t)
	cr := New(3)
	col := RockColumn{Sediment: 1, Sedimentary: 2, Metamorphic: 3, FelsicPlutonic: 4, FelsicVolcanic: 5, MaficVolcanic: 6, MaficPlutonic: 7, Age: 8}
	cr.SetValue(1, col)
	c.Assert(cr.GetValue(1), qt.Equals, col)
	c.Assert(cr.GetValue(0), qt.Equals, RockColumn{})
	c.Assert(col.Conserved(), qt.Equals, 15.0)
	c.Assert(col.Mass(), qt.Equals, 28.0)
	c.Assert(col.IsContinental(), qt.IsTrue)
	c.Assert(col.Add(col).Age, qt.Equals, 8.0)
	c.Assert(col.Add(col).MaficPlutonic, qt.Equals, 14.0)
}

func TestFillAndSelection(t *testing.T) {
	c := qt.New(t)
	cr := New(4)
	cr.Fill(RockColumn{Sediment: 1, Age: 2})
	sel := []bool{false, true, false, true}
	cr.FillIntoSelection(RockColumn{MaficVolcanic: 9}, sel)
	c.Assert(cr.GetValue(0), qt.Equals, RockColumn{Sediment: 1, Age: 2})
	c.Assert(cr.GetValue(1), qt.Equals, RockColumn{MaficVolcanic: 9})

	src := New(4)
	src.Fill(RockColumn{Metamorphic: 5})
	cr.CopyIntoSelection(src, []bool{true, false, false, false})
	c.Assert(cr.GetValue(0), qt.Equals, RockColumn{Metamorphic: 5})

	cr.ClearSelection([]bool{true, true, true, false})
	c.Assert(cr.GetValue(2), qt.Equals, RockColumn{})
	c.Assert(cr.GetValue(3), qt.Equals, RockColumn{MaficVolcanic: 9})

	cr.Reset()
	c.Assert(cr.ConservedTotal(), qt.Equals, 0.0)
}

func TestAddDeltaAliasing(t *testing.T) {
	c := qt.New(t)
	a := New(2)
	a.Fill(RockColumn{Sediment: 1, Age: 10})
	d := New(2)
	d.Fill(RockColumn{Sediment: 0.5, Age: 1})
	AddDelta(a, d, a)
	c.Assert(a.GetValue(1), qt.Equals, RockColumn{Sediment: 1.5, Age: 11})
}

func TestOverlapStacksMassButReplacesSurface(t *testing.T) {
	c := qt.New(t)
	bottom := New(3)
	bottom.Fill(RockColumn{FelsicPlutonic: 10, MaficVolcanic: 1, Age: 100})
	top := New(3)
	top.Fill(RockColumn{FelsicPlutonic: 4, MaficVolcanic: 2, Age: 5})

	exists := []bool{true, true, false}
	onTop := []bool{true, false, false}
	out := Overlap(bottom, top, exists, onTop, nil)

	c.Assert(out.GetValue(0), qt.Equals, RockColumn{FelsicPlutonic: 14, MaficVolcanic: 2, Age: 5})
	c.Assert(out.GetValue(1), qt.Equals, RockColumn{FelsicPlutonic: 14, MaficVolcanic: 1, Age: 100})
	c.Assert(out.GetValue(2), qt.Equals, RockColumn{FelsicPlutonic: 10, MaficVolcanic: 1, Age: 100})

	// In place, as the merge loop uses it.
	Overlap(bottom, top, exists, onTop, bottom)
	c.Assert(bottom.GetValue(0), qt.Equals, out.GetValue(0))
}

func TestResampling(t *testing.T) {
	c := qt.New(t)
	src := New(3)
	src.Sediment[0], src.Sediment[1], src.Sediment[2] = 1, 2, 3
	src.Age[2] = 50

	got := src.GetIDs([]int{2, 2, 0, 1}, nil)
	c.Assert(got.Sediment, qt.DeepEquals, []float64{3, 3, 1, 2})
	c.Assert(got.Age, qt.DeepEquals, []float64{50, 50, 0, 0})

	dst := New(2)
	src.AddValuesToIDs([]int{1, 1, 0}, dst)
	c.Assert(dst.Sediment, qt.DeepEquals, []float64{3, 3})
	c.Assert(dst.Age, qt.DeepEquals, []float64{0, 0})
}

func TestClampNonNegative(t *testing.T) {
	c := qt.New(t)
	cr := New(2)
	cr.Sediment[0] = -2
	cr.MaficPlutonic[1] = -1
	cr.Age[0] = -5
	c.Assert(cr.ClampNonNegative(), qt.Equals, 3.0)
	for _, v := range cr.Everything() {
		c.Assert(v >= 0, qt.IsTrue)
	}
}

func TestConservedMass(t *testing.T) {
	c := qt.New(t)
	cr := New(2)
	cr.SetValue(0, RockColumn{Sediment: 1, Sedimentary: 1, Metamorphic: 1, FelsicPlutonic: 1, FelsicVolcanic: 1, MaficVolcanic: 100})
	c.Assert(cr.ConservedMass(nil), qt.DeepEquals, []float64{5, 0})
	c.Assert(cr.ConservedTotal(), qt.Equals, 5.0)
	c.Assert(cr.PoolTotal(MaficVolcanic), qt.Equals, 100.0)

	cr.ZeroOutside([]bool{false, true})
	c.Assert(cr.ConservedTotal(), qt.Equals, 0.0)
}
