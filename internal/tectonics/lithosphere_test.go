package tectonics

import (
	"errors"
	"math"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/talgya/lithosphere/internal/crust"
	"github.com/talgya/lithosphere/internal/grid"
	"github.com/talgya/lithosphere/internal/raster"
	"github.com/talgya/lithosphere/internal/units"
)

// testCrust is ocean floor that ages from south to north with a continent
// on the +x side.
func testCrust(g *grid.Grid) *crust.Crust {
	d := crust.DefaultMaterialDensity()
	c := crust.New(g.Len())
	for i, p := range g.Pos {
		col := crust.OceanicColumn(d)
		col.Age = (1 + p.Y()) * 120 * units.Megayear
		if p.X() > 0.4 {
			col = crust.ContinentalColumn()
			col.Age = 800 * units.Megayear
		}
		c.SetValue(i, col)
	}
	return c
}

func newTestLithosphere(c *qt.C, level int, cfg Config) *Lithosphere {
	g := grid.NewIcosphere(level)
	l := New(g, cfg)
	l.SetDependencies(EarthDependencies())
	c.Assert(l.Initialize(testCrust(g)), qt.IsNil)
	return l
}

type recordingObserver struct {
	created, destroyed []uuid.UUID
}

func (o *recordingObserver) PlateCreated(p *Plate)   { o.created = append(o.created, p.ID) }
func (o *recordingObserver) PlateDestroyed(p *Plate) { o.destroyed = append(o.destroyed, p.ID) }

func TestMissingDependency(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(1)
	l := New(g, SmallTestConfig())
	deps := EarthDependencies()
	deps.Sealevel = nil
	l.SetDependencies(deps)

	err := l.CalcChanges(units.Megayear)
	c.Assert(err, qt.ErrorMatches, `"sealevel" not provided`)
	c.Assert(err, qt.ErrorIs, ErrMissingDependency)
	var missing *MissingDependencyError
	c.Assert(errors.As(err, &missing), qt.IsTrue)
	c.Assert(missing.Name, qt.Equals, "sealevel")

	_, err = l.ApplyChanges(units.Megayear)
	c.Assert(err, qt.ErrorIs, ErrMissingDependency)
	c.Assert(l.Initialize(testCrust(g)), qt.ErrorIs, ErrMissingDependency)

	c.Run("viscosity", func(c *qt.C) {
		l := New(g, SmallTestConfig())
		deps := EarthDependencies()
		deps.MaterialViscosity = nil
		l.SetDependencies(deps)
		c.Assert(l.CalcChanges(1), qt.ErrorMatches, `"material_viscosity" not provided`)
	})

	c.Run("not initialized", func(c *qt.C) {
		l := New(g, SmallTestConfig())
		l.SetDependencies(EarthDependencies())
		c.Assert(l.CalcChanges(1), qt.ErrorIs, ErrNotInitialized)
	})
}

type snapshot struct {
	total, top []float64
	topMap     []int
	masks      [][]bool
	crusts     [][]float64
}

func takeSnapshot(l *Lithosphere) snapshot {
	s := snapshot{
		total:  append([]float64(nil), l.TotalCrust.Everything()...),
		top:    append([]float64(nil), l.TopCrust.Everything()...),
		topMap: append([]int(nil), l.TopPlateMap()...),
	}
	for _, p := range l.Plates() {
		s.masks = append(s.masks, append([]bool(nil), p.Mask...))
		s.crusts = append(s.crusts, append([]float64(nil), p.Crust.Everything()...))
	}
	return s
}

func TestZeroTimestep(t *testing.T) {
	c := qt.New(t)
	l := newTestLithosphere(c, 3, SmallTestConfig())
	c.Assert(l.CalcChanges(units.Megayear), qt.IsNil)
	before := takeSnapshot(l)

	r, err := l.ApplyChanges(0)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Step, qt.Equals, uint64(0))
	c.Assert(takeSnapshot(l), qt.CmpEquals(cmp.AllowUnexported(snapshot{})), before)
}

func TestMergeTopPlate(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(2)
	d := crust.DefaultMaterialDensity()
	n := g.Len()

	build := func(c *qt.C, plates ...*Plate) *Lithosphere {
		l := New(g, SmallTestConfig())
		l.SetDependencies(EarthDependencies())
		for _, p := range plates {
			l.AddPlate(p)
		}
		c.Assert(l.Initialize(nil), qt.IsNil)
		return l
	}

	c.Run("least dense plate is on top", func(c *qt.C) {
		ocean := filledPlate(g, fullMask(n), crust.OceanicColumn(d))
		land := filledPlate(g, fullMask(n), crust.ContinentalColumn())
		for _, order := range [][]*Plate{{ocean, land}, {land, ocean}} {
			l := build(c, order...)
			for i := range g.Pos {
				c.Assert(l.Plate(l.TopPlateMap()[i]).ID, qt.Equals, land.ID)
				c.Assert(l.PlateCounts()[i], qt.Equals, 2)
			}
			c.Assert(l.TopCrust.GetValue(0), qt.DeepEquals, crust.ContinentalColumn())
			c.Assert(l.TotalCrust.ConservedTotal(), approx, float64(n)*crust.ContinentalColumn().Conserved())
		}
	})

	c.Run("ties go to the first plate", func(c *qt.C) {
		a := filledPlate(g, fullMask(n), crust.OceanicColumn(d))
		b := filledPlate(g, fullMask(n), crust.OceanicColumn(d))
		for _, order := range [][]*Plate{{a, b}, {b, a}} {
			l := build(c, order...)
			for i := range g.Pos {
				c.Assert(l.Plate(l.TopPlateMap()[i]).ID, qt.Equals, order[0].ID)
			}
		}
	})

	c.Run("uncovered cells have no plate", func(c *qt.C) {
		mask := fullMask(n)
		mask[5] = false
		l := build(c, filledPlate(g, mask, crust.OceanicColumn(d)))
		c.Assert(l.TopPlateMap()[5], qt.Equals, NoPlate)
		c.Assert(l.PlateCounts()[5], qt.Equals, 0)
		c.Assert(l.TopCrust.GetValue(5), qt.DeepEquals, crust.RockColumn{})
	})
}

func TestRiftInStep(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(3)
	d := crust.DefaultMaterialDensity()
	mask := fullMask(g.Len())
	mask[0] = false

	l := New(g, SmallTestConfig())
	l.SetDependencies(EarthDependencies())
	l.AddPlate(filledPlate(g, mask, crust.OceanicColumn(d)))
	c.Assert(l.Initialize(nil), qt.IsNil)

	r, err := l.ApplyChanges(units.Megayear)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Rifted, qt.Equals, 1)
	c.Assert(l.Plate(0).Mask[0], qt.IsTrue)
	c.Assert(l.Plate(0).Crust.GetValue(0), qt.DeepEquals, crust.RockColumn{MaficVolcanic: 7100})
	c.Assert(l.Plate(0).Crust.Age[1], approx, units.Megayear)
}

func TestStepsConserveMass(t *testing.T) {
	c := qt.New(t)
	cfg := SmallTestConfig()
	// Slow enough that no cell remaps within ten steps.
	cfg.MaxAngularSpeed = 0.002 / units.Megayear
	l := newTestLithosphere(c, 4, cfg)
	c.Assert(l.NumPlates() > 0, qt.IsTrue)

	start := l.TotalCrust.ConservedTotal()
	dt := units.Megayear
	for step := 0; step < 10; step++ {
		ages := make([][]float64, l.NumPlates())
		masks := make([][]bool, l.NumPlates())
		for k, p := range l.Plates() {
			ages[k] = append([]float64(nil), p.Crust.Age...)
			masks[k] = append([]bool(nil), p.Mask...)
		}
		plates := append([]*Plate(nil), l.Plates()...)

		c.Assert(l.CalcChanges(dt), qt.IsNil)
		r, err := l.ApplyChanges(dt)
		c.Assert(err, qt.IsNil, qt.Commentf("step %d", step))
		c.Assert(math.Abs(r.Drift) < 0.03, qt.IsTrue, qt.Commentf("drift %v", r.Drift))

		for k, p := range plates {
			for j, in := range p.Mask {
				if in && masks[k][j] {
					c.Assert(p.Crust.Age[j], approx, ages[k][j]+dt)
				}
			}
		}
		for _, p := range l.Plates() {
			for _, v := range p.Crust.Everything() {
				c.Assert(v >= 0, qt.IsTrue)
			}
		}
		c.Assert(crust.CheckFinite(l.TotalCrust), qt.IsNil)
	}
	end := l.TotalCrust.ConservedTotal()
	c.Assert(math.Abs(end-start)/start < 0.03, qt.IsTrue, qt.Commentf("start %v end %v", start, end))
}

func TestSubduction(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(3)
	d := crust.DefaultMaterialDensity()
	n := g.Len()

	// Old, dense ocean floor on the +x hemisphere, buried under a continent
	// in its middle and young ocean floor around its rim. The -x hemisphere
	// is uncovered, so the old plate's western edge sinks.
	oldMask, landMask, rimMask := make([]bool, n), make([]bool, n), make([]bool, n)
	for i, p := range g.Pos {
		oldMask[i] = p.X() > 0
		landMask[i] = p.X() > 0.3
		rimMask[i] = p.X() > 0 && p.X() <= 0.3
	}
	const sediment = 1500.0
	oldFloor := crust.OceanicColumn(d)
	oldFloor.Sediment = sediment
	oldFloor.Age = 300 * units.Megayear
	old := filledPlate(g, oldMask, oldFloor)
	land := filledPlate(g, landMask, crust.ContinentalColumn())
	rim := filledPlate(g, rimMask, crust.OceanicColumn(d))

	l := New(g, SmallTestConfig())
	l.SetDependencies(EarthDependencies())
	for _, p := range []*Plate{old, land, rim} {
		l.AddPlate(p)
	}
	c.Assert(l.Initialize(nil), qt.IsNil)
	before := l.TotalCrust.ConservedTotal()
	edge := raster.Padding(g, oldMask, 1, nil)

	r, err := l.ApplyChanges(units.Megayear)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Subducted, qt.Equals, raster.Count(oldMask))
	c.Assert(r.Detached, qt.Equals, raster.Count(edge))
	c.Assert(r.Detached > 0, qt.IsTrue)
	c.Assert(r.Accreted, approx, sediment*float64(r.Detached))
	c.Assert(r.ConservedTotal, approx, before)

	c.Run("buried sediment turns metamorphic", func(c *qt.C) {
		for j, in := range old.Mask {
			if !in {
				continue
			}
			c.Assert(old.Crust.Sediment[j], qt.Equals, 0.0)
			c.Assert(old.Crust.Metamorphic[j], qt.Equals, sediment)
		}
	})

	c.Run("edge cells detach", func(c *qt.C) {
		for i, in := range edge {
			if in {
				c.Assert(old.Mask[i], qt.IsFalse)
				c.Assert(old.Crust.GetValue(i), qt.Equals, crust.RockColumn{})
			}
		}
	})

	c.Run("accretion splits plutonic and volcanic", func(c *qt.C) {
		acc := l.Accretion()
		plutonic := acc.PoolTotal(crust.FelsicPlutonic)
		volcanic := acc.PoolTotal(crust.FelsicVolcanic)
		c.Assert(plutonic+volcanic, approx, r.Accreted)
		c.Assert(plutonic, approx, 0.85*r.Accreted)
		c.Assert(volcanic, approx, 0.15*r.Accreted)
		for i, in := range edge {
			if in {
				c.Assert(acc.FelsicPlutonic[i], approx, 0.85*sediment)
			}
		}
	})

	c.Run("accretion returns next step", func(c *qt.C) {
		c.Assert(l.CalcChanges(units.Megayear), qt.IsNil)
		r, err := l.ApplyChanges(units.Megayear)
		c.Assert(err, qt.IsNil)
		c.Assert(math.Abs(r.ConservedTotal-before) <= 1e-6*before+r.Clamped, qt.IsTrue,
			qt.Commentf("before %v after %v", before, r.ConservedTotal))
	})
}

func TestAccretionSurvivesApplyWithoutCalc(t *testing.T) {
	c := qt.New(t)
	g := grid.NewIcosphere(2)
	l := New(g, SmallTestConfig())
	l.SetDependencies(EarthDependencies())
	l.AddPlate(filledPlate(g, fullMask(g.Len()), crust.ContinentalColumn()))
	c.Assert(l.Initialize(nil), qt.IsNil)
	before := l.TotalCrust.ConservedTotal()

	const queued = 1000.0
	l.Accretion().FelsicPlutonic[3] = queued

	// No CalcChanges: the queued mass must stay queued and be counted.
	r, err := l.ApplyChanges(units.Megayear)
	c.Assert(err, qt.IsNil)
	c.Assert(l.Accretion().FelsicPlutonic[3], qt.Equals, queued)
	c.Assert(r.ConservedTotal, approx, before+queued)

	c.Assert(l.CalcChanges(units.Megayear), qt.IsNil)
	c.Assert(l.Accretion().FelsicPlutonic[3], qt.Equals, queued)
	r, err = l.ApplyChanges(units.Megayear)
	c.Assert(err, qt.IsNil)
	c.Assert(l.Accretion().FelsicPlutonic[3], qt.Equals, 0.0)
	got := l.TotalCrust.ConservedTotal()
	c.Assert(math.Abs(got-(before+queued)) <= 1e-9*before+r.Clamped, qt.IsTrue,
		qt.Commentf("want %v got %v", before+queued, got))
}

func TestCellularStepsConserveMass(t *testing.T) {
	c := qt.New(t)
	cfg := SmallTestConfig()
	cfg.BoundaryMode = BoundaryCellular
	cfg.MaxAngularSpeed = 0.002 / units.Megayear
	l := newTestLithosphere(c, 4, cfg)

	start := l.TotalCrust.ConservedTotal()
	for step := 0; step < 10; step++ {
		c.Assert(l.CalcChanges(units.Megayear), qt.IsNil)
		r, err := l.ApplyChanges(units.Megayear)
		c.Assert(err, qt.IsNil, qt.Commentf("step %d", step))
		c.Assert(math.Abs(r.Drift) < 0.03, qt.IsTrue, qt.Commentf("drift %v", r.Drift))
		for _, p := range l.Plates() {
			for _, v := range p.Crust.Everything() {
				c.Assert(v >= 0, qt.IsTrue)
			}
		}
		c.Assert(crust.CheckFinite(l.TotalCrust), qt.IsNil)
	}
	end := l.TotalCrust.ConservedTotal()
	c.Assert(math.Abs(end-start)/start < 0.03, qt.IsTrue, qt.Commentf("start %v end %v", start, end))
}

func TestNonFiniteAborts(t *testing.T) {
	c := qt.New(t)
	l := newTestLithosphere(c, 3, SmallTestConfig())
	p := l.Plate(0)
	for j, in := range p.Mask {
		if in {
			p.Crust.Sediment[j] = math.NaN()
			break
		}
	}
	_, err := l.ApplyChanges(units.Megayear)
	c.Assert(err, qt.ErrorIs, crust.ErrNonFinite)
}

func TestResetPlates(t *testing.T) {
	c := qt.New(t)
	obs := &recordingObserver{}
	g := grid.NewIcosphere(4)
	l := New(g, SmallTestConfig())
	l.Observer = obs
	l.SetDependencies(EarthDependencies())
	total := testCrust(g)
	c.Assert(l.Initialize(total), qt.IsNil)

	c.Assert(l.NumPlates() > 1, qt.IsTrue)
	c.Assert(obs.created, qt.HasLen, l.NumPlates())
	sum := 0.0
	for i := range g.Pos {
		owners := 0
		for _, p := range l.Plates() {
			if p.Mask[i] {
				owners++
			}
		}
		c.Assert(owners, qt.Equals, 1)
	}
	for _, p := range l.Plates() {
		sum += p.Crust.ConservedTotal()
		c.Assert(p.AngularSpeed <= l.Config().MaxAngularSpeed*(1+1e-9), qt.IsTrue)
	}
	c.Assert(sum, approx, total.ConservedTotal())

	c.Run("reset replaces every plate", func(c *qt.C) {
		old := l.NumPlates()
		c.Assert(l.ResetPlates(), qt.IsNil)
		c.Assert(obs.destroyed, qt.HasLen, old)
	})

	c.Run("split largest plate", func(c *qt.C) {
		before := l.NumPlates()
		conserved := l.TotalCrust.ConservedTotal()
		c.Assert(l.SplitLargestPlate(3), qt.IsNil)
		c.Assert(l.NumPlates(), qt.Equals, before+2)
		c.Assert(l.TotalCrust.ConservedTotal(), approx, conserved)
	})
}

type fakeResegmenter struct {
	plates int
	resets int
	splits []int
}

func (f *fakeResegmenter) NumPlates() int { return f.plates }
func (f *fakeResegmenter) ResetPlates() error {
	f.resets++
	return nil
}
func (f *fakeResegmenter) SplitLargestPlate(n int) error {
	f.splits = append(f.splits, n)
	return nil
}

func TestSupercontinentCycle(t *testing.T) {
	c := qt.New(t)
	cycle := NewSupercontinentCycle(150*units.Megayear, 7)
	f := &fakeResegmenter{plates: 6}

	restarted, err := cycle.Update(100*units.Megayear, f)
	c.Assert(err, qt.IsNil)
	c.Assert(restarted, qt.IsFalse)

	restarted, err = cycle.Update(50*units.Megayear, f)
	c.Assert(err, qt.IsNil)
	c.Assert(restarted, qt.IsTrue)
	c.Assert(cycle.Age, qt.Equals, 0.0)
	c.Assert(f.resets, qt.Equals, 1)
	c.Assert(f.splits, qt.HasLen, 0)

	f.plates = 2
	restarted, err = cycle.Update(150*units.Megayear, f)
	c.Assert(err, qt.IsNil)
	c.Assert(restarted, qt.IsTrue)
	c.Assert(f.splits, qt.DeepEquals, []int{5})
	c.Assert(cycle.Restarts, qt.Equals, 2)

	c.Run("disabled", func(c *qt.C) {
		off := NewSupercontinentCycle(0, 7)
		restarted, err := off.Update(1e20, f)
		c.Assert(err, qt.IsNil)
		c.Assert(restarted, qt.IsFalse)
	})
}

func TestStepReportString(t *testing.T) {
	c := qt.New(t)
	r := StepReport{Step: 12345, Plates: 7, Rifted: 1200, Drift: 0.001}
	c.Assert(r.String(), qt.Equals, "step 12,345: 7 plates, 1,200 rifted, 0 subducted, 0 detached, drift 0.100%")
}
