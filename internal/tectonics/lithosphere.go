package tectonics

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/talgya/lithosphere/internal/crust"
	"github.com/talgya/lithosphere/internal/grid"
	"github.com/talgya/lithosphere/internal/raster"
)

// NoPlate marks a world cell that no plate covers.
const NoPlate = -1

// noDensity is above any real rock density, so any plate beats it.
const noDensity = 9999

// Lithosphere owns the plates and the global crust merged from them.
type Lithosphere struct {
	grid    *grid.Grid
	cfg     Config
	deps    Dependencies
	scratch *raster.Scratchpad
	rng     *rand.Rand

	Observer Observer
	Ocean    Ocean
	Cycle    *SupercontinentCycle

	plates []*Plate

	// TopCrust is the crust of the topmost plate in each world cell.
	// TotalCrust sums conserved pools over every plate in the cell.
	TopCrust   *crust.Crust
	TotalCrust *crust.Crust

	delta         *crust.Crust
	globalized    *crust.Crust
	local         *crust.Crust
	erosion       *crust.Crust
	weathering    *crust.Crust
	lithification *crust.Crust
	metamorphosis *crust.Crust
	accretion     *crust.Crust

	accretionInDelta bool // delta carries the queued accretion

	topPlateMap   []int
	plateCount    []int
	masterDensity []float64

	Thickness     []float64
	TotalMass     []float64
	Density       []float64
	Buoyancy      []float64
	Displacement  []float64
	SurfaceHeight []float64

	baseline    float64 // conserved mass per cell when initialized
	initialized bool
	step        uint64
}

// New returns an empty lithosphere on g. Dependencies must be supplied and
// Initialize called before stepping.
func New(g *grid.Grid, cfg Config) *Lithosphere {
	n := g.Len()
	return &Lithosphere{
		grid:          g,
		cfg:           cfg,
		scratch:       raster.NewScratchpad(n),
		rng:           rand.New(rand.NewSource(cfg.Seed)),
		Observer:      nopObserver{},
		Ocean:         FixedOcean(cfg.RiftingCrust),
		Cycle:         NewSupercontinentCycle(cfg.SupercontinentDuration, cfg.TargetPlates),
		TopCrust:      crust.New(n),
		TotalCrust:    crust.New(n),
		delta:         crust.New(n),
		globalized:    crust.New(n),
		local:         crust.New(n),
		erosion:       crust.New(n),
		weathering:    crust.New(n),
		lithification: crust.New(n),
		metamorphosis: crust.New(n),
		accretion:     crust.New(n),
		topPlateMap:   make([]int, n),
		plateCount:    make([]int, n),
		masterDensity: make([]float64, n),
		Thickness:     make([]float64, n),
		TotalMass:     make([]float64, n),
		Density:       make([]float64, n),
		Buoyancy:      make([]float64, n),
		Displacement:  make([]float64, n),
		SurfaceHeight: make([]float64, n),
	}
}

// SetDependencies records the non-nil values of d.
func (l *Lithosphere) SetDependencies(d Dependencies) {
	l.deps.merge(d)
}

// Grid returns the grid every crust is defined on.
func (l *Lithosphere) Grid() *grid.Grid { return l.grid }

// Config returns the model configuration.
func (l *Lithosphere) Config() Config { return l.cfg }

// Plates returns the plates in merge order. The slice is shared.
func (l *Lithosphere) Plates() []*Plate { return l.plates }

// NumPlates returns the number of plates.
func (l *Lithosphere) NumPlates() int { return len(l.plates) }

// Step returns the number of completed ApplyChanges calls.
func (l *Lithosphere) Step() uint64 { return l.step }

// TopPlateMap returns, per world cell, the index of the plate on top, or
// NoPlate.
func (l *Lithosphere) TopPlateMap() []int { return l.topPlateMap }

// PlateCounts returns, per world cell, how many plates cover it.
func (l *Lithosphere) PlateCounts() []int { return l.plateCount }

// Accretion returns the detached mass queued to be added back by the next
// CalcChanges.
func (l *Lithosphere) Accretion() *crust.Crust { return l.accretion }

// Plate returns the plate at index i of the current order.
func (l *Lithosphere) Plate(i int) *Plate { return l.plates[i] }

// AddPlate appends p. Plates added before Initialize replace segmentation.
func (l *Lithosphere) AddPlate(p *Plate) {
	l.plates = append(l.plates, p)
	l.Observer.PlateCreated(p)
}

// Initialize sets the starting crust. When no plates have been added the
// crust is segmented into plates; otherwise total may be nil and the
// global crust is merged from the existing plates.
func (l *Lithosphere) Initialize(total *crust.Crust) error {
	if err := l.deps.check(); err != nil {
		return err
	}
	if total != nil {
		crust.Copy(total, l.TotalCrust)
		crust.Copy(total, l.TopCrust)
		l.updateFields()
	}
	if len(l.plates) == 0 {
		if total == nil {
			return fmt.Errorf("initialize: no plates and no crust")
		}
		if err := l.ResetPlates(); err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
	}
	l.refresh()
	l.baseline = l.TotalCrust.ConservedTotal() / float64(l.grid.Len())
	l.initialized = true
	return nil
}

// refresh rebuilds the global view from the plates.
func (l *Lithosphere) refresh() {
	d, g := *l.deps.MaterialDensity, *l.deps.SurfaceGravity
	for _, p := range l.plates {
		p.UpdateFields(d, g)
	}
	l.merge()
	l.updateFields()
}

func (l *Lithosphere) ready() error {
	if err := l.deps.check(); err != nil {
		return err
	}
	if !l.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (l *Lithosphere) environment() crust.Environment {
	return crust.Environment{
		Grid:          l.grid,
		SurfaceHeight: l.SurfaceHeight,
		Density:       *l.deps.MaterialDensity,
		Gravity:       *l.deps.SurfaceGravity,
		Params:        l.cfg.Reactions,
		Scratch:       l.scratch,
	}
}

// violation applies the conservation policy to err.
func (l *Lithosphere) violation(err error) error {
	if err == nil || l.cfg.Conservation == PolicyAbort {
		return err
	}
	slog.Warn("conservation check failed", "step", l.step, "error", err)
	return nil
}

// CalcChanges computes this step's crust delta from the top crust: erosion,
// weathering, lithification and metamorphosis plus the accretion queued by
// the previous step. It mutates nothing observable.
func (l *Lithosphere) CalcChanges(dt float64) error {
	if err := l.ready(); err != nil {
		return err
	}
	env := l.environment()
	tol := l.cfg.DeltaTolerance

	crust.Erosion(env, l.TopCrust, dt, l.erosion)
	if err := l.violation(crust.CheckConservedTransportDelta(l.erosion, tol)); err != nil {
		return fmt.Errorf("erosion: %w", err)
	}
	crust.Weathering(env, l.TopCrust, dt, l.weathering)
	if err := l.violation(crust.CheckConservedReactionDelta(l.weathering, tol)); err != nil {
		return fmt.Errorf("weathering: %w", err)
	}
	crust.Lithification(env, l.TopCrust, dt, l.lithification)
	if err := l.violation(crust.CheckConservedReactionDelta(l.lithification, tol)); err != nil {
		return fmt.Errorf("lithification: %w", err)
	}
	crust.Metamorphosis(env, l.TopCrust, dt, l.metamorphosis)
	if err := l.violation(crust.CheckConservedReactionDelta(l.metamorphosis, tol)); err != nil {
		return fmt.Errorf("metamorphosis: %w", err)
	}

	l.delta.Reset()
	for _, d := range []*crust.Crust{l.erosion, l.weathering, l.lithification, l.metamorphosis, l.accretion} {
		crust.AddDelta(l.delta, d, l.delta)
	}
	l.accretionInDelta = true
	return nil
}

// ApplyChanges integrates the delta from CalcChanges and advances the plates
// by dt seconds. A zero dt changes nothing. Queued accretion is dropped
// only once a CalcChanges delta carrying it has been integrated; without
// one it stays queued for the next step.
func (l *Lithosphere) ApplyChanges(dt float64) (StepReport, error) {
	if dt == 0 {
		return StepReport{Step: l.step}, nil
	}
	if err := l.ready(); err != nil {
		return StepReport{}, err
	}
	l.step++
	r := StepReport{Step: l.step, Timestep: dt}
	d, g := *l.deps.MaterialDensity, *l.deps.SurfaceGravity

	queued := 0.0
	if l.accretionInDelta {
		l.accretion.Reset()
	} else {
		queued = l.accretion.ConservedTotal()
	}
	l.accretionInDelta = false
	crust.AddDelta(l.TotalCrust, l.delta, l.TotalCrust)
	r.Clamped += l.integrate(dt)
	l.delta.Reset()

	for _, p := range l.plates {
		p.Move(dt)
	}
	if l.cfg.BoundaryMode == BoundaryCellular {
		l.resolveBoundaries(dt, &r)
	}

	restarted, err := l.Cycle.Update(dt, l)
	if err != nil {
		return r, fmt.Errorf("supercontinent cycle: %w", err)
	}
	r.Restarted = restarted

	for _, p := range l.plates {
		p.UpdateFields(d, g)
	}
	l.merge()
	r.Rifted = l.rift()
	r.Subducted, r.Detached, r.Accreted = l.subduct()
	l.prune()
	l.updateFields()

	r.Plates = len(l.plates)
	// TotalCrust was merged before subduction, so it still holds the mass
	// this step queued in accretion, but not what earlier steps queued.
	r.ConservedTotal = l.TotalCrust.ConservedTotal() + queued
	expected := l.baseline * float64(l.grid.Len())
	if expected > 0 {
		r.Drift = (r.ConservedTotal - expected) / expected
	}
	if r.Clamped > 0 {
		slog.Debug("clamped negative pools", "step", l.step, "mass", r.Clamped)
	}
	if err := crust.CheckFinite(l.TotalCrust); err != nil {
		return r, fmt.Errorf("step %d: %w", l.step, err)
	}
	if math.Abs(r.Drift) > l.cfg.DriftTolerance {
		err := &crust.ConservationError{
			Check:     "drift",
			Pool:      "conserved",
			Cell:      -1,
			Net:       r.ConservedTotal - expected,
			Gross:     expected,
			Tolerance: l.cfg.DriftTolerance,
		}
		if err := l.violation(err); err != nil {
			return r, fmt.Errorf("step %d: %w", l.step, err)
		}
	}
	return r, nil
}

// integrate scatters the delta of every world cell into the plate on top of
// it and ages every member cell by dt. It returns the mass added by
// clamping negative pools.
func (l *Lithosphere) integrate(dt float64) float64 {
	s := l.scratch
	s.Allocate("integrate")
	defer s.Release("integrate")

	onTop := s.Mask()
	clamped := 0.0
	for idx, p := range l.plates {
		for i, top := range l.topPlateMap {
			onTop[i] = top == idx
		}
		crust.Copy(l.delta, l.local)
		l.local.ZeroOutside(onTop)
		l.local.AddValuesToIDs(p.LocalIDsOfGlobalCells, p.Crust)
		for j, in := range p.Mask {
			if in {
				p.Crust.Age[j] += dt
			}
		}
		clamped += p.Crust.ClampNonNegative()
	}
	return clamped
}

// resolveBoundaries runs the per-plate border pass.
func (l *Lithosphere) resolveBoundaries(dt float64, r *StepReport) {
	d, g := *l.deps.MaterialDensity, *l.deps.SurfaceGravity
	for _, p := range l.plates {
		p.UpdateBorders()
	}
	for _, p := range l.plates {
		r.Rifted += p.Rift(l.plates, l.Ocean)
	}
	for _, p := range l.plates {
		for _, c := range p.Deform(l.plates, l.cfg.DockMaxSteps) {
			r.Collisions++
			if c.Dock == nil {
				continue
			}
			r.Docked++
			if !c.Dock.Found {
				slog.Debug("dock search gave up", "plate", c.Other.ID, "cell", c.Dock.HostCell, "steps", c.Dock.Steps)
			}
		}
	}
	e := ErodeParams{Density: d, Gravity: g, Sealevel: *l.deps.Sealevel, Params: l.cfg.Reactions}
	for _, p := range l.plates {
		r.Clamped += p.Erode(dt, e)
	}
}

// merge rebuilds the global crust. In each world cell the least dense plate
// is on top; ties go to the plate that comes first.
func (l *Lithosphere) merge() {
	s := l.scratch
	s.Allocate("merge")
	defer s.Release("merge")

	raster.Fill(l.masterDensity, noDensity)
	for i := range l.topPlateMap {
		l.topPlateMap[i] = NoPlate
	}
	clear(l.plateCount)
	l.TotalCrust.Reset()
	l.TopCrust.Reset()

	exists := s.Mask()
	onTop := s.Mask()
	for idx, p := range l.plates {
		for i, j := range p.LocalIDsOfGlobalCells {
			exists[i] = p.Mask[j]
			onTop[i] = exists[i] && p.Density[j] < l.masterDensity[i]
			if onTop[i] {
				l.masterDensity[i] = p.Density[j]
				l.topPlateMap[i] = idx
			}
			if exists[i] {
				l.plateCount[i]++
			}
		}
		p.Globalize(l.globalized)
		crust.Overlap(l.TotalCrust, l.globalized, exists, onTop, l.TotalCrust)
		l.TopCrust.CopyIntoSelection(l.globalized, onTop)
	}
}

// rift fills cells just outside each plate that no other plate covers.
func (l *Lithosphere) rift() int {
	s := l.scratch
	s.Allocate("rift")
	defer s.Release("rift")

	col := l.Ocean.RiftingColumn()
	d, g := *l.deps.MaterialDensity, *l.deps.SurfaceGravity
	local := s.Mask()
	stay := s.Mask()
	outside := s.Mask()
	total := 0
	for idx, p := range l.plates {
		for j, i := range p.GlobalIDsOfLocalCells {
			n := l.plateCount[i]
			local[j] = n == 0 || (n == 1 && l.topPlateMap[i] == idx)
		}
		raster.Erosion(l.grid, local, 1, stay)
		raster.Margin(l.grid, p.Mask, 1, outside)
		rifting := raster.Intersection(stay, outside, stay)
		count := raster.Count(rifting)
		if count == 0 {
			continue
		}
		p.Crust.FillIntoSelection(col, rifting)
		raster.Union(p.Mask, rifting, p.Mask)
		p.UpdateFields(d, g)
		total += count
	}
	return total
}

// subduct turns the felsic rock of every plate cell that is not on top into
// metamorphic rock, and detaches dense cells at the plate edge that lie deep
// inside the subducted region. Detached conserved mass is queued as
// accretion onto the same world cell.
func (l *Lithosphere) subduct() (subducted, detached int, accreted float64) {
	s := l.scratch
	s.Allocate("subduct")
	defer s.Release("subduct")

	d, g := *l.deps.MaterialDensity, *l.deps.SurfaceGravity
	plutonic := l.cfg.AccretionPlutonicFraction
	local := s.Mask()
	stay := s.Mask()
	inside := s.Mask()
	for idx, p := range l.plates {
		c := p.Crust
		converted := false
		for j, i := range p.GlobalIDsOfLocalCells {
			local[j] = l.plateCount[i] != 1 && l.topPlateMap[i] != idx
			if !local[j] || !p.Mask[j] {
				continue
			}
			m := c.Sediment[j] + c.Sedimentary[j] + c.FelsicPlutonic[j] + c.FelsicVolcanic[j]
			if m > 0 {
				c.Metamorphic[j] += m
				c.Sediment[j], c.Sedimentary[j], c.FelsicPlutonic[j], c.FelsicVolcanic[j] = 0, 0, 0, 0
				converted = true
			}
			subducted++
		}
		if converted {
			p.UpdateFields(d, g)
		}

		raster.Erosion(l.grid, local, 1, stay)
		raster.Padding(l.grid, p.Mask, 1, inside)
		detaching := raster.Intersection(stay, inside, stay)
		for j, in := range detaching {
			if !in || p.Density[j] <= d.Mantle {
				detaching[j] = false
				continue
			}
			m := c.Sediment[j] + c.Sedimentary[j] + c.Metamorphic[j] + c.FelsicPlutonic[j] + c.FelsicVolcanic[j]
			i := p.GlobalIDsOfLocalCells[j]
			l.accretion.FelsicPlutonic[i] += m * plutonic
			l.accretion.FelsicVolcanic[i] += m * (1 - plutonic)
			accreted += m
			detached++
		}
		c.ClearSelection(detaching)
		raster.Difference(p.Mask, detaching, p.Mask)
	}
	return subducted, detached, accreted
}

// prune drops plates left with no cells and renumbers the top plate map.
func (l *Lithosphere) prune() {
	index := make([]int, len(l.plates))
	kept := l.plates[:0]
	for idx, p := range l.plates {
		if p.CellCount() > 0 {
			index[idx] = len(kept)
			kept = append(kept, p)
			continue
		}
		index[idx] = NoPlate
		l.Observer.PlateDestroyed(p)
	}
	if len(kept) == len(l.plates) {
		return
	}
	clear(l.plates[len(kept):])
	l.plates = kept
	for i, top := range l.topPlateMap {
		if top != NoPlate {
			l.topPlateMap[i] = index[top]
		}
	}
}

// updateFields recomputes the global derived rasters from TotalCrust.
func (l *Lithosphere) updateFields() {
	d := *l.deps.MaterialDensity
	l.TotalCrust.Thickness(d, l.Thickness)
	l.TotalCrust.TotalMass(l.TotalMass)
	crust.Density(l.TotalMass, l.Thickness, d.MaficVolcanicMin, l.Density)
	crust.Buoyancy(l.Density, d, *l.deps.SurfaceGravity, l.Buoyancy)
	crust.IsostaticDisplacement(l.Thickness, l.Density, d, l.Displacement)
	crust.SurfaceHeight(l.Displacement, *l.deps.Sealevel, l.SurfaceHeight)
}
