package tectonics

import (
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/talgya/lithosphere/internal/raster"
	"github.com/talgya/lithosphere/internal/units"
)

func smoothstep(edge0, edge1, x float64) float64 {
	t := math.Min(math.Max((x-edge0)/(edge1-edge0), 0), 1)
	return t * t * (3 - 2*t)
}

// Subductability estimates how readily each world cell sinks, from 0 for
// buoyant continent to 1 for old dense ocean floor. Oceanic density is
// pushed toward that of the mantle lithosphere as the floor ages.
func (l *Lithosphere) Subductability(out []float64) []float64 {
	if out == nil {
		out = make([]float64, l.grid.Len())
	}
	for i, rho := range l.Density {
		continent := smoothstep(2890, 2800, rho)
		aged := rho + (3300-rho)*smoothstep(150*units.Megayear, 200*units.Megayear, l.TotalCrust.Age[i])
		rho = rho*continent + aged*(1-continent)
		out[i] = 1 / (1 + math.Exp(-(rho-3000)/100))
	}
	return out
}

// ResetPlates discards every plate and segments the lithosphere anew.
// Plates form where the rotation implied by the smoothed subductability
// gradient is coherent.
func (l *Lithosphere) ResetPlates() error {
	if len(l.plates) > 0 {
		l.refresh()
	}
	s := l.scratch
	s.Allocate("reset_plates")
	defer s.Release("reset_plates")

	g := l.grid
	n := g.Len()
	pressure := l.Subductability(s.Float())
	tmp, work := s.Float(), s.Float()
	for range l.cfg.PressureSmoothing {
		raster.DiffusionByConstant(g, pressure, 1, tmp, work)
		pressure, tmp = tmp, pressure
	}
	velocity := raster.Gradient(g, pressure, s.Vector())
	angular := raster.CrossPositions(g, velocity, s.Vector())

	segments := max(l.cfg.Segments, 1)
	minSize := min(l.cfg.MinSegmentSize, n/(2*segments))
	segmentation := raster.ImageSegmentation(g, angular, segments, minSize, l.cfg.SegmentThreshold, s.Int())
	plateMap := raster.GuessPlateMap(g, segmentation, l.cfg.CleanupRadius)

	var ids []int
	for _, id := range plateMap {
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	if len(ids) == 0 {
		return fmt.Errorf("segmentation produced no plates")
	}

	masks := make([][]bool, len(ids))
	means := make([]mgl64.Vec3, len(ids))
	fastest := 0.0
	for k, id := range ids {
		masks[k] = make([]bool, n)
		count := 0
		for i, v := range plateMap {
			if v == id {
				masks[k][i] = true
				means[k] = means[k].Add(angular[i])
				count++
			}
		}
		means[k] = means[k].Mul(1 / float64(count))
		fastest = math.Max(fastest, means[k].Len())
	}

	for _, p := range l.plates {
		l.Observer.PlateDestroyed(p)
	}
	l.plates = l.plates[:0]
	for k, mask := range masks {
		speed := 0.0
		if fastest > 0 {
			speed = l.cfg.MaxAngularSpeed * means[k].Len() / fastest
		}
		c := l.TotalCrust.Clone()
		c.ZeroOutside(mask)
		l.AddPlate(NewPlate(g, mask, c, means[k], speed))
	}
	l.refresh()
	return nil
}

// SplitLargestPlate replaces the plate with the most cells by n smaller
// plates. It does nothing when that plate cannot be split n ways.
func (l *Lithosphere) SplitLargestPlate(n int) error {
	if len(l.plates) == 0 {
		return fmt.Errorf("split: no plates")
	}
	largest := 0
	for i, p := range l.plates {
		if p.CellCount() > l.plates[largest].CellCount() {
			largest = i
		}
	}
	p := l.plates[largest]
	parts := p.Split(n, l.cfg.SplitAngularSpeed, l.rng)
	if parts == nil {
		return nil
	}
	l.Observer.PlateDestroyed(p)
	l.plates = slices.Replace(l.plates, largest, largest+1, parts...)
	for _, q := range parts {
		l.Observer.PlateCreated(q)
	}
	l.refresh()
	return nil
}
