package crust

import (
	"math"

	"github.com/talgya/lithosphere/internal/units"
)

// MaficAgeWindow is the age over which mafic rock densifies from its minimum
// to its maximum density.
const MaficAgeWindow = 250 * units.Megayear

// MinThickness is the thickness below which density falls back to a default.
const MinThickness = 1e-9

func linearstep(edge0, edge1, x float64) float64 {
	return math.Min(math.Max((x-edge0)/(edge1-edge0), 0), 1)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// MaficDensities returns the volcanic and plutonic mafic densities at a given
// age.
func (d MaterialDensity) MaficDensities(age float64) (volcanic, plutonic float64) {
	t := linearstep(0, MaficAgeWindow, age)
	return lerp(d.MaficVolcanicMin, d.MaficVolcanicMax, t), lerp(d.MaficPlutonicMin, d.MaficPlutonicMax, t)
}

// Thickness returns the column thickness in meters: the sum over pools of
// mass divided by that pool's density.
func (c *Crust) Thickness(d MaterialDensity, out []float64) []float64 {
	if out == nil {
		out = make([]float64, c.n)
	}
	for i := range out {
		mv, mp := d.MaficDensities(c.Age[i])
		out[i] = c.Sediment[i]/d.Sediment +
			c.Sedimentary[i]/d.Sedimentary +
			c.Metamorphic[i]/d.Metamorphic +
			c.FelsicPlutonic[i]/d.FelsicPlutonic +
			c.FelsicVolcanic[i]/d.FelsicVolcanic +
			c.MaficVolcanic[i]/mv +
			c.MaficPlutonic[i]/mp
	}
	return out
}

// TotalMass returns the per-cell sum of every mass pool.
func (c *Crust) TotalMass(out []float64) []float64 {
	if out == nil {
		out = make([]float64, c.n)
	}
	for i := range out {
		out[i] = c.Sediment[i] + c.Sedimentary[i] + c.Metamorphic[i] +
			c.FelsicPlutonic[i] + c.FelsicVolcanic[i] +
			c.MaficVolcanic[i] + c.MaficPlutonic[i]
	}
	return out
}

// Density returns mass/thickness per cell, or def where thickness is below
// MinThickness. It never returns NaN or Inf for finite inputs.
func Density(mass, thickness []float64, def float64, out []float64) []float64 {
	if out == nil {
		out = make([]float64, len(mass))
	}
	for i := range out {
		if thickness[i] > MinThickness {
			out[i] = mass[i] / thickness[i]
		} else {
			out[i] = def
		}
	}
	return out
}

// Buoyancy returns min(0, -g·(density - mantle)) per cell: zero where the
// column floats, negative where it is denser than the mantle.
func Buoyancy(density []float64, d MaterialDensity, gravity float64, out []float64) []float64 {
	if out == nil {
		out = make([]float64, len(density))
	}
	for i := range out {
		out[i] = math.Min(0, -gravity*(density[i]-d.Mantle))
	}
	return out
}

// IsostaticDisplacement returns how far each column rises above the mantle
// surface when floating in isostatic equilibrium.
func IsostaticDisplacement(thickness, density []float64, d MaterialDensity, out []float64) []float64 {
	if out == nil {
		out = make([]float64, len(thickness))
	}
	for i := range out {
		out[i] = thickness[i] - thickness[i]*density[i]/d.Mantle
	}
	return out
}

// SurfaceHeight returns the height above sea level, zero for submerged cells.
func SurfaceHeight(displacement []float64, sealevel float64, out []float64) []float64 {
	if out == nil {
		out = make([]float64, len(displacement))
	}
	for i := range out {
		out[i] = math.Max(displacement[i]-sealevel, 0)
	}
	return out
}
