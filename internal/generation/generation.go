// Package generation builds a starting crust from layered simplex noise
// sampled on the unit sphere.
package generation

import (
	"math/rand"
	"slices"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/lithosphere/internal/crust"
	"github.com/talgya/lithosphere/internal/grid"
	"github.com/talgya/lithosphere/internal/units"
)

// Config holds crust generation parameters.
type Config struct {
	Seed              int64   // 0 = random
	ContinentFraction float64 // share of cells that start continental
	Octaves           int
	Frequency         float64 // base noise frequency on the unit sphere
	Persistence       float64
	MaxOceanAge       float64 // seconds
	ContinentAge      float64 // seconds
}

// DefaultConfig returns an Earth-like starting crust.
func DefaultConfig() Config {
	return Config{
		Seed:              0,
		ContinentFraction: 0.3,
		Octaves:           4,
		Frequency:         1.5,
		Persistence:       0.5,
		MaxOceanAge:       200 * units.Megayear,
		ContinentAge:      1000 * units.Megayear,
	}
}

// SmallTestConfig returns a fixed seed for repeatable tests.
func SmallTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Seed = 42
	cfg.Octaves = 2
	return cfg
}

// Crust fills every cell of g with either a continental column or oceanic
// crust of noise-scaled age. The ContinentFraction of cells with the highest
// elevation noise become continent.
func Crust(g *grid.Grid, d crust.MaterialDensity, cfg Config) *crust.Crust {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	// Independent layers for continents and sea floor age.
	elevNoise := opensimplex.NewNormalized(seed)
	ageNoise := opensimplex.NewNormalized(seed + 1)

	n := g.Len()
	elev := make([]float64, n)
	for i, p := range g.Pos {
		elev[i] = octaveNoise(elevNoise, p.X(), p.Y(), p.Z(), cfg.Octaves, cfg.Frequency, cfg.Persistence)
	}

	sorted := slices.Clone(elev)
	slices.Sort(sorted)
	land := int(cfg.ContinentFraction * float64(n))
	threshold := sorted[n-1] + 1
	if land > 0 {
		threshold = sorted[n-min(land, n)]
	}

	c := crust.New(n)
	for i, p := range g.Pos {
		var col crust.RockColumn
		if elev[i] >= threshold {
			col = crust.ContinentalColumn()
			col.Age = cfg.ContinentAge
		} else {
			col = crust.OceanicColumn(d)
			age := octaveNoise(ageNoise, p.X(), p.Y(), p.Z(), 2, cfg.Frequency, cfg.Persistence)
			col.Age = age * cfg.MaxOceanAge
		}
		c.SetValue(i, col)
	}
	return c
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y, z float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval3(x*frequency, y*frequency, z*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
