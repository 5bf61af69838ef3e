package crust

import (
	"math"

	"github.com/talgya/lithosphere/internal/grid"
	"github.com/talgya/lithosphere/internal/raster"
	"github.com/talgya/lithosphere/internal/units"
)

// ReactionParams are the tunable rates of the surface and burial reactions.
type ReactionParams struct {
	Precipitation             float64 `yaml:"precipitation"`               // m of rain per second
	ErosiveFactor             float64 `yaml:"erosive_factor"`              // fraction of height difference per m of rain
	WeatheringFactor          float64 `yaml:"weathering_factor"`           // fraction of relief per m of rain
	CriticalSedimentThickness float64 `yaml:"critical_sediment_thickness"` // m of cover that stops weathering
	LithificationPressure     float64 `yaml:"lithification_pressure"`      // Pa
	MetamorphismPressure      float64 `yaml:"metamorphism_pressure"`       // Pa
}

// DefaultReactionParams returns Earth-average rates.
func DefaultReactionParams() ReactionParams {
	return ReactionParams{
		Precipitation:             1.05 / units.Year,
		ErosiveFactor:             1.8e-7,
		WeatheringFactor:          1.8e-7,
		CriticalSedimentThickness: 1,
		LithificationPressure:     2.2e6, // ~500 ft of sediment
		MetamorphismPressure:      300e6, // ~11 km of sedimentary rock
	}
}

// Environment is what the reaction models read besides the crust itself.
type Environment struct {
	Grid          *grid.Grid
	SurfaceHeight []float64
	Density       MaterialDensity
	Gravity       float64
	Params        ReactionParams

	// Mask limits erosion to arrows whose ends are both set. Nil means
	// the whole grid.
	Mask []bool

	// Scratch supplies working rasters. Nil allocates.
	Scratch *raster.Scratchpad
}

func (env Environment) scratch() *raster.Scratchpad {
	if env.Scratch != nil {
		return env.Scratch
	}
	return raster.NewScratchpad(env.Grid.Len())
}

func deltaOut(out *Crust, n int) *Crust {
	if out == nil {
		return New(n)
	}
	out.Reset()
	return out
}

// Erosion moves rock downhill along every arrow in proportion to the height
// difference, precipitation and the erosive factor. A cell's outbound mass
// is drawn from its pools in order (sediment first, then sedimentary,
// metamorphic, felsic plutonic, felsic volcanic), each capped at what the
// cell holds, and split over its downhill arrows in proportion to slope.
// The result is a transport delta: every pool nets to zero over the grid.
func Erosion(env Environment, top *Crust, dt float64, out *Crust) *Crust {
	g := env.Grid
	h := env.SurfaceHeight
	out = deltaOut(out, g.Len())
	k := env.Params.Precipitation * dt * env.Params.ErosiveFactor * env.Density.FelsicPlutonic

	s := env.scratch()
	s.Allocate("erosion")
	defer s.Release("erosion")

	outbound := s.Float()
	for _, arrow := range g.Arrows {
		if !env.arrowEnabled(arrow) {
			continue
		}
		if diff := h[arrow.From] - h[arrow.To]; diff > 0 {
			outbound[arrow.From] += diff * k
		}
	}

	var fraction [numConserved][]float64
	for p := range fraction {
		fraction[p] = s.Float()
	}
	for i, total := range outbound {
		if total <= 0 {
			continue
		}
		remaining := total
		for p := 0; p < numConserved && remaining > 0; p++ {
			take := math.Min(math.Max(top.buf[p*top.n+i], 0), remaining)
			fraction[p][i] = take / total
			remaining -= take
		}
	}

	for _, arrow := range g.Arrows {
		if !env.arrowEnabled(arrow) {
			continue
		}
		diff := h[arrow.From] - h[arrow.To]
		if diff <= 0 {
			continue
		}
		transfer := diff * k
		for p := 0; p < numConserved; p++ {
			x := transfer * fraction[p][arrow.From]
			out.buf[p*out.n+arrow.From] -= x
			out.buf[p*out.n+arrow.To] += x
		}
	}
	return out
}

func (env Environment) arrowEnabled(arrow grid.Arrow) bool {
	return env.Mask == nil || (env.Mask[arrow.From] && env.Mask[arrow.To])
}

// BedrockExposure is 1 for bare rock and falls linearly to 0 once sediment
// cover reaches the critical thickness.
func BedrockExposure(sediment []float64, d MaterialDensity, p ReactionParams, out []float64) []float64 {
	if out == nil {
		out = make([]float64, len(sediment))
	}
	critical := p.CriticalSedimentThickness * d.Sediment
	for i, s := range sediment {
		out[i] = math.Min(math.Max(1-s/critical, 0), 1)
	}
	return out
}

// Weathering converts exposed bedrock into sediment at a rate set by local
// relief and precipitation. Bedrock is drawn from the sedimentary,
// metamorphic and felsic pools in proportion to their share of the column.
// The result is a reaction delta: each cell nets to zero.
func Weathering(env Environment, top *Crust, dt float64, out *Crust) *Crust {
	g := env.Grid
	out = deltaOut(out, g.Len())

	s := env.scratch()
	s.Allocate("weathering")
	defer s.Release("weathering")

	weathering := raster.AverageDifference(g, env.SurfaceHeight, s.Float())
	exposure := BedrockExposure(top.Sediment, env.Density, env.Params, s.Float())
	rate := env.Params.WeatheringFactor *
		env.Params.Precipitation *
		dt *
		env.Density.FelsicPlutonic *
		env.Gravity / units.EarthGravity

	for i := range weathering {
		bedrock := top.Sedimentary[i] + top.Metamorphic[i] + top.FelsicPlutonic[i] + top.FelsicVolcanic[i]
		if bedrock < 0.01 {
			continue
		}
		w := math.Min(math.Max(weathering[i]*rate*exposure[i], 0), bedrock)
		ratio := w / bedrock
		out.Sediment[i] = w
		out.Sedimentary[i] = -top.Sedimentary[i] * ratio
		out.Metamorphic[i] = -top.Metamorphic[i] * ratio
		out.FelsicPlutonic[i] = -top.FelsicPlutonic[i] * ratio
		out.FelsicVolcanic[i] = -top.FelsicVolcanic[i] * ratio
	}
	return out
}

// Lithification turns sediment buried beyond the lithification pressure
// into sedimentary rock.
func Lithification(env Environment, top *Crust, _ float64, out *Crust) *Crust {
	out = deltaOut(out, top.n)
	g := env.Gravity
	for i, sediment := range top.Sediment {
		excess := sediment*g - env.Params.LithificationPressure
		m := math.Min(math.Max(excess/g, 0), math.Max(sediment, 0))
		out.Sediment[i] = -m
		out.Sedimentary[i] = m
	}
	return out
}

// Metamorphosis turns sedimentary rock buried beyond the metamorphism
// pressure into metamorphic rock. Overburden counts both sediment and
// sedimentary rock.
func Metamorphosis(env Environment, top *Crust, _ float64, out *Crust) *Crust {
	out = deltaOut(out, top.n)
	g := env.Gravity
	for i := range top.Sedimentary {
		excess := (top.Sediment[i]+top.Sedimentary[i])*g - env.Params.MetamorphismPressure
		m := math.Min(math.Max(excess/g, 0), math.Max(top.Sedimentary[i], 0))
		out.Sedimentary[i] = -m
		out.Metamorphic[i] = m
	}
	return out
}
