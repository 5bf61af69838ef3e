// Package crust provides the rock-mass rasters the lithosphere is made of:
// the Crust pool bundle, the single-cell RockColumn, the physical
// derivations (thickness, density, buoyancy, isostasy), the reaction models
// that produce per-step deltas, and the conservation checks those deltas are
// held to.
package crust

// Pool identifies one mass raster within a Crust. The order is the buffer
// layout: conserved pools first, then the remaining mass pools, then age.
type Pool uint8

const (
	Sediment Pool = iota
	Sedimentary
	Metamorphic
	FelsicPlutonic
	FelsicVolcanic
	MaficVolcanic
	MaficPlutonic
	Age

	NumPools = 8
)

const (
	numConserved = 5 // Sediment through FelsicVolcanic
	numMass      = 7 // every pool except Age
)

// ConservedPools lists the felsic-lineage pools whose total may only change
// through explicit creation or destruction.
var ConservedPools = []Pool{Sediment, Sedimentary, Metamorphic, FelsicPlutonic, FelsicVolcanic}

// MassPools lists every pool that holds mass.
var MassPools = []Pool{Sediment, Sedimentary, Metamorphic, FelsicPlutonic, FelsicVolcanic, MaficVolcanic, MaficPlutonic}

// Conserved reports whether p is a conserved pool.
func (p Pool) Conserved() bool {
	return p < numConserved
}

// Name returns the snake_case name of the pool.
func (p Pool) Name() string {
	switch p {
	case Sediment:
		return "sediment"
	case Sedimentary:
		return "sedimentary"
	case Metamorphic:
		return "metamorphic"
	case FelsicPlutonic:
		return "felsic_plutonic"
	case FelsicVolcanic:
		return "felsic_volcanic"
	case MaficVolcanic:
		return "mafic_volcanic"
	case MaficPlutonic:
		return "mafic_plutonic"
	case Age:
		return "age"
	default:
		return "unknown"
	}
}
