// Package tectonics simulates rigid plates drifting over the mantle: their
// motion, the merge of overlapping plates into one global crust, rifting,
// subduction, and the supercontinent cycle that periodically re-segments
// the lithosphere into new plates.
//
// A step is two-phase. CalcChanges computes reaction deltas against the
// current merged crust without mutating anything; ApplyChanges integrates
// them and advances plate topology.
package tectonics

import (
	"fmt"
	"math"

	"github.com/talgya/lithosphere/internal/crust"
	"github.com/talgya/lithosphere/internal/units"
)

// BoundaryMode selects how plate boundaries are resolved each step.
type BoundaryMode uint8

const (
	// BoundaryRaster resolves boundaries only through the global merge,
	// rifting and subduction passes.
	BoundaryRaster BoundaryMode = iota
	// BoundaryCellular additionally runs per-plate border classification,
	// rifting, collision and erosion after plates move.
	BoundaryCellular
)

// BoundaryModeName returns the config name of m.
func BoundaryModeName(m BoundaryMode) string {
	switch m {
	case BoundaryRaster:
		return "raster"
	case BoundaryCellular:
		return "cellular"
	default:
		return "unknown"
	}
}

// ParseBoundaryMode is the inverse of BoundaryModeName.
func ParseBoundaryMode(s string) (BoundaryMode, error) {
	switch s {
	case "raster", "":
		return BoundaryRaster, nil
	case "cellular":
		return BoundaryCellular, nil
	}
	return 0, fmt.Errorf("unknown boundary mode %q", s)
}

// Policy decides what a failed conservation check does.
type Policy uint8

const (
	PolicyWarn  Policy = iota // log and continue
	PolicyAbort               // return the error from the step
)

// ParsePolicy maps "warn" and "abort" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "warn", "":
		return PolicyWarn, nil
	case "abort":
		return PolicyAbort, nil
	}
	return 0, fmt.Errorf("unknown conservation policy %q", s)
}

// Config holds the model constants of a Lithosphere.
type Config struct {
	Reactions crust.ReactionParams

	// RiftingCrust fills cells opened at spreading ridges.
	RiftingCrust crust.RockColumn

	// AccretionPlutonicFraction of detached conserved mass returns as
	// felsic plutonic rock; the remainder returns as felsic volcanic.
	AccretionPlutonicFraction float64

	// Plate segmentation.
	Segments          int     // maximum plates found by segmentation
	MinSegmentSize    int     // cells; clamped down on small grids
	SegmentThreshold  float64 // cosine similarity for the flood fill
	PressureSmoothing int     // diffusion passes over subductability
	CleanupRadius     int     // morphology radius when growing plates
	MaxAngularSpeed   float64 // rad/s of the fastest segmented plate
	SplitAngularSpeed float64 // rad/s of plates created by a split

	// Supercontinent cycle. A duration of zero disables it.
	SupercontinentDuration float64
	TargetPlates           int

	DockMaxSteps int
	BoundaryMode BoundaryMode

	Conservation   Policy
	DeltaTolerance float64 // per reaction delta, relative
	DriftTolerance float64 // global conserved mass vs baseline, relative

	Seed int64
}

// DefaultConfig returns the Earth-like model.
func DefaultConfig() Config {
	return Config{
		Reactions:                 crust.DefaultReactionParams(),
		RiftingCrust:              crust.RockColumn{MaficVolcanic: 7100},
		AccretionPlutonicFraction: 0.85,
		Segments:                  7,
		MinSegmentSize:            200,
		SegmentThreshold:          math.Cos(60 * math.Pi / 180),
		PressureSmoothing:         15,
		CleanupRadius:             5,
		MaxAngularSpeed:           0.1 / units.EarthRadius / units.Year, // 10 cm/yr at the equator of rotation
		SplitAngularSpeed:         0.05 / units.EarthRadius / units.Year,
		SupercontinentDuration:    150 * units.Megayear,
		TargetPlates:              7,
		DockMaxSteps:              100,
		BoundaryMode:              BoundaryRaster,
		Conservation:              PolicyWarn,
		DeltaTolerance:            0.01,
		DriftTolerance:            0.03,
		Seed:                      1,
	}
}

// SmallTestConfig returns a model suited to coarse grids: small segments,
// no supercontinent cycle and strict conservation.
func SmallTestConfig() Config {
	cfg := DefaultConfig()
	cfg.MinSegmentSize = 10
	cfg.CleanupRadius = 2
	cfg.SupercontinentDuration = 0
	cfg.Conservation = PolicyAbort
	return cfg
}
