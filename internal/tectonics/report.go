package tectonics

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// StepReport summarizes one ApplyChanges.
type StepReport struct {
	Step     uint64
	Timestep float64

	Plates     int
	Rifted     int     // cells filled at ridges
	Subducted  int     // cells whose felsic rock turned metamorphic
	Detached   int     // cells removed from their plate
	Accreted   float64 // kg/m² queued for accretion next step
	Collisions int
	Docked     int
	Clamped    float64 // kg/m² added raising negative pools to zero
	Restarted  bool    // a supercontinent cycle ended

	ConservedTotal float64
	Drift          float64 // relative to the initial conserved total
}

// String renders the report for logs.
func (r StepReport) String() string {
	return fmt.Sprintf("step %s: %d plates, %s rifted, %s subducted, %s detached, drift %.3f%%",
		humanize.Comma(int64(r.Step)), r.Plates,
		humanize.Comma(int64(r.Rifted)), humanize.Comma(int64(r.Subducted)),
		humanize.Comma(int64(r.Detached)), r.Drift*100)
}
