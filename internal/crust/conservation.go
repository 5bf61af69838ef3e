package crust

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotConserved is wrapped by every ConservationError.
var ErrNotConserved = errors.New("mass not conserved")

// ErrNonFinite reports a NaN or infinite value in a crust.
var ErrNonFinite = errors.New("non-finite value")

// ConservationError describes a delta whose conserved mass does not net to
// zero within tolerance.
type ConservationError struct {
	Check     string // delta, transport, reaction or drift
	Pool      string
	Cell      int // -1 when the check is not per cell
	Net       float64
	Gross     float64
	Tolerance float64
}

func (e *ConservationError) Error() string {
	where := e.Pool
	if e.Cell >= 0 {
		where = fmt.Sprintf("%s at cell %d", e.Pool, e.Cell)
	}
	return fmt.Sprintf("%s check: %s net %.6g exceeds %.3g of gross %.6g", e.Check, where, e.Net, e.Tolerance, e.Gross)
}

func (e *ConservationError) Unwrap() error {
	return ErrNotConserved
}

// withinTolerance compares |net| against tolerance·max(gross, 1), so tiny
// deltas are held to an absolute bound of tolerance kg/m².
func withinTolerance(net, gross, tolerance float64) bool {
	return math.Abs(net) <= tolerance*math.Max(gross, 1)
}

// CheckConservedDelta fails if the conserved pools of delta, summed over every
// cell, do not net to zero.
func CheckConservedDelta(delta *Crust, tolerance float64) error {
	net, gross := 0.0, 0.0
	for _, v := range delta.Conserved() {
		net += v
		gross += math.Abs(v)
	}
	if !withinTolerance(net, gross, tolerance) {
		return &ConservationError{Check: "delta", Pool: "conserved", Cell: -1, Net: net, Gross: gross, Tolerance: tolerance}
	}
	return nil
}

// CheckConservedTransportDelta fails if any conserved pool of delta does not
// net to zero over the grid. Transport moves mass between cells without
// changing what it is.
func CheckConservedTransportDelta(delta *Crust, tolerance float64) error {
	for _, p := range ConservedPools {
		net, gross := 0.0, 0.0
		for _, v := range delta.Pool(p) {
			net += v
			gross += math.Abs(v)
		}
		if !withinTolerance(net, gross, tolerance) {
			return &ConservationError{Check: "transport", Pool: p.Name(), Cell: -1, Net: net, Gross: gross, Tolerance: tolerance}
		}
	}
	return nil
}

// CheckConservedReactionDelta fails if any cell's conserved pools do not net
// to zero. Reactions change what mass is without moving it.
func CheckConservedReactionDelta(delta *Crust, tolerance float64) error {
	for i := 0; i < delta.n; i++ {
		net, gross := 0.0, 0.0
		for _, p := range ConservedPools {
			v := delta.buf[int(p)*delta.n+i]
			net += v
			gross += math.Abs(v)
		}
		if !withinTolerance(net, gross, tolerance) {
			return &ConservationError{Check: "reaction", Pool: "conserved", Cell: i, Net: net, Gross: gross, Tolerance: tolerance}
		}
	}
	return nil
}

// CheckFinite fails on the first NaN or infinite value in c.
func CheckFinite(c *Crust) error {
	for i, v := range c.buf {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s at cell %d: %w", Pool(i/c.n).Name(), i%c.n, ErrNonFinite)
		}
	}
	return nil
}
