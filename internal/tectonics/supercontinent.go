package tectonics

// Resegmenter rebuilds the plate set when a supercontinent cycle ends.
type Resegmenter interface {
	NumPlates() int
	ResetPlates() error
	SplitLargestPlate(n int) error
}

// SupercontinentCycle restarts plate tectonics every Duration seconds.
// When a restart finds at least two plates fewer than TargetPlates, the
// largest plate is split to make up the deficit; otherwise the whole
// lithosphere is re-segmented from its subductability field.
type SupercontinentCycle struct {
	Duration     float64
	TargetPlates int

	Age      float64
	Restarts int
}

// NewSupercontinentCycle returns a cycle at age zero.
func NewSupercontinentCycle(duration float64, targetPlates int) *SupercontinentCycle {
	return &SupercontinentCycle{Duration: duration, TargetPlates: targetPlates}
}

// Update advances the cycle by dt and reports whether a restart happened.
func (s *SupercontinentCycle) Update(dt float64, r Resegmenter) (bool, error) {
	if s.Duration <= 0 {
		return false, nil
	}
	s.Age += dt
	if s.Age < s.Duration {
		return false, nil
	}
	s.Age = 0
	s.Restarts++
	if deficit := s.TargetPlates - r.NumPlates(); deficit >= 2 {
		return true, r.SplitLargestPlate(deficit)
	}
	return true, r.ResetPlates()
}
