// Simulation ties the lithosphere to the engine, statistics and events.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/talgya/lithosphere/internal/crust"
	"github.com/talgya/lithosphere/internal/tectonics"
	"github.com/talgya/lithosphere/internal/units"
)

// maxEvents bounds the in-memory event log.
const maxEvents = 1000

// Simulation owns a Lithosphere and steps it with a fixed timestep. Its
// exported read methods are safe to call while the engine is running.
type Simulation struct {
	mu sync.RWMutex

	Lith     *tectonics.Lithosphere
	Timestep float64 // seconds

	Events     []Event // recent events, oldest first
	LastStep   uint64
	LastReport tectonics.StepReport
	Stats      SimStats

	pending []Event                // not yet handed to DrainEvents
	reports []tectonics.StepReport // not yet handed to DrainReports
	step    uint64                 // step being processed, for observer events
}

// Event is a notable occurrence in the lithosphere.
type Event struct {
	Step        uint64 `json:"step" db:"step"`
	Category    string `json:"category" db:"category"` // "plate", "cycle", "conservation"
	Description string `json:"description" db:"description"`
	PlateID     string `json:"plate_id,omitempty" db:"plate_id"`
}

// SimStats tracks aggregate lithosphere statistics.
type SimStats struct {
	Step                uint64  `json:"step"`
	ElapsedMy           float64 `json:"elapsed_my"`
	Plates              int     `json:"plates"`
	ContinentalFraction float64 `json:"continental_fraction"`
	ConservedTotal      float64 `json:"conserved_total"`
	Drift               float64 `json:"drift"`
	MeanThickness       float64 `json:"mean_thickness"`
	MaxSurfaceHeight    float64 `json:"max_surface_height"`
	Rifted              int     `json:"rifted"`
	Subducted           int     `json:"subducted"`
	Detached            int     `json:"detached"`
	Collisions          int     `json:"collisions"`
	Restarts            int     `json:"restarts"`
}

// PlateSummary describes one plate for the API.
type PlateSummary struct {
	ID           string     `json:"id"`
	Cells        int        `json:"cells"`
	Continental  int        `json:"continental_cells"`
	EulerPole    [3]float64 `json:"euler_pole"`
	AngularSpeed float64    `json:"angular_speed"` // rad/My
}

// NewSimulation wraps l, which must not be initialized yet, and registers
// the simulation as its observer.
func NewSimulation(l *tectonics.Lithosphere, timestep float64) *Simulation {
	s := &Simulation{Lith: l, Timestep: timestep}
	l.Observer = s
	return s
}

// Initialize seeds the lithosphere with c.
func (s *Simulation) Initialize(c *crust.Crust) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Lith.Initialize(c); err != nil {
		return fmt.Errorf("initialize lithosphere: %w", err)
	}
	s.updateStats()
	return nil
}

// CurrentStep returns the most recently completed step.
func (s *Simulation) CurrentStep() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastStep
}

// Step runs one CalcChanges/ApplyChanges pair.
func (s *Simulation) Step(step uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = step

	if err := s.Lith.CalcChanges(s.Timestep); err != nil {
		s.record("conservation", err.Error(), "")
		return fmt.Errorf("calc changes: %w", err)
	}
	r, err := s.Lith.ApplyChanges(s.Timestep)
	if err != nil {
		s.record("conservation", err.Error(), "")
		return fmt.Errorf("apply changes: %w", err)
	}
	if r.Restarted {
		s.record("cycle", fmt.Sprintf("supercontinent cycle restarted with %d plates", r.Plates), "")
		s.Stats.Restarts++
	}
	s.LastReport = r
	s.reports = append(s.reports, r)
	s.LastStep = step
	s.Stats.Rifted += r.Rifted
	s.Stats.Subducted += r.Subducted
	s.Stats.Detached += r.Detached
	s.Stats.Collisions += r.Collisions
	s.updateStats()
	return nil
}

// PlateCreated implements tectonics.Observer. It runs with s.mu held.
func (s *Simulation) PlateCreated(p *tectonics.Plate) {
	slog.Debug("plate created", "plate", p.ID, "cells", p.CellCount())
	s.record("plate", fmt.Sprintf("plate created with %d cells", p.CellCount()), p.ID.String())
}

// PlateDestroyed implements tectonics.Observer. It runs with s.mu held.
func (s *Simulation) PlateDestroyed(p *tectonics.Plate) {
	slog.Debug("plate destroyed", "plate", p.ID)
	s.record("plate", "plate destroyed", p.ID.String())
}

func (s *Simulation) record(category, description, plate string) {
	e := Event{Step: s.step, Category: category, Description: description, PlateID: plate}
	s.Events = append(s.Events, e)
	s.pending = append(s.pending, e)
	// Trim old events to prevent unbounded growth.
	if len(s.Events) > maxEvents {
		s.Events = s.Events[len(s.Events)-maxEvents:]
	}
}

// Report logs a summary of the current state.
func (s *Simulation) Report(step uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	eventCounts := make(map[string]int)
	for _, e := range s.Events {
		eventCounts[e.Category]++
	}
	slog.Info("step report",
		"step", step,
		"time", SimTime(step, s.Timestep),
		"plates", s.Stats.Plates,
		"continental", fmt.Sprintf("%.1f%%", s.Stats.ContinentalFraction*100),
		"conserved", humanize.SIWithDigits(s.Stats.ConservedTotal, 4, "kg/m²"),
		"drift", fmt.Sprintf("%.4f%%", s.Stats.Drift*100),
		"max_height", humanize.SIWithDigits(s.Stats.MaxSurfaceHeight, 3, "m"),
		"rifted", humanize.Comma(int64(s.Stats.Rifted)),
		"subducted", humanize.Comma(int64(s.Stats.Subducted)),
		"events_plate", eventCounts["plate"],
		"events_cycle", eventCounts["cycle"],
	)
	slog.Debug("last step", "report", s.LastReport.String())
}

// Snapshot returns a copy of the current statistics.
func (s *Simulation) Snapshot() SimStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

// RecentEvents returns up to n of the newest events, oldest first.
func (s *Simulation) RecentEvents(n int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := max(len(s.Events)-n, 0)
	return append([]Event(nil), s.Events[start:]...)
}

// DrainEvents returns the events recorded since the last call.
func (s *Simulation) DrainEvents() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}

// DrainReports returns the step reports produced since the last call.
func (s *Simulation) DrainReports() []tectonics.StepReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.reports
	s.reports = nil
	return out
}

// RequeueReports puts back reports a failed checkpoint could not write,
// ahead of any produced since.
func (s *Simulation) RequeueReports(reports []tectonics.StepReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(reports, s.reports...)
}

// RequeueEvents puts back events a failed checkpoint could not write, ahead
// of any recorded since.
func (s *Simulation) RequeueEvents(events []Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = append(events, s.pending...)
}

// Plates summarizes every plate.
func (s *Simulation) Plates() []PlateSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PlateSummary, 0, s.Lith.NumPlates())
	for _, p := range s.Lith.Plates() {
		sum := PlateSummary{
			ID:           p.ID.String(),
			EulerPole:    [3]float64(p.EulerPole),
			AngularSpeed: p.AngularSpeed * units.Megayear,
		}
		for j, in := range p.Mask {
			if !in {
				continue
			}
			sum.Cells++
			if p.Crust.GetValue(j).IsContinental() {
				sum.Continental++
			}
		}
		out = append(out, sum)
	}
	return out
}

func (s *Simulation) updateStats() {
	l := s.Lith
	n := l.Grid().Len()
	continental := 0
	top := l.TopCrust
	for i := 0; i < n; i++ {
		if top.GetValue(i).IsContinental() {
			continental++
		}
	}
	thickness, maxHeight := 0.0, 0.0
	for i := 0; i < n; i++ {
		thickness += l.Thickness[i]
		maxHeight = max(maxHeight, l.SurfaceHeight[i])
	}

	s.Stats.Step = s.LastStep
	s.Stats.ElapsedMy = units.Megayears(float64(s.LastStep) * s.Timestep)
	s.Stats.Plates = l.NumPlates()
	s.Stats.ContinentalFraction = float64(continental) / float64(n)
	s.Stats.ConservedTotal = l.TotalCrust.ConservedTotal()
	s.Stats.Drift = s.LastReport.Drift
	s.Stats.MeanThickness = thickness / float64(n)
	s.Stats.MaxSurfaceHeight = maxHeight
}
