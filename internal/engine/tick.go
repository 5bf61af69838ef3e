// Package engine provides the step loop that drives the lithosphere and the
// Simulation wrapper that tracks its statistics and events.
package engine

import (
	"fmt"
	"math"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/talgya/lithosphere/internal/units"
)

// Default cadences, in steps.
const (
	StepsPerReport     = 10
	StepsPerCheckpoint = 50
)

// Engine drives the simulation forward one step at a time.
type Engine struct {
	Step     uint64        // last completed step (monotonic, never resets)
	Interval time.Duration // base step interval

	StepsPerReport     uint64
	StepsPerCheckpoint uint64

	// Callbacks, populated during setup. An OnStep error stops the loop.
	OnStep       func(step uint64) error
	OnReport     func(step uint64)
	OnCheckpoint func(step uint64)

	running atomic.Bool
	speed   atomic.Uint64 // float64 bits; 1.0 = one step per Interval, 0 = paused
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	e := &Engine{
		Interval:           time.Second,
		StepsPerReport:     StepsPerReport,
		StepsPerCheckpoint: StepsPerCheckpoint,
	}
	e.SetSpeed(1)
	return e
}

// Speed returns the pacing multiplier. It is safe to call while Run loops.
func (e *Engine) Speed() float64 {
	return math.Float64frombits(e.speed.Load())
}

// SetSpeed changes the pacing multiplier. 0 pauses the loop.
func (e *Engine) SetSpeed(v float64) {
	e.speed.Store(math.Float64bits(v))
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run starts the step loop. It blocks until Stop is called or a step fails.
func (e *Engine) Run() error {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "step", e.Step, "speed", e.Speed())

	for e.running.Load() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused; check again shortly.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()
		if err := e.step(); err != nil {
			slog.Error("simulation engine halted", "step", e.Step+1, "error", err)
			return err
		}

		// Sleep for the remainder of the interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / speed)
		if elapsed < target {
			time.Sleep(target - elapsed)
		}
	}

	slog.Info("simulation engine stopped", "step", e.Step)
	return nil
}

// RunSteps runs n steps back to back without pacing.
func (e *Engine) RunSteps(n int) error {
	for range n {
		if err := e.step(); err != nil {
			return err
		}
	}
	return nil
}

// Stop halts the loop after the current step.
func (e *Engine) Stop() {
	e.running.Store(false)
}

func (e *Engine) step() error {
	next := e.Step + 1
	if e.OnStep != nil {
		if err := e.OnStep(next); err != nil {
			return fmt.Errorf("step %d: %w", next, err)
		}
	}
	e.Step = next

	if e.StepsPerReport > 0 && e.Step%e.StepsPerReport == 0 && e.OnReport != nil {
		e.OnReport(e.Step)
	}
	if e.StepsPerCheckpoint > 0 && e.Step%e.StepsPerCheckpoint == 0 && e.OnCheckpoint != nil {
		e.OnCheckpoint(e.Step)
	}
	return nil
}

// SimTime returns the simulated time after step steps of timestep seconds.
func SimTime(step uint64, timestep float64) string {
	my := units.Megayears(float64(step) * timestep)
	if my >= 1000 {
		return fmt.Sprintf("%.2f Gy", my/1000)
	}
	return fmt.Sprintf("%.1f My", my)
}
