package persistence

import (
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/talgya/lithosphere/internal/crust"
	"github.com/talgya/lithosphere/internal/engine"
	"github.com/talgya/lithosphere/internal/generation"
	"github.com/talgya/lithosphere/internal/grid"
	"github.com/talgya/lithosphere/internal/tectonics"
	"github.com/talgya/lithosphere/internal/units"
)

func openTestDB(c *qt.C) *DB {
	db, err := Open(filepath.Join(c.TempDir(), "history.db"))
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { db.Close() })
	return db
}

func TestMeta(t *testing.T) {
	c := qt.New(t)
	db := openTestDB(c)

	_, err := db.GetMeta("seed")
	c.Assert(errors.Is(err, sql.ErrNoRows), qt.IsTrue)

	c.Assert(db.SaveMeta("seed", "42"), qt.IsNil)
	c.Assert(db.SaveMeta("seed", "43"), qt.IsNil)
	v, err := db.GetMeta("seed")
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.Equals, "43")
}

func TestStepHistory(t *testing.T) {
	c := qt.New(t)
	db := openTestDB(c)

	var records []StepRecord
	for step := uint64(1); step <= 5; step++ {
		r := NewStepRecord(tectonics.StepReport{
			Step:     step,
			Timestep: units.Megayear,
			Plates:   7,
			Rifted:   int(step),
			Drift:    0.001,
		})
		r.Restarted = step == 3
		records = append(records, r)
	}
	c.Assert(db.SaveSteps(records), qt.IsNil)

	got, err := db.StepHistory(2, 4, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 3)
	c.Assert(got[0], qt.DeepEquals, records[1])
	c.Assert(got[1].Restarted, qt.IsTrue)
	c.Assert(got[2].ElapsedMy, qt.Equals, records[3].ElapsedMy)

	got, err = db.StepHistory(0, 100, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 2)

	c.Run("replace", func(c *qt.C) {
		r := records[0]
		r.Rifted = 99
		c.Assert(db.SaveSteps([]StepRecord{r}), qt.IsNil)
		got, err := db.StepHistory(1, 1, 1)
		c.Assert(err, qt.IsNil)
		c.Assert(got[0].Rifted, qt.Equals, 99)
	})
}

func TestEvents(t *testing.T) {
	c := qt.New(t)
	db := openTestDB(c)
	events := []engine.Event{
		{Step: 1, Category: "plate", Description: "plate created", PlateID: "a"},
		{Step: 2, Category: "cycle", Description: "restart"},
	}
	c.Assert(db.SaveEvents(events), qt.IsNil)
	c.Assert(db.SaveEvents(nil), qt.IsNil)

	got, err := db.RecentEvents(10)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.DeepEquals, []engine.Event{events[1], events[0]})
}

func TestSaveCheckpoint(t *testing.T) {
	c := qt.New(t)
	db := openTestDB(c)

	sim := newTestSimulation(c)
	l := sim.Lith
	c.Assert(sim.Step(1), qt.IsNil)
	c.Assert(sim.Step(2), qt.IsNil)

	c.Assert(db.SaveCheckpoint(sim), qt.IsNil)
	steps, err := db.StepHistory(0, 10, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(steps, qt.HasLen, 2)
	c.Assert(steps[1].Plates, qt.Equals, l.NumPlates())

	events, err := db.RecentEvents(100)
	c.Assert(err, qt.IsNil)
	c.Assert(len(events) >= l.NumPlates(), qt.IsTrue)

	last, err := db.GetMeta("last_step")
	c.Assert(err, qt.IsNil)
	c.Assert(last, qt.Equals, "2")

	// Nothing new to write.
	c.Assert(db.SaveCheckpoint(sim), qt.IsNil)
	steps, err = db.StepHistory(0, 10, 10)
	c.Assert(err, qt.IsNil)
	c.Assert(steps, qt.HasLen, 2)
}

func newTestSimulation(c *qt.C) *engine.Simulation {
	g := grid.NewIcosphere(2)
	l := tectonics.New(g, tectonics.SmallTestConfig())
	l.SetDependencies(tectonics.EarthDependencies())
	sim := engine.NewSimulation(l, units.Megayear)
	c.Assert(sim.Initialize(generation.Crust(g, crust.DefaultMaterialDensity(), generation.SmallTestConfig())), qt.IsNil)
	return sim
}

func TestSaveCheckpointKeepsUnwrittenRows(t *testing.T) {
	c := qt.New(t)

	c.Run("events", func(c *qt.C) {
		db := openTestDB(c)
		sim := newTestSimulation(c)
		c.Assert(sim.Step(1), qt.IsNil)

		_, err := db.conn.Exec("DROP TABLE events")
		c.Assert(err, qt.IsNil)
		c.Assert(db.SaveCheckpoint(sim), qt.ErrorMatches, "save events: .*")

		c.Assert(db.migrate(), qt.IsNil)
		c.Assert(sim.Step(2), qt.IsNil)
		c.Assert(db.SaveCheckpoint(sim), qt.IsNil)

		steps, err := db.StepHistory(0, 10, 10)
		c.Assert(err, qt.IsNil)
		c.Assert(steps, qt.HasLen, 2)
		events, err := db.RecentEvents(1000)
		c.Assert(err, qt.IsNil)
		c.Assert(len(events) >= sim.Lith.NumPlates(), qt.IsTrue)
		// The oldest row comes from initialization.
		c.Assert(events[len(events)-1].Step, qt.Equals, uint64(0))
	})

	c.Run("steps", func(c *qt.C) {
		db := openTestDB(c)
		sim := newTestSimulation(c)
		c.Assert(sim.Step(1), qt.IsNil)

		_, err := db.conn.Exec("DROP TABLE steps")
		c.Assert(err, qt.IsNil)
		c.Assert(db.SaveCheckpoint(sim), qt.ErrorMatches, "save steps: .*")

		c.Assert(db.migrate(), qt.IsNil)
		c.Assert(db.SaveCheckpoint(sim), qt.IsNil)
		steps, err := db.StepHistory(0, 10, 10)
		c.Assert(err, qt.IsNil)
		c.Assert(steps, qt.HasLen, 1)
		events, err := db.RecentEvents(1000)
		c.Assert(err, qt.IsNil)
		c.Assert(len(events) >= sim.Lith.NumPlates(), qt.IsTrue)
	})
}
