// Package persistence keeps a SQLite ledger of step diagnostics: per-step
// reports, plate events and run metadata. It never stores crust state.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/lithosphere/internal/engine"
	"github.com/talgya/lithosphere/internal/tectonics"
	"github.com/talgya/lithosphere/internal/units"
)

// DB wraps a SQLite connection for the step ledger.
type DB struct {
	conn *sqlx.DB
}

// StepRecord is one row of the steps table.
type StepRecord struct {
	Step           uint64  `db:"step" json:"step"`
	ElapsedMy      float64 `db:"elapsed_my" json:"elapsed_my"`
	Plates         int     `db:"plates" json:"plates"`
	Rifted         int     `db:"rifted" json:"rifted"`
	Subducted      int     `db:"subducted" json:"subducted"`
	Detached       int     `db:"detached" json:"detached"`
	Collisions     int     `db:"collisions" json:"collisions"`
	Docked         int     `db:"docked" json:"docked"`
	Accreted       float64 `db:"accreted" json:"accreted"`
	Clamped        float64 `db:"clamped" json:"clamped"`
	ConservedTotal float64 `db:"conserved_total" json:"conserved_total"`
	Drift          float64 `db:"drift" json:"drift"`
	Restarted      bool    `db:"restarted" json:"restarted"`
	RecordedAt     int64   `db:"recorded_at" json:"recorded_at"` // unix seconds
}

// NewStepRecord converts a step report.
func NewStepRecord(r tectonics.StepReport) StepRecord {
	return StepRecord{
		Step:           r.Step,
		ElapsedMy:      units.Megayears(float64(r.Step) * r.Timestep),
		Plates:         r.Plates,
		Rifted:         r.Rifted,
		Subducted:      r.Subducted,
		Detached:       r.Detached,
		Collisions:     r.Collisions,
		Docked:         r.Docked,
		Accreted:       r.Accreted,
		Clamped:        r.Clamped,
		ConservedTotal: r.ConservedTotal,
		Drift:          r.Drift,
		Restarted:      r.Restarted,
		RecordedAt:     time.Now().Unix(),
	}
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS steps (
		step INTEGER PRIMARY KEY,
		elapsed_my REAL NOT NULL,
		plates INTEGER NOT NULL,
		rifted INTEGER NOT NULL,
		subducted INTEGER NOT NULL,
		detached INTEGER NOT NULL,
		collisions INTEGER NOT NULL,
		docked INTEGER NOT NULL,
		accreted REAL NOT NULL,
		clamped REAL NOT NULL,
		conserved_total REAL NOT NULL,
		drift REAL NOT NULL,
		restarted INTEGER NOT NULL,
		recorded_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		step INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL,
		plate_id TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_step ON events(step);
	CREATE INDEX IF NOT EXISTS idx_events_plate ON events(plate_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveSteps writes step records, replacing any with the same step.
func (db *DB) SaveSteps(records []StepRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range records {
		_, err := tx.NamedExec(`INSERT OR REPLACE INTO steps
			(step, elapsed_my, plates, rifted, subducted, detached, collisions, docked,
			 accreted, clamped, conserved_total, drift, restarted, recorded_at)
			VALUES (:step, :elapsed_my, :plates, :rifted, :subducted, :detached, :collisions, :docked,
			 :accreted, :clamped, :conserved_total, :drift, :restarted, :recorded_at)`, r)
		if err != nil {
			return fmt.Errorf("insert step %d: %w", r.Step, err)
		}
	}

	return tx.Commit()
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex("INSERT INTO events (step, category, description, plate_id) VALUES (?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(e.Step, e.Category, e.Description, e.PlateID); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}

// SaveCheckpoint records every step report and event the simulation has
// produced since the last checkpoint, and the current step counter. Rows
// that fail to write are handed back to the simulation for the next
// checkpoint.
func (db *DB) SaveCheckpoint(sim *engine.Simulation) error {
	reports := sim.DrainReports()
	events := sim.DrainEvents()
	slog.Debug("saving checkpoint", "steps", len(reports), "events", len(events))

	records := make([]StepRecord, len(reports))
	for i, r := range reports {
		records[i] = NewStepRecord(r)
	}
	if err := db.SaveSteps(records); err != nil {
		sim.RequeueReports(reports)
		sim.RequeueEvents(events)
		return fmt.Errorf("save steps: %w", err)
	}
	if err := db.SaveEvents(events); err != nil {
		sim.RequeueEvents(events)
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_step", fmt.Sprintf("%d", sim.CurrentStep())); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	return nil
}

// StepHistory returns up to limit records with from <= step <= to, oldest
// first.
func (db *DB) StepHistory(from, to uint64, limit int) ([]StepRecord, error) {
	var records []StepRecord
	err := db.conn.Select(&records,
		"SELECT * FROM steps WHERE step >= ? AND step <= ? ORDER BY step ASC LIMIT ?",
		from, to, limit,
	)
	return records, err
}

// RecentEvents returns the most recent N events, newest first.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT step, category, description, plate_id FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}
