// Command lithosim runs the plate tectonics simulation and serves its state
// over HTTP.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/lithosphere/internal/api"
	"github.com/talgya/lithosphere/internal/config"
	"github.com/talgya/lithosphere/internal/engine"
	"github.com/talgya/lithosphere/internal/entropy"
	"github.com/talgya/lithosphere/internal/generation"
	"github.com/talgya/lithosphere/internal/grid"
	"github.com/talgya/lithosphere/internal/persistence"
	"github.com/talgya/lithosphere/internal/tectonics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("lithosim failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	// ── Settings ──────────────────────────────────────────────────────
	settings, err := config.Load(envOrDefault("LITHOSIM_CONFIG", "lithosim.yaml"))
	if err != nil {
		return err
	}
	settings.History.Path = envOrDefault("LITHOSIM_DB", settings.History.Path)
	if p := os.Getenv("LITHOSIM_PORT"); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("LITHOSIM_PORT: %w", err)
		}
		settings.Server.Port = port
	}

	level, err := settings.LogLevel()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
	slog.Info("lithosim: plate tectonics simulation")

	if settings.Simulation.Seed == 0 {
		settings.Simulation.Seed = entropy.NewClient(os.Getenv("RANDOM_ORG_API_KEY")).Seed()
		slog.Info("drew random seed", "seed", settings.Simulation.Seed)
	}

	tc, err := settings.Tectonics()
	if err != nil {
		return err
	}

	// ── Database ──────────────────────────────────────────────────────
	var db *persistence.DB
	if settings.History.Enabled {
		if dir := filepath.Dir(settings.History.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}
		}
		db, err = persistence.Open(settings.History.Path)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		slog.Info("database opened", "path", settings.History.Path)
	}

	// ── Planet ────────────────────────────────────────────────────────
	g := grid.NewIcosphere(settings.Simulation.IcosphereLevel)
	slog.Info("grid built",
		"level", settings.Simulation.IcosphereLevel,
		"cells", humanize.Comma(int64(g.Len())),
		"arrows", humanize.Comma(int64(len(g.Arrows))))

	deps := settings.Dependencies()
	initial := generation.Crust(g, *deps.MaterialDensity, settings.GenerationConfig())

	lith := tectonics.New(g, tc)
	lith.SetDependencies(deps)

	// ── Simulation ────────────────────────────────────────────────────
	timestep := settings.Timestep()
	sim := engine.NewSimulation(lith, timestep)
	if err := sim.Initialize(initial); err != nil {
		return err
	}
	stats := sim.Snapshot()
	slog.Info("lithosphere initialized",
		"plates", stats.Plates,
		"continental_fraction", fmt.Sprintf("%.3f", stats.ContinentalFraction),
		"boundary_mode", tectonics.BoundaryModeName(tc.BoundaryMode))

	eng := engine.NewEngine()
	eng.SetSpeed(settings.Simulation.Speed)
	eng.Interval = time.Duration(settings.Simulation.StepIntervalMs) * time.Millisecond
	eng.StepsPerReport = settings.Simulation.StepsPerReport
	eng.StepsPerCheckpoint = settings.Simulation.StepsPerCheckpoint

	maxSteps := uint64(settings.Simulation.MaxSteps)
	eng.OnStep = func(step uint64) error {
		if err := sim.Step(step); err != nil {
			return err
		}
		if maxSteps > 0 && step >= maxSteps {
			eng.Stop()
		}
		return nil
	}
	eng.OnReport = sim.Report
	checkpoint := func() {
		if db == nil {
			return
		}
		if err := db.SaveCheckpoint(sim); err != nil {
			slog.Error("checkpoint failed", "error", err)
		}
	}
	eng.OnCheckpoint = func(uint64) { checkpoint() }
	checkpoint()

	// ── HTTP API ──────────────────────────────────────────────────────
	if settings.Server.Enabled {
		adminKey := os.Getenv("LITHOSIM_ADMIN_KEY")
		if adminKey == "" {
			slog.Warn("LITHOSIM_ADMIN_KEY not set, admin POST endpoints will be disabled")
		}
		apiServer := &api.Server{
			Sim:            sim,
			Eng:            eng,
			DB:             db,
			Port:           settings.Server.Port,
			AdminKey:       adminKey,
			MaxStreamConns: settings.Server.MaxStreamConns,
		}
		apiServer.Start()
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", settings.Server.Port)
	}

	// ── Start ─────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		eng.Stop()
	}()

	fmt.Println("Starting simulation... (Ctrl+C to stop)")
	runErr := eng.Run()

	slog.Info("final checkpoint...", "sim_time", engine.SimTime(eng.Step, timestep))
	checkpoint()
	return runErr
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
