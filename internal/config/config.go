// Package config loads run settings from a YAML file over in-code defaults
// and converts them into the configs of the simulation packages.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/talgya/lithosphere/internal/crust"
	"github.com/talgya/lithosphere/internal/generation"
	"github.com/talgya/lithosphere/internal/grid"
	"github.com/talgya/lithosphere/internal/tectonics"
	"github.com/talgya/lithosphere/internal/units"
)

// Settings is the whole settings file.
type Settings struct {
	Simulation   SimulationSettings   `yaml:"simulation"`
	Model        ModelSettings        `yaml:"model"`
	Materials    MaterialSettings     `yaml:"materials"`
	Conservation ConservationSettings `yaml:"conservation"`
	Generation   GenerationSettings   `yaml:"generation"`
	History      HistorySettings      `yaml:"history"`
	Server       ServerSettings       `yaml:"server"`
	Log          LogSettings          `yaml:"log"`
}

type SimulationSettings struct {
	IcosphereLevel     int     `yaml:"icosphere_level"`
	TimestepMy         float64 `yaml:"timestep_my"`
	StepIntervalMs     int     `yaml:"step_interval_ms"`
	Speed              float64 `yaml:"speed"`
	StepsPerReport     uint64  `yaml:"steps_per_report"`
	StepsPerCheckpoint uint64  `yaml:"steps_per_checkpoint"`
	MaxSteps           int     `yaml:"max_steps"` // 0 runs until interrupted
	Seed               int64   `yaml:"seed"` // 0 draws a fresh seed at startup
}

type ModelSettings struct {
	BoundaryMode              string            `yaml:"boundary_mode"` // raster or cellular
	Segments                  int               `yaml:"segments"`
	MinSegmentSize            int               `yaml:"min_segment_size"`
	SegmentThresholdDeg       float64           `yaml:"segment_threshold_deg"`
	PressureSmoothing         int               `yaml:"pressure_smoothing"`
	CleanupRadius             int               `yaml:"cleanup_radius"`
	MaxPlateSpeedCmYr         float64           `yaml:"max_plate_speed_cm_yr"`
	SplitPlateSpeedCmYr       float64           `yaml:"split_plate_speed_cm_yr"`
	SupercontinentMy          float64           `yaml:"supercontinent_my"` // 0 disables the cycle
	TargetPlates              int               `yaml:"target_plates"`
	DockMaxSteps              int               `yaml:"dock_max_steps"`
	AccretionPlutonicFraction float64           `yaml:"accretion_plutonic_fraction"`
	RiftingMaficVolcanic      float64           `yaml:"rifting_mafic_volcanic"` // kg/m²
	Reactions                 ReactionSettings  `yaml:"reactions"`
}

// ReactionSettings mirrors crust.ReactionParams with precipitation per year.
type ReactionSettings struct {
	PrecipitationMYr          float64 `yaml:"precipitation_m_yr"`
	ErosiveFactor             float64 `yaml:"erosive_factor"`
	WeatheringFactor          float64 `yaml:"weathering_factor"`
	CriticalSedimentThickness float64 `yaml:"critical_sediment_thickness"`
	LithificationPressure     float64 `yaml:"lithification_pressure"`
	MetamorphismPressure      float64 `yaml:"metamorphism_pressure"`
}

type MaterialSettings struct {
	Density        crust.MaterialDensity   `yaml:"density"`
	Viscosity      crust.MaterialViscosity `yaml:"viscosity"`
	Sealevel       float64                 `yaml:"sealevel"`
	SurfaceGravity float64                 `yaml:"surface_gravity"`
}

type ConservationSettings struct {
	Policy         string  `yaml:"policy"` // warn or abort
	DeltaTolerance float64 `yaml:"delta_tolerance"`
	DriftTolerance float64 `yaml:"drift_tolerance"`
}

type GenerationSettings struct {
	ContinentFraction float64 `yaml:"continent_fraction"`
	Octaves           int     `yaml:"octaves"`
	Frequency         float64 `yaml:"frequency"`
	Persistence       float64 `yaml:"persistence"`
	MaxOceanAgeMy     float64 `yaml:"max_ocean_age_my"`
	ContinentAgeMy    float64 `yaml:"continent_age_my"`
}

type HistorySettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type ServerSettings struct {
	Enabled        bool `yaml:"enabled"`
	Port           int  `yaml:"port"`
	MaxStreamConns int  `yaml:"max_stream_conns"`
}

type LogSettings struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the settings used when no file is present.
func Default() Settings {
	tc := tectonics.DefaultConfig()
	gc := generation.DefaultConfig()
	rp := tc.Reactions
	deps := tectonics.EarthDependencies()
	return Settings{
		Simulation: SimulationSettings{
			IcosphereLevel:     5,
			TimestepMy:         1,
			StepIntervalMs:     200,
			Speed:              1,
			StepsPerReport:     10,
			StepsPerCheckpoint: 50,
			Seed:               42,
		},
		Model: ModelSettings{
			BoundaryMode:              tectonics.BoundaryModeName(tc.BoundaryMode),
			Segments:                  tc.Segments,
			MinSegmentSize:            tc.MinSegmentSize,
			SegmentThresholdDeg:       60,
			PressureSmoothing:         tc.PressureSmoothing,
			CleanupRadius:             tc.CleanupRadius,
			MaxPlateSpeedCmYr:         10,
			SplitPlateSpeedCmYr:       5,
			SupercontinentMy:          units.Megayears(tc.SupercontinentDuration),
			TargetPlates:              tc.TargetPlates,
			DockMaxSteps:              tc.DockMaxSteps,
			AccretionPlutonicFraction: tc.AccretionPlutonicFraction,
			RiftingMaficVolcanic:      tc.RiftingCrust.MaficVolcanic,
			Reactions: ReactionSettings{
				PrecipitationMYr:          rp.Precipitation * units.Year,
				ErosiveFactor:             rp.ErosiveFactor,
				WeatheringFactor:          rp.WeatheringFactor,
				CriticalSedimentThickness: rp.CriticalSedimentThickness,
				LithificationPressure:     rp.LithificationPressure,
				MetamorphismPressure:      rp.MetamorphismPressure,
			},
		},
		Materials: MaterialSettings{
			Density:        *deps.MaterialDensity,
			Viscosity:      *deps.MaterialViscosity,
			Sealevel:       *deps.Sealevel,
			SurfaceGravity: *deps.SurfaceGravity,
		},
		Conservation: ConservationSettings{
			Policy:         "warn",
			DeltaTolerance: tc.DeltaTolerance,
			DriftTolerance: tc.DriftTolerance,
		},
		Generation: GenerationSettings{
			ContinentFraction: gc.ContinentFraction,
			Octaves:           gc.Octaves,
			Frequency:         gc.Frequency,
			Persistence:       gc.Persistence,
			MaxOceanAgeMy:     units.Megayears(gc.MaxOceanAge),
			ContinentAgeMy:    units.Megayears(gc.ContinentAge),
		},
		History: HistorySettings{Enabled: true, Path: "data/lithosim.db"},
		Server:  ServerSettings{Enabled: true, Port: 8080, MaxStreamConns: 16},
		Log:     LogSettings{Level: "info"},
	}
}

// Load overlays the YAML file at path onto Default. A missing file is not
// an error.
func Load(path string) (Settings, error) {
	s := Default()
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Info("no settings file found, using defaults", "path", path)
			return s, nil
		}
		return s, fmt.Errorf("open settings: %w", err)
	}
	defer f.Close()

	if err := decode(f, &s); err != nil {
		return s, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("%s: %w", path, err)
	}
	slog.Info("loaded settings", "path", path,
		"icosphere_level", s.Simulation.IcosphereLevel,
		"cells", grid.VertexCount(s.Simulation.IcosphereLevel))
	return s, nil
}

// Parse overlays YAML data onto Default.
func Parse(data []byte) (Settings, error) {
	s := Default()
	if err := decode(bytes.NewReader(data), &s); err != nil {
		return s, err
	}
	return s, s.Validate()
}

func decode(r io.Reader, s *Settings) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate rejects settings the simulation cannot run with.
func (s Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}
	check(s.Simulation.IcosphereLevel >= 0 && s.Simulation.IcosphereLevel <= 8,
		"simulation.icosphere_level %d out of range [0, 8]", s.Simulation.IcosphereLevel)
	check(s.Simulation.TimestepMy > 0, "simulation.timestep_my must be positive")
	check(s.Simulation.Speed >= 0, "simulation.speed must not be negative")
	check(s.Simulation.MaxSteps >= 0, "simulation.max_steps must not be negative")
	check(s.Model.Segments > 0, "model.segments must be positive")
	check(s.Model.TargetPlates > 0, "model.target_plates must be positive")
	check(s.Model.SupercontinentMy >= 0, "model.supercontinent_my must not be negative")
	check(s.Model.AccretionPlutonicFraction >= 0 && s.Model.AccretionPlutonicFraction <= 1,
		"model.accretion_plutonic_fraction must be in [0, 1]")
	check(s.Model.SegmentThresholdDeg > 0 && s.Model.SegmentThresholdDeg < 180,
		"model.segment_threshold_deg must be in (0, 180)")
	check(s.Materials.Density.Mantle > 0, "materials.density.mantle must be positive")
	check(s.Materials.SurfaceGravity > 0, "materials.surface_gravity must be positive")
	check(s.Conservation.DeltaTolerance > 0, "conservation.delta_tolerance must be positive")
	check(s.Conservation.DriftTolerance > 0, "conservation.drift_tolerance must be positive")
	check(s.Generation.ContinentFraction >= 0 && s.Generation.ContinentFraction <= 1,
		"generation.continent_fraction must be in [0, 1]")
	check(s.Server.Port > 0 && s.Server.Port < 65536, "server.port %d out of range", s.Server.Port)
	if _, err := tectonics.ParseBoundaryMode(s.Model.BoundaryMode); err != nil {
		errs = append(errs, fmt.Errorf("model.boundary_mode: %w", err))
	}
	if _, err := tectonics.ParsePolicy(s.Conservation.Policy); err != nil {
		errs = append(errs, fmt.Errorf("conservation.policy: %w", err))
	}
	if _, err := s.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Timestep returns the step length in seconds.
func (s Settings) Timestep() float64 {
	return s.Simulation.TimestepMy * units.Megayear
}

// cmPerYear converts a surface speed into an angular speed in rad/s.
func cmPerYear(v, radius float64) float64 {
	return v / 100 / radius / units.Year
}

// Tectonics converts the model settings.
func (s Settings) Tectonics() (tectonics.Config, error) {
	mode, err := tectonics.ParseBoundaryMode(s.Model.BoundaryMode)
	if err != nil {
		return tectonics.Config{}, err
	}
	policy, err := tectonics.ParsePolicy(s.Conservation.Policy)
	if err != nil {
		return tectonics.Config{}, err
	}
	m := s.Model
	return tectonics.Config{
		Reactions: crust.ReactionParams{
			Precipitation:             m.Reactions.PrecipitationMYr / units.Year,
			ErosiveFactor:             m.Reactions.ErosiveFactor,
			WeatheringFactor:          m.Reactions.WeatheringFactor,
			CriticalSedimentThickness: m.Reactions.CriticalSedimentThickness,
			LithificationPressure:     m.Reactions.LithificationPressure,
			MetamorphismPressure:      m.Reactions.MetamorphismPressure,
		},
		RiftingCrust:              crust.RockColumn{MaficVolcanic: m.RiftingMaficVolcanic},
		AccretionPlutonicFraction: m.AccretionPlutonicFraction,
		Segments:                  m.Segments,
		MinSegmentSize:            m.MinSegmentSize,
		SegmentThreshold:          math.Cos(m.SegmentThresholdDeg * math.Pi / 180),
		PressureSmoothing:         m.PressureSmoothing,
		CleanupRadius:             m.CleanupRadius,
		MaxAngularSpeed:           cmPerYear(m.MaxPlateSpeedCmYr, units.EarthRadius),
		SplitAngularSpeed:         cmPerYear(m.SplitPlateSpeedCmYr, units.EarthRadius),
		SupercontinentDuration:    m.SupercontinentMy * units.Megayear,
		TargetPlates:              m.TargetPlates,
		DockMaxSteps:              m.DockMaxSteps,
		BoundaryMode:              mode,
		Conservation:              policy,
		DeltaTolerance:            s.Conservation.DeltaTolerance,
		DriftTolerance:            s.Conservation.DriftTolerance,
		Seed:                      s.Simulation.Seed,
	}, nil
}

// Dependencies returns the planet values the lithosphere reads.
func (s Settings) Dependencies() tectonics.Dependencies {
	m := s.Materials
	return tectonics.Dependencies{
		Sealevel:          &m.Sealevel,
		SurfaceGravity:    &m.SurfaceGravity,
		MaterialDensity:   &m.Density,
		MaterialViscosity: &m.Viscosity,
	}
}

// GenerationConfig converts the generation settings.
func (s Settings) GenerationConfig() generation.Config {
	g := s.Generation
	return generation.Config{
		Seed:              s.Simulation.Seed,
		ContinentFraction: g.ContinentFraction,
		Octaves:           g.Octaves,
		Frequency:         g.Frequency,
		Persistence:       g.Persistence,
		MaxOceanAge:       g.MaxOceanAgeMy * units.Megayear,
		ContinentAge:      g.ContinentAgeMy * units.Megayear,
	}
}

// LogLevel parses the log level.
func (s Settings) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s.Log.Level)); err != nil {
		return l, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}
