package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// UNITSIM_SIMULATION_MAXFRAMES.
const EnvPrefix = "UNITSIM"

// Config is the full runtime configuration shared by every binary.
type Config struct {
	Simulation SimulationConfig `json:"simulation" mapstructure:"simulation"`
	Log        LogConfig        `json:"log" mapstructure:"log"`
	Replay     ReplayConfig     `json:"replay" mapstructure:"replay"`
	Archive    ArchiveConfig    `json:"archive" mapstructure:"archive"`
	Viewer     ViewerConfig     `json:"viewer" mapstructure:"viewer"`
	Scenario   ScenarioConfig   `json:"scenario" mapstructure:"scenario"`
}

// SimulationConfig holds engine settings.
type SimulationConfig struct {
	MaxFrames         int     `json:"maxFrames" mapstructure:"maxFrames"`
	Width             float64 `json:"width" mapstructure:"width"`
	Height            float64 `json:"height" mapstructure:"height"`
	Structures        bool    `json:"structures" mapstructure:"structures"`
	DynamicObstacles  bool    `json:"dynamicObstacles" mapstructure:"dynamicObstacles"`
	PathSmoothing     bool    `json:"pathSmoothing" mapstructure:"pathSmoothing"`
	FriendlyDoctrine  string  `json:"friendlyDoctrine" mapstructure:"friendlyDoctrine"`
	EnemyDoctrine     string  `json:"enemyDoctrine" mapstructure:"enemyDoctrine"`
	FriendlyFormation string  `json:"friendlyFormation" mapstructure:"friendlyFormation"`
	EnemyFormation    string  `json:"enemyFormation" mapstructure:"enemyFormation"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// ReplayConfig controls the msgpack frame recorder.
type ReplayConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Dir     string `json:"dir" mapstructure:"dir"`
}

// ArchiveConfig controls the run archive. A DSN starting with postgres://
// selects Postgres, anything else is a SQLite file path.
type ArchiveConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	DSN     string `json:"dsn" mapstructure:"dsn"`
}

// ViewerConfig holds window settings.
type ViewerConfig struct {
	Scale          float64 `json:"scale" mapstructure:"scale"`
	TicksPerSecond int     `json:"ticksPerSecond" mapstructure:"ticksPerSecond"`
}

// ScenarioConfig points at an optional scenario file.
type ScenarioConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

func setDefaults() {
	viper.SetDefault("simulation.maxFrames", sim.DefaultMaxFrames)
	viper.SetDefault("simulation.width", sim.DefaultWorldWidth)
	viper.SetDefault("simulation.height", sim.DefaultWorldHeight)
	viper.SetDefault("simulation.structures", false)
	viper.SetDefault("simulation.dynamicObstacles", false)
	viper.SetDefault("simulation.pathSmoothing", true)
	viper.SetDefault("simulation.friendlyDoctrine", "squad")
	viper.SetDefault("simulation.enemyDoctrine", "skirmish")
	viper.SetDefault("simulation.friendlyFormation", "squad")
	viper.SetDefault("simulation.enemyFormation", "squad")

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.pretty", true)

	viper.SetDefault("replay.enabled", false)
	viper.SetDefault("replay.dir", "./replays")

	viper.SetDefault("archive.enabled", false)
	viper.SetDefault("archive.dsn", "unitsim.db")

	viper.SetDefault("viewer.scale", 0.2)
	viper.SetDefault("viewer.ticksPerSecond", 30)

	viper.SetDefault("scenario.path", "")
}

// Load sets defaults, reads the YAML or JSON file at path when path is not
// empty, applies UNITSIM_ environment overrides and unmarshals the result.
func Load(path string) (Config, error) {
	setDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	var errs []error
	s := c.Simulation
	if s.MaxFrames <= 0 {
		errs = append(errs, fmt.Errorf("simulation.maxFrames must be positive, got %d", s.MaxFrames))
	}
	if s.Width <= 0 || s.Height <= 0 {
		errs = append(errs, fmt.Errorf("simulation size must be positive, got %.0fx%.0f", s.Width, s.Height))
	}
	if _, err := sim.ParseDoctrine(s.FriendlyDoctrine); err != nil {
		errs = append(errs, fmt.Errorf("simulation.friendlyDoctrine: %w", err))
	}
	if _, err := sim.ParseDoctrine(s.EnemyDoctrine); err != nil {
		errs = append(errs, fmt.Errorf("simulation.enemyDoctrine: %w", err))
	}
	if c.Viewer.TicksPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("viewer.ticksPerSecond must be positive, got %d", c.Viewer.TicksPerSecond))
	}
	return errors.Join(errs...)
}

// Options converts the simulation section into engine options. The caller
// decides the units and waves; arena mode picks the arena layout.
func (s SimulationConfig) Options() sim.Options {
	var o sim.Options
	if s.Structures {
		o = sim.ArenaOptions()
	} else {
		o = sim.DefaultOptions()
		o.Units = sim.DefaultSquad(s.Width, s.Height)
		o.Waves = sim.DefaultWaves(s.Width, s.Height)
	}
	o.Width = s.Width
	o.Height = s.Height
	o.MaxFrames = s.MaxFrames
	o.DynamicObstacles = s.DynamicObstacles
	o.PathSmoothing = s.PathSmoothing
	o.FriendlyDoctrine, _ = sim.ParseDoctrine(s.FriendlyDoctrine)
	o.EnemyDoctrine, _ = sim.ParseDoctrine(s.EnemyDoctrine)
	o.FriendlyFormation = sim.ParseFormation(s.FriendlyFormation)
	o.EnemyFormation = sim.ParseFormation(s.EnemyFormation)
	return o
}
