package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/jshstorm/unit-simulator-sub000/internal/config"
	"github.com/jshstorm/unit-simulator-sub000/internal/logging"
	"github.com/jshstorm/unit-simulator-sub000/internal/replay"
	"github.com/jshstorm/unit-simulator-sub000/internal/scenario"
	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/jshstorm/unit-simulator-sub000/internal/viewer"
)

func main() {
	var configPath string
	var scenarioPath string
	var resumePath string
	var resumeFrame int
	var record bool

	flag.StringVar(&configPath, "config", "", "config file (yaml or json)")
	flag.StringVar(&scenarioPath, "scenario", "", "scenario file (default: scenario.path from config)")
	flag.StringVar(&resumePath, "resume", "", "start from a recorded replay")
	flag.IntVar(&resumeFrame, "frame", 0, "frame to resume at (with -resume)")
	flag.BoolVar(&record, "record", false, "record a replay into replay.dir")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)
	if scenarioPath == "" {
		scenarioPath = cfg.Scenario.Path
	}

	engineLog := logging.Sampled(log, time.Second, 100)

	name, opts, cmds, err := runSetup(cfg, scenarioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load scenario")
	}

	var e *sim.Engine
	if resumePath != "" {
		e, err = replay.Resume(resumePath, resumeFrame, opts, sim.WithLogger(engineLog))
		if err != nil {
			log.Fatal().Err(err).Str("path", resumePath).Msg("resume")
		}
		log.Info().Int("frame", e.World().Frame).Msg("resumed from replay")
	} else {
		e = sim.NewEngine(opts, sim.WithLogger(engineLog))
		if err := e.Initialize(); err != nil {
			log.Fatal().Err(err).Msg("initialize")
		}
	}
	e.EnqueueCommands(cmds...)

	var sinks sim.Callbacks
	if record || cfg.Replay.Enabled {
		if err := os.MkdirAll(cfg.Replay.Dir, 0o755); err != nil {
			log.Fatal().Err(err).Msg("replay dir")
		}
		path := filepath.Join(cfg.Replay.Dir, fmt.Sprintf("%s-%s.replay", name, e.RunID()))
		rec, err := replay.Create(path, replay.HeaderFor(e, name, 1))
		if err != nil {
			log.Fatal().Err(err).Msg("create replay")
		}
		defer func() {
			if err := rec.Close(); err != nil {
				log.Error().Err(err).Msg("close replay")
				return
			}
			log.Info().Str("path", path).Msg("replay written")
		}()
		sinks = rec
	}

	g := viewer.New(e, viewer.Options{
		Scale:          cfg.Viewer.Scale,
		TicksPerSecond: cfg.Viewer.TicksPerSecond,
		Callbacks:      sinks,
		Logger:         log,
	})
	ebiten.SetWindowTitle("Unit Simulator")
	ebiten.SetWindowSize(g.WindowSize())
	if err := ebiten.RunGame(g); err != nil {
		log.Error().Err(err).Msg("viewer exited")
	}
}

// runSetup resolves the engine options and scripted commands from a
// scenario file, or from the config when path is empty.
func runSetup(cfg config.Config, path string) (string, sim.Options, []sim.Command, error) {
	if path == "" {
		return "config", cfg.Simulation.Options(), nil, nil
	}
	s, err := scenario.Load(path)
	if err != nil {
		return "", sim.Options{}, nil, err
	}
	opts, err := s.Options()
	if err != nil {
		return "", sim.Options{}, nil, err
	}
	cmds, err := s.EngineCommands()
	if err != nil {
		return "", sim.Options{}, nil, err
	}
	name := s.Name
	if name == "" {
		name = "scenario"
	}
	return name, opts, cmds, nil
}
