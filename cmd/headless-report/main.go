package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jshstorm/unit-simulator-sub000/internal/archive"
	"github.com/jshstorm/unit-simulator-sub000/internal/config"
	"github.com/jshstorm/unit-simulator-sub000/internal/logging"
	"github.com/jshstorm/unit-simulator-sub000/internal/replay"
	"github.com/jshstorm/unit-simulator-sub000/internal/scenario"
	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/rs/zerolog"
)

// engineLogSample thins per-tick engine debug lines after each burst.
const engineLogSample = 100

// plan is one battle setup to run.
type plan struct {
	name     string
	opts     sim.Options
	commands []sim.Command
}

func main() {
	var configPath string
	var scenarios string
	var runs int
	var ticks int
	var replayDir string
	var archiveDSN string
	var verbose bool

	flag.StringVar(&configPath, "config", "", "config file (yaml or json)")
	flag.StringVar(&scenarios, "scenario", "", "comma-separated scenario files (default: scenario.path from config)")
	flag.IntVar(&runs, "runs", 1, "runs per scenario; repeated runs double as a determinism check")
	flag.IntVar(&ticks, "ticks", 0, "override max frames per run")
	flag.StringVar(&replayDir, "replay-dir", "", "record replays into this directory")
	flag.StringVar(&archiveDSN, "archive", "", "archive runs into this database (sqlite path or postgres:// DSN)")
	flag.BoolVar(&verbose, "verbose", false, "print every run's event log")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty, os.Stderr)

	if runs <= 0 {
		fmt.Println("error: -runs must be > 0")
		os.Exit(2)
	}
	if ticks < 0 {
		fmt.Println("error: -ticks must be >= 0")
		os.Exit(2)
	}
	if replayDir != "" {
		cfg.Replay.Enabled, cfg.Replay.Dir = true, replayDir
	}
	if archiveDSN != "" {
		cfg.Archive.Enabled, cfg.Archive.DSN = true, archiveDSN
	}
	if scenarios == "" {
		scenarios = cfg.Scenario.Path
	}

	plans, err := buildPlans(cfg, scenarios, ticks)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	var store *archive.Store
	if cfg.Archive.Enabled {
		store, err = archive.Open(cfg.Archive.DSN, log)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
	}
	if cfg.Replay.Enabled {
		if err := os.MkdirAll(cfg.Replay.Dir, 0o755); err != nil {
			fmt.Printf("error: replay dir: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("=== Headless Combat Report ===\n")
	fmt.Printf("plans=%d runs=%d replay=%t archive=%t\n\n", len(plans), runs, cfg.Replay.Enabled, cfg.Archive.Enabled)

	var all []runStats
	for _, p := range plans {
		for i := 0; i < runs; i++ {
			rs, err := runPlan(p, i+1, cfg, store, log)
			if err != nil {
				fmt.Printf("error: %s run %d: %v\n", p.name, i+1, err)
				os.Exit(1)
			}
			printRun(rs)
			if verbose {
				fmt.Print(rs.log)
				fmt.Println()
			}
			all = append(all, rs)
		}
	}
	printAggregate(all)

	if store != nil {
		outcomes, err := store.Outcomes()
		if err != nil {
			log.Warn().Err(err).Msg("archive outcomes")
			return
		}
		fmt.Println("\n=== Archive Outcomes ===")
		for _, o := range outcomes {
			fmt.Printf("  %-20s %d\n", o.Reason, o.Runs)
		}
	}
}

// buildPlans loads every scenario file, or falls back to the configured
// open field when none is given.
func buildPlans(cfg config.Config, scenarios string, ticks int) ([]plan, error) {
	var plans []plan
	for _, path := range strings.Split(scenarios, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		s, err := scenario.Load(path)
		if err != nil {
			return nil, err
		}
		opts, err := s.Options()
		if err != nil {
			return nil, err
		}
		cmds, err := s.EngineCommands()
		if err != nil {
			return nil, err
		}
		name := s.Name
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		}
		plans = append(plans, plan{name: name, opts: opts, commands: cmds})
	}
	if len(plans) == 0 {
		plans = append(plans, plan{name: "config", opts: cfg.Simulation.Options()})
	}
	if ticks > 0 {
		for i := range plans {
			plans[i].opts.MaxFrames = ticks
		}
	}
	return plans, nil
}

// runPlan runs p once through the test harness with the configured replay
// and archive sinks attached.
func runPlan(p plan, index int, cfg config.Config, store *archive.Store, log zerolog.Logger) (runStats, error) {
	sinks := &fanout{}
	opts := []sim.SimOption{
		sim.WithOptions(p.opts),
		sim.WithEngineOptions(sim.WithLogger(logging.Sampled(log, time.Second, engineLogSample))),
		sim.WithCallbacks(sinks),
	}
	for _, c := range p.commands {
		opts = append(opts, sim.WithCommand(c))
	}
	ts, err := sim.BuildTestSim(opts...)
	if err != nil {
		return runStats{}, err
	}
	e := ts.Engine

	var rec *replay.Recorder
	var replayPath string
	if cfg.Replay.Enabled {
		replayPath = filepath.Join(cfg.Replay.Dir, fmt.Sprintf("%s-%s.replay", p.name, e.RunID()))
		rec, err = replay.Create(replayPath, replay.HeaderFor(e, p.name, 1))
		if err != nil {
			return runStats{}, err
		}
		sinks.add(rec)
	}
	var arc *archive.Recorder
	if store != nil {
		arc = archive.NewRecorder(e, p.name)
		sinks.add(arc)
	}

	reason := ts.RunToCompletion(e.Options().MaxFrames + 1)
	if ts.Err != nil {
		return runStats{}, ts.Err
	}

	if rec != nil {
		if err := rec.Close(); err != nil {
			return runStats{}, err
		}
		log.Info().Str("path", replayPath).Msg("replay written")
	}
	if arc != nil {
		run, err := arc.Run()
		if err != nil {
			return runStats{}, err
		}
		if err := store.Save(run); err != nil {
			return runStats{}, err
		}
	}

	rs := collectStats(p.name, index, reason, ts.Snapshot(), ts.SimLog)
	rs.replayPath = replayPath
	return rs, nil
}

// fanout is a sink list that can grow after the engine exists.
type fanout struct{ sinks sim.MultiCallbacks }

func (f *fanout) add(cb sim.Callbacks) { f.sinks = append(f.sinks, cb) }

func (f *fanout) OnFrameGenerated(s *sim.FrameSnapshot) { f.sinks.OnFrameGenerated(s) }
func (f *fanout) OnUnitEvent(e sim.UnitEvent)           { f.sinks.OnUnitEvent(e) }
func (f *fanout) OnStateChanged(msg string)             { f.sinks.OnStateChanged(msg) }
func (f *fanout) OnSimulationComplete(frame int, r sim.CompletionReason) {
	f.sinks.OnSimulationComplete(frame, r)
}
