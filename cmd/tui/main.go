package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jshstorm/unit-simulator-sub000/internal/config"
	"github.com/jshstorm/unit-simulator-sub000/internal/logging"
	"github.com/jshstorm/unit-simulator-sub000/internal/scenario"
	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/jshstorm/unit-simulator-sub000/internal/tui"
)

func main() {
	var configPath string
	var scenarioPath string
	var tps int

	flag.StringVar(&configPath, "config", "", "config file (yaml or json)")
	flag.StringVar(&scenarioPath, "scenario", "", "scenario file (default: scenario.path from config)")
	flag.IntVar(&tps, "tps", 0, "ticks per second (default: viewer.ticksPerSecond)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	// the terminal belongs to the minimap, so logs only surface warnings
	log := logging.New("warn", false, os.Stderr)
	if scenarioPath == "" {
		scenarioPath = cfg.Scenario.Path
	}
	if tps <= 0 {
		tps = cfg.Viewer.TicksPerSecond
	}

	opts := cfg.Simulation.Options()
	var cmds []sim.Command
	if scenarioPath != "" {
		s, err := scenario.Load(scenarioPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if opts, err = s.Options(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if cmds, err = s.EngineCommands(); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	e := sim.NewEngine(opts, sim.WithLogger(logging.Sampled(log, time.Second, 100)))
	if err := e.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	e.EnqueueCommands(cmds...)

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	reason, err := tui.Watch(ctx, screen, e, tui.WatchOptions{TicksPerSecond: tps, Logger: log})
	stop()
	screen.Fini()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("finished at frame %d: %s\n", e.World().Frame-1, reason)
}
