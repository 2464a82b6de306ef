package sim

import "fmt"

// TestSim is a headless harness around an Engine used by tests and the
// batch report. It starts from an empty field with no waves so each
// scenario places exactly the units it needs.
type TestSim struct {
	Engine *Engine
	SimLog *SimLog
	Last   *FrameSnapshot
	Err    error

	opts     Options
	engOpts  []EngineOption
	commands []Command
	extra    Callbacks
	cb       Callbacks
}

// simOptionKind controls the pass in which an option is applied.
type simOptionKind int

const (
	simOptInfra   simOptionKind = iota // map size, doctrines, collaborators, applied first
	simOptUnit                         // initial units, applied after infra
	simOptCommand                      // scheduled commands, enqueued after Initialize
)

// SimOption is a builder function applied to a TestSim during construction.
type SimOption struct {
	kind simOptionKind
	fn   func(*TestSim)
}

// WithOptions replaces the whole option set. Pass it before any option that
// tweaks individual fields.
func WithOptions(o Options) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.opts = o }}
}

// WithEngineOptions forwards engine construction options such as a logger.
func WithEngineOptions(eo ...EngineOption) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.engOpts = append(ts.engOpts, eo...) }}
}

// WithMapSize sets the playfield dimensions.
func WithMapSize(w, h float64) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		ts.opts.Width = w
		ts.opts.Height = h
	}}
}

// WithMaxFrames caps the run length reported by snapshots.
func WithMaxFrames(n int) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.opts.MaxFrames = n }}
}

// WithStructures enables the tower arena.
func WithStructures() SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.opts.Structures = true }}
}

// WithDynamicObstacles enables crowd blocking on the nav grid.
func WithDynamicObstacles() SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.opts.DynamicObstacles = true }}
}

// WithPathSmoothing toggles line-of-sight smoothing of planned paths.
func WithPathSmoothing(on bool) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.opts.PathSmoothing = on }}
}

// WithDoctrine sets the doctrine of faction's coordinator.
func WithDoctrine(f Faction, d Doctrine) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		if f == Friendly {
			ts.opts.FriendlyDoctrine = d
		} else {
			ts.opts.EnemyDoctrine = d
		}
	}}
}

// WithFormation sets the formation of faction's coordinator.
func WithFormation(f Faction, ft FormationType) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		if f == Friendly {
			ts.opts.FriendlyFormation = ft
		} else {
			ts.opts.EnemyFormation = ft
		}
	}}
}

// WithWaves installs a wave director.
func WithWaves(ws WaveSet) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.opts.Waves = ws }}
}

// WithCatalogEntry registers a unit template under kind.
func WithCatalogEntry(kind string, spec UnitSpec) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) {
		if ts.opts.Catalog == nil {
			ts.opts.Catalog = map[string]UnitSpec{}
		}
		ts.opts.Catalog[kind] = spec
	}}
}

// WithPathfinder replaces the grid pathfinder.
func WithPathfinder(p Pathfinder) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.opts.Pathfinder = p }}
}

// WithTerrain replaces the map terrain.
func WithTerrain(t Terrain) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.opts.Terrain = t }}
}

// WithVerbose enables per-tick position logging.
func WithVerbose(v bool) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.SimLog = NewSimLog(v) }}
}

// WithCallbacks adds a callback sink next to the SimLog.
func WithCallbacks(cb Callbacks) SimOption {
	return SimOption{simOptInfra, func(ts *TestSim) { ts.extra = cb }}
}

// WithUnit adds a unit built from spec.
func WithUnit(spec UnitSpec) SimOption {
	return SimOption{simOptUnit, func(ts *TestSim) { ts.opts.Units = append(ts.opts.Units, spec) }}
}

// WithFriendly adds a default friendly unit of role at (x,y).
func WithFriendly(x, y float64, role Role) SimOption {
	return WithUnit(UnitSpec{Faction: Friendly, Role: role, Position: V(x, y)})
}

// WithEnemy adds a default enemy unit of role at (x,y).
func WithEnemy(x, y float64, role Role) SimOption {
	return WithUnit(UnitSpec{Faction: Enemy, Role: role, Position: V(x, y)})
}

// WithCommand schedules c after initialization.
func WithCommand(c Command) SimOption {
	return SimOption{simOptCommand, func(ts *TestSim) { ts.commands = append(ts.commands, c) }}
}

// NewTestSim constructs a TestSim from the given options in ordered passes:
//  1. Infrastructure (map size, doctrines, collaborators, verbose)
//  2. Units
//  3. Initialize the engine
//  4. Commands
//
// A configuration the engine rejects panics; it is a bug in the test.
func NewTestSim(opts ...SimOption) *TestSim {
	ts, err := BuildTestSim(opts...)
	if err != nil {
		panic(fmt.Sprintf("test sim: %v", err))
	}
	return ts
}

// BuildTestSim is NewTestSim for configurations that come from outside,
// returning the engine's validation error instead of panicking.
func BuildTestSim(opts ...SimOption) (*TestSim, error) {
	ts := &TestSim{
		SimLog: NewSimLog(false),
		opts: Options{
			Width:            1200,
			Height:           800,
			MaxFrames:        DefaultMaxFrames,
			FriendlyDoctrine: DoctrineSquad,
			EnemyDoctrine:    DoctrineSkirmish,
		},
	}
	for _, kind := range []simOptionKind{simOptInfra, simOptUnit, simOptCommand} {
		for _, o := range opts {
			if o.kind == kind {
				o.fn(ts)
			}
		}
	}
	ts.Engine = NewEngine(ts.opts, ts.engOpts...)
	if err := ts.Engine.Initialize(); err != nil {
		return nil, err
	}
	ts.Engine.EnqueueCommands(ts.commands...)
	ts.cb = MultiCallbacks{
		SimLogCallbacks{Log: ts.SimLog, Frame: ts.CurrentTick},
		ts.extra,
	}
	return ts, nil
}

// Callbacks is the sink the harness steps with: the SimLog plus any extra.
func (ts *TestSim) Callbacks() Callbacks { return ts.cb }

// RunToCompletion steps until the engine reports an end condition or
// maxTicks pass, firing OnSimulationComplete like Engine.Run does.
func (ts *TestSim) RunToCompletion(maxTicks int) CompletionReason {
	for i := 0; i < maxTicks; i++ {
		if !ts.step() {
			return CompletionNone
		}
		if r := ts.Engine.Completion(); r != CompletionNone {
			ts.cb.OnSimulationComplete(ts.Last.Frame, r)
			return r
		}
	}
	return CompletionNone
}

// World is the live arena of the engine.
func (ts *TestSim) World() *World { return ts.Engine.World() }

// Unit finds a live unit record.
func (ts *TestSim) Unit(f Faction, id int) *Unit { return ts.Engine.World().Unit(f, id) }

// Structure finds a live structure record.
func (ts *TestSim) Structure(f Faction, id int) *Structure {
	return ts.Engine.World().Structure(f, id)
}

// CurrentTick returns the frame the next step will simulate.
func (ts *TestSim) CurrentTick() int {
	return ts.Engine.World().Frame
}

// step runs one tick and reports whether the harness can continue.
func (ts *TestSim) step() bool {
	if ts.Err != nil {
		return false
	}
	snap, err := ts.Engine.Step(ts.cb)
	if err != nil {
		ts.Err = err
		return false
	}
	ts.Last = snap
	return true
}

// RunTicks advances the simulation n ticks, logging events to SimLog.
func (ts *TestSim) RunTicks(n int) {
	for i := 0; i < n; i++ {
		if !ts.step() {
			return
		}
	}
}

// RunUntil advances the simulation up to maxTicks, stopping early if predicate
// returns true. Returns the frame at which the predicate was satisfied, or -1.
func (ts *TestSim) RunUntil(predicate func(*TestSim) bool, maxTicks int) int {
	for i := 0; i < maxTicks; i++ {
		if !ts.step() {
			return -1
		}
		if predicate(ts) {
			return ts.Last.Frame
		}
	}
	return -1
}

// Snapshot returns the latest frame, capturing one if no tick has run.
func (ts *TestSim) Snapshot() *FrameSnapshot {
	if ts.Last != nil {
		return ts.Last
	}
	snap, _ := ts.Engine.CurrentFrameData()
	return snap
}
