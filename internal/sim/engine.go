package sim

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Engine errors.
var (
	ErrNotInitialized = errors.New("engine not initialized")
	ErrReentrant      = errors.New("engine step already in progress")
	ErrInvalidOptions = errors.New("invalid engine options")
)

type engineState int

const (
	stateUninitialized engineState = iota
	stateInitialized
	stateStepping
)

// DefaultCellSize is the nav grid resolution in world units.
const DefaultCellSize = 20.0

// Options configures a run. Zero sizes and frame caps take the defaults.
type Options struct {
	Width, Height float64
	MaxFrames     int
	CellSize      float64

	// Structures enables the arena: six towers, the river with its two
	// bridges, and the match session.
	Structures       bool
	DynamicObstacles bool
	PathSmoothing    bool

	FriendlyDoctrine  Doctrine
	EnemyDoctrine     Doctrine
	FriendlyFormation FormationType
	EnemyFormation    FormationType

	// Units are created at Initialize, in order. Waves are released one at
	// a time once every enemy is dead; nil means no wave director.
	Units   []UnitSpec
	Waves   WaveSet
	Catalog map[string]UnitSpec

	// Pathfinder and Terrain replace the grid-backed defaults when set.
	Pathfinder Pathfinder
	Terrain    Terrain
}

// DefaultOptions is the open-field layout: the four-unit squad against
// three enemy waves.
func DefaultOptions() Options {
	return Options{
		Width:            DefaultWorldWidth,
		Height:           DefaultWorldHeight,
		MaxFrames:        DefaultMaxFrames,
		PathSmoothing:    true,
		FriendlyDoctrine: DoctrineSquad,
		EnemyDoctrine:    DoctrineSkirmish,
		Units:            DefaultSquad(DefaultWorldWidth, DefaultWorldHeight),
		Waves:            DefaultWaves(DefaultWorldWidth, DefaultWorldHeight),
	}
}

// ArenaOptions is the tower match on the river map.
func ArenaOptions() Options {
	o := DefaultOptions()
	o.Structures = true
	o.DynamicObstacles = true
	o.Units = ArenaSquad()
	o.Waves = ArenaWaves()
	return o
}

func (o *Options) normalize() error {
	if o.Width == 0 {
		o.Width = DefaultWorldWidth
	}
	if o.Height == 0 {
		o.Height = DefaultWorldHeight
	}
	if o.MaxFrames == 0 {
		o.MaxFrames = DefaultMaxFrames
	}
	if o.CellSize == 0 {
		o.CellSize = DefaultCellSize
	}
	if o.Width < 0 || o.Height < 0 || o.CellSize < 0 || o.MaxFrames < 0 {
		return fmt.Errorf("%w: negative size or frame cap", ErrInvalidOptions)
	}
	return nil
}

// EngineOption customizes an Engine at construction.
type EngineOption func(*Engine)

// WithLogger routes engine diagnostics to log.
func WithLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

// WithRunID fixes the run id stamped on every snapshot.
func WithRunID(id uuid.UUID) EngineOption {
	return func(e *Engine) { e.runID = id }
}

// Engine owns one simulation: the world, both coordinators, the wave
// director, the command queue and the match session. Step is synchronous
// and not reentrant; only Stop may be called from another goroutine.
type Engine struct {
	opts  Options
	runID uuid.UUID
	log   zerolog.Logger
	state engineState

	world    *World
	coords   [2]*Coordinator
	director *waveDirector
	session  *Session
	queue    []Command
	last     *FrameSnapshot

	stop atomic.Bool
}

// NewEngine builds an uninitialized engine.
func NewEngine(opts Options, options ...EngineOption) *Engine {
	e := &Engine{opts: opts, log: zerolog.Nop()}
	for _, o := range options {
		o(e)
	}
	if e.runID == uuid.Nil {
		e.runID = uuid.New()
	}
	e.log = e.log.With().Str("run", e.runID.String()).Logger()
	return e
}

// RunID identifies this engine's run.
func (e *Engine) RunID() uuid.UUID { return e.runID }

// Options returns the options after defaults were applied.
func (e *Engine) Options() Options { return e.opts }

// Initialized reports whether Step may be called.
func (e *Engine) Initialized() bool { return e.state != stateUninitialized }

// World exposes the live arena. Callers must not hold on to it across
// Step calls from another goroutine.
func (e *Engine) World() *World { return e.world }

// Session is the match state, nil without structures.
func (e *Engine) Session() *Session { return e.session }

// Coordinator returns the coordinator driving faction.
func (e *Engine) Coordinator(f Faction) *Coordinator { return e.coords[f] }

// Initialize builds the world from the options: nav grid, terrain,
// structures, initial units and the first wave.
func (e *Engine) Initialize() error {
	if err := e.build(); err != nil {
		return err
	}
	for _, spec := range e.opts.Units {
		e.world.spawn(spec)
	}
	e.releaseWave()
	e.log.Info().
		Int("friendlies", e.world.LivingCount(Friendly)).
		Int("waves", len(e.opts.Waves)).
		Bool("structures", e.opts.Structures).
		Msg("engine initialized")
	return nil
}

// build resets all state and creates the empty world with its
// collaborators.
func (e *Engine) build() error {
	if err := e.opts.normalize(); err != nil {
		return err
	}
	o := e.opts
	e.last = nil
	e.stop.Store(false)

	w := newWorld(o.Width, o.Height, e.log)
	w.catalog = o.Catalog

	var providers []ObstacleProvider
	if o.Structures {
		w.structures = DefaultStructures()
		w.MainTarget = kingOf(w.structures, Enemy).Position
		providers = append(providers, RiverObstacles{Width: o.Width}, StructureObstacles{Structures: w.structures})
		e.session = &Session{}
	} else {
		e.session = nil
	}
	grid := NewNavGrid(o.Width, o.Height, o.CellSize, providers...)

	w.pathfinder = o.Pathfinder
	if w.pathfinder == nil {
		w.pathfinder = &GridPathfinder{Grid: grid, Smooth: o.PathSmoothing}
	}
	w.terrain = o.Terrain
	if w.terrain == nil {
		w.terrain = &MapTerrain{Width: o.Width, Height: o.Height, River: o.Structures, Grid: grid}
	}
	if o.DynamicObstacles {
		w.dynamic = NewDynamicObstacles(grid)
	}
	e.world = w

	e.coords[Friendly] = &Coordinator{Faction: Friendly, Doctrine: o.FriendlyDoctrine, Formation: o.FriendlyFormation}
	e.coords[Enemy] = &Coordinator{Faction: Enemy, Doctrine: o.EnemyDoctrine, Formation: o.EnemyFormation}
	e.director = nil
	if o.Waves != nil {
		e.director = &waveDirector{waves: o.Waves}
	}
	e.state = stateInitialized
	return nil
}

// Reset discards the world and returns the engine to its uninitialized
// state. Pending commands are dropped.
func (e *Engine) Reset() {
	e.world = nil
	e.director = nil
	e.session = nil
	e.coords = [2]*Coordinator{}
	e.queue = nil
	e.last = nil
	e.stop.Store(false)
	e.state = stateUninitialized
}

// Stop asks Run to return before its next tick. Safe from any goroutine.
func (e *Engine) Stop() { e.stop.Store(true) }

// EnqueueCommand schedules c. Commands due at or before the current frame
// run at the start of the next Step.
func (e *Engine) EnqueueCommand(c Command) {
	if c != nil {
		e.queue = append(e.queue, c)
	}
}

// EnqueueCommands schedules every command in order.
func (e *Engine) EnqueueCommands(cs ...Command) {
	for _, c := range cs {
		e.EnqueueCommand(c)
	}
}

// PendingCommands is the number of commands not yet applied.
func (e *Engine) PendingCommands() int { return len(e.queue) }

// drainCommands applies every due command in enqueue order and keeps the
// rest queued in their original order.
func (e *Engine) drainCommands() {
	if len(e.queue) == 0 {
		return
	}
	frame := e.world.Frame
	keep := e.queue[:0]
	var due []Command
	for _, c := range e.queue {
		if c.DueFrame() <= frame {
			due = append(due, c)
		} else {
			keep = append(keep, c)
		}
	}
	e.queue = keep
	for _, c := range due {
		c.apply(e.world)
	}
}

// pendingEnemySpawns reports whether an enemy SpawnUnit is still queued.
func (e *Engine) pendingEnemySpawns() bool {
	for _, c := range e.queue {
		if s, ok := c.(SpawnUnit); ok && s.Spec.Faction == Enemy {
			return true
		}
	}
	return false
}

// releaseWave enqueues the next wave's spawns.
func (e *Engine) releaseWave() {
	if !e.director.HasMoreWaves() {
		return
	}
	cmds := e.director.release(e.world.Frame)
	e.EnqueueCommands(cmds...)
	e.log.Info().Int("frame", e.world.Frame).Int("wave", e.director.CurrentWave()).Int("spawns", len(cmds)).Msg("wave released")
	e.world.stateChanged(fmt.Sprintf("wave %d released", e.director.CurrentWave()))
}

func (e *Engine) allWavesCleared() bool {
	return !e.director.HasMoreWaves() && e.world.LivingCount(Enemy) == 0 && !e.pendingEnemySpawns()
}

// Step advances one tick and returns its snapshot.
func (e *Engine) Step(cb Callbacks) (*FrameSnapshot, error) {
	switch e.state {
	case stateUninitialized:
		return nil, ErrNotInitialized
	case stateStepping:
		return nil, ErrReentrant
	}
	if cb == nil {
		cb = NopCallbacks{}
	}
	e.state = stateStepping
	defer func() { e.state = stateInitialized }()

	w := e.world
	w.cb = cb
	defer func() { w.cb = NopCallbacks{} }()

	if e.director.HasMoreWaves() && w.LivingCount(Enemy) == 0 && !e.pendingEnemySpawns() {
		e.releaseWave()
	}
	e.drainCommands()

	if w.dynamic != nil && w.dynamic.MaybeUpdate(w.Frame, w.AllUnits()) {
		w.log.Debug().Int("frame", w.Frame).Int("cells", len(w.dynamic.Cells())).Msg("dynamic obstacles refreshed")
	}

	e.coords[Enemy].update(w)
	e.coords[Friendly].update(w)
	w.structurePass()
	w.applyEvents()

	if e.session != nil {
		prev := e.session.Result
		e.session.update(w.structures)
		if prev == InProgress && e.session.Result != InProgress {
			e.log.Info().Int("frame", w.Frame).Stringer("result", e.session.Result).Stringer("condition", e.session.WinCondition).Msg("match decided")
			w.stateChanged(fmt.Sprintf("match decided: %s", e.session.Result))
		}
	}
	w.reconcileSlots()

	snap := e.capture()
	e.last = snap
	cb.OnFrameGenerated(snap)
	w.Frame++
	return snap, nil
}

// Run steps until an end condition is met, Stop is called or ctx is done.
func (e *Engine) Run(ctx context.Context, cb Callbacks) (CompletionReason, error) {
	if e.state == stateUninitialized {
		return CompletionNone, ErrNotInitialized
	}
	if cb == nil {
		cb = NopCallbacks{}
	}
	for {
		reason := CompletionNone
		switch {
		case ctx.Err() != nil:
			reason = Cancelled
		case e.stop.Swap(false):
			reason = Stopped
		}
		if reason == CompletionNone {
			snap, err := e.Step(cb)
			if err != nil {
				return CompletionNone, fmt.Errorf("step frame %d: %w", e.world.Frame, err)
			}
			reason = e.completion(snap)
		}
		if reason != CompletionNone {
			frame := e.world.Frame - 1
			e.log.Info().Int("frame", frame).Stringer("reason", reason).Msg("simulation complete")
			cb.OnSimulationComplete(frame, reason)
			return reason, nil
		}
	}
}

// Completion reports whether the latest tick ended the run, for callers
// that drive Step themselves.
func (e *Engine) Completion() CompletionReason {
	if e.last == nil {
		return CompletionNone
	}
	return e.completion(e.last)
}

// completion decides whether the run is over after snap.
func (e *Engine) completion(snap *FrameSnapshot) CompletionReason {
	if e.session != nil {
		switch e.session.Result {
		case FriendlyWin:
			return FriendlyVictory
		case EnemyWin:
			return EnemyVictory
		case Draw:
			return MatchDraw
		}
	}
	if snap.MaxFramesReached {
		return MaxFramesReached
	}
	if e.session == nil && snap.AllWavesCleared {
		return AllWavesCleared
	}
	return CompletionNone
}

// CurrentFrameData is the latest snapshot, or a fresh capture before the
// first Step.
func (e *Engine) CurrentFrameData() (*FrameSnapshot, error) {
	if e.state == stateUninitialized {
		return nil, ErrNotInitialized
	}
	if e.last != nil {
		return e.last, nil
	}
	return e.capture(), nil
}

// capture deep-copies the engine into a snapshot of the current frame.
func (e *Engine) capture() *FrameSnapshot {
	w := e.world
	snap := &FrameSnapshot{
		RunID:            e.runID.String(),
		Frame:            w.Frame,
		CurrentWave:      e.director.CurrentWave(),
		HasMoreWaves:     e.director.HasMoreWaves(),
		AllWavesCleared:  e.allWavesCleared(),
		MaxFramesReached: w.Frame >= e.opts.MaxFrames-1,
		Width:            w.Width,
		Height:           w.Height,
		MainTarget:       w.MainTarget,
		LivingFriendlies: w.LivingCount(Friendly),
		LivingEnemies:    w.LivingCount(Enemy),
		NextIDs:          w.nextID,
		Friendlies:       make([]UnitState, 0, len(w.units[Friendly])),
		Enemies:          make([]UnitState, 0, len(w.units[Enemy])),
	}
	for _, u := range w.units[Friendly] {
		snap.Friendlies = append(snap.Friendlies, unitState(u))
	}
	for _, u := range w.units[Enemy] {
		snap.Enemies = append(snap.Enemies, unitState(u))
	}
	for _, s := range w.structures {
		snap.Structures = append(snap.Structures, structureState(s))
	}
	if e.session != nil {
		s := *e.session
		snap.Session = &s
	}
	for f := range e.coords {
		snap.Coordinators[f] = e.coords[f].state()
	}
	if w.dynamic != nil {
		snap.DynamicCells = w.dynamic.Cells()
		snap.DynamicLastUpdate = w.dynamic.LastUpdate()
	}
	return snap
}

// LoadState replaces the world with snap. The next Step simulates the
// frame after snap. Pending commands are dropped; the wave director keeps
// the configured waves and resumes after snap's current wave.
func (e *Engine) LoadState(snap *FrameSnapshot) error {
	if snap == nil {
		return fmt.Errorf("load state: %w: nil snapshot", ErrInvalidOptions)
	}
	if e.state == stateStepping {
		return ErrReentrant
	}
	if snap.Width > 0 && snap.Height > 0 {
		e.opts.Width, e.opts.Height = snap.Width, snap.Height
	}
	e.opts.Structures = len(snap.Structures) > 0
	e.queue = nil
	if err := e.build(); err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	w := e.world

	for _, list := range [][]UnitState{snap.Friendlies, snap.Enemies} {
		for _, st := range list {
			u, err := restoreUnit(st)
			if err != nil {
				e.Reset()
				return fmt.Errorf("load state frame %d: %w", snap.Frame, err)
			}
			w.insert(u)
		}
	}
	for f := range w.nextID {
		w.nextID[f] = max(w.nextID[f], snap.NextIDs[f])
	}
	w.structures = nil
	for _, st := range snap.Structures {
		w.structures = append(w.structures, restoreStructure(st))
	}
	if e.session != nil && snap.Session != nil {
		*e.session = *snap.Session
	}
	w.MainTarget = snap.MainTarget
	w.restoreRings()

	for f := range e.coords {
		e.coords[f].restore(snap.Coordinators[f])
	}
	if w.dynamic != nil {
		w.dynamic.Restore(snap.DynamicCells, snap.DynamicLastUpdate)
	}
	if e.director != nil {
		e.director.current = min(max(0, snap.CurrentWave), len(e.director.waves))
	}

	w.Frame = snap.Frame + 1
	e.last = nil
	e.log.Info().Int("frame", snap.Frame).Msg("state loaded")
	w.stateChanged(fmt.Sprintf("state loaded from frame %d", snap.Frame))
	return nil
}

// InjectUnit creates a unit immediately, outside the command queue.
func (e *Engine) InjectUnit(spec UnitSpec) (UnitKey, error) {
	if e.state == stateUninitialized {
		return UnitKey{}, ErrNotInitialized
	}
	if spec.Faction != Friendly && spec.Faction != Enemy {
		return UnitKey{}, fmt.Errorf("inject unit: %w: faction %d", ErrInvalidOptions, spec.Faction)
	}
	return e.world.spawn(spec).Key(), nil
}

// RemoveUnit deletes a unit immediately. It reports whether the unit
// existed.
func (e *Engine) RemoveUnit(id int, faction Faction) bool {
	if e.state == stateUninitialized {
		return false
	}
	return RemoveUnit{At: e.world.Frame, Faction: faction, ID: id}.apply(e.world)
}

// ModifyUnit runs fn on a unit and normalizes the result: identity is
// preserved, HP and position are clamped, and a unit left at zero HP dies
// with its death abilities. It reports whether the unit existed.
func (e *Engine) ModifyUnit(id int, faction Faction, fn func(*Unit)) bool {
	if e.state == stateUninitialized {
		return false
	}
	w := e.world
	u := w.Unit(faction, id)
	if u == nil {
		w.unknown(modifyRequest{faction: faction, id: id}, "unknown unit")
		return false
	}
	wasDead := u.Dead
	fn(u)
	u.ID, u.Faction = id, faction
	u.MaxHP = max(1, u.MaxHP)
	u.HP = clampHP(u.HP, u.MaxHP)
	u.Position = u.Position.ClampTo(w.Width, w.Height)
	switch {
	case (u.HP <= 0 || u.Dead) && !wasDead:
		u.Dead = false
		w.processDeaths([]*Unit{u})
	case !u.Dead && wasDead:
		w.revive(u, max(1, u.HP))
	}
	if u.Dead {
		w.releaseTarget(u)
		u.HP = 0
	}
	return true
}

// modifyRequest names the unit a ModifyUnit call addressed, for logs.
type modifyRequest struct {
	faction Faction
	id      int
}

func (m modifyRequest) String() string { return fmt.Sprintf("modify %s#%d", m.faction, m.id) }

// --- slot invariant ---

// reconcileSlots makes every ring agree with its attackers' claims.
func (w *World) reconcileSlots() {
	check := func(ring *SlotRing, ref TargetRef) {
		for i := range NumAttackSlots {
			id, ok := ring.Occupant(i)
			if !ok {
				continue
			}
			a := w.Unit(ref.Faction.Opponent(), id)
			if a == nil || a.Dead || a.Target != ref || a.TakenSlot != i {
				ring.clearSlot(i)
			}
		}
	}
	for _, u := range w.AllUnits() {
		check(&u.Slots, u.Ref())
	}
	for _, s := range w.structures {
		check(&s.Slots, s.Ref())
	}
	for _, u := range w.AllUnits() {
		if u.TakenSlot == noSlot {
			continue
		}
		h := w.holderOf(u.Target)
		if u.Dead || h == nil || !h.Ring().holds(u.TakenSlot, u.ID) {
			u.TakenSlot = noSlot
		}
	}
}

// VerifySlots lists every violation of the slot invariant: each attacker
// holds at most one slot, only on its current target, and every ring entry
// points back at an attacker that claims it.
func (e *Engine) VerifySlots() []string {
	if e.world == nil {
		return nil
	}
	w := e.world
	var out []string
	verify := func(label string, ring *SlotRing, ref TargetRef) {
		for i := range NumAttackSlots {
			id, ok := ring.Occupant(i)
			if !ok {
				continue
			}
			a := w.Unit(ref.Faction.Opponent(), id)
			switch {
			case a == nil:
				out = append(out, fmt.Sprintf("%s slot %d: unknown attacker %d", label, i, id))
			case a.Dead:
				out = append(out, fmt.Sprintf("%s slot %d: dead attacker %s", label, i, a.Label()))
			case a.Target != ref:
				out = append(out, fmt.Sprintf("%s slot %d: %s targets something else", label, i, a.Label()))
			case a.TakenSlot != i:
				out = append(out, fmt.Sprintf("%s slot %d: %s claims slot %d", label, i, a.Label(), a.TakenSlot))
			}
		}
	}
	for _, u := range w.AllUnits() {
		verify(u.Label(), &u.Slots, u.Ref())
		if u.TakenSlot == noSlot {
			continue
		}
		h := w.holderOf(u.Target)
		switch {
		case u.Dead:
			out = append(out, fmt.Sprintf("%s: dead but holds slot %d", u.Label(), u.TakenSlot))
		case h == nil:
			out = append(out, fmt.Sprintf("%s: slot %d without a target", u.Label(), u.TakenSlot))
		case !h.Ring().holds(u.TakenSlot, u.ID):
			out = append(out, fmt.Sprintf("%s: slot %d not held on target ring", u.Label(), u.TakenSlot))
		}
	}
	for _, s := range w.structures {
		verify(s.Label(), &s.Slots, s.Ref())
	}
	return out
}
