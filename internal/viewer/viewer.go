// Package viewer is the desktop window onto a running engine.
package viewer

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/atotto/clipboard"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/rs/zerolog"
	"golang.org/x/image/font/basicfont"
)

// panelWidth is the pixel width of the side log panel.
const panelWidth = 360

// maxMessages bounds the state message history shown in the panel.
const maxMessages = 18

// Options configures a Game.
type Options struct {
	Scale          float64       // screen pixels per world unit
	TicksPerSecond int           // engine ticks per second at 1x
	Callbacks      sim.Callbacks // extra sinks, e.g. a replay recorder
	Logger         zerolog.Logger
}

// Game drives an engine from ebiten's update loop and draws each frame.
type Game struct {
	engine *sim.Engine
	sinks  sim.Callbacks
	log    zerolog.Logger
	face   text.Face

	scale    float64
	tickRate float64 // engine ticks per ebiten update at 1x

	speed     float64 // 0 = paused
	tickAccum float64
	done      bool
	reason    sim.CompletionReason

	last     *sim.FrameSnapshot
	messages []string
	selected *sim.UnitKey

	showPaths bool
	showSlots bool
	showHUD   bool
	prevKeys  map[ebiten.Key]bool
	prevLeft  bool
	prevRight bool
}

// New wraps an initialized engine.
func New(e *sim.Engine, opts Options) *Game {
	if opts.Scale <= 0 {
		opts.Scale = 0.2
	}
	if opts.TicksPerSecond <= 0 {
		opts.TicksPerSecond = 30
	}
	g := &Game{
		engine:    e,
		sinks:     opts.Callbacks,
		log:       opts.Logger,
		face:      text.NewGoXFace(basicfont.Face7x13),
		scale:     opts.Scale,
		tickRate:  float64(opts.TicksPerSecond) / float64(ebiten.DefaultTPS),
		speed:     1,
		showSlots: true,
		showHUD:   true,
		prevKeys:  make(map[ebiten.Key]bool),
	}
	if snap, err := e.CurrentFrameData(); err == nil {
		g.last = snap
	}
	return g
}

// WindowSize is the window size that fits the whole map plus the panel.
func (g *Game) WindowSize() (int, int) {
	o := g.engine.Options()
	return int(o.Width*g.scale) + panelWidth, int(o.Height * g.scale)
}

// Layout implements ebiten.Game.
func (g *Game) Layout(_, _ int) (int, int) { return g.WindowSize() }

// Update implements ebiten.Game.
func (g *Game) Update() error {
	g.handleInput()
	if g.done || g.speed <= 0 {
		return nil
	}
	g.tickAccum += g.tickRate * g.speed
	for g.tickAccum >= 1 && !g.done {
		g.tickAccum--
		if err := g.tick(); err != nil {
			return err
		}
	}
	return nil
}

// tick advances the engine once and records completion.
func (g *Game) tick() error {
	snap, err := g.engine.Step(g.callbacks())
	if err != nil {
		return fmt.Errorf("viewer: step: %w", err)
	}
	g.last = snap
	if r := g.engine.Completion(); r != sim.CompletionNone {
		g.done, g.reason = true, r
		frame := g.engine.World().Frame - 1
		g.log.Info().Int("frame", frame).Stringer("reason", r).Msg("simulation complete")
		if g.sinks != nil {
			g.sinks.OnSimulationComplete(frame, r)
		}
		g.addMessage(fmt.Sprintf("T=%d complete: %s", frame, r))
	}
	return nil
}

func (g *Game) callbacks() sim.Callbacks {
	own := messageSink{g}
	if g.sinks == nil {
		return own
	}
	return sim.MultiCallbacks{own, g.sinks}
}

// messageSink feeds engine state messages into the side panel.
type messageSink struct{ g *Game }

func (m messageSink) OnFrameGenerated(*sim.FrameSnapshot)            {}
func (m messageSink) OnUnitEvent(sim.UnitEvent)                      {}
func (m messageSink) OnSimulationComplete(int, sim.CompletionReason) {}
func (m messageSink) OnStateChanged(msg string) {
	m.g.addMessage(fmt.Sprintf("T=%d %s", m.g.engine.World().Frame, msg))
}

func (g *Game) addMessage(msg string) {
	g.messages = append(g.messages, msg)
	if over := len(g.messages) - maxMessages; over > 0 {
		g.messages = g.messages[over:]
	}
}

// Done reports whether the run has completed and why.
func (g *Game) Done() (bool, sim.CompletionReason) { return g.done, g.reason }

func (g *Game) pressed(k ebiten.Key, cur map[ebiten.Key]bool) bool {
	cur[k] = ebiten.IsKeyPressed(k)
	return cur[k] && !g.prevKeys[k]
}

func (g *Game) handleInput() {
	cur := map[ebiten.Key]bool{}

	pause := g.pressed(ebiten.KeyP, cur)
	if g.pressed(ebiten.KeySpace, cur) || pause {
		g.togglePause()
	}
	if g.pressed(ebiten.KeyComma, cur) {
		g.speed = slower(g.speed)
	}
	if g.pressed(ebiten.KeyPeriod, cur) {
		g.speed = faster(g.speed)
	}
	if g.pressed(ebiten.KeyN, cur) && g.speed == 0 && !g.done {
		if err := g.tick(); err != nil {
			g.log.Error().Err(err).Msg("single step failed")
		}
	}
	if g.pressed(ebiten.KeyT, cur) {
		g.showPaths = !g.showPaths
	}
	if g.pressed(ebiten.KeyR, cur) {
		g.showSlots = !g.showSlots
	}
	if g.pressed(ebiten.KeyH, cur) {
		g.showHUD = !g.showHUD
	}
	if g.pressed(ebiten.KeyC, cur) {
		g.copyFrame()
	}

	left := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	if left && !g.prevLeft {
		mx, my := ebiten.CursorPosition()
		g.selectAt(g.toWorld(mx, my))
	}
	g.prevLeft = left

	right := ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight)
	if right && !g.prevRight {
		mx, my := ebiten.CursorPosition()
		g.orderMove(g.toWorld(mx, my))
	}
	g.prevRight = right

	g.prevKeys = cur
}

func (g *Game) togglePause() {
	if g.speed > 0 {
		g.speed = 0
	} else {
		g.speed = 1
	}
}

var speeds = []float64{0, 0.25, 0.5, 1, 2, 4, 8}

func slower(s float64) float64 {
	for i := len(speeds) - 1; i > 0; i-- {
		if speeds[i] <= s {
			if speeds[i] == s {
				return speeds[i-1]
			}
			return speeds[i]
		}
	}
	return 0
}

func faster(s float64) float64 {
	for _, v := range speeds {
		if v > s {
			return v
		}
	}
	return speeds[len(speeds)-1]
}

func (g *Game) toWorld(px, py int) sim.Vec2 {
	return sim.V(float64(px)/g.scale, float64(py)/g.scale)
}

func (g *Game) toScreen(v sim.Vec2) (float32, float32) {
	return float32(v.X * g.scale), float32(v.Y * g.scale)
}

// selectAt picks the living unit closest to p within its radius plus slack.
func (g *Game) selectAt(p sim.Vec2) {
	g.selected = nil
	if g.last == nil {
		return
	}
	if k, ok := nearestUnit(g.last, p, 12/g.scale); ok {
		g.selected = &k
	}
}

func nearestUnit(snap *sim.FrameSnapshot, p sim.Vec2, slack float64) (sim.UnitKey, bool) {
	best := math.Inf(1)
	var key sim.UnitKey
	found := false
	for _, f := range []sim.Faction{sim.Friendly, sim.Enemy} {
		for _, u := range snap.Units(f) {
			if u.Dead {
				continue
			}
			d := u.Position.Dist(p)
			if d <= u.Radius+slack && d < best {
				best, key, found = d, sim.UnitKey{Faction: f, ID: u.ID}, true
			}
		}
	}
	return key, found
}

// orderMove sends the selected friendly unit to p on the next tick.
func (g *Game) orderMove(p sim.Vec2) {
	if g.selected == nil || g.selected.Faction != sim.Friendly {
		return
	}
	cmd := sim.MoveUnit{At: g.engine.World().Frame, Faction: sim.Friendly, ID: g.selected.ID, Destination: p}
	g.engine.EnqueueCommand(cmd)
	g.addMessage(fmt.Sprintf("order F%d -> (%.0f, %.0f)", cmd.ID, p.X, p.Y))
}

// copyFrame puts the latest snapshot on the clipboard as indented JSON.
func (g *Game) copyFrame() {
	b, err := frameJSON(g.last)
	if err != nil {
		g.log.Warn().Err(err).Msg("encode frame")
		return
	}
	if err := clipboard.WriteAll(string(b)); err != nil {
		g.log.Warn().Err(err).Msg("clipboard unavailable")
		g.addMessage("clipboard unavailable")
		return
	}
	g.addMessage(fmt.Sprintf("copied frame %d (%d bytes)", g.last.Frame, len(b)))
}

func frameJSON(snap *sim.FrameSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, fmt.Errorf("no frame yet")
	}
	return json.MarshalIndent(snap, "", "  ")
}
