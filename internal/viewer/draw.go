package viewer

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
)

var (
	groundCol   = color.RGBA{R: 28, G: 42, B: 28, A: 255}
	panelCol    = color.RGBA{R: 12, G: 14, B: 12, A: 255}
	borderCol   = color.RGBA{R: 65, G: 90, B: 65, A: 255}
	friendlyCol = color.RGBA{R: 70, G: 150, B: 255, A: 255}
	enemyCol    = color.RGBA{R: 235, G: 70, B: 60, A: 255}
	deadCol     = color.RGBA{R: 70, G: 70, B: 70, A: 160}
	shieldCol   = color.RGBA{R: 200, G: 220, B: 255, A: 200}
	targetCol   = color.RGBA{R: 255, G: 255, B: 255, A: 40}
	pathCol     = color.RGBA{R: 255, G: 220, B: 0, A: 120}
	avoidCol    = color.RGBA{R: 255, G: 140, B: 0, A: 180}
	slotCol     = color.RGBA{R: 255, G: 255, B: 255, A: 70}
	blockedCol  = color.RGBA{R: 120, G: 60, B: 160, A: 90}
	selectCol   = color.RGBA{R: 255, G: 255, B: 120, A: 255}
	hpBackCol   = color.RGBA{R: 40, G: 10, B: 10, A: 220}
	hpFillCol   = color.RGBA{R: 80, G: 220, B: 80, A: 255}
	textCol     = color.RGBA{R: 190, G: 220, B: 190, A: 255}
)

func factionColor(f sim.Faction) color.RGBA {
	if f == sim.Friendly {
		return friendlyCol
	}
	return enemyCol
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(panelCol)
	snap := g.last
	if snap == nil {
		return
	}
	mapW, mapH := float32(snap.Width*g.scale), float32(snap.Height*g.scale)
	vector.FillRect(screen, 0, 0, mapW, mapH, groundCol, false)

	g.drawDynamicCells(screen, snap)
	for _, s := range snap.Structures {
		g.drawStructure(screen, snap, s)
	}
	for _, f := range []sim.Faction{sim.Friendly, sim.Enemy} {
		for _, u := range snap.Units(f) {
			g.drawUnitOverlays(screen, snap, u)
		}
	}
	for _, f := range []sim.Faction{sim.Friendly, sim.Enemy} {
		for _, u := range snap.Units(f) {
			g.drawUnit(screen, u)
		}
	}
	vector.StrokeRect(screen, 0, 0, mapW, mapH, 2, borderCol, false)

	g.drawPanel(screen, int(mapW)+8)
}

func (g *Game) drawDynamicCells(screen *ebiten.Image, snap *sim.FrameSnapshot) {
	if len(snap.DynamicCells) == 0 {
		return
	}
	cs := g.engine.Options().CellSize
	side := float32(cs * g.scale)
	for _, c := range snap.DynamicCells {
		x, y := g.toScreen(sim.V(float64(c[0])*cs, float64(c[1])*cs))
		vector.FillRect(screen, x, y, side, side, blockedCol, false)
	}
}

func (g *Game) drawStructure(screen *ebiten.Image, snap *sim.FrameSnapshot, s sim.StructureState) {
	x, y := g.toScreen(s.Position)
	r := float32(s.Radius * g.scale)
	c := factionColor(s.Faction)
	if s.Destroyed {
		vector.StrokeCircle(screen, x, y, r, 1, deadCol, true)
		return
	}
	if !s.Active {
		c.A = 120
	}
	vector.FillRect(screen, x-r, y-r, 2*r, 2*r, c, false)
	rangeCol := c
	rangeCol.A = 30
	vector.StrokeCircle(screen, x, y, float32(s.AttackRange*g.scale)+r, 1, rangeCol, true)
	if g.showSlots {
		g.drawSlots(screen, snap, ringOf{s.Position, s.Radius}, s.Faction, s.Attackers)
	}
	hpBar(screen, x-r, y-r-5, 2*r, s.HP, s.MaxHP)
}

func (g *Game) drawUnitOverlays(screen *ebiten.Image, snap *sim.FrameSnapshot, u sim.UnitState) {
	if u.Dead {
		return
	}
	x, y := g.toScreen(u.Position)
	if tx, ty, ok := g.targetPoint(snap, u.Target); ok {
		vector.StrokeLine(screen, x, y, tx, ty, 1, targetCol, true)
	}
	if g.showPaths {
		g.polyline(screen, u.Position, u.MovementPath, u.MovementCursor, pathCol)
		g.polyline(screen, u.Position, u.AvoidancePath, u.AvoidanceCursor, avoidCol)
	}
	if g.showSlots {
		g.drawSlots(screen, snap, ringOf{u.Position, u.Radius}, u.Faction, u.Attackers)
	}
}

// ringOf stands in for a slot holder when only its snapshot is at hand.
type ringOf struct {
	center sim.Vec2
	radius float64
}

func (r ringOf) SlotCenter() sim.Vec2 { return r.center }
func (r ringOf) SlotRadius() float64  { return r.radius }
func (r ringOf) Ring() *sim.SlotRing  { return &sim.SlotRing{} }

// drawSlots marks every occupied slot around a holder of faction f.
func (g *Game) drawSlots(screen *ebiten.Image, snap *sim.FrameSnapshot, h ringOf, f sim.Faction, attackers []int) {
	for i, id := range attackers {
		if id < 0 {
			continue
		}
		a, ok := snap.Unit(f.Opponent(), id)
		if !ok {
			continue
		}
		sx, sy := g.toScreen(sim.SlotPosition(h, i, a.Radius))
		vector.StrokeCircle(screen, sx, sy, 2, 1, slotCol, true)
	}
}

func (g *Game) polyline(screen *ebiten.Image, from sim.Vec2, pts []sim.Vec2, cursor int, c color.RGBA) {
	if cursor >= len(pts) {
		return
	}
	px, py := g.toScreen(from)
	for _, p := range pts[cursor:] {
		x, y := g.toScreen(p)
		vector.StrokeLine(screen, px, py, x, y, 1, c, true)
		px, py = x, y
	}
}

func (g *Game) targetPoint(snap *sim.FrameSnapshot, ref sim.TargetRef) (float32, float32, bool) {
	switch ref.Kind {
	case sim.TargetUnit:
		if t, ok := snap.Unit(ref.Faction, ref.ID); ok && !t.Dead {
			x, y := g.toScreen(t.Position)
			return x, y, true
		}
	case sim.TargetStructure:
		for _, s := range snap.Structures {
			if s.Faction == ref.Faction && s.ID == ref.ID {
				x, y := g.toScreen(s.Position)
				return x, y, true
			}
		}
	}
	return 0, 0, false
}

func (g *Game) drawUnit(screen *ebiten.Image, u sim.UnitState) {
	x, y := g.toScreen(u.Position)
	r := float32(u.Radius * g.scale)
	if r < 2 {
		r = 2
	}
	if u.Dead {
		vector.StrokeCircle(screen, x, y, r, 1, deadCol, true)
		return
	}
	c := factionColor(u.Faction)
	if u.Layer == sim.LayerAir {
		vector.StrokeCircle(screen, x, y, r, 2, c, true)
	} else {
		vector.FillCircle(screen, x, y, r, c, true)
	}
	fx, fy := g.toScreen(u.Position.Add(u.Forward.Scale(u.Radius * 1.5)))
	vector.StrokeLine(screen, x, y, fx, fy, 1, c, true)
	if u.ShieldHP > 0 {
		vector.StrokeCircle(screen, x, y, r+2, 1, shieldCol, true)
	}
	if g.selected != nil && g.selected.Faction == u.Faction && g.selected.ID == u.ID {
		vector.StrokeCircle(screen, x, y, r+4, 1.5, selectCol, true)
	}
	hpBar(screen, x-r, y-r-4, 2*r, u.HP, u.MaxHP)
}

func hpBar(screen *ebiten.Image, x, y, w float32, hp, maxHP int) {
	if maxHP <= 0 || hp >= maxHP {
		return
	}
	vector.FillRect(screen, x, y, w, 2, hpBackCol, false)
	vector.FillRect(screen, x, y, w*float32(hp)/float32(maxHP), 2, hpFillCol, false)
}

func (g *Game) drawPanel(screen *ebiten.Image, x int) {
	lines := hudLines(g.last, g.speed, g.done, g.reason)
	if g.selected != nil {
		lines = append(lines, "")
		lines = append(lines, unitLines(g.last, *g.selected)...)
	}
	lines = append(lines, "", "-- events --")
	lines = append(lines, g.messages...)
	if g.showHUD {
		lines = append(lines, "", strings.Join(keyHelp, "\n"))
	}
	op := &text.DrawOptions{}
	op.GeoM.Translate(float64(x), 8)
	op.ColorScale.ScaleWithColor(textCol)
	op.LineSpacing = 14
	text.Draw(screen, strings.Join(lines, "\n"), g.face, op)
}

var keyHelp = []string{
	"P/space pause  ,/. speed  N step",
	"T paths  R slots  H help",
	"click select  right-click move",
	"C copy frame JSON",
}

// hudLines summarizes a frame for the side panel.
func hudLines(snap *sim.FrameSnapshot, speed float64, done bool, reason sim.CompletionReason) []string {
	state := fmt.Sprintf("%gx", speed)
	switch {
	case done:
		state = "DONE " + reason.String()
	case speed == 0:
		state = "PAUSED"
	}
	lines := []string{
		fmt.Sprintf("T=%d  %s", snap.Frame, state),
		fmt.Sprintf("wave %d  more=%t", snap.CurrentWave, snap.HasMoreWaves),
		fmt.Sprintf("friendly %d  enemy %d", snap.LivingFriendlies, snap.LivingEnemies),
	}
	if s := snap.Session; s != nil {
		lines = append(lines, fmt.Sprintf("crowns %d-%d  %s", s.FriendlyCrowns, s.EnemyCrowns, s.Result))
		if s.Overtime {
			lines = append(lines, "OVERTIME")
		}
	}
	return lines
}

// unitLines describes one unit of the frame.
func unitLines(snap *sim.FrameSnapshot, k sim.UnitKey) []string {
	u, ok := snap.Unit(k.Faction, k.ID)
	if !ok {
		return []string{"selection gone"}
	}
	label := fmt.Sprintf("F%d", u.ID)
	if u.Faction == sim.Enemy {
		label = fmt.Sprintf("E%d", u.ID)
	}
	lines := []string{
		fmt.Sprintf("%s %s %s", label, u.Kind, u.Role),
		fmt.Sprintf("hp %d/%d  shield %d", u.HP, u.MaxHP, u.ShieldHP),
		fmt.Sprintf("pos (%.0f, %.0f)", u.Position.X, u.Position.Y),
	}
	if u.Target.Kind != sim.TargetNone {
		lines = append(lines, fmt.Sprintf("target %s#%d slot %d", u.Target.Faction, u.Target.ID, u.TakenSlot))
	}
	if u.Dead {
		lines = append(lines, "dead")
	}
	return lines
}
