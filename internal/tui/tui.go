// Package tui renders a running engine as a terminal minimap.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/rs/zerolog"
)

var (
	styleFriendly = tcell.StyleDefault.Foreground(tcell.ColorBlue)
	styleEnemy    = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleDead     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleTower    = tcell.StyleDefault.Bold(true)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)
	styleBorder   = tcell.StyleDefault.Foreground(tcell.ColorDarkGreen)
)

// Minimap draws frames onto a tcell screen. The top row is a status bar;
// the map fills the rest, bordered.
type Minimap struct {
	screen tcell.Screen
}

// NewMinimap wraps an initialized screen.
func NewMinimap(s tcell.Screen) *Minimap { return &Minimap{screen: s} }

// cellFor maps a world point onto a cols x rows grid.
func cellFor(p sim.Vec2, width, height float64, cols, rows int) (int, int) {
	cx := int(p.X / width * float64(cols))
	cy := int(p.Y / height * float64(rows))
	return clampInt(cx, 0, cols-1), clampInt(cy, 0, rows-1)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func unitGlyph(u sim.UnitState) (rune, tcell.Style) {
	st := styleEnemy
	if u.Faction == sim.Friendly {
		st = styleFriendly
	}
	if u.Dead {
		return 'x', styleDead
	}
	switch {
	case u.Layer == sim.LayerAir:
		return '^', st
	case u.Role == sim.RoleRanged:
		return 'r', st
	}
	return 'm', st
}

func structureGlyph(s sim.StructureState) (rune, tcell.Style) {
	st := styleTower.Foreground(tcell.ColorRed)
	if s.Faction == sim.Friendly {
		st = styleTower.Foreground(tcell.ColorBlue)
	}
	if s.Destroyed {
		return '#', styleDead
	}
	if s.Kind == sim.King {
		return 'K', st
	}
	return 'P', st
}

// Render draws snap and the given status text, then shows the screen.
func (m *Minimap) Render(snap *sim.FrameSnapshot, status string) {
	s := m.screen
	s.Clear()
	w, h := s.Size()
	drawText(s, 0, 0, w, statusLine(snap, status), styleStatus)
	if w < 3 || h < 4 || snap == nil {
		s.Show()
		return
	}
	cols, rows := w-2, h-3
	for x := 0; x < w; x++ {
		s.SetContent(x, 1, '-', nil, styleBorder)
		s.SetContent(x, h-1, '-', nil, styleBorder)
	}
	for y := 2; y < h-1; y++ {
		s.SetContent(0, y, '|', nil, styleBorder)
		s.SetContent(w-1, y, '|', nil, styleBorder)
	}
	put := func(p sim.Vec2, r rune, st tcell.Style) {
		cx, cy := cellFor(p, snap.Width, snap.Height, cols, rows)
		s.SetContent(cx+1, cy+2, r, nil, st)
	}
	for _, st := range snap.Structures {
		r, style := structureGlyph(st)
		put(st.Position, r, style)
	}
	// dead first so living units win shared cells
	for _, dead := range []bool{true, false} {
		for _, f := range []sim.Faction{sim.Friendly, sim.Enemy} {
			for _, u := range snap.Units(f) {
				if u.Dead != dead {
					continue
				}
				r, style := unitGlyph(u)
				put(u.Position, r, style)
			}
		}
	}
	s.Show()
}

func statusLine(snap *sim.FrameSnapshot, status string) string {
	if snap == nil {
		return " waiting for first frame " + status
	}
	line := fmt.Sprintf(" T=%d wave=%d F=%d E=%d", snap.Frame, snap.CurrentWave, snap.LivingFriendlies, snap.LivingEnemies)
	if sess := snap.Session; sess != nil {
		line += fmt.Sprintf(" crowns=%d-%d %s", sess.FriendlyCrowns, sess.EnemyCrowns, sess.Result)
	}
	if status != "" {
		line += "  " + status
	}
	return line
}

func drawText(s tcell.Screen, x, y, maxW int, text string, st tcell.Style) {
	for i := 0; i < maxW; i++ {
		r := ' '
		if i < len(text) {
			r = rune(text[i])
		}
		s.SetContent(x+i, y, r, nil, st)
	}
}

// WatchOptions configures Watch.
type WatchOptions struct {
	TicksPerSecond int
	Callbacks      sim.Callbacks
	Logger         zerolog.Logger
}

// Watch steps e on a ticker and redraws after every tick until the run
// completes, the user quits (q, Esc, Ctrl-C) or ctx is done. Space pauses,
// + and - change speed.
func Watch(ctx context.Context, s tcell.Screen, e *sim.Engine, opts WatchOptions) (sim.CompletionReason, error) {
	if opts.TicksPerSecond <= 0 {
		opts.TicksPerSecond = 30
	}
	m := NewMinimap(s)
	cb := opts.Callbacks
	if cb == nil {
		cb = sim.NopCallbacks{}
	}

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := s.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	tps := opts.TicksPerSecond
	ticker := time.NewTicker(time.Second / time.Duration(tps))
	defer ticker.Stop()
	paused := false
	last, _ := e.CurrentFrameData()
	m.Render(last, "")

	for {
		select {
		case <-ctx.Done():
			cb.OnSimulationComplete(e.World().Frame-1, sim.Cancelled)
			return sim.Cancelled, nil
		case ev := <-events:
			switch ev := ev.(type) {
			case *tcell.EventKey:
				switch {
				case ev.Key() == tcell.KeyEscape, ev.Key() == tcell.KeyCtrlC,
					ev.Key() == tcell.KeyRune && ev.Rune() == 'q':
					cb.OnSimulationComplete(e.World().Frame-1, sim.Stopped)
					return sim.Stopped, nil
				case ev.Key() == tcell.KeyRune && ev.Rune() == ' ':
					paused = !paused
				case ev.Key() == tcell.KeyRune && (ev.Rune() == '+' || ev.Rune() == '='):
					tps = min(tps*2, 480)
					ticker.Reset(time.Second / time.Duration(tps))
				case ev.Key() == tcell.KeyRune && ev.Rune() == '-':
					tps = max(tps/2, 1)
					ticker.Reset(time.Second / time.Duration(tps))
				}
			case *tcell.EventResize:
				s.Sync()
			}
			m.Render(last, pauseLabel(paused, tps))
		case <-ticker.C:
			if paused {
				continue
			}
			snap, err := e.Step(cb)
			if err != nil {
				return sim.CompletionNone, fmt.Errorf("tui: step: %w", err)
			}
			last = snap
			if r := e.Completion(); r != sim.CompletionNone {
				opts.Logger.Info().Int("frame", snap.Frame).Stringer("reason", r).Msg("simulation complete")
				cb.OnSimulationComplete(snap.Frame, r)
				m.Render(last, "done: "+r.String())
				return r, nil
			}
			m.Render(last, pauseLabel(paused, tps))
		}
	}
}

func pauseLabel(paused bool, tps int) string {
	if paused {
		return "[paused]"
	}
	return fmt.Sprintf("%d t/s", tps)
}
