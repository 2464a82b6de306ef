package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/rs/zerolog"
)

func simScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	s.SetSize(w, h)
	t.Cleanup(s.Fini)
	return s
}

func row(s tcell.Screen, y int) string {
	w, _ := s.Size()
	var sb strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y)
		sb.WriteRune(r)
	}
	return sb.String()
}

func TestCellFor(t *testing.T) {
	cases := []struct {
		p      sim.Vec2
		cx, cy int
	}{
		{sim.V(0, 0), 0, 0},
		{sim.V(500, 250), 5, 5},
		{sim.V(999, 499), 9, 9},
		{sim.V(1000, 500), 9, 9},
		{sim.V(-5, 600), 0, 9},
	}
	for _, c := range cases {
		cx, cy := cellFor(c.p, 1000, 500, 10, 10)
		if cx != c.cx || cy != c.cy {
			t.Fatalf("cellFor(%v): expected (%d,%d), got (%d,%d)", c.p, c.cx, c.cy, cx, cy)
		}
	}
}

func TestMinimap_Render(t *testing.T) {
	s := simScreen(t, 22, 13)
	snap := &sim.FrameSnapshot{
		Frame: 7, CurrentWave: 1, Width: 2000, Height: 1000, LivingFriendlies: 1, LivingEnemies: 1,
		Friendlies: []sim.UnitState{{ID: 0, Faction: sim.Friendly, Role: sim.RoleRanged, Position: sim.V(0, 0)}},
		Enemies: []sim.UnitState{
			{ID: 0, Faction: sim.Enemy, Layer: sim.LayerAir, Position: sim.V(1999, 999)},
			{ID: 1, Faction: sim.Enemy, Dead: true, Position: sim.V(1000, 500)},
		},
		Structures: []sim.StructureState{{ID: 4, Faction: sim.Enemy, Kind: sim.King, Position: sim.V(1900, 50)}},
	}
	NewMinimap(s).Render(snap, "30 t/s")

	if got := row(s, 0); !strings.HasPrefix(got, " T=7 wave=1 F=1 E=1") {
		t.Fatalf("expected status bar, got %q", got)
	}
	// 20x10 map area starting at (1,2)
	if r, _, _, _ := s.GetContent(1, 2); r != 'r' {
		t.Fatalf("expected ranged friendly at top-left, got %q", r)
	}
	if r, _, _, _ := s.GetContent(20, 11); r != '^' {
		t.Fatalf("expected flyer at bottom-right, got %q", r)
	}
	if r, _, _, _ := s.GetContent(11, 7); r != 'x' {
		t.Fatalf("expected dead marker in the middle, got %q", r)
	}
	if r, _, _, _ := s.GetContent(20, 2); r != 'K' {
		t.Fatalf("expected king tower glyph, got %q", r)
	}
	if r, _, _, _ := s.GetContent(0, 5); r != '|' {
		t.Fatalf("expected left border, got %q", r)
	}
}

func TestMinimap_TinyScreen(t *testing.T) {
	s := simScreen(t, 2, 2)
	NewMinimap(s).Render(&sim.FrameSnapshot{Width: 100, Height: 100}, "")
	NewMinimap(s).Render(nil, "")
}

func duel(maxFrames int) *sim.Engine {
	return sim.NewEngine(sim.Options{
		Width:            1000,
		Height:           600,
		MaxFrames:        maxFrames,
		FriendlyDoctrine: sim.DoctrineSkirmish,
		EnemyDoctrine:    sim.DoctrineSkirmish,
		Units: []sim.UnitSpec{
			{Faction: sim.Friendly, Role: sim.RoleMelee, Position: sim.V(200, 300)},
			{Faction: sim.Enemy, Role: sim.RoleMelee, Position: sim.V(800, 300)},
		},
	})
}

type completion struct {
	sim.NopCallbacks
	reasons []sim.CompletionReason
}

func (c *completion) OnSimulationComplete(_ int, r sim.CompletionReason) {
	c.reasons = append(c.reasons, r)
}

func TestWatch_RunsToMaxFrames(t *testing.T) {
	s := simScreen(t, 80, 20)
	e := duel(6)
	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	cb := &completion{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	reason, err := Watch(ctx, s, e, WatchOptions{TicksPerSecond: 400, Callbacks: cb, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if reason != sim.MaxFramesReached {
		t.Fatalf("expected max frames, got %s", reason)
	}
	if len(cb.reasons) != 1 || cb.reasons[0] != sim.MaxFramesReached {
		t.Fatalf("expected one completion callback, got %v", cb.reasons)
	}
	if got := row(s, 0); !strings.Contains(got, "done: max_frames_reached") {
		t.Fatalf("expected done status, got %q", got)
	}
}

func TestWatch_QuitKey(t *testing.T) {
	s := simScreen(t, 40, 20)
	e := duel(100000)
	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	s.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	reason, err := Watch(context.Background(), s, e, WatchOptions{TicksPerSecond: 1})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if reason != sim.Stopped {
		t.Fatalf("expected stopped, got %s", reason)
	}
}

func TestWatch_ContextCancel(t *testing.T) {
	s := simScreen(t, 40, 20)
	e := duel(100000)
	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	reason, err := Watch(ctx, s, e, WatchOptions{TicksPerSecond: 1})
	if err != nil || reason != sim.Cancelled {
		t.Fatalf("expected cancelled, got %s (%v)", reason, err)
	}
}
