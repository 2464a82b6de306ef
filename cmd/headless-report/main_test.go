package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jshstorm/unit-simulator-sub000/internal/config"
	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/rs/zerolog"
)

func TestTeamSurvivalCounts(t *testing.T) {
	snap := &sim.FrameSnapshot{
		Friendlies: []sim.UnitState{{ID: 0}, {ID: 1, Dead: true}},
		Enemies:    []sim.UnitState{{ID: 0}, {ID: 1}},
	}

	friendlyTotal, enemyTotal, friendlySurvivors, enemySurvivors := teamSurvivalCounts(snap)
	if friendlyTotal != 2 || enemyTotal != 2 {
		t.Fatalf("expected totals friendly=2 enemy=2, got friendly=%d enemy=%d", friendlyTotal, enemyTotal)
	}
	if friendlySurvivors != 1 || enemySurvivors != 2 {
		t.Fatalf("expected survivors friendly=1 enemy=2, got friendly=%d enemy=%d", friendlySurvivors, enemySurvivors)
	}
}

func TestDetectStalemate_TrueWhenMutualSurvivalHigh(t *testing.T) {
	rs := runStats{
		reason:            sim.MaxFramesReached,
		friendlyTotal:     6,
		enemyTotal:        6,
		friendlySurvivors: 4,
		enemySurvivors:    4,
		attacks:           28,
	}

	isStalemate, reason := detectStalemate(rs)
	if !isStalemate {
		t.Fatalf("expected stalemate=true, got false (reason=%s)", reason)
	}
	if !strings.Contains(reason, "high_mutual_survival") {
		t.Fatalf("expected reason to mention high_mutual_survival, got: %s", reason)
	}
}

func TestDetectStalemate_TrueWhenNoContact(t *testing.T) {
	rs := runStats{reason: sim.MaxFramesReached, friendlyTotal: 3, enemyTotal: 3}

	isStalemate, reason := detectStalemate(rs)
	if !isStalemate || reason != "no_contact" {
		t.Fatalf("expected no_contact stalemate, got %t (%s)", isStalemate, reason)
	}
}

func TestDetectStalemate_FalseWhenDecided(t *testing.T) {
	rs := runStats{
		reason:            sim.FriendlyVictory,
		friendlyTotal:     6,
		enemyTotal:        6,
		friendlySurvivors: 6,
		enemySurvivors:    6,
	}

	isStalemate, reason := detectStalemate(rs)
	if isStalemate {
		t.Fatalf("expected stalemate=false for a decided run (reason=%s)", reason)
	}
	if reason != "decided:friendly_win" {
		t.Fatalf("expected decided:friendly_win, got %s", reason)
	}
}

func TestDetectStalemate_FalseWhenAttritionDecisive(t *testing.T) {
	rs := runStats{
		reason:            sim.MaxFramesReached,
		friendlyTotal:     6,
		enemyTotal:        6,
		friendlySurvivors: 2,
		enemySurvivors:    5,
		attacks:           40,
	}

	isStalemate, reason := detectStalemate(rs)
	if isStalemate {
		t.Fatalf("expected stalemate=false under decisive attrition (reason=%s)", reason)
	}
}

func TestFirstAndLastTick(t *testing.T) {
	entries := []sim.SimLogEntry{
		{Tick: 2, Category: "target", Key: "acquired", Value: "E0"},
		{Tick: 5, Category: "combat", Key: "attack", Value: "-> E0 (10)"},
		{Tick: 9, Category: "combat", Key: "attack", Value: "-> E1 (10)"},
	}
	if got := firstTick(entries, "combat", "attack", ""); got != 5 {
		t.Fatalf("expected first attack at 5, got %d", got)
	}
	if got := firstTick(entries, "combat", "attack", "E1"); got != 9 {
		t.Fatalf("expected first attack on E1 at 9, got %d", got)
	}
	if got := lastTick(entries, "combat", "attack", ""); got != 9 {
		t.Fatalf("expected last attack at 9, got %d", got)
	}
	if got := firstTick(entries, "unit", "died", ""); got != -1 {
		t.Fatalf("expected -1 for a missing event, got %d", got)
	}
}

func TestBuildPlans_FallsBackToConfig(t *testing.T) {
	cfg := config.Config{Simulation: config.SimulationConfig{
		MaxFrames:        500,
		Width:            2000,
		Height:           1200,
		FriendlyDoctrine: "squad",
		EnemyDoctrine:    "skirmish",
	}}

	plans, err := buildPlans(cfg, "", 120)
	if err != nil {
		t.Fatalf("buildPlans: %v", err)
	}
	if len(plans) != 1 || plans[0].name != "config" {
		t.Fatalf("expected the config plan, got %+v", plans)
	}
	if plans[0].opts.MaxFrames != 120 {
		t.Fatalf("expected tick override 120, got %d", plans[0].opts.MaxFrames)
	}
}

func TestBuildPlans_LoadsScenarios(t *testing.T) {
	dir := t.TempDir()
	named := filepath.Join(dir, "named.yaml")
	unnamed := filepath.Join(dir, "skirmish-2v1.yaml")
	doc := `
simulation:
  width: 800
  height: 600
  max_frames: 50
units:
  - {faction: friendly, role: melee, pos: [100, 300]}
  - {faction: enemy, role: melee, pos: [700, 300]}
`
	if err := os.WriteFile(named, []byte("name: duel\n"+doc), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(unnamed, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	plans, err := buildPlans(config.Config{}, named+", "+unnamed, 0)
	if err != nil {
		t.Fatalf("buildPlans: %v", err)
	}
	if len(plans) != 2 {
		t.Fatalf("expected 2 plans, got %d", len(plans))
	}
	if plans[0].name != "duel" || plans[1].name != "skirmish-2v1" {
		t.Fatalf("expected names duel and skirmish-2v1, got %s and %s", plans[0].name, plans[1].name)
	}
	if plans[1].opts.MaxFrames != 50 || len(plans[1].opts.Units) != 2 {
		t.Fatalf("expected scenario options, got max=%d units=%d", plans[1].opts.MaxFrames, len(plans[1].opts.Units))
	}

	if _, err := buildPlans(config.Config{}, filepath.Join(dir, "missing.yaml"), 0); err == nil {
		t.Fatal("expected error for a missing scenario file")
	}
}

func TestRunPlan_CollectsStats(t *testing.T) {
	p := plan{name: "duel", opts: sim.Options{
		Width:            1000,
		Height:           600,
		MaxFrames:        40,
		FriendlyDoctrine: sim.DoctrineSkirmish,
		EnemyDoctrine:    sim.DoctrineSkirmish,
		Units: []sim.UnitSpec{
			{Faction: sim.Friendly, Role: sim.RoleMelee, Position: sim.V(200, 300)},
			{Faction: sim.Enemy, Role: sim.RoleMelee, Position: sim.V(800, 300)},
		},
	}}
	var cfg config.Config
	cfg.Replay.Enabled, cfg.Replay.Dir = true, t.TempDir()

	a, err := runPlan(p, 1, cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("runPlan: %v", err)
	}
	b, err := runPlan(p, 2, cfg, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("runPlan: %v", err)
	}
	if a.reason != sim.MaxFramesReached || a.frames != 40 {
		t.Fatalf("expected max frames after 40 frames, got %s after %d", a.reason, a.frames)
	}
	if a.friendlyTotal != 1 || a.enemyTotal != 1 {
		t.Fatalf("expected 1v1, got %dv%d", a.friendlyTotal, a.enemyTotal)
	}
	if a.digest != b.digest {
		t.Fatalf("expected identical runs to share a digest, got %s and %s", a.digest, b.digest)
	}
	if _, err := os.Stat(a.replayPath); err != nil {
		t.Fatalf("expected replay file: %v", err)
	}
}
