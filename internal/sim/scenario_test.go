package sim

import (
	"reflect"
	"testing"
)

// dumpLog prints the full SimLog to t.Log so it appears in `go test -v` output.
func dumpLog(t *testing.T, ts *TestSim) {
	t.Helper()
	entries := ts.SimLog.Entries()
	if len(entries) == 0 {
		t.Log("(no log entries)")
		return
	}
	for _, e := range entries {
		t.Log(e.String())
	}
}

// dumpSummary prints the scenario summary block.
func dumpSummary(t *testing.T, ts *TestSim) {
	t.Helper()
	t.Log(ts.SimLog.Summary(ts.Snapshot()))
}

func twoWaveSim() *TestSim {
	return NewTestSim(
		WithFriendly(200, 360, RoleMelee),
		WithFriendly(200, 440, RoleMelee),
		WithFriendly(150, 320, RoleRanged),
		WithFriendly(150, 480, RoleRanged),
		WithWaves(WaveSet{
			{Groups: []SpawnGroup{{Faction: Enemy, Kind: "melee", Count: 3, Position: V(800, 400), Spread: 60}}},
			{Groups: []SpawnGroup{{Faction: Enemy, Kind: "melee", Count: 2, Position: V(900, 400), Spread: 60, Interval: 10}}},
		}),
	)
}

// --- Scenario: Squad Clears Two Waves ---

func TestScenario_SquadClearsWaves(t *testing.T) {
	t.Log("=== TestScenario_SquadClearsWaves ===")
	t.Log("--- Setup: 4 friendlies (squad), two enemy waves of 3 and 2 ---")

	ts := twoWaveSim()
	cleared := ts.RunUntil(func(ts *TestSim) bool { return ts.Last.AllWavesCleared }, 4000)
	dumpSummary(t, ts)

	if cleared < 0 {
		dumpLog(t, ts)
		t.Fatalf("expected both waves cleared within 4000 ticks, enemies left=%d", ts.Last.LivingEnemies)
	}
	if !ts.SimLog.HasEntry("state", "changed", "wave 2 released") {
		t.Fatal("expected the second wave to be released once the first died")
	}
	deaths := 0
	for _, e := range ts.SimLog.Filter("unit", "died") {
		if e.Faction == "enemy" {
			deaths++
		}
	}
	if deaths != 5 {
		t.Fatalf("expected 5 enemy deaths, got %d", deaths)
	}
	if ts.Last.LivingFriendlies == 0 {
		t.Fatal("expected the squad to survive two waves of default enemies")
	}
	if ts.Last.HasMoreWaves || ts.Last.CurrentWave != 2 {
		t.Fatalf("expected wave 2 of 2 with none left, got wave=%d more=%t", ts.Last.CurrentWave, ts.Last.HasMoreWaves)
	}

	// The second wave is staggered: E4 spawns 10 ticks after E3.
	var e3, e4 int
	for _, e := range ts.SimLog.Filter("unit", "spawned") {
		switch e.Unit {
		case "E3":
			e3 = e.Tick
		case "E4":
			e4 = e.Tick
		}
	}
	if e3 == 0 || e4-e3 != 10 {
		t.Fatalf("expected E4 10 ticks after E3, got E3 at T=%d E4 at T=%d", e3, e4)
	}
}

// --- Scenario: Ranged Outreaches Melee ---

func TestScenario_RangedStrikesFirst(t *testing.T) {
	t.Log("=== TestScenario_RangedStrikesFirst ===")
	t.Log("--- Setup: 1 friendly ranged at x=200, 1 enemy melee at x=900 closing in ---")

	ts := NewTestSim(
		WithFriendly(200, 400, RoleRanged),
		WithEnemy(900, 400, RoleMelee),
	)
	ts.RunTicks(400)
	dumpLog(t, ts)

	var fAttack, eAttack = -1, -1
	for _, e := range ts.SimLog.Filter("combat", "attack") {
		if e.Unit == "F0" && fAttack < 0 {
			fAttack = e.Tick
		}
		if e.Unit == "E0" && eAttack < 0 {
			eAttack = e.Tick
		}
	}
	if fAttack < 0 {
		t.Fatal("expected the ranged friendly to attack")
	}
	if eAttack >= 0 && eAttack <= fAttack {
		t.Fatalf("ranged unit should land the first hit, friendly at T=%d enemy at T=%d", fAttack, eAttack)
	}
	acq, ok := ts.SimLog.FirstOf("target", "acquired")
	if !ok || acq.Tick != 0 || acq.Unit != "E0" || acq.Value != "F0" {
		t.Fatalf("expected E0 to acquire F0 on the first tick, got %+v", acq)
	}
}

// --- Scenario: Crowd Shares Slots ---

func TestScenario_CrowdSharesSlots(t *testing.T) {
	t.Log("=== TestScenario_CrowdSharesSlots ===")
	t.Log("--- Setup: 1 sturdy friendly, 6 enemies converging ---")

	opts := []SimOption{
		WithDoctrine(Friendly, DoctrineSkirmish),
		WithUnit(UnitSpec{Faction: Friendly, Role: RoleMelee, Position: V(600, 400), HP: 5000, Damage: 1}),
	}
	for i := 0; i < 6; i++ {
		opts = append(opts, WithEnemy(900, 150+float64(i)*100, RoleMelee))
	}
	ts := NewTestSim(opts...)

	for tick := 0; tick < 250; tick++ {
		ts.RunTicks(1)
		if errs := ts.Engine.VerifySlots(); len(errs) > 0 {
			t.Fatalf("slot invariant broken at T=%d: %v", tick, errs)
		}
	}
	dumpSummary(t, ts)

	f := ts.Unit(Friendly, 0)
	seen := map[int]bool{}
	for _, e := range ts.World().Living(Enemy) {
		if e.TakenSlot == noSlot {
			continue
		}
		if seen[e.TakenSlot] {
			t.Fatalf("two enemies hold slot %d", e.TakenSlot)
		}
		seen[e.TakenSlot] = true
	}
	if f.Slots.Occupied() != len(seen) {
		t.Fatalf("ring reports %d occupants, enemies claim %d", f.Slots.Occupied(), len(seen))
	}
	if len(seen) < 2 {
		t.Fatalf("expected the crowd to spread over several slots, got %d", len(seen))
	}
	if ts.SimLog.CountCategory("combat", "damaged") == 0 {
		t.Fatal("expected the crowd to land hits")
	}
}

// --- Scenario: Air Unit Unreachable ---

func TestScenario_GroundCannotHitAir(t *testing.T) {
	t.Log("=== TestScenario_GroundCannotHitAir ===")
	t.Log("--- Setup: 1 friendly ground melee, 1 enemy flyer ---")

	ts := NewTestSim(
		WithFriendly(200, 400, RoleMelee),
		WithUnit(UnitSpec{Faction: Enemy, Kind: "bat", Layer: LayerAir, Position: V(500, 400)}),
	)
	ts.RunTicks(300)
	dumpSummary(t, ts)

	for _, e := range ts.SimLog.FilterUnit("F0") {
		if e.Category == "combat" && e.Key == "attack" {
			t.Fatalf("ground-only unit attacked a flyer: %s", e.String())
		}
		if e.Category == "target" && e.Key == "acquired" {
			t.Fatalf("ground-only unit targeted a flyer: %s", e.String())
		}
	}
	if ts.SimLog.CountCategory("combat", "attack") == 0 {
		t.Fatal("the flyer should still attack the ground unit")
	}
}

// --- Scenario: Death Spawn ---

func TestScenario_DeathSpawnSplits(t *testing.T) {
	t.Log("=== TestScenario_DeathSpawnSplits ===")
	t.Log("--- Setup: 1 friendly vs a golem that splits into 2 golemites ---")

	ts := NewTestSim(
		WithDoctrine(Friendly, DoctrineSkirmish),
		WithUnit(UnitSpec{Faction: Friendly, Role: RoleMelee, Position: V(200, 400), Damage: 5}),
		WithUnit(UnitSpec{Faction: Enemy, Kind: "golem", Position: V(400, 400), HP: 20,
			Abilities: []Ability{DeathSpawn{UnitKind: "golemite", Count: 2, Radius: 30, HP: 5}}}),
	)
	end := ts.RunUntil(func(ts *TestSim) bool { return ts.World().LivingCount(Enemy) == 0 }, 1500)
	dumpLog(t, ts)

	died, ok := ts.SimLog.FirstOf("unit", "died")
	if !ok || died.Unit != "E0" {
		t.Fatalf("expected the golem to die first, got %+v", died)
	}
	for _, label := range []string{"E1", "E2"} {
		entries := ts.SimLog.FilterUnit(label)
		if len(entries) == 0 || entries[0].Key != "spawned" || entries[0].Tick != died.Tick {
			t.Fatalf("expected %s spawned on the golem's death tick %d", label, died.Tick)
		}
	}
	if end < 0 {
		t.Fatal("expected the friendly to clear the golemites")
	}
	if n := len(ts.World().Units(Enemy)); n != 3 {
		t.Fatalf("expected 3 enemy records, got %d", n)
	}
}

// --- Scenario: Building Priority ---

func TestScenario_BuildingPriorityTakesTower(t *testing.T) {
	t.Log("=== TestScenario_BuildingPriorityTakesTower ===")
	t.Log("--- Setup: arena, 1 friendly giant near the enemy left princess ---")

	ts := NewTestSim(
		WithMapSize(DefaultWorldWidth, DefaultWorldHeight),
		WithStructures(),
		WithDoctrine(Friendly, DoctrineSkirmish),
		WithUnit(UnitSpec{Faction: Friendly, Kind: "giant", Priority: PriorityBuildings,
			Position: V(600, 3500), HP: 20000, Damage: 5000}),
	)

	ts.RunTicks(1)
	acquired, ok := ts.SimLog.FirstOf("target", "acquired")
	if !ok || acquired.Value != "enemy#5" {
		t.Fatalf("expected the giant to pick the left princess, got %+v", acquired)
	}

	end := ts.RunUntil(func(ts *TestSim) bool { return ts.Engine.Session().Result != InProgress }, 2000)
	dumpLog(t, ts)
	dumpSummary(t, ts)
	if end < 0 {
		t.Fatal("expected the giant to decide the match")
	}

	s := ts.Engine.Session()
	if s.Result != FriendlyWin || s.WinCondition != WinKingDestroyed {
		t.Fatalf("expected friendly win by king, got %s/%s", s.Result, s.WinCondition)
	}
	if s.FriendlyCrowns != maxCrowns {
		t.Fatalf("expected %d crowns, got %d", maxCrowns, s.FriendlyCrowns)
	}
	for _, msg := range []string{"structure EP5 destroyed", "king EK4 activated", "structure EK4 destroyed", "match decided"} {
		if !ts.SimLog.HasEntry("state", "changed", msg) {
			t.Fatalf("expected state message %q", msg)
		}
	}
	if ts.Structure(Enemy, 6).Destroyed() {
		t.Fatal("the right princess was never attacked")
	}
	if ts.Unit(Friendly, 0).HP == 20000 {
		t.Fatal("expected the princess to hit the giant on its approach")
	}
}

// --- Scenario: Determinism ---

func TestScenario_Deterministic(t *testing.T) {
	t.Log("=== TestScenario_Deterministic ===")

	a, b := twoWaveSim(), twoWaveSim()
	a.RunTicks(300)
	b.RunTicks(300)

	sa, sb := *a.Last, *b.Last
	sa.RunID, sb.RunID = "", ""
	if !reflect.DeepEqual(sa, sb) {
		t.Fatal("two identical runs diverged")
	}
	if !reflect.DeepEqual(a.SimLog.Entries(), b.SimLog.Entries()) {
		t.Fatal("two identical runs logged different events")
	}
}
