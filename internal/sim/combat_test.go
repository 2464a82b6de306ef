package sim

import (
	"math"
	"testing"
)

// eventRecorder keeps every unit event and state message it receives.
type eventRecorder struct {
	NopCallbacks
	events []UnitEvent
	states []string
}

func (r *eventRecorder) OnUnitEvent(e UnitEvent)   { r.events = append(r.events, e) }
func (r *eventRecorder) OnStateChanged(msg string) { r.states = append(r.states, msg) }

func (r *eventRecorder) count(typ UnitEventType) int {
	n := 0
	for _, e := range r.events {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestApplyDamage_ShieldFirst(t *testing.T) {
	u := newUnit(0, UnitSpec{Faction: Friendly, HP: 100, Abilities: []Ability{Shield{MaxShieldHP: 30}}})
	if u.ShieldHP != 30 || u.MaxShieldHP != 30 {
		t.Fatalf("expected a 30 point shield, got %d/%d", u.ShieldHP, u.MaxShieldHP)
	}
	if lost := u.applyDamage(20); lost != 0 || u.ShieldHP != 10 || u.HP != 100 {
		t.Fatalf("shield should absorb the hit, got lost=%d shield=%d hp=%d", lost, u.ShieldHP, u.HP)
	}
	if lost := u.applyDamage(25); lost != 15 || u.ShieldHP != 0 || u.HP != 85 {
		t.Fatalf("overflow should reach HP, got lost=%d shield=%d hp=%d", lost, u.ShieldHP, u.HP)
	}
	if lost := u.applyDamage(500); lost != 85 || u.HP != 0 {
		t.Fatalf("HP should clamp at zero, got lost=%d hp=%d", lost, u.HP)
	}
}

func TestCollectAttack_CollectThenApply(t *testing.T) {
	w := testWorld()
	a := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 100), Damage: 3})
	b := addUnit(w, UnitSpec{Faction: Enemy, Position: V(140, 100), HP: 10})
	a.Target = b.Ref()

	w.collectAttack(a, b)
	if b.HP != 10 {
		t.Fatal("collection must not touch HP")
	}
	if a.AttackCooldown != AttackCooldownFrames {
		t.Fatalf("expected cooldown %d, got %d", AttackCooldownFrames, a.AttackCooldown)
	}
	w.collectAttack(a, b)
	if len(w.events.Damages) != 1 {
		t.Fatalf("cooldown should block a second hit, got %d events", len(w.events.Damages))
	}

	w.applyEvents()
	if b.HP != 7 {
		t.Fatalf("expected 7 HP after apply, got %d", b.HP)
	}
	if !w.events.Empty() {
		t.Fatal("events should be cleared after apply")
	}
}

func TestApplyEvents_SimultaneousKills(t *testing.T) {
	w := testWorld()
	a := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 100), HP: 1})
	b := addUnit(w, UnitSpec{Faction: Enemy, Position: V(130, 100), HP: 1})
	a.Target, b.Target = b.Ref(), a.Ref()

	w.collectAttack(b, a)
	w.collectAttack(a, b)
	w.applyEvents()
	if !a.Dead || !b.Dead {
		t.Fatalf("both attackers should die in the same tick, got a=%t b=%t", a.Dead, b.Dead)
	}
}

func TestSplash_LinearFalloff(t *testing.T) {
	w := testWorld()
	a := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 100), Damage: 10,
		Abilities: []Ability{SplashDamage{Radius: 100, Falloff: 0.5}}})
	main := addUnit(w, UnitSpec{Faction: Enemy, Position: V(200, 100), HP: 50})
	near := addUnit(w, UnitSpec{Faction: Enemy, Position: V(250, 100), HP: 50})
	far := addUnit(w, UnitSpec{Faction: Enemy, Position: V(400, 100), HP: 50})
	flyer := addUnit(w, UnitSpec{Faction: Enemy, Layer: LayerAir, Position: V(210, 100), HP: 50})
	a.Target = main.Ref()

	w.collectAttack(a, main)
	w.applyEvents()

	if main.HP != 40 {
		t.Fatalf("main target should take full damage, got HP %d", main.HP)
	}
	// 10 * (1 - 50/100*0.5) = 7.5
	if near.HP != 43 {
		t.Fatalf("expected 7 splash damage at half radius, got HP %d", near.HP)
	}
	if far.HP != 50 {
		t.Fatal("units beyond the splash radius take nothing")
	}
	if flyer.HP != 50 {
		t.Fatal("splash respects the attacker's layer filter")
	}
}

func TestCharge_MultipliesNextHit(t *testing.T) {
	w := testWorld()
	a := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 100), Damage: 10,
		Abilities: []Ability{DefaultChargeAttack}})
	target := addUnit(w, UnitSpec{Faction: Enemy, Position: V(400, 100), HP: 100})
	a.Target = target.Ref()

	updateCharge(a, target)
	if !a.Charge.Charging || a.Charge.Charged {
		t.Fatal("charge should start once the target is past the trigger distance")
	}
	if a.EffectiveSpeed() != a.Speed*DefaultChargeAttack.SpeedMultiplier {
		t.Fatalf("charging speed should be multiplied, got %.2f", a.EffectiveSpeed())
	}

	a.Position = V(100+DefaultChargeAttack.RequiredDistance, 100)
	updateCharge(a, target)
	if !a.Charge.Charged {
		t.Fatal("covering the required distance should charge the attack")
	}
	if a.EffectiveDamage() != 20 {
		t.Fatalf("expected doubled damage 20, got %d", a.EffectiveDamage())
	}

	w.collectAttack(a, target)
	if a.Charge.Charging || a.Charge.Charged {
		t.Fatal("attacking must consume the charge")
	}
	w.applyEvents()
	if target.HP != 80 {
		t.Fatalf("expected 80 HP after the charged hit, got %d", target.HP)
	}
}

func TestCharge_ResetWithoutTarget(t *testing.T) {
	u := newUnit(0, UnitSpec{Abilities: []Ability{DefaultChargeAttack}})
	u.Charge.begin(V(0, 0), 10)
	updateCharge(u, nil)
	if u.Charge.Charging {
		t.Fatal("losing the target should reset the charge")
	}
}

func TestDeathSpawn_QueuedUntilApply(t *testing.T) {
	w := testWorld()
	golem := addUnit(w, UnitSpec{Faction: Enemy, Kind: "golem", Position: V(500, 400),
		Abilities: []Ability{DeathSpawn{UnitKind: "golemite", Count: 2, Radius: 30, HP: 5}}})
	rec := &eventRecorder{}
	w.cb = rec

	w.processDeaths([]*Unit{golem})
	if !golem.Dead {
		t.Fatal("processDeaths should kill the unit")
	}
	if w.LivingCount(Enemy) != 0 || len(w.events.Spawns) != 2 {
		t.Fatalf("death spawns should be queued, got living=%d queued=%d", w.LivingCount(Enemy), len(w.events.Spawns))
	}

	w.applyEvents()
	spawned := w.Living(Enemy)
	if len(spawned) != 2 {
		t.Fatalf("expected 2 spawned units, got %d", len(spawned))
	}
	for _, s := range spawned {
		if s.Kind != "golemite" || s.HP != 5 {
			t.Fatalf("unexpected spawn %s hp=%d", s.Kind, s.HP)
		}
		if d := s.Position.Dist(golem.Position); math.Abs(d-30) > 1e-9 {
			t.Fatalf("spawn should sit on the 30 unit ring, got %.2f", d)
		}
	}
	if rec.count(UnitEventDied) != 1 || rec.count(UnitEventSpawned) != 2 {
		t.Fatalf("expected 1 died and 2 spawned events, got %d/%d", rec.count(UnitEventDied), rec.count(UnitEventSpawned))
	}
}

func TestDeathDamage_ChainsAndKnocksBack(t *testing.T) {
	w := testWorld()
	bomb := addUnit(w, UnitSpec{Faction: Enemy, Position: V(500, 400),
		Abilities: []Ability{DeathDamage{Damage: 5, Radius: 80, Knockback: 20}}})
	fragile := addUnit(w, UnitSpec{Faction: Friendly, Position: V(540, 400), HP: 5,
		Abilities: []Ability{DeathDamage{Damage: 3, Radius: 80}}})
	sturdy := addUnit(w, UnitSpec{Faction: Friendly, Position: V(500, 450), HP: 100})
	bystander := addUnit(w, UnitSpec{Faction: Enemy, Position: V(600, 400), HP: 3})

	w.processDeaths([]*Unit{bomb})

	if !fragile.Dead {
		t.Fatal("death damage should kill the fragile friendly")
	}
	if !bystander.Dead {
		t.Fatal("the fragile friendly's death damage should chain into the enemy bystander")
	}
	if sturdy.HP != 95 {
		t.Fatalf("expected 95 HP, got %d", sturdy.HP)
	}
	if math.Abs(sturdy.Position.Y-470) > 1e-9 {
		t.Fatalf("survivor should be knocked back 20 units, got y=%.2f", sturdy.Position.Y)
	}
}

func TestKill_ReleasesOwnSlot(t *testing.T) {
	w := testWorld()
	a := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 100)})
	b := addUnit(w, UnitSpec{Faction: Enemy, Position: V(200, 100)})
	w.assignTarget(a, b, b.Ref())
	if b.Slots.Occupied() != 1 {
		t.Fatal("expected a claimed slot")
	}
	w.kill(a)
	if b.Slots.Occupied() != 0 || a.TakenSlot != noSlot || !a.Target.IsNone() {
		t.Fatal("a dead attacker must free its slot and target")
	}
}
