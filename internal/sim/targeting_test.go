package sim

import "testing"

func TestCanAttackUnit_LayerFilter(t *testing.T) {
	ground := newUnit(0, UnitSpec{Faction: Friendly})
	both := newUnit(1, UnitSpec{Faction: Friendly, CanTarget: TargetGroundAndAir})
	flyer := newUnit(0, UnitSpec{Faction: Enemy, Layer: LayerAir})
	walker := newUnit(1, UnitSpec{Faction: Enemy})

	if ground.CanAttackUnit(flyer) {
		t.Fatal("ground-only attacker should not target air units")
	}
	if !ground.CanAttackUnit(walker) || !both.CanAttackUnit(flyer) {
		t.Fatal("layer filter rejected a valid target")
	}
	walker.Dead = true
	if ground.CanAttackUnit(walker) {
		t.Fatal("dead units are never eligible")
	}
}

func TestCanAttackStructure_InactiveKing(t *testing.T) {
	u := newUnit(0, UnitSpec{Faction: Friendly})
	king := NewStructure(0, Enemy, King, V(500, 500))
	if king.Active {
		t.Fatal("king tower should start inactive")
	}
	if u.CanAttackStructure(king) {
		t.Fatal("inactive king must not be targetable")
	}
	king.Active = true
	if !u.CanAttackStructure(king) {
		t.Fatal("active king should be targetable")
	}
	air := newUnit(1, UnitSpec{Faction: Friendly, CanTarget: TargetAir})
	if air.CanAttackStructure(king) {
		t.Fatal("air-only attacker should not hit structures")
	}
}

func TestSelectTarget_PrefersAggroUnitOverStructure(t *testing.T) {
	u := newUnit(0, UnitSpec{Faction: Friendly, Position: V(100, 100)})
	near := newUnit(0, UnitSpec{Faction: Enemy, Position: V(300, 100)})
	tower := NewStructure(1, Enemy, Princess, V(150, 100))

	tu, ts := SelectTarget(u, []*Unit{near}, []*Structure{tower})
	if tu != near || ts != nil {
		t.Fatalf("expected the unit inside aggro radius, got unit=%v structure=%v", tu, ts)
	}

	near.Position = V(800, 100)
	tu, ts = SelectTarget(u, []*Unit{near}, []*Structure{tower})
	if tu != nil || ts != tower {
		t.Fatal("with no unit in aggro radius the nearest structure should win")
	}

	tu, ts = SelectTarget(u, []*Unit{near}, nil)
	if tu != near || ts != nil {
		t.Fatal("with no structure the best unit anywhere should win")
	}
}

func TestSelectTarget_BuildingPriority(t *testing.T) {
	u := newUnit(0, UnitSpec{Faction: Friendly, Priority: PriorityBuildings, Position: V(100, 100)})
	adjacent := newUnit(0, UnitSpec{Faction: Enemy, Position: V(120, 100)})
	tower := NewStructure(1, Enemy, Princess, V(900, 100))

	tu, ts := SelectTarget(u, []*Unit{adjacent}, []*Structure{tower})
	if tu != nil || ts != tower {
		t.Fatal("building-priority unit should ignore units while a structure stands")
	}
	tower.HP = 0
	tu, ts = SelectTarget(u, []*Unit{adjacent}, []*Structure{tower})
	if tu != adjacent || ts != nil {
		t.Fatal("building-priority unit should fall back to units")
	}
}

func TestSelectTarget_CrowdPenalty(t *testing.T) {
	u := newUnit(0, UnitSpec{Faction: Friendly, Position: V(100, 100)})
	crowded := newUnit(0, UnitSpec{Faction: Enemy, Position: V(150, 100)})
	free := newUnit(1, UnitSpec{Faction: Enemy, Position: V(180, 100)})
	crowded.Slots.set(0, 10)
	crowded.Slots.set(1, 11)

	// 50 + 2*25 = 100 against 80
	if tu, _ := SelectTarget(u, []*Unit{crowded, free}, nil); tu != free {
		t.Fatal("occupied slots should push selection to the free target")
	}
}

func TestUpdateTarget_Hysteresis(t *testing.T) {
	w := testWorld()
	u := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 100)})
	first := addUnit(w, UnitSpec{Faction: Enemy, Position: V(200, 100)})

	if h := w.updateTarget(u); h != first {
		t.Fatal("expected the only enemy to be acquired")
	}

	// u's own claim is not a crowd: 100 against 115.
	second := addUnit(w, UnitSpec{Faction: Enemy, Position: V(215, 100)})
	if h := w.updateTarget(u); h != first {
		t.Fatal("a marginally better candidate must not steal the target")
	}

	// Clearly better candidate switches immediately.
	second.Position = V(120, 100)
	if h := w.updateTarget(u); h != second {
		t.Fatal("a clearly better candidate should switch the target")
	}
	if first.Slots.Occupied() != 0 {
		t.Fatal("switching must release the old slot")
	}
	if !second.Slots.holds(u.TakenSlot, u.ID) {
		t.Fatal("switching must claim a slot on the new target")
	}
}

func TestUpdateTarget_IntervalAllowsRepick(t *testing.T) {
	w := testWorld()
	u := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 100)})
	first := addUnit(w, UnitSpec{Faction: Enemy, Position: V(200, 100)})
	w.updateTarget(u)
	second := addUnit(w, UnitSpec{Faction: Enemy, Position: V(195, 100)})

	for i := 0; i < targetReevaluateInterval-1; i++ {
		if h := w.updateTarget(u); h != first {
			t.Fatalf("tick %d: target changed before the interval elapsed", i)
		}
	}
	if h := w.updateTarget(u); h != second {
		t.Fatal("the slightly better candidate should win once the interval elapses")
	}
}

func TestUpdateTarget_NoFlipFlopBetweenCloseTargets(t *testing.T) {
	w := testWorld()
	u := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 100)})
	addUnit(w, UnitSpec{Faction: Enemy, Position: V(200, 100)})
	addUnit(w, UnitSpec{Faction: Enemy, Position: V(100, 205)})

	w.updateTarget(u)
	prev := u.Target
	switches := 0
	for i := 0; i < targetReevaluateInterval*6; i++ {
		w.updateTarget(u)
		if u.Target != prev {
			switches++
			prev = u.Target
		}
	}
	if switches > 1 {
		t.Fatalf("expected at most one switch between near-equal targets, got %d", switches)
	}
}

func TestUpdateTarget_DeadTargetReleased(t *testing.T) {
	w := testWorld()
	u := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 100)})
	e := addUnit(w, UnitSpec{Faction: Enemy, Position: V(200, 100)})
	w.updateTarget(u)

	e.Dead = true
	if h := w.updateTarget(u); h != nil {
		t.Fatal("no living opponent should leave no target")
	}
	if !u.Target.IsNone() || u.TakenSlot != noSlot {
		t.Fatal("dead target should be released together with the slot")
	}
}

func TestInAttackRange_StructureEdge(t *testing.T) {
	u := newUnit(0, UnitSpec{Faction: Friendly, Position: V(0, 0)})
	tower := NewStructure(0, Enemy, Princess, V(u.AttackRange+princessRadius()-1, 0))
	if !inAttackRange(u, tower) {
		t.Fatal("structure range is measured to its edge")
	}
	far := newUnit(0, UnitSpec{Faction: Enemy, Position: V(u.AttackRange+1, 0)})
	if inAttackRange(u, far) {
		t.Fatal("unit range is measured to the centre")
	}
}

func princessRadius() float64 { return StatsFor(Princess).Radius }
