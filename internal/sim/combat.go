package sim

import (
	"fmt"
	"math"
)

// DamageType tags where a hit came from.
type DamageType int

const (
	DamageNormal DamageType = iota
	DamageSplash
	DamageDeath
	DamageSpell
	DamageTower
)

func (d DamageType) String() string {
	switch d {
	case DamageSplash:
		return "splash"
	case DamageDeath:
		return "death"
	case DamageSpell:
		return "spell"
	case DamageTower:
		return "tower"
	default:
		return "normal"
	}
}

// DamageEvent is a pending unit-to-unit hit.
type DamageEvent struct {
	Source UnitKey
	Target UnitKey
	Amount int
	Type   DamageType
}

// SpawnRequest is a unit to create once both passes have run.
type SpawnRequest struct {
	Spec UnitSpec
}

// StructureDamage is a pending structure-to-unit hit.
type StructureDamage struct {
	Source        int
	SourceFaction Faction
	Target        int // id of a unit on the opposing faction
	Amount        int
}

// DamageToStructure is a pending unit-to-structure hit.
type DamageToStructure struct {
	Source    UnitKey
	Structure TargetRef
	Amount    int
}

// FrameEvents collects every effect produced during the behaviour passes.
// Nothing in it touches HP until apply runs.
type FrameEvents struct {
	Damages            []DamageEvent
	Spawns             []SpawnRequest
	StructureDamages   []StructureDamage
	DamageToStructures []DamageToStructure
}

func (fe *FrameEvents) reset() {
	fe.Damages = fe.Damages[:0]
	fe.Spawns = fe.Spawns[:0]
	fe.StructureDamages = fe.StructureDamages[:0]
	fe.DamageToStructures = fe.DamageToStructures[:0]
}

// Empty reports whether nothing was collected.
func (fe *FrameEvents) Empty() bool {
	return len(fe.Damages) == 0 && len(fe.Spawns) == 0 &&
		len(fe.StructureDamages) == 0 && len(fe.DamageToStructures) == 0
}

// updateCharge starts a charge once u is far enough from its target and
// tracks the distance covered since.
func updateCharge(u *Unit, h SlotHolder) {
	if u.Charge == nil {
		return
	}
	c, ok := u.chargeAbility()
	if !ok || h == nil {
		u.Charge.reset()
		return
	}
	if !u.Charge.Charging && u.Position.Dist(h.SlotCenter()) >= c.TriggerDistance {
		u.Charge.begin(u.Position, c.RequiredDistance)
	}
	u.Charge.advance(u.Position)
}

// collectAttack queues u's hit on h when its cooldown has expired.
func (w *World) collectAttack(u *Unit, h SlotHolder) {
	if u.AttackCooldown > 0 {
		return
	}
	dmg := u.EffectiveDamage()

	switch t := h.(type) {
	case *Unit:
		if t.Dead {
			return
		}
		w.events.Damages = append(w.events.Damages, DamageEvent{Source: u.Key(), Target: t.Key(), Amount: dmg, Type: DamageNormal})
		w.collectSplash(u, t.Position, t.Key(), dmg)
	case *Structure:
		if t.Destroyed() || !t.Active {
			return
		}
		w.events.DamageToStructures = append(w.events.DamageToStructures, DamageToStructure{Source: u.Key(), Structure: t.Ref(), Amount: dmg})
		w.collectSplash(u, t.Position, UnitKey{Faction: t.Faction, ID: -1}, dmg)
	}

	if u.Charge != nil {
		u.Charge.consume()
	}
	u.AttackCooldown = AttackCooldownFrames
	w.emitUnit(UnitEvent{Type: UnitEventAttack, Frame: w.Frame, Unit: u.Key(), Target: u.Target, Amount: dmg})
}

// collectSplash hits every other eligible opponent within the splash radius
// of centre with linear falloff.
func (w *World) collectSplash(u *Unit, centre Vec2, main UnitKey, base int) {
	sp, ok := u.splashAbility()
	if !ok || sp.Radius <= 0 {
		return
	}
	for _, o := range w.Living(u.Faction.Opponent()) {
		if o.Key() == main || !u.CanAttackUnit(o) {
			continue
		}
		d := centre.Dist(o.Position)
		if d > sp.Radius {
			continue
		}
		amount := base
		if sp.Falloff > 0 {
			amount = int(float64(base) * math.Max(0, 1-(d/sp.Radius)*sp.Falloff))
		}
		if amount > 0 {
			w.events.Damages = append(w.events.Damages, DamageEvent{Source: u.Key(), Target: o.Key(), Amount: amount, Type: DamageSplash})
		}
	}
}

// applyEvents resolves everything collected this tick: unit damage, tower
// damage, damage to structures, chained deaths and finally spawns.
func (w *World) applyEvents() {
	var dying []*Unit

	hit := func(t *Unit, amount int, kind DamageType, source TargetRef) {
		if t == nil || t.Dead {
			return
		}
		lost := t.applyDamage(amount)
		w.emitUnit(UnitEvent{Type: UnitEventDamaged, Frame: w.Frame, Unit: t.Key(), Target: source, Amount: lost, Kind: kind})
		if t.HP <= 0 {
			dying = append(dying, t)
		}
	}

	for _, d := range w.events.Damages {
		hit(w.Unit(d.Target.Faction, d.Target.ID), d.Amount, d.Type,
			TargetRef{Kind: TargetUnit, Faction: d.Source.Faction, ID: d.Source.ID})
	}
	for _, d := range w.events.StructureDamages {
		hit(w.Unit(d.SourceFaction.Opponent(), d.Target), d.Amount, DamageTower,
			TargetRef{Kind: TargetStructure, Faction: d.SourceFaction, ID: d.Source})
	}
	for _, d := range w.events.DamageToStructures {
		s := w.Structure(d.Structure.Faction, d.Structure.ID)
		if s == nil || !s.Active {
			continue
		}
		if s.takeDamage(d.Amount) {
			w.log.Info().Str("structure", s.Label()).Int("frame", w.Frame).Msg("structure destroyed")
			w.stateChanged(fmt.Sprintf("structure %s destroyed", s.Label()))
		}
	}
	for _, k := range activateKings(w.structures) {
		w.stateChanged(fmt.Sprintf("king %s activated", k.Label()))
	}

	w.processDeaths(dying)

	spawns := w.events.Spawns
	w.events.Spawns = nil
	for _, sp := range spawns {
		w.spawn(sp.Spec)
	}
	w.events.reset()
}

// processDeaths marks each unit dead and resolves its death abilities,
// following chains until no new deaths occur. Death spawns are queued.
func (w *World) processDeaths(queue []*Unit) {
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		if u.Dead {
			continue
		}
		w.kill(u)

		if ds, ok := u.deathSpawn(); ok && ds.Count > 0 {
			for i := range ds.Count {
				angle := 2 * math.Pi / float64(ds.Count) * float64(i)
				w.events.Spawns = append(w.events.Spawns, SpawnRequest{Spec: UnitSpec{
					Kind:     ds.UnitKind,
					Faction:  u.Faction,
					Position: u.Position.Add(fromAngle(angle).Scale(ds.Radius)).ClampTo(w.Width, w.Height),
					HP:       ds.HP,
				}})
			}
		}

		dd, ok := u.deathDamage()
		if !ok || dd.Damage <= 0 {
			continue
		}
		for _, o := range w.Living(u.Faction.Opponent()) {
			d := u.Position.Dist(o.Position)
			if d > dd.Radius {
				continue
			}
			lost := o.applyDamage(dd.Damage)
			w.emitUnit(UnitEvent{Type: UnitEventDamaged, Frame: w.Frame, Unit: o.Key(), Target: u.Ref(), Amount: lost, Kind: DamageDeath})
			if o.HP <= 0 {
				queue = append(queue, o)
				continue
			}
			if dd.Knockback > 0 && d > 1e-4 {
				push := o.Position.Sub(u.Position).Normalize().Scale(dd.Knockback)
				o.Position = o.Position.Add(push).ClampTo(w.Width, w.Height)
			}
		}
	}
}

// kill marks u dead and drops its target, slot, paths and charge.
func (w *World) kill(u *Unit) {
	u.HP = 0
	u.Dead = true
	u.halt()
	u.clearAvoidanceDiagnostics()
	w.releaseTarget(u)
	if u.Charge != nil {
		u.Charge.reset()
	}
	w.emitUnit(UnitEvent{Type: UnitEventDied, Frame: w.Frame, Unit: u.Key()})
}
