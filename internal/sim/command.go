package sim

import "fmt"

// Command is an external mutation scheduled for a frame. Due commands are
// applied at the start of Step in the order they were enqueued.
type Command interface {
	DueFrame() int
	fmt.Stringer
	apply(w *World) bool
}

// SpawnUnit creates a unit from Spec.
type SpawnUnit struct {
	At   int
	Spec UnitSpec
}

// DamageUnit deals Amount spell damage to a unit, shield first.
type DamageUnit struct {
	At      int
	Faction Faction
	ID      int
	Amount  int
}

// KillUnit kills a unit outright. Death abilities still fire.
type KillUnit struct {
	At      int
	Faction Faction
	ID      int
}

// RemoveUnit deletes a unit from the arena without a death.
type RemoveUnit struct {
	At      int
	Faction Faction
	ID      int
}

// MoveUnit replans a unit's path toward Destination.
type MoveUnit struct {
	At          int
	Faction     Faction
	ID          int
	Destination Vec2
}

// ReviveUnit brings a dead unit back with HP.
type ReviveUnit struct {
	At      int
	Faction Faction
	ID      int
	HP      int
}

// SetUnitHealth sets HP directly. Zero kills, a positive value on a dead
// unit revives it.
type SetUnitHealth struct {
	At      int
	Faction Faction
	ID      int
	HP      int
}

func (c SpawnUnit) DueFrame() int     { return c.At }
func (c DamageUnit) DueFrame() int    { return c.At }
func (c KillUnit) DueFrame() int      { return c.At }
func (c RemoveUnit) DueFrame() int    { return c.At }
func (c MoveUnit) DueFrame() int      { return c.At }
func (c ReviveUnit) DueFrame() int    { return c.At }
func (c SetUnitHealth) DueFrame() int { return c.At }

func (c SpawnUnit) String() string {
	return fmt.Sprintf("spawn %s %s @%d", c.Spec.Faction, c.Spec.Kind, c.At)
}

func (c DamageUnit) String() string {
	return fmt.Sprintf("damage %s#%d %d @%d", c.Faction, c.ID, c.Amount, c.At)
}

func (c KillUnit) String() string {
	return fmt.Sprintf("kill %s#%d @%d", c.Faction, c.ID, c.At)
}

func (c RemoveUnit) String() string {
	return fmt.Sprintf("remove %s#%d @%d", c.Faction, c.ID, c.At)
}

func (c MoveUnit) String() string {
	return fmt.Sprintf("move %s#%d to (%.0f,%.0f) @%d", c.Faction, c.ID, c.Destination.X, c.Destination.Y, c.At)
}

func (c ReviveUnit) String() string {
	return fmt.Sprintf("revive %s#%d hp=%d @%d", c.Faction, c.ID, c.HP, c.At)
}

func (c SetUnitHealth) String() string {
	return fmt.Sprintf("set-hp %s#%d hp=%d @%d", c.Faction, c.ID, c.HP, c.At)
}

func (c SpawnUnit) apply(w *World) bool {
	if c.Spec.Faction != Friendly && c.Spec.Faction != Enemy {
		w.unknown(c, "invalid faction")
		return false
	}
	spec := c.Spec
	spec.HP = max(0, spec.HP)
	u := w.spawn(spec)
	w.stateChanged(fmt.Sprintf("unit %s spawned", u.Label()))
	return true
}

func (c DamageUnit) apply(w *World) bool {
	u := w.Unit(c.Faction, c.ID)
	if u == nil {
		w.unknown(c, "unknown unit")
		return false
	}
	if u.Dead || c.Amount <= 0 {
		return false
	}
	lost := u.applyDamage(c.Amount)
	w.emitUnit(UnitEvent{Type: UnitEventDamaged, Frame: w.Frame, Unit: u.Key(), Amount: lost, Kind: DamageSpell})
	if u.HP <= 0 {
		w.processDeaths([]*Unit{u})
	}
	w.stateChanged(fmt.Sprintf("unit %s damaged by %d", u.Label(), c.Amount))
	return true
}

func (c KillUnit) apply(w *World) bool {
	u := w.Unit(c.Faction, c.ID)
	if u == nil {
		w.unknown(c, "unknown unit")
		return false
	}
	if u.Dead {
		return false
	}
	w.processDeaths([]*Unit{u})
	w.stateChanged(fmt.Sprintf("unit %s killed", u.Label()))
	return true
}

func (c RemoveUnit) apply(w *World) bool {
	u := w.Unit(c.Faction, c.ID)
	if u == nil {
		w.unknown(c, "unknown unit")
		return false
	}
	w.remove(u)
	w.stateChanged(fmt.Sprintf("unit %s removed", u.Label()))
	return true
}

func (c MoveUnit) apply(w *World) bool {
	u := w.Unit(c.Faction, c.ID)
	if u == nil {
		w.unknown(c, "unknown unit")
		return false
	}
	if u.Dead {
		return false
	}
	w.replan(u, c.Destination.ClampTo(w.Width, w.Height), replanCommand)
	w.stateChanged(fmt.Sprintf("unit %s destination set", u.Label()))
	return true
}

func (c ReviveUnit) apply(w *World) bool {
	u := w.Unit(c.Faction, c.ID)
	if u == nil {
		w.unknown(c, "unknown unit")
		return false
	}
	w.revive(u, c.HP)
	w.stateChanged(fmt.Sprintf("unit %s revived with %d HP", u.Label(), u.HP))
	return true
}

func (c SetUnitHealth) apply(w *World) bool {
	u := w.Unit(c.Faction, c.ID)
	if u == nil {
		w.unknown(c, "unknown unit")
		return false
	}
	hp := clampHP(c.HP, u.MaxHP)
	switch {
	case hp <= 0 && !u.Dead:
		w.processDeaths([]*Unit{u})
	case hp > 0 && u.Dead:
		w.revive(u, hp)
	default:
		u.HP = hp
	}
	w.stateChanged(fmt.Sprintf("unit %s HP set to %d", u.Label(), u.HP))
	return true
}

// revive clears the dead flag and restores HP, clamped to [1, MaxHP].
func (w *World) revive(u *Unit, hp int) {
	u.HP = max(1, clampHP(hp, u.MaxHP))
	u.Dead = false
	u.ShieldHP = u.MaxShieldHP
	u.AttackCooldown = 0
	u.Destination = u.Position
	u.PreviousPosition = u.Position
	u.FramesSinceProgress = 0
	u.FramesSinceAvoidance = 0
	if u.Charge != nil {
		u.Charge.reset()
	}
}

func clampHP(hp, maxHP int) int {
	if maxHP <= 0 {
		return max(0, hp)
	}
	return min(max(0, hp), maxHP)
}

// unknown logs and reports a request that could not be applied.
func (w *World) unknown(c fmt.Stringer, why string) {
	w.log.Warn().Int("frame", w.Frame).Stringer("command", c).Msg(why)
	w.stateChanged(fmt.Sprintf("%s ignored: %s", c, why))
}
