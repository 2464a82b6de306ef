package sim

import "github.com/rs/zerolog"

// World is the arena every pass reads and writes: units of both factions,
// structures, the pending frame events and the collaborators used for
// movement.
type World struct {
	Width, Height float64
	Frame         int
	MainTarget    Vec2

	units      [2][]*Unit
	nextID     [2]int
	structures []*Structure
	events     FrameEvents
	catalog    map[string]UnitSpec

	pathfinder Pathfinder
	terrain    Terrain
	dynamic    *DynamicObstacles

	log zerolog.Logger
	cb  Callbacks
}

func newWorld(width, height float64, log zerolog.Logger) *World {
	return &World{
		Width:      width,
		Height:     height,
		MainTarget: V(width-100, height/2),
		log:        log,
		cb:         NopCallbacks{},
	}
}

// Units returns every unit of faction, dead ones included, in id order of
// creation.
func (w *World) Units(f Faction) []*Unit { return w.units[f] }

// Living returns the units of faction that are not dead.
func (w *World) Living(f Faction) []*Unit {
	out := make([]*Unit, 0, len(w.units[f]))
	for _, u := range w.units[f] {
		if !u.Dead {
			out = append(out, u)
		}
	}
	return out
}

// LivingCount counts living units of faction.
func (w *World) LivingCount(f Faction) int {
	n := 0
	for _, u := range w.units[f] {
		if !u.Dead {
			n++
		}
	}
	return n
}

// AllUnits returns both factions, friendlies first.
func (w *World) AllUnits() []*Unit {
	out := make([]*Unit, 0, len(w.units[Friendly])+len(w.units[Enemy]))
	out = append(out, w.units[Friendly]...)
	return append(out, w.units[Enemy]...)
}

// Unit finds a unit by faction and id, or nil.
func (w *World) Unit(f Faction, id int) *Unit {
	if f != Friendly && f != Enemy {
		return nil
	}
	for _, u := range w.units[f] {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// Structures returns faction's structures.
func (w *World) Structures(f Faction) []*Structure {
	var out []*Structure
	for _, s := range w.structures {
		if s.Faction == f {
			out = append(out, s)
		}
	}
	return out
}

// AllStructures returns every structure.
func (w *World) AllStructures() []*Structure { return w.structures }

// Structure finds a structure by faction and id, or nil.
func (w *World) Structure(f Faction, id int) *Structure {
	for _, s := range w.structures {
		if s.Faction == f && s.ID == id {
			return s
		}
	}
	return nil
}

// spawn creates a unit from spec with the next id of its faction. Catalog
// entries fill in whatever spec leaves zero.
func (w *World) spawn(spec UnitSpec) *Unit {
	if tmpl, ok := w.catalog[spec.Kind]; ok {
		spec = mergeSpec(tmpl, spec)
	}
	spec.Position = spec.Position.ClampTo(w.Width, w.Height)
	id := w.nextID[spec.Faction]
	w.nextID[spec.Faction]++
	u := newUnit(id, spec)
	w.units[spec.Faction] = append(w.units[spec.Faction], u)
	w.emitUnit(UnitEvent{Type: UnitEventSpawned, Frame: w.Frame, Unit: u.Key()})
	return u
}

// insert adds an already built unit, keeping ids unique.
func (w *World) insert(u *Unit) {
	w.units[u.Faction] = append(w.units[u.Faction], u)
	if u.ID >= w.nextID[u.Faction] {
		w.nextID[u.Faction] = u.ID + 1
	}
}

// remove deletes a unit outright, releasing every slot that involves it.
func (w *World) remove(u *Unit) {
	w.releaseTarget(u)
	for _, a := range w.units[u.Faction.Opponent()] {
		if a.Target == u.Ref() {
			w.releaseTarget(a)
		}
	}
	list := w.units[u.Faction]
	for i, x := range list {
		if x == u {
			w.units[u.Faction] = append(list[:i], list[i+1:]...)
			break
		}
	}
}

func mergeSpec(tmpl, spec UnitSpec) UnitSpec {
	out := tmpl
	out.Kind = spec.Kind
	out.Faction = spec.Faction
	out.Position = spec.Position
	if spec.Role != RoleMelee {
		out.Role = spec.Role
	}
	if spec.Layer != LayerGround {
		out.Layer = spec.Layer
	}
	if spec.Priority != PriorityNearest {
		out.Priority = spec.Priority
	}
	if spec.Radius > 0 {
		out.Radius = spec.Radius
	}
	if spec.Speed > 0 {
		out.Speed = spec.Speed
	}
	if spec.TurnSpeed > 0 {
		out.TurnSpeed = spec.TurnSpeed
	}
	if spec.HP > 0 {
		out.HP = spec.HP
	}
	if spec.Damage > 0 {
		out.Damage = spec.Damage
	}
	if spec.CanTarget != 0 {
		out.CanTarget = spec.CanTarget
	}
	if len(spec.Abilities) > 0 {
		out.Abilities = spec.Abilities
	}
	return out
}

func (w *World) emitUnit(e UnitEvent) { w.cb.OnUnitEvent(e) }

func (w *World) stateChanged(msg string) { w.cb.OnStateChanged(msg) }
