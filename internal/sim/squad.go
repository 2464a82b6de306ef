package sim

import "fmt"

// Doctrine is a coordinator's movement and engagement policy.
type Doctrine int

const (
	// DoctrineSquad moves as a formation to a rally point short of the
	// squad objective and only breaks formation per unit once engaged.
	DoctrineSquad Doctrine = iota
	// DoctrineSkirmish lets every unit pick its own target and approach it
	// directly.
	DoctrineSkirmish
)

func (d Doctrine) String() string {
	if d == DoctrineSkirmish {
		return "skirmish"
	}
	return "squad"
}

// ParseDoctrine accepts "squad" or "skirmish".
func ParseDoctrine(s string) (Doctrine, error) {
	switch s {
	case "squad", "Squad":
		return DoctrineSquad, nil
	case "skirmish", "Skirmish":
		return DoctrineSkirmish, nil
	}
	return 0, fmt.Errorf("unknown doctrine %q", s)
}

// Coordinator drives one faction each tick. Its state lives in the engine
// so separate engines never share it.
type Coordinator struct {
	Faction   Faction
	Doctrine  Doctrine
	Formation FormationType

	Objective  TargetRef // squad objective, Squad doctrine only
	RallyPoint Vec2
	HasRally   bool
}

// CoordinatorState is the persisted part of a Coordinator.
type CoordinatorState struct {
	Doctrine   Doctrine  `json:"doctrine" msgpack:"doctrine"`
	Formation  int       `json:"formation" msgpack:"formation"`
	Objective  TargetRef `json:"objective" msgpack:"objective"`
	RallyPoint Vec2      `json:"rallyPoint" msgpack:"rally"`
	HasRally   bool      `json:"hasRally" msgpack:"hasRally"`
}

func (c *Coordinator) state() CoordinatorState {
	return CoordinatorState{
		Doctrine:   c.Doctrine,
		Formation:  int(c.Formation),
		Objective:  c.Objective,
		RallyPoint: c.RallyPoint,
		HasRally:   c.HasRally,
	}
}

func (c *Coordinator) restore(s CoordinatorState) {
	c.Doctrine = s.Doctrine
	c.Formation = FormationType(s.Formation)
	c.Objective = s.Objective
	c.RallyPoint = s.RallyPoint
	c.HasRally = s.HasRally
}

func (c *Coordinator) resetObjective() {
	c.Objective = TargetRef{}
	c.RallyPoint = Vec2{}
	c.HasRally = false
}

// update runs one pass over the faction's living units.
func (c *Coordinator) update(w *World) {
	units := w.Living(c.Faction)
	for _, u := range units {
		if u.AttackCooldown > 0 {
			u.AttackCooldown--
		}
	}
	if len(units) == 0 {
		c.resetObjective()
		return
	}
	if c.Doctrine == DoctrineSkirmish {
		c.skirmish(w, units)
		return
	}
	c.squad(w, units)
}

// hasAttackable reports whether u has anything at all to attack.
func hasAttackable(w *World, u *Unit) bool {
	opp := u.Faction.Opponent()
	for _, o := range w.units[opp] {
		if u.CanAttackUnit(o) {
			return true
		}
	}
	for _, s := range w.structures {
		if s.Faction == opp && u.CanAttackStructure(s) {
			return true
		}
	}
	return false
}

// anyAttackable reports whether any unit in units has something to attack.
func anyAttackable(w *World, units []*Unit) bool {
	for _, u := range units {
		if hasAttackable(w, u) {
			return true
		}
	}
	return false
}

// --- skirmish ---

func (c *Coordinator) skirmish(w *World, units []*Unit) {
	if !anyAttackable(w, units) {
		for _, u := range units {
			w.releaseTarget(u)
			u.halt()
			u.clearAvoidanceDiagnostics()
			u.Destination = u.Position
			if u.Charge != nil {
				u.Charge.reset()
			}
		}
		return
	}

	for _, u := range units {
		h := w.updateTarget(u)
		if h == nil {
			u.halt()
			u.clearAvoidanceDiagnostics()
			u.Destination = u.Position
			if u.Charge != nil {
				u.Charge.reset()
			}
			continue
		}
		w.engage(u, h)
	}
}

// engage charges, attacks in range, or approaches the slot on h.
func (w *World) engage(u *Unit, h SlotHolder) {
	updateCharge(u, h)
	slot, ok := refreshSlot(u, h)
	if !ok {
		slot = flankPoint(u, h)
	}
	if inAttackRange(u, h) {
		u.halt()
		u.clearAvoidanceDiagnostics()
		w.collectAttack(u, h)
		return
	}
	w.moveUnit(u, slot)
}

// --- squad ---

func (c *Coordinator) squad(w *World, units []*Unit) {
	leader := units[0]

	if !anyAttackable(w, units) {
		c.resetObjective()
		for _, u := range units {
			w.releaseTarget(u)
			if u.Charge != nil {
				u.Charge.reset()
			}
		}
		c.formationMove(w, units, nil, w.MainTarget)
		return
	}

	c.updateObjective(w, leader)

	engaged := make(map[*Unit]bool)
	for _, u := range units {
		if !c.isEngaged(w, u) {
			if !u.Target.IsNone() {
				w.releaseTarget(u)
			}
			continue
		}
		h := w.updateTarget(u)
		if h == nil {
			continue
		}
		engaged[u] = true
		w.engage(u, h)
	}

	dest := w.MainTarget
	if c.HasRally {
		dest = c.RallyPoint
	}
	c.formationMove(w, units, engaged, dest)
}

// updateObjective drops a dead objective and, when none is held, picks the
// nearest attackable opponent to the leader and sets the rally point short
// of it.
func (c *Coordinator) updateObjective(w *World, leader *Unit) {
	if !c.Objective.IsNone() {
		if h := w.holderOf(c.Objective); h == nil || !objectiveAlive(h) {
			c.resetObjective()
		}
	}
	if !c.Objective.IsNone() {
		return
	}

	opp := leader.Faction.Opponent()
	var pos Vec2
	if t := nearestAttackable(leader, w.units[opp]); t != nil {
		c.Objective = t.Ref()
		pos = t.Position
	} else if s := nearestStructure(leader, w.Structures(opp)); s != nil {
		c.Objective = s.Ref()
		pos = s.Position
	} else {
		return
	}
	dir := pos.Sub(leader.Position).Normalize()
	c.RallyPoint = pos.Sub(dir.Scale(rallyDistance)).ClampTo(w.Width, w.Height)
	c.HasRally = true
	w.log.Debug().
		Str("faction", c.Faction.String()).
		Int("frame", w.Frame).
		Float64("rally_x", c.RallyPoint.X).
		Float64("rally_y", c.RallyPoint.Y).
		Msg("squad objective")
}

func objectiveAlive(h SlotHolder) bool {
	switch t := h.(type) {
	case *Unit:
		return !t.Dead
	case *Structure:
		return !t.Destroyed()
	}
	return false
}

func nearestAttackable(u *Unit, opponents []*Unit) *Unit {
	var best *Unit
	bestDist := 0.0
	for _, o := range opponents {
		if !u.CanAttackUnit(o) {
			continue
		}
		if d := u.Position.Dist(o.Position); best == nil || d < bestDist {
			best, bestDist = o, d
		}
	}
	return best
}

// isEngaged is true with a valid target, or an attackable opponent within
// the engagement trigger distance.
func (c *Coordinator) isEngaged(w *World, u *Unit) bool {
	if w.resolveTarget(u) != nil {
		return true
	}
	trigger := u.AttackRange * engagementTriggerMult
	opp := u.Faction.Opponent()
	for _, o := range w.units[opp] {
		if u.CanAttackUnit(o) && u.Position.Dist(o.Position) <= trigger {
			return true
		}
	}
	for _, s := range w.structures {
		if s.Faction == opp && u.CanAttackStructure(s) && u.Position.Dist(s.Position)-s.Radius <= trigger {
			return true
		}
	}
	return false
}

// formationMove sends the leader to dest and every non-engaged follower to
// its offset around the leader, rotated by the leader's heading.
func (c *Coordinator) formationMove(w *World, units []*Unit, engaged map[*Unit]bool, dest Vec2) {
	leader := units[0]
	if !engaged[leader] {
		w.moveUnit(leader, dest)
	}
	offsets := formationOffsets(c.Formation, len(units))
	heading := leader.Forward.Angle()
	for i := 1; i < len(units); i++ {
		u := units[i]
		if engaged[u] {
			continue
		}
		slot := SlotWorld(leader.Position, heading, offsets[i][0], offsets[i][1])
		w.moveUnit(u, slot.ClampTo(w.Width, w.Height))
	}
}

// --- shared movement ---

func separationRadius(f Faction) float64 {
	if f == Friendly {
		return friendlySeparationRadius
	}
	return enemySeparationRadius
}

// avoidanceCandidates is every living unit except u itself and the unit it
// is attacking.
func (w *World) avoidanceCandidates(u *Unit) []*Unit {
	out := make([]*Unit, 0, len(w.units[Friendly])+len(w.units[Enemy]))
	for _, o := range w.AllUnits() {
		if o == u || o.Dead {
			continue
		}
		if u.Target.Kind == TargetUnit && o.Faction == u.Target.Faction && o.ID == u.Target.ID {
			continue
		}
		out = append(out, o)
	}
	return out
}

// moveUnit steps u one tick toward dest: replan if triggered, steer at the
// current waypoint (or detour waypoint) blended with separation and
// avoidance, integrate, then rotate.
func (w *World) moveUnit(u *Unit, dest Vec2) {
	if reason := shouldReplan(u, dest, w.Frame); reason != replanNone {
		w.replan(u, dest, reason)
	}

	wp, ok := u.nextMovementWaypoint()
	if !ok {
		u.Velocity = Vec2{}
		u.ClearAvoidancePath()
		u.clearAvoidanceDiagnostics()
		trackProgress(u, false, true)
		return
	}

	desired := wp.Sub(u.Position).Normalize()
	sep := separationVector(u, w.units[u.Faction], separationRadius(u.Faction))
	avoid := predictiveAvoidance(u, w.avoidanceCandidates(u), desired)

	avoidWP, hasAvoidWP := u.nextAvoidanceWaypoint()
	steerAt := wp
	if hasAvoidWP {
		steerAt = avoidWP
	}
	detour := hasAvoidWP || avoid.Detouring
	if !detour {
		u.ClearAvoidancePath()
	}

	u.HasAvoidanceTarget = detour
	switch {
	case hasAvoidWP:
		u.AvoidanceTarget = avoidWP
	case avoid.Detouring:
		u.AvoidanceTarget = avoid.Target
	default:
		u.AvoidanceTarget = Vec2{}
	}
	u.HasAvoidanceThreat = detour && avoid.Threat != nil
	u.AvoidanceThreat = UnitKey{}
	if u.HasAvoidanceThreat {
		u.AvoidanceThreat = avoid.Threat.Key()
	}

	steer := steerAt.Sub(u.Position).Normalize()
	dir := steer.Add(sep).Add(avoid.Vector).Normalize()
	u.Velocity = dir.Scale(u.EffectiveSpeed())
	u.Position = u.Position.Add(u.Velocity).ClampTo(w.Width, w.Height)
	u.rotateTowardVelocity()
	if u.Charge != nil {
		u.Charge.advance(u.Position)
	}

	trackProgress(u, detour, madeProgress(u, wp))
}
