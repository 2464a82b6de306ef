package sim

import "math"

// targetScore is distance plus a crowd penalty per slot held by someone
// other than u. Lower is better.
func targetScore(u *Unit, h SlotHolder) float64 {
	return u.Position.Dist(h.SlotCenter()) + float64(h.Ring().occupiedExcept(u.ID))*targetCrowdPenalty
}

// bestUnit returns the lowest-scoring eligible opponent, optionally limited
// to those within maxDist.
func bestUnit(u *Unit, opponents []*Unit, maxDist float64) *Unit {
	var best *Unit
	bestScore := math.MaxFloat64
	for _, o := range opponents {
		if !u.CanAttackUnit(o) {
			continue
		}
		if maxDist > 0 && u.Position.Dist(o.Position) > maxDist {
			continue
		}
		if s := targetScore(u, o); s < bestScore {
			bestScore = s
			best = o
		}
	}
	return best
}

// nearestStructure returns the closest structure u may attack.
func nearestStructure(u *Unit, structures []*Structure) *Structure {
	var best *Structure
	bestDist := math.MaxFloat64
	for _, s := range structures {
		if !u.CanAttackStructure(s) {
			continue
		}
		if d := u.Position.Dist(s.Position); d < bestDist {
			bestDist = d
			best = s
		}
	}
	return best
}

// SelectTarget picks at most one of an opponent unit or an opponent
// structure for u.
//
// Building-priority units go for the nearest structure and only fall back to
// units when none is left. Everyone else prefers an opponent inside the aggro
// radius, then the nearest structure, then the best-scored opponent anywhere.
func SelectTarget(u *Unit, opponents []*Unit, structures []*Structure) (*Unit, *Structure) {
	if u.Priority == PriorityBuildings {
		if s := nearestStructure(u, structures); s != nil {
			return nil, s
		}
		return bestUnit(u, opponents, 0), nil
	}
	if t := bestUnit(u, opponents, unitAggroRadius); t != nil {
		return t, nil
	}
	if s := nearestStructure(u, structures); s != nil {
		return nil, s
	}
	return bestUnit(u, opponents, 0), nil
}

// resolveTarget looks up u's current target. It returns nil when the
// reference is empty, dangling, dead or no longer attackable by u.
func (w *World) resolveTarget(u *Unit) SlotHolder {
	switch u.Target.Kind {
	case TargetUnit:
		if t := w.Unit(u.Target.Faction, u.Target.ID); t != nil && u.CanAttackUnit(t) {
			return t
		}
	case TargetStructure:
		if s := w.Structure(u.Target.Faction, u.Target.ID); s != nil && u.CanAttackStructure(s) {
			return s
		}
	}
	return nil
}

// holderOf looks up a target reference without any eligibility checks.
func (w *World) holderOf(ref TargetRef) SlotHolder {
	switch ref.Kind {
	case TargetUnit:
		if t := w.Unit(ref.Faction, ref.ID); t != nil {
			return t
		}
	case TargetStructure:
		if s := w.Structure(ref.Faction, ref.ID); s != nil {
			return s
		}
	}
	return nil
}

// releaseTarget frees u's slot on its current target before dropping the
// reference.
func (w *World) releaseTarget(u *Unit) {
	if u.Target.IsNone() {
		u.TakenSlot = noSlot
		return
	}
	if h := w.holderOf(u.Target); h != nil {
		ReleaseSlot(h, u)
	}
	u.TakenSlot = noSlot
	lost := u.Target
	u.Target = TargetRef{}
	w.emitUnit(UnitEvent{Type: UnitEventTargetLost, Unit: u.Key(), Target: lost, Frame: w.Frame})
}

// assignTarget switches u to h, claiming the best free slot on it.
func (w *World) assignTarget(u *Unit, h SlotHolder, ref TargetRef) {
	if u.Target != ref {
		w.releaseTarget(u)
		u.Target = ref
		w.emitUnit(UnitEvent{Type: UnitEventTargetAcquired, Unit: u.Key(), Target: ref, Frame: w.Frame})
	}
	ClaimBestSlot(h, u)
	u.FramesSinceTargetEval = 0
	u.FramesSinceSlotEval = 0
}

// updateTarget runs target selection with hysteresis: a valid current target
// is kept until the re-evaluation interval elapses or a candidate beats it by
// more than the switch margin. It returns the resolved target, or nil.
func (w *World) updateTarget(u *Unit) SlotHolder {
	u.FramesSinceTargetEval++

	current := w.resolveTarget(u)
	if current == nil && !u.Target.IsNone() {
		w.releaseTarget(u)
	}

	opp := u.Faction.Opponent()
	candUnit, candStruct := SelectTarget(u, w.Living(opp), w.Structures(opp))

	var cand SlotHolder
	var candRef TargetRef
	switch {
	case candUnit != nil:
		cand, candRef = candUnit, candUnit.Ref()
	case candStruct != nil:
		cand, candRef = candStruct, candStruct.Ref()
	}

	if current == nil {
		if cand == nil {
			u.FramesSinceTargetEval = 0
			return nil
		}
		w.assignTarget(u, cand, candRef)
		return cand
	}
	if cand == nil || candRef == u.Target {
		if u.FramesSinceTargetEval >= targetReevaluateInterval {
			u.FramesSinceTargetEval = 0
		}
		return current
	}

	intervalElapsed := u.FramesSinceTargetEval >= targetReevaluateInterval
	clearlyBetter := targetScore(u, cand)+targetSwitchMargin < targetScore(u, current)
	if intervalElapsed || clearlyBetter {
		w.assignTarget(u, cand, candRef)
		return cand
	}
	return current
}

// refreshSlot re-claims the best slot on h when u holds none, has drifted
// more than the re-evaluation distance from it, or the re-evaluation interval
// has elapsed. It returns the point u should approach.
func refreshSlot(u *Unit, h SlotHolder) (Vec2, bool) {
	u.FramesSinceSlotEval++
	refresh := u.TakenSlot == noSlot || !h.Ring().holds(u.TakenSlot, u.ID)
	if !refresh {
		offset := SlotPosition(h, u.TakenSlot, u.Radius).Dist(u.Position)
		refresh = offset > slotReevaluateDistance || u.FramesSinceSlotEval >= slotReevaluateInterval
	}
	if refresh {
		ClaimBestSlot(h, u)
		u.FramesSinceSlotEval = 0
	}
	if u.TakenSlot == noSlot {
		return Vec2{}, false
	}
	return SlotPosition(h, u.TakenSlot, u.Radius), true
}

// flankPoint is where a unit waits when every slot on h is taken.
func flankPoint(u *Unit, h SlotHolder) Vec2 {
	to := h.SlotCenter().Sub(u.Position)
	return h.SlotCenter().Add(to.Perp().Normalize().Scale(flankOffset))
}

// inAttackRange measures center distance for units and edge distance for
// structures.
func inAttackRange(u *Unit, h SlotHolder) bool {
	d := u.Position.Dist(h.SlotCenter())
	if _, ok := h.(*Structure); ok {
		d -= h.SlotRadius()
	}
	return d <= u.AttackRange
}
