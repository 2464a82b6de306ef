package sim

// replanReason names the trigger that forced a new path request.
type replanReason int

const (
	replanNone replanReason = iota
	replanDestination
	replanExhausted
	replanStall
	replanAvoidance
	replanPeriodic
	replanCommand
)

func (r replanReason) String() string {
	switch r {
	case replanDestination:
		return "destination"
	case replanExhausted:
		return "exhausted"
	case replanStall:
		return "stall"
	case replanAvoidance:
		return "avoidance"
	case replanPeriodic:
		return "periodic"
	case replanCommand:
		return "command"
	default:
		return "none"
	}
}

// shouldReplan evaluates the triggers for u heading to dest. The cooldown
// gates every trigger, including a moved destination.
func shouldReplan(u *Unit, dest Vec2, frame int) replanReason {
	since := frame - u.LastReplanFrame
	if since < ReplanCooldownFrames {
		return replanNone
	}
	switch {
	case u.Destination.Dist(dest) > destinationThreshold:
		return replanDestination
	case len(u.MovementPath()) == 0 && u.Position.Dist(dest) > avoidanceWaypointThreshold:
		return replanExhausted
	case u.FramesSinceProgress >= replanStallThreshold:
		return replanStall
	case u.FramesSinceAvoidance >= replanAvoidanceThreshold:
		return replanAvoidance
	case since >= replanPeriodicInterval:
		return replanPeriodic
	}
	return replanNone
}

// replan asks the pathfinder for a route to the terrain-adjusted dest and
// installs it. A missing pathfinder or a nil path leaves the unit without a
// movement path.
func (w *World) replan(u *Unit, dest Vec2, reason replanReason) {
	adjusted := dest
	if w.terrain != nil {
		adjusted = w.terrain.AdjustDestination(u, dest)
	}
	var path []Vec2
	if w.pathfinder != nil {
		path = w.pathfinder.FindPath(u.Position, adjusted)
	}
	if path == nil {
		u.ClearMovementPath()
	} else {
		u.SetMovementPath(path)
	}
	w.log.Debug().
		Str("unit", u.Label()).
		Int("frame", w.Frame).
		Stringer("reason", reason).
		Int("waypoints", len(path)).
		Msg("replan")
	u.Destination = dest
	u.LastReplanFrame = w.Frame
	u.FramesSinceProgress = 0
	u.FramesSinceAvoidance = 0
}

// madeProgress reports whether u moved meaningfully closer to wp since the
// previous tick.
func madeProgress(u *Unit, wp Vec2) bool {
	moved := u.PreviousPosition.Dist(u.Position)
	return moved >= waypointProgressThreshold*0.5 && u.Position.Dist(wp) < u.PreviousPosition.Dist(wp)
}

// trackProgress feeds the stall and avoidance counters.
func trackProgress(u *Unit, avoiding, progressed bool) {
	if progressed {
		u.FramesSinceProgress = 0
	} else {
		u.FramesSinceProgress++
	}
	if avoiding {
		u.FramesSinceAvoidance++
	} else {
		u.FramesSinceAvoidance = 0
	}
	u.PreviousPosition = u.Position
}
