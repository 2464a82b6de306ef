package sim

import (
	"math"
	"sort"
)

// AvoidanceRisk is one unit whose short-horizon trajectory crosses the
// mover's.
type AvoidanceRisk struct {
	RelPos         Vec2 // threat relative to mover at the predicted contact
	Distance       float64
	CombinedRadius float64
	Threat         *Unit
}

// avoidanceResult is what predictiveAvoidance hands back to the mover.
type avoidanceResult struct {
	Vector    Vec2
	Target    Vec2 // diagnostic steering point
	Detouring bool
	Threat    *Unit
}

// collectRisks finds every live unit in others that threatens mover within
// the lookahead window along heading.
func collectRisks(mover *Unit, others []*Unit, heading Vec2) []AvoidanceRisk {
	moverRadius := mover.Radius * collisionRadiusScale
	minSpeed := math.Max(mover.Speed, 0.001)

	var risks []AvoidanceRisk
	for _, other := range others {
		if other == mover || other.Dead {
			continue
		}
		combined := moverRadius + other.Radius*collisionRadiusScale
		window := math.Min(combined*2/minSpeed, avoidanceMaxLookahead)
		relPos := other.Position.Sub(mover.Position)
		relVel := other.Velocity.Sub(mover.Velocity)

		// Closed-form time to contact.
		if t, _, ok := timeToCollision(mover, other); ok && t <= window {
			rel := other.Position.Add(other.Velocity.Scale(t)).Sub(mover.Position.Add(mover.Velocity.Scale(t)))
			if d := rel.Len(); d > 1e-4 {
				risks = append(risks, AvoidanceRisk{RelPos: rel, Distance: d, CombinedRadius: combined, Threat: other})
				continue
			}
		}

		// Closest approach at constant velocity.
		tClosest := 0.0
		if speedSq := relVel.LenSq(); speedSq >= 1e-4 {
			tClosest = math.Max(-relPos.Dot(relVel)/speedSq, 0)
		}
		future := relPos.Add(relVel.Scale(tClosest)).Len()
		if future < combined && tClosest <= window && future > 1e-4 {
			risks = append(risks, AvoidanceRisk{RelPos: relPos, Distance: relPos.Len(), CombinedRadius: combined, Threat: other})
			continue
		}

		// Static projection onto the heading for near-stationary obstacles.
		proj := relPos.Dot(heading)
		lookahead := mover.Speed*avoidanceMaxLookahead + combined
		if proj > 0 && proj <= lookahead {
			if relPos.Sub(heading.Scale(proj)).Len() < combined {
				risks = append(risks, AvoidanceRisk{RelPos: relPos, Distance: proj, CombinedRadius: combined, Threat: other})
			}
		}
	}
	return risks
}

// predictiveAvoidance steers mover around the units in others.
//
// Risks are collected first. An active detour keeps its path and cursor
// while the unit it was built around is alive and still the nearest risk, or
// while nothing else threatens. With no risks and no live detour, any path is
// dropped and a zero vector is returned. Otherwise a segmented detour around
// the nearest risk is installed as the avoidance path, falling back to an
// angular sweep from the desired heading and finally to stepping straight
// away from the nearest risk.
func predictiveAvoidance(mover *Unit, others []*Unit, desired Vec2) avoidanceResult {
	moverRadius := mover.Radius * collisionRadiusScale

	heading := desired.Normalize()
	if heading.IsZero() {
		heading = mover.Velocity.Normalize()
	}
	if heading.IsZero() {
		heading = mover.Forward
	}

	risks := collectRisks(mover, others, heading)
	sort.SliceStable(risks, func(i, j int) bool { return risks[i].Distance < risks[j].Distance })

	if wp, threat, ok := activeDetour(mover, others, risks); ok {
		weight := 1.0
		if len(risks) > 0 {
			weight = clamp(risks[0].Distance/(moverRadius+0.001), 1, 3)
		}
		return avoidanceResult{
			Vector:    wp.Sub(mover.Position).Normalize().Scale(weight),
			Target:    wp,
			Detouring: true,
			Threat:    threat,
		}
	}
	if len(risks) == 0 {
		mover.ClearAvoidancePath()
		return avoidanceResult{}
	}

	primary := risks[0]
	weight := clamp(primary.Distance/(moverRadius+0.001), 1, 3)

	if path := segmentedDetour(mover, heading, primary); len(path) > 0 {
		mover.SetAvoidancePath(path)
		if wp, ok := mover.nextAvoidanceWaypoint(); ok {
			return avoidanceResult{
				Vector:    wp.Sub(mover.Position).Normalize().Scale(weight),
				Target:    wp,
				Detouring: true,
				Threat:    primary.Threat,
			}
		}
	}
	mover.ClearAvoidancePath()

	for i := 0; i <= maxAvoidanceIterations; i++ {
		offsets := []float64{0}
		if i > 0 {
			step := avoidanceAngleStep * float64(i)
			offsets = []float64{step, -step}
		}
		for _, angle := range offsets {
			cand := heading.Rotate(angle)
			if !directionClear(cand, risks) {
				continue
			}
			if i == 0 {
				return avoidanceResult{Vector: cand.Scale(weight)}
			}
			return avoidanceResult{
				Vector:    cand.Scale(weight),
				Target:    mover.Position.Add(cand.Scale(math.Max(primary.Distance, moverRadius*2))),
				Detouring: true,
				Threat:    primary.Threat,
			}
		}
	}

	away := primary.RelPos.Neg().Normalize()
	return avoidanceResult{
		Vector:    away.Scale(weight),
		Target:    mover.Position.Add(away.Scale(math.Max(primary.Distance, moverRadius*2))),
		Detouring: true,
		Threat:    primary.Threat,
	}
}

// activeDetour returns the next waypoint of mover's current detour when the
// unit it steers around is still alive in others and no other unit has
// become the nearest risk.
func activeDetour(mover *Unit, others []*Unit, risks []AvoidanceRisk) (Vec2, *Unit, bool) {
	if !mover.HasAvoidanceThreat || len(mover.AvoidancePath()) == 0 {
		return Vec2{}, nil, false
	}
	var threat *Unit
	for _, o := range others {
		if !o.Dead && o.Key() == mover.AvoidanceThreat {
			threat = o
			break
		}
	}
	if threat == nil {
		return Vec2{}, nil, false
	}
	if len(risks) > 0 && risks[0].Threat != threat {
		return Vec2{}, nil, false
	}
	wp, ok := mover.nextAvoidanceWaypoint()
	return wp, threat, ok
}

// segmentedDetour sidesteps first, then runs parallel to the heading until
// the risk is behind, then cuts back to the original line. Legs sit on the
// side away from the risk and keep its combined radius plus padding.
func segmentedDetour(mover *Unit, heading Vec2, risk AvoidanceRisk) []Vec2 {
	if avoidanceSegmentCount <= 0 {
		return nil
	}
	forward := heading
	if forward.LenSq() < 1e-4 {
		forward = mover.Forward
	}
	if forward.LenSq() < 1e-4 {
		forward = V(1, 0)
	}
	forward = forward.Normalize()

	lateral := forward.Perp()
	if lateral.Dot(risk.RelPos) > 0 {
		lateral = lateral.Neg()
	}

	sideDist := risk.CombinedRadius + avoidanceLateralPadding
	ahead := math.Max(risk.RelPos.Dot(forward), 0)
	if risk.Threat != nil {
		ahead = math.Max(ahead, risk.Threat.Position.Sub(mover.Position).Dot(forward))
	}
	parallelDist := math.Max(ahead+risk.CombinedRadius, math.Max(risk.Distance, mover.Radius*2)*avoidanceParallelMult)
	rejoinDist := sideDist + math.Max(avoidanceSegmentStart, mover.Radius)

	path := make([]Vec2, 0, avoidanceSegmentCount)
	cur := mover.Position
	for seg := range avoidanceSegmentCount {
		switch seg % 3 {
		case 0:
			cur = cur.Add(lateral.Scale(sideDist))
		case 1:
			cur = cur.Add(forward.Scale(parallelDist))
		default:
			cur = cur.Add(forward.Scale(rejoinDist)).Sub(lateral.Scale(sideDist))
		}
		path = append(path, cur)
	}
	return path
}

// directionClear reports whether a ray along dir stays outside every risk's
// combined radius over that risk's projection range.
func directionClear(dir Vec2, risks []AvoidanceRisk) bool {
	for _, r := range risks {
		proj := r.RelPos.Dot(dir)
		if proj < 0 || proj > r.Distance {
			continue
		}
		if r.RelPos.Sub(dir.Scale(proj)).Len() < r.CombinedRadius {
			return false
		}
	}
	return true
}
