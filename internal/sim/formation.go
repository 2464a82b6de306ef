package sim

import "math"

// FormationType identifies the shape of a squad formation.
type FormationType int

const (
	FormationSquad  FormationType = iota // fixed four-man block, wedge beyond
	FormationWedge                       // V-shape, leader at point
	FormationLine                        // side-by-side perpendicular to heading
	FormationColumn                      // single file behind leader
)

func (ft FormationType) String() string {
	switch ft {
	case FormationWedge:
		return "wedge"
	case FormationLine:
		return "line"
	case FormationColumn:
		return "column"
	default:
		return "squad"
	}
}

// ParseFormation accepts the names returned by FormationType.String.
func ParseFormation(s string) FormationType {
	for _, ft := range []FormationType{FormationWedge, FormationLine, FormationColumn} {
		if ft.String() == s {
			return ft
		}
	}
	return FormationSquad
}

// squadBlock is the (forward, right) layout of the first four members.
var squadBlock = [4][2]float64{{0, 0}, {0, 90}, {-80, -45}, {-80, 135}}

// formationOffsets returns the local (forward, right) offsets for each slot
// in a formation of count members. Slot 0 is the leader.
func formationOffsets(ft FormationType, count int) [][2]float64 {
	offsets := make([][2]float64, count)
	for i := 1; i < count; i++ {
		rank := float64((i + 1) / 2)
		side := rank * formationSpacing
		if i%2 == 1 {
			side = -side
		}
		switch ft {
		case FormationSquad:
			if i < len(squadBlock) {
				offsets[i] = squadBlock[i]
				continue
			}
			// Wedge wings trailing the block.
			k := float64((i-len(squadBlock))/2 + 1)
			wing := (k + 1) * formationSpacing
			if i%2 == 1 {
				wing = -wing + 45
			} else {
				wing += 45
			}
			offsets[i] = [2]float64{-80 - k*formationSpacing, wing}
		case FormationWedge:
			offsets[i] = [2]float64{-rank * formationSpacing, side}
		case FormationLine:
			offsets[i] = [2]float64{0, side}
		case FormationColumn:
			offsets[i] = [2]float64{-float64(i) * formationSpacing, 0}
		}
	}
	return offsets
}

// SlotWorld converts a local (forward, right) offset into a world position
// given the leader's position and heading in radians.
func SlotWorld(leader Vec2, heading, fwd, right float64) Vec2 {
	f := V(math.Cos(heading), math.Sin(heading))
	r := f.Perp()
	return leader.Add(f.Scale(fwd)).Add(r.Scale(right))
}
