package sim

// Terrain shifts a desired destination onto ground the unit can reach.
type Terrain interface {
	AdjustDestination(u *Unit, dest Vec2) Vec2
}

// River layout of the arena map.
const (
	RiverYMin        = 2400.0
	RiverYMax        = 2700.0
	LeftBridgeXMin   = 400.0
	LeftBridgeXMax   = 800.0
	RightBridgeXMin  = 2400.0
	RightBridgeXMax  = 2800.0
	walkableRingSpan = 12 // cells searched around a blocked destination
)

// RiverObstacles blocks the river everywhere except the two bridges.
type RiverObstacles struct {
	Width float64
}

func (r RiverObstacles) Rects() []Rect {
	m := riverObstacleMargin
	return []Rect{
		{Min: V(0, RiverYMin+m), Max: V(LeftBridgeXMin-m, RiverYMax-m)},
		{Min: V(LeftBridgeXMax+m, RiverYMin+m), Max: V(RightBridgeXMin-m, RiverYMax-m)},
		{Min: V(RightBridgeXMax+m, RiverYMin+m), Max: V(r.Width, RiverYMax-m)},
	}
}

func (RiverObstacles) Circles() []Circle { return nil }

// StructureObstacles blocks a padded circle around every structure.
// Destroyed structures stay as rubble.
type StructureObstacles struct {
	Structures []*Structure
}

func (StructureObstacles) Rects() []Rect { return nil }

func (s StructureObstacles) Circles() []Circle {
	out := make([]Circle, 0, len(s.Structures))
	for _, st := range s.Structures {
		out = append(out, Circle{Center: st.Position, Radius: st.Radius + structureCollisionPad})
	}
	return out
}

// MapTerrain clamps destinations to the world, routes ground units that
// would cross the river to the nearest bridge, and nudges blocked
// destinations onto the nearest walkable cell of Grid.
type MapTerrain struct {
	Width, Height float64
	River         bool
	Grid          *NavGrid
}

// AdjustDestination implements Terrain.
func (t *MapTerrain) AdjustDestination(u *Unit, dest Vec2) Vec2 {
	dest = dest.ClampTo(t.Width, t.Height)
	if u.Layer == LayerAir {
		return dest
	}
	if t.River && crossesRiver(u.Position, dest) && !onBridge(u.Position) && !onBridge(dest) {
		dest = nearestBridge(u.Position)
	}
	if t.Grid != nil {
		if p, ok := t.Grid.NearestWalkable(dest, walkableRingSpan); ok {
			dest = p
		}
	}
	return dest
}

func crossesRiver(from, to Vec2) bool {
	return (from.Y < RiverYMin && to.Y > RiverYMax) || (from.Y > RiverYMax && to.Y < RiverYMin)
}

func onBridge(p Vec2) bool {
	if p.Y < RiverYMin || p.Y > RiverYMax {
		return false
	}
	return (p.X >= LeftBridgeXMin && p.X <= LeftBridgeXMax) || (p.X >= RightBridgeXMin && p.X <= RightBridgeXMax)
}

func nearestBridge(p Vec2) Vec2 {
	y := (RiverYMin + RiverYMax) / 2
	left := V((LeftBridgeXMin+LeftBridgeXMax)/2, y)
	right := V((RightBridgeXMin+RightBridgeXMax)/2, y)
	if p.Dist(left) <= p.Dist(right) {
		return left
	}
	return right
}
