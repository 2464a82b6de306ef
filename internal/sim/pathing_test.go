package sim

import (
	"math"
	"testing"
)

type rectProvider []Rect

func (r rectProvider) Rects() []Rect   { return r }
func (rectProvider) Circles() []Circle { return nil }

func TestNavGrid_UnblockedByDefault(t *testing.T) {
	ng := NewNavGrid(640, 480, 20)
	cols, rows := ng.Size()
	if cols != 32 || rows != 24 {
		t.Fatalf("expected 32x24 cells, got %dx%d", cols, rows)
	}
	if ng.IsBlocked(0, 0) {
		t.Fatal("empty grid should have no blocked cells")
	}
	if ng.IsBlocked(cols-1, rows-1) {
		t.Fatal("corner cell should not be blocked")
	}
}

func TestNavGrid_RectBlocksCells(t *testing.T) {
	ng := NewNavGrid(640, 480, 20, rectProvider{{Min: V(100, 100), Max: V(200, 200)}})
	if !ng.IsBlocked(5, 5) {
		t.Fatal("cell inside rect should be blocked")
	}
	if !ng.IsBlocked(9, 9) {
		t.Fatal("cell at far corner of rect should be blocked")
	}
	if ng.IsBlocked(4, 4) {
		t.Fatal("cell whose centre is outside the rect should stay open")
	}
	if !ng.IsStatic(5, 5) {
		t.Fatal("rect cells should be static")
	}
}

func TestNavGrid_CircleBlocksCells(t *testing.T) {
	ng := NewNavGrid(640, 480, 20, StructureObstacles{Structures: []*Structure{
		{Position: V(300, 300), Radius: 40},
	}})
	// radius 40 + 10 padding
	if !ng.IsBlocked(15, 15) {
		t.Fatal("cell at the circle centre should be blocked")
	}
	if ng.IsBlocked(12, 15) {
		t.Fatal("cell just outside the padded circle should be open")
	}
}

func TestNavGrid_OOB_IsBlocked(t *testing.T) {
	ng := NewNavGrid(640, 480, 20)
	cols, _ := ng.Size()
	if !ng.IsBlocked(-1, 0) || !ng.IsBlocked(0, -1) || !ng.IsBlocked(cols, 0) {
		t.Fatal("out-of-bounds cell should be blocked")
	}
}

func TestNavGrid_CellConversions(t *testing.T) {
	ng := NewNavGrid(640, 480, 20)
	cx, cy := ng.WorldToCell(V(45, 61))
	if cx != 2 || cy != 3 {
		t.Fatalf("expected (2,3) got (%d,%d)", cx, cy)
	}
	c := ng.CellToWorld(2, 3)
	if c != V(50, 70) {
		t.Fatalf("expected centre (50,70), got (%.0f,%.0f)", c.X, c.Y)
	}
}

func TestNavGrid_FindCells_Straight(t *testing.T) {
	ng := NewNavGrid(640, 480, 20)
	path := ng.FindCells(V(10, 10), V(610, 10))
	if len(path) != 30 {
		t.Fatalf("expected 30 cells after the start, got %d", len(path))
	}
	if last := path[len(path)-1]; last != V(610, 10) {
		t.Fatalf("expected last cell centre (610,10), got (%.0f,%.0f)", last.X, last.Y)
	}
	if path[0] == V(10, 10) {
		t.Fatal("start cell should be dropped")
	}
}

func TestNavGrid_FindCells_AroundWall(t *testing.T) {
	ng := NewNavGrid(640, 480, 20, rectProvider{{Min: V(300, 0), Max: V(340, 400)}})
	path := ng.FindCells(V(100, 100), V(500, 100))
	if path == nil {
		t.Fatal("expected a path around the wall")
	}
	for i, p := range path {
		if !ng.Walkable(p) {
			t.Fatalf("waypoint %d (%.0f,%.0f) is inside the wall", i, p.X, p.Y)
		}
	}
	dipped := false
	for _, p := range path {
		if p.Y > 400 {
			dipped = true
		}
	}
	if !dipped {
		t.Fatal("path should route below the wall")
	}
}

func TestNavGrid_FindCells_EdgeCases(t *testing.T) {
	ng := NewNavGrid(640, 480, 20, rectProvider{{Min: V(300, 300), Max: V(340, 340)}})
	if p := ng.FindCells(V(10, 10), V(320, 320)); p != nil {
		t.Fatalf("blocked goal should give nil, got %d cells", len(p))
	}
	p := ng.FindCells(V(10, 10), V(15, 15))
	if p == nil || len(p) != 0 {
		t.Fatalf("same cell should give an empty non-nil path, got %v", p)
	}
	// a blocked start cell (unit standing in a crowd) is still allowed
	ng.dynamic[0] = true
	if p := ng.FindCells(V(10, 10), V(110, 10)); p == nil {
		t.Fatal("blocked start cell should not prevent planning")
	}
}

func TestNavGrid_NoCornerCutting(t *testing.T) {
	ng := NewNavGrid(100, 100, 20)
	ng.static[0*5+1] = true // (1,0)
	ng.static[1*5+0] = true // (0,1)
	if p := ng.FindCells(V(10, 10), V(30, 30)); p != nil {
		t.Fatalf("diagonal through two blocked corners should be refused, got %v", p)
	}
}

func TestNavGrid_NearestWalkable(t *testing.T) {
	ng := NewNavGrid(640, 480, 20, rectProvider{{Min: V(300, 300), Max: V(340, 340)}})
	p, ok := ng.NearestWalkable(V(320, 320), 4)
	if !ok {
		t.Fatal("expected a walkable cell nearby")
	}
	if !ng.Walkable(p) {
		t.Fatalf("nearest walkable (%.0f,%.0f) is blocked", p.X, p.Y)
	}
	open := V(50, 50)
	if q, _ := ng.NearestWalkable(open, 4); q != open {
		t.Fatal("walkable point should be returned unchanged")
	}
}

func TestPathSmoother_SkipsOnOpenGround(t *testing.T) {
	ng := NewNavGrid(640, 480, 20)
	path := ng.FindCells(V(10, 10), V(610, 10))
	out := PathSmoother{Grid: ng}.Smooth(V(10, 10), path)
	if len(out) != 3 {
		t.Fatalf("expected 3 waypoints with max skip 10, got %d", len(out))
	}
	if out[len(out)-1] != path[len(path)-1] {
		t.Fatal("smoothing must keep the final waypoint")
	}
}

func TestPathSmoother_LineOfSightBlocked(t *testing.T) {
	ng := NewNavGrid(640, 480, 20, rectProvider{{Min: V(300, 0), Max: V(340, 480)}})
	ps := PathSmoother{Grid: ng}
	if ps.HasLineOfSight(V(100, 100), V(500, 100)) {
		t.Fatal("wall should block line of sight")
	}
	if !ps.HasLineOfSight(V(100, 100), V(200, 300)) {
		t.Fatal("open ground should have line of sight")
	}
}

func TestGridPathfinder_SnapsLastWaypoint(t *testing.T) {
	gp := &GridPathfinder{Grid: NewNavGrid(640, 480, 20), Smooth: true}
	to := V(605, 17)
	path := gp.FindPath(V(10, 10), to)
	if len(path) == 0 {
		t.Fatal("expected a path")
	}
	if path[len(path)-1] != to {
		t.Fatalf("expected last waypoint snapped to (605,17), got (%.1f,%.1f)", path[len(path)-1].X, path[len(path)-1].Y)
	}
	same := gp.FindPath(V(10, 10), V(12, 12))
	if len(same) != 1 || same[0] != V(12, 12) {
		t.Fatalf("same-cell request should give [to], got %v", same)
	}
	var nilPF *GridPathfinder
	if nilPF.FindPath(V(0, 0), V(1, 1)) != nil {
		t.Fatal("nil pathfinder should give no path")
	}
}

func groundAt(x, y float64) *Unit {
	return newUnit(0, UnitSpec{Position: V(x, y)})
}

func TestDynamicObstacles_DensityThreshold(t *testing.T) {
	ng := NewNavGrid(640, 480, 20)
	d := NewDynamicObstacles(ng)

	crowd := []*Unit{groundAt(105, 105), groundAt(110, 110), groundAt(115, 115)}
	pair := []*Unit{groundAt(305, 305), groundAt(310, 310)}
	flyer := newUnit(9, UnitSpec{Layer: LayerAir, Position: V(305, 305)})

	d.Update(append(append(crowd, pair...), flyer))
	if !ng.IsBlocked(5, 5) {
		t.Fatal("three ground units in a cell should block it")
	}
	if ng.IsBlocked(15, 15) {
		t.Fatal("two ground units plus an air unit should not block a cell")
	}
	if ng.IsStatic(5, 5) {
		t.Fatal("dynamic blocking must not touch the static layer")
	}
	cells := d.Cells()
	if len(cells) != 1 || cells[0] != [2]int{5, 5} {
		t.Fatalf("expected cells [[5 5]], got %v", cells)
	}
}

func TestDynamicObstacles_Interval(t *testing.T) {
	d := NewDynamicObstacles(NewNavGrid(640, 480, 20))
	if !d.MaybeUpdate(0, nil) {
		t.Fatal("first update should always run")
	}
	if d.MaybeUpdate(5, nil) {
		t.Fatal("update within the interval should be skipped")
	}
	if !d.MaybeUpdate(15, nil) {
		t.Fatal("update after the interval should run")
	}
	if d.LastUpdate() != 15 {
		t.Fatalf("expected last update 15, got %d", d.LastUpdate())
	}
}

func TestDynamicObstacles_Restore(t *testing.T) {
	ng := NewNavGrid(640, 480, 20, rectProvider{{Min: V(0, 0), Max: V(20, 20)}})
	d := NewDynamicObstacles(ng)
	d.Restore([][2]int{{0, 0}, {3, 4}, {99, 99}}, 30)
	if !ng.IsBlocked(3, 4) {
		t.Fatal("restored cell should be blocked")
	}
	if got := d.Cells(); len(got) != 1 {
		t.Fatalf("static and out-of-range cells must be ignored, got %v", got)
	}
	if d.LastUpdate() != 30 {
		t.Fatalf("expected last update 30, got %d", d.LastUpdate())
	}
}

func TestMapTerrain_RoutesToBridge(t *testing.T) {
	grid := NewNavGrid(DefaultWorldWidth, DefaultWorldHeight, DefaultCellSize, RiverObstacles{Width: DefaultWorldWidth})
	terr := &MapTerrain{Width: DefaultWorldWidth, Height: DefaultWorldHeight, River: true, Grid: grid}

	u := groundAt(700, 1500)
	got := terr.AdjustDestination(u, V(700, 3500))
	want := V(600, (RiverYMin+RiverYMax)/2)
	if got != want {
		t.Fatalf("expected left bridge (%.0f,%.0f), got (%.0f,%.0f)", want.X, want.Y, got.X, got.Y)
	}

	flyer := newUnit(1, UnitSpec{Layer: LayerAir, Position: V(700, 1500)})
	if got := terr.AdjustDestination(flyer, V(700, 3500)); got != V(700, 3500) {
		t.Fatal("air units should ignore the river")
	}

	inRiver := terr.AdjustDestination(groundAt(1600, 2000), V(1600, 2550))
	if !grid.Walkable(inRiver) {
		t.Fatalf("destination in the river should be moved to walkable ground, got (%.0f,%.0f)", inRiver.X, inRiver.Y)
	}
	if math.Abs(inRiver.X-1600) > walkableRingSpan*DefaultCellSize {
		t.Fatal("adjusted destination drifted too far")
	}
}
