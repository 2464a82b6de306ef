package sim

import (
	"math"
	"testing"
)

func mover(x, y, vx, vy float64) *Unit {
	u := newUnit(0, UnitSpec{Faction: Enemy, Position: V(x, y)})
	u.Velocity = V(vx, vy)
	return u
}

func TestTimeToCollision_HeadOn(t *testing.T) {
	a := mover(0, 0, 1, 0)
	b := mover(100, 0, -1, 0)
	tc, _, ok := timeToCollision(a, b)
	if !ok {
		t.Fatal("head-on pair should collide")
	}
	combined := 2 * UnitRadius * collisionRadiusScale
	want := (100 - combined) / 2
	if math.Abs(tc-want) > 1e-6 {
		t.Fatalf("expected t=%.3f, got %.3f", want, tc)
	}
}

func TestTimeToCollision_OverlapAndParallel(t *testing.T) {
	a := mover(0, 0, 0, 0)
	b := mover(10, 0, 0, 0)
	if tc, _, ok := timeToCollision(a, b); !ok || tc != 0 {
		t.Fatalf("overlapping pair should report t=0, got %.3f (%t)", tc, ok)
	}
	c := mover(0, 200, 1, 0)
	d := mover(0, 0, 1, 0)
	if _, _, ok := timeToCollision(c, d); ok {
		t.Fatal("parallel movers at constant separation never collide")
	}
	if _, _, ok := timeToCollision(a, a); ok {
		t.Fatal("a unit cannot collide with itself")
	}
}

func TestContactPoint_WeightedByRadius(t *testing.T) {
	p := contactPoint(V(0, 0), V(90, 0), 10, 20)
	if math.Abs(p.X-30) > 1e-9 || p.Y != 0 {
		t.Fatalf("expected (30,0), got (%.2f,%.2f)", p.X, p.Y)
	}
	if contactPoint(V(5, 5), V(5, 5), 10, 10) != V(5, 5) {
		t.Fatal("coincident centres should return the first position")
	}
}

func TestSeparationVector_PushesApart(t *testing.T) {
	self := mover(100, 100, 0, 0)
	left := mover(80, 100, 0, 0)
	far := mover(500, 100, 0, 0)
	sep := separationVector(self, []*Unit{self, left, far}, 80)
	if sep.X <= 0 || sep.Y != 0 {
		t.Fatalf("expected a push to the right, got (%.3f,%.3f)", sep.X, sep.Y)
	}
	left.Dead = true
	if !separationVector(self, []*Unit{left}, 80).IsZero() {
		t.Fatal("dead neighbours should not push")
	}
}

func TestPredictiveAvoidance_NoRisk(t *testing.T) {
	m := mover(100, 100, 4, 0)
	m.SetAvoidancePath([]Vec2{V(1, 1)})
	res := predictiveAvoidance(m, []*Unit{mover(100, 600, 0, 0)}, V(1, 0))
	if res.Detouring || !res.Vector.IsZero() {
		t.Fatal("clear path should produce no avoidance")
	}
	if len(m.AvoidancePath()) != 0 {
		t.Fatal("clear path should drop the previous detour")
	}
}

func TestPredictiveAvoidance_DetoursAwayFromRisk(t *testing.T) {
	m := mover(100, 100, 0, 0)
	obstacle := mover(140, 105, 0, 0) // just below the heading line
	res := predictiveAvoidance(m, []*Unit{obstacle}, V(1, 0))
	if !res.Detouring || res.Threat != obstacle {
		t.Fatal("stationary unit on the heading should trigger a detour")
	}
	path := m.AvoidancePath()
	if len(path) != avoidanceSegmentCount {
		t.Fatalf("expected %d detour waypoints, got %d", avoidanceSegmentCount, len(path))
	}
	if path[0].X != 100 || path[0].Y >= 100 {
		t.Fatalf("detour should start with a sidestep away from the obstacle, got (%.1f,%.1f)", path[0].X, path[0].Y)
	}
	if path[1].X <= obstacle.Position.X {
		t.Fatalf("parallel leg should end past the obstacle, got x=%.1f", path[1].X)
	}
	for i, p := range path {
		if p.Dist(obstacle.Position) < UnitRadius*2*collisionRadiusScale {
			t.Fatalf("detour waypoint %d overlaps the obstacle", i)
		}
	}
}

func TestPredictiveAvoidance_KeepsDetourForSameThreat(t *testing.T) {
	m := mover(100, 100, 0, 0)
	obstacle := mover(140, 105, 0, 0)
	obstacle.ID = 1
	predictiveAvoidance(m, []*Unit{obstacle}, V(1, 0))
	path := append([]Vec2(nil), m.AvoidancePath()...)
	m.HasAvoidanceThreat, m.AvoidanceThreat = true, obstacle.Key()

	// Standing on the first waypoint: the next call must advance, not rebuild.
	m.Position = path[0]
	res := predictiveAvoidance(m, []*Unit{obstacle}, V(1, 0))
	if !res.Detouring || res.Threat != obstacle {
		t.Fatal("detour should persist while its threat is alive")
	}
	if res.Target != path[1] {
		t.Fatalf("expected to steer at (%.1f,%.1f), got (%.1f,%.1f)", path[1].X, path[1].Y, res.Target.X, res.Target.Y)
	}
	if got := len(m.AvoidancePath()); got != len(path)-1 {
		t.Fatalf("expected %d remaining waypoints, got %d", len(path)-1, got)
	}

	obstacle.Dead = true
	if res := predictiveAvoidance(m, []*Unit{obstacle}, V(1, 0)); res.Detouring {
		t.Fatal("detour should end once its threat is gone")
	}
	if len(m.AvoidancePath()) != 0 {
		t.Fatal("a dead threat should drop the detour")
	}
}

func TestMoveUnit_HeadOnPairStaysApart(t *testing.T) {
	w := testWorld()
	w.pathfinder = &countingPathfinder{}
	a := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 400), CanTarget: TargetAir})
	b := addUnit(w, UnitSpec{Faction: Enemy, Position: V(700, 400), CanTarget: TargetAir})
	combined := (a.Radius + b.Radius) * collisionRadiusScale

	minDist := a.Position.Dist(b.Position)
	for f := 0; f < 250; f++ {
		w.Frame = f
		w.moveUnit(a, V(700, 400))
		w.moveUnit(b, V(100, 400))
		minDist = math.Min(minDist, a.Position.Dist(b.Position))
	}
	if minDist < combined {
		t.Fatalf("expected separation of at least %.2f, got %.2f", combined, minDist)
	}
	if a.Position.X < 600 || b.Position.X > 200 {
		t.Fatalf("expected both units past each other, got a.x=%.1f b.x=%.1f", a.Position.X, b.Position.X)
	}
}

func TestDirectionClear(t *testing.T) {
	risk := AvoidanceRisk{RelPos: V(50, 0), Distance: 50, CombinedRadius: 20}
	if directionClear(V(1, 0), []AvoidanceRisk{risk}) {
		t.Fatal("ray straight at the risk is not clear")
	}
	if !directionClear(V(0, 1), []AvoidanceRisk{risk}) {
		t.Fatal("perpendicular ray should be clear")
	}
	if !directionClear(V(-1, 0), []AvoidanceRisk{risk}) {
		t.Fatal("ray away from the risk should be clear")
	}
}

func TestAvoidanceCandidates_ExcludeSelfAndTarget(t *testing.T) {
	w := testWorld()
	u := addUnit(w, UnitSpec{Faction: Friendly, Position: V(100, 100)})
	ally := addUnit(w, UnitSpec{Faction: Friendly, Position: V(150, 100)})
	target := addUnit(w, UnitSpec{Faction: Enemy, Position: V(200, 100)})
	other := addUnit(w, UnitSpec{Faction: Enemy, Position: V(300, 100)})
	u.Target = target.Ref()

	got := w.avoidanceCandidates(u)
	if len(got) != 2 || got[0] != ally || got[1] != other {
		t.Fatalf("expected [ally other], got %d candidates", len(got))
	}
}
