package sim

import (
	"math"
	"testing"
)

func TestFormationOffsets_LeaderAlwaysZero(t *testing.T) {
	for _, ft := range []FormationType{FormationSquad, FormationWedge, FormationLine, FormationColumn} {
		offsets := formationOffsets(ft, 6)
		if offsets[0][0] != 0 || offsets[0][1] != 0 {
			t.Fatalf("formation %s: leader slot 0 should be (0,0), got (%.1f,%.1f)",
				ft, offsets[0][0], offsets[0][1])
		}
	}
}

func TestFormationOffsets_Count(t *testing.T) {
	for _, count := range []int{0, 1, 3, 6} {
		offsets := formationOffsets(FormationWedge, count)
		if len(offsets) != count {
			t.Fatalf("expected %d offsets, got %d", count, len(offsets))
		}
	}
}

func TestFormationOffsets_SquadBlock(t *testing.T) {
	offsets := formationOffsets(FormationSquad, 4)
	want := [][2]float64{{0, 0}, {0, 90}, {-80, -45}, {-80, 135}}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("squad slot %d: expected %v, got %v", i, want[i], offsets[i])
		}
	}
}

func TestFormationOffsets_SquadWingsTrailBlock(t *testing.T) {
	offsets := formationOffsets(FormationSquad, 8)
	for i := 4; i < 8; i++ {
		if offsets[i][0] >= -80 {
			t.Fatalf("squad wing slot %d should trail the block, got forward %.1f", i, offsets[i][0])
		}
	}
	if offsets[4][1]*offsets[5][1] >= 0 {
		t.Fatalf("wing slots 4 and 5 should sit on opposite sides, got %.1f and %.1f", offsets[4][1], offsets[5][1])
	}
}

func TestFormationOffsets_Column_SingleFile(t *testing.T) {
	offsets := formationOffsets(FormationColumn, 4)
	for i := 1; i < 4; i++ {
		if offsets[i][1] != 0 {
			t.Fatalf("column slot %d: right offset should be 0, got %.1f", i, offsets[i][1])
		}
		if offsets[i][0] >= 0 {
			t.Fatalf("column slot %d: forward offset should be negative (behind), got %.1f", i, offsets[i][0])
		}
	}
}

func TestFormationOffsets_Line_SameForwardDepth(t *testing.T) {
	offsets := formationOffsets(FormationLine, 5)
	for i := 1; i < 5; i++ {
		if offsets[i][0] != 0 {
			t.Fatalf("line slot %d: forward offset should be 0, got %.1f", i, offsets[i][0])
		}
	}
}

func TestSlotWorld_FacingEast(t *testing.T) {
	p := SlotWorld(V(100, 100), 0, -80, 90)
	if math.Abs(p.X-20) > 1e-9 || math.Abs(p.Y-190) > 1e-9 {
		t.Fatalf("expected (20,190), got (%.2f,%.2f)", p.X, p.Y)
	}
}

func TestSlotWorld_FacingSouth(t *testing.T) {
	// heading +y: forward is +y, right is -x
	p := SlotWorld(V(100, 100), math.Pi/2, 50, 30)
	if math.Abs(p.X-70) > 1e-9 || math.Abs(p.Y-150) > 1e-9 {
		t.Fatalf("expected (70,150), got (%.2f,%.2f)", p.X, p.Y)
	}
}

func TestParseFormation(t *testing.T) {
	for _, ft := range []FormationType{FormationSquad, FormationWedge, FormationLine, FormationColumn} {
		if got := ParseFormation(ft.String()); got != ft {
			t.Fatalf("expected %s, got %s", ft, got)
		}
	}
	if ParseFormation("blob") != FormationSquad {
		t.Fatal("unknown names should fall back to the squad block")
	}
}
