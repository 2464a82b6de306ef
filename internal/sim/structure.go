package sim

import (
	"fmt"
	"math"
)

// StructureKind distinguishes the two tower types.
type StructureKind int

const (
	Princess StructureKind = iota
	King
)

func (k StructureKind) String() string {
	if k == King {
		return "king"
	}
	return "princess"
}

// ParseStructureKind accepts "princess" or "king".
func ParseStructureKind(s string) (StructureKind, error) {
	switch s {
	case "princess", "Princess":
		return Princess, nil
	case "king", "King":
		return King, nil
	}
	return 0, fmt.Errorf("unknown structure kind %q", s)
}

// StructureStats is the per-kind base profile.
type StructureStats struct {
	HP             int
	Damage         int
	AttacksPerSec  float64
	AttackRange    float64
	Radius         float64
	StartsActive   bool
	CanTarget      TargetMask
	CrownsOnDefeat int
}

// Base tower profiles.
var (
	PrincessStats = StructureStats{HP: 3052, Damage: 109, AttacksPerSec: 1.25, AttackRange: 350, Radius: 100, StartsActive: true, CanTarget: TargetGroundAndAir, CrownsOnDefeat: 1}
	KingStats     = StructureStats{HP: 4824, Damage: 109, AttacksPerSec: 1.0, AttackRange: 350, Radius: 150, StartsActive: false, CanTarget: TargetGroundAndAir, CrownsOnDefeat: 3}
)

// StatsFor returns the base profile for kind.
func StatsFor(kind StructureKind) StructureStats {
	if kind == King {
		return KingStats
	}
	return PrincessStats
}

// Structure is a static tower. Inactive structures neither attack nor can be
// attacked.
type Structure struct {
	ID             int
	Faction        Faction
	Kind           StructureKind
	Position       Vec2
	Radius         float64
	AttackRange    float64
	HP             int
	MaxHP          int
	Damage         int
	AttacksPerSec  float64
	AttackCooldown float64 // seconds
	Active         bool
	CanTarget      TargetMask
	Target         int // unit id, -1 when none
	Slots          SlotRing
}

// NewStructure builds a structure from its kind's base profile.
func NewStructure(id int, faction Faction, kind StructureKind, pos Vec2) *Structure {
	st := StatsFor(kind)
	return &Structure{
		ID:            id,
		Faction:       faction,
		Kind:          kind,
		Position:      pos,
		Radius:        st.Radius,
		AttackRange:   st.AttackRange,
		HP:            st.HP,
		MaxHP:         st.HP,
		Damage:        st.Damage,
		AttacksPerSec: st.AttacksPerSec,
		Active:        st.StartsActive,
		CanTarget:     st.CanTarget,
		Target:        -1,
	}
}

// Destroyed reports HP at or below zero.
func (s *Structure) Destroyed() bool { return s.HP <= 0 }

// Ref returns a TargetRef pointing at s.
func (s *Structure) Ref() TargetRef {
	return TargetRef{Kind: TargetStructure, Faction: s.Faction, ID: s.ID}
}

// Label is the short display name, e.g. "FK1" or "EP3".
func (s *Structure) Label() string {
	f := "F"
	if s.Faction == Enemy {
		f = "E"
	}
	k := "P"
	if s.Kind == King {
		k = "K"
	}
	return fmt.Sprintf("%s%s%d", f, k, s.ID)
}

func (s *Structure) canAttack(u *Unit) bool {
	if u == nil || u.Dead {
		return false
	}
	layer := TargetGround
	if u.Layer == LayerAir {
		layer = TargetAir
	}
	if s.CanTarget&layer == 0 {
		return false
	}
	return s.Position.Dist(u.Position)-u.Radius <= s.AttackRange
}

// takeDamage clamps at zero and returns whether this hit destroyed s.
func (s *Structure) takeDamage(amount int) bool {
	if amount <= 0 || s.Destroyed() {
		return false
	}
	s.HP = max(0, s.HP-amount)
	return s.Destroyed()
}

// DefaultStructures is the standard six-tower arena layout.
func DefaultStructures() []*Structure {
	return []*Structure{
		NewStructure(1, Friendly, King, V(1600, 700)),
		NewStructure(2, Friendly, Princess, V(600, 1200)),
		NewStructure(3, Friendly, Princess, V(2600, 1200)),
		NewStructure(4, Enemy, King, V(1600, 4400)),
		NewStructure(5, Enemy, Princess, V(600, 3900)),
		NewStructure(6, Enemy, Princess, V(2600, 3900)),
	}
}

// structurePass lets every active structure pick the nearest opponent in
// range and collect a tower hit when its cooldown has expired.
func (w *World) structurePass() {
	for _, s := range w.structures {
		if s.Destroyed() || !s.Active {
			continue
		}
		s.AttackCooldown = math.Max(0, s.AttackCooldown-FrameSeconds)

		if s.Target >= 0 {
			if t := w.Unit(s.Faction.Opponent(), s.Target); t == nil || !s.canAttack(t) {
				s.Target = -1
			}
		}
		if s.Target < 0 {
			best := math.MaxFloat64
			for _, u := range w.Living(s.Faction.Opponent()) {
				if !s.canAttack(u) {
					continue
				}
				if d := s.Position.Dist(u.Position); d < best {
					best = d
					s.Target = u.ID
				}
			}
		}
		if s.Target < 0 || s.AttackCooldown > 0 {
			continue
		}
		w.events.StructureDamages = append(w.events.StructureDamages, StructureDamage{
			Source: s.ID, SourceFaction: s.Faction, Target: s.Target, Amount: s.Damage,
		})
		if s.AttacksPerSec > 0 {
			s.AttackCooldown = 1 / s.AttacksPerSec
		}
	}
}

// GameResult is the outcome of a structure match.
type GameResult int

const (
	InProgress GameResult = iota
	FriendlyWin
	EnemyWin
	Draw
)

func (r GameResult) String() string {
	switch r {
	case FriendlyWin:
		return "friendly_win"
	case EnemyWin:
		return "enemy_win"
	case Draw:
		return "draw"
	default:
		return "in_progress"
	}
}

// WinCondition says why a match ended.
type WinCondition int

const (
	WinNone WinCondition = iota
	WinKingDestroyed
	WinMoreCrowns
	WinTieBreaker
	WinTowerDamage
)

func (c WinCondition) String() string {
	switch c {
	case WinKingDestroyed:
		return "king_destroyed"
	case WinMoreCrowns:
		return "more_crowns"
	case WinTieBreaker:
		return "tie_breaker"
	case WinTowerDamage:
		return "tower_damage"
	default:
		return "none"
	}
}

// Match timing in seconds.
const (
	RegularTime = 180.0
	MaxGameTime = 300.0
	maxCrowns   = 3
)

// Session tracks match time, crowns and the result.
type Session struct {
	ElapsedTime    float64      `json:"elapsedTime" msgpack:"elapsed"`
	FriendlyCrowns int          `json:"friendlyCrowns" msgpack:"fc"`
	EnemyCrowns    int          `json:"enemyCrowns" msgpack:"ec"`
	Overtime       bool         `json:"overtime" msgpack:"ot"`
	Result         GameResult   `json:"result" msgpack:"result"`
	WinCondition   WinCondition `json:"winCondition" msgpack:"wc"`
}

// crownsAgainst counts crowns earned by destroying faction's structures.
func crownsAgainst(structures []*Structure, faction Faction) int {
	n := 0
	for _, s := range structures {
		if s.Faction == faction && s.Destroyed() {
			n += StatsFor(s.Kind).CrownsOnDefeat
		}
	}
	return min(n, maxCrowns)
}

func kingOf(structures []*Structure, faction Faction) *Structure {
	for _, s := range structures {
		if s.Faction == faction && s.Kind == King {
			return s
		}
	}
	return nil
}

func hpRatio(structures []*Structure, faction Faction) float64 {
	hp, maxHP := 0, 0
	for _, s := range structures {
		if s.Faction == faction {
			hp += s.HP
			maxHP += s.MaxHP
		}
	}
	if maxHP == 0 {
		return 0
	}
	return float64(hp) / float64(maxHP)
}

// activateKings wakes a king once it has taken damage or one of its
// princesses has fallen.
func activateKings(structures []*Structure) []*Structure {
	var woke []*Structure
	for _, k := range structures {
		if k.Kind != King || k.Active || k.Destroyed() {
			continue
		}
		wake := k.HP < k.MaxHP
		for _, p := range structures {
			if p.Faction == k.Faction && p.Kind == Princess && p.Destroyed() {
				wake = true
			}
		}
		if wake {
			k.Active = true
			woke = append(woke, k)
		}
	}
	return woke
}

// update advances the clock by one tick and evaluates the result.
func (s *Session) update(structures []*Structure) {
	if s.Result != InProgress {
		return
	}
	s.ElapsedTime += FrameSeconds
	s.FriendlyCrowns = crownsAgainst(structures, Enemy)
	s.EnemyCrowns = crownsAgainst(structures, Friendly)

	fk, ek := kingOf(structures, Friendly), kingOf(structures, Enemy)
	fDown := fk != nil && fk.Destroyed()
	eDown := ek != nil && ek.Destroyed()
	if fDown || eDown {
		switch {
		case fDown && eDown:
			s.Result = Draw
		case eDown:
			s.Result = FriendlyWin
		default:
			s.Result = EnemyWin
		}
		s.WinCondition = WinKingDestroyed
		return
	}

	if s.ElapsedTime < RegularTime {
		return
	}
	if !s.Overtime {
		if s.FriendlyCrowns != s.EnemyCrowns {
			s.byCrowns(WinMoreCrowns)
			return
		}
		s.Overtime = true
		return
	}
	if s.FriendlyCrowns != s.EnemyCrowns {
		s.byCrowns(WinTieBreaker)
		return
	}
	if s.ElapsedTime < MaxGameTime {
		return
	}

	fr, er := hpRatio(structures, Friendly), hpRatio(structures, Enemy)
	s.WinCondition = WinTowerDamage
	switch {
	case math.Abs(fr-er) < 1e-4:
		s.Result = Draw
	case fr > er:
		s.Result = FriendlyWin
	default:
		s.Result = EnemyWin
	}
}

func (s *Session) byCrowns(c WinCondition) {
	s.Result = EnemyWin
	if s.FriendlyCrowns > s.EnemyCrowns {
		s.Result = FriendlyWin
	}
	s.WinCondition = c
}
