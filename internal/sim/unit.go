package sim

import (
	"fmt"
	"math"
)

// Faction identifies which side a unit or structure fights for.
type Faction int

const (
	Friendly Faction = iota
	Enemy
)

func (f Faction) String() string {
	if f == Friendly {
		return "friendly"
	}
	return "enemy"
}

// Opponent returns the other faction.
func (f Faction) Opponent() Faction {
	if f == Friendly {
		return Enemy
	}
	return Friendly
}

// ParseFaction accepts "friendly" or "enemy".
func ParseFaction(s string) (Faction, error) {
	switch s {
	case "friendly", "Friendly", "f", "F":
		return Friendly, nil
	case "enemy", "Enemy", "e", "E":
		return Enemy, nil
	}
	return 0, fmt.Errorf("unknown faction %q", s)
}

// Role decides the attack range multiplier.
type Role int

const (
	RoleMelee Role = iota
	RoleRanged
)

func (r Role) String() string {
	if r == RoleRanged {
		return "ranged"
	}
	return "melee"
}

// ParseRole accepts "melee" or "ranged".
func ParseRole(s string) (Role, error) {
	switch s {
	case "", "melee", "Melee":
		return RoleMelee, nil
	case "ranged", "Ranged":
		return RoleRanged, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Layer is the movement layer a unit occupies.
type Layer int

const (
	LayerGround Layer = iota
	LayerAir
)

func (l Layer) String() string {
	if l == LayerAir {
		return "air"
	}
	return "ground"
}

// TargetMask is the set of layers and entity types a unit may attack.
type TargetMask uint8

const (
	TargetGround   TargetMask = 1 << iota // ground units
	TargetAir                             // air units
	TargetBuilding                        // structures

	TargetGroundAndAir = TargetGround | TargetAir
	TargetAll          = TargetGround | TargetAir | TargetBuilding
)

// TargetPriority changes how a unit weighs structures against units.
type TargetPriority int

const (
	PriorityNearest   TargetPriority = iota
	PriorityBuildings                // ignore units, go for structures
)

// TargetKind says which arena a TargetRef points into.
type TargetKind uint8

const (
	TargetNone TargetKind = iota
	TargetUnit
	TargetStructure
)

// TargetRef is a weak reference to a unit or structure by faction and id.
type TargetRef struct {
	Kind    TargetKind `json:"kind" msgpack:"k"`
	Faction Faction    `json:"faction" msgpack:"f"`
	ID      int        `json:"id" msgpack:"i"`
}

// IsNone reports whether the reference is empty.
func (r TargetRef) IsNone() bool { return r.Kind == TargetNone }

// UnitKey addresses a unit in the arena.
type UnitKey struct {
	Faction Faction `json:"faction" msgpack:"f"`
	ID      int     `json:"id" msgpack:"i"`
}

// noSlot marks an unclaimed attack slot index.
const noSlot = -1

// Unit is one mobile combatant. Units are mutated only by their own
// faction's coordinator pass; other factions read them and write only to
// their attack-slot ring.
type Unit struct {
	ID       int
	Faction  Faction
	Kind     string // catalog name e.g. "knight", "melee"
	Role     Role
	Layer    Layer
	Priority TargetPriority

	// Kinematics.
	Position  Vec2
	Velocity  Vec2
	Forward   Vec2 // unit vector
	Radius    float64
	Speed     float64
	TurnSpeed float64 // max radians per tick

	// Combat.
	HP             int
	MaxHP          int
	ShieldHP       int
	MaxShieldHP    int
	Dead           bool
	Damage         int
	AttackRange    float64
	AttackCooldown int // ticks until the next attack is allowed
	CanTarget      TargetMask
	Abilities      []Ability
	Charge         *ChargeState // non-nil only with a ChargeAttack ability

	// Targeting.
	Target                TargetRef
	TakenSlot             int // index on Target's ring, -1 when none
	FramesSinceTargetEval int
	FramesSinceSlotEval   int
	Slots                 SlotRing // attackers around this unit

	// Movement.
	Destination     Vec2
	movementPath    []Vec2
	movementCursor  int
	avoidancePath   []Vec2
	avoidanceCursor int

	// Avoidance diagnostics.
	HasAvoidanceTarget bool
	AvoidanceTarget    Vec2
	AvoidanceThreat    UnitKey
	HasAvoidanceThreat bool

	// Replan progress tracking.
	FramesSinceProgress  int
	FramesSinceAvoidance int
	LastReplanFrame      int
	PreviousPosition     Vec2
}

// UnitSpec describes a unit to create. Zero fields take faction defaults.
type UnitSpec struct {
	Kind      string
	Faction   Faction
	Role      Role
	Layer     Layer
	Priority  TargetPriority
	Position  Vec2
	Radius    float64
	Speed     float64
	TurnSpeed float64
	HP        int
	Damage    int
	CanTarget TargetMask
	Abilities []Ability
}

// newUnit builds a unit from spec, filling defaults the way the engine's
// SpawnUnit command does.
func newUnit(id int, spec UnitSpec) *Unit {
	if spec.Radius <= 0 {
		spec.Radius = UnitRadius
	}
	if spec.Speed <= 0 {
		spec.Speed = EnemySpeed
		if spec.Faction == Friendly {
			spec.Speed = FriendlySpeed
		}
	}
	if spec.TurnSpeed <= 0 {
		spec.TurnSpeed = EnemyTurnSpeed
		if spec.Faction == Friendly {
			spec.TurnSpeed = FriendlyTurnSpeed
		}
	}
	if spec.HP <= 0 {
		spec.HP = EnemyHP
		if spec.Faction == Friendly {
			spec.HP = FriendlyHP
		}
	}
	if spec.Damage <= 0 {
		spec.Damage = DefaultDamage
	}
	if spec.CanTarget == 0 {
		spec.CanTarget = TargetGround
	}
	if spec.Kind == "" {
		spec.Kind = spec.Role.String()
	}

	mult := MeleeRangeMult
	if spec.Role == RoleRanged {
		mult = RangedRangeMult
	}

	u := &Unit{
		ID:              id,
		Faction:         spec.Faction,
		Kind:            spec.Kind,
		Role:            spec.Role,
		Layer:           spec.Layer,
		Priority:        spec.Priority,
		Position:        spec.Position,
		Forward:         V(1, 0),
		Radius:          spec.Radius,
		Speed:           spec.Speed,
		TurnSpeed:       spec.TurnSpeed,
		HP:              spec.HP,
		MaxHP:           spec.HP,
		Damage:          spec.Damage,
		AttackRange:     spec.Radius * mult,
		CanTarget:       spec.CanTarget,
		TakenSlot:       noSlot,
		Destination:     spec.Position,
		LastReplanFrame: -ReplanCooldownFrames,
	}
	u.PreviousPosition = u.Position
	u.setAbilities(spec.Abilities)
	return u
}

// setAbilities installs the ability list and the sub-state it implies.
func (u *Unit) setAbilities(abilities []Ability) {
	u.Abilities = append([]Ability(nil), abilities...)
	u.Charge = nil
	u.MaxShieldHP = 0
	for _, a := range u.Abilities {
		switch ab := a.(type) {
		case Shield:
			u.MaxShieldHP = ab.MaxShieldHP
			u.ShieldHP = ab.MaxShieldHP
		case ChargeAttack:
			u.Charge = &ChargeState{}
		}
	}
}

// Key returns the unit's arena address.
func (u *Unit) Key() UnitKey { return UnitKey{Faction: u.Faction, ID: u.ID} }

// Ref returns a TargetRef pointing at u.
func (u *Unit) Ref() TargetRef { return TargetRef{Kind: TargetUnit, Faction: u.Faction, ID: u.ID} }

// Label is the short display name, e.g. "F3" or "E12".
func (u *Unit) Label() string {
	if u.Faction == Friendly {
		return fmt.Sprintf("F%d", u.ID)
	}
	return fmt.Sprintf("E%d", u.ID)
}

func (u *Unit) chargeAbility() (ChargeAttack, bool) {
	for _, a := range u.Abilities {
		if c, ok := a.(ChargeAttack); ok {
			return c, true
		}
	}
	return ChargeAttack{}, false
}

func (u *Unit) splashAbility() (SplashDamage, bool) {
	for _, a := range u.Abilities {
		if s, ok := a.(SplashDamage); ok {
			return s, true
		}
	}
	return SplashDamage{}, false
}

func (u *Unit) deathSpawn() (DeathSpawn, bool) {
	for _, a := range u.Abilities {
		if d, ok := a.(DeathSpawn); ok {
			return d, true
		}
	}
	return DeathSpawn{}, false
}

func (u *Unit) deathDamage() (DeathDamage, bool) {
	for _, a := range u.Abilities {
		if d, ok := a.(DeathDamage); ok {
			return d, true
		}
	}
	return DeathDamage{}, false
}

// HasAbility reports whether u carries an ability of kind.
func (u *Unit) HasAbility(kind AbilityKind) bool {
	for _, a := range u.Abilities {
		if a.Kind() == kind {
			return true
		}
	}
	return false
}

// CanAttackUnit applies the layer filter.
func (u *Unit) CanAttackUnit(t *Unit) bool {
	if t == nil || t.Dead {
		return false
	}
	layer := TargetGround
	if t.Layer == LayerAir {
		layer = TargetAir
	}
	return u.CanTarget&layer != 0
}

// CanAttackStructure reports whether u may engage s at all.
func (u *Unit) CanAttackStructure(s *Structure) bool {
	if s == nil || s.Destroyed() || !s.Active {
		return false
	}
	return u.CanTarget&(TargetBuilding|TargetGround) != 0
}

// EffectiveSpeed includes the charge multiplier while charging.
func (u *Unit) EffectiveSpeed() float64 {
	if u.Charge != nil && u.Charge.Charging {
		if c, ok := u.chargeAbility(); ok {
			return u.Speed * c.SpeedMultiplier
		}
	}
	return u.Speed
}

// EffectiveDamage includes the charge multiplier once charged.
func (u *Unit) EffectiveDamage() int {
	if u.Charge != nil && u.Charge.Charged {
		if c, ok := u.chargeAbility(); ok {
			return int(float64(u.Damage) * c.DamageMultiplier)
		}
	}
	return u.Damage
}

// applyDamage removes shield first and then HP, clamping HP at zero.
// It returns the HP actually lost. Death bookkeeping is left to the caller.
func (u *Unit) applyDamage(amount int) int {
	if amount <= 0 {
		return 0
	}
	remaining := amount
	if u.ShieldHP > 0 {
		absorbed := min(u.ShieldHP, remaining)
		u.ShieldHP -= absorbed
		remaining -= absorbed
	}
	lost := 0
	if remaining > 0 {
		lost = min(u.HP, remaining)
		u.HP = max(0, u.HP-remaining)
	}
	return lost
}

// rotateTowardVelocity turns Forward toward the velocity direction by at
// most TurnSpeed radians.
func (u *Unit) rotateTowardVelocity() {
	if u.Velocity.LenSq() < 0.001 {
		return
	}
	diff := u.Velocity.Angle() - u.Forward.Angle()
	for diff > math.Pi {
		diff -= 2 * math.Pi
	}
	for diff < -math.Pi {
		diff += 2 * math.Pi
	}
	u.Forward = u.Forward.Rotate(clamp(diff, -u.TurnSpeed, u.TurnSpeed)).Normalize()
}

// --- path buffers ---

// SetMovementPath replaces the planner path and rewinds its cursor.
func (u *Unit) SetMovementPath(path []Vec2) {
	u.movementPath = append(u.movementPath[:0], path...)
	u.movementCursor = 0
}

// ClearMovementPath drops the planner path.
func (u *Unit) ClearMovementPath() {
	u.movementPath = u.movementPath[:0]
	u.movementCursor = 0
}

// MovementPath returns the remaining planner waypoints.
func (u *Unit) MovementPath() []Vec2 {
	if u.movementCursor >= len(u.movementPath) {
		return nil
	}
	return u.movementPath[u.movementCursor:]
}

// nextMovementWaypoint advances past a waypoint once within the threshold.
// ok is false when the path is exhausted.
func (u *Unit) nextMovementWaypoint() (Vec2, bool) {
	if u.movementCursor >= len(u.movementPath) {
		return Vec2{}, false
	}
	wp := u.movementPath[u.movementCursor]
	if u.Position.Dist(wp) <= avoidanceWaypointThreshold {
		u.movementCursor++
		if u.movementCursor >= len(u.movementPath) {
			return Vec2{}, false
		}
	}
	return u.movementPath[u.movementCursor], true
}

// SetAvoidancePath installs a detour that overrides the planner path.
func (u *Unit) SetAvoidancePath(path []Vec2) {
	u.avoidancePath = append(u.avoidancePath[:0], path...)
	u.avoidanceCursor = 0
}

// ClearAvoidancePath drops any active detour.
func (u *Unit) ClearAvoidancePath() {
	u.avoidancePath = u.avoidancePath[:0]
	u.avoidanceCursor = 0
}

// AvoidancePath returns the remaining detour waypoints.
func (u *Unit) AvoidancePath() []Vec2 {
	if u.avoidanceCursor >= len(u.avoidancePath) {
		return nil
	}
	return u.avoidancePath[u.avoidanceCursor:]
}

// nextAvoidanceWaypoint skips every detour waypoint already within reach.
func (u *Unit) nextAvoidanceWaypoint() (Vec2, bool) {
	for u.avoidanceCursor < len(u.avoidancePath) {
		wp := u.avoidancePath[u.avoidanceCursor]
		if u.Position.Dist(wp) <= avoidanceWaypointThreshold {
			u.avoidanceCursor++
			continue
		}
		return wp, true
	}
	return Vec2{}, false
}

// clearAvoidanceDiagnostics resets the rendering/diagnostic fields.
func (u *Unit) clearAvoidanceDiagnostics() {
	u.HasAvoidanceTarget = false
	u.AvoidanceTarget = Vec2{}
	u.HasAvoidanceThreat = false
	u.AvoidanceThreat = UnitKey{}
}

// halt zeroes velocity and forgets both paths.
func (u *Unit) halt() {
	u.Velocity = Vec2{}
	u.ClearMovementPath()
	u.ClearAvoidancePath()
}
