package sim

import "fmt"

// UnitState is the persisted form of a Unit. Everything needed to resume a
// run is here, including path buffers and replan counters.
type UnitState struct {
	ID       int            `json:"id" msgpack:"id"`
	Faction  Faction        `json:"faction" msgpack:"faction"`
	Kind     string         `json:"kind" msgpack:"kind"`
	Role     Role           `json:"role" msgpack:"role"`
	Layer    Layer          `json:"layer" msgpack:"layer"`
	Priority TargetPriority `json:"priority" msgpack:"priority"`

	Position  Vec2    `json:"position" msgpack:"pos"`
	Velocity  Vec2    `json:"velocity" msgpack:"vel"`
	Forward   Vec2    `json:"forward" msgpack:"fwd"`
	Radius    float64 `json:"radius" msgpack:"radius"`
	Speed     float64 `json:"speed" msgpack:"speed"`
	TurnSpeed float64 `json:"turnSpeed" msgpack:"turn"`

	HP             int           `json:"hp" msgpack:"hp"`
	MaxHP          int           `json:"maxHP" msgpack:"maxHP"`
	ShieldHP       int           `json:"shieldHP" msgpack:"shield"`
	MaxShieldHP    int           `json:"maxShieldHP" msgpack:"maxShield"`
	Dead           bool          `json:"dead" msgpack:"dead"`
	Damage         int           `json:"damage" msgpack:"damage"`
	AttackRange    float64       `json:"attackRange" msgpack:"range"`
	AttackCooldown int           `json:"attackCooldown" msgpack:"cooldown"`
	CanTarget      TargetMask    `json:"canTarget" msgpack:"canTarget"`
	Abilities      []AbilitySpec `json:"abilities,omitempty" msgpack:"abilities,omitempty"`
	Charge         *ChargeState  `json:"charge,omitempty" msgpack:"charge,omitempty"`

	Target                TargetRef `json:"target" msgpack:"target"`
	TakenSlot             int       `json:"takenSlot" msgpack:"slot"`
	FramesSinceTargetEval int       `json:"framesSinceTargetEval" msgpack:"fste"`
	FramesSinceSlotEval   int       `json:"framesSinceSlotEval" msgpack:"fsse"`
	Attackers             []int     `json:"attackers" msgpack:"attackers"` // ring ids, -1 = empty

	Destination     Vec2   `json:"destination" msgpack:"dest"`
	MovementPath    []Vec2 `json:"movementPath,omitempty" msgpack:"path,omitempty"`
	MovementCursor  int    `json:"movementCursor" msgpack:"pathCursor"`
	AvoidancePath   []Vec2 `json:"avoidancePath,omitempty" msgpack:"avoid,omitempty"`
	AvoidanceCursor int    `json:"avoidanceCursor" msgpack:"avoidCursor"`

	HasAvoidanceTarget bool    `json:"hasAvoidanceTarget" msgpack:"hat"`
	AvoidanceTarget    Vec2    `json:"avoidanceTarget" msgpack:"at"`
	HasAvoidanceThreat bool    `json:"hasAvoidanceThreat" msgpack:"hth"`
	AvoidanceThreat    UnitKey `json:"avoidanceThreat" msgpack:"th"`

	FramesSinceProgress  int  `json:"framesSinceProgress" msgpack:"fsp"`
	FramesSinceAvoidance int  `json:"framesSinceAvoidance" msgpack:"fsa"`
	LastReplanFrame      int  `json:"lastReplanFrame" msgpack:"lrf"`
	PreviousPosition     Vec2 `json:"previousPosition" msgpack:"prev"`
}

// StructureState is the persisted form of a Structure.
type StructureState struct {
	ID             int           `json:"id" msgpack:"id"`
	Faction        Faction       `json:"faction" msgpack:"faction"`
	Kind           StructureKind `json:"kind" msgpack:"kind"`
	Position       Vec2          `json:"position" msgpack:"pos"`
	Radius         float64       `json:"radius" msgpack:"radius"`
	AttackRange    float64       `json:"attackRange" msgpack:"range"`
	HP             int           `json:"hp" msgpack:"hp"`
	MaxHP          int           `json:"maxHP" msgpack:"maxHP"`
	Damage         int           `json:"damage" msgpack:"damage"`
	AttacksPerSec  float64       `json:"attacksPerSec" msgpack:"aps"`
	AttackCooldown float64       `json:"attackCooldown" msgpack:"cooldown"`
	Active         bool          `json:"active" msgpack:"active"`
	Destroyed      bool          `json:"destroyed" msgpack:"destroyed"`
	CanTarget      TargetMask    `json:"canTarget" msgpack:"canTarget"`
	Target         int           `json:"target" msgpack:"target"`
	Attackers      []int         `json:"attackers" msgpack:"attackers"`
}

// FrameSnapshot is an immutable deep copy of the engine after one tick.
type FrameSnapshot struct {
	RunID string `json:"runId,omitempty" msgpack:"run,omitempty"`
	Frame int    `json:"frame" msgpack:"frame"`

	CurrentWave      int  `json:"currentWave" msgpack:"wave"`
	HasMoreWaves     bool `json:"hasMoreWaves" msgpack:"more"`
	AllWavesCleared  bool `json:"allWavesCleared" msgpack:"cleared"`
	MaxFramesReached bool `json:"maxFramesReached" msgpack:"maxed"`

	Width            float64 `json:"width" msgpack:"w"`
	Height           float64 `json:"height" msgpack:"h"`
	MainTarget       Vec2    `json:"mainTarget" msgpack:"main"`
	LivingFriendlies int     `json:"livingFriendlies" msgpack:"lf"`
	LivingEnemies    int     `json:"livingEnemies" msgpack:"le"`
	NextIDs          [2]int  `json:"nextIds" msgpack:"next"`

	Friendlies []UnitState      `json:"friendlies" msgpack:"friendlies"`
	Enemies    []UnitState      `json:"enemies" msgpack:"enemies"`
	Structures []StructureState `json:"structures,omitempty" msgpack:"structures,omitempty"`
	Session    *Session         `json:"session,omitempty" msgpack:"session,omitempty"`

	Coordinators      [2]CoordinatorState `json:"coordinators" msgpack:"coord"`
	DynamicCells      [][2]int            `json:"dynamicCells,omitempty" msgpack:"dyn,omitempty"`
	DynamicLastUpdate int                 `json:"dynamicLastUpdate" msgpack:"dynAt"`
}

// Units returns the unit states of faction.
func (f *FrameSnapshot) Units(faction Faction) []UnitState {
	if faction == Friendly {
		return f.Friendlies
	}
	return f.Enemies
}

// Unit finds a unit state by faction and id.
func (f *FrameSnapshot) Unit(faction Faction, id int) (UnitState, bool) {
	for _, u := range f.Units(faction) {
		if u.ID == id {
			return u, true
		}
	}
	return UnitState{}, false
}

func unitState(u *Unit) UnitState {
	st := UnitState{
		ID:                    u.ID,
		Faction:               u.Faction,
		Kind:                  u.Kind,
		Role:                  u.Role,
		Layer:                 u.Layer,
		Priority:              u.Priority,
		Position:              u.Position,
		Velocity:              u.Velocity,
		Forward:               u.Forward,
		Radius:                u.Radius,
		Speed:                 u.Speed,
		TurnSpeed:             u.TurnSpeed,
		HP:                    u.HP,
		MaxHP:                 u.MaxHP,
		ShieldHP:              u.ShieldHP,
		MaxShieldHP:           u.MaxShieldHP,
		Dead:                  u.Dead,
		Damage:                u.Damage,
		AttackRange:           u.AttackRange,
		AttackCooldown:        u.AttackCooldown,
		CanTarget:             u.CanTarget,
		Target:                u.Target,
		TakenSlot:             u.TakenSlot,
		FramesSinceTargetEval: u.FramesSinceTargetEval,
		FramesSinceSlotEval:   u.FramesSinceSlotEval,
		Attackers:             u.Slots.IDs(),
		Destination:           u.Destination,
		MovementPath:          append([]Vec2(nil), u.movementPath...),
		MovementCursor:        u.movementCursor,
		AvoidancePath:         append([]Vec2(nil), u.avoidancePath...),
		AvoidanceCursor:       u.avoidanceCursor,
		HasAvoidanceTarget:    u.HasAvoidanceTarget,
		AvoidanceTarget:       u.AvoidanceTarget,
		HasAvoidanceThreat:    u.HasAvoidanceThreat,
		AvoidanceThreat:       u.AvoidanceThreat,
		FramesSinceProgress:   u.FramesSinceProgress,
		FramesSinceAvoidance:  u.FramesSinceAvoidance,
		LastReplanFrame:       u.LastReplanFrame,
		PreviousPosition:      u.PreviousPosition,
	}
	for _, a := range u.Abilities {
		st.Abilities = append(st.Abilities, SpecOf(a))
	}
	if u.Charge != nil {
		c := *u.Charge
		st.Charge = &c
	}
	return st
}

// restoreUnit rebuilds a unit. The slot ring is left empty; restoreRings
// fills it from the attackers' claims.
func restoreUnit(st UnitState) (*Unit, error) {
	abilities := make([]Ability, 0, len(st.Abilities))
	for _, spec := range st.Abilities {
		a, err := spec.Ability()
		if err != nil {
			return nil, fmt.Errorf("unit %s#%d: %w", st.Faction, st.ID, err)
		}
		abilities = append(abilities, a)
	}
	u := &Unit{
		ID:                    st.ID,
		Faction:               st.Faction,
		Kind:                  st.Kind,
		Role:                  st.Role,
		Layer:                 st.Layer,
		Priority:              st.Priority,
		Position:              st.Position,
		Velocity:              st.Velocity,
		Forward:               st.Forward,
		Radius:                st.Radius,
		Speed:                 st.Speed,
		TurnSpeed:             st.TurnSpeed,
		HP:                    st.HP,
		MaxHP:                 st.MaxHP,
		Dead:                  st.Dead,
		Damage:                st.Damage,
		AttackRange:           st.AttackRange,
		AttackCooldown:        st.AttackCooldown,
		CanTarget:             st.CanTarget,
		Target:                st.Target,
		TakenSlot:             st.TakenSlot,
		FramesSinceTargetEval: st.FramesSinceTargetEval,
		FramesSinceSlotEval:   st.FramesSinceSlotEval,
		Destination:           st.Destination,
		movementPath:          append([]Vec2(nil), st.MovementPath...),
		movementCursor:        st.MovementCursor,
		avoidancePath:         append([]Vec2(nil), st.AvoidancePath...),
		avoidanceCursor:       st.AvoidanceCursor,
		HasAvoidanceTarget:    st.HasAvoidanceTarget,
		AvoidanceTarget:       st.AvoidanceTarget,
		HasAvoidanceThreat:    st.HasAvoidanceThreat,
		AvoidanceThreat:       st.AvoidanceThreat,
		FramesSinceProgress:   st.FramesSinceProgress,
		FramesSinceAvoidance:  st.FramesSinceAvoidance,
		LastReplanFrame:       st.LastReplanFrame,
		PreviousPosition:      st.PreviousPosition,
	}
	u.setAbilities(abilities)
	u.ShieldHP = st.ShieldHP
	if st.MaxShieldHP > 0 {
		u.MaxShieldHP = st.MaxShieldHP
	}
	if st.Charge != nil && u.Charge != nil {
		*u.Charge = *st.Charge
	}
	if u.Forward.IsZero() {
		u.Forward = V(1, 0)
	}
	if u.Dead {
		u.Target = TargetRef{}
		u.TakenSlot = noSlot
	}
	return u, nil
}

func structureState(s *Structure) StructureState {
	return StructureState{
		ID:             s.ID,
		Faction:        s.Faction,
		Kind:           s.Kind,
		Position:       s.Position,
		Radius:         s.Radius,
		AttackRange:    s.AttackRange,
		HP:             s.HP,
		MaxHP:          s.MaxHP,
		Damage:         s.Damage,
		AttacksPerSec:  s.AttacksPerSec,
		AttackCooldown: s.AttackCooldown,
		Active:         s.Active,
		Destroyed:      s.Destroyed(),
		CanTarget:      s.CanTarget,
		Target:         s.Target,
		Attackers:      s.Slots.IDs(),
	}
}

func restoreStructure(st StructureState) *Structure {
	return &Structure{
		ID:             st.ID,
		Faction:        st.Faction,
		Kind:           st.Kind,
		Position:       st.Position,
		Radius:         st.Radius,
		AttackRange:    st.AttackRange,
		HP:             st.HP,
		MaxHP:          st.MaxHP,
		Damage:         st.Damage,
		AttacksPerSec:  st.AttacksPerSec,
		AttackCooldown: st.AttackCooldown,
		Active:         st.Active,
		CanTarget:      st.CanTarget,
		Target:         st.Target,
	}
}

// restoreRings rebuilds every slot ring from the attackers' own claims.
// The first claimant of a slot keeps it; later claimants lose their index.
func (w *World) restoreRings() {
	for _, u := range w.AllUnits() {
		u.Slots.reset()
	}
	for _, s := range w.structures {
		s.Slots.reset()
	}
	for _, u := range w.AllUnits() {
		if u.TakenSlot == noSlot {
			continue
		}
		h := w.holderOf(u.Target)
		if h == nil || u.TakenSlot < 0 || u.TakenSlot >= NumAttackSlots {
			u.TakenSlot = noSlot
			continue
		}
		ring := h.Ring()
		if _, taken := ring.Occupant(u.TakenSlot); taken {
			u.TakenSlot = noSlot
			continue
		}
		ring.set(u.TakenSlot, u.ID)
	}
}
