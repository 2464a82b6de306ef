package sim

import "fmt"

// AbilityKind names one variant of the closed Ability set.
type AbilityKind int

const (
	AbilityChargeAttack AbilityKind = iota
	AbilitySplashDamage
	AbilityShield
	AbilityDeathSpawn
	AbilityDeathDamage
)

func (k AbilityKind) String() string {
	switch k {
	case AbilityChargeAttack:
		return "charge_attack"
	case AbilitySplashDamage:
		return "splash_damage"
	case AbilityShield:
		return "shield"
	case AbilityDeathSpawn:
		return "death_spawn"
	case AbilityDeathDamage:
		return "death_damage"
	default:
		return "unknown"
	}
}

// ParseAbilityKind is the inverse of AbilityKind.String.
func ParseAbilityKind(s string) (AbilityKind, error) {
	for k := AbilityChargeAttack; k <= AbilityDeathDamage; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown ability %q", s)
}

// Ability is the closed set of unit abilities. Only the types in this file
// implement it.
type Ability interface {
	Kind() AbilityKind
	sealed()
}

// ChargeAttack speeds a unit up after it has run TriggerDistance toward its
// target and multiplies the next hit once RequiredDistance is covered.
type ChargeAttack struct {
	TriggerDistance  float64
	RequiredDistance float64
	SpeedMultiplier  float64
	DamageMultiplier float64
}

// SplashDamage hits other opponents around the main target.
type SplashDamage struct {
	Radius  float64
	Falloff float64 // 0 = full damage across the radius, 1 = zero at the edge
}

// Shield absorbs damage before HP.
type Shield struct {
	MaxShieldHP int
}

// DeathSpawn releases Count units of UnitKind in a ring when the owner dies.
type DeathSpawn struct {
	UnitKind string
	Count    int
	Radius   float64
	HP       int
}

// DeathDamage damages and knocks back nearby opponents when the owner dies.
type DeathDamage struct {
	Damage    int
	Radius    float64
	Knockback float64
}

func (ChargeAttack) Kind() AbilityKind { return AbilityChargeAttack }
func (SplashDamage) Kind() AbilityKind { return AbilitySplashDamage }
func (Shield) Kind() AbilityKind       { return AbilityShield }
func (DeathSpawn) Kind() AbilityKind   { return AbilityDeathSpawn }
func (DeathDamage) Kind() AbilityKind  { return AbilityDeathDamage }

func (ChargeAttack) sealed() {}
func (SplashDamage) sealed() {}
func (Shield) sealed()       {}
func (DeathSpawn) sealed()   {}
func (DeathDamage) sealed()  {}

// Default ability payloads used when only the kind is known.
var (
	DefaultChargeAttack = ChargeAttack{TriggerDistance: 150, RequiredDistance: 100, SpeedMultiplier: 2, DamageMultiplier: 2}
	DefaultSplashDamage = SplashDamage{Radius: 60, Falloff: 0.5}
	DefaultShield       = Shield{MaxShieldHP: 50}
	DefaultDeathSpawn   = DeathSpawn{UnitKind: "skeleton", Count: 2, Radius: 30, HP: 0}
	DefaultDeathDamage  = DeathDamage{Damage: 5, Radius: 80, Knockback: 20}
)

// DefaultAbility returns the default payload for kind.
func DefaultAbility(kind AbilityKind) Ability {
	switch kind {
	case AbilityChargeAttack:
		return DefaultChargeAttack
	case AbilitySplashDamage:
		return DefaultSplashDamage
	case AbilityShield:
		return DefaultShield
	case AbilityDeathSpawn:
		return DefaultDeathSpawn
	default:
		return DefaultDeathDamage
	}
}

// ChargeState tracks progress of a ChargeAttack.
type ChargeState struct {
	Charging         bool    `json:"charging" msgpack:"charging"`
	Charged          bool    `json:"charged" msgpack:"charged"`
	RequiredDistance float64 `json:"requiredDistance" msgpack:"required"`
	Travelled        float64 `json:"travelled" msgpack:"travelled"`
	Start            Vec2    `json:"start" msgpack:"start"`
}

func (cs *ChargeState) begin(from Vec2, required float64) {
	cs.Charging = true
	cs.Charged = false
	cs.RequiredDistance = required
	cs.Travelled = 0
	cs.Start = from
}

func (cs *ChargeState) advance(pos Vec2) {
	if !cs.Charging {
		return
	}
	cs.Travelled = cs.Start.Dist(pos)
	if cs.Travelled >= cs.RequiredDistance {
		cs.Charged = true
	}
}

// consume clears the charge after an attack lands.
func (cs *ChargeState) consume() {
	cs.Charging = false
	cs.Charged = false
	cs.Travelled = 0
}

func (cs *ChargeState) reset() { cs.consume() }

// AbilitySpec is the flat, serializable form of an Ability.
type AbilitySpec struct {
	Kind             string  `json:"kind" msgpack:"kind" yaml:"kind"`
	TriggerDistance  float64 `json:"triggerDistance,omitempty" msgpack:"td,omitempty" yaml:"triggerDistance,omitempty"`
	RequiredDistance float64 `json:"requiredDistance,omitempty" msgpack:"rd,omitempty" yaml:"requiredDistance,omitempty"`
	SpeedMultiplier  float64 `json:"speedMultiplier,omitempty" msgpack:"sm,omitempty" yaml:"speedMultiplier,omitempty"`
	DamageMultiplier float64 `json:"damageMultiplier,omitempty" msgpack:"dm,omitempty" yaml:"damageMultiplier,omitempty"`
	Radius           float64 `json:"radius,omitempty" msgpack:"r,omitempty" yaml:"radius,omitempty"`
	Falloff          float64 `json:"falloff,omitempty" msgpack:"f,omitempty" yaml:"falloff,omitempty"`
	ShieldHP         int     `json:"shieldHP,omitempty" msgpack:"sh,omitempty" yaml:"shieldHP,omitempty"`
	UnitKind         string  `json:"unitKind,omitempty" msgpack:"uk,omitempty" yaml:"unitKind,omitempty"`
	Count            int     `json:"count,omitempty" msgpack:"c,omitempty" yaml:"count,omitempty"`
	HP               int     `json:"hp,omitempty" msgpack:"hp,omitempty" yaml:"hp,omitempty"`
	Damage           int     `json:"damage,omitempty" msgpack:"d,omitempty" yaml:"damage,omitempty"`
	Knockback        float64 `json:"knockback,omitempty" msgpack:"kb,omitempty" yaml:"knockback,omitempty"`
}

// SpecOf flattens an Ability.
func SpecOf(a Ability) AbilitySpec {
	spec := AbilitySpec{Kind: a.Kind().String()}
	switch ab := a.(type) {
	case ChargeAttack:
		spec.TriggerDistance = ab.TriggerDistance
		spec.RequiredDistance = ab.RequiredDistance
		spec.SpeedMultiplier = ab.SpeedMultiplier
		spec.DamageMultiplier = ab.DamageMultiplier
	case SplashDamage:
		spec.Radius = ab.Radius
		spec.Falloff = ab.Falloff
	case Shield:
		spec.ShieldHP = ab.MaxShieldHP
	case DeathSpawn:
		spec.UnitKind = ab.UnitKind
		spec.Count = ab.Count
		spec.Radius = ab.Radius
		spec.HP = ab.HP
	case DeathDamage:
		spec.Damage = ab.Damage
		spec.Radius = ab.Radius
		spec.Knockback = ab.Knockback
	}
	return spec
}

// Ability resolves a spec into its variant. A spec that carries only a kind
// gets that kind's default payload.
func (s AbilitySpec) Ability() (Ability, error) {
	kind, err := ParseAbilityKind(s.Kind)
	if err != nil {
		return nil, err
	}
	if s == (AbilitySpec{Kind: s.Kind}) {
		return DefaultAbility(kind), nil
	}
	switch kind {
	case AbilityChargeAttack:
		return ChargeAttack{
			TriggerDistance:  s.TriggerDistance,
			RequiredDistance: s.RequiredDistance,
			SpeedMultiplier:  s.SpeedMultiplier,
			DamageMultiplier: s.DamageMultiplier,
		}, nil
	case AbilitySplashDamage:
		return SplashDamage{Radius: s.Radius, Falloff: s.Falloff}, nil
	case AbilityShield:
		return Shield{MaxShieldHP: s.ShieldHP}, nil
	case AbilityDeathSpawn:
		return DeathSpawn{UnitKind: s.UnitKind, Count: s.Count, Radius: s.Radius, HP: s.HP}, nil
	default:
		return DeathDamage{Damage: s.Damage, Radius: s.Radius, Knockback: s.Knockback}, nil
	}
}
