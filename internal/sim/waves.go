package sim

import "math"

// SpawnGroup places Count units of one kind around Position. Units are
// spread evenly on a circle of radius Spread and, when Interval is set,
// staggered that many ticks apart.
type SpawnGroup struct {
	Faction   Faction
	Kind      string
	Role      Role
	Layer     Layer
	Priority  TargetPriority
	Count     int
	Position  Vec2
	Spread    float64
	HP        int
	Damage    int
	Interval  int
	Abilities []Ability
}

// specs expands the group into one UnitSpec per unit with its frame
// offset.
func (g SpawnGroup) specs() ([]UnitSpec, []int) {
	count := max(1, g.Count)
	specs := make([]UnitSpec, 0, count)
	delays := make([]int, 0, count)
	for i := range count {
		pos := g.Position
		if count > 1 && g.Spread > 0 {
			angle := 2 * math.Pi / float64(count) * float64(i)
			pos = pos.Add(fromAngle(angle).Scale(g.Spread))
		}
		specs = append(specs, UnitSpec{
			Kind:      g.Kind,
			Faction:   g.Faction,
			Role:      g.Role,
			Layer:     g.Layer,
			Priority:  g.Priority,
			Position:  pos,
			HP:        g.HP,
			Damage:    g.Damage,
			Abilities: g.Abilities,
		})
		delays = append(delays, i*g.Interval)
	}
	return specs, delays
}

// Wave is one batch of spawn groups released together.
type Wave struct {
	Groups []SpawnGroup
}

// WaveSet is the ordered list of enemy waves.
type WaveSet []Wave

// waveDirector releases the next wave once the previous one is dead.
type waveDirector struct {
	waves   WaveSet
	current int // 1-based, 0 before the first release
}

// HasMoreWaves reports whether a wave after the current one exists.
func (d *waveDirector) HasMoreWaves() bool {
	return d != nil && d.current < len(d.waves)
}

// CurrentWave is the number of the last released wave.
func (d *waveDirector) CurrentWave() int {
	if d == nil {
		return 0
	}
	return d.current
}

// release returns SpawnUnit commands for the next wave, due from frame on.
func (d *waveDirector) release(frame int) []Command {
	if !d.HasMoreWaves() {
		return nil
	}
	wave := d.waves[d.current]
	d.current++
	var cmds []Command
	for _, g := range wave.Groups {
		specs, delays := g.specs()
		for i, s := range specs {
			cmds = append(cmds, SpawnUnit{At: frame + delays[i], Spec: s})
		}
	}
	return cmds
}

// enemyAt builds a single default enemy at p.
func enemyAt(p Vec2) SpawnGroup {
	return SpawnGroup{Faction: Enemy, Kind: "melee", Role: RoleMelee, Count: 1, Position: p}
}

// DefaultWaves is the three-wave open-field layout scaled to the world
// size.
func DefaultWaves(width, height float64) WaveSet {
	cy := height / 2
	wave := func(pts ...Vec2) Wave {
		groups := make([]SpawnGroup, len(pts))
		for i, p := range pts {
			groups[i] = enemyAt(p)
		}
		return Wave{Groups: groups}
	}
	return WaveSet{
		wave(
			V(width*0.6, cy-60), V(width*0.6, cy+60),
			V(width*0.65, cy-120), V(width*0.65, cy+120),
			V(width*0.55, cy-180), V(width*0.55, cy+180),
		),
		wave(
			V(width*0.7, 150), V(width*0.7, height-150),
			V(width*0.75, 250), V(width*0.75, height-250),
			V(width*0.8, cy-100), V(width*0.8, cy+100),
			V(width*0.85, cy-220), V(width*0.85, cy+220),
		),
		wave(
			V(width-250, cy-180), V(width-250, cy+180),
			V(width-350, cy-90), V(width-350, cy+90),
			V(width-450, cy-180), V(width-450, cy+180),
			V(width-550, cy-260), V(width-550, cy+260),
		),
	}
}

// DefaultSquad is the four-unit friendly squad on the left edge.
func DefaultSquad(width, height float64) []UnitSpec {
	cy := height / 2
	x1, x2 := width*0.1, width*0.06
	return []UnitSpec{
		{Faction: Friendly, Role: RoleMelee, Position: V(x1, cy-45)},
		{Faction: Friendly, Role: RoleMelee, Position: V(x1, cy+45)},
		{Faction: Friendly, Role: RoleRanged, Position: V(x2, cy-75)},
		{Faction: Friendly, Role: RoleRanged, Position: V(x2, cy+75)},
	}
}

// ArenaWaves spawns enemy waves in the enemy half of the river map.
func ArenaWaves() WaveSet {
	return WaveSet{
		{Groups: []SpawnGroup{
			{Faction: Enemy, Kind: "melee", Count: 3, Position: V(1100, 3550), Spread: 80},
			{Faction: Enemy, Kind: "melee", Count: 3, Position: V(2100, 3550), Spread: 80},
		}},
		{Groups: []SpawnGroup{
			{Faction: Enemy, Kind: "ranged", Role: RoleRanged, Count: 4, Position: V(1600, 3600), Spread: 120},
			{Faction: Enemy, Kind: "melee", Count: 4, Position: V(1600, 3450), Spread: 150, Interval: 10},
		}},
		{Groups: []SpawnGroup{
			{Faction: Enemy, Kind: "melee", Count: 8, Position: V(1600, 3550), Spread: 200, Interval: 5},
		}},
	}
}

// ArenaSquad is the friendly squad in the friendly spawn zone.
func ArenaSquad() []UnitSpec {
	return []UnitSpec{
		{Faction: Friendly, Role: RoleMelee, Position: V(1500, 1600)},
		{Faction: Friendly, Role: RoleMelee, Position: V(1700, 1600)},
		{Faction: Friendly, Role: RoleRanged, Position: V(1450, 1500)},
		{Faction: Friendly, Role: RoleRanged, Position: V(1750, 1500)},
	}
}
