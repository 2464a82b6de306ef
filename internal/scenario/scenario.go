// Package scenario loads battle setups from YAML: map and doctrine
// settings, a unit catalog, initial units, enemy waves and scripted
// commands.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"gopkg.in/yaml.v3"
)

// Scenario is the decoded file.
type Scenario struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	Simulation  Simulation         `yaml:"simulation"`
	Catalog     map[string]UnitDef `yaml:"catalog"`
	Units       []UnitDef          `yaml:"units"`
	Waves       []WaveDef          `yaml:"waves"`
	Commands    []CommandDef       `yaml:"commands"`
}

// Simulation overrides engine options. Zero values keep the engine default.
type Simulation struct {
	Width             float64 `yaml:"width"`
	Height            float64 `yaml:"height"`
	MaxFrames         int     `yaml:"max_frames"`
	Structures        bool    `yaml:"structures"`
	DynamicObstacles  bool    `yaml:"dynamic_obstacles"`
	PathSmoothing     *bool   `yaml:"path_smoothing"`
	FriendlyDoctrine  string  `yaml:"friendly_doctrine"`
	EnemyDoctrine     string  `yaml:"enemy_doctrine"`
	FriendlyFormation string  `yaml:"friendly_formation"`
	EnemyFormation    string  `yaml:"enemy_formation"`
}

// UnitDef is one unit or catalog template.
type UnitDef struct {
	Kind      string            `yaml:"kind"`
	Faction   string            `yaml:"faction"`
	Role      string            `yaml:"role"`
	Layer     string            `yaml:"layer"`
	Priority  string            `yaml:"priority"`
	Pos       [2]float64        `yaml:"pos"`
	Radius    float64           `yaml:"radius"`
	Speed     float64           `yaml:"speed"`
	TurnSpeed float64           `yaml:"turn_speed"`
	HP        int               `yaml:"hp"`
	Damage    int               `yaml:"damage"`
	Targets   []string          `yaml:"targets"`
	Abilities []sim.AbilitySpec `yaml:"abilities"`
}

// WaveDef is one wave of spawn groups.
type WaveDef struct {
	Groups []GroupDef `yaml:"groups"`
}

// GroupDef places Count units of one kind around Pos.
type GroupDef struct {
	UnitDef  `yaml:",inline"`
	Count    int     `yaml:"count"`
	Spread   float64 `yaml:"spread"`
	Interval int     `yaml:"interval"`
}

// CommandDef is a scripted command. Type is one of spawn, damage, kill,
// remove, move, revive or set_health.
type CommandDef struct {
	At      int        `yaml:"at"`
	Type    string     `yaml:"type"`
	Faction string     `yaml:"faction"`
	ID      int        `yaml:"id"`
	Amount  int        `yaml:"amount"`
	HP      int        `yaml:"hp"`
	To      [2]float64 `yaml:"to"`
	Unit    *UnitDef   `yaml:"unit"`
}

// Load reads and decodes the scenario at path.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: read %s: %w", path, err)
	}
	s, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("scenario: parse %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a scenario document. Unknown keys are rejected so typos do
// not silently fall back to defaults.
func Parse(b []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var s Scenario
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, err
	}
	if _, err := s.Options(); err != nil {
		return nil, err
	}
	if _, err := s.EngineCommands(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Options builds engine options from the scenario. Zero sizes and frame
// caps are left for the engine to default.
func (s *Scenario) Options() (sim.Options, error) {
	o := sim.Options{
		Width:            s.Simulation.Width,
		Height:           s.Simulation.Height,
		MaxFrames:        s.Simulation.MaxFrames,
		Structures:       s.Simulation.Structures,
		DynamicObstacles: s.Simulation.DynamicObstacles,
		PathSmoothing:    true,
		EnemyDoctrine:    sim.DoctrineSkirmish,
	}
	if s.Simulation.PathSmoothing != nil {
		o.PathSmoothing = *s.Simulation.PathSmoothing
	}
	var errs []error
	if d := s.Simulation.FriendlyDoctrine; d != "" {
		v, err := sim.ParseDoctrine(d)
		errs = append(errs, err)
		o.FriendlyDoctrine = v
	}
	if d := s.Simulation.EnemyDoctrine; d != "" {
		v, err := sim.ParseDoctrine(d)
		errs = append(errs, err)
		o.EnemyDoctrine = v
	}
	o.FriendlyFormation = sim.ParseFormation(s.Simulation.FriendlyFormation)
	o.EnemyFormation = sim.ParseFormation(s.Simulation.EnemyFormation)

	if len(s.Catalog) > 0 {
		o.Catalog = make(map[string]sim.UnitSpec, len(s.Catalog))
		for kind, def := range s.Catalog {
			def.Kind = kind
			spec, err := def.spec()
			if err != nil {
				errs = append(errs, fmt.Errorf("catalog %s: %w", kind, err))
				continue
			}
			o.Catalog[kind] = spec
		}
	}
	for i, def := range s.Units {
		spec, err := def.spec()
		if err != nil {
			errs = append(errs, fmt.Errorf("unit %d: %w", i, err))
			continue
		}
		o.Units = append(o.Units, spec)
	}
	for i, w := range s.Waves {
		wave := sim.Wave{}
		for j, g := range w.Groups {
			group, err := g.group()
			if err != nil {
				errs = append(errs, fmt.Errorf("wave %d group %d: %w", i+1, j, err))
				continue
			}
			wave.Groups = append(wave.Groups, group)
		}
		o.Waves = append(o.Waves, wave)
	}
	if err := errors.Join(errs...); err != nil {
		return sim.Options{}, err
	}
	return o, nil
}

// EngineCommands converts the scripted commands.
func (s *Scenario) EngineCommands() ([]sim.Command, error) {
	out := make([]sim.Command, 0, len(s.Commands))
	for i, c := range s.Commands {
		cmd, err := c.command()
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", i, err)
		}
		out = append(out, cmd)
	}
	return out, nil
}

func (d UnitDef) spec() (sim.UnitSpec, error) {
	spec := sim.UnitSpec{
		Kind:      d.Kind,
		Position:  sim.V(d.Pos[0], d.Pos[1]),
		Radius:    d.Radius,
		Speed:     d.Speed,
		TurnSpeed: d.TurnSpeed,
		HP:        d.HP,
		Damage:    d.Damage,
	}
	var err error
	if d.Faction != "" {
		if spec.Faction, err = sim.ParseFaction(d.Faction); err != nil {
			return spec, err
		}
	}
	if spec.Role, err = sim.ParseRole(d.Role); err != nil {
		return spec, err
	}
	switch d.Layer {
	case "", "ground":
		spec.Layer = sim.LayerGround
	case "air":
		spec.Layer = sim.LayerAir
	default:
		return spec, fmt.Errorf("unknown layer %q", d.Layer)
	}
	switch d.Priority {
	case "", "nearest":
		spec.Priority = sim.PriorityNearest
	case "buildings":
		spec.Priority = sim.PriorityBuildings
	default:
		return spec, fmt.Errorf("unknown priority %q", d.Priority)
	}
	for _, t := range d.Targets {
		switch t {
		case "ground":
			spec.CanTarget |= sim.TargetGround
		case "air":
			spec.CanTarget |= sim.TargetAir
		case "building":
			spec.CanTarget |= sim.TargetBuilding
		default:
			return spec, fmt.Errorf("unknown target layer %q", t)
		}
	}
	for _, as := range d.Abilities {
		a, err := as.Ability()
		if err != nil {
			return spec, err
		}
		spec.Abilities = append(spec.Abilities, a)
	}
	return spec, nil
}

func (g GroupDef) group() (sim.SpawnGroup, error) {
	if g.Faction == "" {
		g.Faction = "enemy"
	}
	spec, err := g.UnitDef.spec()
	if err != nil {
		return sim.SpawnGroup{}, err
	}
	if g.Count < 0 || g.Interval < 0 {
		return sim.SpawnGroup{}, fmt.Errorf("negative count or interval")
	}
	return sim.SpawnGroup{
		Faction:   spec.Faction,
		Kind:      spec.Kind,
		Role:      spec.Role,
		Layer:     spec.Layer,
		Priority:  spec.Priority,
		Count:     g.Count,
		Position:  spec.Position,
		Spread:    g.Spread,
		HP:        spec.HP,
		Damage:    spec.Damage,
		Interval:  g.Interval,
		Abilities: spec.Abilities,
	}, nil
}

func (c CommandDef) command() (sim.Command, error) {
	faction := sim.Friendly
	if c.Faction != "" {
		f, err := sim.ParseFaction(c.Faction)
		if err != nil {
			return nil, err
		}
		faction = f
	}
	switch c.Type {
	case "spawn":
		if c.Unit == nil {
			return nil, fmt.Errorf("spawn needs a unit")
		}
		def := *c.Unit
		if def.Faction == "" {
			def.Faction = faction.String()
		}
		spec, err := def.spec()
		if err != nil {
			return nil, err
		}
		return sim.SpawnUnit{At: c.At, Spec: spec}, nil
	case "damage":
		return sim.DamageUnit{At: c.At, Faction: faction, ID: c.ID, Amount: c.Amount}, nil
	case "kill":
		return sim.KillUnit{At: c.At, Faction: faction, ID: c.ID}, nil
	case "remove":
		return sim.RemoveUnit{At: c.At, Faction: faction, ID: c.ID}, nil
	case "move":
		return sim.MoveUnit{At: c.At, Faction: faction, ID: c.ID, Destination: sim.V(c.To[0], c.To[1])}, nil
	case "revive":
		return sim.ReviveUnit{At: c.At, Faction: faction, ID: c.ID, HP: c.HP}, nil
	case "set_health":
		return sim.SetUnitHealth{At: c.At, Faction: faction, ID: c.ID, HP: c.HP}, nil
	}
	return nil, fmt.Errorf("unknown command type %q", c.Type)
}
