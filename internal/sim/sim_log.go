package sim

import (
	"fmt"
	"strings"
)

// SimLogEntry is one recorded event during a headless simulation.
type SimLogEntry struct {
	Tick     int
	Unit     string  // label e.g. "F0", "E3", "EK4", or "--" for global events
	Faction  string  // "friendly", "enemy", or "--"
	Category string  // combat, target, unit, wave, state, move
	Key      string  // specific event name within the category
	Value    string  // human-readable detail
	NumVal   float64 // optional numeric value for threshold checks
}

// String formats the entry as a fixed-width log line.
//
//	[T=042] F0   combat    attack           -> E3 (1)
func (e SimLogEntry) String() string {
	return fmt.Sprintf("[T=%03d] %-4s %-9s %-16s %s",
		e.Tick, e.Unit, e.Category, e.Key, e.Value)
}

// SimLog collects structured events during a headless simulation. It is
// unbounded and machine-readable.
type SimLog struct {
	entries []SimLogEntry
	verbose bool
}

// NewSimLog creates a SimLog. If verbose is true, per-tick position entries
// are also recorded.
func NewSimLog(verbose bool) *SimLog {
	return &SimLog{verbose: verbose}
}

// Add records a new entry.
func (sl *SimLog) Add(tick int, unit, faction, category, key, value string, numVal float64) {
	sl.entries = append(sl.entries, SimLogEntry{
		Tick:     tick,
		Unit:     unit,
		Faction:  faction,
		Category: category,
		Key:      key,
		Value:    value,
		NumVal:   numVal,
	})
}

// AddVerbose records an entry only when verbose mode is on.
func (sl *SimLog) AddVerbose(tick int, unit, faction, category, key, value string, numVal float64) {
	if !sl.verbose {
		return
	}
	sl.Add(tick, unit, faction, category, key, value, numVal)
}

// Entries returns all recorded entries.
func (sl *SimLog) Entries() []SimLogEntry {
	return sl.entries
}

func matches(e SimLogEntry, category, key string) bool {
	return (category == "" || e.Category == category) && (key == "" || e.Key == key)
}

func (sl *SimLog) collect(keep func(SimLogEntry) bool) []SimLogEntry {
	var out []SimLogEntry
	for _, e := range sl.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

// Filter returns entries matching category and key. An empty string
// matches anything.
func (sl *SimLog) Filter(category, key string) []SimLogEntry {
	return sl.collect(func(e SimLogEntry) bool { return matches(e, category, key) })
}

// FilterUnit returns the entries of one unit label.
func (sl *SimLog) FilterUnit(label string) []SimLogEntry {
	return sl.collect(func(e SimLogEntry) bool { return e.Unit == label })
}

// FilterTickRange returns entries with from <= Tick <= to.
func (sl *SimLog) FilterTickRange(from, to int) []SimLogEntry {
	return sl.collect(func(e SimLogEntry) bool { return e.Tick >= from && e.Tick <= to })
}

// CountCategory counts entries matching category and key.
func (sl *SimLog) CountCategory(category, key string) int {
	n := 0
	for _, e := range sl.entries {
		if matches(e, category, key) {
			n++
		}
	}
	return n
}

// LastOf returns the latest entry matching category and key.
func (sl *SimLog) LastOf(category, key string) (SimLogEntry, bool) {
	for i := len(sl.entries) - 1; i >= 0; i-- {
		if matches(sl.entries[i], category, key) {
			return sl.entries[i], true
		}
	}
	return SimLogEntry{}, false
}

// FirstOf returns the earliest entry matching category and key.
func (sl *SimLog) FirstOf(category, key string) (SimLogEntry, bool) {
	for _, e := range sl.entries {
		if matches(e, category, key) {
			return e, true
		}
	}
	return SimLogEntry{}, false
}

// HasEntry reports whether an entry matches category and key and carries
// valueSubstr in its Value.
func (sl *SimLog) HasEntry(category, key, valueSubstr string) bool {
	for _, e := range sl.entries {
		if matches(e, category, key) && strings.Contains(e.Value, valueSubstr) {
			return true
		}
	}
	return false
}

// Format renders the whole log, one line per entry.
func (sl *SimLog) Format() string { return formatEntries(sl.entries) }

// FormatRange renders the entries of ticks from..to.
func (sl *SimLog) FormatRange(from, to int) string {
	return formatEntries(sl.FilterTickRange(from, to))
}

func formatEntries(entries []SimLogEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Summary returns a short human-readable summary of snap.
func (sl *SimLog) Summary(snap *FrameSnapshot) string {
	var sb strings.Builder
	if snap == nil {
		return "--- no frame ---\n"
	}
	fmt.Fprintf(&sb, "--- Summary at T=%03d ---\n", snap.Frame)
	fmt.Fprintf(&sb, "Alive: friendly=%d  enemy=%d\n", snap.LivingFriendlies, snap.LivingEnemies)
	fmt.Fprintf(&sb, "Wave: %d  more=%t  cleared=%t\n", snap.CurrentWave, snap.HasMoreWaves, snap.AllWavesCleared)

	for _, list := range [][]UnitState{snap.Friendlies, snap.Enemies} {
		for _, u := range list {
			if u.Dead {
				continue
			}
			target := "none"
			if u.Target.Kind != TargetNone {
				target = refLabel(u.Target)
			}
			fmt.Fprintf(&sb, "%s hp=%d pos=(%.0f,%.0f) target=%s slot=%d\n",
				unitLabel(u.Faction, u.ID), u.HP, u.Position.X, u.Position.Y, target, u.TakenSlot)
		}
	}
	for _, s := range snap.Structures {
		fmt.Fprintf(&sb, "%s hp=%d/%d active=%t\n", structureLabel(s.Faction, s.Kind, s.ID), s.HP, s.MaxHP, s.Active)
	}
	if snap.Session != nil {
		fmt.Fprintf(&sb, "Crowns: friendly=%d  enemy=%d  result=%s\n",
			snap.Session.FriendlyCrowns, snap.Session.EnemyCrowns, snap.Session.Result)
	}
	return sb.String()
}

func unitLabel(f Faction, id int) string {
	if f == Friendly {
		return fmt.Sprintf("F%d", id)
	}
	return fmt.Sprintf("E%d", id)
}

func structureLabel(f Faction, k StructureKind, id int) string {
	return (&Structure{Faction: f, Kind: k, ID: id}).Label()
}

func refLabel(r TargetRef) string {
	if r.Kind == TargetStructure {
		return fmt.Sprintf("%s#%d", r.Faction, r.ID)
	}
	return unitLabel(r.Faction, r.ID)
}

// SimLogCallbacks records engine output into a SimLog. Frame, when set,
// stamps state messages with the current tick.
type SimLogCallbacks struct {
	Log   *SimLog
	Frame func() int
}

// OnFrameGenerated logs unit positions in verbose mode.
func (c SimLogCallbacks) OnFrameGenerated(f *FrameSnapshot) {
	if !c.Log.verbose {
		return
	}
	for _, list := range [][]UnitState{f.Friendlies, f.Enemies} {
		for _, u := range list {
			if u.Dead {
				continue
			}
			c.Log.AddVerbose(f.Frame, unitLabel(u.Faction, u.ID), u.Faction.String(), "move", "position",
				fmt.Sprintf("(%.1f,%.1f)", u.Position.X, u.Position.Y), u.Velocity.Len())
		}
	}
}

// OnUnitEvent maps each unit event onto a category and key.
func (c SimLogCallbacks) OnUnitEvent(e UnitEvent) {
	label := unitLabel(e.Unit.Faction, e.Unit.ID)
	faction := e.Unit.Faction.String()
	switch e.Type {
	case UnitEventSpawned:
		c.Log.Add(e.Frame, label, faction, "unit", "spawned", "", 0)
	case UnitEventDied:
		c.Log.Add(e.Frame, label, faction, "unit", "died", "", 0)
	case UnitEventAttack:
		c.Log.Add(e.Frame, label, faction, "combat", "attack",
			fmt.Sprintf("-> %s (%d)", refLabel(e.Target), e.Amount), float64(e.Amount))
	case UnitEventDamaged:
		c.Log.Add(e.Frame, label, faction, "combat", "damaged",
			fmt.Sprintf("%d %s", e.Amount, e.Kind), float64(e.Amount))
	case UnitEventTargetAcquired:
		c.Log.Add(e.Frame, label, faction, "target", "acquired", refLabel(e.Target), 0)
	case UnitEventTargetLost:
		c.Log.Add(e.Frame, label, faction, "target", "lost", refLabel(e.Target), 0)
	}
}

// OnStateChanged logs engine-level messages.
func (c SimLogCallbacks) OnStateChanged(msg string) {
	tick := -1
	if c.Frame != nil {
		tick = c.Frame()
	}
	c.Log.Add(tick, "--", "--", "state", "changed", msg, 0)
}

// OnSimulationComplete logs the completion reason.
func (c SimLogCallbacks) OnSimulationComplete(frame int, reason CompletionReason) {
	c.Log.Add(frame, "--", "--", "state", "complete", reason.String(), 0)
}
