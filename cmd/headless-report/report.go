package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/jshstorm/unit-simulator-sub000/internal/sim"
	"github.com/vmihailenco/msgpack/v5"
)

type runStats struct {
	name     string
	runIndex int
	reason   sim.CompletionReason
	frames   int
	digest   string

	firstAcquireTick int
	firstAttackTick  int
	firstDeathTick   int
	lastWaveTick     int

	attacks      int
	damageEvents int
	acquired     int
	lost         int
	waves        int
	spawns       int

	damageDealt [2]int // by faction
	deaths      [2]int

	friendlyTotal     int
	enemyTotal        int
	friendlySurvivors int
	enemySurvivors    int

	result     string
	crowns     [2]int
	replayPath string
	log        string
	attackers  map[string]int // attack count per unit label
}

func collectStats(name string, index int, reason sim.CompletionReason, snap *sim.FrameSnapshot, log *sim.SimLog) runStats {
	entries := log.Entries()
	rs := runStats{
		name:             name,
		runIndex:         index,
		reason:           reason,
		frames:           snap.Frame + 1,
		digest:           digest(snap),
		firstAcquireTick: firstTick(entries, "target", "acquired", ""),
		firstAttackTick:  firstTick(entries, "combat", "attack", ""),
		firstDeathTick:   firstTick(entries, "unit", "died", ""),
		lastWaveTick:     lastTick(entries, "state", "changed", "released"),
		attacks:          log.CountCategory("combat", "attack"),
		damageEvents:     log.CountCategory("combat", "damaged"),
		acquired:         log.CountCategory("target", "acquired"),
		lost:             log.CountCategory("target", "lost"),
		spawns:           log.CountCategory("unit", "spawned"),
		waves:            snap.CurrentWave,
		log:              log.Format(),
		attackers:        map[string]int{},
	}
	rs.friendlyTotal, rs.enemyTotal, rs.friendlySurvivors, rs.enemySurvivors = teamSurvivalCounts(snap)

	for _, e := range entries {
		f := sim.Friendly
		if e.Faction == sim.Enemy.String() {
			f = sim.Enemy
		}
		switch {
		case e.Category == "combat" && e.Key == "attack":
			rs.damageDealt[f] += int(e.NumVal)
			rs.attackers[e.Unit]++
		case e.Category == "unit" && e.Key == "died":
			rs.deaths[f]++
		}
	}
	if s := snap.Session; s != nil {
		rs.result = s.Result.String()
		rs.crowns = [2]int{s.FriendlyCrowns, s.EnemyCrowns}
	}
	return rs
}

// teamSurvivalCounts counts every unit the frame knows about and the living
// ones per side.
func teamSurvivalCounts(snap *sim.FrameSnapshot) (friendlyTotal, enemyTotal, friendlySurvivors, enemySurvivors int) {
	for _, u := range snap.Friendlies {
		friendlyTotal++
		if !u.Dead {
			friendlySurvivors++
		}
	}
	for _, u := range snap.Enemies {
		enemyTotal++
		if !u.Dead {
			enemySurvivors++
		}
	}
	return
}

// detectStalemate flags runs that hit the frame cap without either side
// being worn down.
func detectStalemate(rs runStats) (bool, string) {
	if rs.reason != sim.MaxFramesReached {
		return false, "decided:" + rs.reason.String()
	}
	if rs.attacks == 0 {
		return true, "no_contact"
	}
	var reasons []string
	fs := ratio(rs.friendlySurvivors, rs.friendlyTotal)
	es := ratio(rs.enemySurvivors, rs.enemyTotal)
	if fs >= 0.5 && es >= 0.5 {
		reasons = append(reasons, fmt.Sprintf("high_mutual_survival(f=%.2f,e=%.2f)", fs, es))
	}
	if rs.result == sim.InProgress.String() && rs.crowns[0] == rs.crowns[1] {
		reasons = append(reasons, "level_crowns")
	}
	if len(reasons) == 0 {
		return false, "attrition"
	}
	return true, strings.Join(reasons, "+")
}

func ratio(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// digest fingerprints a final frame for determinism checks. The run id is
// left out since every run gets a fresh one.
func digest(snap *sim.FrameSnapshot) string {
	c := *snap
	c.RunID = ""
	b, err := msgpack.Marshal(&c)
	if err != nil {
		return "n/a"
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:6])
}

func firstTick(entries []sim.SimLogEntry, category, key, contains string) int {
	for _, e := range entries {
		if e.Category != category || e.Key != key {
			continue
		}
		if contains == "" || strings.Contains(e.Value, contains) {
			return e.Tick
		}
	}
	return -1
}

func lastTick(entries []sim.SimLogEntry, category, key, contains string) int {
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.Category != category || e.Key != key {
			continue
		}
		if contains == "" || strings.Contains(e.Value, contains) {
			return e.Tick
		}
	}
	return -1
}

func printRun(rs runStats) {
	fmt.Printf("--- %s run %d ---\n", rs.name, rs.runIndex)
	fmt.Printf("outcome: reason=%s frames=%d waves=%d digest=%s\n", rs.reason, rs.frames, rs.waves, rs.digest)
	fmt.Printf("phase_markers: first_acquire=%d first_attack=%d first_death=%d last_wave=%d\n",
		rs.firstAcquireTick, rs.firstAttackTick, rs.firstDeathTick, rs.lastWaveTick)
	fmt.Printf("event_totals: attack=%d damaged=%d acquired=%d lost=%d spawned=%d\n",
		rs.attacks, rs.damageEvents, rs.acquired, rs.lost, rs.spawns)
	fmt.Printf("damage_dealt: friendly=%d enemy=%d  deaths: friendly=%d enemy=%d\n",
		rs.damageDealt[sim.Friendly], rs.damageDealt[sim.Enemy], rs.deaths[sim.Friendly], rs.deaths[sim.Enemy])
	fmt.Printf("survival: friendly=%d/%d enemy=%d/%d\n", rs.friendlySurvivors, rs.friendlyTotal, rs.enemySurvivors, rs.enemyTotal)
	if rs.result != "" {
		fmt.Printf("session: result=%s crowns=%d-%d\n", rs.result, rs.crowns[0], rs.crowns[1])
	}
	if stale, why := detectStalemate(rs); stale {
		fmt.Printf("STALEMATE: %s\n", why)
	}
	if rs.replayPath != "" {
		fmt.Printf("replay: %s\n", rs.replayPath)
	}
	fmt.Printf("attackers: %s\n", joinSet(rs.attackers))
	fmt.Println()
}

func printAggregate(all []runStats) {
	type agg struct {
		runs      int
		frames    int
		reasons   map[string]int
		deaths    []int
		attacks   int
		fSurv     float64
		eSurv     float64
		stalemate int
		digests   map[string]struct{}
	}
	byName := map[string]*agg{}
	var names []string
	for _, rs := range all {
		a, ok := byName[rs.name]
		if !ok {
			a = &agg{reasons: map[string]int{}, digests: map[string]struct{}{}}
			byName[rs.name] = a
			names = append(names, rs.name)
		}
		a.runs++
		a.frames += rs.frames
		a.reasons[rs.reason.String()]++
		a.attacks += rs.attacks
		a.fSurv += ratio(rs.friendlySurvivors, rs.friendlyTotal)
		a.eSurv += ratio(rs.enemySurvivors, rs.enemyTotal)
		if rs.firstDeathTick >= 0 {
			a.deaths = append(a.deaths, rs.firstDeathTick)
		}
		if stale, _ := detectStalemate(rs); stale {
			a.stalemate++
		}
		a.digests[rs.digest] = struct{}{}
	}

	fmt.Println("=== Aggregate ===")
	fmt.Printf("runs=%d plans=%d\n", len(all), len(names))
	for _, name := range names {
		a := byName[name]
		fmt.Printf("%s: runs=%d avg_frames=%.1f avg_attacks=%.1f first_death_avg=%s stalemates=%d\n",
			name, a.runs, avg(a.frames, a.runs), avg(a.attacks, a.runs), avgTickString(a.deaths), a.stalemate)
		fmt.Printf("  survival_avg: friendly=%.0f%% enemy=%.0f%%  deterministic=%t\n",
			a.fSurv/float64(a.runs)*100, a.eSurv/float64(a.runs)*100, len(a.digests) == 1)
		fmt.Printf("  reasons: %s\n", formatCounts(a.reasons))
	}
}

func avg(sum int, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(sum) / float64(n)
}

func avgTickString(vals []int) string {
	if len(vals) == 0 {
		return "n/a"
	}
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return fmt.Sprintf("%.1f", float64(sum)/float64(len(vals)))
}

func formatCounts(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func joinSet(s map[string]int) string {
	if len(s) == 0 {
		return "none"
	}
	labels := make([]string, 0, len(s))
	for k := range s {
		labels = append(labels, k)
	}
	sort.Strings(labels)
	for i, k := range labels {
		labels[i] = fmt.Sprintf("%s:%d", k, s[k])
	}
	return strings.Join(labels, ",")
}
