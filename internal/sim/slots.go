package sim

import "math"

// SlotRing holds up to NumAttackSlots attacker ids around one unit or
// structure. Attackers always belong to the holder's opponent faction, so an
// id is enough to address them. The zero value is an empty ring.
type SlotRing struct {
	ids [NumAttackSlots]int // attacker id + 1, 0 = empty
}

// Occupant returns the attacker id in slot i.
func (r *SlotRing) Occupant(i int) (int, bool) {
	if i < 0 || i >= NumAttackSlots || r.ids[i] == 0 {
		return 0, false
	}
	return r.ids[i] - 1, true
}

// Occupied counts filled slots.
func (r *SlotRing) Occupied() int {
	n := 0
	for _, id := range r.ids {
		if id != 0 {
			n++
		}
	}
	return n
}

// occupiedExcept counts filled slots not held by attacker id.
func (r *SlotRing) occupiedExcept(id int) int {
	n := 0
	for _, v := range r.ids {
		if v != 0 && v != id+1 {
			n++
		}
	}
	return n
}

// IDs returns the ring as a slice with -1 for empty slots.
func (r *SlotRing) IDs() []int {
	out := make([]int, NumAttackSlots)
	for i, id := range r.ids {
		out[i] = id - 1
	}
	return out
}

func (r *SlotRing) holds(i, id int) bool {
	return i >= 0 && i < NumAttackSlots && r.ids[i] == id+1
}

func (r *SlotRing) set(i, id int) { r.ids[i] = id + 1 }
func (r *SlotRing) clearSlot(i int) {
	if i >= 0 && i < NumAttackSlots {
		r.ids[i] = 0
	}
}
func (r *SlotRing) reset() { r.ids = [NumAttackSlots]int{} }

// SlotHolder is anything attackers can surround: units and structures.
type SlotHolder interface {
	SlotCenter() Vec2
	SlotRadius() float64
	Ring() *SlotRing
}

func (u *Unit) SlotCenter() Vec2    { return u.Position }
func (u *Unit) SlotRadius() float64 { return u.Radius }
func (u *Unit) Ring() *SlotRing     { return &u.Slots }

func (s *Structure) SlotCenter() Vec2    { return s.Position }
func (s *Structure) SlotRadius() float64 { return s.Radius }
func (s *Structure) Ring() *SlotRing     { return &s.Slots }

// SlotPosition is the world point of slot index around holder for an
// attacker of the given radius.
func SlotPosition(holder SlotHolder, index int, attackerRadius float64) Vec2 {
	angle := 2 * math.Pi / NumAttackSlots * float64(index)
	dist := holder.SlotRadius() + attackerRadius + slotMargin
	return holder.SlotCenter().Add(fromAngle(angle).Scale(dist))
}

// ClaimBestSlot moves attacker into the free slot nearest to it, vacating any
// other slot it held on the same ring. With no free slot the attacker's claim
// is released and -1 is returned.
func ClaimBestSlot(holder SlotHolder, attacker *Unit) int {
	ring := holder.Ring()
	best := noSlot
	bestDist := math.MaxFloat64
	for i := range NumAttackSlots {
		if id, ok := ring.Occupant(i); ok && id != attacker.ID {
			continue
		}
		d := attacker.Position.Dist(SlotPosition(holder, i, attacker.Radius))
		if d < bestDist {
			bestDist = d
			best = i
		}
	}

	if best == noSlot {
		ReleaseSlot(holder, attacker)
		return noSlot
	}
	if attacker.TakenSlot != noSlot && attacker.TakenSlot != best && ring.holds(attacker.TakenSlot, attacker.ID) {
		ring.clearSlot(attacker.TakenSlot)
	}
	ring.set(best, attacker.ID)
	attacker.TakenSlot = best
	return best
}

// ReleaseSlot clears attacker's slot on holder if the ring still points back
// at it, and always resets the attacker's index.
func ReleaseSlot(holder SlotHolder, attacker *Unit) {
	if attacker.TakenSlot == noSlot {
		return
	}
	ring := holder.Ring()
	if ring.holds(attacker.TakenSlot, attacker.ID) {
		ring.clearSlot(attacker.TakenSlot)
	}
	attacker.TakenSlot = noSlot
}
