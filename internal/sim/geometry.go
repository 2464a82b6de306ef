package sim

import "math"

// Vec2 is a point or direction on the simulation plane.
type Vec2 struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// V is shorthand for constructing a Vec2.
func V(x, y float64) Vec2 { return Vec2{X: x, Y: y} }

func (a Vec2) Add(b Vec2) Vec2      { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2      { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Scale(s float64) Vec2 { return Vec2{a.X * s, a.Y * s} }
func (a Vec2) Dot(b Vec2) float64   { return a.X*b.X + a.Y*b.Y }
func (a Vec2) LenSq() float64       { return a.X*a.X + a.Y*a.Y }
func (a Vec2) Len() float64         { return math.Sqrt(a.LenSq()) }
func (a Vec2) Dist(b Vec2) float64  { return a.Sub(b).Len() }
func (a Vec2) Perp() Vec2           { return Vec2{-a.Y, a.X} }
func (a Vec2) Neg() Vec2            { return Vec2{-a.X, -a.Y} }
func (a Vec2) IsZero() bool         { return a.X == 0 && a.Y == 0 }
func (a Vec2) Angle() float64       { return math.Atan2(a.Y, a.X) }

// Lerp interpolates from a to b.
func (a Vec2) Lerp(b Vec2, t float64) Vec2 { return a.Add(b.Sub(a).Scale(t)) }

// Normalize returns the unit vector in the direction of a, or the zero
// vector when a is (nearly) zero.
func (a Vec2) Normalize() Vec2 {
	l := a.Len()
	if l < 1e-4 {
		return Vec2{}
	}
	return Vec2{a.X / l, a.Y / l}
}

// Rotate turns a counter-clockwise by angle radians.
func (a Vec2) Rotate(angle float64) Vec2 {
	c, s := math.Cos(angle), math.Sin(angle)
	return Vec2{a.X*c - a.Y*s, a.X*s + a.Y*c}
}

// ClampTo keeps a inside [0,w]x[0,h].
func (a Vec2) ClampTo(w, h float64) Vec2 {
	return Vec2{clamp(a.X, 0, w), clamp(a.Y, 0, h)}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// fromAngle is the unit vector at angle radians.
func fromAngle(angle float64) Vec2 {
	return Vec2{math.Cos(angle), math.Sin(angle)}
}

// separationVector sums inverse-distance push-away vectors from every
// living neighbour within radius.
func separationVector(self *Unit, neighbours []*Unit, radius float64) Vec2 {
	var sep Vec2
	for _, n := range neighbours {
		if n == self || n.Dead {
			continue
		}
		d := self.Position.Dist(n.Position)
		if d < radius && d > 0 {
			sep = sep.Add(self.Position.Sub(n.Position).Normalize().Scale(1 / d))
		}
	}
	return sep
}

// contactPoint is the point between two circles where their boundaries
// would touch, weighted by radius.
func contactPoint(posA, posB Vec2, radiusA, radiusB float64) Vec2 {
	delta := posB.Sub(posA)
	if delta.Len() < 1e-4 {
		return posA
	}
	t := clamp(radiusA/(radiusA+radiusB), 0, 1)
	return posA.Add(delta.Scale(t))
}

// timeToCollision solves the relative-motion quadratic for two moving
// circles scaled by collisionRadiusScale. Overlapping pairs report t=0.
// ok is false when the circles never touch moving forward in time.
func timeToCollision(a, b *Unit) (t float64, point Vec2, ok bool) {
	if a == b {
		return math.Inf(1), Vec2{}, false
	}
	dp := b.Position.Sub(a.Position)
	dv := b.Velocity.Sub(a.Velocity)
	combined := (a.Radius + b.Radius) * collisionRadiusScale

	qa := dv.Dot(dv)
	qb := 2 * dp.Dot(dv)
	qc := dp.Dot(dp) - combined*combined

	if qc <= 0 {
		return 0, contactPoint(a.Position, b.Position, a.Radius, b.Radius), true
	}
	if qa < 1e-6 {
		return math.Inf(1), Vec2{}, false
	}
	disc := qb*qb - 4*qa*qc
	if disc < 0 {
		return math.Inf(1), Vec2{}, false
	}
	sq := math.Sqrt(disc)
	t0 := (-qb - sq) / (2 * qa)
	t1 := (-qb + sq) / (2 * qa)
	if t0 < 0 {
		t0 = t1
	}
	if t0 < 0 {
		return math.Inf(1), Vec2{}, false
	}
	pa := a.Position.Add(a.Velocity.Scale(t0))
	pb := b.Position.Add(b.Velocity.Scale(t0))
	return t0, contactPoint(pa, pb, a.Radius, b.Radius), true
}
