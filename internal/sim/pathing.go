package sim

import (
	"container/heap"
	"math"
)

// Pathfinder plans a route between two world points. A nil result means no
// path is currently available.
type Pathfinder interface {
	FindPath(from, to Vec2) []Vec2
}

// Rect is an axis-aligned blocked area.
type Rect struct{ Min, Max Vec2 }

// Circle is a round blocked area.
type Circle struct {
	Center Vec2
	Radius float64
}

// ObstacleProvider contributes static obstacles to a NavGrid.
type ObstacleProvider interface {
	Rects() []Rect
	Circles() []Circle
}

// NavGrid is a walkability grid over the world. Cells are blocked either
// statically (terrain, structures) or dynamically (unit crowds).
type NavGrid struct {
	cellSize float64
	cols     int
	rows     int
	static   []bool
	dynamic  []bool
}

// NewNavGrid builds a grid of cellSize cells covering width x height and
// blocks every cell whose centre lies inside a provider's obstacle.
func NewNavGrid(width, height, cellSize float64, providers ...ObstacleProvider) *NavGrid {
	cols := max(1, int(math.Ceil(width/cellSize)))
	rows := max(1, int(math.Ceil(height/cellSize)))
	ng := &NavGrid{
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		static:   make([]bool, cols*rows),
		dynamic:  make([]bool, cols*rows),
	}
	for _, p := range providers {
		for _, r := range p.Rects() {
			ng.blockRect(r)
		}
		for _, c := range p.Circles() {
			ng.blockCircle(c)
		}
	}
	return ng
}

func (ng *NavGrid) blockRect(r Rect) {
	cMinX, cMinY := ng.WorldToCell(r.Min)
	cMaxX, cMaxY := ng.WorldToCell(r.Max)
	for cy := max(0, cMinY); cy <= min(ng.rows-1, cMaxY); cy++ {
		for cx := max(0, cMinX); cx <= min(ng.cols-1, cMaxX); cx++ {
			c := ng.CellToWorld(cx, cy)
			if c.X >= r.Min.X && c.X <= r.Max.X && c.Y >= r.Min.Y && c.Y <= r.Max.Y {
				ng.static[cy*ng.cols+cx] = true
			}
		}
	}
}

func (ng *NavGrid) blockCircle(c Circle) {
	cMinX, cMinY := ng.WorldToCell(c.Center.Sub(V(c.Radius, c.Radius)))
	cMaxX, cMaxY := ng.WorldToCell(c.Center.Add(V(c.Radius, c.Radius)))
	for cy := max(0, cMinY); cy <= min(ng.rows-1, cMaxY); cy++ {
		for cx := max(0, cMinX); cx <= min(ng.cols-1, cMaxX); cx++ {
			if ng.CellToWorld(cx, cy).Dist(c.Center) <= c.Radius {
				ng.static[cy*ng.cols+cx] = true
			}
		}
	}
}

// Size returns the grid dimensions in cells.
func (ng *NavGrid) Size() (cols, rows int) { return ng.cols, ng.rows }

// CellSize is the edge length of one cell in world units.
func (ng *NavGrid) CellSize() float64 { return ng.cellSize }

func (ng *NavGrid) inBounds(cx, cy int) bool {
	return cx >= 0 && cy >= 0 && cx < ng.cols && cy < ng.rows
}

// IsBlocked returns true if the cell at (cx, cy) is not walkable. Cells
// outside the grid are blocked.
func (ng *NavGrid) IsBlocked(cx, cy int) bool {
	if !ng.inBounds(cx, cy) {
		return true
	}
	i := cy*ng.cols + cx
	return ng.static[i] || ng.dynamic[i]
}

// IsStatic reports whether the cell is blocked by terrain or a structure.
func (ng *NavGrid) IsStatic(cx, cy int) bool {
	return ng.inBounds(cx, cy) && ng.static[cy*ng.cols+cx]
}

// WorldToCell converts a world point to grid cell coordinates.
func (ng *NavGrid) WorldToCell(p Vec2) (int, int) {
	return int(math.Floor(p.X / ng.cellSize)), int(math.Floor(p.Y / ng.cellSize))
}

// CellToWorld converts grid cell coordinates to the cell centre.
func (ng *NavGrid) CellToWorld(cx, cy int) Vec2 {
	return V((float64(cx)+0.5)*ng.cellSize, (float64(cy)+0.5)*ng.cellSize)
}

// Walkable reports whether the cell containing p can be entered.
func (ng *NavGrid) Walkable(p Vec2) bool {
	cx, cy := ng.WorldToCell(p)
	return !ng.IsBlocked(cx, cy)
}

// NearestWalkable searches outward in square rings from p for the closest
// walkable cell centre, up to maxRings rings.
func (ng *NavGrid) NearestWalkable(p Vec2, maxRings int) (Vec2, bool) {
	cx, cy := ng.WorldToCell(p)
	if !ng.IsBlocked(cx, cy) {
		return p, true
	}
	for r := 1; r <= maxRings; r++ {
		best := Vec2{}
		bestDist := math.MaxFloat64
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				if max(abs(dx), abs(dy)) != r || ng.IsBlocked(cx+dx, cy+dy) {
					continue
				}
				c := ng.CellToWorld(cx+dx, cy+dy)
				if d := c.Dist(p); d < bestDist {
					bestDist = d
					best = c
				}
			}
		}
		if bestDist < math.MaxFloat64 {
			return best, true
		}
	}
	return p, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// --- A* pathfinding ---

type pathNode struct {
	cx, cy int
	g, h   float64
	parent *pathNode
	index  int // heap index
}

type openList []*pathNode

func (ol openList) Len() int { return len(ol) }
func (ol openList) Less(i, j int) bool {
	fi, fj := ol[i].g+ol[i].h, ol[j].g+ol[j].h
	if fi != fj {
		return fi < fj
	}
	return ol[i].h < ol[j].h
}
func (ol openList) Swap(i, j int) { ol[i], ol[j] = ol[j], ol[i]; ol[i].index = i; ol[j].index = j }
func (ol *openList) Push(x any)   { n := x.(*pathNode); n.index = len(*ol); *ol = append(*ol, n) }
func (ol *openList) Pop() any {
	old := *ol
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*ol = old[:len(old)-1]
	return n
}

var dirs = [8][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {1, -1}, {-1, 1}, {-1, -1},
}

// octile is the admissible heuristic for 8-way movement.
func octile(ax, ay, bx, by int) float64 {
	dx := math.Abs(float64(ax - bx))
	dy := math.Abs(float64(ay - by))
	return dx + dy + (math.Sqrt2-2)*math.Min(dx, dy)
}

// FindCells runs A* between the cells containing from and to and returns
// the cell centres after the start cell. The start cell may itself be
// blocked (a unit standing in a crowd); a blocked goal yields nil.
func (ng *NavGrid) FindCells(from, to Vec2) []Vec2 {
	scx, scy := ng.WorldToCell(from)
	gcx, gcy := ng.WorldToCell(to)
	if !ng.inBounds(scx, scy) || ng.IsBlocked(gcx, gcy) {
		return nil
	}
	if scx == gcx && scy == gcy {
		return []Vec2{}
	}

	key := func(cx, cy int) int { return cy*ng.cols + cx }

	start := &pathNode{cx: scx, cy: scy, h: octile(scx, scy, gcx, gcy)}
	ol := &openList{start}
	heap.Init(ol)

	closed := make(map[int]bool)
	best := map[int]*pathNode{key(scx, scy): start}

	for ol.Len() > 0 {
		cur := heap.Pop(ol).(*pathNode)
		if cur.cx == gcx && cur.cy == gcy {
			return ng.buildPath(cur)
		}
		k := key(cur.cx, cur.cy)
		if closed[k] {
			continue
		}
		closed[k] = true

		for _, d := range dirs {
			nx, ny := cur.cx+d[0], cur.cy+d[1]
			if ng.IsBlocked(nx, ny) {
				continue
			}
			// No diagonal corner-cutting through blocked cells.
			if d[0] != 0 && d[1] != 0 {
				if ng.IsBlocked(cur.cx+d[0], cur.cy) || ng.IsBlocked(cur.cx, cur.cy+d[1]) {
					continue
				}
			}
			nk := key(nx, ny)
			if closed[nk] {
				continue
			}
			cost := 1.0
			if d[0] != 0 && d[1] != 0 {
				cost = math.Sqrt2
			}
			g := cur.g + cost
			if prev, ok := best[nk]; ok && g >= prev.g {
				continue
			}
			node := &pathNode{cx: nx, cy: ny, g: g, h: octile(nx, ny, gcx, gcy), parent: cur}
			best[nk] = node
			heap.Push(ol, node)
		}
	}
	return nil
}

// buildPath walks parents back to the start and drops the start cell.
func (ng *NavGrid) buildPath(end *pathNode) []Vec2 {
	var cells [][2]int
	for n := end; n != nil && n.parent != nil; n = n.parent {
		cells = append(cells, [2]int{n.cx, n.cy})
	}
	path := make([]Vec2, len(cells))
	for i, c := range cells {
		path[len(cells)-1-i] = ng.CellToWorld(c[0], c[1])
	}
	return path
}

// --- smoothing ---

// PathSmoother drops intermediate waypoints that have grid line of sight
// from an earlier one.
type PathSmoother struct {
	Grid    *NavGrid
	MaxSkip int
}

// Smooth returns a copy of path with redundant waypoints removed. from is
// the position the path starts at.
func (ps PathSmoother) Smooth(from Vec2, path []Vec2) []Vec2 {
	if len(path) < 2 {
		return path
	}
	maxSkip := ps.MaxSkip
	if maxSkip <= 0 {
		maxSkip = pathSmoothingMaxSkip
	}
	pts := append([]Vec2{from}, path...)
	out := make([]Vec2, 0, len(path))
	cur := 0
	for cur < len(pts)-1 {
		next := cur + 1
		for i := min(cur+maxSkip, len(pts)-1); i > cur+1; i-- {
			if ps.HasLineOfSight(pts[cur], pts[i]) {
				next = i
				break
			}
		}
		out = append(out, pts[next])
		cur = next
	}
	return out
}

// HasLineOfSight walks a Bresenham line between the two cells. The starting
// cell is exempt so units standing in a crowd can still see out.
func (ps PathSmoother) HasLineOfSight(a, b Vec2) bool {
	x0, y0 := ps.Grid.WorldToCell(a)
	x1, y1 := ps.Grid.WorldToCell(b)
	dx, dy := abs(x1-x0), abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx - dy
	first := true
	for {
		if !first && ps.Grid.IsBlocked(x0, y0) {
			return false
		}
		first = false
		if x0 == x1 && y0 == y1 {
			return true
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

// --- the engine-facing pathfinder ---

// GridPathfinder plans on a NavGrid, optionally smoothing, and snaps the
// final waypoint onto the requested destination.
type GridPathfinder struct {
	Grid   *NavGrid
	Smooth bool
}

// FindPath implements Pathfinder.
func (gp *GridPathfinder) FindPath(from, to Vec2) []Vec2 {
	if gp == nil || gp.Grid == nil {
		return nil
	}
	cells := gp.Grid.FindCells(from, to)
	if cells == nil {
		return nil
	}
	if gp.Smooth {
		cells = PathSmoother{Grid: gp.Grid}.Smooth(from, cells)
	}
	if len(cells) == 0 {
		return []Vec2{to}
	}
	cells[len(cells)-1] = to
	return cells
}

// --- dynamic obstacles ---

// DynamicObstacles blocks grid cells that hold a crowd of living ground
// units. Static cells are never touched.
type DynamicObstacles struct {
	Grid       *NavGrid
	Density    int
	Interval   int
	lastUpdate int
	updated    bool
}

// NewDynamicObstacles uses the default density and refresh interval.
func NewDynamicObstacles(grid *NavGrid) *DynamicObstacles {
	return &DynamicObstacles{Grid: grid, Density: dynamicObstacleDensity, Interval: dynamicUpdateInterval}
}

// MaybeUpdate refreshes the blocked set when the interval has elapsed. It
// reports whether a refresh ran.
func (d *DynamicObstacles) MaybeUpdate(frame int, units []*Unit) bool {
	if d.updated && frame-d.lastUpdate < d.Interval {
		return false
	}
	d.Update(units)
	d.lastUpdate = frame
	d.updated = true
	return true
}

// Update recounts units per cell and rebuilds the dynamic layer.
func (d *DynamicObstacles) Update(units []*Unit) {
	g := d.Grid
	clear(g.dynamic)
	counts := make(map[int]int)
	for _, u := range units {
		if u.Dead || u.Layer != LayerGround {
			continue
		}
		cx, cy := g.WorldToCell(u.Position)
		if !g.inBounds(cx, cy) {
			continue
		}
		counts[cy*g.cols+cx]++
	}
	for i, n := range counts {
		if n >= d.Density && !g.static[i] {
			g.dynamic[i] = true
		}
	}
}

// Cells lists the dynamically blocked cells as [col,row] pairs in row-major
// order.
func (d *DynamicObstacles) Cells() [][2]int {
	var out [][2]int
	for i, b := range d.Grid.dynamic {
		if b {
			out = append(out, [2]int{i % d.Grid.cols, i / d.Grid.cols})
		}
	}
	return out
}

// Restore replaces the dynamic layer, used when loading a snapshot.
func (d *DynamicObstacles) Restore(cells [][2]int, lastUpdate int) {
	g := d.Grid
	clear(g.dynamic)
	for _, c := range cells {
		if g.inBounds(c[0], c[1]) && !g.static[c[1]*g.cols+c[0]] {
			g.dynamic[c[1]*g.cols+c[0]] = true
		}
	}
	d.lastUpdate = lastUpdate
	d.updated = true
}

// LastUpdate is the frame of the most recent refresh.
func (d *DynamicObstacles) LastUpdate() int { return d.lastUpdate }
