package physics

import (
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
	"github.com/milk9111/navkit/tilemap"
)

// GridQuery answers spatial queries directly from tile layers. Every cell is a convex polygon
// (a box or a 45 degree ramp). The left, right and bottom edges of the map are solid walls.
type GridQuery struct {
	m      *tilemap.Map
	bounds [3][]cp.Vector
}

// NewGridQuery returns a query backend over m. The map must not be mutated afterwards.
func NewGridQuery(m *tilemap.Map) (*GridQuery, error) {
	if m == nil || m.Ground == nil || m.OneWay == nil {
		return nil, tilemap.ErrInvalidDimensions
	}
	g := &GridQuery{m: m}
	b := m.Bounds()
	cell := m.CellSize
	tall := b.Height*4 + cell
	g.bounds = [3][]cp.Vector{
		rectPoly(common.Rect{X: b.MinX() - cell, Y: b.MinY() - cell, Width: cell, Height: tall}),
		rectPoly(common.Rect{X: b.MaxX(), Y: b.MinY() - cell, Width: cell, Height: tall}),
		rectPoly(common.Rect{X: b.MinX() - cell, Y: b.MinY() - cell, Width: b.Width + 2*cell, Height: cell}),
	}
	return g, nil
}

func (g *GridQuery) Raycast(origin, dir cp.Vector, maxDist float64, mask Layer) (Hit, bool) {
	d, ok := normalize(dir)
	if !ok || maxDist <= 0 {
		return Hit{}, false
	}
	end := origin.Add(d.Mult(maxDist))

	best := Hit{Distance: math.Inf(1)}
	found := false
	consider := func(poly []cp.Vector, layer Layer) {
		t, n, ok := clipRay(poly, origin, d, maxDist)
		if !ok {
			return
		}
		// ground wins ties against one-way so a ramp under a platform edge stays solid
		if t < best.Distance || (t == best.Distance && layer == LayerGround && best.Layer != LayerGround) {
			best = Hit{Point: origin.Add(d.Mult(t)), Normal: n, Distance: t, Layer: layer}
			found = true
		}
	}

	minC := g.m.WorldToCell(cp.Vector{X: math.Min(origin.X, end.X), Y: math.Min(origin.Y, end.Y)})
	maxC := g.m.WorldToCell(cp.Vector{X: math.Max(origin.X, end.X), Y: math.Max(origin.Y, end.Y)})
	minC.X, minC.Y = max(minC.X, 0), max(minC.Y, 0)
	maxC.X, maxC.Y = min(maxC.X, g.m.Width-1), min(maxC.Y, g.m.Height-1)

	var scratch [4]cp.Vector
	for y := minC.Y; y <= maxC.Y; y++ {
		for x := minC.X; x <= maxC.X; x++ {
			if mask&LayerGround != 0 {
				if poly := g.cellPoly(scratch[:0], g.m.Ground.At(x, y), x, y); poly != nil {
					consider(poly, LayerGround)
				}
			}
			if mask&LayerOneWay != 0 {
				if poly := g.cellPoly(scratch[:0], g.m.OneWay.At(x, y), x, y); poly != nil {
					consider(poly, LayerOneWay)
				}
			}
		}
	}
	if mask&LayerGround != 0 {
		for _, poly := range g.bounds {
			consider(poly, LayerGround)
		}
	}
	return best, found
}

func (g *GridQuery) OverlapBox(center, size cp.Vector, mask Layer) int {
	box := common.RectFromCenter(center, size)
	if box.Width <= 0 || box.Height <= 0 {
		return 0
	}
	minC := g.m.WorldToCell(cp.Vector{X: box.MinX(), Y: box.MinY()})
	maxC := g.m.WorldToCell(cp.Vector{X: box.MaxX(), Y: box.MaxY()})
	minC.X, minC.Y = max(minC.X, 0), max(minC.Y, 0)
	maxC.X, maxC.Y = min(maxC.X, g.m.Width-1), min(maxC.Y, g.m.Height-1)

	count := 0
	var scratch [4]cp.Vector
	for y := minC.Y; y <= maxC.Y; y++ {
		for x := minC.X; x <= maxC.X; x++ {
			if mask&LayerGround != 0 {
				if poly := g.cellPoly(scratch[:0], g.m.Ground.At(x, y), x, y); poly != nil && boxOverlapsPoly(box, poly) {
					count++
				}
			}
			if mask&LayerOneWay != 0 {
				if poly := g.cellPoly(scratch[:0], g.m.OneWay.At(x, y), x, y); poly != nil && boxOverlapsPoly(box, poly) {
					count++
				}
			}
		}
	}
	if mask&LayerGround != 0 {
		for _, poly := range g.bounds {
			if boxOverlapsPoly(box, poly) {
				count++
			}
		}
	}
	return count
}

// cellPoly appends the counter-clockwise outline of a tile to dst, or returns nil for
// non-colliding tiles.
func (g *GridQuery) cellPoly(dst []cp.Vector, s tilemap.Shape, x, y int) []cp.Vector {
	p := g.m.CellToWorld(common.Cell{X: x, Y: y})
	size := g.m.CellSize
	bl := p
	br := cp.Vector{X: p.X + size, Y: p.Y}
	tr := cp.Vector{X: p.X + size, Y: p.Y + size}
	tl := cp.Vector{X: p.X, Y: p.Y + size}
	switch s {
	case tilemap.Solid:
		return append(dst, bl, br, tr, tl)
	case tilemap.SlopeUpRight:
		return append(dst, bl, br, tr)
	case tilemap.SlopeUpLeft:
		return append(dst, bl, br, tl)
	}
	return nil
}

func rectPoly(r common.Rect) []cp.Vector {
	return []cp.Vector{
		{X: r.MinX(), Y: r.MinY()},
		{X: r.MaxX(), Y: r.MinY()},
		{X: r.MaxX(), Y: r.MaxY()},
		{X: r.MinX(), Y: r.MaxY()},
	}
}

// clipRay intersects the ray o + t*d, t in [0, maxDist], with a convex counter-clockwise
// polygon. It reports the entry distance and the outward normal of the entered edge.
// Rays that start inside the polygon never enter it and are reported as misses.
func clipRay(poly []cp.Vector, o, d cp.Vector, maxDist float64) (float64, cp.Vector, bool) {
	tEnter, tLeave := 0.0, maxDist
	var normal cp.Vector
	entered := false
	for i := range poly {
		a := poly[i]
		b := poly[(i+1)%len(poly)]
		edge := b.Sub(a)
		n := cp.Vector{X: edge.Y, Y: -edge.X}
		denom := n.Dot(d)
		num := n.Dot(a.Sub(o))
		if math.Abs(denom) < 1e-12 {
			if num < 0 {
				return 0, cp.Vector{}, false
			}
			continue
		}
		t := num / denom
		if denom < 0 {
			if t > tEnter || (!entered && t == tEnter) {
				tEnter = t
				normal = n
				entered = true
			}
		} else if t < tLeave {
			tLeave = t
		}
		if tEnter > tLeave {
			return 0, cp.Vector{}, false
		}
	}
	if !entered {
		return 0, cp.Vector{}, false
	}
	normal, _ = normalize(normal)
	return tEnter, normal, true
}

// boxOverlapsPoly is a separating axis test between an AABB and a convex polygon.
// Touching edges do not count as overlap.
func boxOverlapsPoly(box common.Rect, poly []cp.Vector) bool {
	const eps = 1e-9
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, p := range poly {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	if box.MaxX() <= minX+eps || box.MinX() >= maxX-eps || box.MaxY() <= minY+eps || box.MinY() >= maxY-eps {
		return false
	}
	corners := rectPoly(box)
	for i := range poly {
		edge := poly[(i+1)%len(poly)].Sub(poly[i])
		axis := cp.Vector{X: edge.Y, Y: -edge.X}
		pMin, pMax := project(poly, axis)
		bMin, bMax := project(corners, axis)
		if bMax <= pMin+eps || bMin >= pMax-eps {
			return false
		}
	}
	return true
}

func project(points []cp.Vector, axis cp.Vector) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		v := p.Dot(axis)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}
