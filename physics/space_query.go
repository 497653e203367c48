package physics

import (
	"math"
	"sync"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/tilemap"
)

// SpaceQuery answers spatial queries against a Chipmunk space holding static shapes built from
// the map's tile layers. The space is never stepped; it is only queried.
type SpaceQuery struct {
	mu     sync.Mutex
	space  *cp.Space
	layers map[*cp.Shape]Layer
}

func NewSpaceQuery(m *tilemap.Map) (*SpaceQuery, error) {
	if m == nil || m.Ground == nil || m.OneWay == nil {
		return nil, tilemap.ErrInvalidDimensions
	}
	sq := &SpaceQuery{
		space:  cp.NewSpace(),
		layers: make(map[*cp.Shape]Layer),
	}
	sq.buildStaticShapes(m, m.Ground, LayerGround)
	sq.buildStaticShapes(m, m.OneWay, LayerOneWay)
	sq.buildWorldBounds(m)
	return sq, nil
}

func (sq *SpaceQuery) addShape(shape *cp.Shape, layer Layer) {
	sq.addStatic(shape, layer)
	sq.layers[shape] = layer
}

func (sq *SpaceQuery) addStatic(shape *cp.Shape, layer Layer) {
	shape.SetFilter(cp.ShapeFilter{Group: cp.NO_GROUP, Categories: uint(layer), Mask: cp.ALL_CATEGORIES})
	shape.SetFriction(0.8)
	sq.space.AddShape(shape)
}

func (sq *SpaceQuery) buildStaticShapes(m *tilemap.Map, layer *tilemap.Layer, kind Layer) {
	size := m.CellSize
	processed := make([]bool, layer.Width*layer.Height)
	solid := func(x, y int) bool {
		return !processed[y*layer.Width+x] && layer.At(x, y) == tilemap.Solid
	}

	for y := 0; y < layer.Height; y++ {
		for x := 0; x < layer.Width; x++ {
			idx := y*layer.Width + x
			if processed[idx] {
				continue
			}
			shape := layer.At(x, y)
			x0 := m.Origin.X + float64(x)*size
			y0 := m.Origin.Y + float64(y)*size

			switch shape {
			case tilemap.SlopeUpRight, tilemap.SlopeUpLeft:
				verts := []cp.Vector{{X: x0, Y: y0}, {X: x0 + size, Y: y0}, {X: x0 + size, Y: y0 + size}}
				if shape == tilemap.SlopeUpLeft {
					verts[2] = cp.Vector{X: x0, Y: y0 + size}
				}
				sq.addShape(cp.NewPolyShapeRaw(sq.space.StaticBody, 3, verts, 0), kind)
				processed[idx] = true
				continue
			case tilemap.Solid:
			default:
				processed[idx] = true
				continue
			}

			// Grow the box right, then up, over contiguous solid tiles.
			w := 1
			for x+w < layer.Width && solid(x+w, y) {
				w++
			}
			h := 1
		heightLoop:
			for y+h < layer.Height {
				for xi := x; xi < x+w; xi++ {
					if !solid(xi, y+h) {
						break heightLoop
					}
				}
				h++
			}

			bb := cp.BB{L: x0, B: y0, R: x0 + float64(w)*size, T: y0 + float64(h)*size}
			sq.addShape(cp.NewBox2(sq.space.StaticBody, bb, 0), kind)

			for yy := y; yy < y+h; yy++ {
				for xx := x; xx < x+w; xx++ {
					processed[yy*layer.Width+xx] = true
				}
			}
		}
	}
}

// buildWorldBounds walls off the left, right and bottom of the map. Bounds collide as ground
// but are not tile shapes, so ShapeLayer does not report them.
func (sq *SpaceQuery) buildWorldBounds(m *tilemap.Map) {
	b := m.Bounds()
	cell := m.CellSize
	tall := b.Height*4 + cell
	for _, bb := range []cp.BB{
		{L: b.MinX() - cell, B: b.MinY() - cell, R: b.MinX(), T: b.MinY() - cell + tall},
		{L: b.MaxX(), B: b.MinY() - cell, R: b.MaxX() + cell, T: b.MinY() - cell + tall},
		{L: b.MinX() - cell, B: b.MinY() - cell, R: b.MaxX() + cell, T: b.MinY()},
	} {
		sq.addStatic(cp.NewBox2(sq.space.StaticBody, bb, 0), LayerGround)
	}
}

func queryFilter(mask Layer) cp.ShapeFilter {
	return cp.ShapeFilter{Group: cp.NO_GROUP, Categories: cp.ALL_CATEGORIES, Mask: uint(mask)}
}

func (sq *SpaceQuery) Raycast(origin, dir cp.Vector, maxDist float64, mask Layer) (Hit, bool) {
	d, ok := normalize(dir)
	if !ok || maxDist <= 0 || mask == 0 {
		return Hit{}, false
	}
	end := origin.Add(d.Mult(maxDist))

	best := cp.SegmentQueryInfo{Alpha: math.Inf(1)}
	var bestLayer Layer
	sq.mu.Lock()
	sq.space.SegmentQuery(origin, end, 0, queryFilter(mask), func(shape *cp.Shape, point, normal cp.Vector, alpha float64, _ interface{}) {
		layer := sq.layerOf(shape)
		// ground wins ties against one-way, as in the grid backend
		if alpha > best.Alpha || (alpha == best.Alpha && (layer != LayerGround || bestLayer == LayerGround)) {
			return
		}
		if alpha == 0 {
			// cp reports alpha 0 for any shape touching the origin
			n, ok := entryNormal(shape, origin, d, maxDist)
			if !ok {
				return
			}
			point, normal = origin, n
		}
		best = cp.SegmentQueryInfo{Shape: shape, Point: point, Normal: normal, Alpha: alpha}
		bestLayer = layer
	}, nil)
	sq.mu.Unlock()

	if best.Shape == nil {
		return Hit{}, false
	}
	return Hit{
		Point:    best.Point,
		Normal:   best.Normal,
		Distance: best.Alpha * maxDist,
		Layer:    bestLayer,
	}, true
}

// layerOf is the collision layer of a shape; world bounds collide as ground.
func (sq *SpaceQuery) layerOf(s *cp.Shape) Layer {
	if l, ok := sq.layers[s]; ok {
		return l
	}
	return LayerGround
}

// entryNormal decides whether a ray starting on or inside shape enters it. Origins strictly
// inside never do. Origins on the surface enter when the ray heads inward, and the hit normal
// is the outward normal of the surface just past the origin.
func entryNormal(shape *cp.Shape, origin, d cp.Vector, maxDist float64) (cp.Vector, bool) {
	if shape.PointQuery(origin).Distance < 0 {
		return cp.Vector{}, false
	}
	step := math.Max(maxDist*1e-6, 1e-9)
	in := shape.PointQuery(origin.Add(d.Mult(step)))
	if in.Distance >= 0 {
		return cp.Vector{}, false
	}
	n, ok := normalize(in.Gradient)
	return n, ok
}

func (sq *SpaceQuery) OverlapBox(center, size cp.Vector, mask Layer) int {
	if size.X <= 0 || size.Y <= 0 || mask == 0 {
		return 0
	}
	half := size.Mult(0.5)
	bb := cp.BB{L: center.X - half.X, B: center.Y - half.Y, R: center.X + half.X, T: center.Y + half.Y}

	count := 0
	sq.mu.Lock()
	defer sq.mu.Unlock()
	sq.space.BBQuery(bb, queryFilter(mask), func(shape *cp.Shape, data interface{}) {
		// cp reports touching bounding boxes; only count a positive overlap area
		sb := shape.BB()
		if sb.L < bb.R && bb.L < sb.R && sb.B < bb.T && bb.B < sb.T {
			count++
		}
	}, nil)
	return count
}

// ShapeLayer reports which tile layer a shape in the space was built from. World bounds report
// false. The shape set is fixed after construction, so no lock is taken.
func (sq *SpaceQuery) ShapeLayer(s *cp.Shape) (Layer, bool) {
	l, ok := sq.layers[s]
	return l, ok
}

// Draw renders the space's shapes with d while holding the query lock.
func (sq *SpaceQuery) Draw(d cp.Drawer) {
	sq.mu.Lock()
	defer sq.mu.Unlock()
	cp.DrawSpace(sq.space, d)
}
