package nav

import (
	"errors"
	"fmt"
	"log"
	"math"
	"slices"
	"sync/atomic"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
	"github.com/milk9111/navkit/physics"
	"github.com/milk9111/navkit/tilemap"
	"golang.org/x/sync/errgroup"
)

var generation atomic.Uint64

// ActorProfile describes the actor the graph is built for, in world units.
type ActorProfile struct {
	Height          float64
	Width           float64
	JumpHeight      float64
	MaxJumpDistance float64
	// MaxFallHeight limits drops; zero means unlimited.
	MaxFallHeight float64
}

func (p ActorProfile) validate() error {
	if p.Height <= 0 || p.Width <= 0 {
		return fmt.Errorf("nav: invalid actor size %.3fx%.3f", p.Width, p.Height)
	}
	if p.JumpHeight <= 0 || p.MaxJumpDistance <= 0 {
		return errors.New("nav: jump height and distance must be positive")
	}
	if p.MaxFallHeight < 0 {
		return errors.New("nav: negative max fall height")
	}
	return nil
}

// Builder generates navigation graphs. Generate is a full rebuild and is deterministic for a
// given map and profile.
type Builder struct {
	Map     *tilemap.Map
	Query   physics.SpatialQuery
	Profile ActorProfile
	// NodeOffset lifts nodes above the surface; zero uses 5% of a cell.
	NodeOffset float64
	// WalkTolerance is how far edge heights may differ for a walk link; zero uses 10% of a cell.
	WalkTolerance float64
}

func (b *Builder) offset() float64 {
	if b.NodeOffset > 0 {
		return b.NodeOffset
	}
	return 0.05 * b.Map.CellSize
}

func (b *Builder) tolerance() float64 {
	if b.WalkTolerance > 0 {
		return b.WalkTolerance
	}
	return 0.1 * b.Map.CellSize
}

type source struct {
	layer *tilemap.Layer
	mask  physics.Layer
	flags Flags
}

func (b *Builder) Generate() (*Graph, error) {
	if b == nil || b.Map == nil {
		return nil, fmt.Errorf("nav: generate: %w", tilemap.ErrInvalidDimensions)
	}
	if b.Query == nil {
		return nil, fmt.Errorf("nav: generate: %w", physics.ErrNilQuery)
	}
	if err := b.Profile.validate(); err != nil {
		return nil, err
	}
	m := b.Map
	cell := m.CellSize

	sources := []source{
		{layer: m.Ground, mask: physics.LayerGround, flags: Walkable},
		{layer: m.OneWay, mask: physics.LayerOneWay, flags: Walkable | Transparent},
	}
	found := make([][]*Node, len(sources))
	var eg errgroup.Group
	for i, src := range sources {
		eg.Go(func() error {
			nodes, err := b.scanLayer(src)
			found[i] = nodes
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	g := &Graph{
		byCell:     make(map[common.Cell]*Node),
		width:      m.Width,
		height:     m.Height,
		cellSize:   cell,
		origin:     m.Origin,
		generation: generation.Add(1),
	}
	// ground wins when both layers put a node on the same cell
	for _, nodes := range found {
		for _, n := range nodes {
			if _, dup := g.byCell[n.Cell]; dup {
				continue
			}
			g.byCell[n.Cell] = n
			g.nodes = append(g.nodes, n)
		}
	}
	slices.SortFunc(g.nodes, func(a, b *Node) int {
		if a.Cell == b.Cell {
			return 0
		}
		if a.Cell.Less(b.Cell) {
			return -1
		}
		return 1
	})
	for i, n := range g.nodes {
		n.ID = i
	}

	b.markJumpable(g)
	b.connect(g)

	log.Printf("nav: generated graph %d: %d nodes, %d connections", g.generation, g.Len(), g.ConnectionCount())
	return g, nil
}

// scanLayer emits a node for every tile with open space above it and room for the actor.
func (b *Builder) scanLayer(src source) ([]*Node, error) {
	m := b.Map
	if src.layer == nil {
		return nil, nil
	}
	if src.layer.Width != m.Width || src.layer.Height != m.Height {
		return nil, fmt.Errorf("nav: layer size %dx%d does not match map %dx%d", src.layer.Width, src.layer.Height, m.Width, m.Height)
	}
	cell := m.CellSize
	var nodes []*Node
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if !src.layer.HasTile(x, y) || m.HasAnyTile(x, y+1) {
				continue
			}
			c := common.Cell{X: x, Y: y}
			corner := m.CellToWorld(c)
			top := corner.Y + cell

			surface, normal := b.probeSurface(corner.X+cell/2, top, src.mask)
			pos := cp.Vector{X: corner.X + cell/2, Y: surface + b.offset()}
			if _, blocked := physics.RaycastUp(b.Query, pos, b.Profile.Height, physics.LayerGround); blocked {
				continue
			}
			inset := 0.02 * cell
			leftY, _ := b.probeSurface(corner.X+inset, top, src.mask)
			rightY, _ := b.probeSurface(corner.X+cell-inset, top, src.mask)

			nodes = append(nodes, &Node{
				Cell:   c,
				Pos:    pos,
				Flags:  src.flags,
				Slope:  physics.SurfaceAngle(normal) > 1e-3,
				Normal: normal,
				LeftY:  leftY,
				RightY: rightY,
			})
		}
	}
	return nodes, nil
}

// probeSurface casts down from just above the top of a cell. Without a hit the tile top is used.
func (b *Builder) probeSurface(x, top float64, mask physics.Layer) (float64, cp.Vector) {
	cell := b.Map.CellSize
	origin := cp.Vector{X: x, Y: top + 0.25*cell}
	hit, ok := physics.RaycastDown(b.Query, origin, 1.25*cell, mask)
	if !ok {
		return top, physics.Up
	}
	return hit.Point.Y, hit.Normal
}

func (b *Builder) markJumpable(g *Graph) {
	m := b.Map
	for _, n := range g.nodes {
		x, y := n.Cell.X, n.Cell.Y
		edge := !m.HasAnyTile(x-1, y) || !m.HasAnyTile(x+1, y)
		if edge && !n.Slope {
			n.Flags |= Jumpable
		}
	}
}

// connect derives edges purely from node positions and flags. Each ordered pair gets at most one
// connection, chosen by priority walk, transparent fall, fall, transparent jump, jump.
func (b *Builder) connect(g *Graph) {
	cell := g.cellSize
	jumpCols := max(int(math.Floor(b.Profile.MaxJumpDistance/cell)), 1)

	columns := make(map[int][]*Node)
	for _, n := range g.nodes {
		columns[n.Cell.X] = append(columns[n.Cell.X], n)
	}

	for _, a := range g.nodes {
		for x := a.Cell.X - jumpCols; x <= a.Cell.X+jumpCols; x++ {
			for _, to := range columns[x] {
				if to == a {
					continue
				}
				if t := b.classify(g, a, to); t != None {
					a.Links = append(a.Links, Connection{
						To:       to,
						Type:     t,
						Distance: a.Pos.Distance(to.Pos),
						Rise:     to.Pos.Y - a.Pos.Y,
					})
				}
			}
		}
	}
}

func (b *Builder) classify(g *Graph, a, to *Node) ConnectionType {
	switch {
	case b.canWalk(a, to):
		return Walk
	case b.canTransparentFall(g, a, to):
		return TransparentFall
	case b.canFall(g, a, to):
		return Fall
	case b.canTransparentJump(a, to):
		return TransparentJump
	case b.canJump(a, to):
		return Jump
	}
	return None
}

func (b *Builder) canWalk(a, to *Node) bool {
	dx := to.Cell.X - a.Cell.X
	dy := to.Cell.Y - a.Cell.Y
	if common.AbsInt(dx) != 1 || common.AbsInt(dy) > 1 {
		return false
	}
	if dx > 0 {
		return math.Abs(a.RightY-to.LeftY) <= b.tolerance()
	}
	return math.Abs(a.LeftY-to.RightY) <= b.tolerance()
}

func (b *Builder) withinFall(drop float64) bool {
	return drop > 0 && (b.Profile.MaxFallHeight <= 0 || drop <= b.Profile.MaxFallHeight)
}

// highestBelow returns the first node under a's surface in column x.
func highestBelow(g *Graph, x, y int) *Node {
	for yy := y - 1; yy >= 0; yy-- {
		if n, ok := g.byCell[common.Cell{X: x, Y: yy}]; ok {
			return n
		}
	}
	return nil
}

func (b *Builder) dropClear(x, fromY, toY float64) bool {
	_, hit := physics.RaycastDown(b.Query, cp.Vector{X: x, Y: fromY}, fromY-toY, physics.LayerGround)
	return !hit
}

func (b *Builder) canTransparentFall(g *Graph, a, to *Node) bool {
	if !a.Is(Transparent) || to.Cell.X != a.Cell.X || to.Cell.Y >= a.Cell.Y {
		return false
	}
	if highestBelow(g, a.Cell.X, a.Cell.Y) != to || !b.withinFall(a.Pos.Y-to.Pos.Y) {
		return false
	}
	return b.dropClear(a.Pos.X, a.Pos.Y, to.Pos.Y)
}

func (b *Builder) canFall(g *Graph, a, to *Node) bool {
	m := b.Map
	dx := to.Cell.X - a.Cell.X
	if common.AbsInt(dx) != 1 || to.Cell.Y >= a.Cell.Y {
		return false
	}
	side := a.Cell.X + dx
	if m.HasAnyTile(side, a.Cell.Y) || m.Ground.HasTile(side, a.Cell.Y+1) {
		return false
	}
	if highestBelow(g, side, a.Cell.Y) != to || !b.withinFall(a.Pos.Y-to.Pos.Y) {
		return false
	}
	return b.dropClear(to.Pos.X, a.Pos.Y, to.Pos.Y)
}

func (b *Builder) canTransparentJump(a, to *Node) bool {
	m := b.Map
	dx := to.Cell.X - a.Cell.X
	rise := to.Pos.Y - a.Pos.Y
	if !to.Is(Transparent) || to.Cell.Y <= a.Cell.Y || common.AbsInt(dx) > 1 || rise > b.Profile.JumpHeight {
		return false
	}
	if _, hit := physics.RaycastUp(b.Query, a.Pos, rise+b.Profile.Height, physics.LayerGround); hit {
		return false
	}
	if dx != 0 {
		if m.Ground.HasTile(to.Cell.X, a.Cell.Y+1) {
			return false
		}
		from := cp.Vector{X: to.Pos.X, Y: a.Pos.Y}
		if _, hit := physics.RaycastUp(b.Query, from, rise, physics.LayerGround); hit {
			return false
		}
	}
	return true
}

func (b *Builder) canJump(a, to *Node) bool {
	m := b.Map
	dx := to.Cell.X - a.Cell.X
	if dx == 0 || float64(common.AbsInt(dx))*b.Map.CellSize > b.Profile.MaxJumpDistance+common.Epsilon {
		return false
	}
	rise := to.Pos.Y - a.Pos.Y
	if rise > b.Profile.JumpHeight {
		return false
	}
	s := 1
	if dx < 0 {
		s = -1
	}
	if rise > b.tolerance() {
		// up: land on the open edge of a ledge
		if !to.Is(Jumpable) || m.HasAnyTile(to.Cell.X-s, to.Cell.Y) {
			return false
		}
	} else {
		if rise < -b.tolerance() && !b.withinFall(-rise) {
			return false
		}
		// flat or down: launch from an edge across a gap
		if !a.Is(Jumpable) || common.AbsInt(dx) < 2 || m.HasAnyTile(a.Cell.X+s, a.Cell.Y) {
			return false
		}
	}
	return b.arcClear(a, to)
}

// arcClear approximates the jump arc as up, across and down segments and checks each against
// solid ground for both the feet and the head of the actor.
func (b *Builder) arcClear(a, to *Node) bool {
	cell := b.Map.CellSize
	peak := math.Max(a.Pos.Y, to.Pos.Y) + 0.5*math.Min(b.Profile.JumpHeight, cell)
	h := b.Profile.Height
	q := b.Query

	if _, hit := physics.RaycastUp(q, a.Pos, peak-a.Pos.Y+h, physics.LayerGround); hit {
		return false
	}
	span := math.Abs(to.Pos.X - a.Pos.X)
	dir := physics.Right
	if to.Pos.X < a.Pos.X {
		dir = physics.Left
	}
	for _, y := range []float64{peak, peak + h*0.5, peak + h} {
		if _, hit := q.Raycast(cp.Vector{X: a.Pos.X, Y: y}, dir, span, physics.LayerGround); hit {
			return false
		}
	}
	_, hit := physics.RaycastDown(q, cp.Vector{X: to.Pos.X, Y: peak}, peak-to.Pos.Y, physics.LayerGround)
	return !hit
}
