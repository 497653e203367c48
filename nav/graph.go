package nav

import (
	"errors"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
)

var ErrNilGraph = errors.New("nav: nil graph")

// Graph is an immutable navigation graph. It is safe for concurrent reads.
type Graph struct {
	nodes  []*Node
	byCell map[common.Cell]*Node

	width, height int
	cellSize      float64
	origin        cp.Vector
	generation    uint64
}

// Nodes returns the nodes in row-major order, bottom row first. Node.ID is the index.
func (g *Graph) Nodes() []*Node {
	if g == nil {
		return nil
	}
	return g.nodes
}

func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.nodes)
}

func (g *Graph) Node(c common.Cell) (*Node, bool) {
	if g == nil {
		return nil, false
	}
	n, ok := g.byCell[c]
	return n, ok
}

// Generation identifies the build that produced the graph. Every Generate call gets a new one.
func (g *Graph) Generation() uint64 {
	if g == nil {
		return 0
	}
	return g.generation
}

func (g *Graph) CellSize() float64 {
	if g == nil {
		return 0
	}
	return g.cellSize
}

// ConnectionCount is the total number of directed edges.
func (g *Graph) ConnectionCount() int {
	n := 0
	for _, node := range g.Nodes() {
		n += len(node.Links)
	}
	return n
}

// Owns reports whether n belongs to this graph generation.
func (g *Graph) Owns(n *Node) bool {
	if g == nil || n == nil || n.ID < 0 || n.ID >= len(g.nodes) {
		return false
	}
	return g.nodes[n.ID] == n
}

func (g *Graph) worldToCell(p cp.Vector) common.Cell {
	return common.Cell{
		X: int(math.Floor((p.X - g.origin.X) / g.cellSize)),
		Y: int(math.Floor((p.Y - g.origin.Y) / g.cellSize)),
	}
}

// Nearest returns the node closest to pos within maxDist, searching outward in square rings of
// cells. A non-positive maxDist searches the whole grid.
func (g *Graph) Nearest(pos cp.Vector, maxDist float64) (*Node, bool) {
	if g == nil || len(g.nodes) == 0 {
		return nil, false
	}
	center := g.worldToCell(pos)
	maxRing := max(g.width, g.height) + common.AbsInt(center.X) + common.AbsInt(center.Y)
	if maxDist > 0 {
		maxRing = int(math.Ceil(maxDist/g.cellSize)) + 1
	}

	var best *Node
	bestDist := math.Inf(1)
	consider := func(x, y int) {
		n, ok := g.byCell[common.Cell{X: x, Y: y}]
		if !ok {
			return
		}
		d := n.Pos.Distance(pos)
		if d < bestDist || (d == bestDist && n.ID < best.ID) {
			best, bestDist = n, d
		}
	}

	for r := 0; r <= maxRing; r++ {
		// every cell in ring r is at least (r-1) cells away from pos
		if best != nil && float64(r-1)*g.cellSize > bestDist {
			break
		}
		if r == 0 {
			consider(center.X, center.Y)
			continue
		}
		for dx := -r; dx <= r; dx++ {
			consider(center.X+dx, center.Y-r)
			consider(center.X+dx, center.Y+r)
		}
		for dy := -r + 1; dy <= r-1; dy++ {
			consider(center.X-r, center.Y+dy)
			consider(center.X+r, center.Y+dy)
		}
	}
	if best == nil || (maxDist > 0 && bestDist > maxDist) {
		return nil, false
	}
	return best, true
}
