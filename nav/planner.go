package nav

import (
	"container/heap"
	"context"
	"errors"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
	"golang.org/x/sync/semaphore"
)

var (
	ErrNoPath        = errors.New("nav: no path")
	ErrUnresolved    = errors.New("nav: start or goal has no nearby node")
	ErrPlannerClosed = errors.New("nav: planner closed")
)

const (
	modeSync  = "sync"
	modeAsync = "async"
)

// Costs are the multipliers applied to a connection's base distance.
type Costs struct {
	Walk            float64
	Jump            float64
	Fall            float64
	TransparentJump float64
	TransparentFall float64
	// SlopeUp and SlopeDown further scale walk links that change height.
	SlopeUp   float64
	SlopeDown float64
}

func DefaultCosts() Costs {
	return Costs{
		Walk:            1,
		Jump:            3,
		Fall:            2,
		TransparentJump: 3,
		TransparentFall: 1.5,
		SlopeUp:         1.4,
		SlopeDown:       1.1,
	}
}

func (c Costs) withDefaults() Costs {
	d := DefaultCosts()
	for _, f := range []struct{ v, def *float64 }{
		{&c.Walk, &d.Walk},
		{&c.Jump, &d.Jump},
		{&c.Fall, &d.Fall},
		{&c.TransparentJump, &d.TransparentJump},
		{&c.TransparentFall, &d.TransparentFall},
		{&c.SlopeUp, &d.SlopeUp},
		{&c.SlopeDown, &d.SlopeDown},
	} {
		if *f.v <= 0 {
			*f.v = *f.def
		}
	}
	return c
}

// Cost is the weighted cost of traversing c.
func (c Costs) Cost(conn Connection) float64 {
	var mult float64
	switch conn.Type {
	case Walk:
		mult = c.Walk
		switch {
		case conn.Rise > common.Epsilon:
			mult *= c.SlopeUp
		case conn.Rise < -common.Epsilon:
			mult *= c.SlopeDown
		}
	case Jump:
		mult = c.Jump
	case Fall:
		mult = c.Fall
	case TransparentJump:
		mult = c.TransparentJump
	case TransparentFall:
		mult = c.TransparentFall
	default:
		return math.Inf(1)
	}
	return conn.Distance * mult
}

// minMultiplier keeps the euclidean heuristic admissible.
func (c Costs) minMultiplier() float64 {
	return min(c.Walk, c.Walk*c.SlopeUp, c.Walk*c.SlopeDown, c.Jump, c.Fall, c.TransparentJump, c.TransparentFall)
}

// Planner runs weighted A* over a Graph. FindPath and FindNodes may be called from any goroutine;
// asynchronous searches go through a Query.
type Planner struct {
	graph   *Graph
	costs   Costs
	hScale  float64
	maxSnap float64
	workers int
	metrics *Metrics

	sem    *semaphore.Weighted
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// search is the core used by async workers; tests swap it.
	search func(from, to *Node) (Path, bool)
}

type Option func(*Planner)

// WithWorkers bounds how many async searches run at once.
func WithWorkers(n int) Option {
	return func(p *Planner) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithMaxSnapDistance limits how far start and goal may be from their nearest node.
func WithMaxSnapDistance(d float64) Option {
	return func(p *Planner) { p.maxSnap = d }
}

func WithMetrics(m *Metrics) Option {
	return func(p *Planner) { p.metrics = m }
}

func NewPlanner(g *Graph, costs Costs, opts ...Option) (*Planner, error) {
	if g == nil {
		return nil, ErrNilGraph
	}
	costs = costs.withDefaults()
	p := &Planner{
		graph:   g,
		costs:   costs,
		hScale:  costs.minMultiplier(),
		maxSnap: 2 * g.CellSize(),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sem = semaphore.NewWeighted(int64(p.workers))
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.search = p.FindNodes
	return p, nil
}

func (p *Planner) Graph() *Graph { return p.graph }

func (p *Planner) Costs() Costs { return p.costs }

// Close stops new searches and waits for running async workers.
func (p *Planner) Close() {
	p.cancel()
	p.wg.Wait()
}

func (p *Planner) closed() bool { return p.ctx.Err() != nil }

// Resolve snaps a world position to its nearest node.
func (p *Planner) Resolve(pos cp.Vector) (*Node, bool) {
	return p.graph.Nearest(pos, p.maxSnap)
}

// FindPath plans between two world positions. It returns an empty path and false when either end
// has no nearby node or the goal is unreachable.
func (p *Planner) FindPath(start, goal cp.Vector) (Path, bool) {
	if p.closed() {
		return Path{Start: start, Goal: goal}, false
	}
	from, okFrom := p.Resolve(start)
	to, okTo := p.Resolve(goal)
	if !okFrom || !okTo {
		p.metrics.observeUnresolved(modeSync)
		return Path{Start: start, Goal: goal}, false
	}
	began := time.Now()
	path, found := p.FindNodes(from, to)
	p.metrics.observeSearch(modeSync, found, time.Since(began))
	path.Start, path.Goal = start, goal
	return path, found
}

// FindNodes is the weighted A* core. Both nodes must belong to the planner's graph.
func (p *Planner) FindNodes(from, to *Node) (Path, bool) {
	g := p.graph
	if !g.Owns(from) || !g.Owns(to) {
		return Path{}, false
	}
	if from == to {
		return Path{Waypoints: []Waypoint{{Node: from, Via: None}}}, true
	}

	n := g.Len()
	gScore := make([]float64, n)
	for i := range gScore {
		gScore[i] = math.Inf(1)
	}
	cameFrom := make([]int, n)
	for i := range cameFrom {
		cameFrom[i] = -1
	}
	via := make([]ConnectionType, n)
	closed := make([]bool, n)

	open := &openSet{}
	heap.Init(open)
	gScore[from.ID] = 0
	heap.Push(open, &openItem{node: from, f: p.heuristic(from, to)})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*openItem).node
		if closed[cur.ID] {
			continue
		}
		closed[cur.ID] = true
		if cur == to {
			return p.reconstruct(cameFrom, via, from, to, gScore[to.ID]), true
		}
		for _, link := range cur.Links {
			next := link.To
			if closed[next.ID] {
				continue
			}
			tentative := gScore[cur.ID] + p.costs.Cost(link)
			if tentative < gScore[next.ID] {
				gScore[next.ID] = tentative
				cameFrom[next.ID] = cur.ID
				via[next.ID] = link.Type
				heap.Push(open, &openItem{node: next, f: tentative + p.heuristic(next, to), g: tentative})
			}
		}
	}
	return Path{}, false
}

func (p *Planner) heuristic(a, b *Node) float64 {
	return a.Pos.Distance(b.Pos) * p.hScale
}

func (p *Planner) reconstruct(cameFrom []int, via []ConnectionType, from, to *Node, cost float64) Path {
	nodes := p.graph.nodes
	out := make([]Waypoint, 0, 16)
	for cur := to.ID; cur != -1; cur = cameFrom[cur] {
		w := Waypoint{Node: nodes[cur], Via: via[cur]}
		if cur == from.ID {
			w.Via = None
			out = append(out, w)
			break
		}
		out = append(out, w)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return Path{Waypoints: out, Cost: cost}
}

type openItem struct {
	node  *Node
	f     float64
	g     float64
	index int
}

type openSet []*openItem

func (o openSet) Len() int { return len(o) }

// Less breaks f ties on node ID so searches are reproducible.
func (o openSet) Less(i, j int) bool {
	if o[i].f != o[j].f {
		return o[i].f < o[j].f
	}
	return o[i].node.ID < o[j].node.ID
}

func (o openSet) Swap(i, j int) {
	o[i], o[j] = o[j], o[i]
	o[i].index = i
	o[j].index = j
}

func (o *openSet) Push(x any) {
	item := x.(*openItem)
	item.index = len(*o)
	*o = append(*o, item)
}

func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*o = old[:n-1]
	return item
}
