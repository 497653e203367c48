package nav

import (
	"errors"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newPlanner(t *testing.T, g *Graph, opts ...Option) *Planner {
	t.Helper()
	p, err := NewPlanner(g, DefaultCosts(), opts...)
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestNewPlannerNilGraph(t *testing.T) {
	if _, err := NewPlanner(nil, DefaultCosts()); !errors.Is(err, ErrNilGraph) {
		t.Fatalf("expected ErrNilGraph, got %v", err)
	}
}

func TestFindPathSameNode(t *testing.T) {
	g := buildArt(t, gapArt)
	p := newPlanner(t, g)

	pos := mustNode(t, g, 4, 0).Pos
	path, ok := p.FindPath(pos, pos)
	if !ok {
		t.Fatalf("expected a path from a node to itself")
	}
	if path.Len() > 1 {
		t.Fatalf("expected at most one waypoint, got %d", path.Len())
	}
	if len(path.Transitions()) != 0 {
		t.Fatalf("expected no transitions, got %v", path.Transitions())
	}
}

func TestFindPathJumpOnlyBridge(t *testing.T) {
	g := buildArt(t, gapArt)
	p := newPlanner(t, g)
	edge := mustNode(t, g, 9, 0)
	island := mustNode(t, g, 12, 0)

	t.Run("edge to island", func(t *testing.T) {
		path, ok := p.FindPath(edge.Pos, island.Pos)
		if !ok {
			t.Fatalf("expected the jump to be used instead of failing")
		}
		if path.Len() != 2 {
			t.Fatalf("expected 2 waypoints, got %d", path.Len())
		}
		if first, _ := path.At(0); first.Node != edge || first.Via != None {
			t.Fatalf("expected path to start at the edge with no connection, got %v via %v", first.Node.Cell, first.Via)
		}
		tr := path.Transitions()
		if len(tr) != 1 || tr[0] != Jump {
			t.Fatalf("expected a single jump transition, got %v", tr)
		}
	})

	t.Run("leftmost to island", func(t *testing.T) {
		path, ok := p.FindPath(mustNode(t, g, 0, 0).Pos, island.Pos)
		if !ok {
			t.Fatalf("expected a path")
		}
		tr := path.Transitions()
		for i, c := range tr[:len(tr)-1] {
			if c != Walk {
				t.Fatalf("expected walk at step %d, got %v", i, c)
			}
		}
		if tr[len(tr)-1] != Jump {
			t.Fatalf("expected the final step to be a jump, got %v", tr[len(tr)-1])
		}
		if path.Last() != island {
			t.Fatalf("expected to end on the island")
		}
	})
}

func TestFindPathDisconnected(t *testing.T) {
	g := buildArt(t, `
		...........
		...........
		...........
		###.....###
	`)
	p := newPlanner(t, g)
	path, ok := p.FindPath(mustNode(t, g, 0, 0).Pos, mustNode(t, g, 10, 0).Pos)
	if ok || !path.Empty() {
		t.Fatalf("expected no path between disconnected regions, got %d waypoints", path.Len())
	}
}

func TestFindPathUnresolved(t *testing.T) {
	g := buildArt(t, gapArt)
	p := newPlanner(t, g, WithMaxSnapDistance(1))
	if _, ok := p.FindPath(cp.Vector{X: 2.5, Y: 40}, mustNode(t, g, 3, 0).Pos); ok {
		t.Fatalf("expected a start far from every node to fail")
	}
}

func TestFindPathPrefersCheaperConnections(t *testing.T) {
	g := buildArt(t, `
		...........
		...........
		...........
		..../##.###
		###########
	`)
	p := newPlanner(t, g)

	path, ok := p.FindPath(mustNode(t, g, 6, 1).Pos, mustNode(t, g, 8, 1).Pos)
	if !ok {
		t.Fatalf("expected a path over the pit")
	}
	// jumping straight over the pit is cheaper than falling in and jumping out
	if tr := path.Transitions(); len(tr) != 1 || tr[0] != Jump {
		t.Fatalf("expected one jump, got %v", tr)
	}

	path, ok = p.FindPath(mustNode(t, g, 0, 0).Pos, mustNode(t, g, 5, 1).Pos)
	if !ok {
		t.Fatalf("expected a path up the slope")
	}
	for i, c := range path.Transitions() {
		if c != Walk {
			t.Fatalf("expected to walk up the slope, step %d was %v", i, c)
		}
	}
}

func TestCostsAdmissible(t *testing.T) {
	c := DefaultCosts()
	if got := c.minMultiplier(); got > c.Walk {
		t.Fatalf("heuristic scale %.2f exceeds the cheapest multiplier", got)
	}
	zero := Costs{}.withDefaults()
	if zero != DefaultCosts() {
		t.Fatalf("expected zero costs to take defaults, got %+v", zero)
	}
	up := c.Cost(Connection{Type: Walk, Distance: 2, Rise: 1})
	flat := c.Cost(Connection{Type: Walk, Distance: 2})
	if up <= flat {
		t.Fatalf("expected uphill walking to cost more: %.2f vs %.2f", up, flat)
	}
}

func TestPlannerMetrics(t *testing.T) {
	g := buildArt(t, gapArt)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	p := newPlanner(t, g, WithMetrics(m))

	p.FindPath(mustNode(t, g, 0, 0).Pos, mustNode(t, g, 12, 0).Pos)
	p.FindPath(mustNode(t, g, 0, 0).Pos, cp.Vector{X: 0, Y: 100})

	if got := testutil.ToFloat64(m.Searches.WithLabelValues("sync", "found")); got != 1 {
		t.Fatalf("expected 1 found search, got %v", got)
	}
	if got := testutil.ToFloat64(m.Searches.WithLabelValues("sync", "unresolved")); got != 1 {
		t.Fatalf("expected 1 unresolved search, got %v", got)
	}
	if n, err := testutil.GatherAndCount(reg, "navkit_planner_search_duration_seconds"); err != nil || n != 1 {
		t.Fatalf("expected one duration series, got %d (%v)", n, err)
	}
}

func TestClosedPlanner(t *testing.T) {
	g := buildArt(t, gapArt)
	p, err := NewPlanner(g, DefaultCosts())
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	p.Close()

	pos := mustNode(t, g, 0, 0).Pos
	if _, ok := p.FindPath(pos, pos); ok {
		t.Fatalf("expected a closed planner to refuse searches")
	}
	if _, ok := p.NewQuery().Request(pos, pos); ok {
		t.Fatalf("expected a closed planner to refuse async requests")
	}
}
