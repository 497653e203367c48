package sim

import (
	"errors"
	"fmt"
	"log"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/agent"
	"github.com/milk9111/navkit/common"
	"github.com/milk9111/navkit/nav"
	"github.com/milk9111/navkit/physics"
	"github.com/milk9111/navkit/prefabs"
	"github.com/milk9111/navkit/tilemap"
)

var ErrNilMap = errors.New("sim: nil map")

// Options configures a World. Zero specs use the package defaults.
type Options struct {
	Actor prefabs.ActorSpec
	Nav   prefabs.NavSpec
	// UseSpace selects the chipmunk-backed spatial query instead of the tile grid.
	UseSpace bool
	Metrics  *nav.Metrics
}

// Actor pairs an agent with the body it steers.
type Actor struct {
	Name  string
	Mover *physics.Mover
	Agent *agent.Agent
	Spec  prefabs.ActorSpec

	cell        float64
	lastState   agent.State
	lastReplans int
}

// World owns a level, its navigation graph, and the actors moving through it.
type World struct {
	Map     *tilemap.Map
	Query   physics.SpatialQuery
	Graph   *nav.Graph
	Planner *nav.Planner

	opts      Options
	actors    []*Actor
	scheduler *Scheduler
	events    EventQueue
	tick      uint64
}

func NewWorld(m *tilemap.Map, opts Options) (*World, error) {
	if m == nil {
		return nil, ErrNilMap
	}
	q, g, p, err := build(m, opts)
	if err != nil {
		return nil, err
	}
	return &World{
		Map:       m,
		Query:     q,
		Graph:     g,
		Planner:   p,
		opts:      opts,
		scheduler: DefaultScheduler(),
	}, nil
}

func build(m *tilemap.Map, o Options) (physics.SpatialQuery, *nav.Graph, *nav.Planner, error) {
	var (
		q   physics.SpatialQuery
		err error
	)
	if o.UseSpace {
		q, err = physics.NewSpaceQuery(m)
	} else {
		q, err = physics.NewGridQuery(m)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sim: build query: %w", err)
	}

	b := &nav.Builder{Map: m, Query: q, Profile: o.Actor.Profile(m.CellSize)}
	o.Nav.Configure(b)
	g, err := b.Generate()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sim: generate graph: %w", err)
	}

	opts := o.Nav.PlannerOptions(m.CellSize)
	if o.Metrics != nil {
		opts = append(opts, nav.WithMetrics(o.Metrics))
	}
	p, err := nav.NewPlanner(g, o.Nav.PlannerCosts(), opts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("sim: planner: %w", err)
	}
	return q, g, p, nil
}

// SetScheduler replaces the system order.
func (w *World) SetScheduler(s *Scheduler) {
	if s != nil {
		w.scheduler = s
	}
}

// Spawn places a new actor with its feet on the bottom-center of cell.
func (w *World) Spawn(name string, cell common.Cell, spec prefabs.ActorSpec) (*Actor, error) {
	a, err := newActor(w.Map, w.Query, w.Planner, name, cell, spec)
	if err != nil {
		return nil, err
	}
	w.actors = append(w.actors, a)
	return a, nil
}

func newActor(m *tilemap.Map, q physics.SpatialQuery, p *nav.Planner, name string, cell common.Cell, spec prefabs.ActorSpec) (*Actor, error) {
	size := m.CellSize
	feet := cellFeet(m, cell)
	mv, err := physics.NewMover(q, spec.MoverConfig(size), feet)
	if err != nil {
		return nil, fmt.Errorf("sim: spawn %s: %w", name, err)
	}
	ag, err := agent.New(mv, p, spec.AgentConfig(size))
	if err != nil {
		return nil, fmt.Errorf("sim: spawn %s: %w", name, err)
	}
	log.Printf("sim: spawned %s (agent %s) at (%.1f, %.1f)", name, ag.ID(), feet.X, feet.Y)
	return &Actor{Name: name, Mover: mv, Agent: ag, Spec: spec, cell: size, lastState: ag.State()}, nil
}

// CellFeet is the bottom-center of a cell in world space.
func (w *World) CellFeet(c common.Cell) cp.Vector {
	return cellFeet(w.Map, c)
}

func cellFeet(m *tilemap.Map, c common.Cell) cp.Vector {
	p := m.CellToWorld(c)
	return cp.Vector{X: p.X + m.CellSize/2, Y: p.Y}
}

func (w *World) Actors() []*Actor {
	return append([]*Actor(nil), w.actors...)
}

func (w *World) Actor(name string) (*Actor, bool) {
	for _, a := range w.actors {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

func (w *World) Tick() uint64 { return w.tick }

func (w *World) Events() *EventQueue { return &w.events }

// Step runs every system once.
func (w *World) Step(dt float64) {
	w.tick++
	w.scheduler.Update(w, dt)
}

// Rebuild swaps in a new map and options, regenerates the graph and respawns every actor by name
// at the map's spawn cell using opts.Actor. Destinations are dropped. On error the world is left
// unchanged.
func (w *World) Rebuild(m *tilemap.Map, opts Options) error {
	if m == nil {
		return ErrNilMap
	}
	q, g, p, err := build(m, opts)
	if err != nil {
		return err
	}
	actors := make([]*Actor, 0, len(w.actors))
	for _, a := range w.actors {
		na, err := newActor(m, q, p, a.Name, m.Spawn, opts.Actor)
		if err != nil {
			p.Close()
			return err
		}
		actors = append(actors, na)
	}

	w.Planner.Close()
	w.Map, w.opts = m, opts
	w.Query, w.Graph, w.Planner = q, g, p
	w.actors = actors
	log.Printf("sim: rebuilt world with graph %d (%d nodes)", w.Graph.Generation(), w.Graph.Len())
	return nil
}

func (w *World) Close() {
	if w.Planner != nil {
		w.Planner.Close()
	}
}
