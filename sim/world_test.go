package sim

import (
	"errors"
	"slices"
	"testing"

	"github.com/milk9111/navkit/agent"
	"github.com/milk9111/navkit/common"
	"github.com/milk9111/navkit/prefabs"
	"github.com/milk9111/navkit/tilemap"
)

const dt = 1.0 / 60

const gapArt = `
	.............
	.............
	.............
	##########..#
`

func newWorld(t *testing.T, art string, useSpace bool) *World {
	t.Helper()
	w, err := NewWorld(tilemap.MustParse(art, 1), Options{UseSpace: useSpace})
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	t.Cleanup(w.Close)
	return w
}

func TestNewWorldNilMap(t *testing.T) {
	if _, err := NewWorld(nil, Options{}); !errors.Is(err, ErrNilMap) {
		t.Fatalf("expected ErrNilMap, got %v", err)
	}
}

func TestSchedulerOrder(t *testing.T) {
	var got []string
	record := func(name string) System {
		return SystemFunc(func(*World, float64) { got = append(got, name) })
	}
	s := NewScheduler(record("a"), record("b"))
	s.Add(nil)
	s.Add(record("c"))

	w := newWorld(t, gapArt, false)
	w.SetScheduler(s)
	w.Step(dt)
	w.Step(dt)

	want := []string{"a", "b", "c", "a", "b", "c"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if w.Tick() != 2 {
		t.Fatalf("expected tick 2, got %d", w.Tick())
	}
	if n := len(s.Systems()); n != 3 {
		t.Fatalf("expected 3 systems, got %d", n)
	}
}

func TestActorCrossesGap(t *testing.T) {
	cases := []struct {
		name     string
		useSpace bool
	}{
		{"grid", false},
		{"space", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := newWorld(t, gapArt, c.useSpace)
			a, err := w.Spawn("runner", common.Cell{X: 8, Y: 1}, prefabs.ActorSpec{})
			if err != nil {
				t.Fatalf("Spawn: %v", err)
			}
			if !a.Agent.SetDestination(w.CellFeet(common.Cell{X: 12, Y: 1})) {
				t.Fatal("expected a path across the gap")
			}

			var events []Event
			for i := 0; i < 300; i++ {
				w.Step(dt)
				events = append(events, w.Events().Drain()...)
				if a.Agent.State() == agent.Stopped {
					break
				}
			}
			if !a.arrived() {
				t.Fatalf("expected to arrive, feet at %v", a.Mover.Position())
			}
			last := events[len(events)-1]
			if last.Kind != EventArrived || last.Actor != "runner" {
				t.Fatalf("expected a final arrived event, got %+v", last)
			}
			sawJump := slices.ContainsFunc(events, func(e Event) bool {
				return e.Kind == EventStateChanged && e.To == agent.Jumping
			})
			if !sawJump {
				t.Fatalf("expected a jumping transition in %+v", events)
			}
		})
	}
}

func TestRebuildRespawns(t *testing.T) {
	w := newWorld(t, gapArt, false)
	if _, err := w.Spawn("runner", common.Cell{X: 1, Y: 1}, prefabs.ActorSpec{}); err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	gen := w.Graph.Generation()

	m := tilemap.MustParse(`
		.S..........
		............
		############
	`, 1)
	if err := w.Rebuild(m, Options{}); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if w.Graph.Generation() == gen {
		t.Fatal("expected a new graph generation")
	}
	a, ok := w.Actor("runner")
	if !ok {
		t.Fatal("expected runner respawned")
	}
	if got, want := a.Mover.Position(), w.CellFeet(common.Cell{X: 1, Y: 2}); got != want {
		t.Fatalf("expected respawn at %v, got %v", want, got)
	}
	if len(w.Actors()) != 1 {
		t.Fatalf("expected 1 actor, got %d", len(w.Actors()))
	}
	if err := w.Rebuild(nil, Options{}); !errors.Is(err, ErrNilMap) {
		t.Fatalf("expected ErrNilMap, got %v", err)
	}
}

func TestRebuildFailedSpawnKeepsWorld(t *testing.T) {
	w := newWorld(t, gapArt, false)
	runner, err := w.Spawn("runner", common.Cell{X: 1, Y: 1}, prefabs.ActorSpec{})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	prevMap, prevGraph := w.Map, w.Graph

	m := tilemap.MustParse(`
		.S..........
		............
		############
	`, 1)
	// the graph builds, but no agent can be made with a negative speed
	if err := w.Rebuild(m, Options{Actor: prefabs.ActorSpec{MoveSpeed: -1}}); err == nil {
		t.Fatal("expected the respawn to fail")
	}
	if w.Map != prevMap || w.Graph != prevGraph {
		t.Fatal("expected the previous map and graph to stay in place")
	}
	a, ok := w.Actor("runner")
	if !ok || a != runner || len(w.Actors()) != 1 {
		t.Fatalf("expected the original actor to survive, got %v", w.Actors())
	}
	if !a.Agent.SetDestination(w.CellFeet(common.Cell{X: 7, Y: 1})) {
		t.Fatal("expected the previous planner to keep serving paths")
	}
}
