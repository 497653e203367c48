package agent

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/nav"
	"github.com/milk9111/navkit/physics"
	"github.com/milk9111/navkit/tilemap"
)

const dt = 1.0 / 60

const gapArt = `
	.............
	.............
	.............
	##########..#
`

const oneWayArt = `
	........
	........
	........
	..===...
	........
	........
	########
`

type world struct {
	mover   *physics.Mover
	planner *nav.Planner
	agent   *Agent
}

func newWorld(t *testing.T, art string, feet cp.Vector) *world {
	t.Helper()
	m := tilemap.MustParse(art, 1)
	q, err := physics.NewGridQuery(m)
	if err != nil {
		t.Fatalf("NewGridQuery: %v", err)
	}
	b := &nav.Builder{Map: m, Query: q, Profile: nav.ActorProfile{
		Height: 1.6, Width: 0.8, JumpHeight: 3, MaxJumpDistance: 4, MaxFallHeight: 6,
	}}
	g, err := b.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	p, err := nav.NewPlanner(g, nav.DefaultCosts())
	if err != nil {
		t.Fatalf("NewPlanner: %v", err)
	}
	t.Cleanup(p.Close)

	cfg := physics.DefaultConfig(1)
	cfg.Gravity = -30
	mv, err := physics.NewMover(q, cfg, feet)
	if err != nil {
		t.Fatalf("NewMover: %v", err)
	}
	a, err := New(mv, p, DefaultConfig(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &world{mover: mv, planner: p, agent: a}
}

func (w *world) step() {
	w.agent.Tick(dt)
	w.mover.Tick(dt)
}

func TestNewValidation(t *testing.T) {
	w := newWorld(t, gapArt, cp.Vector{X: 1.5, Y: 1})

	cases := []struct {
		name    string
		body    Body
		planner *nav.Planner
		cfg     Config
		want    error
	}{
		{"nil body", nil, w.planner, Config{}, ErrNilMover},
		{"nil planner", w.mover, nil, Config{}, ErrNilPlanner},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := New(c.body, c.planner, c.cfg); !errors.Is(err, c.want) {
				t.Fatalf("expected %v, got %v", c.want, err)
			}
		})
	}

	t.Run("negative speed", func(t *testing.T) {
		if _, err := New(w.mover, w.planner, Config{Speed: -1}); err == nil {
			t.Fatal("expected error for negative speed")
		}
	})

	t.Run("zero config takes defaults", func(t *testing.T) {
		a, err := New(w.mover, w.planner, Config{})
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if a.Config() != DefaultConfig(1) {
			t.Fatalf("expected defaults for cell size 1, got %+v", a.Config())
		}
		if a.State() != Idle {
			t.Fatalf("expected idle, got %v", a.State())
		}
	})
}

func TestWalkToGoal(t *testing.T) {
	w := newWorld(t, gapArt, cp.Vector{X: 1.5, Y: 1})
	goal := cp.Vector{X: 7.5, Y: 1}
	if !w.agent.SetDestination(goal) {
		t.Fatal("expected a path")
	}
	if !w.agent.IsPathReady() || !w.agent.IsFollowing() {
		t.Fatalf("expected a ready path, state %v", w.agent.State())
	}

	for i := 0; i < 180 && w.agent.State() != Stopped; i++ {
		w.step()
	}
	if w.agent.State() != Stopped {
		t.Fatalf("expected to arrive, state %v", w.agent.State())
	}
	if pos := w.mover.Position(); math.Abs(pos.X-goal.X) > 0.15 {
		t.Fatalf("expected to stop near x=%.2f, got %.3f", goal.X, pos.X)
	}
	if s := w.agent.Stats(); s.Jumps != 0 || s.PathsAdopted != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestJumpAcrossGap(t *testing.T) {
	w := newWorld(t, gapArt, cp.Vector{X: 9.5, Y: 1})
	goal := cp.Vector{X: 12.5, Y: 1}
	if !w.agent.SetDestination(goal) {
		t.Fatal("expected a path")
	}

	sawJump := false
	for i := 0; i < 180; i++ {
		w.step()
		if w.agent.State() == Jumping && !w.mover.IsGrounded() {
			sawJump = true
		}
		if w.mover.Position().Y < 0.5 {
			t.Fatalf("fell into the gap at tick %d: %v", i, w.mover.Position())
		}
		if w.agent.State() == Stopped {
			break
		}
	}
	if !sawJump {
		t.Fatal("expected an airborne jumping phase")
	}
	if w.agent.State() != Stopped {
		t.Fatalf("expected to land and stop, state %v", w.agent.State())
	}
	pos := w.mover.Position()
	if math.Abs(pos.X-goal.X) > w.agent.Config().ReachDistance || math.Abs(pos.Y-1) > 0.05 {
		t.Fatalf("expected to land on the island, got %v", pos)
	}
	if s := w.agent.Stats(); s.Jumps != 1 || s.LandingReplans != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestJumpAtHeightLimit(t *testing.T) {
	cases := []struct {
		name string
		art  string
		goal cp.Vector
	}{
		{"onto ledge", `
			........
			........
			........
			........
			....####
			....####
			....####
			########
		`, cp.Vector{X: 6.5, Y: 4}},
		{"up through one-way", `
			........
			........
			........
			........
			....===.
			........
			........
			########
		`, cp.Vector{X: 5.5, Y: 4}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := newWorld(t, c.art, cp.Vector{X: 1.5, Y: 1})
			if !w.agent.SetDestination(c.goal) {
				t.Fatal("expected a path")
			}
			transitions := w.agent.Path().Transitions()
			climbs := 0
			for _, via := range transitions {
				if via == nav.Jump || via == nav.TransparentJump {
					climbs++
				}
			}
			if climbs != 1 {
				t.Fatalf("expected one climbing jump, got %v", transitions)
			}

			for i := 0; i < 600 && w.agent.State() != Stopped; i++ {
				w.step()
			}
			if w.agent.State() != Stopped {
				t.Fatalf("expected to arrive, state %v at %v", w.agent.State(), w.mover.Position())
			}
			pos := w.mover.Position()
			if math.Abs(pos.X-c.goal.X) > 0.15 || math.Abs(pos.Y-c.goal.Y) > 0.05 {
				t.Fatalf("expected to stop near %v, got %v", c.goal, pos)
			}
			if s := w.agent.Stats(); s.Jumps != 1 || s.LandingReplans != 0 || s.Abandoned != 0 {
				t.Fatalf("unexpected stats %+v", s)
			}
		})
	}
}

func TestDropThroughPlatform(t *testing.T) {
	w := newWorld(t, oneWayArt, cp.Vector{X: 3.5, Y: 4})
	if !w.agent.SetDestination(cp.Vector{X: 3.5, Y: 1}) {
		t.Fatal("expected a path")
	}
	if got := w.agent.Path().Transitions(); len(got) != 1 || got[0] != nav.TransparentFall {
		t.Fatalf("expected a single transparent fall, got %v", got)
	}

	w.agent.Tick(dt)
	if !w.mover.IsPassingThrough() {
		t.Fatal("expected pass-through after launch")
	}
	if w.agent.State() != Jumping {
		t.Fatalf("expected jumping, got %v", w.agent.State())
	}
	w.mover.Tick(dt)

	for i := 0; i < 120 && w.agent.State() != Stopped; i++ {
		w.step()
	}
	if w.agent.State() != Stopped {
		t.Fatalf("expected to land, state %v", w.agent.State())
	}
	if pos := w.mover.Position(); math.Abs(pos.Y-1) > 0.05 {
		t.Fatalf("expected to land on the floor, got %v", pos)
	}
	if w.mover.IsPassingThrough() {
		t.Fatal("expected pass-through to clear after separating from the platform")
	}
}

func TestNoPathStops(t *testing.T) {
	w := newWorld(t, `
		###.........###
	`, cp.Vector{X: 1.5, Y: 1})
	if w.agent.SetDestination(cp.Vector{X: 13.5, Y: 1}) {
		t.Fatal("expected no path across the pit")
	}
	if w.agent.State() != Stopped || !w.agent.Path().Empty() {
		t.Fatalf("expected stopped with no path, got %v", w.agent.State())
	}
	if w.agent.IsPathReady() {
		t.Fatal("expected no ready path")
	}
}

func TestStopClearsPath(t *testing.T) {
	w := newWorld(t, gapArt, cp.Vector{X: 1.5, Y: 1})
	w.agent.SetDestination(cp.Vector{X: 7.5, Y: 1})
	for i := 0; i < 10; i++ {
		w.step()
	}
	w.agent.Stop()
	if w.agent.State() != Stopped || !w.agent.Path().Empty() {
		t.Fatalf("expected stopped with no path, got %v", w.agent.State())
	}
	if _, ok := w.agent.Goal(); ok {
		t.Fatal("expected goal cleared")
	}
	if v := w.mover.Velocity(); v.X != 0 {
		t.Fatalf("expected zero horizontal velocity, got %v", v)
	}
}

func TestAsyncDestination(t *testing.T) {
	w := newWorld(t, gapArt, cp.Vector{X: 1.5, Y: 1})
	goal := cp.Vector{X: 7.5, Y: 1}
	w.agent.SetDestinationAsync(goal)
	if w.agent.IsPathReady() {
		t.Fatal("expected path not ready right after the request")
	}

	deadline := time.Now().Add(2 * time.Second)
	for w.agent.Stats().PathsAdopted == 0 {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the async path")
		}
		time.Sleep(time.Millisecond)
		w.agent.Tick(dt)
	}
	if w.agent.State() != Moving {
		t.Fatalf("expected to follow the adopted path, got %v", w.agent.State())
	}

	arrived := false
	for i := 0; i < 600 && !arrived; i++ {
		w.step()
		arrived = w.agent.Stats().PathsAdopted > 0 && w.agent.State() == Stopped
	}
	if !arrived {
		t.Fatalf("timed out waiting for the async path, state %v", w.agent.State())
	}
	if pos := w.mover.Position(); math.Abs(pos.X-goal.X) > 0.15 {
		t.Fatalf("expected to stop near x=%.2f, got %.3f", goal.X, pos.X)
	}
	s := w.agent.Stats()
	if s.AsyncRequests != 1 || s.PathsAdopted != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

// stuckBody never moves, whatever velocity it is given.
type stuckBody struct {
	pos cp.Vector
	vel cp.Vector
}

func (b *stuckBody) Position() cp.Vector     { return b.pos }
func (b *stuckBody) Velocity() cp.Vector     { return b.vel }
func (b *stuckBody) SetVelocity(v cp.Vector) { b.vel = v }
func (b *stuckBody) Move(cp.Vector)          {}
func (b *stuckBody) IsGrounded() bool        { return true }
func (b *stuckBody) PassThrough()            {}
func (b *stuckBody) IsPassingThrough() bool  { return false }

func TestStuckReplansOncePerInterval(t *testing.T) {
	w := newWorld(t, gapArt, cp.Vector{X: 1.5, Y: 1})
	body := &stuckBody{pos: cp.Vector{X: 1.5, Y: 1}}
	a, err := New(body, w.planner, DefaultConfig(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !a.SetDestination(cp.Vector{X: 7.5, Y: 1}) {
		t.Fatal("expected a path")
	}

	// 3.5 seconds
	for i := 0; i < 210; i++ {
		a.Tick(dt)
	}
	s := a.Stats()
	if s.StuckReplans != 3 {
		t.Fatalf("expected 3 stuck replans, got %d", s.StuckReplans)
	}
	if s.Replans != 4 {
		t.Fatalf("expected the initial plan plus 3 replans, got %d", s.Replans)
	}
	if !a.IsFollowing() {
		t.Fatalf("expected to keep following, state %v", a.State())
	}
}

func waitForPaths(t *testing.T, a *Agent, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for a.Stats().PathsAdopted < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for path %d", n)
		}
		time.Sleep(time.Millisecond)
		a.Tick(dt)
	}
}

func TestStuckReplansAsync(t *testing.T) {
	w := newWorld(t, gapArt, cp.Vector{X: 1.5, Y: 1})
	body := &stuckBody{pos: cp.Vector{X: 1.5, Y: 1}}
	a, err := New(body, w.planner, DefaultConfig(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.SetDestinationAsync(cp.Vector{X: 7.5, Y: 1})
	waitForPaths(t, a, 1)

	for round := 1; round <= 3; round++ {
		// a little over one stuck interval
		for i := 0; i < 61; i++ {
			a.Tick(dt)
		}
		if s := a.Stats(); s.StuckReplans != round {
			t.Fatalf("round %d: expected %d stuck replans, got %d", round, round, s.StuckReplans)
		}
		waitForPaths(t, a, round+1)
	}

	s := a.Stats()
	if s.AsyncRequests != 4 || s.Replans != 4 {
		t.Fatalf("expected every replan to go through the async query, got %+v", s)
	}
	if !a.IsFollowing() {
		t.Fatalf("expected to keep following, state %v", a.State())
	}
}

// groundedBody never leaves the ground, so every jump lands where it started.
type groundedBody struct {
	stuckBody
}

func (b *groundedBody) SetVelocity(v cp.Vector) { b.vel = cp.Vector{X: v.X} }

func TestRepeatedMissedLandingsAbandonGoal(t *testing.T) {
	w := newWorld(t, gapArt, cp.Vector{X: 9.5, Y: 1})
	body := &groundedBody{stuckBody{pos: cp.Vector{X: 9.5, Y: 1}}}
	a, err := New(body, w.planner, DefaultConfig(1))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !a.SetDestination(cp.Vector{X: 12.5, Y: 1}) {
		t.Fatal("expected a path")
	}

	for i := 0; i < 120 && a.State() != Stopped; i++ {
		a.Tick(dt)
	}
	if a.State() != Stopped {
		t.Fatalf("expected to give up, state %v", a.State())
	}
	if _, ok := a.Goal(); ok {
		t.Fatal("expected the goal to be dropped")
	}
	s := a.Stats()
	if s.Abandoned != 1 || s.LandingReplans != maxLandingMisses-1 || s.Jumps != maxLandingMisses {
		t.Fatalf("unexpected stats %+v", s)
	}
	if s.StuckReplans != 0 {
		t.Fatalf("expected landing misses to resolve before stuck detection, got %+v", s)
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{Idle: "idle", Stopped: "stopped", Moving: "moving", Jumping: "jumping", State(9): "unknown"}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}
