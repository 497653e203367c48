package agent

import (
	"errors"
	"log"
	"math"

	"github.com/google/uuid"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
	"github.com/milk9111/navkit/nav"
)

var (
	ErrNilMover   = errors.New("agent: nil mover")
	ErrNilPlanner = errors.New("agent: nil planner")
)

// Body is the movement surface an agent drives. *physics.Mover satisfies it.
type Body interface {
	Position() cp.Vector
	Velocity() cp.Vector
	SetVelocity(v cp.Vector)
	Move(d cp.Vector)
	IsGrounded() bool
	PassThrough()
	IsPassingThrough() bool
}

// Agent follows planned paths by steering a Body. Tick must run before the body's own tick in
// the same frame. An Agent is not safe for concurrent use.
type Agent struct {
	id      uuid.UUID
	body    Body
	planner *nav.Planner
	query   *nav.Query
	cfg     Config

	state  State
	path   nav.Path
	cursor int

	goal    cp.Vector
	hasGoal bool
	async   bool
	queued  bool

	jump jumpState
	miss landingMiss

	stuckTimer float64
	stuckRef   cp.Vector

	stats Stats
}

func New(body Body, planner *nav.Planner, cfg Config) (*Agent, error) {
	if body == nil {
		return nil, ErrNilMover
	}
	if planner == nil {
		return nil, ErrNilPlanner
	}
	cfg = cfg.withDefaults(planner.Graph().CellSize())
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Agent{
		id:      uuid.New(),
		body:    body,
		planner: planner,
		cfg:     cfg,
		state:   Idle,
	}, nil
}

func (a *Agent) ID() string { return a.id.String() }

func (a *Agent) State() State { return a.state }

func (a *Agent) Path() nav.Path { return a.path }

// Cursor is the index of the waypoint the agent is heading for.
func (a *Agent) Cursor() int { return a.cursor }

func (a *Agent) Stats() Stats { return a.stats }

func (a *Agent) Goal() (cp.Vector, bool) { return a.goal, a.hasGoal }

func (a *Agent) Config() Config { return a.cfg }

// IsFollowing reports whether the agent is moving along a path.
func (a *Agent) IsFollowing() bool {
	return a.state == Moving || a.state == Jumping
}

// IsPathReady reports whether a path is adopted and no async search is outstanding.
func (a *Agent) IsPathReady() bool {
	if a.path.Empty() || a.queued {
		return false
	}
	return a.query == nil || !a.query.Pending()
}

// PassThrough drops the body through the one-way platform it stands on.
func (a *Agent) PassThrough() {
	a.body.PassThrough()
}

// SetDestination plans synchronously and starts following the result. It reports whether a path
// was found; without one the agent is Stopped.
func (a *Agent) SetDestination(target cp.Vector) bool {
	a.goal, a.hasGoal, a.async = target, true, false
	a.miss = landingMiss{}
	a.cancelAsync()
	return a.planSync()
}

// SetDestinationAsync queues a background search. The current path is dropped and the result is
// adopted on a later Tick.
func (a *Agent) SetDestinationAsync(target cp.Vector) {
	a.goal, a.hasGoal, a.async = target, true, true
	a.miss = landingMiss{}
	a.cancelAsync()
	a.clearPath(Stopped)
	a.requestAsync()
}

// Stop halts the agent and forgets its destination.
func (a *Agent) Stop() {
	a.hasGoal = false
	a.cancelAsync()
	a.clearPath(Stopped)
	v := a.body.Velocity()
	a.body.SetVelocity(cp.Vector{X: 0, Y: v.Y})
}

// Tick advances the agent by dt seconds.
func (a *Agent) Tick(dt float64) {
	if a.state == Idle || dt <= 0 {
		return
	}

	a.pollAsync()

	if a.path.Empty() || a.cursor >= a.path.Len() {
		a.halt()
		return
	}

	if a.checkStuck(dt) {
		return
	}

	switch a.state {
	case Jumping:
		a.tickJump(dt)
	case Moving:
		a.tickMove(dt)
	}
}

func (a *Agent) planSync() bool {
	path, ok := a.planner.FindPath(a.body.Position(), a.goal)
	a.stats.Replans++
	if !ok {
		log.Printf("agent %s: no path to (%.2f, %.2f)", a.id, a.goal.X, a.goal.Y)
		a.clearPath(Stopped)
		return false
	}
	a.adopt(path)
	return true
}

func (a *Agent) requestAsync() {
	if a.query == nil {
		a.query = a.planner.NewQuery()
	}
	if _, ok := a.query.Request(a.body.Position(), a.goal); !ok {
		a.queued = true
		return
	}
	a.queued = false
	a.stats.Replans++
	a.stats.AsyncRequests++
}

func (a *Agent) cancelAsync() {
	a.queued = false
	if a.query != nil {
		a.query.Invalidate()
	}
}

func (a *Agent) pollAsync() {
	if a.query == nil {
		return
	}
	if r, ok := a.query.Poll(); ok {
		if r.Found {
			a.adopt(r.Path)
		} else {
			log.Printf("agent %s: async search %d failed: %v", a.id, r.Seq, r.Err)
			a.clearPath(Stopped)
		}
	}
	if a.queued && a.hasGoal && !a.query.Pending() {
		a.requestAsync()
	}
}

// replan asks for a fresh path to the current goal in the mode of the original request.
func (a *Agent) replan() {
	if !a.hasGoal {
		a.clearPath(Stopped)
		return
	}
	if a.async {
		a.cancelAsync()
		a.clearPath(Stopped)
		a.requestAsync()
		return
	}
	a.planSync()
}

// adopt swaps in a new path with the cursor and motion state reset together.
func (a *Agent) adopt(p nav.Path) {
	a.path = p
	a.cursor = 0
	a.state = Moving
	a.jump = jumpState{}
	a.resetStuck()
	a.stats.PathsAdopted++
}

func (a *Agent) clearPath(s State) {
	a.path = nav.Path{}
	a.cursor = 0
	a.state = s
	a.jump = jumpState{}
}

func (a *Agent) halt() {
	if a.state == Moving || a.state == Jumping {
		v := a.body.Velocity()
		a.body.SetVelocity(cp.Vector{X: 0, Y: v.Y})
	}
	a.state = Stopped
}

func (a *Agent) resetStuck() {
	a.stuckTimer = 0
	a.stuckRef = a.body.Position()
}

// checkStuck samples progress once per StuckInterval and replans at most once per sample.
func (a *Agent) checkStuck(dt float64) bool {
	if !a.IsFollowing() {
		return false
	}
	a.stuckTimer += dt
	if a.stuckTimer < a.cfg.StuckInterval {
		return false
	}
	pos := a.body.Position()
	moved := pos.Distance(a.stuckRef)
	a.stuckTimer = 0
	a.stuckRef = pos
	if moved >= a.cfg.StuckDistance {
		return false
	}
	log.Printf("agent %s: stuck at (%.2f, %.2f), replanning", a.id, pos.X, pos.Y)
	a.stats.StuckReplans++
	a.replan()
	a.stuckRef = pos
	a.stuckTimer = 0
	return true
}

func (a *Agent) target() (nav.Waypoint, bool) {
	return a.path.At(a.cursor)
}

// tickMove walks toward the current waypoint and advances once it is reached.
func (a *Agent) tickMove(dt float64) {
	w, ok := a.target()
	if !ok {
		a.halt()
		return
	}
	pos := a.body.Position()
	vel := a.body.Velocity()
	dx := w.Node.Pos.X - pos.X
	dy := w.Node.Pos.Y - pos.Y

	if math.Abs(dx) <= a.cfg.ArriveDistance && math.Abs(dy) <= a.cfg.CellSize/2 {
		a.advance(dt)
		return
	}
	if !a.body.IsGrounded() {
		return
	}
	a.body.SetVelocity(cp.Vector{X: clampStep(common.Sign(dx)*a.cfg.Speed, dx, dt), Y: vel.Y})
}

// advance moves the cursor and sets up traversal of the connection that leads to the new waypoint.
func (a *Agent) advance(dt float64) {
	prev, _ := a.target()
	a.cursor++
	next, ok := a.target()
	if !ok {
		a.halt()
		return
	}
	if !next.Via.Airborne() {
		a.state = Moving
		return
	}
	a.launch(prev.Node, next, dt)
	a.state = Jumping
	a.stats.Jumps++
}

// clampStep limits v so a step of v*dt does not pass a remaining distance d.
func clampStep(v, d, dt float64) float64 {
	if v*d <= 0 {
		return 0
	}
	if math.Abs(v*dt) > math.Abs(d) {
		return d / dt
	}
	return v
}
