package agent

import (
	"log"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
	"github.com/milk9111/navkit/nav"
)

// landingGrace is how long a launch may stay grounded before it counts as a landing.
const landingGrace = 0.25

// maxLandingMisses is how many landings in a row off the same connection abandon the goal.
const maxLandingMisses = 3

type jumpState struct {
	via      nav.ConnectionType
	dir      float64
	scale    float64
	shortHop bool
	apex     bool
	airborne bool
	elapsed  float64
}

// landingMiss tracks consecutive off-target landings for one connection.
type landingMiss struct {
	from, to int
	count    int
}

// launch sets the take-off velocity for an airborne connection.
func (a *Agent) launch(from *nav.Node, to nav.Waypoint, dt float64) {
	cfg := a.cfg
	g := math.Abs(cfg.Gravity)
	pos := a.body.Position()
	vel := a.body.Velocity()
	dx := to.Node.Pos.X - pos.X
	dy := to.Node.Pos.Y - pos.Y
	span := math.Abs(dx)

	j := jumpState{via: to.Via, dir: common.Sign(dx), shortHop: span < cfg.ShortHopDistance}

	var vy float64
	switch to.Via {
	case nav.TransparentFall:
		a.body.PassThrough()
		a.jump = j
		a.body.SetVelocity(cp.Vector{X: 0, Y: math.Min(vel.Y, 0)})
		return
	case nav.Fall:
		vy = cfg.jumpSpeed(dt) * cfg.FallImpulseScale
		j.scale = 1
	default:
		if dy > cfg.ReachDistance/2 {
			vy = cfg.launchSpeed(math.Min(dy, cfg.JumpHeight)+cfg.JumpClearance, dt)
		} else {
			ratio := math.Max(span/cfg.MaxJumpDistance, cfg.MinJumpScale)
			vy = cfg.jumpSpeed(dt) * math.Min(ratio, 1)
		}
		j.scale = airSpeedScale(vy, dy, span, g, cfg)
	}
	if from != nil && to.Via == nav.TransparentJump && from.Is(nav.Transparent) {
		// launching from one one-way platform up through another
		a.body.PassThrough()
	}

	a.jump = j
	vx := 0.0
	if !j.shortHop {
		vx = clampStep(j.dir*cfg.Speed*j.scale, dx, 1)
	}
	a.body.SetVelocity(cp.Vector{X: vx, Y: vy})
}

// airSpeedScale picks the horizontal speed, as a multiple of Speed, that covers span during the
// time the arc takes to come back down to a target dy above the launch point.
func airSpeedScale(vy, dy, span, g float64, cfg Config) float64 {
	disc := vy*vy - 2*g*dy
	if disc < 0 {
		disc = 0
	}
	t := (vy + math.Sqrt(disc)) / g
	if t <= common.Epsilon {
		return 1
	}
	return common.Clamp(span/t/cfg.Speed, 0, cfg.MaxAirSpeedScale)
}

// tickJump holds the horizontal air speed fixed at launch and lets gravity shape the arc.
func (a *Agent) tickJump(dt float64) {
	w, ok := a.target()
	if !ok {
		a.halt()
		return
	}
	j := &a.jump
	j.elapsed += dt

	pos := a.body.Position()
	vel := a.body.Velocity()
	grounded := a.body.IsGrounded()
	if !grounded {
		j.airborne = true
	}

	target := w.Node.Pos
	dx := target.X - pos.X
	reach := a.cfg.ReachDistance
	landed := grounded && vel.Y <= 0 && (j.airborne || j.elapsed > landingGrace)

	if landed {
		if pos.DistanceSq(target) < reach*reach && math.Abs(dx) < reach {
			a.miss = landingMiss{}
			a.advance(dt)
			return
		}
		if a.missedLanding(w) {
			log.Printf("agent %s: missed the landing at node %d %d times, giving up", a.id, w.Node.ID, a.miss.count)
			a.stats.Abandoned++
			a.Stop()
			return
		}
		log.Printf("agent %s: landed off target at (%.2f, %.2f), replanning", a.id, pos.X, pos.Y)
		a.stats.LandingReplans++
		a.replan()
		return
	}

	vx := j.dir * a.cfg.Speed * j.scale
	switch {
	case !j.shortHop:
		// catch up after a wall or ledge lip held the body back
		if c := a.shortHopSpeed(pos, target, vel.Y); c*vx > 0 && math.Abs(c) > math.Abs(vx) {
			vx = c
		}
	case !j.apex && vel.Y > 0:
		vx = 0
	default:
		j.apex = true
		vx = a.shortHopSpeed(pos, target, vel.Y)
	}
	a.body.SetVelocity(cp.Vector{X: clampStep(vx, dx, dt), Y: vel.Y})
}

// missedLanding records an off-target landing for the connection into w and reports whether
// the agent has now missed it too often.
func (a *Agent) missedLanding(w nav.Waypoint) bool {
	from := -1
	if prev, ok := a.path.At(a.cursor - 1); ok {
		from = prev.Node.ID
	}
	if a.miss.count > 0 && a.miss.from == from && a.miss.to == w.Node.ID {
		a.miss.count++
	} else {
		a.miss = landingMiss{from: from, to: w.Node.ID, count: 1}
	}
	return a.miss.count >= maxLandingMisses
}

// shortHopSpeed is the horizontal speed that lands on target from the apex of a short hop.
func (a *Agent) shortHopSpeed(pos, target cp.Vector, vy float64) float64 {
	g := math.Abs(a.cfg.Gravity)
	dx := target.X - pos.X
	h := pos.Y - target.Y
	disc := vy*vy + 2*g*h
	t := 0.0
	if disc > 0 {
		t = (vy + math.Sqrt(disc)) / g
	}
	limit := a.cfg.Speed * a.cfg.MaxAirSpeedScale
	if t <= common.Epsilon {
		return common.Clamp(dx, -limit, limit)
	}
	return common.Clamp(dx/t, -limit, limit)
}
