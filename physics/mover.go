package physics

import (
	"errors"
	"fmt"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
)

// Config sizes the mover's collision box and ray fan. Lengths are world units, angles degrees.
type Config struct {
	Width  float64
	Height float64
	// SkinWidth is the inset the rays start from so they never begin inside a wall.
	SkinWidth      float64
	HorizontalRays int
	VerticalRays   int
	MaxSlopeAngle  float64

	Gravity      float64
	MaxFallSpeed float64

	// GroundProbe and WallProbe are how far past the body edge the idle probes reach.
	GroundProbe float64
	WallProbe   float64
	// PassThroughGrace clears pass-through mode if no one-way overlap is seen in time.
	PassThroughGrace float64
}

// DefaultConfig returns a mover sized for a one cell wide, two cell tall actor.
func DefaultConfig(cellSize float64) Config {
	if cellSize <= 0 {
		cellSize = common.TileSize
	}
	return Config{
		Width:            0.8 * cellSize,
		Height:           1.6 * cellSize,
		SkinWidth:        0.015 * cellSize,
		HorizontalRays:   4,
		VerticalRays:     4,
		MaxSlopeAngle:    60,
		Gravity:          -30 * cellSize,
		MaxFallSpeed:     25 * cellSize,
		PassThroughGrace: 0.5,
	}
}

func (c Config) withDefaults() Config {
	if c.SkinWidth <= 0 {
		c.SkinWidth = 0.015 * math.Min(c.Width, c.Height)
	}
	if c.MaxSlopeAngle <= 0 {
		c.MaxSlopeAngle = 60
	}
	if c.GroundProbe <= 0 {
		c.GroundProbe = c.SkinWidth
	}
	if c.WallProbe <= 0 {
		c.WallProbe = 2 * c.SkinWidth
	}
	if c.PassThroughGrace <= 0 {
		c.PassThroughGrace = 0.5
	}
	return c
}

func (c Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("physics: invalid body size %.3fx%.3f", c.Width, c.Height)
	}
	if c.HorizontalRays < 2 || c.VerticalRays < 2 {
		return errors.New("physics: ray counts must be at least 2")
	}
	if 2*c.SkinWidth >= c.Width || 2*c.SkinWidth >= c.Height {
		return fmt.Errorf("physics: skin width %.3f too large for body", c.SkinWidth)
	}
	return nil
}

// Mover is a kinematic, ray-based character controller. It owns its position and velocity and
// resolves motion against a SpatialQuery once per Tick. A Mover is not safe for concurrent use.
type Mover struct {
	q   SpatialQuery
	cfg Config

	pos     cp.Vector
	vel     cp.Vector
	pending cp.Vector
	gravity bool
	face    float64

	collisions CollisionInfo
	grounded   bool
	wallLeft   bool
	wallRight  bool

	passThrough bool
	passSeen    bool
	passTimer   float64

	lastMove cp.Vector
}

// NewMover places a mover with its feet at feet.
func NewMover(q SpatialQuery, cfg Config, feet cp.Vector) (*Mover, error) {
	if q == nil {
		return nil, ErrNilQuery
	}
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Mover{q: q, cfg: cfg, pos: feet, gravity: true, face: 1}, nil
}

func (m *Mover) Config() Config { return m.cfg }

// Move adds a displacement applied on the next Tick, on top of velocity.
func (m *Mover) Move(d cp.Vector) {
	m.pending = m.pending.Add(d)
}

func (m *Mover) SetVelocity(v cp.Vector) { m.vel = v }

func (m *Mover) Velocity() cp.Vector { return m.vel }

func (m *Mover) SetGravityEnabled(enabled bool) { m.gravity = enabled }

// Position returns the feet point.
func (m *Mover) Position() cp.Vector { return m.pos }

// SetPosition teleports the mover and clears any pending displacement.
func (m *Mover) SetPosition(feet cp.Vector) {
	m.pos = feet
	m.pending = cp.Vector{}
}

func (m *Mover) Bounds() common.Rect {
	return common.Rect{X: m.pos.X - m.cfg.Width/2, Y: m.pos.Y, Width: m.cfg.Width, Height: m.cfg.Height}
}

func (m *Mover) IsGrounded() bool { return m.grounded }

func (m *Mover) Collisions() CollisionInfo { return m.collisions }

func (m *Mover) IsFacingWallLeft() bool { return m.wallLeft }

func (m *Mover) IsFacingWallRight() bool { return m.wallRight }

// LastDisplacement is the displacement committed by the most recent Tick.
func (m *Mover) LastDisplacement() cp.Vector { return m.lastMove }

// PassThrough makes one-way platforms non-blocking until the body has overlapped one and
// separated from it again.
func (m *Mover) PassThrough() {
	m.passThrough = true
	m.passSeen = false
	m.passTimer = 0
}

func (m *Mover) IsPassingThrough() bool { return m.passThrough }

type rayOrigins struct {
	topLeft, topRight       cp.Vector
	bottomLeft, bottomRight cp.Vector
	hSpacing, vSpacing      float64
}

func (m *Mover) origins() rayOrigins {
	inner := m.Bounds().Inset(m.cfg.SkinWidth)
	return rayOrigins{
		topLeft:     cp.Vector{X: inner.MinX(), Y: inner.MaxY()},
		topRight:    cp.Vector{X: inner.MaxX(), Y: inner.MaxY()},
		bottomLeft:  cp.Vector{X: inner.MinX(), Y: inner.MinY()},
		bottomRight: cp.Vector{X: inner.MaxX(), Y: inner.MinY()},
		hSpacing:    inner.Height / float64(m.cfg.HorizontalRays-1),
		vSpacing:    inner.Width / float64(m.cfg.VerticalRays-1),
	}
}

// verticalMask is the layer set downward motion collides with.
func (m *Mover) verticalMask(dirY float64) Layer {
	if dirY < 0 && !m.passThrough {
		return MaskAll
	}
	return LayerGround
}

// Tick integrates gravity, resolves the accumulated displacement against the world and updates
// the contact state.
func (m *Mover) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	m.collisions.reset()

	if m.gravity {
		m.vel.Y += m.cfg.Gravity * dt
		if m.cfg.MaxFallSpeed > 0 && m.vel.Y < -m.cfg.MaxFallSpeed {
			m.vel.Y = -m.cfg.MaxFallSpeed
		}
	}

	move := m.pending.Add(m.vel.Mult(dt))
	m.pending = cp.Vector{}
	if move.X != 0 {
		m.face = common.Sign(move.X)
	}
	moveOld := move

	if math.Abs(move.X) > common.Epsilon && move.Y <= 0 {
		m.descendSlope(&move)
	}
	if math.Abs(move.X) > common.Epsilon {
		m.horizontalCollisions(&move, moveOld)
	}
	if move.Y != 0 {
		m.verticalCollisions(&move)
	}

	m.pos = m.pos.Add(move)
	m.lastMove = move

	m.updatePassThrough(dt)
	m.probeWalls()
	m.grounded = m.collisions.Below || m.collisions.DescendingSlope
	if !m.grounded && math.Abs(move.Y) <= common.Epsilon {
		m.grounded = m.probeGround()
	}

	c := m.collisions
	if m.grounded && m.vel.Y < 0 {
		m.vel.Y = 0
	}
	if c.Above && m.vel.Y > 0 {
		m.vel.Y = 0
	}
	if (c.Left && m.vel.X < 0) || (c.Right && m.vel.X > 0) {
		m.vel.X = 0
	}
}

func (m *Mover) horizontalCollisions(move *cp.Vector, moveOld cp.Vector) {
	c := &m.collisions
	o := m.origins()
	skin := m.cfg.SkinWidth
	dirX := common.Sign(move.X)
	rayLength := math.Abs(move.X) + skin

	for i := 0; i < m.cfg.HorizontalRays; i++ {
		origin := o.bottomLeft
		if dirX > 0 {
			origin = o.bottomRight
		}
		origin.Y += o.hSpacing * float64(i)

		hit, ok := m.q.Raycast(origin, cp.Vector{X: dirX, Y: 0}, rayLength, LayerGround)
		if !ok {
			continue
		}
		angle := SurfaceAngle(hit.Normal)

		if i == 0 && angle <= m.cfg.MaxSlopeAngle {
			if c.DescendingSlope {
				c.DescendingSlope = false
				*move = moveOld
			}
			toSlope := 0.0
			if angle != c.PreviousSlopeAngle {
				toSlope = hit.Distance - skin
				move.X -= toSlope * dirX
			}
			m.climbSlope(move, angle, hit.Normal)
			move.X += toSlope * dirX
		}

		if !c.ClimbingSlope || angle > m.cfg.MaxSlopeAngle {
			move.X = (hit.Distance - skin) * dirX
			rayLength = hit.Distance
			if c.ClimbingSlope {
				move.Y = math.Tan(c.SlopeAngle*math.Pi/180) * math.Abs(move.X)
			}
			c.Left = dirX < 0
			c.Right = dirX > 0
			if move.X == 0 {
				break
			}
		}
	}
}

func (m *Mover) climbSlope(move *cp.Vector, angle float64, normal cp.Vector) {
	rad := angle * math.Pi / 180
	dist := math.Abs(move.X)
	climbY := math.Sin(rad) * dist
	if move.Y > climbY {
		// already rising faster than the slope, e.g. mid jump
		return
	}
	move.Y = climbY
	move.X = math.Cos(rad) * dist * common.Sign(move.X)
	c := &m.collisions
	c.Below = true
	c.ClimbingSlope = true
	c.SlopeAngle = angle
	c.SlopeNormal = normal
}

// descendSlope keeps the body glued to a slope falling away in the direction of travel. The probe
// starts at the trailing bottom corner, which is the corner resting on such a slope.
func (m *Mover) descendSlope(move *cp.Vector) {
	o := m.origins()
	dirX := common.Sign(move.X)
	origin := o.bottomLeft
	if dirX < 0 {
		origin = o.bottomRight
	}
	maxRad := m.cfg.MaxSlopeAngle * math.Pi / 180
	reach := math.Tan(maxRad)*math.Abs(move.X) + 2*m.cfg.SkinWidth

	hit, ok := RaycastDown(m.q, origin, reach, m.verticalMask(-1))
	if !ok {
		return
	}
	angle := SurfaceAngle(hit.Normal)
	if angle <= common.Epsilon || angle > m.cfg.MaxSlopeAngle {
		return
	}
	if common.Sign(hit.Normal.X) != dirX {
		return
	}
	rad := angle * math.Pi / 180
	if hit.Distance-m.cfg.SkinWidth > math.Tan(rad)*math.Abs(move.X) {
		return
	}
	dist := math.Abs(move.X)
	move.X = math.Cos(rad) * dist * dirX
	move.Y -= math.Sin(rad) * dist

	c := &m.collisions
	c.SlopeAngle = angle
	c.SlopeNormal = hit.Normal
	c.DescendingSlope = true
	c.Below = true
}

func (m *Mover) verticalCollisions(move *cp.Vector) {
	c := &m.collisions
	o := m.origins()
	skin := m.cfg.SkinWidth
	dirY := common.Sign(move.Y)
	rayLength := math.Abs(move.Y) + skin
	mask := m.verticalMask(dirY)

	for i := 0; i < m.cfg.VerticalRays; i++ {
		origin := o.bottomLeft
		if dirY > 0 {
			origin = o.topLeft
		}
		origin.X += o.vSpacing*float64(i) + move.X

		hit, ok := m.q.Raycast(origin, cp.Vector{X: 0, Y: dirY}, rayLength, mask)
		if !ok {
			continue
		}
		move.Y = (hit.Distance - skin) * dirY
		rayLength = hit.Distance

		if c.ClimbingSlope {
			if t := math.Tan(c.SlopeAngle * math.Pi / 180); t > common.Epsilon {
				move.X = move.Y / t * common.Sign(move.X)
			}
		}
		c.Below = dirY < 0
		c.Above = dirY > 0
	}

	if c.ClimbingSlope {
		dirX := common.Sign(move.X)
		if dirX == 0 {
			return
		}
		origin := o.bottomLeft
		if dirX > 0 {
			origin = o.bottomRight
		}
		origin.Y += move.Y
		hit, ok := m.q.Raycast(origin, cp.Vector{X: dirX, Y: 0}, math.Abs(move.X)+skin, LayerGround)
		if ok {
			angle := SurfaceAngle(hit.Normal)
			if angle != c.SlopeAngle {
				move.X = (hit.Distance - skin) * dirX
				c.SlopeAngle = angle
				c.SlopeNormal = hit.Normal
			}
		}
	}
}

func (m *Mover) updatePassThrough(dt float64) {
	if !m.passThrough {
		return
	}
	b := m.Bounds()
	skin := m.cfg.SkinWidth
	size := cp.Vector{X: b.Width + 2*skin, Y: b.Height + 2*skin}
	if m.q.OverlapBox(b.Center(), size, LayerOneWay) > 0 {
		m.passSeen = true
		return
	}
	if m.passSeen {
		m.passThrough = false
		return
	}
	m.passTimer += dt
	if m.passTimer >= m.cfg.PassThroughGrace {
		m.passThrough = false
	}
}

// probeWalls reports a wall on a side when any horizontal probe within WallProbe of the body
// edge hits a surface too steep to climb.
func (m *Mover) probeWalls() {
	o := m.origins()
	length := m.cfg.SkinWidth + m.cfg.WallProbe
	probe := func(origin cp.Vector, dir cp.Vector) bool {
		for i := 0; i < m.cfg.HorizontalRays; i++ {
			p := origin
			p.Y += o.hSpacing * float64(i)
			hit, ok := m.q.Raycast(p, dir, length, LayerGround)
			if ok && SurfaceAngle(hit.Normal) > m.cfg.MaxSlopeAngle {
				return true
			}
		}
		return false
	}
	m.wallLeft = probe(o.bottomLeft, Left)
	m.wallRight = probe(o.bottomRight, Right)
}

func (m *Mover) probeGround() bool {
	o := m.origins()
	length := m.cfg.SkinWidth + m.cfg.GroundProbe
	mask := m.verticalMask(-1)
	for i := 0; i < m.cfg.VerticalRays; i++ {
		p := o.bottomLeft
		p.X += o.vSpacing * float64(i)
		if _, ok := RaycastDown(m.q, p, length, mask); ok {
			return true
		}
	}
	return false
}
