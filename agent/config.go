package agent

import (
	"errors"
	"math"

	"github.com/milk9111/navkit/common"
)

// Config tunes how an agent follows a path. Distances are world units, times seconds.
type Config struct {
	Speed float64
	// Gravity must match the mover's gravity; only its magnitude is used.
	Gravity         float64
	JumpHeight      float64
	MaxJumpDistance float64

	// FallImpulseScale is the fraction of full jump speed used to step off a ledge.
	FallImpulseScale float64
	// MinJumpScale is the smallest fraction of jump speed used for flat jumps.
	MinJumpScale float64
	// MaxAirSpeedScale caps horizontal air speed as a multiple of Speed.
	MaxAirSpeedScale float64
	// ShortHopDistance is the horizontal span under which air control waits for the apex.
	ShortHopDistance float64
	JumpClearance    float64

	ReachDistance  float64
	ArriveDistance float64

	StuckInterval float64
	StuckDistance float64

	CellSize float64
}

func DefaultConfig(cellSize float64) Config {
	if cellSize <= 0 {
		cellSize = common.TileSize
	}
	return Config{
		Speed:            5 * cellSize,
		Gravity:          -30 * cellSize,
		JumpHeight:       3 * cellSize,
		MaxJumpDistance:  4 * cellSize,
		FallImpulseScale: 0.35,
		MinJumpScale:     0.5,
		MaxAirSpeedScale: 1.6,
		ShortHopDistance: 0.6 * cellSize,
		JumpClearance:    0.5 * cellSize,
		ReachDistance:    0.5 * cellSize,
		ArriveDistance:   0.1 * cellSize,
		StuckInterval:    1,
		StuckDistance:    0.1 * cellSize,
		CellSize:         cellSize,
	}
}

// withDefaults fills zero fields from DefaultConfig for the given cell size.
func (c Config) withDefaults(cellSize float64) Config {
	if c.CellSize <= 0 {
		c.CellSize = cellSize
	}
	d := DefaultConfig(c.CellSize)
	fill := func(v *float64, def float64) {
		if *v == 0 {
			*v = def
		}
	}
	fill(&c.Speed, d.Speed)
	fill(&c.Gravity, d.Gravity)
	fill(&c.JumpHeight, d.JumpHeight)
	fill(&c.MaxJumpDistance, d.MaxJumpDistance)
	fill(&c.FallImpulseScale, d.FallImpulseScale)
	fill(&c.MinJumpScale, d.MinJumpScale)
	fill(&c.MaxAirSpeedScale, d.MaxAirSpeedScale)
	fill(&c.ShortHopDistance, d.ShortHopDistance)
	fill(&c.JumpClearance, d.JumpClearance)
	fill(&c.ReachDistance, d.ReachDistance)
	fill(&c.ArriveDistance, d.ArriveDistance)
	fill(&c.StuckInterval, d.StuckInterval)
	fill(&c.StuckDistance, d.StuckDistance)
	return c
}

func (c Config) validate() error {
	if c.Speed <= 0 || c.JumpHeight <= 0 || c.MaxJumpDistance <= 0 {
		return errors.New("agent: speed, jump height and jump distance must be positive")
	}
	if c.ReachDistance <= 0 || c.ArriveDistance <= 0 || c.StuckInterval <= 0 {
		return errors.New("agent: thresholds must be positive")
	}
	return nil
}

// jumpSpeed is the launch speed whose apex clears a rise of JumpHeight by JumpClearance.
func (c Config) jumpSpeed(dt float64) float64 {
	return c.launchSpeed(c.JumpHeight+c.JumpClearance, dt)
}

// launchSpeed is the vertical speed that rises h when the body integrates velocity before
// position once per step of dt. That peaks about v*dt/2 below the continuous arc.
func (c Config) launchSpeed(h, dt float64) float64 {
	g := math.Abs(c.Gravity)
	lag := g * dt / 2
	return lag + math.Sqrt(lag*lag+2*g*math.Max(h, 0))
}
