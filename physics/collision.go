package physics

import "github.com/jakecoffman/cp"

// CollisionInfo records what the mover touched during the last tick.
type CollisionInfo struct {
	Above, Below bool
	Left, Right  bool

	ClimbingSlope   bool
	DescendingSlope bool
	// SlopeAngle is in degrees from horizontal.
	SlopeAngle         float64
	PreviousSlopeAngle float64
	SlopeNormal        cp.Vector
}

// reset clears the per-tick flags and carries the slope angle over as the previous one.
func (c *CollisionInfo) reset() {
	prev := c.SlopeAngle
	*c = CollisionInfo{PreviousSlopeAngle: prev}
}
