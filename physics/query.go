package physics

import (
	"errors"
	"math"

	"github.com/jakecoffman/cp"
)

// Layer is a bitmask of collision layers.
type Layer uint32

const (
	LayerGround Layer = 1 << iota
	// LayerOneWay holds drop-through platforms that only block from above.
	LayerOneWay

	MaskAll = LayerGround | LayerOneWay
)

var ErrNilQuery = errors.New("physics: nil spatial query")

var (
	Up    = cp.Vector{X: 0, Y: 1}
	Down  = cp.Vector{X: 0, Y: -1}
	Left  = cp.Vector{X: -1, Y: 0}
	Right = cp.Vector{X: 1, Y: 0}
)

// Hit describes the first surface a ray touched.
type Hit struct {
	Point    cp.Vector
	Normal   cp.Vector
	Distance float64
	Layer    Layer
}

// SpatialQuery is the collision backend the mover and the graph builder run against.
// Shapes that contain the ray origin are ignored by Raycast. Implementations must be safe
// for concurrent use.
type SpatialQuery interface {
	Raycast(origin, dir cp.Vector, maxDist float64, mask Layer) (Hit, bool)
	// OverlapBox returns how many shapes on mask overlap the box with a positive area.
	OverlapBox(center, size cp.Vector, mask Layer) int
}

func RaycastDown(q SpatialQuery, origin cp.Vector, maxDist float64, mask Layer) (Hit, bool) {
	return q.Raycast(origin, Down, maxDist, mask)
}

func RaycastUp(q SpatialQuery, origin cp.Vector, maxDist float64, mask Layer) (Hit, bool) {
	return q.Raycast(origin, Up, maxDist, mask)
}

func RaycastLeft(q SpatialQuery, origin cp.Vector, maxDist float64, mask Layer) (Hit, bool) {
	return q.Raycast(origin, Left, maxDist, mask)
}

func RaycastRight(q SpatialQuery, origin cp.Vector, maxDist float64, mask Layer) (Hit, bool) {
	return q.Raycast(origin, Right, maxDist, mask)
}

// SurfaceAngle returns the angle in degrees between a surface normal and straight up.
func SurfaceAngle(normal cp.Vector) float64 {
	l := normal.Length()
	if l == 0 {
		return 0
	}
	c := normal.Y / l
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return math.Acos(c) * 180 / math.Pi
}

func normalize(v cp.Vector) (cp.Vector, bool) {
	l := v.Length()
	if l == 0 {
		return cp.Vector{}, false
	}
	return v.Mult(1 / l), true
}
