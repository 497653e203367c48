package nav

import "github.com/jakecoffman/cp"

// Waypoint is a node on a path and the connection used to reach it from the previous waypoint.
// The first waypoint is the start node and has Via == None.
type Waypoint struct {
	Node *Node
	Via  ConnectionType
}

// Path is an immutable planning result. Seq is the async request that produced it; synchronous
// searches leave it zero.
type Path struct {
	Seq       uint64
	Start     cp.Vector
	Goal      cp.Vector
	Waypoints []Waypoint
	Cost      float64
}

func (p Path) Len() int { return len(p.Waypoints) }

func (p Path) Empty() bool { return len(p.Waypoints) == 0 }

func (p Path) At(i int) (Waypoint, bool) {
	if i < 0 || i >= len(p.Waypoints) {
		return Waypoint{}, false
	}
	return p.Waypoints[i], true
}

// Transitions lists the connection type of every step after the start.
func (p Path) Transitions() []ConnectionType {
	if len(p.Waypoints) < 2 {
		return nil
	}
	out := make([]ConnectionType, 0, len(p.Waypoints)-1)
	for _, w := range p.Waypoints[1:] {
		out = append(out, w.Via)
	}
	return out
}

// Last returns the goal node, or nil for an empty path.
func (p Path) Last() *Node {
	if len(p.Waypoints) == 0 {
		return nil
	}
	return p.Waypoints[len(p.Waypoints)-1].Node
}
