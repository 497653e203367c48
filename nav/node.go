package nav

import (
	"strings"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
)

// Flags describe what an actor can do at a node.
type Flags uint8

const (
	Walkable Flags = 1 << iota
	// Jumpable nodes sit on a flat surface at a horizontal edge.
	Jumpable
	// Transparent nodes stand on a one-way platform and can be dropped through.
	Transparent
)

func (f Flags) Has(o Flags) bool { return f&o == o }

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	parts := make([]string, 0, 3)
	if f.Has(Walkable) {
		parts = append(parts, "walkable")
	}
	if f.Has(Jumpable) {
		parts = append(parts, "jumpable")
	}
	if f.Has(Transparent) {
		parts = append(parts, "transparent")
	}
	return strings.Join(parts, "|")
}

// ConnectionType is how an actor traverses an edge.
type ConnectionType uint8

const (
	None ConnectionType = iota
	Walk
	Jump
	Fall
	TransparentJump
	TransparentFall
)

var connectionNames = [...]string{
	None:            "none",
	Walk:            "walk",
	Jump:            "jump",
	Fall:            "fall",
	TransparentJump: "transparent_jump",
	TransparentFall: "transparent_fall",
}

func (c ConnectionType) String() string {
	if int(c) < len(connectionNames) {
		return connectionNames[c]
	}
	return "unknown"
}

// Airborne reports whether traversing the connection leaves the ground.
func (c ConnectionType) Airborne() bool {
	return c != None && c != Walk
}

// Node is a standable position above a tile.
type Node struct {
	ID   int
	Cell common.Cell
	// Pos is the surface point under the cell center, lifted by the builder's node offset.
	Pos   cp.Vector
	Flags Flags

	Slope  bool
	Normal cp.Vector
	// LeftY and RightY are the surface heights at the cell's left and right edges.
	LeftY  float64
	RightY float64

	Links []Connection
}

func (n *Node) Is(f Flags) bool { return n != nil && n.Flags.Has(f) }

// Link returns the connection from n to other, if any.
func (n *Node) Link(other *Node) (Connection, bool) {
	if n == nil || other == nil {
		return Connection{}, false
	}
	for _, c := range n.Links {
		if c.To == other {
			return c, true
		}
	}
	return Connection{}, false
}

// Connection is a directed, typed edge. Distance is the base cost before multipliers.
type Connection struct {
	To       *Node
	Type     ConnectionType
	Distance float64
	// Rise is the target's height above the source; negative for drops.
	Rise float64
}
