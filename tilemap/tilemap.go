package tilemap

import (
	"errors"
	"math"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
)

// Shape is the collision shape of a single tile cell.
type Shape uint8

const (
	Empty Shape = iota
	Solid
	// SlopeUpRight is a 45 degree ramp whose floor rises from the cell's left edge to its right edge.
	SlopeUpRight
	// SlopeUpLeft is the mirror of SlopeUpRight.
	SlopeUpLeft
	// Hazard cells are drawn and stored but are never standable surfaces.
	Hazard
)

var ErrInvalidDimensions = errors.New("tilemap: invalid dimensions")

// IsSurface reports whether an actor can stand on top of the shape.
func (s Shape) IsSurface() bool {
	return s == Solid || s == SlopeUpRight || s == SlopeUpLeft
}

func (s Shape) IsSlope() bool {
	return s == SlopeUpRight || s == SlopeUpLeft
}

// Layer is a dense grid of tile shapes indexed y-up: row 0 is the bottom of the map.
type Layer struct {
	Width  int
	Height int
	Cells  []Shape
}

func NewLayer(width, height int) *Layer {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Layer{Width: width, Height: height, Cells: make([]Shape, width*height)}
}

func (l *Layer) InBounds(x, y int) bool {
	return l != nil && x >= 0 && y >= 0 && x < l.Width && y < l.Height
}

// At returns the shape at (x, y); cells outside the layer are Empty.
func (l *Layer) At(x, y int) Shape {
	if !l.InBounds(x, y) {
		return Empty
	}
	return l.Cells[y*l.Width+x]
}

func (l *Layer) Set(x, y int, s Shape) {
	if !l.InBounds(x, y) {
		return
	}
	l.Cells[y*l.Width+x] = s
}

// HasTile reports whether the cell holds a standable tile. Hazards do not count.
func (l *Layer) HasTile(x, y int) bool {
	return l.At(x, y).IsSurface()
}

// Count returns the number of standable tiles in the layer.
func (l *Layer) Count() int {
	if l == nil {
		return 0
	}
	n := 0
	for _, s := range l.Cells {
		if s.IsSurface() {
			n++
		}
	}
	return n
}

// Map groups the two tile sources the navigation system understands: regular ground and
// one-way (drop-through) ground.
type Map struct {
	Width    int
	Height   int
	CellSize float64
	Origin   cp.Vector

	Ground *Layer
	OneWay *Layer

	// Spawn is a cell coordinate; HasSpawn is false when the level did not define one.
	Spawn    common.Cell
	HasSpawn bool
}

// NewMap allocates an empty map with both layers.
func NewMap(width, height int, cellSize float64) (*Map, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrInvalidDimensions
	}
	if cellSize <= 0 {
		cellSize = common.TileSize
	}
	return &Map{
		Width:    width,
		Height:   height,
		CellSize: cellSize,
		Ground:   NewLayer(width, height),
		OneWay:   NewLayer(width, height),
	}, nil
}

// HasAnyTile reports whether either layer holds a standable tile at (x, y).
func (m *Map) HasAnyTile(x, y int) bool {
	if m == nil {
		return false
	}
	return m.Ground.HasTile(x, y) || m.OneWay.HasTile(x, y)
}

// CellToWorld returns the bottom-left corner of the cell.
func (m *Map) CellToWorld(c common.Cell) cp.Vector {
	return cp.Vector{
		X: m.Origin.X + float64(c.X)*m.CellSize,
		Y: m.Origin.Y + float64(c.Y)*m.CellSize,
	}
}

// CellCenter returns the center of the cell.
func (m *Map) CellCenter(c common.Cell) cp.Vector {
	half := m.CellSize * 0.5
	return m.CellToWorld(c).Add(cp.Vector{X: half, Y: half})
}

func (m *Map) WorldToCell(p cp.Vector) common.Cell {
	return common.Cell{
		X: int(math.Floor((p.X - m.Origin.X) / m.CellSize)),
		Y: int(math.Floor((p.Y - m.Origin.Y) / m.CellSize)),
	}
}

// Bounds returns the world-space rectangle covered by the map.
func (m *Map) Bounds() common.Rect {
	return common.Rect{
		X:      m.Origin.X,
		Y:      m.Origin.Y,
		Width:  float64(m.Width) * m.CellSize,
		Height: float64(m.Height) * m.CellSize,
	}
}
