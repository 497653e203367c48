package tilemap

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/milk9111/navkit/common"
)

// Layer roles understood by the loader. Layers without a role are decoration.
const (
	RoleGround = "ground"
	RoleOneWay = "one_way"
)

// Tile values stored in level files.
const (
	tileEmpty        = 0
	tileSolid        = 1
	tileHazard       = 2
	tileSlopeUpRight = 3
	tileSlopeUpLeft  = 4
)

// LevelFile is the on-disk JSON level. Layers are flat row-major arrays whose first row is the
// top of the level.
type LevelFile struct {
	Width    int         `json:"width"`
	Height   int         `json:"height"`
	TileSize float64     `json:"tile_size,omitempty"`
	Layers   [][]int     `json:"layers,omitempty"`
	Meta     []LayerMeta `json:"layer_meta,omitempty"`
	SpawnX   *int        `json:"spawn_x,omitempty"`
	SpawnY   *int        `json:"spawn_y,omitempty"`
}

// LayerMeta holds per-layer metadata such as the layer's navigation role and display color.
type LayerMeta struct {
	Role string `json:"role,omitempty"`
	// HasPhysics marks a legacy physics layer; it is treated as ground when Role is empty.
	HasPhysics bool   `json:"has_physics,omitempty"`
	Color      string `json:"color,omitempty"`
}

// Load loads a level from a JSON file at path.
func Load(path string) (*Map, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("tilemap: read %s: %w", path, err)
	}
	m, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("tilemap: decode %s: %w", path, err)
	}
	return m, nil
}

// LoadFS loads a level JSON from an fs.FS (e.g. embedded levels).
func LoadFS(fsys fs.FS, name string) (*Map, error) {
	clean := strings.TrimPrefix(filepath.ToSlash(name), "levels/")
	if !strings.HasSuffix(clean, ".json") {
		clean += ".json"
	}
	b, err := fs.ReadFile(fsys, clean)
	if err != nil {
		return nil, fmt.Errorf("tilemap: read %s: %w", clean, err)
	}
	m, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("tilemap: decode %s: %w", clean, err)
	}
	return m, nil
}

// Decode parses level JSON into a Map, flipping rows so that y grows upward.
func Decode(b []byte) (*Map, error) {
	var lvl LevelFile
	if err := json.Unmarshal(b, &lvl); err != nil {
		return nil, err
	}
	return lvl.Build()
}

// Build converts the file representation into a Map.
func (lvl *LevelFile) Build() (*Map, error) {
	if lvl.Width <= 0 || lvl.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, lvl.Width, lvl.Height)
	}

	m, err := NewMap(lvl.Width, lvl.Height, lvl.TileSize)
	if err != nil {
		return nil, err
	}

	for layerIdx, layer := range lvl.Layers {
		if len(layer) != lvl.Width*lvl.Height {
			return nil, fmt.Errorf("layer %d has %d cells, want %d", layerIdx, len(layer), lvl.Width*lvl.Height)
		}
		var dst *Layer
		switch lvl.role(layerIdx) {
		case RoleGround:
			dst = m.Ground
		case RoleOneWay:
			dst = m.OneWay
		default:
			continue
		}
		for row := 0; row < lvl.Height; row++ {
			y := lvl.Height - 1 - row
			for x := 0; x < lvl.Width; x++ {
				s := shapeFromValue(layer[row*lvl.Width+x])
				if s == Empty {
					continue
				}
				// one-way platforms are always flat
				if dst == m.OneWay && s.IsSlope() {
					s = Solid
				}
				dst.Set(x, y, s)
			}
		}
	}

	if lvl.SpawnX != nil && lvl.SpawnY != nil {
		m.Spawn = common.Cell{X: *lvl.SpawnX, Y: lvl.Height - 1 - *lvl.SpawnY}
		m.HasSpawn = true
	}
	return m, nil
}

func (lvl *LevelFile) role(layerIdx int) string {
	if layerIdx >= len(lvl.Meta) {
		// a level without metadata is a single ground layer
		if len(lvl.Meta) == 0 && layerIdx == 0 {
			return RoleGround
		}
		return ""
	}
	meta := lvl.Meta[layerIdx]
	if meta.Role != "" {
		return meta.Role
	}
	if meta.HasPhysics {
		return RoleGround
	}
	return ""
}

func shapeFromValue(v int) Shape {
	switch v {
	case tileEmpty:
		return Empty
	case tileHazard:
		return Hazard
	case tileSlopeUpRight:
		return SlopeUpRight
	case tileSlopeUpLeft:
		return SlopeUpLeft
	default:
		return Solid
	}
}

func valueFromShape(s Shape) int {
	switch s {
	case Solid:
		return tileSolid
	case Hazard:
		return tileHazard
	case SlopeUpRight:
		return tileSlopeUpRight
	case SlopeUpLeft:
		return tileSlopeUpLeft
	}
	return tileEmpty
}

// File converts m into the on-disk representation with a ground and a one-way layer.
func (m *Map) File() *LevelFile {
	lvl := &LevelFile{
		Width:    m.Width,
		Height:   m.Height,
		TileSize: m.CellSize,
		Meta:     []LayerMeta{{Role: RoleGround}, {Role: RoleOneWay}},
	}
	for _, src := range []*Layer{m.Ground, m.OneWay} {
		cells := make([]int, m.Width*m.Height)
		for row := 0; row < m.Height; row++ {
			y := m.Height - 1 - row
			for x := 0; x < m.Width; x++ {
				cells[row*m.Width+x] = valueFromShape(src.At(x, y))
			}
		}
		lvl.Layers = append(lvl.Layers, cells)
	}
	if m.HasSpawn {
		sx, sy := m.Spawn.X, m.Height-1-m.Spawn.Y
		lvl.SpawnX, lvl.SpawnY = &sx, &sy
	}
	return lvl
}

// Encode writes m as level JSON.
func Encode(m *Map) ([]byte, error) {
	if m == nil {
		return nil, ErrInvalidDimensions
	}
	b, err := json.Marshal(m.File())
	if err != nil {
		return nil, fmt.Errorf("tilemap: encode: %w", err)
	}
	return b, nil
}
