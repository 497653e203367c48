package tilemap

import (
	"fmt"
	"strings"

	"github.com/milk9111/navkit/common"
)

// Parse builds a Map from ASCII art. The first non-empty line is the top row.
//
//	#  solid ground       /  slope rising to the right
//	=  one-way platform   \  slope rising to the left
//	^  hazard             S  spawn (empty cell)
//	.  empty
//
// Lines shorter than the longest line are padded with empty cells.
func Parse(art string, cellSize float64) (*Map, error) {
	lines := make([]string, 0, 16)
	for _, line := range strings.Split(art, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	width := 0
	for _, line := range lines {
		width = max(width, len(line))
	}
	height := len(lines)

	m, err := NewMap(width, height, cellSize)
	if err != nil {
		return nil, fmt.Errorf("tilemap: parse: %w", err)
	}

	for row, line := range lines {
		y := height - 1 - row
		for x, ch := range line {
			switch ch {
			case '#':
				m.Ground.Set(x, y, Solid)
			case '/':
				m.Ground.Set(x, y, SlopeUpRight)
			case '\\':
				m.Ground.Set(x, y, SlopeUpLeft)
			case '=':
				m.OneWay.Set(x, y, Solid)
			case '^':
				m.Ground.Set(x, y, Hazard)
			case 'S':
				m.Spawn = common.Cell{X: x, Y: y}
				m.HasSpawn = true
			case '.', ' ':
			default:
				return nil, fmt.Errorf("tilemap: parse: unknown tile %q at row %d col %d", ch, row, x)
			}
		}
	}
	return m, nil
}

// MustParse is Parse for fixtures; it panics on malformed art.
func MustParse(art string, cellSize float64) *Map {
	m, err := Parse(art, cellSize)
	if err != nil {
		panic(err)
	}
	return m
}
