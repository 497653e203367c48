package tilemap

import (
	"errors"
	"slices"
	"testing"

	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
)

func TestParse(t *testing.T) {
	m, err := Parse(`
		S....
		..==.
		./#\^
	`, 2)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Width != 5 || m.Height != 3 || m.CellSize != 2 {
		t.Fatalf("unexpected map %dx%d cell %.1f", m.Width, m.Height, m.CellSize)
	}

	cases := []struct {
		name  string
		layer *Layer
		x, y  int
		want  Shape
	}{
		{"slope right", m.Ground, 1, 0, SlopeUpRight},
		{"solid", m.Ground, 2, 0, Solid},
		{"slope left", m.Ground, 3, 0, SlopeUpLeft},
		{"hazard", m.Ground, 4, 0, Hazard},
		{"one way", m.OneWay, 2, 1, Solid},
		{"empty", m.Ground, 0, 2, Empty},
		{"out of bounds", m.Ground, 9, 9, Empty},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.layer.At(c.x, c.y); got != c.want {
				t.Fatalf("expected %v at (%d,%d), got %v", c.want, c.x, c.y, got)
			}
		})
	}

	if !m.HasSpawn || m.Spawn != (common.Cell{X: 0, Y: 2}) {
		t.Fatalf("expected spawn at (0,2), got %v", m.Spawn)
	}
	if m.Ground.HasTile(4, 0) {
		t.Fatal("hazards are not standable")
	}
	if got := m.Ground.Count(); got != 3 {
		t.Fatalf("expected 3 standable ground tiles, got %d", got)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse("#x#", 1); err == nil {
		t.Fatal("expected error for unknown tile")
	}
	if _, err := Parse("   \n  ", 1); !errors.Is(err, ErrInvalidDimensions) {
		t.Fatalf("expected ErrInvalidDimensions, got %v", err)
	}
}

func TestCoordinates(t *testing.T) {
	m, err := NewMap(4, 3, 10)
	if err != nil {
		t.Fatalf("NewMap: %v", err)
	}
	m.Origin = cp.Vector{X: 100, Y: -20}

	c := common.Cell{X: 2, Y: 1}
	if got, want := m.CellToWorld(c), (cp.Vector{X: 120, Y: -10}); got != want {
		t.Fatalf("CellToWorld: expected %v, got %v", want, got)
	}
	if got, want := m.CellCenter(c), (cp.Vector{X: 125, Y: -5}); got != want {
		t.Fatalf("CellCenter: expected %v, got %v", want, got)
	}
	if got := m.WorldToCell(cp.Vector{X: 129.9, Y: -0.1}); got != c {
		t.Fatalf("WorldToCell: expected %v, got %v", c, got)
	}
	if got := m.WorldToCell(cp.Vector{X: 99, Y: -21}); got != (common.Cell{X: -1, Y: -1}) {
		t.Fatalf("WorldToCell below origin: got %v", got)
	}
	b := m.Bounds()
	if b.X != 100 || b.Y != -20 || b.Width != 40 || b.Height != 30 {
		t.Fatalf("unexpected bounds %+v", b)
	}
}

func TestNewMapInvalid(t *testing.T) {
	cases := []struct{ w, h int }{{0, 1}, {1, 0}, {-3, 4}}
	for _, c := range cases {
		if _, err := NewMap(c.w, c.h, 1); !errors.Is(err, ErrInvalidDimensions) {
			t.Fatalf("NewMap(%d,%d): expected ErrInvalidDimensions, got %v", c.w, c.h, err)
		}
	}
}

func TestLevelRoundTrip(t *testing.T) {
	src := MustParse(`
		..S....
		.===...
		/#....\
		#######
	`, 32)

	b, err := Encode(src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if got.Width != src.Width || got.Height != src.Height || got.CellSize != src.CellSize {
		t.Fatalf("expected %dx%d cell %.0f, got %dx%d cell %.0f",
			src.Width, src.Height, src.CellSize, got.Width, got.Height, got.CellSize)
	}
	if !slices.Equal(got.Ground.Cells, src.Ground.Cells) {
		t.Fatal("ground layer changed in round trip")
	}
	if !slices.Equal(got.OneWay.Cells, src.OneWay.Cells) {
		t.Fatal("one-way layer changed in round trip")
	}
	if !got.HasSpawn || got.Spawn != src.Spawn {
		t.Fatalf("expected spawn %v, got %v", src.Spawn, got.Spawn)
	}
}

func TestDecodeRoles(t *testing.T) {
	cases := []struct {
		name       string
		json       string
		ground     int
		oneWay     int
		wantErr    bool
		wantSpawnY int
	}{
		{
			name:   "no metadata is ground",
			json:   `{"width":2,"height":1,"layers":[[1,1]]}`,
			ground: 2,
		},
		{
			name:   "roles",
			json:   `{"width":2,"height":1,"layers":[[1,0],[0,3]],"layer_meta":[{"role":"ground"},{"role":"one_way"}]}`,
			ground: 1,
			oneWay: 1,
		},
		{
			name:   "legacy physics flag",
			json:   `{"width":2,"height":1,"layers":[[0,1],[1,1]],"layer_meta":[{"has_physics":true},{"color":"#ffffff"}]}`,
			ground: 1,
		},
		{
			name:       "spawn flips rows",
			json:       `{"width":1,"height":3,"layers":[[0,0,1]],"spawn_x":0,"spawn_y":1}`,
			ground:     1,
			wantSpawnY: 1,
		},
		{
			name:    "short layer",
			json:    `{"width":2,"height":2,"layers":[[1]]}`,
			wantErr: true,
		},
		{
			name:    "bad size",
			json:    `{"width":0,"height":2}`,
			wantErr: true,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, err := Decode([]byte(c.json))
			if c.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got := m.Ground.Count(); got != c.ground {
				t.Fatalf("expected %d ground tiles, got %d", c.ground, got)
			}
			if got := m.OneWay.Count(); got != c.oneWay {
				t.Fatalf("expected %d one-way tiles, got %d", c.oneWay, got)
			}
			if m.HasSpawn && m.Spawn.Y != c.wantSpawnY {
				t.Fatalf("expected spawn row %d, got %d", c.wantSpawnY, m.Spawn.Y)
			}
		})
	}
}
