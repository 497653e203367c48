package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/milk9111/navkit/common"
	"github.com/milk9111/navkit/sim"
	"github.com/milk9111/navkit/tilemap"
)

func TestParseCell(t *testing.T) {
	cases := []struct {
		in      string
		want    common.Cell
		wantErr bool
	}{
		{"3,4", common.Cell{X: 3, Y: 4}, false},
		{" 10 , 0 ", common.Cell{X: 10, Y: 0}, false},
		{"-1,2", common.Cell{X: -1, Y: 2}, false},
		{"3", common.Cell{}, true},
		{"a,1", common.Cell{}, true},
		{"1,b", common.Cell{}, true},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, err := parseCell(c.in)
			if c.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", c.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCell: %v", err)
			}
			if got != c.want {
				t.Fatalf("expected %v, got %v", c.want, got)
			}
		})
	}
}

func TestPrintStatsAndPath(t *testing.T) {
	w, err := sim.NewWorld(tilemap.MustParse(`
		.............
		.............
		.............
		##########..#
	`, 1), sim.Options{})
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	defer w.Close()

	var buf bytes.Buffer
	printStats(&buf, w.Graph)
	if !strings.Contains(buf.String(), "jump") {
		t.Fatalf("expected jump connections in stats:\n%s", buf.String())
	}

	buf.Reset()
	printPath(&buf, w, common.Cell{X: 8, Y: 1}, common.Cell{X: 12, Y: 1})
	if !strings.Contains(buf.String(), "3 waypoints") {
		t.Fatalf("expected a 3 waypoint path:\n%s", buf.String())
	}

	buf.Reset()
	printPath(&buf, w, common.Cell{X: 0, Y: 1}, common.Cell{X: 0, Y: 40})
	if !strings.Contains(buf.String(), "no path") {
		t.Fatalf("expected no path:\n%s", buf.String())
	}
}

func TestLoadLevelFallsBackToEmbedded(t *testing.T) {
	m, err := loadLevel("gaps")
	if err != nil {
		t.Fatalf("loadLevel: %v", err)
	}
	if m.Width != 26 || m.Height != 5 {
		t.Fatalf("unexpected size %dx%d", m.Width, m.Height)
	}
}
