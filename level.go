package main

import (
	"image"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/common"
	"github.com/milk9111/navkit/nav"
	"github.com/milk9111/navkit/prefabs"
	"github.com/milk9111/navkit/tilemap"
	"golang.org/x/image/colornames"
)

// LevelView draws a map scaled to fit the screen. World space is y-up; the screen is y-down.
type LevelView struct {
	m     *tilemap.Map
	scale float64
	tile  int

	solidImg   *ebiten.Image
	oneWayImg  *ebiten.Image
	hazardImg  *ebiten.Image
	slopeRight *ebiten.Image
	slopeLeft  *ebiten.Image

	walkable    color.Color
	jumpable    color.Color
	transparent color.Color
	link        color.Color
	path        color.Color
}

func NewLevelView(m *tilemap.Map, spec *prefabs.NavSpec) *LevelView {
	w := float64(m.Width) * m.CellSize
	h := float64(m.Height) * m.CellSize
	scale := math.Min(baseWidth/w, baseHeight/h)
	tile := max(1, int(math.Round(m.CellSize*scale)))

	v := &LevelView{
		m:          m,
		scale:      scale,
		tile:       tile,
		solidImg:   filledImage(tile, colornames.Steelblue),
		oneWayImg:  filledImage(tile, colornames.Lightslategray),
		hazardImg:  triangleImage(tile, colornames.Crimson, 0),
		slopeRight: triangleImage(tile, colornames.Steelblue, 1),
		slopeLeft:  triangleImage(tile, colornames.Steelblue, -1),
	}
	var debug prefabs.DebugSpec
	if spec != nil {
		debug = spec.Debug
	}
	v.walkable = debug.Walkable.Or(colornames.Limegreen)
	v.jumpable = debug.Jumpable.Or(colornames.Gold)
	v.transparent = debug.Transparent.Or(colornames.Deepskyblue)
	v.link = debug.Link.Or(color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0x40})
	v.path = debug.Path.Or(colornames.Hotpink)
	return v
}

func (v *LevelView) ToScreen(p cp.Vector) (float32, float32) {
	x := (p.X - v.m.Origin.X) * v.scale
	y := (float64(v.m.Height)*v.m.CellSize - (p.Y - v.m.Origin.Y)) * v.scale
	return float32(x), float32(y)
}

func (v *LevelView) ToWorld(x, y float64) cp.Vector {
	return cp.Vector{
		X: x/v.scale + v.m.Origin.X,
		Y: float64(v.m.Height)*v.m.CellSize - y/v.scale + v.m.Origin.Y,
	}
}

func (v *LevelView) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Black)
	for y := 0; y < v.m.Height; y++ {
		for x := 0; x < v.m.Width; x++ {
			img := v.tileImage(x, y)
			if img == nil {
				continue
			}
			sx, sy := v.ToScreen(v.m.CellToWorld(common.Cell{X: x, Y: y + 1}))
			op := &ebiten.DrawImageOptions{}
			op.GeoM.Translate(float64(sx), float64(sy))
			screen.DrawImage(img, op)
		}
	}
}

func (v *LevelView) tileImage(x, y int) *ebiten.Image {
	switch v.m.Ground.At(x, y) {
	case tilemap.Solid:
		return v.solidImg
	case tilemap.SlopeUpRight:
		return v.slopeRight
	case tilemap.SlopeUpLeft:
		return v.slopeLeft
	case tilemap.Hazard:
		return v.hazardImg
	}
	if v.m.OneWay.HasTile(x, y) {
		return v.oneWayImg
	}
	return nil
}

func (v *LevelView) nodeColor(n *nav.Node) color.Color {
	switch {
	case n.Is(nav.Transparent):
		return v.transparent
	case n.Is(nav.Jumpable):
		return v.jumpable
	}
	return v.walkable
}

func (v *LevelView) DrawGraph(screen *ebiten.Image, g *nav.Graph, links bool) {
	if g == nil {
		return
	}
	r := float32(math.Max(2, float64(v.tile)/8))
	for _, n := range g.Nodes() {
		x, y := v.ToScreen(n.Pos)
		if links {
			for _, c := range n.Links {
				tx, ty := v.ToScreen(c.To.Pos)
				vector.StrokeLine(screen, x, y, tx, ty, 1, v.link, true)
			}
		}
		vector.FillCircle(screen, x, y, r, v.nodeColor(n), true)
	}
}

// DrawPath draws the remaining path from the cursor on.
func (v *LevelView) DrawPath(screen *ebiten.Image, p nav.Path, cursor int) {
	for i := max(cursor, 1); i < p.Len(); i++ {
		from, _ := p.At(i - 1)
		to, _ := p.At(i)
		x0, y0 := v.ToScreen(from.Node.Pos)
		x1, y1 := v.ToScreen(to.Node.Pos)
		width := float32(2)
		if to.Via.Airborne() {
			width = 3
		}
		vector.StrokeLine(screen, x0, y0, x1, y1, width, v.path, true)
	}
}

func (v *LevelView) DrawBody(screen *ebiten.Image, b common.Rect, grounded bool) {
	x, y := v.ToScreen(cp.Vector{X: b.X, Y: b.MaxY()})
	c := color.Color(colornames.Orange)
	if grounded {
		c = colornames.White
	}
	vector.StrokeRect(screen, x, y, float32(b.Width*v.scale), float32(b.Height*v.scale), 2, c, false)
}

func filledImage(size int, c color.Color) *ebiten.Image {
	img := ebiten.NewImage(size, size)
	img.Fill(c)
	return img
}

// triangleImage builds a tile image of a triangle. dir 0 points up; 1 is a ramp rising to the
// right and -1 one rising to the left.
func triangleImage(size int, col color.Color, dir int) *ebiten.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	cx := float64(size) / 2
	for y := 0; y < size; y++ {
		progress := float64(y) / float64(max(size-1, 1))
		for x := 0; x < size; x++ {
			fx := float64(x) + 0.5
			var inside bool
			switch dir {
			case 0:
				half := progress * float64(size) / 2
				inside = fx >= cx-half && fx <= cx+half
			case 1:
				inside = fx >= float64(size)*(1-progress)
			default:
				inside = fx <= float64(size)*progress
			}
			if inside {
				rgba.Set(x, y, col)
			}
		}
	}
	return ebiten.NewImageFromImage(rgba)
}
