package main

import (
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/navkit/physics"
)

// spaceDrawer outlines the shapes of a physics.SpaceQuery in screen space.
type spaceDrawer struct {
	screen *ebiten.Image
	view   *LevelView
	query  *physics.SpaceQuery
}

func (v *LevelView) DrawSpace(screen *ebiten.Image, q *physics.SpaceQuery) {
	if q == nil || screen == nil {
		return
	}
	q.Draw(&spaceDrawer{screen: screen, view: v, query: q})
}

func (d *spaceDrawer) line(a, b cp.Vector, c color.Color) {
	x0, y0 := d.view.ToScreen(a)
	x1, y1 := d.view.ToScreen(b)
	vector.StrokeLine(d.screen, x0, y0, x1, y1, 1, c, true)
}

func (d *spaceDrawer) DrawCircle(pos cp.Vector, angle, radius float64, outline, fill cp.FColor, data interface{}) {
	x, y := d.view.ToScreen(pos)
	vector.StrokeCircle(d.screen, x, y, float32(radius*d.view.scale), 1, fcolorToRGBA(outline), true)
}

func (d *spaceDrawer) DrawSegment(a, b cp.Vector, fill cp.FColor, data interface{}) {
	d.line(a, b, fcolorToRGBA(fill))
}

func (d *spaceDrawer) DrawFatSegment(a, b cp.Vector, radius float64, outline, fill cp.FColor, data interface{}) {
	d.line(a, b, fcolorToRGBA(outline))
}

func (d *spaceDrawer) DrawPolygon(count int, verts []cp.Vector, radius float64, outline, fill cp.FColor, data interface{}) {
	c := fcolorToRGBA(outline)
	for i := 0; i < count; i++ {
		d.line(verts[i], verts[(i+1)%count], c)
	}
}

func (d *spaceDrawer) DrawDot(size float64, pos cp.Vector, fill cp.FColor, data interface{}) {
	x, y := d.view.ToScreen(pos)
	vector.FillCircle(d.screen, x, y, float32(size/2), fcolorToRGBA(fill), true)
}

func (d *spaceDrawer) Flags() uint {
	return cp.DRAW_SHAPES
}

func (d *spaceDrawer) OutlineColor() cp.FColor {
	return cp.FColor{R: 0.2, G: 1.0, B: 0.2, A: 1.0}
}

// ShapeColor is the outline color cp.DrawSpace uses: one per layer, grey for world bounds.
func (d *spaceDrawer) ShapeColor(shape *cp.Shape, data interface{}) cp.FColor {
	layer, ok := d.query.ShapeLayer(shape)
	switch {
	case !ok:
		return cp.FColor{R: 0.5, G: 0.5, B: 0.5, A: 1.0}
	case layer == physics.LayerOneWay:
		return cp.FColor{R: 1.0, G: 0.85, B: 0.2, A: 1.0}
	}
	return cp.FColor{R: 0.4, G: 0.7, B: 1.0, A: 1.0}
}

func (d *spaceDrawer) ConstraintColor() cp.FColor {
	return cp.FColor{R: 0.7, G: 0.7, B: 0.7, A: 1.0}
}

func (d *spaceDrawer) CollisionPointColor() cp.FColor {
	return cp.FColor{R: 1.0, G: 0.1, B: 0.1, A: 1.0}
}

func (d *spaceDrawer) Data() interface{} {
	return nil
}

func fcolorToRGBA(c cp.FColor) color.RGBA {
	clamp := func(v float32) uint8 {
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		return uint8(v * 255)
	}
	return color.RGBA{R: clamp(c.R), G: clamp(c.G), B: clamp(c.B), A: clamp(c.A)}
}
