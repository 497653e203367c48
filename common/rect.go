package common

import "github.com/jakecoffman/cp"

// Rect is an axis-aligned box in world space. Y grows upward, so (X, Y) is the bottom-left corner.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// RectFromCenter builds a Rect centered on c with the given size.
func RectFromCenter(c, size cp.Vector) Rect {
	return Rect{X: c.X - size.X/2, Y: c.Y - size.Y/2, Width: size.X, Height: size.Y}
}

func (r Rect) MinX() float64 { return r.X }
func (r Rect) MinY() float64 { return r.Y }
func (r Rect) MaxX() float64 { return r.X + r.Width }
func (r Rect) MaxY() float64 { return r.Y + r.Height }

func (r Rect) Center() cp.Vector {
	return cp.Vector{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Inset shrinks the rect by d on every side. Negative d grows it.
func (r Rect) Inset(d float64) Rect {
	return Rect{X: r.X + d, Y: r.Y + d, Width: r.Width - 2*d, Height: r.Height - 2*d}
}
