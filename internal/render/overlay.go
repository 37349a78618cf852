package render

import (
	"github.com/gogpu/gg"

	"github.com/ayusman/loom/internal/gesture"
)

// TrailLength is the number of past cursor positions drawn behind the hand.
const TrailLength = 12

// Overlay draws cursor feedback on top of the mesh.
type Overlay struct {
	trail [TrailLength][2]float64
	n     int
	head  int
}

// Reset forgets the trail, e.g. after a resize.
func (o *Overlay) Reset() {
	o.n = 0
	o.head = 0
}

func (o *Overlay) push(x, y float64) {
	o.trail[o.head] = [2]float64{x, y}
	o.head = (o.head + 1) % TrailLength
	if o.n < TrailLength {
		o.n++
	}
}

// Draw renders the cursor for hand. brushRadius is the reveal brush radius
// in pixels so the fist outline matches what gets painted. Returns false
// when there was nothing to draw.
func (o *Overlay) Draw(dc *gg.Context, hand gesture.HandState, p Palette, brushRadius float64) bool {
	if hand.Gesture == gesture.None {
		o.Reset()
		return false
	}

	w, h := float64(dc.Width()), float64(dc.Height())
	x, y := hand.X*w, hand.Y*h
	o.push(x, y)

	// Oldest first, fading in toward the hand.
	c := p.Cursor
	for i := 0; i < o.n; i++ {
		idx := (o.head - o.n + i + TrailLength) % TrailLength
		t := float64(i+1) / float64(o.n)
		dc.SetRGBA(c.R, c.G, c.B, c.A*0.3*t)
		dc.DrawCircle(o.trail[idx][0], o.trail[idx][1], 2)
		_ = dc.Fill()
	}

	switch hand.Gesture {
	case gesture.Fist:
		dc.SetRGBA(p.Press.R, p.Press.G, p.Press.B, p.Press.A)
		dc.SetLineWidth(1.5)
		dc.DrawCircle(x, y, brushRadius)
		_ = dc.Stroke()
	case gesture.Pinch:
		dc.SetRGBA(p.Pinch.R, p.Pinch.G, p.Pinch.B, p.Pinch.A)
		dc.DrawCircle(x, y, 5)
		_ = dc.Fill()
		dc.SetLineWidth(1)
		dc.DrawCircle(x, y, 14)
		_ = dc.Stroke()
	default:
		dc.SetRGBA(c.R, c.G, c.B, c.A)
		dc.SetLineWidth(2)
		dc.DrawCircle(x, y, 18)
		_ = dc.Stroke()
	}
	return true
}
