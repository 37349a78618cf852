package mask

import (
	"math"

	"github.com/gogpu/gg"

	"github.com/ayusman/loom/internal/gesture"
)

// Brush defaults.
const (
	// ReferenceRadius is the outer brush radius in pixels at ReferenceHeight.
	ReferenceRadius = 80.0
	// ReferenceHeight is the surface height the radius is specified for.
	ReferenceHeight = 720.0
	// DefaultStrength is the fraction of the remaining headroom one stamp fills at the brush center.
	DefaultStrength = 0.35
)

// Painter owns the reveal mask and stamps it while the hand is a fist.
// It is used only from the render loop.
type Painter struct {
	mask     *Mask
	strength float64
}

// NewPainter creates a painter with an empty mask of the given size.
func NewPainter(width, height int) *Painter {
	return &Painter{
		mask:     New(width, height),
		strength: DefaultStrength,
	}
}

// SetStrength sets the per-stamp strength, clamped to (0, 1].
func (p *Painter) SetStrength(s float64) {
	if s <= 0 || math.IsNaN(s) {
		return
	}
	if s > 1 {
		s = 1
	}
	p.strength = s
}

// Mask returns the mask for read-only sampling.
func (p *Painter) Mask() *Mask {
	return p.mask
}

// Resize tracks the display surface. A new size clears the mask.
func (p *Painter) Resize(width, height int) bool {
	return p.mask.Resize(width, height)
}

// Radius returns the outer brush radius for the current surface height.
func (p *Painter) Radius() float64 {
	return ReferenceRadius * float64(p.mask.Height()) / ReferenceHeight
}

// Paint stamps the brush at the hand position when the gesture is a fist.
// Returns true if a stamp was applied.
func (p *Painter) Paint(state gesture.HandState) bool {
	if state.Gesture != gesture.Fist || p.mask.Empty() {
		return false
	}
	p.Stamp(state.X*float64(p.mask.Width()), state.Y*float64(p.mask.Height()), p.Radius())
	return true
}

// Stamp applies one soft circular stroke centered at (cx, cy) in pixels.
//
// Each covered pixel moves toward 1 by strength*falloff of its remaining
// headroom and is only ever raised, so overlapping strokes brighten toward
// saturation without summing past it.
func (p *Painter) Stamp(cx, cy, radius float64) {
	if radius <= 0 {
		return
	}

	brush := gg.NewRadialGradientBrush(cx, cy, 0, radius).
		AddColorStop(0, gg.RGBA{R: 1, G: 1, B: 1, A: 1}).
		AddColorStop(1, gg.RGBA{R: 1, G: 1, B: 1, A: 0})

	x0 := int(math.Floor(cx - radius))
	x1 := int(math.Ceil(cx + radius))
	y0 := int(math.Floor(cy - radius))
	y1 := int(math.Ceil(cy + radius))

	m := p.mask
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, m.width-1), min(y1, m.height-1)

	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			falloff := brush.ColorAt(float64(x)+0.5, float64(y)+0.5).A
			if falloff <= 0 {
				continue
			}
			old := m.Value(x, y)
			m.Lighten(x, y, old+(1-old)*p.strength*falloff)
		}
	}
}
