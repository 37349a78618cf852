// Package mask keeps the reveal mask: a surface-sized raster that records
// where the hand has painted the mesh into color.
package mask

import (
	"image"
	"image/color"
	"math"
)

// Mask is a float raster of intensities in [0, 1].
// Values only increase, except that Resize to a new size clears everything.
type Mask struct {
	width  int
	height int
	data   []float32
}

// New creates an all-zero mask. Non-positive dimensions give an empty mask.
func New(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{
		width:  width,
		height: height,
		data:   make([]float32, width*height),
	}
}

// Width returns the mask width in pixels.
func (m *Mask) Width() int { return m.width }

// Height returns the mask height in pixels.
func (m *Mask) Height() int { return m.height }

// Empty reports whether the mask has no pixels.
func (m *Mask) Empty() bool { return m.width == 0 || m.height == 0 }

// Resize reallocates the mask when the size changes and reports whether it did.
// Painted content is discarded, not rescaled.
func (m *Mask) Resize(width, height int) bool {
	if width == m.width && height == m.height {
		return false
	}
	*m = *New(width, height)
	return true
}

// Value returns the intensity at pixel (x, y), or 0 outside the mask.
func (m *Mask) Value(x, y int) float64 {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return 0
	}
	return float64(m.data[y*m.width+x])
}

// Lighten raises pixel (x, y) to at least v. It never lowers a value and
// never stores more than 1. Returns true if the pixel changed.
func (m *Mask) Lighten(x, y int, v float64) bool {
	if x < 0 || x >= m.width || y < 0 || y >= m.height {
		return false
	}
	if v > 1 {
		v = 1
	}
	i := y*m.width + x
	nv := float32(v)
	if nv <= m.data[i] {
		return false
	}
	m.data[i] = nv
	return true
}

// Sample returns the intensity at texture coordinate (s, t), origin top-left,
// using the nearest texel. Coordinates are clamped to the edge.
func (m *Mask) Sample(s, t float64) float64 {
	if m.Empty() {
		return 0
	}
	x := int(math.Floor(clamp01(s)*float64(m.width-1) + 0.5))
	y := int(math.Floor(clamp01(t)*float64(m.height-1) + 0.5))
	return float64(m.data[y*m.width+x])
}

// Max returns the largest intensity in the mask.
func (m *Mask) Max() float64 {
	var hi float32
	for _, v := range m.data {
		if v > hi {
			hi = v
		}
	}
	return float64(hi)
}

// ColorModel implements image.Image.
func (m *Mask) ColorModel() color.Model { return color.Gray16Model }

// Bounds implements image.Image.
func (m *Mask) Bounds() image.Rectangle { return image.Rect(0, 0, m.width, m.height) }

// At implements image.Image so a mask can be encoded for inspection.
func (m *Mask) At(x, y int) color.Color {
	return color.Gray16{Y: uint16(m.Value(x, y)*0xffff + 0.5)}
}

// Clone returns an independent copy.
func (m *Mask) Clone() *Mask {
	c := New(m.width, m.height)
	copy(c.data, m.data)
	return c
}

func clamp01(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
