// Package deform is the per-vertex deformation and shading stage. Vertex and
// Fragment are pure functions; Map runs a vertex function over a mesh in
// parallel.
package deform

import (
	"math"

	"github.com/gogpu/gg"

	"github.com/ayusman/loom/internal/gesture"
	"github.com/ayusman/loom/internal/mesh"
)

// Shading constants.
const (
	// Luma weights for desaturation.
	LumaR = 0.299
	LumaG = 0.587
	LumaB = 0.114

	// PlaceholderThreshold is the source color magnitude under which no
	// frame is assumed to be available.
	PlaceholderThreshold = 0.01

	PointAlpha = 0.9
	LineAlpha  = 0.55

	// HighlightEvery selects the sparse highlighted nodes by id.
	HighlightEvery      = 29
	HighlightBoost      = 1.6
	HighlightSaturation = 1.4

	// MinClipW keeps the perspective divide away from zero under deep ripples.
	MinClipW = 0.1
	// DepthPerspective is how strongly z shrinks or grows w.
	DepthPerspective = 0.35

	// PullShrink is the point size reduction at full pull influence.
	PullShrink = 0.2
)

// Placeholder is the flat color used before any source frame exists.
var Placeholder = RGB{0.06, 0.06, 0.08}

// RGB is a linear color.
type RGB struct {
	R, G, B float64
}

// Luma returns the weighted grayscale intensity.
func (c RGB) Luma() float64 {
	return c.R*LumaR + c.G*LumaG + c.B*LumaB
}

// Gray returns c desaturated to its luma.
func (c RGB) Gray() RGB {
	l := c.Luma()
	return RGB{l, l, l}
}

// Lerp blends from c toward o by t.
func (c RGB) Lerp(o RGB, t float64) RGB {
	return RGB{
		R: c.R + (o.R-c.R)*t,
		G: c.G + (o.G-c.G)*t,
		B: c.B + (o.B-c.B)*t,
	}
}

// Scale multiplies every channel by k.
func (c RGB) Scale(k float64) RGB {
	return RGB{c.R * k, c.G * k, c.B * k}
}

// Len returns the Euclidean magnitude.
func (c RGB) Len() float64 {
	return math.Sqrt(c.R*c.R + c.G*c.G + c.B*c.B)
}

// Vec3 is a position in the aspect-corrected plane, z toward the viewer.
type Vec3 struct {
	X, Y, Z float64
}

// Vec4 is a clip-space position.
type Vec4 struct {
	X, Y, Z, W float64
}

// Uniforms are the per-frame parameters shared by every vertex.
type Uniforms struct {
	Time       float64 // Scaled animation time in seconds
	Aspect     float64 // Surface width / height
	Brightness float64
	PointScale float64 // Base point diameter in pixels
	Gesture    gesture.Code
	Hand       gesture.HandState
}

// NewUniforms builds the uniforms for one frame.
func NewUniforms(t, aspect, brightness, pointScale float64, hand gesture.HandState) Uniforms {
	if aspect <= 0 || math.IsNaN(aspect) {
		aspect = 1
	}
	return Uniforms{
		Time:       t,
		Aspect:     aspect,
		Brightness: brightness,
		PointScale: pointScale,
		Gesture:    hand.Gesture,
		Hand:       hand,
	}
}

// HandPlane returns the hand position in the same plane as Output.Position.
func (u Uniforms) HandPlane() (x, y float64) {
	return (u.Hand.X - 0.5) * 2 * u.Aspect, (0.5 - u.Hand.Y) * 2
}

// Input is everything one vertex invocation reads besides the uniforms.
type Input struct {
	Vertex mesh.Vertex
	Source RGB     // Source color sampled at (u, 1-v)
	Mask   float64 // Reveal mask sampled at (u, 1-v)
}

// Output is the deformed vertex.
type Output struct {
	Position  Vec3
	Clip      Vec4
	Color     RGB
	PointSize float64
	Influence float64
}

// Screen maps the clip position to pixel coordinates, origin top-left.
func (o Output) Screen(width, height float64) (x, y float64) {
	nx := o.Clip.X / o.Clip.W
	ny := o.Clip.Y / o.Clip.W
	return (nx + 1) * 0.5 * width, (1 - ny) * 0.5 * height
}

// Vertex deforms and colors one vertex. The same inputs always give the
// same output.
func Vertex(in Input, u Uniforms, m Mapping) Output {
	aspect := u.Aspect
	if aspect <= 0 {
		aspect = 1
	}

	color := baseColor(in.Source, in.Mask)
	pos := Vec3{
		X: (in.Vertex.U - 0.5) * 2 * aspect,
		Y: (in.Vertex.V - 0.5) * 2,
	}

	hx, hy := (u.Hand.X-0.5)*2*aspect, (0.5-u.Hand.Y)*2
	dist := math.Hypot(pos.X-hx, pos.Y-hy)

	p := m.For(u.Gesture)
	shrink := 1.0
	var influence float64

	if p.Behavior != BehaviorNone && dist < p.Radius &&
		(p.MaskThreshold <= 0 || in.Mask > p.MaskThreshold) {
		influence = smoothstep(p.Radius, 0, dist)

		switch p.Behavior {
		case BehaviorPull:
			k := influence * p.PullStrength
			tx := hx + (pos.X-hx)*p.PullFactor
			ty := hy + (pos.Y-hy)*p.PullFactor
			pos.X += (tx - pos.X) * k
			pos.Y += (ty - pos.Y) * k

			pos.X += u.Hand.VX * 2 * aspect * p.WaveAmplitude * influence
			pos.Y -= u.Hand.VY * 2 * p.WaveAmplitude * influence

			var wave float64
			if p.WovenRipple {
				f := p.RippleFrequency
				wave = math.Sin(in.Vertex.U*f) * math.Cos(in.Vertex.V*f)
			} else {
				wave = math.Sin(dist*p.RippleFrequency - u.Time*p.RippleSpeed)
			}
			pos.Z += wave * p.RippleAmplitude * influence

			color = color.Lerp(p.Accent, influence*p.AccentStrength)
			shrink = 1 - PullShrink*influence

		case BehaviorPress:
			if dist < p.InnerRadius {
				pos.Z = -(p.InnerRadius - dist) * p.PressDepth
			}

		case BehaviorRipple:
			pos.Z += math.Sin(dist*p.RippleFrequency-u.Time*p.RippleSpeed) * p.RippleAmplitude * influence
			c := influence * p.Contraction
			pos.X += (hx - pos.X) * c
			pos.Y += (hy - pos.Y) * c
			color = color.Lerp(p.Accent, influence*p.AccentStrength)
		}
	}

	w := math.Max(MinClipW, 1-DepthPerspective*pos.Z)
	return Output{
		Position:  pos,
		Clip:      Vec4{X: pos.X / aspect, Y: pos.Y, Z: pos.Z, W: w},
		Color:     color,
		PointSize: u.PointScale * (1 + in.Mask) * shrink / w,
		Influence: influence,
	}
}

// Fragment turns a vertex output into the final straight-alpha color.
func Fragment(out Output, id int, topology mesh.Topology, brightness float64) gg.RGBA {
	c := out.Color.Scale(brightness)

	alpha := PointAlpha
	if topology == mesh.TopologyLines {
		alpha = LineAlpha
	}

	if id%HighlightEvery == 0 {
		c = c.Scale(HighlightBoost)
		c = c.Gray().Lerp(c, HighlightSaturation)
		alpha = 1
	}

	alpha *= clamp(0.75+1.5*out.Position.Z, 0.3, 1)

	return gg.RGBA{
		R: clamp(c.R, 0, 1),
		G: clamp(c.G, 0, 1),
		B: clamp(c.B, 0, 1),
		A: clamp(alpha, 0, 1),
	}
}

func baseColor(src RGB, m float64) RGB {
	if src.Len() < PlaceholderThreshold {
		return Placeholder
	}
	return src.Gray().Lerp(src, clamp(m, 0, 1))
}

// smoothstep is the Hermite step between edge0 and edge1. Edges may be
// reversed, which gives a falloff from 1 at edge1 to 0 at edge0.
func smoothstep(edge0, edge1, x float64) float64 {
	if edge0 == edge1 {
		if x < edge0 {
			return 0
		}
		return 1
	}
	t := clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo || math.IsNaN(x) {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
