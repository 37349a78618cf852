package capture

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

// SampleWidth is the default width source frames are shrunk to. Vertex
// colors come from a few thousand samples, so a small raster is enough.
const SampleWidth = 320

// Frame is a packed 8-bit RGB raster, origin top-left. It is immutable once
// published and may be sampled from many goroutines.
type Frame struct {
	Width     int
	Height    int
	Pix       []uint8 // 3 bytes per pixel, row-major
	Timestamp int64   // Milliseconds
}

// NewFrame allocates a black frame.
func NewFrame(width, height int) *Frame {
	return &Frame{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*3),
	}
}

// Set writes pixel (x, y).
func (f *Frame) Set(x, y int, c color.RGBA) {
	if x < 0 || x >= f.Width || y < 0 || y >= f.Height {
		return
	}
	i := (y*f.Width + x) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = c.R, c.G, c.B
}

// Sample returns the bilinearly filtered color at texture coordinate (s, t)
// with channels in [0, 1]. Coordinates are clamped to the edge. A nil or
// empty frame samples black.
func (f *Frame) Sample(s, t float64) (r, g, b float64) {
	if f == nil || f.Width == 0 || f.Height == 0 {
		return 0, 0, 0
	}

	x := clampUnit(s) * float64(f.Width-1)
	y := clampUnit(t) * float64(f.Height-1)
	x0, y0 := int(x), int(y)
	x1, y1 := min(x0+1, f.Width-1), min(y0+1, f.Height-1)
	fx, fy := x-float64(x0), y-float64(y0)

	i00 := (y0*f.Width + x0) * 3
	i10 := (y0*f.Width + x1) * 3
	i01 := (y1*f.Width + x0) * 3
	i11 := (y1*f.Width + x1) * 3

	ch := func(c int) float64 {
		top := float64(f.Pix[i00+c])*(1-fx) + float64(f.Pix[i10+c])*fx
		bot := float64(f.Pix[i01+c])*(1-fx) + float64(f.Pix[i11+c])*fx
		return (top*(1-fy) + bot*fy) / 255
	}
	return ch(0), ch(1), ch(2)
}

// FrameFromImage converts img to a Frame no wider than maxWidth, keeping
// the aspect ratio. maxWidth <= 0 keeps the original size.
func FrameFromImage(img image.Image, maxWidth int) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxWidth > 0 && w > maxWidth {
		h = max(h*maxWidth/w, 1)
		w = maxWidth
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	f := NewFrame(w, h)
	for y := 0; y < h; y++ {
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x := 0; x < w; x++ {
			o := (y*w + x) * 3
			f.Pix[o] = row[x*4]
			f.Pix[o+1] = row[x*4+1]
			f.Pix[o+2] = row[x*4+2]
		}
	}
	return f
}

// FrameFromMat converts a BGR camera Mat to a Frame. The image is mirrored
// horizontally when mirror is set, to match the mirrored hand position, and
// shrunk to at most maxWidth.
func FrameFromMat(mat *gocv.Mat, maxWidth int, mirror bool) (*Frame, error) {
	if mat == nil || mat.Empty() {
		return nil, ErrEmptyFrame
	}
	if mat.Channels() != 3 {
		return nil, fmt.Errorf("frame has %d channels, want 3", mat.Channels())
	}

	work := gocv.NewMat()
	defer work.Close()

	if maxWidth > 0 && mat.Cols() > maxWidth {
		h := max(mat.Rows()*maxWidth/mat.Cols(), 1)
		gocv.Resize(*mat, &work, image.Pt(maxWidth, h), 0, 0, gocv.InterpolationArea)
	} else {
		mat.CopyTo(&work)
	}

	if mirror {
		gocv.Flip(work, &work, 1)
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(work, &rgb, gocv.ColorBGRToRGB)

	w, h := rgb.Cols(), rgb.Rows()
	data := rgb.ToBytes()
	if len(data) < w*h*3 {
		return nil, fmt.Errorf("frame buffer is %d bytes, want %d", len(data), w*h*3)
	}

	f := &Frame{Width: w, Height: h, Pix: make([]uint8, w*h*3)}
	copy(f.Pix, data)
	return f, nil
}

func clampUnit(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
