package capture

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFrame_SampleBilinear(t *testing.T) {
	f := NewFrame(2, 2)
	f.Set(0, 0, color.RGBA{R: 0})
	f.Set(1, 0, color.RGBA{R: 255})
	f.Set(0, 1, color.RGBA{G: 255})
	f.Set(1, 1, color.RGBA{R: 255, G: 255})

	tests := []struct {
		name    string
		s, t    float64
		r, g, b float64
	}{
		{"top left", 0, 0, 0, 0, 0},
		{"top right", 1, 0, 1, 0, 0},
		{"bottom left", 0, 1, 0, 1, 0},
		{"center", 0.5, 0.5, 0.5, 0.5, 0},
		{"top middle", 0.5, 0, 0.5, 0, 0},
		{"clamped", -3, 9, 0, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := f.Sample(tt.s, tt.t)
			if !near(r, tt.r) || !near(g, tt.g) || !near(b, tt.b) {
				t.Errorf("Sample(%v, %v) = (%f, %f, %f), want (%f, %f, %f)", tt.s, tt.t, r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestFrame_SampleEmpty(t *testing.T) {
	var nilFrame *Frame
	if r, g, b := nilFrame.Sample(0.5, 0.5); r != 0 || g != 0 || b != 0 {
		t.Error("nil frame should sample black")
	}
	if r, _, _ := NewFrame(0, 0).Sample(0.5, 0.5); r != 0 {
		t.Error("empty frame should sample black")
	}
	f := NewFrame(3, 3)
	f.Set(7, 7, color.RGBA{R: 255})
}

func TestFrameFromImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 640, 360))
	for y := 0; y < 360; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 90, A: 255})
		}
	}

	t.Run("scaled down", func(t *testing.T) {
		f := FrameFromImage(img, 320)
		if f.Width != 320 || f.Height != 180 {
			t.Fatalf("size = %dx%d, want 320x180", f.Width, f.Height)
		}
		r, g, b := f.Sample(0.3, 0.7)
		if math.Abs(r-200.0/255) > 0.01 || math.Abs(g-40.0/255) > 0.01 || math.Abs(b-90.0/255) > 0.01 {
			t.Errorf("Sample() = (%f, %f, %f)", r, g, b)
		}
	})

	t.Run("kept size", func(t *testing.T) {
		f := FrameFromImage(img.SubImage(image.Rect(10, 10, 50, 30)), 0)
		if f.Width != 40 || f.Height != 20 {
			t.Errorf("size = %dx%d, want 40x20", f.Width, f.Height)
		}
		if f.Pix[0] != 200 || f.Pix[1] != 40 || f.Pix[2] != 90 {
			t.Errorf("first pixel = %v", f.Pix[:3])
		}
	})
}

func TestFrameFromMat(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	mat := SolidMat(640, 480, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	defer mat.Close()
	// Mark the left edge so mirroring is visible.
	left := mat.Region(image.Rect(0, 0, 64, 480))
	left.SetTo(gocv.NewScalar(0, 0, 255, 0))
	left.Close()

	f, err := FrameFromMat(&mat, 320, true)
	if err != nil {
		t.Fatalf("FrameFromMat() error = %v", err)
	}
	if f.Width != 320 || f.Height != 240 {
		t.Fatalf("size = %dx%d, want 320x240", f.Width, f.Height)
	}

	r, g, b := f.Sample(0.5, 0.5)
	if math.Abs(r*255-10) > 1 || math.Abs(g*255-20) > 1 || math.Abs(b*255-30) > 1 {
		t.Errorf("center = (%f, %f, %f), want RGB (10, 20, 30)", r*255, g*255, b*255)
	}
	if r, _, _ := f.Sample(1, 0.5); r < 0.9 {
		t.Errorf("mirrored right edge red = %f, want the marked left edge", r)
	}
	if r, _, _ := f.Sample(0, 0.5); r > 0.1 {
		t.Errorf("mirrored left edge red = %f, want background", r)
	}

	if _, err := FrameFromMat(nil, 320, false); err == nil {
		t.Error("expected error for nil Mat")
	}
	gray := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC1)
	defer gray.Close()
	if _, err := FrameFromMat(&gray, 320, false); err == nil {
		t.Error("expected error for single channel Mat")
	}
}

func TestSources(t *testing.T) {
	t.Run("live", func(t *testing.T) {
		s := NewLiveSource()
		if s.Frame() != nil {
			t.Error("new live source should have no frame")
		}
		f := NewFrame(4, 4)
		s.Publish(f)
		if s.Frame() != f {
			t.Error("Frame() did not return the published frame")
		}
		var _ Source = s
	})

	t.Run("static png", func(t *testing.T) {
		img := image.NewRGBA(image.Rect(0, 0, 100, 50))
		img.Set(0, 0, color.RGBA{R: 255, A: 255})
		path := filepath.Join(t.TempDir(), "still.png")
		out, err := os.Create(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := png.Encode(out, img); err != nil {
			t.Fatal(err)
		}
		out.Close()

		s, err := LoadStatic(path, 50)
		if err != nil {
			t.Fatalf("LoadStatic() error = %v", err)
		}
		if s.Path() != path {
			t.Errorf("Path() = %q", s.Path())
		}
		if f := s.Frame(); f.Width != 50 || f.Height != 25 {
			t.Errorf("size = %dx%d, want 50x25", f.Width, f.Height)
		}
		var _ Source = s
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadStatic(filepath.Join(t.TempDir(), "nope.webp"), 0); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.jpg")
		if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadStatic(path, 0); err == nil {
			t.Error("expected decode error")
		}
	})
}
