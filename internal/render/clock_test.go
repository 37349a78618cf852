package render

import (
	"math"
	"testing"
	"time"

	"github.com/gogpu/gg"

	"github.com/ayusman/loom/internal/gesture"
)

func TestClock_Advance(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		want  float64
	}{
		{"real time", 1, 2},
		{"paused", 0, 0},
		{"double", 2, 4},
		{"clamped high", 10, 6},
		{"negative", -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClock()
			if got := c.Advance(t0, tt.speed); got != 0 {
				t.Fatalf("first Advance() = %f, want 0", got)
			}
			c.Advance(t0.Add(time.Second), tt.speed)
			got := c.Advance(t0.Add(2*time.Second), tt.speed)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Advance() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestClock_SpeedChangeIsContinuous(t *testing.T) {
	c := NewClock()
	c.Advance(t0, 1)
	a := c.Advance(t0.Add(time.Second), 1)
	b := c.Advance(t0.Add(time.Second), 3)
	if a != b {
		t.Errorf("speed change jumped: %f -> %f", a, b)
	}
	got := c.Advance(t0.Add(2*time.Second), 3)
	if math.Abs(got-4) > 1e-9 {
		t.Errorf("Advance() = %f, want 4", got)
	}
}

func TestClock_IgnoresBackwardsTime(t *testing.T) {
	c := NewClock()
	c.Advance(t0, 1)
	c.Advance(t0.Add(time.Second), 1)
	if got := c.Advance(t0, 1); got != 1 {
		t.Errorf("Advance(earlier) = %f, want 1", got)
	}
}

func TestClock_StopReset(t *testing.T) {
	c := NewClock()
	c.Advance(t0, 1)
	c.Advance(t0.Add(time.Second), 1)
	c.Stop()

	// The gap while stopped is not counted.
	if got := c.Advance(t0.Add(time.Hour), 1); got != 1 {
		t.Errorf("Advance() after Stop = %f, want 1", got)
	}
	c.Reset()
	if c.Elapsed() != 0 {
		t.Errorf("Elapsed() after Reset = %f", c.Elapsed())
	}
}

func TestLookupPalette(t *testing.T) {
	for _, name := range PaletteNames() {
		p, err := LookupPalette(name)
		if err != nil {
			t.Fatalf("LookupPalette(%q) error = %v", name, err)
		}
		if p.Name != name {
			t.Errorf("palette %q has name %q", name, p.Name)
		}
	}
	if _, err := LookupPalette(DefaultPalette); err != nil {
		t.Errorf("default palette missing: %v", err)
	}
	if _, err := LookupPalette("neon"); err == nil {
		t.Error("expected error for unknown palette")
	}
}

func TestOverlay_Draw(t *testing.T) {
	dc := gg.NewContext(64, 64)
	p, _ := LookupPalette(DefaultPalette)
	var o Overlay

	if o.Draw(dc, gesture.Rest, p, 10) {
		t.Error("NONE should draw nothing")
	}

	for i, code := range []gesture.Code{gesture.Open, gesture.Fist, gesture.Pinch} {
		if !o.Draw(dc, gesture.HandState{X: 0.5, Y: 0.5, Gesture: code}, p, 10) {
			t.Errorf("%v drew nothing", code)
		}
		if o.n != i+1 {
			t.Errorf("trail length = %d, want %d", o.n, i+1)
		}
	}

	for i := 0; i < 2*TrailLength; i++ {
		o.Draw(dc, gesture.HandState{X: 0.1, Y: 0.9, Gesture: gesture.Open}, p, 10)
	}
	if o.n != TrailLength {
		t.Errorf("trail length = %d, want cap %d", o.n, TrailLength)
	}

	o.Draw(dc, gesture.Rest, p, 10)
	if o.n != 0 {
		t.Error("losing the hand should clear the trail")
	}
}
