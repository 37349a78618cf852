package gesture

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/ayusman/loom/internal/detector"
)

const epsilon = 1e-9

func handAt(h detector.HandLandmarks, x, y float64) *detector.HandLandmarks {
	base := h.Points[detector.MiddleMCP]
	moved := h.Translate(x-base.X, y-base.Y)
	return &moved
}

func TestVariant_Classify(t *testing.T) {
	variants := []Variant{VariantWeave, VariantWave}

	tests := []struct {
		name string
		hand detector.HandLandmarks
		want Code
	}{
		{name: "open palm", hand: detector.OpenPalmLandmarks(), want: Open},
		{name: "fist", hand: detector.FistLandmarks(), want: Fist},
		{name: "pinch with neutral fingers", hand: detector.PinchLandmarks(), want: Pinch},
	}

	for _, v := range variants {
		for _, tt := range tests {
			t.Run(v.Name+"/"+tt.name, func(t *testing.T) {
				hand := tt.hand
				if got := v.Classify(&hand, None); got != tt.want {
					t.Errorf("Classify() = %v, want %v", got, tt.want)
				}
			})
		}
	}

	t.Run("nil hand", func(t *testing.T) {
		if got := VariantWeave.Classify(nil, Open); got != None {
			t.Errorf("Classify(nil) = %v, want NONE", got)
		}
	})
}

func TestVariant_PriorityOrder(t *testing.T) {
	// A fist whose thumb rests on the index tip matches both rules.
	hand := detector.FistLandmarks()
	hand.Points[detector.ThumbTip] = detector.Point3D{X: 0.53, Y: 0.72}

	if got := VariantWeave.Classify(&hand, None); got != Pinch {
		t.Errorf("weave Classify() = %v, want PINCH (pinch first)", got)
	}
	if got := VariantWave.Classify(&hand, None); got != Fist {
		t.Errorf("wave Classify() = %v, want FIST (fist first)", got)
	}
}

func TestVariant_StrictFistNeedsRing(t *testing.T) {
	hand := detector.FistLandmarks()
	// Extend the ring finger only.
	hand.Points[detector.RingTip] = detector.Point3D{X: 0.42, Y: 0.35}

	if got := VariantWeave.Classify(&hand, None); got != Fist {
		t.Errorf("weave Classify() = %v, want FIST (middle only)", got)
	}
	if got := VariantWave.Classify(&hand, None); got != Open {
		t.Errorf("wave Classify() = %v, want OPEN (ring extended)", got)
	}
}

func TestVariant_PinchHysteresis(t *testing.T) {
	hand := detector.PinchLandmarks()
	// 0.055 apart: above the enter threshold, below the release threshold.
	hand.Points[detector.ThumbTip] = detector.Point3D{X: 0.655, Y: 0.50}

	if got := VariantWeave.Classify(&hand, Open); got != Open {
		t.Errorf("from OPEN: Classify() = %v, want OPEN", got)
	}
	if got := VariantWeave.Classify(&hand, Pinch); got != Pinch {
		t.Errorf("from PINCH: Classify() = %v, want PINCH", got)
	}

	hand.Points[detector.ThumbTip] = detector.Point3D{X: 0.67, Y: 0.50}
	if got := VariantWeave.Classify(&hand, Pinch); got != Open {
		t.Errorf("past release: Classify() = %v, want OPEN", got)
	}
}

func TestClassifier_AlwaysValidCode(t *testing.T) {
	c := NewClassifier(VariantWave)
	hands := []*detector.HandLandmarks{nil}
	for _, h := range []detector.HandLandmarks{
		detector.OpenPalmLandmarks(), detector.FistLandmarks(), detector.PinchLandmarks(), {},
	} {
		h := h
		hands = append(hands, &h)
	}

	for i := 0; i < 50; i++ {
		s := c.Update(hands[i%len(hands)])
		if !s.Gesture.Valid() {
			t.Fatalf("cycle %d produced invalid gesture %v", i, s.Gesture)
		}
	}
}

func TestClassifier_Smoothing(t *testing.T) {
	c := NewClassifier(VariantWeave)

	// lm[9] at (0.2, 0.4) gives a mirrored target of (0.8, 0.4).
	s := c.Update(handAt(detector.OpenPalmLandmarks(), 0.2, 0.4))

	wantX := 0.5 + (0.8-0.5)*PositionFollow
	wantY := 0.5 + (0.4-0.5)*PositionFollow
	if math.Abs(s.X-wantX) > epsilon || math.Abs(s.Y-wantY) > epsilon {
		t.Errorf("position = (%f, %f), want (%f, %f)", s.X, s.Y, wantX, wantY)
	}
	if s.VX != 0 || s.VY != 0 {
		t.Errorf("first sample velocity = (%f, %f), want 0", s.VX, s.VY)
	}

	// Move the raw hand left by 0.1, which is +0.1 after mirroring.
	s = c.Update(handAt(detector.OpenPalmLandmarks(), 0.1, 0.4))
	if math.Abs(s.VX-0.1*(1-VelocityRetain)) > epsilon {
		t.Errorf("VX = %f, want %f", s.VX, 0.1*(1-VelocityRetain))
	}
	if math.Abs(s.VY) > epsilon {
		t.Errorf("VY = %f, want 0", s.VY)
	}

	prevVX := s.VX
	s = c.Update(handAt(detector.OpenPalmLandmarks(), 0.1, 0.4))
	if math.Abs(s.VX-prevVX*VelocityRetain) > epsilon {
		t.Errorf("stationary VX = %f, want %f", s.VX, prevVX*VelocityRetain)
	}
}

func TestClassifier_ConvergesOnTarget(t *testing.T) {
	c := NewClassifier(VariantWeave)
	hand := handAt(detector.FistLandmarks(), 0.3, 0.7)

	var s HandState
	for i := 0; i < 60; i++ {
		s = c.Update(hand)
	}
	if math.Abs(s.X-0.7) > 1e-6 || math.Abs(s.Y-0.7) > 1e-6 {
		t.Errorf("position = (%f, %f), want (0.7, 0.7)", s.X, s.Y)
	}
	if s.Gesture != Fist {
		t.Errorf("gesture = %v, want FIST", s.Gesture)
	}
}

func TestClassifier_LostHandDecay(t *testing.T) {
	c := NewClassifier(VariantWeave)

	x := 0.2
	for i := 0; i < 10; i++ {
		c.Update(handAt(detector.OpenPalmLandmarks(), x, 0.5))
		x += 0.05
	}
	start := c.State()
	if start.VX == 0 {
		t.Fatal("expected non-zero velocity after moving the hand")
	}
	speed0 := math.Hypot(start.VX, start.VY)

	var s HandState
	for i := 0; i < 44; i++ {
		s = c.Update(nil)
		if s.Gesture != None {
			t.Fatalf("cycle %d: gesture = %v, want NONE", i, s.Gesture)
		}
	}

	if got := math.Hypot(s.VX, s.VY); got >= 0.01*speed0 {
		t.Errorf("speed after 44 lost cycles = %g, want < %g", got, 0.01*speed0)
	}
	if s.X != start.X || s.Y != start.Y {
		t.Error("position should hold while the hand is lost")
	}
}

func TestClassifier_ReacquireNoSpike(t *testing.T) {
	c := NewClassifier(VariantWeave)
	c.Update(handAt(detector.OpenPalmLandmarks(), 0.1, 0.1))
	c.Update(nil)

	s := c.Update(handAt(detector.OpenPalmLandmarks(), 0.9, 0.9))
	if s.VX != 0 || s.VY != 0 {
		t.Errorf("velocity after re-acquire = (%f, %f), want decayed zero", s.VX, s.VY)
	}
}

func TestClassifier_HandAbsentWholeSession(t *testing.T) {
	c := NewClassifier(VariantWave)
	for i := 0; i < 100; i++ {
		s := c.Update(nil)
		if s != Rest {
			t.Fatalf("cycle %d: state = %+v, want %+v", i, s, Rest)
		}
	}
}

func TestLookupVariant(t *testing.T) {
	for _, name := range []string{"weave", "wave"} {
		v, err := LookupVariant(name)
		if err != nil {
			t.Fatalf("LookupVariant(%q) error = %v", name, err)
		}
		if v.Name != name {
			t.Errorf("LookupVariant(%q).Name = %q", name, v.Name)
		}
	}
	if _, err := LookupVariant("spiral"); err == nil {
		t.Error("expected error for unknown variant")
	}
}

func TestCode(t *testing.T) {
	for _, c := range []Code{None, Fist, Open, Pinch} {
		parsed, err := ParseCode(c.String())
		if err != nil || parsed != c {
			t.Errorf("ParseCode(%q) = %v, %v", c.String(), parsed, err)
		}
	}
	if Code(9).Valid() {
		t.Error("Code(9) should not be valid")
	}
	b, _ := Pinch.MarshalJSON()
	if string(b) != `"PINCH"` {
		t.Errorf("MarshalJSON() = %s", b)
	}
	var bad Code
	if err := json.Unmarshal([]byte(`"WAVE"`), &bad); err == nil {
		t.Error("expected error for unknown gesture name")
	}
	if err := json.Unmarshal([]byte(`2`), &bad); err == nil {
		t.Error("expected error for numeric gesture")
	}
}

func TestHandStateJSON(t *testing.T) {
	for _, want := range []HandState{
		Rest,
		{X: 0.2, Y: 0.8, VX: 0.01, VY: -0.02, Gesture: Fist},
		{X: 0.6, Y: 0.4, Gesture: Pinch},
	} {
		b, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal(%+v) error = %v", want, err)
		}
		var got HandState
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", b, err)
		}
		if got != want {
			t.Errorf("decoded %s = %+v, want %+v", b, got, want)
		}
	}
}

func TestCell(t *testing.T) {
	t.Run("starts at rest", func(t *testing.T) {
		if got := NewCell().Load(); got != Rest {
			t.Errorf("Load() = %+v, want %+v", got, Rest)
		}
		var zero Cell
		if got := zero.Load(); got != Rest {
			t.Errorf("zero Cell Load() = %+v, want %+v", got, Rest)
		}
	})

	t.Run("latest wins", func(t *testing.T) {
		c := NewCell()
		c.Store(HandState{X: 0.1, Gesture: Open})
		c.Store(HandState{X: 0.2, Gesture: Fist})
		if got := c.Load(); got.X != 0.2 || got.Gesture != Fist {
			t.Errorf("Load() = %+v", got)
		}
	})

	t.Run("concurrent readers", func(t *testing.T) {
		c := NewCell()
		var wg sync.WaitGroup
		for r := 0; r < 4; r++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 1000; i++ {
					if s := c.Load(); !s.Gesture.Valid() {
						t.Errorf("invalid gesture %v", s.Gesture)
						return
					}
				}
			}()
		}
		for i := 0; i < 1000; i++ {
			c.Store(HandState{X: float64(i) / 1000, Gesture: Code(i % 4)})
		}
		wg.Wait()
	})
}
