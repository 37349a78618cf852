package detector

import (
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestHandLandmarks_Distance(t *testing.T) {
	hand := HandLandmarks{}
	hand.Points[Wrist] = Point3D{X: 0.1, Y: 0.2, Z: 5.0}
	hand.Points[MiddleMCP] = Point3D{X: 0.4, Y: 0.6, Z: -5.0}

	got := hand.Distance(Wrist, MiddleMCP)
	if math.Abs(got-0.5) > epsilon {
		t.Errorf("Distance() = %f, want 0.5 (z ignored)", got)
	}
	if hand.Distance(MiddleMCP, Wrist) != got {
		t.Error("Distance() should be symmetric")
	}
}

func TestHandLandmarks_Translate(t *testing.T) {
	hand := OpenPalmLandmarks()
	moved := hand.Translate(0.1, -0.2)

	for i := 0; i < NumLandmarks; i++ {
		if math.Abs(moved.Points[i].X-(hand.Points[i].X+0.1)) > epsilon {
			t.Fatalf("landmark %d X = %f, want %f", i, moved.Points[i].X, hand.Points[i].X+0.1)
		}
		if math.Abs(moved.Points[i].Y-(hand.Points[i].Y-0.2)) > epsilon {
			t.Fatalf("landmark %d Y = %f, want %f", i, moved.Points[i].Y, hand.Points[i].Y-0.2)
		}
	}

	if hand.Points[Wrist].X != 0.5 {
		t.Error("Translate should not modify the receiver")
	}
	if moved.Handedness != hand.Handedness || moved.Score != hand.Score {
		t.Error("Translate should preserve handedness and score")
	}
}

func TestPrimary(t *testing.T) {
	t.Run("no hands", func(t *testing.T) {
		if Primary(nil) != nil {
			t.Error("expected nil for no hands")
		}
	})

	t.Run("first hand wins", func(t *testing.T) {
		hands := []HandLandmarks{FistLandmarks(), OpenPalmLandmarks()}
		got := Primary(hands)
		if got != &hands[0] {
			t.Error("expected pointer to the first hand")
		}
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil, 0)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{PinchLandmarks(), OpenPalmLandmarks()})

		hands, err := mock.Detect(nil, 33)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 2 {
			t.Errorf("expected 2 hands, got %d", len(hands))
		}
		if mock.Calls() != 1 {
			t.Errorf("Calls() = %d, want 1", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetError(ErrNotReady)

		hands, err := mock.Detect(nil, 0)

		if !errors.Is(err, ErrNotReady) {
			t.Errorf("expected ErrNotReady, got %v", err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("Close returns nil", func(t *testing.T) {
		if err := NewMockDetector().Close(); err != nil {
			t.Errorf("expected Close to return nil, got %v", err)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestFixtures(t *testing.T) {
	t.Run("fist folds middle and ring tips toward the wrist", func(t *testing.T) {
		h := FistLandmarks()
		if h.Distance(MiddleTip, Wrist) >= 0.8*h.Distance(MiddleMCP, Wrist) {
			t.Error("middle tip not folded")
		}
		if h.Distance(RingTip, Wrist) >= 0.8*h.Distance(RingMCP, Wrist) {
			t.Error("ring tip not folded")
		}
		if h.Distance(ThumbTip, IndexTip) < 0.06 {
			t.Error("fist fixture should not read as a pinch")
		}
	})

	t.Run("open palm keeps fingers extended", func(t *testing.T) {
		h := OpenPalmLandmarks()
		if h.Distance(MiddleTip, Wrist) <= h.Distance(MiddleMCP, Wrist) {
			t.Error("middle finger should extend past its base")
		}
		if h.Distance(ThumbTip, IndexTip) < 0.05 {
			t.Error("open palm should not read as a pinch")
		}
	})

	t.Run("pinch touches thumb and index", func(t *testing.T) {
		h := PinchLandmarks()
		if h.Distance(ThumbTip, IndexTip) >= 0.05 {
			t.Errorf("thumb-index distance = %f, want < 0.05", h.Distance(ThumbTip, IndexTip))
		}
		if h.Distance(MiddleTip, Wrist) < 0.85*h.Distance(MiddleMCP, Wrist) {
			t.Error("pinch fixture middle finger should stay extended")
		}
	})
}

func TestParseResponse(t *testing.T) {
	t.Run("valid response", func(t *testing.T) {
		points := `[`
		for i := 0; i < NumLandmarks; i++ {
			if i > 0 {
				points += ","
			}
			points += `{"x":0.5,"y":0.25,"z":0}`
		}
		points += `]`
		line := `{"hands":[{"points":` + points + `,"handedness":"Left","score":0.8}]}`

		hands, err := parseResponse([]byte(line))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(hands) != 1 {
			t.Fatalf("expected 1 hand, got %d", len(hands))
		}
		if hands[0].Handedness != "Left" || hands[0].Points[PinkyTip].Y != 0.25 {
			t.Errorf("unexpected hand: %+v", hands[0])
		}
	})

	t.Run("short hands are dropped", func(t *testing.T) {
		hands, err := parseResponse([]byte(`{"hands":[{"points":[{"x":1,"y":1,"z":0}]}]}`))
		if err != nil {
			t.Fatalf("parseResponse() error = %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected 0 hands, got %d", len(hands))
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		if _, err := parseResponse([]byte(`not json`)); err == nil {
			t.Error("expected error for invalid JSON")
		}
	})
}
