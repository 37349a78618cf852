package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestNewMotionDetector(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
	}{
		{name: "default threshold", threshold: 1.0},
		{name: "high threshold", threshold: 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := NewMotionDetector(tt.threshold)
			defer md.Close()

			if md.threshold != tt.threshold {
				t.Errorf("threshold = %f, want %f", md.threshold, tt.threshold)
			}
			if md.initialized {
				t.Error("detector should not be initialized initially")
			}
			if md.Active() {
				t.Error("detector should start idle")
			}
		})
	}
}

func blackWhite(t *testing.T) (gocv.Mat, gocv.Mat) {
	t.Helper()
	black := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	white := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))
	t.Cleanup(func() {
		black.Close()
		white.Close()
	})
	return black, white
}

func TestMotionDetector_NoMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()
	black, _ := blackWhite(t)

	if moved, pct := md.Detect(&black); moved || pct != 0 {
		t.Errorf("first frame = %v, %f, want baseline only", moved, pct)
	}
	if moved, pct := md.Detect(&black); moved {
		t.Errorf("identical frames detected motion, changed = %f", pct)
	}
	if md.Active() {
		t.Error("still scene should stay idle")
	}
}

func TestMotionDetector_WithMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()
	black, white := blackWhite(t)

	md.Detect(&black)
	moved, pct := md.Detect(&white)
	if !moved {
		t.Errorf("black to white not detected, changed = %f", pct)
	}
	if pct < 50 {
		t.Errorf("changed = %f, want > 50", pct)
	}
	if !md.Active() {
		t.Error("detector should be active after motion")
	}
}

func TestMotionDetector_Hold(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()
	md.SetHold(3)
	black, white := blackWhite(t)

	md.Detect(&black)
	md.Detect(&white)

	for i := 0; i < 2; i++ {
		md.Detect(&white)
		if !md.Active() {
			t.Fatalf("quiet cycle %d: went idle before the hold expired", i)
		}
	}
	md.Detect(&white)
	if md.Active() {
		t.Error("detector should be idle after the hold")
	}
}

func TestMotionDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()
	black, white := blackWhite(t)

	md.Detect(&black)
	md.Detect(&white)
	md.Reset()

	if md.initialized {
		t.Error("detector should not be initialized after Reset")
	}
	if md.Active() {
		t.Error("Reset should return to idle")
	}
	if moved, _ := md.Detect(&black); moved {
		t.Error("first frame after Reset should only set the baseline")
	}
}

func TestMotionDetector_SetThreshold(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	md.SetThreshold(5.0)
	if md.threshold != 5.0 {
		t.Errorf("threshold = %f, want 5.0", md.threshold)
	}
	md.SetThreshold(-1.0)
	if md.threshold != 5.0 {
		t.Errorf("negative threshold should be ignored, got %f", md.threshold)
	}
}

func TestMotionDetector_NilFrame(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()
	if moved, pct := md.Detect(nil); moved || pct != 0 {
		t.Errorf("Detect(nil) = %v, %f", moved, pct)
	}
	md.Close()
	md.Close()
}
