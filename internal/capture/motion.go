package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion detection constants.
const (
	// GaussianBlurSize is the blur kernel applied before differencing.
	GaussianBlurSize = 21
	// DiffThreshold is the per-pixel gray difference that counts as change.
	DiffThreshold = 25
	// MotionWidth is the width frames are shrunk to before comparison.
	MotionWidth = 160
	// DefaultHold is how many quiet cycles stay active after the last motion.
	DefaultHold = 15
)

// MotionDetector compares consecutive frames and reports whether the scene
// is moving. It drives the detection loop between its idle and active rate.
type MotionDetector struct {
	threshold   float64
	hold        int
	quiet       int
	prevGray    gocv.Mat
	initialized bool
	mu          sync.Mutex
}

// NewMotionDetector creates a detector. threshold is the percentage of
// pixels that must change for a frame to count as motion.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{
		threshold: threshold,
		hold:      DefaultHold,
		quiet:     DefaultHold,
		prevGray:  gocv.NewMat(),
	}
}

// Detect compares frame with the previous one and returns whether it
// moved and the percentage of changed pixels. The first frame only sets
// the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	small := gocv.NewMat()
	defer small.Close()
	if frame.Cols() > MotionWidth {
		h := frame.Rows() * MotionWidth / frame.Cols()
		gocv.Resize(*frame, &small, image.Pt(MotionWidth, max(h, 1)), 0, 0, gocv.InterpolationArea)
	} else {
		frame.CopyTo(&small)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if small.Channels() > 1 {
		gocv.CvtColor(small, &gray, gocv.ColorBGRToGray)
	} else {
		small.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(GaussianBlurSize, GaussianBlurSize), 0, 0, gocv.BorderDefault)

	if !m.initialized || blurred.Rows() != m.prevGray.Rows() || blurred.Cols() != m.prevGray.Cols() {
		blurred.CopyTo(&m.prevGray)
		m.initialized = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100
	blurred.CopyTo(&m.prevGray)

	moving := changed > m.threshold
	if moving {
		m.quiet = 0
	} else if m.quiet < m.hold {
		m.quiet++
	}
	return moving, changed
}

// Active reports whether motion was seen within the last hold cycles.
func (m *MotionDetector) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quiet < m.hold
}

// SetHold sets how many quiet cycles keep the detector active.
func (m *MotionDetector) SetHold(cycles int) {
	if cycles < 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = cycles
	m.quiet = min(m.quiet, cycles)
}

// Reset drops the baseline so the next frame starts fresh.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.prevGray.Empty() {
		m.prevGray.Close()
		m.prevGray = gocv.NewMat()
	}
	m.initialized = false
	m.quiet = m.hold
}

// Close releases the baseline Mat.
func (m *MotionDetector) Close() {
	m.Reset()
}

// SetThreshold sets the changed-pixel percentage. Values <= 0 are ignored.
func (m *MotionDetector) SetThreshold(threshold float64) {
	if threshold <= 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.threshold = threshold
}
