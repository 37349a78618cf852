package gesture

import (
	"fmt"

	"github.com/ayusman/loom/internal/detector"
)

// Smoothing constants.
const (
	// VelocityRetain is the share of the previous velocity kept each cycle.
	VelocityRetain = 0.8
	// PositionFollow is the fraction of the remaining distance covered each cycle.
	PositionFollow = 0.3
	// LostDecay multiplies the velocity on each cycle without a hand.
	LostDecay = 0.9
)

// Order is the priority in which pinch and fist are tested.
type Order int

const (
	// PinchFirst tests pinch before fist.
	PinchFirst Order = iota
	// FistFirst tests fist before pinch.
	FistFirst
)

// Variant holds the classification thresholds. Variants differ in test
// order and strictness; the one in use is picked by configuration.
type Variant struct {
	Name string
	// Order decides which of pinch/fist wins when both match.
	Order Order
	// PinchEnter is the thumb-index distance below which a pinch starts.
	PinchEnter float64
	// PinchRelease is the distance above which an ongoing pinch ends.
	PinchRelease float64
	// FistRatio is the tip-to-wrist over base-to-wrist ratio below which a finger counts as folded.
	FistRatio float64
	// RequireRing also requires the ring finger to be folded.
	RequireRing bool
}

var (
	// VariantWeave tests pinch first and folds only the middle finger.
	VariantWeave = Variant{
		Name:         "weave",
		Order:        PinchFirst,
		PinchEnter:   0.05,
		PinchRelease: 0.06,
		FistRatio:    0.85,
	}

	// VariantWave tests fist first and requires middle and ring to fold.
	VariantWave = Variant{
		Name:         "wave",
		Order:        FistFirst,
		PinchEnter:   0.05,
		PinchRelease: 0.06,
		FistRatio:    0.8,
		RequireRing:  true,
	}
)

// LookupVariant returns the variant registered under name.
func LookupVariant(name string) (Variant, error) {
	switch name {
	case VariantWeave.Name:
		return VariantWeave, nil
	case VariantWave.Name:
		return VariantWave, nil
	}
	return Variant{}, fmt.Errorf("unknown gesture variant %q", name)
}

// Classifier smooths the primary hand and classifies its pose.
// It is not safe for concurrent use; the detection loop owns it and
// publishes results through a Cell.
type Classifier struct {
	variant Variant
	state   HandState
	rawX    float64
	rawY    float64
	hasRaw  bool
}

// NewClassifier returns a classifier at rest using the given variant.
func NewClassifier(v Variant) *Classifier {
	return &Classifier{
		variant: v,
		state:   Rest,
	}
}

// Variant returns the variant in use.
func (c *Classifier) Variant() Variant {
	return c.variant
}

// SetVariant switches thresholds without disturbing the smoothed motion.
func (c *Classifier) SetVariant(v Variant) {
	c.variant = v
}

// State returns the current smoothed state.
func (c *Classifier) State() HandState {
	return c.state
}

// Update advances one detection cycle. A nil hand means nothing was detected:
// the gesture drops to None and velocity decays instead of snapping to zero.
func (c *Classifier) Update(hand *detector.HandLandmarks) HandState {
	if hand == nil {
		c.state.Gesture = None
		c.state.VX *= LostDecay
		c.state.VY *= LostDecay
		// A re-acquired hand may appear anywhere; do not turn that jump into velocity.
		c.hasRaw = false
		return c.state
	}

	base := hand.Points[detector.MiddleMCP]
	tx := 1 - base.X
	ty := base.Y

	var dx, dy float64
	if c.hasRaw {
		dx = tx - c.rawX
		dy = ty - c.rawY
	}
	c.rawX, c.rawY, c.hasRaw = tx, ty, true

	c.state.VX = c.state.VX*VelocityRetain + dx*(1-VelocityRetain)
	c.state.VY = c.state.VY*VelocityRetain + dy*(1-VelocityRetain)
	c.state.X += (tx - c.state.X) * PositionFollow
	c.state.Y += (ty - c.state.Y) * PositionFollow

	c.state.Gesture = c.variant.Classify(hand, c.state.Gesture)
	return c.state
}

// Classify returns the gesture for a single hand. prev is the code from the
// previous cycle and only affects pinch release.
func (v Variant) Classify(hand *detector.HandLandmarks, prev Code) Code {
	if hand == nil {
		return None
	}

	pinch := v.isPinch(hand, prev == Pinch)
	fist := v.isFist(hand)

	switch v.Order {
	case FistFirst:
		if fist {
			return Fist
		}
		if pinch {
			return Pinch
		}
	default:
		if pinch {
			return Pinch
		}
		if fist {
			return Fist
		}
	}
	return Open
}

func (v Variant) isPinch(hand *detector.HandLandmarks, pinching bool) bool {
	limit := v.PinchEnter
	if pinching && v.PinchRelease > limit {
		limit = v.PinchRelease
	}
	return hand.Distance(detector.ThumbTip, detector.IndexTip) < limit
}

func (v Variant) isFist(hand *detector.HandLandmarks) bool {
	folded := func(tip, base int) bool {
		return hand.Distance(tip, detector.Wrist) < v.FistRatio*hand.Distance(base, detector.Wrist)
	}

	if !folded(detector.MiddleTip, detector.MiddleMCP) {
		return false
	}
	if v.RequireRing && !folded(detector.RingTip, detector.RingMCP) {
		return false
	}
	return true
}
