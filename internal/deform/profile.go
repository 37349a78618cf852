package deform

import (
	"errors"
	"fmt"

	"github.com/ayusman/loom/internal/gesture"
)

// Behavior is the kind of warp a gesture applies.
type Behavior int

const (
	// BehaviorNone leaves vertices in place.
	BehaviorNone Behavior = iota
	// BehaviorPull drags vertices toward the hand, pushes them along its
	// velocity and adds a depth ripple.
	BehaviorPull
	// BehaviorPress indents depth under the hand with no lateral motion.
	BehaviorPress
	// BehaviorRipple sends a sinusoidal depth wave outward from the hand.
	BehaviorRipple
)

func (b Behavior) String() string {
	switch b {
	case BehaviorNone:
		return "none"
	case BehaviorPull:
		return "pull"
	case BehaviorPress:
		return "press"
	case BehaviorRipple:
		return "ripple"
	default:
		return fmt.Sprintf("Behavior(%d)", int(b))
	}
}

// ErrUnknownMapping is returned by Lookup for names with no mapping.
var ErrUnknownMapping = errors.New("unknown gesture mapping")

// Profile holds the coefficients one gesture uses.
type Profile struct {
	Behavior Behavior

	// Radius is the outer reach of the warp in plane units.
	Radius float64
	// InnerRadius bounds the press indent.
	InnerRadius float64

	PullStrength  float64
	PullFactor    float64
	WaveAmplitude float64

	RippleFrequency float64
	RippleAmplitude float64
	RippleSpeed     float64
	// WovenRipple makes the pull ripple a function of UV instead of distance.
	WovenRipple bool

	// Contraction is the share of the way a rippled vertex moves toward the hand.
	Contraction float64
	// MaskThreshold, when positive, limits the warp to revealed vertices.
	MaskThreshold float64
	PressDepth    float64

	Accent         RGB
	AccentStrength float64
}

// Mapping assigns a Profile to every gesture code.
type Mapping struct {
	Name     string
	profiles [4]Profile
}

// For returns the profile for code. Unknown codes get an inert profile.
func (m Mapping) For(code gesture.Code) Profile {
	if !code.Valid() {
		return Profile{}
	}
	return m.profiles[code]
}

// Validate checks that every profile can be evaluated without producing
// NaN or an inverted falloff.
func (m Mapping) Validate() error {
	if m.profiles[gesture.None].Behavior != BehaviorNone {
		return fmt.Errorf("mapping %q: NONE must not warp", m.Name)
	}
	for code, p := range m.profiles {
		if p.Behavior == BehaviorNone {
			continue
		}
		if p.Behavior > BehaviorRipple {
			return fmt.Errorf("mapping %q: %v: %v", m.Name, gesture.Code(code), p.Behavior)
		}
		if p.Radius <= 0 {
			return fmt.Errorf("mapping %q: %v: radius must be positive", m.Name, gesture.Code(code))
		}
		if p.Behavior == BehaviorPress && (p.InnerRadius <= 0 || p.InnerRadius > p.Radius) {
			return fmt.Errorf("mapping %q: %v: inner radius must be in (0, radius]", m.Name, gesture.Code(code))
		}
		if p.MaskThreshold < 0 || p.MaskThreshold >= 1 {
			return fmt.Errorf("mapping %q: %v: mask threshold out of range", m.Name, gesture.Code(code))
		}
	}
	return nil
}

// The two mappings differ on which gesture owns the large pull wave and
// which owns the tension ripple. Both press on FIST, which is also the
// gesture the reveal painter listens to.
var (
	// MappingWeave pulls woven material on PINCH and ripples on OPEN.
	MappingWeave = Mapping{
		Name: "weave",
		profiles: [4]Profile{
			gesture.Pinch: {
				Behavior:        BehaviorPull,
				Radius:          0.45,
				PullStrength:    0.6,
				PullFactor:      0.35,
				WaveAmplitude:   3,
				RippleFrequency: 60,
				RippleAmplitude: 0.04,
				WovenRipple:     true,
				Accent:          RGB{0.95, 0.75, 0.35},
				AccentStrength:  0.5,
			},
			gesture.Fist: {
				Behavior:    BehaviorPress,
				Radius:      0.35,
				InnerRadius: 0.35,
				PressDepth:  0.8,
			},
			gesture.Open: {
				Behavior:        BehaviorRipple,
				Radius:          0.5,
				RippleFrequency: 30,
				RippleAmplitude: 0.06,
				RippleSpeed:     6,
				Contraction:     0.05,
				Accent:          RGB{0.35, 0.75, 1},
				AccentStrength:  0.35,
			},
		},
	}

	// MappingWave drags revealed material with a traveling wave on OPEN and
	// ripples tightly on PINCH.
	MappingWave = Mapping{
		Name: "wave",
		profiles: [4]Profile{
			gesture.Open: {
				Behavior:        BehaviorPull,
				Radius:          0.65,
				PullStrength:    0.3,
				PullFactor:      0.6,
				WaveAmplitude:   4,
				RippleFrequency: 18,
				RippleAmplitude: 0.08,
				RippleSpeed:     4,
				MaskThreshold:   0.05,
				Accent:          RGB{0.4, 0.9, 0.8},
				AccentStrength:  0.4,
			},
			gesture.Fist: {
				Behavior:    BehaviorPress,
				Radius:      0.3,
				InnerRadius: 0.3,
				PressDepth:  0.9,
			},
			gesture.Pinch: {
				Behavior:        BehaviorRipple,
				Radius:          0.2,
				RippleFrequency: 80,
				RippleAmplitude: 0.03,
				RippleSpeed:     10,
				Contraction:     0.15,
				Accent:          RGB{1, 0.4, 0.6},
				AccentStrength:  0.6,
			},
		},
	}
)

// Lookup returns the mapping registered under name.
func Lookup(name string) (Mapping, error) {
	switch name {
	case MappingWeave.Name:
		return MappingWeave, nil
	case MappingWave.Name:
		return MappingWave, nil
	}
	return Mapping{}, fmt.Errorf("%w: %q", ErrUnknownMapping, name)
}

// WithProfile returns a copy of m with code's profile replaced.
func (m Mapping) WithProfile(code gesture.Code, p Profile) Mapping {
	if code.Valid() {
		m.profiles[code] = p
	}
	return m
}
