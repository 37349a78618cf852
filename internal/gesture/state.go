// Package gesture turns raw hand landmarks into a smoothed hand state and a
// discrete gesture code.
package gesture

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// Code is the discrete classification of the primary hand's pose.
type Code int

const (
	// None means no hand is detected.
	None Code = iota
	// Fist means the middle (and, for strict variants, ring) finger is folded.
	Fist
	// Open is any detected hand that is neither a fist nor a pinch.
	Open
	// Pinch means the thumb tip touches the index tip.
	Pinch
)

var codeNames = [...]string{"NONE", "FIST", "OPEN", "PINCH"}

// String returns the upper-case name of the code.
func (c Code) String() string {
	if c < None || c > Pinch {
		return fmt.Sprintf("Code(%d)", int(c))
	}
	return codeNames[c]
}

// Valid reports whether c is one of the four known codes.
func (c Code) Valid() bool {
	return c >= None && c <= Pinch
}

// MarshalJSON encodes the code by name.
func (c Code) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a code from its name.
func (c *Code) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseCode(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseCode parses an upper-case gesture name.
func ParseCode(s string) (Code, error) {
	for i, name := range codeNames {
		if name == s {
			return Code(i), nil
		}
	}
	return None, fmt.Errorf("unknown gesture %q", s)
}

// HandState is the smoothed hand position, velocity and gesture.
// Position is normalized to the mirrored display, Y down.
type HandState struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	VX      float64 `json:"vx"`
	VY      float64 `json:"vy"`
	Gesture Code    `json:"gesture"`
}

// Rest is the state before any hand has been seen.
var Rest = HandState{X: 0.5, Y: 0.5, Gesture: None}

// Cell holds the latest HandState. One goroutine stores, any number load;
// only the newest value matters so there is no queue.
type Cell struct {
	v atomic.Pointer[HandState]
}

// NewCell returns a cell holding Rest.
func NewCell() *Cell {
	c := &Cell{}
	c.Store(Rest)
	return c
}

// Store replaces the current state.
func (c *Cell) Store(s HandState) {
	c.v.Store(&s)
}

// Load returns the most recently stored state, or Rest if nothing was stored.
func (c *Cell) Load() HandState {
	if p := c.v.Load(); p != nil {
		return *p
	}
	return Rest
}
