package app

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/ayusman/loom/internal/gesture"
)

// Scripted hand path.
const (
	// ScriptRadius is the radius of the circle traced by the scripted hand.
	ScriptRadius = 0.25
	// ScriptLaps is how many times the circle is traced over a run.
	ScriptLaps = 2
)

var scriptGestures = [...]gesture.Code{gesture.Open, gesture.Fist, gesture.Pinch}

// ScriptedHand returns the hand for frame i of n: a circle around the
// center of the frame, spending a third of the run in each of open, fist
// and pinch. Velocity is the per-frame displacement.
func ScriptedHand(i, n int) gesture.HandState {
	if n <= 0 {
		return gesture.Rest
	}
	at := func(k int) (float64, float64) {
		a := 2 * math.Pi * ScriptLaps * float64(k) / float64(n)
		return 0.5 + ScriptRadius*math.Cos(a), 0.5 + ScriptRadius*math.Sin(a)
	}
	x, y := at(i)
	px, py := at(i - 1)

	phase := min(i*len(scriptGestures)/n, len(scriptGestures)-1)
	return gesture.HandState{
		X:       x,
		Y:       y,
		VX:      x - px,
		VY:      y - py,
		Gesture: scriptGestures[max(phase, 0)],
	}
}

// RenderScripted renders frames with the scripted hand, advancing the
// clock by step per frame. progress, if set, runs after every frame. The
// render loop must not be running.
func (a *App) RenderScripted(ctx context.Context, frames int, step time.Duration, progress func(i int)) error {
	if a.RenderRunning() {
		return errors.New("render loop is running")
	}
	start := time.Now()
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := start.Add(time.Duration(i) * step)
		if _, err := a.Step(ctx, now, ScriptedHand(i, frames)); err != nil {
			return err
		}
		if progress != nil {
			progress(i)
		}
	}
	return nil
}
