package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/loom/internal/capture"
	"github.com/ayusman/loom/internal/detector"
	"github.com/ayusman/loom/internal/gesture"
)

// StartDetection opens the camera and starts the detection loop. It is a
// no-op if the loop is already running. A camera that fails to open is
// logged once; the loop still runs and reports no hand.
func (a *App) StartDetection(ctx context.Context) {
	a.detection.start(ctx, a.runDetection)
}

// StopDetection stops the detection loop and waits for it to exit. The last
// hand state decays to rest on the render side as no new state arrives.
// Safe to call at any time and more than once.
func (a *App) StopDetection() {
	a.detection.stop()
}

// runDetection is the detection loop:
//  1. read a camera frame
//  2. update motion state and switch between idle and active cadence
//  3. publish the mirrored, downscaled frame as the render color source
//  4. detect hands and classify the primary one
//  5. publish the hand state
func (a *App) runDetection(ctx context.Context) {
	a.syncCamera()
	if err := a.camera.Open(); err != nil {
		a.cameraOnce.Do(func() {
			a.logger.Error("camera unavailable, rendering without a live frame", "err", err)
		})
	} else {
		defer a.camera.Close()
	}
	a.camera.SetFPS(IdleFPS)
	a.motion.Reset()

	active := false
	ticker := time.NewTicker(time.Second / IdleFPS)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Nothing is detected while stopped.
			a.hand.Store(a.classifier.Update(nil))
			return
		case <-ticker.C:
		}

		moving := a.detectOnce(ctx)
		if moving != active {
			active = moving
			fps := IdleFPS
			if active {
				fps = ActiveFPS
			}
			a.camera.SetFPS(fps)
			ticker.Reset(time.Second / time.Duration(fps))
			a.logger.Debug("detection cadence changed", "fps", fps)
		}
	}
}

// detectOnce runs one detection cycle and reports whether the scene is
// moving.
func (a *App) detectOnce(ctx context.Context) bool {
	a.syncVariant()

	if !a.camera.IsOpen() {
		a.hand.Store(a.classifier.Update(nil))
		return false
	}

	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.logger.Debug("frame read failed", "err", err)
		return a.motion.Active()
	}
	defer frame.Close()

	a.motion.Detect(frame)
	moving := a.motion.Active()

	now := time.Now().UnixMilli()
	a.publishFrame(frame, now)

	if ctx.Err() != nil {
		return moving
	}
	hands, err := a.detector.Detect(frame, now)
	switch {
	case errors.Is(err, detector.ErrNotReady):
		a.logger.Debug("detector not ready")
		return moving
	case err != nil:
		a.logger.Debug("hand detection failed", "err", err)
		return moving
	}

	state := a.classifier.Update(detector.Primary(hands))
	prev := a.hand.Load()
	a.hand.Store(state)
	if state.Gesture != prev.Gesture {
		a.logger.Debug("gesture changed", "from", prev.Gesture, "to", state.Gesture)
	}
	return moving
}

func (a *App) publishFrame(frame *gocv.Mat, ts int64) {
	f, err := capture.FrameFromMat(frame, capture.SampleWidth, true)
	if err != nil {
		a.logger.Debug("frame conversion failed", "err", err)
		return
	}
	f.Timestamp = ts
	a.live.Publish(f)
}

// syncCamera rebuilds an owned camera when the configured device has
// changed since it was built. Only the detection goroutine touches the
// camera while the loop runs.
func (a *App) syncCamera() {
	if a.newCamera == nil {
		return
	}
	id := a.Settings().CameraID
	if id == a.cameraID {
		return
	}
	if err := a.camera.Close(); err != nil {
		a.logger.Warn("closing previous camera", "camera", a.cameraID, "err", err)
	}
	a.camera = a.newCamera(id)
	a.cameraID = id
	a.cameraOnce = sync.Once{}
	a.logger.Info("camera switched", "camera", id)
}

// syncVariant follows the configured profile between cycles.
func (a *App) syncVariant() {
	name := a.Settings().Profile
	if a.classifier.Variant().Name == name {
		return
	}
	v, err := gesture.LookupVariant(name)
	if err != nil {
		return
	}
	a.classifier.SetVariant(v)
	a.logger.Info("gesture variant switched", "variant", v.Name)
}

// ProcessFrame runs one detection cycle on frame outside the loop. The
// detection loop must not be running.
func (a *App) ProcessFrame(frame *gocv.Mat, ts int64) (gesture.HandState, error) {
	a.syncVariant()
	a.motion.Detect(frame)
	a.publishFrame(frame, ts)

	hands, err := a.detector.Detect(frame, ts)
	if err != nil {
		return a.hand.Load(), err
	}
	state := a.classifier.Update(detector.Primary(hands))
	a.hand.Store(state)
	return state, nil
}
