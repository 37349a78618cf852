// Package app wires the camera, hand detector, classifier and renderer into
// two independent loops: detection and render.
package app

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ayusman/loom/internal/capture"
	"github.com/ayusman/loom/internal/config"
	"github.com/ayusman/loom/internal/detector"
	"github.com/ayusman/loom/internal/gesture"
	"github.com/ayusman/loom/internal/render"
	"github.com/ayusman/loom/internal/store"
)

// Detection cadence.
const (
	// IdleFPS is the detection rate while the scene is still.
	IdleFPS = 15
	// ActiveFPS is the detection rate while motion is seen.
	ActiveFPS = 30
	// MotionThreshold is the changed-pixel percentage that counts as motion.
	MotionThreshold = 1.0
)

// Config holds what the application is built from. Camera, Detector and
// Store are optional. An injected Camera is used as is; otherwise the camera
// is built by NewCamera (a gocv device by default) and rebuilt when the
// configured camera ID changes.
type Config struct {
	Settings  config.Config
	Store     *store.Store
	Camera    capture.Camera
	NewCamera func(deviceID int) capture.Camera
	Detector  detector.Detector
	Logger    *log.Logger
}

// App owns the shared hand state, the latest source frame and both loops.
type App struct {
	logger *log.Logger
	store  *store.Store

	mu       sync.RWMutex
	settings config.Config

	camera     capture.Camera
	cameraID   int
	newCamera  func(deviceID int) capture.Camera
	motion     *capture.MotionDetector
	detector   detector.Detector
	classifier *gesture.Classifier
	cameraOnce sync.Once

	hand *gesture.Cell
	live *capture.LiveSource

	orch     *render.Orchestrator
	static   *capture.StaticSource
	pending   chan config.Config
	pendingMu sync.Mutex
	renderMu  sync.Mutex

	detection loop
	rendering loop
}

// New builds an App. Nothing runs until StartDetection or StartRender.
func New(cfg Config) *App {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	settings := cfg.Settings
	for _, w := range settings.Normalize() {
		logger.Warn(w)
	}

	a := &App{
		logger:   logger.WithPrefix("app"),
		store:    cfg.Store,
		settings: settings,
		camera:   cfg.Camera,
		motion:   capture.NewMotionDetector(MotionThreshold),
		detector: cfg.Detector,
		hand:     gesture.NewCell(),
		live:     capture.NewLiveSource(),
		pending:  make(chan config.Config, 1),
	}

	if a.camera == nil {
		a.newCamera = cfg.NewCamera
		if a.newCamera == nil {
			a.newCamera = deviceCamera
		}
		a.cameraID = settings.CameraID
		a.camera = a.newCamera(a.cameraID)
	}

	if a.detector == nil {
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			a.detector = mp
			a.logger.Info("using MediaPipe hand detection")
		} else {
			a.logger.Warn("MediaPipe not available, using mock detector", "err", err)
			a.detector = detector.NewMockDetector()
		}
	}

	variant, err := gesture.LookupVariant(settings.Profile)
	if err != nil {
		variant = gesture.VariantWeave
	}
	a.classifier = gesture.NewClassifier(variant)

	a.orch = render.New(settings.RenderOptions(), logger)
	if err := a.orch.Init(); err != nil {
		a.logger.Error("renderer init failed", "err", err)
	}
	a.loadStatic(settings.StaticImage)
	return a
}

// Settings returns the configuration currently in effect.
func (a *App) Settings() config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings
}

// ApplyConfig normalizes c, records it as active and hands it to the render
// loop, which picks it up before its next frame. The reveal mask survives.
func (a *App) ApplyConfig(c config.Config) error {
	for _, w := range c.Normalize() {
		a.logger.Warn(w)
	}

	a.mu.Lock()
	prev := a.settings
	a.settings = c
	a.mu.Unlock()

	if prev.CameraID != c.CameraID {
		a.logger.Info("camera change takes effect after detection restarts", "camera", c.CameraID)
	}

	a.offer(c)

	if a.store != nil {
		if err := a.store.Settings().SaveActiveConfig(c); err != nil {
			return err
		}
	}
	return nil
}

// offer leaves c as the only pending config. Only the newest one matters,
// and it never blocks, whether or not the render loop is consuming.
func (a *App) offer(c config.Config) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	select {
	case <-a.pending:
	default:
	}
	a.pending <- c
}

func deviceCamera(deviceID int) capture.Camera {
	cfg := capture.DefaultCameraConfig()
	cfg.DeviceID = deviceID
	return capture.NewCameraWithConfig(cfg)
}

// Hand returns the latest classified hand state.
func (a *App) Hand() gesture.HandState {
	return a.hand.Load()
}

// Snapshot returns the latest encoded JPEG frame, or nil.
func (a *App) Snapshot() []byte {
	return a.orch.Snapshot()
}

// Frames returns how many frames have been rendered.
func (a *App) Frames() uint64 {
	return a.orch.Frames()
}

// Source returns the live frame source.
func (a *App) Source() *capture.LiveSource {
	return a.live
}

// DetectionRunning reports whether the detection loop is active.
func (a *App) DetectionRunning() bool {
	return a.detection.running()
}

// RenderRunning reports whether the render loop is active.
func (a *App) RenderRunning() bool {
	return a.rendering.running()
}

// Close stops both loops and releases the camera and detector.
func (a *App) Close() error {
	a.StopDetection()
	a.StopRender()
	a.motion.Close()

	var errs []error
	if err := a.camera.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.detector.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// loop is a restartable goroutine with its own cancel.
type loop struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// start runs fn unless it is already running. Returns false if it was.
func (l *loop) start(parent context.Context, fn func(ctx context.Context)) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	l.cancel, l.done = cancel, done
	go func() {
		defer close(done)
		defer l.finished(done)
		fn(ctx)
	}()
	return true
}

// finished clears the handle when the loop exits on its own.
func (l *loop) finished(done chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done == done {
		l.cancel()
		l.cancel, l.done = nil, nil
	}
}

// stop cancels the loop and waits for it. Stopping an idle loop is a no-op.
func (l *loop) stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *loop) running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}
