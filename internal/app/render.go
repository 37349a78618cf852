package app

import (
	"context"
	"errors"
	"time"

	"github.com/ayusman/loom/internal/capture"
	"github.com/ayusman/loom/internal/config"
	"github.com/ayusman/loom/internal/gesture"
	"github.com/ayusman/loom/internal/mask"
	"github.com/ayusman/loom/internal/render"
)

// StartRender starts the render loop at the configured frame rate. It is a
// no-op if the loop is already running.
func (a *App) StartRender(ctx context.Context) {
	a.rendering.start(ctx, a.runRender)
}

// StopRender stops the render loop and waits for it to exit. Independent
// of the detection loop; safe to call more than once.
func (a *App) StopRender() {
	a.rendering.stop()
}

func (a *App) runRender(ctx context.Context) {
	fps := a.Settings().RenderFPS
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			_, err := a.Step(ctx, now, a.hand.Load())
			if errors.Is(err, render.ErrStopped) {
				a.logger.Error("render loop stopped", "err", err)
				return
			}
			if err != nil && ctx.Err() == nil {
				a.logger.Debug("frame failed", "err", err)
			}
			if n := a.Settings().RenderFPS; n != fps {
				fps = n
				ticker.Reset(time.Second / time.Duration(fps))
			}
		}
	}
}

// Step applies any pending config and renders one frame with the given
// hand. Calls are serialized with the render loop.
func (a *App) Step(ctx context.Context, now time.Time, hand gesture.HandState) (render.Stats, error) {
	a.renderMu.Lock()
	defer a.renderMu.Unlock()

	select {
	case c := <-a.pending:
		a.reconfigureLocked(c)
	default:
	}

	s := a.Settings()
	return a.orch.Frame(ctx, render.FrameInput{
		Now:    now,
		Width:  s.Width,
		Height: s.Height,
		Hand:   hand,
		Source: a.source(),
	})
}

// RevealMask returns a copy of the reveal mask, or nil before the first
// frame has sized it.
func (a *App) RevealMask() *mask.Mask {
	a.renderMu.Lock()
	defer a.renderMu.Unlock()
	p := a.orch.Painter()
	if p == nil {
		return nil
	}
	return p.Mask().Clone()
}

// SavePNG writes the current surface to path.
func (a *App) SavePNG(path string) error {
	a.renderMu.Lock()
	defer a.renderMu.Unlock()
	return a.orch.SavePNG(path)
}

func (a *App) reconfigureLocked(c config.Config) {
	if err := a.orch.Configure(c.RenderOptions()); err != nil {
		a.logger.Warn("config not applied to renderer", "err", err)
		return
	}
	a.loadStaticLocked(c.StaticImage)
	a.logger.Info("config applied", "particles", c.ParticleCount, "topology", c.Topology, "profile", c.Profile)
}

func (a *App) loadStatic(path string) {
	a.renderMu.Lock()
	defer a.renderMu.Unlock()
	a.loadStaticLocked(path)
}

func (a *App) loadStaticLocked(path string) {
	if path == "" {
		a.static = nil
		return
	}
	if a.static != nil && a.static.Path() == path {
		return
	}
	src, err := capture.LoadStatic(path, capture.SampleWidth)
	if err != nil {
		a.logger.Warn("static image unavailable, using live frames", "err", err)
		a.static = nil
		return
	}
	a.static = src
}

// source picks the static image if one is loaded, otherwise the newest
// live frame. A missing frame yields a nil Sampler so vertices fall back to
// the placeholder color.
func (a *App) source() render.Sampler {
	if a.static != nil {
		return a.static.Frame()
	}
	if f := a.live.Frame(); f != nil {
		return f
	}
	return nil
}
