// Package render drives one displayed frame: it keeps the surface and reveal
// mask sized, paints the mask, deforms the mesh and rasterizes it with gg.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gg"

	"github.com/ayusman/loom/internal/deform"
	"github.com/ayusman/loom/internal/gesture"
	"github.com/ayusman/loom/internal/mask"
	"github.com/ayusman/loom/internal/mesh"
)

var (
	// ErrProgramBuild is returned by Init when the render program cannot be set up.
	ErrProgramBuild = errors.New("render program build failed")
	// ErrStopped is returned by Frame after Init has failed.
	ErrStopped = errors.New("renderer stopped")
)

// Sampler is a read-only color source addressed by texture coordinate,
// origin top-left. A nil Sampler means no frame is available yet.
type Sampler interface {
	Sample(s, t float64) (r, g, b float64)
}

// Options configures the orchestrator.
type Options struct {
	Mesh        mesh.Options
	Mapping     string  // Gesture mapping name
	Palette     string  // Color scheme name
	Brightness  float64 // 0.1 to 2.5
	Speed       float64 // Animation time dilation, 0 to 3
	PointSize   float64 // Base point diameter in pixels
	JPEGQuality int
	// SnapshotInterval limits how often the surface is encoded for Snapshot.
	SnapshotInterval time.Duration
}

// DefaultOptions returns options for a mid-density scatter mesh.
func DefaultOptions() Options {
	return Options{
		Mesh:             mesh.Options{Target: 12000, Topology: mesh.TopologyScatter, Aspect: 16.0 / 9},
		Mapping:          deform.MappingWeave.Name,
		Palette:          DefaultPalette,
		Brightness:       1,
		Speed:            1,
		PointSize:        3,
		JPEGQuality:      80,
		SnapshotInterval: 66 * time.Millisecond,
	}
}

// FrameInput is what one frame reads from the outside.
type FrameInput struct {
	Now    time.Time
	Width  int
	Height int
	Hand   gesture.HandState
	Source Sampler
}

// Stats describes one frame.
type Stats struct {
	Skipped   bool
	Resized   bool
	Painted   bool
	Vertices  int
	Drawn     int // Points or segments actually rasterized
	Published bool
	Duration  time.Duration
}

// Orchestrator owns the surface, the mask painter and the mesh.
// Everything except Snapshot and Frames must be called from one goroutine.
type Orchestrator struct {
	logger *log.Logger
	opts   Options

	mapping deform.Mapping
	palette Palette
	mesh    *mesh.Mesh
	out     []deform.Output

	dc      *gg.Context
	dot     pointBrush
	painter *mask.Painter
	overlay Overlay
	clock   *Clock

	ready      bool
	failed     error
	drawFailed bool

	lastPublish time.Time
	snapshot    atomic.Pointer[[]byte]
	frames      atomic.Uint64
}

// New creates an orchestrator. Call Init before the first Frame.
func New(opts Options, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		logger: logger.WithPrefix("render"),
		opts:   opts,
		clock:  NewClock(),
	}
}

// Init resolves the gesture mapping and palette and builds the mesh.
// The surface is allocated on the first frame that has a size.
// On failure every later Frame returns ErrStopped.
func (o *Orchestrator) Init() error {
	if err := o.build(); err != nil {
		o.failed = fmt.Errorf("%w: %w", ErrProgramBuild, err)
		o.ready = false
		o.logger.Error("init failed", "err", err)
		return o.failed
	}
	o.ready = true
	o.failed = nil
	o.logger.Info("program ready",
		"mapping", o.mapping.Name,
		"palette", o.palette.Name,
		"vertices", o.mesh.VertexCount(),
		"topology", o.mesh.Topology())
	return nil
}

func (o *Orchestrator) build() error {
	m, err := deform.Lookup(o.opts.Mapping)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	p, err := LookupPalette(o.opts.Palette)
	if err != nil {
		return err
	}
	msh, err := mesh.Build(o.opts.Mesh)
	if err != nil {
		return err
	}

	o.mapping = m
	o.palette = p
	o.setMesh(msh)
	return nil
}

func (o *Orchestrator) setMesh(m *mesh.Mesh) {
	o.mesh = m
	if cap(o.out) >= len(m.Vertices) {
		o.out = o.out[:len(m.Vertices)]
	} else {
		o.out = make([]deform.Output, len(m.Vertices))
	}
}

// Ready reports whether Init succeeded.
func (o *Orchestrator) Ready() bool {
	return o.ready
}

// Mesh returns the current mesh.
func (o *Orchestrator) Mesh() *mesh.Mesh {
	return o.mesh
}

// Painter returns the reveal mask painter, or nil before the first sized frame.
func (o *Orchestrator) Painter() *mask.Painter {
	return o.painter
}

// Surface returns the gg context, or nil before the first sized frame.
func (o *Orchestrator) Surface() *gg.Context {
	return o.dc
}

// Frames returns the number of frames rendered so far.
func (o *Orchestrator) Frames() uint64 {
	return o.frames.Load()
}

// Rebuild replaces the mesh when the particle count or topology changed.
// Returns true if a new mesh was built.
func (o *Orchestrator) Rebuild(opts mesh.Options) (bool, error) {
	if o.mesh != nil && o.mesh.Key() == (mesh.Key{Target: opts.Target, Topology: opts.Topology}) {
		return false, nil
	}
	if opts.Aspect <= 0 && o.dc != nil {
		opts.Aspect = float64(o.dc.Width()) / float64(o.dc.Height())
	}
	m, err := mesh.Build(opts)
	if err != nil {
		return false, fmt.Errorf("rebuild mesh: %w", err)
	}
	o.opts.Mesh = opts
	o.setMesh(m)
	o.logger.Info("mesh rebuilt", "vertices", m.VertexCount(), "edges", m.EdgeCount(), "topology", m.Topology())
	return true, nil
}

// Configure applies new options. The mesh is rebuilt only if its key
// changed; the reveal mask is never touched.
func (o *Orchestrator) Configure(opts Options) error {
	m, err := deform.Lookup(opts.Mapping)
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	p, err := LookupPalette(opts.Palette)
	if err != nil {
		return err
	}
	if o.ready {
		if _, err := o.Rebuild(opts.Mesh); err != nil {
			return err
		}
	}

	o.mapping = m
	o.palette = p
	if o.ready {
		// Rebuild already recorded the mesh options it used.
		opts.Mesh = o.opts.Mesh
	}
	o.opts = opts
	return nil
}

// Frame renders one frame. The steps run in a fixed order: resize, paint,
// uniforms, render, overlay.
//
// A frame with no surface size, or before Init, is skipped without error.
// After a failed Init the error is ErrStopped.
func (o *Orchestrator) Frame(ctx context.Context, in FrameInput) (Stats, error) {
	if o.failed != nil {
		return Stats{}, fmt.Errorf("%w: %w", ErrStopped, o.failed)
	}
	if !o.ready || in.Width <= 0 || in.Height <= 0 {
		return Stats{Skipped: true}, nil
	}
	start := time.Now()
	var st Stats

	// Resize
	resized, err := o.resize(in.Width, in.Height)
	if err != nil {
		o.logger.Debug("resize failed", "err", err)
		return Stats{Skipped: true}, nil
	}
	st.Resized = resized

	// Paint
	st.Painted = o.painter.Paint(in.Hand)

	// Uniforms
	now := in.Now
	if now.IsZero() {
		now = start
	}
	aspect := float64(in.Width) / float64(in.Height)
	u := deform.NewUniforms(o.clock.Advance(now, o.opts.Speed), aspect, o.opts.Brightness, o.opts.PointSize, in.Hand)

	// Render
	drawn, err := o.draw(ctx, u, in.Source)
	if err != nil {
		return st, err
	}
	st.Vertices = len(o.mesh.Vertices)
	st.Drawn = drawn

	// Overlay
	o.overlay.Draw(o.dc, in.Hand, o.palette, o.painter.Radius())

	o.frames.Add(1)
	st.Published = o.publish(now)
	st.Duration = time.Since(start)
	return st, nil
}

func (o *Orchestrator) resize(w, h int) (bool, error) {
	if o.dc == nil {
		o.dc = gg.NewContext(w, h)
		o.painter = mask.NewPainter(w, h)
		o.logger.Debug("surface allocated", "width", w, "height", h)
		return true, nil
	}
	if o.dc.Width() == w && o.dc.Height() == h {
		return false, nil
	}
	if err := o.dc.Resize(w, h); err != nil {
		return false, err
	}
	o.painter.Resize(w, h)
	o.overlay.Reset()
	o.logger.Debug("surface resized", "width", w, "height", h)
	return true, nil
}

func (o *Orchestrator) draw(ctx context.Context, u deform.Uniforms, src Sampler) (int, error) {
	m := o.painter.Mask()
	mapping := o.mapping
	fn := func(v mesh.Vertex) deform.Output {
		s, t := v.U, 1-v.V
		in := deform.Input{Vertex: v, Mask: m.Sample(s, t)}
		if src != nil {
			r, g, b := src.Sample(s, t)
			in.Source = deform.RGB{R: r, G: g, B: b}
		}
		return deform.Vertex(in, u, mapping)
	}
	if err := deform.Map(ctx, o.mesh.Vertices, fn, o.out); err != nil {
		return 0, err
	}

	dc := o.dc
	dc.ClearWithColor(o.palette.Background)
	w, h := float64(dc.Width()), float64(dc.Height())

	if o.mesh.Topology() == mesh.TopologyLines {
		return o.drawLines(w, h, u.Brightness), nil
	}
	return o.drawPoints(w, h, u.Brightness), nil
}

func (o *Orchestrator) drawPoints(w, h, brightness float64) int {
	dc := o.dc
	dc.SetFillBrush(gg.CustomBrush{Func: o.dot.colorAt, Name: "point"})
	drawn := 0
	for i, v := range o.mesh.Vertices {
		out := o.out[i]
		x, y := out.Screen(w, h)
		r := out.PointSize / 2
		if r <= 0 || x < -r || y < -r || x > w+r || y > h+r {
			continue
		}
		c := deform.Fragment(out, v.ID, mesh.TopologyScatter, brightness)
		if c.A <= 0 {
			continue
		}
		o.dot.set(x, y, r, c)
		dc.DrawCircle(x, y, r)
		o.drawError(dc.Fill())
		drawn++
	}
	return drawn
}

func (o *Orchestrator) drawLines(w, h, brightness float64) int {
	dc := o.dc
	dc.SetLineWidth(1)
	drawn := 0
	for _, e := range o.mesh.Edges {
		a, b := o.out[e.A], o.out[e.B]
		ax, ay := a.Screen(w, h)
		bx, by := b.Screen(w, h)
		if (ax < 0 && bx < 0) || (ay < 0 && by < 0) || (ax > w && bx > w) || (ay > h && by > h) {
			continue
		}
		ca := deform.Fragment(a, o.mesh.Vertices[e.A].ID, mesh.TopologyLines, brightness)
		cb := deform.Fragment(b, o.mesh.Vertices[e.B].ID, mesh.TopologyLines, brightness)
		c := ca.Lerp(cb, 0.5)
		if c.A <= 0 {
			continue
		}
		dc.SetRGBA(c.R, c.G, c.B, c.A)
		dc.DrawLine(ax, ay, bx, by)
		o.drawError(dc.Stroke())
		drawn++
	}
	return drawn
}

// drawError logs the first rasterizer error; later ones repeat it.
func (o *Orchestrator) drawError(err error) {
	if err == nil || o.drawFailed {
		return
	}
	o.drawFailed = true
	o.logger.Warn("rasterizer error, further errors suppressed", "err", err)
}

// pointBrush is one soft round point: full alpha at the center fading
// linearly to transparent at the rim. A single brush is retargeted for
// every point of a frame.
type pointBrush struct {
	cx, cy, r float64
	c         gg.RGBA
}

func (b *pointBrush) set(cx, cy, r float64, c gg.RGBA) {
	b.cx, b.cy, b.r, b.c = cx, cy, r, c
}

func (b *pointBrush) colorAt(x, y float64) gg.RGBA {
	if b.r <= 0 {
		return gg.Transparent
	}
	t := math.Hypot(x-b.cx, y-b.cy) / b.r
	if t >= 1 {
		return gg.Transparent
	}
	c := b.c
	c.A *= 1 - t
	return c
}

func (o *Orchestrator) publish(now time.Time) bool {
	if !o.lastPublish.IsZero() && now.Sub(o.lastPublish) < o.opts.SnapshotInterval {
		return false
	}
	q := o.opts.JPEGQuality
	if q <= 0 || q > 100 {
		q = 80
	}
	var buf bytes.Buffer
	if err := o.dc.EncodeJPEG(&buf, q); err != nil {
		o.logger.Warn("snapshot encode failed", "err", err)
		return false
	}
	b := buf.Bytes()
	o.snapshot.Store(&b)
	o.lastPublish = now
	return true
}

// Snapshot returns the most recently published JPEG frame, or nil.
// Safe to call from any goroutine.
func (o *Orchestrator) Snapshot() []byte {
	if p := o.snapshot.Load(); p != nil {
		return *p
	}
	return nil
}

// SavePNG writes the current surface to path.
func (o *Orchestrator) SavePNG(path string) error {
	if o.dc == nil {
		return fmt.Errorf("save %s: no surface yet", path)
	}
	return o.dc.SavePNG(path)
}
