package capture

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync/atomic"

	_ "golang.org/x/image/webp"
)

// Source supplies the current color frame. Frame returns nil until one is
// available.
type Source interface {
	Frame() *Frame
}

// LiveSource holds the most recent camera frame. The detection loop
// publishes and the render loop reads; only the newest frame is kept.
type LiveSource struct {
	frame atomic.Pointer[Frame]
}

// NewLiveSource returns an empty live source.
func NewLiveSource() *LiveSource {
	return &LiveSource{}
}

// Publish replaces the current frame. f must not be modified afterwards.
func (s *LiveSource) Publish(f *Frame) {
	s.frame.Store(f)
}

// Frame returns the latest published frame, or nil.
func (s *LiveSource) Frame() *Frame {
	return s.frame.Load()
}

// StaticSource always returns the same decoded image.
type StaticSource struct {
	path  string
	frame *Frame
}

// LoadStatic decodes a PNG, JPEG or WebP file into a source no wider than
// maxWidth.
func LoadStatic(path string, maxWidth int) (*StaticSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open static image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode static image %s: %w", path, err)
	}
	return &StaticSource{path: path, frame: FrameFromImage(img, maxWidth)}, nil
}

// Path returns the file the image was loaded from, if any.
func (s *StaticSource) Path() string {
	return s.path
}

// Frame returns the decoded image.
func (s *StaticSource) Frame() *Frame {
	return s.frame
}
