package server

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"image/png"
	"net/http"
	"time"
)

// StreamInterval is the MJPEG frame period (~15 FPS).
const StreamInterval = 66 * time.Millisecond

// handleStream serves the rendered surface as MJPEG. A frame is written
// only when the renderer has published a new one.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(StreamInterval)
	defer ticker.Stop()

	var last []byte
	for {
		buf := s.config.Controller.Snapshot()
		if len(buf) > 0 && !sameBuffer(buf, last) {
			if err := writePart(w, buf); err != nil {
				return
			}
			last = buf
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, buf []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(buf)); err != nil {
		return err
	}
	if _, err := w.Write(buf); err != nil {
		return err
	}
	if _, err := fmt.Fprint(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// sameBuffer reports whether a and b are the same published snapshot.
// Snapshots are replaced, never mutated, so identity is enough.
func sameBuffer(a, b []byte) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}

func (s *Server) handleSnapshotJPEG(w http.ResponseWriter, r *http.Request) {
	buf := s.config.Controller.Snapshot()
	if len(buf) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no frame rendered yet")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(buf)
}

// handleSnapshotPNG transcodes the latest published frame. The surface
// itself belongs to the render loop and is never read here.
func (s *Server) handleSnapshotPNG(w http.ResponseWriter, r *http.Request) {
	buf := s.config.Controller.Snapshot()
	if len(buf) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no frame rendered yet")
		return
	}
	img, err := jpeg.Decode(bytes.NewReader(buf))
	if err != nil {
		s.logger.Error("decode snapshot", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to decode snapshot")
		return
	}
	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		s.logger.Error("encode snapshot", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to encode snapshot")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(out.Bytes())
}

// handleMaskPNG serves the reveal mask as a 16-bit grayscale PNG.
func (s *Server) handleMaskPNG(w http.ResponseWriter, r *http.Request) {
	m := s.config.Controller.RevealMask()
	if m == nil || m.Empty() {
		writeError(w, http.StatusServiceUnavailable, "no frame rendered yet")
		return
	}
	var out bytes.Buffer
	if err := png.Encode(&out, m); err != nil {
		s.logger.Error("encode mask", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to encode mask")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(out.Bytes())
}
