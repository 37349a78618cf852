// Package server provides the HTTP API for loom: configuration, presets,
// the rendered frame stream and live hand state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ayusman/loom/internal/config"
	"github.com/ayusman/loom/internal/deform"
	"github.com/ayusman/loom/internal/gesture"
	"github.com/ayusman/loom/internal/mask"
	"github.com/ayusman/loom/internal/mesh"
	"github.com/ayusman/loom/internal/render"
	"github.com/ayusman/loom/internal/store"
)

// Controller is the running application as seen by the API.
type Controller interface {
	Settings() config.Config
	ApplyConfig(config.Config) error
	Hand() gesture.HandState
	Snapshot() []byte
	RevealMask() *mask.Mask
	Frames() uint64
}

// Config holds the server configuration. Store and StaticDir are optional.
type Config struct {
	Controller Controller
	Store      *store.Store
	StaticDir  string
	Logger     *log.Logger
}

// Server is the HTTP front end.
type Server struct {
	config Config
	router chi.Router
	hands  *HandHub
	logger *log.Logger
	start  time.Time
}

// New creates a Server and starts its hand broadcaster.
func New(config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{
		config: config,
		router: chi.NewRouter(),
		logger: logger.WithPrefix("http"),
		start:  time.Now(),
	}
	if config.Controller != nil {
		s.hands = NewHandHub(config.Controller, s.logger)
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/options", s.handleOptions)

		if s.config.Controller != nil {
			r.Get("/config", s.getConfig)
			r.Put("/config", s.putConfig)
			r.Get("/stream", s.handleStream)
			r.Get("/snapshot.jpg", s.handleSnapshotJPEG)
			r.Get("/snapshot.png", s.handleSnapshotPNG)
			r.Get("/mask.png", s.handleMaskPNG)
			r.Handle("/hand", s.hands)
		}

		if s.config.Store != nil {
			r.Route("/presets", func(r chi.Router) {
				r.Get("/", s.listPresets)
				r.Post("/", s.createPreset)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.getPreset)
					r.Put("/", s.updatePreset)
					r.Delete("/", s.deletePreset)
					if s.config.Controller != nil {
						r.Post("/apply", s.applyPreset)
					}
				})
			})
		}
	})

	if s.config.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// requestLogger logs each request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"id", middleware.GetReqID(r.Context()))
	})
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close stops the hand broadcaster and disconnects its clients.
func (s *Server) Close() {
	if s.hands != nil {
		s.hands.Close()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	}
	if s.config.Controller != nil {
		response["frames"] = s.config.Controller.Frames()
	}
	writeJSON(w, http.StatusOK, response)
}

type optionsResponse struct {
	Palettes   []string `json:"palettes"`
	Profiles   []string `json:"profiles"`
	Topologies []string `json:"topologies"`
}

func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, optionsResponse{
		Palettes:   render.PaletteNames(),
		Profiles:   []string{deform.MappingWeave.Name, deform.MappingWave.Name},
		Topologies: []string{string(mesh.TopologyScatter), string(mesh.TopologyLines)},
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
