package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ayusman/loom/internal/config"
	"github.com/ayusman/loom/internal/store"
)

// maxBody bounds request bodies; configs are a few hundred bytes.
const maxBody = 64 << 10

func (s *Server) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.config.Controller.Settings())
}

// putConfig decodes the body over the current settings, so a partial
// document changes only the fields it names. Out-of-range values are
// rejected rather than clamped.
func (s *Server) putConfig(w http.ResponseWriter, r *http.Request) {
	c := s.config.Controller.Settings()
	if err := decodeBody(w, r, &c); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.config.Controller.ApplyConfig(c); err != nil {
		s.logger.Error("apply config", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to apply config")
		return
	}
	writeJSON(w, http.StatusOK, s.config.Controller.Settings())
}

type presetRequest struct {
	Name   string          `json:"name"`
	Config json.RawMessage `json:"config"`
}

type listPresetsResponse struct {
	Presets []*store.Preset `json:"presets"`
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.config.Store.Presets().List()
	if err != nil {
		s.logger.Error("list presets", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to list presets")
		return
	}
	writeJSON(w, http.StatusOK, listPresetsResponse{Presets: presets})
}

// createPreset saves a named config. Without a config in the body the
// current settings are saved.
func (s *Server) createPreset(w http.ResponseWriter, r *http.Request) {
	var req presetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	base := config.Default()
	if s.config.Controller != nil {
		base = s.config.Controller.Settings()
	}
	c, err := presetConfig(base, req.Config)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := &store.Preset{Name: req.Name, Config: c}
	if err := s.config.Store.Presets().Create(p); err != nil {
		s.writeStoreError(w, "create preset", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getPreset(w http.ResponseWriter, r *http.Request) {
	p, err := s.config.Store.Presets().Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, "get preset", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updatePreset(w http.ResponseWriter, r *http.Request) {
	repo := s.config.Store.Presets()
	p, err := repo.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, "get preset", err)
		return
	}

	var req presetRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name != "" {
		p.Name = req.Name
	}
	if p.Config, err = presetConfig(p.Config, req.Config); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := repo.Update(p); err != nil {
		s.writeStoreError(w, "update preset", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deletePreset(w http.ResponseWriter, r *http.Request) {
	if err := s.config.Store.Presets().Delete(chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, "delete preset", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) applyPreset(w http.ResponseWriter, r *http.Request) {
	p, err := s.config.Store.Presets().Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeStoreError(w, "get preset", err)
		return
	}
	if err := s.config.Controller.ApplyConfig(p.Config); err != nil {
		s.logger.Error("apply preset", "preset", p.Name, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to apply preset")
		return
	}
	s.logger.Info("preset applied", "preset", p.Name)
	writeJSON(w, http.StatusOK, s.config.Controller.Settings())
}

// presetConfig overlays raw on base and validates the result.
func presetConfig(base config.Config, raw json.RawMessage) (config.Config, error) {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &base); err != nil {
			return config.Config{}, errors.New("invalid config: " + err.Error())
		}
	}
	if err := base.Validate(); err != nil {
		return config.Config{}, err
	}
	return base, nil
}

func (s *Server) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "preset not found")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error(op, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON: " + err.Error())
	}
	return nil
}
