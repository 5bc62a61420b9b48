package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MeKo-Tech/staticstitch/internal/store"
)

// handleTile serves a downloaded tile by name, e.g. /api/v1/tiles/half-3x1.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	key, err := store.ParseKey(chi.URLParam(r, "name"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}

	data, err := s.cfg.Store.Get(key)
	if errors.Is(err, store.ErrTileNotFound) {
		http.Error(w, "Tile not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.log().Error("Failed to read tile", "tile", key, "error", err)
		http.Error(w, "Failed to read tile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))

	if _, err := w.Write(data); err != nil {
		s.log().Error("Failed to write response", "error", err)
	}
}
