package server

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MeKo-Tech/staticstitch/internal/geo"
	"github.com/MeKo-Tech/staticstitch/internal/grid"
)

const (
	codeInvalidParameter = "INVALID_PARAMETER"
	codeInvalidBounds    = "INVALID_BOUNDS"
	codeUngeneratable    = "UNGENERATABLE_GRID"
)

// handleGrid computes a tile grid from query parameters and returns it as
// tile info JSON.
func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	opts, err := parseGridQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	}
	opts.MaxTiles = s.cfg.MaxTiles

	result, err := grid.Generate(opts)
	switch {
	case errors.Is(err, grid.ErrInvalidBounds):
		s.writeError(w, http.StatusBadRequest, codeInvalidBounds, err.Error())
		return
	case errors.Is(err, grid.ErrInvalidOptions):
		s.writeError(w, http.StatusBadRequest, codeInvalidParameter, err.Error())
		return
	case err != nil:
		s.writeError(w, http.StatusBadRequest, codeUngeneratable, err.Error())
		return
	}

	s.log().Debug("grid generated",
		"bounds", opts.Bounds(),
		"zoom", opts.Zoom,
		"primary", len(result.Tiles.Primary),
		"half", len(result.Tiles.Half))

	w.Header().Set("Content-Type", "application/json")
	if err := result.Encode(w); err != nil {
		s.log().Error("Failed to write grid", "error", err)
	}
}

// parseGridQuery reads grid options. Missing display options fall back to
// grid.DefaultOptions; both corners are required.
func parseGridQuery(q url.Values) (grid.Options, error) {
	opts := grid.DefaultOptions()

	corners := []struct {
		name string
		dst  *geo.LatLng
	}{
		{"southwest", &opts.Southwest},
		{"northeast", &opts.Northeast},
	}
	for _, c := range corners {
		v := q.Get(c.name)
		if v == "" {
			return opts, fmt.Errorf("%s is required", c.name)
		}
		ll, err := geo.ParseLatLng(v)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", c.name, err)
		}
		*c.dst = ll
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"zoom", &opts.Zoom},
		{"size", &opts.Size},
		{"scale", &opts.Scale},
	}
	for _, p := range ints {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("%s must be an integer, got %q", p.name, v)
		}
		*p.dst = n
	}

	if v := q.Get("maptype"); v != "" {
		opts.Maptype = v
	}

	return opts, nil
}
