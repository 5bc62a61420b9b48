package download

import (
	"fmt"

	"github.com/MeKo-Tech/staticstitch/internal/store"
)

// TileError records why a single tile could not be fetched.
type TileError struct {
	Key        store.Key
	StatusCode int // zero for transport and storage errors
	Err        error
}

func (e *TileError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("tile %s: HTTP %d: %v", e.Key, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("tile %s: %v", e.Key, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

// LayerReport summarizes the download of one layer.
type LayerReport struct {
	Layer   store.Layer
	Total   int
	Fetched int
	Skipped int
	Bytes   uint64
	Failed  []*TileError
}

// AllFailed reports whether no tile of a non-empty layer is available.
func (r *LayerReport) AllFailed() bool {
	return r.Total > 0 && len(r.Failed) == r.Total
}

// Report summarizes a download run.
type Report struct {
	Layers []*LayerReport
}

// Failed returns every tile error of all layers.
func (r *Report) Failed() []*TileError {
	var out []*TileError
	for _, l := range r.Layers {
		out = append(out, l.Failed...)
	}
	return out
}

// Bytes returns the number of bytes fetched across all layers.
func (r *Report) Bytes() uint64 {
	var n uint64
	for _, l := range r.Layers {
		n += l.Bytes
	}
	return n
}

// Layer returns the report of layer, or nil if it was not downloaded.
func (r *Report) Layer(layer store.Layer) *LayerReport {
	for _, l := range r.Layers {
		if l.Layer == layer {
			return l
		}
	}
	return nil
}
