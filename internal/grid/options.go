package grid

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/staticstitch/internal/geo"
)

// MaxZoom is the highest zoom level accepted by Generate.
const MaxZoom = 30

// ErrInvalidOptions is returned when size, zoom, scale or maptype are out of range.
var ErrInvalidOptions = errors.New("invalid grid options")

// Options describes the grid to generate.
type Options struct {
	Size      int    // Tile edge in pixels before scaling
	Zoom      int    // Zoom level (0-30)
	Scale     int    // Pixel density multiplier (1, 2, 4)
	Maptype   string // Provider map type, e.g. roadmap or satellite
	Southwest geo.LatLng
	Northeast geo.LatLng

	// MaxTiles caps the number of primary tiles. Zero means no cap.
	MaxTiles int
}

// DefaultOptions returns the options used when nothing else is configured.
func DefaultOptions() Options {
	return Options{
		Size:    640,
		Zoom:    1,
		Scale:   1,
		Maptype: "roadmap",
	}
}

// Bounds returns the requested bounding box.
func (o Options) Bounds() geo.LatLngBounds {
	return geo.NewBounds(o.Southwest, o.Northeast)
}

// Validate checks the non-geographic options. Bounds are checked by Generate
// so the error carries the grid context.
func (o Options) Validate() error {
	if o.Size <= 0 {
		return fmt.Errorf("%w: size must be > 0, got %d", ErrInvalidOptions, o.Size)
	}
	if o.Zoom < 0 || o.Zoom > MaxZoom {
		return fmt.Errorf("%w: zoom must be in [0,%d], got %d", ErrInvalidOptions, MaxZoom, o.Zoom)
	}
	if o.Scale < 1 {
		return fmt.Errorf("%w: scale must be >= 1, got %d", ErrInvalidOptions, o.Scale)
	}
	if o.Maptype == "" {
		return fmt.Errorf("%w: maptype is required", ErrInvalidOptions)
	}
	if o.MaxTiles < 0 {
		return fmt.Errorf("%w: max tiles must be >= 0, got %d", ErrInvalidOptions, o.MaxTiles)
	}
	return nil
}
