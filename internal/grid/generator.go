// Package grid computes the tile grids that cover a bounding box: a dense
// primary grid and a second grid shifted by half a tile that is used to hide
// the attribution footer of every primary tile when the grid is stitched.
package grid

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/staticstitch/internal/geo"
)

// MaxScan is the maximum number of cells scanned along either axis.
const MaxScan = 9999

var (
	// ErrUngeneratableGrid is returned when the scan cannot produce a grid.
	ErrUngeneratableGrid = errors.New("ungeneratable grid")

	// ErrInvalidBounds is returned when the southwest corner is not strictly
	// south and west of the northeast corner.
	ErrInvalidBounds = geo.ErrInvalidBounds
)

// GridError carries the request that failed to produce a grid.
type GridError struct {
	Bounds geo.LatLngBounds
	Zoom   int
	Size   int
	Err    error
}

func (e *GridError) Error() string {
	return fmt.Sprintf("grid for %s at zoom %d size %d: %v", e.Bounds, e.Zoom, e.Size, e.Err)
}

func (e *GridError) Unwrap() error {
	return e.Err
}

// Generate computes the primary and half grids for opts.
//
// Cells are indexed from the northwest corner of the box: x grows eastward
// and y grows southward. A cell belongs to the primary grid when its center
// lies inside the box. The half grid holds the same cells shifted half a tile
// north-west, plus a forced extra column, row and corner so it spans the
// whole primary grid.
func Generate(opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	bounds := opts.Bounds()
	fail := func(err error) error {
		return &GridError{Bounds: bounds, Zoom: opts.Zoom, Size: opts.Size, Err: err}
	}

	if err := bounds.Validate(); err != nil {
		return nil, fail(err)
	}

	s := newScanner(opts)

	maxX, maxY, err := s.scan()
	if err != nil {
		return nil, fail(err)
	}

	// force the half tiles along the east column, the south row and the corner
	for y := 0; y < maxY; y++ {
		s.addTile(maxX, y, false, true)
	}
	for x := 0; x < maxX; x++ {
		s.addTile(x, maxY, false, true)
	}
	s.addTile(maxX, maxY, false, true)

	return &Result{
		Config: Config{
			Zoom:      opts.Zoom,
			Size:      opts.Size,
			Scale:     opts.Scale,
			Southwest: opts.Southwest,
			Northeast: opts.Northeast,
		},
		Tiles: Tiles{
			Primary: s.primary,
			Half:    s.half,
		},
	}, nil
}

type scanner struct {
	opts   Options
	bounds geo.LatLngBounds
	proj   geo.Projection

	// stride is the world pixel extent of one tile at the requested zoom.
	stride float64
	// origin is the world pixel position of the northwest corner.
	origin geo.Point
	// north and west are the pinned latitude of row 0 and longitude of column 0.
	north float64
	west  float64

	primary []Tile
	half    []Tile
}

func newScanner(opts Options) *scanner {
	s := &scanner{
		opts:   opts,
		bounds: opts.Bounds(),
		stride: float64(opts.Size) / float64(uint64(1)<<uint(opts.Zoom)),
	}

	sw := s.proj.FromLatLngToPoint(s.bounds.Southwest)
	ne := s.proj.FromLatLngToPoint(s.bounds.Northeast)
	s.origin = geo.Point{X: sw.X, Y: ne.Y}
	s.north = s.bounds.Northeast.Lat
	s.west = s.bounds.Southwest.Lng

	// A box reaching past the projectable latitudes starts at the world edge.
	if s.origin.Y < 0 {
		s.origin.Y = 0
		s.north = s.proj.FromPointToLatLng(s.origin).Lat
	}

	return s
}

// scan walks rows from the north edge and returns the exclusive column and
// row counts of the primary grid.
func (s *scanner) scan() (maxX, maxY int, err error) {
	for y := 0; y < MaxScan; y++ {
		x := 0
		for x < MaxScan && s.addTile(x, y, true, false) {
			x++
		}
		if x == MaxScan {
			return 0, 0, fmt.Errorf("%w: more than %d columns", ErrUngeneratableGrid, MaxScan)
		}
		maxX = max(maxX, x)

		if s.opts.MaxTiles > 0 && len(s.primary) > s.opts.MaxTiles {
			return 0, 0, fmt.Errorf("%w: more than %d tiles", ErrUngeneratableGrid, s.opts.MaxTiles)
		}

		if !s.accepts(0, y, s.cellCenter(0, y)) {
			if maxX == 0 || y == 0 {
				return 0, 0, fmt.Errorf("%w: no cell center inside the bounds", ErrUngeneratableGrid)
			}
			return maxX, y, nil
		}
	}

	return 0, 0, fmt.Errorf("%w: more than %d rows", ErrUngeneratableGrid, MaxScan)
}

// cellPoint returns the world pixel position of cell (x, y).
func (s *scanner) cellPoint(x, y int) geo.Point {
	return geo.Point{
		X: float64(x)*s.stride + s.origin.X,
		Y: float64(y)*s.stride + s.origin.Y,
	}
}

// cellCenter returns the geographic position of cell (x, y).
func (s *scanner) cellCenter(x, y int) geo.LatLng {
	ll := s.proj.FromPointToLatLng(s.cellPoint(x, y))

	// The first column and row lie on the box edges. Pin them so projection
	// round-off cannot move the northwest corner outside the box.
	if x == 0 {
		ll.Lng = s.west
	}
	if y == 0 {
		ll.Lat = s.north
	}

	return ll
}

// inWorld reports whether cell (x, y) lies on the projected world. The
// column at WorldSize is the antimeridian again and the row at WorldSize is
// the southern edge, so both belong to no map.
func (s *scanner) inWorld(x, y int) bool {
	p := s.cellPoint(x, y)
	return p.X >= 0 && p.X < geo.WorldSize && p.Y >= 0 && p.Y < geo.WorldSize
}

// accepts reports whether cell (x, y) with the given center belongs to the
// primary grid.
func (s *scanner) accepts(x, y int, center geo.LatLng) bool {
	return s.inWorld(x, y) && center.IsValid() && s.bounds.Contains(center)
}

// halfTileAway shifts ll half a tile towards the north-west.
func (s *scanner) halfTileAway(ll geo.LatLng) geo.LatLng {
	p := s.proj.FromLatLngToPoint(ll)
	offset := s.stride / 2

	return s.proj.FromPointToLatLng(geo.Point{X: p.X - offset, Y: p.Y - offset})
}

// addTile tests cell (x, y) and records it. The cell goes to the primary
// grid only when includePrimary is set. With force the containment tests
// are skipped and the half tile is always recorded. It reports whether the
// cell center was accepted.
func (s *scanner) addTile(x, y int, includePrimary, force bool) bool {
	center := s.cellCenter(x, y)
	if !force && !s.accepts(x, y, center) {
		return false
	}

	if includePrimary {
		s.primary = append(s.primary, s.tile(center, x, y))
	}

	half := s.halfTileAway(center)
	if !half.IsValid() {
		half = half.CoerceToValid()
	}
	if force || s.bounds.Contains(half) {
		s.half = append(s.half, s.tile(half, x, y))
	}

	return true
}

func (s *scanner) tile(center geo.LatLng, x, y int) Tile {
	return Tile{
		X:         x,
		Y:         y,
		URLParams: RequestParams(center, s.opts.Zoom, s.opts.Scale, s.opts.Size, s.opts.Maptype),
	}
}
