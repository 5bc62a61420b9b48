package geo

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// ErrInvalidBounds is returned for boxes whose southwest corner is not
// strictly south and west of the northeast corner.
var ErrInvalidBounds = errors.New("invalid bounds")

// LatLng is a geographic coordinate in degrees (WGS84).
type LatLng struct {
	Lat float64
	Lng float64
}

// ParseLatLng parses a "lat,lng" string such as "39.1,-83.2".
func ParseLatLng(s string) (LatLng, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return LatLng{}, fmt.Errorf("expected \"lat,lng\", got %q", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return LatLng{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}

	return LatLng{Lat: lat, Lng: lng}, nil
}

// IsValid reports whether the coordinate lies within [-90,90] x [-180,180].
func (ll LatLng) IsValid() bool {
	return ll.Lat >= -90 && ll.Lat <= 90 && ll.Lng >= -180 && ll.Lng <= 180
}

// CoerceToValid clamps the coordinate into the valid range. Longitudes are
// clamped, not wrapped.
func (ll LatLng) CoerceToValid() LatLng {
	return LatLng{
		Lat: math.Min(math.Max(ll.Lat, -90), 90),
		Lng: math.Min(math.Max(ll.Lng, -180), 180),
	}
}

// String returns the coordinate as "lat,lng" using the shortest exact
// decimal representation of each value.
func (ll LatLng) String() string {
	return formatFloat(ll.Lat) + "," + formatFloat(ll.Lng)
}

// MarshalText encodes the coordinate in its "lat,lng" form.
func (ll LatLng) MarshalText() ([]byte, error) {
	return []byte(ll.String()), nil
}

// UnmarshalText decodes a "lat,lng" string.
func (ll *LatLng) UnmarshalText(text []byte) error {
	parsed, err := ParseLatLng(string(text))
	if err != nil {
		return err
	}
	*ll = parsed
	return nil
}

// Point returns the coordinate as an orb point (lon, lat).
func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// SlippyTile returns the z/x/y map tile containing the coordinate.
func SlippyTile(ll LatLng, zoom int) maptile.Tile {
	return maptile.At(ll.Point(), maptile.Zoom(zoom))
}

// LatLngBounds is an axis-aligned geographic box. Boxes that cross the
// antimeridian are not supported.
type LatLngBounds struct {
	Southwest LatLng
	Northeast LatLng
}

// NewBounds builds a box from its southwest and northeast corners.
func NewBounds(sw, ne LatLng) LatLngBounds {
	return LatLngBounds{Southwest: sw, Northeast: ne}
}

// Contains reports whether p lies inside the box, edges included.
func (b LatLngBounds) Contains(p LatLng) bool {
	return b.Southwest.Lat <= p.Lat && p.Lat <= b.Northeast.Lat &&
		b.Southwest.Lng <= p.Lng && p.Lng <= b.Northeast.Lng
}

// Validate checks that both corners are valid coordinates and that the box
// has a positive extent in both axes.
func (b LatLngBounds) Validate() error {
	if !b.Southwest.IsValid() {
		return fmt.Errorf("%w: southwest %s out of range", ErrInvalidBounds, b.Southwest)
	}
	if !b.Northeast.IsValid() {
		return fmt.Errorf("%w: northeast %s out of range", ErrInvalidBounds, b.Northeast)
	}
	if b.Southwest.Lat >= b.Northeast.Lat {
		return fmt.Errorf("%w: southwest lat (%s) must be < northeast lat (%s)",
			ErrInvalidBounds, formatFloat(b.Southwest.Lat), formatFloat(b.Northeast.Lat))
	}
	if b.Southwest.Lng >= b.Northeast.Lng {
		return fmt.Errorf("%w: southwest lng (%s) must be < northeast lng (%s)",
			ErrInvalidBounds, formatFloat(b.Southwest.Lng), formatFloat(b.Northeast.Lng))
	}
	return nil
}

// Bound returns the box as an orb bound.
func (b LatLngBounds) Bound() orb.Bound {
	return orb.Bound{Min: b.Southwest.Point(), Max: b.Northeast.Point()}
}

// String returns a human-readable representation of the box.
func (b LatLngBounds) String() string {
	return fmt.Sprintf("bounds(sw=%s ne=%s)", b.Southwest, b.Northeast)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
